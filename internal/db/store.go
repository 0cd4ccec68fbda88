package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/draftline-ai/orchestrator/internal/metrics"
)

// Store implements the upsert-by-slug persistence contract. Each save is one
// transaction: either the full result set for an instance lands or none of
// it does.
type Store struct {
	client *Client
}

// NewStore wraps a client.
func NewStore(client *Client) *Store {
	return &Store{client: client}
}

// SaveCompany upserts a company profile by slug. Returns the row id and
// whether a new row was created.
func (s *Store) SaveCompany(ctx context.Context, rec CompanyRecord) (string, bool, error) {
	var id string
	var created bool
	err := s.client.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		existing, err := s.lookupID(ctx, tx, "companies", rec.Slug)
		if err != nil {
			return err
		}
		now := time.Now().UTC()

		if existing != "" {
			id = existing
			query, args, err := s.client.builder.
				Update("companies").
				Set("name", rec.Name).
				Set("title", rec.Title).
				Set("summary", rec.Summary).
				Set("coverage", rec.Coverage).
				Set("completeness", rec.Completeness).
				Set("partial", rec.Partial).
				Set("cost_micros", rec.CostMicros).
				Set("payload", []byte(rec.Payload)).
				Set("updated_at", now).
				Where(sq.Eq{"id": existing}).
				ToSql()
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("update company %s: %w", rec.Slug, err)
			}
			return nil
		}

		created = true
		id = uuid.NewString()
		query, args, err := s.client.builder.
			Insert("companies").
			Columns("id", "slug", "name", "title", "summary", "coverage",
				"completeness", "partial", "cost_micros", "payload", "created_at", "updated_at").
			Values(id, rec.Slug, rec.Name, rec.Title, rec.Summary, rec.Coverage,
				rec.Completeness, rec.Partial, rec.CostMicros, []byte(rec.Payload), now, now).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert company %s: %w", rec.Slug, err)
		}
		return nil
	})
	if err != nil {
		metrics.PersistWrites.WithLabelValues("company", "failed").Inc()
		return "", false, err
	}
	metrics.PersistWrites.WithLabelValues("company", outcome(created)).Inc()
	return id, created, nil
}

// SaveArticle upserts an article by slug, attaching the media asset URL in
// the same transaction.
func (s *Store) SaveArticle(ctx context.Context, rec ArticleRecord) (string, bool, error) {
	var id string
	var created bool
	err := s.client.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		existing, err := s.lookupID(ctx, tx, "articles", rec.Slug)
		if err != nil {
			return err
		}
		now := time.Now().UTC()

		if existing != "" {
			id = existing
			query, args, err := s.client.builder.
				Update("articles").
				Set("topic", rec.Topic).
				Set("title", rec.Title).
				Set("summary", rec.Summary).
				Set("coverage", rec.Coverage).
				Set("completeness", rec.Completeness).
				Set("partial", rec.Partial).
				Set("cost_micros", rec.CostMicros).
				Set("media_url", rec.MediaURL).
				Set("payload", []byte(rec.Payload)).
				Set("updated_at", now).
				Where(sq.Eq{"id": existing}).
				ToSql()
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("update article %s: %w", rec.Slug, err)
			}
			return nil
		}

		created = true
		id = uuid.NewString()
		query, args, err := s.client.builder.
			Insert("articles").
			Columns("id", "slug", "topic", "title", "summary", "coverage",
				"completeness", "partial", "cost_micros", "media_url", "payload",
				"created_at", "updated_at").
			Values(id, rec.Slug, rec.Topic, rec.Title, rec.Summary, rec.Coverage,
				rec.Completeness, rec.Partial, rec.CostMicros, rec.MediaURL,
				[]byte(rec.Payload), now, now).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert article %s: %w", rec.Slug, err)
		}
		return nil
	})
	if err != nil {
		metrics.PersistWrites.WithLabelValues("article", "failed").Inc()
		return "", false, err
	}
	metrics.PersistWrites.WithLabelValues("article", outcome(created)).Inc()
	return id, created, nil
}

// QueueSnapshot hands a terminal-state snapshot to the async write queue.
func (s *Store) QueueSnapshot(snap Snapshot) {
	s.client.QueueSnapshot(snap)
}

// SaveSnapshot writes a terminal-state snapshot synchronously. Most callers
// should prefer QueueSnapshot.
func (s *Store) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	return s.client.saveSnapshot(ctx, snap)
}

func (c *Client) saveSnapshot(ctx context.Context, snap Snapshot) error {
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	query, args, err := c.builder.
		Insert("instance_snapshots").
		Columns("id", "instance_id", "subject_id", "kind", "stage", "status",
			"reason", "state", "created_at").
		Values(uuid.NewString(), snap.InstanceID, snap.SubjectID, snap.Kind,
			snap.Stage, snap.Status, snap.Reason, []byte(snap.State), snap.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert snapshot %s: %w", snap.InstanceID, err)
	}
	metrics.SnapshotsArchived.Inc()
	return nil
}

func (s *Store) lookupID(ctx context.Context, tx *sqlx.Tx, table, slug string) (string, error) {
	query, args, err := s.client.builder.
		Select("id").From(table).Where(sq.Eq{"slug": slug}).ToSql()
	if err != nil {
		return "", err
	}
	var id string
	if err := tx.GetContext(ctx, &id, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("lookup %s slug %s: %w", table, slug, err)
	}
	return id, nil
}

func outcome(created bool) string {
	if created {
		return "created"
	}
	return "updated"
}
