// Package db persists final drafts and terminal-state snapshots. Result
// writes are transactional per instance; snapshot writes ride a bounded
// async queue because they are inspection data, not correctness data.
package db

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/draftline-ai/orchestrator/internal/circuitbreaker"
)

// Config holds database configuration. URL accepts postgres:// DSNs and, for
// local development, sqlite://path.
type Config struct {
	URL             string
	MaxConnections  int
	IdleConnections int
	MaxLifetime     time.Duration
}

// Client manages the connection pool and the async snapshot queue.
type Client struct {
	db      *circuitbreaker.DatabaseWrapper
	builder sq.StatementBuilderType
	logger  *zap.Logger

	writeQueue chan writeRequest
	workers    int
	stopCh     chan struct{}
	workerWg   sync.WaitGroup
}

type writeRequest struct {
	snapshot Snapshot
}

// NewClient opens the store and verifies connectivity.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 25
	}
	if cfg.IdleConnections == 0 {
		cfg.IdleConnections = 5
	}
	if cfg.MaxLifetime == 0 {
		cfg.MaxLifetime = 5 * time.Minute
	}

	driver, dsn, placeholder, err := parseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	rawDB, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	rawDB.SetMaxOpenConns(cfg.MaxConnections)
	rawDB.SetMaxIdleConns(cfg.IdleConnections)
	rawDB.SetConnMaxLifetime(cfg.MaxLifetime)

	db := circuitbreaker.NewDatabaseWrapper(rawDB, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = rawDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	client := &Client{
		db:         db,
		builder:    sq.StatementBuilder.PlaceholderFormat(placeholder),
		logger:     logger,
		writeQueue: make(chan writeRequest, 256),
		workers:    4,
		stopCh:     make(chan struct{}),
	}
	client.startWorkers()

	logger.Info("Database client initialized",
		zap.String("driver", driver),
		zap.Int("max_connections", cfg.MaxConnections),
		zap.Int("snapshot_workers", client.workers),
	)
	return client, nil
}

// parseURL maps a DATABASE_URL to driver, DSN, and placeholder style.
func parseURL(raw string) (string, string, sq.PlaceholderFormat, error) {
	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return "postgres", raw, sq.Dollar, nil
	case strings.HasPrefix(raw, "sqlite://"):
		return "sqlite3", strings.TrimPrefix(raw, "sqlite://"), sq.Question, nil
	case raw == "":
		return "", "", nil, fmt.Errorf("DATABASE_URL is empty")
	default:
		// Bare DSNs (host=... dbname=...) are treated as postgres.
		return "postgres", raw, sq.Dollar, nil
	}
}

func (c *Client) startWorkers() {
	for i := 0; i < c.workers; i++ {
		c.workerWg.Add(1)
		go c.writeWorker(i)
	}
}

func (c *Client) writeWorker(id int) {
	defer c.workerWg.Done()
	for {
		select {
		case <-c.stopCh:
			c.drainQueue()
			c.logger.Debug("Snapshot worker stopped", zap.Int("worker_id", id))
			return
		case req := <-c.writeQueue:
			if err := c.saveSnapshot(context.Background(), req.snapshot); err != nil {
				c.logger.Warn("Snapshot write failed",
					zap.String("instance_id", req.snapshot.InstanceID),
					zap.Error(err),
				)
			}
		}
	}
}

func (c *Client) drainQueue() {
	timeout := time.After(10 * time.Second)
	for {
		select {
		case req := <-c.writeQueue:
			if err := c.saveSnapshot(context.Background(), req.snapshot); err != nil {
				c.logger.Warn("Snapshot write failed during drain", zap.Error(err))
			}
		case <-timeout:
			c.logger.Warn("Timeout draining snapshot queue")
			return
		default:
			return
		}
	}
}

// QueueSnapshot enqueues an async snapshot write. When the queue is full the
// write happens synchronously so terminal-state evidence is never dropped.
func (c *Client) QueueSnapshot(snap Snapshot) {
	select {
	case c.writeQueue <- writeRequest{snapshot: snap}:
	default:
		c.logger.Warn("Snapshot queue full, writing synchronously",
			zap.String("instance_id", snap.InstanceID))
		if err := c.saveSnapshot(context.Background(), snap); err != nil {
			c.logger.Warn("Synchronous snapshot write failed", zap.Error(err))
		}
	}
}

// WithTransaction runs fn inside a transaction, rolling back on error or
// panic.
func (c *Client) WithTransaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v, original error: %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

// Healthy pings the store.
func (c *Client) Healthy(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Wrapper exposes the breaker-wrapped handle for health checks.
func (c *Client) Wrapper() *circuitbreaker.DatabaseWrapper {
	return c.db
}

// Close drains the snapshot queue and releases connections.
func (c *Client) Close() error {
	close(c.stopCh)
	c.workerWg.Wait()
	return c.db.Close()
}
