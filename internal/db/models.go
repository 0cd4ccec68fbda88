package db

import (
	"encoding/json"
	"time"
)

// CompanyRecord is a finished company profile headed for the companies
// table. Payload carries the full draft (sections, metadata, provenance) as
// JSONB; the flat columns exist for listing and lookup.
type CompanyRecord struct {
	Slug         string
	Name         string
	Title        string
	Summary      string
	Coverage     float64
	Completeness float64
	Partial      bool
	CostMicros   int64
	Payload      json.RawMessage
}

// ArticleRecord is a finished article. MediaURL is the attached asset;
// persisting it rides the same transaction as the article row so the write
// is atomic per instance.
type ArticleRecord struct {
	Slug         string
	Topic        string
	Title        string
	Summary      string
	Coverage     float64
	Completeness float64
	Partial      bool
	CostMicros   int64
	MediaURL     string
	Payload      json.RawMessage
}

// Snapshot preserves the state of a terminal instance for inspection.
// Written for failed and cancelled instances (and, best effort, completed
// ones when snapshotting is enabled).
type Snapshot struct {
	InstanceID string
	SubjectID  string
	Kind       string
	Stage      string
	Status     string
	Reason     string
	State      json.RawMessage
	CreatedAt  time.Time
}
