package circuitbreaker

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// DatabaseWrapper guards the relational store. Transactions acquired through
// BeginTxx are counted as one admission; their statements run unguarded since
// the connection is already held.
type DatabaseWrapper struct {
	db *sqlx.DB
	cb *Breaker
}

// NewDatabaseWrapper wraps an sqlx handle with a breaker tuned for the store.
func NewDatabaseWrapper(db *sqlx.DB, logger *zap.Logger) *DatabaseWrapper {
	cfg := DefaultConfig()
	cfg.Cooldown = 15 * time.Second
	return &DatabaseWrapper{
		db: db,
		cb: New("database", cfg, logger),
	}
}

// PingContext wraps Ping.
func (dw *DatabaseWrapper) PingContext(ctx context.Context) error {
	return dw.cb.Execute(ctx, func() error {
		return dw.db.PingContext(ctx)
	})
}

// ExecContext wraps Exec.
func (dw *DatabaseWrapper) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	var res sql.Result
	err := dw.cb.Execute(ctx, func() error {
		var inner error
		res, inner = dw.db.ExecContext(ctx, query, args...)
		return inner
	})
	return res, err
}

// QueryRowxContext wraps QueryRowx. Row errors surface on Scan; only
// admission errors are returned here.
func (dw *DatabaseWrapper) QueryRowxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Row, error) {
	var row *sqlx.Row
	err := dw.cb.Execute(ctx, func() error {
		row = dw.db.QueryRowxContext(ctx, query, args...)
		return row.Err()
	})
	if err != nil && row == nil {
		return nil, err
	}
	return row, nil
}

// GetContext wraps sqlx Get.
func (dw *DatabaseWrapper) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return dw.cb.Execute(ctx, func() error {
		err := dw.db.GetContext(ctx, dest, query, args...)
		if err == sql.ErrNoRows {
			// A miss is an answer, not an outage.
			return nil
		}
		return err
	})
}

// BeginTxx wraps transaction start.
func (dw *DatabaseWrapper) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	var tx *sqlx.Tx
	err := dw.cb.Execute(ctx, func() error {
		var inner error
		tx, inner = dw.db.BeginTxx(ctx, opts)
		return inner
	})
	return tx, err
}

// Close closes the underlying handle.
func (dw *DatabaseWrapper) Close() error {
	return dw.db.Close()
}

// DB exposes the raw handle for health checks and migrations.
func (dw *DatabaseWrapper) DB() *sqlx.DB {
	return dw.db
}

// IsOpen reports whether the breaker is rejecting calls.
func (dw *DatabaseWrapper) IsOpen() bool {
	return dw.cb.IsOpen()
}
