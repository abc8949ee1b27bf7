// Package postgres answers searches directly against the catalog tables.
// Postgres is the source of truth, so this backend needs no indexing feed.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/laas-platform/laas/pkg/database"
)

// Engine implements engine.SearchEngine over pgx.
type Engine struct {
	db       database.DBTX
	fullText bool
}

type Option func(*Engine)

// WithFullText toggles the tsvector match and ts_rank relevance. Without it
// text search is ILIKE only and relevance sorts newest first.
func WithFullText(enabled bool) Option {
	return func(e *Engine) { e.fullText = enabled }
}

func New(db database.DBTX, opts ...Option) *Engine {
	e := &Engine{db: db, fullText: true}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Ping(ctx context.Context) error {
	if _, err := e.db.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// query runs one traced statement and feeds every row to scan.
func (e *Engine) query(ctx context.Context, op, sql string, args []any, scan func(pgx.Rows) error) (err error) {
	ctx, end := database.TraceQuery(ctx, op, sql)
	defer func() { end(err) }()

	rows, err := e.db.Query(ctx, sql, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err = scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
