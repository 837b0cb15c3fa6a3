package scrape

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresSinkConfig controls the Postgres connection pool used for the
// document write path.
type PostgresSinkConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresSink writes extracted documents into Postgres, one row per page.
// This is the hand-off point to the downstream embedding pipeline, which
// reads rows from the same table.
type PostgresSink struct {
	pool  execCloser
	table string
}

// NewPostgresSink creates a Postgres-backed sink using the provided config.
func NewPostgresSink(ctx context.Context, cfg PostgresSinkConfig) (*PostgresSink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sink.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewPostgresSinkWithPool(pool, cfg.Table)
}

// NewPostgresSinkWithPool constructs a sink from an existing pool (primarily
// for testing).
func NewPostgresSinkWithPool(pool execCloser, table string) (*PostgresSink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "legislator_documents"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresSink{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *PostgresSink) Close() {
	s.pool.Close()
}

// Write upserts one row per extracted page, keyed by (unit_id, page_url), so
// redone work after a crash overwrites rather than duplicates.
func (s *PostgresSink) Write(ctx context.Context, content ExtractedContent) error {
	if content.UnitID == "" {
		return fmt.Errorf("extracted content has no unit id")
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (unit_id, member_name, source_url, page_url, page_title, page_text, fetched_at, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (unit_id, page_url) DO UPDATE SET
			page_title = EXCLUDED.page_title,
			page_text = EXCLUDED.page_text,
			fetched_at = EXCLUDED.fetched_at,
			scraped_at = EXCLUDED.scraped_at
	`, s.table)
	for _, page := range content.Pages {
		if _, err := s.pool.Exec(ctx, query,
			content.UnitID,
			content.Name,
			content.SourceURL,
			page.URL,
			page.Title,
			page.Text,
			page.FetchedAt,
			content.ScrapedAt,
		); err != nil {
			return fmt.Errorf("insert page %s for unit %s: %w", page.URL, content.UnitID, err)
		}
	}
	return nil
}
