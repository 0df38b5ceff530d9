// Package postgres is the server record store backend
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"postcrawler/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS sources (
	id UUID PRIMARY KEY,
	display_name TEXT NOT NULL,
	target_url TEXT NOT NULL,
	group_name TEXT NOT NULL DEFAULT '',
	priority INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'Active',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS posts (
	id UUID PRIMARY KEY,
	canonical_url TEXT NOT NULL,
	content TEXT NOT NULL,
	published_at TIMESTAMPTZ NOT NULL,
	timestamp_approximate BOOLEAN NOT NULL DEFAULT FALSE,
	like_count INTEGER NOT NULL DEFAULT 0,
	comment_count INTEGER NOT NULL DEFAULT 0,
	has_media BOOLEAN NOT NULL DEFAULT FALSE,
	media_url TEXT NOT NULL DEFAULT '',
	author_name TEXT NOT NULL DEFAULT '',
	author_source_url TEXT NOT NULL DEFAULT '',
	group_name TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_posts_canonical_url ON posts(canonical_url);

CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	started_at TIMESTAMPTZ NOT NULL,
	summary JSONB NOT NULL
);
`

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Open establishes a connection pool and applies the schema
func Open(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("storage: connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: init schema: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() error {
	if db.pool != nil {
		db.pool.Close()
	}
	return nil
}

// ActiveSources returns Active sources ordered by priority
func (db *DB) ActiveSources(ctx context.Context) ([]models.Source, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id::text, display_name, target_url, group_name, priority, status
		FROM sources
		WHERE status = $1
		ORDER BY priority ASC, created_at ASC`, string(models.SourceActive))
	if err != nil {
		return nil, fmt.Errorf("storage: query sources: %w", err)
	}
	defer rows.Close()

	var out []models.Source
	for rows.Next() {
		var s models.Source
		var status string
		if err := rows.Scan(&s.ID, &s.DisplayName, &s.TargetURL, &s.Group, &s.Priority, &status); err != nil {
			return nil, fmt.Errorf("storage: scan source: %w", err)
		}
		s.Status = models.SourceStatus(status)
		out = append(out, s)
	}
	return out, rows.Err()
}

// AddSource inserts a source
func (db *DB) AddSource(ctx context.Context, src models.Source) (models.Source, error) {
	id := uuid.New()
	if src.ID != "" {
		parsed, err := uuid.Parse(src.ID)
		if err != nil {
			return src, fmt.Errorf("storage: source id must be a UUID: %w", err)
		}
		id = parsed
	}
	src.ID = id.String()
	if src.Status == "" {
		src.Status = models.SourceActive
	}

	_, err := db.pool.Exec(ctx, `
		INSERT INTO sources (id, display_name, target_url, group_name, priority, status)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, src.DisplayName, src.TargetURL, src.Group, src.Priority, string(src.Status))
	if err != nil {
		return src, fmt.Errorf("storage: insert source: %w", err)
	}
	return src, nil
}

// ExistsByURL reports whether a post with exactly canonicalURL exists
func (db *DB) ExistsByURL(ctx context.Context, canonicalURL string) (bool, error) {
	var one int
	err := db.pool.QueryRow(ctx,
		`SELECT 1 FROM posts WHERE canonical_url = $1 LIMIT 1`, canonicalURL).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: lookup post: %w", err)
	}
	return true, nil
}

// Create inserts a post
func (db *DB) Create(ctx context.Context, p models.StoredPost) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO posts (id, canonical_url, content, published_at, timestamp_approximate,
			like_count, comment_count, has_media, media_url,
			author_name, author_source_url, group_name, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		uuid.New(), p.CanonicalURL, p.Content, p.PublishedAt, p.TimestampApproximate,
		p.LikeCount, p.CommentCount, p.HasMedia, p.MediaURL,
		p.AuthorName, p.AuthorSourceURL, p.Group, p.Status, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("storage: insert post: %w", err)
	}
	return nil
}

// AppendRun stores a run summary
func (db *DB) AppendRun(ctx context.Context, run *models.RunSummary) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("storage: marshal run: %w", err)
	}
	_, err = db.pool.Exec(ctx,
		`INSERT INTO runs (run_id, started_at, summary) VALUES ($1, $2, $3)`,
		run.RunID, run.StartedAt, data)
	if err != nil {
		return fmt.Errorf("storage: insert run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit summaries, newest first
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	query := `SELECT summary FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: query runs: %w", err)
	}
	defer rows.Close()

	var out []models.RunSummary
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("storage: scan run: %w", err)
		}
		var run models.RunSummary
		if err := json.Unmarshal(raw, &run); err != nil {
			return nil, fmt.Errorf("storage: decode run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
