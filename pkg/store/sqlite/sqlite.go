// Package sqlite is the default local record store backend
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"postcrawler/pkg/models"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sources (
	id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	target_url TEXT NOT NULL,
	group_name TEXT NOT NULL DEFAULT '',
	priority INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'Active',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
	id TEXT PRIMARY KEY,
	canonical_url TEXT NOT NULL,
	content TEXT NOT NULL,
	published_at TEXT NOT NULL,
	timestamp_approximate INTEGER NOT NULL DEFAULT 0,
	like_count INTEGER NOT NULL DEFAULT 0,
	comment_count INTEGER NOT NULL DEFAULT 0,
	has_media INTEGER NOT NULL DEFAULT 0,
	media_url TEXT NOT NULL DEFAULT '',
	author_name TEXT NOT NULL DEFAULT '',
	author_source_url TEXT NOT NULL DEFAULT '',
	group_name TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_posts_canonical_url ON posts(canonical_url);

CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	summary TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// DB is a sqlite-backed store
type DB struct {
	conn *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema
func Open(ctx context.Context, path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}
	// One writer; the pipeline is sequential anyway
	conn.SetMaxOpenConns(1)

	if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: configure database: %w", err)
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: init schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the database
func (db *DB) Close() error {
	return db.conn.Close()
}

// ActiveSources returns Active sources ordered by priority
func (db *DB) ActiveSources(ctx context.Context) ([]models.Source, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, display_name, target_url, group_name, priority, status
		FROM sources
		WHERE status = ?
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
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	if src.Status == "" {
		src.Status = models.SourceActive
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO sources (id, display_name, target_url, group_name, priority, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		src.ID, src.DisplayName, src.TargetURL, src.Group, src.Priority, string(src.Status),
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return src, fmt.Errorf("storage: insert source: %w", err)
	}
	return src, nil
}

// ExistsByURL reports whether a post with exactly canonicalURL exists
func (db *DB) ExistsByURL(ctx context.Context, canonicalURL string) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM posts WHERE canonical_url = ? LIMIT 1`, canonicalURL).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: lookup post: %w", err)
	}
	return true, nil
}

// Create inserts a post
func (db *DB) Create(ctx context.Context, p models.StoredPost) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO posts (id, canonical_url, content, published_at, timestamp_approximate,
			like_count, comment_count, has_media, media_url,
			author_name, author_source_url, group_name, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.CanonicalURL, p.Content, p.PublishedAt.UTC().Format(time.RFC3339), p.TimestampApproximate,
		p.LikeCount, p.CommentCount, p.HasMedia, p.MediaURL,
		p.AuthorName, p.AuthorSourceURL, p.Group, p.Status, p.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("storage: insert post: %w", err)
	}
	return nil
}

// PostsBySource returns stored posts of one author source, newest first
func (db *DB) PostsBySource(ctx context.Context, sourceURL string) ([]models.StoredPost, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, canonical_url, content, published_at, timestamp_approximate,
			like_count, comment_count, has_media, media_url,
			author_name, author_source_url, group_name, status, created_at
		FROM posts WHERE author_source_url = ?
		ORDER BY published_at DESC`, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("storage: query posts: %w", err)
	}
	defer rows.Close()

	var out []models.StoredPost
	for rows.Next() {
		var p models.StoredPost
		var published, created string
		if err := rows.Scan(&p.ID, &p.CanonicalURL, &p.Content, &published, &p.TimestampApproximate,
			&p.LikeCount, &p.CommentCount, &p.HasMedia, &p.MediaURL,
			&p.AuthorName, &p.AuthorSourceURL, &p.Group, &p.Status, &created); err != nil {
			return nil, fmt.Errorf("storage: scan post: %w", err)
		}
		p.PublishedAt, _ = time.Parse(time.RFC3339, published)
		p.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, p)
	}
	return out, rows.Err()
}

// AppendRun stores a run summary as JSON
func (db *DB) AppendRun(ctx context.Context, run *models.RunSummary) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("storage: marshal run: %w", err)
	}
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, summary) VALUES (?, ?, ?)`,
		run.RunID, run.StartedAt.UTC().Format(time.RFC3339Nano), string(data))
	if err != nil {
		return fmt.Errorf("storage: insert run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit summaries, newest first
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT summary FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: query runs: %w", err)
	}
	defer rows.Close()

	var out []models.RunSummary
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("storage: scan run: %w", err)
		}
		var run models.RunSummary
		if err := json.Unmarshal([]byte(raw), &run); err != nil {
			return nil, fmt.Errorf("storage: decode run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
