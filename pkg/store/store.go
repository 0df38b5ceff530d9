// Package store defines the record store the pipeline reads sources from and
// writes posts and run summaries to, and opens the configured backend.
package store

import (
	"context"
	"fmt"
	"strings"

	"postcrawler/pkg/config"
	"postcrawler/pkg/logger"
	"postcrawler/pkg/models"
	"postcrawler/pkg/store/airtable"
	"postcrawler/pkg/store/postgres"
	"postcrawler/pkg/store/sqlite"
)

// SourceFeed lists the sources to crawl
type SourceFeed interface {
	ActiveSources(ctx context.Context) ([]models.Source, error)
}

// SourceAdmin edits the source list
type SourceAdmin interface {
	AddSource(ctx context.Context, src models.Source) (models.Source, error)
}

// PostStore is the dedup-checked post sink
type PostStore interface {
	ExistsByURL(ctx context.Context, canonicalURL string) (bool, error)
	Create(ctx context.Context, post models.StoredPost) error
}

// RunLog keeps run summaries
type RunLog interface {
	AppendRun(ctx context.Context, run *models.RunSummary) error
	RecentRuns(ctx context.Context, limit int) ([]models.RunSummary, error)
}

// Store is a complete backend
type Store interface {
	SourceFeed
	PostStore
	RunLog
	Close() error
}

// Open connects to the backend named by cfg.Driver
func Open(ctx context.Context, cfg config.StoreConfig, log logger.Logger) (Store, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.WithField("store", cfg.Driver)

	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return sqlite.Open(ctx, cfg.DSN)
	case "postgres":
		return postgres.Open(ctx, cfg.DSN)
	case "airtable":
		return airtable.New(airtable.Config{
			APIKey:       cfg.Airtable.APIKey,
			BaseID:       cfg.Airtable.BaseID,
			BaseURL:      cfg.Airtable.BaseURL,
			SourcesTable: cfg.Airtable.SourcesTable,
			PostsTable:   cfg.Airtable.PostsTable,
			RunsTable:    cfg.Airtable.RunsTable,
		}, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
}
