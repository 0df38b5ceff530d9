package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"postcrawler/pkg/models"
)

// Memory is an in-process Store
type Memory struct {
	mu      sync.Mutex
	sources []models.Source
	posts   []models.StoredPost
	runs    []models.RunSummary

	// Injected failures keyed by canonical URL
	ExistsErr  map[string]error
	CreateErr  map[string]error
	SourcesErr error

	existsCalls int
	createCalls int
}

// NewMemory creates an empty store
func NewMemory(sources ...models.Source) *Memory {
	return &Memory{
		sources:   sources,
		ExistsErr: map[string]error{},
		CreateErr: map[string]error{},
	}
}

// ActiveSources returns Active sources by priority, then insertion order
func (m *Memory) ActiveSources(ctx context.Context) ([]models.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SourcesErr != nil {
		return nil, m.SourcesErr
	}

	var out []models.Source
	for _, s := range m.sources {
		if s.IsActive() {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

// AddSource appends a source, assigning an ID when missing
func (m *Memory) AddSource(ctx context.Context, src models.Source) (models.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	if src.Status == "" {
		src.Status = models.SourceActive
	}
	m.sources = append(m.sources, src)
	return src, nil
}

// ExistsByURL reports whether a post with exactly this canonical URL exists
func (m *Memory) ExistsByURL(ctx context.Context, canonicalURL string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existsCalls++
	if err := m.ExistsErr[canonicalURL]; err != nil {
		return false, err
	}
	for _, p := range m.posts {
		if p.CanonicalURL == canonicalURL {
			return true, nil
		}
	}
	return false, nil
}

// Create stores a post
func (m *Memory) Create(ctx context.Context, post models.StoredPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if err := m.CreateErr[post.CanonicalURL]; err != nil {
		return err
	}
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	m.posts = append(m.posts, post)
	return nil
}

// AppendRun records a run summary
func (m *Memory) AppendRun(ctx context.Context, run *models.RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *run)
	return nil
}

// RecentRuns returns up to limit summaries, newest first
func (m *Memory) RecentRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RunSummary
	for i := len(m.runs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

// Posts returns a copy of every stored post
func (m *Memory) Posts() []models.StoredPost {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.StoredPost(nil), m.posts...)
}

// Calls returns how many existence checks and creates ran
func (m *Memory) Calls() (exists, creates int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.existsCalls, m.createCalls
}

// Close is a no-op
func (m *Memory) Close() error { return nil }
