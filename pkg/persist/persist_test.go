package persist

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"postcrawler/pkg/errors"
	"postcrawler/pkg/logger"
	"postcrawler/pkg/models"
	"postcrawler/pkg/store"
)

// countingLimiter records Wait calls
type countingLimiter struct {
	mu    sync.Mutex
	waits int
	err   error
}

func (c *countingLimiter) Allow() bool { return true }
func (c *countingLimiter) Reset()      {}
func (c *countingLimiter) Wait(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits++
	return c.err
}

func posts(n int) []models.ExtractedPost {
	out := make([]models.ExtractedPost, n)
	for i := range out {
		out[i] = models.ExtractedPost{
			Content:      fmt.Sprintf("post number %d content", i),
			CanonicalURL: fmt.Sprintf("https://x.test/feed/update/urn:li:activity:%d/", i),
			PublishedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}
	}
	return out
}

var jane = models.SourceContext{AuthorName: "Jane", AuthorSourceURL: "https://x.test/in/jdoe", Group: "founders"}

func TestPersistNewIsIdempotent(t *testing.T) {
	for _, n := range []int{0, 1, 5} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			ctx := context.Background()
			mem := store.NewMemory()
			p := NewWithLimiter(mem, &countingLimiter{}, nil)

			first := p.PersistNew(ctx, posts(n), jane)
			assert.Equal(t, n, first.SavedCount)
			assert.Len(t, first.SavedURLs, n)
			assert.Empty(t, first.Errors)

			second := p.PersistNew(ctx, posts(n), jane)
			assert.Equal(t, 0, second.SavedCount)
			assert.Equal(t, n, second.Skipped)
			assert.Len(t, mem.Posts(), n)
		})
	}
}

func TestPersistNewSkipsPreexisting(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	batch := posts(2)
	require.NoError(t, mem.Create(ctx, models.NewStoredPost(batch[0], jane, time.Now())))

	limiter := &countingLimiter{}
	res := NewWithLimiter(mem, limiter, nil).PersistNew(ctx, batch, jane)
	assert.Equal(t, 1, res.SavedCount)
	assert.Equal(t, []string{batch[1].CanonicalURL}, res.SavedURLs)
	assert.Equal(t, 1, limiter.waits, "only writes are paced")
}

func TestPersistNewMergesSourceContext(t *testing.T) {
	mem := store.NewMemory()
	p := NewWithLimiter(mem, &countingLimiter{}, nil)
	fixed := time.Date(2026, 5, 5, 5, 5, 5, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	p.PersistNew(context.Background(), posts(1), jane)
	stored := mem.Posts()
	require.Len(t, stored, 1)
	assert.Equal(t, "Jane", stored[0].AuthorName)
	assert.Equal(t, "https://x.test/in/jdoe", stored[0].AuthorSourceURL)
	assert.Equal(t, "founders", stored[0].Group)
	assert.Equal(t, models.PostStatusNew, stored[0].Status)
	assert.Equal(t, fixed, stored[0].CreatedAt)
}

func TestPersistNewIsolatesStoreFailures(t *testing.T) {
	batch := posts(3)
	mem := store.NewMemory()
	mem.ExistsErr[batch[0].CanonicalURL] = stderrors.New("timeout")
	mem.CreateErr[batch[1].CanonicalURL] = stderrors.New("quota exceeded")

	log := logger.NewTestLogger()
	res := NewWithLimiter(mem, &countingLimiter{}, log).PersistNew(context.Background(), batch, jane)

	assert.Equal(t, 1, res.SavedCount)
	assert.Equal(t, []string{batch[2].CanonicalURL}, res.SavedURLs)
	require.Len(t, res.Errors, 2)
	for _, err := range res.Errors {
		assert.True(t, errors.IsType(err, errors.ErrorTypePersistence))
	}
	assert.Len(t, log.GetMessagesByLevel("WARN"), 2)
}

func TestPersistNewStopsWhenPacingFails(t *testing.T) {
	mem := store.NewMemory()
	limiter := &countingLimiter{err: context.Canceled}
	res := NewWithLimiter(mem, limiter, nil).PersistNew(context.Background(), posts(3), jane)

	assert.Equal(t, 0, res.SavedCount)
	assert.Len(t, res.Errors, 1)
	assert.Equal(t, 1, limiter.waits)
}

func TestPersistNewCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mem := store.NewMemory()
	res := New(mem, 0, nil).PersistNew(ctx, posts(2), jane)
	assert.Equal(t, 0, res.SavedCount)
	require.Len(t, res.Errors, 1)
	exists, creates := mem.Calls()
	assert.Zero(t, exists)
	assert.Zero(t, creates)
}

func TestNewPacesWrites(t *testing.T) {
	mem := store.NewMemory()
	p := New(mem, 20*time.Millisecond, nil)

	start := time.Now()
	res := p.PersistNew(context.Background(), posts(3), jane)
	assert.Equal(t, 3, res.SavedCount)
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}
