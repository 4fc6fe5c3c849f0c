package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/azure/brand-mentions-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "mentions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newMention(brand, url string, ts time.Time) *models.Mention {
	return &models.Mention{
		Brand:     brand,
		Source:    "r/OpenAI",
		Text:      "title body",
		URL:       url,
		Timestamp: ts,
	}
}

func TestSQLiteStore_InitializeIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Initialize(ctx))
	require.NoError(t, store.Initialize(ctx))
}

func TestSQLiteStore_InsertIfAbsent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	first := newMention("OpenAI", "https://www.reddit.com/r/OpenAI/comments/1/a/", now)
	result, err := store.InsertIfAbsent(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, models.Inserted, result)
	assert.NotZero(t, first.ID)

	// Same URL again, even with different payload or brand, is a silent no-op
	again := newMention("Other", first.URL, now.Add(time.Hour))
	again.Text = "changed"
	result, err = store.InsertIfAbsent(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, models.Duplicate, result)
	assert.Zero(t, again.ID)

	mentions, err := store.ListByBrand(ctx, "OpenAI")
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	assert.Equal(t, "title body", mentions[0].Text)

	other, err := store.ListByBrand(ctx, "Other")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSQLiteStore_URLUniqueness(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	urls := []string{"https://a", "https://b", "https://a", "https://c", "https://b"}
	inserted := 0
	for i, url := range urls {
		result, err := store.InsertIfAbsent(ctx, newMention("OpenAI", url, time.Unix(int64(1700000000+i), 0)))
		require.NoError(t, err)
		if result == models.Inserted {
			inserted++
		}
	}
	assert.Equal(t, 3, inserted)

	mentions, err := store.ListByBrand(ctx, "OpenAI")
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, m := range mentions {
		assert.False(t, seen[m.URL], "duplicate url %s", m.URL)
		seen[m.URL] = true
	}
	assert.Len(t, seen, 3)
}

func TestSQLiteStore_ListByBrandOrdering(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.InsertIfAbsent(ctx, newMention("OpenAI", "https://old", base.Add(-48*time.Hour)))
	require.NoError(t, err)
	_, err = store.InsertIfAbsent(ctx, newMention("OpenAI", "https://new", base))
	require.NoError(t, err)
	_, err = store.InsertIfAbsent(ctx, newMention("OpenAI", "https://mid", base.Add(-time.Hour)))
	require.NoError(t, err)

	mentions, err := store.ListByBrand(ctx, "OpenAI")
	require.NoError(t, err)
	require.Len(t, mentions, 3)

	assert.Equal(t, "https://new", mentions[0].URL)
	assert.Equal(t, "https://mid", mentions[1].URL)
	assert.Equal(t, "https://old", mentions[2].URL)
	assert.True(t, mentions[0].Timestamp.Equal(base))
	assert.False(t, mentions[0].Analyzed())
}

func TestSQLiteStore_UpdateAnalysis(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	m := newMention("OpenAI", "https://a", time.Now())
	_, err := store.InsertIfAbsent(ctx, m)
	require.NoError(t, err)

	pending, err := store.ListPending(ctx, "OpenAI")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	analysis := models.Analysis{Sentiment: models.SentimentNegative, Topic: "Pricing", Urgency: models.UrgencyHigh}
	require.NoError(t, store.UpdateAnalysis(ctx, m.ID, analysis))

	pending, err = store.ListPending(ctx, "OpenAI")
	require.NoError(t, err)
	assert.Empty(t, pending)

	mentions, err := store.ListByBrand(ctx, "OpenAI")
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	assert.True(t, mentions[0].Analyzed())
	assert.Equal(t, analysis, mentions[0].Analysis())

	total, pendingCount, err := store.Count(ctx, "OpenAI")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 0, pendingCount)
}

func TestSQLiteStore_UpdateAnalysisUnknownID(t *testing.T) {
	store := openTestStore(t)

	err := store.UpdateAnalysis(context.Background(), 4242, models.DefaultAnalysis)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMentionNotFound))
}

func TestSQLiteStore_ConcurrentInsertSameURL(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	url := "https://www.reddit.com/r/OpenAI/comments/race/a/"

	const writers = 20
	results := make([]models.InsertResult, writers)
	errs := make([]error, writers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = store.InsertIfAbsent(ctx, newMention("OpenAI", url, time.Now()))
		}(i)
	}
	close(start)
	wg.Wait()

	inserted := 0
	for i := range results {
		require.NoError(t, errs[i])
		if results[i] == models.Inserted {
			inserted++
		}
	}
	assert.Equal(t, 1, inserted)

	total, _, err := store.Count(ctx, "OpenAI")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestSnapshotName(t *testing.T) {
	assert.Equal(t, "mentions/open-ai/", SnapshotPrefix("Open  AI"))
	assert.Equal(t, "mentions/open-ai/2024-05-01-12-00-00.json", SnapshotName("Open  AI", "2024-05-01-12-00-00"))
}
