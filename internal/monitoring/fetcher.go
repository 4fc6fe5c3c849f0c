package monitoring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/azure/brand-mentions-bot/internal/models"
	"github.com/azure/brand-mentions-bot/internal/sources"
	"github.com/azure/brand-mentions-bot/internal/storage"
	"github.com/sirupsen/logrus"
)

// ChannelFailure records a channel whose search request failed
type ChannelFailure struct {
	Channel string `json:"channel"`
	Err     string `json:"error"`
}

// FetchStats summarizes one fetch call. Failures lists channels whose search
// failed; InsertErrors counts posts that were found but could not be stored.
type FetchStats struct {
	Added        int              `json:"added"`
	Found        int              `json:"found"`
	Duplicates   int              `json:"duplicates"`
	Skipped      int              `json:"skipped"`
	InsertErrors int              `json:"insert_errors"`
	Failures     []ChannelFailure `json:"failures,omitempty"`
	Duration     string           `json:"duration"`
}

// Fetcher pulls brand mentions from a content source into the store
type Fetcher struct {
	store    storage.MentionStore
	searcher sources.Searcher
	delay    time.Duration
	now      func() time.Time
}

// NewFetcher creates a fetcher that waits delay between channel requests
func NewFetcher(store storage.MentionStore, searcher sources.Searcher, delay time.Duration) *Fetcher {
	return &Fetcher{
		store:    store,
		searcher: searcher,
		delay:    delay,
		now:      time.Now,
	}
}

// Fetch searches each channel in order for brand and inserts the new mentions.
// A failing channel is recorded and skipped; only a failure to read the
// store's existing URLs or a cancelled ctx ends the call early.
func (f *Fetcher) Fetch(ctx context.Context, brand string, channels []string) (*FetchStats, error) {
	start := f.now()
	stats := &FetchStats{}
	defer func() {
		stats.Duration = time.Since(start).String()
	}()

	existing, err := f.store.ListByBrand(ctx, brand)
	if err != nil {
		return stats, fmt.Errorf("failed to load existing mentions: %w", err)
	}

	known := make(map[string]struct{}, len(existing))
	for _, m := range existing {
		known[m.URL] = struct{}{}
	}
	inserted := make(map[string]struct{})

	requested := 0
	for _, channel := range channels {
		channel = strings.TrimSpace(channel)
		if channel == "" {
			continue
		}

		if requested > 0 && f.delay > 0 {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-time.After(f.delay):
			}
		}
		requested++

		posts, err := f.searcher.Search(ctx, channel, brand)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			logrus.WithFields(logrus.Fields{
				"channel": channel,
				"source":  f.searcher.GetName(),
			}).Errorf("Could not fetch from r/%s: %v", channel, err)
			stats.Failures = append(stats.Failures, ChannelFailure{Channel: channel, Err: err.Error()})
			continue
		}

		logrus.Infof("Found %d posts in r/%s", len(posts), channel)
		stats.Found += len(posts)

		for _, post := range posts {
			if post.URL == "" {
				stats.Skipped++
				continue
			}

			_, seen := known[post.URL]
			_, seenNow := inserted[post.URL]
			if seen || seenNow {
				stats.Duplicates++
				continue
			}

			mention := f.toMention(brand, post)
			result, err := f.store.InsertIfAbsent(ctx, mention)
			if err != nil {
				if ctx.Err() != nil {
					return stats, ctx.Err()
				}
				logrus.Errorf("Failed to store mention %s: %v", post.URL, err)
				stats.InsertErrors++
				continue
			}

			if result == models.Duplicate {
				stats.Duplicates++
				continue
			}

			inserted[post.URL] = struct{}{}
			stats.Added++
		}
	}

	logrus.Infof("Added %d new mentions for %s (%d duplicates, %d failed channels, %d insert errors)",
		stats.Added, brand, stats.Duplicates, len(stats.Failures), stats.InsertErrors)

	return stats, nil
}

func (f *Fetcher) toMention(brand string, post sources.Post) *models.Mention {
	timestamp := post.CreatedAt
	if timestamp.IsZero() {
		timestamp = f.now()
	}

	return &models.Mention{
		Brand:     brand,
		Source:    "r/" + post.Channel,
		Text:      post.Title + " " + post.Body,
		URL:       post.URL,
		Timestamp: timestamp.UTC(),
	}
}
