package sources

import (
	"context"
	"time"
)

// Post is one search hit as returned by a content source, before normalization
type Post struct {
	Channel   string
	Title     string
	Body      string
	Permalink string    // path relative to the site root, empty if the source gave none
	URL       string    // canonical permalink URL, empty when Permalink is empty
	CreatedAt time.Time // zero when the source gave no creation time
}

// Searcher defines the contract for channel-scoped content search
type Searcher interface {
	GetName() string
	Search(ctx context.Context, channel, query string) ([]Post, error)
	IsEnabled() bool
}
