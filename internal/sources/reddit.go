package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// RedditPublicURL serves the unauthenticated JSON endpoints
	RedditPublicURL = "https://www.reddit.com"
	// RedditOAuthURL serves the same endpoints for app-only tokens
	RedditOAuthURL = "https://oauth.reddit.com"
	// PermalinkBase prefixes relative permalinks to form canonical URLs
	PermalinkBase = "https://www.reddit.com"

	redditTokenURL = "https://www.reddit.com/api/v1/access_token"
)

// RedditOptions configures a RedditSource
type RedditOptions struct {
	BaseURL      string
	UserAgent    string
	ClientID     string
	ClientSecret string
	Limit        int
	Timeout      time.Duration
}

// RedditSource searches individual subreddits for a keyword
type RedditSource struct {
	client *resty.Client
	tokens oauth2.TokenSource // nil when using the public endpoints
	limit  int
}

// Ensure RedditSource implements Searcher
var _ Searcher = (*RedditSource)(nil)

type redditSearchResponse struct {
	Data struct {
		Children []struct {
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Selftext  string   `json:"selftext"`
	Subreddit string   `json:"subreddit"`
	Permalink string   `json:"permalink"`
	Created   *float64 `json:"created_utc"`
}

// NewRedditSource creates a new Reddit source. Credentials are optional: without
// them the public JSON endpoints are used.
func NewRedditSource(opts RedditOptions) *RedditSource {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = RedditPublicURL
	}

	source := &RedditSource{limit: opts.Limit}

	if opts.ClientID != "" && opts.ClientSecret != "" {
		conf := &clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     redditTokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		// Reddit rejects token requests without a descriptive User-Agent
		httpClient := &http.Client{
			Timeout:   opts.Timeout,
			Transport: &userAgentTransport{agent: opts.UserAgent, base: http.DefaultTransport},
		}
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		source.tokens = oauth2.ReuseTokenSource(nil, conf.TokenSource(tokenCtx))

		if baseURL == RedditPublicURL {
			baseURL = RedditOAuthURL
		}
	}

	source.client = resty.New().
		SetBaseURL(baseURL).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent)

	return source
}

func (r *RedditSource) GetName() string {
	return "reddit"
}

// IsEnabled is always true; the public search endpoint needs no credentials
func (r *RedditSource) IsEnabled() bool {
	return true
}

// Search returns the newest posts in channel matching query, bounded by the page size
func (r *RedditSource) Search(ctx context.Context, channel, query string) ([]Post, error) {
	req := r.client.R().
		SetContext(ctx).
		SetPathParam("channel", channel).
		SetQueryParams(map[string]string{
			"q":           query,
			"restrict_sr": "1",
			"sort":        "new",
			"limit":       strconv.Itoa(r.limit),
		})

	if r.tokens != nil {
		token, err := r.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("reddit authentication failed: %w", err)
		}
		req.SetAuthToken(token.AccessToken)
	}

	resp, err := req.Get("/r/{channel}/search.json")
	if err != nil {
		return nil, fmt.Errorf("reddit search r/%s: %w", channel, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("reddit API returned status %d for r/%s", resp.StatusCode(), channel)
	}

	var searchResp redditSearchResponse
	if err := json.Unmarshal(resp.Body(), &searchResp); err != nil {
		return nil, fmt.Errorf("decode reddit response for r/%s: %w", channel, err)
	}

	logrus.Debugf("Found %d posts in r/%s", len(searchResp.Data.Children), channel)

	var posts []Post
	for _, child := range searchResp.Data.Children {
		var post redditPost
		if err := json.Unmarshal(child.Data, &post); err != nil {
			logrus.Debugf("Skipping malformed post in r/%s: %v", channel, err)
			continue
		}
		posts = append(posts, r.toPost(channel, post))
	}

	return posts, nil
}

func (r *RedditSource) toPost(channel string, post redditPost) Post {
	p := Post{
		Channel:   channel,
		Title:     post.Title,
		Body:      post.Selftext,
		Permalink: post.Permalink,
	}
	if post.Permalink != "" {
		p.URL = PermalinkBase + post.Permalink
	}
	if post.Created != nil {
		sec := int64(*post.Created)
		p.CreatedAt = time.Unix(sec, 0).UTC()
	}
	return p
}

type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(clone)
}
