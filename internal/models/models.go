package models

import (
	"strings"
	"time"
)

// Sentiment is the closed set of sentiment labels a mention can carry
type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNegative Sentiment = "Negative"
	SentimentNeutral  Sentiment = "Neutral"
)

// Urgency is the closed set of urgency labels a mention can carry
type Urgency string

const (
	UrgencyHigh Urgency = "High"
	UrgencyLow  Urgency = "Low"
)

// Topic fallbacks used when the model gives nothing usable
const (
	TopicUnknown = "Unknown"
	TopicGeneral = "General"
)

// Analysis holds the three labels the analyzer assigns to a mention
type Analysis struct {
	Sentiment Sentiment `json:"sentiment"`
	Topic     string    `json:"topic"`
	Urgency   Urgency   `json:"urgency"`
}

// DefaultAnalysis is applied when classification fails as a whole
var DefaultAnalysis = Analysis{
	Sentiment: SentimentNeutral,
	Topic:     TopicUnknown,
	Urgency:   UrgencyLow,
}

// Mention represents one observed occurrence of a tracked brand
type Mention struct {
	ID        int64     `json:"id"`
	Brand     string    `json:"brand"`
	Source    string    `json:"source"` // "r/<channel>"
	Text      string    `json:"text"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"` // creation time of the post, not ingestion time

	// Empty until analyzed; stored as NULL
	Sentiment Sentiment `json:"sentiment,omitempty"`
	Topic     string    `json:"topic,omitempty"`
	Urgency   Urgency   `json:"urgency,omitempty"`
}

// Analyzed reports whether the mention has left the pending state
func (m Mention) Analyzed() bool {
	return m.Sentiment != ""
}

// Analysis returns the labels of an analyzed mention
func (m Mention) Analysis() Analysis {
	return Analysis{Sentiment: m.Sentiment, Topic: m.Topic, Urgency: m.Urgency}
}

// InsertResult tells callers whether a dedup-checked insert stored a new row
type InsertResult int

const (
	Duplicate InsertResult = iota
	Inserted
)

func (r InsertResult) String() string {
	if r == Inserted {
		return "inserted"
	}
	return "duplicate"
}

// SummaryMode selects which slice of analyzed mentions a summary covers
type SummaryMode string

const (
	SummaryPositive    SummaryMode = "positive"
	SummaryNegative    SummaryMode = "negative"
	SummarySuggestions SummaryMode = "suggestions"
)

// SummaryModes lists every supported mode in report order
var SummaryModes = []SummaryMode{SummaryPositive, SummaryNegative, SummarySuggestions}

// ParseSummaryMode accepts a mode name in any case
func ParseSummaryMode(s string) (SummaryMode, bool) {
	mode := SummaryMode(strings.ToLower(strings.TrimSpace(s)))
	for _, m := range SummaryModes {
		if m == mode {
			return mode, true
		}
	}
	return "", false
}

// TopicCount is one bar of the top-topics chart
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// Dashboard aggregates a brand's mentions the way the dashboard shows them
type Dashboard struct {
	Brand              string            `json:"brand"`
	GeneratedAt        time.Time         `json:"generated_at"`
	TotalMentions      int               `json:"total_mentions"`
	PendingMentions    int               `json:"pending_mentions"`
	AnalyzedMentions   int               `json:"analyzed_mentions"`
	SentimentBreakdown map[Sentiment]int `json:"sentiment_breakdown"`
	UrgencyBreakdown   map[Urgency]int   `json:"urgency_breakdown"`
	TopTopics          []TopicCount      `json:"top_topics"`
	UrgentMentions     []Mention         `json:"urgent_mentions"`
}

// Report represents a periodic report for one brand
type Report struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Period      string                 `json:"period"` // "daily" or "weekly"
	Brand       string                 `json:"brand"`
	Dashboard   Dashboard              `json:"dashboard"`
	Summaries   map[SummaryMode]string `json:"summaries"`
	Mentions    []Mention              `json:"mentions"` // most recent first
}

// Alert represents an urgent notification
type Alert struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // "urgent", "info"
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Mention   *Mention  `json:"mention,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
