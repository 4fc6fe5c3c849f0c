package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/azure/brand-mentions-bot/internal/models"
	"github.com/azure/brand-mentions-bot/internal/storage"
	"github.com/sirupsen/logrus"
)

const (
	ModeBatch   = "batch"
	ModePerItem = "per-item"

	defaultBatchSize = 10
)

// ProgressFunc is called after each mention is written back
type ProgressFunc func(done, total int)

// AnalysisStats summarizes one pass over the pending mentions
type AnalysisStats struct {
	Pending            int                      `json:"pending"`
	Analyzed           int                      `json:"analyzed"`
	Missing            int                      `json:"missing"`
	SentimentBreakdown map[models.Sentiment]int `json:"sentiment_breakdown"`
	UrgencyBreakdown   map[models.Urgency]int   `json:"urgency_breakdown"`
	UrgentIDs          []int64                  `json:"urgent_ids,omitempty"`
	Urgent             []models.Mention         `json:"-"` // labeled High in this pass, labels applied
	Duration           string                   `json:"duration"`
}

// Analyzer drives classification of pending mentions and writes labels back to the store
type Analyzer struct {
	store      storage.MentionStore
	classifier *Classifier
	mode       string
	batchSize  int
}

// NewAnalyzer creates an analyzer. Unknown modes fall back to batch.
func NewAnalyzer(store storage.MentionStore, classifier *Classifier, mode string, batchSize int) *Analyzer {
	if mode != ModePerItem {
		mode = ModeBatch
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &Analyzer{
		store:      store,
		classifier: classifier,
		mode:       mode,
		batchSize:  batchSize,
	}
}

// AnalyzePending labels every pending mention of brand. Each row is updated
// on its own, so an interrupted pass leaves finished rows analyzed and the
// rest pending; calling it again picks up only what is still pending. On
// cancellation the partial stats are returned together with ctx.Err().
func (a *Analyzer) AnalyzePending(ctx context.Context, brand string, progress ProgressFunc) (*AnalysisStats, error) {
	start := time.Now()
	stats := &AnalysisStats{
		SentimentBreakdown: make(map[models.Sentiment]int),
		UrgencyBreakdown:   make(map[models.Urgency]int),
	}
	defer func() {
		stats.Duration = time.Since(start).String()
	}()

	pending, err := a.store.ListPending(ctx, brand)
	if err != nil {
		return stats, fmt.Errorf("failed to list pending mentions: %w", err)
	}

	stats.Pending = len(pending)
	if len(pending) == 0 {
		logrus.Infof("No pending mentions for %s", brand)
		return stats, nil
	}

	logrus.Infof("Analyzing %d pending mentions for %s (mode: %s)", len(pending), brand, a.mode)

	done := 0
	for chunkStart := 0; chunkStart < len(pending); chunkStart += a.chunkSize() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		chunkEnd := chunkStart + a.chunkSize()
		if chunkEnd > len(pending) {
			chunkEnd = len(pending)
		}
		chunk := pending[chunkStart:chunkEnd]

		results := a.classify(ctx, chunk)

		for i, mention := range chunk {
			if err := ctx.Err(); err != nil {
				logrus.Warnf("Analysis interrupted after %d of %d mentions", done, len(pending))
				return stats, err
			}

			if err := a.store.UpdateAnalysis(ctx, mention.ID, results[i]); err != nil {
				if errors.Is(err, storage.ErrMentionNotFound) {
					logrus.Warnf("Mention %d disappeared before analysis could be stored", mention.ID)
					stats.Missing++
					done++
					continue
				}
				return stats, fmt.Errorf("failed to store analysis for mention %d: %w", mention.ID, err)
			}

			stats.record(mention, results[i])
			done++
			if progress != nil {
				progress(done, len(pending))
			}
		}
	}

	logrus.Infof("Analyzed %d mentions for %s in %v", stats.Analyzed, brand, time.Since(start))
	return stats, nil
}

func (a *Analyzer) chunkSize() int {
	if a.mode == ModePerItem {
		return 1
	}
	return a.batchSize
}

func (a *Analyzer) classify(ctx context.Context, chunk []models.Mention) []models.Analysis {
	if a.mode == ModePerItem {
		results := make([]models.Analysis, len(chunk))
		for i, mention := range chunk {
			results[i] = a.classifier.Classify(ctx, mention.Text)
		}
		return results
	}

	texts := make([]string, len(chunk))
	for i, mention := range chunk {
		texts[i] = mention.Text
	}
	return a.classifier.ClassifyBatch(ctx, texts)
}

func (s *AnalysisStats) record(mention models.Mention, analysis models.Analysis) {
	s.Analyzed++
	s.SentimentBreakdown[analysis.Sentiment]++
	s.UrgencyBreakdown[analysis.Urgency]++
	if analysis.Urgency == models.UrgencyHigh {
		mention.Sentiment = analysis.Sentiment
		mention.Topic = analysis.Topic
		mention.Urgency = analysis.Urgency
		s.UrgentIDs = append(s.UrgentIDs, mention.ID)
		s.Urgent = append(s.Urgent, mention)
	}
}
