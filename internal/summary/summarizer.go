package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/azure/brand-mentions-bot/internal/llm"
	"github.com/azure/brand-mentions-bot/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	// MaxPromptChars bounds the feedback text embedded in a summary prompt
	MaxPromptChars = 4000

	separator = "\n---\n"
)

type modeSpec struct {
	sentiments []models.Sentiment
	noData     string
	label      string
	template   string
}

var modes = map[models.SummaryMode]modeSpec{
	models.SummaryPositive: {
		sentiments: []models.Sentiment{models.SentimentPositive},
		noData:     "No positive feedback found.",
		label:      "positive",
		template: `You are a business analyst.
Summarize the following POSITIVE customer feedback in 3 bullet points.
Focus on strengths, value, and what users appreciate most.

Feedback:
%s`,
	},
	models.SummaryNegative: {
		sentiments: []models.Sentiment{models.SentimentNegative},
		noData:     "No negative feedback found.",
		label:      "negative",
		template: `You are a business analyst.
Summarize the following NEGATIVE customer feedback in 3 bullet points.
Focus on complaints, pain points, and risks.

Feedback:
%s`,
	},
	models.SummarySuggestions: {
		sentiments: []models.Sentiment{models.SentimentNegative, models.SentimentNeutral},
		noData:     "No suggestions found.",
		label:      "suggestion",
		template: `You are a product strategist.
Based on the following user feedback, identify:
- Key suggestions
- Feature requests
- Improvement opportunities

Feedback:
%s`,
	},
}

// Summarizer turns a slice of analyzed mentions into a generated text summary
type Summarizer struct {
	model llm.ModelInterface
}

// NewSummarizer creates a summarizer on top of an explicit model client
func NewSummarizer(model llm.ModelInterface) *Summarizer {
	return &Summarizer{model: model}
}

// Summarize filters mentions by the mode's sentiments and asks the model for a
// summary. It always returns text: a fixed message when nothing matches the
// mode (no model call is made) and an error description when the call fails.
func (s *Summarizer) Summarize(ctx context.Context, mentions []models.Mention, mode models.SummaryMode) string {
	spec, ok := modes[mode]
	if !ok {
		return fmt.Sprintf("Unknown summary mode %q.", mode)
	}

	texts := filterTexts(mentions, spec.sentiments)
	if len(texts) == 0 {
		return spec.noData
	}

	feedback := truncate(strings.Join(texts, separator), MaxPromptChars)

	resp, err := s.model.Generate(ctx, fmt.Sprintf(spec.template, feedback))
	if err != nil {
		logrus.Errorf("Failed to generate %s summary: %v", spec.label, err)
		return fmt.Sprintf("Error generating %s summary: %v", spec.label, err)
	}

	return strings.TrimSpace(resp)
}

// SummarizeAll produces one summary per supported mode
func (s *Summarizer) SummarizeAll(ctx context.Context, mentions []models.Mention) map[models.SummaryMode]string {
	summaries := make(map[models.SummaryMode]string, len(models.SummaryModes))
	for _, mode := range models.SummaryModes {
		summaries[mode] = s.Summarize(ctx, mentions, mode)
	}
	return summaries
}

func filterTexts(mentions []models.Mention, sentiments []models.Sentiment) []string {
	var texts []string
	for _, m := range mentions {
		for _, sentiment := range sentiments {
			if m.Sentiment == sentiment {
				texts = append(texts, m.Text)
				break
			}
		}
	}
	return texts
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
