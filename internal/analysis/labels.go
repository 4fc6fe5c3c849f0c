package analysis

import (
	"strings"

	"github.com/azure/brand-mentions-bot/internal/models"
)

// NormalizeSentiment maps free model output onto the sentiment label set.
// Matching is by substring on the lower-cased text, positive first, then
// negative, then neutral. Anything else is Neutral.
func NormalizeSentiment(raw string) models.Sentiment {
	text := strings.ToLower(raw)

	switch {
	case strings.Contains(text, "positive"):
		return models.SentimentPositive
	case strings.Contains(text, "negative"):
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// NormalizeUrgency maps free model output onto High or Low
func NormalizeUrgency(raw string) models.Urgency {
	if strings.Contains(strings.ToLower(raw), "high") {
		return models.UrgencyHigh
	}
	return models.UrgencyLow
}

// NormalizeTopic cleans a free-text topic and substitutes fallback when nothing is left
func NormalizeTopic(raw, fallback string) string {
	topic := strings.TrimSpace(raw)
	if i := strings.IndexByte(topic, '\n'); i >= 0 {
		topic = strings.TrimSpace(topic[:i])
	}
	topic = strings.Trim(topic, "\"'`*")
	topic = strings.TrimSuffix(topic, ".")
	topic = strings.TrimSpace(topic)

	if topic == "" {
		return fallback
	}
	return topic
}
