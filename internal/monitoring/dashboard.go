package monitoring

import (
	"sort"
	"strings"
	"time"

	"github.com/azure/brand-mentions-bot/internal/models"
)

const maxTopTopics = 10

// BuildDashboard aggregates a brand snapshot. Topics holding several
// comma-separated categories count once for each of them.
func BuildDashboard(brand string, mentions []models.Mention, now time.Time) models.Dashboard {
	dashboard := models.Dashboard{
		Brand:              brand,
		GeneratedAt:        now,
		TotalMentions:      len(mentions),
		SentimentBreakdown: make(map[models.Sentiment]int),
		UrgencyBreakdown:   make(map[models.Urgency]int),
		TopTopics:          []models.TopicCount{},
		UrgentMentions:     []models.Mention{},
	}

	topics := make(map[string]int)
	for _, m := range mentions {
		if !m.Analyzed() {
			dashboard.PendingMentions++
			continue
		}

		dashboard.AnalyzedMentions++
		dashboard.SentimentBreakdown[m.Sentiment]++
		dashboard.UrgencyBreakdown[m.Urgency]++

		for _, topic := range strings.Split(m.Topic, ",") {
			topic = strings.TrimSpace(topic)
			if topic != "" {
				topics[topic]++
			}
		}

		if m.Urgency == models.UrgencyHigh {
			dashboard.UrgentMentions = append(dashboard.UrgentMentions, m)
		}
	}

	dashboard.TopTopics = topTopics(topics, maxTopTopics)
	return dashboard
}

func topTopics(counts map[string]int, limit int) []models.TopicCount {
	result := make([]models.TopicCount, 0, len(counts))
	for topic, count := range counts {
		result = append(result, models.TopicCount{Topic: topic, Count: count})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Topic < result[j].Topic
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result
}
