package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/azure/brand-mentions-bot/internal/llm"
	"github.com/azure/brand-mentions-bot/internal/models"
	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/sirupsen/logrus"
)

const (
	sentimentPrompt = `Analyze the sentiment of this text. Reply with EXACTLY one word: Positive, Negative, or Neutral.

Text: %s

Sentiment:`

	topicPrompt   = "Identify the main topic or category of this text in 1-3 words:\n%s"
	urgencyPrompt = "Rate the urgency level of this feedback. Reply with only 'High' or 'Low':\n%s"

	batchPrompt = `You are analyzing social media posts about a brand.
For each numbered post below return one result object, in the same order as the posts:
- sentiment: exactly one of Positive, Negative, Neutral
- topic: the main topic or category of the post in 1-3 words
- urgency: High if the post needs a prompt response from the brand, otherwise Low

Return exactly %d results.

Posts:
%s`
)

// batchOutput is the structured-output contract for ClassifyBatch
var batchOutput = llm.StructuredOutput{
	Name: "mention_analysis",
	Schema: &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"results": {
				Type: jsonschema.Array,
				Items: &jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"sentiment": {
							Type: jsonschema.String,
							Enum: []string{
								string(models.SentimentPositive),
								string(models.SentimentNegative),
								string(models.SentimentNeutral),
							},
						},
						"topic": {
							Type:        jsonschema.String,
							Description: "Main topic in 1-3 words",
						},
						"urgency": {
							Type: jsonschema.String,
							Enum: []string{string(models.UrgencyHigh), string(models.UrgencyLow)},
						},
					},
					Required:             []string{"sentiment", "topic", "urgency"},
					AdditionalProperties: false,
				},
			},
		},
		Required:             []string{"results"},
		AdditionalProperties: false,
	},
}

type batchResult struct {
	Sentiment string `json:"sentiment"`
	Topic     string `json:"topic"`
	Urgency   string `json:"urgency"`
}

// Classifier derives sentiment, topic and urgency labels through the model service
type Classifier struct {
	model llm.ModelInterface
}

// NewClassifier creates a classifier on top of an explicit model client
func NewClassifier(model llm.ModelInterface) *Classifier {
	return &Classifier{model: model}
}

// Classify labels one text with three separate model calls. It never fails:
// each call that errors falls back to Neutral, General or Low respectively.
func (c *Classifier) Classify(ctx context.Context, text string) models.Analysis {
	content := plainText(text)

	return models.Analysis{
		Sentiment: c.sentiment(ctx, content),
		Topic:     c.topic(ctx, content),
		Urgency:   c.urgency(ctx, content),
	}
}

func (c *Classifier) sentiment(ctx context.Context, text string) models.Sentiment {
	resp, err := c.model.Generate(ctx, fmt.Sprintf(sentimentPrompt, text))
	if err != nil {
		logrus.Warnf("Sentiment analysis error: %v", err)
		return models.SentimentNeutral
	}
	return NormalizeSentiment(resp)
}

func (c *Classifier) topic(ctx context.Context, text string) string {
	resp, err := c.model.Generate(ctx, fmt.Sprintf(topicPrompt, text))
	if err != nil {
		logrus.Warnf("Topic analysis error: %v", err)
		return models.TopicGeneral
	}
	return NormalizeTopic(resp, models.TopicGeneral)
}

func (c *Classifier) urgency(ctx context.Context, text string) models.Urgency {
	resp, err := c.model.Generate(ctx, fmt.Sprintf(urgencyPrompt, text))
	if err != nil {
		logrus.Warnf("Urgency analysis error: %v", err)
		return models.UrgencyLow
	}
	return NormalizeUrgency(resp)
}

// ClassifyBatch labels texts with a single structured-output call. The result
// always has one entry per input in input order. Any failure gives every
// entry DefaultAnalysis; there is no partial recovery.
func (c *Classifier) ClassifyBatch(ctx context.Context, texts []string) []models.Analysis {
	results := make([]models.Analysis, len(texts))
	if len(texts) == 0 {
		return results
	}

	parsed, err := c.classifyBatch(ctx, texts)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"batch_size": len(texts),
		}).Warnf("Batch classification failed, using defaults: %v", err)

		for i := range results {
			results[i] = models.DefaultAnalysis
		}
		return results
	}

	for i, r := range parsed {
		results[i] = models.Analysis{
			Sentiment: NormalizeSentiment(r.Sentiment),
			Topic:     NormalizeTopic(r.Topic, models.TopicUnknown),
			Urgency:   NormalizeUrgency(r.Urgency),
		}
	}
	return results
}

func (c *Classifier) classifyBatch(ctx context.Context, texts []string) ([]batchResult, error) {
	var posts strings.Builder
	for i, text := range texts {
		fmt.Fprintf(&posts, "%d. %s\n", i+1, plainText(text))
	}

	resp, err := c.model.GenerateStructured(ctx, fmt.Sprintf(batchPrompt, len(texts), posts.String()), batchOutput)
	if err != nil {
		return nil, err
	}

	parsed, err := parseBatchResponse(resp)
	if err != nil {
		return nil, err
	}

	if len(parsed) != len(texts) {
		return nil, fmt.Errorf("model returned %d results for %d texts", len(parsed), len(texts))
	}
	return parsed, nil
}

// parseBatchResponse accepts the wrapped {"results": [...]} shape or a bare array
func parseBatchResponse(resp string) ([]batchResult, error) {
	cleaned := llm.CleanJSON(resp)

	if strings.HasPrefix(cleaned, "[") {
		var list []batchResult
		if err := json.Unmarshal([]byte(cleaned), &list); err != nil {
			return nil, fmt.Errorf("decode batch results: %w", err)
		}
		return list, nil
	}

	var wrapped struct {
		Results []batchResult `json:"results"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapped); err != nil {
		return nil, fmt.Errorf("decode batch results: %w", err)
	}
	if wrapped.Results == nil {
		return nil, fmt.Errorf("batch response has no results field")
	}
	return wrapped.Results, nil
}
