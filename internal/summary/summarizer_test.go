package summary

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/azure/brand-mentions-bot/internal/llm"
	"github.com/azure/brand-mentions-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockModel is a mock implementation of the model service
type MockModel struct {
	mock.Mock
}

func (m *MockModel) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockModel) GenerateStructured(ctx context.Context, prompt string, output llm.StructuredOutput) (string, error) {
	args := m.Called(ctx, prompt, output)
	return args.String(0), args.Error(1)
}

func sampleMentions() []models.Mention {
	return []models.Mention{
		{Text: "Love the new voice mode", Sentiment: models.SentimentPositive},
		{Text: "App keeps crashing", Sentiment: models.SentimentNegative},
		{Text: "Would be nice to export chats", Sentiment: models.SentimentNeutral},
		{Text: "Not analyzed yet"},
	}
}

func TestSummarizer_EmptyInputMakesNoCall(t *testing.T) {
	tests := []struct {
		mode     models.SummaryMode
		expected string
	}{
		{mode: models.SummaryPositive, expected: "No positive feedback found."},
		{mode: models.SummaryNegative, expected: "No negative feedback found."},
		{mode: models.SummarySuggestions, expected: "No suggestions found."},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			model := &MockModel{}
			summarizer := NewSummarizer(model)

			assert.Equal(t, tt.expected, summarizer.Summarize(context.Background(), nil, tt.mode))
			assert.Equal(t, tt.expected, summarizer.Summarize(context.Background(), []models.Mention{{Text: "pending"}}, tt.mode))
			model.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
		})
	}
}

func TestSummarizer_FiltersByMode(t *testing.T) {
	tests := []struct {
		mode     models.SummaryMode
		included []string
		excluded []string
		preamble string
	}{
		{
			mode:     models.SummaryPositive,
			included: []string{"Love the new voice mode"},
			excluded: []string{"App keeps crashing", "export chats", "Not analyzed"},
			preamble: "POSITIVE customer feedback",
		},
		{
			mode:     models.SummaryNegative,
			included: []string{"App keeps crashing"},
			excluded: []string{"voice mode", "export chats", "Not analyzed"},
			preamble: "NEGATIVE customer feedback",
		},
		{
			mode:     models.SummarySuggestions,
			included: []string{"App keeps crashing\n---\nWould be nice to export chats"},
			excluded: []string{"voice mode", "Not analyzed"},
			preamble: "Feature requests",
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			model := &MockModel{}
			var prompt string
			model.On("Generate", mock.Anything, mock.Anything).
				Run(func(args mock.Arguments) { prompt = args.String(1) }).
				Return("  - point one\n", nil)

			out := NewSummarizer(model).Summarize(context.Background(), sampleMentions(), tt.mode)

			assert.Equal(t, "- point one", out)
			assert.Contains(t, prompt, tt.preamble)
			for _, s := range tt.included {
				assert.Contains(t, prompt, s)
			}
			for _, s := range tt.excluded {
				assert.NotContains(t, prompt, s)
			}
		})
	}
}

func TestSummarizer_TruncatesFeedback(t *testing.T) {
	long := strings.Repeat("é", MaxPromptChars+500)

	model := &MockModel{}
	var prompt string
	model.On("Generate", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { prompt = args.String(1) }).
		Return("summary", nil)

	NewSummarizer(model).Summarize(context.Background(), []models.Mention{{Text: long, Sentiment: models.SentimentPositive}}, models.SummaryPositive)

	assert.Equal(t, MaxPromptChars, strings.Count(prompt, "é"))
}

func TestSummarizer_SoftFailure(t *testing.T) {
	model := &MockModel{}
	model.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("quota exceeded"))

	out := NewSummarizer(model).Summarize(context.Background(), sampleMentions(), models.SummaryNegative)

	assert.Equal(t, "Error generating negative summary: quota exceeded", out)
}

func TestSummarizer_UnknownMode(t *testing.T) {
	model := &MockModel{}

	out := NewSummarizer(model).Summarize(context.Background(), sampleMentions(), models.SummaryMode("weekly"))

	assert.Contains(t, out, "Unknown summary mode")
	model.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestSummarizer_SummarizeAll(t *testing.T) {
	model := &MockModel{}
	model.On("Generate", mock.Anything, mock.Anything).Return("generated", nil)

	summaries := NewSummarizer(model).SummarizeAll(context.Background(), sampleMentions())

	assert.Len(t, summaries, 3)
	for _, mode := range models.SummaryModes {
		assert.Equal(t, "generated", summaries[mode])
	}
	model.AssertNumberOfCalls(t, "Generate", 3)
}
