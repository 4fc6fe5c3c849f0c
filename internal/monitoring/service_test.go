package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/azure/brand-mentions-bot/internal/config"
	"github.com/azure/brand-mentions-bot/internal/llm"
	"github.com/azure/brand-mentions-bot/internal/models"
	"github.com/azure/brand-mentions-bot/internal/sources"
	"github.com/azure/brand-mentions-bot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockArchive is a mock implementation of the snapshot store
type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Store(ctx context.Context, name string, data []byte) error {
	args := m.Called(ctx, name, data)
	return args.Error(0)
}

func (m *MockArchive) Retrieve(ctx context.Context, name string) ([]byte, error) {
	args := m.Called(ctx, name)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockArchive) List(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockArchive) Delete(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

// MockNotificationService is a mock implementation of the notification service
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) SendReport(report *models.Report) error {
	args := m.Called(report)
	return args.Error(0)
}

func (m *MockNotificationService) SendAlert(alert *models.Alert) error {
	args := m.Called(alert)
	return args.Error(0)
}

// MockSearcher is a mock implementation of a content source
type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) GetName() string {
	return "mock"
}

func (m *MockSearcher) IsEnabled() bool {
	return true
}

func (m *MockSearcher) Search(ctx context.Context, channel, query string) ([]sources.Post, error) {
	args := m.Called(ctx, channel, query)
	posts, _ := args.Get(0).([]sources.Post)
	return posts, args.Error(1)
}

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

func openTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "mentions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func post(channel, id, title string) sources.Post {
	permalink := "/r/" + channel + "/comments/" + id + "/" + strings.ToLower(strings.ReplaceAll(title, " ", "_")) + "/"
	return sources.Post{
		Channel:   channel,
		Title:     title,
		Body:      "body of " + id,
		Permalink: permalink,
		URL:       sources.PermalinkBase + permalink,
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Brand:             "OpenAI",
		Channels:          []string{"OpenAI", "ChatGPT"},
		ReportSchedule:    "weekly",
		AnalysisMode:      config.AnalysisModeBatch,
		AnalysisBatchSize: 10,
	}
}

func TestService_RunOnce(t *testing.T) {
	store := openTestStore(t)
	searcher := &MockSearcher{}
	searcher.On("Search", mock.Anything, "OpenAI", "OpenAI").Return([]sources.Post{post("OpenAI", "a1", "Great release")}, nil)
	searcher.On("Search", mock.Anything, "ChatGPT", "OpenAI").Return([]sources.Post{post("ChatGPT", "b1", "Login broken")}, nil)

	model := &MockModel{}
	model.On("GenerateStructured", mock.Anything, mock.Anything, mock.Anything).
		Return(`{"results": [{"sentiment": "Positive", "topic": "Release", "urgency": "Low"}, {"sentiment": "Negative", "topic": "Login", "urgency": "High"}]}`, nil)

	archive := &MockArchive{}
	archive.On("Store", mock.Anything, mock.MatchedBy(func(name string) bool {
		return strings.HasPrefix(name, "mentions/openai/") && strings.HasSuffix(name, ".json")
	}), mock.Anything).Return(nil)

	notifier := &MockNotificationService{}
	notifier.On("SendAlert", mock.MatchedBy(func(alert *models.Alert) bool {
		return alert.Type == "urgent" && alert.Mention != nil && alert.Mention.Topic == "Login"
	})).Return(nil).Once()

	service := NewService(testConfig(), store, archive, notifier, searcher, model)

	result, err := service.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Fetch.Added)
	assert.Equal(t, 2, result.Analysis.Analyzed)
	assert.Equal(t, 1, result.Alerts)
	assert.NotEmpty(t, result.Snapshot)

	archive.AssertExpectations(t)
	notifier.AssertExpectations(t)

	var metrics Metrics
	require.NoError(t, json.Unmarshal([]byte(service.GetMetrics()), &metrics))
	assert.Equal(t, 2, metrics.TotalMentions)
	assert.Equal(t, 0, metrics.PendingMentions)
	assert.Equal(t, 2, metrics.LastAdded)
	assert.Equal(t, 1, metrics.AlertsSent)
	assert.Equal(t, 1, metrics.SentimentBreakdown[models.SentimentNegative])

	// Nothing new the second time: no new alerts or analysis
	result, err = service.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Fetch.Added)
	assert.Zero(t, result.Analysis.Analyzed)
	assert.Zero(t, result.Alerts)
	model.AssertNumberOfCalls(t, "GenerateStructured", 1)
}

func TestService_RunMonitoringSkipsOverlappingRun(t *testing.T) {
	searcher := &MockSearcher{}
	service := NewService(testConfig(), openTestStore(t), nil, nil, searcher, &MockModel{})

	service.runMu.Lock()
	err := service.RunMonitoring()
	service.runMu.Unlock()

	assert.NoError(t, err)
	searcher.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_RunOnceStoreFailure(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Close())

	service := NewService(testConfig(), store, nil, nil, &MockSearcher{}, &MockModel{})

	_, err := service.RunOnce(context.Background())
	assert.Error(t, err)

	var metrics Metrics
	require.NoError(t, json.Unmarshal([]byte(service.GetMetrics()), &metrics))
	assert.Equal(t, 1, metrics.ErrorCount)
}

func seed(t *testing.T, store storage.MentionStore, mentions ...models.Mention) {
	t.Helper()
	ctx := context.Background()
	for i := range mentions {
		m := mentions[i]
		_, err := store.InsertIfAbsent(ctx, &m)
		require.NoError(t, err)
		if m.Analyzed() {
			require.NoError(t, store.UpdateAnalysis(ctx, m.ID, m.Analysis()))
		}
	}
}

func TestService_MentionsByStatus(t *testing.T) {
	store := openTestStore(t)
	now := time.Now().UTC()
	seed(t, store,
		models.Mention{Brand: "OpenAI", Source: "r/OpenAI", Text: "a", URL: "https://www.reddit.com/a", Timestamp: now, Sentiment: models.SentimentPositive, Topic: "Speed", Urgency: models.UrgencyLow},
		models.Mention{Brand: "OpenAI", Source: "r/OpenAI", Text: "b", URL: "https://www.reddit.com/b", Timestamp: now.Add(-time.Hour)},
		models.Mention{Brand: "Other", Source: "r/Other", Text: "c", URL: "https://www.reddit.com/c", Timestamp: now},
	)

	service := NewService(testConfig(), store, nil, nil, &MockSearcher{}, &MockModel{})
	ctx := context.Background()

	all, err := service.Mentions(ctx, "", StatusAll)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := service.Mentions(ctx, "OpenAI", StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "https://www.reddit.com/b", pending[0].URL)

	analyzed, err := service.Mentions(ctx, "OpenAI", StatusAnalyzed)
	require.NoError(t, err)
	require.Len(t, analyzed, 1)
	assert.Equal(t, "https://www.reddit.com/a", analyzed[0].URL)

	_, err = service.Mentions(ctx, "OpenAI", "archived")
	assert.Error(t, err)
}

func TestService_SummarizeUsesAnalyzedMentions(t *testing.T) {
	store := openTestStore(t)
	now := time.Now().UTC()
	seed(t, store,
		models.Mention{Brand: "OpenAI", Source: "r/OpenAI", Text: "pending text", URL: "https://www.reddit.com/p", Timestamp: now},
	)

	model := &MockModel{}
	service := NewService(testConfig(), store, nil, nil, &MockSearcher{}, model)

	out, err := service.Summarize(context.Background(), "OpenAI", models.SummaryNegative)
	require.NoError(t, err)
	assert.Equal(t, "No negative feedback found.", out)
	model.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestService_SendReport(t *testing.T) {
	store := openTestStore(t)
	now := time.Now().UTC()
	seed(t, store,
		models.Mention{Brand: "OpenAI", Source: "r/OpenAI", Text: "love it", URL: "https://www.reddit.com/1", Timestamp: now, Sentiment: models.SentimentPositive, Topic: "Voice", Urgency: models.UrgencyLow},
		models.Mention{Brand: "OpenAI", Source: "r/ChatGPT", Text: "down again", URL: "https://www.reddit.com/2", Timestamp: now.Add(-time.Minute), Sentiment: models.SentimentNegative, Topic: "Outage, API", Urgency: models.UrgencyHigh},
	)

	model := &MockModel{}
	model.On("Generate", mock.Anything, mock.Anything).Return("summary text", nil)

	notifier := &MockNotificationService{}
	var sent *models.Report
	notifier.On("SendReport", mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(0).(*models.Report)
	}).Return(nil)

	service := NewService(testConfig(), store, nil, notifier, &MockSearcher{}, model)

	require.NoError(t, service.SendReport())
	require.NotNil(t, sent)

	assert.Equal(t, "weekly", sent.Period)
	assert.Equal(t, "OpenAI", sent.Brand)
	assert.Len(t, sent.Mentions, 2)
	assert.Equal(t, 2, sent.Dashboard.AnalyzedMentions)
	assert.Len(t, sent.Dashboard.UrgentMentions, 1)
	for _, mode := range models.SummaryModes {
		assert.Equal(t, "summary text", sent.Summaries[mode])
	}
	model.AssertNumberOfCalls(t, "Generate", 3)
}

func TestService_SendReportNotificationError(t *testing.T) {
	notifier := &MockNotificationService{}
	notifier.On("SendReport", mock.Anything).Return(errors.New("webhook down"))

	service := NewService(testConfig(), openTestStore(t), nil, notifier, &MockSearcher{}, &MockModel{})

	err := service.SendReport()
	assert.ErrorContains(t, err, "webhook down")
}

const urgentLoginResult = `{"results": [{"sentiment": "Negative", "topic": "Login", "urgency": "High"}]}`

func TestService_AnalyzeSendsUrgentAlerts(t *testing.T) {
	store := openTestStore(t)
	searcher := &MockSearcher{}
	searcher.On("Search", mock.Anything, "OpenAI", "OpenAI").Return([]sources.Post{post("OpenAI", "a1", "Login broken")}, nil)
	searcher.On("Search", mock.Anything, "ChatGPT", "OpenAI").Return([]sources.Post{}, nil)

	model := &MockModel{}
	model.On("GenerateStructured", mock.Anything, mock.Anything, mock.Anything).Return(urgentLoginResult, nil).Once()

	notifier := &MockNotificationService{}
	notifier.On("SendAlert", mock.MatchedBy(func(alert *models.Alert) bool {
		return alert.Mention != nil && alert.Mention.Urgency == models.UrgencyHigh
	})).Return(nil).Once()

	service := NewService(testConfig(), store, nil, notifier, searcher, model)
	ctx := context.Background()

	_, err := service.Fetch(ctx, "", nil)
	require.NoError(t, err)

	stats, err := service.Analyze(ctx, "", nil)
	require.NoError(t, err)
	assert.Len(t, stats.UrgentIDs, 1)
	notifier.AssertNumberOfCalls(t, "SendAlert", 1)

	// The scheduled run that follows has nothing left to alert on
	result, err := service.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Alerts)
	notifier.AssertNumberOfCalls(t, "SendAlert", 1)

	var metrics Metrics
	require.NoError(t, json.Unmarshal([]byte(service.GetMetrics()), &metrics))
	assert.Equal(t, 1, metrics.AlertsSent)
}

func TestService_AnalyzeAlertsOnInterruptedPass(t *testing.T) {
	store := openTestStore(t)
	now := time.Now().UTC()
	seed(t, store,
		models.Mention{Brand: "OpenAI", Source: "r/OpenAI", Text: "cannot log in", URL: "https://www.reddit.com/1", Timestamp: now},
		models.Mention{Brand: "OpenAI", Source: "r/OpenAI", Text: "still down", URL: "https://www.reddit.com/2", Timestamp: now.Add(-time.Minute)},
	)

	model := &MockModel{}
	model.On("GenerateStructured", mock.Anything, mock.Anything, mock.Anything).Return(urgentLoginResult, nil)

	notifier := &MockNotificationService{}
	notifier.On("SendAlert", mock.Anything).Return(nil)

	cfg := testConfig()
	cfg.AnalysisBatchSize = 1
	service := NewService(cfg, store, nil, notifier, &MockSearcher{}, model)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stats, err := service.Analyze(ctx, "", func(done, total int) {
		if done == 1 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Analyzed)
	notifier.AssertNumberOfCalls(t, "SendAlert", 1)
}

func TestService_ConcurrentAnalyzeClassifiesOnce(t *testing.T) {
	store := openTestStore(t)
	now := time.Now().UTC()
	seed(t, store,
		models.Mention{Brand: "OpenAI", Source: "r/OpenAI", Text: "cannot log in", URL: "https://www.reddit.com/1", Timestamp: now},
		models.Mention{Brand: "OpenAI", Source: "r/OpenAI", Text: "nice update", URL: "https://www.reddit.com/2", Timestamp: now.Add(-time.Minute)},
	)

	model := &MockModel{}
	model.On("GenerateStructured", mock.Anything, mock.Anything, mock.Anything).
		Return(`{"results": [{"sentiment": "Negative", "topic": "Login", "urgency": "High"}, {"sentiment": "Positive", "topic": "Update", "urgency": "Low"}]}`, nil)

	notifier := &MockNotificationService{}
	notifier.On("SendAlert", mock.Anything).Return(nil)

	service := NewService(testConfig(), store, nil, notifier, &MockSearcher{}, model)

	var wg sync.WaitGroup
	analyzed := make([]int, 2)
	for i := range analyzed {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stats, err := service.Analyze(context.Background(), "", nil)
			assert.NoError(t, err)
			if stats != nil {
				analyzed[i] = stats.Analyzed
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 2, analyzed[0]+analyzed[1])
	model.AssertNumberOfCalls(t, "GenerateStructured", 1)
	notifier.AssertNumberOfCalls(t, "SendAlert", 1)
}

func TestService_RunOncePrunesOldSnapshots(t *testing.T) {
	store := openTestStore(t)
	searcher := &MockSearcher{}
	searcher.On("Search", mock.Anything, mock.Anything, "OpenAI").Return([]sources.Post{}, nil)
	seed(t, store,
		models.Mention{Brand: "OpenAI", Source: "r/OpenAI", Text: "fine", URL: "https://www.reddit.com/1", Timestamp: time.Now().UTC(),
			Sentiment: models.SentimentNeutral, Topic: "General", Urgency: models.UrgencyLow},
	)

	archive := &MockArchive{}
	archive.On("Store", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	archive.On("List", mock.Anything, "mentions/openai/").Return([]string{
		"mentions/openai/2025-06-03-09-00-00.json",
		"mentions/openai/2025-06-01-09-00-00.json",
		"mentions/openai/2025-06-04-09-00-00.json",
		"mentions/openai/2025-06-02-09-00-00.json",
	}, nil)
	archive.On("Delete", mock.Anything, "mentions/openai/2025-06-01-09-00-00.json").Return(nil).Once()
	archive.On("Delete", mock.Anything, "mentions/openai/2025-06-02-09-00-00.json").Return(nil).Once()

	cfg := testConfig()
	cfg.SnapshotRetention = 2
	service := NewService(cfg, store, archive, nil, searcher, &MockModel{})

	result, err := service.RunOnce(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, result.Snapshot)

	archive.AssertExpectations(t)
	archive.AssertNumberOfCalls(t, "Delete", 2)
}

func TestService_Snapshots(t *testing.T) {
	archived := []models.Mention{{ID: 7, Brand: "OpenAI", Source: "r/OpenAI", Text: "saved", URL: "https://www.reddit.com/7"}}
	data, err := json.Marshal(archived)
	require.NoError(t, err)

	archive := &MockArchive{}
	archive.On("List", mock.Anything, "mentions/openai/").Return([]string{
		"mentions/openai/2025-06-01-09-00-00.json",
		"mentions/openai/2025-06-02-09-00-00.json",
	}, nil)
	archive.On("Retrieve", mock.Anything, "mentions/openai/2025-06-02-09-00-00.json").Return(data, nil)

	service := NewService(testConfig(), openTestStore(t), archive, nil, &MockSearcher{}, &MockModel{})
	ctx := context.Background()

	names, err := service.Snapshots(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"mentions/openai/2025-06-02-09-00-00.json", "mentions/openai/2025-06-01-09-00-00.json"}, names)

	mentions, err := service.Snapshot(ctx, names[0])
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	assert.Equal(t, "saved", mentions[0].Text)

	_, err = service.Snapshot(ctx, "../secrets.txt")
	assert.Error(t, err)

	disabled := NewService(testConfig(), openTestStore(t), nil, nil, &MockSearcher{}, &MockModel{})
	_, err = disabled.Snapshots(ctx, "")
	assert.ErrorIs(t, err, ErrArchiveDisabled)
}

func TestService_RunOnceInsertErrorsKeepChannelsHealthy(t *testing.T) {
	bad := post("OpenAI", "a2", "Broken row")
	store := &rejectingStore{MentionStore: openTestStore(t), rejectURL: bad.URL}

	searcher := &MockSearcher{}
	searcher.On("Search", mock.Anything, "OpenAI", "OpenAI").Return([]sources.Post{bad}, nil)
	searcher.On("Search", mock.Anything, "ChatGPT", "OpenAI").Return([]sources.Post{}, nil)

	service := NewService(testConfig(), store, nil, nil, searcher, &MockModel{})

	result, err := service.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Fetch.InsertErrors)

	var metrics Metrics
	require.NoError(t, json.Unmarshal([]byte(service.GetMetrics()), &metrics))
	assert.Empty(t, metrics.FailedChannels)
	assert.Equal(t, 1, metrics.LastInsertErrors)
	assert.Equal(t, 1, metrics.ErrorCount)
}
