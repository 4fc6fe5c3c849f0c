package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/azure/brand-mentions-bot/internal/analysis"
	"github.com/azure/brand-mentions-bot/internal/config"
	"github.com/azure/brand-mentions-bot/internal/llm"
	"github.com/azure/brand-mentions-bot/internal/models"
	"github.com/azure/brand-mentions-bot/internal/notifications"
	"github.com/azure/brand-mentions-bot/internal/sources"
	"github.com/azure/brand-mentions-bot/internal/storage"
	"github.com/azure/brand-mentions-bot/internal/summary"
	"github.com/sirupsen/logrus"
)

// Mention snapshot filters
const (
	StatusAll      = "all"
	StatusPending  = "pending"
	StatusAnalyzed = "analyzed"
)

const reportMentionLimit = 10

// ErrArchiveDisabled is returned by snapshot reads when no archive is configured
var ErrArchiveDisabled = errors.New("snapshot archive not configured")

// Service runs the mention pipeline for the configured brand
type Service struct {
	config              *config.Config
	store               storage.MentionStore
	archive             storage.SnapshotStore // nil when archiving is off
	notificationService notifications.NotificationInterface
	fetcher             *Fetcher
	analyzer            *analysis.Analyzer
	summarizer          *summary.Summarizer
	metrics             *Metrics
	mu                  sync.RWMutex
	runMu               sync.Mutex
	analyzeMu           sync.Mutex
}

// Metrics holds monitoring metrics
type Metrics struct {
	Brand              string                   `json:"brand"`
	TotalMentions      int                      `json:"total_mentions"`
	PendingMentions    int                      `json:"pending_mentions"`
	LastRun            time.Time                `json:"last_run"`
	LastRunDuration    string                   `json:"last_run_duration"`
	LastAdded          int                      `json:"last_added"`
	LastAnalyzed       int                      `json:"last_analyzed"`
	AlertsSent         int                      `json:"alerts_sent"`
	FailedChannels     []string                 `json:"failed_channels,omitempty"`
	LastInsertErrors   int                      `json:"last_insert_errors"`
	SentimentBreakdown map[models.Sentiment]int `json:"sentiment_breakdown"`
	ErrorCount         int                      `json:"error_count"`
}

// RunResult describes one full monitoring run
type RunResult struct {
	Fetch    *FetchStats             `json:"fetch"`
	Analysis *analysis.AnalysisStats `json:"analysis"`
	Alerts   int                     `json:"alerts"`
	Snapshot string                  `json:"snapshot,omitempty"`
}

// NewService creates a new monitoring service. archive may be nil.
func NewService(cfg *config.Config, store storage.MentionStore, archive storage.SnapshotStore,
	notificationService notifications.NotificationInterface, searcher sources.Searcher, model llm.ModelInterface) *Service {
	return &Service{
		config:              cfg,
		store:               store,
		archive:             archive,
		notificationService: notificationService,
		fetcher:             NewFetcher(store, searcher, cfg.FetchDelay),
		analyzer:            analysis.NewAnalyzer(store, analysis.NewClassifier(model), cfg.AnalysisMode, cfg.AnalysisBatchSize),
		summarizer:          summary.NewSummarizer(model),
		metrics: &Metrics{
			Brand:              cfg.Brand,
			SentimentBreakdown: make(map[models.Sentiment]int),
		},
	}
}

func (s *Service) brandOrDefault(brand string) string {
	if brand == "" {
		return s.config.Brand
	}
	return brand
}

// Fetch pulls new mentions of brand from channels. Empty arguments use the configured values.
func (s *Service) Fetch(ctx context.Context, brand string, channels []string) (*FetchStats, error) {
	if len(channels) == 0 {
		channels = s.config.Channels
	}
	return s.fetcher.Fetch(ctx, s.brandOrDefault(brand), channels)
}

// Analyze labels every pending mention of brand and alerts on the ones labeled High urgency
func (s *Service) Analyze(ctx context.Context, brand string, progress analysis.ProgressFunc) (*analysis.AnalysisStats, error) {
	stats, _, _, err := s.analyze(ctx, s.brandOrDefault(brand), progress)
	return stats, err
}

// analyze runs one analysis pass at a time, so concurrent callers never
// classify the same pending rows twice. Alerts go out for every row labeled
// High before the pass ended, including passes cut short by an error.
func (s *Service) analyze(ctx context.Context, brand string, progress analysis.ProgressFunc) (*analysis.AnalysisStats, int, int, error) {
	s.analyzeMu.Lock()
	defer s.analyzeMu.Unlock()

	stats, err := s.analyzer.AnalyzePending(ctx, brand, progress)
	if stats == nil {
		return nil, 0, 0, err
	}

	sent, failed := s.sendUrgentAlerts(brand, stats.Urgent)
	if sent > 0 {
		s.mu.Lock()
		s.metrics.AlertsSent += sent
		s.mu.Unlock()
	}

	return stats, sent, failed, err
}

// Mentions returns the brand snapshot, most recent first, filtered by status
func (s *Service) Mentions(ctx context.Context, brand, status string) ([]models.Mention, error) {
	brand = s.brandOrDefault(brand)

	switch status {
	case "", StatusAll:
		return s.store.ListByBrand(ctx, brand)
	case StatusPending:
		return s.filterMentions(ctx, brand, false)
	case StatusAnalyzed:
		return s.filterMentions(ctx, brand, true)
	default:
		return nil, fmt.Errorf("unknown mention status %q", status)
	}
}

func (s *Service) filterMentions(ctx context.Context, brand string, analyzed bool) ([]models.Mention, error) {
	mentions, err := s.store.ListByBrand(ctx, brand)
	if err != nil {
		return nil, err
	}

	filtered := make([]models.Mention, 0, len(mentions))
	for _, m := range mentions {
		if m.Analyzed() == analyzed {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}

// Summarize generates the mode summary over the brand's analyzed mentions
func (s *Service) Summarize(ctx context.Context, brand string, mode models.SummaryMode) (string, error) {
	mentions, err := s.Mentions(ctx, brand, StatusAnalyzed)
	if err != nil {
		return "", fmt.Errorf("failed to load mentions: %w", err)
	}
	return s.summarizer.Summarize(ctx, mentions, mode), nil
}

// Dashboard aggregates the brand snapshot
func (s *Service) Dashboard(ctx context.Context, brand string) (*models.Dashboard, error) {
	brand = s.brandOrDefault(brand)

	mentions, err := s.store.ListByBrand(ctx, brand)
	if err != nil {
		return nil, fmt.Errorf("failed to load mentions: %w", err)
	}

	dashboard := BuildDashboard(brand, mentions, time.Now().UTC())
	return &dashboard, nil
}

// RunMonitoring performs one full pass for the configured brand: fetch,
// analyze, alert on newly urgent mentions and archive a snapshot. A call made
// while another run is active is skipped.
func (s *Service) RunMonitoring() error {
	if !s.runMu.TryLock() {
		logrus.Warn("Monitoring run already in progress, skipping")
		return nil
	}
	defer s.runMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	_, err := s.runMonitoring(ctx)
	return err
}

// RunOnce performs the same pass as RunMonitoring with a caller-owned context and returns the details
func (s *Service) RunOnce(ctx context.Context) (*RunResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	return s.runMonitoring(ctx)
}

func (s *Service) runMonitoring(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	brand := s.config.Brand
	logrus.Infof("Starting monitoring run for %s across %d channels", brand, len(s.config.Channels))

	result := &RunResult{}
	errorCount := 0

	fetchStats, err := s.fetcher.Fetch(ctx, brand, s.config.Channels)
	result.Fetch = fetchStats
	if err != nil {
		s.recordError()
		return result, fmt.Errorf("fetch failed: %w", err)
	}
	errorCount += len(fetchStats.Failures) + fetchStats.InsertErrors

	analysisStats, sent, alertErrors, err := s.analyze(ctx, brand, nil)
	result.Analysis = analysisStats
	result.Alerts = sent
	errorCount += alertErrors
	if err != nil {
		s.recordError()
		return result, fmt.Errorf("analysis failed: %w", err)
	}

	mentions, err := s.store.ListByBrand(ctx, brand)
	if err != nil {
		s.recordError()
		return result, fmt.Errorf("failed to load mentions: %w", err)
	}

	if name, err := s.archiveSnapshot(ctx, brand, mentions); err != nil {
		logrus.Errorf("Failed to archive snapshot: %v", err)
		errorCount++
	} else if name != "" {
		result.Snapshot = name
		if err := s.pruneSnapshots(ctx, brand); err != nil {
			logrus.Errorf("Failed to prune snapshots: %v", err)
			errorCount++
		}
	}

	s.updateMetrics(mentions, result, time.Since(start), errorCount)

	logrus.Infof("Monitoring run completed in %v: %d added, %d analyzed, %d alerts",
		time.Since(start), fetchStats.Added, analysisStats.Analyzed, sent)
	return result, nil
}

// sendUrgentAlerts notifies about mentions labeled High urgency by one analysis pass
func (s *Service) sendUrgentAlerts(brand string, urgent []models.Mention) (int, int) {
	if s.notificationService == nil || len(urgent) == 0 {
		return 0, 0
	}

	sent, failed := 0, 0
	for i := range urgent {
		mention := urgent[i]

		alert := &models.Alert{
			ID:        fmt.Sprintf("urgent-%d", mention.ID),
			Type:      "urgent",
			Title:     fmt.Sprintf("Urgent %s mention in %s", brand, mention.Source),
			Message:   fmt.Sprintf("%s mention about %s needs attention", mention.Sentiment, mention.Topic),
			Mention:   &mention,
			CreatedAt: time.Now().UTC(),
		}

		if err := s.notificationService.SendAlert(alert); err != nil {
			logrus.Errorf("Failed to send alert for mention %d: %v", mention.ID, err)
			failed++
			continue
		}
		sent++
	}

	return sent, failed
}

func (s *Service) archiveSnapshot(ctx context.Context, brand string, mentions []models.Mention) (string, error) {
	if s.archive == nil || len(mentions) == 0 {
		return "", nil
	}

	data, err := json.Marshal(mentions)
	if err != nil {
		return "", fmt.Errorf("failed to marshal mentions: %w", err)
	}

	name := storage.SnapshotName(brand, time.Now().UTC().Format("2006-01-02-15-04-05"))
	if err := s.archive.Store(ctx, name, data); err != nil {
		return "", err
	}
	return name, nil
}

// pruneSnapshots keeps the newest SnapshotRetention snapshots of brand
func (s *Service) pruneSnapshots(ctx context.Context, brand string) error {
	keep := s.config.SnapshotRetention
	if s.archive == nil || keep <= 0 {
		return nil
	}

	names, err := s.archive.List(ctx, storage.SnapshotPrefix(brand))
	if err != nil {
		return err
	}
	if len(names) <= keep {
		return nil
	}

	sort.Strings(names)
	for _, name := range names[:len(names)-keep] {
		if err := s.archive.Delete(ctx, name); err != nil {
			return err
		}
	}

	logrus.Infof("Pruned %d old snapshots for %s", len(names)-keep, brand)
	return nil
}

// Snapshots lists the archived snapshot names of brand, newest first
func (s *Service) Snapshots(ctx context.Context, brand string) ([]string, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}

	names, err := s.archive.List(ctx, storage.SnapshotPrefix(s.brandOrDefault(brand)))
	if err != nil {
		return nil, err
	}

	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// Snapshot returns the mentions stored in one archived snapshot
func (s *Service) Snapshot(ctx context.Context, name string) ([]models.Mention, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	if !strings.HasPrefix(name, "mentions/") || !strings.HasSuffix(name, ".json") {
		return nil, fmt.Errorf("invalid snapshot name %q", name)
	}

	data, err := s.archive.Retrieve(ctx, name)
	if err != nil {
		return nil, err
	}

	var mentions []models.Mention
	if err := json.Unmarshal(data, &mentions); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", name, err)
	}
	return mentions, nil
}

// GenerateReport builds the dashboard and the three summaries for brand
func (s *Service) GenerateReport(ctx context.Context, brand string) (*models.Report, error) {
	brand = s.brandOrDefault(brand)

	mentions, err := s.store.ListByBrand(ctx, brand)
	if err != nil {
		return nil, fmt.Errorf("failed to load mentions: %w", err)
	}

	return s.buildReport(ctx, brand, mentions), nil
}

// GenerateTestReport creates a report from provided sample mentions for testing
func (s *Service) GenerateTestReport(ctx context.Context, mentions []models.Mention) *models.Report {
	return s.buildReport(ctx, s.config.Brand, mentions)
}

func (s *Service) buildReport(ctx context.Context, brand string, mentions []models.Mention) *models.Report {
	var analyzed []models.Mention
	for _, m := range mentions {
		if m.Analyzed() {
			analyzed = append(analyzed, m)
		}
	}

	recent := mentions
	if len(recent) > reportMentionLimit {
		recent = recent[:reportMentionLimit]
	}

	return &models.Report{
		GeneratedAt: time.Now().UTC(),
		Period:      s.config.ReportSchedule,
		Brand:       brand,
		Dashboard:   BuildDashboard(brand, mentions, time.Now().UTC()),
		Summaries:   s.summarizer.SummarizeAll(ctx, analyzed),
		Mentions:    recent,
	}
}

// SendReport generates the configured brand's report and delivers it
func (s *Service) SendReport() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	report, err := s.GenerateReport(ctx, s.config.Brand)
	if err != nil {
		return err
	}

	if s.notificationService == nil {
		logrus.Info("No notification channel configured, report not sent")
		return nil
	}

	if err := s.notificationService.SendReport(report); err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}

	logrus.Infof("Sent %s report for %s", report.Period, report.Brand)
	return nil
}

func (s *Service) updateMetrics(mentions []models.Mention, result *RunResult, duration time.Duration, errorCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.TotalMentions = len(mentions)
	s.metrics.PendingMentions = 0
	s.metrics.LastRun = time.Now().UTC()
	s.metrics.LastRunDuration = duration.String()
	s.metrics.LastAdded = result.Fetch.Added
	s.metrics.LastAnalyzed = result.Analysis.Analyzed
	s.metrics.LastInsertErrors = result.Fetch.InsertErrors
	s.metrics.ErrorCount = errorCount

	s.metrics.FailedChannels = nil
	for _, f := range result.Fetch.Failures {
		s.metrics.FailedChannels = append(s.metrics.FailedChannels, f.Channel)
	}

	// Reset counters
	s.metrics.SentimentBreakdown = make(map[models.Sentiment]int)
	for _, m := range mentions {
		if !m.Analyzed() {
			s.metrics.PendingMentions++
			continue
		}
		s.metrics.SentimentBreakdown[m.Sentiment]++
	}
}

func (s *Service) recordError() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.ErrorCount++
	s.metrics.LastRun = time.Now().UTC()
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}
