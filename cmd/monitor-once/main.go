package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/azure/brand-mentions-bot/internal/config"
	"github.com/azure/brand-mentions-bot/internal/llm"
	"github.com/azure/brand-mentions-bot/internal/models"
	"github.com/azure/brand-mentions-bot/internal/monitoring"
	"github.com/azure/brand-mentions-bot/internal/sources"
	"github.com/azure/brand-mentions-bot/internal/storage"
	"github.com/joho/godotenv"
)

const outputDir = "test_output"

// fileArchive keeps snapshots under test_output for local runs
type fileArchive struct{}

func (f *fileArchive) Store(ctx context.Context, name string, data []byte) error {
	path := filepath.Join(outputDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	fmt.Printf("📁 Storing %d bytes to %s\n", len(data), path)
	return os.WriteFile(path, data, 0644)
}

func (f *fileArchive) Retrieve(ctx context.Context, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(outputDir, name))
}

func (f *fileArchive) List(ctx context.Context, prefix string) ([]string, error) {
	pattern := filepath.Join(outputDir, filepath.FromSlash(prefix))
	if strings.HasSuffix(prefix, "/") {
		pattern += string(filepath.Separator)
	}

	matches, err := filepath.Glob(pattern + "*")
	if err != nil {
		return nil, err
	}
	for i, m := range matches {
		rel, _ := filepath.Rel(outputDir, m)
		matches[i] = filepath.ToSlash(rel)
	}
	return matches, nil
}

func (f *fileArchive) Delete(ctx context.Context, name string) error {
	return os.Remove(filepath.Join(outputDir, name))
}

// consoleNotifier prints alerts instead of sending them
type consoleNotifier struct{}

func (c *consoleNotifier) SendReport(report *models.Report) error {
	fmt.Printf("📨 Report for %s ready (%d mentions)\n", report.Brand, report.Dashboard.TotalMentions)
	return nil
}

func (c *consoleNotifier) SendAlert(alert *models.Alert) error {
	fmt.Printf("🚨 ALERT: %s\n", alert.Title)
	if alert.Mention != nil {
		fmt.Printf("   %s\n   🔗 %s\n", truncate(alert.Mention.Text, 120), alert.Mention.URL)
	}
	return nil
}

func main() {
	fmt.Println("🧪 Brand Mentions Bot - Single Monitoring Cycle")
	fmt.Println("===============================================")

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	store, err := storage.OpenSQLite(ctx, cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open mention store: %v", err)
	}
	defer store.Close()

	model, err := llm.NewClient(llm.Options{
		APIKey:     cfg.LLMAPIKey,
		BaseURL:    cfg.LLMBaseURL,
		Model:      cfg.LLMModel,
		Timeout:    cfg.LLMTimeout,
		RPM:        cfg.LLMRPM,
		MaxRetries: cfg.LLMMaxRetries,
	})
	if err != nil {
		log.Fatalf("Failed to create model client: %v", err)
	}

	reddit := sources.NewRedditSource(sources.RedditOptions{
		BaseURL:      cfg.RedditBaseURL,
		UserAgent:    cfg.RedditUserAgent,
		ClientID:     cfg.RedditClientID,
		ClientSecret: cfg.RedditClientSecret,
		Limit:        cfg.FetchLimit,
		Timeout:      cfg.FetchTimeout,
	})

	service := monitoring.NewService(cfg, store, &fileArchive{}, &consoleNotifier{}, reddit, model)

	fmt.Printf("\n🔍 Fetching %q from %s...\n", cfg.Brand, strings.Join(cfg.Channels, ", "))
	fmt.Println("⏱️  This calls Reddit and the model service and may take a few minutes...")

	result, err := service.RunOnce(ctx)
	if err != nil {
		log.Fatalf("Monitoring cycle failed: %v", err)
	}

	fmt.Printf("\n✅ Added %d new mentions (%d found, %d already known)\n",
		result.Fetch.Added, result.Fetch.Found, result.Fetch.Duplicates)
	for _, failure := range result.Fetch.Failures {
		fmt.Printf("   ⚠️  r/%s failed: %s\n", failure.Channel, failure.Err)
	}
	fmt.Printf("✅ Analyzed %d pending mentions, %d urgent alerts\n", result.Analysis.Analyzed, result.Alerts)

	dashboard, err := service.Dashboard(ctx, cfg.Brand)
	if err != nil {
		log.Fatalf("Failed to build dashboard: %v", err)
	}
	printDashboard(dashboard)

	for _, mode := range models.SummaryModes {
		text, err := service.Summarize(ctx, cfg.Brand, mode)
		if err != nil {
			fmt.Printf("❌ %s summary: %v\n", mode, err)
			continue
		}
		fmt.Printf("\n📝 %s\n%s\n%s\n", strings.ToUpper(string(mode)), strings.Repeat("-", 40), text)
	}

	if names, err := service.Snapshots(ctx, cfg.Brand); err == nil && len(names) > 0 {
		fmt.Printf("\n🗂️  %d archived snapshots, latest %s\n", len(names), names[0])
		if mentions, err := service.Snapshot(ctx, names[0]); err == nil {
			fmt.Printf("   holds %d mentions\n", len(mentions))
		}
	}

	fmt.Println("\n✅ Monitoring cycle completed!")
}

func printDashboard(d *models.Dashboard) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Printf("📊 REPUTATION DASHBOARD: %s\n", d.Brand)
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("📈 Total: %d | Analyzed: %d | Pending: %d\n", d.TotalMentions, d.AnalyzedMentions, d.PendingMentions)

	fmt.Println("\n💭 Sentiment:")
	for _, s := range []models.Sentiment{models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral} {
		fmt.Printf("   %-10s %d\n", string(s)+":", d.SentimentBreakdown[s])
	}

	if len(d.TopTopics) > 0 {
		fmt.Println("\n🏷️  Top topics:")
		for _, t := range d.TopTopics {
			fmt.Printf("   %-25s %d\n", t.Topic, t.Count)
		}
	}

	if len(d.UrgentMentions) > 0 {
		fmt.Printf("\n🚨 %d high-urgency mentions:\n", len(d.UrgentMentions))
		for _, m := range d.UrgentMentions {
			fmt.Printf("   • [%s] %s\n", m.Source, truncate(m.Text, 100))
		}
	}
}

func truncate(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "..."
}
