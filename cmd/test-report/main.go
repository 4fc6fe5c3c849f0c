package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/azure/brand-mentions-bot/internal/config"
	"github.com/azure/brand-mentions-bot/internal/llm"
	"github.com/azure/brand-mentions-bot/internal/models"
	"github.com/azure/brand-mentions-bot/internal/monitoring"
	"github.com/azure/brand-mentions-bot/internal/notifications"
	"github.com/joho/godotenv"
)

const outputDir = "test_output"

// cannedModel answers every prompt with a fixed summary so the report can be
// previewed without model credentials
type cannedModel struct{}

func (c *cannedModel) Generate(ctx context.Context, prompt string) (string, error) {
	return "- Users like the **integration** with existing tooling\n- Setup documentation could be clearer\n- Networking questions come up often", nil
}

func (c *cannedModel) GenerateStructured(ctx context.Context, prompt string, output llm.StructuredOutput) (string, error) {
	return `{"results":[]}`, nil
}

func main() {
	fmt.Println("🤖 Brand Mentions Bot - Test Report Generator")
	fmt.Println("=============================================")

	_ = godotenv.Load()

	// Create test configuration
	cfg := &config.Config{
		Brand:             "AKS",
		Channels:          []string{"AZURE", "kubernetes"},
		ReportSchedule:    "weekly",
		AnalysisMode:      config.AnalysisModeBatch,
		AnalysisBatchSize: 10,
	}

	var model llm.ModelInterface = &cannedModel{}
	if key := os.Getenv("LLM_API_KEY"); key != "" {
		client, err := llm.NewClient(llm.Options{
			APIKey:  key,
			BaseURL: getEnv("LLM_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
			Model:   getEnv("LLM_MODEL", "gemini-2.5-flash"),
			Timeout: 60 * time.Second,
		})
		if err != nil {
			fmt.Printf("❌ Failed to create model client: %v\n", err)
			os.Exit(1)
		}
		model = client
		fmt.Println("🧠 Using live model service for summaries")
	} else {
		fmt.Println("🧠 LLM_API_KEY not set, using canned summaries")
	}

	// Sample mentions carry their labels already, so no store is needed
	service := monitoring.NewService(cfg, nil, nil, nil, nil, model)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report := service.GenerateTestReport(ctx, sampleMentions(cfg.Brand))
	printReport(report)

	if err := saveReport(report); err != nil {
		fmt.Printf("\n⚠️  Warning: Could not save report: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n✅ Test report generated successfully!")
}

func sampleMentions(brand string) []models.Mention {
	now := time.Now().UTC().Truncate(time.Second)
	return []models.Mention{
		{
			ID:        5,
			Brand:     brand,
			Source:    "r/AZURE",
			Text:      "Need help with AKS cluster networking. Pods can't reach the database after upgrading the node pool.",
			URL:       "https://reddit.com/r/AZURE/comments/example1",
			Timestamp: now.Add(-3 * time.Hour),
			Sentiment: models.SentimentNegative,
			Topic:     "Networking",
			Urgency:   models.UrgencyHigh,
		},
		{
			ID:        4,
			Brand:     brand,
			Source:    "r/kubernetes",
			Text:      "Just migrated from EKS to AKS and the Azure integration has been great. Monitoring works out of the box.",
			URL:       "https://reddit.com/r/kubernetes/comments/example2",
			Timestamp: now.Add(-8 * time.Hour),
			Sentiment: models.SentimentPositive,
			Topic:     "Migration, Monitoring",
			Urgency:   models.UrgencyLow,
		},
		{
			ID:        3,
			Brand:     brand,
			Source:    "r/AZURE",
			Text:      "What are the essential steps to make an AKS cluster production ready? Looking for security and scaling advice.",
			URL:       "https://reddit.com/r/AZURE/comments/example3",
			Timestamp: now.Add(-12 * time.Hour),
			Sentiment: models.SentimentNeutral,
			Topic:     "Security",
			Urgency:   models.UrgencyLow,
		},
		{
			ID:        2,
			Brand:     brand,
			Source:    "r/kubernetes",
			Text:      "AKS autoscaler kept our costs down during the holiday peak. Would love a clearer guide for spot node pools.",
			URL:       "https://reddit.com/r/kubernetes/comments/example4",
			Timestamp: now.Add(-20 * time.Hour),
			Sentiment: models.SentimentPositive,
			Topic:     "Scaling",
			Urgency:   models.UrgencyLow,
		},
		{
			ID:        1,
			Brand:     brand,
			Source:    "r/AZURE",
			Text:      "Anyone else seeing AKS upgrades stuck for hours? Still waiting on the rollout.",
			URL:       "https://reddit.com/r/AZURE/comments/example5",
			Timestamp: now.Add(-26 * time.Hour),
		},
	}
}

func printReport(report *models.Report) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Printf("📊 %s MENTIONS REPORT\n", strings.ToUpper(report.Brand))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("📅 Period: %s\n", report.Period)
	fmt.Printf("🕒 Generated: %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))

	fmt.Println()
	fmt.Println(notifications.BuildEmailText(report))
	fmt.Println(strings.Repeat("=", 70))
}

func saveReport(report *models.Report) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	timestamp := report.GeneratedAt.Format("2006-01-02_15-04-05")
	base := fmt.Sprintf("%s_mentions_report_%s", strings.ToLower(report.Brand), timestamp)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	jsonPath := filepath.Join(outputDir, base+".json")
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return err
	}
	fmt.Printf("\n💾 Report saved to: %s\n", jsonPath)

	html, err := notifications.BuildEmailHTML(report)
	if err != nil {
		return err
	}
	htmlPath := filepath.Join(outputDir, base+".html")
	if err := os.WriteFile(htmlPath, []byte(html), 0644); err != nil {
		return err
	}
	fmt.Printf("💾 Email preview saved to: %s\n", htmlPath)
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
