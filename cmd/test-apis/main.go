package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/azure/brand-mentions-bot/internal/analysis"
	"github.com/azure/brand-mentions-bot/internal/config"
	"github.com/azure/brand-mentions-bot/internal/llm"
	"github.com/azure/brand-mentions-bot/internal/sources"
	"github.com/joho/godotenv"
)

func main() {
	fmt.Println("🔍 Brand Mentions Bot - API Connectivity Test")
	fmt.Println("=============================================")

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Printf("\n📡 Testing Reddit search for %q...\n", cfg.Brand)
	fmt.Println(strings.Repeat("-", 40))

	reddit := sources.NewRedditSource(sources.RedditOptions{
		BaseURL:      cfg.RedditBaseURL,
		UserAgent:    cfg.RedditUserAgent,
		ClientID:     cfg.RedditClientID,
		ClientSecret: cfg.RedditClientSecret,
		Limit:        cfg.FetchLimit,
		Timeout:      cfg.FetchTimeout,
	})

	var sample string
	for i, channel := range cfg.Channels {
		if i > 0 {
			time.Sleep(cfg.FetchDelay)
		}
		if text := testChannel(ctx, reddit, channel, cfg.Brand); sample == "" {
			sample = text
		}
	}

	fmt.Printf("\n🤖 Testing model service (%s)...\n", cfg.LLMModel)
	fmt.Println(strings.Repeat("-", 40))

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

	fmt.Print("🔸 Free-text completion... ")
	reply, err := model.Generate(ctx, "Reply with the single word: ready")
	if err != nil {
		fmt.Printf("❌ ERROR: %v\n", err)
	} else {
		fmt.Printf("✅ SUCCESS (%q)\n", reply)
	}

	if sample == "" {
		sample = fmt.Sprintf("I really like the latest %s update, it is much faster.", cfg.Brand)
	}

	classifier := analysis.NewClassifier(model)

	fmt.Print("🔸 Structured batch classification... ")
	results := classifier.ClassifyBatch(ctx, []string{sample})
	fmt.Printf("✅ %s / %s / %s\n", results[0].Sentiment, results[0].Topic, results[0].Urgency)

	fmt.Println("\n✅ API connectivity test completed!")
	fmt.Println("\n💡 Next steps:")
	fmt.Println("   • Set REDDIT_CLIENT_ID/REDDIT_CLIENT_SECRET if searches are rate limited")
	fmt.Println("   • Run one full cycle with: go run ./cmd/monitor-once")
	fmt.Println("   • Run the bot with: go run ./cmd/bot")
}

func testChannel(ctx context.Context, source sources.Searcher, channel, brand string) string {
	fmt.Printf("🔸 Testing r/%s... ", channel)

	posts, err := source.Search(ctx, channel, brand)
	if err != nil {
		fmt.Printf("❌ ERROR: %v\n", err)
		return ""
	}

	fmt.Printf("✅ SUCCESS (%d posts found)\n", len(posts))

	if len(posts) == 0 {
		return ""
	}
	fmt.Printf("   📝 Sample: \"%s\"\n", posts[0].Title)
	return posts[0].Title + " " + posts[0].Body
}
