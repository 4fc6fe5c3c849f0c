package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Analysis modes
const (
	AnalysisModeBatch   = "batch"
	AnalysisModePerItem = "per-item"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port     string
	Debug    bool
	LogLevel string

	// Schedule configuration
	PollSchedule   string // 5- or 6-field cron spec or descriptor for fetch + analyze runs
	ReportSchedule string // "daily" or "weekly"
	TimeZone       string

	// Local mention store
	DatabasePath string

	// What to monitor
	Brand    string
	Channels []string

	// Reddit search
	RedditBaseURL      string
	RedditUserAgent    string
	RedditClientID     string
	RedditClientSecret string
	FetchLimit         int
	FetchDelay         time.Duration
	FetchTimeout       time.Duration

	// Model service
	LLMAPIKey     string
	LLMBaseURL    string
	LLMModel      string
	LLMTimeout    time.Duration
	LLMRPM        int
	LLMMaxRetries int

	// Analysis
	AnalysisMode      string
	AnalysisBatchSize int

	// Azure Storage configuration (snapshot archive, optional)
	StorageAccount    string
	StorageContainer  string
	SnapshotRetention int // snapshots kept per brand, 0 keeps all

	// Notification configuration
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
}

// fileConfig is the optional YAML base layer; environment variables win over it
type fileConfig struct {
	Brand    string   `yaml:"brand"`
	Channels []string `yaml:"channels"`
	Database string   `yaml:"database"`
	Reddit   struct {
		BaseURL   string `yaml:"base_url"`
		UserAgent string `yaml:"user_agent"`
		Limit     int    `yaml:"limit"`
		Delay     string `yaml:"delay"`
		Timeout   string `yaml:"timeout"`
	} `yaml:"reddit"`
	LLM struct {
		BaseURL    string `yaml:"base_url"`
		Model      string `yaml:"model"`
		Timeout    string `yaml:"timeout"`
		RPM        int    `yaml:"rpm"`
		MaxRetries int    `yaml:"max_retries"`
	} `yaml:"llm"`
	Analysis struct {
		Mode      string `yaml:"mode"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"analysis"`
	Schedule struct {
		Poll   string `yaml:"poll"`
		Report string `yaml:"report"`
	} `yaml:"schedule"`
}

// Load loads configuration from an optional YAML file and environment variables
func Load() (*Config, error) {
	var file fileConfig
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		Debug:    getBoolEnv("DEBUG", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		PollSchedule:   getEnv("POLL_SCHEDULE", orString(file.Schedule.Poll, "@every 1h")),
		ReportSchedule: getEnv("REPORT_SCHEDULE", orString(file.Schedule.Report, "weekly")),
		TimeZone:       getEnv("TIMEZONE", "UTC"),

		DatabasePath: getEnv("DATABASE_PATH", orString(file.Database, "brand_monitor.db")),

		Brand:    getEnv("BRAND", orString(file.Brand, "OpenAI")),
		Channels: getSliceEnv("CHANNELS", orSlice(file.Channels, []string{"OpenAI", "ChatGPT", "artificial", "singularity"})),

		RedditBaseURL:      getEnv("REDDIT_BASE_URL", orString(file.Reddit.BaseURL, "https://www.reddit.com")),
		RedditUserAgent:    getEnv("REDDIT_USER_AGENT", orString(file.Reddit.UserAgent, "Mozilla/5.0 (BrandMentionsBot/1.0)")),
		RedditClientID:     getEnv("REDDIT_CLIENT_ID", ""),
		RedditClientSecret: getEnv("REDDIT_CLIENT_SECRET", ""),
		FetchLimit:         getIntEnv("FETCH_LIMIT", orInt(file.Reddit.Limit, 10)),
		FetchDelay:         getDurationEnv("FETCH_DELAY", orDuration(file.Reddit.Delay, time.Second)),
		FetchTimeout:       getDurationEnv("FETCH_TIMEOUT", orDuration(file.Reddit.Timeout, 20*time.Second)),

		LLMAPIKey:     getEnv("LLM_API_KEY", os.Getenv("GEMINI_API_KEY")),
		LLMBaseURL:    getEnv("LLM_BASE_URL", orString(file.LLM.BaseURL, "https://generativelanguage.googleapis.com/v1beta/openai/")),
		LLMModel:      getEnv("LLM_MODEL", orString(file.LLM.Model, "gemini-2.5-flash")),
		LLMTimeout:    getDurationEnv("LLM_TIMEOUT", orDuration(file.LLM.Timeout, 60*time.Second)),
		LLMRPM:        getIntEnv("LLM_RPM", orInt(file.LLM.RPM, 60)),
		LLMMaxRetries: getIntEnv("LLM_MAX_RETRIES", orInt(file.LLM.MaxRetries, 2)),

		AnalysisMode:      getEnv("ANALYSIS_MODE", orString(file.Analysis.Mode, AnalysisModeBatch)),
		AnalysisBatchSize: getIntEnv("ANALYSIS_BATCH_SIZE", orInt(file.Analysis.BatchSize, 10)),

		StorageAccount:    getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer:  getEnv("AZURE_STORAGE_CONTAINER", "mentions"),
		SnapshotRetention: getIntEnv("SNAPSHOT_RETENTION", 48),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.LLMAPIKey == "" {
		return fmt.Errorf("LLM_API_KEY (or GEMINI_API_KEY) must be set to your model service API key")
	}

	if c.ReportSchedule != "daily" && c.ReportSchedule != "weekly" {
		return fmt.Errorf("REPORT_SCHEDULE must be 'daily' or 'weekly'")
	}

	if c.AnalysisMode != AnalysisModeBatch && c.AnalysisMode != AnalysisModePerItem {
		return fmt.Errorf("ANALYSIS_MODE must be '%s' or '%s'", AnalysisModeBatch, AnalysisModePerItem)
	}

	if c.AnalysisBatchSize <= 0 {
		return fmt.Errorf("ANALYSIS_BATCH_SIZE must be positive")
	}

	if c.Brand == "" {
		return fmt.Errorf("BRAND must not be empty")
	}

	if len(c.Channels) == 0 {
		return fmt.Errorf("at least one channel must be configured (CHANNELS)")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// NotificationsEnabled reports whether any report channel is configured
func (c *Config) NotificationsEnabled() bool {
	return c.TeamsWebhookURL != "" || c.NotificationEmail != ""
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return SplitList(value)
	}
	return defaultValue
}

// SplitList splits a comma-separated list, trimming entries and dropping empty ones
func SplitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func orString(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func orInt(value, fallback int) int {
	if value != 0 {
		return value
	}
	return fallback
}

func orSlice(value, fallback []string) []string {
	if len(value) > 0 {
		return value
	}
	return fallback
}

func orDuration(value string, fallback time.Duration) time.Duration {
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	return fallback
}
