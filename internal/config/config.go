package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv       = "NEWS_SCANNER_CONFIG"
	databasePathEnv     = "NEWS_DB_PATH"
	enrichmentURLEnv    = "ENRICHMENT_URL"
	enrichmentAPIKeyEnv = "ENRICHMENT_API_KEY"
	telegramTokenEnv    = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv   = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Crawler       CrawlerConfig      `yaml:"crawler"`
	Enrichment    EnrichmentConfig   `yaml:"enrichment"`
	Notifications NotificationConfig `yaml:"notifications"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Sites         []SiteConfig       `yaml:"sites"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes the SQLite database location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CrawlerConfig carries pipeline defaults; CLI flags override per run.
type CrawlerConfig struct {
	Days           int `yaml:"days"`
	MaxCount       int `yaml:"maxCount"`
	Workers        int `yaml:"workers"`
	QueueSize      int `yaml:"queueSize"`
	DelayMillis    int `yaml:"delayMillis"`
	TimeoutSeconds int `yaml:"timeoutSeconds"`
}

// Delay resolves the politeness delay between detail fetches.
func (c CrawlerConfig) Delay() time.Duration {
	return time.Duration(c.DelayMillis) * time.Millisecond
}

// Timeout resolves the per-request HTTP timeout.
func (c CrawlerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// EnrichmentConfig describes the keyword/industry model service.
type EnrichmentConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"apiKey"`
	TopKeywords int    `yaml:"topKeywords"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// SchedulerConfig defines the recurring-crawl interval for serve mode.
type SchedulerConfig struct {
	IntervalMinutes int `yaml:"intervalMinutes"`
}

// Interval resolves the recurring-crawl period.
func (s SchedulerConfig) Interval() time.Duration {
	if s.IntervalMinutes <= 0 {
		return 6 * time.Hour
	}
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// SiteConfig describes a single site with its scanner strategy.
type SiteConfig struct {
	Name     string   `yaml:"name"`
	Scanner  string   `yaml:"scanner"`
	URL      string   `yaml:"url"`
	Category string   `yaml:"category"`
	Feeds    []string `yaml:"feeds"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Sites) == 0 {
		cfg.Sites = defaultConfig().Sites
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(enrichmentURLEnv); v != "" {
		c.Enrichment.URL = v
	}

	if v := os.Getenv(enrichmentAPIKeyEnv); v != "" {
		c.Enrichment.APIKey = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Database.Path != "" {
		base.Database = override.Database
	}

	if override.Crawler.Days > 0 {
		base.Crawler.Days = override.Crawler.Days
	}
	if override.Crawler.MaxCount > 0 {
		base.Crawler.MaxCount = override.Crawler.MaxCount
	}
	if override.Crawler.Workers > 0 {
		base.Crawler.Workers = override.Crawler.Workers
	}
	if override.Crawler.QueueSize > 0 {
		base.Crawler.QueueSize = override.Crawler.QueueSize
	}
	if override.Crawler.DelayMillis > 0 {
		base.Crawler.DelayMillis = override.Crawler.DelayMillis
	}
	if override.Crawler.TimeoutSeconds > 0 {
		base.Crawler.TimeoutSeconds = override.Crawler.TimeoutSeconds
	}

	if override.Enrichment.URL != "" {
		base.Enrichment.URL = override.Enrichment.URL
	}
	if override.Enrichment.APIKey != "" {
		base.Enrichment.APIKey = override.Enrichment.APIKey
	}
	if override.Enrichment.TopKeywords > 0 {
		base.Enrichment.TopKeywords = override.Enrichment.TopKeywords
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.Scheduler.IntervalMinutes > 0 {
		base.Scheduler.IntervalMinutes = override.Scheduler.IntervalMinutes
	}

	if len(override.Sites) > 0 {
		base.Sites = override.Sites
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		Database: DatabaseConfig{Path: "data/news_analysis.db"},
		Crawler: CrawlerConfig{
			Days:           1,
			MaxCount:       1000,
			Workers:        3,
			QueueSize:      50,
			DelayMillis:    500,
			TimeoutSeconds: 30,
		},
		Enrichment: EnrichmentConfig{
			URL:         "",
			TopKeywords: 5,
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BotToken: "", ChatID: ""},
		},
		Scheduler: SchedulerConfig{IntervalMinutes: 360},
		Sites: []SiteConfig{
			{
				Name:     "aastocks",
				Scanner:  "aastocks",
				URL:      "http://www.aastocks.com/tc/stocks/news/aafn",
				Category: "港股新聞",
			},
		},
	}
}
