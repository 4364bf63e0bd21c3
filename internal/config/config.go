// Package config loads ingestd settings from defaults, an optional config
// file and INGEST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mx-pai/rss-recommendation-platform/internal/api"
	"github.com/mx-pai/rss-recommendation-platform/internal/database"
	"github.com/mx-pai/rss-recommendation-platform/internal/scheduler"
	"github.com/mx-pai/rss-recommendation-platform/pkg/enrichment"
	"github.com/mx-pai/rss-recommendation-platform/pkg/feed"
	"github.com/mx-pai/rss-recommendation-platform/pkg/fetch"
	"github.com/mx-pai/rss-recommendation-platform/pkg/genai"
	"github.com/mx-pai/rss-recommendation-platform/pkg/page"
)

const EnvPrefix = "INGEST"

// Store backends
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Errors
var (
	ErrUnknownStore         = errors.New("unknown store")
	ErrInvalidInterval      = errors.New("scheduler interval must be positive")
	ErrInvalidSummaryBounds = errors.New("summary length bounds are invalid")
	ErrMissingDatabase      = errors.New("database host and name are required")
	ErrInvalidLogLevel      = errors.New("invalid log level")
)

// Config represents the complete ingestd configuration
type Config struct {
	Store      string           `mapstructure:"store"`
	Database   database.Config  `mapstructure:"database"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Fetch      fetch.Config     `mapstructure:"fetch"`
	Feed       feed.Config      `mapstructure:"feed"`
	Browser    page.Config      `mapstructure:"browser"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Publish    api.FeedConfig   `mapstructure:"publish"`
}

// SchedulerConfig controls the periodic fetch job
type SchedulerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Interval     time.Duration `mapstructure:"interval"`
	MisfireGrace time.Duration `mapstructure:"misfire_grace"`
}

// EnrichmentConfig selects the remote provider and the enrichment limits
type EnrichmentConfig struct {
	Provider         string        `mapstructure:"provider"`
	Model            string        `mapstructure:"model"`
	APIKey           string        `mapstructure:"api_key"`
	BaseURL          string        `mapstructure:"base_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	SummaryMaxLength int           `mapstructure:"summary_max_length"`
	MaxKeywords      int           `mapstructure:"max_keywords"`
	EnabledOnPage    bool          `mapstructure:"enabled_on_page"` // use the remote provider for page enrichment
}

// LogConfig contains logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"` // empty logs to stdout
}

// MetricsConfig contains the metrics listener settings
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	sched := scheduler.DefaultConfig()
	enrich := enrichment.DefaultConfig()
	return &Config{
		Store:    StorePostgres,
		Database: database.DefaultConfig(),
		Scheduler: SchedulerConfig{
			Enabled:      true,
			Interval:     sched.Interval,
			MisfireGrace: sched.MisfireGrace,
		},
		Fetch:   *fetch.DefaultConfig(),
		Feed:    *feed.DefaultConfig(),
		Browser: *page.DefaultConfig(),
		Enrichment: EnrichmentConfig{
			Provider:         "ollama",
			BaseURL:          "http://localhost:11434",
			Timeout:          30 * time.Second,
			SummaryMaxLength: enrich.SummaryMaxLength,
			MaxKeywords:      enrich.MaxKeywords,
			EnabledOnPage:    false,
		},
		Log:     LogConfig{Level: "info"},
		Metrics: MetricsConfig{Addr: ":9090"},
		Publish: *api.DefaultFeedConfig(),
	}
}

// Load reads configuration from cfgFile (optional), the environment and any
// flags already bound on v.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("ingestd")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/ingestd")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so env overrides apply to all of them
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("store", d.Store)

	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.host", d.Database.Host)
	v.SetDefault("database.port", d.Database.Port)
	v.SetDefault("database.user", d.Database.User)
	v.SetDefault("database.password", d.Database.Password)
	v.SetDefault("database.dbname", d.Database.DBName)
	v.SetDefault("database.sslmode", d.Database.SSLMode)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", d.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", d.Database.ConnMaxLifetime)

	v.SetDefault("scheduler.enabled", d.Scheduler.Enabled)
	v.SetDefault("scheduler.interval", d.Scheduler.Interval)
	v.SetDefault("scheduler.misfire_grace", d.Scheduler.MisfireGrace)

	v.SetDefault("fetch.source_delay", d.Fetch.SourceDelay)
	v.SetDefault("fetch.summary_min_length", d.Fetch.SummaryMinLength)
	v.SetDefault("fetch.summary_max_length", d.Fetch.SummaryMaxLength)
	v.SetDefault("fetch.full_text", d.Fetch.FullText)

	v.SetDefault("feed.user_agent", d.Feed.UserAgent)
	v.SetDefault("feed.timeout", d.Feed.Timeout)
	v.SetDefault("feed.max_items", d.Feed.MaxItems)
	v.SetDefault("feed.max_images", d.Feed.MaxImages)

	v.SetDefault("browser.headless", d.Browser.Headless)
	v.SetDefault("browser.exec_path", d.Browser.ExecPath)
	v.SetDefault("browser.user_agent", d.Browser.UserAgent)
	v.SetDefault("browser.viewport_width", d.Browser.ViewportWidth)
	v.SetDefault("browser.viewport_height", d.Browser.ViewportHeight)
	v.SetDefault("browser.navigation_timeout", d.Browser.NavigationTimeout)
	v.SetDefault("browser.idle_timeout", d.Browser.IdleTimeout)
	v.SetDefault("browser.wait_timeout", d.Browser.WaitTimeout)
	v.SetDefault("browser.min_body_length", d.Browser.MinBodyLength)
	v.SetDefault("browser.max_images", d.Browser.MaxImages)
	v.SetDefault("browser.min_image_size", d.Browser.MinImageSize)

	v.SetDefault("enrichment.provider", d.Enrichment.Provider)
	v.SetDefault("enrichment.model", d.Enrichment.Model)
	v.SetDefault("enrichment.api_key", d.Enrichment.APIKey)
	v.SetDefault("enrichment.base_url", d.Enrichment.BaseURL)
	v.SetDefault("enrichment.timeout", d.Enrichment.Timeout)
	v.SetDefault("enrichment.summary_max_length", d.Enrichment.SummaryMaxLength)
	v.SetDefault("enrichment.max_keywords", d.Enrichment.MaxKeywords)
	v.SetDefault("enrichment.enabled_on_page", d.Enrichment.EnabledOnPage)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)

	v.SetDefault("metrics.addr", d.Metrics.Addr)

	v.SetDefault("publish.enabled", d.Publish.Enabled)
	v.SetDefault("publish.title", d.Publish.Title)
	v.SetDefault("publish.description", d.Publish.Description)
	v.SetDefault("publish.link", d.Publish.Link)
	v.SetDefault("publish.author", d.Publish.Author)
	v.SetDefault("publish.max_items", d.Publish.MaxItems)
	v.SetDefault("publish.path", d.Publish.Path)
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.Database.Host == "" || c.Database.DBName == "" {
			return ErrMissingDatabase
		}
	case StoreMemory:
	default:
		return fmt.Errorf("%w: %q (must be %s or %s)", ErrUnknownStore, c.Store, StorePostgres, StoreMemory)
	}

	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return ErrInvalidInterval
	}

	if c.Fetch.SummaryMinLength < 0 || c.Fetch.SummaryMaxLength < c.Fetch.SummaryMinLength {
		return fmt.Errorf("%w: %d..%d", ErrInvalidSummaryBounds, c.Fetch.SummaryMinLength, c.Fetch.SummaryMaxLength)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("%w: %s (must be debug, info, warn, or error)", ErrInvalidLogLevel, c.Log.Level)
	}

	return nil
}

// SchedulerSettings converts to the scheduler's own config
func (c *Config) SchedulerSettings() *scheduler.Config {
	return &scheduler.Config{
		Interval:     c.Scheduler.Interval,
		MisfireGrace: c.Scheduler.MisfireGrace,
	}
}

// GenAI returns the remote provider settings
func (e EnrichmentConfig) GenAI() genai.Config {
	return genai.Config{
		Provider: e.Provider,
		Model:    e.Model,
		APIKey:   e.APIKey,
		BaseURL:  e.BaseURL,
		Timeout:  e.Timeout,
	}
}

// Service returns the enrichment service settings
func (e EnrichmentConfig) Service() *enrichment.Config {
	return &enrichment.Config{
		UseRemote:        e.EnabledOnPage,
		SummaryMaxLength: e.SummaryMaxLength,
		MaxKeywords:      e.MaxKeywords,
	}
}
