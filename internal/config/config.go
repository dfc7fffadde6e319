// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Source    SourceConfig    `mapstructure:"source"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Search    SearchConfig    `mapstructure:"search"`
	Store     StoreConfig     `mapstructure:"store"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	APIKey          string        `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// SourceConfig describes the listing being ingested.
type SourceConfig struct {
	Origin           string   `mapstructure:"origin"`
	ListingURL       string   `mapstructure:"listing_url"`
	PathMarker       string   `mapstructure:"path_marker"`
	ListingSuffix    string   `mapstructure:"listing_suffix"`
	CategorySuffixes []string `mapstructure:"category_suffixes"`
	Placeholders     []string `mapstructure:"placeholders"`
}

// FetcherConfig selects and tunes the page fetcher.
type FetcherConfig struct {
	Mode              string        `mapstructure:"mode"`
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RespectRobots     bool          `mapstructure:"respect_robots"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	HeadlessParallel  int           `mapstructure:"headless_parallel"`
	NavTimeout        time.Duration `mapstructure:"nav_timeout"`
}

// SearchConfig controls enrichment searches.
type SearchConfig struct {
	Endpoint    string   `mapstructure:"endpoint"`
	QuerySuffix string   `mapstructure:"query_suffix"`
	MaxResults  int      `mapstructure:"max_results"`
	Excluded    []string `mapstructure:"excluded"`
}

// StoreConfig selects the repository backend.
type StoreConfig struct {
	Driver           string        `mapstructure:"driver"`
	SQLitePath       string        `mapstructure:"sqlite_path"`
	DSN              string        `mapstructure:"dsn"`
	MaxConns         int32         `mapstructure:"max_conns"`
	MinConns         int32         `mapstructure:"min_conns"`
	MaxConnLifetime  time.Duration `mapstructure:"max_conn_lifetime"`
	DocumentsTable   string        `mapstructure:"documents_table"`
	EnrichmentsTable string        `mapstructure:"enrichments_table"`
}

// PublisherConfig selects where new-document events go.
type PublisherConfig struct {
	Provider  string   `mapstructure:"provider"`
	ProjectID string   `mapstructure:"project_id"`
	Topic     string   `mapstructure:"topic"`
	Brokers   []string `mapstructure:"brokers"`
}

// ScheduleConfig controls periodic runs in serve mode.
type ScheduleConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	RunWhenEmpty bool          `mapstructure:"run_when_empty"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("source.origin", "https://www.whitehouse.gov")
	v.SetDefault("source.listing_url", "https://www.whitehouse.gov/presidential-actions/executive-orders/")
	v.SetDefault("source.path_marker", "/presidential-actions/")
	v.SetDefault("source.listing_suffix", "executive-orders/")
	v.SetDefault("source.category_suffixes", []string{"executive-orders/", "presidential-actions/"})
	v.SetDefault("source.placeholders", []string{
		"Executive Orders",
		"Proclamations",
		"Presidential Actions",
		"Presidential Memoranda",
		"Nominations & Appointments",
	})
	v.SetDefault("fetcher.mode", "http")
	v.SetDefault("fetcher.user_agent", "actions-ingest/0.1")
	v.SetDefault("fetcher.timeout", 15*time.Second)
	v.SetDefault("fetcher.respect_robots", false)
	v.SetDefault("fetcher.requests_per_second", 2.0)
	v.SetDefault("fetcher.burst", 1)
	v.SetDefault("fetcher.headless_parallel", 1)
	v.SetDefault("fetcher.nav_timeout", 45*time.Second)
	v.SetDefault("search.endpoint", "https://html.duckduckgo.com/html/")
	v.SetDefault("search.query_suffix", "executive order white house")
	v.SetDefault("search.max_results", 5)
	v.SetDefault("search.excluded", []string{"foxnews.com", "dailywire.com"})
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "actions.db")
	v.SetDefault("store.documents_table", "documents")
	v.SetDefault("store.enrichments_table", "enrichments")
	v.SetDefault("publisher.provider", "none")
	v.SetDefault("schedule.interval", time.Hour)
	v.SetDefault("schedule.run_when_empty", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Source.ListingURL == "" || c.Source.Origin == "" {
		return fmt.Errorf("source.listing_url and source.origin are required")
	}
	if c.Source.PathMarker == "" {
		return fmt.Errorf("source.path_marker is required")
	}
	switch c.Fetcher.Mode {
	case "http":
	case "headless":
		if c.Fetcher.HeadlessParallel <= 0 {
			return fmt.Errorf("fetcher.headless_parallel must be > 0 when mode is headless")
		}
	default:
		return fmt.Errorf("fetcher.mode must be http or headless, got %q", c.Fetcher.Mode)
	}
	if c.Fetcher.Timeout <= 0 {
		return fmt.Errorf("fetcher.timeout must be > 0")
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be > 0")
	}
	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("store.driver must be memory, sqlite or postgres, got %q", c.Store.Driver)
	}
	switch c.Publisher.Provider {
	case "none":
	case "pubsub":
		if c.Publisher.ProjectID == "" || c.Publisher.Topic == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic are required for pubsub")
		}
	case "kafka":
		if len(c.Publisher.Brokers) == 0 || c.Publisher.Topic == "" {
			return fmt.Errorf("publisher.brokers and publisher.topic are required for kafka")
		}
	default:
		return fmt.Errorf("publisher.provider must be none, pubsub or kafka, got %q", c.Publisher.Provider)
	}
	if c.Schedule.Interval <= 0 {
		return fmt.Errorf("schedule.interval must be > 0")
	}
	return nil
}
