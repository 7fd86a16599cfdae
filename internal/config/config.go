// Package config loads and validates price tracker configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Render    RenderConfig    `mapstructure:"render"`
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Aggregate AggregateConfig `mapstructure:"aggregate"`
	DB        DBConfig        `mapstructure:"db"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Snapshots SnapshotConfig  `mapstructure:"snapshots"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port" validate:"gt=0,lt=65536"`
}

// FetchConfig configures the plain HTTP fetch layer.
type FetchConfig struct {
	UserAgent      string        `mapstructure:"user_agent" validate:"required"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxRetries     int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	MinBodyBytes   int           `mapstructure:"min_body_bytes" validate:"gte=0"`
	FirstDelayMin  time.Duration `mapstructure:"first_delay_min" validate:"gte=0"`
	FirstDelayMax  time.Duration `mapstructure:"first_delay_max" validate:"gte=0"`
	RetryDelayMin  time.Duration `mapstructure:"retry_delay_min" validate:"gte=0"`
	RetryDelayMax  time.Duration `mapstructure:"retry_delay_max" validate:"gte=0"`
	BotProbeBytes  int           `mapstructure:"bot_probe_bytes" validate:"gte=0"`
	AcceptLanguage string        `mapstructure:"accept_language"`
}

// RenderConfig configures the headless browser fallback.
type RenderConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	MaxParallel    int           `mapstructure:"max_parallel" validate:"gte=0"`
	NavTimeout     time.Duration `mapstructure:"nav_timeout" validate:"gt=0"`
	SettleDelay    time.Duration `mapstructure:"settle_delay" validate:"gte=0"`
	ViewportWidth  int64         `mapstructure:"viewport_width" validate:"gt=0"`
	ViewportHeight int64         `mapstructure:"viewport_height" validate:"gt=0"`
	Locale         string        `mapstructure:"locale"`
	MinBodyBytes   int           `mapstructure:"min_body_bytes" validate:"gte=0"`
	BlockedHostTTL time.Duration `mapstructure:"blocked_host_ttl" validate:"gte=0"`
}

// TrackerConfig governs the tracking cycle and scan scheduling.
type TrackerConfig struct {
	Concurrency  int           `mapstructure:"concurrency" validate:"gt=0"`
	HostInterval time.Duration `mapstructure:"host_interval" validate:"gte=0"`
	CycleTimeout time.Duration `mapstructure:"cycle_timeout" validate:"gt=0"`
	ProductPause time.Duration `mapstructure:"product_pause" validate:"gte=0"`
	LoopInterval time.Duration `mapstructure:"loop_interval" validate:"gte=0"`
	Workers      int           `mapstructure:"workers" validate:"gt=0"`
	QueueDepth   int           `mapstructure:"queue_depth" validate:"gt=0"`
	Providers    []string      `mapstructure:"providers"`
}

// AggregateConfig holds the anomaly filter inputs.
type AggregateConfig struct {
	CategoryFloors map[string]float64 `mapstructure:"category_floors"`
}

// DBConfig controls access to the relational database. An empty DSN selects the in-memory store.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns" validate:"gte=0"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime" validate:"gte=0"`
	EnsureSchema    bool          `mapstructure:"ensure_schema"`
}

// NotifyConfig selects and configures the alert delivery channel.
type NotifyConfig struct {
	Driver string     `mapstructure:"driver" validate:"oneof=log smtp pubsub"`
	SMTP   SMTPConfig `mapstructure:"smtp"`
	PubSub PubSub     `mapstructure:"pubsub"`
}

// SMTPConfig holds mail server credentials.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// PubSub holds metadata for publish-subscribe alert events.
type PubSub struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// SnapshotConfig controls where pages that failed to parse are kept.
type SnapshotConfig struct {
	Driver  string `mapstructure:"driver" validate:"oneof=none memory local gcs"`
	BaseDir string `mapstructure:"base_dir"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRICETRACKER")
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

	v.SetDefault("fetch.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("fetch.timeout", "20s")
	v.SetDefault("fetch.max_retries", 2)
	v.SetDefault("fetch.min_body_bytes", 1000)
	v.SetDefault("fetch.first_delay_min", "1s")
	v.SetDefault("fetch.first_delay_max", "2s")
	v.SetDefault("fetch.retry_delay_min", "2s")
	v.SetDefault("fetch.retry_delay_max", "4s")
	v.SetDefault("fetch.bot_probe_bytes", 500)
	v.SetDefault("fetch.accept_language", "en-US,en;q=0.5")

	v.SetDefault("render.enabled", true)
	v.SetDefault("render.max_parallel", 1)
	v.SetDefault("render.nav_timeout", "30s")
	v.SetDefault("render.settle_delay", "1200ms")
	v.SetDefault("render.viewport_width", 1280)
	v.SetDefault("render.viewport_height", 720)
	v.SetDefault("render.locale", "en-US")
	v.SetDefault("render.min_body_bytes", 1000)
	v.SetDefault("render.blocked_host_ttl", "10m")

	v.SetDefault("tracker.concurrency", 3)
	v.SetDefault("tracker.host_interval", "2s")
	v.SetDefault("tracker.cycle_timeout", "3m")
	v.SetDefault("tracker.product_pause", "2s")
	v.SetDefault("tracker.loop_interval", "0s")
	v.SetDefault("tracker.workers", 1)
	v.SetDefault("tracker.queue_depth", 64)
	v.SetDefault("tracker.providers", []string{"Amazon", "Flipkart", "Myntra", "Ajio", "Meesho"})

	v.SetDefault("aggregate.category_floors", DefaultCategoryFloors())

	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.max_conn_lifetime", "30m")
	v.SetDefault("db.ensure_schema", true)

	v.SetDefault("notify.driver", "log")
	v.SetDefault("notify.smtp.port", 587)

	v.SetDefault("snapshots.driver", "none")
	v.SetDefault("snapshots.prefix", "snapshots")

	v.SetDefault("logging.development", true)
}

// DefaultCategoryFloors is the keyword to minimum plausible price table (INR).
func DefaultCategoryFloors() map[string]float64 {
	return map[string]float64{
		"macbook":          40000,
		"laptop":           15000,
		"iphone":           30000,
		"ipad":             20000,
		"samsung galaxy s": 30000,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Fetch.FirstDelayMax < c.Fetch.FirstDelayMin {
		return fmt.Errorf("fetch.first_delay_max must be >= fetch.first_delay_min")
	}
	if c.Fetch.RetryDelayMax < c.Fetch.RetryDelayMin {
		return fmt.Errorf("fetch.retry_delay_max must be >= fetch.retry_delay_min")
	}
	if c.Render.Enabled && c.Render.MaxParallel <= 0 {
		return fmt.Errorf("render.max_parallel must be > 0 when render is enabled")
	}
	for keyword, floor := range c.Aggregate.CategoryFloors {
		if strings.TrimSpace(keyword) == "" {
			return fmt.Errorf("aggregate.category_floors contains an empty keyword")
		}
		if floor < 0 {
			return fmt.Errorf("aggregate.category_floors[%q] must be >= 0", keyword)
		}
	}
	switch c.Notify.Driver {
	case "smtp":
		if c.Notify.SMTP.Host == "" || c.Notify.SMTP.From == "" {
			return fmt.Errorf("notify.smtp.host and notify.smtp.from are required for the smtp driver")
		}
	case "pubsub":
		if c.Notify.PubSub.ProjectID == "" || c.Notify.PubSub.TopicName == "" {
			return fmt.Errorf("notify.pubsub.project_id and notify.pubsub.topic_name are required for the pubsub driver")
		}
	}
	switch c.Snapshots.Driver {
	case "local":
		if c.Snapshots.BaseDir == "" {
			return fmt.Errorf("snapshots.base_dir is required for the local driver")
		}
	case "gcs":
		if c.Snapshots.Bucket == "" {
			return fmt.Errorf("snapshots.bucket is required for the gcs driver")
		}
	}
	return nil
}
