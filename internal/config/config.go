package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultAdmitThreshold is the confidence percentage a verified candidate
// must reach before it may be persisted.
const DefaultAdmitThreshold = 70

// DefaultAuthor is stored as the author of every submission until submitter
// identity is wired in.
const DefaultAuthor = "fetch from middleware"

// Config holds the full application configuration.
type Config struct {
	Feed       FeedConfig       `yaml:"feed" mapstructure:"feed"`
	Oracle     OracleConfig     `yaml:"oracle" mapstructure:"oracle"`
	Gate       GateConfig       `yaml:"gate" mapstructure:"gate"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Submission SubmissionConfig `yaml:"submission" mapstructure:"submission"`
	Events     EventsConfig     `yaml:"events" mapstructure:"events"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// FeedConfig configures the headline providers.
type FeedConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // "newsapi", "rss" or "all"
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Country     string  `yaml:"country" mapstructure:"country"`
	Category    string  `yaml:"category" mapstructure:"category"`
	Query       string  `yaml:"query" mapstructure:"query"`
	PageSize    int     `yaml:"page_size" mapstructure:"page_size"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RSSFile     string  `yaml:"rss_file" mapstructure:"rss_file"`
	MaxItems    int     `yaml:"max_items" mapstructure:"max_items"`
}

// OracleConfig configures the trust-scoring service.
type OracleConfig struct {
	Endpoint    string `yaml:"endpoint" mapstructure:"endpoint"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GateConfig holds the single acceptance threshold shown to users and
// enforced before persistence.
type GateConfig struct {
	AdmitThreshold int `yaml:"admit_threshold" mapstructure:"admit_threshold"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SubmissionConfig holds placeholder values written with each record.
type SubmissionConfig struct {
	Author    string `yaml:"author" mapstructure:"author"`
	MintPrice int    `yaml:"mint_price" mapstructure:"mint_price"`
}

// EventsConfig configures the optional submitted-news notifications.
type EventsConfig struct {
	Brokers        []string `yaml:"brokers" mapstructure:"brokers"`
	Topic          string   `yaml:"topic" mapstructure:"topic"`
	BatchTimeoutMs int      `yaml:"batch_timeout_ms" mapstructure:"batch_timeout_ms"`
}

// ResilienceConfig tunes retries for the feed transport and the circuit
// breaker guarding the oracle.
type ResilienceConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures the periodic stats snapshot and alerting.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TRUSTFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("feed.provider", "newsapi")
	v.SetDefault("feed.api_key", "")
	v.SetDefault("feed.base_url", "https://newsapi.org")
	v.SetDefault("feed.country", "us")
	v.SetDefault("feed.category", "")
	v.SetDefault("feed.query", "")
	v.SetDefault("feed.page_size", 20)
	v.SetDefault("feed.timeout_secs", 15)
	v.SetDefault("feed.rate_limit", 1.0)
	v.SetDefault("feed.rss_file", "feeds.yaml")
	v.SetDefault("feed.max_items", 50)
	v.SetDefault("oracle.endpoint", "https://news-verifier-agent.onrender.com/verify-news")
	v.SetDefault("oracle.timeout_secs", 60)
	v.SetDefault("gate.admit_threshold", DefaultAdmitThreshold)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("submission.author", DefaultAuthor)
	v.SetDefault("submission.mint_price", 0)
	v.SetDefault("events.brokers", []string{})
	v.SetDefault("events.topic", "news.submitted")
	v.SetDefault("events.batch_timeout_ms", 10)
	v.SetDefault("resilience.max_attempts", 3)
	v.SetDefault("resilience.initial_backoff_ms", 500)
	v.SetDefault("resilience.max_backoff_ms", 5000)
	v.SetDefault("resilience.multiplier", 2.0)
	v.SetDefault("resilience.jitter_fraction", 0.25)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout_secs", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the keys a command mode needs. Modes: "serve", "triage",
// "fetch", "verify", "submit", "store".
func (c *Config) Validate(mode string) error {
	var problems []string

	needFeed := func() {
		switch c.Feed.Provider {
		case "newsapi", "all":
			if c.Feed.APIKey == "" {
				problems = append(problems, "feed.api_key is required")
			}
		case "rss":
		default:
			problems = append(problems, "feed.provider must be one of newsapi, rss, all")
		}
		if c.Feed.PageSize < 1 || c.Feed.PageSize > 100 {
			problems = append(problems, "feed.page_size must be between 1 and 100")
		}
	}
	needOracle := func() {
		if c.Oracle.Endpoint == "" {
			problems = append(problems, "oracle.endpoint is required")
		}
	}
	needGate := func() {
		if c.Gate.AdmitThreshold < 0 || c.Gate.AdmitThreshold > 100 {
			problems = append(problems, "gate.admit_threshold must be between 0 and 100")
		}
	}
	needStore := func() {
		switch c.Store.Driver {
		case "sqlite":
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required")
			}
		default:
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
	}

	switch mode {
	case "serve":
		needFeed()
		needOracle()
		needGate()
		needStore()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "triage":
		needFeed()
		needOracle()
		needGate()
		needStore()
	case "fetch":
		needFeed()
	case "verify":
		needOracle()
		needGate()
	case "submit":
		needOracle()
		needGate()
		needStore()
	case "store":
		needStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
