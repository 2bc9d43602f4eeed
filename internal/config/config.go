package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	SelfHosted SelfHostedConfig `yaml:"selfhosted" mapstructure:"selfhosted"`
	Gateway    GatewayConfig    `yaml:"gateway" mapstructure:"gateway"`
	Router     RouterConfig     `yaml:"router" mapstructure:"router"`
	Rotation   RotationConfig   `yaml:"rotation" mapstructure:"rotation"`
	Validator  ValidatorConfig  `yaml:"validator" mapstructure:"validator"`
	Rules      RulesConfig      `yaml:"rules" mapstructure:"rules"`
	Reports    ReportsConfig    `yaml:"reports" mapstructure:"reports"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver         string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL    string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns       int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns       int32  `yaml:"min_conns" mapstructure:"min_conns"`
	ConnectRetries int    `yaml:"connect_retries" mapstructure:"connect_retries"`
	RetryBackoffMs int    `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// AnthropicConfig holds Anthropic API settings for the primary provider.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// SelfHostedConfig holds settings for the OpenAI-compatible secondary
// provider (Ollama, vLLM).
type SelfHostedConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GatewayConfig configures provider ordering and rate limits.
type GatewayConfig struct {
	Preferred        string  `yaml:"preferred" mapstructure:"preferred"`
	AnthropicRPS     float64 `yaml:"anthropic_rps" mapstructure:"anthropic_rps"`
	SelfHostedRPS    float64 `yaml:"selfhosted_rps" mapstructure:"selfhosted_rps"`
	RateLimitBurst   int     `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// RouterConfig configures the analysis router.
type RouterConfig struct {
	EventCapacity   int `yaml:"event_capacity" mapstructure:"event_capacity"`
	PingTimeoutSecs int `yaml:"ping_timeout_secs" mapstructure:"ping_timeout_secs"`
	// SaveAudits persists every analysis result to the store.
	SaveAudits bool `yaml:"save_audits" mapstructure:"save_audits"`
}

// RotationConfig configures partner placement defaults.
type RotationConfig struct {
	DefaultMaxResults int    `yaml:"default_max_results" mapstructure:"default_max_results"`
	DefaultMode       string `yaml:"default_mode" mapstructure:"default_mode"`
}

// ValidatorConfig configures distribution QA runs.
type ValidatorConfig struct {
	Iterations        int    `yaml:"iterations" mapstructure:"iterations"`
	SlotsPerIteration int    `yaml:"slots_per_iteration" mapstructure:"slots_per_iteration"`
	Trials            int    `yaml:"trials" mapstructure:"trials"`
	Seed              uint64 `yaml:"seed" mapstructure:"seed"`
}

// RulesConfig points at an optional rule pack overriding the embedded one.
type RulesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ReportsConfig configures S3-compatible storage for QA reports.
type ReportsConfig struct {
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	Prefix    string `yaml:"prefix" mapstructure:"prefix"`
	UseSSL    bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
}

// Enabled reports whether report uploads are configured.
func (r ReportsConfig) Enabled() bool {
	return r.Endpoint != ""
}

// MonitoringConfig configures background health alerting.
type MonitoringConfig struct {
	WebhookURL             string `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs      int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowMins     int    `yaml:"lookback_window_mins" mapstructure:"lookback_window_mins"`
	FallbackBurstThreshold int    `yaml:"fallback_burst_threshold" mapstructure:"fallback_burst_threshold"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
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
	v.SetEnvPrefix("MAXCLAIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("store.connect_retries", 3)
	v.SetDefault("store.retry_backoff_ms", 500)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("anthropic.timeout_secs", 10)
	v.SetDefault("selfhosted.base_url", "")
	v.SetDefault("selfhosted.key", "")
	v.SetDefault("selfhosted.model", "llama3.1:8b")
	v.SetDefault("selfhosted.max_tokens", 2048)
	v.SetDefault("selfhosted.timeout_secs", 20)
	v.SetDefault("gateway.preferred", "")
	v.SetDefault("gateway.anthropic_rps", 0)
	v.SetDefault("gateway.selfhosted_rps", 0)
	v.SetDefault("gateway.rate_limit_burst", 1)
	v.SetDefault("gateway.failure_threshold", 3)
	v.SetDefault("gateway.reset_timeout_secs", 60)
	v.SetDefault("router.event_capacity", 100)
	v.SetDefault("router.ping_timeout_secs", 2)
	v.SetDefault("router.save_audits", true)
	v.SetDefault("rotation.default_max_results", 3)
	v.SetDefault("rotation.default_mode", "top")
	v.SetDefault("validator.iterations", 1000)
	v.SetDefault("validator.slots_per_iteration", 1)
	v.SetDefault("validator.trials", 20)
	v.SetDefault("validator.seed", 1)
	v.SetDefault("rules.path", "")
	v.SetDefault("reports.endpoint", "")
	v.SetDefault("reports.access_key", "")
	v.SetDefault("reports.secret_key", "")
	v.SetDefault("reports.bucket", "maxclaim-reports")
	v.SetDefault("reports.prefix", "distribution/")
	v.SetDefault("reports.use_ssl", true)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 60)
	v.SetDefault("monitoring.lookback_window_mins", 15)
	v.SetDefault("monitoring.fallback_burst_threshold", 10)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
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

// Command modes accepted by Validate.
const (
	ModeServe    = "serve"
	ModeAnalyze  = "analyze"
	ModePlace    = "place"
	ModePacing   = "pacing"
	ModeValidate = "validate"
	ModeHealth   = "health"
	ModeMigrate  = "migrate"
	ModeImport   = "import"
)

// Validate checks the keys required by a command mode. Every problem is
// reported at once.
func (c *Config) Validate(mode string) error {
	var errs []string

	needsStore := false
	switch mode {
	case ModeServe:
		needsStore = true
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case ModePlace, ModePacing, ModeMigrate, ModeImport:
		needsStore = true
	case ModeAnalyze, ModeValidate, ModeHealth:
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if needsStore && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	switch c.Store.Driver {
	case "postgres", "sqlite", "":
	default:
		errs = append(errs, "store.driver must be postgres or sqlite")
	}

	if c.Gateway.FailureThreshold < 1 {
		errs = append(errs, "gateway.failure_threshold must be >= 1")
	}
	if c.Gateway.AnthropicRPS < 0 || c.Gateway.SelfHostedRPS < 0 {
		errs = append(errs, "gateway rate limits must be >= 0")
	}
	if c.Router.EventCapacity < 1 {
		errs = append(errs, "router.event_capacity must be >= 1")
	}
	if c.Rotation.DefaultMaxResults < 1 || c.Rotation.DefaultMaxResults > 50 {
		errs = append(errs, "rotation.default_max_results must be between 1 and 50")
	}
	switch c.Rotation.DefaultMode {
	case "top", "rotating", "":
	default:
		errs = append(errs, "rotation.default_mode must be top or rotating")
	}
	if c.Validator.Iterations < 1 {
		errs = append(errs, "validator.iterations must be >= 1")
	}
	if c.Validator.SlotsPerIteration < 1 {
		errs = append(errs, "validator.slots_per_iteration must be >= 1")
	}
	if c.Reports.Enabled() && c.Reports.Bucket == "" {
		errs = append(errs, "reports.bucket is required when reports.endpoint is set")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(errs, "; "))
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
