package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"parserator/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	LLM        LLMConfig
	Architect  ArchitectConfig
	Extractor  ExtractorConfig
	Pipeline   PipelineConfig
	Governance GovernanceConfig
	Webhook    WebhookConfig
	Archive    ArchiveConfig
	Email      EmailConfig
	Log        LogConfig
	CORS       CORSConfig
	Worker     WorkerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Environment     string        `mapstructure:"environment"`
	Version         string        `mapstructure:"version"`
}

// IsProduction reports whether the server runs in production mode.
func (s *ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// RedisConfig holds the Redis connection used by the redis rate-window backend.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// JWTConfig holds JWT signing and expiry settings for dashboard sessions.
type JWTConfig struct {
	Secret             string        `mapstructure:"secret"`
	AccessTokenExpiry  time.Duration `mapstructure:"access_expiry"`
	RefreshTokenExpiry time.Duration `mapstructure:"refresh_expiry"`
	Issuer             string        `mapstructure:"issuer"`
}

// LLMProviderConfig holds settings for a single model provider.
type LLMProviderConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	BaseURL      string `mapstructure:"base_url"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
}

// LLMConfig holds model gateway settings with multi-provider support.
type LLMConfig struct {
	Primary   LLMProviderConfig `mapstructure:"primary"`
	Secondary LLMProviderConfig `mapstructure:"secondary"`
	Tertiary  LLMProviderConfig `mapstructure:"tertiary"`

	MaxAttempts    int           `mapstructure:"max_attempts"`
	BackoffBase    time.Duration `mapstructure:"backoff_base"`
	MaxPromptBytes int           `mapstructure:"max_prompt_bytes"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Temperature    float64       `mapstructure:"temperature"`
	TopP           float64       `mapstructure:"top_p"`
	TopK           int           `mapstructure:"top_k"`
}

// Providers returns the configured providers in fallback order.
func (l *LLMConfig) Providers() []*LLMProviderConfig {
	var out []*LLMProviderConfig
	for _, p := range []*LLMProviderConfig{&l.Primary, &l.Secondary, &l.Tertiary} {
		if p.Provider != "" {
			out = append(out, p)
		}
	}
	return out
}

// ArchitectConfig holds plan generation settings.
type ArchitectConfig struct {
	MaxSampleLength int           `mapstructure:"max_sample_length"`
	MinConfidence   float64       `mapstructure:"min_confidence"`
	MaxFieldCount   int           `mapstructure:"max_field_count"`
	PromptVersion   string        `mapstructure:"prompt_version"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Temperature     float64       `mapstructure:"temperature"`
}

// ExtractorConfig holds extraction settings.
type ExtractorConfig struct {
	MaxInputLength int           `mapstructure:"max_input_length"`
	MinConfidence  float64       `mapstructure:"min_confidence"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Temperature    float64       `mapstructure:"temperature"`
}

// PipelineConfig holds orchestrator settings.
type PipelineConfig struct {
	MaxInputBytes        int           `mapstructure:"max_input_bytes"`
	MaxSchemaFields      int           `mapstructure:"max_schema_fields"`
	Timeout              time.Duration `mapstructure:"timeout"`
	ArchitectShare       float64       `mapstructure:"architect_share"`
	MinOverallConfidence float64       `mapstructure:"min_overall_confidence"`
	ArchiveResults       bool          `mapstructure:"archive_results"`
}

// PromptHeadroomBytes is the room reserved above the largest accepted input for
// the extractor's template and serialized plan.
const PromptHeadroomBytes = 128 << 10

// GovernanceConfig holds rate limiting and quota settings.
type GovernanceConfig struct {
	RateBackend   string        `mapstructure:"rate_backend"`
	RateWindow    time.Duration `mapstructure:"rate_window"`
	RateRetention time.Duration `mapstructure:"rate_retention"`

	// ReservationTTL bounds how long an unsettled quota reservation counts
	// against the monthly limit.
	ReservationTTL time.Duration `mapstructure:"reservation_ttl"`
	SettleTimeout  time.Duration `mapstructure:"settle_timeout"`
	TiersFile      string        `mapstructure:"tiers_file"`
	Tiers          map[domain.Tier]domain.TierLimits
}

// LimitsFor returns the limits of tier, falling back to the free tier.
func (g *GovernanceConfig) LimitsFor(tier domain.Tier) domain.TierLimits {
	if l, ok := g.Tiers[tier]; ok {
		return l
	}
	return g.Tiers[domain.TierFree]
}

// WebhookConfig holds outbound webhook delivery settings.
type WebhookConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// ArchiveConfig holds S3 settings for archiving parse results.
type ArchiveConfig struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`

	// LinkExpiry bounds the lifetime of presigned result links.
	LinkExpiry time.Duration `mapstructure:"link_expiry"`
}

// EmailConfig holds email delivery settings.
type EmailConfig struct {
	Provider     string `mapstructure:"provider"`
	Region       string `mapstructure:"region"`
	FromAddress  string `mapstructure:"from_address"`
	FromName     string `mapstructure:"from_name"`
	DashboardURL string `mapstructure:"dashboard_url"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// WorkerConfig holds background task settings.
type WorkerConfig struct {
	Concurrency   int           `mapstructure:"concurrency"`
	TaskTimeout   time.Duration `mapstructure:"task_timeout"`
	ResetInterval time.Duration `mapstructure:"reset_interval"`
}

// Load reads configuration from environment variables with the PARSERATOR_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PARSERATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.version", "dev")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "parserator")
	v.SetDefault("db.password", "parserator_secret")
	v.SetDefault("db.name", "parserator_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	v.SetDefault("redis.url", "redis://localhost:6379/0")

	// JWT defaults
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.access_expiry", "15m")
	v.SetDefault("jwt.refresh_expiry", "168h")
	v.SetDefault("jwt.issuer", "parserator")

	// LLM defaults
	v.SetDefault("llm.primary.provider", "gemini")
	v.SetDefault("llm.primary.api_key", "")
	v.SetDefault("llm.primary.default_model", "gemini-1.5-flash")
	v.SetDefault("llm.primary.base_url", "")
	v.SetDefault("llm.primary.timeout_secs", 0)
	v.SetDefault("llm.secondary.provider", "")
	v.SetDefault("llm.secondary.api_key", "")
	v.SetDefault("llm.secondary.default_model", "")
	v.SetDefault("llm.secondary.base_url", "")
	v.SetDefault("llm.secondary.timeout_secs", 0)
	v.SetDefault("llm.tertiary.provider", "")
	v.SetDefault("llm.tertiary.api_key", "")
	v.SetDefault("llm.tertiary.default_model", "")
	v.SetDefault("llm.tertiary.base_url", "")
	v.SetDefault("llm.tertiary.timeout_secs", 0)
	v.SetDefault("llm.max_attempts", 3)
	v.SetDefault("llm.backoff_base", "1s")
	v.SetDefault("llm.max_prompt_bytes", 0)
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.top_p", 0.8)
	v.SetDefault("llm.top_k", 40)

	// Architect defaults
	v.SetDefault("architect.max_sample_length", 1000)
	v.SetDefault("architect.min_confidence", 0.7)
	v.SetDefault("architect.max_field_count", 50)
	v.SetDefault("architect.prompt_version", "v2.1")
	v.SetDefault("architect.timeout", "20s")
	v.SetDefault("architect.max_tokens", 2048)
	v.SetDefault("architect.temperature", 0.1)

	// Extractor defaults
	v.SetDefault("extractor.max_input_length", 100000)
	v.SetDefault("extractor.min_confidence", 0.5)
	v.SetDefault("extractor.timeout", "25s")
	v.SetDefault("extractor.max_tokens", 3072)
	v.SetDefault("extractor.temperature", 0.0)

	// Pipeline defaults
	v.SetDefault("pipeline.max_input_bytes", 1048576)
	v.SetDefault("pipeline.max_schema_fields", 50)
	v.SetDefault("pipeline.timeout", "60s")
	v.SetDefault("pipeline.architect_share", 0.4)
	v.SetDefault("pipeline.min_overall_confidence", 0.5)
	v.SetDefault("pipeline.archive_results", false)

	// Governance defaults
	v.SetDefault("governance.rate_backend", "postgres")
	v.SetDefault("governance.rate_window", "60s")
	v.SetDefault("governance.rate_retention", "5m")
	v.SetDefault("governance.reservation_ttl", "5m")
	v.SetDefault("governance.settle_timeout", "5s")
	v.SetDefault("governance.tiers_file", "")

	// Webhook defaults
	v.SetDefault("webhook.max_retries", 3)
	v.SetDefault("webhook.retry_delay", "60s")
	v.SetDefault("webhook.timeout", "10s")

	// Archive defaults
	v.SetDefault("archive.region", "us-east-1")
	v.SetDefault("archive.bucket", "parserator-results")
	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.prefix", "results")
	v.SetDefault("archive.link_expiry", "15m")

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "us-east-1")
	v.SetDefault("email.from_address", "noreply@parserator.com")
	v.SetDefault("email.from_name", "Parserator")
	v.SetDefault("email.dashboard_url", "http://localhost:3000")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Worker defaults
	v.SetDefault("worker.concurrency", 16)
	v.SetDefault("worker.task_timeout", "30s")
	v.SetDefault("worker.reset_interval", "1h")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                       "PARSERATOR_SERVER_PORT",
		"server.read_timeout":               "PARSERATOR_SERVER_READ_TIMEOUT",
		"server.write_timeout":              "PARSERATOR_SERVER_WRITE_TIMEOUT",
		"server.shutdown_timeout":           "PARSERATOR_SERVER_SHUTDOWN_TIMEOUT",
		"server.environment":                "PARSERATOR_SERVER_ENVIRONMENT",
		"server.version":                    "PARSERATOR_SERVER_VERSION",
		"db.host":                           "PARSERATOR_DB_HOST",
		"db.port":                           "PARSERATOR_DB_PORT",
		"db.user":                           "PARSERATOR_DB_USER",
		"db.password":                       "PARSERATOR_DB_PASSWORD",
		"db.name":                           "PARSERATOR_DB_NAME",
		"db.sslmode":                        "PARSERATOR_DB_SSLMODE",
		"db.max_open":                       "PARSERATOR_DB_MAX_OPEN",
		"db.max_idle":                       "PARSERATOR_DB_MAX_IDLE",
		"redis.url":                         "PARSERATOR_REDIS_URL",
		"jwt.secret":                        "PARSERATOR_JWT_SECRET",
		"jwt.access_expiry":                 "PARSERATOR_JWT_ACCESS_EXPIRY",
		"jwt.refresh_expiry":                "PARSERATOR_JWT_REFRESH_EXPIRY",
		"jwt.issuer":                        "PARSERATOR_JWT_ISSUER",
		"llm.primary.provider":              "PARSERATOR_LLM_PRIMARY_PROVIDER",
		"llm.primary.api_key":               "PARSERATOR_LLM_PRIMARY_API_KEY",
		"llm.primary.default_model":         "PARSERATOR_LLM_PRIMARY_DEFAULT_MODEL",
		"llm.primary.base_url":              "PARSERATOR_LLM_PRIMARY_BASE_URL",
		"llm.primary.timeout_secs":          "PARSERATOR_LLM_PRIMARY_TIMEOUT_SECS",
		"llm.secondary.provider":            "PARSERATOR_LLM_SECONDARY_PROVIDER",
		"llm.secondary.api_key":             "PARSERATOR_LLM_SECONDARY_API_KEY",
		"llm.secondary.default_model":       "PARSERATOR_LLM_SECONDARY_DEFAULT_MODEL",
		"llm.secondary.base_url":            "PARSERATOR_LLM_SECONDARY_BASE_URL",
		"llm.secondary.timeout_secs":        "PARSERATOR_LLM_SECONDARY_TIMEOUT_SECS",
		"llm.tertiary.provider":             "PARSERATOR_LLM_TERTIARY_PROVIDER",
		"llm.tertiary.api_key":              "PARSERATOR_LLM_TERTIARY_API_KEY",
		"llm.tertiary.default_model":        "PARSERATOR_LLM_TERTIARY_DEFAULT_MODEL",
		"llm.tertiary.base_url":             "PARSERATOR_LLM_TERTIARY_BASE_URL",
		"llm.tertiary.timeout_secs":         "PARSERATOR_LLM_TERTIARY_TIMEOUT_SECS",
		"llm.max_attempts":                  "PARSERATOR_LLM_MAX_ATTEMPTS",
		"llm.backoff_base":                  "PARSERATOR_LLM_BACKOFF_BASE",
		"llm.max_prompt_bytes":              "PARSERATOR_LLM_MAX_PROMPT_BYTES",
		"llm.timeout":                       "PARSERATOR_LLM_TIMEOUT",
		"llm.max_tokens":                    "PARSERATOR_LLM_MAX_TOKENS",
		"llm.temperature":                   "PARSERATOR_LLM_TEMPERATURE",
		"llm.top_p":                         "PARSERATOR_LLM_TOP_P",
		"llm.top_k":                         "PARSERATOR_LLM_TOP_K",
		"architect.max_sample_length":       "PARSERATOR_ARCHITECT_MAX_SAMPLE_LENGTH",
		"architect.min_confidence":          "PARSERATOR_ARCHITECT_MIN_CONFIDENCE",
		"architect.max_field_count":         "PARSERATOR_ARCHITECT_MAX_FIELD_COUNT",
		"architect.prompt_version":          "PARSERATOR_ARCHITECT_PROMPT_VERSION",
		"architect.timeout":                 "PARSERATOR_ARCHITECT_TIMEOUT",
		"architect.max_tokens":              "PARSERATOR_ARCHITECT_MAX_TOKENS",
		"architect.temperature":             "PARSERATOR_ARCHITECT_TEMPERATURE",
		"extractor.max_input_length":        "PARSERATOR_EXTRACTOR_MAX_INPUT_LENGTH",
		"extractor.min_confidence":          "PARSERATOR_EXTRACTOR_MIN_CONFIDENCE",
		"extractor.timeout":                 "PARSERATOR_EXTRACTOR_TIMEOUT",
		"extractor.max_tokens":              "PARSERATOR_EXTRACTOR_MAX_TOKENS",
		"extractor.temperature":             "PARSERATOR_EXTRACTOR_TEMPERATURE",
		"pipeline.max_input_bytes":          "PARSERATOR_PIPELINE_MAX_INPUT_BYTES",
		"pipeline.max_schema_fields":        "PARSERATOR_PIPELINE_MAX_SCHEMA_FIELDS",
		"pipeline.timeout":                  "PARSERATOR_PIPELINE_TIMEOUT",
		"pipeline.architect_share":          "PARSERATOR_PIPELINE_ARCHITECT_SHARE",
		"pipeline.min_overall_confidence":   "PARSERATOR_PIPELINE_MIN_OVERALL_CONFIDENCE",
		"pipeline.archive_results":          "PARSERATOR_PIPELINE_ARCHIVE_RESULTS",
		"governance.rate_backend":           "PARSERATOR_GOVERNANCE_RATE_BACKEND",
		"governance.rate_window":            "PARSERATOR_GOVERNANCE_RATE_WINDOW",
		"governance.rate_retention":         "PARSERATOR_GOVERNANCE_RATE_RETENTION",
		"governance.reservation_ttl":       "PARSERATOR_GOVERNANCE_RESERVATION_TTL",
		"governance.settle_timeout":        "PARSERATOR_GOVERNANCE_SETTLE_TIMEOUT",
		"governance.tiers_file":             "PARSERATOR_GOVERNANCE_TIERS_FILE",
		"webhook.max_retries":               "PARSERATOR_WEBHOOK_MAX_RETRIES",
		"webhook.retry_delay":               "PARSERATOR_WEBHOOK_RETRY_DELAY",
		"webhook.timeout":                   "PARSERATOR_WEBHOOK_TIMEOUT",
		"archive.region":                    "PARSERATOR_ARCHIVE_REGION",
		"archive.bucket":                    "PARSERATOR_ARCHIVE_BUCKET",
		"archive.endpoint":                  "PARSERATOR_ARCHIVE_ENDPOINT",
		"archive.access_key":                "PARSERATOR_ARCHIVE_ACCESS_KEY",
		"archive.secret_key":                "PARSERATOR_ARCHIVE_SECRET_KEY",
		"archive.prefix":                    "PARSERATOR_ARCHIVE_PREFIX",
		"archive.link_expiry":               "PARSERATOR_ARCHIVE_LINK_EXPIRY",
		"email.provider":                    "PARSERATOR_EMAIL_PROVIDER",
		"email.region":                      "PARSERATOR_EMAIL_REGION",
		"email.from_address":                "PARSERATOR_EMAIL_FROM_ADDRESS",
		"email.from_name":                   "PARSERATOR_EMAIL_FROM_NAME",
		"email.dashboard_url":               "PARSERATOR_EMAIL_DASHBOARD_URL",
		"log.level":                         "PARSERATOR_LOG_LEVEL",
		"log.format":                        "PARSERATOR_LOG_FORMAT",
		"cors.allowed_origins":              "PARSERATOR_CORS_ALLOWED_ORIGINS",
		"worker.concurrency":                "PARSERATOR_WORKER_CONCURRENCY",
		"worker.task_timeout":               "PARSERATOR_WORKER_TASK_TIMEOUT",
		"worker.reset_interval":             "PARSERATOR_WORKER_RESET_INTERVAL",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Hosting platforms set PORT. Use it if PARSERATOR_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("PARSERATOR_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:            serverPort,
		ReadTimeout:     v.GetDuration("server.read_timeout"),
		WriteTimeout:    v.GetDuration("server.write_timeout"),
		ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		Environment:     v.GetString("server.environment"),
		Version:         v.GetString("server.version"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.Redis = RedisConfig{URL: v.GetString("redis.url")}
	cfg.JWT = JWTConfig{
		Secret:             v.GetString("jwt.secret"),
		AccessTokenExpiry:  v.GetDuration("jwt.access_expiry"),
		RefreshTokenExpiry: v.GetDuration("jwt.refresh_expiry"),
		Issuer:             v.GetString("jwt.issuer"),
	}
	cfg.LLM = LLMConfig{
		Primary:        providerConfig(v, "llm.primary"),
		Secondary:      providerConfig(v, "llm.secondary"),
		Tertiary:       providerConfig(v, "llm.tertiary"),
		MaxAttempts:    v.GetInt("llm.max_attempts"),
		BackoffBase:    v.GetDuration("llm.backoff_base"),
		MaxPromptBytes: v.GetInt("llm.max_prompt_bytes"),
		Timeout:        v.GetDuration("llm.timeout"),
		MaxTokens:      v.GetInt("llm.max_tokens"),
		Temperature:    v.GetFloat64("llm.temperature"),
		TopP:           v.GetFloat64("llm.top_p"),
		TopK:           v.GetInt("llm.top_k"),
	}
	cfg.Architect = ArchitectConfig{
		MaxSampleLength: v.GetInt("architect.max_sample_length"),
		MinConfidence:   v.GetFloat64("architect.min_confidence"),
		MaxFieldCount:   v.GetInt("architect.max_field_count"),
		PromptVersion:   v.GetString("architect.prompt_version"),
		Timeout:         v.GetDuration("architect.timeout"),
		MaxTokens:       v.GetInt("architect.max_tokens"),
		Temperature:     v.GetFloat64("architect.temperature"),
	}
	cfg.Extractor = ExtractorConfig{
		MaxInputLength: v.GetInt("extractor.max_input_length"),
		MinConfidence:  v.GetFloat64("extractor.min_confidence"),
		Timeout:        v.GetDuration("extractor.timeout"),
		MaxTokens:      v.GetInt("extractor.max_tokens"),
		Temperature:    v.GetFloat64("extractor.temperature"),
	}
	cfg.Pipeline = PipelineConfig{
		MaxInputBytes:        v.GetInt("pipeline.max_input_bytes"),
		MaxSchemaFields:      v.GetInt("pipeline.max_schema_fields"),
		Timeout:              v.GetDuration("pipeline.timeout"),
		ArchitectShare:       v.GetFloat64("pipeline.architect_share"),
		MinOverallConfidence: v.GetFloat64("pipeline.min_overall_confidence"),
		ArchiveResults:       v.GetBool("pipeline.archive_results"),
	}

	tiers := DefaultTiers()
	if path := v.GetString("governance.tiers_file"); path != "" {
		loaded, err := LoadTiersFile(path)
		if err != nil {
			return nil, err
		}
		for tier, limits := range loaded {
			tiers[tier] = limits
		}
	}
	cfg.Governance = GovernanceConfig{
		RateBackend:    v.GetString("governance.rate_backend"),
		RateWindow:     v.GetDuration("governance.rate_window"),
		RateRetention:  v.GetDuration("governance.rate_retention"),
		ReservationTTL: v.GetDuration("governance.reservation_ttl"),
		SettleTimeout:  v.GetDuration("governance.settle_timeout"),
		TiersFile:      v.GetString("governance.tiers_file"),
		Tiers:          tiers,
	}
	// The extractor prompt carries the whole input, so the gateway ceiling
	// must cover the largest input the pipeline accepts.
	minPrompt := cfg.Pipeline.MaxInputBytes + PromptHeadroomBytes
	if cfg.LLM.MaxPromptBytes <= 0 {
		cfg.LLM.MaxPromptBytes = minPrompt
	}
	if cfg.LLM.MaxPromptBytes < minPrompt {
		return nil, fmt.Errorf("llm.max_prompt_bytes (%d) must be at least pipeline.max_input_bytes plus %d bytes of headroom (%d)",
			cfg.LLM.MaxPromptBytes, PromptHeadroomBytes, minPrompt)
	}
	if cfg.Governance.RateBackend != "postgres" && cfg.Governance.RateBackend != "redis" {
		return nil, fmt.Errorf("unknown rate backend: %s", cfg.Governance.RateBackend)
	}

	cfg.Webhook = WebhookConfig{
		MaxRetries: v.GetInt("webhook.max_retries"),
		RetryDelay: v.GetDuration("webhook.retry_delay"),
		Timeout:    v.GetDuration("webhook.timeout"),
	}
	cfg.Archive = ArchiveConfig{
		Region:     v.GetString("archive.region"),
		Bucket:     v.GetString("archive.bucket"),
		Endpoint:   v.GetString("archive.endpoint"),
		AccessKey:  v.GetString("archive.access_key"),
		SecretKey:  v.GetString("archive.secret_key"),
		Prefix:     v.GetString("archive.prefix"),
		LinkExpiry: v.GetDuration("archive.link_expiry"),
	}
	cfg.Email = EmailConfig{
		Provider:     v.GetString("email.provider"),
		Region:       v.GetString("email.region"),
		FromAddress:  v.GetString("email.from_address"),
		FromName:     v.GetString("email.from_name"),
		DashboardURL: v.GetString("email.dashboard_url"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{AllowedOrigins: corsOrigins}

	cfg.Worker = WorkerConfig{
		Concurrency:   v.GetInt("worker.concurrency"),
		TaskTimeout:   v.GetDuration("worker.task_timeout"),
		ResetInterval: v.GetDuration("worker.reset_interval"),
	}

	return cfg, nil
}

func providerConfig(v *viper.Viper, prefix string) LLMProviderConfig {
	return LLMProviderConfig{
		Provider:     v.GetString(prefix + ".provider"),
		APIKey:       v.GetString(prefix + ".api_key"),
		DefaultModel: v.GetString(prefix + ".default_model"),
		BaseURL:      v.GetString(prefix + ".base_url"),
		TimeoutSecs:  v.GetInt(prefix + ".timeout_secs"),
	}
}
