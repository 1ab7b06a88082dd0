package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for vaforge-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	LLM      LLMConfig      `yaml:"llm"`
	Learning LearningConfig `yaml:"learning"`
	Worker   WorkerConfig   `yaml:"worker"`
	Scraper  ScraperConfig  `yaml:"scraper"`
	MCP      MCPConfig      `yaml:"mcp"`
}

// AuthConfig holds access-token validation settings.
// Either JWTSecret (HS256) or JWKSEndpointsStr (RS256) must be set when
// verification is enabled.
type AuthConfig struct {
	// EnableVerification controls whether token signatures are checked.
	// Set to false for local development without an auth server.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// CookieName is the cookie carrying the signed access token.
	CookieName string `yaml:"cookie_name" env:"AUTH_COOKIE_NAME" env-default:"access_token"`

	// JWTSecret is the HMAC key for HS256 access tokens.
	JWTSecret string `yaml:"-" env:"JWT_SECRET"` // Secret - not in YAML

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs.
	// Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"vaforge"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"vaforge_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds the optional Redis connection used as the enrichment event queue.
// Leave Host empty to process enrichment events in-process.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	QueueKey string `yaml:"queue_key" env:"REDIS_QUEUE_KEY" env-default:"vaforge:enrichment"`
}

// LLMConfig selects the LLM provider used by every pipeline stage.
type LLMConfig struct {
	// Provider is "openai" (any OpenAI-compatible endpoint) or "anthropic".
	Provider string        `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	BaseURL  string        `yaml:"base_url" env:"LLM_BASE_URL" env-default:"https://api.openai.com/v1"`
	Model    string        `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o"`
	APIKey   string        `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	Timeout  time.Duration `yaml:"timeout" env:"LLM_TIMEOUT" env-default:"90s"`
}

// LearningConfig holds the knowledge-base enrichment thresholds.
type LearningConfig struct {
	// ApplyThreshold is the minimum (decayed) confidence for an event to be merged.
	ApplyThreshold int `yaml:"apply_threshold" env:"LEARNING_APPLY_THRESHOLD" env-default:"80"`
	// OverwriteThreshold is the minimum confidence to replace a non-empty scalar field.
	OverwriteThreshold int `yaml:"overwrite_threshold" env:"LEARNING_OVERWRITE_THRESHOLD" env-default:"90"`
	// DuplicateSimilarity is the edit-distance ratio at which two insights are duplicates.
	DuplicateSimilarity float64 `yaml:"duplicate_similarity" env:"LEARNING_DUPLICATE_SIMILARITY" env-default:"0.85"`
	// DuplicateWindow bounds how far back duplicate detection looks.
	DuplicateWindow time.Duration `yaml:"duplicate_window" env:"LEARNING_DUPLICATE_WINDOW" env-default:"720h"`
	// DecayMaxAge is the event age at which confidence reaches its floor.
	DecayMaxAge time.Duration `yaml:"decay_max_age" env:"LEARNING_DECAY_MAX_AGE" env-default:"4320h"`
	// MinConfidenceRatio is the decay floor as a fraction of the original confidence.
	MinConfidenceRatio float64 `yaml:"min_confidence_ratio" env:"LEARNING_MIN_CONFIDENCE_RATIO" env-default:"0.5"`
	// MergeRetries bounds compare-and-swap retries when the knowledge base changed underneath a merge.
	MergeRetries int `yaml:"merge_retries" env:"LEARNING_MERGE_RETRIES" env-default:"3"`
}

// WorkerConfig sizes the in-process enrichment worker.
type WorkerConfig struct {
	Concurrency int `yaml:"concurrency" env:"WORKER_CONCURRENCY" env-default:"2"`
	QueueSize   int `yaml:"queue_size" env:"WORKER_QUEUE_SIZE" env-default:"256"`
	MaxRetries  int `yaml:"max_retries" env:"WORKER_MAX_RETRIES" env-default:"3"`
}

// ScraperConfig configures the website summarizer.
type ScraperConfig struct {
	Timeout   time.Duration `yaml:"timeout" env:"SCRAPER_TIMEOUT" env-default:"20s"`
	UserAgent string        `yaml:"user_agent" env:"SCRAPER_USER_AGENT" env-default:"vaforge-engine/1.0 (+https://vaforge.io)"`
	MaxChars  int           `yaml:"max_chars" env:"SCRAPER_MAX_CHARS" env-default:"6000"`
}

// MCPConfig toggles the MCP endpoint exposing knowledge-base tools.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// A missing config.yaml is not an error; defaults and environment apply.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	cfg.Auth.JWKSEndpoints = parseJWKSEndpoints(cfg.Auth.JWKSEndpointsStr)

	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.Database.Host = ResolveHostForDocker(cfg.Database.Host)
	cfg.Redis.Host = ResolveHostForDocker(cfg.Redis.Host)
	cfg.LLM.BaseURL = ResolveURLForDocker(cfg.LLM.BaseURL)

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// validate checks cross-field constraints that cleanenv cannot express.
func (c *Config) validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported llm provider %q (expected openai or anthropic)", c.LLM.Provider)
	}

	if c.Auth.EnableVerification && c.Auth.JWTSecret == "" && len(c.Auth.JWKSEndpoints) == 0 {
		return fmt.Errorf("auth verification enabled but neither JWT_SECRET nor JWKS_ENDPOINTS is set")
	}

	l := c.Learning
	if l.ApplyThreshold < 0 || l.ApplyThreshold > 100 || l.OverwriteThreshold < 0 || l.OverwriteThreshold > 100 {
		return fmt.Errorf("learning thresholds must be within 0-100")
	}
	if l.MinConfidenceRatio < 0 || l.MinConfidenceRatio > 1 {
		return fmt.Errorf("learning.min_confidence_ratio must be within 0-1")
	}
	if l.DuplicateSimilarity <= 0 || l.DuplicateSimilarity > 1 {
		return fmt.Errorf("learning.duplicate_similarity must be within (0, 1]")
	}
	return nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// parseJWKSEndpoints parses the JWKS endpoints string into a map.
// Format: "issuer1=url1,issuer2=url2"
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	for _, pair := range strings.Split(value, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) == 2 {
			endpoints[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return endpoints
}

// ConnectionString returns a PostgreSQL URL suitable for pgxpool and golang-migrate.
func (c *DatabaseConfig) ConnectionString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsConfigured reports whether Redis should be used for enrichment events.
func (c *RedisConfig) IsConfigured() bool {
	return c.Host != ""
}
