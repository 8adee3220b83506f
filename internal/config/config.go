package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the sonicweb configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Sonic    SonicConfig    `yaml:"sonic"`
	Cache    CacheConfig    `yaml:"cache"`
	Reindex  ReindexConfig  `yaml:"reindex"`
	CORS     CORSConfig     `yaml:"cors"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. Both lists empty disables auth.
// Read-only keys may search, suggest and read stats but not mutate the index.
type AuthConfig struct {
	APIKeys      []string `yaml:"api_keys"`
	ReadOnlyKeys []string `yaml:"read_only_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds relational store settings.
type DatabaseConfig struct {
	Driver           string `yaml:"driver"` // postgres, sqlite (default: postgres)
	DSN              string `yaml:"dsn"`
	Schema           string `yaml:"schema"`
	Path             string `yaml:"path"` // sqlite only
	MaxConns         int    `yaml:"max_conns"`
	ReadinessTimeout int    `yaml:"readiness_timeout_sec"`
	AutoMigrate      *bool  `yaml:"auto_migrate"`
}

// SonicConfig holds search daemon settings.
type SonicConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Password     string `yaml:"password"`
	PoolSize     int    `yaml:"pool_size"`
	TimeoutSec   int    `yaml:"timeout_sec"`
	QueryLimit   int    `yaml:"query_limit"`
	SuggestLimit int    `yaml:"suggest_limit"`
	Collection   string `yaml:"collection"`
	Bucket       string `yaml:"bucket"`
	Lang         string `yaml:"lang"` // ISO 639-3, empty = auto-detect
}

// CacheConfig holds the optional document cache settings. Empty Addrs disables the cache.
type CacheConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	TTLSec   int      `yaml:"ttl_sec"`
	// TimeoutMs bounds each cache call; a slow cache reads as a miss.
	TimeoutMs int `yaml:"timeout_ms"`
}

// Enabled reports whether a cache backend is configured.
func (c CacheConfig) Enabled() bool { return len(c.Addrs) > 0 }

// ReindexConfig holds settings for re-pushing stored documents into the index.
type ReindexConfig struct {
	BatchSize   int     `yaml:"batch_size"`
	RatePerSec  float64 `yaml:"rate_per_sec"`
	Concurrency int     `yaml:"concurrency"`
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxAgeSec      int      `yaml:"max_age_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML config data, expanding ${VAR} references, applying defaults and validating.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.Schema == "" {
		c.Database.Schema = "sonic"
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 4
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.AutoMigrate == nil {
		on := true
		c.Database.AutoMigrate = &on
	}
	if c.Sonic.Port == 0 {
		c.Sonic.Port = 1491
	}
	if c.Sonic.PoolSize <= 0 {
		c.Sonic.PoolSize = 4
	}
	if c.Sonic.TimeoutSec <= 0 {
		c.Sonic.TimeoutSec = 5
	}
	if c.Sonic.QueryLimit <= 0 {
		c.Sonic.QueryLimit = 10
	}
	if c.Sonic.SuggestLimit <= 0 {
		c.Sonic.SuggestLimit = 5
	}
	if c.Sonic.Collection == "" {
		c.Sonic.Collection = "collection"
	}
	if c.Sonic.Bucket == "" {
		c.Sonic.Bucket = "bucket"
	}
	c.Cache.Addrs = nonEmpty(c.Cache.Addrs)
	c.Auth.APIKeys = nonEmpty(c.Auth.APIKeys)
	c.Auth.ReadOnlyKeys = nonEmpty(c.Auth.ReadOnlyKeys)
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 3600
	}
	if c.Cache.TimeoutMs <= 0 {
		c.Cache.TimeoutMs = 200
	}
	if c.Reindex.BatchSize <= 0 {
		c.Reindex.BatchSize = 100
	}
	if c.Reindex.RatePerSec <= 0 {
		c.Reindex.RatePerSec = 200
	}
	if c.Reindex.Concurrency <= 0 {
		c.Reindex.Concurrency = 4
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
	if c.CORS.MaxAgeSec <= 0 {
		c.CORS.MaxAgeSec = 3600
	}
}

var schemaRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
		if !schemaRegex.MatchString(c.Database.Schema) {
			return fmt.Errorf("database.schema %q is not a valid identifier", c.Database.Schema)
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("database.driver must be \"postgres\" or \"sqlite\", got %q", c.Database.Driver)
	}
	if c.Sonic.Host == "" {
		return fmt.Errorf("sonic.host is required")
	}
	if c.Sonic.Password == "" {
		return fmt.Errorf("sonic.password is required")
	}
	if c.Sonic.Port <= 0 || c.Sonic.Port > 65535 {
		return fmt.Errorf("sonic.port must be between 1 and 65535, got %d", c.Sonic.Port)
	}
	if strings.ContainsAny(c.Sonic.Collection+c.Sonic.Bucket, " \t\r\n") {
		return fmt.Errorf("sonic.collection and sonic.bucket must not contain whitespace")
	}
	return nil
}

// nonEmpty drops blank entries left behind by unset ${VAR} references.
func nonEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
