package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort                 = "8080"
	DefaultDataDir              = "./data"
	DefaultStoreBackend         = "sqlite"
	DefaultCacheTTL             = 15 * time.Minute
	DefaultRateLimitPerMin      = 60
	DefaultRecordLimitPerMin    = 20
	DefaultHistoryRetentionDays = 365
	DefaultRequestTimeout       = 30 * time.Second
	DefaultLogLevel             = "info"
)

// Config holds every runtime setting of the service
type Config struct {
	Port                 string        `yaml:"port"`
	DataDir              string        `yaml:"data_dir"`
	StoreBackend         string        `yaml:"store_backend"`
	RedisAddr            string        `yaml:"redis_addr"`
	RedisPassword        string        `yaml:"redis_password"`
	RedisDB              int           `yaml:"redis_db"`
	ReferenceTable       string        `yaml:"reference_table"`
	CacheTTL             time.Duration `yaml:"cache_ttl"`
	RateLimitPerMin      int           `yaml:"rate_limit_per_min"`
	RecordLimitPerMin    int           `yaml:"record_limit_per_min"`
	HistoryRetentionDays int           `yaml:"history_retention_days"`
	AllowedOrigins       []string      `yaml:"allowed_origins"`
	RequestTimeout       time.Duration `yaml:"request_timeout"`
	LogLevel             string        `yaml:"log_level"`
	EnableHSTS           bool          `yaml:"enable_hsts"`
	EnableProfiling      bool          `yaml:"enable_profiling"`
}

// Defaults returns a Config pre-populated with default values
func Defaults() *Config {
	return &Config{
		Port:                 DefaultPort,
		DataDir:              DefaultDataDir,
		StoreBackend:         DefaultStoreBackend,
		CacheTTL:             DefaultCacheTTL,
		RateLimitPerMin:      DefaultRateLimitPerMin,
		RecordLimitPerMin:    DefaultRecordLimitPerMin,
		HistoryRetentionDays: DefaultHistoryRetentionDays,
		AllowedOrigins:       []string{"http://localhost:3000", "http://localhost:8081", "http://localhost:19006"},
		RequestTimeout:       DefaultRequestTimeout,
		LogLevel:             DefaultLogLevel,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	cfg := Defaults()

	if path := getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.overlayEnv(getenv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse yaml %q: %w", path, err)
	}
	return nil
}

func (c *Config) overlayEnv(getenv func(string) string) error {
	setString := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s=%q is not an integer", key, v)
		}
		*dst = n
		return nil
	}
	setDuration := func(key string, dst *time.Duration) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s=%q is not a duration", key, v)
		}
		*dst = d
		return nil
	}
	setBool := func(key string, dst *bool) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s=%q is not a boolean", key, v)
		}
		*dst = b
		return nil
	}

	setString("PORT", &c.Port)
	setString("DATA_DIR", &c.DataDir)
	setString("STORE_BACKEND", &c.StoreBackend)
	setString("REDIS_ADDR", &c.RedisAddr)
	setString("REDIS_PASSWORD", &c.RedisPassword)
	setString("REFERENCE_TABLE", &c.ReferenceTable)
	setString("LOG_LEVEL", &c.LogLevel)

	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}

	for _, err := range []error{
		setInt("REDIS_DB", &c.RedisDB),
		setInt("RATE_LIMIT_PER_MIN", &c.RateLimitPerMin),
		setInt("RECORD_LIMIT_PER_MIN", &c.RecordLimitPerMin),
		setInt("HISTORY_RETENTION_DAYS", &c.HistoryRetentionDays),
		setDuration("CACHE_TTL", &c.CacheTTL),
		setDuration("REQUEST_TIMEOUT", &c.RequestTimeout),
		setBool("ENABLE_HSTS", &c.EnableHSTS),
		setBool("ENABLE_PROFILING", &c.EnableProfiling),
	} {
		if err != nil {
			return err
		}
	}

	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks structural constraints on the configuration
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("port %q is out of range [1, 65535]", c.Port)
	}

	switch c.StoreBackend {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("store_backend %q unknown: want sqlite|redis|memory", c.StoreBackend)
	}

	if c.StoreBackend == "sqlite" && c.DataDir == "" {
		return fmt.Errorf("data_dir is required for the sqlite backend")
	}
	if c.StoreBackend == "redis" && c.RedisAddr == "" {
		return fmt.Errorf("redis_addr is required for the redis backend")
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("redis_db must not be negative")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive")
	}
	if c.RateLimitPerMin <= 0 {
		return fmt.Errorf("rate_limit_per_min must be positive")
	}
	if c.RecordLimitPerMin <= 0 {
		return fmt.Errorf("record_limit_per_min must be positive")
	}
	if c.HistoryRetentionDays < 0 {
		return fmt.Errorf("history_retention_days must not be negative")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level %q unknown: want debug|info|warn|error", c.LogLevel)
	}

	return nil
}

// Retention converts HistoryRetentionDays to a duration. Zero keeps history forever.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.HistoryRetentionDays) * 24 * time.Hour
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	return ":" + c.Port
}
