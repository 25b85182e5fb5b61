package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/zen-systems/switchboard/pkg/classify"
	"github.com/zen-systems/switchboard/pkg/logging"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Backends   []BackendConfig   `yaml:"backends"`
	Rules      []classify.Rule   `yaml:"rules,omitempty"`
	Classifier ClassifierConfig  `yaml:"classifier,omitempty"`
	Aliases    map[string]string `yaml:"aliases,omitempty"`
	Cache      CacheConfig       `yaml:"cache,omitempty"`
	Server     ServerConfig      `yaml:"server,omitempty"`
	Log        logging.Config    `yaml:"log,omitempty"`

	// Path is the file the config was read from, empty for built-in defaults.
	Path string `yaml:"-"`
}

// ClassifierConfig replaces keyword categories; empty categories keep the defaults.
type ClassifierConfig struct {
	Keywords classify.Keywords `yaml:"keywords,omitempty"`
}

// CacheConfig controls the reply cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	// TTL in seconds.
	TTL      int    `yaml:"ttl,omitempty"`
	RedisURL string `yaml:"redis_url,omitempty"`
}

// ServerConfig controls the HTTP host.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
	// RateLimit is requests per second across all clients; zero disables it.
	RateLimit   float64  `yaml:"rate_limit,omitempty"`
	Burst       int      `yaml:"burst,omitempty"`
	CORSOrigins []string `yaml:"cors_origins,omitempty"`
	// RequestTimeout in seconds.
	RequestTimeout int `yaml:"request_timeout,omitempty"`
}

const (
	defaultCacheTTL       = 3600
	defaultAddr           = ":8080"
	defaultRequestTimeout = 120
)

// Load reads .env, then the config file at path. An empty path falls back
// to ~/.switchboard/config.yaml when it exists, else the built-in defaults.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	loadDotEnv()

	if path == "" {
		if p, ok := defaultConfigPath(); ok {
			path = p
		}
	}

	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		fileCfg, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML config file without consulting the environment.
// A file with no backends gets the default backend set.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if len(cfg.Backends) == 0 {
		cfg.Backends = DefaultBackends()
	}
	cfg.Path = path
	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		Backends: DefaultBackends(),
	}
	applyDefaults(cfg)
	return cfg
}

// Validate checks backend ids, adapters and weights.
func (c *Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("no backends configured")
	}
	seen := make(map[string]bool, len(c.Backends))
	var errs []error
	for i, b := range c.Backends {
		if b.ID == "" {
			errs = append(errs, fmt.Errorf("backends[%d]: id is required", i))
			continue
		}
		if seen[b.ID] {
			errs = append(errs, fmt.Errorf("backend %q: duplicate id", b.ID))
		}
		seen[b.ID] = true
		if !knownAdapter(b.Adapter) {
			errs = append(errs, fmt.Errorf("backend %q: unknown adapter %q", b.ID, b.Adapter))
		}
		if b.Model == "" {
			errs = append(errs, fmt.Errorf("backend %q: model is required", b.ID))
		}
		if w := b.EffectiveWeight(); w < 0 || w > 100 {
			errs = append(errs, fmt.Errorf("backend %q: weight %d out of range 0..100", b.ID, w))
		}
	}
	for i, r := range c.Rules {
		if r.Pattern == "" || r.Backend == "" {
			errs = append(errs, fmt.Errorf("rules[%d]: pattern and backend are required", i))
		}
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache ttl %d must not be negative", c.Cache.TTL))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server rate_limit %v must not be negative", c.Server.RateLimit))
	}
	return errors.Join(errs...)
}

// ResolveModel returns the canonical model for an alias, or model unchanged.
func (c *Config) ResolveModel(model string) string {
	if canonical, ok := c.Aliases[model]; ok {
		return canonical
	}
	return model
}

func applyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	for i := range cfg.Backends {
		applyBackendDefaults(&cfg.Backends[i])
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = defaultCacheTTL
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultAddr
	}
	if cfg.Server.RateLimit > 0 && cfg.Server.Burst <= 0 {
		cfg.Server.Burst = max(1, int(cfg.Server.RateLimit))
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = defaultRequestTimeout
	}
	if cfg.Aliases == nil {
		cfg.Aliases = DefaultAliases()
	}
}

// applyEnv overlays environment variables on cfg.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("ENABLE_CACHE"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid ENABLE_CACHE %q: %w", v, err)
		}
		cfg.Cache.Enabled = enabled
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		ttl, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CACHE_TTL %q: %w", v, err)
		}
		cfg.Cache.TTL = ttl
	}
	cfg.Cache.RedisURL = getEnvOrDefault("REDIS_URL", cfg.Cache.RedisURL)

	cfg.Log.Level = getEnvOrDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Level = getEnvOrDefault("SWITCHBOARD_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnvOrDefault("SWITCHBOARD_LOG_FORMAT", cfg.Log.Format)
	cfg.Server.Addr = getEnvOrDefault("SWITCHBOARD_ADDR", cfg.Server.Addr)

	for i := range cfg.Backends {
		b := &cfg.Backends[i]
		if b.BaseURLEnv != "" {
			b.BaseURL = getEnvOrDefault(b.BaseURLEnv, b.BaseURL)
		}
	}
	return nil
}

// loadDotEnv reads .env from the working directory. Variables already set
// in the environment win.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

// ConfigDir returns ~/.switchboard without creating it.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".switchboard"), nil
}

func defaultConfigPath() (string, bool) {
	dir, err := ConfigDir()
	if err != nil {
		return "", false
	}
	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

func knownAdapter(kind string) bool {
	k := strings.ToLower(strings.TrimSpace(kind))
	for _, known := range adapterKinds() {
		if k == known {
			return true
		}
	}
	return false
}
