// Package config provides configuration loading, validation, and access for roadmapbp.
//
// Load reads a JSON or YAML file (chosen by extension), applies defaults and
// environment overrides, and validates the result. Each command loads its own
// Config and passes it down explicitly.
//
//	cfg, path, err := config.Load(flagPath)
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"roadmapbp/pkg/logx"
)

// Provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
	ProviderMock      = "mock"
)

// Environment variables.
const (
	EnvConfigPath      = "ROADMAPBP_CONFIG"
	EnvModel           = "ROADMAPBP_MODEL"
	EnvAdminPassword   = "ROADMAPBP_ADMIN_PASSWORD"
	EnvDatabasePath    = "ROADMAPBP_DB"
	EnvRedisAddr       = "REDIS_ADDR"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvGoogleAPIKey    = "GOOGLE_GENAI_API_KEY"
	EnvOllamaHost      = "OLLAMA_HOST"
)

// Render modes.
const (
	RenderSequential = "sequential"
	RenderConcurrent = "concurrent"
)

// Storage backends.
const (
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

// Defaults.
const (
	DefaultModel              = "claude-sonnet-4-5"
	DefaultMaxTokens          = 4096
	DefaultTemperature        = 0.7
	DefaultTimeout            = 3 * time.Minute
	DefaultRenderConcurrency  = 3
	DefaultCondenseOverTokens = 1500
	DefaultDrafts             = 3
	MaxDrafts                 = 10
	DefaultSQLitePath         = "roadmapbp.db"
	DefaultRedisAddr          = "localhost:6379"
	DefaultServerAddr         = ":8080"
	DefaultMetricsNamespace   = "roadmapbp"
	DefaultOllamaHost         = "http://localhost:11434"
)

// DefaultConfigNames are tried in order in the working directory when no path is given.
//
//nolint:gochecknoglobals // static search list
var DefaultConfigNames = []string{"roadmapbp.yaml", "roadmapbp.yml", "roadmapbp.json"}

//nolint:gochecknoglobals // package logger
var (
	logger     *logx.Logger
	loggerOnce sync.Once
)

func getLogger() *logx.Logger {
	loggerOnce.Do(func() { logger = logx.NewLogger("config") })
	return logger
}

// Duration is a time.Duration that reads "90s"-style strings from JSON and YAML.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return d.parse(s)
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", string(b))
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML accepts a duration string or a number of seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var secs float64
	if err := value.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration at line %d: %w", value.Line, err)
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// ModelConfig selects the model and its sampling parameters.
type ModelConfig struct {
	Name        string   `json:"name" yaml:"name"`
	MaxTokens   int      `json:"max_tokens" yaml:"max_tokens"`
	Temperature *float32 `json:"temperature,omitempty" yaml:"temperature,omitempty"` // nil means DefaultTemperature
	Timeout     Duration `json:"timeout" yaml:"timeout"` // Per gateway call
}

// SamplingTemperature returns the configured temperature. An explicit 0 is kept.
func (m ModelConfig) SamplingTemperature() float32 {
	if m.Temperature == nil {
		return DefaultTemperature
	}
	return *m.Temperature
}

// PipelineConfig controls how the generation stages run.
type PipelineConfig struct {
	RenderMode         string `json:"render_mode" yaml:"render_mode"`                   // sequential | concurrent
	RenderConcurrency  int    `json:"render_concurrency" yaml:"render_concurrency"`     // cap for concurrent mode
	CondenseOverTokens int    `json:"condense_over_tokens" yaml:"condense_over_tokens"` // brief size that triggers condensation
	Drafts             int    `json:"drafts" yaml:"drafts"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend    string `json:"backend" yaml:"backend"` // sqlite | redis
	SQLitePath string `json:"sqlite_path" yaml:"sqlite_path"`
	RedisAddr  string `json:"redis_addr" yaml:"redis_addr"`
	RedisDB    int    `json:"redis_db" yaml:"redis_db"`
}

// ServerConfig configures the HTTP shell.
type ServerConfig struct {
	Addr          string `json:"addr" yaml:"addr"`
	AdminPassword string `json:"admin_password,omitempty" yaml:"admin_password,omitempty"`
}

// MetricsConfig defines metrics collection configuration.
type MetricsConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	Namespace     string `json:"namespace" yaml:"namespace"`
	PrometheusURL string `json:"prometheus_url,omitempty" yaml:"prometheus_url,omitempty"` // Query endpoint for usage reports
}

// Config is the complete application configuration.
type Config struct {
	Model    ModelConfig    `json:"model" yaml:"model"`
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
}

// Default returns a config populated with defaults.
func Default() *Config {
	cfg := &Config{Metrics: MetricsConfig{Enabled: true}}
	applyDefaults(cfg)
	return cfg
}

// Load reads, defaults, overrides and validates a config.
//
// Resolution order for the file: the path argument, then ROADMAPBP_CONFIG, then the
// first of DefaultConfigNames present in the working directory. With no file, defaults
// are used. Environment overrides are applied last, then the result is validated.
// It returns the resolved file path ("" when defaults were used).
func Load(path string) (*Config, string, error) {
	resolved := resolvePath(path)

	var cfg *Config
	if resolved == "" {
		getLogger().Info("No config file found, using defaults")
		cfg = &Config{Metrics: MetricsConfig{Enabled: true}}
	} else {
		getLogger().Info("Loading config from %s", resolved)
		loaded, err := loadConfigFromFile(resolved)
		if err != nil {
			return nil, "", fmt.Errorf("config file %s cannot be parsed: %w", resolved, err)
		}
		cfg = loaded
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, "", fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, resolved, nil
}

func resolvePath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	for _, name := range DefaultConfigNames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// loadConfigFromFile parses JSON or YAML by file extension.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Metrics default on; an explicit false in the file still wins.
	cfg := Config{Metrics: MetricsConfig{Enabled: true}}
	if isYAML(path) {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML %s: %w", path, err)
		}
		return &cfg, nil
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON %s: %w", path, err)
	}
	return &cfg, nil
}

// SaveConfig writes cfg to path as JSON or YAML by extension. Secrets are not written.
func SaveConfig(cfg *Config, path string) error {
	out := *cfg
	out.Server.AdminPassword = ""

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(&out)
	} else {
		data, err = json.MarshalIndent(&out, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Model.Name == "" {
		cfg.Model.Name = DefaultModel
	}
	if cfg.Model.MaxTokens == 0 {
		cfg.Model.MaxTokens = DefaultMaxTokens
	}
	if cfg.Model.Temperature == nil {
		t := float32(DefaultTemperature)
		cfg.Model.Temperature = &t
	}
	if cfg.Model.Timeout == 0 {
		cfg.Model.Timeout = Duration(DefaultTimeout)
	}

	if cfg.Pipeline.RenderMode == "" {
		cfg.Pipeline.RenderMode = RenderSequential
	}
	if cfg.Pipeline.RenderConcurrency == 0 {
		cfg.Pipeline.RenderConcurrency = DefaultRenderConcurrency
	}
	if cfg.Pipeline.CondenseOverTokens == 0 {
		cfg.Pipeline.CondenseOverTokens = DefaultCondenseOverTokens
	}
	if cfg.Pipeline.Drafts == 0 {
		cfg.Pipeline.Drafts = DefaultDrafts
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageSQLite
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = DefaultSQLitePath
	}
	if cfg.Storage.RedisAddr == "" {
		cfg.Storage.RedisAddr = DefaultRedisAddr
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvModel); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv(EnvAdminPassword); v != "" {
		cfg.Server.AdminPassword = v
	}
	if v := os.Getenv(EnvDatabasePath); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		cfg.Storage.RedisAddr = v
	}
}

func validateConfig(cfg *Config) error {
	if _, err := GetModelProvider(cfg.Model.Name); err != nil {
		return err
	}
	if cfg.Model.MaxTokens <= 0 {
		return fmt.Errorf("model.max_tokens must be positive, got %d", cfg.Model.MaxTokens)
	}
	if t := cfg.Model.SamplingTemperature(); t < 0 || t > 2 {
		return fmt.Errorf("model.temperature must be between 0.0 and 2.0, got %.2f", t)
	}
	if cfg.Model.Timeout < 0 {
		return fmt.Errorf("model.timeout must not be negative")
	}

	switch cfg.Pipeline.RenderMode {
	case RenderSequential, RenderConcurrent:
	default:
		return fmt.Errorf("pipeline.render_mode must be %q or %q, got %q", RenderSequential, RenderConcurrent, cfg.Pipeline.RenderMode)
	}
	if cfg.Pipeline.RenderConcurrency < 1 {
		return fmt.Errorf("pipeline.render_concurrency must be at least 1, got %d", cfg.Pipeline.RenderConcurrency)
	}
	if cfg.Pipeline.CondenseOverTokens < 1 {
		return fmt.Errorf("pipeline.condense_over_tokens must be positive, got %d", cfg.Pipeline.CondenseOverTokens)
	}
	if cfg.Pipeline.Drafts < 1 || cfg.Pipeline.Drafts > MaxDrafts {
		return fmt.Errorf("pipeline.drafts must be between 1 and %d, got %d", MaxDrafts, cfg.Pipeline.Drafts)
	}

	switch cfg.Storage.Backend {
	case StorageSQLite:
		if cfg.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite backend")
		}
	case StorageRedis:
		if cfg.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", StorageSQLite, StorageRedis, cfg.Storage.Backend)
	}
	return nil
}
