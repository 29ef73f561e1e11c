// Package config handles GoTravel configuration loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/gotravel/config.yaml, /etc/gotravel/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "gotravel", "config.yaml"))
	}

	paths = append(paths, "/etc/gotravel/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all GoTravel configuration.
type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	CORS      CORSConfig      `yaml:"cors"`
	Debug     bool            `yaml:"debug"`
	Models    ModelsConfig    `yaml:"models"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Weather   WeatherConfig   `yaml:"weather"`
	Agent     AgentConfig     `yaml:"agent"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Usage     UsageConfig     `yaml:"usage"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	DataDir   string          `yaml:"data_dir"`
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"` // text (default) or json
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
	// MaxConns caps concurrent connections accepted by the server.
	// Zero means unlimited.
	MaxConns int `yaml:"max_conns"`
}

// CORSConfig lists origins allowed to call the API from a browser.
// "*" allows any origin.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ModelsConfig defines model selection and sampling settings.
type ModelsConfig struct {
	Default     string        `yaml:"default"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	OllamaURL   string        `yaml:"ollama_url"`
	Available   []ModelConfig `yaml:"available"`
}

// ModelConfig pins a model name to a provider. Models not listed here
// are routed by name prefix; see [Config.ProviderFor].
type ModelConfig struct {
	Name     string `yaml:"name"`
	Provider string `yaml:"provider"` // gemini, anthropic, openai, ollama
}

// GeminiConfig defines Google Gemini API settings.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
}

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
}

// OpenAIConfig defines settings for OpenAI or any compatible endpoint.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// RateLimitConfig throttles outbound reasoning calls.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"` // 0 disables
	Burst             int `yaml:"burst"`
}

// CatalogConfig selects the catalog database.
type CatalogConfig struct {
	Driver string `yaml:"driver"` // postgres or sqlite3
	DSN    string `yaml:"dsn"`
}

// WeatherConfig defines the OpenWeatherMap client.
type WeatherConfig struct {
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	TimeoutSec  int    `yaml:"timeout_sec"`
	CacheTTLSec int    `yaml:"cache_ttl_sec"` // 0 disables caching
	// RedisAddr moves the cache into Redis when set. Otherwise the
	// cache is process-local.
	RedisAddr string `yaml:"redis_addr"`
}

// Configured reports whether an API key is present.
func (c WeatherConfig) Configured() bool {
	return c.APIKey != ""
}

// AgentConfig bounds each conversational turn.
type AgentConfig struct {
	MaxIterations  int    `yaml:"max_iterations"`
	TurnTimeoutSec int    `yaml:"turn_timeout_sec"`
	ParallelTools  bool   `yaml:"parallel_tools"`
	SystemPrompt   string `yaml:"system_prompt"` // replaces the built-in prompt when set
}

// TurnTimeout returns the configured turn timeout as a duration.
func (c AgentConfig) TurnTimeout() time.Duration {
	return time.Duration(c.TurnTimeoutSec) * time.Second
}

// SessionsConfig controls in-memory session retention.
type SessionsConfig struct {
	IdleTTLSec    int    `yaml:"idle_ttl_sec"`
	MaxSessions   int    `yaml:"max_sessions"`
	SweepSchedule string `yaml:"sweep_schedule"` // cron expression
}

// IdleTTL returns the idle eviction threshold as a duration.
func (c SessionsConfig) IdleTTL() time.Duration {
	return time.Duration(c.IdleTTLSec) * time.Second
}

// UsageConfig controls per-turn usage recording.
type UsageConfig struct {
	Enabled       bool   `yaml:"enabled"`
	RetentionDays int    `yaml:"retention_days"`
	PruneSchedule string `yaml:"prune_schedule"` // cron expression

	// Pricing maps model names to per-million-token prices. Models not
	// listed (local Ollama models, for example) are recorded at zero cost.
	Pricing map[string]PricingEntry `yaml:"pricing"`
}

// PricingEntry is the USD price per million tokens for one model.
type PricingEntry struct {
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// MQTTConfig defines the optional broker that receives booking events.
// Publishing is disabled when Broker is empty.
type MQTTConfig struct {
	Broker      string `yaml:"broker"` // e.g. mqtt://host:1883 or mqtts://host:8883
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id"`
}

// Configured reports whether a broker URL is present.
func (c MQTTConfig) Configured() bool {
	return c.Broker != ""
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	return cfg, nil
}

// Default returns a default configuration: a local sqlite catalog and
// the Gemini default model.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8000
	}
	if c.Models.Default == "" {
		c.Models.Default = "gemini-2.0-flash"
	}
	if c.Models.Temperature == 0 {
		c.Models.Temperature = 0.7
	}
	if c.Models.MaxTokens == 0 {
		c.Models.MaxTokens = 2048
	}
	if c.Models.OllamaURL == "" {
		c.Models.OllamaURL = "http://localhost:11434"
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.RateLimit.RequestsPerMinute > 0 && c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 1
	}
	if c.DataDir == "" {
		c.DataDir = "./db"
	}
	if c.Catalog.Driver == "" {
		c.Catalog.Driver = "sqlite3"
	}
	if c.Catalog.DSN == "" && c.Catalog.Driver == "sqlite3" {
		c.Catalog.DSN = filepath.Join(c.DataDir, "catalog.db")
	}
	if c.Weather.BaseURL == "" {
		c.Weather.BaseURL = "https://api.openweathermap.org"
	}
	if c.Weather.TimeoutSec == 0 {
		c.Weather.TimeoutSec = 10
	}
	if c.Agent.MaxIterations == 0 {
		c.Agent.MaxIterations = 5
	}
	if c.Agent.TurnTimeoutSec == 0 {
		c.Agent.TurnTimeoutSec = 60
	}
	if c.Sessions.IdleTTLSec == 0 {
		c.Sessions.IdleTTLSec = int((24 * time.Hour).Seconds())
	}
	if c.Sessions.MaxSessions == 0 {
		c.Sessions.MaxSessions = 10000
	}
	if c.Sessions.SweepSchedule == "" {
		c.Sessions.SweepSchedule = "@every 5m"
	}
	if c.Usage.RetentionDays == 0 {
		c.Usage.RetentionDays = 90
	}
	if c.Usage.PruneSchedule == "" {
		c.Usage.PruneSchedule = "@daily"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "gotravel"
	}
}

// Validate reports configuration errors that would prevent startup.
// All problems are collected rather than stopping at the first.
func (c *Config) Validate() error {
	var errs []error

	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		errs = append(errs, fmt.Errorf("listen.port %d out of range", c.Listen.Port))
	}
	if c.Listen.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("listen.max_conns must not be negative"))
	}
	switch c.Catalog.Driver {
	case "postgres", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("catalog.driver %q unsupported (valid: postgres, sqlite3)", c.Catalog.Driver))
	}
	if c.Catalog.DSN == "" {
		errs = append(errs, fmt.Errorf("catalog.dsn is required"))
	}
	if c.Models.Temperature < 0 || c.Models.Temperature > 2 {
		errs = append(errs, fmt.Errorf("models.temperature %.2f out of range [0, 2]", c.Models.Temperature))
	}
	if c.Agent.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("agent.max_iterations must be at least 1"))
	}
	if c.Sessions.MaxSessions < 1 {
		errs = append(errs, fmt.Errorf("sessions.max_sessions must be at least 1"))
	}
	for i, m := range c.Models.Available {
		if m.Name == "" {
			errs = append(errs, fmt.Errorf("models.available[%d]: name is required", i))
		}
		if _, ok := knownProviders[m.Provider]; !ok {
			errs = append(errs, fmt.Errorf("models.available[%d]: unknown provider %q", i, m.Provider))
		}
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q unsupported (valid: text, json)", c.LogFormat))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

var knownProviders = map[string]struct{}{
	"gemini":    {},
	"anthropic": {},
	"openai":    {},
	"ollama":    {},
}

// ProviderFor returns the provider that serves model. An explicit entry
// in models.available wins; otherwise the provider is inferred from the
// model name, falling back to ollama for anything unrecognized.
func (c *Config) ProviderFor(model string) string {
	for _, m := range c.Models.Available {
		if m.Name == model {
			return m.Provider
		}
	}
	name := strings.ToLower(model)
	switch {
	case strings.HasPrefix(name, "gemini"):
		return "gemini"
	case strings.HasPrefix(name, "claude"):
		return "anthropic"
	case strings.HasPrefix(name, "gpt"), strings.HasPrefix(name, "o1"), strings.HasPrefix(name, "o3"):
		return "openai"
	default:
		return "ollama"
	}
}
