package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/chatmesh/logging"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Supported model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Supported supervisor types.
const (
	SupervisorRoundRobin = "round_robin"
	SupervisorModel      = "model"
)

// UnlimitedRounds as engine.max_rounds lets group turns run until the
// supervisor stops them.
const UnlimitedRounds = -1

// Duration is a time.Duration written as a Go duration string ("90s", "2m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) { return time.Duration(d).String(), nil }

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the file configuration of a chatmesh process.
type Config struct {
	Log        LogConfig         `yaml:"log"`
	Engine     EngineConfig      `yaml:"engine"`
	Redis      *RedisConfig      `yaml:"redis,omitempty"`
	Models     []ModelConfig     `yaml:"models"`
	Assistants []AssistantConfig `yaml:"assistants,omitempty"`
	Supervisor SupervisorConfig  `yaml:"supervisor"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"` // json or text
	AddSource bool   `yaml:"add_source,omitempty"`
}

// EngineConfig holds the engine and orchestrator limits.
type EngineConfig struct {
	MaxConcurrentTurns int      `yaml:"max_concurrent_turns"`
	EventBufferSize    int      `yaml:"event_buffer_size"`
	MaxHistoryMessages int      `yaml:"max_history_messages"`
	TaskTimeout        Duration `yaml:"task_timeout"`
	MaxParallel        int      `yaml:"max_parallel"`
	MaxRounds          int      `yaml:"max_rounds"`
}

// RedisConfig enables the Redis session store.
type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password,omitempty"`
	DB       int      `yaml:"db,omitempty"`
	Prefix   string   `yaml:"prefix,omitempty"`
	TTL      Duration `yaml:"ttl,omitempty"`
}

// ModelConfig declares a raw model participant.
type ModelConfig struct {
	ID             string  `yaml:"id"`
	Provider       string  `yaml:"provider"`
	Model          string  `yaml:"model,omitempty"`
	Name           string  `yaml:"name,omitempty"`
	APIKey         string  `yaml:"api_key,omitempty"`
	BaseURL        string  `yaml:"base_url,omitempty"`
	Temperature    float64 `yaml:"temperature,omitempty"`
	MaxTokens      int64   `yaml:"max_tokens,omitempty"`
	ThinkingBudget int64   `yaml:"thinking_budget,omitempty"`
	ContextBudget  int     `yaml:"context_budget,omitempty"`
	// Response is the canned reply of mock models.
	Response string `yaml:"response,omitempty"`
}

// AssistantConfig declares an assistant persona on top of a model.
type AssistantConfig struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	Model         string `yaml:"model"`
	Instruction   string `yaml:"instruction,omitempty"`
	ContextBudget int    `yaml:"context_budget,omitempty"`
}

// SupervisorConfig selects the default group supervisor.
type SupervisorConfig struct {
	Type   string `yaml:"type"`
	ID     string `yaml:"id,omitempty"`
	Name   string `yaml:"name,omitempty"`
	Model  string `yaml:"model,omitempty"`  // Model id, type model only
	Prompt string `yaml:"prompt,omitempty"` // Overrides the decision prompt, type model only
	Cycles int    `yaml:"cycles,omitempty"` // Round robin only
}

// Default returns a configuration with every default applied and no models.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the YAML file at path. A .env file next to it is loaded first
// when present; ${VAR} references are expanded from the environment before
// parsing. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes, defaults and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	if c.Engine.MaxConcurrentTurns == 0 {
		c.Engine.MaxConcurrentTurns = 10
	}
	if c.Engine.EventBufferSize == 0 {
		c.Engine.EventBufferSize = 100
	}
	if c.Engine.MaxHistoryMessages == 0 {
		c.Engine.MaxHistoryMessages = 50
	}
	if c.Engine.TaskTimeout == 0 {
		c.Engine.TaskTimeout = Duration(2 * time.Minute)
	}
	if c.Engine.MaxRounds == 0 {
		c.Engine.MaxRounds = 10
	}

	if c.Redis != nil {
		if c.Redis.Prefix == "" {
			c.Redis.Prefix = "chatmesh"
		}
		if c.Redis.TTL == 0 {
			c.Redis.TTL = Duration(24 * time.Hour)
		}
	}

	if c.Supervisor.Type == "" {
		c.Supervisor.Type = SupervisorRoundRobin
	}
}

// Validate checks references and limits.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("%w: log.format must be json or text, got %q", ErrInvalidConfig, c.Log.Format)
	}

	e := c.Engine
	if e.MaxConcurrentTurns < 0 || e.EventBufferSize < 0 || e.MaxParallel < 0 {
		return fmt.Errorf("%w: engine limits must not be negative", ErrInvalidConfig)
	}
	if e.MaxRounds < UnlimitedRounds {
		return fmt.Errorf("%w: engine.max_rounds must be positive or %d for no limit, got %d", ErrInvalidConfig, UnlimitedRounds, e.MaxRounds)
	}

	if c.Redis != nil && c.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.addr is required", ErrInvalidConfig)
	}

	models := make(map[string]struct{}, len(c.Models))
	for i, m := range c.Models {
		if m.ID == "" {
			return fmt.Errorf("%w: models[%d].id is required", ErrInvalidConfig, i)
		}
		if _, dup := models[m.ID]; dup {
			return fmt.Errorf("%w: duplicate model %q", ErrInvalidConfig, m.ID)
		}
		switch m.Provider {
		case ProviderOpenAI, ProviderAnthropic, ProviderMock:
		default:
			return fmt.Errorf("%w: model %q: unknown provider %q", ErrInvalidConfig, m.ID, m.Provider)
		}
		models[m.ID] = struct{}{}
	}

	assistants := make(map[string]struct{}, len(c.Assistants))
	for i, a := range c.Assistants {
		if a.ID == "" {
			return fmt.Errorf("%w: assistants[%d].id is required", ErrInvalidConfig, i)
		}
		if _, dup := assistants[a.ID]; dup {
			return fmt.Errorf("%w: duplicate assistant %q", ErrInvalidConfig, a.ID)
		}
		if _, ok := models[a.Model]; !ok {
			return fmt.Errorf("%w: assistant %q references unknown model %q", ErrInvalidConfig, a.ID, a.Model)
		}
		assistants[a.ID] = struct{}{}
	}

	switch c.Supervisor.Type {
	case SupervisorRoundRobin:
	case SupervisorModel:
		if _, ok := models[c.Supervisor.Model]; !ok {
			return fmt.Errorf("%w: supervisor references unknown model %q", ErrInvalidConfig, c.Supervisor.Model)
		}
	default:
		return fmt.Errorf("%w: unknown supervisor type %q", ErrInvalidConfig, c.Supervisor.Type)
	}

	return nil
}

// LoggerConfig converts the log section for logging.NewLogger.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	cfg := logging.DefaultLoggerConfig()
	if lvl, err := logging.ParseLevel(c.Log.Level); err == nil {
		cfg.Level = lvl
	}
	cfg.Format = c.Log.Format
	cfg.AddSource = c.Log.AddSource
	return cfg
}
