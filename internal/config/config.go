// Package config loads the service configuration.
//
// Precedence: defaults, then an optional YAML file, then environment
// variables. Missing API keys are not an error; they disable the matching
// backend.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentpanel/engine"
	"github.com/hupe1980/agentpanel/logging"
)

// Config is the complete service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Discussion DiscussionConfig `yaml:"discussion"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Redis      RedisConfig      `yaml:"redis"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr        string        `yaml:"addr" env:"AGENTPANEL_ADDR"`
	ReadTimeout time.Duration `yaml:"read_timeout" env:"AGENTPANEL_READ_TIMEOUT"`
	// WriteTimeout of zero keeps long SSE responses open.
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"AGENTPANEL_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"AGENTPANEL_SHUTDOWN_TIMEOUT"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"AGENTPANEL_CORS_ORIGINS"`
}

// DiscussionConfig tunes the discussion engine and the moderator.
type DiscussionConfig struct {
	MaxRounds        int           `yaml:"max_rounds" env:"DISCUSSION_MAX_ROUNDS"`
	RoundLimit       int           `yaml:"round_limit" env:"AGENTPANEL_ROUND_LIMIT"`
	Timeout          time.Duration `yaml:"timeout" env:"AGENTPANEL_DISCUSSION_TIMEOUT"`
	StreamInterval   time.Duration `yaml:"stream_interval" env:"AGENTPANEL_STREAM_INTERVAL"`
	ParallelTurns    bool          `yaml:"parallel_turns" env:"AGENTPANEL_PARALLEL_TURNS"`
	ModeratorBackend string        `yaml:"moderator_backend" env:"AGENTPANEL_MODERATOR_BACKEND"`
	ModeratorModel   string        `yaml:"moderator_model" env:"AGENTPANEL_MODERATOR_MODEL"`
}

// ProvidersConfig holds per-backend credentials and endpoints.
type ProvidersConfig struct {
	OpenAI OpenAIConfig `yaml:"openai"`
	Gemini GeminiConfig `yaml:"gemini"`
	Claude ClaudeConfig `yaml:"claude"`
	Ollama OllamaConfig `yaml:"ollama"`
}

// OpenAIConfig configures the OpenAI backend.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key" env:"OPENAI_API_KEY"`
	BaseURL string `yaml:"base_url" env:"OPENAI_BASE_URL"`
}

// GeminiConfig configures the Google Gemini backend.
type GeminiConfig struct {
	APIKey string `yaml:"api_key" env:"GEMINI_API_KEY,GOOGLE_GENERATIVE_AI_API_KEY"`
}

// ClaudeConfig configures the Anthropic backend.
type ClaudeConfig struct {
	APIKey  string `yaml:"api_key" env:"ANTHROPIC_API_KEY"`
	BaseURL string `yaml:"base_url" env:"ANTHROPIC_BASE_URL"`
}

// OllamaConfig configures the local Ollama backend. It needs no key and is
// enabled by default.
type OllamaConfig struct {
	Enabled bool   `yaml:"enabled" env:"OLLAMA_ENABLED"`
	BaseURL string `yaml:"base_url" env:"OLLAMA_BASE_URL"`
}

// RedisConfig selects the Redis conversation store when Addr is set.
type RedisConfig struct {
	Addr      string `yaml:"addr" env:"AGENTPANEL_REDIS_ADDR"`
	Password  string `yaml:"password" env:"AGENTPANEL_REDIS_PASSWORD"`
	DB        int    `yaml:"db" env:"AGENTPANEL_REDIS_DB"`
	KeyPrefix string `yaml:"key_prefix" env:"AGENTPANEL_REDIS_PREFIX"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level" env:"AGENTPANEL_LOG_LEVEL"`
	// Format is json or text.
	Format string `yaml:"format" env:"AGENTPANEL_LOG_FORMAT"`
	// Backend is slog or zap.
	Backend string `yaml:"backend" env:"AGENTPANEL_LOGGER"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Discussion: DiscussionConfig{
			MaxRounds:        engine.DefaultConfig.MaxRounds,
			RoundLimit:       engine.DefaultConfig.RoundLimit,
			StreamInterval:   engine.DefaultConfig.StreamInterval,
			ModeratorBackend: "openai",
			ModeratorModel:   "gpt-4o",
		},
		Providers: ProvidersConfig{
			Ollama: OllamaConfig{Enabled: true, BaseURL: "http://localhost:11434"},
		},
		Redis: RedisConfig{KeyPrefix: "agentpanel:"},
		Log:   LogConfig{Level: "info", Format: "json", Backend: "slog"},
	}
}

// Loader builds a Config.
type Loader struct {
	configPath string
	lookupEnv  func(string) (string, bool)
	validators []func(*Config) error
}

// NewLoader creates a loader reading the process environment.
func NewLoader() *Loader {
	return &Loader{lookupEnv: os.LookupEnv}
}

// WithConfigPath sets the YAML file. A missing file is not an error.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithLookupEnv replaces the environment source.
func (l *Loader) WithLookupEnv(fn func(string) (string, bool)) *Loader {
	l.lookupEnv = fn
	return l
}

// WithValidator adds a check run after Validate.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load builds and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// setFieldsFromEnv walks v and sets every field tagged with env. A tag may
// list alternative variable names separated by commas; the first one set
// wins.
func (l *Loader) setFieldsFromEnv(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}
		for _, key := range strings.Split(envTag, ",") {
			value, ok := l.lookupEnv(key)
			if !ok || value == "" {
				continue
			}
			if err := setFieldValue(field, value); err != nil {
				return fmt.Errorf("failed to set %s: %w", key, err)
			}
			break
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server timeouts must not be negative"))
	}

	d := c.Discussion
	if d.RoundLimit < 1 {
		errs = append(errs, fmt.Errorf("discussion.round_limit must be at least 1, got %d", d.RoundLimit))
	}
	if d.MaxRounds < 1 || d.MaxRounds > d.RoundLimit {
		errs = append(errs, fmt.Errorf("discussion.max_rounds must be between 1 and %d, got %d", d.RoundLimit, d.MaxRounds))
	}
	if d.Timeout < 0 {
		errs = append(errs, errors.New("discussion.timeout must not be negative"))
	}
	if d.StreamInterval < 0 {
		errs = append(errs, errors.New("discussion.stream_interval must not be negative"))
	}
	if d.ModeratorBackend == "" {
		errs = append(errs, errors.New("discussion.moderator_backend must not be empty"))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}
	switch c.Log.Backend {
	case "slog", "zap":
	default:
		errs = append(errs, fmt.Errorf("log.backend must be slog or zap, got %q", c.Log.Backend))
	}

	if c.Providers.Ollama.Enabled && c.Providers.Ollama.BaseURL == "" {
		errs = append(errs, errors.New("providers.ollama.base_url must be set when ollama is enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// EngineConfig maps the discussion settings onto engine.Config.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		MaxRounds:      c.Discussion.MaxRounds,
		RoundLimit:     c.Discussion.RoundLimit,
		Timeout:        c.Discussion.Timeout,
		StreamInterval: c.Discussion.StreamInterval,
		ParallelTurns:  c.Discussion.ParallelTurns,
	}
}

// Services reports which backends are configured, keyed by backend id.
func (c *Config) Services() map[string]bool {
	return map[string]bool{
		"openai": c.Providers.OpenAI.APIKey != "",
		"gemini": c.Providers.Gemini.APIKey != "",
		"claude": c.Providers.Claude.APIKey != "",
		"ollama": c.Providers.Ollama.Enabled,
	}
}
