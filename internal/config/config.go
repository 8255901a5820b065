// Package config loads MoodFlow configuration from defaults, an optional YAML
// file and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/justestif/go-moodflow/internal/catalog"
	"github.com/justestif/go-moodflow/internal/qloo"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// writeTimeoutHeadroom is added to the submission budget when
// server.write_timeout is derived.
const writeTimeoutHeadroom = 15 * time.Second

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

var (
	// ErrMissingOpenAIKey is returned when no language-model API key is configured.
	ErrMissingOpenAIKey = errors.New("missing OPENAI_API_KEY")

	// ErrMissingQlooKey is returned when no recommendation API key is configured.
	ErrMissingQlooKey = errors.New("missing QLOO_API_KEY")
)

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	OpenAI   OpenAIConfig   `koanf:"openai"`
	Qloo     QlooConfig     `koanf:"qloo"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Addr         string        `koanf:"addr"`
	FetchDelay   time.Duration `koanf:"fetch_delay"`
	RateLimit    int           `koanf:"rate_limit"`    // submissions per minute per IP, 0 disables
	WriteTimeout time.Duration `koanf:"write_timeout"` // 0 derives it from the client timeouts
}

// OpenAIConfig configures the chat-completion service.
type OpenAIConfig struct {
	APIKey  string        `koanf:"api_key"`
	BaseURL string        `koanf:"base_url"`
	Model   string        `koanf:"model"`
	Timeout time.Duration `koanf:"timeout"`
}

// QlooConfig configures the recommendation search service.
type QlooConfig struct {
	APIKey  string        `koanf:"api_key"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
	Limit   int           `koanf:"limit"`
}

// DatabaseConfig selects the session store. An empty URL keeps sessions in memory.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:       "127.0.0.1:8080",
			FetchDelay: 300 * time.Millisecond,
			RateLimit:  20,
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4.1",
			Timeout: 60 * time.Second,
		},
		Qloo: QlooConfig{
			BaseURL: "https://hackathon.api.qloo.com/v2/insights",
			Timeout: 10 * time.Second,
			Limit:   qloo.DefaultLimit,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// envMappings maps environment variable names to config paths.
var envMappings = map[string]string{
	"server_addr":          "server.addr",
	"server_fetch_delay":   "server.fetch_delay",
	"server_rate_limit":    "server.rate_limit",
	"server_write_timeout": "server.write_timeout",
	"openai_api_key":       "openai.api_key",
	"openai_base_url":      "openai.base_url",
	"openai_model":         "openai.model",
	"openai_timeout":       "openai.timeout",
	"qloo_api_key":         "qloo.api_key",
	"qloo_base_url":        "qloo.base_url",
	"qloo_timeout":         "qloo.timeout",
	"qloo_limit":           "qloo.limit",
	"database_url":         "database.url",
	"log_level":            "log.level",
	"log_format":           "log.format",
}

// envTransformFunc maps known variables to their config path and drops the rest.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Load builds the configuration: defaults, then the config file if one
// exists, then environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = cfg.SubmissionBudget() + writeTimeoutHeadroom
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the secrets required at runtime are present and that
// the limits and timeouts are consistent.
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return ErrMissingOpenAIKey
	}
	if c.Qloo.APIKey == "" {
		return ErrMissingQlooKey
	}
	if c.Qloo.Limit <= 0 || c.Qloo.Limit > qloo.DefaultLimit {
		return fmt.Errorf("qloo.limit must be between 1 and %d, got %d", qloo.DefaultLimit, c.Qloo.Limit)
	}
	if budget := c.SubmissionBudget(); c.Server.WriteTimeout < budget {
		return fmt.Errorf("server.write_timeout %s is shorter than the %s a submission may take", c.Server.WriteTimeout, budget)
	}
	return nil
}

// SubmissionBudget is the longest a submission can run when every outbound
// call hits its timeout.
func (c *Config) SubmissionBudget() time.Duration {
	n := time.Duration(len(catalog.Categories()))
	return 2*c.OpenAI.Timeout + n*c.Qloo.Timeout + (n-1)*c.Server.FetchDelay
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
