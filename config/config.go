// Package config loads the supervisor configuration from an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"polycode/supervisor-app/lib"
)

// ErrMissingCredential is returned when a required provider key is absent.
var ErrMissingCredential = errors.New("missing required credential")

const (
	GeminiKeyEnv = "GEMINI_API_KEY"
	SearchKeyEnv = "TAVILY_API_KEY"
	envPrefix    = "SUPERVISOR"
)

// Config holds all configuration for a supervisor process.
type Config struct {
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Search     SearchConfig     `mapstructure:"search"`
	Graph      GraphConfig      `mapstructure:"graph"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Tools      ToolsConfig      `mapstructure:"tools"`
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Log        LogConfig        `mapstructure:"log"`
}

// GeminiConfig holds the reasoning provider settings.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model" validate:"required"`
}

// SearchConfig holds the information retrieval provider settings.
type SearchConfig struct {
	APIKey     string `mapstructure:"api_key"`
	MaxResults int    `mapstructure:"max_results" validate:"min=1,max=5"`
	Endpoint   string `mapstructure:"endpoint" validate:"omitempty,url"`
	// Fallback enables the DuckDuckGo scraper when Tavily fails.
	Fallback bool `mapstructure:"fallback"`
}

type GraphConfig struct {
	MaxCycles int `mapstructure:"max_cycles" validate:"min=1"`
}

type WorkerConfig struct {
	MaxSteps int `mapstructure:"max_steps" validate:"min=1"`
}

type SupervisorConfig struct {
	DecisionAttempts int `mapstructure:"decision_attempts" validate:"min=1,max=10"`
}

type ToolsConfig struct {
	CodeTimeout time.Duration `mapstructure:"code_timeout" validate:"gt=0"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// StoreConfig selects where finished transcripts are kept.
type StoreConfig struct {
	Backend string      `mapstructure:"backend" validate:"oneof=memory redis"`
	Redis   RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"min=0"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.max_results", 5)
	v.SetDefault("search.endpoint", "")
	v.SetDefault("search.fallback", true)
	v.SetDefault("graph.max_cycles", 25)
	v.SetDefault("worker.max_steps", 8)
	v.SetDefault("supervisor.decision_attempts", 1)
	v.SetDefault("tools.code_timeout", 10*time.Second)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.ttl", 24*time.Hour)
	v.SetDefault("store.redis.prefix", "supervisor:run:")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration from path (optional) and the environment.
// Environment variables use the SUPERVISOR_ prefix with dots replaced by
// underscores; the provider keys are also read from GEMINI_API_KEY and
// TAVILY_API_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("gemini.api_key", envPrefix+"_GEMINI_API_KEY", GeminiKeyEnv); err != nil {
		return nil, err
	}
	if err := v.BindEnv("search.api_key", envPrefix+"_SEARCH_API_KEY", SearchKeyEnv); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks credentials first so that a missing key is reported as
// ErrMissingCredential, then the remaining field rules and the settings of
// the selected store backend.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Gemini.APIKey) == "" {
		missing = append(missing, GeminiKeyEnv)
	}
	if strings.TrimSpace(c.Search.APIKey) == "" {
		missing = append(missing, SearchKeyEnv)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredential, strings.Join(missing, ", "))
	}
	if err := lib.NewValidator().Validate(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Store.Backend == "redis" && strings.TrimSpace(c.Store.Redis.Addr) == "" {
		return errors.New("invalid config: store.redis.addr is required when store.backend is redis")
	}
	return nil
}
