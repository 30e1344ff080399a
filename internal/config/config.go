// Package config loads service configuration from an optional YAML file with
// environment variable overrides. Environment always wins, so deployments can
// ship one file and tune per-instance settings without editing it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	LLM    LLMConfig    `yaml:"llm"`
	Cache  CacheConfig  `yaml:"cache"`
	Data   DataConfig   `yaml:"data"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	CORSOrigins     []string `yaml:"cors_origins"`
	ShutdownTimeout int      `yaml:"shutdown_timeout_seconds"`
}

// LLMConfig controls the model gateway.
type LLMConfig struct {
	GeminiModel    string `yaml:"gemini_model"`
	OpenAIModel    string `yaml:"openai_model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	TTLSeconds int    `yaml:"ttl_seconds"`
	MaxEntries int    `yaml:"max_entries"`
	RedisAddr  string `yaml:"redis_addr"`
}

// DataConfig points at the patient and roster source files.
type DataConfig struct {
	PatientWorkbook string `yaml:"patient_workbook"`
	NurseRoster     string `yaml:"nurse_roster"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: 15,
		},
		LLM: LLMConfig{
			TimeoutSeconds: 30,
		},
		Cache: CacheConfig{
			TTLSeconds: 300,
			MaxEntries: 2048,
		},
		Data: DataConfig{
			PatientWorkbook: "data/patients.xlsx",
			NurseRoster:     "data/nurse_roster.csv",
		},
	}
}

// Load reads the YAML file at path (when it exists) over the defaults, then
// applies environment overrides. An empty path skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := envInt("PORT"); ok {
		c.Server.Port = v
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitOrigins(v)
	}
	if v, ok := envInt("SHUTDOWN_TIMEOUT_SECONDS"); ok {
		c.Server.ShutdownTimeout = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		c.LLM.GeminiModel = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.LLM.OpenAIModel = v
	}
	if v, ok := envInt("LLM_TIMEOUT_SECONDS"); ok {
		c.LLM.TimeoutSeconds = v
	}
	if v, ok := envInt("CACHE_TTL_SECONDS"); ok {
		c.Cache.TTLSeconds = v
	}
	if v, ok := envInt("CACHE_MAX_ENTRIES"); ok {
		c.Cache.MaxEntries = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv("PATIENT_WORKBOOK"); v != "" {
		c.Data.PatientWorkbook = v
	}
	if v := os.Getenv("NURSE_ROSTER"); v != "" {
		c.Data.NurseRoster = v
	}
}

// LLMTimeout returns the gateway call timeout.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// CacheTTL returns the response cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// ShutdownTimeout returns the graceful shutdown window.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeout) * time.Second
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
