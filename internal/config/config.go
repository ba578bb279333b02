package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Config holds runtime configuration shared across the application.
// Values come from an optional YAML file with environment variables
// layered on top, so deployments can override individual settings.
type Config struct {
	Addr              string        `yaml:"addr"`
	DatabaseURL       string        `yaml:"database_url"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
	StreamSecret      string        `yaml:"stream_secret"`
	SessionTTL        time.Duration `yaml:"session_ttl"`
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`

	// AnswerBurst bounds how many answer saves a single taker may issue
	// back-to-back before the per-taker limiter kicks in.
	AnswerBurst int `yaml:"answer_burst"`
}

// Load reads config.yaml (if present at path, which may be empty to use
// "config.yaml") and then environment variables, returning a fully
// populated Config.
func Load(path string) (Config, error) {
	cfg := Config{
		Addr:              ":5050",
		SessionTTL:        6 * time.Hour,
		KeepaliveInterval: 15 * time.Second,
		AnswerBurst:       5,
	}

	if path == "" {
		path = "config.yaml"
	}
	if raw, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Addr = ":" + v
	}
	if v := os.Getenv("ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = parseList(v)
	}
	if v := os.Getenv("STREAM_SECRET"); v != "" {
		cfg.StreamSecret = v
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SessionTTL = d
		}
	}
	if v := os.Getenv("KEEPALIVE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.KeepaliveInterval = d
		}
	}

	return cfg, nil
}

// Validate checks that required settings are present.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is empty")
	}
	if c.StreamSecret == "" {
		return fmt.Errorf("STREAM_SECRET is empty")
	}
	return nil
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}
	return values
}
