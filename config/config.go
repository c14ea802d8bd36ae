// Package config loads the service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Model    ModelConfig    `yaml:"model"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Feed     FeedConfig     `yaml:"feed"`
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
}

type ModelConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
	// SaveOnExit writes the artifact back unchanged on shutdown.
	SaveOnExit bool `yaml:"save_on_exit"`
	Watch      bool `yaml:"watch"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type FeedConfig struct {
	RecentSize int `yaml:"recent_size"`
}

func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:           8080,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			AllowedOrigins: []string{"*"},
			MaxBodyBytes:   1 << 16,
		},
		Model: ModelConfig{
			Type: "random_forest",
			Path: "./models/wine_quality_model.json",
		},
		Database: DatabaseConfig{
			Path: "./data/predictions.db",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Feed: FeedConfig{
			RecentSize: 50,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return config, config.Validate()
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

func (c *Config) Validate() error {
	var problems []string
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		problems = append(problems, fmt.Sprintf("http.port %d out of range", c.HTTP.Port))
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		problems = append(problems, "http.max_body_bytes must be positive")
	}
	if c.Model.Path == "" {
		problems = append(problems, "model.path is required")
	}
	switch c.Model.Type {
	case "", "random_forest", "decision_tree":
	default:
		problems = append(problems, fmt.Sprintf("model.type %q is not supported", c.Model.Type))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q must be json or console", c.Log.Format))
	}
	if c.Feed.RecentSize <= 0 {
		problems = append(problems, "feed.recent_size must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
