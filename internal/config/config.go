// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/roach88/cmstory/internal/content"
)

// File names inside DataDir.
const (
	ImagesFile    = "images.db"
	InquiriesFile = "inquiries.db"
)

// Config holds service settings. Command-line flags override these.
type Config struct {
	Addr            string        `env:"CMSTORY_ADDR" envDefault:"127.0.0.1:8080"`
	DataDir         string        `env:"CMSTORY_DATA_DIR" envDefault:"./data"`
	LogLevel        slog.Level    `env:"CMSTORY_LOG_LEVEL" envDefault:"INFO"`
	DefaultLang     string        `env:"CMSTORY_DEFAULT_LANG" envDefault:"KR"`
	ContentFile     string        `env:"CMSTORY_CONTENT_FILE"`
	ShutdownTimeout time.Duration `env:"CMSTORY_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	OpenAIAPIKey    string        `env:"OPENAI_API_KEY"`

	// UploadToken authorizes image uploads over HTTP. Uploads are disabled
	// when it is empty.
	UploadToken string `env:"CMSTORY_UPLOAD_TOKEN"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values env parsing cannot.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config: addr is empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: data dir is empty")
	}
	if _, ok := content.ParseLang(c.DefaultLang); !ok {
		return fmt.Errorf("config: unsupported default language %q", c.DefaultLang)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("config: shutdown timeout must be positive, got %s", c.ShutdownTimeout)
	}
	return nil
}

// Lang returns the configured default language.
func (c *Config) Lang() content.Lang {
	l, ok := content.ParseLang(c.DefaultLang)
	if !ok {
		return content.DefaultLang
	}
	return l
}

// ImagesPath is the image store database.
func (c *Config) ImagesPath() string {
	return filepath.Join(c.DataDir, ImagesFile)
}

// InquiriesPath is the inquiry log database.
func (c *Config) InquiriesPath() string {
	return filepath.Join(c.DataDir, InquiriesFile)
}
