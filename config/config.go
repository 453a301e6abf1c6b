// Package config loads the larder settings: defaults, then an optional YAML
// file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/larder/ratefeed"
)

// Config holds the full larder configuration.
type Config struct {
	Listen             string        `yaml:"listen" env:"LISTEN"`
	DataFile           string        `yaml:"data_file" env:"DATA_FILE"`
	InputDir           string        `yaml:"input_dir" env:"INPUT_DIR"`
	JournalDB          string        `yaml:"journal_db" env:"JOURNAL_DB"`
	JournalKeep        int           `yaml:"journal_keep" env:"JOURNAL_KEEP"`
	MaxUploadMB        int           `yaml:"max_upload_mb" env:"MAX_UPLOAD_MB"`
	KeepUploads        bool          `yaml:"keep_uploads" env:"KEEP_UPLOADS"`
	CurrencyAPIURL     string        `yaml:"currency_api_url" env:"CURRENCY_API_URL"`
	CurrencyAPITimeout time.Duration `yaml:"currency_api_timeout" env:"CURRENCY_API_TIMEOUT"`
	AliasesFile        string        `yaml:"aliases_file" env:"ALIASES_FILE"`
	LogLevel           string        `yaml:"log_level" env:"LOG_LEVEL"`
}

// Default returns sane defaults.
func Default() *Config {
	return &Config{
		Listen:             ":5000",
		DataFile:           "data_warehouse.json",
		InputDir:           "inputs",
		JournalDB:          "db/journal.db",
		JournalKeep:        10000,
		MaxUploadMB:        20,
		KeepUploads:        true,
		CurrencyAPIURL:     ratefeed.DefaultURL,
		CurrencyAPITimeout: 5 * time.Second,
		LogLevel:           "info",
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen is required"))
	}
	if c.DataFile == "" {
		errs = append(errs, errors.New("data_file is required"))
	}
	if c.InputDir == "" {
		errs = append(errs, errors.New("input_dir is required"))
	}
	if c.JournalDB == "" {
		errs = append(errs, errors.New("journal_db is required"))
	}
	if c.JournalKeep < 0 {
		errs = append(errs, errors.New("journal_keep must be >= 0 (0 keeps everything)"))
	}
	if c.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("max_upload_mb must be > 0"))
	}
	if c.CurrencyAPITimeout <= 0 {
		errs = append(errs, errors.New("currency_api_timeout must be > 0"))
	}
	if c.CurrencyAPIURL != "" && !strings.HasPrefix(c.CurrencyAPIURL, "http://") && !strings.HasPrefix(c.CurrencyAPIURL, "https://") {
		errs = append(errs, fmt.Errorf("currency_api_url %q is not an http(s) URL", c.CurrencyAPIURL))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// MaxUploadBytes returns the upload cap in bytes.
func (c *Config) MaxUploadBytes() int64 { return int64(c.MaxUploadMB) << 20 }

// ParseLevel maps debug/info/warn/error to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log_level %q (use debug, info, warn or error)", s)
}
