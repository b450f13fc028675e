package conf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the application-level configuration. Per-template settings
// (modifiers, availability policy, filters) live on the template row in
// the database; this file only carries process-wide defaults.
type Config struct {
	// Database. Driver is one of sqlite|mysql|postgres. For sqlite an
	// empty DSN means a file in the application data directory.
	DBDriver string `json:"db_driver"`
	DBDSN    string `json:"db_dsn,omitempty"`

	LogConsole bool   `json:"log_console"`
	LogLevel   string `json:"log_level"` // debug|info|warn|error

	// BaseCurrency is the ISO code all multi-currency prices are
	// recalculated into.
	BaseCurrency string `json:"base_currency"`

	// BatchSize bounds the sub-batches used by the stock sweep and the
	// currency recalculation.
	BatchSize int `json:"batch_size"`

	// DuplicateCodePolicy is the default applied to new templates:
	// first_wins or reject.
	DuplicateCodePolicy string `json:"duplicate_code_policy"`
}

// LoadOrCreate reads the config file, writing a default one on first run.
// The second return value reports whether the default was just created.
func LoadOrCreate(path string) (*Config, bool, error) {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			if err := Save(path, cfg); err != nil {
				return nil, false, fmt.Errorf("write default config: %w", err)
			}
			return cfg, true, nil
		}
		return nil, false, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, false, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, false, nil
}

func Save(path string, cfg *Config) error {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.DBDriver == "" {
		cfg.DBDriver = "sqlite"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.BaseCurrency == "" {
		cfg.BaseCurrency = "EUR"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.DuplicateCodePolicy == "" {
		cfg.DuplicateCodePolicy = "first_wins"
	}
}
