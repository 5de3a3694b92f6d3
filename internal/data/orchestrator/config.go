package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config controls the construction of the orchestrator's backing stores.
type Config struct {
	ArchivePath string
	SQLitePath  string
	SeedTimeout time.Duration
}

// DefaultConfig returns the baseline configuration used when no overrides are
// supplied.
func DefaultConfig() Config {
	return Config{
		ArchivePath: filepath.Join("data", "transcripts"),
		SQLitePath:  filepath.Join("data", "coach.db"),
		SeedTimeout: 10 * time.Second,
	}
}

// LoadConfig builds a Config from defaults and environment variables.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if value := strings.TrimSpace(os.Getenv("COACH_ARCHIVE_PATH")); value != "" {
		cfg.ArchivePath = value
	}
	if value := strings.TrimSpace(os.Getenv("COACH_CATALOG_PATH")); value != "" {
		cfg.SQLitePath = value
	}
	if value := strings.TrimSpace(os.Getenv("COACH_SEED_TIMEOUT")); value != "" {
		dur, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse COACH_SEED_TIMEOUT: %w", err)
		}
		cfg.SeedTimeout = dur
	}
	return applyDefaults(cfg), nil
}

func applyDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if strings.TrimSpace(cfg.ArchivePath) == "" {
		cfg.ArchivePath = defaults.ArchivePath
	}
	if strings.TrimSpace(cfg.SQLitePath) == "" {
		cfg.SQLitePath = defaults.SQLitePath
	}
	if cfg.SeedTimeout <= 0 {
		cfg.SeedTimeout = defaults.SeedTimeout
	}
	return cfg
}

func (c Config) validate() error {
	if strings.TrimSpace(c.ArchivePath) == "" {
		return fmt.Errorf("archive path required")
	}
	if strings.TrimSpace(c.SQLitePath) == "" {
		return fmt.Errorf("sqlite path required")
	}
	if c.SeedTimeout <= 0 {
		return fmt.Errorf("seed timeout must be positive")
	}
	return nil
}
