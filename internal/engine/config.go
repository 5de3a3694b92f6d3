package engine

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mkhalidji/callcoach/internal/common"
	"github.com/mkhalidji/callcoach/internal/rubric"
)

// Config controls the analysis engine: which dimensions run by default, how
// traffic splits between pipeline variants, and the evaluator's retry budget.
type Config struct {
	Dimensions     []string
	RolloutPercent int
	CacheEnabled   bool
	EvalTimeout    time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	CallType       string
}

// DefaultConfig returns the engine defaults: every known dimension, legacy
// pipeline only, caching on.
func DefaultConfig() Config {
	cfg := Config{CacheEnabled: true}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig builds the engine configuration from COACH_* environment
// variables layered over the defaults.
func LoadConfig() (Config, error) {
	cfg := Config{CacheEnabled: true}
	if dims := strings.TrimSpace(os.Getenv("COACH_DIMENSIONS")); dims != "" {
		for _, dim := range strings.Split(dims, ",") {
			if dim = strings.TrimSpace(dim); dim != "" {
				cfg.Dimensions = append(cfg.Dimensions, dim)
			}
		}
	}
	if percent := strings.TrimSpace(os.Getenv("COACH_ROLLOUT_PERCENT")); percent != "" {
		value, err := strconv.Atoi(percent)
		if err != nil {
			common.Logger().Warn("engine: unparseable COACH_ROLLOUT_PERCENT, keeping legacy pipeline",
				"value", percent, "error", err)
		} else {
			cfg.RolloutPercent = value
		}
	}
	if enabled := strings.TrimSpace(os.Getenv("COACH_CACHE_ENABLED")); enabled != "" {
		value, err := strconv.ParseBool(enabled)
		if err != nil {
			return Config{}, fmt.Errorf("parse COACH_CACHE_ENABLED: %w", err)
		}
		cfg.CacheEnabled = value
	}
	var err error
	if cfg.EvalTimeout, err = envDuration("COACH_EVAL_TIMEOUT"); err != nil {
		return Config{}, err
	}
	if attempts := strings.TrimSpace(os.Getenv("COACH_RETRY_ATTEMPTS")); attempts != "" {
		value, err := strconv.Atoi(attempts)
		if err != nil {
			return Config{}, fmt.Errorf("parse COACH_RETRY_ATTEMPTS: %w", err)
		}
		if value > 0 {
			cfg.RetryAttempts = value
		}
	}
	if cfg.RetryBaseDelay, err = envDuration("COACH_RETRY_BASE_DELAY"); err != nil {
		return Config{}, err
	}
	if cfg.RetryMaxDelay, err = envDuration("COACH_RETRY_MAX_DELAY"); err != nil {
		return Config{}, err
	}
	if callType := strings.TrimSpace(os.Getenv("COACH_CALL_TYPE")); callType != "" {
		cfg.CallType = callType
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.Dimensions) == 0 {
		c.Dimensions = rubric.DefaultDimensions()
	}
	if c.RolloutPercent < 0 {
		c.RolloutPercent = 0
	}
	if c.RolloutPercent > 100 {
		c.RolloutPercent = 100
	}
	if c.EvalTimeout <= 0 {
		c.EvalTimeout = 60 * time.Second
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 500 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 8 * time.Second
	}
	if strings.TrimSpace(c.CallType) == "" {
		c.CallType = "discovery"
	}
}

func envDuration(key string) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}
