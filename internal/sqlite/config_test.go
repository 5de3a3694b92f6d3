package sqlite

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SQLITE_PATH", "")
	t.Setenv("SQLITE_BUSY_TIMEOUT", "")
	t.Setenv("SQLITE_MAX_OPEN_CONNS", "")
	t.Setenv("SQLITE_MAX_IDLE_CONNS", "")
	t.Setenv("SQLITE_CONN_MAX_LIFETIME", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.BusyTimeout != 5*time.Second {
		t.Fatalf("busy timeout = %s", cfg.BusyTimeout)
	}
	if cfg.MaxOpenConns != 8 || cfg.MaxIdleConns != 8 {
		t.Fatalf("pool = %d/%d", cfg.MaxOpenConns, cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime != 15*time.Minute {
		t.Fatalf("conn max lifetime = %s", cfg.ConnMaxLifetime)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("SQLITE_PATH", "/tmp/coach.db")
	t.Setenv("SQLITE_BUSY_TIMEOUT", "2s")
	t.Setenv("SQLITE_MAX_OPEN_CONNS", "4")
	t.Setenv("SQLITE_MAX_IDLE_CONNS", "2")
	t.Setenv("SQLITE_CONN_MAX_LIFETIME", "1m")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Path != "/tmp/coach.db" {
		t.Fatalf("path = %q", cfg.Path)
	}
	if cfg.BusyTimeout != 2*time.Second {
		t.Fatalf("busy timeout = %s", cfg.BusyTimeout)
	}
	if cfg.MaxOpenConns != 4 || cfg.MaxIdleConns != 2 {
		t.Fatalf("pool = %d/%d", cfg.MaxOpenConns, cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime != time.Minute {
		t.Fatalf("conn max lifetime = %s", cfg.ConnMaxLifetime)
	}
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	t.Setenv("SQLITE_BUSY_TIMEOUT", "soon")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unparseable busy timeout")
	}
}
