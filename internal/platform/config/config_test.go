package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("AUTH_MODE", "")
	t.Setenv("TZ", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.DBDriver != DriverMemory {
		t.Fatalf("expected memory driver without DSN, got %q", cfg.DBDriver)
	}
	if cfg.AuthMode != AuthModeDev {
		t.Fatalf("expected dev auth mode, got %q", cfg.AuthMode)
	}
	if cfg.Location == nil || cfg.Location.String() != "UTC" {
		t.Fatalf("expected UTC location, got %v", cfg.Location)
	}
	if cfg.WriteTimeout != 10*time.Second || cfg.JWTTTL != 168*time.Hour {
		t.Fatalf("unexpected durations: %v %v", cfg.WriteTimeout, cfg.JWTTTL)
	}
}

func TestLoad_DSNImpliesPostgres(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("DB_DSN", "postgres://u:p@localhost/db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.DBDriver != DriverPostgres {
		t.Fatalf("expected postgres, got %q", cfg.DBDriver)
	}
}

func TestLoad_RejectsInvalidCombos(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", "")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for sqlite without DSN")
	}

	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("AUTH_MODE", "jwt")
	t.Setenv("JWT_SECRET", "short")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for short jwt secret")
	}
}

func TestLoad_FileThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dawailo.yaml")
	if err := os.WriteFile(path, []byte("PORT: \"9090\"\nTZ: Asia/Kolkata\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DB_DSN", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("AUTH_MODE", "")
	t.Setenv("TZ", "")
	t.Setenv("PORT", "7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Port != "7070" {
		t.Fatalf("expected env PORT to win, got %q", cfg.Port)
	}
	if cfg.Location.String() != "Asia/Kolkata" {
		t.Fatalf("expected file TZ, got %q", cfg.Location)
	}
}
