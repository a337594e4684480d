package config

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, "DATABASE_URL", "postgres://localhost/consent_test")
	setEnv(t, "ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.SweepInterval() != 30*time.Second {
		t.Errorf("expected 30s sweep interval, got %v", cfg.SweepInterval())
	}
	if cfg.RequestTimeout() != 15*time.Second {
		t.Errorf("expected 15s request timeout, got %v", cfg.RequestTimeout())
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	setEnv(t, "DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestValidate_ProductionRequiresSigningKey(t *testing.T) {
	cfg := &Config{Env: "production"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for production without JWT_SIGNING_KEY")
	}

	cfg.JWTSigningKey = "short"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for short signing key")
	}

	cfg.JWTSigningKey = "0123456789abcdef0123456789abcdef"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_DevAllowsMissingKey(t *testing.T) {
	cfg := &Config{Env: "development"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSweepInterval_Custom(t *testing.T) {
	cfg := &Config{SweepIntervalSeconds: 60}
	if cfg.SweepInterval() != time.Minute {
		t.Errorf("expected 1m, got %v", cfg.SweepInterval())
	}
}

func TestValidate_SweepInterval(t *testing.T) {
	cfg := &Config{Env: "development", SweepIntervalSeconds: -1}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative sweep interval")
	}

	// Zero is valid and means "use the default".
	cfg.SweepIntervalSeconds = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SweepInterval() != 30*time.Second {
		t.Errorf("expected default 30s for unset interval, got %v", cfg.SweepInterval())
	}
}

func TestLoad_DevWarningUsesStructuredLog(t *testing.T) {
	setEnv(t, "DATABASE_URL", "postgres://localhost/consent_test")
	setEnv(t, "ENV", "development")

	var buf bytes.Buffer
	old := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = old })

	if _, err := Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "development mode") || !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("expected structured dev-mode warning, got %q", out)
	}
}
