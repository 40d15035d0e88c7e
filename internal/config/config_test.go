package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timezone != "America/Chicago" {
		t.Errorf("expected default timezone America/Chicago, got %q", cfg.Timezone)
	}
	if cfg.Calendar.MaxAgeMinutes != 60 {
		t.Errorf("expected max age 60, got %d", cfg.Calendar.MaxAgeMinutes)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected 0600 permissions, got %o", perm)
	}
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("listen: \":9000\"\ncalendar:\n  provider: bogus\n  horizon_days: -3\nmail:\n  provider: smtp\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9000" {
		t.Errorf("expected listen :9000, got %q", cfg.Listen)
	}
	if cfg.Calendar.Provider != ProviderICS {
		t.Errorf("expected provider fallback to ics, got %q", cfg.Calendar.Provider)
	}
	if cfg.Calendar.HorizonDays != 120 {
		t.Errorf("expected horizon default 120, got %d", cfg.Calendar.HorizonDays)
	}
	if cfg.Mail.Provider != MailerLog {
		t.Errorf("expected mail provider fallback to log, got %q", cfg.Mail.Provider)
	}
}

func TestApplyEnvOverridesSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://church:secret@db/church")
	t.Setenv("GOOGLE_API_KEY", "key-123")
	t.Setenv("CALENDAR_PROVIDER", "google")
	t.Setenv("ADMIN_USERNAME", "pastor")
	t.Setenv("ADMIN_PASSWORD", "hunter2")
	t.Setenv("CALENDAR_MAX_AGE_MINUTES", "15")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	if cfg.DatabaseURL != "postgres://church:secret@db/church" {
		t.Errorf("unexpected database url %q", cfg.DatabaseURL)
	}
	if cfg.Calendar.Provider != ProviderGoogle || cfg.Calendar.GoogleAPIKey != "key-123" {
		t.Errorf("unexpected calendar config %+v", cfg.Calendar)
	}
	if cfg.Calendar.MaxAgeMinutes != 15 {
		t.Errorf("expected max age 15, got %d", cfg.Calendar.MaxAgeMinutes)
	}
	if cfg.BasicAuth == nil || cfg.BasicAuth.Username != "pastor" || cfg.BasicAuth.Password != "hunter2" {
		t.Errorf("unexpected basic auth %+v", cfg.BasicAuth)
	}
}

func TestSaveRejectsEmptyInput(t *testing.T) {
	if err := Save("", DefaultConfig()); err == nil {
		t.Error("expected error for empty path")
	}
	if err := Save(filepath.Join(t.TempDir(), "c.yaml"), nil); err == nil {
		t.Error("expected error for nil config")
	}
}
