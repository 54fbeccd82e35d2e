package config

import (
	"path/filepath"
	"testing"
	"time"

	"outreach/internal/limits"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outreach.yaml")
	cfg := Default()
	cfg.Account.Username = "tester"
	cfg.Account.CreatedAt = "2025-06-01"
	cfg.Session.Mode = "aggressive"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Account.Username != "tester" || got.Mode() != limits.ModeAggressive {
		t.Fatalf("got %+v", got)
	}
	want := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if !got.AccountCreatedAt().Equal(want) {
		t.Fatalf("createdAt = %v", got.AccountCreatedAt())
	}
}

func TestDefaultsAreSafe(t *testing.T) {
	cfg := Default()
	if cfg.Mode() != limits.ModeSafe {
		t.Fatal("default mode must be safe")
	}
	if cfg.Session.SendFollow || cfg.Session.SendDM {
		t.Fatal("action toggles must default off")
	}
	if cfg.Session.MinFollowers != 3000 {
		t.Fatalf("minFollowers = %d", cfg.Session.MinFollowers)
	}
	if cfg.FlushInterval() != 30*time.Second {
		t.Fatalf("flush interval = %v", cfg.FlushInterval())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Session.Mode = "reckless"
	if err := cfg.Validate(); err == nil {
		t.Fatal("bad mode accepted")
	}
	cfg = Default()
	cfg.Protection.WakeHour = 25
	if err := cfg.Validate(); err == nil {
		t.Fatal("bad wake hour accepted")
	}
	cfg = Default()
	cfg.Account.Platform = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty platform accepted")
	}
}

func TestMaxErrorsModeDefaults(t *testing.T) {
	cfg := Default()
	cfg.Session.MaxErrorsBeforeStop = 0
	if got := cfg.MaxErrors(); got != 3 {
		t.Fatalf("safe default = %d, want 3", got)
	}
	cfg.Session.Mode = "aggressive"
	if got := cfg.MaxErrors(); got != 5 {
		t.Fatalf("aggressive default = %d, want 5", got)
	}
	cfg.Session.MaxErrorsBeforeStop = 7
	if got := cfg.MaxErrors(); got != 7 {
		t.Fatalf("explicit value = %d, want 7", got)
	}
}

func TestAccountCreatedAtUnknown(t *testing.T) {
	cfg := Default()
	if !cfg.AccountCreatedAt().IsZero() {
		t.Fatal("empty createdAt should be zero time")
	}
	cfg.Account.CreatedAt = "not-a-date"
	if !cfg.AccountCreatedAt().IsZero() {
		t.Fatal("unparseable createdAt should be zero time")
	}
}
