package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"outreach/internal/limits"
)

// Config is the application's configuration model.
// It captures the acting account, session caps, protection policy, and storage.
type Config struct {
	Account    AccountConfig    `yaml:"account"`
	Session    SessionConfig    `yaml:"session"`
	Protection ProtectionConfig `yaml:"protection"`
	Storage    StorageConfig    `yaml:"storage"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type AccountConfig struct {
	Username string `yaml:"username"`
	Platform string `yaml:"platform"`
	// Account creation date (YYYY-MM-DD) driving the warmup stage.
	// Empty means unknown; the account is treated as brand new.
	CreatedAt string `yaml:"createdAt"`
}

type SessionConfig struct {
	// Preset family: "safe" or "aggressive". Chosen once at session start
	// and never mutated at runtime.
	Mode string `yaml:"mode"`
	// Caps for a single run
	MaxTargets          int `yaml:"maxTargets"`
	MaxErrorsBeforeStop int `yaml:"maxErrorsBeforeStop"`
	// Minimum follower count a profile needs before follow/DM are attempted
	MinFollowers int `yaml:"minFollowers"`
	// Action toggles
	SendFollow bool `yaml:"sendFollow"`
	SendDM     bool `yaml:"sendDM"`
	// DM template selection
	MessageCategory string `yaml:"messageCategory"`
	Niche           string `yaml:"niche"`
}

type ProtectionConfig struct {
	// Deny actions before this local hour (owner asleep)
	WakeHour          int  `yaml:"wakeHour"`
	EnforceHumanHours bool `yaml:"enforceHumanHours"`
	// Trust score below which the account is auto-paused by callers
	TrustPauseThreshold float64 `yaml:"trustPauseThreshold"`
}

type StorageConfig struct {
	DBPath        string `yaml:"dbPath"`
	CheckpointDir string `yaml:"checkpointDir"`
	// Background checkpoint flush interval in seconds
	FlushIntervalSeconds int    `yaml:"flushIntervalSeconds"`
	TargetsCSV           string `yaml:"targetsCSV"`
}

type MetricsConfig struct {
	// Listen address for /metrics, e.g. ":9090". Empty disables the server.
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Account: AccountConfig{Username: "default", Platform: "instagram"},
		Session: SessionConfig{
			Mode:                string(limits.ModeSafe),
			MaxTargets:          20,
			MaxErrorsBeforeStop: 3,
			MinFollowers:        3000,
			SendFollow:          false,
			SendDM:              false,
			MessageCategory:     "cold_outreach",
			Niche:               "content",
		},
		Protection: ProtectionConfig{
			WakeHour:            6,
			EnforceHumanHours:   true,
			TrustPauseThreshold: 30,
		},
		Storage: StorageConfig{
			DBPath:               "./data/outreach.db",
			CheckpointDir:        "./checkpoints",
			FlushIntervalSeconds: 30,
			TargetsCSV:           "./data/targets.csv",
		},
		Metrics: MetricsConfig{Addr: ""},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Mode returns the session's preset family, defaulting to safe.
func (c Config) Mode() limits.Mode {
	if c.Session.Mode == string(limits.ModeAggressive) {
		return limits.ModeAggressive
	}
	return limits.ModeSafe
}

// AccountCreatedAt parses the configured account creation date.
// Returns zero time when unknown.
func (c Config) AccountCreatedAt() time.Time {
	if c.Account.CreatedAt == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", c.Account.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// MaxErrors returns the error threshold that stops a session: the
// configured value, or the mode default (safe 3, aggressive 5).
func (c Config) MaxErrors() int {
	if c.Session.MaxErrorsBeforeStop > 0 {
		return c.Session.MaxErrorsBeforeStop
	}
	if c.Mode() == limits.ModeAggressive {
		return 5
	}
	return 3
}

// FlushInterval returns the checkpoint flush interval as a duration.
func (c Config) FlushInterval() time.Duration {
	if c.Storage.FlushIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Storage.FlushIntervalSeconds) * time.Second
}

// Validate rejects configurations the run loop cannot honor.
func (c Config) Validate() error {
	if c.Account.Platform == "" {
		return errors.New("account.platform is required")
	}
	if m := c.Session.Mode; m != "" && m != string(limits.ModeSafe) && m != string(limits.ModeAggressive) {
		return fmt.Errorf("session.mode must be %q or %q", limits.ModeSafe, limits.ModeAggressive)
	}
	if c.Protection.WakeHour < 0 || c.Protection.WakeHour > 23 {
		return errors.New("protection.wakeHour must be within 0-23")
	}
	return nil
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	if v := os.Getenv("OUTREACH_DB"); v != "" && c.Storage.DBPath == "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("OUTREACH_CHECKPOINT_DIR"); v != "" && c.Storage.CheckpointDir == "" {
		c.Storage.CheckpointDir = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" && c.Metrics.Addr == "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("OUTREACH_LOG_LEVEL"); v != "" && c.Logging.Level == "" {
		c.Logging.Level = v
	}
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
