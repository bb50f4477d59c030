// Package config loads the engine configuration: operator identity,
// data locations, tuning knobs, and optional mode parameter
// overrides.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/sendwatch/internal/policy"
)

// Config holds all configurable engine parameters.
type Config struct {
	// Operator is the single actor authorized for privileged
	// operations (mode, kill-switch, step mode, approve/reject).
	Operator string `yaml:"operator"`

	// DataDir holds the history database, record store, and audit log.
	DataDir string `yaml:"data_dir"`

	// InitialLevel is the mode level at startup.
	InitialLevel int `yaml:"initial_level"`

	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
	ApprovalTTL     time.Duration `yaml:"approval_ttl"`

	// Allowlist optionally restricts external recipients to a
	// pattern file (exact addresses or @domain wildcards). Empty
	// means no restriction.
	Allowlist string `yaml:"allowlist,omitempty"`

	// Suppression points at the do-not-contact YAML. Empty falls
	// back to <data_dir>/do-not-contact.yaml; a missing file is an
	// empty list.
	Suppression string `yaml:"suppression,omitempty"`

	// Levels optionally replaces the built-in mode parameter table.
	// When present it must define all six levels and stay monotonic.
	Levels []policy.Parameters `yaml:"levels,omitempty"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Operator:        "operator",
		DataDir:         defaultDataDir(),
		InitialLevel:    3,
		DeliveryTimeout: 30 * time.Second,
		ApprovalTTL:     24 * time.Hour,
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "sendwatch")
	}
	return filepath.Join(home, ".sendwatch")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "sendwatch", "config.yaml")
	}
	return filepath.Join(home, ".sendwatch", "config.yaml")
}

// HistoryDBPath returns the SQLite history database path.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// RecordsDir returns the approval record store directory.
func (c *Config) RecordsDir() string {
	return filepath.Join(c.DataDir, "records")
}

// AuditLogPath returns the audit log path.
func (c *Config) AuditLogPath() string {
	return filepath.Join(c.DataDir, "audit.jsonl")
}

// SuppressionPath returns the do-not-contact list path.
func (c *Config) SuppressionPath() string {
	if c.Suppression != "" {
		return c.Suppression
	}
	return filepath.Join(c.DataDir, "do-not-contact.yaml")
}

// StatePath returns the persisted policy state path.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "state.json")
}

// OutboxDir returns the delivery outbox directory.
func (c *Config) OutboxDir() string {
	return filepath.Join(c.DataDir, "outbox")
}

// LevelTable returns the effective mode parameter table: the
// override if configured, the built-in table otherwise. Overrides
// that are incomplete or non-monotonic are rejected.
func (c *Config) LevelTable() (policy.LevelTable, error) {
	if len(c.Levels) == 0 {
		return policy.DefaultLevels(), nil
	}
	if len(c.Levels) != int(policy.MaxLevel) {
		return policy.LevelTable{}, fmt.Errorf("config: levels override must define %d levels, got %d", policy.MaxLevel, len(c.Levels))
	}
	var table policy.LevelTable
	copy(table[:], c.Levels)
	if err := policy.ValidateMonotonic(table); err != nil {
		return policy.LevelTable{}, fmt.Errorf("config: levels override rejected: %w", err)
	}
	return table, nil
}

func (c *Config) validate() error {
	if !policy.Level(c.InitialLevel).Valid() {
		return fmt.Errorf("config: initial_level %d outside [%d, %d]", c.InitialLevel, policy.MinLevel, policy.MaxLevel)
	}
	if _, err := c.LevelTable(); err != nil {
		return err
	}
	return nil
}

// Load loads the configuration from a YAML file. Empty path falls
// back to the default location. Missing file returns defaults.
// Invalid YAML or invalid values return an error.
func Load(path string) (*Config, error) {
	cfg, _, err := LoadWithHash(path)
	return cfg, err
}

// LoadWithHash loads the configuration and returns the SHA-256 hash
// of the raw YAML bytes on disk. When no file exists (defaults
// used), the hash is the SHA-256 of empty input.
func LoadWithHash(path string) (*Config, string, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			h := sha256.Sum256(nil)
			return DefaultConfig(), "sha256:" + hex.EncodeToString(h[:]), nil
		}
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	// Start with defaults, YAML overwrites only specified fields
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, "", err
	}

	return cfg, hash, nil
}

// DefaultConfigYAML returns a commented YAML string for init.
func DefaultConfigYAML() string {
	return `# sendwatch engine configuration
# Generated by: sendwatch init

# The single actor authorized for privileged operations:
# mode changes, kill-switch, step mode, approve/reject.
operator: operator

# Data directory for the history database, approval records,
# and the audit log.
#data_dir: ~/.sendwatch

# Mode level at startup (1 = gandhi ... 6 = genghis).
initial_level: 3

# Bound on a single delivery attempt.
delivery_timeout: 30s

# How long a step-mode approval stays confirmable.
approval_ttl: 24h

# Optional: restrict external recipients to a pattern file
# (one exact address or @domain wildcard per line).
#allowlist: ~/.sendwatch/allowlist.txt

# Do-not-contact list (opt-outs). Defaults to
# <data_dir>/do-not-contact.yaml; a missing file is an empty list.
#suppression: ~/.sendwatch/do-not-contact.yaml

# Optional: replace the built-in mode parameter table.
# Must define all six levels and every threshold must relax
# (or hold) as the level rises, or the config is rejected.
#levels:
#  - daily_outreach_cap: 2
#    min_days_between_contact_messages: 7
#    max_messages_per_contact_per_week: 1
#    max_messages_per_company_per_week: 2
#    engagement_decay_threshold: 0.85
#    overcommunication_detection: true
#    strictness: maximum
#  ...
`
}
