// Package config loads companion peer configuration from YAML.
// Each peer process has exactly one config file describing its own identity,
// the single remote peer it coordinates with, and its local policy knobs.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for one companion peer.
type Config struct {
	// Peer identifies this process and where it listens.
	Peer PeerConfig `yaml:"peer"`

	// Remote describes the peer this process coordinates with.
	Remote RemoteConfig `yaml:"remote"`

	// Coordination tunes availability and proposal behavior.
	Coordination CoordinationConfig `yaml:"coordination"`

	// Sharing controls context disclosure policy.
	Sharing SharingConfig `yaml:"sharing"`

	// Database is the path to this peer's SQLite partition.
	Database string `yaml:"database"`

	// Logging configures structured and audit logging.
	Logging LoggingConfig `yaml:"logging"`
}

// PeerConfig identifies the local peer.
type PeerConfig struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Listen string `yaml:"listen"`
}

// RemoteConfig describes the remote peer's tool endpoint.
type RemoteConfig struct {
	ID         string `yaml:"id"`
	Endpoint   string `yaml:"endpoint"`
	Timeout    string `yaml:"timeout"`
	RetryPause string `yaml:"retry_pause"`
}

// CallTimeout parses the outbound call timeout.
func (r RemoteConfig) CallTimeout() time.Duration {
	return parseDuration(r.Timeout, 30*time.Second)
}

// CallRetryPause parses the pause before the single retry.
func (r RemoteConfig) CallRetryPause() time.Duration {
	return parseDuration(r.RetryPause, 500*time.Millisecond)
}

// CoordinationConfig tunes the availability matcher and proposal machine.
type CoordinationConfig struct {
	// DefaultDurationMinutes is used when a proposal carries no duration.
	DefaultDurationMinutes int `yaml:"default_duration_minutes"`

	// MaxSlots caps the number of candidate slots returned per request.
	MaxSlots int `yaml:"max_slots"`

	// AutoAccept lists contact/event-type pairs accepted without review.
	AutoAccept []AutoAcceptRule `yaml:"auto_accept"`
}

// AutoAcceptRule marks proposals from a contact as auto-acceptable.
// An empty EventTypes list means any event type from that contact.
type AutoAcceptRule struct {
	Contact    string   `yaml:"contact"`
	EventTypes []string `yaml:"event_types"`
}

// SharingConfig controls the context disclosure filter.
type SharingConfig struct {
	// EnforcePurpose makes the disclosure purpose part of authorization.
	// Off by default: purpose is recorded in the interaction log only.
	EnforcePurpose bool `yaml:"enforce_purpose"`

	// AllowedPurposes maps contact id to purposes accepted when
	// EnforcePurpose is on. Missing contact means no purposes allowed.
	AllowedPurposes map[string][]string `yaml:"allowed_purposes"`
}

// LoggingConfig configures zap level and the interaction log sink.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	AuditPath string `yaml:"audit_path"`
}

// Default returns a config with working defaults for a local two-peer setup.
func Default() *Config {
	return &Config{
		Peer: PeerConfig{
			ID:     "alice",
			Name:   "Alice",
			Listen: "localhost:8001",
		},
		Remote: RemoteConfig{
			ID:         "bob",
			Endpoint:   "http://localhost:8002/run",
			Timeout:    "30s",
			RetryPause: "500ms",
		},
		Coordination: CoordinationConfig{
			DefaultDurationMinutes: 120,
			MaxSlots:               5,
		},
		Database: "companion.db",
		Logging: LoggingConfig{
			Level:     "info",
			AuditPath: "companion_audit.jsonl",
		},
	}
}

// Load reads a YAML config file, layering it over defaults and then
// applying environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies environment variable overrides. These take precedence
// over the file so deployments can relocate the listener and database
// without editing config.
func (c *Config) applyEnv() {
	if v := os.Getenv("COMPANION_LISTEN"); v != "" {
		c.Peer.Listen = v
	}
	if v := os.Getenv("COMPANION_DB"); v != "" {
		c.Database = v
	}
	if v := os.Getenv("COMPANION_REMOTE_ENDPOINT"); v != "" {
		c.Remote.Endpoint = v
	}
}

// Validate checks that required identity fields are present.
func (c *Config) Validate() error {
	if c.Peer.ID == "" {
		return fmt.Errorf("peer.id is required")
	}
	if c.Remote.ID == "" {
		return fmt.Errorf("remote.id is required")
	}
	if c.Coordination.DefaultDurationMinutes <= 0 {
		return fmt.Errorf("coordination.default_duration_minutes must be positive")
	}
	return nil
}

// AutoAcceptAllowed reports whether a proposal from contact with the given
// event type matches an auto-accept rule.
func (c *Config) AutoAcceptAllowed(contact, eventType string) bool {
	for _, rule := range c.Coordination.AutoAccept {
		if rule.Contact != contact {
			continue
		}
		if len(rule.EventTypes) == 0 {
			return true
		}
		for _, et := range rule.EventTypes {
			if et == eventType {
				return true
			}
		}
	}
	return false
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
