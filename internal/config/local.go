package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LocalConfig holds configuration for local daemon mode
type LocalConfig struct {
	Daemon     DaemonConfig     `yaml:"daemon"`
	Engagement EngagementConfig `yaml:"engagement"`
	Storage    StorageConfig    `yaml:"storage"`
	Queue      QueueConfig      `yaml:"queue"`
}

// DaemonConfig holds daemon server settings
type DaemonConfig struct {
	Port     int    `yaml:"port"`
	Bind     string `yaml:"bind"`
	LogLevel string `yaml:"log_level"`
}

// EngagementConfig tunes the decision engine
type EngagementConfig struct {
	// Production rejects forced nudge generation and degrades missing
	// templates to encouragement instead of failing the request.
	Production bool `yaml:"production"`

	NudgeCooldownHours int `yaml:"nudge_cooldown_hours"`
	NudgeTTLHours      int `yaml:"nudge_ttl_hours"`
	SwitchCooldownMins int `yaml:"switch_cooldown_minutes"`
	SwitchAfterMinutes int `yaml:"switch_after_minutes"`

	Risk RiskConfig `yaml:"risk"`
}

// RiskConfig tunes risk classification thresholds
type RiskConfig struct {
	InactiveEscalationDays int     `yaml:"inactive_escalation_days"`
	InactiveHighDays       int     `yaml:"inactive_high_days"`
	LowCompletionFloor     float64 `yaml:"low_completion_floor"`
	HighCompletionCeiling  float64 `yaml:"high_completion_ceiling"`
}

// StorageConfig selects the learner persistence backend
type StorageConfig struct {
	// Backend is "local" (JSON files plus SQLite interaction log) or
	// "postgres" for shared classroom deployments.
	Backend     string `yaml:"backend"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"-"` // Loaded from secrets.yaml
}

// QueueConfig holds optional RabbitMQ fan-out settings
type QueueConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"-"` // Loaded from secrets.yaml
}

// SecretsConfig holds connection strings loaded from secrets.yaml
type SecretsConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
	AMQPURL     string `yaml:"amqp_url"`
}

// RekindleDir returns the path to ~/.rekindle
func RekindleDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".rekindle"), nil
}

// EnsureRekindleDir creates ~/.rekindle and subdirectories if they don't exist
func EnsureRekindleDir() (string, error) {
	dir, err := RekindleDir()
	if err != nil {
		return "", err
	}

	subdirs := []string{
		"",
		"logs",
		"learners",
	}

	for _, subdir := range subdirs {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}

	return dir, nil
}

// DefaultLocalConfig returns sensible defaults for local mode
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		Daemon: DaemonConfig{
			Port:     7433,
			Bind:     "127.0.0.1",
			LogLevel: "info",
		},
		Engagement: EngagementConfig{
			Production:         true,
			NudgeCooldownHours: 24,
			NudgeTTLHours:      12,
			SwitchCooldownMins: 15,
			SwitchAfterMinutes: 20,
			Risk: RiskConfig{
				InactiveEscalationDays: 3,
				InactiveHighDays:       7,
				LowCompletionFloor:     1.0 / 3.0,
				HighCompletionCeiling:  0.8,
			},
		},
		Storage: StorageConfig{
			Backend:    "local",
			SQLitePath: "interactions.db",
		},
		Queue: QueueConfig{
			Enabled: false,
		},
	}
}

// LoadLocalConfig loads configuration from ~/.rekindle/config.yaml
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := RekindleDir()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(dir, "config.yaml")

	// If config doesn't exist, return defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultLocalConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultLocalConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Load secrets (connection strings)
	if err := loadSecrets(dir, cfg); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}

	return cfg, nil
}

// loadSecrets loads connection strings from secrets.yaml
func loadSecrets(dir string, cfg *LocalConfig) error {
	secretsPath := filepath.Join(dir, "secrets.yaml")

	// If secrets file doesn't exist, skip
	if _, err := os.Stat(secretsPath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(secretsPath)
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}

	var secrets SecretsConfig
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}

	cfg.Storage.PostgresDSN = secrets.PostgresDSN
	cfg.Queue.URL = secrets.AMQPURL

	return nil
}

// SaveLocalConfig saves configuration to ~/.rekindle/config.yaml
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsureRekindleDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(dir, "config.yaml")

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// SaveSecrets saves connection strings to ~/.rekindle/secrets.yaml
func SaveSecrets(secrets SecretsConfig) error {
	dir, err := EnsureRekindleDir()
	if err != nil {
		return err
	}

	secretsPath := filepath.Join(dir, "secrets.yaml")

	data, err := yaml.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}

	// Write with restricted permissions (owner read/write only)
	if err := os.WriteFile(secretsPath, data, 0600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}

	return nil
}
