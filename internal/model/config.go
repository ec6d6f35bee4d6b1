package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// MailboxConfig holds the IMAP connection settings. The password is
// resolved from the system keyring, never from the config file.
type MailboxConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
	Folder   string `mapstructure:"folder" yaml:"folder"`
}

// LocalModelConfig holds settings for the local (Ollama-compatible)
// model endpoint.
type LocalModelConfig struct {
	Model string `mapstructure:"model" yaml:"model"`
	Host  string `mapstructure:"host" yaml:"host"`
}

// APIConfig holds settings for an OpenAI-compatible cloud provider.
// The API key is resolved from the system keyring.
type APIConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
	Model    string `mapstructure:"model" yaml:"model"`
}

// AIConfig selects the processing mode and its endpoints.
type AIConfig struct {
	Mode  AIMode           `mapstructure:"mode" yaml:"mode"`
	Local LocalModelConfig `mapstructure:"local" yaml:"local"`
	API   APIConfig        `mapstructure:"api" yaml:"api"`

	// SummaryMinChars is the minimum body length before any processor
	// pays model cost for a summary.
	SummaryMinChars int `mapstructure:"summary_min_chars" yaml:"summary_min_chars"`

	// HybridAPIMinChars is the body length above which hybrid mode
	// escalates summarization to the cloud provider.
	HybridAPIMinChars int `mapstructure:"hybrid_api_min_chars" yaml:"hybrid_api_min_chars"`

	// RequestTimeoutSec bounds each model call. Calls that exceed it
	// fail closed and degrade to the rule-based equivalent.
	RequestTimeoutSec int `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec"`
}

// SyncProfile tunes one sync strategy: how far back to look, how many
// messages per batch, and how long to pause between batches.
type SyncProfile struct {
	Days                  int `mapstructure:"days" yaml:"days"`
	BatchSize             int `mapstructure:"batch_size" yaml:"batch_size"`
	DelayBetweenBatchesMs int `mapstructure:"delay_between_batches_ms" yaml:"delay_between_batches_ms"`
}

// SyncConfig carries the per-strategy profiles and the global cap.
type SyncConfig struct {
	FirstSync       SyncProfile `mapstructure:"first_sync" yaml:"first_sync"`
	IncrementalSync SyncProfile `mapstructure:"incremental_sync" yaml:"incremental_sync"`

	// MaxEmailsPerSync caps the number of unseen messages processed in
	// one run. Truncation keeps the newest messages.
	MaxEmailsPerSync int `mapstructure:"max_emails_per_sync" yaml:"max_emails_per_sync"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Mailbox MailboxConfig `mapstructure:"mailbox" yaml:"mailbox"`
	AI      AIConfig      `mapstructure:"ai" yaml:"ai"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	DBPath  string        `mapstructure:"db_path" yaml:"db_path"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailmanager/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailmanager", "config.yaml")
}

// DefaultDBPath returns the default sqlite database location.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "mailmanager.db")
	}
	return filepath.Join(home, ".config", "mailmanager", "mailmanager.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Mailbox: MailboxConfig{
			Port:   "993",
			TLS:    true,
			Folder: "INBOX",
		},
		AI: AIConfig{
			Mode: AIModeHybrid,
			Local: LocalModelConfig{
				Model: "llama3.1:8b",
				Host:  "http://localhost:11434",
			},
			API: APIConfig{
				Provider: "openai",
				Model:    "gpt-4o-mini",
			},
			SummaryMinChars:   100,
			HybridAPIMinChars: 500,
			RequestTimeoutSec: 30,
		},
		Sync: SyncConfig{
			FirstSync: SyncProfile{
				Days:                  7,
				BatchSize:             10,
				DelayBetweenBatchesMs: 500,
			},
			IncrementalSync: SyncProfile{
				Days:                  3,
				BatchSize:             20,
				DelayBetweenBatchesMs: 200,
			},
			MaxEmailsPerSync: 200,
		},
		DBPath: DefaultDBPath(),
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("mailbox.port", "993")
	v.SetDefault("mailbox.tls", true)
	v.SetDefault("mailbox.folder", "INBOX")
	v.SetDefault("ai.mode", string(AIModeHybrid))
	v.SetDefault("ai.local.model", "llama3.1:8b")
	v.SetDefault("ai.local.host", "http://localhost:11434")
	v.SetDefault("ai.api.provider", "openai")
	v.SetDefault("ai.api.model", "gpt-4o-mini")
	v.SetDefault("ai.summary_min_chars", 100)
	v.SetDefault("ai.hybrid_api_min_chars", 500)
	v.SetDefault("ai.request_timeout_sec", 30)
	v.SetDefault("sync.first_sync.days", 7)
	v.SetDefault("sync.first_sync.batch_size", 10)
	v.SetDefault("sync.first_sync.delay_between_batches_ms", 500)
	v.SetDefault("sync.incremental_sync.days", 3)
	v.SetDefault("sync.incremental_sync.batch_size", 20)
	v.SetDefault("sync.incremental_sync.delay_between_batches_ms", 200)
	v.SetDefault("sync.max_emails_per_sync", 200)
	v.SetDefault("db_path", DefaultDBPath())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("mailbox", cfg.Mailbox)
	v.Set("ai", cfg.AI)
	v.Set("sync", cfg.Sync)
	v.Set("db_path", cfg.DBPath)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
