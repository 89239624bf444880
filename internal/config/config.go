// Package config handles configuration loading and management for conclave.
// It supports XDG config paths, project-level overrides, and environment
// variables. Configuration is an explicit object: Load and Reload always
// return a fresh Config, never a mutated shared one.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for conclave.
type Config struct {
	Defaults   DefaultsConfig            `mapstructure:"defaults"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Checkpoint CheckpointConfig          `mapstructure:"checkpoint"`
	TUI        TUIConfig                 `mapstructure:"tui"`
	History    HistoryConfig             `mapstructure:"history"`
}

// DefaultsConfig holds default values for pipeline runs.
type DefaultsConfig struct {
	// Mode is the pipeline mode, "compete" or "merge".
	Mode string `mapstructure:"mode"`
	// Tier is the capability tier council agents run at.
	Tier string `mapstructure:"tier"`
	// Chairman is the provider that performs final synthesis.
	Chairman string `mapstructure:"chairman"`
	// Fallback is the provider retried once when the chairman fails.
	// Empty disables the fallback retry.
	Fallback string `mapstructure:"fallback"`
	// TwoPass enables the synthesis+detail chairman variant.
	TwoPass bool `mapstructure:"two_pass"`
	// UseSummaries embeds Stage-1 summaries instead of full responses in
	// chairman prompts.
	UseSummaries bool `mapstructure:"use_summaries"`
	// StageTimeout is the per-agent timeout within a stage.
	StageTimeout time.Duration `mapstructure:"stage_timeout"`
}

// ProviderConfig describes how to invoke one agent CLI.
type ProviderConfig struct {
	// Command is the argument vector. The placeholder {model} is replaced
	// with the tier's model name.
	Command []string `mapstructure:"command"`
	// PromptViaStdin delivers the prompt on stdin instead of as a
	// trailing argument.
	PromptViaStdin bool `mapstructure:"prompt_via_stdin"`
	// Models maps tier names to model identifiers.
	Models map[string]string `mapstructure:"models"`
}

// CheckpointConfig holds checkpoint storage settings.
type CheckpointConfig struct {
	// Dir is the checkpoint directory. Empty means
	// <XDG_STATE_HOME>/conclave/checkpoints.
	Dir string `mapstructure:"dir"`
	// Name is the checkpoint file name (without extension).
	Name string `mapstructure:"name"`
}

// TUIConfig holds interactive monitor settings.
type TUIConfig struct {
	// Interactive enables the live stage monitor.
	Interactive bool `mapstructure:"interactive"`
	// RefreshRate is the monitor redraw interval.
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// HistoryConfig holds run-history database settings.
type HistoryConfig struct {
	// Enabled turns run recording on.
	Enabled bool `mapstructure:"enabled"`
	// Path overrides the database location. Empty means the global
	// history database.
	Path string `mapstructure:"path"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (CONCLAVE_*)
// 2. Project config (.conclave.yaml in current directory or parent)
// 3. User config (~/.config/conclave/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("CONCLAVE")
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Reload re-reads every configuration source and returns a fresh Config.
// The previous object is left untouched; callers swap at their own pace.
func Reload() (*Config, error) {
	return Load()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// CheckpointDir resolves the effective checkpoint directory.
func (c *Config) CheckpointDir() string {
	if c.Checkpoint.Dir != "" {
		return c.Checkpoint.Dir
	}
	if stateDir := os.Getenv("XDG_STATE_HOME"); stateDir != "" {
		return filepath.Join(stateDir, "conclave", "checkpoints")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".conclave", "checkpoints")
	}
	return filepath.Join(home, ".local", "state", "conclave", "checkpoints")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	// Pipeline defaults
	v.SetDefault("defaults.mode", "compete")
	v.SetDefault("defaults.tier", "standard")
	v.SetDefault("defaults.chairman", "claude")
	v.SetDefault("defaults.fallback", "")
	v.SetDefault("defaults.two_pass", false)
	v.SetDefault("defaults.use_summaries", false)
	v.SetDefault("defaults.stage_timeout", "5m")

	// Checkpoint defaults
	v.SetDefault("checkpoint.dir", "")
	v.SetDefault("checkpoint.name", "pipeline")

	// TUI defaults
	v.SetDefault("tui.interactive", false)
	v.SetDefault("tui.refresh_rate", "500ms")

	// History defaults
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")

	// Built-in providers
	v.SetDefault("providers.claude.command", []string{"claude", "--model", "{model}", "-p"})
	v.SetDefault("providers.claude.prompt_via_stdin", true)
	v.SetDefault("providers.claude.models", map[string]string{
		"premium":  "opus",
		"standard": "sonnet",
		"fast":     "haiku",
	})

	v.SetDefault("providers.gemini.command", []string{"gemini", "-m", "{model}", "-p"})
	v.SetDefault("providers.gemini.prompt_via_stdin", false)
	v.SetDefault("providers.gemini.models", map[string]string{
		"premium":  "gemini-2.5-pro",
		"standard": "gemini-2.5-pro",
		"fast":     "gemini-2.5-flash",
	})

	v.SetDefault("providers.codex.command", []string{"codex", "exec", "-m", "{model}"})
	v.SetDefault("providers.codex.prompt_via_stdin", false)
	v.SetDefault("providers.codex.models", map[string]string{
		"premium":  "gpt-5",
		"standard": "gpt-5",
		"fast":     "gpt-5-mini",
	})
}

// getUserConfigDir returns the XDG config directory for conclave.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "conclave")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "conclave")
	}
	return filepath.Join(home, ".config", "conclave")
}

// findProjectConfig searches for .conclave.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".conclave.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}
