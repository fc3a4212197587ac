// internal/config/config.go
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds resolved paths for one workspace's guardian state.
type Config struct {
	WorkspaceDir string
	GuardianDir  string
	StatePath    string
	PoolDir      string
	DatabasePath string
	SettingsPath string
	LogDir       string
}

// Settings holds tunable behavior, persisted as settings.yaml in the
// guardian directory and mirrored into the storage envelope.
type Settings struct {
	AutoSaveEnabled          bool `json:"autoSaveEnabled" yaml:"autoSaveEnabled"`
	AutoSaveIntervalMinutes  int  `json:"autoSaveIntervalMinutes" yaml:"autoSaveIntervalMinutes"`
	MaxCheckpoints           int  `json:"maxCheckpoints" yaml:"maxCheckpoints"`
	AutoCheckpointOnAIChange bool `json:"autoCheckpointOnAIChange" yaml:"autoCheckpointOnAIChange"`
	UseGit                   bool `json:"useGit" yaml:"useGit"`
	CreateSessionBranches    bool `json:"createSessionBranches" yaml:"createSessionBranches"`
	MaxGraphCommits          int  `json:"maxGraphCommits" yaml:"maxGraphCommits"`
}

// DefaultSettings returns the default settings.
func DefaultSettings() Settings {
	return Settings{
		AutoSaveEnabled:          true,
		AutoSaveIntervalMinutes:  5,
		MaxCheckpoints:           50,
		AutoCheckpointOnAIChange: true,
		UseGit:                   true,
		CreateSessionBranches:    false,
		MaxGraphCommits:          300,
	}
}

// Load creates a Config rooted at the given workspace, ensuring the
// guardian directories exist.
func Load(workspaceDir string) (*Config, error) {
	guardianDir := filepath.Join(workspaceDir, ".guardian")
	logDir := filepath.Join(guardianDir, "logs")
	poolDir := filepath.Join(guardianDir, "pool")

	for _, dir := range []string{guardianDir, logDir, poolDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	return &Config{
		WorkspaceDir: workspaceDir,
		GuardianDir:  guardianDir,
		StatePath:    filepath.Join(guardianDir, "state.json"),
		PoolDir:      poolDir,
		DatabasePath: filepath.Join(guardianDir, "audit.db"),
		SettingsPath: filepath.Join(guardianDir, "settings.yaml"),
		LogDir:       logDir,
	}, nil
}

// LoadSettings reads settings.yaml, falling back to defaults when the
// file does not exist yet.
func (c *Config) LoadSettings() (Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(c.SettingsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return settings, err
	}

	if err := yaml.Unmarshal(data, &settings); err != nil {
		return DefaultSettings(), err
	}

	return settings, nil
}

// SaveSettings writes settings.yaml.
func (c *Config) SaveSettings(settings Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	return os.WriteFile(c.SettingsPath, data, 0644)
}
