// Package cli holds the pieces behind callctl: its config file, a client for
// the backend API and the terminal views that follow an analysis run.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"callcenter-backend/internal/reconciler"
)

const (
	configDirName  = "callctl"
	configFileName = "config.yaml"

	DefaultAPIURL = "http://localhost:8080/api/v1"
)

// Config models ~/.config/callctl/config.yaml.
type Config struct {
	APIURL           string        `yaml:"api_url"`
	AnalysisEndpoint string        `yaml:"analysis_endpoint"`
	Token            string        `yaml:"token,omitempty"`
	PersonnelID      string        `yaml:"personnel_id,omitempty"`
	MaxAttempts      int           `yaml:"max_attempts,omitempty"`
	Interval         time.Duration `yaml:"interval,omitempty"`
}

// DefaultConfig is what callctl runs with before anything is saved.
func DefaultConfig() Config {
	return Config{
		APIURL:      DefaultAPIURL,
		MaxAttempts: reconciler.DefaultMaxAttempts,
		Interval:    reconciler.DefaultInterval,
	}
}

// DefaultConfigPath resolves the config file under the user config dir.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, configDirName, configFileName), nil
}

// LoadConfig reads path. A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

// SaveConfig writes cfg to path, readable only by the owner since it may hold
// a session token.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ApplyEnv lets CALLCTL_* variables override the file.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("CALLCTL_API_URL")); v != "" {
		c.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv("CALLCTL_ANALYSIS_ENDPOINT")); v != "" {
		c.AnalysisEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("CALLCTL_TOKEN")); v != "" {
		c.Token = v
	}
}

func (c *Config) normalize() {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = reconciler.DefaultMaxAttempts
	}
	if c.Interval <= 0 {
		c.Interval = reconciler.DefaultInterval
	}
}
