// Package config stores intakectl settings in ~/.boardroom/config.json.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
)

const (
	configDir      = ".boardroom"
	configFileName = "config.json"

	// DefaultAPIURL is used when neither the config file nor BOARDROOM_API_URL set one
	DefaultAPIURL = "http://localhost:8080/v1"
)

// Config holds the operator's client settings
type Config struct {
	APIURL  string `json:"api_url"`
	ActorID string `json:"actor_id"`
	BoardID string `json:"board_id,omitempty"`
}

// GetConfigPath returns the path to the config file (~/.boardroom/config.json).
// BOARDROOM_CONFIG overrides it.
func GetConfigPath() (string, error) {
	if p := os.Getenv("BOARDROOM_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDir, configFileName), nil
}

// LoadConfig reads the config file, applying defaults and environment overrides.
// A missing file is not an error.
func LoadConfig() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if data, err := os.ReadFile(path); err == nil {
		if err := sonic.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if v := os.Getenv("BOARDROOM_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("BOARDROOM_ACTOR_ID"); v != "" {
		cfg.ActorID = v
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return cfg, nil
}

// SaveConfig writes cfg, creating the directory if needed
func SaveConfig(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := sonic.ConfigStd.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Set updates a single key by its JSON name
func (c *Config) Set(key, value string) error {
	switch strings.ToLower(key) {
	case "api_url":
		c.APIURL = strings.TrimRight(value, "/")
	case "actor_id":
		c.ActorID = value
	case "board_id":
		c.BoardID = value
	default:
		return fmt.Errorf("unknown config key %q (supported: api_url, actor_id, board_id)", key)
	}
	return nil
}
