package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the application host.
// Zero values mean "unspecified" and are replaced by defaults in Normalize.
type Config struct {
	// BridgeAddr is the loopback listen address for the UI bridge server.
	BridgeAddr string `json:"bridge_addr" yaml:"bridge_addr" toml:"bridge_addr"`
	// DataDir holds the credential file, the storyboard database and the lock file.
	DataDir string `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	// BackendBin is the path to the backend binary to spawn.
	BackendBin string `json:"backend_bin" yaml:"backend_bin" toml:"backend_bin"`
	// StaticDir is the bundled static asset directory handed to the backend.
	StaticDir string `json:"static_dir" yaml:"static_dir" toml:"static_dir"`
	// SamplesDir overrides the backend's template notebook directory.
	SamplesDir string `json:"samples_dir" yaml:"samples_dir" toml:"samples_dir"`
	// UIOrigin is the browser origin allowed to call the bridge.
	UIOrigin string `json:"ui_origin" yaml:"ui_origin" toml:"ui_origin"`
	// LogLevel: debug, info, warn or error.
	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Normalize fills defaults and expands '~' in directory fields.
func (c *Config) Normalize() error {
	if c.BridgeAddr == "" {
		c.BridgeAddr = "127.0.0.1:8763"
	}
	if c.DataDir == "" {
		c.DataDir = "~/.animatic"
	}
	if c.UIOrigin == "" {
		c.UIOrigin = "http://localhost:3000"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	for _, p := range []*string{&c.DataDir, &c.BackendBin, &c.StaticDir, &c.SamplesDir} {
		expanded, err := ExpandHome(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
