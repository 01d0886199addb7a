package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	tgerrors "github.com/randalmurphal/taskgraph/internal/errors"
)

// ConfigSource indicates where configuration values came from.
type ConfigSource string

const (
	SourceDefault ConfigSource = "default"
	SourceUser    ConfigSource = "user"
	SourceProject ConfigSource = "project"
	SourceFile    ConfigSource = "file"
	SourceEnv     ConfigSource = "env"
)

// Loaded is a configuration together with the sources that shaped it.
type Loaded struct {
	Config *Config
	// Files lists the config files applied, lowest precedence first.
	Files []string
	// EnvOverrides lists the config paths set from environment variables.
	EnvOverrides []string
}

// Load builds the configuration. Load order (later sources override earlier):
//  1. Built-in defaults
//  2. User config (~/.taskgraph/config.yaml) - optional
//  3. Project config (.taskgraph/config.yaml) - optional
//  4. Explicit file (path argument) - must exist when given
//  5. Environment variables (TASKGRAPH_*)
func Load(path string) (*Loaded, error) {
	l := &Loaded{Config: Default()}

	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, DirName, ConfigFileName)
		if fileExists(userPath) {
			if err := l.Config.MergeFile(userPath); err != nil {
				slog.Warn("failed to load user config", "path", userPath, "error", err)
			} else {
				l.Files = append(l.Files, userPath)
			}
		}
	}

	projectPath := filepath.Join(DirName, ConfigFileName)
	if fileExists(projectPath) {
		if err := l.Config.MergeFile(projectPath); err != nil {
			return nil, err // Project config errors are fatal
		}
		l.Files = append(l.Files, projectPath)
	}

	if path != "" {
		if err := l.Config.MergeFile(path); err != nil {
			return nil, err
		}
		l.Files = append(l.Files, path)
	}

	l.EnvOverrides = ApplyEnvVars(l.Config)

	if err := l.Config.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// LoadFile loads a single config file over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.MergeFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MergeFile overlays the values present in a YAML or TOML file onto cfg.
// Fields the file does not mention keep their current values.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return tgerrors.ErrConfigInvalid(path, err.Error())
		}
	default:
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return tgerrors.ErrConfigInvalid(path, err.Error())
		}
	}
	return nil
}

// YAML renders the configuration as YAML.
func (c *Config) YAML() (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return buf.String(), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}
