// Package config loads gitstore configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Identity is the commit author used when the repository config carries no
// user.name.
type Identity struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// Remote names the remote a session synchronizes with.
type Remote struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Auth holds credentials for remote operations. Token wins over
// username/password when both are set.
type Auth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Token    string `yaml:"token"`
}

// Config is the full gitstore configuration file.
type Config struct {
	Author        Identity `yaml:"author"`
	Remote        Remote   `yaml:"remote"`
	Auth          Auth     `yaml:"auth"`
	DefaultBranch string   `yaml:"default_branch"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Remote:        Remote{Name: "origin"},
		DefaultBranch: "master",
	}
}

// Load reads the configuration at path. A missing file is not an error:
// the defaults are returned so a config file stays optional.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Remote.Name == "" {
		cfg.Remote.Name = "origin"
	}
	if cfg.DefaultBranch == "" {
		cfg.DefaultBranch = "master"
	}
	return cfg, nil
}
