package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Config represents the multisync configuration
type Config struct {
	Host           string            `json:"host,omitempty" yaml:"host,omitempty"`
	Port           int               `json:"port,omitempty" yaml:"port,omitempty"`
	Timeout        int               `json:"timeout,omitempty" yaml:"timeout,omitempty"`               // milliseconds
	ConnectTimeout int               `json:"connectTimeout,omitempty" yaml:"connectTimeout,omitempty"` // milliseconds
	Headers        map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`               // Default headers for all requests
	UserAgent      string            `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
	Output         string            `json:"output,omitempty" yaml:"output,omitempty"` // console or json
	EchoPort       int               `json:"echoPort,omitempty" yaml:"echoPort,omitempty"`
	Verbose        *bool             `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor        *bool             `json:"noColor,omitempty" yaml:"noColor,omitempty"`
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// TimeoutDuration converts Timeout to a duration. Zero means no deadline.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

func (c *Config) ConnectTimeoutDuration() time.Duration {
	return time.Duration(c.ConnectTimeout) * time.Millisecond
}

// Validate reports values no request could be built from.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.EchoPort < 0 || c.EchoPort > 65535 {
		return fmt.Errorf("echoPort %d out of range", c.EchoPort)
	}
	if c.Timeout < 0 || c.ConnectTimeout < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}
	switch strings.ToLower(c.Output) {
	case "", "console", "json":
	default:
		return fmt.Errorf("unknown output %q", c.Output)
	}
	return nil
}

// ConfigFilenames contains the possible config file names, in search order
var ConfigFilenames = []string{
	".multisync.json",
	"multisync.config.json",
	".multisync.yaml",
	".multisync.yml",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	// Search for config file in current directory
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return config, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.Host != "" {
		result.Host = other.Host
	}
	if other.Port > 0 {
		result.Port = other.Port
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.ConnectTimeout > 0 {
		result.ConnectTimeout = other.ConnectTimeout
	}
	if other.UserAgent != "" {
		result.UserAgent = other.UserAgent
	}
	if other.Output != "" {
		result.Output = other.Output
	}
	if other.EchoPort > 0 {
		result.EchoPort = other.EchoPort
	}

	// Boolean flags - only override if explicitly set in other config
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	// Merge headers without aliasing either input
	if len(c.Headers) > 0 || len(other.Headers) > 0 {
		result.Headers = make(map[string]string, len(c.Headers)+len(other.Headers))
		for k, v := range c.Headers {
			result.Headers[k] = v
		}
		for k, v := range other.Headers {
			result.Headers[k] = v
		}
	}

	return &result
}

// SaveConfig saves the configuration to a file, as YAML for .yaml/.yml paths
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
