// Package config provides configuration loading and management for
// paperdesk.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete paperdesk configuration
type Config struct {
	Server ServerConfig `yaml:"server"`
	Model  ModelConfig  `yaml:"model"`
	Editor EditorConfig `yaml:"editor"`
}

// ServerConfig configures the backend HTTP server
type ServerConfig struct {
	// Listen is the address the server binds to
	Listen string `yaml:"listen"`
	// DataDir is the root directory for papers and analysis results
	DataDir string `yaml:"data_dir"`
}

// ModelConfig configures the LLM model settings
type ModelConfig struct {
	// Provider selects the LLM provider ("gemini", "openai")
	Provider string `yaml:"provider"`
	// Model is the model name sent to the provider
	Model string `yaml:"model"`
	// Endpoint overrides the provider's default base URL
	Endpoint string `yaml:"endpoint"`
	// Temperature controls randomness (0.0-2.0)
	Temperature float64 `yaml:"temperature"`
	// Language is the writing language for generated text
	Language string `yaml:"language"`
	// Timeout is the maximum time to wait for model responses
	Timeout time.Duration `yaml:"timeout"`
}

// EditorConfig configures the editing session
type EditorConfig struct {
	// BackendURL is the base URL of the paper backend
	BackendURL string `yaml:"backend_url"`
	// SaveInterval is the debounce window between edit and save
	SaveInterval time.Duration `yaml:"save_interval"`
	// StateFile remembers the last open document between runs
	StateFile string `yaml:"state_file"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:  ":8080",
			DataDir: "data",
		},
		Model: ModelConfig{
			Provider:    "gemini",
			Model:       "gemini-2.5-flash",
			Temperature: 0.7,
			Language:    "Chinese",
			Timeout:     5 * time.Minute,
		},
		Editor: EditorConfig{
			BackendURL:   "http://localhost:8080",
			SaveInterval: time.Second,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if c.Server.DataDir == "" {
		return fmt.Errorf("server.data_dir is required")
	}
	if c.Model.Provider == "" {
		return fmt.Errorf("model.provider is required")
	}
	if c.Model.Model == "" {
		return fmt.Errorf("model.model is required")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("model.temperature must be between 0 and 2")
	}
	if c.Editor.BackendURL == "" {
		return fmt.Errorf("editor.backend_url is required")
	}
	if c.Editor.SaveInterval < 0 {
		return fmt.Errorf("editor.save_interval must not be negative")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Server
	if other.Server.Listen != "" {
		c.Server.Listen = other.Server.Listen
	}
	if other.Server.DataDir != "" {
		c.Server.DataDir = other.Server.DataDir
	}

	// Model
	if other.Model.Provider != "" {
		c.Model.Provider = other.Model.Provider
	}
	if other.Model.Model != "" {
		c.Model.Model = other.Model.Model
	}
	if other.Model.Endpoint != "" {
		c.Model.Endpoint = other.Model.Endpoint
	}
	if other.Model.Temperature != 0 {
		c.Model.Temperature = other.Model.Temperature
	}
	if other.Model.Language != "" {
		c.Model.Language = other.Model.Language
	}
	if other.Model.Timeout != 0 {
		c.Model.Timeout = other.Model.Timeout
	}

	// Editor
	if other.Editor.BackendURL != "" {
		c.Editor.BackendURL = other.Editor.BackendURL
	}
	if other.Editor.SaveInterval != 0 {
		c.Editor.SaveInterval = other.Editor.SaveInterval
	}
	if other.Editor.StateFile != "" {
		c.Editor.StateFile = other.Editor.StateFile
	}
}
