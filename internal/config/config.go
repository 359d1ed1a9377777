// Package config handles bioagent configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order. An explicit
// path (from -config) is checked first by FindConfig; then
// ./config.yaml, ~/.config/bioagent/config.yaml, /etc/bioagent/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "bioagent", "config.yaml"))
	}
	return append(paths, "/etc/bioagent/config.yaml")
}

// FindConfig locates a config file. If explicit is non-empty it must
// exist. Otherwise the first existing path from DefaultSearchPaths wins.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}
	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all bioagent configuration.
type Config struct {
	Listen   ListenConfig `yaml:"listen"`
	LLM      LLMConfig    `yaml:"llm"`
	Agent    AgentConfig  `yaml:"agent"`
	DataDir  string       `yaml:"data_dir"`
	LogLevel string       `yaml:"log_level"`

	// ContextNote is a domain-context summary appended to the system
	// prompt (e.g. which datasets the knowledge base currently holds).
	ContextNote string `yaml:"context_note"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // bind address ("" = all interfaces)
	Port    int    `yaml:"port"`
}

// LLMConfig defines the inference backend connection.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"` // OpenAI-compatible server root
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// AgentConfig tunes the execution loop.
type AgentConfig struct {
	// MaxIterations caps reasoning cycles per run (default 6).
	MaxIterations int `yaml:"max_iterations"`
	// ToolTimeoutSec bounds a single tool execution (default 15).
	ToolTimeoutSec int `yaml:"tool_timeout_sec"`
	// ObservationLimit bounds tool output fed back to the model, in
	// runes (default 4000).
	ObservationLimit int `yaml:"observation_limit"`
	// MaxHistoryPairs bounds conversation history per conversation
	// (default 20 user/assistant pairs).
	MaxHistoryPairs int `yaml:"max_history_pairs"`
}

// Load reads configuration from a YAML file. Environment variables in
// the file body ($VAR / ${VAR}) are expanded before parsing, so API
// keys can stay out of the file itself.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration with working local defaults.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8080},
		LLM: LLMConfig{
			BaseURL: "http://localhost:11434",
			Model:   "qwen2.5:14b",
		},
		DataDir: "data",
	}
}
