// Package config loads server settings from an optional YAML file with
// environment variable overrides. A .env file in the working directory is
// honored for local development.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"strand/mcp"
)

// Config holds the server settings.
type Config struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Model         string `yaml:"model"` // "provider:model", e.g. "openai:gpt-4o-mini"
	SystemPrompt  string `yaml:"system_prompt"`
	WindowSize    int    `yaml:"window_size"`
	MaxIterations int    `yaml:"max_iterations"`
	DataDir       string `yaml:"data_dir"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	OllamaBaseURL string `yaml:"ollama_base_url"`

	// MCPServers lists Model Context Protocol servers whose tools are added
	// to the agent's tool set, keyed by server name.
	MCPServers map[string]mcp.ServerConfig `yaml:"mcp_servers"`

	// Secrets come from the environment, never the settings file.
	OpenAIAPIKey string `yaml:"-"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Host:    "0.0.0.0",
		Port:    8000,
		Model:   "openai:gpt-4o-mini",
		DataDir: "data",
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// non-empty), then environment variables. A missing .env file is not an
// error.
func Load(path string) (*Config, error) {
	godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("STRAND_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("STRAND_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("STRAND_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("STRAND_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.OpenAIBaseURL = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.OllamaBaseURL = v
	}
}
