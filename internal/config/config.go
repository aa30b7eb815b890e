// Package config handles hivemind configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/hivemind/config.yaml, /etc/hivemind/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "hivemind", "config.yaml"))
	}

	paths = append(paths, "/etc/hivemind/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
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

// Config holds all hivemind configuration.
type Config struct {
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Agent      AgentConfig      `yaml:"agent"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Feed       FeedConfig       `yaml:"feed"`
	DataDir    string           `yaml:"data_dir"`
	DocDir     string           `yaml:"doc_dir"`
	LogLevel   string           `yaml:"log_level"`
}

// OpenAIConfig defines the chat-completion provider settings. The API key
// is required before any agent or ingestion operation can run.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"` // OpenAI-compatible endpoint (default: https://api.openai.com/v1)
	Model   string `yaml:"model"`    // Chat model (default: gpt-4o-mini)
}

// AgentConfig defines the reasoning-acting loop settings.
type AgentConfig struct {
	// MaxIterations bounds the number of model calls per conversation
	// turn. The loop fails with LoopBoundExceeded rather than running
	// forever when the model never stops requesting tools.
	MaxIterations int `yaml:"max_iterations"`
}

// EmbeddingsConfig defines embedding generation settings. The embedding
// model must match the one used at ingestion time or similarity search
// is meaningless.
type EmbeddingsConfig struct {
	Model string `yaml:"model"` // Embedding model (default: text-embedding-3-small)
}

// FeedConfig defines the optional MQTT live sensor feed.
type FeedConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"` // e.g. mqtt://broker.local:1883
	Topic    string `yaml:"topic"`  // subscription filter (default: apiary/+/reading)
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Load reads configuration from a YAML file. Environment variable
// references ($VAR or ${VAR}) in the file are expanded before parsing,
// so secrets can stay out of the file itself.
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

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Agent: AgentConfig{
			MaxIterations: 8,
		},
		Embeddings: EmbeddingsConfig{
			Model: "text-embedding-3-small",
		},
		Feed: FeedConfig{
			Topic: "apiary/+/reading",
		},
		DataDir: ".",
		DocDir:  "doc",
	}
}

// Validate checks that required settings are present. A missing API key
// is a fatal startup condition, not a per-request error: nothing in the
// agent can run without it.
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required (set OPENAI_API_KEY and reference it as ${OPENAI_API_KEY})")
	}
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be positive, got %d", c.Agent.MaxIterations)
	}
	return nil
}

// SensorDBPath returns the path of the sensor readings database.
func (c *Config) SensorDBPath() string {
	return filepath.Join(c.DataDir, "hive_data.db")
}

// ManualDBPath returns the path of the bee-manual vector database. Its
// absence means the manual has not been ingested yet.
func (c *Config) ManualDBPath() string {
	return filepath.Join(c.DataDir, "bee_manual.db")
}
