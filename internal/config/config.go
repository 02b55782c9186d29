// Package config loads and validates the forest server's configuration:
// a YAML file overlaid with the recognized environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"forest/internal/logging"

	"gopkg.in/yaml.v3"
)

// Config holds all forest server configuration.
type Config struct {
	// DataDir is FOREST_DATA_DIR: the root of the persisted JSON/vector state.
	DataDir string `yaml:"data_dir"`

	// Vector backend selection (FOREST_VECTOR_PROVIDER).
	Vector VectorConfig `yaml:"vector"`

	// Embedding backend selection (FOREST_EMBEDDING_PROVIDER / FOREST_EMBEDDING_DIM).
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Supervisor tuning (HTA_EXPANSION_*).
	Supervisor SupervisorConfig `yaml:"supervisor"`

	// Bridge tuning (LLM_TIMEOUT).
	Bridge BridgeConfig `yaml:"bridge"`

	// ReadOnly disables all mutation paths (STAGE1_READ_ONLY).
	ReadOnly bool `yaml:"read_only"`

	// ShutdownGraceMs bounds how long the supervisor waits for in-flight
	// jobs during a graceful shutdown (FOREST_SHUTDOWN_GRACE_MS).
	ShutdownGraceMs int `yaml:"shutdown_grace_ms"`

	Logging LoggingConfig `yaml:"logging"`
}

// VectorConfig configures the Vector Index (C2) backend.
type VectorConfig struct {
	Provider string `yaml:"provider"` // "sqlitevec" (default) or an external id
}

// EmbeddingConfig configures the Embedding Service (C3) backend.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "deterministic" (default), "ollama", "genai"
	Dim      int    `yaml:"dim"`

	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`

	GenAIAPIKey string `yaml:"genai_api_key"`
	GenAIModel  string `yaml:"genai_model"`
	TaskType    string `yaml:"task_type"`
}

// SupervisorConfig configures the Background Supervisor's Expansion Agent.
type SupervisorConfig struct {
	IntervalMs   int  `yaml:"interval_ms"`
	MinTasks     int  `yaml:"min_tasks"`
	Debug        bool `yaml:"debug"`
}

// BridgeConfig configures the Intelligence Bridge's request deadline.
type BridgeConfig struct {
	TimeoutMs int `yaml:"timeout_ms"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "data",

		Vector: VectorConfig{
			Provider: "sqlitevec",
		},

		Embedding: EmbeddingConfig{
			Provider:       "deterministic",
			Dim:            256,
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
			TaskType:       "SEMANTIC_SIMILARITY",
		},

		Supervisor: SupervisorConfig{
			IntervalMs: 300000,
			MinTasks:   3,
		},

		Bridge: BridgeConfig{
			TimeoutMs: 30000,
		},

		ShutdownGraceMs: 5000,

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	logging.BootDebug("loading config from: %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Boot("config file not found, using defaults: %s", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	logging.Boot("config loaded: data_dir=%s vector_provider=%s embedding_provider=%s",
		cfg.DataDir, cfg.Vector.Provider, cfg.Embedding.Provider)
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies the recognized environment variables (spec §6).
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FOREST_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("FOREST_VECTOR_PROVIDER"); v != "" {
		c.Vector.Provider = v
	}
	if v := os.Getenv("FOREST_EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("FOREST_EMBEDDING_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Embedding.Dim = n
		}
	}
	if v := os.Getenv("HTA_EXPANSION_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Supervisor.IntervalMs = n
		}
	}
	if v := os.Getenv("HTA_EXPANSION_MIN_TASKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Supervisor.MinTasks = n
		}
	}
	if v := os.Getenv("HTA_EXPANSION_DEBUG"); v != "" {
		c.Supervisor.Debug = v == "1" || v == "true"
	}
	if v := os.Getenv("LLM_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Bridge.TimeoutMs = n
		}
	}
	if v := os.Getenv("STAGE1_READ_ONLY"); v != "" {
		c.ReadOnly = v == "1" || v == "true"
	}
	if v := os.Getenv("GENAI_API_KEY"); v != "" {
		c.Embedding.GenAIAPIKey = v
	}
	if v := os.Getenv("OLLAMA_ENDPOINT"); v != "" {
		c.Embedding.OllamaEndpoint = v
	}
	if v := os.Getenv("OLLAMA_EMBEDDING_MODEL"); v != "" {
		c.Embedding.OllamaModel = v
	}
	if v := os.Getenv("FOREST_SHUTDOWN_GRACE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ShutdownGraceMs = n
		}
	}
}

// SupervisorInterval returns the supervisor tick period as a duration.
func (c *Config) SupervisorInterval() time.Duration {
	return time.Duration(c.Supervisor.IntervalMs) * time.Millisecond
}

// BridgeTimeout returns the Intelligence Bridge deadline as a duration.
func (c *Config) BridgeTimeout() time.Duration {
	return time.Duration(c.Bridge.TimeoutMs) * time.Millisecond
}

// ShutdownGrace returns the supervisor's graceful-shutdown budget.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceMs) * time.Millisecond
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	validVectorProviders := map[string]bool{"sqlitevec": true, "external": true}
	if !validVectorProviders[c.Vector.Provider] {
		return fmt.Errorf("unknown vector provider: %s", c.Vector.Provider)
	}
	validEmbeddingProviders := map[string]bool{"deterministic": true, "ollama": true, "genai": true}
	if !validEmbeddingProviders[c.Embedding.Provider] {
		return fmt.Errorf("unknown embedding provider: %s", c.Embedding.Provider)
	}
	if c.Embedding.Dim <= 0 {
		return fmt.Errorf("embedding dim must be positive, got %d", c.Embedding.Dim)
	}
	return nil
}
