package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full docubot configuration, loaded from a YAML file.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	ChatLLM  LLMConfig      `yaml:"chat_llm"`
	RAG      RAGConfig      `yaml:"rag"`
}

// DatabaseConfig holds Postgres connection and pool settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	// Driver selects the SQL connector: "pgdriver" (default) or "pq".
	Driver string `yaml:"driver"`
	// MinConns connections are kept idle; MaxConns bounds the pool.
	MinConns int `yaml:"min_conns"`
	MaxConns int `yaml:"max_conns"`
	// AcquireTimeoutSec bounds the wait for a free pooled connection.
	AcquireTimeoutSec int  `yaml:"acquire_timeout_sec"`
	CreateIndex       bool `yaml:"create_index"`
	Debug             bool `yaml:"debug"`
}

// StorageConfig selects the vector store backend.
type StorageConfig struct {
	// Driver is "postgres" (default) or "chromem" for the embedded store.
	Driver string `yaml:"driver"`
	// Path is the chromem database directory; empty means in-memory.
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
}

// LLMConfig holds settings for one external model endpoint.
type LLMConfig struct {
	// Provider is "openai" (any OpenAI-compatible endpoint) or "ollama".
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
	// Dimensions is the expected embedding vector length.
	Dimensions int `yaml:"dimensions"`
}

// RAGConfig holds chunking, retrieval and retry settings.
type RAGConfig struct {
	ChunkSize    int `yaml:"chunk_size"`    // tokens per chunk
	ChunkOverlap int `yaml:"chunk_overlap"` // tokens shared between neighbors
	TopK         int `yaml:"top_k"`
	MaxRetries   int `yaml:"max_retries"`
	RetryBaseMS  int `yaml:"retry_base_ms"`
}

// LoadConfig reads and validates the configuration at path. ${VAR} and
// ${VAR:-default} references are expanded from the environment before parsing.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// ApplyDefaults fills empty fields with reference defaults.
func (c *Config) ApplyDefaults() {
	if c.Database.Port <= 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "pgdriver"
	}
	if c.Database.MinConns <= 0 {
		c.Database.MinConns = 1
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	if c.Database.AcquireTimeoutSec <= 0 {
		c.Database.AcquireTimeoutSec = 30
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.Storage.Collection == "" {
		c.Storage.Collection = "documents"
	}
	if c.EmbedLLM.Provider == "" {
		c.EmbedLLM.Provider = "openai"
	}
	if c.EmbedLLM.Dimensions <= 0 {
		c.EmbedLLM.Dimensions = 768
	}
	if c.ChatLLM.Provider == "" {
		c.ChatLLM.Provider = "openai"
	}
	if c.RAG.ChunkSize <= 0 {
		c.RAG.ChunkSize = 300
	}
	if c.RAG.ChunkOverlap <= 0 {
		c.RAG.ChunkOverlap = 20
	}
	if c.RAG.TopK <= 0 {
		c.RAG.TopK = 1
	}
	if c.RAG.MaxRetries <= 0 {
		c.RAG.MaxRetries = 3
	}
	if c.RAG.RetryBaseMS <= 0 {
		c.RAG.RetryBaseMS = 250
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database.database is required")
		}
		switch c.Database.Driver {
		case "pgdriver", "pq":
		default:
			return fmt.Errorf("database.driver must be \"pgdriver\" or \"pq\", got %q", c.Database.Driver)
		}
		if c.Database.MinConns > c.Database.MaxConns {
			return fmt.Errorf("database.min_conns (%d) exceeds max_conns (%d)",
				c.Database.MinConns, c.Database.MaxConns)
		}
	case "chromem":
	default:
		return fmt.Errorf("storage.driver must be \"postgres\" or \"chromem\", got %q", c.Storage.Driver)
	}

	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap (%d) must be smaller than rag.chunk_size (%d)",
			c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}

	for _, llm := range []struct {
		name string
		cfg  LLMConfig
	}{{"embed_llm", c.EmbedLLM}, {"chat_llm", c.ChatLLM}} {
		switch llm.cfg.Provider {
		case "openai", "ollama":
		default:
			return fmt.Errorf("%s.provider must be \"openai\" or \"ollama\", got %q", llm.name, llm.cfg.Provider)
		}
	}
	return nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
