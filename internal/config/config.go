package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

type StoreConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

// GraphConfig points at an optional Memgraph/Neo4j instance the topic graph
// is mirrored into. Leave URI empty to disable the mirror.
type GraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type ChunkingConfig struct {
	Size    int `toml:"size"`
	Overlap int `toml:"overlap"`
}

type ConcurrencyConfig struct {
	Extraction int `toml:"extraction"`
	Questions  int `toml:"questions"`
}

// Prompts are fmt templates sent to the oracle. Each has a compiled-in
// default; config overrides individual ones.
type Prompts struct {
	Extraction    string `toml:"extraction"`
	Corrective    string `toml:"corrective"`
	Contradiction string `toml:"contradiction"`
	Gaps          string `toml:"gaps"`
	Questions     string `toml:"questions"`
}

type Config struct {
	LLM         LLMConfig         `toml:"llm"`
	Store       StoreConfig       `toml:"store"`
	Graph       GraphConfig       `toml:"graph"`
	Chunking    ChunkingConfig    `toml:"chunking"`
	Concurrency ConcurrencyConfig `toml:"concurrency"`
	Prompts     Prompts           `toml:"prompts"`
}

func Default() *Config {
	return &Config{
		LLM:         LLMConfig{Provider: "ollama", Model: "llama3.1", BaseURL: "http://localhost:11434"},
		Store:       StoreConfig{Driver: "sqlite", Path: "lacuna.db"},
		Chunking:    ChunkingConfig{Size: 1500, Overlap: 200},
		Concurrency: ConcurrencyConfig{Extraction: 2, Questions: 3},
		Prompts:     DefaultPrompts(),
	}
}

// Load reads a TOML config file over the defaults, then applies env var
// overrides. A missing file is not an error; env-only setups are common.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg.applyEnv()
	cfg.fillPromptDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		env string
		dst *string
	}{
		{"LLM_PROVIDER", &c.LLM.Provider},
		{"LLM_MODEL", &c.LLM.Model},
		{"LLM_API_KEY", &c.LLM.APIKey},
		{"LLM_BASE_URL", &c.LLM.BaseURL},
		{"STORE_DRIVER", &c.Store.Driver},
		{"STORE_PATH", &c.Store.Path},
		{"MEMGRAPH_URI", &c.Graph.URI},
		{"MEMGRAPH_USER", &c.Graph.User},
		{"MEMGRAPH_PASSWORD", &c.Graph.Password},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

func (c *Config) fillPromptDefaults() {
	defaults := DefaultPrompts()
	if c.Prompts.Extraction == "" {
		c.Prompts.Extraction = defaults.Extraction
	}
	if c.Prompts.Corrective == "" {
		c.Prompts.Corrective = defaults.Corrective
	}
	if c.Prompts.Contradiction == "" {
		c.Prompts.Contradiction = defaults.Contradiction
	}
	if c.Prompts.Gaps == "" {
		c.Prompts.Gaps = defaults.Gaps
	}
	if c.Prompts.Questions == "" {
		c.Prompts.Questions = defaults.Questions
	}
}
