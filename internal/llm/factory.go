package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type Options struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// NewClient builds an oracle client for the configured provider. Ollama is
// served through its OpenAI-compatible endpoint, so it shares the OpenAI
// client.
func NewClient(ctx context.Context, opts Options) (Client, error) {
	switch strings.ToLower(opts.Provider) {
	case "openai":
		return NewOpenAIClient(opts.APIKey, opts.Model, opts.BaseURL), nil

	case "claude":
		return NewClaudeClient(opts.APIKey, opts.Model, opts.BaseURL), nil

	case "gemini":
		return NewGeminiClient(ctx, opts.APIKey, opts.Model)

	case "ollama":
		baseURL := opts.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL = strings.TrimRight(baseURL, "/") + "/v1"
		}
		apiKey := opts.APIKey
		if apiKey == "" {
			// Ollama ignores the key but the client requires one.
			apiKey = "ollama"
		}
		return NewOpenAIClient(apiKey, opts.Model, baseURL), nil

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", opts.Provider)
	}
}

// Cache reuses one client across calls until the credentials change, so a
// settings update with a new secret transparently rebuilds the client.
type Cache struct {
	mu     sync.Mutex
	key    string
	client Client
}

func NewCache() *Cache { return &Cache{} }

func cacheKey(opts Options) string {
	return strings.Join([]string{opts.Provider, opts.Model, opts.APIKey, opts.BaseURL}, "\x00")
}

func (c *Cache) Get(ctx context.Context, opts Options) (Client, error) {
	key := cacheKey(opts)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil && c.key == key {
		return c.client, nil
	}

	client, err := NewClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	c.key = key
	c.client = client
	return client, nil
}

// Invalidate drops the cached client; the next Get rebuilds it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.key = ""
	c.client = nil
	c.mu.Unlock()
}
