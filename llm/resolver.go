package llm

import (
	"fmt"
	"strings"
)

// ResolverConfig carries the credentials and endpoints model resolution needs.
type ResolverConfig struct {
	OpenAIBaseURL string // override for OpenAI-compatible endpoints
	OpenAIAPIKey  string
	OllamaBaseURL string // default http://localhost:11434/v1
}

// Resolve parses a "provider:model" spec and returns a Client plus the bare
// model name. A spec with no provider prefix defaults to openai.
//
//	"openai:gpt-4o-mini"  → OpenAI API
//	"ollama:llama3.1:8b"  → local Ollama
//	"gpt-4o-mini"         → OpenAI API
func Resolve(spec string, cfg *ResolverConfig) (Client, string, error) {
	if cfg == nil {
		cfg = &ResolverConfig{}
	}

	provider := "openai"
	model := spec
	if idx := strings.Index(spec, ":"); idx >= 0 {
		switch spec[:idx] {
		case "openai", "ollama":
			provider = spec[:idx]
			model = spec[idx+1:]
		}
	}
	if model == "" {
		return nil, "", fmt.Errorf("model spec %q has no model name", spec)
	}

	switch provider {
	case "ollama":
		baseURL := cfg.OllamaBaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434/v1"
		}
		return NewOpenAIClient(baseURL, "ollama", model), model, nil

	default:
		baseURL := cfg.OpenAIBaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		if cfg.OpenAIAPIKey == "" {
			return nil, "", fmt.Errorf("model %q requires an OpenAI API key", spec)
		}
		return NewOpenAIClient(baseURL, cfg.OpenAIAPIKey, model), model, nil
	}
}
