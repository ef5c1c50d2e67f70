package embedder

import (
	"fmt"

	"github.com/corpuslabs/ragd/internal/config"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	defaultOllamaHost = "http://localhost:11434"
	defaultOpenAIBase = "https://api.openai.com/v1"

	defaultAzureAPIVersion = "2025-04-01-preview"
)

// NewBackend constructs the primary embedding backend selected by the
// settings. A "none" provider returns (nil, nil), which pins the Generator to
// fallback mode from the start. Unknown providers are an error so operators
// get a clear startup failure instead of silent degradation.
func NewBackend(set *config.Settings) (Backend, error) {
	emb := set.Embedding

	switch emb.Provider {
	case "", "ollama":
		host := emb.Endpoint
		if host == "" {
			host = defaultOllamaHost
		}
		model := emb.Model
		if model == "" {
			model = defaultOllamaModel
		}
		return NewOllamaBackend(&OllamaConfig{
			Host:    host,
			Model:   model,
			Timeout: set.Limits.RequestTimeout,
		}), nil

	case "openai":
		if emb.APIKey == "" {
			return nil, fmt.Errorf("embedder: openai provider requires an API key (EMBEDDING_API_KEY)")
		}
		base := emb.Endpoint
		if base == "" {
			base = defaultOpenAIBase
		}
		model := emb.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		return NewOpenAIBackend(&OpenAIConfig{
			BaseURL:    base,
			APIKey:     emb.APIKey,
			Model:      model,
			Dimensions: emb.Dimensions,
			Timeout:    set.Limits.RequestTimeout,
		}), nil

	case "azure":
		if emb.APIKey == "" {
			return nil, fmt.Errorf("embedder: azure provider requires an API key (EMBEDDING_API_KEY)")
		}
		if emb.Endpoint == "" {
			return nil, fmt.Errorf("embedder: azure provider requires an endpoint (EMBEDDING_ENDPOINT)")
		}
		apiVersion := emb.APIVersion
		if apiVersion == "" {
			apiVersion = defaultAzureAPIVersion
		}
		model := emb.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		return NewOpenAIBackend(&OpenAIConfig{
			BaseURL:    emb.Endpoint + "/openai",
			APIKey:     emb.APIKey,
			Model:      model,
			Dimensions: emb.Dimensions,
			Azure:      true,
			APIVersion: apiVersion,
			Timeout:    set.Limits.RequestTimeout,
		}), nil

	case "none":
		// Explicit opt-out: run on the deterministic fallback from the start.
		return nil, nil

	default:
		return nil, fmt.Errorf("embedder: unknown provider %q — valid values: ollama, openai, azure, none", emb.Provider)
	}
}
