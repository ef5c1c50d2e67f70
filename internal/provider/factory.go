package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"

	"github.com/corpuslabs/ragd/internal/config"
)

// Azure OpenAI REST API version used when the settings leave it unset.
const defaultAzureAPIVersion = "2024-02-01"

// NewFromSettings constructs a chat model from the resolved chat settings.
// Returns (nil, nil) when no API key is configured for a remote backend, in
// which case the caller serves templated degraded answers instead.
func NewFromSettings(ctx context.Context, set *config.Settings) (model.ToolCallingChatModel, error) {
	chat := set.Chat

	backend := Backend(chat.Provider)
	if backend != BackendOllama && chat.APIKey == "" {
		return nil, nil
	}

	return New(ctx, &Config{
		Backend:     backend,
		Model:       chat.Model,
		BaseURL:     chat.Endpoint,
		APIKey:      chat.APIKey,
		MaxTokens:   chat.MaxTokens,
		Temperature: chat.Temperature,
	})
}

// New constructs a chat model from an explicit Config, delegating to the
// appropriate backend factory function. Unknown backends are an error so
// callers get a clear startup failure rather than a broken first request.
func New(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	switch cfg.Backend {
	case BackendOpenRouter:
		return newOpenRouter(ctx, cfg)
	case BackendOpenAI:
		return newOpenAI(ctx, cfg)
	case BackendAzure:
		return newAzure(ctx, cfg)
	case BackendOllama:
		return newOllama(ctx, cfg)
	case BackendGemini:
		return newGemini(ctx, cfg)
	case BackendArk:
		return newArk(ctx, cfg)
	default:
		return nil, fmt.Errorf("provider: unknown backend %q — valid values: openrouter, openai, azure, ollama, gemini, ark", cfg.Backend)
	}
}
