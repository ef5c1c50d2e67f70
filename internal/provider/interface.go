// Package provider constructs the chat-completion model used for answer
// synthesis. Supported backends: OpenRouter, OpenAI, Azure OpenAI, a local
// Ollama instance, Google Gemini, and Volcano Engine Ark.
package provider

import (
	"context"

	"github.com/cloudwego/eino/components/model"
)

// Backend enumerates the supported chat-completion providers.
type Backend string

const (
	// BackendOpenRouter selects the OpenRouter aggregation API (default).
	BackendOpenRouter Backend = "openrouter"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
	// BackendArk selects the Volcano Engine Ark model runtime.
	BackendArk Backend = "ark"
)

// Config holds all provider-level configuration, resolved from settings or
// supplied explicitly by callers.
type Config struct {
	// Backend identifies which chat provider to use.
	Backend Backend

	// Model is the model slug or deployment name (e.g. "openai/gpt-3.5-turbo").
	Model string

	// BaseURL overrides the default API endpoint. Required for OpenRouter,
	// Ollama, and Azure.
	BaseURL string

	// APIKey is the authentication credential for the selected provider.
	// Unused for Ollama.
	APIKey string

	// AzureAPIVersion is the Azure OpenAI REST API version (Azure only).
	AzureAPIVersion string

	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32
}

// Factory is the interface for constructing a chat model from a Config.
// Implementations must be safe to call from multiple goroutines.
type Factory interface {
	// New constructs and returns a ready-to-use chat model for the given config.
	New(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error)
}
