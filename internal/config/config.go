// Package config provides layered configuration for ragd.
// Precedence, lowest to highest: built-in defaults → .env file → YAML config
// file → environment variables. Env vars always win, so container and CI
// workflows need no config file at all.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. RAGD_CONFIG environment variable
//  3. ~/.ragd/config.yaml
//  4. ./ragd.yaml
//
// Load applies the file layers onto the environment; FromEnv then
// materializes a Settings value that is constructed once at process start
// and passed into every component constructor. Component logic never reads
// the environment directly.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// File is the top-level YAML configuration structure. Field names use yaml
// tags that mirror the env var naming (lowercase, underscored).
type File struct {
	// Chat configures the chat-completion provider used for answers.
	Chat ChatFile `yaml:"chat"`

	// Embedding configures the embedding backend.
	Embedding EmbeddingFile `yaml:"embedding"`

	// Store configures the document store backend.
	Store StoreFile `yaml:"store"`

	// Server configures the HTTP server.
	Server ServerFile `yaml:"server"`

	// Limits configures request bounds and budgets.
	Limits LimitsFile `yaml:"limits"`

	// Logging configures structured logging.
	Logging LoggingFile `yaml:"logging"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingFile `yaml:"tracing"`
}

// ChatFile holds chat-completion provider settings.
type ChatFile struct {
	// Provider selects the backend: openrouter, openai, azure, ollama, gemini, ark.
	Provider string `yaml:"provider"`
	// Model is the chat model slug (e.g. "openai/gpt-3.5-turbo").
	Model string `yaml:"model"`
	// Endpoint overrides the provider's default API endpoint.
	Endpoint string `yaml:"endpoint"`
	// APIKey is the provider credential. Prefer env var CHAT_API_KEY.
	APIKey string `yaml:"api_key"`
	// MaxTokens caps generated tokens per answer.
	MaxTokens int `yaml:"max_tokens"`
	// Temperature controls response randomness (0.0–1.0).
	Temperature float32 `yaml:"temperature"`
	// MockFallback returns a templated degraded answer instead of surfacing
	// upstream failures. Implied when no API key is configured.
	MockFallback bool `yaml:"mock_fallback"`
}

// EmbeddingFile holds embedding backend settings.
type EmbeddingFile struct {
	// Provider selects the backend: ollama, openai, azure, none.
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Endpoint overrides the backend's default API endpoint.
	Endpoint string `yaml:"endpoint"`
	// APIKey is the backend credential. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// APIVersion is the Azure OpenAI API version (azure only).
	APIVersion string `yaml:"api_version"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
}

// StoreFile holds document store settings.
type StoreFile struct {
	// Backend selects the store: sqlite (default) or qdrant.
	Backend string `yaml:"backend"`
	// Path is the SQLite database path (sqlite only).
	Path string `yaml:"path"`
	// Collection is the logical collection name.
	Collection string `yaml:"collection"`
	// QdrantHost is the Qdrant server hostname (qdrant only).
	QdrantHost string `yaml:"qdrant_host"`
	// QdrantPort is the Qdrant gRPC port (qdrant only).
	QdrantPort int `yaml:"qdrant_port"`
	// QdrantAPIKey is the Qdrant credential. Prefer env var QDRANT_API_KEY.
	QdrantAPIKey string `yaml:"qdrant_api_key"`
	// QdrantTLS enables TLS for the Qdrant connection.
	QdrantTLS bool `yaml:"qdrant_tls"`
}

// ServerFile holds HTTP server settings.
type ServerFile struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var RAGD_API_KEY.
	APIKey string `yaml:"api_key"`
}

// LimitsFile holds request bounds and budgets.
type LimitsFile struct {
	// MaxDocumentLength is the largest accepted document, in characters.
	MaxDocumentLength int `yaml:"max_document_length"`
	// MaxSearchResults bounds the search limit parameter.
	MaxSearchResults int `yaml:"max_search_results"`
	// MaxChatResults bounds the chat max_results parameter.
	MaxChatResults int `yaml:"max_chat_results"`
	// MaxContextChars is the answer context character budget.
	MaxContextChars int `yaml:"max_context_chars"`
	// RequestTimeoutSeconds bounds each upstream call.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
}

// LoggingFile holds structured logging settings.
type LoggingFile struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// TracingFile holds Langfuse tracing settings.
type TracingFile struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	// Host is the Langfuse API host.
	Host string `yaml:"host"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-zero YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*File) string
}{
	{"CHAT_PROVIDER", func(f *File) string { return f.Chat.Provider }},
	{"CHAT_MODEL", func(f *File) string { return f.Chat.Model }},
	{"CHAT_ENDPOINT", func(f *File) string { return f.Chat.Endpoint }},
	{"CHAT_API_KEY", func(f *File) string { return f.Chat.APIKey }},
	{"CHAT_MAX_TOKENS", func(f *File) string { return intStr(f.Chat.MaxTokens) }},
	{"CHAT_TEMPERATURE", func(f *File) string { return float32Str(f.Chat.Temperature) }},
	{"CHAT_MOCK_FALLBACK", func(f *File) string { return boolStr(f.Chat.MockFallback) }},
	{"EMBEDDING_PROVIDER", func(f *File) string { return f.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(f *File) string { return f.Embedding.Model }},
	{"EMBEDDING_ENDPOINT", func(f *File) string { return f.Embedding.Endpoint }},
	{"EMBEDDING_API_KEY", func(f *File) string { return f.Embedding.APIKey }},
	{"EMBEDDING_API_VERSION", func(f *File) string { return f.Embedding.APIVersion }},
	{"EMBEDDING_DIMENSIONS", func(f *File) string { return intStr(f.Embedding.Dimensions) }},
	{"STORE_BACKEND", func(f *File) string { return f.Store.Backend }},
	{"STORE_PATH", func(f *File) string { return f.Store.Path }},
	{"STORE_COLLECTION", func(f *File) string { return f.Store.Collection }},
	{"QDRANT_HOST", func(f *File) string { return f.Store.QdrantHost }},
	{"QDRANT_PORT", func(f *File) string { return intStr(f.Store.QdrantPort) }},
	{"QDRANT_API_KEY", func(f *File) string { return f.Store.QdrantAPIKey }},
	{"QDRANT_TLS", func(f *File) string { return boolStr(f.Store.QdrantTLS) }},
	{"SERVER_HOST", func(f *File) string { return f.Server.Host }},
	{"SERVER_PORT", func(f *File) string { return intStr(f.Server.Port) }},
	{"RAGD_API_KEY", func(f *File) string { return f.Server.APIKey }},
	{"MAX_DOCUMENT_LENGTH", func(f *File) string { return intStr(f.Limits.MaxDocumentLength) }},
	{"MAX_SEARCH_RESULTS", func(f *File) string { return intStr(f.Limits.MaxSearchResults) }},
	{"MAX_CHAT_RESULTS", func(f *File) string { return intStr(f.Limits.MaxChatResults) }},
	{"MAX_CONTEXT_CHARS", func(f *File) string { return intStr(f.Limits.MaxContextChars) }},
	{"REQUEST_TIMEOUT", func(f *File) string { return intStr(f.Limits.RequestTimeoutSeconds) }},
	{"LOG_LEVEL", func(f *File) string { return f.Logging.Level }},
	{"LOG_FORMAT", func(f *File) string { return f.Logging.Format }},
	{"LANGFUSE_PUBLIC_KEY", func(f *File) string { return f.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(f *File) string { return f.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(f *File) string { return f.Tracing.Host }},
}

// Load applies the .env file (if present) and a YAML config file onto the
// environment. Existing env vars are never overwritten (env always wins).
// Returns the YAML path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	// .env is the lowest file layer; godotenv never overwrites existing vars.
	if err := godotenv.Load(); err == nil {
		log.Debug("config: applied .env file")
	}

	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&f)
		if yamlVal == "" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("RAGD_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".ragd", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("ragd.yaml"); err == nil {
		return "ragd.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
