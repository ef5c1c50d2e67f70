package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default values applied when neither env nor config file sets a knob.
const (
	DefaultChatProvider = "openrouter"
	DefaultChatModel    = "openai/gpt-3.5-turbo"
	DefaultChatEndpoint = "https://openrouter.ai/api/v1"

	DefaultMaxTokens   = 500
	DefaultTemperature = 0.7

	DefaultStoreBackend = "sqlite"
	DefaultStorePath    = "ragd.db"
	DefaultCollection   = "documents"

	DefaultQdrantPort = 6334

	DefaultServerHost = "0.0.0.0"
	DefaultServerPort = 8000

	DefaultMaxDocumentLength  = 50000
	DefaultMaxSearchResults   = 20
	DefaultSearchLimit        = 5
	DefaultMaxChatResults     = 10
	DefaultChatResults        = 3
	DefaultMaxContextChars    = 24000
	DefaultRequestTimeoutSecs = 30
)

// Settings is the fully materialized runtime configuration. It is built once
// at startup via FromEnv and passed into component constructors by value
// reference; nothing mutates it afterwards.
type Settings struct {
	Chat      ChatSettings
	Embedding EmbeddingSettings
	Store     StoreSettings
	Server    ServerSettings
	Limits    LimitSettings
	Logging   LoggingSettings
	Tracing   TracingSettings
}

// ChatSettings configures the answer-synthesis chat model.
type ChatSettings struct {
	Provider     string
	Model        string
	Endpoint     string
	APIKey       string
	MaxTokens    int
	Temperature  float32
	MockFallback bool
}

// EmbeddingSettings configures the embedding backend.
type EmbeddingSettings struct {
	Provider   string
	Model      string
	Endpoint   string
	APIKey     string
	APIVersion string
	Dimensions int
}

// StoreSettings configures the document store.
type StoreSettings struct {
	Backend    string
	Path       string
	Collection string
	Qdrant     QdrantSettings
}

// QdrantSettings configures the Qdrant backend connection.
type QdrantSettings struct {
	Host   string
	Port   int
	APIKey string
	TLS    bool
}

// ServerSettings configures the HTTP server.
type ServerSettings struct {
	Host   string
	Port   int
	APIKey string
}

// LimitSettings holds request bounds and budgets.
type LimitSettings struct {
	MaxDocumentLength  int
	MaxSearchResults   int
	DefaultSearchLimit int
	MaxChatResults     int
	DefaultChatResults int
	MaxContextChars    int
	RequestTimeout     time.Duration
}

// LoggingSettings configures structured logging output.
type LoggingSettings struct {
	Level  string
	Format string
}

// TracingSettings configures the optional Langfuse integration. Tracing is
// enabled when both keys are present.
type TracingSettings struct {
	PublicKey string
	SecretKey string
	Host      string
}

// Enabled reports whether tracing credentials are configured.
func (t TracingSettings) Enabled() bool {
	return t.PublicKey != "" && t.SecretKey != ""
}

// Addr returns the server's listen address in host:port form.
func (s ServerSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// FromEnv materializes Settings from the current environment, applying
// defaults for unset knobs. Call Load first so file layers are visible.
// Returns an error for values that parse but are out of range, so startup
// fails loudly instead of running with a silently clamped configuration.
func FromEnv() (*Settings, error) {
	set := &Settings{
		Chat: ChatSettings{
			Provider:     envStr("CHAT_PROVIDER", DefaultChatProvider),
			Model:        envStr("CHAT_MODEL", envStr("MODEL_SLUG", DefaultChatModel)),
			Endpoint:     envStr("CHAT_ENDPOINT", envStr("OPENROUTER_API_URL", "")),
			APIKey:       envStr("CHAT_API_KEY", envStr("OPENROUTER_API_KEY", "")),
			MaxTokens:    envInt("CHAT_MAX_TOKENS", DefaultMaxTokens),
			Temperature:  envFloat32("CHAT_TEMPERATURE", DefaultTemperature),
			MockFallback: envBool("CHAT_MOCK_FALLBACK", false),
		},
		Embedding: EmbeddingSettings{
			Provider:   strings.ToLower(envStr("EMBEDDING_PROVIDER", "")),
			Model:      envStr("EMBEDDING_MODEL", ""),
			Endpoint:   envStr("EMBEDDING_ENDPOINT", ""),
			APIKey:     envStr("EMBEDDING_API_KEY", ""),
			APIVersion: envStr("EMBEDDING_API_VERSION", ""),
			Dimensions: envInt("EMBEDDING_DIMENSIONS", 0),
		},
		Store: StoreSettings{
			Backend:    strings.ToLower(envStr("STORE_BACKEND", DefaultStoreBackend)),
			Path:       envStr("STORE_PATH", DefaultStorePath),
			Collection: envStr("STORE_COLLECTION", DefaultCollection),
			Qdrant: QdrantSettings{
				Host:   envStr("QDRANT_HOST", "localhost"),
				Port:   envInt("QDRANT_PORT", DefaultQdrantPort),
				APIKey: envStr("QDRANT_API_KEY", ""),
				TLS:    envBool("QDRANT_TLS", false),
			},
		},
		Server: ServerSettings{
			Host:   envStr("SERVER_HOST", DefaultServerHost),
			Port:   envInt("SERVER_PORT", DefaultServerPort),
			APIKey: envStr("RAGD_API_KEY", ""),
		},
		Limits: LimitSettings{
			MaxDocumentLength:  envInt("MAX_DOCUMENT_LENGTH", DefaultMaxDocumentLength),
			MaxSearchResults:   envInt("MAX_SEARCH_RESULTS", DefaultMaxSearchResults),
			DefaultSearchLimit: DefaultSearchLimit,
			MaxChatResults:     envInt("MAX_CHAT_RESULTS", DefaultMaxChatResults),
			DefaultChatResults: DefaultChatResults,
			MaxContextChars:    envInt("MAX_CONTEXT_CHARS", DefaultMaxContextChars),
			RequestTimeout:     time.Duration(envInt("REQUEST_TIMEOUT", DefaultRequestTimeoutSecs)) * time.Second,
		},
		Logging: LoggingSettings{
			Level:  envStr("LOG_LEVEL", "info"),
			Format: envStr("LOG_FORMAT", "json"),
		},
		Tracing: TracingSettings{
			PublicKey: envStr("LANGFUSE_PUBLIC_KEY", ""),
			SecretKey: envStr("LANGFUSE_SECRET_KEY", ""),
			Host:      envStr("LANGFUSE_HOST", "https://cloud.langfuse.com"),
		},
	}

	if set.Chat.Endpoint == "" && set.Chat.Provider == "openrouter" {
		set.Chat.Endpoint = DefaultChatEndpoint
	}
	if set.Chat.APIKey == "" {
		// Without a credential every upstream call would fail; degrade to the
		// mock answer path instead of hammering the provider.
		set.Chat.MockFallback = true
	}
	if set.Limits.DefaultSearchLimit > set.Limits.MaxSearchResults {
		set.Limits.DefaultSearchLimit = set.Limits.MaxSearchResults
	}
	if set.Limits.DefaultChatResults > set.Limits.MaxChatResults {
		set.Limits.DefaultChatResults = set.Limits.MaxChatResults
	}

	if err := set.validate(); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *Settings) validate() error {
	if s.Server.Port < 1 || s.Server.Port > 65535 {
		return fmt.Errorf("config: SERVER_PORT must be 1-65535, got %d", s.Server.Port)
	}
	if s.Limits.MaxDocumentLength < 1 {
		return fmt.Errorf("config: MAX_DOCUMENT_LENGTH must be positive, got %d", s.Limits.MaxDocumentLength)
	}
	if s.Limits.MaxSearchResults < 1 {
		return fmt.Errorf("config: MAX_SEARCH_RESULTS must be positive, got %d", s.Limits.MaxSearchResults)
	}
	if s.Limits.MaxChatResults < 1 {
		return fmt.Errorf("config: MAX_CHAT_RESULTS must be positive, got %d", s.Limits.MaxChatResults)
	}
	if s.Limits.RequestTimeout <= 0 {
		return fmt.Errorf("config: REQUEST_TIMEOUT must be positive")
	}
	switch s.Store.Backend {
	case "sqlite", "qdrant":
	default:
		return fmt.Errorf("config: STORE_BACKEND must be sqlite or qdrant, got %q", s.Store.Backend)
	}
	return nil
}

// envStr returns the env var value, or def when unset or blank.
func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envInt returns the env var parsed as int, or def when unset or unparseable.
func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// envFloat32 returns the env var parsed as float32, or def when unset or
// unparseable.
func envFloat32(key string, def float32) float32 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return def
	}
	return float32(f)
}

// envBool returns the env var parsed as bool. Accepts 1/t/true/y/yes and
// their upper-case forms.
func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	switch v {
	case "1", "t", "true", "y", "yes", "on":
		return true
	case "0", "f", "false", "n", "no", "off":
		return false
	}
	return def
}
