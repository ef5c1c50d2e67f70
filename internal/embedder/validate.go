package embedder

import (
	"log/slog"
	"strings"

	"github.com/corpuslabs/ragd/internal/config"
)

// knownChatModelFragments contains name fragments that identify
// chat/completion models, which are not suitable for embedding. A matching
// EMBEDDING_MODEL triggers a startup warning so the operator notices the
// misconfiguration before the first ingest produces broken vectors.
var knownChatModelFragments = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
	"vicuna",
	"falcon",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, fragment := range knownChatModelFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// WarnOnSuspectModel emits a startup warning when the configured embedding
// model looks like a chat model. Pre-flight only — the configuration is not
// rejected, since model naming is heuristic.
func WarnOnSuspectModel(set *config.Settings, log *slog.Logger) {
	model := set.Embedding.Model
	if model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: configured model looks like a chat model, not an embedding model",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}
}
