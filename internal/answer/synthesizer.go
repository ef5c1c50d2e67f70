// Package answer implements the retrieve-and-synthesize stage of the
// pipeline: retrieval of relevant context, context packing under a character
// budget, prompt construction, and chat-completion with a bounded timeout,
// one retry, and an optional templated degraded mode.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/corpuslabs/ragd/internal/budget"
	"github.com/corpuslabs/ragd/internal/logging"
	"github.com/corpuslabs/ragd/internal/rag"
)

// systemPrompt instructs the model to ground its answer in the provided
// context and be honest about gaps.
const systemPrompt = "You are a helpful assistant that answers questions based on provided context. " +
	"Always be honest about the limitations of the information available."

// retryAttempts is the total number of chat calls made before giving up:
// the initial call plus exactly one retry.
const retryAttempts = 2

// Config holds the tunables for constructing a Synthesizer.
type Config struct {
	// ModelName identifies the chat model for response metadata.
	ModelName string

	// Timeout bounds each individual chat call. Defaults to 30s if zero.
	Timeout time.Duration

	// MockFallback serves a templated degraded answer when the upstream chat
	// service fails, instead of surfacing the error.
	MockFallback bool

	// DefaultResults is the context document count when the caller passes 0.
	// Defaults to 3 if zero.
	DefaultResults int

	// MaxResults is the largest accepted context document count. Defaults to
	// 10 if zero.
	MaxResults int

	// MaxContextChars is the character budget for packed context documents.
	// Defaults to 24000 if zero.
	MaxContextChars int
}

// Synthesizer answers questions over the document corpus. A nil chat model
// pins it to mock mode: every answer is templated and marked simulated.
// Safe for concurrent use.
type Synthesizer struct {
	retriever       *rag.Retriever
	chat            model.ToolCallingChatModel
	modelName       string
	timeout         time.Duration
	mockFallback    bool
	defaultResults  int
	maxResults      int
	maxContextChars int
}

// NewSynthesizer constructs a Synthesizer. chat may be nil, which selects
// mock mode for the process lifetime.
func NewSynthesizer(retriever *rag.Retriever, chat model.ToolCallingChatModel, cfg *Config) (*Synthesizer, error) {
	if retriever == nil {
		return nil, fmt.Errorf("answer: retriever must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}

	s := &Synthesizer{
		retriever:       retriever,
		chat:            chat,
		modelName:       cfg.ModelName,
		timeout:         cfg.Timeout,
		mockFallback:    cfg.MockFallback,
		defaultResults:  cfg.DefaultResults,
		maxResults:      cfg.MaxResults,
		maxContextChars: cfg.MaxContextChars,
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}
	if s.defaultResults <= 0 {
		s.defaultResults = 3
	}
	if s.maxResults <= 0 {
		s.maxResults = 10
	}
	if s.maxContextChars <= 0 {
		s.maxContextChars = 24000
	}
	return s, nil
}

// MockMode reports whether answers are templated because no chat model is
// configured.
func (s *Synthesizer) MockMode() bool { return s.chat == nil }

// ModelName returns the chat model identifier used in response metadata.
func (s *Synthesizer) ModelName() string { return s.modelName }

// DefaultResults returns the context document count callers should use when
// no explicit max_results was given. Ask itself never substitutes it.
func (s *Synthesizer) DefaultResults() int { return s.defaultResults }

// Ask runs the full retrieve-and-synthesize cycle for a question.
// An empty question or an out-of-range maxResults (anything below 1, including
// an explicit 0, or above the maximum) fails with a ValidationError. Retrieval
// hits are packed under the context budget, the prompt is built from whatever
// fits, and the chat model is called with a bounded timeout and one retry.
func (s *Synthesizer) Ask(ctx context.Context, question string, maxResults int) (*rag.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, rag.Validationf("question", "must not be empty")
	}
	if maxResults < 1 || maxResults > s.maxResults {
		return nil, rag.Validationf("max_results", "must be between 1 and %d, got %d", s.maxResults, maxResults)
	}

	log := logging.FromContext(ctx)
	start := time.Now()

	results, err := s.retriever.Search(ctx, question, maxResults)
	if err != nil {
		return nil, err
	}

	packed := budget.PackDocuments(results, s.maxContextChars)
	if dropped := len(results) - len(packed); dropped > 0 {
		log.Debug("answer: context budget dropped documents",
			slog.Int("retrieved", len(results)),
			slog.Int("packed", len(packed)),
		)
	}

	ans := &rag.Answer{
		Sources:               packed,
		ModelUsed:             s.modelName,
		ContextDocumentsFound: len(packed),
	}

	if s.chat == nil {
		ans.Answer = mockAnswer(question, len(packed))
		ans.Degraded = true
		ans.ProcessingTime = elapsed(start)
		return ans, nil
	}

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(buildPrompt(question, packed)),
	}
	log.Debug("answer: prompt assembled",
		slog.Int("context_documents", len(packed)),
		slog.Int("estimated_prompt_tokens", budget.EstimateMessages(messages)),
	)

	msg, err := s.generate(ctx, messages)
	if err != nil {
		if s.mockFallback {
			log.Warn("answer: chat service failed, serving templated fallback",
				slog.Any("error", err),
			)
			ans.Answer = mockAnswer(question, len(packed))
			ans.Degraded = true
			ans.ProcessingTime = elapsed(start)
			return ans, nil
		}
		return nil, &rag.UpstreamError{Service: "chat-completion", Attempts: retryAttempts, Err: err}
	}

	ans.Answer = msg.Content
	if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		ans.TokensUsed = msg.ResponseMeta.Usage.TotalTokens
	}
	ans.ProcessingTime = elapsed(start)

	log.Debug("answer: generated",
		slog.Int("context_documents", len(packed)),
		slog.Int("tokens_used", ans.TokensUsed),
		slog.Float64("processing_time", ans.ProcessingTime),
	)
	return ans, nil
}

// generate calls the chat model with a per-attempt timeout and exactly one
// retry. Transient upstream hiccups usually clear on the second attempt;
// anything past that is the caller's problem.
func (s *Synthesizer) generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	var lastErr error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		msg, err := s.chat.Generate(callCtx, messages)
		cancel()
		if err == nil {
			return msg, nil
		}
		lastErr = err
		// The parent context being done means the client went away; retrying
		// would only burn tokens nobody will read.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logging.FromContext(ctx).Warn("answer: chat call failed",
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
	}
	return nil, lastErr
}

// buildPrompt assembles the user prompt. With context documents present, they
// are joined with a separator line and the model is asked to ground its
// answer in them; without context, the model is asked to answer generally and
// say so.
func buildPrompt(question string, docs []rag.SearchResult) string {
	if len(docs) == 0 {
		return fmt.Sprintf(`Question: %s

I don't have any specific context documents to reference. Please provide a general answer based on your knowledge, but mention that this is without specific context.`, question)
	}

	contents := make([]string, len(docs))
	for i, d := range docs {
		contents[i] = d.Content
	}
	contextStr := strings.Join(contents, "\n---\n")

	return fmt.Sprintf(`Based on the following context, answer the question. If the context doesn't contain enough information, say so clearly.

Context:
%s

Question: %s

Please provide a helpful answer based on the context above. If you reference specific information, mention which part of the context it comes from.`, contextStr, question)
}

// mockAnswer produces the templated degraded answer. The simulated marker is
// always present so no reader mistakes it for model output.
func mockAnswer(question string, contextDocs int) string {
	if contextDocs > 0 {
		return fmt.Sprintf(`Based on the retrieved context, I found %d relevant document(s) related to your question: %q

Context summary: The documents contain information that appears relevant to your query.

Note: This is a simulated response because no chat API key was provided. In a real deployment, this would contain an AI-generated answer based on the context documents.`, contextDocs, truncate(question, 100))
	}

	return fmt.Sprintf(`I couldn't find any relevant documents in the database for your question: %q

Note: This is a simulated response because no chat API key was provided. In a real deployment, this would contain an AI-generated answer.`, truncate(question, 100))
}

// truncate shortens s to at most n runes, appending an ellipsis when cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// elapsed returns the wall-clock seconds since start, rounded to two decimals
// to keep response payloads tidy.
func elapsed(start time.Time) float64 {
	return math.Round(time.Since(start).Seconds()*100) / 100
}
