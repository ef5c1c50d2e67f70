package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/corpuslabs/ragd/internal/rag"
)

// fakeChatModel is a scriptable chat backend: the first `failures` calls
// error, subsequent calls return the canned reply.
type fakeChatModel struct {
	reply    string
	tokens   int
	failures int
	calls    int
	lastIn   []*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.calls++
	f.lastIn = in
	if f.calls <= f.failures {
		return nil, errors.New("upstream unavailable")
	}
	msg := schema.AssistantMessage(f.reply, nil)
	msg.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{TotalTokens: f.tokens}}
	return msg, nil
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func (f *fakeChatModel) WithTools([]*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}

// fakeEmbedder returns a fixed vector for every text.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

// fakeStore serves canned matches.
type fakeStore struct {
	matches []rag.Match
}

func (f *fakeStore) Upsert(context.Context, string, map[string]any, []float32, bool) (string, error) {
	return "", errors.New("not implemented")
}
func (f *fakeStore) BulkUpsert(context.Context, []rag.PendingDocument, bool) (*rag.BulkResult, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeStore) Get(context.Context, string) (*rag.Document, error) { return nil, rag.ErrNotFound }
func (f *fakeStore) Update(context.Context, string, string, map[string]any, []float32) (*rag.Document, error) {
	return nil, rag.ErrNotFound
}
func (f *fakeStore) Delete(context.Context, string) error { return rag.ErrNotFound }
func (f *fakeStore) Query(_ context.Context, _ []float32, k int) ([]rag.Match, error) {
	if len(f.matches) > k {
		return f.matches[:k], nil
	}
	return f.matches, nil
}
func (f *fakeStore) Count(context.Context) (int, error) { return len(f.matches), nil }
func (f *fakeStore) CollectionName() string              { return "documents" }
func (f *fakeStore) Ping(context.Context) error          { return nil }
func (f *fakeStore) Close() error                        { return nil }

func newTestSynthesizer(t *testing.T, chat model.ToolCallingChatModel, matches []rag.Match, cfg *Config) *Synthesizer {
	t.Helper()
	r, err := rag.NewRetriever(fakeEmbedder{}, &fakeStore{matches: matches}, nil)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	if cfg == nil {
		cfg = &Config{ModelName: "openai/gpt-3.5-turbo"}
	}
	s, err := NewSynthesizer(r, chat, cfg)
	if err != nil {
		t.Fatalf("new synthesizer: %v", err)
	}
	return s
}

func someMatches() []rag.Match {
	return []rag.Match{
		{Doc: rag.Document{ID: "1", Content: "Go was designed at Google.", Metadata: map[string]any{}}, Distance: 0.2},
		{Doc: rag.Document{ID: "2", Content: "Go compiles to native code.", Metadata: map[string]any{}}, Distance: 0.4},
	}
}

func Test_Ask_ValidationErrors(t *testing.T) {
	t.Parallel()
	s := newTestSynthesizer(t, &fakeChatModel{reply: "ok"}, nil, nil)
	ctx := context.Background()

	if _, err := s.Ask(ctx, "   ", 3); !rag.IsValidation(err) {
		t.Errorf("empty question: want ValidationError, got %v", err)
	}
	if _, err := s.Ask(ctx, "q", 0); !rag.IsValidation(err) {
		t.Errorf("explicit zero max_results: want ValidationError, got %v", err)
	}
	if _, err := s.Ask(ctx, "q", -1); !rag.IsValidation(err) {
		t.Errorf("negative max_results: want ValidationError, got %v", err)
	}
	if _, err := s.Ask(ctx, "q", 11); !rag.IsValidation(err) {
		t.Errorf("max_results over bound: want ValidationError, got %v", err)
	}
}

func Test_Synthesizer_DefaultResults(t *testing.T) {
	t.Parallel()

	s := newTestSynthesizer(t, &fakeChatModel{reply: "ok"}, nil, nil)
	if got := s.DefaultResults(); got != 3 {
		t.Errorf("DefaultResults: want 3, got %d", got)
	}

	s = newTestSynthesizer(t, &fakeChatModel{reply: "ok"}, nil, &Config{DefaultResults: 7})
	if got := s.DefaultResults(); got != 7 {
		t.Errorf("configured DefaultResults: want 7, got %d", got)
	}
}

func Test_Ask_OversizedContextExcluded(t *testing.T) {
	t.Parallel()

	// The single retrieved document exceeds the whole context budget, so the
	// synthesizer must fall through to the zero-context prompt instead of
	// sending a truncated or oversized context.
	chat := &fakeChatModel{reply: "general answer"}
	matches := []rag.Match{
		{Doc: rag.Document{ID: "1", Content: strings.Repeat("x", 1000), Metadata: map[string]any{}}, Distance: 0.1},
	}
	s := newTestSynthesizer(t, chat, matches, &Config{ModelName: "m", MaxContextChars: 100})

	ans, err := s.Ask(context.Background(), "q", 3)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if ans.ContextDocumentsFound != 0 {
		t.Errorf("context documents: want 0, got %d", ans.ContextDocumentsFound)
	}
	if len(ans.Sources) != 0 {
		t.Errorf("sources: want none, got %d", len(ans.Sources))
	}
	if !strings.Contains(chat.lastIn[1].Content, "without specific context") {
		t.Error("want the zero-context prompt when nothing fits the budget")
	}
}

func Test_Ask_HappyPath(t *testing.T) {
	t.Parallel()

	chat := &fakeChatModel{reply: "Go is a language designed at Google.", tokens: 42}
	s := newTestSynthesizer(t, chat, someMatches(), nil)

	ans, err := s.Ask(context.Background(), "Who designed Go?", 3)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if ans.Answer != "Go is a language designed at Google." {
		t.Errorf("answer: got %q", ans.Answer)
	}
	if ans.TokensUsed != 42 {
		t.Errorf("tokens: want 42, got %d", ans.TokensUsed)
	}
	if ans.ContextDocumentsFound != 2 {
		t.Errorf("context documents: want 2, got %d", ans.ContextDocumentsFound)
	}
	if len(ans.Sources) != 2 {
		t.Errorf("sources: want 2, got %d", len(ans.Sources))
	}
	if ans.Degraded {
		t.Error("happy path must not be degraded")
	}
	if ans.ModelUsed != "openai/gpt-3.5-turbo" {
		t.Errorf("model_used: got %q", ans.ModelUsed)
	}

	// The prompt must carry the retrieved context joined by the separator,
	// preceded by the grounding system message.
	if len(chat.lastIn) != 2 {
		t.Fatalf("want 2 messages, got %d", len(chat.lastIn))
	}
	if chat.lastIn[0].Role != schema.System {
		t.Errorf("first message role: got %s", chat.lastIn[0].Role)
	}
	prompt := chat.lastIn[1].Content
	if !strings.Contains(prompt, "Go was designed at Google.") {
		t.Error("prompt missing first context document")
	}
	if !strings.Contains(prompt, "\n---\n") {
		t.Error("prompt missing context separator")
	}
	if !strings.Contains(prompt, "Who designed Go?") {
		t.Error("prompt missing the question")
	}
}

func Test_Ask_NoContextPrompt(t *testing.T) {
	t.Parallel()

	chat := &fakeChatModel{reply: "General answer."}
	s := newTestSynthesizer(t, chat, nil, nil)

	ans, err := s.Ask(context.Background(), "Anything?", 3)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if ans.ContextDocumentsFound != 0 {
		t.Errorf("context documents: want 0, got %d", ans.ContextDocumentsFound)
	}
	prompt := chat.lastIn[1].Content
	if !strings.Contains(prompt, "without specific context") {
		t.Error("no-context prompt missing the disclosure instruction")
	}
}

func Test_Ask_RetriesOnce(t *testing.T) {
	t.Parallel()

	chat := &fakeChatModel{reply: "second time lucky", failures: 1}
	s := newTestSynthesizer(t, chat, someMatches(), nil)

	ans, err := s.Ask(context.Background(), "q", 3)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if chat.calls != 2 {
		t.Errorf("want exactly 2 calls, got %d", chat.calls)
	}
	if ans.Answer != "second time lucky" {
		t.Errorf("answer: got %q", ans.Answer)
	}
}

func Test_Ask_UpstreamErrorAfterRetry(t *testing.T) {
	t.Parallel()

	chat := &fakeChatModel{failures: 2}
	s := newTestSynthesizer(t, chat, someMatches(), nil)

	_, err := s.Ask(context.Background(), "q", 3)
	if !rag.IsUpstream(err) {
		t.Fatalf("want UpstreamError, got %v", err)
	}
	if chat.calls != 2 {
		t.Errorf("want exactly 2 calls, got %d", chat.calls)
	}
}

func Test_Ask_MockFallbackOnUpstreamFailure(t *testing.T) {
	t.Parallel()

	chat := &fakeChatModel{failures: 2}
	s := newTestSynthesizer(t, chat, someMatches(), &Config{ModelName: "m", MockFallback: true})

	ans, err := s.Ask(context.Background(), "q", 3)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !ans.Degraded {
		t.Error("fallback answer must be marked degraded")
	}
	if !strings.Contains(ans.Answer, "simulated response") {
		t.Error("fallback answer missing the simulated marker")
	}
	if ans.TokensUsed != 0 {
		t.Errorf("degraded answer must report zero tokens, got %d", ans.TokensUsed)
	}
}

func Test_Ask_MockModeWithoutChatModel(t *testing.T) {
	t.Parallel()

	s := newTestSynthesizer(t, nil, someMatches(), nil)
	if !s.MockMode() {
		t.Fatal("nil chat model must select mock mode")
	}

	ans, err := s.Ask(context.Background(), "What is Go?", 2)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !ans.Degraded {
		t.Error("mock answer must be marked degraded")
	}
	if !strings.Contains(ans.Answer, "simulated response") {
		t.Error("mock answer missing the simulated marker")
	}
	if !strings.Contains(ans.Answer, "2 relevant document(s)") {
		t.Errorf("mock answer should mention the context count: %q", ans.Answer)
	}
	if len(ans.Sources) != 2 {
		t.Errorf("mock mode still returns sources, got %d", len(ans.Sources))
	}
}

func Test_Ask_MockModeNoDocuments(t *testing.T) {
	t.Parallel()

	s := newTestSynthesizer(t, nil, nil, nil)
	ans, err := s.Ask(context.Background(), "Anything indexed?", 3)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !strings.Contains(ans.Answer, "couldn't find any relevant documents") {
		t.Errorf("mock no-context answer: %q", ans.Answer)
	}
}
