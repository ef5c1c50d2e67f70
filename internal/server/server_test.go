package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/corpuslabs/ragd/internal/answer"
	"github.com/corpuslabs/ragd/internal/embedder"
	"github.com/corpuslabs/ragd/internal/rag"
)

// fakeEmbedBackend is a primary embedding backend that always succeeds,
// producing fixed-dimension vectors so the generator pins ModelReady.
type fakeEmbedBackend struct {
	dim int
}

func (f fakeEmbedBackend) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, f.dim)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}

func (f fakeEmbedBackend) ModelName() string { return "fake-embed" }

// fakeChatModel is a scriptable chat backend: the first `failures` calls
// error, subsequent calls return the canned reply.
type fakeChatModel struct {
	reply    string
	tokens   int
	failures int
	calls    int
}

func (f *fakeChatModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.calls++
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

// memStore is an in-memory DocumentStore with content-based duplicate
// suppression and canned nearest-neighbor results.
type memStore struct {
	mu        sync.Mutex
	docs      map[string]*rag.Document
	byContent map[string]string
	nextID    int
	matches   []rag.Match
	countErr  error
	pingErr   error
}

func newMemStore() *memStore {
	return &memStore{
		docs:      map[string]*rag.Document{},
		byContent: map[string]string{},
	}
}

func (s *memStore) Upsert(_ context.Context, content string, metadata map[string]any, embedding []float32, allowDuplicates bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(content, metadata, embedding, allowDuplicates), nil
}

func (s *memStore) upsertLocked(content string, metadata map[string]any, embedding []float32, allowDuplicates bool) string {
	if !allowDuplicates {
		if id, ok := s.byContent[content]; ok {
			return id
		}
	}
	s.nextID++
	id := fmt.Sprintf("doc-%d", s.nextID)
	s.docs[id] = &rag.Document{
		ID:        id,
		Content:   content,
		Metadata:  metadata,
		Embedding: embedding,
		CreatedAt: time.Now(),
	}
	if !allowDuplicates {
		s.byContent[content] = id
	}
	return id
}

func (s *memStore) BulkUpsert(_ context.Context, docs []rag.PendingDocument, allowDuplicates bool) (*rag.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := &rag.BulkResult{TotalRequested: len(docs)}
	for _, d := range docs {
		if !allowDuplicates {
			if _, ok := s.byContent[d.Content]; ok {
				continue
			}
		}
		res.AddedIDs = append(res.AddedIDs, s.upsertLocked(d.Content, d.Metadata, d.Embedding, allowDuplicates))
	}
	return res, nil
}

func (s *memStore) Get(_ context.Context, id string) (*rag.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, rag.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *memStore) Update(_ context.Context, id, content string, metadata map[string]any, embedding []float32) (*rag.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, rag.ErrNotFound
	}
	delete(s.byContent, doc.Content)
	doc.Content = content
	doc.Metadata = metadata
	doc.Embedding = embedding
	s.byContent[content] = id
	cp := *doc
	return &cp, nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return rag.ErrNotFound
	}
	delete(s.byContent, doc.Content)
	delete(s.docs, id)
	return nil
}

func (s *memStore) Query(_ context.Context, _ []float32, k int) ([]rag.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matches := append([]rag.Match(nil), s.matches...)
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *memStore) Count(context.Context) (int, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs), nil
}

func (s *memStore) CollectionName() string     { return "documents" }
func (s *memStore) Ping(context.Context) error { return s.pingErr }
func (s *memStore) Close() error               { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// newTestServer wires a full server over the given store and chat model.
// A nil chat model selects mock mode, mirroring production wiring without
// credentials.
func newTestServer(t *testing.T, store rag.DocumentStore, chat model.ToolCallingChatModel, cfg *Config) *Server {
	t.Helper()

	gen := embedder.NewGenerator(context.Background(), fakeEmbedBackend{dim: 4}, nil, discardLogger())

	ret, err := rag.NewRetriever(gen, store, nil)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	syn, err := answer.NewSynthesizer(ret, chat, &answer.Config{ModelName: "test-model"})
	if err != nil {
		t.Fatalf("new synthesizer: %v", err)
	}

	if cfg == nil {
		cfg = &Config{}
	}
	cfg.Logger = discardLogger()

	s, err := New(Deps{Store: store, Embeddings: gen, Retriever: ret, Synthesizer: syn}, cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(s.stopRL)
	return s
}

// do sends a request through the server's full middleware chain and returns
// the recorded response.
func do(s *Server, method, target string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			panic(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	req.RemoteAddr = "192.0.2.1:1234"
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals the recorded JSON body into a generic map.
func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}
