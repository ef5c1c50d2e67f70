package ingestion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/corpuslabs/ragd/internal/docstore"
	"github.com/corpuslabs/ragd/internal/rag"
)

// fakeEmbedder returns a fixed vector per text.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

// recordingStore captures bulk upserts and simulates duplicate suppression by
// the derived content ID. Like the real stores, the ID covers content and
// metadata, so overlapping chunks with identical text but distinct positions
// are not duplicates of each other.
type recordingStore struct {
	docs []rag.PendingDocument
	seen map[string]bool
}

func newRecordingStore() *recordingStore {
	return &recordingStore{seen: map[string]bool{}}
}

func (s *recordingStore) Upsert(context.Context, string, map[string]any, []float32, bool) (string, error) {
	panic("not used")
}

func (s *recordingStore) BulkUpsert(_ context.Context, docs []rag.PendingDocument, allowDuplicates bool) (*rag.BulkResult, error) {
	res := &rag.BulkResult{TotalRequested: len(docs)}
	for _, d := range docs {
		key := docstore.ContentID(d.Content, d.Metadata)
		if !allowDuplicates && s.seen[key] {
			continue
		}
		s.seen[key] = true
		s.docs = append(s.docs, d)
		res.AddedIDs = append(res.AddedIDs, key)
	}
	return res, nil
}

func (s *recordingStore) Get(context.Context, string) (*rag.Document, error) {
	return nil, rag.ErrNotFound
}
func (s *recordingStore) Update(context.Context, string, string, map[string]any, []float32) (*rag.Document, error) {
	return nil, rag.ErrNotFound
}
func (s *recordingStore) Delete(context.Context, string) error { return rag.ErrNotFound }
func (s *recordingStore) Query(context.Context, []float32, int) ([]rag.Match, error) {
	return nil, nil
}
func (s *recordingStore) Count(context.Context) (int, error) { return len(s.docs), nil }
func (s *recordingStore) CollectionName() string              { return "documents" }
func (s *recordingStore) Ping(context.Context) error          { return nil }
func (s *recordingStore) Close() error                        { return nil }

func newTestPipeline(t *testing.T, store rag.DocumentStore, cfg *Config) *Pipeline {
	t.Helper()
	p, err := NewPipeline(fakeEmbedder{}, store, cfg)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

func Test_Ingest_LocalFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	if err := os.WriteFile(path, []byte("hello ingestion world"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	store := newRecordingStore()
	p := newTestPipeline(t, store, nil)

	report, err := p.Ingest(context.Background(), []Source{{Location: path}}, nil)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if report.Sources != 1 || report.ChunksAdded != 1 {
		t.Errorf("report: %+v", report)
	}
	if len(store.docs) != 1 {
		t.Fatalf("want 1 stored chunk, got %d", len(store.docs))
	}

	meta := store.docs[0].Metadata
	if meta["source"] != path {
		t.Errorf("metadata source: got %v", meta["source"])
	}
	if meta["source_type"] != "file" || meta["format"] != "markdown" {
		t.Errorf("inferred metadata: %v", meta)
	}
	if meta["chunk_index"] != 0 || meta["chunk_count"] != 1 {
		t.Errorf("chunk position metadata: %v", meta)
	}
}

func Test_Ingest_URL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); !strings.HasPrefix(got, "ragd/") {
			t.Errorf("user agent: got %q", got)
		}
		_, _ = w.Write([]byte("content served over http"))
	}))
	t.Cleanup(srv.Close)

	store := newRecordingStore()
	p := newTestPipeline(t, store, nil)

	report, err := p.Ingest(context.Background(), []Source{{Location: srv.URL + "/page.html"}}, nil)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if report.ChunksAdded != 1 {
		t.Errorf("want 1 chunk added, got %d", report.ChunksAdded)
	}
	if store.docs[0].Metadata["source_type"] != "url" {
		t.Errorf("source_type: got %v", store.docs[0].Metadata["source_type"])
	}
}

func Test_Ingest_URLErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	p := newTestPipeline(t, newRecordingStore(), nil)
	if _, err := p.Ingest(context.Background(), []Source{{Location: srv.URL}}, nil); err == nil {
		t.Error("want error for non-200 fetch")
	}
}

func Test_Ingest_ChunkingWithOverlap(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	content := strings.Repeat("a", 250)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	store := newRecordingStore()
	p := newTestPipeline(t, store, &Config{ChunkSize: 100, ChunkOverlap: 10})

	report, err := p.Ingest(context.Background(), []Source{{Location: path}}, nil)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	// Stride is 90 chars: chunks start at 0, 90, 180 and the last one is short.
	if report.ChunksAdded != 3 {
		t.Fatalf("want 3 chunks, got %d", report.ChunksAdded)
	}
	if len(store.docs[0].Content) != 100 {
		t.Errorf("chunk 0 length: want 100, got %d", len(store.docs[0].Content))
	}
	if got := store.docs[2].Content; len(got) != 70 {
		t.Errorf("final chunk length: want 70, got %d", len(got))
	}
}

func Test_Ingest_DuplicateSuppression(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("identical content"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	store := newRecordingStore()
	p := newTestPipeline(t, store, nil)
	ctx := context.Background()

	if _, err := p.Ingest(ctx, []Source{{Location: path}}, nil); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	report, err := p.Ingest(ctx, []Source{{Location: path}}, nil)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if report.ChunksAdded != 0 || report.ChunksSkipped != 1 {
		t.Errorf("second run report: %+v", report)
	}
}

func Test_Ingest_MaxDocumentLength(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "huge.txt")
	if err := os.WriteFile(path, []byte(strings.Repeat("x", 200)), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	p := newTestPipeline(t, newRecordingStore(), &Config{MaxDocumentLength: 100})
	_, err := p.Ingest(context.Background(), []Source{{Location: path}}, nil)
	if !rag.IsValidation(err) {
		t.Errorf("want ValidationError, got %v", err)
	}
}

func Test_Ingest_CallerMetadataWins(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	if err := os.WriteFile(path, []byte("content"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	store := newRecordingStore()
	p := newTestPipeline(t, store, nil)

	src := Source{Location: path, Metadata: map[string]any{"title": "Custom Title", "team": "platform"}}
	if _, err := p.Ingest(context.Background(), []Source{src}, nil); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	meta := store.docs[0].Metadata
	if meta["title"] != "Custom Title" {
		t.Errorf("caller title must win: got %v", meta["title"])
	}
	if meta["team"] != "platform" {
		t.Errorf("caller metadata missing: %v", meta)
	}
}

func Test_Ingest_EmptySourceSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(path, []byte("   \n  "), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	p := newTestPipeline(t, newRecordingStore(), nil)
	report, err := p.Ingest(context.Background(), []Source{{Location: path}}, nil)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if report.Sources != 1 || report.ChunksAdded != 0 {
		t.Errorf("report: %+v", report)
	}
}
