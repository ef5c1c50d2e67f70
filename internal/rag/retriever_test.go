package rag

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeEmbedder returns a fixed vector for every input text.
type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

// fakeStore serves canned matches and records the query it received.
type fakeStore struct {
	matches   []Match
	err       error
	lastK     int
	lastQuery []float32
}

func (f *fakeStore) Upsert(context.Context, string, map[string]any, []float32, bool) (string, error) {
	return "", errors.New("not implemented")
}
func (f *fakeStore) BulkUpsert(context.Context, []PendingDocument, bool) (*BulkResult, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeStore) Get(context.Context, string) (*Document, error) { return nil, ErrNotFound }
func (f *fakeStore) Update(context.Context, string, string, map[string]any, []float32) (*Document, error) {
	return nil, ErrNotFound
}
func (f *fakeStore) Delete(context.Context, string) error { return ErrNotFound }
func (f *fakeStore) Query(_ context.Context, embedding []float32, k int) ([]Match, error) {
	f.lastQuery = embedding
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	if len(f.matches) > k {
		return f.matches[:k], nil
	}
	return f.matches, nil
}
func (f *fakeStore) Count(context.Context) (int, error) { return len(f.matches), nil }
func (f *fakeStore) CollectionName() string              { return "documents" }
func (f *fakeStore) Ping(context.Context) error          { return nil }
func (f *fakeStore) Close() error                        { return nil }

func doc(content string) Document {
	return Document{ID: "id-" + content, Content: content, Metadata: map[string]any{}, CreatedAt: time.Now()}
}

func Test_Retriever_Search(t *testing.T) {
	t.Parallel()

	store := &fakeStore{matches: []Match{
		{Doc: doc("nearest"), Distance: 0.2},
		{Doc: doc("middle"), Distance: 1.0},
		{Doc: doc("farthest"), Distance: 1.8},
	}}
	r, err := NewRetriever(&fakeEmbedder{vector: []float32{1, 0}}, store, nil)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	results, err := r.Search(context.Background(), "what is nearest?", 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("want 3 results, got %d", len(results))
	}

	wantScores := []float64{0.9, 0.5, 0.1}
	for i, res := range results {
		if diff := res.Score - wantScores[i]; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("result[%d]: want score %v, got %v", i, wantScores[i], res.Score)
		}
	}
	if results[0].Content != "nearest" {
		t.Errorf("result[0]: want nearest, got %q", results[0].Content)
	}
}

func Test_Retriever_DefaultLimit(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	r, err := NewRetriever(&fakeEmbedder{vector: []float32{1}}, store, &RetrieverConfig{DefaultLimit: 7, MaxLimit: 20})
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	// The default is exposed for callers to resolve an omitted limit; Search
	// itself never substitutes it.
	if got := r.DefaultLimit(); got != 7 {
		t.Errorf("DefaultLimit: want 7, got %d", got)
	}
	if _, err := r.Search(context.Background(), "query", r.DefaultLimit()); err != nil {
		t.Fatalf("search: %v", err)
	}
	if store.lastK != 7 {
		t.Errorf("store saw limit %d, want 7", store.lastK)
	}
}

func Test_Retriever_ExplicitZeroLimitRejected(t *testing.T) {
	t.Parallel()

	store := &fakeStore{matches: []Match{{Doc: doc("hit"), Distance: 0.1}}}
	r, err := NewRetriever(&fakeEmbedder{vector: []float32{1}}, store, nil)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	results, err := r.Search(context.Background(), "x", 0)
	if !IsValidation(err) {
		t.Fatalf("limit=0: want ValidationError, got err=%v, %d results", err, len(results))
	}
}

func Test_Retriever_ValidationErrors(t *testing.T) {
	t.Parallel()

	r, err := NewRetriever(&fakeEmbedder{vector: []float32{1}}, &fakeStore{}, nil)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	ctx := context.Background()

	cases := []struct {
		name  string
		query string
		limit int
	}{
		{"empty query", "", 5},
		{"whitespace query", "   \t\n", 5},
		{"zero limit", "q", 0},
		{"negative limit", "q", -1},
		{"limit over max", "q", 21},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := r.Search(ctx, tc.query, tc.limit)
			if !IsValidation(err) {
				t.Errorf("want ValidationError, got %v", err)
			}
		})
	}
}

func Test_Retriever_EmptyStoreReturnsEmpty(t *testing.T) {
	t.Parallel()

	r, err := NewRetriever(&fakeEmbedder{vector: []float32{1}}, &fakeStore{}, nil)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	results, err := r.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("want empty results, got %d", len(results))
	}
}

func Test_Retriever_PropagatesEmbedderFailure(t *testing.T) {
	t.Parallel()

	r, err := NewRetriever(&fakeEmbedder{err: errors.New("backend down")}, &fakeStore{}, nil)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	if _, err := r.Search(context.Background(), "q", 5); err == nil {
		t.Error("want error when embedder fails")
	}
}

func Test_Similarity(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		distance float64
		want     float64
	}{
		{"identical", 0, 1},
		{"orthogonal", 1, 0.5},
		{"opposite", 2, 0},
		{"below range clamps", -0.1, 1},
		{"above range clamps", 2.5, 0},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Similarity(tc.distance); got != tc.want {
				t.Errorf("Similarity(%v) = %v, want %v", tc.distance, got, tc.want)
			}
		})
	}
}
