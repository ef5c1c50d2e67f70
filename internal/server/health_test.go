package server

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/corpuslabs/ragd/internal/answer"
	"github.com/corpuslabs/ragd/internal/embedder"
	"github.com/corpuslabs/ragd/internal/rag"
)

func Test_Health_Healthy(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, newMemStore(), nil, nil)
	rec := do(s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	body := decode(t, rec)
	if body["status"] != "healthy" {
		t.Errorf("status: got %v", body["status"])
	}
	components, _ := body["components"].(map[string]any)
	db, _ := components["database"].(map[string]any)
	if db["status"] != "healthy" || db["document_count"] != float64(0) {
		t.Errorf("database component: %v", db)
	}
	emb, _ := components["embeddings"].(map[string]any)
	if emb["status"] != "healthy" || emb["fallback_mode"] != false {
		t.Errorf("embeddings component: %v", emb)
	}
	if emb["dimension"] != float64(4) {
		t.Errorf("dimension: got %v", emb["dimension"])
	}
}

func Test_Health_DegradedOnFallbackEmbeddings(t *testing.T) {
	t.Parallel()

	// No primary backend: the generator pins FallbackActive, which the health
	// endpoint reports as a degraded embeddings component.
	store := newMemStore()
	gen := embedder.NewGenerator(context.Background(), nil, nil, discardLogger())
	ret, err := rag.NewRetriever(gen, store, nil)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	syn, err := answer.NewSynthesizer(ret, nil, &answer.Config{ModelName: "m"})
	if err != nil {
		t.Fatalf("new synthesizer: %v", err)
	}
	s, err := New(Deps{Store: store, Embeddings: gen, Retriever: ret, Synthesizer: syn}, &Config{Logger: discardLogger()})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(s.stopRL)

	body := decode(t, do(s, http.MethodGet, "/health", nil))
	if body["status"] != "degraded" {
		t.Errorf("status: got %v", body["status"])
	}
	components, _ := body["components"].(map[string]any)
	emb, _ := components["embeddings"].(map[string]any)
	if emb["fallback_mode"] != true || emb["status"] != "degraded" {
		t.Errorf("embeddings component: %v", emb)
	}
}

func Test_Health_DegradedOnStoreFailure(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.countErr = errors.New("connection refused")
	s := newTestServer(t, store, nil, nil)

	body := decode(t, do(s, http.MethodGet, "/health", nil))
	if body["status"] != "degraded" {
		t.Errorf("status: got %v", body["status"])
	}
	components, _ := body["components"].(map[string]any)
	db, _ := components["database"].(map[string]any)
	if db["status"] != "unhealthy" {
		t.Errorf("database component: %v", db)
	}
}

func Test_Ready_AllProbesPass(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	s := newTestServer(t, store, nil, &Config{
		Pingers: []Pinger{NewStorePinger(store, "memory")},
	})

	rec := do(s, http.MethodGet, "/ready", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["ready"] != true {
		t.Errorf("ready: got %v", body["ready"])
	}
	checks, _ := body["checks"].([]any)
	if len(checks) != 1 {
		t.Fatalf("checks: got %v", body["checks"])
	}
	check, _ := checks[0].(map[string]any)
	if check["name"] != "memory" || check["ok"] != true {
		t.Errorf("check: %v", check)
	}
}

func Test_Ready_FailingProbeReturns503(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.pingErr = errors.New("store offline")
	s := newTestServer(t, store, nil, &Config{
		Pingers: []Pinger{NewStorePinger(store, "memory")},
	})

	rec := do(s, http.MethodGet, "/ready", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["ready"] != false {
		t.Errorf("ready: got %v", body["ready"])
	}
}

func Test_Ready_NoPingersIsLivenessOnly(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, newMemStore(), nil, nil)
	if rec := do(s, http.MethodGet, "/ready", nil); rec.Code != http.StatusOK {
		t.Errorf("status: got %d", rec.Code)
	}
}

func Test_Root_ServiceInfo(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, newMemStore(), nil, nil)
	do(s, http.MethodPost, "/documents", map[string]any{"text": "one document"})

	body := decode(t, do(s, http.MethodGet, "/", nil))
	if body["name"] != "ragd" {
		t.Errorf("name: got %v", body["name"])
	}
	if body["status"] != "healthy" {
		t.Errorf("status: got %v", body["status"])
	}
	components, _ := body["components"].(map[string]any)
	if components["collection"] != "documents" {
		t.Errorf("collection: got %v", components["collection"])
	}
	if components["mock_mode"] != true {
		t.Errorf("mock_mode: got %v", components["mock_mode"])
	}
	stats, _ := body["statistics"].(map[string]any)
	if stats["document_count"] != float64(1) {
		t.Errorf("document_count: got %v", stats["document_count"])
	}
}
