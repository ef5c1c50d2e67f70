// Package ingestion implements the bulk document ingestion pipeline.
// It loads documents from local files or HTTP(S) URLs, splits the content
// into overlapping chunks, embeds each chunk, and upserts the results into
// the document store. This pipeline is invoked by the `ragd ingest` CLI
// command.
package ingestion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/corpuslabs/ragd/internal/rag"
)

// Source describes a document source to be ingested.
type Source struct {
	// Location is a local file path or an HTTP(S) URL.
	Location string

	// Metadata holds caller-supplied key-value pairs attached to every chunk
	// of this source. Caller values take precedence over inferred ones.
	Metadata map[string]any
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per document chunk.
	// Defaults to 1000 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters to overlap between consecutive
	// chunks. Defaults to 100 if zero.
	ChunkOverlap int

	// HTTPTimeout is the timeout for each URL fetch request.
	// Defaults to 30s if zero.
	HTTPTimeout time.Duration

	// UserAgent is the HTTP User-Agent header sent with fetch requests.
	UserAgent string

	// MaxDocumentLength rejects sources larger than this many characters.
	// Zero disables the check.
	MaxDocumentLength int

	// AllowDuplicates disables content-based duplicate suppression.
	AllowDuplicates bool
}

// Report summarizes an ingestion run.
type Report struct {
	// Sources is the number of sources processed.
	Sources int

	// ChunksAdded is the number of chunks actually inserted.
	ChunksAdded int

	// ChunksSkipped is the number of chunks skipped as duplicates.
	ChunksSkipped int
}

// Pipeline orchestrates the load → chunk → embed → upsert flow for a set of
// document sources.
type Pipeline struct {
	// embedder converts text chunks into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.DocumentStore

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	// httpClient is the HTTP client used for fetching URL sources.
	httpClient *http.Client
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.DocumentStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 10
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ragd/1.0 (document ingestion)"
	}

	return &Pipeline{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}, nil
}

// Ingest loads, chunks, embeds, and stores all provided sources.
// It processes sources sequentially and returns the first error encountered
// alongside the partial report. Progress is reported via the optional
// progress callback.
func (p *Pipeline) Ingest(ctx context.Context, sources []Source, progress func(msg string)) (*Report, error) {
	if progress == nil {
		progress = func(string) {}
	}

	report := &Report{}
	for _, src := range sources {
		progress(fmt.Sprintf("loading %s", src.Location))

		content, err := p.load(ctx, src.Location)
		if err != nil {
			return report, fmt.Errorf("ingestion: load failed for %s: %w", src.Location, err)
		}
		if p.cfg.MaxDocumentLength > 0 && len(content) > p.cfg.MaxDocumentLength {
			return report, rag.Validationf("content", "source %s exceeds maximum length of %d characters", src.Location, p.cfg.MaxDocumentLength)
		}

		chunks := p.chunk(content)
		if len(chunks) == 0 {
			progress(fmt.Sprintf("skipped empty source %s", src.Location))
			report.Sources++
			continue
		}
		progress(fmt.Sprintf("chunked %s into %d chunks", src.Location, len(chunks)))

		embeddings, err := p.embedder.Embed(ctx, chunks)
		if err != nil {
			return report, fmt.Errorf("ingestion: embedding failed for %s: %w", src.Location, err)
		}

		docs := make([]rag.PendingDocument, 0, len(chunks))
		for i, chunk := range chunks {
			docs = append(docs, rag.PendingDocument{
				Content:   chunk,
				Metadata:  chunkMetadata(src, i, len(chunks)),
				Embedding: embeddings[i],
			})
		}

		res, err := p.store.BulkUpsert(ctx, docs, p.cfg.AllowDuplicates)
		if err != nil {
			return report, fmt.Errorf("ingestion: upsert failed for %s: %w", src.Location, err)
		}

		report.Sources++
		report.ChunksAdded += len(res.AddedIDs)
		report.ChunksSkipped += res.TotalRequested - len(res.AddedIDs)
		progress(fmt.Sprintf("ingested %d chunks from %s (%d duplicates skipped)",
			len(res.AddedIDs), src.Location, res.TotalRequested-len(res.AddedIDs)))
	}

	return report, nil
}

// load retrieves the raw text content of a source, dispatching on whether it
// looks like a URL or a local path.
func (p *Pipeline) load(ctx context.Context, location string) (string, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return p.fetch(ctx, location)
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return string(data), nil
}

// fetch retrieves the raw text content of a URL.
func (p *Pipeline) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "text/plain, text/html")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}

	return string(body), nil
}

// chunk splits text into overlapping chunks of cfg.ChunkSize characters.
func (p *Pipeline) chunk(text string) []string {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return nil
	}

	var chunks []string
	size := p.cfg.ChunkSize
	overlap := p.cfg.ChunkOverlap

	for start := 0; start < len(text); start += size - overlap {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
	}

	return chunks
}

// chunkMetadata merges inferred source metadata, chunk position, and
// caller-supplied values. Caller values win on key collisions.
func chunkMetadata(src Source, index, total int) map[string]any {
	inferred := InferMetadata(src.Location)
	meta := map[string]any{
		"source":      src.Location,
		"source_type": inferred.SourceType,
		"format":      inferred.Format,
		"title":       inferred.Title,
		"chunk_index": index,
		"chunk_count": total,
	}
	for k, v := range src.Metadata {
		meta[k] = v
	}
	return meta
}
