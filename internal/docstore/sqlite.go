package docstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/corpuslabs/ragd/internal/rag"
)

// SQLite is a rag.DocumentStore backed by a local SQLite database. Embeddings
// are stored as little-endian float32 BLOBs and queried with an exact cosine
// scan, which is fine at the corpus sizes a single-file store is meant for.
type SQLite struct {
	// db is the underlying database connection pool.
	db *sql.DB
	// collection is the logical collection label.
	collection string
	// dim is the embedding dimension all stored vectors must share.
	dim int
}

// OpenSQLite opens (or creates) a SQLite store at the given path and runs the
// schema migration. Use ":memory:" for an in-memory database in tests. The
// dimension is pinned on first open of a fresh database; reopening with a
// different dimension is an error, since mixed-dimension vectors would make
// every distance meaningless.
func OpenSQLite(ctx context.Context, path, collection string, dim int) (*SQLite, error) {
	if dim <= 0 {
		return nil, &rag.StoreError{Op: "open", Err: fmt.Errorf("embedding dimension must be positive, got %d", dim)}
	}

	// A nested store path may point into a directory that does not exist yet;
	// create it on first use. ":memory:" resolves to "." and is skipped.
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &rag.StoreError{Op: "open", Err: err}
		}
	}

	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &rag.StoreError{Op: "open", Err: err}
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, collection: collection, dim: dim}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist and verifies the
// recorded embedding dimension.
func (s *SQLite) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    id          TEXT    PRIMARY KEY,
    content     TEXT    NOT NULL,
    metadata    TEXT    NOT NULL DEFAULT '{}',
    embedding   BLOB    NOT NULL,
    created_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE TABLE IF NOT EXISTS store_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return &rag.StoreError{Op: "migrate", Err: err}
	}

	var recorded string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = 'dimension'`).Scan(&recorded)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO store_meta (key, value) VALUES ('dimension', ?)`, fmt.Sprintf("%d", s.dim))
		if err != nil {
			return &rag.StoreError{Op: "migrate", Err: err}
		}
	case err != nil:
		return &rag.StoreError{Op: "migrate", Err: err}
	default:
		if recorded != fmt.Sprintf("%d", s.dim) {
			return &rag.StoreError{Op: "migrate",
				Err: fmt.Errorf("database has dimension %s, configured embedder produces %d", recorded, s.dim)}
		}
	}
	return nil
}

// Upsert stores content with its embedding and returns the assigned ID.
// Duplicate suppression relies on the primary key: INSERT OR IGNORE makes the
// insert-if-absent atomic under concurrent writers, and the deterministic ID
// is valid to return whether or not this call won the race.
func (s *SQLite) Upsert(ctx context.Context, content string, metadata map[string]any, embedding []float32, allowDuplicates bool) (string, error) {
	if len(embedding) != s.dim {
		return "", &rag.StoreError{Op: "upsert",
			Err: fmt.Errorf("embedding dimension %d does not match store dimension %d", len(embedding), s.dim)}
	}

	id := ContentID(content, metadata)
	if allowDuplicates {
		id = SaltedID(content, metadata)
	}

	meta, err := marshalMetadata(metadata)
	if err != nil {
		return "", &rag.StoreError{Op: "upsert", Err: err}
	}

	const q = `INSERT OR IGNORE INTO documents (id, content, metadata, embedding, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, id, content, meta, encodeVector(embedding), time.Now().Unix()); err != nil {
		return "", &rag.StoreError{Op: "upsert", Err: err}
	}
	return id, nil
}

// BulkUpsert inserts a batch of documents in a single transaction. Entries
// whose derived ID already exists (or repeats within the batch) are skipped
// under duplicate suppression and excluded from AddedIDs.
func (s *SQLite) BulkUpsert(ctx context.Context, docs []rag.PendingDocument, allowDuplicates bool) (*rag.BulkResult, error) {
	res := &rag.BulkResult{AddedIDs: []string{}, TotalRequested: len(docs)}
	if len(docs) == 0 {
		return res, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &rag.StoreError{Op: "bulk_upsert", Err: err}
	}
	defer tx.Rollback()

	const q = `INSERT OR IGNORE INTO documents (id, content, metadata, embedding, created_at) VALUES (?, ?, ?, ?, ?)`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return nil, &rag.StoreError{Op: "bulk_upsert", Err: err}
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for i, doc := range docs {
		if len(doc.Embedding) != s.dim {
			return nil, &rag.StoreError{Op: "bulk_upsert",
				Err: fmt.Errorf("document %d: embedding dimension %d does not match store dimension %d", i, len(doc.Embedding), s.dim)}
		}

		id := ContentID(doc.Content, doc.Metadata)
		if allowDuplicates {
			id = SaltedID(doc.Content, doc.Metadata)
		}

		meta, err := marshalMetadata(doc.Metadata)
		if err != nil {
			return nil, &rag.StoreError{Op: "bulk_upsert", Err: err}
		}

		r, err := stmt.ExecContext(ctx, id, doc.Content, meta, encodeVector(doc.Embedding), now)
		if err != nil {
			return nil, &rag.StoreError{Op: "bulk_upsert", Err: err}
		}
		affected, err := r.RowsAffected()
		if err != nil {
			return nil, &rag.StoreError{Op: "bulk_upsert", Err: err}
		}
		if affected > 0 {
			res.AddedIDs = append(res.AddedIDs, id)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, &rag.StoreError{Op: "bulk_upsert", Err: err}
	}
	return res, nil
}

// Get returns the document with the given ID, or rag.ErrNotFound.
func (s *SQLite) Get(ctx context.Context, id string) (*rag.Document, error) {
	const q = `SELECT id, content, metadata, embedding, created_at FROM documents WHERE id = ?`

	var doc rag.Document
	var meta string
	var blob []byte
	var ts int64
	err := s.db.QueryRowContext(ctx, q, id).Scan(&doc.ID, &doc.Content, &meta, &blob, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rag.ErrNotFound
	}
	if err != nil {
		return nil, &rag.StoreError{Op: "get", Err: err}
	}

	doc.Metadata, err = unmarshalMetadata(meta)
	if err != nil {
		return nil, &rag.StoreError{Op: "get", Err: err}
	}
	doc.Embedding = decodeVector(blob)
	doc.CreatedAt = time.Unix(ts, 0)
	return &doc, nil
}

// Update replaces content, metadata, and embedding of an existing document,
// preserving its ID and CreatedAt.
func (s *SQLite) Update(ctx context.Context, id, content string, metadata map[string]any, embedding []float32) (*rag.Document, error) {
	if len(embedding) != s.dim {
		return nil, &rag.StoreError{Op: "update",
			Err: fmt.Errorf("embedding dimension %d does not match store dimension %d", len(embedding), s.dim)}
	}

	meta, err := marshalMetadata(metadata)
	if err != nil {
		return nil, &rag.StoreError{Op: "update", Err: err}
	}

	const q = `UPDATE documents SET content = ?, metadata = ?, embedding = ? WHERE id = ?`
	r, err := s.db.ExecContext(ctx, q, content, meta, encodeVector(embedding), id)
	if err != nil {
		return nil, &rag.StoreError{Op: "update", Err: err}
	}
	affected, err := r.RowsAffected()
	if err != nil {
		return nil, &rag.StoreError{Op: "update", Err: err}
	}
	if affected == 0 {
		return nil, rag.ErrNotFound
	}

	return s.Get(ctx, id)
}

// Delete removes the document with the given ID, or returns rag.ErrNotFound.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	r, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return &rag.StoreError{Op: "delete", Err: err}
	}
	affected, err := r.RowsAffected()
	if err != nil {
		return &rag.StoreError{Op: "delete", Err: err}
	}
	if affected == 0 {
		return rag.ErrNotFound
	}
	return nil
}

// Query scans every stored document, computes the exact cosine distance to
// the query embedding, and returns the k nearest. Linear scan keeps recall at
// 100% and needs no index maintenance; it holds up well into the tens of
// thousands of documents.
func (s *SQLite) Query(ctx context.Context, embedding []float32, k int) ([]rag.Match, error) {
	if len(embedding) != s.dim {
		return nil, &rag.StoreError{Op: "query",
			Err: fmt.Errorf("embedding dimension %d does not match store dimension %d", len(embedding), s.dim)}
	}
	if k <= 0 {
		return nil, nil
	}

	const q = `SELECT id, content, metadata, embedding, created_at FROM documents`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, &rag.StoreError{Op: "query", Err: err}
	}
	defer rows.Close()

	var matches []rag.Match
	for rows.Next() {
		var doc rag.Document
		var meta string
		var blob []byte
		var ts int64
		if err := rows.Scan(&doc.ID, &doc.Content, &meta, &blob, &ts); err != nil {
			return nil, &rag.StoreError{Op: "query", Err: err}
		}
		doc.Metadata, err = unmarshalMetadata(meta)
		if err != nil {
			return nil, &rag.StoreError{Op: "query", Err: err}
		}
		doc.Embedding = decodeVector(blob)
		doc.CreatedAt = time.Unix(ts, 0)

		matches = append(matches, rag.Match{
			Doc:      doc,
			Distance: cosineDistance(embedding, doc.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &rag.StoreError{Op: "query", Err: err}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Count returns the number of stored documents.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, &rag.StoreError{Op: "count", Err: err}
	}
	return n, nil
}

// CollectionName returns the logical collection label.
func (s *SQLite) CollectionName() string { return s.collection }

// Ping checks that the database file is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &rag.StoreError{Op: "ping", Err: err}
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return &rag.StoreError{Op: "close", Err: err}
	}
	return nil
}

// encodeVector serializes an embedding as a little-endian float32 BLOB.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector deserializes a little-endian float32 BLOB.
func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// cosineDistance computes 1 - cosine similarity, giving a distance in [0, 2]
// for any pair of vectors. Zero vectors are treated as maximally distant from
// everything except another zero vector.
func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 && nb == 0 {
		return 0
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// marshalMetadata serializes metadata to its canonical JSON form, mapping nil
// to "{}" so the column is never NULL.
func marshalMetadata(metadata map[string]any) (string, error) {
	if metadata == nil {
		return "{}", nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("metadata not serializable: %w", err)
	}
	return string(b), nil
}

// unmarshalMetadata parses the stored metadata JSON.
func unmarshalMetadata(s string) (map[string]any, error) {
	m := map[string]any{}
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("stored metadata corrupt: %w", err)
	}
	return m, nil
}
