// Package docstore provides persistent document storage with vector search.
// Two backends implement [rag.DocumentStore]: a local SQLite store (default)
// and a Qdrant-backed store for deployments with an external vector database.
//
// Document identity is content-addressed: the same content and metadata always
// hash to the same ID, so repeated ingestion is idempotent unless the caller
// explicitly allows duplicates.
package docstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// ContentID derives the deterministic document ID from normalized content and
// canonical metadata. The hash input is trimmed content concatenated with the
// metadata serialized as JSON with sorted keys, so key order in the caller's
// map never changes the ID. The ID is the first 32 hex characters of the
// sha256 digest.
func ContentID(content string, metadata map[string]any) string {
	normalized := strings.TrimSpace(content)

	// encoding/json sorts map keys, which gives the canonical form.
	meta, err := json.Marshal(canonicalMetadata(metadata))
	if err != nil {
		// Unmarshalable metadata values cannot reach here through the API
		// layer, but a stable fallback keeps the function total.
		meta = []byte("{}")
	}

	sum := sha256.Sum256([]byte(normalized + string(meta)))
	return hex.EncodeToString(sum[:])[:32]
}

// SaltedID derives a unique document ID for duplicate-allowed inserts by
// mixing a random UUID into the content hash. Two calls with identical input
// return different IDs.
func SaltedID(content string, metadata map[string]any) string {
	normalized := strings.TrimSpace(content)
	meta, err := json.Marshal(canonicalMetadata(metadata))
	if err != nil {
		meta = []byte("{}")
	}

	sum := sha256.Sum256([]byte(normalized + string(meta) + uuid.NewString()))
	return hex.EncodeToString(sum[:])[:32]
}

// canonicalMetadata returns a non-nil map so nil and empty metadata hash
// identically.
func canonicalMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return map[string]any{}
	}
	return metadata
}

// IDToUUID formats a 32-hex-character document ID as a canonical UUID string
// for backends that require UUID point identifiers. The mapping is a pure
// reformatting, so it is reversible via UUIDToID.
func IDToUUID(id string) string {
	if len(id) != 32 {
		return id
	}
	return id[0:8] + "-" + id[8:12] + "-" + id[12:16] + "-" + id[16:20] + "-" + id[20:32]
}

// UUIDToID strips the dashes from a canonical UUID string, recovering the
// 32-hex-character document ID.
func UUIDToID(u string) string {
	return strings.ReplaceAll(u, "-", "")
}
