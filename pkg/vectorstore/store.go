// Package vectorstore defines the storage-agnostic contract for persisting
// and searching embedded conversation records. Backends: an embedded local
// sqlite-vec store and a networked Postgres/pgvector store. Selection happens
// once at bootstrap; call sites only ever see Store.
package vectorstore

import (
	"context"
	"errors"
)

var (
	// ErrMissingConfig means a required connection string or storage path is
	// absent. Fatal at startup.
	ErrMissingConfig = errors.New("vector store: missing connection configuration")

	// ErrLengthMismatch means ids, embeddings and metadatas differ in length.
	ErrLengthMismatch = errors.New("vector store: ids, embeddings and metadatas must have equal length")

	// ErrNotInitialized means Initialize was not called (or failed) before use.
	ErrNotInitialized = errors.New("vector store: not initialized")
)

// Metadata is the payload stored next to each embedding. The embedding covers
// UserInput only; the expert response rides along for prompt augmentation.
type Metadata struct {
	UserInput      string
	ExpertResponse string
	OriginalIndex  int
	TokenCount     int
	Truncated      bool
}

// SearchResult is one nearest-neighbor hit, most similar first.
type SearchResult struct {
	ID         string
	Metadata   Metadata
	Similarity float64 // cosine similarity, 1.0 = identical
}

type Store interface {
	// Initialize establishes the backend handle. Idempotent; returns
	// ErrMissingConfig when the required URI/path is absent.
	Initialize(ctx context.Context) error

	// EnsureCollection gets or creates the named collection. The cosine
	// similarity metric is bound here, at creation, never per query.
	EnsureCollection(ctx context.Context, name string) error

	// Count returns the current document count; non-zero gates re-ingestion.
	Count(ctx context.Context) (int64, error)

	// Add persists records atomically per call. No per-item retry.
	Add(ctx context.Context, ids []string, embeddings [][]float32, metadatas []Metadata) error

	// Search returns up to topK nearest records, most similar first. An empty
	// collection yields an empty slice, not an error.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]SearchResult, error)
}

// ValidateAdd is the shared length check for Add implementations.
func ValidateAdd(ids []string, embeddings [][]float32, metadatas []Metadata) error {
	if len(ids) != len(embeddings) || len(ids) != len(metadatas) {
		return ErrLengthMismatch
	}
	return nil
}
