// Package vectorstore provides interfaces and implementations for hybrid
// dense+sparse vector similarity search over the indexed document corpus.
package vectorstore

import (
	"context"

	"github.com/knoguchi/docmemory/internal/embedder"
)

// ChunkType classifies what part of a document a chunk represents.
type ChunkType string

const (
	ChunkTitle   ChunkType = "title"
	ChunkSummary ChunkType = "summary"
	ChunkContent ChunkType = "content"
)

// Chunk is the query-time chunk record returned by HybridSearch: spec §3's
// "Chunk record". Immutable after retrieval — Score is set once by the
// adapter and never mutated afterward.
type Chunk struct {
	ID          string
	File        string
	ChunkText   string
	ChunkType   ChunkType
	DenseVector []float32
	Score       float32
}

// IndexChunk is the ingest-time shape handed to Upsert: everything needed to
// store a chunk, including its sparse vector. Produced by the thin ingestion
// wrapper (internal/ingestion), never by the session engine.
type IndexChunk struct {
	ID           string
	File         string
	ChunkText    string
	ChunkType    ChunkType
	DenseVector  []float32
	SparseVector *embedder.SparseVector
}

// VectorStore defines the interface for vector storage operations this
// system exercises. Dense-only search and per-ID/per-document delete are not
// part of the surface any component here calls, so they're not in the
// interface — see DESIGN.md.
type VectorStore interface {
	// CreateHybridCollection creates a collection with both dense and sparse
	// vector support at the given dense dimension.
	CreateHybridCollection(ctx context.Context, collection string, dimension int) error

	// CollectionExists checks if a collection exists.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// DeleteCollection deletes a collection.
	DeleteCollection(ctx context.Context, collection string) error

	// Upsert inserts or updates chunks in the vector store.
	Upsert(ctx context.Context, collection string, chunks []IndexChunk) error

	// HybridSearch performs hybrid search combining dense and sparse vectors
	// with RRF fusion, returning up to topK chunks ordered by fused score.
	HybridSearch(ctx context.Context, collection string, dense []float32, sparse *embedder.SparseVector, topK int) ([]Chunk, error)
}
