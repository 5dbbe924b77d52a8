package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/knoguchi/docmemory/internal/embedder"
)

type fakeStore struct {
	gotDense     []float32
	gotSparse    *embedder.SparseVector
	gotTopK      int
	gotCollection string
	result       []Chunk
	err          error
}

func (f *fakeStore) CreateHybridCollection(ctx context.Context, collection string, dimension int) error {
	return nil
}
func (f *fakeStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	return true, nil
}
func (f *fakeStore) DeleteCollection(ctx context.Context, collection string) error { return nil }
func (f *fakeStore) Upsert(ctx context.Context, collection string, chunks []IndexChunk) error {
	return nil
}
func (f *fakeStore) HybridSearch(ctx context.Context, collection string, dense []float32, sparse *embedder.SparseVector, topK int) ([]Chunk, error) {
	f.gotCollection = collection
	f.gotDense = dense
	f.gotSparse = sparse
	f.gotTopK = topK
	return f.result, f.err
}

type fakeDense struct {
	vec []float32
	err error
}

func (f fakeDense) Embed(ctx context.Context, text string) ([]float32, error) { return f.vec, f.err }
func (f fakeDense) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, f.err
}
func (f fakeDense) Dimension() int    { return len(f.vec) }
func (f fakeDense) ModelName() string { return "fake" }

type fakeSparse struct{ sv *embedder.SparseVector }

func (f fakeSparse) Sparse(text string) *embedder.SparseVector { return f.sv }
func (f fakeSparse) SparseBatch(texts []string) []*embedder.SparseVector {
	out := make([]*embedder.SparseVector, len(texts))
	for i := range texts {
		out[i] = f.sv
	}
	return out
}

func TestAdapter_Search_EmbedsBothWaysAndCallsHybridSearch(t *testing.T) {
	store := &fakeStore{result: []Chunk{{ID: "1", File: "a.md"}}}
	dense := fakeDense{vec: []float32{0.1, 0.2, 0.3}}
	sparse := fakeSparse{sv: &embedder.SparseVector{Indices: []uint32{5}, Values: []float32{0.5}}}

	adapter := NewAdapter(store, dense, sparse, "docs", 10)

	chunks, err := adapter.Search(context.Background(), "widget subsystem")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 || chunks[0].ID != "1" {
		t.Errorf("expected the store's result passed through, got %+v", chunks)
	}
	if store.gotCollection != "docs" {
		t.Errorf("expected collection %q, got %q", "docs", store.gotCollection)
	}
	if store.gotTopK != 10 {
		t.Errorf("expected topK 10, got %d", store.gotTopK)
	}
	if len(store.gotDense) != 3 {
		t.Errorf("expected dense vector passed through, got %v", store.gotDense)
	}
	if store.gotSparse == nil || len(store.gotSparse.Indices) != 1 {
		t.Errorf("expected sparse vector passed through, got %+v", store.gotSparse)
	}
}

func TestAdapter_Search_PropagatesDenseEmbeddingError(t *testing.T) {
	store := &fakeStore{}
	dense := fakeDense{err: errors.New("embedding service unavailable")}
	sparse := fakeSparse{sv: &embedder.SparseVector{}}

	adapter := NewAdapter(store, dense, sparse, "docs", 10)

	if _, err := adapter.Search(context.Background(), "query"); err == nil {
		t.Error("expected error from failed dense embedding to propagate")
	}
}

func TestAdapter_Search_PropagatesStoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("qdrant unavailable")}
	dense := fakeDense{vec: []float32{0.1}}
	sparse := fakeSparse{sv: &embedder.SparseVector{}}

	adapter := NewAdapter(store, dense, sparse, "docs", 10)

	if _, err := adapter.Search(context.Background(), "query"); err == nil {
		t.Error("expected error from hybrid search to propagate")
	}
}

var _ VectorStore = (*fakeStore)(nil)
var _ embedder.Embedder = fakeDense{}
var _ embedder.SparseEmbedder = fakeSparse{}
