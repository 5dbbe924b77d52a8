package vectorstore

import (
	"context"
	"fmt"

	"github.com/knoguchi/docmemory/internal/embedder"
	"golang.org/x/sync/errgroup"
)

// Adapter implements spec §4.3's search(expanded_query) -> []Chunk contract:
// embed the query both ways, issue one hybrid query against the fixed
// collection, and hand back the fused top-K chunks.
type Adapter struct {
	store      VectorStore
	dense      embedder.Embedder
	sparse     embedder.SparseEmbedder
	collection string
	topK       int
}

// NewAdapter builds a retrieval adapter over a single fixed collection.
func NewAdapter(store VectorStore, dense embedder.Embedder, sparse embedder.SparseEmbedder, collection string, topK int) *Adapter {
	return &Adapter{
		store:      store,
		dense:      dense,
		sparse:     sparse,
		collection: collection,
		topK:       topK,
	}
}

// Search embeds query concurrently as a dense vector and a sparse vector,
// then issues a single hybrid (RRF-fused) query against the collection.
func (a *Adapter) Search(ctx context.Context, query string) ([]Chunk, error) {
	var denseVec []float32
	var sparseVec *embedder.SparseVector

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := a.dense.Embed(gctx, query)
		if err != nil {
			return fmt.Errorf("dense embedding query: %w", err)
		}
		denseVec = v
		return nil
	})
	g.Go(func() error {
		sparseVec = a.sparse.Sparse(query)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	chunks, err := a.store.HybridSearch(ctx, a.collection, denseVec, sparseVec, a.topK)
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}

	return chunks, nil
}
