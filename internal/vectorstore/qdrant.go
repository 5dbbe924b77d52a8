package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/knoguchi/docmemory/internal/embedder"
	"github.com/qdrant/go-client/qdrant"
)

const (
	// Vector field names for hybrid search
	denseVectorName  = "dense"
	sparseVectorName = "sparse"

	// payload keys
	payloadFile      = "file"
	payloadChunkText = "chunk_text"
	payloadChunkType = "chunk_type"
)

// QdrantStore implements VectorStore using Qdrant against a single fixed
// collection (this domain indexes one corpus, not one collection per tenant).
type QdrantStore struct {
	client *qdrant.Client
}

// NewQdrantStore creates a new Qdrant vector store client.
// url should be in format "host:port" (e.g., "localhost:6334").
func NewQdrantStore(ctx context.Context, url string) (*QdrantStore, error) {
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		// If no port specified, assume default
		host = url
		portStr = "6334"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant url: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantStore{client: client}, nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// CreateHybridCollection creates a collection with both dense and sparse vector support.
func (s *QdrantStore) CreateHybridCollection(ctx context.Context, collection string, dimension int) error {
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			denseVectorName: {
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			},
		}),
		SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			sparseVectorName: {}, // default sparse vector config
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create hybrid collection: %w", err)
	}

	return nil
}

// DeleteCollection deletes the collection.
func (s *QdrantStore) DeleteCollection(ctx context.Context, collection string) error {
	err := s.client.DeleteCollection(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}

	return nil
}

// CollectionExists checks if the collection exists.
func (s *QdrantStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}

	return exists, nil
}

// Upsert inserts or updates chunks in the vector store.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, chunks []IndexChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		payload := map[string]*qdrant.Value{
			payloadFile:      qdrant.NewValueString(chunk.File),
			payloadChunkText: qdrant.NewValueString(chunk.ChunkText),
			payloadChunkType: qdrant.NewValueString(string(chunk.ChunkType)),
		}

		point := &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(chunk.ID),
			Payload: payload,
		}

		if chunk.SparseVector != nil {
			point.Vectors = &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vectors{
					Vectors: &qdrant.NamedVectors{
						Vectors: map[string]*qdrant.Vector{
							denseVectorName: {
								Data: chunk.DenseVector,
							},
							sparseVectorName: {
								Indices: &qdrant.SparseIndices{Data: chunk.SparseVector.Indices},
								Data:    chunk.SparseVector.Values,
							},
						},
					},
				},
			}
		} else {
			point.Vectors = qdrant.NewVectors(chunk.DenseVector...)
		}

		points[i] = point
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	return nil
}

// HybridSearch performs hybrid search combining dense and sparse vectors with
// RRF fusion: two prefetch retrievals at 2*topK candidates each, fused by
// Reciprocal Rank Fusion, truncated to topK. This is spec §4.3's
// search(expanded_query) contract at the storage layer.
func (s *QdrantStore) HybridSearch(ctx context.Context, collection string, dense []float32, sparse *embedder.SparseVector, topK int) ([]Chunk, error) {
	prefetchLimit := uint64(topK * 2)

	prefetch := []*qdrant.PrefetchQuery{
		{
			Query: qdrant.NewQueryDense(dense),
			Using: qdrant.PtrOf(denseVectorName),
			Limit: qdrant.PtrOf(prefetchLimit),
		},
	}

	if sparse != nil && len(sparse.Indices) > 0 {
		prefetch = append(prefetch, &qdrant.PrefetchQuery{
			Query: qdrant.NewQuerySparse(sparse.Indices, sparse.Values),
			Using: qdrant.PtrOf(sparseVectorName),
			Limit: qdrant.PtrOf(prefetchLimit),
		})
	}

	response, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Prefetch:       prefetch,
		Query:          qdrant.NewQueryFusion(qdrant.Fusion_RRF),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectorsSelector(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to hybrid search: %w", err)
	}

	results := make([]Chunk, 0, len(response))
	for _, point := range response {
		chunk := Chunk{
			ID:    point.Id.GetUuid(),
			Score: point.Score,
		}

		if payload := point.Payload; payload != nil {
			if v, ok := payload[payloadFile]; ok {
				chunk.File = v.GetStringValue()
			}
			if v, ok := payload[payloadChunkText]; ok {
				chunk.ChunkText = v.GetStringValue()
			}
			if v, ok := payload[payloadChunkType]; ok {
				chunk.ChunkType = ChunkType(v.GetStringValue())
			}
		}

		if vectors := point.Vectors; vectors != nil {
			if named := vectors.GetVectors(); named != nil {
				if dense, ok := named.Vectors[denseVectorName]; ok {
					chunk.DenseVector = dense.Data
				}
			}
		}

		results = append(results, chunk)
	}

	return results, nil
}

// Ensure QdrantStore implements VectorStore.
var _ VectorStore = (*QdrantStore)(nil)
