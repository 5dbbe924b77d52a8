package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/knoguchi/docmemory/internal/embedder"
	"github.com/knoguchi/docmemory/internal/vectorstore"
)

// PipelineConfig configures document-to-chunk-record conversion.
type PipelineConfig struct {
	Chunker      ChunkerConfig
	SummaryWords int // leading word count of content promoted to the summary chunk
}

// Pipeline turns one document's title and body text into the three-tier
// title/summary/content IndexChunks spec §4.2's retrieval model expects,
// embedding each both densely and sparsely so they're ready for
// vectorstore.VectorStore.Upsert.
type Pipeline struct {
	config  PipelineConfig
	chunker *Chunker
	dense   embedder.Embedder
	sparse  embedder.SparseEmbedder
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(config PipelineConfig, dense embedder.Embedder, sparse embedder.SparseEmbedder) *Pipeline {
	if config.SummaryWords <= 0 {
		config.SummaryWords = 120
	}
	return &Pipeline{
		config:  config,
		chunker: NewChunker(config.Chunker),
		dense:   dense,
		sparse:  sparse,
	}
}

// NewPipelineWithDefaults creates a pipeline with spec §6's default chunk sizing.
func NewPipelineWithDefaults(dense embedder.Embedder, sparse embedder.SparseEmbedder) *Pipeline {
	return NewPipeline(PipelineConfig{
		Chunker: ChunkerConfig{TargetWords: 256, MaxWords: 512, Overlap: 32},
	}, dense, sparse)
}

// Process chunks and embeds one document, returning index-ready chunk
// records: one title chunk, one summary chunk, and N content chunks.
func (p *Pipeline) Process(ctx context.Context, file, title, content string) ([]vectorstore.IndexChunk, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("content cannot be empty for %q", file)
	}

	bodyChunks := p.chunker.Chunk(content)
	summary := summarize(content, p.config.SummaryWords)

	texts := make([]string, 0, 2+len(bodyChunks))
	texts = append(texts, title, summary)
	for _, c := range bodyChunks {
		texts = append(texts, c.Content)
	}

	denseVecs, err := p.dense.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding document %q: %w", file, err)
	}
	sparseVecs := p.sparse.SparseBatch(texts)

	out := make([]vectorstore.IndexChunk, 0, len(texts))
	out = append(out, vectorstore.IndexChunk{
		ID: uuid.NewString(), File: file, ChunkText: title, ChunkType: vectorstore.ChunkTitle,
		DenseVector: denseVecs[0], SparseVector: sparseVecs[0],
	})
	out = append(out, vectorstore.IndexChunk{
		ID: uuid.NewString(), File: file, ChunkText: summary, ChunkType: vectorstore.ChunkSummary,
		DenseVector: denseVecs[1], SparseVector: sparseVecs[1],
	})
	for i, c := range bodyChunks {
		out = append(out, vectorstore.IndexChunk{
			ID: uuid.NewString(), File: file, ChunkText: c.Content, ChunkType: vectorstore.ChunkContent,
			DenseVector: denseVecs[2+i], SparseVector: sparseVecs[2+i],
		})
	}
	return out, nil
}

// summarize takes the leading words words of content as a cheap
// extractive summary — no LLM call: ingestion is a thin, offline wrapper,
// not an oracle-backed operation like the query-time session engine.
func summarize(content string, words int) string {
	fields := strings.Fields(content)
	if words <= 0 || words >= len(fields) {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[:words], " ")
}
