package ingestion

import (
	"context"
	"testing"

	"github.com/knoguchi/docmemory/internal/embedder"
	"github.com/knoguchi/docmemory/internal/vectorstore"
)

type fakeDenseEmbedder struct{ dim int }

func (f fakeDenseEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, f.dim), nil
}

func (f fakeDenseEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}

func (f fakeDenseEmbedder) Dimension() int  { return f.dim }
func (f fakeDenseEmbedder) ModelName() string { return "fake" }

func TestPipeline_Process_ProducesTitleSummaryAndContentChunks(t *testing.T) {
	dense := fakeDenseEmbedder{dim: 4}
	sparse := embedder.NewBM25Vectorizer()
	p := NewPipelineWithDefaults(dense, sparse)

	content := `# Overview

This document explains the widget subsystem in some detail across several paragraphs.

## Details

More detail about the widget subsystem follows here, with additional words to pad it out.
`

	chunks, err := p.Process(context.Background(), "widgets.md", "Widget Subsystem", content)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks (title, summary, content), got %d", len(chunks))
	}

	if chunks[0].ChunkType != vectorstore.ChunkTitle || chunks[0].ChunkText != "Widget Subsystem" {
		t.Errorf("expected first chunk to be the title chunk, got %+v", chunks[0])
	}
	if chunks[1].ChunkType != vectorstore.ChunkSummary {
		t.Errorf("expected second chunk to be the summary chunk, got %+v", chunks[1])
	}
	for _, c := range chunks[2:] {
		if c.ChunkType != vectorstore.ChunkContent {
			t.Errorf("expected remaining chunks to be content chunks, got %+v", c)
		}
		if c.File != "widgets.md" {
			t.Errorf("expected file %q, got %q", "widgets.md", c.File)
		}
		if len(c.DenseVector) != 4 {
			t.Errorf("expected dense vector of length 4, got %d", len(c.DenseVector))
		}
	}
}

func TestPipeline_Process_RejectsEmptyContent(t *testing.T) {
	p := NewPipelineWithDefaults(fakeDenseEmbedder{dim: 4}, embedder.NewBM25Vectorizer())

	if _, err := p.Process(context.Background(), "empty.md", "Empty", "   "); err == nil {
		t.Error("expected an error for empty content")
	}
}
