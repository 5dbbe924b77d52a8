package followup

import (
	"context"
	"errors"
	"testing"

	"github.com/knoguchi/docmemory/internal/vectorstore"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int    { return 3 }
func (f *fakeEmbedder) ModelName() string { return "fake" }

func TestFilter_RetainsCeilHalf(t *testing.T) {
	dense := &fakeEmbedder{vectors: map[string][]float32{"kenya": {1, 0, 0}}}
	points := []vectorstore.Chunk{
		{ID: "1", DenseVector: []float32{1, 0, 0}},
		{ID: "2", DenseVector: []float32{0.9, 0.1, 0}},
		{ID: "3", DenseVector: []float32{0, 1, 0}},
		{ID: "4", DenseVector: []float32{0, 0, 1}},
	}
	conversation := []Exchange{{Question: "region?", Answer: "kenya"}}

	retained, err := Filter(context.Background(), dense, points, conversation)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(retained) != 3 {
		t.Fatalf("expected max(ceil(4/2), 3)=3 retained, got %d", len(retained))
	}
	if retained[0].ID != "1" || retained[1].ID != "2" {
		t.Errorf("expected the two chunks closest to the context vector first, got %v, %v", retained[0].ID, retained[1].ID)
	}
}

func TestFilter_NeverBelowThreeUnlessInputSmaller(t *testing.T) {
	dense := &fakeEmbedder{}
	points := make([]vectorstore.Chunk, 6)
	for i := range points {
		points[i] = vectorstore.Chunk{ID: string(rune('a' + i)), DenseVector: []float32{float32(i), 0, 1}}
	}

	retained, err := Filter(context.Background(), dense, points, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// ceil(6/2)=3, already at floor
	if len(retained) != 3 {
		t.Errorf("expected 3 retained, got %d", len(retained))
	}
}

func TestFilter_InputSmallerThanFloorKeepsAll(t *testing.T) {
	dense := &fakeEmbedder{}
	points := []vectorstore.Chunk{
		{ID: "1", DenseVector: []float32{1, 0, 0}},
		{ID: "2", DenseVector: []float32{0, 1, 0}},
	}

	retained, err := Filter(context.Background(), dense, points, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(retained) != 2 {
		t.Errorf("expected both chunks retained when N < floor, got %d", len(retained))
	}
}

func TestFilter_EmbedderErrorPropagates(t *testing.T) {
	dense := &fakeEmbedder{err: errors.New("oracle down")}
	points := []vectorstore.Chunk{{ID: "1", DenseVector: []float32{1, 0, 0}}}

	_, err := Filter(context.Background(), dense, points, nil)
	if err == nil {
		t.Fatal("expected error when embedding the follow-up context fails")
	}
}
