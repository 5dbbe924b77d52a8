// Package followup implements spec §4.5: re-scoring the candidate pool
// against the accumulated follow-up answers and retaining the better half.
package followup

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/knoguchi/docmemory/internal/embedder"
	"github.com/knoguchi/docmemory/internal/vectorstore"
)

// cosineEpsilon guards the cosine-similarity denominator against zero vectors.
const cosineEpsilon = 1e-9

// Exchange is one question/answer pair, mirroring session.Exchange without
// importing the session package (which imports this one).
type Exchange struct {
	Question string
	Answer   string
}

// Filter scores each chunk in points against the joined text of every answer
// in the conversation and retains the top half (floor of 3), per spec §4.5.
func Filter(ctx context.Context, dense embedder.Embedder, points []vectorstore.Chunk, conversation []Exchange) ([]vectorstore.Chunk, error) {
	if len(points) == 0 {
		return points, nil
	}

	ctxText := joinAnswers(conversation)
	ctxVec, err := dense.Embed(ctx, ctxText)
	if err != nil {
		return nil, fmt.Errorf("embedding follow-up context: %w", err)
	}

	type scored struct {
		chunk vectorstore.Chunk
		score float64
	}

	scoredChunks := make([]scored, len(points))
	for i, c := range points {
		scoredChunks[i] = scored{chunk: c, score: cosineSimilarity(ctxVec, c.DenseVector)}
	}

	sort.SliceStable(scoredChunks, func(i, j int) bool {
		return scoredChunks[i].score > scoredChunks[j].score
	})

	n := len(scoredChunks)
	keep := retainCount(n)

	retained := make([]vectorstore.Chunk, keep)
	for i := 0; i < keep; i++ {
		retained[i] = scoredChunks[i].chunk
	}
	return retained, nil
}

// retainCount implements spec §4.5 steps 3-4: ceil(N/2), floored to min(3, N).
func retainCount(n int) int {
	half := (n + 1) / 2 // ceil(N/2)
	if half < 1 {
		half = 1
	}
	floor := 3
	if floor > n {
		floor = n
	}
	if half < floor {
		return floor
	}
	return half
}

func joinAnswers(conversation []Exchange) string {
	joined := ""
	for i, e := range conversation {
		if i > 0 {
			joined += " "
		}
		joined += e.Answer
	}
	return joined
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom < cosineEpsilon {
		denom = cosineEpsilon
	}
	return dot / denom
}
