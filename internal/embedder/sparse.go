package embedder

import (
	"hash/fnv"
	"strings"
)

// bm25K1 is the term-frequency saturation constant from Okapi BM25: larger
// values let repeated terms keep contributing weight for longer before
// saturating.
const bm25K1 = 1.2

// sparseVocabSpace bounds the hashed index range so sparse vectors can be
// represented without maintaining an explicit vocabulary table.
const sparseVocabSpace = 1 << 20

// BM25Vectorizer implements SparseEmbedder. Each call is a pure function of
// its input text: terms are hashed into a fixed index space and weighted by
// saturating term frequency (the BM25 term-frequency component, without a
// corpus-wide idf term — computing idf would require indexing-time corpus
// statistics, which sits on the ingestion side of the interface boundary,
// not the query-time oracle spec §4.1 describes).
type BM25Vectorizer struct{}

// NewBM25Vectorizer creates a sparse vectorizer with no external state.
func NewBM25Vectorizer() *BM25Vectorizer {
	return &BM25Vectorizer{}
}

// Sparse computes the sparse vector for a single text input.
func (v *BM25Vectorizer) Sparse(text string) *SparseVector {
	counts := termCounts(tokenize(text))
	if len(counts) == 0 {
		return &SparseVector{}
	}

	indices := make([]uint32, 0, len(counts))
	values := make([]float32, 0, len(counts))
	for term, tf := range counts {
		weight := float32(tf) / (float32(tf) + bm25K1)
		indices = append(indices, hashTerm(term))
		values = append(values, weight)
	}

	return &SparseVector{Indices: indices, Values: values}
}

// SparseBatch computes sparse vectors for multiple text inputs.
func (v *BM25Vectorizer) SparseBatch(texts []string) []*SparseVector {
	out := make([]*SparseVector, len(texts))
	for i, t := range texts {
		out[i] = v.Sparse(t)
	}
	return out
}

// tokenize lowercases and splits text into words, trimming punctuation and
// dropping very short tokens.
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]{}=<>")
		if len(f) > 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// termCounts builds a term-frequency map from tokens.
func termCounts(tokens []string) map[string]int {
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	return counts
}

// hashTerm maps a term to a stable index within sparseVocabSpace.
func hashTerm(term string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(term))
	return h.Sum32() % sparseVocabSpace
}

// Ensure BM25Vectorizer implements SparseEmbedder.
var _ SparseEmbedder = (*BM25Vectorizer)(nil)
