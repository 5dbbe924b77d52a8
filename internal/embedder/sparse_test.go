package embedder

import "testing"

func TestBM25Vectorizer_Sparse_EmptyText(t *testing.T) {
	v := NewBM25Vectorizer()

	sv := v.Sparse("")
	if len(sv.Indices) != 0 || len(sv.Values) != 0 {
		t.Errorf("expected empty sparse vector for empty text, got %+v", sv)
	}
}

func TestBM25Vectorizer_Sparse_DropsShortTokens(t *testing.T) {
	v := NewBM25Vectorizer()

	sv := v.Sparse("a to be or it")
	if len(sv.Indices) != 0 {
		t.Errorf("expected all tokens dropped as too short, got %+v", sv)
	}
}

func TestBM25Vectorizer_Sparse_IsDeterministic(t *testing.T) {
	v := NewBM25Vectorizer()

	a := v.Sparse("the quick brown fox jumps over the lazy dog")
	b := v.Sparse("the quick brown fox jumps over the lazy dog")

	if len(a.Indices) != len(b.Indices) {
		t.Fatalf("expected same number of terms across calls, got %d and %d", len(a.Indices), len(b.Indices))
	}

	aMap := make(map[uint32]float32, len(a.Indices))
	for i, idx := range a.Indices {
		aMap[idx] = a.Values[i]
	}
	for i, idx := range b.Indices {
		if aMap[idx] != b.Values[i] {
			t.Errorf("expected identical weight for index %d, got %v and %v", idx, aMap[idx], b.Values[i])
		}
	}
}

func TestBM25Vectorizer_Sparse_CaseAndPunctuationInsensitive(t *testing.T) {
	v := NewBM25Vectorizer()

	a := v.Sparse("Widget! widget widget.")
	b := v.Sparse("widget widget widget")

	if len(a.Indices) != 1 || len(b.Indices) != 1 {
		t.Fatalf("expected a single distinct term in each vector, got %+v and %+v", a, b)
	}
	if a.Indices[0] != b.Indices[0] {
		t.Errorf("expected punctuation/case-insensitive terms to hash identically")
	}
	if a.Values[0] != b.Values[0] {
		t.Errorf("expected identical term-frequency weight, got %v and %v", a.Values[0], b.Values[0])
	}
}

func TestBM25Vectorizer_Sparse_RepeatedTermSaturates(t *testing.T) {
	v := NewBM25Vectorizer()

	once := v.Sparse("widget gadget")
	thrice := v.Sparse("widget widget widget gadget")

	weightOf := func(sv *SparseVector, term string) float32 {
		idx := hashTerm(term)
		for i, si := range sv.Indices {
			if si == idx {
				return sv.Values[i]
			}
		}
		return -1
	}

	w1 := weightOf(once, "widget")
	w3 := weightOf(thrice, "widget")
	if w1 < 0 || w3 < 0 {
		t.Fatalf("expected widget term present in both vectors, got %v and %v", w1, w3)
	}
	if w3 <= w1 {
		t.Errorf("expected higher term frequency to produce a higher saturating weight, got %v <= %v", w3, w1)
	}
	if w3 >= 1.0 {
		t.Errorf("expected saturating weight to stay below 1.0, got %v", w3)
	}
}

func TestBM25Vectorizer_SparseBatch(t *testing.T) {
	v := NewBM25Vectorizer()

	out := v.SparseBatch([]string{"widget subsystem", "", "gadget factory"})
	if len(out) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out))
	}
	if len(out[1].Indices) != 0 {
		t.Errorf("expected empty result for empty input, got %+v", out[1])
	}
	if len(out[0].Indices) == 0 || len(out[2].Indices) == 0 {
		t.Errorf("expected non-empty results for non-empty inputs")
	}
}
