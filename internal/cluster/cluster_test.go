package cluster

import "testing"

func makeBlob(center []float32, n int, jitter float32, seed int) [][]float32 {
	out := make([][]float32, n)
	for i := 0; i < n; i++ {
		v := make([]float32, len(center))
		for j := range center {
			// deterministic pseudo-jitter, no math/rand (keeps tests reproducible
			// without depending on a seeded global RNG)
			offset := float32((seed*31+i*17+j*7)%11-5) / 10.0 * jitter
			v[j] = center[j] + offset
		}
		out[i] = v
	}
	return out
}

func TestLabels_SeparatesDistinctBlobs(t *testing.T) {
	// blob size (8) is kept below 2*MinClusterSize (10) so neither blob can
	// itself be split into two sub-clusters under the leaf selection rule.
	blobA := makeBlob([]float32{1, 0, 0, 0}, 8, 0.05, 1)
	blobB := makeBlob([]float32{0, 1, 0, 0}, 8, 0.05, 2)
	vectors := append(append([][]float32{}, blobA...), blobB...)

	labels := Labels(vectors, Params{MinClusterSize: 5, MinSamples: 2, MaxClusters: 4})

	if len(labels) != len(vectors) {
		t.Fatalf("expected %d labels, got %d", len(vectors), len(labels))
	}

	firstHalf := map[int]bool{}
	secondHalf := map[int]bool{}
	for i, l := range labels {
		if i < 8 {
			firstHalf[l] = true
		} else {
			secondHalf[l] = true
		}
	}
	if len(firstHalf) != 1 || firstHalf[-1] {
		t.Errorf("expected blob A to form one non-noise cluster, got labels %v", firstHalf)
	}
	if len(secondHalf) != 1 || secondHalf[-1] {
		t.Errorf("expected blob B to form one non-noise cluster, got labels %v", secondHalf)
	}
	for l := range firstHalf {
		for l2 := range secondHalf {
			if l == l2 {
				t.Errorf("expected blob A and blob B to receive different cluster ids, both got %d", l)
			}
		}
	}
}

func TestLabels_CapsToMaxClusters(t *testing.T) {
	var vectors [][]float32
	centers := [][]float32{
		{5, 0, 0, 0}, {0, 5, 0, 0}, {0, 0, 5, 0}, {0, 0, 0, 5}, {3, 3, 3, 3},
	}
	for i, c := range centers {
		vectors = append(vectors, makeBlob(c, 6, 0.02, i+1)...)
	}

	labels := Labels(vectors, Params{MinClusterSize: 3, MinSamples: 2, MaxClusters: 4})

	distinct := map[int]bool{}
	for _, l := range labels {
		if l >= 0 {
			distinct[l] = true
		}
	}
	if len(distinct) > 4 {
		t.Errorf("expected at most 4 non-noise clusters, got %d", len(distinct))
	}
	for id := range distinct {
		if id < 0 || id >= 4 {
			t.Errorf("expected cluster ids in [0,4), got %d", id)
		}
	}
}

func TestLabels_AllNoiseWhenBelowMinClusterSize(t *testing.T) {
	vectors := makeBlob([]float32{1, 0, 0}, 3, 0.01, 1)

	labels := Labels(vectors, Params{MinClusterSize: 10, MinSamples: 2, MaxClusters: 4})

	for _, l := range labels {
		if l != -1 {
			t.Errorf("expected all-noise when N < min_cluster_size, got label %d", l)
		}
	}
}

func TestLabels_Deterministic(t *testing.T) {
	vectors := append(
		makeBlob([]float32{1, 0, 0, 0}, 6, 0.05, 1),
		makeBlob([]float32{0, 1, 0, 0}, 6, 0.05, 2)...,
	)
	params := Params{MinClusterSize: 3, MinSamples: 2, MaxClusters: 4}

	first := Labels(vectors, params)
	second := Labels(vectors, params)

	if len(first) != len(second) {
		t.Fatalf("length mismatch between repeated runs")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("expected deterministic labeling, index %d differed: %d vs %d", i, first[i], second[i])
		}
	}
}

func TestMinClusterSizeFor(t *testing.T) {
	cases := []struct {
		n, hdbscanMin, want int
	}{
		{n: 10, hdbscanMin: 5, want: 5},
		{n: 100, hdbscanMin: 5, want: 6},
		{n: 15, hdbscanMin: 5, want: 5},
	}
	for _, c := range cases {
		got := MinClusterSizeFor(c.n, c.hdbscanMin)
		if got != c.want {
			t.Errorf("MinClusterSizeFor(%d, %d) = %d, want %d", c.n, c.hdbscanMin, got, c.want)
		}
	}
}
