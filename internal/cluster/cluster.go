// Package cluster implements density clustering of dense embedding vectors
// with a bounded cluster count and explicit noise designation, per spec §4.4:
// L2-normalize, single-linkage over mutual-reachability distance, a
// condensed-tree-style cut, capped to MAX_CLUSTERS.
//
// This is a compact reimplementation, not a port of a reference HDBSCAN
// library — none exists anywhere in the retrieved example pack (see
// DESIGN.md). The spec explicitly allows substituting a different density
// clusterer "provided it honors these parameters' intent" (min cluster
// size, noise designation), which is what this does: the condensed tree is
// cut with HDBSCAN's "leaf" selection rule (descend into both children
// whenever both still meet min_cluster_size) rather than the canonical
// excess-of-mass stability comparison, which needs a lambda = 1/distance
// transform to be scale-stable across branches of very different size.
package cluster

import (
	"math"
	"sort"
)

// Params configures the clustering pass. MinClusterSize and MinSamples
// follow spec §4.4's formula: min_cluster_size = max(HDBSCAN_MIN_CLUSTER_SIZE, N/15).
type Params struct {
	MinClusterSize int
	MinSamples     int
	MaxClusters    int
}

// MinClusterSizeFor implements spec §4.4's min_cluster_size formula.
func MinClusterSizeFor(n, hdbscanMinClusterSize int) int {
	floor := n / 15
	if hdbscanMinClusterSize > floor {
		return hdbscanMinClusterSize
	}
	return floor
}

// Labels computes a length-N label vector for the given dense vectors: -1
// for noise, else a cluster id densely renumbered in [0, k) with k <= MaxClusters.
func Labels(vectors [][]float32, p Params) []int {
	n := len(vectors)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	if n == 0 {
		return labels
	}
	if p.MinSamples < 1 {
		p.MinSamples = 1
	}
	if p.MinClusterSize < 1 {
		p.MinClusterSize = 1
	}

	norm := l2NormalizeAll(vectors)
	dist := pairwiseDistances(norm)
	core := coreDistances(dist, p.MinSamples)
	mreach := mutualReachability(dist, core)

	if n < p.MinClusterSize {
		return labels
	}

	root := buildDendrogram(mreach)
	if root == nil {
		return labels
	}

	noise := make(map[int]bool)
	idSeq := 0
	candidates := extractClusters(root, p.MinClusterSize, &noise, &idSeq)

	capped := capToMaxClusters(candidates, p.MaxClusters)
	for id, c := range capped {
		for _, pt := range c.points {
			labels[pt] = id
		}
	}
	return labels
}

// --- geometry ---

func l2NormalizeAll(vectors [][]float32) [][]float64 {
	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		var sumSq float64
		row := make([]float64, len(v))
		for j, x := range v {
			row[j] = float64(x)
			sumSq += row[j] * row[j]
		}
		norm := math.Sqrt(sumSq)
		if norm < 1e-12 {
			norm = 1e-12
		}
		for j := range row {
			row[j] /= norm
		}
		out[i] = row
	}
	return out
}

func pairwiseDistances(rows [][]float64) [][]float64 {
	n := len(rows)
	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dist := euclidean(rows[i], rows[j])
			d[i][j] = dist
			d[j][i] = dist
		}
	}
	return d
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// coreDistances computes, for each point, the distance to its minSamples-th
// nearest neighbor (excluding itself).
func coreDistances(dist [][]float64, minSamples int) []float64 {
	n := len(dist)
	core := make([]float64, n)
	for i := 0; i < n; i++ {
		others := make([]float64, 0, n-1)
		for j := 0; j < n; j++ {
			if j != i {
				others = append(others, dist[i][j])
			}
		}
		sort.Float64s(others)
		idx := minSamples - 1
		if idx >= len(others) {
			idx = len(others) - 1
		}
		if idx < 0 {
			core[i] = 0
		} else {
			core[i] = others[idx]
		}
	}
	return core
}

func mutualReachability(dist [][]float64, core []float64) [][]float64 {
	n := len(dist)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			d := dist[i][j]
			if core[i] > d {
				d = core[i]
			}
			if core[j] > d {
				d = core[j]
			}
			m[i][j] = d
		}
	}
	return m
}

// --- minimum spanning tree (Prim's) + single-linkage dendrogram ---

type mstEdge struct {
	a, b int
	dist float64
}

func minimumSpanningTree(m [][]float64) []mstEdge {
	n := len(m)
	inTree := make([]bool, n)
	minDist := make([]float64, n)
	minFrom := make([]int, n)
	for i := range minDist {
		minDist[i] = math.Inf(1)
		minFrom[i] = -1
	}
	inTree[0] = true
	for j := 1; j < n; j++ {
		minDist[j] = m[0][j]
		minFrom[j] = 0
	}

	edges := make([]mstEdge, 0, n-1)
	for k := 1; k < n; k++ {
		next := -1
		best := math.Inf(1)
		for j := 0; j < n; j++ {
			if !inTree[j] && minDist[j] < best {
				best = minDist[j]
				next = j
			}
		}
		if next == -1 {
			break
		}
		inTree[next] = true
		edges = append(edges, mstEdge{a: minFrom[next], b: next, dist: minDist[next]})
		for j := 0; j < n; j++ {
			if !inTree[j] && m[next][j] < minDist[j] {
				minDist[j] = m[next][j]
				minFrom[j] = next
			}
		}
	}
	return edges
}

// dendroNode is one node of the single-linkage merge tree. Leaves have
// distance 0 and a single point; internal nodes merge two children at
// "distance".
type dendroNode struct {
	points      []int
	distance    float64
	left, right *dendroNode
}

func buildDendrogram(m [][]float64) *dendroNode {
	n := len(m)
	if n == 0 {
		return nil
	}
	if n == 1 {
		return &dendroNode{points: []int{0}}
	}

	edges := minimumSpanningTree(m)
	sort.Slice(edges, func(i, j int) bool { return edges[i].dist < edges[j].dist })

	uf := newUnionFind(n)
	nodes := make(map[int]*dendroNode, n)
	for i := 0; i < n; i++ {
		nodes[i] = &dendroNode{points: []int{i}}
	}

	for _, e := range edges {
		ra, rb := uf.find(e.a), uf.find(e.b)
		if ra == rb {
			continue
		}
		left, right := nodes[ra], nodes[rb]
		merged := &dendroNode{
			points:   append(append([]int{}, left.points...), right.points...),
			distance: e.dist,
			left:     left,
			right:    right,
		}
		delete(nodes, ra)
		delete(nodes, rb)
		root := uf.union(ra, rb)
		nodes[root] = merged
	}

	for _, node := range nodes {
		return node
	}
	return nil
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p, rank: make([]int, n)}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) int {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return ra
	}
	if u.rank[ra] < u.rank[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.rank[ra] == u.rank[rb] {
		u.rank[ra]++
	}
	return ra
}

// --- condensed tree / leaf extraction ---

type clusterCandidate struct {
	id     int
	points []int
}

// extractClusters walks the dendrogram top-down using HDBSCAN's "leaf"
// selection rule: split into both children whenever both still meet
// minClusterSize, descending as far as the size floor allows. A branch
// whose children don't both qualify keeps whichever one does (the other's
// points become noise); a branch where neither qualifies is itself the
// cluster if it meets the floor, else its points become noise. A child of a
// two-way split that never splits two ways again is taken whole, so the
// points it sheds further down stay in its cluster; noise comes only from
// points shed above the first two-way split or from a branch that splits
// two ways further down. This is
// simpler than (and an explicitly sanctioned substitute for) the canonical
// excess-of-mass cut — it honors the same min-cluster-size and noise
// intent without a stability comparison that's sensitive to the absolute
// distance scale between unrelated branches. idSeq assigns each candidate
// a stable extraction-order id used only as a tie-break before final
// renumbering.
func extractClusters(node *dendroNode, minClusterSize int, noise *map[int]bool, idSeq *int) []clusterCandidate {
	if node == nil {
		return nil
	}
	if node.left == nil || node.right == nil {
		// leaf: never itself a cluster, handled by the parent's size check.
		return nil
	}

	leftBig := len(node.left.points) >= minClusterSize
	rightBig := len(node.right.points) >= minClusterSize

	switch {
	case leftBig && rightBig:
		// fewer than two candidates below a child means it never splits
		// again: the whole child, shed points included, is the leaf cluster.
		leftCandidates := extractClusters(node.left, minClusterSize, noise, idSeq)
		if len(leftCandidates) <= 1 {
			leftCandidates = terminalCluster(node.left, idSeq)
		}
		rightCandidates := extractClusters(node.right, minClusterSize, noise, idSeq)
		if len(rightCandidates) <= 1 {
			rightCandidates = terminalCluster(node.right, idSeq)
		}
		return append(leftCandidates, rightCandidates...)

	case leftBig && !rightBig:
		markNoise(node.right, noise)
		return extractClusters(node.left, minClusterSize, noise, idSeq)

	case rightBig && !leftBig:
		markNoise(node.left, noise)
		return extractClusters(node.right, minClusterSize, noise, idSeq)

	default:
		// neither child is big enough to stand alone: this node is the
		// terminal cluster for its branch, provided it meets the floor itself.
		if len(node.points) >= minClusterSize {
			return terminalCluster(node, idSeq)
		}
		markNoise(node, noise)
		return nil
	}
}

func terminalCluster(node *dendroNode, idSeq *int) []clusterCandidate {
	return []clusterCandidate{newCandidate(node.points, idSeq)}
}

func newCandidate(points []int, idSeq *int) clusterCandidate {
	c := clusterCandidate{id: *idSeq, points: append([]int{}, points...)}
	*idSeq++
	return c
}

func markNoise(node *dendroNode, noise *map[int]bool) {
	for _, p := range node.points {
		(*noise)[p] = true
	}
}

// capToMaxClusters keeps the maxClusters largest candidates (ties broken by
// lower original id), reassigns the rest to noise, and renumbers the
// survivors 0..k-1 in ascending order of their original id.
func capToMaxClusters(candidates []clusterCandidate, maxClusters int) []clusterCandidate {
	if len(candidates) == 0 {
		return nil
	}

	kept := append([]clusterCandidate{}, candidates...)
	sort.Slice(kept, func(i, j int) bool {
		if len(kept[i].points) != len(kept[j].points) {
			return len(kept[i].points) > len(kept[j].points)
		}
		return kept[i].id < kept[j].id
	})
	if len(kept) > maxClusters {
		kept = kept[:maxClusters]
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].id < kept[j].id })
	for i := range kept {
		kept[i].id = i
	}
	return kept
}
