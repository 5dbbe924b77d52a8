// Package navtree implements spec §4.6: an append-only tree of decision
// nodes tracking which branch of the clustering exploration the session is
// currently on, prunable on backtrack.
package navtree

import "fmt"

// RootID is the fixed id of the tree's root node.
const RootID = "root"

// Node is one decision point: either the root, or one cluster offered at a
// given round under a given parent.
type Node struct {
	NodeID       string
	Label        string
	Depth        int
	ParentNodeID string // empty for root
	Round        int
	ClusterID    *int // nil for root
	OnPath       bool
}

// ChildSpec describes one cluster to add as a child node.
type ChildSpec struct {
	ClusterID int
	Label     string
}

// Tree is the ordered sequence of nodes for one session. Not independently
// locked — it is a field of session.Session, mutated under the session's own
// lock per spec §5.
type Tree struct {
	Nodes []Node
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{}
}

// AddRoot inserts the root node with on_path = true. No-op if a root already exists.
func (t *Tree) AddRoot(label string) {
	for _, n := range t.Nodes {
		if n.NodeID == RootID {
			return
		}
	}
	t.Nodes = append(t.Nodes, Node{
		NodeID: RootID,
		Label:  label,
		Depth:  0,
		OnPath: true,
	})
}

// ChildNodeID returns the node id for a cluster offered at a given round:
// "c<cluster_id>-r<round>".
func ChildNodeID(clusterID, round int) string {
	return fmt.Sprintf("c%d-r%d", clusterID, round)
}

// AddChildren inserts one node per cluster at depth = round, each with
// on_path = false.
func (t *Tree) AddChildren(parentNodeID string, round int, children []ChildSpec) {
	parentDepth := 0
	for _, n := range t.Nodes {
		if n.NodeID == parentNodeID {
			parentDepth = n.Depth
			break
		}
	}
	for _, c := range children {
		cid := c.ClusterID
		t.Nodes = append(t.Nodes, Node{
			NodeID:       ChildNodeID(c.ClusterID, round),
			Label:        c.Label,
			Depth:        parentDepth + 1,
			ParentNodeID: parentNodeID,
			Round:        round,
			ClusterID:    &cid,
			OnPath:       false,
		})
	}
}

// MarkOnPath sets on_path = true on the named node and false on its siblings
// (nodes sharing the same parent and round).
func (t *Tree) MarkOnPath(nodeID string) {
	var parent string
	var round int
	found := false
	for _, n := range t.Nodes {
		if n.NodeID == nodeID {
			parent = n.ParentNodeID
			round = n.Round
			found = true
			break
		}
	}
	if !found {
		return
	}
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if n.ParentNodeID == parent && n.Round == round {
			n.OnPath = n.NodeID == nodeID
		}
	}
}

// PruneBeyond deletes every node whose round > round; for the target round,
// sets on_path true only on the node being restored, false on its siblings.
func (t *Tree) PruneBeyond(round int, restoredNodeID string) {
	kept := make([]Node, 0, len(t.Nodes))
	for _, n := range t.Nodes {
		if n.NodeID == RootID || n.Round <= round {
			kept = append(kept, n)
		}
	}
	t.Nodes = kept

	for i := range t.Nodes {
		n := &t.Nodes[i]
		if n.NodeID == restoredNodeID {
			n.OnPath = true
		} else if n.Round == round {
			n.OnPath = false
		}
	}
	if restoredNodeID == RootID {
		for i := range t.Nodes {
			if t.Nodes[i].NodeID == RootID {
				t.Nodes[i].OnPath = true
			} else {
				t.Nodes[i].OnPath = false
			}
		}
	}
}

// Find returns the node with the given id, if present.
func (t *Tree) Find(nodeID string) (Node, bool) {
	for _, n := range t.Nodes {
		if n.NodeID == nodeID {
			return n, true
		}
	}
	return Node{}, false
}

// Clone returns a deep copy of the tree.
func (t *Tree) Clone() *Tree {
	clone := &Tree{Nodes: make([]Node, len(t.Nodes))}
	copy(clone.Nodes, t.Nodes)
	for i, n := range t.Nodes {
		if n.ClusterID != nil {
			cid := *n.ClusterID
			clone.Nodes[i].ClusterID = &cid
		}
	}
	return clone
}
