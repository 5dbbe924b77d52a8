// Package session implements spec §4.7: the session state machine that
// orchestrates retrieval, clustering, follow-up Q&A, backtracking, and
// termination over a candidate pool of document chunks.
package session

import (
	"sort"
	"time"

	"github.com/knoguchi/docmemory/internal/followup"
	"github.com/knoguchi/docmemory/internal/navtree"
	"github.com/knoguchi/docmemory/internal/snapshot"
	"github.com/knoguchi/docmemory/internal/vectorstore"
)

// Status is one of the five session states of spec §3.
type Status string

const (
	StatusCreated   Status = "created"
	StatusClusters  Status = "clusters"
	StatusFollowup  Status = "followup"
	StatusFound     Status = "found"
	StatusExhausted Status = "exhausted"
)

// Exchange is one question/answer pair in the conversation.
type Exchange = followup.Exchange

// Session is the mutable state spec §3 describes, owned by the engine and
// keyed by a short opaque id. All fields are mutated only under the
// session's own lock (see Engine).
type Session struct {
	ID            string
	CreatedAt     time.Time
	OriginalQuery string
	ExpandedQuery string

	Points []vectorstore.Chunk
	Round  int
	Status Status

	Labels        []int
	ClusterLabels map[int]string
	ClusterFiles  map[int][]string
	ClusterSizes  map[int]int

	Conversation    []Exchange
	PendingQuestion string
	FollowupCount   int

	FoundFile string

	NavTree        *navtree.Tree
	CurrentNavNode string

	Snapshots snapshot.Store
}

// newSession constructs an empty session ready for Start to populate.
func newSession(id, query string) *Session {
	return &Session{
		ID:            id,
		CreatedAt:     time.Now(),
		OriginalQuery: query,
		Status:        StatusCreated,
		NavTree:       navtree.New(),
		Snapshots:     snapshot.Store{},
	}
}

// uniqueFiles returns the number of distinct files represented in points.
func uniqueFiles(points []vectorstore.Chunk) int {
	seen := map[string]bool{}
	for _, c := range points {
		seen[c.File] = true
	}
	return len(seen)
}

// fileNames returns the sorted distinct file names in points.
func fileNames(points []vectorstore.Chunk) []string {
	seen := map[string]bool{}
	for _, c := range points {
		seen[c.File] = true
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// fileScores returns, for each distinct file, its best (maximum) chunk score.
func fileScores(points []vectorstore.Chunk) map[string]float32 {
	best := map[string]float32{}
	for _, c := range points {
		if cur, ok := best[c.File]; !ok || c.Score > cur {
			best[c.File] = c.Score
		}
	}
	return best
}

// ClusterView is one entry of the clusters field of the serialized session view.
type ClusterView struct {
	ID    int      `json:"id"`
	Label string   `json:"label"`
	Files []string `json:"files"`
	Size  int      `json:"size"`
}

// View is the serialized session shape returned by every HTTP endpoint, per
// spec §6. Dense vectors are never exposed.
type View struct {
	SessionID      string             `json:"session_id"`
	Status         Status             `json:"status"`
	Round          int                `json:"round"`
	Query          string             `json:"query"`
	ExpandedQuery  string             `json:"expanded_query"`
	TotalChunks    int                `json:"total_chunks"`
	Files          []string           `json:"files"`
	FileScores     map[string]float32 `json:"file_scores"`
	Conversation   []Exchange         `json:"conversation"`
	NavTree        []navtree.Node     `json:"nav_tree"`
	CurrentNavNode string             `json:"current_nav_node"`

	Clusters []ClusterView `json:"clusters,omitempty"`

	PendingQuestion string `json:"pending_question,omitempty"`
	FollowupCount   int    `json:"followup_count,omitempty"`
	MaxFollowups    int    `json:"max_followups,omitempty"`

	FoundFile string `json:"found_file,omitempty"`

	RemainingFiles []string `json:"remaining_files,omitempty"`
}

// buildView renders the status-dependent serialized view for a session.
// maxFollowups is passed in from engine config since it isn't a session field.
func buildView(s *Session, maxFollowups int) View {
	v := View{
		SessionID:      s.ID,
		Status:         s.Status,
		Round:          s.Round,
		Query:          s.OriginalQuery,
		ExpandedQuery:  s.ExpandedQuery,
		TotalChunks:    len(s.Points),
		Files:          fileNames(s.Points),
		FileScores:     fileScores(s.Points),
		Conversation:   append([]Exchange{}, s.Conversation...),
		NavTree:        append([]navtree.Node{}, s.NavTree.Nodes...),
		CurrentNavNode: s.CurrentNavNode,
	}

	switch s.Status {
	case StatusClusters:
		ids := make([]int, 0, len(s.ClusterLabels))
		for id := range s.ClusterLabels {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		v.Clusters = make([]ClusterView, len(ids))
		for i, id := range ids {
			v.Clusters[i] = ClusterView{
				ID:    id,
				Label: s.ClusterLabels[id],
				Files: append([]string{}, s.ClusterFiles[id]...),
				Size:  s.ClusterSizes[id],
			}
		}
	case StatusFollowup:
		v.PendingQuestion = s.PendingQuestion
		v.FollowupCount = s.FollowupCount
		v.MaxFollowups = maxFollowups
	case StatusFound:
		v.FoundFile = s.FoundFile
	case StatusExhausted:
		v.RemainingFiles = fileNames(s.Points)
	}

	return v
}
