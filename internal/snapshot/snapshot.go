// Package snapshot implements spec §3/§9's per-round deep-copy store: an
// immutable capture of (points, conversation, followup_count) taken at the
// top of every clustering round, sufficient to restore state on backtrack.
package snapshot

import (
	"github.com/knoguchi/docmemory/internal/followup"
	"github.com/knoguchi/docmemory/internal/vectorstore"
)

// Snapshot is an immutable capture of the session's narrowable state at the
// top of a round, before that round's narrowing is applied.
type Snapshot struct {
	Points        []vectorstore.Chunk
	Conversation  []followup.Exchange
	FollowupCount int
}

// New deep-copies points, conversation, and the follow-up counter into a new
// Snapshot. Chunk records (including their dense vectors) are copied, not
// aliased, so subsequent mutation of the live session never affects a
// previously taken snapshot.
func New(points []vectorstore.Chunk, conversation []followup.Exchange, followupCount int) Snapshot {
	return Snapshot{
		Points:        copyPoints(points),
		Conversation:  copyConversation(conversation),
		FollowupCount: followupCount,
	}
}

func copyPoints(points []vectorstore.Chunk) []vectorstore.Chunk {
	out := make([]vectorstore.Chunk, len(points))
	for i, c := range points {
		cp := c
		cp.DenseVector = append([]float32{}, c.DenseVector...)
		out[i] = cp
	}
	return out
}

func copyConversation(conversation []followup.Exchange) []followup.Exchange {
	out := make([]followup.Exchange, len(conversation))
	copy(out, conversation)
	return out
}

// Store is a per-session map of round -> Snapshot. Not independently locked;
// it is a field of session.Session, mutated under the session's own lock.
type Store map[int]Snapshot

// Take records a snapshot for the given round.
func (s Store) Take(round int, points []vectorstore.Chunk, conversation []followup.Exchange, followupCount int) {
	s[round] = New(points, conversation, followupCount)
}

// Get returns the snapshot for a round, if present.
func (s Store) Get(round int) (Snapshot, bool) {
	snap, ok := s[round]
	return snap, ok
}

// DiscardAfter removes every snapshot for a round greater than the given round.
func (s Store) DiscardAfter(round int) {
	for r := range s {
		if r > round {
			delete(s, r)
		}
	}
}
