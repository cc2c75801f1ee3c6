// Package recovery implements the out-of-band catch-up exchange a peer
// uses to re-converge after it falls behind in chain depth, whether from
// a depth-skewed Accept/Decision or an operator-issued fix after a crash.
package recovery

import (
	"sync"

	"github.com/paxosledger/bankchain/internal/block"
	"github.com/paxosledger/bankchain/internal/paxos"
)

// Snapshot is the payload one peer offers another in a Recovery Reply:
// its full chain, balance table, and promised ballot.
type Snapshot struct {
	From           int
	Chain          []block.Block
	AccountTable   map[int]int64
	PromisedBallot paxos.Ballot
}

// Outcome reports what Merge decided to do with an incoming Snapshot.
type Outcome int

const (
	// Discarded means the offered chain was shorter than the local one, or
	// the same length from a lower peer id, so nothing changed (recovery
	// idempotence).
	Discarded Outcome = iota
	// Rejected means the offered chain failed verification.
	Rejected
	// Adopted means the local chain, balances, and promised ballot were replaced.
	Adopted
)

// Merge decides whether snap should replace the local state described by
// localChain and localID, using chain length then peer-id as the
// deterministic tie-break. It never mutates its inputs; the caller applies
// the returned chain and balances, and merges snap's promised ballot, under
// its own lock.
func Merge(localChain []block.Block, localID int, snap Snapshot) (Outcome, []block.Block, map[int]int64) {
	if len(snap.Chain) < len(localChain) {
		return Discarded, nil, nil
	}
	if len(snap.Chain) == len(localChain) && snap.From < localID {
		return Discarded, nil, nil
	}
	if !block.VerifySequence(snap.Chain) {
		return Rejected, nil, nil
	}
	return Adopted, snap.Chain, snap.AccountTable
}

// Session coordinates the one-shot "blocked handler waits for a recovery
// reply" rendezvous: a handler stuck behind a depth-skewed Accept/Decision
// begins a round and resumes once some other goroutine completes it with
// a merged result.
type Session struct {
	mu     sync.Mutex
	active bool
	done   chan struct{}
}

// NewSession returns an idle recovery coordinator.
func NewSession() *Session {
	return &Session{}
}

// Begin marks a recovery as in flight and returns the channel a waiting
// handler blocks on. Calling Begin while one is already active returns the existing
// channel, so a second depth-skewed message piggybacks on the same round
// trip instead of issuing a redundant Recovery request.
func (s *Session) Begin() (alreadyActive bool, done <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return true, s.done
	}
	s.active = true
	s.done = make(chan struct{})
	return false, s.done
}

// Complete closes the channel Begin handed out, releasing every handler
// waiting on it, and resets the session
// so the next depth-skew can start a fresh round.
func (s *Session) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	close(s.done)
	s.active = false
	s.done = nil
}
