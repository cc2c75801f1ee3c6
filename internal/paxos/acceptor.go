package paxos

import "github.com/paxosledger/bankchain/internal/block"

// acceptorState is the per-current-slot acceptor bookkeeping: the highest
// ballot promised, and whatever was most recently accepted (if anything)
// for the slot this peer is presently deciding.
type acceptorState struct {
	PromisedBallot Ballot
	AcceptedBallot Ballot
	AcceptedBlock  *block.Block
}

func (s *acceptorState) reset() {
	*s = acceptorState{}
}

// PrepareOutcome classifies how a Prepare was handled.
type PrepareOutcome int

const (
	PrepareIgnoredDepth PrepareOutcome = iota
	PrepareIgnoredStaleBallot
	PrepareOK
)

// HandlePrepare is the acceptor path for Prepare: drop messages for a slot
// other than the one currently open, drop ballots below what's already
// been promised, otherwise promise and echo back whatever was previously
// accepted so the proposer can enforce the re-propose-the-chosen-value
// safety rule.
func (e *Engine) HandlePrepare(msg Prepare, currentDepth int) (PrepareOutcome, Promise) {
	if msg.Depth != currentDepth {
		return PrepareIgnoredDepth, Promise{}
	}
	if msg.Ballot.Less(e.current.PromisedBallot) {
		return PrepareIgnoredStaleBallot, Promise{}
	}
	e.current.PromisedBallot = msg.Ballot

	reply := Promise{From: e.selfID, Ballot: msg.Ballot, Depth: msg.Depth}
	if !e.current.AcceptedBallot.IsZero() {
		ab := e.current.AcceptedBallot
		reply.AcceptedBallot = &ab
		if e.current.AcceptedBlock != nil {
			b := *e.current.AcceptedBlock
			reply.AcceptedBlock = &b
		}
	}
	return PrepareOK, reply
}

// AcceptOutcome classifies how an Accept was handled.
type AcceptOutcome int

const (
	AcceptIgnoredStaleDepth AcceptOutcome = iota
	AcceptBehind
	AcceptIgnoredStaleBallot
	AcceptRejectedInvalidBlock
	AcceptOK
)

// HandleAccept is the acceptor path for Accept. tail is the current chain
// tail (nil at the genesis slot); the incoming block is verified against
// it directly, never against a reconstructed in-message predecessor.
func (e *Engine) HandleAccept(msg Accept, currentDepth int, tail *block.Block) (AcceptOutcome, Accepted) {
	if msg.Depth < currentDepth {
		return AcceptIgnoredStaleDepth, Accepted{}
	}
	if msg.Depth > currentDepth {
		return AcceptBehind, Accepted{}
	}
	if msg.Ballot.Less(e.current.PromisedBallot) {
		return AcceptIgnoredStaleBallot, Accepted{}
	}
	if !msg.Block.Verify(tail) {
		return AcceptRejectedInvalidBlock, Accepted{}
	}
	e.current.PromisedBallot = msg.Ballot
	e.current.AcceptedBallot = msg.Ballot
	b := msg.Block
	e.current.AcceptedBlock = &b

	return AcceptOK, Accepted{From: e.selfID, Ballot: msg.Ballot}
}
