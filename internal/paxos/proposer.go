package paxos

import "github.com/paxosledger/bankchain/internal/block"

// proposerRound is the per-round state: the ballot this round is
// contending with, the slot it aims to fill, the candidate value (which
// may be replaced by a value learned via Promise), and the peer sets
// tracking which replies have arrived for this ballot.
type proposerRound struct {
	Ballot        Ballot
	Depth         int
	ProposedBlock block.Block

	highestAcceptedSeen Ballot
	promisedPeers       map[int]bool
	acceptedPeers       map[int]bool
	decisionSent        bool
}

// BeginRound starts a new proposer round for depth using a freshly minted
// ballot, clearing any previous round's transient state.
func (e *Engine) BeginRound(depth int, proposed block.Block) Ballot {
	e.proposerBallotNum = maxInt64(e.proposerBallotNum, e.current.PromisedBallot.Number) + 1
	ballot := Ballot{Number: e.proposerBallotNum, ProposerID: e.selfID}
	e.round = &proposerRound{
		Ballot:        ballot,
		Depth:         depth,
		ProposedBlock: proposed,
		promisedPeers: map[int]bool{},
		acceptedPeers: map[int]bool{},
	}
	return ballot
}

// ActiveRound reports the current round's ballot/depth/value, or ok=false
// if no round is in flight.
func (e *Engine) ActiveRound() (ballot Ballot, depth int, value block.Block, ok bool) {
	if e.round == nil {
		return Ballot{}, 0, block.Block{}, false
	}
	return e.round.Ballot, e.round.Depth, e.round.ProposedBlock, true
}

// HandlePromise folds a Promise reply into the active round. It reports
// whether a majority of Promises (including the proposer's own implicit
// vote) has now been reached for this ballot, and the value that should be
// proposed in Phase 2 (either the original candidate, or a previously
// accepted value this round must safely re-propose).
func (e *Engine) HandlePromise(msg Promise) (value block.Block, majorityReached bool) {
	if e.round == nil || msg.Ballot != e.round.Ballot {
		return block.Block{}, false
	}
	e.round.promisedPeers[msg.From] = true
	if msg.AcceptedBallot != nil && msg.AcceptedBallot.GreaterThan(e.round.highestAcceptedSeen) {
		e.round.highestAcceptedSeen = *msg.AcceptedBallot
		if msg.AcceptedBlock != nil {
			e.round.ProposedBlock = *msg.AcceptedBlock
		}
	}
	reached := len(e.round.promisedPeers) >= e.majority-1
	return e.round.ProposedBlock, reached
}

// HandleAccepted folds an Accepted reply into the active round. It reports
// whether a majority has now been reached, and whether this call is the one
// that should latch decisionSent (at most once per round, invariant #5).
func (e *Engine) HandleAccepted(msg Accepted) (majorityReached, shouldSendDecision bool) {
	if e.round == nil || msg.Ballot != e.round.Ballot {
		return false, false
	}
	e.round.acceptedPeers[msg.From] = true
	reached := len(e.round.acceptedPeers) >= e.majority-1
	if reached && !e.round.decisionSent {
		e.round.decisionSent = true
		return true, true
	}
	return reached, false
}

// EndRound discards the active round's transient state.
func (e *Engine) EndRound() {
	e.round = nil
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
