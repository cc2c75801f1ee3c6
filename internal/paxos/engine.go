package paxos

// Engine is a single peer's per-slot Paxos state machine, collapsing the
// proposer, acceptor, and learner roles onto one peer. It holds only the
// state for the slot currently being decided — once a decision is
// applied, the owning peer calls ResetSlot and the engine is ready for
// the next depth. Engine itself performs no locking: the owning peer
// serializes all calls behind its single mutex.
type Engine struct {
	selfID   int
	majority int

	proposerBallotNum int64
	current           acceptorState
	round             *proposerRound
}

// NewEngine returns an engine for selfID participating in a group of
// groupSize peers (so Majority = floor(groupSize/2)+1).
func NewEngine(selfID, groupSize int) *Engine {
	return &Engine{selfID: selfID, majority: Majority(groupSize)}
}

// CurrentPromisedBallot returns the promised ballot for the slot this peer
// is currently deciding — the value persisted as the durable record's
// single promised_ballot field.
func (e *Engine) CurrentPromisedBallot() Ballot {
	return e.current.PromisedBallot
}

// RestorePromisedBallot seeds the current slot's promised ballot from a
// loaded or recovered durable record.
func (e *Engine) RestorePromisedBallot(b Ballot) {
	e.current.PromisedBallot = b
}

// MergePromisedBallot takes the elementwise max of the current promised
// ballot and other, as recovery requires when folding in a peer's snapshot.
func (e *Engine) MergePromisedBallot(other Ballot) {
	if other.Number > e.current.PromisedBallot.Number {
		e.current.PromisedBallot.Number = other.Number
	}
	if other.ProposerID > e.current.PromisedBallot.ProposerID {
		e.current.PromisedBallot.ProposerID = other.ProposerID
	}
}

// ResetSlot clears both acceptor and proposer transient state, once a
// block lands and this slot is no longer being decided.
func (e *Engine) ResetSlot() {
	e.current.reset()
	e.round = nil
}
