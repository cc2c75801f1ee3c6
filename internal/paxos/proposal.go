// Package paxos implements the per-slot single-decree Paxos engine that
// decides one block per chain depth: ballot discipline, the
// Prepare/Promise/Accept/Accepted/Decision message catalog, and the
// proposer/acceptor/learner state machines that every peer runs for every
// role at once.
package paxos

import (
	"encoding/json"
	"fmt"
)

// Ballot is the totally-ordered (number, proposer-id) pair that labels a
// single proposal attempt. Tie-breaking on proposer id makes every ballot
// used anywhere in the system globally unique, so two proposers can never
// "collide" on the same ballot.
type Ballot struct {
	Number     int64
	ProposerID int
}

// Zero is the initial ballot every acceptor starts having promised: it
// compares lower than any ballot a real proposer would ever generate.
var Zero = Ballot{}

// IsZero reports whether b is the zero ballot.
func (b Ballot) IsZero() bool { return b == Zero }

// Less reports whether b sorts strictly before other: compare Number first,
// then ProposerID as the tie-break.
func (b Ballot) Less(other Ballot) bool {
	if b.Number != other.Number {
		return b.Number < other.Number
	}
	return b.ProposerID < other.ProposerID
}

// GreaterThan reports whether b sorts strictly after other.
func (b Ballot) GreaterThan(other Ballot) bool { return other.Less(b) }

// AtLeast reports whether b is equal to or greater than other.
func (b Ballot) AtLeast(other Ballot) bool { return !b.Less(other) }

func (b Ballot) String() string {
	return fmt.Sprintf("(%d,%d)", b.Number, b.ProposerID)
}

// MarshalJSON encodes a ballot as the 2-element array [number, proposer_id]
// the wire protocol specifies.
func (b Ballot) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int64{b.Number, int64(b.ProposerID)})
}

// UnmarshalJSON decodes a ballot from its 2-element wire array.
func (b *Ballot) UnmarshalJSON(data []byte) error {
	var pair [2]int64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	b.Number = pair[0]
	b.ProposerID = int(pair[1])
	return nil
}

// Majority returns floor(n/2)+1, the number of affirmative replies
// (including the proposer's own implicit vote) needed to reach agreement
// across an n-peer group. Expressed as a function of group size rather
// than hard-wired to 5, so the design scales with peer count changes.
func Majority(n int) int {
	return n/2 + 1
}
