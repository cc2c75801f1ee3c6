package recovery

import (
	"testing"

	"github.com/paxosledger/bankchain/internal/block"
)

func chainOfLength(n int) []block.Block {
	var blocks []block.Block
	var prev *block.Block
	for i := 0; i < n; i++ {
		b := block.New(block.Transaction{From: 1, To: 2, Amount: int64(i + 1)}, prev)
		blocks = append(blocks, b)
		prev = &blocks[len(blocks)-1]
	}
	return blocks
}

func TestMergeDiscardsShorterChain(t *testing.T) {
	local := chainOfLength(3)
	outcome, _, _ := Merge(local, 2, Snapshot{From: 5, Chain: chainOfLength(1)})
	if outcome != Discarded {
		t.Fatalf("outcome = %v, want Discarded", outcome)
	}
}

func TestMergeDiscardsEqualLengthFromLowerPeerID(t *testing.T) {
	local := chainOfLength(2)
	outcome, _, _ := Merge(local, 5, Snapshot{From: 2, Chain: chainOfLength(2)})
	if outcome != Discarded {
		t.Fatalf("outcome = %v, want Discarded", outcome)
	}
}

func TestMergeAdoptsEqualLengthFromHigherPeerID(t *testing.T) {
	local := chainOfLength(2)
	offered := chainOfLength(2)
	outcome, chain, _ := Merge(local, 2, Snapshot{From: 5, Chain: offered, AccountTable: map[int]int64{}})
	if outcome != Adopted {
		t.Fatalf("outcome = %v, want Adopted", outcome)
	}
	if len(chain) != 2 {
		t.Fatal("adopted chain should match the offered length")
	}
}

func TestMergeRejectsInvalidChain(t *testing.T) {
	local := chainOfLength(1)
	offered := chainOfLength(3)
	offered[2].BackPointer = "corrupted"
	outcome, _, _ := Merge(local, 1, Snapshot{From: 2, Chain: offered})
	if outcome != Rejected {
		t.Fatalf("outcome = %v, want Rejected", outcome)
	}
}

func TestMergeIsIdempotentOnShorterOrEqualChain(t *testing.T) {
	local := chainOfLength(5)
	outcome, _, _ := Merge(local, 3, Snapshot{From: 1, Chain: chainOfLength(5)})
	if outcome != Discarded {
		t.Fatal("a same-length reply from a lower-id peer must be a no-op")
	}
}

func TestSessionCompleteUnblocksAwaiters(t *testing.T) {
	s := NewSession()
	alreadyActive, done := s.Begin()
	if alreadyActive {
		t.Fatal("first Begin should report alreadyActive=false")
	}

	second, sameDone := s.Begin()
	if !second {
		t.Fatal("second Begin while active should report alreadyActive=true")
	}
	if sameDone != done {
		t.Fatal("concurrent recovery rounds should share the same completion channel")
	}

	finished := make(chan struct{})
	go func() {
		<-done
		close(finished)
	}()
	s.Complete()
	<-finished
}
