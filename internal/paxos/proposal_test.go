package paxos

import "testing"

func TestBallotOrdering(t *testing.T) {
	low := Ballot{Number: 1, ProposerID: 5}
	high := Ballot{Number: 2, ProposerID: 1}
	if !low.Less(high) {
		t.Fatal("ballot with lower number should sort first regardless of proposer id")
	}

	a := Ballot{Number: 3, ProposerID: 1}
	b := Ballot{Number: 3, ProposerID: 2}
	if !a.Less(b) {
		t.Fatal("equal numbers should tie-break on proposer id")
	}
	if !b.GreaterThan(a) {
		t.Fatal("GreaterThan should be the mirror of Less")
	}
}

func TestBallotIsZero(t *testing.T) {
	if !Zero.IsZero() {
		t.Fatal("Zero should report IsZero")
	}
	if (Ballot{Number: 1, ProposerID: 1}).IsZero() {
		t.Fatal("non-zero ballot reported IsZero")
	}
}

func TestMajority(t *testing.T) {
	cases := map[int]int{1: 1, 2: 2, 3: 2, 4: 3, 5: 3, 6: 4, 7: 4}
	for n, want := range cases {
		if got := Majority(n); got != want {
			t.Errorf("Majority(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestBallotJSONRoundTrip(t *testing.T) {
	b := Ballot{Number: 7, ProposerID: 3}
	data, err := b.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "[7,3]" {
		t.Fatalf("wire form = %s, want [7,3]", data)
	}
	var out Ballot
	if err := out.UnmarshalJSON(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != b {
		t.Fatalf("round trip = %+v, want %+v", out, b)
	}
}
