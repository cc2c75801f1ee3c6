package paxos

import (
	"testing"

	"github.com/paxosledger/bankchain/internal/block"
)

func TestEncodeDecodeAccept(t *testing.T) {
	b := block.New(block.Transaction{From: 1, To: 2, Amount: 30}, nil)
	original := Accept{From: 2, Ballot: Ballot{Number: 1, ProposerID: 2}, Depth: 1, Block: b}

	data, err := Encode(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(Accept)
	if !ok {
		t.Fatalf("decoded type = %T, want Accept", decoded)
	}
	if got.From != original.From || got.Ballot != original.Ballot || got.Depth != original.Depth {
		t.Fatalf("decoded envelope mismatch: %+v vs %+v", got, original)
	}
	if got.Block.Hash != b.Hash || got.Block.Tx != b.Tx {
		t.Fatalf("decoded block mismatch: %+v vs %+v", got.Block, b)
	}
}

func TestEncodeDecodePromiseWithNoAcceptedValue(t *testing.T) {
	original := Promise{From: 3, Ballot: Ballot{Number: 2, ProposerID: 1}, Depth: 1}
	data, err := Encode(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := decoded.(Promise)
	if got.AcceptedBallot != nil {
		t.Fatal("expected nil AcceptedBallot when none was accepted")
	}
}

func TestEncodeDecodePromiseWithAcceptedValue(t *testing.T) {
	b := block.New(block.Transaction{From: 1, To: 2, Amount: 10}, nil)
	ab := Ballot{Number: 1, ProposerID: 9}
	original := Promise{From: 3, Ballot: Ballot{Number: 2, ProposerID: 1}, Depth: 1, AcceptedBallot: &ab, AcceptedBlock: &b}

	data, err := Encode(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := decoded.(Promise)
	if got.AcceptedBallot == nil || *got.AcceptedBallot != ab {
		t.Fatalf("accepted ballot mismatch: %+v", got.AcceptedBallot)
	}
	if got.AcceptedBlock == nil || got.AcceptedBlock.Hash != b.Hash {
		t.Fatal("accepted block did not round trip")
	}
}

func TestEncodeDecodeRecoveryReply(t *testing.T) {
	chain := []block.Block{block.New(block.Transaction{From: 1, To: 2, Amount: 5}, nil)}
	original := RecoveryReply{
		From:           4,
		Chain:          chain,
		AccountTable:   map[int]int64{1: 70, 2: 130, 3: 100, 4: 100, 5: 100},
		PromisedBallot: Ballot{Number: 2, ProposerID: 1},
	}
	data, err := Encode(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := decoded.(RecoveryReply)
	if len(got.Chain) != 1 || got.Chain[0].Hash != chain[0].Hash {
		t.Fatal("chain did not round trip")
	}
	if got.AccountTable[2] != 130 {
		t.Fatal("account table did not round trip")
	}
	if got.PromisedBallot != original.PromisedBallot {
		t.Fatal("promised ballot did not round trip")
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	if _, err := Decode([]byte(`{"type":"Bogus","from":1}`)); err == nil {
		t.Fatal("expected an error decoding an unknown message type")
	}
}
