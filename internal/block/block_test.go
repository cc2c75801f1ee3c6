package block

import (
	"math/rand"
	"testing"
)

func TestContentHashIsDeterministic(t *testing.T) {
	tx := Transaction{From: 1, To: 2, Amount: 30}
	h1 := contentHash(tx, "ABCDEFGH")
	h2 := contentHash(tx, "ABCDEFGH")
	if h1 != h2 {
		t.Fatalf("content hash not deterministic: %s vs %s", h1, h2)
	}
	if h1 != contentHash(Transaction{From: 1, To: 2, Amount: 30}, "ABCDEFGH") {
		t.Fatal("equal-valued transactions produced different hashes")
	}
}

func TestFindNonceSatisfiesPredicate(t *testing.T) {
	tx := Transaction{From: 1, To: 2, Amount: 30}
	rng := rand.New(rand.NewSource(1))
	nonce, hash := findNonce(tx, rng)
	if len(nonce) != nonceLength {
		t.Fatalf("nonce length = %d, want %d", len(nonce), nonceLength)
	}
	if !acceptedLastChars[hash[len(hash)-1]] {
		t.Fatalf("hash %s does not satisfy acceptance predicate", hash)
	}
}

func TestGenesisBlockVerifiesWithNoPredecessor(t *testing.T) {
	tx := Transaction{From: 1, To: 2, Amount: 10}
	b := newWithRand(tx, nil, rand.New(rand.NewSource(2)))
	if b.BackPointer != "" {
		t.Fatalf("genesis block should have empty back pointer, got %q", b.BackPointer)
	}
	if !b.Verify(nil) {
		t.Fatal("genesis block failed to verify against nil predecessor")
	}
}

func TestChainedBlockVerifiesAgainstPredecessor(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	genesis := newWithRand(Transaction{From: 1, To: 2, Amount: 10}, nil, rng)
	next := newWithRand(Transaction{From: 2, To: 3, Amount: 5}, &genesis, rng)

	if !next.Verify(&genesis) {
		t.Fatal("second block failed to verify against its predecessor")
	}
	if next.Verify(nil) {
		t.Fatal("second block should not verify against nil predecessor")
	}
}

func TestVerifyRejectsTamperedHash(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	b := newWithRand(Transaction{From: 1, To: 2, Amount: 10}, nil, rng)
	b.Hash = "0000000000000000000000000000000000000000000000000000000000000000"
	if b.Verify(nil) {
		t.Fatal("tampered hash unexpectedly verified")
	}
}

func TestVerifyRejectsWrongBackPointer(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	genesis := newWithRand(Transaction{From: 1, To: 2, Amount: 10}, nil, rng)
	next := newWithRand(Transaction{From: 2, To: 3, Amount: 5}, &genesis, rng)
	next.BackPointer = "not-the-real-pointer"
	if next.Verify(&genesis) {
		t.Fatal("wrong back pointer unexpectedly verified")
	}
}

func TestReconstructRoundTrips(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	original := newWithRand(Transaction{From: 3, To: 4, Amount: 15}, nil, rng)
	rebuilt := Reconstruct(original.Tx, original.Nonce, original.Hash, original.BackPointer)
	if !rebuilt.Verify(nil) {
		t.Fatal("reconstructed block failed to verify")
	}
	if rebuilt != original {
		t.Fatalf("reconstructed block differs from original: %+v vs %+v", rebuilt, original)
	}
}
