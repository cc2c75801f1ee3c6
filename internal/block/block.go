// Package block implements the hash-linked transaction blocks that make up
// a peer's chain: canonical-JSON content hashing, a throttled
// proof-of-work-style nonce search, and back-pointer verification.
//
// The scheme mirrors the original Python prototype (blockchain.py): a
// block's content hash is SHA-256 over the transaction's canonical JSON
// encoding concatenated with an 8-character alphanumeric nonce, accepted
// once the digest's last hex character falls in {0,1,2,3,4}. The
// back-pointer hashes the predecessor's transaction, nonce, and content
// hash together, so a chain can only be replayed in one order.
package block

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"
)

// nonceAlphabet matches the Python reference's string.ascii_letters + string.digits.
const nonceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const nonceLength = 8

// acceptedLastChars is the proof-of-work-style acceptance predicate: a
// candidate hash is accepted only if its last hex character is one of these.
var acceptedLastChars = map[byte]bool{'0': true, '1': true, '2': true, '3': true, '4': true}

// Transaction is a transfer of amount from one account to another.
// Both accounts are expected to lie in the peer's fixed account range;
// that is enforced by the ledger package, not here.
type Transaction struct {
	From   int   `json:"from"`
	To     int   `json:"to"`
	Amount int64 `json:"amount"`
}

// canonicalJSON renders tx the same way on every peer: encoding/json already
// marshals struct fields in declaration order with no extraneous whitespace,
// which is sufficient determinism for a single Go implementation shared by
// every replica.
func canonicalJSON(tx Transaction) []byte {
	// json.Marshal on a struct cannot fail for this value shape.
	data, _ := json.Marshal(tx)
	return data
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// contentHash computes SHA256(canonical_json(tx) || nonce).
func contentHash(tx Transaction, nonce string) string {
	buf := canonicalJSON(tx)
	buf = append(buf, nonce...)
	return sha256Hex(buf)
}

// findNonce repeatedly samples a nonce until the content hash satisfies the
// acceptance predicate. Average ~3 trials at a 5/16 acceptance probability.
func findNonce(tx Transaction, rng *rand.Rand) (nonce string, hash string) {
	buf := make([]byte, nonceLength)
	for {
		for i := range buf {
			buf[i] = nonceAlphabet[rng.Intn(len(nonceAlphabet))]
		}
		nonce = string(buf)
		hash = contentHash(tx, nonce)
		if acceptedLastChars[hash[len(hash)-1]] {
			return nonce, hash
		}
	}
}

// backPointerHash computes SHA256(canonical_json(prev.Tx) || prev.Nonce || prev.Hash).
func backPointerHash(prev Block) string {
	buf := canonicalJSON(prev.Tx)
	buf = append(buf, prev.Nonce...)
	buf = append(buf, prev.Hash...)
	return sha256Hex(buf)
}

// Block is an immutable, hash-linked ledger entry.
type Block struct {
	Tx          Transaction
	Nonce       string
	Hash        string
	BackPointer string // empty when this is the chain's first block
}

// New constructs a block for tx on top of prev (nil for the genesis case).
// It mines a nonce satisfying the acceptance predicate and, if prev is
// non-nil, stamps the back-pointer derived from prev.
func New(tx Transaction, prev *Block) Block {
	return newWithRand(tx, prev, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// newWithRand is the seedable variant used by tests so nonce mining is
// reproducible.
func newWithRand(tx Transaction, prev *Block, rng *rand.Rand) Block {
	nonce, hash := findNonce(tx, rng)
	b := Block{Tx: tx, Nonce: nonce, Hash: hash}
	if prev != nil {
		b.BackPointer = backPointerHash(*prev)
	}
	return b
}

// Reconstruct rebuilds a block from its wire/disk fields without re-mining a
// nonce, for use by recovery and persistence load.
func Reconstruct(tx Transaction, nonce, hash, backPointer string) Block {
	return Block{Tx: tx, Nonce: nonce, Hash: hash, BackPointer: backPointer}
}

// Verify reports whether b is valid against predecessor prev: its own
// content hash recomputes, and its back-pointer matches prev's derived hash
// (or both are absent at the chain head).
func (b Block) Verify(prev *Block) bool {
	if b.Hash != contentHash(b.Tx, b.Nonce) {
		return false
	}
	if prev != nil {
		return b.BackPointer == backPointerHash(*prev)
	}
	return b.BackPointer == ""
}

func (b Block) String() string {
	return fmt.Sprintf("Block(tx=%+v, nonce=%s, hash=%s, backPointer=%s)", b.Tx, b.Nonce, b.Hash, b.BackPointer)
}
