package storage

import (
	"sync"

	"github.com/paxosledger/bankchain/internal/block"
)

// MemoryStore is a Backend that never touches disk, for fast deterministic
// tests that exercise persistence round-trips and recovery without the
// overhead of opening a real leveldb database per peer.
type MemoryStore struct {
	mu  sync.Mutex
	rec Record
	has bool
}

// NewMemoryStore returns an empty in-memory backend.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.has {
		return Record{}, false, nil
	}
	return copyRecord(m.rec), true, nil
}

func (m *MemoryStore) AppendDecision(rec Record) error {
	return m.store(rec)
}

func (m *MemoryStore) Overwrite(rec Record) error {
	return m.store(rec)
}

func (m *MemoryStore) store(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = copyRecord(rec)
	m.has = true
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func copyRecord(rec Record) Record {
	accounts := make(map[int]int64, len(rec.AccountTable))
	for k, v := range rec.AccountTable {
		accounts[k] = v
	}
	chain := make([]block.Block, len(rec.Chain))
	copy(chain, rec.Chain)
	return Record{AccountTable: accounts, PromisedBallot: rec.PromisedBallot, Chain: chain}
}
