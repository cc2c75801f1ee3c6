// Package storage is a peer's durable state sink: the account table, the
// current slot's promised ballot, and the full decided chain, persisted so
// a crashed peer can reload exactly what it knew before crashing.
//
// The durable record is backed by an embedded key/value engine,
// github.com/syndtr/goleveldb, wrapped the same way tolchain wraps it for
// its own storage layer. Both durable operations — append-decision and
// overwrite — are implemented as one write of all three keys inside a
// single leveldb batch, which gives atomicity across the keys for free
// and replaces the write-to-temp-then-rename dance a plain-file
// implementation would need.
package storage

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/paxosledger/bankchain/internal/block"
	"github.com/paxosledger/bankchain/internal/paxos"
)

var (
	keyAccountTable   = []byte("account_table")
	keyPromisedBallot = []byte("promised_ballot")
	keyChain          = []byte("chain")
)

// BlockRecord is a block plus a tentative/decided flag. Only Decided
// blocks are ever loaded back into a chain; the flag is otherwise unused
// by the core protocol, which only ever writes already-decided blocks to
// the chain key in the first place.
type BlockRecord struct {
	Transaction block.Transaction `json:"transaction"`
	Nonce       string            `json:"nonce"`
	HashValue   string            `json:"hash_value"`
	HashPointer string            `json:"hash_pointer"`
	Decided     bool              `json:"decided"`
}

func blockToRecord(b block.Block) BlockRecord {
	return BlockRecord{
		Transaction: b.Tx,
		Nonce:       b.Nonce,
		HashValue:   b.Hash,
		HashPointer: b.BackPointer,
		Decided:     true,
	}
}

func (r BlockRecord) toBlock() block.Block {
	return block.Reconstruct(r.Transaction, r.Nonce, r.HashValue, r.HashPointer)
}

// Record is the full durable snapshot for one peer.
type Record struct {
	AccountTable   map[int]int64
	PromisedBallot paxos.Ballot
	Chain          []block.Block
}

// Backend is what internal/peer depends on, so tests can swap in an
// in-memory implementation (see memory.go) instead of touching disk.
type Backend interface {
	Load() (Record, bool, error)
	AppendDecision(Record) error
	Overwrite(Record) error
	Close() error
}

// Store wraps a goleveldb database holding one peer's durable record.
type Store struct {
	db *leveldb.DB
}

// Open opens (or creates) the leveldb database rooted at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "storage: open %q", path)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads the persisted record. If no record has ever been written
// (fresh start), it returns a zero-value Record with ok=false so the
// caller can seed defaults.
func (s *Store) Load() (rec Record, ok bool, err error) {
	accountsRaw, err := s.db.Get(keyAccountTable, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, errors.Wrap(err, "storage: load account_table")
	}
	var accounts map[int]int64
	if err := json.Unmarshal(accountsRaw, &accounts); err != nil {
		return Record{}, false, errors.Wrap(err, "storage: decode account_table")
	}

	ballotRaw, err := s.db.Get(keyPromisedBallot, nil)
	if err != nil && !errors.Is(err, leveldb.ErrNotFound) {
		return Record{}, false, errors.Wrap(err, "storage: load promised_ballot")
	}
	var ballot paxos.Ballot
	if ballotRaw != nil {
		if err := json.Unmarshal(ballotRaw, &ballot); err != nil {
			return Record{}, false, errors.Wrap(err, "storage: decode promised_ballot")
		}
	}

	chainRaw, err := s.db.Get(keyChain, nil)
	if err != nil && !errors.Is(err, leveldb.ErrNotFound) {
		return Record{}, false, errors.Wrap(err, "storage: load chain")
	}
	var records []BlockRecord
	if chainRaw != nil {
		if err := json.Unmarshal(chainRaw, &records); err != nil {
			return Record{}, false, errors.Wrap(err, "storage: decode chain")
		}
	}

	chain := make([]block.Block, 0, len(records))
	for _, r := range records {
		if !r.Decided {
			continue
		}
		chain = append(chain, r.toBlock())
	}
	if !block.VerifySequence(chain) {
		return Record{}, false, errors.New("storage: persisted chain failed verification")
	}

	return Record{AccountTable: accounts, PromisedBallot: ballot, Chain: chain}, true, nil
}

// write is the shared implementation behind AppendDecision and Overwrite:
// a single atomic batch covering all three keys.
func (s *Store) write(rec Record) error {
	accountsRaw, err := json.Marshal(rec.AccountTable)
	if err != nil {
		return errors.Wrap(err, "storage: encode account_table")
	}
	ballotRaw, err := json.Marshal(rec.PromisedBallot)
	if err != nil {
		return errors.Wrap(err, "storage: encode promised_ballot")
	}
	records := make([]BlockRecord, len(rec.Chain))
	for i, b := range rec.Chain {
		records[i] = blockToRecord(b)
	}
	chainRaw, err := json.Marshal(records)
	if err != nil {
		return errors.Wrap(err, "storage: encode chain")
	}

	batch := new(leveldb.Batch)
	batch.Put(keyAccountTable, accountsRaw)
	batch.Put(keyPromisedBallot, ballotRaw)
	batch.Put(keyChain, chainRaw)
	if err := s.db.Write(batch, nil); err != nil {
		return errors.Wrap(err, "storage: write batch")
	}
	return nil
}

// AppendDecision persists a newly-decided block: the extended chain, the
// updated account table, and the (now-reset) promised ballot for the next
// slot, all in one atomic write.
func (s *Store) AppendDecision(rec Record) error {
	return s.write(rec)
}

// Overwrite replaces the entire durable record, as used by recovery once a
// longer, verified chain has been adopted.
func (s *Store) Overwrite(rec Record) error {
	return s.write(rec)
}
