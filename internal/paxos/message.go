package paxos

import (
	"encoding/json"
	"fmt"

	"github.com/paxosledger/bankchain/internal/block"
)

// MsgType discriminates the wire message catalog.
type MsgType string

const (
	MsgPrepare       MsgType = "Prepare"
	MsgPromise       MsgType = "Promise"
	MsgAccept        MsgType = "Accept"
	MsgAccepted      MsgType = "Accepted"
	MsgDecision      MsgType = "Decision"
	MsgRecovery      MsgType = "Recovery"
	MsgRecoveryReply MsgType = "Recovery Reply"
	MsgDebug         MsgType = "DEBUG"
	MsgDebugReply    MsgType = "DEBUG REPLY"
)

// Message is implemented by every concrete message type below: an
// explicit sum type keyed on Type(), not an untyped map, so the
// dispatcher can switch on concrete Go types instead of re-parsing a
// dictionary at every handler.
type Message interface {
	Type() MsgType
	Sender() int
}

// Prepare is sent by a proposer to all acceptors to open a ballot.
type Prepare struct {
	From   int
	Ballot Ballot
	Depth  int
}

func (m Prepare) Type() MsgType { return MsgPrepare }
func (m Prepare) Sender() int   { return m.From }

// Promise is an acceptor's reply to Prepare. AcceptedBallot/AcceptedBlock
// are nil when the acceptor has accepted nothing yet for this slot.
type Promise struct {
	From           int
	Ballot         Ballot
	Depth          int
	AcceptedBallot *Ballot
	AcceptedBlock  *block.Block
}

func (m Promise) Type() MsgType { return MsgPromise }
func (m Promise) Sender() int   { return m.From }

// Accept asks acceptors to accept a specific block value at Ballot/Depth.
type Accept struct {
	From   int
	Ballot Ballot
	Depth  int
	Block  block.Block
}

func (m Accept) Type() MsgType { return MsgAccept }
func (m Accept) Sender() int   { return m.From }

// Accepted is an acceptor's affirmative reply to Accept.
type Accepted struct {
	From   int
	Ballot Ballot
}

func (m Accepted) Type() MsgType { return MsgAccepted }
func (m Accepted) Sender() int   { return m.From }

// Decision is the learner broadcast announcing a chosen block for a slot.
type Decision struct {
	From  int
	Depth int
	Block block.Block
}

func (m Decision) Type() MsgType { return MsgDecision }
func (m Decision) Sender() int   { return m.From }

// Recovery asks a peer for a catch-up snapshot.
type Recovery struct {
	From int
}

func (m Recovery) Type() MsgType { return MsgRecovery }
func (m Recovery) Sender() int   { return m.From }

// RecoveryReply carries a full state snapshot for catch-up.
type RecoveryReply struct {
	From           int
	Chain          []block.Block
	AccountTable   map[int]int64
	PromisedBallot Ballot
}

func (m RecoveryReply) Type() MsgType { return MsgRecoveryReply }
func (m RecoveryReply) Sender() int   { return m.From }

// Debug/DebugReply are the RTT-measurement echo pair.
type Debug struct {
	From int
	Text string
}

func (m Debug) Type() MsgType { return MsgDebug }
func (m Debug) Sender() int   { return m.From }

type DebugReply struct {
	From int
	Text string
}

func (m DebugReply) Type() MsgType { return MsgDebugReply }
func (m DebugReply) Sender() int   { return m.From }

// wireBlock is the on-wire shape of one entry in a Recovery Reply's
// blockchain array: transaction, nonce, content hash, and back-pointer, no
// local bookkeeping. Accept and Decision carry the same four values as flat
// top-level fields instead (see wireMessage).
type wireBlock struct {
	Transaction block.Transaction `json:"transaction"`
	Nonce       string            `json:"nonce"`
	HashValue   string            `json:"hash_value"`
	HashPointer string            `json:"hash_pointer"`
}

func toWireBlock(b block.Block) wireBlock {
	return wireBlock{Transaction: b.Tx, Nonce: b.Nonce, HashValue: b.Hash, HashPointer: b.BackPointer}
}

func (w wireBlock) toBlock() block.Block {
	return block.Reconstruct(w.Transaction, w.Nonce, w.HashValue, w.HashPointer)
}

// wireMessage is the single flat JSON shape every message marshals to and
// unmarshals from, with omitempty fields covering the union of every
// message's payload. Decode parses it once at the dispatcher boundary and
// converts immediately to a concrete Message, so nothing downstream ever
// carries an untyped dictionary past the wire boundary.
type wireMessage struct {
	Type   string  `json:"type"`
	From   int     `json:"from"`
	Ballot *Ballot `json:"ballot,omitempty"`
	Depth  *int    `json:"depth,omitempty"`

	AcceptedBallot      *Ballot            `json:"accepted_ballot,omitempty"`
	AcceptedTx          *block.Transaction `json:"accepted_tx,omitempty"`
	AcceptedNonce       *string            `json:"accepted_nonce,omitempty"`
	AcceptedHash        *string            `json:"accepted_hash,omitempty"`
	AcceptedHashPointer *string            `json:"accepted_hash_pointer,omitempty"`

	Tx          *block.Transaction `json:"tx,omitempty"`
	Nonce       *string            `json:"nonce,omitempty"`
	HashValue   *string            `json:"hash_value,omitempty"`
	HashPointer *string            `json:"hash_pointer,omitempty"`

	Blockchain     []wireBlock   `json:"blockchain,omitempty"`
	AccountTable   map[int]int64 `json:"account_table,omitempty"`
	PromisedBallot *Ballot       `json:"promised_ballot,omitempty"`

	Text *string `json:"text,omitempty"`
}

func strPtr(s string) *string { return &s }

// Encode serializes a Message to its JSON wire form.
func Encode(m Message) ([]byte, error) {
	w := wireMessage{Type: string(m.Type()), From: m.Sender()}
	switch v := m.(type) {
	case Prepare:
		w.Ballot = &v.Ballot
		depth := v.Depth
		w.Depth = &depth
	case Promise:
		w.Ballot = &v.Ballot
		depth := v.Depth
		w.Depth = &depth
		if v.AcceptedBallot != nil {
			w.AcceptedBallot = v.AcceptedBallot
			if v.AcceptedBlock != nil {
				w.AcceptedTx = &v.AcceptedBlock.Tx
				w.AcceptedNonce = strPtr(v.AcceptedBlock.Nonce)
				w.AcceptedHash = strPtr(v.AcceptedBlock.Hash)
				w.AcceptedHashPointer = strPtr(v.AcceptedBlock.BackPointer)
			}
		}
	case Accept:
		w.Ballot = &v.Ballot
		depth := v.Depth
		w.Depth = &depth
		w.Tx = &v.Block.Tx
		w.Nonce = strPtr(v.Block.Nonce)
		w.HashValue = strPtr(v.Block.Hash)
		w.HashPointer = strPtr(v.Block.BackPointer)
	case Accepted:
		w.Ballot = &v.Ballot
	case Decision:
		depth := v.Depth
		w.Depth = &depth
		w.Tx = &v.Block.Tx
		w.Nonce = strPtr(v.Block.Nonce)
		w.HashValue = strPtr(v.Block.Hash)
		w.HashPointer = strPtr(v.Block.BackPointer)
	case Recovery:
		// from only
	case RecoveryReply:
		w.Blockchain = make([]wireBlock, len(v.Chain))
		for i, b := range v.Chain {
			w.Blockchain[i] = toWireBlock(b)
		}
		w.AccountTable = v.AccountTable
		w.PromisedBallot = &v.PromisedBallot
	case Debug:
		w.Text = strPtr(v.Text)
	case DebugReply:
		w.Text = strPtr(v.Text)
	default:
		return nil, fmt.Errorf("paxos: unknown message type %T", m)
	}
	return json.Marshal(w)
}

// Decode parses a JSON wire frame back into a concrete Message.
func Decode(data []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("paxos: decode: %w", err)
	}
	switch MsgType(w.Type) {
	case MsgPrepare:
		return Prepare{From: w.From, Ballot: derefBallot(w.Ballot), Depth: derefInt(w.Depth)}, nil
	case MsgPromise:
		p := Promise{From: w.From, Ballot: derefBallot(w.Ballot), Depth: derefInt(w.Depth)}
		if w.AcceptedBallot != nil {
			p.AcceptedBallot = w.AcceptedBallot
			if w.AcceptedNonce != nil && w.AcceptedHash != nil {
				tx := block.Transaction{}
				if w.AcceptedTx != nil {
					tx = *w.AcceptedTx
				}
				pointer := ""
				if w.AcceptedHashPointer != nil {
					pointer = *w.AcceptedHashPointer
				}
				b := block.Reconstruct(tx, *w.AcceptedNonce, *w.AcceptedHash, pointer)
				p.AcceptedBlock = &b
			}
		}
		return p, nil
	case MsgAccept:
		tx := block.Transaction{}
		if w.Tx != nil {
			tx = *w.Tx
		}
		b := block.Reconstruct(tx, derefStr(w.Nonce), derefStr(w.HashValue), derefStr(w.HashPointer))
		return Accept{From: w.From, Ballot: derefBallot(w.Ballot), Depth: derefInt(w.Depth), Block: b}, nil
	case MsgAccepted:
		return Accepted{From: w.From, Ballot: derefBallot(w.Ballot)}, nil
	case MsgDecision:
		tx := block.Transaction{}
		if w.Tx != nil {
			tx = *w.Tx
		}
		b := block.Reconstruct(tx, derefStr(w.Nonce), derefStr(w.HashValue), derefStr(w.HashPointer))
		return Decision{From: w.From, Depth: derefInt(w.Depth), Block: b}, nil
	case MsgRecovery:
		return Recovery{From: w.From}, nil
	case MsgRecoveryReply:
		chain := make([]block.Block, len(w.Blockchain))
		for i, wb := range w.Blockchain {
			chain[i] = wb.toBlock()
		}
		return RecoveryReply{
			From:           w.From,
			Chain:          chain,
			AccountTable:   w.AccountTable,
			PromisedBallot: derefBallot(w.PromisedBallot),
		}, nil
	case MsgDebug:
		return Debug{From: w.From, Text: derefStr(w.Text)}, nil
	case MsgDebugReply:
		return DebugReply{From: w.From, Text: derefStr(w.Text)}, nil
	default:
		return nil, fmt.Errorf("paxos: unknown wire type %q", w.Type)
	}
}

func derefBallot(b *Ballot) Ballot {
	if b == nil {
		return Ballot{}
	}
	return *b
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
