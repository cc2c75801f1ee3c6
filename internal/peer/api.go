package peer

import (
	"errors"

	"github.com/paxosledger/bankchain/internal/block"
	"github.com/paxosledger/bankchain/internal/paxos"
)

var errDeadPeer = errors.New("peer: cannot propose while marked dead")

// Propose starts a new round proposing a transfer from -> to of amount.
// It runs the advisory admission check, builds a candidate block on top
// of the current tail, and broadcasts Prepare. It does not wait for the
// round to conclude; the caller observes the outcome via PrintChain /
// PrintBalance once consensus completes asynchronously.
func (p *Peer) Propose(from, to int, amount int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dead {
		return errDeadPeer
	}
	if err := p.balances.ValidateTransfer(from, to, amount); err != nil {
		return err
	}

	tx := block.Transaction{From: from, To: to, Amount: amount}
	tail := p.chain.Tail()
	proposed := block.New(tx, tail)
	depth := p.chain.Depth() + 1

	ballot := p.engine.BeginRound(depth, proposed)
	p.broadcast(paxos.Prepare{From: p.id, Ballot: ballot, Depth: depth})
	return nil
}

// Fail marks the peer dead: inbound messages stop being processed and no
// further sends are attempted, modeling a crashed process.
func (p *Peer) Fail() {
	p.mu.Lock()
	p.dead = true
	p.mu.Unlock()
	p.log.Info("marked dead")
}

// Fix clears the dead flag and broadcasts a Recovery request to every
// other peer so this replica catches up on anything it missed while down.
func (p *Peer) Fix() {
	p.mu.Lock()
	p.dead = false
	p.mu.Unlock()
	p.log.Info("marked alive, requesting recovery")

	alreadyActive, done := p.recSession.Begin()
	if !alreadyActive {
		p.broadcast(paxos.Recovery{From: p.id})
	}
	go func() {
		<-done
		p.log.Info("recovery complete")
	}()
}

// PrintChain returns a snapshot of the local chain.
func (p *Peer) PrintChain() []block.Block {
	return p.chain.All()
}

// PrintBalance returns a snapshot of the local balance table.
func (p *Peer) PrintBalance() map[int]int64 {
	return p.balances.Snapshot()
}

// DebugMessage sends a DEBUG echo to targetID, used to measure round-trip
// time between peers.
func (p *Peer) DebugMessage(targetID int, text string) {
	if p.isDead() {
		return
	}
	p.send(targetID, paxos.Debug{From: p.id, Text: text})
}

// ID returns this peer's numeric id.
func (p *Peer) ID() int { return p.id }

// PromisedBallot returns the highest ballot this peer has promised for the
// slot it is currently deciding.
func (p *Peer) PromisedBallot() paxos.Ballot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.CurrentPromisedBallot()
}
