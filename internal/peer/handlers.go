package peer

import (
	"github.com/paxosledger/bankchain/internal/block"
	"github.com/paxosledger/bankchain/internal/paxos"
	"github.com/paxosledger/bankchain/internal/recovery"
	"github.com/paxosledger/bankchain/internal/storage"
)

func (p *Peer) currentRecord() storage.Record {
	return storage.Record{
		AccountTable:   p.balances.Snapshot(),
		PromisedBallot: p.engine.CurrentPromisedBallot(),
		Chain:          p.chain.All(),
	}
}

func (p *Peer) persistAppend() {
	if err := p.store.AppendDecision(p.currentRecord()); err != nil {
		p.log.WithError(err).Error("persist append-decision failed")
	}
}

func (p *Peer) persistOverwrite() {
	if err := p.store.Overwrite(p.currentRecord()); err != nil {
		p.log.WithError(err).Error("persist overwrite failed")
	}
}

// applyDecision appends b to the chain, mutates balances, resets per-slot
// Paxos state, records the slot in the learner index, and persists —
// the single path every Decision, whether locally originated or learned
// from another peer, funnels through.
func (p *Peer) applyDecision(depth int, b block.Block) {
	p.chain.Append(b)
	p.balances.Apply(b.Tx)
	p.engine.ResetSlot()
	p.learner.Record(depth, b)
	p.persistAppend()
	p.log.WithField("depth", depth).WithField("tx", b.Tx).Info("applied decision")
}

func (p *Peer) handlePrepare(m paxos.Prepare) {
	p.mu.Lock()
	defer p.mu.Unlock()
	currentDepth := p.chain.Depth() + 1
	outcome, reply := p.engine.HandlePrepare(m, currentDepth)
	if outcome != paxos.PrepareOK {
		return
	}
	p.send(m.From, reply)
}

func (p *Peer) handlePromise(m paxos.Promise) {
	p.mu.Lock()
	defer p.mu.Unlock()
	value, majority := p.engine.HandlePromise(m)
	if !majority {
		return
	}
	ballot, depth, _, ok := p.engine.ActiveRound()
	if !ok {
		return
	}
	p.broadcast(paxos.Accept{From: p.id, Ballot: ballot, Depth: depth, Block: value})
}

func (p *Peer) handleAccept(m paxos.Accept) {
	p.mu.Lock()
	currentDepth := p.chain.Depth() + 1
	if m.Depth > currentDepth {
		p.mu.Unlock()
		p.catchUpThenRetry(m.From, func() { p.handleAccept(m) })
		return
	}
	tail := p.chain.Tail()
	outcome, reply := p.engine.HandleAccept(m, currentDepth, tail)
	p.mu.Unlock()

	switch outcome {
	case paxos.AcceptOK:
		p.send(m.From, reply)
	case paxos.AcceptRejectedInvalidBlock:
		p.log.WithField("from", m.From).Warn("rejected block failing verification")
	}
}

func (p *Peer) handleAccepted(m paxos.Accepted) {
	p.mu.Lock()
	defer p.mu.Unlock()
	majority, shouldDecide := p.engine.HandleAccepted(m)
	if !majority || !shouldDecide {
		return
	}
	_, depth, value, ok := p.engine.ActiveRound()
	if !ok {
		return
	}
	p.broadcast(paxos.Decision{From: p.id, Depth: depth, Block: value})
	p.applyDecision(depth, value)
}

func (p *Peer) handleDecision(m paxos.Decision) {
	p.mu.Lock()
	currentDepth := p.chain.Depth() + 1
	if m.Depth < currentDepth {
		p.mu.Unlock()
		return
	}
	if m.Depth > currentDepth {
		p.mu.Unlock()
		p.catchUpThenRetry(m.From, func() { p.handleDecision(m) })
		return
	}
	tail := p.chain.Tail()
	if !m.Block.Verify(tail) {
		p.mu.Unlock()
		p.log.WithField("depth", m.Depth).Warn("rejected decision failing verification")
		return
	}
	p.applyDecision(m.Depth, m.Block)
	p.mu.Unlock()
}

// catchUpThenRetry implements the depth-skew branch of recovery: point-send
// a Recovery request to hintPeer, block (without holding the peer mutex)
// until a Recovery Reply has been merged, then re-run the handler that
// discovered the skew. Recovery Reply is processed on its own goroutine
// (see recoveryLoop), so this wait can never deadlock against the worker
// that would otherwise need to service it. If the peer was marked dead
// while parked here, the retry is dropped rather than run.
func (p *Peer) catchUpThenRetry(hintPeer int, retry func()) {
	alreadyActive, done := p.recSession.Begin()
	if !alreadyActive {
		p.send(hintPeer, paxos.Recovery{From: p.id})
	}
	<-done
	if p.isDead() {
		return
	}
	retry()
}

func (p *Peer) handleRecoveryRequest(m paxos.Recovery) {
	p.mu.Lock()
	reply := paxos.RecoveryReply{
		From:           p.id,
		Chain:          p.chain.All(),
		AccountTable:   p.balances.Snapshot(),
		PromisedBallot: p.engine.CurrentPromisedBallot(),
	}
	p.mu.Unlock()
	p.send(m.From, reply)
}

func (p *Peer) handleRecoveryReply(m paxos.RecoveryReply) {
	p.mu.Lock()
	if p.dead {
		p.mu.Unlock()
		p.recSession.Complete()
		return
	}
	localChain := p.chain.All()
	outcome, newChain, newBalances := recovery.Merge(localChain, p.id, recovery.Snapshot{
		From:           m.From,
		Chain:          m.Chain,
		AccountTable:   m.AccountTable,
		PromisedBallot: m.PromisedBallot,
	})
	if outcome == recovery.Adopted {
		p.chain.Replace(newChain)
		p.balances.Replace(newBalances)
		// ResetSlot zeroes the whole acceptor state including
		// PromisedBallot, so the local ballot is saved first and merged
		// back in together with the snapshot's ballot afterwards.
		localBallot := p.engine.CurrentPromisedBallot()
		p.engine.ResetSlot()
		p.engine.MergePromisedBallot(localBallot)
		p.engine.MergePromisedBallot(m.PromisedBallot)
		p.persistOverwrite()
		p.log.WithField("depth", len(newChain)).WithField("from", m.From).Info("recovered state")
	}
	p.mu.Unlock()
	p.recSession.Complete()
}

func (p *Peer) handleDebug(m paxos.Debug) {
	p.send(m.From, paxos.DebugReply{From: p.id, Text: m.Text})
}
