package paxos

import (
	"sync"

	"github.com/paxosledger/bankchain/internal/block"
)

// Learner is the read-side index of decided slots. The authoritative copy
// of a decided block lives on the chain; Learner exists so a peer can
// answer "what was decided at depth d" in O(1) and can recognize a repeat
// Decision for an already-known slot without touching the chain lock.
type Learner struct {
	mu      sync.RWMutex
	decided map[int]block.Block
}

// NewLearner returns an empty learner.
func NewLearner() *Learner {
	return &Learner{decided: make(map[int]block.Block)}
}

// Record notes that depth was decided as b.
func (l *Learner) Record(depth int, b block.Block) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.decided[depth] = b
}

// Get returns the block decided at depth, if any.
func (l *Learner) Get(depth int) (block.Block, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.decided[depth]
	return b, ok
}
