// Package peer wires the block, ledger, paxos, storage, recovery, and
// transport packages together into one replica: the dispatcher that owns
// the single mutex, the FIFO worker pool, and the operator-facing API
// (propose a transfer, fail, fix, inspect chain/balances, debug-ping).
package peer

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/paxosledger/bankchain/internal/block"
	"github.com/paxosledger/bankchain/internal/ledger"
	"github.com/paxosledger/bankchain/internal/paxos"
	"github.com/paxosledger/bankchain/internal/recovery"
	"github.com/paxosledger/bankchain/internal/storage"
)

// Outbound sends an encoded wire frame to targetID. Both the real TCP
// sender and the in-memory test hub implement it.
type Outbound interface {
	Send(targetID int, payload []byte) error
}

// Inbound accepts one frame at a time; Accept is expected to time out and
// be re-called in a loop so shutdown stays cooperative.
type Inbound interface {
	Accept() ([]byte, error)
	Close() error
}

type queuedFrame struct {
	payload []byte
}

// Peer is one replica participating in the five-way group.
type Peer struct {
	id        int
	groupSize int

	engine     *paxos.Engine
	chain      *block.Chain
	balances   *ledger.Balances
	learner    *paxos.Learner
	store      storage.Backend
	recSession *recovery.Session

	out Outbound
	in  Inbound

	log          *logrus.Entry
	messageDelay time.Duration
	workers      int

	queue      chan queuedFrame
	recoveryCh chan queuedFrame
	stopCh     chan struct{}

	mu   sync.Mutex
	dead bool
}

// Config bundles the knobs a caller (cmd/peer or a test harness) chooses.
type Config struct {
	ID           int
	GroupSize    int
	Out          Outbound
	In           Inbound
	Store        storage.Backend
	Logger       *logrus.Logger
	Workers      int
	MessageDelay time.Duration
}

// New builds a peer and restores any durable state found in cfg.Store.
// If nothing was persisted, balances start at ledger.InitialFunds each and
// the chain starts empty, matching a fresh deployment.
func New(cfg Config) (*Peer, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}

	p := &Peer{
		id:           cfg.ID,
		groupSize:    cfg.GroupSize,
		engine:       paxos.NewEngine(cfg.ID, cfg.GroupSize),
		chain:        block.NewChain(),
		balances:     ledger.NewBalances(),
		learner:      paxos.NewLearner(),
		store:        cfg.Store,
		recSession:   recovery.NewSession(),
		out:          cfg.Out,
		in:           cfg.In,
		log:          logger.WithField("peer", cfg.ID),
		messageDelay: cfg.MessageDelay,
		workers:      cfg.Workers,
		queue:        make(chan queuedFrame, 256),
		recoveryCh:   make(chan queuedFrame, 16),
		stopCh:       make(chan struct{}),
	}

	rec, ok, err := cfg.Store.Load()
	if err != nil {
		return nil, fmt.Errorf("peer %d: load durable state: %w", cfg.ID, err)
	}
	if ok {
		p.chain.Replace(rec.Chain)
		p.balances.Replace(rec.AccountTable)
		p.engine.RestorePromisedBallot(rec.PromisedBallot)
		p.log.WithField("depth", p.chain.Depth()).Info("restored durable state")
	}
	return p, nil
}

// Run starts the accept loop and the worker pool. It blocks until Stop is
// called.
func (p *Peer) Run() {
	go p.recoveryLoop()
	for i := 0; i < p.workers; i++ {
		go p.workerLoop()
	}
	p.acceptLoop()
}

// Stop closes the listener, which unblocks the accept loop, and signals
// every worker to exit; frames still waiting in the queue may be left
// unprocessed.
func (p *Peer) Stop() {
	close(p.stopCh)
	_ = p.in.Close()
}

func (p *Peer) acceptLoop() {
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}
		payload, err := p.in.Accept()
		if err != nil {
			continue // timeout or closed listener; re-check stopCh
		}
		msg, err := paxos.Decode(payload)
		if err != nil {
			p.log.WithError(err).Warn("dropping malformed frame")
			continue
		}
		if msg.Type() == paxos.MsgRecoveryReply {
			select {
			case p.recoveryCh <- queuedFrame{payload: payload}:
			case <-p.stopCh:
				return
			}
			continue
		}
		select {
		case p.queue <- queuedFrame{payload: payload}:
		case <-p.stopCh:
			return
		}
	}
}

// recoveryLoop processes Recovery Reply frames on its own goroutine so a
// regular worker blocked waiting on a recovery round can never starve the
// reply that would unblock it.
func (p *Peer) recoveryLoop() {
	for {
		select {
		case <-p.stopCh:
			return
		case f := <-p.recoveryCh:
			msg, err := paxos.Decode(f.payload)
			if err != nil {
				continue
			}
			if rr, ok := msg.(paxos.RecoveryReply); ok {
				p.handleRecoveryReply(rr)
			}
		}
	}
}

func (p *Peer) workerLoop() {
	for {
		select {
		case <-p.stopCh:
			return
		case f := <-p.queue:
			if p.messageDelay > 0 {
				time.Sleep(p.messageDelay)
			}
			msg, err := paxos.Decode(f.payload)
			if err != nil {
				continue
			}
			p.dispatch(msg)
		}
	}
}

// isDead reports whether the peer is currently marked dead.
func (p *Peer) isDead() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dead
}

// dispatch routes one decoded message to its handler. A dead peer drops
// every inbound message without running a handler.
func (p *Peer) dispatch(msg paxos.Message) {
	if p.isDead() {
		return
	}

	switch m := msg.(type) {
	case paxos.Prepare:
		p.handlePrepare(m)
	case paxos.Promise:
		p.handlePromise(m)
	case paxos.Accept:
		p.handleAccept(m)
	case paxos.Accepted:
		p.handleAccepted(m)
	case paxos.Decision:
		p.handleDecision(m)
	case paxos.Recovery:
		p.handleRecoveryRequest(m)
	case paxos.Debug:
		p.handleDebug(m)
	case paxos.DebugReply:
		p.log.WithField("from", m.From).WithField("text", m.Text).Debug("debug reply")
	default:
		p.log.WithField("type", msg.Type()).Warn("unhandled message type")
	}
}

func (p *Peer) otherPeers() []int {
	out := make([]int, 0, p.groupSize-1)
	for id := 1; id <= p.groupSize; id++ {
		if id != p.id {
			out = append(out, id)
		}
	}
	return out
}

// send encodes and sends msg to targetID. A failed send is logged and
// swallowed: the protocol tolerates arbitrary message loss.
func (p *Peer) send(targetID int, msg paxos.Message) {
	payload, err := paxos.Encode(msg)
	if err != nil {
		p.log.WithError(err).Error("encode failed")
		return
	}
	if err := p.out.Send(targetID, payload); err != nil {
		p.log.WithError(err).WithField("target", targetID).Debug("send failed")
	}
}

func (p *Peer) broadcast(msg paxos.Message) {
	for _, id := range p.otherPeers() {
		p.send(id, msg)
	}
}
