package transport

import (
	"errors"
	"sync"
)

// Hub is an in-memory stand-in for the TCP transport, used by tests that
// want to drive the full five-peer protocol deterministically and without
// real sockets. Each registered peer gets its own inbox channel; Send on
// one peer's handle pushes directly onto the target's inbox.
type Hub struct {
	mu      sync.Mutex
	inboxes map[int]chan []byte
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{inboxes: make(map[int]chan []byte)}
}

// Register creates peerID's inbox and returns a handle bound to it.
func (h *Hub) Register(peerID int) *MemoryLink {
	h.mu.Lock()
	defer h.mu.Unlock()
	inbox := make(chan []byte, 256)
	h.inboxes[peerID] = inbox
	return &MemoryLink{hub: h, self: peerID, inbox: inbox, closed: make(chan struct{})}
}

var errNoSuchPeer = errors.New("transport: no such peer registered on hub")

// MemoryLink is one peer's handle onto a Hub; it implements the same
// Send/Accept shape as Sender/Listener so internal/peer can be built
// against either without branching on transport kind.
type MemoryLink struct {
	hub   *Hub
	self  int
	inbox chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// Send pushes payload onto targetID's inbox. A peer with no registered
// inbox (e.g. one that was never started, or was torn down) yields an
// error that the caller logs and swallows, exactly like a failed dial.
func (l *MemoryLink) Send(targetID int, payload []byte) error {
	l.hub.mu.Lock()
	target, ok := l.hub.inboxes[targetID]
	l.hub.mu.Unlock()
	if !ok {
		return errNoSuchPeer
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	select {
	case target <- cp:
		return nil
	default:
		return errors.New("transport: target inbox full")
	}
}

// Accept blocks until a message arrives or the link is closed, mirroring
// Listener.Accept's timeout-and-reloop shape with ErrTimeout on a closed
// link instead of a real deadline.
func (l *MemoryLink) Accept() ([]byte, error) {
	select {
	case payload := <-l.inbox:
		return payload, nil
	case <-l.closed:
		return nil, ErrTimeout
	}
}

// Close unblocks any pending Accept call.
func (l *MemoryLink) Close() error {
	l.closeOnce.Do(func() {
		close(l.closed)
	})
	return nil
}
