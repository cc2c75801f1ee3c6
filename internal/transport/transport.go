// Package transport is the point-to-point, length-framed byte transport
// peers use to exchange messages. It knows nothing about Paxos message
// semantics — it moves opaque JSON payloads between peers over
// short-lived TCP connections, one frame per connection: dial, write,
// close.
package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
)

// Addr derives peer id's listen address. Any fixed bijection between peer
// id and port works; this one maps id to port id*1234.
func Addr(host string, id int) string {
	return fmt.Sprintf("%s:%d", host, id*1234)
}

const maxFrameSize = 16 << 20 // guard against a corrupt/hostile length prefix

// WriteFrame writes payload as a 4-byte big-endian length prefix followed by
// the payload bytes.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed frame from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameSize {
		return nil, fmt.Errorf("transport: frame of %d bytes exceeds limit", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Sender dials peers and writes one frame per call. Dials retry with
// exponential backoff before the send is given up on; callers are
// expected to log a failed send and swallow it, never treat it as fatal —
// the protocol tolerates any subset of messages being lost.
type Sender struct {
	Host        string
	DialTimeout time.Duration
	MaxAttempts int
}

// NewSender returns a Sender with a 50ms/2s/factor-2 backoff schedule and
// a 3-attempt ceiling.
func NewSender(host string) *Sender {
	return &Sender{Host: host, DialTimeout: 500 * time.Millisecond, MaxAttempts: 3}
}

// Send dials targetID, writes one frame containing payload, and closes the
// connection. A failed dial is retried until MaxAttempts dials are spent;
// a write or close error is returned at once without a retry. Callers are
// expected to log and drop any error, not propagate it as fatal.
func (s *Sender) Send(targetID int, payload []byte) error {
	b := &backoff.Backoff{Min: 50 * time.Millisecond, Max: 2 * time.Second, Factor: 2}
	addr := Addr(s.Host, targetID)

	var lastErr error
	for attempt := 0; attempt < s.MaxAttempts; attempt++ {
		conn, err := net.DialTimeout("tcp", addr, s.DialTimeout)
		if err != nil {
			lastErr = err
			time.Sleep(b.Duration())
			continue
		}
		err = WriteFrame(conn, payload)
		closeErr := conn.Close()
		if err != nil {
			return errors.Wrapf(err, "transport: write to peer %d", targetID)
		}
		if closeErr != nil {
			return errors.Wrapf(closeErr, "transport: close connection to peer %d", targetID)
		}
		return nil
	}
	return errors.Wrapf(lastErr, "transport: could not reach peer %d at %s", targetID, addr)
}

// ErrTimeout is returned by Listener.Accept when its accept deadline
// elapses with no connection, so a caller can re-check a stop signal
// without blocking forever.
var ErrTimeout = fmt.Errorf("transport: accept timeout")

// Listener accepts inbound frames on one peer's derived port.
type Listener struct {
	ln net.Listener
}

// Listen binds selfID's derived address.
func Listen(host string, selfID int) (*Listener, error) {
	ln, err := net.Listen("tcp", Addr(host, selfID))
	if err != nil {
		return nil, errors.Wrapf(err, "transport: listen for peer %d", selfID)
	}
	return &Listener{ln: ln}, nil
}

// Accept blocks for up to 1 second waiting for one inbound connection, reads
// exactly one frame from it, and closes it. It returns ErrTimeout if no
// connection arrived in time, so the caller's loop can re-check its stop
// channel cooperatively.
func (l *Listener) Accept() ([]byte, error) {
	type deadliner interface {
		SetDeadline(time.Time) error
	}
	if tl, ok := l.ln.(deadliner); ok {
		_ = tl.SetDeadline(time.Now().Add(1 * time.Second))
	}
	conn, err := l.ln.Accept()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, ErrTimeout
		}
		return nil, err
	}
	defer conn.Close()
	return ReadFrame(conn)
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.ln.Close()
}
