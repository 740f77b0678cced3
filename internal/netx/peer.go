package netx

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"arcadehub/internal/apperr"
)

var (
	// ErrPeerClosed is returned by sends on a closed peer.
	ErrPeerClosed = errors.New("netx: peer closed")
	// ErrSlowPeer is returned when a peer's send queue is full; the frame is
	// dropped.
	ErrSlowPeer = apperr.ResourceExhausted("send queue full")
)

const (
	defaultQueueSize    = 256
	defaultWriteTimeout = 5 * time.Second
)

// PeerOption customises a Peer.
type PeerOption func(*Peer)

// WithQueueSize sets the number of frames buffered ahead of the writer.
func WithQueueSize(n int) PeerOption {
	return func(p *Peer) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithWriteTimeout bounds each socket write.
func WithWriteTimeout(d time.Duration) PeerOption {
	return func(p *Peer) { p.writeTimeout = d }
}

// WithLogger attaches a logger for dropped frames and write failures.
func WithLogger(log zerolog.Logger) PeerOption {
	return func(p *Peer) { p.log = log }
}

// Peer is one framed connection. Reads happen on the caller's goroutine;
// writes are queued and performed by a dedicated writer goroutine so that
// a slow or dead connection never blocks the sender.
type Peer struct {
	conn   net.Conn
	framer Framer
	r      *bufio.Reader

	queueSize    int
	writeTimeout time.Duration
	log          zerolog.Logger

	mu     sync.Mutex
	closed bool
	out    chan []byte
	done   chan struct{}
}

// NewPeer wraps conn and starts its writer.
func NewPeer(conn net.Conn, framer Framer, opts ...PeerOption) *Peer {
	p := &Peer{
		conn:         conn,
		framer:       framer,
		r:            bufio.NewReader(conn),
		queueSize:    defaultQueueSize,
		writeTimeout: defaultWriteTimeout,
		log:          zerolog.Nop(),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.out = make(chan []byte, p.queueSize)
	go p.writePump()
	return p
}

// RemoteAddr is the remote address of the underlying connection.
func (p *Peer) RemoteAddr() string { return p.conn.RemoteAddr().String() }

// Framer returns the peer's framing.
func (p *Peer) Framer() Framer { return p.framer }

// ReadFrame blocks for the next frame. It must only be called from one
// goroutine.
func (p *Peer) ReadFrame() (Frame, error) {
	return p.framer.ReadFrame(p.r)
}

// ReadJSON reads the next frame and decodes it into v. Raw frames are a
// framing error here.
func (p *Peer) ReadJSON(v any) error {
	f, err := p.ReadFrame()
	if err != nil {
		return err
	}
	if f.Raw {
		return apperr.Framing("unexpected raw frame")
	}
	return Unmarshal(f.Payload, v)
}

// SetReadDeadline forwards to the connection.
func (p *Peer) SetReadDeadline(t time.Time) error { return p.conn.SetReadDeadline(t) }

// Send marshals v and queues it.
func (p *Peer) Send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return p.SendFrame(Frame{Payload: b})
}

// SendRaw queues a pass-through line unchanged.
func (p *Peer) SendRaw(line []byte) error {
	return p.SendFrame(RawFrame(line))
}

// SendFrame encodes f with the peer's framing and queues it without
// blocking.
func (p *Peer) SendFrame(f Frame) error {
	b, err := p.framer.EncodeFrame(f)
	if err != nil {
		return err
	}
	return p.enqueue(b)
}

func (p *Peer) enqueue(b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPeerClosed
	}
	select {
	case p.out <- b:
		return nil
	default:
		p.log.Debug().Str("peer", p.RemoteAddr()).Msg("send queue full, dropping frame")
		return ErrSlowPeer
	}
}

// Close stops accepting sends. Frames already queued are flushed before the
// connection is closed. Close is idempotent.
func (p *Peer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.out)
	return nil
}

// Done is closed once the writer has exited and the connection is closed.
func (p *Peer) Done() <-chan struct{} { return p.done }

func (p *Peer) writePump() {
	defer func() {
		_ = p.conn.Close()
		close(p.done)
	}()
	failed := false
	for b := range p.out {
		if failed {
			continue
		}
		if p.writeTimeout > 0 {
			_ = p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
		}
		if _, err := p.conn.Write(b); err != nil {
			p.log.Debug().Err(err).Str("peer", p.RemoteAddr()).Msg("write failed")
			failed = true
			// unblock the reader; it will observe the error and close us
			_ = p.conn.Close()
		}
	}
}
