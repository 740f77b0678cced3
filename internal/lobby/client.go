package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"

	"arcadehub/internal/apperr"
	"arcadehub/internal/netx"
	"arcadehub/internal/protocol"
)

// ErrClientClosed is returned by Do once the connection is gone.
var ErrClientClosed = errors.New("lobby: client closed")

// Client is a lobby connection. Requests are serialised; pushed events are
// delivered on Events.
type Client struct {
	peer    *netx.Peer
	events  chan protocol.Event
	replies chan protocol.Response

	mu   sync.Mutex // one request in flight
	done chan struct{}
	err  error

	// stale counts replies still owed to calls that gave up waiting.
	replyMu sync.Mutex
	stale   int
}

// Dial connects to a lobby.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn) *Client {
	c := &Client{
		peer:    netx.NewPeer(conn, netx.LengthPrefixed),
		events:  make(chan protocol.Event, 64),
		replies: make(chan protocol.Response, 1),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Events delivers pushed lobby events. It is closed when the connection ends.
// Events that arrive while the buffer is full are dropped.
func (c *Client) Events() <-chan protocol.Event { return c.events }

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Do sends one command and waits for its response.
func (c *Client) Do(ctx context.Context, cmd protocol.Command, p protocol.Payload) (protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.peer.Send(protocol.Request{Command: cmd, Payload: p}); err != nil {
		return protocol.Response{}, err
	}
	select {
	case resp, ok := <-c.replies:
		if !ok {
			return protocol.Response{}, c.closedErr()
		}
		return resp, nil
	case <-c.done:
		return protocol.Response{}, c.closedErr()
	case <-ctx.Done():
		c.abandon()
		return protocol.Response{}, ctx.Err()
	}
}

// abandon marks the in-flight reply as unwanted so the next call cannot
// receive it.
func (c *Client) abandon() {
	c.replyMu.Lock()
	defer c.replyMu.Unlock()
	select {
	case <-c.replies:
	default:
		c.stale++
	}
}

func (c *Client) deliver(resp protocol.Response) {
	c.replyMu.Lock()
	defer c.replyMu.Unlock()
	if c.stale > 0 {
		c.stale--
		return
	}
	select {
	case c.replies <- resp:
	default:
	}
}

// Call is Do followed by ResponseError.
func (c *Client) Call(ctx context.Context, cmd protocol.Command, p protocol.Payload) (protocol.Response, error) {
	resp, err := c.Do(ctx, cmd, p)
	if err != nil {
		return resp, err
	}
	return resp, ResponseError(resp)
}

// Close closes the connection.
func (c *Client) Close() error { return c.peer.Close() }

func (c *Client) closedErr() error {
	if c.err != nil {
		return c.err
	}
	return ErrClientClosed
}

func (c *Client) readLoop() {
	defer func() {
		close(c.events)
		close(c.done)
	}()
	for {
		f, err := c.peer.ReadFrame()
		if err != nil {
			c.err = err
			_ = c.peer.Close()
			return
		}
		var probe struct {
			Event protocol.EventType `json:"event"`
		}
		if err := json.Unmarshal(f.Payload, &probe); err != nil {
			continue
		}
		if probe.Event != "" {
			var ev protocol.Event
			if json.Unmarshal(f.Payload, &ev) == nil {
				select {
				case c.events <- ev:
				default:
				}
			}
			continue
		}
		var resp protocol.Response
		if json.Unmarshal(f.Payload, &resp) == nil {
			c.deliver(resp)
		}
	}
}

// ResponseError turns a non-success response into an error. Failures keep
// their code so that errors.Is works against apperr sentinels.
func ResponseError(resp protocol.Response) error {
	switch resp.Status {
	case protocol.StatusSuccess:
		return nil
	case protocol.StatusFail:
		code := apperr.Code(resp.Code)
		if code == "" {
			code = apperr.CodeInternal
		}
		return apperr.New(code, resp.Message)
	default:
		return errors.New(resp.Message)
	}
}
