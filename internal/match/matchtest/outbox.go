// Package matchtest provides an in-memory Outbox for engine tests.
package matchtest

import (
	"slices"
	"sync"

	"arcadehub/internal/match"
	"arcadehub/internal/protocol"
)

// Delivery is one recorded outbox call. To is zero for broadcasts and
// relays.
type Delivery struct {
	To     match.ConnID
	Except []match.ConnID
	Msg    protocol.Message
	Raw    []byte
}

// Outbox records everything an engine sends.
type Outbox struct {
	mu  sync.Mutex
	log []Delivery
}

var _ match.Outbox = (*Outbox)(nil)

func (o *Outbox) Send(to match.ConnID, v any) {
	o.add(Delivery{To: to, Msg: asMessage(v)})
}

func (o *Outbox) Broadcast(v any, except ...match.ConnID) {
	o.add(Delivery{Except: except, Msg: asMessage(v)})
}

func (o *Outbox) Relay(raw []byte, except ...match.ConnID) {
	o.add(Delivery{Except: except, Raw: append([]byte(nil), raw...)})
}

func (o *Outbox) add(d Delivery) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.log = append(o.log, d)
}

func asMessage(v any) protocol.Message {
	if m, ok := v.(protocol.Message); ok {
		return m
	}
	return protocol.Message{Data: v}
}

// All returns every delivery in order.
func (o *Outbox) All() []Delivery {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.log)
}

// Reset forgets everything recorded so far.
func (o *Outbox) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.log = nil
}

// Received returns the structured messages id would have received.
func (o *Outbox) Received(id match.ConnID) []protocol.Message {
	var out []protocol.Message
	for _, d := range o.All() {
		if d.Raw != nil || !reaches(d, id) {
			continue
		}
		out = append(out, d.Msg)
	}
	return out
}

// ReceivedType filters Received by message type.
func (o *Outbox) ReceivedType(id match.ConnID, t protocol.MsgType) []protocol.Message {
	var out []protocol.Message
	for _, m := range o.Received(id) {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the latest message of type t that reached id.
func (o *Outbox) Last(id match.ConnID, t protocol.MsgType) (protocol.Message, bool) {
	msgs := o.ReceivedType(id, t)
	if len(msgs) == 0 {
		return protocol.Message{}, false
	}
	return msgs[len(msgs)-1], true
}

// Relayed returns the raw lines id would have received.
func (o *Outbox) Relayed(id match.ConnID) [][]byte {
	var out [][]byte
	for _, d := range o.All() {
		if d.Raw != nil && reaches(d, id) {
			out = append(out, d.Raw)
		}
	}
	return out
}

// Broadcasts returns broadcast messages of type t.
func (o *Outbox) Broadcasts(t protocol.MsgType) []protocol.Message {
	var out []protocol.Message
	for _, d := range o.All() {
		if d.To == 0 && d.Raw == nil && d.Msg.Type == t {
			out = append(out, d.Msg)
		}
	}
	return out
}

func reaches(d Delivery, id match.ConnID) bool {
	if d.To != 0 {
		return d.To == id
	}
	return !slices.Contains(d.Except, id)
}
