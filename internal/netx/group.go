package netx

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Group is a keyed set of peers with best-effort fan-out. Recipients are
// copied under the lock and sent to outside it.
type Group[K comparable] struct {
	mu    sync.RWMutex
	peers map[K]*Peer
}

// NewGroup returns an empty group.
func NewGroup[K comparable]() *Group[K] {
	return &Group[K]{peers: make(map[K]*Peer)}
}

// Add registers p under key, replacing (and closing) any previous peer.
func (g *Group[K]) Add(key K, p *Peer) {
	g.mu.Lock()
	old, ok := g.peers[key]
	g.peers[key] = p
	g.mu.Unlock()
	if ok && old != p {
		_ = old.Close()
	}
}

// Remove drops key from the group and returns its peer.
func (g *Group[K]) Remove(key K) (*Peer, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.peers[key]
	delete(g.peers, key)
	return p, ok
}

// Get returns the peer under key.
func (g *Group[K]) Get(key K) (*Peer, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.peers[key]
	return p, ok
}

// Len is the number of peers.
func (g *Group[K]) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.peers)
}

// Send queues v to the peer under key. Unknown keys are ignored.
func (g *Group[K]) Send(key K, v any) error {
	p, ok := g.Get(key)
	if !ok {
		return nil
	}
	return p.Send(v)
}

// Broadcast queues v to every peer except the listed keys. It returns the
// number of peers the frame was queued to.
func (g *Group[K]) Broadcast(v any, except ...K) (int, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("marshal frame: %w", err)
	}
	return g.BroadcastFrame(Frame{Payload: b}, except...), nil
}

// BroadcastFrame queues f to every peer except the listed keys.
func (g *Group[K]) BroadcastFrame(f Frame, except ...K) int {
	sent := 0
	for _, p := range g.snapshot(except) {
		if p.SendFrame(f) == nil {
			sent++
		}
	}
	return sent
}

// CloseAll closes every peer and empties the group.
func (g *Group[K]) CloseAll() {
	g.mu.Lock()
	peers := g.peers
	g.peers = make(map[K]*Peer)
	g.mu.Unlock()
	for _, p := range peers {
		_ = p.Close()
	}
}

func (g *Group[K]) snapshot(except []K) []*Peer {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Peer, 0, len(g.peers))
	for k, p := range g.peers {
		skip := false
		for _, e := range except {
			if k == e {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, p)
		}
	}
	return out
}
