// Package match runs one authoritative match: it accepts connections,
// performs the token handshake and drives a game Engine on fixed cadences.
package match

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"arcadehub/internal/netx"
	"arcadehub/internal/protocol"
	"arcadehub/pkg/types"
)

// ConnID identifies one accepted connection for the lifetime of a match.
type ConnID uint64

// Participant is an accepted connection as seen by an engine.
type Participant struct {
	ID   ConnID
	Name string
	Role protocol.Role
}

// Inbound is one message from a participant: either a structured envelope or
// a raw pass-through line.
type Inbound struct {
	Type protocol.MsgType
	Data json.RawMessage
	Raw  []byte
}

// Decode unmarshals the structured data into v.
func (in Inbound) Decode(v any) error {
	return protocol.Envelope{Type: in.Type, Data: in.Data}.Decode(v)
}

// Outbox is how an engine talks to its connections. Calls only queue frames
// and never block, so engines may call them while the match lock is held.
type Outbox interface {
	Send(to ConnID, v any)
	Broadcast(v any, except ...ConnID)
	Relay(raw []byte, except ...ConnID)
}

// Cadence tells the host how often to drive an engine. Zero disables.
type Cadence struct {
	Tick     time.Duration
	Snapshot time.Duration
}

// Outcome is the result of a finished match.
type Outcome struct {
	Reason    string
	Winner    string
	Results   []protocol.PlayerResult
	Message   string
	StartedAt time.Time
}

// Engine is the rule set of one game. The host serialises every call under
// one lock, so implementations need no locking of their own; they must not
// call back into the host.
type Engine interface {
	Cadence() Cadence
	// Connect admits a participant and sends it a welcome, or returns an
	// error whose message becomes the reject reason.
	Connect(p Participant) error
	Disconnect(id ConnID)
	Input(id ConnID, in Inbound)
	Tick(now time.Time)
	// Snapshot returns the periodic broadcast state, if any.
	Snapshot() (any, bool)
	Termination() (Outcome, bool)
}

// EngineConfig is handed to an engine constructor.
type EngineConfig struct {
	Params types.MatchParams
	Out    Outbox
	Log    zerolog.Logger
	Now    func() time.Time
}

// Registration binds a game id to its constructor and wire framing.
type Registration struct {
	Game   string
	Framer netx.Framer
	New    func(EngineConfig) (Engine, error)
}
