package protocol

import (
	"encoding/json"

	"arcadehub/pkg/types"
)

// MsgType names a match-engine message.
type MsgType string

const (
	// Client -> engine
	MsgHello      MsgType = "HELLO"
	MsgInput      MsgType = "INPUT"
	MsgLeave      MsgType = "LEAVE"
	MsgChat       MsgType = "CHAT"
	MsgSelectWord MsgType = "SELECT_WORD"

	// Engine -> client
	MsgWelcome       MsgType = "WELCOME"
	MsgReject        MsgType = "REJECT"
	MsgSnapshot      MsgType = "SNAPSHOT"
	MsgGameOver      MsgType = "GAME_OVER"
	MsgPhaseSelect   MsgType = "PHASE_SELECT"
	MsgYourSelection MsgType = "YOUR_SELECTION"
	MsgPhaseDraw     MsgType = "PHASE_DRAW"
	MsgYourWord      MsgType = "YOUR_WORD"
	MsgUpdateHint    MsgType = "UPDATE_HINT"
	MsgCorrectGuess  MsgType = "CORRECT_GUESS"
	MsgChatMsg       MsgType = "CHAT_MSG"
	MsgSysMsg        MsgType = "SYS_MSG"
	MsgPhaseEnd      MsgType = "PHASE_END"
	MsgUpdatePlayers MsgType = "UPDATE_PLAYERS"
	MsgAlert         MsgType = "ALERT"
)

// Raw pass-through prefixes. A line starting with one of these bypasses
// structured decoding and is relayed byte-for-byte.
const (
	RawStrokePrefix = "D:"
	RawClear        = "CLR"
)

// RawPrefixes lists every raw-command prefix.
var RawPrefixes = []string{RawStrokePrefix, RawClear}

// Envelope is the inbound shape of every structured match message.
type Envelope struct {
	Type MsgType         `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the envelope's data into v.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return json.Unmarshal([]byte("null"), v)
	}
	return json.Unmarshal(e.Data, v)
}

// Message is the outbound shape of every structured match message.
type Message struct {
	Type MsgType `json:"type"`
	Data any     `json:"data,omitempty"`
}

// Out builds an outbound message.
func Out(t MsgType, data any) Message {
	return Message{Type: t, Data: data}
}

// Role is what a connection asks to be in a match.
type Role string

const (
	RolePlayer    Role = "PLAYER"
	RoleSpectator Role = "SPECTATOR"
)

// Hello is the handshake every match connection must send first.
type Hello struct {
	Role  Role   `json:"role"`
	Token string `json:"token"`
	Name  string `json:"name"`
}

// Welcome answers an accepted handshake.
type Welcome struct {
	Role      Role        `json:"role"`
	Seat      string      `json:"seat,omitempty"`
	Name      string      `json:"name"`
	Mode      types.Mode  `json:"mode"`
	Rules     types.Rules `json:"rules"`
	Seed      int64       `json:"seed,omitempty"`
	GravityMs int64       `json:"gravity_ms,omitempty"`
}

// Reject answers a refused handshake before the connection is closed.
type Reject struct {
	Reason string `json:"reason"`
}

// Input carries one discrete engine action.
type Input struct {
	Action string `json:"action"`
}

// GameOver is the final summary broadcast when a match terminates.
type GameOver struct {
	Mode    types.Mode     `json:"mode"`
	Reason  string         `json:"reason"`
	Winner  string         `json:"winner,omitempty"`
	Results []PlayerResult `json:"results"`
	Message string         `json:"message,omitempty"`
	At      int64          `json:"at"`
}

// PlayerResult is one row of a final summary.
type PlayerResult struct {
	UserID    string `json:"user_id"`
	Score     int    `json:"score"`
	Lines     int    `json:"lines,omitempty"`
	Connected bool   `json:"connected"`
}
