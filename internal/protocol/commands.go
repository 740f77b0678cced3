package protocol

import "arcadehub/pkg/types"

// Command names a lobby request.
type Command string

const (
	CmdLogin       Command = "LOGIN"
	CmdLogout      Command = "LOGOUT"
	CmdListUsers   Command = "LIST_USERS"
	CmdListGames   Command = "LIST_GAMES"
	CmdListRooms   Command = "LIST_ROOMS"
	CmdCreateRoom  Command = "CREATE_ROOM"
	CmdJoinRoom    Command = "JOIN_ROOM"
	CmdLeaveRoom   Command = "LEAVE_ROOM"
	CmdGetRoomInfo Command = "GET_ROOM_INFO"
	CmdLobbyChat   Command = "LOBBY_CHAT"
	CmdStartGame   Command = "START_GAME"
	CmdEndReport   Command = "END_REPORT"
)

// Request is the envelope of every client -> lobby message.
type Request struct {
	Command Command `json:"command"`
	Payload Payload `json:"payload"`
}

// Payload is the union of all request arguments; each command reads only the
// fields it needs.
type Payload struct {
	Username    string       `json:"username,omitempty"`
	GameID      string       `json:"game_id,omitempty"`
	RoomID      string       `json:"room_id,omitempty"`
	Message     string       `json:"message,omitempty"`
	Mode        string       `json:"mode,omitempty"`
	DurationSec int          `json:"duration_sec,omitempty"`
	TargetLines int          `json:"target_lines,omitempty"`
	Report      *MatchReport `json:"report,omitempty"`
}

// Params extracts the optional match parameters of a START_GAME payload.
func (p Payload) Params() types.MatchParams {
	return types.MatchParams{
		Mode:        types.ParseMode(p.Mode),
		DurationSec: p.DurationSec,
		TargetLines: p.TargetLines,
	}
}

// Status discriminates lobby responses.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFail    Status = "fail"
	StatusError   Status = "error"
)

// Response is the envelope of every lobby -> client reply.
type Response struct {
	Status  Status     `json:"status"`
	Message string     `json:"message,omitempty"`
	Code    string     `json:"code,omitempty"`
	RoomID  string     `json:"room_id,omitempty"`
	Room    *RoomInfo  `json:"room,omitempty"`
	Rooms   []RoomInfo `json:"rooms,omitempty"`
	Games   []GameInfo `json:"games,omitempty"`
	Users   []string   `json:"users,omitempty"`
	Match   *MatchInfo `json:"match,omitempty"`
}

// OK is a successful response with a message.
func OK(message string) Response {
	return Response{Status: StatusSuccess, Message: message}
}

// EventType names a lobby push message.
type EventType string

const (
	EventRoomUpdated  EventType = "ROOM_UPDATED"
	EventRoomChat     EventType = "ROOM_CHAT"
	EventMatchStarted EventType = "MATCH_STARTED"
)

// Event is pushed by the lobby outside of the request/response cycle. It is
// distinguished from a Response by its non-empty "event" field.
type Event struct {
	Event  EventType  `json:"event"`
	RoomID string     `json:"room_id"`
	Room   *RoomInfo  `json:"room,omitempty"`
	Match  *MatchInfo `json:"match,omitempty"`
	Chat   string     `json:"chat,omitempty"`
}

// RoomStatus is the lifecycle state of a lobby room.
type RoomStatus string

const (
	RoomWaiting RoomStatus = "waiting"
	RoomPlaying RoomStatus = "playing"
)

// RoomInfo is the client-facing view of a room.
type RoomInfo struct {
	ID      string     `json:"id"`
	GameID  string     `json:"game_id"`
	Host    string     `json:"host"`
	Members []string   `json:"members"`
	Status  RoomStatus `json:"status"`
	Chat    []string   `json:"chat,omitempty"`
	Match   *MatchInfo `json:"match,omitempty"`
}

// MatchInfo carries the connection details of a launched match.
type MatchInfo struct {
	MatchID  string            `json:"match_id"`
	GameID   string            `json:"game_id"`
	GameHost string            `json:"game_host"`
	GamePort int               `json:"game_port"`
	Token    string            `json:"token"`
	Params   types.MatchParams `json:"params"`
}

// GameInfo is the catalog entry shown by LIST_GAMES.
type GameInfo struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	MinPlayers int      `json:"min_players"`
	MaxPlayers int      `json:"max_players"`
	Modes      []string `json:"modes,omitempty"`
}
