package protocol

import "arcadehub/pkg/types"

// MatchReport is the end-of-match summary a match process sends back to the
// orchestrator. It is delivered once, best-effort.
type MatchReport struct {
	RoomID  string         `json:"room_id"`
	MatchID string         `json:"match_id"`
	GameID  string         `json:"game_id"`
	Users   []string       `json:"users"`
	StartAt int64          `json:"start_at"`
	EndAt   int64          `json:"end_at"`
	Mode    types.Mode     `json:"mode"`
	Reason  string         `json:"reason"`
	Winner  string         `json:"winner,omitempty"`
	Results []PlayerResult `json:"results"`
}
