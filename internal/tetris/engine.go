// Package tetris implements the two-player falling-block match engine.
package tetris

import (
	"time"

	"github.com/rs/zerolog"

	"arcadehub/internal/apperr"
	"arcadehub/internal/match"
	"arcadehub/internal/netx"
	"arcadehub/internal/protocol"
	"arcadehub/pkg/types"
)

// Game is the catalog id of this engine.
const Game = "tetris"

const (
	maxPlayers         = 2
	gravityInterval    = 700 * time.Millisecond
	snapshotInterval   = 200 * time.Millisecond
	defaultJoinTimeout = 120 * time.Second
)

// Registration returns the constructor table entry for this engine.
func Registration() match.Registration {
	return match.Registration{
		Game:   Game,
		Framer: netx.LengthPrefixed,
		New: func(cfg match.EngineConfig) (match.Engine, error) {
			e, err := New(cfg)
			if err != nil {
				return nil, err
			}
			return e, nil
		},
	}
}

// Snapshot is the periodic state broadcast.
type Snapshot struct {
	Tick         int64        `json:"tick"`
	Started      bool         `json:"started"`
	RemainingSec *int         `json:"remaining_sec,omitempty"`
	Players      []PlayerView `json:"players"`
}

// Engine is the Tetris rule set. It is driven by match.Host, which
// serialises all calls.
type Engine struct {
	params types.MatchParams
	out    match.Outbox
	log    zerolog.Logger
	now    func() time.Time

	players    []*Player
	spectators map[match.ConnID]string

	createdAt   time.Time
	startedAt   time.Time
	joinTimeout time.Duration
}

// New builds an engine from cfg.
func New(cfg match.EngineConfig) (*Engine, error) {
	params, err := normalizeParams(cfg.Params)
	if err != nil {
		return nil, err
	}
	if params.Seed == 0 {
		params.Seed = 12345
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		params:      params,
		out:         cfg.Out,
		log:         cfg.Log,
		now:         now,
		spectators:  make(map[match.ConnID]string),
		createdAt:   now(),
		joinTimeout: defaultJoinTimeout,
	}, nil
}

// Params returns the effective match parameters.
func (e *Engine) Params() types.MatchParams { return e.params }

func (e *Engine) Cadence() match.Cadence {
	return match.Cadence{Tick: gravityInterval, Snapshot: snapshotInterval}
}

func (e *Engine) started() bool { return !e.startedAt.IsZero() }

func (e *Engine) Connect(p match.Participant) error {
	welcome := protocol.Welcome{
		Role:  p.Role,
		Name:  p.Name,
		Mode:  e.params.Mode,
		Rules: e.params.Rules(),
	}
	if p.Role == protocol.RoleSpectator {
		e.spectators[p.ID] = p.Name
		e.out.Send(p.ID, protocol.Out(protocol.MsgWelcome, welcome))
		return nil
	}
	if len(e.players) >= maxPlayers {
		return apperr.Conflict("match is full")
	}
	for _, pl := range e.players {
		if pl.Name == p.Name {
			return apperr.Conflict(p.Name + " is already playing")
		}
	}
	pl := newPlayer(p.ID, p.Name, len(e.players), e.params.Seed)
	e.players = append(e.players, pl)

	welcome.Seat = seatName(pl.Seat)
	welcome.Seed = e.params.Seed
	welcome.GravityMs = gravityInterval.Milliseconds()
	e.out.Send(p.ID, protocol.Out(protocol.MsgWelcome, welcome))

	if len(e.players) == maxPlayers {
		e.startedAt = e.now()
		e.log.Info().Str("mode", e.params.String()).Msg("match started")
	}
	return nil
}

func (e *Engine) Disconnect(id match.ConnID) {
	if _, ok := e.spectators[id]; ok {
		delete(e.spectators, id)
		return
	}
	if pl := e.player(id); pl != nil {
		pl.Drop()
	}
}

func (e *Engine) Input(id match.ConnID, in match.Inbound) {
	if in.Raw != nil || in.Type != protocol.MsgInput || !e.started() {
		return
	}
	pl := e.player(id)
	if pl == nil {
		return
	}
	var act protocol.Input
	if err := in.Decode(&act); err != nil {
		return
	}
	pl.Apply(act.Action, e.now())
}

func (e *Engine) Tick(now time.Time) {
	if !e.started() {
		return
	}
	for _, pl := range e.players {
		pl.Gravity(now)
	}
}

func (e *Engine) Snapshot() (any, bool) {
	now := e.now()
	s := Snapshot{Tick: now.UnixMilli(), Started: e.started()}
	if e.params.Mode == types.ModeTimer && e.started() {
		left := e.params.DurationSec - int(now.Sub(e.startedAt)/time.Second)
		left = max(left, 0)
		s.RemainingSec = &left
	}
	for _, pl := range e.players {
		s.Players = append(s.Players, pl.view())
	}
	return protocol.Out(protocol.MsgSnapshot, s), true
}

func (e *Engine) Termination() (match.Outcome, bool) {
	now := e.now()
	if len(e.players) > 0 && e.connected() == 0 {
		return e.outcome(ReasonAbandoned, ""), true
	}
	if !e.started() {
		if now.Sub(e.createdAt) >= e.joinTimeout {
			return e.outcome(ReasonNoOpponent, ""), true
		}
		return match.Outcome{}, false
	}
	for _, pl := range e.players {
		if !pl.Connected {
			return e.outcome(ReasonOpponentLeft, e.other(pl).Name), true
		}
	}

	alive := e.alive()
	if len(alive) == 0 {
		return e.outcome(ReasonBothLose, e.leader().Name), true
	}
	switch e.params.Mode {
	case types.ModeTimer:
		if now.Sub(e.startedAt) >= time.Duration(e.params.DurationSec)*time.Second {
			return e.outcome(ReasonTimeout, e.leader().Name), true
		}
	case types.ModeSurvival:
		if len(alive) == 1 {
			return e.outcome(ReasonLoss, alive[0].Name), true
		}
	case types.ModeLines:
		for _, pl := range e.players {
			if pl.Lines >= e.params.TargetLines {
				return e.outcome(ReasonLines, e.leader().Name), true
			}
		}
	}
	return match.Outcome{}, false
}

func (e *Engine) outcome(reason, winner string) match.Outcome {
	out := match.Outcome{
		Reason:    reason,
		Winner:    winner,
		Message:   outcomeMessage(reason, winner),
		StartedAt: e.startedAt,
	}
	for _, pl := range e.players {
		out.Results = append(out.Results, protocol.PlayerResult{
			UserID:    pl.Name,
			Score:     pl.Score,
			Lines:     pl.Lines,
			Connected: pl.Connected,
		})
	}
	return out
}

// leader ranks by (lines, score) descending; equal progress goes to whoever
// reached it first, then to the lower seat.
func (e *Engine) leader() *Player {
	best := e.players[0]
	for _, pl := range e.players[1:] {
		if ahead(pl, best) {
			best = pl
		}
	}
	return best
}

func ahead(a, b *Player) bool {
	if a.Lines != b.Lines {
		return a.Lines > b.Lines
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.progressAt.Equal(b.progressAt) {
		return a.progressAt.Before(b.progressAt)
	}
	return a.Seat < b.Seat
}

func (e *Engine) player(id match.ConnID) *Player {
	for _, pl := range e.players {
		if pl.ID == id {
			return pl
		}
	}
	return nil
}

func (e *Engine) other(p *Player) *Player {
	for _, pl := range e.players {
		if pl != p {
			return pl
		}
	}
	return p
}

func (e *Engine) alive() []*Player {
	var out []*Player
	for _, pl := range e.players {
		if pl.Alive {
			out = append(out, pl)
		}
	}
	return out
}

func (e *Engine) connected() int {
	n := 0
	for _, pl := range e.players {
		if pl.Connected {
			n++
		}
	}
	return n
}
