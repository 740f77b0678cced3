// Package drawguess implements the Draw-and-Guess match engine: one player
// draws a chosen word while the others race to guess it.
package drawguess

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"arcadehub/internal/apperr"
	"arcadehub/internal/match"
	"arcadehub/internal/netx"
	"arcadehub/internal/protocol"
	"arcadehub/pkg/types"
)

// Game is the catalog id of this engine.
const Game = "draw_guess"

// Timings and scoring.
const (
	MaxPlayers    = 8
	MinPlayers    = 2
	SelectTimeout = 10 * time.Second
	DrawDuration  = 60 * time.Second
	HintInterval  = 15 * time.Second
	RoundEndPause = 5 * time.Second
	AbortPause    = 2 * time.Second
	DrawerBonus   = 5
	WinScore      = 500

	tickInterval = 250 * time.Millisecond
)

// Round end reasons.
const (
	RoundAllCorrect = "all correct"
	RoundTimeUp     = "time up"
	RoundDrawerLeft = "drawer_left"
	RoundScore      = "score"
)

// Match termination reasons.
const (
	ReasonScore        = "score"
	ReasonOpponentLeft = "opponent_left"
	ReasonAbandoned    = "abandoned"
)

type phase int

const (
	phaseWaiting phase = iota
	phaseSelecting
	phaseDrawing
	phaseRoundEnd
)

func (p phase) String() string {
	switch p {
	case phaseSelecting:
		return "selecting"
	case phaseDrawing:
		return "drawing"
	case phaseRoundEnd:
		return "round_end"
	}
	return "waiting"
}

// Registration returns the constructor table entry for this engine.
func Registration() match.Registration {
	return match.Registration{
		Game:   Game,
		Framer: netx.Lines,
		New: func(cfg match.EngineConfig) (match.Engine, error) {
			e, err := New(cfg, DefaultWords)
			if err != nil {
				return nil, err
			}
			return e, nil
		},
	}
}

type player struct {
	id        match.ConnID
	name      string
	color     string
	score     int
	correct   bool
	connected bool
}

// Engine is the Draw-and-Guess rule set. Timers are deadlines checked on
// every Tick, so a deadline that fires after the phase moved on is a no-op.
type Engine struct {
	params types.MatchParams
	words  WordPool
	out    match.Outbox
	log    zerolog.Logger
	now    func() time.Time
	rng    *rand.Rand

	// roster keeps departed players for the final results.
	roster     []*player
	spectators map[match.ConnID]string

	phase    phase
	started  bool
	drawer   *player
	options  []string
	word     string
	revealed map[int]bool
	deadline time.Time
	nextHint time.Time
	winner   *player
}

// New builds an engine drawing its words from pool.
func New(cfg match.EngineConfig, pool WordPool) (*Engine, error) {
	params := cfg.Params
	if params.Mode == "" {
		params.Mode = types.ModeClassic
	}
	if params.Mode != types.ModeClassic {
		return nil, apperr.InvalidArgument(fmt.Sprintf("draw_guess has no mode %q", params.Mode))
	}
	for _, t := range Tiers {
		if len(pool[t]) == 0 {
			return nil, apperr.InvalidArgument(fmt.Sprintf("no %s words", t))
		}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	seed := uint64(params.Seed)
	if seed == 0 {
		seed = uint64(now().UnixNano())
	}
	return &Engine{
		params:     params,
		words:      pool,
		out:        cfg.Out,
		log:        cfg.Log,
		now:        now,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		spectators: make(map[match.ConnID]string),
		revealed:   make(map[int]bool),
	}, nil
}

func (e *Engine) Cadence() match.Cadence {
	return match.Cadence{Tick: tickInterval}
}

func (e *Engine) Connect(p match.Participant) error {
	welcome := protocol.Welcome{Role: p.Role, Name: p.Name, Mode: e.params.Mode, Rules: e.params.Rules()}
	if p.Role == protocol.RoleSpectator {
		e.spectators[p.ID] = p.Name
		e.out.Send(p.ID, protocol.Out(protocol.MsgWelcome, welcome))
		e.out.Send(p.ID, protocol.Out(protocol.MsgUpdatePlayers, e.standings()))
		e.catchUp(p.ID)
		return nil
	}
	if len(e.active()) >= MaxPlayers {
		return apperr.Conflict("match is full")
	}
	pl := &player{
		id:        p.ID,
		name:      p.Name,
		color:     fmt.Sprintf("#%06x", e.rng.IntN(0x1000000)),
		connected: true,
	}
	e.roster = append(e.roster, pl)
	e.out.Send(p.ID, protocol.Out(protocol.MsgWelcome, welcome))
	e.broadcastPlayers()

	switch {
	case e.phase == phaseWaiting && len(e.active()) >= MinPlayers:
		e.started = true
		e.startSelecting()
	case e.phase == phaseWaiting:
		e.out.Send(p.ID, protocol.Out(protocol.MsgSysMsg, "Waiting for more players..."))
	default:
		e.catchUp(p.ID)
	}
	return nil
}

// catchUp brings a late joiner into the current round.
func (e *Engine) catchUp(id match.ConnID) {
	switch e.phase {
	case phaseSelecting, phaseDrawing:
		e.out.Send(id, protocol.Out(protocol.MsgSysMsg, "A round is in progress, wait for the next one"))
	}
	if e.phase == phaseDrawing {
		e.out.Send(id, protocol.Out(protocol.MsgPhaseDraw, PhaseDraw{
			Time:   e.secondsLeft(),
			Length: len([]rune(e.word)),
			Mask:   mask(e.word, e.revealed),
		}))
	}
}

func (e *Engine) Disconnect(id match.ConnID) {
	if _, ok := e.spectators[id]; ok {
		delete(e.spectators, id)
		return
	}
	pl := e.player(id)
	if pl == nil {
		return
	}
	pl.connected = false
	e.out.Broadcast(protocol.Out(protocol.MsgSysMsg, pl.name+" left the game"))
	e.broadcastPlayers()

	remaining := e.active()
	if len(remaining) <= 1 {
		// Termination takes it from here.
		return
	}
	if pl == e.drawer && (e.phase == phaseSelecting || e.phase == phaseDrawing) {
		e.abortRound()
		return
	}
	if e.phase == phaseDrawing && e.everyoneGuessed() {
		e.endRound(RoundAllCorrect, RoundEndPause)
	}
}

func (e *Engine) Input(id match.ConnID, in match.Inbound) {
	if in.Raw != nil {
		if e.phase == phaseDrawing && e.drawer != nil && e.drawer.id == id {
			e.out.Relay(in.Raw, id)
		}
		return
	}
	switch in.Type {
	case protocol.MsgChat:
		var text string
		if err := in.Decode(&text); err != nil {
			e.log.Debug().Err(err).Uint64("conn", uint64(id)).Msg("dropping malformed chat")
			return
		}
		e.chat(id, strings.TrimSpace(text))
	case protocol.MsgSelectWord:
		if e.phase != phaseSelecting || e.drawer == nil || e.drawer.id != id {
			return
		}
		var idx int
		if err := in.Decode(&idx); err != nil {
			idx = 0
		}
		e.startDrawing(idx)
	}
}

func (e *Engine) chat(id match.ConnID, text string) {
	if text == "" {
		return
	}
	pl := e.player(id)
	if pl == nil {
		// Spectators only watch.
		return
	}
	line := protocol.Out(protocol.MsgChatMsg, ChatLine{Name: pl.name, Text: text, Color: pl.color})

	if e.phase != phaseDrawing {
		e.out.Broadcast(line)
		return
	}
	switch {
	case pl == e.drawer:
		if strings.Contains(strings.ToLower(text), strings.ToLower(e.word)) {
			e.out.Send(id, protocol.Out(protocol.MsgSysMsg, "Don't give away the word!"))
			return
		}
		e.out.Broadcast(line)
	case pl.correct:
		// Only those who already know the word may read it.
		for _, other := range e.active() {
			if other == e.drawer || other.correct {
				e.out.Send(other.id, line)
			}
		}
	case strings.EqualFold(text, e.word):
		e.guessed(pl)
	default:
		e.out.Broadcast(line)
	}
}

// guessed scores a correct guess. The guess itself is never relayed.
func (e *Engine) guessed(pl *player) {
	gain := int(float64(max(1, e.secondsLeft()))*1.5) + 10
	pl.score += gain
	pl.correct = true
	if e.drawer.connected {
		e.drawer.score += DrawerBonus
	}

	e.out.Send(pl.id, protocol.Out(protocol.MsgCorrectGuess, CorrectGuess{Score: gain}))
	e.out.Broadcast(protocol.Out(protocol.MsgSysMsg, "★ "+pl.name+" guessed the word!"), pl.id)
	e.broadcastPlayers()
	e.log.Debug().Str("player", pl.name).Int("gain", gain).Msg("correct guess")

	switch {
	case pl.score >= WinScore:
		e.winner = pl
	case e.drawer.connected && e.drawer.score >= WinScore:
		e.winner = e.drawer
	}
	if e.winner != nil {
		e.endRound(RoundScore, RoundEndPause)
		return
	}
	if e.everyoneGuessed() {
		e.endRound(RoundAllCorrect, RoundEndPause)
	}
}

func (e *Engine) Tick(now time.Time) {
	switch e.phase {
	case phaseSelecting:
		if !now.Before(e.deadline) {
			e.startDrawing(0)
		}
	case phaseDrawing:
		if !now.Before(e.deadline) {
			e.endRound(RoundTimeUp, RoundEndPause)
			return
		}
		if !now.Before(e.nextHint) {
			e.revealHint()
			e.nextHint = e.nextHint.Add(HintInterval)
		}
	case phaseRoundEnd:
		if e.winner == nil && !now.Before(e.deadline) && len(e.active()) >= MinPlayers {
			e.startSelecting()
		}
	}
}

func (e *Engine) Snapshot() (any, bool) { return nil, false }

func (e *Engine) Termination() (match.Outcome, bool) {
	if len(e.roster) == 0 {
		return match.Outcome{}, false
	}
	switch n := len(e.active()); {
	case e.winner != nil:
		return e.outcome(ReasonScore, e.winner.name, fmt.Sprintf("%s reached %d points and wins!", e.winner.name, WinScore)), true
	case n == 0:
		return e.outcome(ReasonAbandoned, "", "All players left"), true
	case n == 1 && e.started:
		w := e.active()[0]
		return e.outcome(ReasonOpponentLeft, w.name, "Everyone else left. "+w.name+" wins!"), true
	}
	return match.Outcome{}, false
}

func (e *Engine) outcome(reason, winner, msg string) match.Outcome {
	out := match.Outcome{Reason: reason, Winner: winner, Message: msg}
	for _, pl := range e.ranked(e.roster) {
		out.Results = append(out.Results, protocol.PlayerResult{UserID: pl.name, Score: pl.score, Connected: pl.connected})
	}
	return out
}

func (e *Engine) startSelecting() {
	players := e.active()
	e.drawer = e.nextDrawer(players)
	e.phase = phaseSelecting
	e.word = ""
	e.revealed = make(map[int]bool)
	for _, pl := range players {
		pl.correct = false
	}
	e.options = e.words.options(e.rng)
	e.deadline = e.now().Add(SelectTimeout)

	e.out.Broadcast(protocol.Out(protocol.MsgPhaseSelect, PhaseSelect{Drawer: e.drawer.name, Timeout: int(SelectTimeout / time.Second)}))
	e.out.Send(e.drawer.id, protocol.Out(protocol.MsgYourSelection, YourSelection{Words: e.options}))
	e.broadcastPlayers()
	e.log.Info().Str("drawer", e.drawer.name).Msg("selecting")
}

// nextDrawer rotates through the connected players, picking at random when
// the previous drawer is gone.
func (e *Engine) nextDrawer(players []*player) *player {
	if i := slices.Index(players, e.drawer); i >= 0 {
		return players[(i+1)%len(players)]
	}
	return players[e.rng.IntN(len(players))]
}

func (e *Engine) startDrawing(idx int) {
	if e.phase != phaseSelecting {
		return
	}
	if idx < 0 || idx >= len(e.options) {
		idx = 0
	}
	e.word = e.options[idx]
	e.phase = phaseDrawing
	now := e.now()
	e.deadline = now.Add(DrawDuration)
	e.nextHint = now.Add(HintInterval)

	e.out.Broadcast(protocol.Out(protocol.MsgPhaseDraw, PhaseDraw{
		Time:   int(DrawDuration / time.Second),
		Length: len([]rune(e.word)),
		Mask:   mask(e.word, e.revealed),
	}))
	e.out.Send(e.drawer.id, protocol.Out(protocol.MsgYourWord, e.word))
	e.out.Relay([]byte(protocol.RawClear))
	e.log.Info().Str("drawer", e.drawer.name).Msg("drawing")
}

func (e *Engine) revealHint() {
	hidden := hintable(e.word, e.revealed)
	if len(hidden) == 0 {
		return
	}
	e.revealed[hidden[e.rng.IntN(len(hidden))]] = true
	e.out.Broadcast(protocol.Out(protocol.MsgUpdateHint, mask(e.word, e.revealed)))
}

func (e *Engine) endRound(reason string, pause time.Duration) {
	if e.phase == phaseRoundEnd {
		return
	}
	e.phase = phaseRoundEnd
	e.deadline = e.now().Add(pause)
	e.out.Broadcast(protocol.Out(protocol.MsgPhaseEnd, PhaseEnd{Reason: reason, Answer: e.word}))
	e.broadcastPlayers()
	e.log.Info().Str("reason", reason).Str("word", e.word).Msg("round over")
}

// abortRound voids the current word after the drawer left.
func (e *Engine) abortRound() {
	e.out.Broadcast(protocol.Out(protocol.MsgAlert, "The drawer left! This round is void, restarting..."))
	e.out.Relay([]byte(protocol.RawClear))
	e.phase = phaseRoundEnd
	e.word = ""
	e.options = nil
	e.deadline = e.now().Add(AbortPause)
	e.log.Info().Str("reason", RoundDrawerLeft).Msg("round aborted")
}

func (e *Engine) everyoneGuessed() bool {
	guessers := 0
	for _, pl := range e.active() {
		if pl == e.drawer {
			continue
		}
		if !pl.correct {
			return false
		}
		guessers++
	}
	return guessers > 0
}

func (e *Engine) secondsLeft() int {
	return max(0, int(e.deadline.Sub(e.now())/time.Second))
}

func (e *Engine) broadcastPlayers() {
	e.out.Broadcast(protocol.Out(protocol.MsgUpdatePlayers, e.standings()))
}

func (e *Engine) standings() []Standing {
	drawing := e.phase == phaseSelecting || e.phase == phaseDrawing
	out := []Standing{}
	for _, pl := range e.ranked(e.active()) {
		out = append(out, Standing{Name: pl.name, Score: pl.score, IsDrawer: drawing && pl == e.drawer})
	}
	return out
}

// ranked orders by score descending, keeping join order for ties.
func (e *Engine) ranked(players []*player) []*player {
	out := slices.Clone(players)
	slices.SortStableFunc(out, func(a, b *player) int { return b.score - a.score })
	return out
}

func (e *Engine) active() []*player {
	var out []*player
	for _, pl := range e.roster {
		if pl.connected {
			out = append(out, pl)
		}
	}
	return out
}

func (e *Engine) player(id match.ConnID) *player {
	for _, pl := range e.roster {
		if pl.id == id && pl.connected {
			return pl
		}
	}
	return nil
}
