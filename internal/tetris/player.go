package tetris

import (
	"time"

	"arcadehub/internal/match"
)

// Input actions.
const (
	ActLeft     = "LEFT"
	ActRight    = "RIGHT"
	ActRotate   = "ROT"
	ActSoftDrop = "SOFT"
	ActHardDrop = "HARDDROP"
)

const queueLen = 5

// Player is one seat of a match.
type Player struct {
	ID   match.ConnID
	Name string
	Seat int

	Board  Board
	Active Piece
	Queue  []Kind

	Score     int
	Lines     int
	Alive     bool
	Connected bool

	// progressAt is when (Lines, Score) last changed.
	progressAt time.Time
	bag        *Bag
}

func newPlayer(id match.ConnID, name string, seat int, seed int64) *Player {
	p := &Player{
		ID:        id,
		Name:      name,
		Seat:      seat,
		Alive:     true,
		Connected: true,
		bag:       NewBag(seed),
	}
	for len(p.Queue) < queueLen {
		p.Queue = append(p.Queue, p.bag.Next())
	}
	p.spawn()
	return p
}

// spawn deals the next piece. A piece that does not fit tops the player out.
func (p *Player) spawn() {
	k := p.Queue[0]
	p.Queue = append(p.Queue[1:], p.bag.Next())
	p.Active = Spawn(k)
	if !p.Board.Fits(p.Active) {
		p.Alive = false
	}
}

// Apply performs one input action. Moves that would collide are ignored.
func (p *Player) Apply(action string, now time.Time) {
	if !p.Alive {
		return
	}
	switch action {
	case ActLeft:
		p.try(p.Active.Moved(-1, 0))
	case ActRight:
		p.try(p.Active.Moved(1, 0))
	case ActRotate:
		p.try(p.Active.Rotated())
	case ActSoftDrop:
		p.Gravity(now)
	case ActHardDrop:
		for p.Gravity(now) {
		}
	}
}

func (p *Player) try(next Piece) {
	if p.Board.Fits(next) {
		p.Active = next
	}
}

// Gravity moves the piece down one row, or locks it, clears lines and
// deals the next piece. It reports whether the piece moved.
func (p *Player) Gravity(now time.Time) bool {
	if !p.Alive {
		return false
	}
	if down := p.Active.Moved(0, 1); p.Board.Fits(down) {
		p.Active = down
		return true
	}
	p.Board.Lock(p.Active)
	if n := p.Board.ClearLines(); n > 0 {
		p.Lines += n
		p.Score += lineScore(n)
		p.progressAt = now
	}
	p.spawn()
	return false
}

// Drop marks the player gone; a disconnected player is never alive.
func (p *Player) Drop() {
	p.Connected = false
	p.Alive = false
}

// PlayerView is the snapshot form of a player.
type PlayerView struct {
	UserID    string     `json:"user_id"`
	Seat      string     `json:"seat"`
	BoardRLE  string     `json:"board_rle"`
	Active    ActiveView `json:"active"`
	Next      []string   `json:"next"`
	Score     int        `json:"score"`
	Lines     int        `json:"lines"`
	Alive     bool       `json:"alive"`
	Connected bool       `json:"connected"`
}

// ActiveView is the snapshot form of the falling piece.
type ActiveView struct {
	Shape string `json:"shape"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Rot   int    `json:"rot"`
}

const previewLen = 3

func (p *Player) view() PlayerView {
	next := make([]string, 0, previewLen)
	for _, k := range p.Queue[:previewLen] {
		next = append(next, k.String())
	}
	return PlayerView{
		UserID:    p.Name,
		Seat:      seatName(p.Seat),
		BoardRLE:  EncodeRLE(&p.Board),
		Active:    ActiveView{Shape: p.Active.Kind.String(), X: p.Active.X, Y: p.Active.Y, Rot: p.Active.Rot},
		Next:      next,
		Score:     p.Score,
		Lines:     p.Lines,
		Alive:     p.Alive,
		Connected: p.Connected,
	}
}

func seatName(seat int) string {
	if seat == 0 {
		return "P1"
	}
	return "P2"
}
