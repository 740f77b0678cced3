package types

import (
	"fmt"
	"strings"
)

// Mode names a match's win condition. Engines that have a single way of
// playing ignore it.
type Mode string

const (
	ModeTimer    Mode = "timer"
	ModeSurvival Mode = "survival"
	ModeLines    Mode = "lines"
	ModeClassic  Mode = "classic"
)

// MinDurationSec is the shortest timer-mode match an engine will run.
const MinDurationSec = 30

// MatchParams holds the mode and mode parameters handed from the orchestrator
// to a match process through the launch template. Keep this struct stable; it
// is echoed back in welcome messages and end-of-match reports.
type MatchParams struct {
	Mode        Mode  `json:"mode"`
	DurationSec int   `json:"duration_sec,omitempty"`
	TargetLines int   `json:"target_lines,omitempty"`
	Seed        int64 `json:"seed,omitempty"`
}

// ParseMode normalises a user-supplied mode name.
func ParseMode(s string) Mode {
	return Mode(strings.ToLower(strings.TrimSpace(s)))
}

// Merge returns p with every zero field filled from defaults.
func (p MatchParams) Merge(defaults MatchParams) MatchParams {
	if p.Mode == "" {
		p.Mode = defaults.Mode
	}
	if p.DurationSec == 0 {
		p.DurationSec = defaults.DurationSec
	}
	if p.TargetLines == 0 {
		p.TargetLines = defaults.TargetLines
	}
	if p.Seed == 0 {
		p.Seed = defaults.Seed
	}
	return p
}

// Rules is the welcome-message view of the parameters: only the value that
// applies to the mode is set.
type Rules struct {
	DurationSec *int `json:"duration_sec"`
	TargetLines *int `json:"target_lines"`
}

// Rules reports the mode-relevant parameter.
func (p MatchParams) Rules() Rules {
	var r Rules
	switch p.Mode {
	case ModeTimer:
		d := p.DurationSec
		r.DurationSec = &d
	case ModeLines:
		n := p.TargetLines
		r.TargetLines = &n
	}
	return r
}

func (p MatchParams) String() string {
	switch p.Mode {
	case ModeTimer:
		return fmt.Sprintf("%s(%ds)", p.Mode, p.DurationSec)
	case ModeLines:
		return fmt.Sprintf("%s(%d)", p.Mode, p.TargetLines)
	default:
		return string(p.Mode)
	}
}
