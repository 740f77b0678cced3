package tetris

import (
	"fmt"

	"arcadehub/internal/apperr"
	"arcadehub/pkg/types"
)

// Termination reasons.
const (
	ReasonTimeout      = "timeout"
	ReasonBothLose     = "both_lose"
	ReasonLoss         = "loss"
	ReasonLines        = "lines"
	ReasonOpponentLeft = "opponent_left"
	ReasonNoOpponent   = "no_opponent"
	ReasonAbandoned    = "abandoned"
)

const (
	defaultDurationSec = 120
	defaultTargetLines = 20
)

// normalizeParams fills defaults and clamps the timer.
func normalizeParams(p types.MatchParams) (types.MatchParams, error) {
	if p.Mode == "" {
		p.Mode = types.ModeTimer
	}
	switch p.Mode {
	case types.ModeTimer:
		if p.DurationSec == 0 {
			p.DurationSec = defaultDurationSec
		}
		p.DurationSec = max(p.DurationSec, types.MinDurationSec)
	case types.ModeLines:
		if p.TargetLines <= 0 {
			p.TargetLines = defaultTargetLines
		}
	case types.ModeSurvival:
	default:
		return p, apperr.InvalidArgument(fmt.Sprintf("tetris has no mode %q", p.Mode))
	}
	return p, nil
}

func outcomeMessage(reason, winner string) string {
	switch reason {
	case ReasonTimeout:
		return fmt.Sprintf("Time's up! %s wins on lines", winner)
	case ReasonLoss:
		return fmt.Sprintf("Someone topped out! %s wins", winner)
	case ReasonLines:
		return fmt.Sprintf("Target lines reached! %s wins", winner)
	case ReasonBothLose:
		return fmt.Sprintf("Both players topped out! %s wins on lines and score", winner)
	case ReasonOpponentLeft:
		return fmt.Sprintf("Opponent left. %s wins", winner)
	case ReasonNoOpponent:
		return "No opponent joined"
	case ReasonAbandoned:
		return "All players left"
	}
	return ""
}
