package match

import (
	"context"

	"arcadehub/internal/lobby"
	"arcadehub/internal/protocol"
)

// Reporter delivers the end-of-match report.
type Reporter interface {
	Report(ctx context.Context, r protocol.MatchReport) error
}

// LobbyReporter sends END_REPORT to the orchestrator over a fresh
// connection.
type LobbyReporter struct {
	Addr string
}

func (l LobbyReporter) Report(ctx context.Context, r protocol.MatchReport) error {
	c, err := lobby.Dial(ctx, l.Addr)
	if err != nil {
		return err
	}
	defer c.Close()
	_, err = c.Call(ctx, protocol.CmdEndReport, protocol.Payload{Report: &r})
	return err
}

// NopReporter discards reports.
type NopReporter struct{}

func (NopReporter) Report(context.Context, protocol.MatchReport) error { return nil }
