package match

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"arcadehub/internal/apperr"
	"arcadehub/internal/netx"
	"arcadehub/internal/platform/logging"
	"arcadehub/internal/protocol"
	"arcadehub/pkg/types"
)

// duelEngine admits two players; the first to send WIN wins.
type duelEngine struct {
	out     Outbox
	names   map[ConnID]string
	order   []ConnID
	ticks   int
	winner  string
	inputs  int
	dropped bool
}

func (e *duelEngine) Cadence() Cadence {
	return Cadence{Tick: 5 * time.Millisecond, Snapshot: 10 * time.Millisecond}
}

func (e *duelEngine) Connect(p Participant) error {
	if p.Role == protocol.RolePlayer && len(e.order) == 2 {
		return apperr.Conflict("match is full")
	}
	if p.Role == protocol.RolePlayer {
		e.names[p.ID] = p.Name
		e.order = append(e.order, p.ID)
	}
	e.out.Send(p.ID, protocol.Out(protocol.MsgWelcome, protocol.Welcome{Role: p.Role, Name: p.Name}))
	return nil
}

func (e *duelEngine) Disconnect(id ConnID) {
	if _, ok := e.names[id]; ok {
		e.dropped = true
	}
}

func (e *duelEngine) Input(id ConnID, in Inbound) {
	e.inputs++
	if in.Raw != nil {
		e.out.Relay(in.Raw, id)
		return
	}
	if in.Type == "WIN" {
		e.winner = e.names[id]
	}
}

func (e *duelEngine) Tick(time.Time) { e.ticks++ }

func (e *duelEngine) Snapshot() (any, bool) {
	return protocol.Out(protocol.MsgSnapshot, map[string]int{"ticks": e.ticks}), true
}

func (e *duelEngine) Termination() (Outcome, bool) {
	switch {
	case e.winner != "":
		return Outcome{Reason: "win", Winner: e.winner}, true
	case e.dropped:
		return Outcome{Reason: "opponent_left"}, true
	}
	return Outcome{}, false
}

var duel = Registration{
	Game:   "duel",
	Framer: netx.LengthPrefixed,
	New: func(cfg EngineConfig) (Engine, error) {
		return &duelEngine{out: cfg.Out, names: map[ConnID]string{}}, nil
	},
}

type MockReporter struct {
	mock.Mock
}

func (m *MockReporter) Report(ctx context.Context, r protocol.MatchReport) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

type running struct {
	addr    string
	outcome chan Outcome
	errs    chan error
	cancel  context.CancelFunc
}

func runHost(t *testing.T, reporter Reporter, cfg Config) running {
	t.Helper()
	h, err := NewHost(cfg, duel, reporter, logging.Nop())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	ln, err := netx.Listen(ctx, "127.0.0.1:0")
	require.NoError(t, err)
	r := running{addr: ln.Addr().String(), outcome: make(chan Outcome, 1), errs: make(chan error, 1), cancel: cancel}
	go func() {
		out, err := h.Run(ctx, ln)
		r.outcome <- out
		r.errs <- err
	}()
	t.Cleanup(cancel)
	return r
}

func connect(t *testing.T, addr string, hello protocol.Hello) *netx.Peer {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	p := netx.NewPeer(conn, netx.LengthPrefixed)
	t.Cleanup(func() { _ = p.Close() })
	require.NoError(t, p.Send(protocol.Out(protocol.MsgHello, hello)))
	return p
}

func readType(t *testing.T, p *netx.Peer, want protocol.MsgType) protocol.Envelope {
	t.Helper()
	_ = p.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var env protocol.Envelope
		require.NoError(t, p.ReadJSON(&env))
		if env.Type == want {
			return env
		}
	}
}

func baseConfig() Config {
	return Config{Token: "secret", RoomID: "100", MatchID: "100-1", Params: types.MatchParams{Mode: types.ModeSurvival}}
}

func TestHostRejectsBadToken(t *testing.T) {
	r := runHost(t, NopReporter{}, baseConfig())
	p := connect(t, r.addr, protocol.Hello{Role: protocol.RolePlayer, Token: "wrong", Name: "A"})

	env := readType(t, p, protocol.MsgReject)
	var rej protocol.Reject
	require.NoError(t, env.Decode(&rej))
	assert.Equal(t, "invalid token", rej.Reason)

	_, err := p.ReadFrame()
	assert.Error(t, err, "connection must be closed after REJECT")
}

func TestHostRejectsNonHello(t *testing.T) {
	r := runHost(t, NopReporter{}, baseConfig())
	conn, err := net.Dial("tcp", r.addr)
	require.NoError(t, err)
	p := netx.NewPeer(conn, netx.LengthPrefixed)
	defer p.Close()
	require.NoError(t, p.Send(protocol.Out(protocol.MsgInput, protocol.Input{Action: "LEFT"})))

	env := readType(t, p, protocol.MsgReject)
	var rej protocol.Reject
	require.NoError(t, env.Decode(&rej))
	assert.Equal(t, "expected HELLO", rej.Reason)
}

func TestHostRejectsWhenEngineIsFull(t *testing.T) {
	r := runHost(t, NopReporter{}, baseConfig())
	a := connect(t, r.addr, protocol.Hello{Role: protocol.RolePlayer, Token: "secret", Name: "A"})
	readType(t, a, protocol.MsgWelcome)
	b := connect(t, r.addr, protocol.Hello{Role: protocol.RolePlayer, Token: "secret", Name: "B"})
	readType(t, b, protocol.MsgWelcome)

	c := connect(t, r.addr, protocol.Hello{Role: protocol.RolePlayer, Token: "secret", Name: "C"})
	env := readType(t, c, protocol.MsgReject)
	var rej protocol.Reject
	require.NoError(t, env.Decode(&rej))
	assert.Equal(t, "match is full", rej.Reason)

	s := connect(t, r.addr, protocol.Hello{Role: protocol.RoleSpectator, Token: "secret", Name: "S"})
	readType(t, s, protocol.MsgWelcome)
	readType(t, s, protocol.MsgSnapshot)
}

func firstType(t *testing.T, p *netx.Peer) protocol.MsgType {
	t.Helper()
	_ = p.SetReadDeadline(time.Now().Add(3 * time.Second))
	var env protocol.Envelope
	require.NoError(t, p.ReadJSON(&env))
	return env.Type
}

func TestHandshakeReplyPrecedesSnapshots(t *testing.T) {
	r := runHost(t, NopReporter{}, baseConfig())
	a := connect(t, r.addr, protocol.Hello{Role: protocol.RolePlayer, Token: "secret", Name: "A"})
	assert.Equal(t, protocol.MsgWelcome, firstType(t, a))
	b := connect(t, r.addr, protocol.Hello{Role: protocol.RolePlayer, Token: "secret", Name: "B"})
	assert.Equal(t, protocol.MsgWelcome, firstType(t, b))

	// Snapshots go out every 10ms while these handshakes run.
	for i := 0; i < 20; i++ {
		s := connect(t, r.addr, protocol.Hello{Role: protocol.RoleSpectator, Token: "secret", Name: fmt.Sprintf("S%d", i)})
		assert.Equal(t, protocol.MsgWelcome, firstType(t, s), "spectator %d", i)
		_ = s.Close()

		c := connect(t, r.addr, protocol.Hello{Role: protocol.RolePlayer, Token: "secret", Name: fmt.Sprintf("C%d", i)})
		assert.Equal(t, protocol.MsgReject, firstType(t, c), "late player %d", i)
	}
}

func TestHostRunsToCompletionAndReports(t *testing.T) {
	reporter := new(MockReporter)
	var (
		mu  sync.Mutex
		got protocol.MatchReport
	)
	reporter.On("Report", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		mu.Lock()
		got = args.Get(1).(protocol.MatchReport)
		mu.Unlock()
	}).Return(nil).Once()

	r := runHost(t, reporter, baseConfig())
	a := connect(t, r.addr, protocol.Hello{Role: protocol.RolePlayer, Token: "secret", Name: "A"})
	readType(t, a, protocol.MsgWelcome)
	b := connect(t, r.addr, protocol.Hello{Role: protocol.RolePlayer, Token: "secret", Name: "B"})
	readType(t, b, protocol.MsgWelcome)

	require.NoError(t, a.SendRaw([]byte("D:1,2")))
	f := func() netx.Frame {
		_ = b.SetReadDeadline(time.Now().Add(3 * time.Second))
		for {
			f, err := b.ReadFrame()
			require.NoError(t, err)
			if f.Raw {
				return f
			}
		}
	}()
	assert.Equal(t, "D:1,2", string(f.Payload))

	require.NoError(t, b.Send(protocol.Out("WIN", nil)))

	env := readType(t, a, protocol.MsgGameOver)
	var over protocol.GameOver
	require.NoError(t, env.Decode(&over))
	assert.Equal(t, "win", over.Reason)
	assert.Equal(t, "B", over.Winner)
	assert.Equal(t, types.ModeSurvival, over.Mode)

	select {
	case out := <-r.outcome:
		assert.Equal(t, "B", out.Winner)
		assert.NoError(t, <-r.errs)
	case <-time.After(3 * time.Second):
		t.Fatal("host did not stop")
	}
	reporter.AssertExpectations(t)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "100", got.RoomID)
	assert.Equal(t, "100-1", got.MatchID)
	assert.Equal(t, "duel", got.GameID)
	assert.Equal(t, []string{"A", "B"}, got.Users)
	assert.Equal(t, "win", got.Reason)
}

func TestHostEndsWhenPlayerLeaves(t *testing.T) {
	r := runHost(t, NopReporter{}, baseConfig())
	a := connect(t, r.addr, protocol.Hello{Role: protocol.RolePlayer, Token: "secret", Name: "A"})
	readType(t, a, protocol.MsgWelcome)
	b := connect(t, r.addr, protocol.Hello{Role: protocol.RolePlayer, Token: "secret", Name: "B"})
	readType(t, b, protocol.MsgWelcome)

	require.NoError(t, b.Send(protocol.Out(protocol.MsgLeave, nil)))

	env := readType(t, a, protocol.MsgGameOver)
	var over protocol.GameOver
	require.NoError(t, env.Decode(&over))
	assert.Equal(t, "opponent_left", over.Reason)
}

func TestHostStopsOnCancel(t *testing.T) {
	r := runHost(t, NopReporter{}, baseConfig())
	r.cancel()
	select {
	case <-r.outcome:
		assert.ErrorIs(t, <-r.errs, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("host did not stop")
	}
}
