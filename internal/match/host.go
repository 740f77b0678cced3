package match

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"arcadehub/internal/apperr"
	"arcadehub/internal/netx"
	"arcadehub/internal/protocol"
	"arcadehub/pkg/types"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultCheckInterval    = 100 * time.Millisecond
	defaultReportTimeout    = 3 * time.Second
)

// Config describes one match.
type Config struct {
	Token   string
	RoomID  string
	MatchID string
	Params  types.MatchParams

	HandshakeTimeout time.Duration
	// CheckInterval is how often termination is polled between events.
	CheckInterval time.Duration
	// InputRate and InputBurst limit structured messages per connection.
	InputRate  rate.Limit
	InputBurst int
}

func (c *Config) defaults() {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = defaultCheckInterval
	}
	if c.InputRate <= 0 {
		c.InputRate = 30
	}
	if c.InputBurst <= 0 {
		c.InputBurst = 30
	}
}

// Host owns one engine for the lifetime of a match. Every engine call is
// made with mu held.
type Host struct {
	cfg      Config
	game     string
	framer   netx.Framer
	reporter Reporter
	log      zerolog.Logger
	now      func() time.Time

	peers  *netx.Group[ConnID]
	nextID atomic.Uint64
	poke   chan struct{}

	mu      sync.Mutex
	engine  Engine
	players []string
	over    bool
	created time.Time
}

// NewHost builds the engine from reg and prepares a host for it.
func NewHost(cfg Config, reg Registration, reporter Reporter, log zerolog.Logger) (*Host, error) {
	cfg.defaults()
	if reporter == nil {
		reporter = NopReporter{}
	}
	framer := reg.Framer
	if framer == nil {
		framer = netx.LengthPrefixed
	}
	h := &Host{
		cfg:      cfg,
		game:     reg.Game,
		framer:   framer,
		reporter: reporter,
		log: log.With().
			Str("game", reg.Game).
			Str("room", cfg.RoomID).
			Str("match", cfg.MatchID).
			Logger(),
		now:   time.Now,
		peers: netx.NewGroup[ConnID](),
		poke:  make(chan struct{}, 1),
	}
	eng, err := reg.New(EngineConfig{
		Params: cfg.Params,
		Out:    groupOutbox{peers: h.peers, log: h.log},
		Log:    h.log,
		Now:    func() time.Time { return h.now() },
	})
	if err != nil {
		return nil, fmt.Errorf("new %s engine: %w", reg.Game, err)
	}
	h.engine = eng
	h.created = h.now()
	return h, nil
}

// Run serves ln until the engine terminates or ctx is cancelled. On
// termination it broadcasts GAME_OVER, closes every connection and sends
// the report.
func (h *Host) Run(ctx context.Context, ln net.Listener) (Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var outcome Outcome
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return netx.Serve(gctx, ln, h.log, h.handleConn)
	})
	g.Go(func() error {
		out, err := h.loop(gctx)
		if err != nil {
			return err
		}
		outcome = out
		h.finish(ctx, out)
		cancel()
		return nil
	})
	if err := g.Wait(); err != nil {
		return Outcome{}, err
	}
	return outcome, nil
}

func (h *Host) loop(ctx context.Context) (Outcome, error) {
	cad := h.engine.Cadence()
	tick := newTicker(cad.Tick)
	defer tick.stop()
	snap := newTicker(cad.Snapshot)
	defer snap.stop()
	check := time.NewTicker(h.cfg.CheckInterval)
	defer check.Stop()

	for {
		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case <-tick.c:
			h.mu.Lock()
			h.engine.Tick(h.now())
			h.mu.Unlock()
		case <-snap.c:
			h.mu.Lock()
			if s, ok := h.engine.Snapshot(); ok {
				h.peers.Broadcast(s)
			}
			h.mu.Unlock()
		case <-check.C:
		case <-h.poke:
		}
		if out, done := h.terminated(); done {
			return out, nil
		}
	}
}

func (h *Host) terminated() (Outcome, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out, done := h.engine.Termination()
	if done {
		h.over = true
	}
	return out, done
}

func (h *Host) finish(ctx context.Context, out Outcome) {
	end := h.now()
	h.mu.Lock()
	users := append([]string(nil), h.players...)
	h.mu.Unlock()

	h.log.Info().Str("reason", out.Reason).Str("winner", out.Winner).Msg("match over")
	h.peers.Broadcast(protocol.Out(protocol.MsgGameOver, protocol.GameOver{
		Mode:    h.cfg.Params.Mode,
		Reason:  out.Reason,
		Winner:  out.Winner,
		Results: out.Results,
		Message: out.Message,
		At:      end.UnixMilli(),
	}))
	h.peers.CloseAll()

	start := out.StartedAt
	if start.IsZero() {
		start = h.created
	}
	report := protocol.MatchReport{
		RoomID:  h.cfg.RoomID,
		MatchID: h.cfg.MatchID,
		GameID:  h.game,
		Users:   users,
		StartAt: start.UnixMilli(),
		EndAt:   end.UnixMilli(),
		Mode:    h.cfg.Params.Mode,
		Reason:  out.Reason,
		Winner:  out.Winner,
		Results: out.Results,
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultReportTimeout)
	defer cancel()
	rctx, span := otel.Tracer("arcadehub/internal/match").Start(rctx, "match.report")
	span.SetAttributes(attribute.String("arcade.match_id", h.cfg.MatchID), attribute.String("arcade.reason", out.Reason))
	defer span.End()
	if err := h.reporter.Report(rctx, report); err != nil {
		h.log.Warn().Err(err).Msg("end-of-match report not delivered")
	}
}

func (h *Host) wake() {
	select {
	case h.poke <- struct{}{}:
	default:
	}
}

func (h *Host) handleConn(ctx context.Context, conn net.Conn) {
	id := ConnID(h.nextID.Add(1))
	log := h.log.With().Uint64("conn", uint64(id)).Str("addr", conn.RemoteAddr().String()).Logger()
	peer := netx.NewPeer(conn, h.framer, netx.WithLogger(log))
	stop := context.AfterFunc(ctx, func() { _ = peer.Close() })
	defer func() {
		stop()
		_ = peer.Close()
	}()

	p, err := h.handshake(peer, id)
	if err != nil {
		log.Info().Err(err).Msg("handshake rejected")
		_ = peer.Send(protocol.Out(protocol.MsgReject, protocol.Reject{Reason: apperr.MessageOf(err)}))
		return
	}
	log.Info().Str("name", p.Name).Str("role", string(p.Role)).Msg("joined")
	defer func() {
		h.peers.Remove(id)
		h.mu.Lock()
		if !h.over {
			h.engine.Disconnect(id)
		}
		h.mu.Unlock()
		h.wake()
		log.Info().Msg("left")
	}()

	limiter := rate.NewLimiter(h.cfg.InputRate, h.cfg.InputBurst)
	for {
		f, err := peer.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Debug().Err(err).Msg("read failed")
			}
			return
		}
		var in Inbound
		if f.Raw {
			in.Raw = f.Payload
		} else {
			if !limiter.Allow() {
				log.Debug().Msg("input rate exceeded, dropping message")
				continue
			}
			var env protocol.Envelope
			if err := netx.Unmarshal(f.Payload, &env); err != nil {
				log.Debug().Err(err).Msg("malformed message dropped")
				continue
			}
			if env.Type == protocol.MsgLeave {
				return
			}
			in.Type, in.Data = env.Type, env.Data
		}
		h.mu.Lock()
		if !h.over {
			h.engine.Input(id, in)
		}
		h.mu.Unlock()
		h.wake()
	}
}

func (h *Host) handshake(peer *netx.Peer, id ConnID) (Participant, error) {
	_ = peer.SetReadDeadline(h.now().Add(h.cfg.HandshakeTimeout))
	var env protocol.Envelope
	if err := peer.ReadJSON(&env); err != nil {
		return Participant{}, apperr.Wrap(apperr.CodeInvalidArgument, "handshake failed", err)
	}
	_ = peer.SetReadDeadline(time.Time{})
	if env.Type != protocol.MsgHello {
		return Participant{}, apperr.InvalidArgument("expected HELLO")
	}
	var hello protocol.Hello
	if err := env.Decode(&hello); err != nil {
		return Participant{}, apperr.InvalidArgument("malformed HELLO")
	}
	if hello.Token != h.cfg.Token {
		return Participant{}, apperr.PermissionDenied("invalid token")
	}
	p := Participant{ID: id, Name: hello.Name, Role: hello.Role}
	if p.Role == "" {
		p.Role = protocol.RolePlayer
	}
	if p.Role != protocol.RolePlayer && p.Role != protocol.RoleSpectator {
		return Participant{}, apperr.InvalidArgument("unknown role " + string(p.Role))
	}
	if p.Name == "" {
		p.Name = fmt.Sprintf("guest-%d", id)
	}

	// Snapshots are broadcast under mu, so joining the group while holding
	// it means the engine's welcome or a REJECT is always the first frame.
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.over {
		return Participant{}, apperr.Conflict("match is over")
	}
	h.peers.Add(id, peer)
	if err := h.engine.Connect(p); err != nil {
		h.peers.Remove(id)
		return Participant{}, err
	}
	if p.Role == protocol.RolePlayer {
		h.players = append(h.players, p.Name)
	}
	h.wake()
	return p, nil
}

// ticker is a time.Ticker that may be disabled.
type ticker struct {
	t *time.Ticker
	c <-chan time.Time
}

func newTicker(d time.Duration) ticker {
	if d <= 0 {
		return ticker{}
	}
	t := time.NewTicker(d)
	return ticker{t: t, c: t.C}
}

func (t ticker) stop() {
	if t.t != nil {
		t.t.Stop()
	}
}
