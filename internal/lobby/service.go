package lobby

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"arcadehub/internal/apperr"
	"arcadehub/internal/protocol"
	"arcadehub/pkg/types"
)

const tracerName = "arcadehub/internal/lobby"

// PortAllocator hands out ports for match processes.
type PortAllocator interface {
	Allocate() (int, error)
}

// Config holds the addresses the service advertises.
type Config struct {
	// PublicHost is sent to clients as the match host.
	PublicHost string
	// CallbackHost and CallbackPort are where match processes send reports.
	CallbackHost string
	CallbackPort int
}

// Deps are the collaborators of a Service. Reports may be nil.
type Deps struct {
	Rooms    *Registry
	Sessions *Sessions
	Catalog  *Catalog
	Ports    PortAllocator
	Launcher Launcher
	Reports  ReportSink
}

// Conn is the per-connection state of a lobby client.
type Conn struct {
	Identity string

	notifier Notifier
	chat     *rate.Limiter
}

// NewConn returns the state for a fresh, anonymous connection whose events
// go to n.
func NewConn(n Notifier) *Conn {
	return &Conn{
		notifier: n,
		chat:     rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
	}
}

// Service executes lobby commands.
type Service struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger

	tracer trace.Tracer
	now    func() time.Time
	seed   func() int64
}

// NewService wires a service.
func NewService(cfg Config, deps Deps, log zerolog.Logger) *Service {
	return &Service{
		cfg:    cfg,
		deps:   deps,
		log:    log.With().Str("component", "lobby").Logger(),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
		seed:   func() int64 { return rand.Int64N(1<<53) + 1 },
	}
}

// Handle executes one request. It never returns an error; failures are
// folded into the response.
func (s *Service) Handle(ctx context.Context, c *Conn, req protocol.Request) (resp protocol.Response) {
	ctx, span := s.tracer.Start(ctx, "lobby."+string(req.Command),
		trace.WithAttributes(
			attribute.String("arcade.command", string(req.Command)),
			attribute.String("arcade.room_id", req.Payload.RoomID),
			attribute.String("arcade.game_id", req.Payload.GameID),
		))
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("command", string(req.Command)).Msg("command panicked")
			resp = protocol.Response{Status: protocol.StatusError, Message: "internal server error"}
		}
		span.SetAttributes(attribute.String("arcade.status", string(resp.Status)))
		if resp.Status != protocol.StatusSuccess {
			span.SetStatus(codes.Error, resp.Message)
		}
		span.End()
	}()

	var err error
	switch req.Command {
	case protocol.CmdLogin:
		resp, err = s.login(c, req.Payload)
	case protocol.CmdLogout:
		resp, err = s.logout(c)
	case protocol.CmdListUsers:
		resp = protocol.Response{Status: protocol.StatusSuccess, Users: s.deps.Sessions.Online()}
	case protocol.CmdListGames:
		resp = protocol.Response{Status: protocol.StatusSuccess, Games: s.deps.Catalog.List()}
	case protocol.CmdListRooms:
		resp = protocol.Response{Status: protocol.StatusSuccess, Rooms: s.deps.Rooms.List()}
	case protocol.CmdGetRoomInfo:
		var info protocol.RoomInfo
		if info, err = s.deps.Rooms.Get(req.Payload.RoomID); err == nil {
			resp = protocol.Response{Status: protocol.StatusSuccess, RoomID: info.ID, Room: &info}
		}
	case protocol.CmdCreateRoom:
		resp, err = s.createRoom(c, req.Payload)
	case protocol.CmdJoinRoom:
		resp, err = s.joinRoom(c, req.Payload)
	case protocol.CmdLeaveRoom:
		resp, err = s.leaveRoom(c, req.Payload)
	case protocol.CmdLobbyChat:
		resp, err = s.chat(c, req.Payload)
	case protocol.CmdStartGame:
		resp, err = s.startGame(ctx, c, req.Payload)
	case protocol.CmdEndReport:
		resp, err = s.endReport(ctx, req.Payload)
	default:
		return protocol.Response{Status: protocol.StatusError, Message: "unknown command"}
	}
	if err != nil {
		return s.failure(req.Command, err)
	}
	return resp
}

func (s *Service) failure(cmd protocol.Command, err error) protocol.Response {
	if apperr.IsDomain(err) {
		s.log.Debug().Err(err).Str("command", string(cmd)).Msg("command failed")
		return protocol.Response{
			Status:  protocol.StatusFail,
			Code:    string(apperr.CodeOf(err)),
			Message: apperr.MessageOf(err),
		}
	}
	s.log.Error().Err(err).Str("command", string(cmd)).Msg("command error")
	return protocol.Response{Status: protocol.StatusError, Message: "internal server error"}
}

// Disconnect releases everything held by a connection: room memberships and
// the online identity.
func (s *Service) Disconnect(c *Conn) {
	if c.Identity == "" {
		return
	}
	s.leaveAll(c.Identity)
	s.deps.Sessions.Logout(c.Identity, c.notifier)
	s.log.Info().Str("user", c.Identity).Msg("disconnected")
	c.Identity = ""
}

func (s *Service) login(c *Conn, p protocol.Payload) (protocol.Response, error) {
	if c.Identity != "" {
		return protocol.Response{}, apperr.Conflict("already logged in as " + c.Identity)
	}
	name := strings.TrimSpace(p.Username)
	if err := s.deps.Sessions.Login(name, c.notifier); err != nil {
		return protocol.Response{}, err
	}
	c.Identity = name
	s.log.Info().Str("user", name).Msg("logged in")
	return protocol.OK("welcome " + name), nil
}

func (s *Service) logout(c *Conn) (protocol.Response, error) {
	if c.Identity == "" {
		return protocol.Response{}, apperr.PermissionDenied("not logged in")
	}
	s.Disconnect(c)
	return protocol.OK("logged out"), nil
}

func requireLogin(c *Conn) error {
	if c.Identity == "" {
		return apperr.PermissionDenied("login required")
	}
	return nil
}

func (s *Service) createRoom(c *Conn, p protocol.Payload) (protocol.Response, error) {
	if err := requireLogin(c); err != nil {
		return protocol.Response{}, err
	}
	if _, err := s.deps.Catalog.Get(p.GameID); err != nil {
		return protocol.Response{}, err
	}
	info, err := s.deps.Rooms.Create(p.GameID, c.Identity)
	if err != nil {
		return protocol.Response{}, err
	}
	s.log.Info().Str("room", info.ID).Str("game", info.GameID).Str("host", c.Identity).Msg("room created")
	return protocol.Response{Status: protocol.StatusSuccess, Message: "room created", RoomID: info.ID, Room: &info}, nil
}

func (s *Service) joinRoom(c *Conn, p protocol.Payload) (protocol.Response, error) {
	if err := requireLogin(c); err != nil {
		return protocol.Response{}, err
	}
	info, err := s.deps.Rooms.Join(p.RoomID, c.Identity)
	if err != nil {
		return protocol.Response{}, err
	}
	s.roomUpdated(info, c.Identity)
	return protocol.Response{Status: protocol.StatusSuccess, Message: "joined", RoomID: info.ID, Room: &info}, nil
}

func (s *Service) leaveRoom(c *Conn, p protocol.Payload) (protocol.Response, error) {
	if err := requireLogin(c); err != nil {
		return protocol.Response{}, err
	}
	d, err := s.deps.Rooms.Leave(p.RoomID, c.Identity)
	if err != nil {
		return protocol.Response{}, err
	}
	s.departed(d, c.Identity)
	return protocol.Response{Status: protocol.StatusSuccess, Message: "left", RoomID: d.Room.ID}, nil
}

func (s *Service) leaveAll(identity string) {
	for _, d := range s.deps.Rooms.LeaveAll(identity) {
		s.departed(d, identity)
	}
}

func (s *Service) departed(d Departure, identity string) {
	if d.Destroyed {
		s.log.Info().Str("room", d.Room.ID).Msg("room destroyed")
		return
	}
	s.roomUpdated(d.Room, identity)
}

func (s *Service) roomUpdated(info protocol.RoomInfo, actor string) {
	others := slices.DeleteFunc(slices.Clone(info.Members), func(m string) bool { return m == actor })
	info.Chat = nil
	s.deps.Sessions.Notify(others, protocol.Event{Event: protocol.EventRoomUpdated, RoomID: info.ID, Room: &info})
}

func (s *Service) chat(c *Conn, p protocol.Payload) (protocol.Response, error) {
	if err := requireLogin(c); err != nil {
		return protocol.Response{}, err
	}
	msg := strings.TrimSpace(p.Message)
	if msg == "" {
		return protocol.Response{}, apperr.InvalidArgument("message is required")
	}
	if !c.chat.Allow() {
		return protocol.Response{}, apperr.ResourceExhausted("chatting too fast")
	}
	line, members, err := s.deps.Rooms.Chat(p.RoomID, c.Identity, msg)
	if err != nil {
		return protocol.Response{}, err
	}
	s.deps.Sessions.Notify(members, protocol.Event{Event: protocol.EventRoomChat, RoomID: p.RoomID, Chat: line})
	return protocol.OK("sent"), nil
}

func (s *Service) startGame(ctx context.Context, c *Conn, p protocol.Payload) (protocol.Response, error) {
	if err := requireLogin(c); err != nil {
		return protocol.Response{}, err
	}
	info, err := s.StartMatch(ctx, p.RoomID, c.Identity, p.Params())
	if err != nil {
		return protocol.Response{}, err
	}
	return protocol.Response{
		Status:  protocol.StatusSuccess,
		Message: "game started",
		RoomID:  info.ID,
		Room:    &info,
		Match:   info.Match,
	}, nil
}

// StartMatch launches a match process for the room. Only the host may start;
// on any failure the room stays waiting and only the requester learns of it.
func (s *Service) StartMatch(ctx context.Context, roomID, requester string, req types.MatchParams) (protocol.RoomInfo, error) {
	ctx, span := s.tracer.Start(ctx, "lobby.launch", trace.WithAttributes(attribute.String("arcade.room_id", roomID)))
	defer span.End()

	room, err := s.deps.Rooms.BeginStart(roomID, requester)
	if err != nil {
		return protocol.RoomInfo{}, err
	}
	launched := false
	defer func() {
		if !launched {
			s.deps.Rooms.AbortStart(roomID)
		}
	}()

	game, err := s.deps.Catalog.Get(room.GameID)
	if err != nil {
		return protocol.RoomInfo{}, apperr.Wrap(apperr.CodeLaunchFailed, "missing manifest for "+room.GameID, err)
	}
	if err := game.Validate(); err != nil {
		return protocol.RoomInfo{}, err
	}
	params, err := game.ResolveParams(req)
	if err != nil {
		return protocol.RoomInfo{}, err
	}
	if params.Seed == 0 {
		params.Seed = s.seed()
	}
	port, err := s.deps.Ports.Allocate()
	if err != nil {
		return protocol.RoomInfo{}, err
	}

	match := protocol.MatchInfo{
		MatchID:  protocol.NewMatchID(roomID, s.now()),
		GameID:   game.ID,
		GameHost: s.cfg.PublicHost,
		GamePort: port,
		Token:    protocol.NewToken(),
		Params:   params,
	}
	span.SetAttributes(
		attribute.String("arcade.match_id", match.MatchID),
		attribute.String("arcade.game_id", game.ID),
		attribute.Int("arcade.port", port),
	)
	err = s.deps.Launcher.Launch(ctx, LaunchRequest{
		Game:      game,
		Port:      port,
		Token:     match.Token,
		RoomID:    roomID,
		MatchID:   match.MatchID,
		LobbyHost: s.cfg.CallbackHost,
		LobbyPort: s.cfg.CallbackPort,
		Params:    params,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if !apperr.IsDomain(err) {
			err = apperr.Wrap(apperr.CodeLaunchFailed, "launch "+game.ID, err)
		}
		return protocol.RoomInfo{}, err
	}
	launched = true

	info, err := s.deps.Rooms.MarkPlaying(roomID, match)
	if err != nil {
		return protocol.RoomInfo{}, err
	}
	s.log.Info().
		Str("room", roomID).
		Str("match", match.MatchID).
		Str("game", game.ID).
		Int("port", port).
		Str("params", params.String()).
		Msg("match launched")
	s.deps.Sessions.Notify(info.Members, protocol.Event{
		Event:  protocol.EventMatchStarted,
		RoomID: roomID,
		Match:  info.Match,
	})
	return info, nil
}

func (s *Service) endReport(ctx context.Context, p protocol.Payload) (protocol.Response, error) {
	r := p.Report
	if r == nil {
		return protocol.Response{}, apperr.InvalidArgument("report is required")
	}
	info, reopened, err := s.deps.Rooms.ConsumeReport(r.RoomID, r.MatchID)
	if err != nil {
		return protocol.Response{}, err
	}
	s.log.Info().
		Str("room", r.RoomID).
		Str("match", r.MatchID).
		Str("reason", r.Reason).
		Str("winner", r.Winner).
		Msg("match ended")
	if s.deps.Reports != nil {
		if err := s.deps.Reports.Record(ctx, *r); err != nil {
			s.log.Warn().Err(err).Str("match", r.MatchID).Msg("record report")
		}
	}
	if reopened {
		s.roomUpdated(info, "")
	}
	return protocol.OK(fmt.Sprintf("report for %s recorded", r.MatchID)), nil
}
