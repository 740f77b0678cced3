package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcadehub/internal/lobby"
	"arcadehub/internal/netx"
	"arcadehub/internal/platform/logging"
	"arcadehub/internal/protocol"
	"arcadehub/pkg/types"
)

type buffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (b *buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

func startLobby(t *testing.T) string {
	t.Helper()
	catalog := lobby.NewCatalog(lobby.Game{
		ID: "tetris", Name: "Tetris Duel", MinPlayers: 1, MaxPlayers: 2,
		Modes:    []string{"timer", "lines"},
		Defaults: types.MatchParams{Mode: types.ModeTimer, DurationSec: 120},
		Server:   lobby.ServerSpec{Command: "arcadematch", ArgsTemplate: "--port {port} --token {token}"},
	})
	svc := lobby.NewService(lobby.Config{PublicHost: "127.0.0.1"}, lobby.Deps{
		Rooms:    lobby.NewRegistry(0, 0),
		Sessions: lobby.NewSessions(),
		Catalog:  catalog,
		Ports:    lobby.NewPortProber("127.0.0.1", 30000, 40000, 10),
		Launcher: lobby.NewExecLauncher(logging.Nop()),
	}, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	ln, err := netx.Listen(ctx, "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = lobby.NewServer(svc, logging.Nop()).Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ln.Addr().String()
}

func newClient(t *testing.T, addr string) *lobby.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := lobby.Dial(ctx, addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestREPLSession(t *testing.T) {
	addr := startLobby(t)
	var out buffer
	r := newREPL(newClient(t, addr), &out, 2*time.Second)

	script := strings.Join([]string{
		"help",
		"rooms",
		"create tetris",
		"login alice",
		"games",
		"create tetris",
		"rooms",
		"chat 100 hello there",
		"info 100",
		"start 100 chess",
		"frobnicate",
		"quit",
		"users",
	}, "\n")
	r.run(context.Background(), strings.NewReader(script))

	got := out.String()
	assert.Contains(t, got, "commands:")
	assert.Contains(t, got, "(no rooms)")
	assert.Contains(t, got, "fail [PERMISSION_DENIED]")
	assert.Contains(t, got, `- tetris "Tetris Duel" players=1-2 modes=timer,lines`)
	assert.Contains(t, got, "room created")
	assert.Contains(t, got, "- 100 game=tetris host=alice status=waiting members=alice")
	assert.Contains(t, got, "[alice]: hello there")
	assert.Contains(t, got, "fail [INVALID_ARGUMENT]")
	assert.Contains(t, got, "unknown command")
	assert.Contains(t, got, "bye")
	assert.NotContains(t, got, "- alice\n", "commands after quit are not run")
}

func TestREPLPrintsEvents(t *testing.T) {
	addr := startLobby(t)
	host := newClient(t, addr)
	_, err := host.Call(context.Background(), protocol.CmdLogin, protocol.Payload{Username: "alice"})
	require.NoError(t, err)
	created, err := host.Call(context.Background(), protocol.CmdCreateRoom, protocol.Payload{GameID: "tetris"})
	require.NoError(t, err)

	var out buffer
	r := newREPL(newClient(t, addr), &out, 2*time.Second)
	r.run(context.Background(), strings.NewReader("login bob\njoin "+created.RoomID+"\n"))

	_, err = host.Call(context.Background(), protocol.CmdLobbyChat, protocol.Payload{RoomID: created.RoomID, Message: "welcome bob"})
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "[100] [alice]: welcome bob")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "members: alice, bob")
}

