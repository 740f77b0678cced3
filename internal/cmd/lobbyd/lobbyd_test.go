package lobbyd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
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

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig(flag.NewFlagSet("lobby", flag.ContinueOnError), nil)
	require.NoError(t, err)
	assert.Equal(t, ":5555", cfg.ListenAddr)
	assert.Equal(t, 256, cfg.MaxRooms)
	assert.Equal(t, 50, cfg.ChatBacklog)
	assert.Equal(t, 10000, cfg.PortMin)
	assert.Equal(t, 20000, cfg.PortMax)
	assert.Empty(t, cfg.StatusAddr)
	assert.Empty(t, cfg.HistoryDB)
}

func TestParseConfigEnvAndFlags(t *testing.T) {
	t.Setenv("ARCADE_LOBBY_MAX_ROOMS", "8")
	t.Setenv("ARCADE_LOBBY_STATUS_ADDR", ":8080")
	cfg, err := ParseConfig(flag.NewFlagSet("lobby", flag.ContinueOnError), []string{"-addr", ":6000", "-history-db", "h.db"})
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.MaxRooms)
	assert.Equal(t, ":8080", cfg.StatusAddr)
	assert.Equal(t, ":6000", cfg.ListenAddr)
	assert.Equal(t, "h.db", cfg.HistoryDB)
}

func TestParseConfigRejectsPortRange(t *testing.T) {
	_, err := ParseConfig(flag.NewFlagSet("lobby", flag.ContinueOnError), []string{"-port-min", "200", "-port-max", "100"})
	assert.Error(t, err)
}

func TestAppServes(t *testing.T) {
	cfg, err := ParseConfig(flag.NewFlagSet("lobby", flag.ContinueOnError), []string{"-history-db", ":memory:"})
	require.NoError(t, err)
	catalog := lobby.NewCatalog(lobby.Game{
		ID: "tetris", Name: "Tetris", MinPlayers: 1, MaxPlayers: 2,
		Modes:    []string{"timer"},
		Defaults: types.MatchParams{Mode: types.ModeTimer, DurationSec: 60},
		Server:   lobby.ServerSpec{Command: "arcadematch", ArgsTemplate: "--port {port} --token {token}"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	ln, err := netx.Listen(ctx, "127.0.0.1:0")
	require.NoError(t, err)
	statusLn, err := netx.Listen(ctx, "127.0.0.1:0")
	require.NoError(t, err)

	app, err := NewApp(cfg, catalog, 0, logging.Nop())
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx, ln, statusLn) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
		assert.NoError(t, app.Close())
	})

	callCtx, callCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer callCancel()
	c, err := lobby.Dial(callCtx, ln.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Call(callCtx, protocol.CmdLogin, protocol.Payload{Username: "alice"})
	require.NoError(t, err)
	resp, err := c.Call(callCtx, protocol.CmdCreateRoom, protocol.Payload{GameID: "tetris"})
	require.NoError(t, err)
	assert.Equal(t, "100", resp.RoomID)

	games, err := c.Call(callCtx, protocol.CmdListGames, protocol.Payload{})
	require.NoError(t, err)
	require.Len(t, games.Games, 1)

	res, err := http.Get(fmt.Sprintf("http://%s/rooms", statusLn.Addr()))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	var rooms struct {
		Rooms []protocol.RoomInfo `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(body, &rooms))
	require.Len(t, rooms.Rooms, 1)
	assert.Equal(t, []string{"alice"}, rooms.Rooms[0].Members)
}
