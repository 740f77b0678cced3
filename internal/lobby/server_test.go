package lobby

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcadehub/internal/apperr"
	"arcadehub/internal/netx"
	"arcadehub/internal/platform/logging"
	"arcadehub/internal/protocol"
)

func startServer(t *testing.T) (string, *Registry) {
	t.Helper()
	catalog, err := ParseCatalog(strings.NewReader(sampleCatalog))
	require.NoError(t, err)
	rooms := NewRegistry(0, 50)
	svc := NewService(Config{PublicHost: "127.0.0.1"}, Deps{
		Rooms:    rooms,
		Sessions: NewSessions(),
		Catalog:  catalog,
		Ports:    new(MockPorts),
		Launcher: new(MockLauncher),
	}, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	ln, err := netx.Listen(ctx, "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = NewServer(svc, logging.Nop()).Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ln.Addr().String(), rooms
}

func dial(t *testing.T, addr string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func call(t *testing.T, c *Client, cmd protocol.Command, p protocol.Payload) protocol.Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Do(ctx, cmd, p)
	require.NoError(t, err)
	return resp
}

func TestServerRoundTrip(t *testing.T) {
	addr, _ := startServer(t)
	a := dial(t, addr)
	b := dial(t, addr)

	require.Equal(t, protocol.StatusSuccess, call(t, a, protocol.CmdLogin, protocol.Payload{Username: "A"}).Status)
	require.Equal(t, protocol.StatusSuccess, call(t, b, protocol.CmdLogin, protocol.Payload{Username: "B"}).Status)

	games := call(t, a, protocol.CmdListGames, protocol.Payload{})
	assert.Len(t, games.Games, 2)

	created := call(t, a, protocol.CmdCreateRoom, protocol.Payload{GameID: "tetris"})
	require.Equal(t, protocol.StatusSuccess, created.Status)

	joined := call(t, b, protocol.CmdJoinRoom, protocol.Payload{RoomID: created.RoomID})
	require.Equal(t, protocol.StatusSuccess, joined.Status)

	select {
	case ev := <-a.Events():
		assert.Equal(t, protocol.EventRoomUpdated, ev.Event)
		assert.Equal(t, []string{"A", "B"}, ev.Room.Members)
	case <-time.After(2 * time.Second):
		t.Fatal("no ROOM_UPDATED event")
	}

	_, err := a.Call(context.Background(), protocol.CmdJoinRoom, protocol.Payload{RoomID: "999"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestServerCleansUpOnDisconnect(t *testing.T) {
	addr, rooms := startServer(t)
	a := dial(t, addr)
	b := dial(t, addr)
	call(t, a, protocol.CmdLogin, protocol.Payload{Username: "A"})
	call(t, b, protocol.CmdLogin, protocol.Payload{Username: "B"})
	room := call(t, a, protocol.CmdCreateRoom, protocol.Payload{GameID: "tetris"}).RoomID
	call(t, b, protocol.CmdJoinRoom, protocol.Payload{RoomID: room})

	require.NoError(t, a.Close())

	assert.Eventually(t, func() bool {
		info, err := rooms.Get(room)
		return err == nil && len(info.Members) == 1 && info.Host == "B"
	}, 2*time.Second, 10*time.Millisecond)

	users := call(t, b, protocol.CmdListUsers, protocol.Payload{})
	assert.Equal(t, []string{"B"}, users.Users)
}

func TestServerAnswersMalformedRequests(t *testing.T) {
	addr, _ := startServer(t)
	c := dial(t, addr)

	// bypass the client to put a bad payload on the wire
	require.NoError(t, c.peer.SendFrame(netx.Frame{Payload: []byte("{oops")}))
	select {
	case resp := <-c.replies:
		assert.Equal(t, protocol.StatusError, resp.Status)
		assert.Equal(t, "malformed request", resp.Message)
	case <-c.Done():
		t.Fatal("connection dropped on malformed request")
	case <-time.After(2 * time.Second):
		t.Fatal("no reply to malformed request")
	}

	ok := call(t, c, protocol.CmdListRooms, protocol.Payload{})
	assert.Equal(t, protocol.StatusSuccess, ok.Status)
}
