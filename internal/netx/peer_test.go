package netx

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcadehub/internal/platform/logging"
)

func TestPeerSendAndRead(t *testing.T) {
	a, b := Pipe(LengthPrefixed)
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.Send(sample{Type: "PING", N: 1}))
	require.NoError(t, a.SendRaw([]byte("CLR")))

	var got sample
	require.NoError(t, b.ReadJSON(&got))
	assert.Equal(t, sample{Type: "PING", N: 1}, got)

	f, err := b.ReadFrame()
	require.NoError(t, err)
	assert.True(t, f.Raw)
	assert.Equal(t, "CLR", string(f.Payload))
}

func TestPeerCloseFlushesQueue(t *testing.T) {
	a, b := Pipe(Lines)
	defer b.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, a.Send(sample{N: i}))
	}
	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Send(sample{}), ErrPeerClosed)
	assert.NoError(t, a.Close())

	for i := 0; i < 5; i++ {
		var got sample
		require.NoError(t, b.ReadJSON(&got))
		assert.Equal(t, i, got.N)
	}
	_, err := b.ReadFrame()
	assert.Error(t, err)

	select {
	case <-a.Done():
	case <-time.After(time.Second):
		t.Fatal("writer did not exit")
	}
}

func TestPeerDropsWhenQueueFull(t *testing.T) {
	a, b := Pipe(LengthPrefixed, WithQueueSize(1))
	defer b.Close()
	defer a.Close()

	// Nobody reads b, so the writer blocks on the first frame and the
	// queue fills behind it.
	var err error
	for i := 0; i < 10 && err == nil; i++ {
		err = a.Send(sample{N: i})
	}
	assert.ErrorIs(t, err, ErrSlowPeer)
}

func TestGroupBroadcastSkipsExcluded(t *testing.T) {
	g := NewGroup[string]()
	clients := map[string]*Peer{}
	for _, id := range []string{"a", "b", "c"} {
		server, client := Pipe(LengthPrefixed)
		g.Add(id, server)
		clients[id] = client
	}
	defer g.CloseAll()
	assert.Equal(t, 3, g.Len())

	n, err := g.Broadcast(sample{Type: "HI"}, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []string{"a", "c"} {
		var got sample
		require.NoError(t, clients[id].ReadJSON(&got))
		assert.Equal(t, "HI", got.Type)
	}

	_, ok := g.Remove("a")
	assert.True(t, ok)
	assert.Equal(t, 2, g.Len())
	_, ok = g.Get("a")
	assert.False(t, ok)
}

func TestServeEchoesOverTCP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ln, err := Listen(ctx, "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() {
		served <- Serve(ctx, ln, logging.Nop(), func(ctx context.Context, conn net.Conn) {
			p := NewPeer(conn, LengthPrefixed)
			defer p.Close()
			var in sample
			if err := p.ReadJSON(&in); err != nil {
				return
			}
			in.N++
			_ = p.Send(in)
		})
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	c := NewPeer(conn, LengthPrefixed)
	defer c.Close()

	require.NoError(t, c.Send(sample{Type: "ECHO", N: 41}))
	var out sample
	require.NoError(t, c.ReadJSON(&out))
	assert.Equal(t, 42, out.N)

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}
