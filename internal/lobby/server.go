package lobby

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/rs/zerolog"

	"arcadehub/internal/netx"
	"arcadehub/internal/protocol"
)

// Server speaks the lobby protocol over length-prefixed TCP.
type Server struct {
	svc *Service
	log zerolog.Logger
}

// NewServer returns a server executing commands on svc.
func NewServer(svc *Service, log zerolog.Logger) *Server {
	return &Server{svc: svc, log: log.With().Str("component", "lobby-server").Logger()}
}

// Serve accepts lobby clients on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	return netx.Serve(ctx, ln, s.log, s.HandleConn)
}

// HandleConn runs the request loop of one client. Losing the connection has
// the same effect as leaving every room and logging out.
func (s *Server) HandleConn(ctx context.Context, conn net.Conn) {
	log := s.log.With().Str("conn", conn.RemoteAddr().String()).Logger()
	peer := netx.NewPeer(conn, netx.LengthPrefixed, netx.WithLogger(log))
	stop := context.AfterFunc(ctx, func() { _ = peer.Close() })
	state := NewConn(peer)
	defer func() {
		stop()
		s.svc.Disconnect(state)
		_ = peer.Close()
	}()

	log.Debug().Msg("client connected")
	for {
		f, err := peer.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Debug().Err(err).Msg("read failed")
			}
			return
		}
		var req protocol.Request
		if f.Raw {
			s.reply(peer, protocol.Response{Status: protocol.StatusError, Message: "raw frames are not accepted"})
			continue
		}
		if err := netx.Unmarshal(f.Payload, &req); err != nil {
			log.Debug().Err(err).Msg("malformed request")
			s.reply(peer, protocol.Response{Status: protocol.StatusError, Message: "malformed request"})
			continue
		}
		s.reply(peer, s.svc.Handle(ctx, state, req))
	}
}

func (s *Server) reply(p *netx.Peer, resp protocol.Response) {
	if err := p.Send(resp); err != nil {
		s.log.Debug().Err(err).Msg("reply dropped")
	}
}
