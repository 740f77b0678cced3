package match

import (
	"github.com/rs/zerolog"

	"arcadehub/internal/netx"
)

// groupOutbox fans engine output out over a netx.Group.
type groupOutbox struct {
	peers *netx.Group[ConnID]
	log   zerolog.Logger
}

func (o groupOutbox) Send(to ConnID, v any) {
	if err := o.peers.Send(to, v); err != nil {
		o.log.Debug().Err(err).Uint64("conn", uint64(to)).Msg("send dropped")
	}
}

func (o groupOutbox) Broadcast(v any, except ...ConnID) {
	if _, err := o.peers.Broadcast(v, except...); err != nil {
		o.log.Warn().Err(err).Msg("broadcast failed")
	}
}

func (o groupOutbox) Relay(raw []byte, except ...ConnID) {
	o.peers.BroadcastFrame(netx.RawFrame(raw), except...)
}
