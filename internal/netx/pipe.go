package netx

import "net"

// Pipe returns two connected in-memory peers using the same framing. It is
// the socket-free transport for single-process tests and demos.
func Pipe(framer Framer, opts ...PeerOption) (*Peer, *Peer) {
	a, b := net.Pipe()
	return NewPeer(a, framer, opts...), NewPeer(b, framer, opts...)
}

// PipeConn returns a server-side connection and a client peer on the other
// end, for handing the connection to a Handler.
func PipeConn(framer Framer, opts ...PeerOption) (net.Conn, *Peer) {
	a, b := net.Pipe()
	return a, NewPeer(b, framer, opts...)
}
