package lobby

import (
	"fmt"
	"math/rand/v2"
	"net"
	"strconv"

	"arcadehub/internal/apperr"
)

// PortProber finds a bindable port by probing random candidates. It keeps
// no reservation table; a port can still be taken between the probe and the
// match process binding it.
type PortProber struct {
	Host     string
	Min, Max int
	Attempts int

	listen func(network, addr string) (net.Listener, error)
	intn   func(n int) int
}

// NewPortProber probes ports in [min, max] on host.
func NewPortProber(host string, min, max, attempts int) *PortProber {
	return &PortProber{
		Host:     host,
		Min:      min,
		Max:      max,
		Attempts: attempts,
		listen:   net.Listen,
		intn:     rand.IntN,
	}
}

// Allocate returns a port that was free when probed.
func (p *PortProber) Allocate() (int, error) {
	if p.Max < p.Min || p.Attempts <= 0 {
		return 0, apperr.ResourceExhausted("no port range configured")
	}
	span := p.Max - p.Min + 1
	for i := 0; i < p.Attempts; i++ {
		port := p.Min + p.intn(span)
		ln, err := p.listen("tcp", net.JoinHostPort(p.Host, strconv.Itoa(port)))
		if err != nil {
			continue
		}
		_ = ln.Close()
		return port, nil
	}
	return 0, apperr.ResourceExhausted(fmt.Sprintf("no free port in %d-%d after %d attempts", p.Min, p.Max, p.Attempts))
}
