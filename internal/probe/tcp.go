package probe

import (
	"context"
	"net"
	"time"
)

// TCPProber checks raw9100 printers by completing a TCP handshake.
// No bytes are written; the connection is closed as soon as it opens.
type TCPProber struct {
	timeout time.Duration
}

// NewTCPProber creates a TCPProber bounded by timeout.
func NewTCPProber(timeout time.Duration) *TCPProber {
	return &TCPProber{timeout: timeout}
}

// Probe dials target once. There are no retries.
func (p *TCPProber) Probe(ctx context.Context, target Target) Result {
	start := time.Now()
	res := Result{Method: MethodTCP}

	dialer := net.Dialer{Timeout: p.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", target.Address())
	if err == nil {
		conn.Close() //nolint:errcheck // Reachability already established
		res.OK = true
	}

	res.ElapsedMs = elapsedSince(start)
	return res
}
