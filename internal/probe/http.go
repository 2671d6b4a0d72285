package probe

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"
)

// Any status in [minOKStatus, maxOKStatus) counts as reachable. Redirects
// are not followed: a 3xx already proves the device answers.
const (
	minOKStatus = 100
	maxOKStatus = 400

	// maxDrainBytes caps how much of a response body is read before close so
	// the connection can be reused without trusting the device's body size.
	maxDrainBytes = 4 << 10

	probeIdleConns       = 4
	probeIdleConnTimeout = 30 * time.Second
)

// HTTPProber checks ipp printers with a GET against the configured status
// path, falling back exactly once to the root path.
type HTTPProber struct {
	timeout time.Duration
	client  *http.Client
}

// NewHTTPProber creates an HTTPProber whose attempts are each bounded by timeout.
func NewHTTPProber(timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		timeout: timeout,
		client: &http.Client{
			Transport: newDirectTransport(timeout),
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// newDirectTransport dials printers directly. HTTP_PROXY and friends are
// ignored: a proxy answering for a LAN device would report it reachable.
func newDirectTransport(timeout time.Duration) *http.Transport {
	dialer := &net.Dialer{Timeout: timeout}
	return &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          probeIdleConns,
		MaxIdleConnsPerHost:   1,
		IdleConnTimeout:       probeIdleConnTimeout,
		ResponseHeaderTimeout: timeout,
		DisableCompression:    true,
	}
}

// Probe tries http://host:port{path}, then http://host:port/ if the first
// attempt fails for any reason.
func (p *HTTPProber) Probe(ctx context.Context, target Target) Result {
	start := time.Now()
	base := "http://" + target.Address()

	url := base + target.Path
	status, ok := p.attempt(ctx, url)
	if !ok {
		url = base + "/"
		status, ok = p.attempt(ctx, url)
	}

	res := Result{
		OK:        ok,
		Method:    MethodHTTP,
		URL:       &url,
		ElapsedMs: elapsedSince(start),
	}
	if status != 0 {
		res.Status = &status
	}
	return res
}

// attempt performs one bounded GET. status is 0 when no response arrived.
func (p *HTTPProber) attempt(ctx context.Context, url string) (status int, ok bool) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes)) //nolint:errcheck // Best effort drain

	return resp.StatusCode, resp.StatusCode >= minOKStatus && resp.StatusCode < maxOKStatus
}
