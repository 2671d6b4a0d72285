package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Protocol selects the reachability strategy for a printer.
type Protocol string

// Supported protocols.
const (
	// ProtocolIPP is an application-level check: HTTP GET against a status path.
	ProtocolIPP Protocol = "ipp"

	// ProtocolRaw9100 is a bare byte-stream check: the TCP handshake is the signal.
	ProtocolRaw9100 Protocol = "raw9100"
)

// AllProtocols returns every supported protocol.
func AllProtocols() []Protocol {
	return []Protocol{ProtocolIPP, ProtocolRaw9100}
}

// Valid reports whether p is a supported protocol.
func (p Protocol) Valid() bool {
	return p == ProtocolIPP || p == ProtocolRaw9100
}

// DefaultPort returns the conventional port for p, or 0 if p is unknown.
func (p Protocol) DefaultPort() int {
	switch p {
	case ProtocolIPP:
		return DefaultIPPPort
	case ProtocolRaw9100:
		return DefaultRawPort
	default:
		return 0
	}
}

// Method names the transport a probe actually used.
type Method string

// Probe methods.
const (
	MethodTCP  Method = "tcp"
	MethodHTTP Method = "http"
)

// Defaults applied by Target.Normalize and the probers.
const (
	DefaultTimeout = 2500 * time.Millisecond
	DefaultIPPPort = 631
	DefaultRawPort = 9100
	DefaultIPPPath = "/status"
)

// ErrUnsupportedProtocol is returned by Dispatcher.Probe for a protocol with
// no registered strategy.
var ErrUnsupportedProtocol = errors.New("probe: unsupported protocol")

// Target is what a probe is aimed at.
type Target struct {
	Host     string   `json:"host"`
	Protocol Protocol `json:"protocol"`
	Port     int      `json:"port"`
	Path     string   `json:"path,omitempty"`
}

// Normalize returns a copy of t with defaults applied: a zero port becomes
// the protocol's default and a blank ipp path becomes DefaultIPPPath.
// Path is cleared for raw9100 since only ipp consults it.
func (t Target) Normalize() Target {
	t.Host = strings.TrimSpace(t.Host)
	if t.Port == 0 {
		t.Port = t.Protocol.DefaultPort()
	}

	if t.Protocol != ProtocolIPP {
		t.Path = ""
		return t
	}

	t.Path = strings.TrimSpace(t.Path)
	if t.Path == "" {
		t.Path = DefaultIPPPath
	}
	if !strings.HasPrefix(t.Path, "/") {
		t.Path = "/" + t.Path
	}
	return t
}

// Address returns host:port, bracketing IPv6 literals.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

func (t Target) String() string {
	return fmt.Sprintf("%s://%s%s", t.Protocol, t.Address(), t.Path)
}

// Result is the uniform outcome of a probe, whichever strategy produced it.
type Result struct {
	OK     bool   `json:"ok"`
	Method Method `json:"method"`

	// Status is the HTTP status of the final attempt, when one was received.
	Status *int `json:"status,omitempty"`

	// URL is the URL of the final HTTP attempt.
	URL *string `json:"url,omitempty"`

	// ElapsedMs runs from the start of the first attempt to final resolution.
	ElapsedMs int64 `json:"elapsedMs"`
}

// Elapsed returns ElapsedMs as a duration.
func (r Result) Elapsed() time.Duration {
	return time.Duration(r.ElapsedMs) * time.Millisecond
}

// Prober is one reachability strategy. Implementations never return an
// error: every network failure resolves to Result.OK == false.
type Prober interface {
	Probe(ctx context.Context, target Target) Result
}

// Observer receives every completed probe. Observers are write-only sinks
// (metrics, time-series) and must not block.
type Observer interface {
	ObserveProbe(target Target, result Result)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(target Target, result Result)

// ObserveProbe calls f(target, result).
func (f ObserverFunc) ObserveProbe(target Target, result Result) {
	f(target, result)
}

// Dispatcher routes a Target to the strategy registered for its protocol.
// It is safe for concurrent use once constructed.
type Dispatcher struct {
	probers   map[Protocol]Prober
	observers []Observer
	ippPath   string
}

// Config holds the knobs shared by the built-in probers.
type Config struct {
	// Timeout bounds each individual attempt. Zero means DefaultTimeout.
	Timeout time.Duration

	// IPPPath replaces a blank ipp path. Empty means DefaultIPPPath.
	IPPPath string
}

// NewDispatcher creates a Dispatcher with the raw9100 (TCP) and ipp (HTTP)
// strategies registered.
func NewDispatcher(cfg Config, observers ...Observer) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Dispatcher{
		probers: map[Protocol]Prober{
			ProtocolRaw9100: NewTCPProber(timeout),
			ProtocolIPP:     NewHTTPProber(timeout),
		},
		observers: observers,
		ippPath:   cfg.IPPPath,
	}
}

// Register replaces the strategy for protocol. Intended for wiring and
// tests; not safe to call concurrently with Probe.
func (d *Dispatcher) Register(protocol Protocol, p Prober) {
	d.probers[protocol] = p
}

// Probe normalises target and runs the matching strategy.
//
// The probe is detached from ctx's cancellation: once started it runs to
// its own timeout even if the caller goes away, and the result is simply
// discarded. Values carried by ctx (request IDs) are preserved.
func (d *Dispatcher) Probe(ctx context.Context, target Target) (Result, error) {
	if target.Protocol == ProtocolIPP && strings.TrimSpace(target.Path) == "" {
		target.Path = d.ippPath
	}
	target = target.Normalize()

	p, ok := d.probers[target.Protocol]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, target.Protocol)
	}

	res := p.Probe(context.WithoutCancel(ctx), target)
	for _, o := range d.observers {
		o.ObserveProbe(target, res)
	}
	return res, nil
}

func elapsedSince(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
