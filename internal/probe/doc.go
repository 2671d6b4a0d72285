// Package probe answers one question about a configured printer: is it
// reachable right now?
//
// Two strategies exist, selected by Protocol:
//
//   - raw9100: a TCP connection to host:port. Success is the handshake
//     completing within the timeout. Nothing is sent.
//   - ipp: an HTTP GET to http://host:port{path}. Success is a status in
//     [100, 400). If that attempt fails for any reason, one more GET is made
//     against http://host:port/ before giving up.
//
// Each attempt is bounded by Config.Timeout (2.5s by default), so an ipp probe
// can take up to twice that. Both strategies report the same Result shape.
//
// Probes never return an error for network trouble; refused connections,
// DNS failures, timeouts and bad status codes all become Result.OK == false.
// The only error Dispatcher.Probe returns is ErrUnsupportedProtocol.
//
// Probers hold no mutable state, so a Dispatcher can be shared freely.
// Observers (Prometheus Metrics, the InfluxDB writer) see every result.
//
// Usage:
//
//	d := probe.NewDispatcher(probe.Config{Timeout: cfg.ProbeTimeout()}, metrics)
//	res, err := d.Probe(ctx, probe.Target{Host: "10.0.0.5", Protocol: probe.ProtocolRaw9100})
package probe
