package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by Workbench.
const (
	MeasurementProbe      = "printer_probe"
	MeasurementConnection = "printer_connection"
)

// ProbeSample is one reachability check against a printer.
type ProbeSample struct {
	PrinterID string
	Protocol  string
	Method    string
	OK        bool
	// Status is the HTTP status of the final attempt; zero for TCP probes
	// and for HTTP probes that got no response.
	Status  int
	Elapsed time.Duration
	At      time.Time
}

// WriteProbeResult records a probe outcome. The write is non-blocking.
//
//	client.WriteProbeResult(influxdb.ProbeSample{
//	    PrinterID: p.ID, Protocol: "ipp", Method: "http",
//	    OK: true, Status: 200, Elapsed: 42 * time.Millisecond,
//	})
func (c *Client) WriteProbeResult(s ProbeSample) {
	c.write(probePoint(s))
}

// WriteConnectionChange records a printer becoming connected or disconnected.
func (c *Client) WriteConnectionChange(printerID string, connected bool, at time.Time) {
	c.write(connectionPoint(printerID, connected, at))
}

// write queues p; points written after Close are dropped.
func (c *Client) write(p *write.Point) {
	if c.IsConnected() {
		c.writes.WritePoint(p)
	}
}

func probePoint(s ProbeSample) *write.Point {
	at := s.At
	if at.IsZero() {
		at = time.Now()
	}

	tags := map[string]string{
		"protocol": s.Protocol,
		"method":   s.Method,
	}
	// Ad-hoc tests of unsaved targets have no printer id.
	if s.PrinterID != "" {
		tags["printer_id"] = s.PrinterID
	}

	fields := map[string]interface{}{
		"ok":         s.OK,
		"elapsed_ms": s.Elapsed.Milliseconds(),
	}
	if s.Status != 0 {
		fields["status"] = s.Status
	}

	return write.NewPoint(MeasurementProbe, tags, fields, at)
}

func connectionPoint(printerID string, connected bool, at time.Time) *write.Point {
	if at.IsZero() {
		at = time.Now()
	}
	return write.NewPoint(
		MeasurementConnection,
		map[string]string{"printer_id": printerID},
		map[string]interface{}{"connected": connected},
		at,
	)
}
