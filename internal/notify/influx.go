package notify

import (
	"context"
	"time"

	"github.com/nerrad567/workbench-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/workbench-core/internal/printer"
	"github.com/nerrad567/workbench-core/internal/probe"
)

// ProbeWriter is satisfied by *influxdb.Client.
type ProbeWriter interface {
	WriteProbeResult(s influxdb.ProbeSample)
	WriteConnectionChange(printerID string, connected bool, at time.Time)
}

// InfluxSink records probe outcomes and connection changes as time series.
type InfluxSink struct {
	w ProbeWriter
}

// NewInfluxSink creates a sink writing through w.
func NewInfluxSink(w ProbeWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// PrinterEvent implements printer.EventSink.
func (s *InfluxSink) PrinterEvent(_ context.Context, ev printer.Event) {
	if ev.Printer == nil {
		return
	}

	switch ev.Kind {
	case printer.EventProbed:
		if ev.Probe != nil {
			s.w.WriteProbeResult(Sample(ev.Printer.ID, ev.Printer.Protocol, *ev.Probe, ev.At))
		}
	case printer.EventConnected:
		s.w.WriteConnectionChange(ev.Printer.ID, true, ev.At)
	case printer.EventDisconnected:
		s.w.WriteConnectionChange(ev.Printer.ID, false, ev.At)
	case printer.EventDeleted:
		if ev.Printer.IsConnected {
			s.w.WriteConnectionChange(ev.Printer.ID, false, ev.At)
		}
	}
}

// Sample converts a probe result to an InfluxDB sample. printerID may be
// empty for targets that are not stored.
func Sample(printerID string, protocol probe.Protocol, res probe.Result, at time.Time) influxdb.ProbeSample {
	s := influxdb.ProbeSample{
		PrinterID: printerID,
		Protocol:  string(protocol),
		Method:    string(res.Method),
		OK:        res.OK,
		Elapsed:   res.Elapsed(),
		At:        at,
	}
	if res.Status != nil {
		s.Status = *res.Status
	}
	return s
}
