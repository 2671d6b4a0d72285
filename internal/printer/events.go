package printer

import (
	"context"
	"time"

	"github.com/nerrad567/workbench-core/internal/probe"
)

// EventKind names a registry change. The values double as WebSocket
// event types.
type EventKind string

// Event kinds.
const (
	EventCreated      EventKind = "printer.created"
	EventUpdated      EventKind = "printer.updated"
	EventDeleted      EventKind = "printer.deleted"
	EventConnected    EventKind = "printer.connected"
	EventDisconnected EventKind = "printer.disconnected"

	// EventProbed fires after every probe of a stored printer, whether it
	// changed state or not.
	EventProbed EventKind = "printer.probed"
)

// Event describes one change. Printer is a copy owned by the receiver.
type Event struct {
	Kind    EventKind     `json:"type"`
	Printer *Printer      `json:"printer"`
	Probe   *probe.Result `json:"probe,omitempty"`
	At      time.Time     `json:"at"`
}

// EventSink receives events after the change has been committed.
// Implementations must return quickly; they run on the request goroutine.
type EventSink interface {
	PrinterEvent(ctx context.Context, ev Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, ev Event)

// PrinterEvent calls f(ctx, ev).
func (f EventSinkFunc) PrinterEvent(ctx context.Context, ev Event) {
	f(ctx, ev)
}

func (m *Manager) emit(ctx context.Context, ev Event) {
	if len(m.sinks) == 0 {
		return
	}
	ev.At = m.now()
	for _, sink := range m.sinks {
		e := ev
		e.Printer = ev.Printer.Clone()
		sink.PrinterEvent(ctx, e)
	}
}
