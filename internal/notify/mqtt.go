package notify

import (
	"context"
	"time"

	"github.com/nerrad567/workbench-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/workbench-core/internal/printer"
)

// Logger is the subset of logging.Logger the sinks use.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// JSONPublisher is satisfied by *mqtt.Client.
type JSONPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// statePayload is the retained per-printer state message.
type statePayload struct {
	*printer.Printer
	Deleted bool      `json:"deleted,omitempty"`
	At      time.Time `json:"at"`
}

// MQTTSink mirrors registry changes onto retained MQTT topics.
type MQTTSink struct {
	pub    JSONPublisher
	topics mqtt.Topics
	logger Logger
}

// NewMQTTSink creates a sink publishing through pub.
func NewMQTTSink(pub JSONPublisher) *MQTTSink {
	return &MQTTSink{pub: pub, logger: noopLogger{}}
}

// SetLogger sets the logger for publish failures.
func (s *MQTTSink) SetLogger(l Logger) {
	s.logger = l
}

// PrinterEvent implements printer.EventSink.
func (s *MQTTSink) PrinterEvent(_ context.Context, ev printer.Event) {
	if ev.Printer == nil {
		return
	}
	id := ev.Printer.ID

	// Probes do not change the record; publish the event only.
	if ev.Kind != printer.EventProbed {
		state := statePayload{Printer: ev.Printer, Deleted: ev.Kind == printer.EventDeleted, At: ev.At}
		s.publish(s.topics.PrinterState(id), state, true)
	}

	// An edit to the connected printer may move its address, so the
	// retained active summary is refreshed along with the state.
	switch {
	case ev.Kind == printer.EventConnected,
		ev.Kind == printer.EventUpdated && ev.Printer.IsConnected:
		s.publish(s.topics.PrinterActive(), ev.Printer.Summary(), true)
	case ev.Kind == printer.EventDisconnected,
		ev.Kind == printer.EventDeleted && ev.Printer.IsConnected:
		s.publish(s.topics.PrinterActive(), struct{}{}, true)
	}

	s.publish(s.topics.PrinterEvent(string(ev.Kind)), ev, false)
}

func (s *MQTTSink) publish(topic string, v any, retained bool) {
	if err := s.pub.PublishJSON(topic, v, retained); err != nil {
		s.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
	}
}
