package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/workbench-core/internal/audit"
	"github.com/nerrad567/workbench-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/workbench-core/internal/printer"
	"github.com/nerrad567/workbench-core/internal/probe"
)

// Commands accepted on workbench/printer/{id}/command.
const (
	CommandConnect    = "connect"
	CommandDisconnect = "disconnect"
)

// CommandActor is recorded in the audit trail for MQTT-initiated changes.
const CommandActor = "mqtt"

// commandTimeout bounds one command, including the connect probe and its
// ipp fallback.
const commandTimeout = 15 * time.Second

// ErrUnknownCommand is returned for payloads other than connect/disconnect.
var ErrUnknownCommand = errors.New("unknown printer command")

// Subscriber is satisfied by *mqtt.Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// PrinterController is the part of *printer.Manager commands drive.
type PrinterController interface {
	Connect(ctx context.Context, id string) (*printer.Printer, probe.Result, error)
	Disconnect(ctx context.Context, id string) (*printer.Printer, error)
}

// CommandListener turns MQTT command messages into Connect and Disconnect
// calls. Results reach subscribers the usual way, through the sinks.
type CommandListener struct {
	sub    Subscriber
	ctrl   PrinterController
	qos    byte
	topics mqtt.Topics
	logger Logger

	// base is the context commands run under; set by Start.
	base context.Context
}

// NewCommandListener creates a listener. Call Start to subscribe.
func NewCommandListener(sub Subscriber, ctrl PrinterController, qos byte) *CommandListener {
	return &CommandListener{
		sub:    sub,
		ctrl:   ctrl,
		qos:    qos,
		logger: noopLogger{},
		base:   context.Background(),
	}
}

// SetLogger sets the logger for rejected commands.
func (l *CommandListener) SetLogger(logger Logger) {
	l.logger = logger
}

// Start subscribes to every printer's command topic. Commands run under
// ctx, so cancelling it aborts any in flight.
func (l *CommandListener) Start(ctx context.Context) error {
	l.base = ctx
	if err := l.sub.Subscribe(l.topics.AllPrinterCommands(), l.qos, l.Handle); err != nil {
		return fmt.Errorf("subscribing to printer commands: %w", err)
	}
	return nil
}

// Stop unsubscribes.
func (l *CommandListener) Stop() error {
	return l.sub.Unsubscribe(l.topics.AllPrinterCommands())
}

// Handle executes one command message. The payload is either a bare word
// ("connect") or JSON ({"action": "connect"}).
func (l *CommandListener) Handle(topic string, payload []byte) error {
	id, ok := l.topics.CommandPrinterID(topic)
	if !ok {
		return fmt.Errorf("%w: topic %s", ErrUnknownCommand, topic)
	}
	action, err := parseCommand(payload)
	if err != nil {
		l.logger.Warn("rejected printer command", "printer_id", id, "error", err)
		return err
	}

	ctx, cancel := context.WithTimeout(audit.WithActor(l.base, CommandActor), commandTimeout)
	defer cancel()

	switch action {
	case CommandConnect:
		_, res, err := l.ctrl.Connect(ctx, id)
		if err != nil {
			l.logger.Warn("printer connect command failed", "printer_id", id, "probe_ok", res.OK, "error", err)
			return fmt.Errorf("connect %s: %w", id, err)
		}
	case CommandDisconnect:
		if _, err := l.ctrl.Disconnect(ctx, id); err != nil {
			l.logger.Warn("printer disconnect command failed", "printer_id", id, "error", err)
			return fmt.Errorf("disconnect %s: %w", id, err)
		}
	}
	return nil
}

func parseCommand(payload []byte) (string, error) {
	payload = bytes.TrimSpace(payload)
	action := string(payload)
	if len(payload) > 0 && payload[0] == '{' {
		var msg struct {
			Action string `json:"action"`
		}
		if err := json.Unmarshal(payload, &msg); err != nil {
			return "", fmt.Errorf("%w: %w", ErrUnknownCommand, err)
		}
		action = msg.Action
	}

	action = strings.ToLower(strings.TrimSpace(action))
	switch action {
	case CommandConnect, CommandDisconnect:
		return action, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, action)
	}
}
