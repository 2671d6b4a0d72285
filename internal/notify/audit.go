package notify

import (
	"context"
	"strings"

	"github.com/nerrad567/workbench-core/internal/audit"
	"github.com/nerrad567/workbench-core/internal/printer"
)

// AuditRecorder is satisfied by *audit.SQLiteRepository.
type AuditRecorder interface {
	Create(ctx context.Context, entry *audit.Entry) error
}

// AuditSink appends one audit entry per committed registry change.
// Probe events are not recorded.
type AuditSink struct {
	repo   AuditRecorder
	logger Logger
}

// NewAuditSink creates a sink writing to repo.
func NewAuditSink(repo AuditRecorder) *AuditSink {
	return &AuditSink{repo: repo, logger: noopLogger{}}
}

// SetLogger sets the logger used for write failures.
func (s *AuditSink) SetLogger(logger Logger) {
	s.logger = logger
}

// PrinterEvent implements printer.EventSink.
func (s *AuditSink) PrinterEvent(ctx context.Context, ev printer.Event) {
	if ev.Printer == nil || ev.Kind == printer.EventProbed {
		return
	}

	p := ev.Printer
	entry := &audit.Entry{
		Action:      strings.TrimPrefix(string(ev.Kind), "printer."),
		PrinterID:   p.ID,
		PrinterName: p.Name,
		Actor:       audit.ActorFromContext(ctx),
		Details: map[string]any{
			"host":     p.Host,
			"protocol": string(p.Protocol),
			"port":     p.Port,
		},
		CreatedAt: ev.At,
	}
	if ev.Probe != nil {
		entry.Details["probe_ok"] = ev.Probe.OK
		entry.Details["elapsed_ms"] = ev.Probe.ElapsedMs
	}
	if ev.Kind == printer.EventDeleted && p.IsConnected {
		entry.Details["was_connected"] = true
	}

	// The change is already committed; a dropped client must not lose the record.
	if err := s.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("audit write failed", "action", entry.Action, "printer_id", p.ID, "error", err)
	}
}
