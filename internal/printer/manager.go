package printer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/workbench-core/internal/probe"
)

// Logger defines the logging interface used by the Manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Prober runs a reachability check. *probe.Dispatcher implements it.
type Prober interface {
	Probe(ctx context.Context, target probe.Target) (probe.Result, error)
}

// Manager owns every state transition of the printer registry and
// guarantees that at most one printer is connected.
//
// Writes that touch the connected flag (create, connect, disconnect,
// update, delete) run inside a manager-wide critical section on top of the
// repository's own transactions. Probes run outside that section, so a slow
// device never stalls unrelated requests. Nothing is cached: every call
// reloads from the repository.
type Manager struct {
	repo   Repository
	prober Prober

	writeMu sync.Mutex

	logger Logger
	sinks  []EventSink
	now    func() time.Time
}

// NewManager creates a Manager over repo, probing with prober.
func NewManager(repo Repository, prober Prober) *Manager {
	return &Manager{
		repo:   repo,
		prober: prober,
		logger: noopLogger{},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// AddSink registers an event sink. Not safe to call once requests are
// being served.
func (m *Manager) AddSink(sink EventSink) {
	m.sinks = append(m.sinks, sink)
}

// List returns every printer, connected first, then by name.
func (m *Manager) List(ctx context.Context) ([]Printer, error) {
	return m.repo.List(ctx)
}

// Get returns one printer or ErrPrinterNotFound.
func (m *Manager) Get(ctx context.Context, id string) (*Printer, error) {
	return m.repo.GetByID(ctx, id)
}

// GetConnected returns the connected printer or ErrPrinterNotFound.
func (m *Manager) GetConnected(ctx context.Context) (*Printer, error) {
	return m.repo.GetConnected(ctx)
}

// Create validates in, probes it unless Force is set, and stores it
// disconnected. Creation never makes a printer active.
//
// When the probe fails nothing is stored and the error is an
// *UnreachableError; the probe result is also returned so callers can
// surface it. The probe result is nil when Force skipped the probe.
func (m *Manager) Create(ctx context.Context, in CreateInput) (*Printer, *probe.Result, error) {
	fields := NormalizeFields(in.Fields)
	if err := ValidateFields(fields); err != nil {
		return nil, nil, err
	}

	var probed *probe.Result
	if !in.Force {
		res, err := m.probe(ctx, fields.Target())
		if err != nil {
			return nil, nil, err
		}
		probed = &res
		if !res.OK {
			m.logger.Info("printer create rejected: unreachable",
				"host", fields.Host, "protocol", fields.Protocol, "elapsed_ms", res.ElapsedMs)
			return nil, probed, &UnreachableError{Result: res}
		}
	}

	p := &Printer{
		ID:       GenerateID(),
		Name:     fields.Name,
		Host:     fields.Host,
		Protocol: fields.Protocol,
		Port:     fields.Port,
		Path:     fields.Path,
	}

	m.writeMu.Lock()
	err := m.repo.Create(ctx, p)
	m.writeMu.Unlock()
	if err != nil {
		return nil, probed, fmt.Errorf("creating printer: %w", err)
	}

	m.logger.Info("printer created", "id", p.ID, "name", p.Name, "forced", in.Force)
	m.emit(ctx, Event{Kind: EventCreated, Printer: p})
	return p, probed, nil
}

// Connect probes the printer and, if it answers, makes it the only
// connected printer. On a failed probe nothing changes and the error is an
// *UnreachableError.
func (m *Manager) Connect(ctx context.Context, id string) (*Printer, probe.Result, error) {
	p, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, probe.Result{}, err
	}

	res, err := m.probe(ctx, p.Target())
	if err != nil {
		return nil, probe.Result{}, err
	}
	m.emit(ctx, Event{Kind: EventProbed, Printer: p, Probe: &res})

	if !res.OK {
		m.logger.Info("printer connect rejected: unreachable", "id", id, "elapsed_ms", res.ElapsedMs)
		return nil, res, &UnreachableError{Result: res}
	}

	m.writeMu.Lock()
	previous, err := m.repo.GetConnected(ctx)
	if err != nil && !errors.Is(err, ErrPrinterNotFound) {
		m.writeMu.Unlock()
		return nil, res, fmt.Errorf("loading connected printer: %w", err)
	}
	err = m.repo.Promote(ctx, id, m.now())
	m.writeMu.Unlock()
	if err != nil {
		// The printer may have been deleted while the probe was running.
		return nil, res, fmt.Errorf("promoting printer: %w", err)
	}

	updated, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, res, fmt.Errorf("reloading printer: %w", err)
	}

	if previous != nil && previous.ID != id {
		previous.IsConnected = false
		m.logger.Info("printer demoted", "id", previous.ID, "replaced_by", id)
		m.emit(ctx, Event{Kind: EventDisconnected, Printer: previous})
	}
	m.logger.Info("printer connected", "id", id, "name", updated.Name, "elapsed_ms", res.ElapsedMs)
	m.emit(ctx, Event{Kind: EventConnected, Printer: updated, Probe: &res})
	return updated, res, nil
}

// Disconnect clears the connected flag. No probe is run and disconnecting
// a printer that is not connected succeeds without writing.
func (m *Manager) Disconnect(ctx context.Context, id string) (*Printer, error) {
	m.writeMu.Lock()
	p, err := m.repo.GetByID(ctx, id)
	if err != nil {
		m.writeMu.Unlock()
		return nil, err
	}
	if !p.IsConnected {
		m.writeMu.Unlock()
		return p, nil
	}
	err = m.repo.Demote(ctx, id)
	m.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("demoting printer: %w", err)
	}

	updated, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reloading printer: %w", err)
	}

	m.logger.Info("printer disconnected", "id", id)
	m.emit(ctx, Event{Kind: EventDisconnected, Printer: updated})
	return updated, nil
}

// Update merges patch into the stored printer and validates the result.
//
// Setting IsConnected on a printer that is not already connected is an
// administrative override of Connect: other printers are demoted in the
// same transaction and LastUsedAt is refreshed, but no probe runs.
func (m *Manager) Update(ctx context.Context, id string, patch Patch) (*Printer, error) {
	m.writeMu.Lock()

	stored, err := m.repo.GetByID(ctx, id)
	if err != nil {
		m.writeMu.Unlock()
		return nil, err
	}

	merged := ApplyPatch(stored, patch)
	if err := ValidateFields(merged.Fields()); err != nil {
		m.writeMu.Unlock()
		return nil, err
	}

	var previous *Printer
	promoting := merged.IsConnected && !stored.IsConnected
	if promoting {
		previous, err = m.repo.GetConnected(ctx)
		if err != nil && !errors.Is(err, ErrPrinterNotFound) {
			m.writeMu.Unlock()
			return nil, fmt.Errorf("loading connected printer: %w", err)
		}
		usedAt := m.now()
		merged.LastUsedAt = &usedAt
		err = m.repo.UpdateExclusive(ctx, merged)
	} else {
		err = m.repo.Update(ctx, merged)
	}
	m.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("updating printer: %w", err)
	}

	m.logger.Info("printer updated", "id", id, "promoted", promoting)
	switch {
	case promoting:
		if previous != nil && previous.ID != id {
			previous.IsConnected = false
			m.emit(ctx, Event{Kind: EventDisconnected, Printer: previous})
		}
		m.emit(ctx, Event{Kind: EventConnected, Printer: merged})
	case stored.IsConnected && !merged.IsConnected:
		m.emit(ctx, Event{Kind: EventDisconnected, Printer: merged})
	default:
		m.emit(ctx, Event{Kind: EventUpdated, Printer: merged})
	}
	return merged, nil
}

// Delete removes the printer. Deleting the connected printer leaves no
// printer connected.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.writeMu.Lock()
	p, err := m.repo.GetByID(ctx, id)
	if err == nil {
		err = m.repo.Delete(ctx, id)
	}
	m.writeMu.Unlock()
	if err != nil {
		return err
	}

	m.logger.Info("printer deleted", "id", id, "was_connected", p.IsConnected)
	m.emit(ctx, Event{Kind: EventDeleted, Printer: p})
	return nil
}

// StatusOf probes a stored printer live. The stored connected flag is
// reported in Device but never changed.
func (m *Manager) StatusOf(ctx context.Context, id string) (*Status, error) {
	p, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.status(ctx, p)
}

// StatusOfConnected probes the connected printer live, or returns
// ErrPrinterNotFound when none is connected.
func (m *Manager) StatusOfConnected(ctx context.Context) (*Status, error) {
	p, err := m.repo.GetConnected(ctx)
	if err != nil {
		return nil, err
	}
	return m.status(ctx, p)
}

// Test probes an unsaved configuration. Name is not required.
func (m *Manager) Test(ctx context.Context, fields Fields) (probe.Result, error) {
	fields = NormalizeFields(fields)
	if err := ValidateTarget(fields); err != nil {
		return probe.Result{}, err
	}
	return m.probe(ctx, fields.Target())
}

func (m *Manager) status(ctx context.Context, p *Printer) (*Status, error) {
	res, err := m.probe(ctx, p.Target())
	if err != nil {
		return nil, err
	}
	m.emit(ctx, Event{Kind: EventProbed, Printer: p, Probe: &res})

	return &Status{
		Connected: res.OK,
		Probe:     res,
		Device:    p.Summary(),
	}, nil
}

func (m *Manager) probe(ctx context.Context, target probe.Target) (probe.Result, error) {
	res, err := m.prober.Probe(ctx, target)
	if err != nil {
		return probe.Result{}, fmt.Errorf("%w: %v", ErrInvalidProtocol, err)
	}
	m.logger.Debug("probe finished",
		"target", target.Normalize().String(), "ok", res.OK, "method", res.Method, "elapsed_ms", res.ElapsedMs)
	return res, nil
}
