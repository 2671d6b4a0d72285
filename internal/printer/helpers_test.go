package printer

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/workbench-core/internal/infrastructure/database"
	"github.com/nerrad567/workbench-core/internal/probe"
	_ "github.com/nerrad567/workbench-core/migrations"
)

// setupTestDB opens an in-memory database with the real migrations applied.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{Path: database.MemoryPath, BusyTimeout: 1})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	return NewSQLiteRepository(setupTestDB(t).DB)
}

// testPrinter builds a valid, disconnected printer.
func testPrinter(id, name, host string) *Printer {
	return &Printer{
		ID:       id,
		Name:     name,
		Host:     host,
		Protocol: probe.ProtocolRaw9100,
		Port:     9100,
	}
}

func mustCreate(t *testing.T, repo Repository, p *Printer) *Printer {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func connectedCount(t *testing.T, repo Repository) int {
	t.Helper()

	printers, err := repo.List(context.Background())
	require.NoError(t, err)

	n := 0
	for _, p := range printers {
		if p.IsConnected {
			n++
		}
	}
	return n
}

// stubProber answers from a host → reachable table.
type stubProber struct {
	mu        sync.Mutex
	reachable map[string]bool
	calls     []probe.Target
}

func newStubProber(reachable ...string) *stubProber {
	s := &stubProber{reachable: map[string]bool{}}
	for _, h := range reachable {
		s.reachable[h] = true
	}
	return s
}

func (s *stubProber) set(host string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reachable[host] = ok
}

func (s *stubProber) Probe(_ context.Context, target probe.Target) (probe.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, target)
	method := probe.MethodTCP
	if target.Protocol == probe.ProtocolIPP {
		method = probe.MethodHTTP
	}
	return probe.Result{OK: s.reachable[target.Host], Method: method, ElapsedMs: 1}, nil
}

func (s *stubProber) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// eventRecorder collects emitted events.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) PrinterEvent(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	kinds := make([]EventKind, 0, len(r.events))
	for _, ev := range r.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }
