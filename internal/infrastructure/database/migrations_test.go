package database

import (
	"context"
	"io/fs"
	"os"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

// registryMigrations is the real migrations directory relative to this package.
const registryMigrations = "../../../migrations"

// useMigrations points the runner at fsys for the duration of the test.
func useMigrations(t *testing.T, fsys fs.FS, dir string) {
	t.Helper()
	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = origFS, origDir
	})
	MigrationsFS, MigrationsDir = fsys, dir
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&n)
	if err != nil {
		t.Fatalf("sqlite_master query: %v", err)
	}
	return n == 1
}

func insertPrinter(ctx context.Context, db *DB, id, protocol string, connected int) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.ExecContext(ctx, `
		INSERT INTO printers (id, name, host, protocol, port, is_connected, created_at, updated_at)
		VALUES (?, ?, '10.0.0.5', ?, 9100, ?, ?, ?)`,
		id, "printer "+id, protocol, connected, now, now,
	)
	return err
}

func TestMigrate_RegistrySchema(t *testing.T) {
	useMigrations(t, os.DirFS(registryMigrations), ".")
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	for _, table := range []string{"printers", "audit_logs"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s not created", table)
		}
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied=%d pending=%d, want 2 and 0", len(applied), len(pending))
	}

	// Re-running is a no-op.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

// The partial unique index is the storage-level guarantee that at most one
// printer is connected.
func TestMigrate_SingleConnectedPrinter(t *testing.T) {
	useMigrations(t, os.DirFS(registryMigrations), ".")
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	if err := insertPrinter(ctx, db, "p-1", "raw9100", 1); err != nil {
		t.Fatalf("first connected printer: %v", err)
	}
	for _, id := range []string{"p-2", "p-3"} {
		if err := insertPrinter(ctx, db, id, "ipp", 0); err != nil {
			t.Fatalf("disconnected printer %s: %v", id, err)
		}
	}

	err := insertPrinter(ctx, db, "p-4", "raw9100", 1)
	if err == nil || !strings.Contains(err.Error(), "UNIQUE") {
		t.Fatalf("second connected printer: error = %v, want UNIQUE violation", err)
	}
	_, err = db.ExecContext(ctx, "UPDATE printers SET is_connected = 1 WHERE id = 'p-2'")
	if err == nil || !strings.Contains(err.Error(), "UNIQUE") {
		t.Fatalf("promoting without demoting: error = %v, want UNIQUE violation", err)
	}

	// Demote then promote inside one transaction, the way the registry does.
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE printers SET is_connected = 0 WHERE is_connected = 1"); err != nil {
		t.Fatalf("demote: %v", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE printers SET is_connected = 1 WHERE id = 'p-2'"); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	var connected string
	if err := db.QueryRowContext(ctx, "SELECT id FROM printers WHERE is_connected = 1").Scan(&connected); err != nil {
		t.Fatalf("query connected: %v", err)
	}
	if connected != "p-2" {
		t.Errorf("connected = %q, want p-2", connected)
	}
}

func TestMigrate_PrinterChecks(t *testing.T) {
	useMigrations(t, os.DirFS(registryMigrations), ".")
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	if err := insertPrinter(ctx, db, "p-1", "lpd", 0); err == nil {
		t.Error("unknown protocol accepted")
	}
	if err := insertPrinter(ctx, db, "p-2", "ipp", 2); err == nil {
		t.Error("is_connected outside 0/1 accepted")
	}
}

func TestMigrateDown_RegistrySchema(t *testing.T) {
	useMigrations(t, os.DirFS(registryMigrations), ".")
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	// Newest first: audit_logs goes, printers stays.
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "audit_logs") {
		t.Error("audit_logs should have been dropped")
	}
	if !tableExists(t, db, "printers") {
		t.Error("printers dropped too early")
	}

	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("second MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "printers") {
		t.Error("printers should have been dropped")
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 || len(pending) != 2 {
		t.Errorf("applied=%d pending=%d, want 0 and 2", len(applied), len(pending))
	}

	// Nothing left to roll back.
	if err := db.MigrateDown(ctx); err != nil {
		t.Errorf("MigrateDown() on empty schema error = %v", err)
	}
}

// A failing migration is rolled back on its own; earlier ones stay applied
// and a later Migrate resumes from the failure.
func TestMigrate_FailureStopsAtBrokenMigration(t *testing.T) {
	fsys := fstest.MapFS{
		"20260310_100000_create_printers.up.sql":   {Data: []byte("CREATE TABLE printers (id TEXT PRIMARY KEY) STRICT;")},
		"20260310_100000_create_printers.down.sql": {Data: []byte("DROP TABLE printers;")},
		"20260310_110000_add_location.up.sql":      {Data: []byte("ALTER TABLE printers ADD COLUMN location TEXT; ALTER TABLE nope ADD x;")},
		"20260310_110000_add_location.down.sql":    {Data: []byte("ALTER TABLE printers DROP COLUMN location;")},
	}
	useMigrations(t, fsys, ".")
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	err := db.Migrate(ctx)
	if err == nil || !strings.Contains(err.Error(), "20260310_110000") {
		t.Fatalf("Migrate() error = %v, want failure naming 20260310_110000", err)
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || len(pending) != 1 || pending[0].Name != "add_location" {
		t.Fatalf("applied=%d pending=%v, want the first applied and add_location pending", len(applied), pending)
	}

	var cols int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pragma_table_info('printers') WHERE name = 'location'",
	).Scan(&cols); err != nil {
		t.Fatalf("pragma_table_info: %v", err)
	}
	if cols != 0 {
		t.Error("partial migration left the location column behind")
	}

	fsys["20260310_110000_add_location.up.sql"] = &fstest.MapFile{Data: []byte("ALTER TABLE printers ADD COLUMN location TEXT;")}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() after fix error = %v", err)
	}
}

func TestMigrate_NoMigrations(t *testing.T) {
	useMigrations(t, fstest.MapFS{}, ".")
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() with no migrations error = %v", err)
	}
}

func TestGetMigrationStatus_BeforeMigrate(t *testing.T) {
	useMigrations(t, os.DirFS(registryMigrations), ".")
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	applied, pending, err := db.GetMigrationStatus(context.Background())
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected 0 applied, got %d", len(applied))
	}
	if len(pending) != 2 || pending[0].Name != "create_printers" || pending[1].Name != "create_audit_logs" {
		t.Errorf("pending = %+v, want create_printers then create_audit_logs", pending)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantIsUp    bool
		wantOk      bool
	}{
		{"20260310_100000_create_printers.up.sql", "20260310_100000", true, true},
		{"20260310_110000_create_audit_logs.down.sql", "20260310_110000", false, true},
		{"embed.go", "", false, false},
		{"20260310_100000_create_printers.sql", "", false, false},
		{"printers.up.sql", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if ok && (version != tt.wantVersion || isUp != tt.wantIsUp) {
				t.Errorf("got (%q, %v), want (%q, %v)", version, isUp, tt.wantVersion, tt.wantIsUp)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	tests := map[string]string{
		"20260310_100000_create_printers.up.sql":     "create_printers",
		"20260310_110000_create_audit_logs.down.sql": "create_audit_logs",
	}
	for filename, want := range tests {
		if got := extractMigrationName(filename); got != want {
			t.Errorf("extractMigrationName(%q) = %q, want %q", filename, got, want)
		}
	}
}
