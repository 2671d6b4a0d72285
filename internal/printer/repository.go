package printer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/nerrad567/workbench-core/internal/probe"
)

// Repository defines printer persistence. Implementations must apply
// Promote and UpdateExclusive atomically: either every row reflects the
// new connected printer or none does.
type Repository interface {
	// List returns all printers, connected first, then by name.
	List(ctx context.Context) ([]Printer, error)

	// GetByID returns ErrPrinterNotFound if the printer does not exist.
	GetByID(ctx context.Context, id string) (*Printer, error)

	// GetConnected returns the connected printer, or ErrPrinterNotFound.
	GetConnected(ctx context.Context) (*Printer, error)

	// Create inserts a new printer. Returns ErrPrinterExists on ID collision.
	Create(ctx context.Context, p *Printer) error

	// Update writes every column of an existing printer, including IsConnected.
	Update(ctx context.Context, p *Printer) error

	// Delete removes a printer. Returns ErrPrinterNotFound if absent.
	Delete(ctx context.Context, id string) error

	// Promote demotes every other printer and marks id connected with
	// LastUsedAt = usedAt, as one transaction.
	Promote(ctx context.Context, id string, usedAt time.Time) error

	// Demote clears the connected flag on one printer.
	Demote(ctx context.Context, id string) error

	// UpdateExclusive demotes every other printer and writes p with
	// IsConnected set, as one transaction.
	UpdateExclusive(ctx context.Context, p *Printer) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with the printers
// migration applied.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `
	SELECT id, name, host, protocol, port, path, is_connected,
		last_used_at, created_at, updated_at
	FROM printers`

// GetByID retrieves a printer by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Printer, error) {
	p, err := scanPrinter(r.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPrinterNotFound
		}
		return nil, fmt.Errorf("querying printer by id: %w", err)
	}
	return p, nil
}

// GetConnected retrieves the single connected printer.
func (r *SQLiteRepository) GetConnected(ctx context.Context) (*Printer, error) {
	p, err := scanPrinter(r.db.QueryRowContext(ctx, selectColumns+" WHERE is_connected = 1"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPrinterNotFound
		}
		return nil, fmt.Errorf("querying connected printer: %w", err)
	}
	return p, nil
}

// List retrieves all printers, connected first.
func (r *SQLiteRepository) List(ctx context.Context) ([]Printer, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+" ORDER BY is_connected DESC, name COLLATE NOCASE, id")
	if err != nil {
		return nil, fmt.Errorf("querying printers: %w", err)
	}
	defer rows.Close()

	printers := []Printer{}
	for rows.Next() {
		p, err := scanPrinter(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning printer: %w", err)
		}
		printers = append(printers, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating printers: %w", err)
	}
	return printers, nil
}

// Create inserts a new printer. Timestamps are set if zero.
func (r *SQLiteRepository) Create(ctx context.Context, p *Printer) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO printers (
			id, name, host, protocol, port, path, is_connected,
			last_used_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Host, string(p.Protocol), p.Port, nullableString(p.Path),
		boolToInt(p.IsConnected), nullableTime(p.LastUsedAt),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return mapWriteError("inserting printer", err)
	}
	return nil
}

// Update modifies an existing printer.
func (r *SQLiteRepository) Update(ctx context.Context, p *Printer) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		return updateRow(ctx, tx, p)
	})
}

// Delete removes a printer by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM printers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting printer: %w", err)
	}
	return requireOneRow(result)
}

// Promote makes id the only connected printer.
func (r *SQLiteRepository) Promote(ctx context.Context, id string, usedAt time.Time) error {
	now := formatTime(time.Now().UTC())

	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"UPDATE printers SET is_connected = 0, updated_at = ? WHERE is_connected = 1 AND id <> ?",
			now, id,
		); err != nil {
			return mapWriteError("demoting printers", err)
		}

		result, err := tx.ExecContext(ctx,
			"UPDATE printers SET is_connected = 1, last_used_at = ?, updated_at = ? WHERE id = ?",
			formatTime(usedAt), now, id,
		)
		if err != nil {
			return mapWriteError("promoting printer", err)
		}
		return requireOneRow(result)
	})
}

// Demote clears the connected flag on one printer.
func (r *SQLiteRepository) Demote(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE printers SET is_connected = 0, updated_at = ? WHERE id = ?",
		formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("demoting printer: %w", err)
	}
	return requireOneRow(result)
}

// UpdateExclusive writes p as the only connected printer.
func (r *SQLiteRepository) UpdateExclusive(ctx context.Context, p *Printer) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"UPDATE printers SET is_connected = 0, updated_at = ? WHERE is_connected = 1 AND id <> ?",
			formatTime(time.Now().UTC()), p.ID,
		); err != nil {
			return mapWriteError("demoting printers", err)
		}

		p.IsConnected = true
		return updateRow(ctx, tx, p)
	})
}

// updateRow writes every mutable column of p.
func updateRow(ctx context.Context, tx *sql.Tx, p *Printer) error {
	p.UpdatedAt = time.Now().UTC()

	result, err := tx.ExecContext(ctx, `
		UPDATE printers SET
			name = ?, host = ?, protocol = ?, port = ?, path = ?,
			is_connected = ?, last_used_at = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Host, string(p.Protocol), p.Port, nullableString(p.Path),
		boolToInt(p.IsConnected), nullableTime(p.LastUsedAt), formatTime(p.UpdatedAt),
		p.ID,
	)
	if err != nil {
		return mapWriteError("updating printer", err)
	}
	return requireOneRow(result)
}

// inTx runs fn in a transaction, committing only if fn succeeds.
func (r *SQLiteRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapWriteError("committing transaction", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrinter(s rowScanner) (*Printer, error) {
	var (
		p          Printer
		protocol   string
		path       sql.NullString
		connected  int
		lastUsedAt sql.NullString
		createdAt  string
		updatedAt  string
	)

	if err := s.Scan(
		&p.ID, &p.Name, &p.Host, &protocol, &p.Port, &path, &connected,
		&lastUsedAt, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	p.Protocol = probe.Protocol(protocol)
	p.IsConnected = connected == 1
	if path.Valid {
		p.Path = &path.String
	}
	if lastUsedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, lastUsedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_used_at: %w", err)
		}
		p.LastUsedAt = &t
	}

	var err error
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &p, nil
}

func requireOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrPrinterNotFound
	}
	return nil
}

// mapWriteError turns SQLite constraint failures into domain errors.
// The partial unique index on is_connected is the only UNIQUE constraint
// besides the primary key.
func mapWriteError(op string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintPrimaryKey:
			return ErrPrinterExists
		case sqlite3.ErrConstraintUnique:
			return fmt.Errorf("%s: %w", op, ErrConflict)
		case sqlite3.ErrConstraintCheck:
			return fmt.Errorf("%s: %w: %v", op, ErrInvalidPrinter, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// nullableString returns a sql.NullString for optional string pointers.
func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullableTime returns a sql.NullString for optional times.
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
