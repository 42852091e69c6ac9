// Package inquiry records contact form submissions in an append-only SQLite
// log next to the image store.
package inquiry

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/cmstory/internal/content"
	"github.com/roach88/cmstory/internal/store"
)

const schemaVersion = 1

const schemaSQL = `
CREATE TABLE IF NOT EXISTS inquiries (
	id         TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	name       TEXT NOT NULL,
	phone      TEXT NOT NULL,
	email      TEXT NOT NULL,
	type       TEXT NOT NULL,
	message    TEXT NOT NULL,
	consent    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_inquiries_created ON inquiries(created_at);
`

// Inquiry is a recorded submission.
type Inquiry struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Form
}

// Option configures a Log.
type Option func(*Log)

// WithIDGenerator replaces the UUIDv7 generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(l *Log) { l.ids = ids }
}

// WithClock sets the time source for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// Log is an append-only inquiry log.
type Log struct {
	db     *sql.DB
	site   *content.Site
	ids    IDGenerator
	now    func() time.Time
	logger *slog.Logger
}

// Open opens or creates the log at path. site supplies the contact types
// submissions are validated against.
func Open(ctx context.Context, path string, site *content.Site, opts ...Option) (*Log, error) {
	db, err := store.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	l := &Log{
		db:     db,
		site:   site,
		ids:    UUIDv7Generator{},
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, schemaVersion)
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if version < schemaVersion {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Submit normalizes and validates form, then appends it. Invalid forms
// return FieldErrors and are not recorded.
func (l *Log) Submit(ctx context.Context, form Form) (Inquiry, error) {
	form = form.Normalize(l.site)
	if err := form.Validate(l.site); err != nil {
		return Inquiry{}, err
	}

	inq := Inquiry{
		ID:        l.ids.Generate(),
		CreatedAt: l.now().UTC().Truncate(time.Millisecond),
		Form:      form,
	}

	res, err := l.db.ExecContext(ctx, `
		INSERT INTO inquiries (id, created_at, name, phone, email, type, message, consent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, inq.ID, inq.CreatedAt.UnixMilli(), form.Name, form.Phone, form.Email, form.Type, form.Message, boolToInt(form.Consent))
	if err != nil {
		return Inquiry{}, fmt.Errorf("write inquiry %s: %w", inq.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Inquiry{}, fmt.Errorf("write inquiry %s: duplicate id", inq.ID)
	}

	l.logger.Info("inquiry received", "id", inq.ID, "type", form.Type)
	return inq, nil
}

// List returns up to limit inquiries, newest first. limit <= 0 means all.
func (l *Log) List(ctx context.Context, limit int) ([]Inquiry, error) {
	query := `
		SELECT id, created_at, name, phone, email, type, message, consent
		FROM inquiries
		ORDER BY created_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query inquiries: %w", err)
	}
	defer rows.Close()

	var out []Inquiry
	for rows.Next() {
		var (
			inq     Inquiry
			created int64
			consent int
		)
		if err := rows.Scan(&inq.ID, &created, &inq.Name, &inq.Phone, &inq.Email, &inq.Type, &inq.Message, &consent); err != nil {
			return nil, fmt.Errorf("scan inquiry: %w", err)
		}
		inq.CreatedAt = time.UnixMilli(created).UTC()
		inq.Consent = consent != 0
		out = append(out, inq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inquiries: %w", err)
	}
	return out, nil
}

// Count returns the number of recorded inquiries.
func (l *Log) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM inquiries").Scan(&n); err != nil {
		return 0, fmt.Errorf("count inquiries: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
