package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/singleflight"
)

//go:embed schema.sql
var schemaSQL string

// State is the connection state of a Store.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateOpen
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Opener returns a ready database handle for path.
type Opener func(ctx context.Context, path string) (*sql.DB, error)

// Stats counts connection lifecycle events.
type Stats struct {
	Opens         int64 // open attempts
	Upgrades      int64 // opens that applied at least one migration
	Failures      int64 // opens that ended in StateFailed
	Reopens       int64 // handles discarded after going stale
	SchemaVersion int
}

// Option configures a Store.
type Option func(*Store)

// WithOpener replaces the SQLite opener. Used by tests to inject failures.
func WithOpener(open Opener) Option {
	return func(s *Store) { s.open = open }
}

// WithLogger sets the logger for open and write diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock sets the time source for updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is a lazily opened key/value image store.
// All methods are safe for concurrent use.
type Store struct {
	path   string
	open   Opener
	logger *slog.Logger
	now    func() time.Time

	opening singleflight.Group

	mu    sync.Mutex
	db    *sql.DB
	state State
	stats Stats
	// closes counts Close calls; an open that started before the latest
	// Close discards its handle.
	closes uint64
}

// errClosedDuringOpen is returned to callers whose open raced with Close.
var errClosedDuringOpen = errors.New("store closed while opening")

// New creates a closed Store for the database at path. Nothing touches disk
// until the first operation.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:   path,
		open:   OpenSQLite,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
		state:  StateClosed,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenSQLite opens the SQLite database at path with the store's pragmas.
// It does not create missing parent directories.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	return db, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

// State returns the current connection state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a snapshot of lifecycle counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close releases the handle and returns the store to StateClosed.
// A later operation reopens it.
func (s *Store) Close() error {
	s.mu.Lock()
	db := s.db
	s.db = nil
	s.state = StateClosed
	s.closes++
	s.mu.Unlock()

	if db == nil {
		return nil
	}
	return db.Close()
}

// Open forces the store open, running the upgrade step.
func (s *Store) Open(ctx context.Context) error {
	_, err := s.conn(ctx)
	return err
}

// conn returns the open handle, opening it if needed. Callers that arrive
// while another open is in flight wait for that open instead of starting one.
func (s *Store) conn(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	if s.state == StateOpen && s.db != nil {
		db := s.db
		s.mu.Unlock()
		return db, nil
	}
	s.mu.Unlock()

	v, err, _ := s.opening.Do("open", func() (any, error) {
		return s.connect(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	return v.(*sql.DB), nil
}

func (s *Store) connect(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	if s.state == StateOpen && s.db != nil {
		db := s.db
		s.mu.Unlock()
		return db, nil
	}
	s.state = StateOpening
	s.stats.Opens++
	closes := s.closes
	s.mu.Unlock()

	db, err := s.open(ctx, s.path)
	if err != nil {
		s.fail(closes, "open", err)
		return nil, newError(KindUnavailable, "open", "", err)
	}

	version, migrated, err := upgrade(ctx, db)
	if err != nil {
		db.Close()
		s.fail(closes, "upgrade", err)
		return nil, newError(KindSchemaUpgrade, "open", "", err)
	}

	s.mu.Lock()
	if s.closes != closes {
		s.mu.Unlock()
		db.Close()
		s.logger.Debug("image store closed while opening, handle discarded", "path", s.path)
		return nil, newError(KindUnavailable, "open", "", errClosedDuringOpen)
	}
	s.db = db
	s.state = StateOpen
	s.stats.SchemaVersion = version
	if migrated {
		s.stats.Upgrades++
	}
	s.mu.Unlock()

	s.logger.Debug("image store open", "path", s.path, "schema_version", version, "migrated", migrated)
	return db, nil
}

func (s *Store) fail(closes uint64, stage string, err error) {
	s.mu.Lock()
	if s.closes == closes {
		s.state = StateFailed
	}
	s.stats.Failures++
	s.mu.Unlock()

	s.logger.Warn("image store open failed", "path", s.path, "stage", stage, "error", err)
}

// invalidate drops db if it is still the current handle.
func (s *Store) invalidate(db *sql.DB) {
	s.mu.Lock()
	if s.db == db {
		s.db = nil
		s.state = StateClosed
		s.stats.Reopens++
	}
	s.mu.Unlock()
	db.Close()
}

// stale reports whether err means the handle itself is no longer usable.
func stale(ctx context.Context, db *sql.DB, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if strings.Contains(err.Error(), "no such table") {
		return true
	}
	return db.PingContext(ctx) != nil
}

// exec runs fn against an open handle. If fn fails because the handle went
// stale, the handle is discarded and fn runs once more on a fresh one.
// Errors from fn are reported as kind.
func (s *Store) exec(ctx context.Context, op string, key Key, kind Kind, fn func(*sql.DB) error) error {
	for attempt := 0; ; attempt++ {
		db, err := s.conn(ctx)
		if err != nil {
			var storeErr *Error
			if errors.As(err, &storeErr) {
				return &Error{Kind: storeErr.Kind, Op: op, Key: key, Err: storeErr.Err}
			}
			return newError(KindUnavailable, op, key, err)
		}

		err = fn(db)
		if err == nil {
			return nil
		}
		if attempt > 0 || !stale(ctx, db, err) {
			return newError(kind, op, key, err)
		}

		s.logger.Warn("image store handle stale, reopening", "op", op, "key", key, "error", err)
		s.invalidate(db)
	}
}
