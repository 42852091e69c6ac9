package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew_DoesNotTouchDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.db")

	s := New(path)
	defer s.Close()

	if s.State() != StateClosed {
		t.Errorf("State() = %v, want closed", s.State())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("database file created before first operation")
	}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.db")

	s := New(path)
	defer s.Close()

	if _, _, err := s.Get(context.Background(), KeyLogo); err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if s.State() != StateOpen {
		t.Errorf("State() = %v, want open", s.State())
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	s := New("/nonexistent/dir/images.db")
	defer s.Close()

	err := s.Open(context.Background())
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Open() error = %v, want ErrStoreUnavailable", err)
	}
	if s.State() != StateFailed {
		t.Errorf("State() = %v, want failed", s.State())
	}
}

func TestClose_NeverOpened(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "images.db"))
	if err := s.Close(); err != nil {
		t.Errorf("Close() on unopened store should not error: %v", err)
	}
}

func TestClose_ThenReopen(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	if err := s.Put(ctx, KeyLogo, "data:image/png;base64,AAA"); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if s.State() != StateClosed {
		t.Errorf("State() = %v, want closed", s.State())
	}

	value, ok, err := s.Get(ctx, KeyLogo)
	if err != nil || !ok {
		t.Fatalf("Get() after Close = (%q, %v, %v)", value, ok, err)
	}
	if value != "data:image/png;base64,AAA" {
		t.Errorf("Get() = %q", value)
	}
	if got := s.Stats().Opens; got != 2 {
		t.Errorf("Opens = %d, want 2", got)
	}
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateClosed:  "closed",
		StateOpening: "opening",
		StateOpen:    "open",
		StateFailed:  "failed",
		State(9):     "state(9)",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(state), got, want)
		}
	}
}

// Pragma tests

func TestPragma_JournalMode(t *testing.T) {
	s := createTestStore(t)
	verifyPragma(t, s, "journal_mode", "wal")
}

func TestPragma_Synchronous(t *testing.T) {
	s := createTestStore(t)
	// NORMAL = 1
	verifyPragma(t, s, "synchronous", "1")
}

func TestPragma_BusyTimeout(t *testing.T) {
	s := createTestStore(t)
	verifyPragma(t, s, "busy_timeout", "5000")
}

// Schema tests

func TestSchema_ImagesTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "images")
	for _, col := range []string{"key", "value", "updated_at"} {
		if !contains(columns, col) {
			t.Errorf("images table missing column %q, got %v", col, columns)
		}
	}
}

func TestMigration_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	if version := userVersion(t, s.db); version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
	stats := s.Stats()
	if stats.SchemaVersion != currentSchemaVersion {
		t.Errorf("Stats().SchemaVersion = %d, want %d", stats.SchemaVersion, currentSchemaVersion)
	}
	if stats.Upgrades != 1 {
		t.Errorf("Stats().Upgrades = %d, want 1 for a fresh database", stats.Upgrades)
	}
}

func TestMigration_IdempotentUpgrade(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "images.db")

	first := New(path)
	if err := first.Put(ctx, KeyPatent, "data:image/png;base64,UEFU"); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	first.Close()

	// Reopening an up-to-date database must not error or touch records
	for i := 0; i < 3; i++ {
		s := New(path)
		value, ok, err := s.Get(ctx, KeyPatent)
		if err != nil || !ok {
			t.Fatalf("iteration %d: Get() = (%q, %v, %v)", i, value, ok, err)
		}
		if value != "data:image/png;base64,UEFU" {
			t.Errorf("iteration %d: value changed to %q", i, value)
		}
		if got := s.Stats().Upgrades; got != 0 {
			t.Errorf("iteration %d: Upgrades = %d, want 0", i, got)
		}
		s.Close()
	}
}

func TestMigration_UpgradeFromV1(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "images.db")

	db := rawDB(t, path)
	mustExec(t, db, "CREATE TABLE images (key TEXT PRIMARY KEY, value TEXT NOT NULL)")
	mustExec(t, db, "INSERT INTO images (key, value) VALUES ('logo', 'data:image/png;base64,T0xE')")
	mustExec(t, db, "PRAGMA user_version = 1")
	db.Close()

	s := New(path)
	defer s.Close()

	value, ok, err := s.Get(ctx, KeyLogo)
	if err != nil || !ok {
		t.Fatalf("Get() = (%q, %v, %v)", value, ok, err)
	}
	if value != "data:image/png;base64,T0xE" {
		t.Errorf("Get() = %q, v1 record not preserved", value)
	}
	if !contains(getTableColumns(t, s.db, "images"), "updated_at") {
		t.Error("updated_at column not added by migration")
	}
	if version := userVersion(t, s.db); version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestMigration_MissingTableAtCurrentVersion(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "images.db")

	// Version says current but the table is gone
	db := rawDB(t, path)
	mustExec(t, db, "PRAGMA user_version = 2")
	db.Close()

	s := New(path)
	defer s.Close()

	if err := s.Put(ctx, KeyBoxing, "X"); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	if value, ok, _ := s.Get(ctx, KeyBoxing); !ok || value != "X" {
		t.Errorf("Get() = (%q, %v), want X", value, ok)
	}
}

func TestMigration_NewerVersionFails(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "images.db")

	db := rawDB(t, path)
	mustExec(t, db, "PRAGMA user_version = 99")
	db.Close()

	s := New(path)
	defer s.Close()

	err := s.Put(ctx, KeyLogo, "X")
	if !errors.Is(err, ErrSchemaUpgradeFailed) {
		t.Fatalf("Put() error = %v, want ErrSchemaUpgradeFailed", err)
	}
	if s.State() != StateFailed {
		t.Errorf("State() = %v, want failed", s.State())
	}

	// Reads degrade to absent
	value, ok, err := s.Get(ctx, KeyLogo)
	if err != nil || ok {
		t.Errorf("Get() = (%q, %v, %v), want absent without error", value, ok, err)
	}
}

// Lifecycle tests

func TestOpen_ConcurrentCallersShareOneOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "images.db")

	var calls atomic.Int32
	release := make(chan struct{})
	opener := func(ctx context.Context, path string) (*sql.DB, error) {
		calls.Add(1)
		<-release
		return OpenSQLite(ctx, path)
	}

	s := New(path, WithOpener(opener))
	defer s.Close()

	keys := Keys()
	var wg sync.WaitGroup
	errs := make([]error, len(keys))
	found := make([]bool, len(keys))
	for i, key := range keys {
		wg.Add(1)
		go func(i int, key Key) {
			defer wg.Done()
			_, found[i], errs[i] = s.Get(ctx, key)
		}(i, key)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, key := range keys {
		if errs[i] != nil {
			t.Errorf("Get(%s) error: %v", key, errs[i])
		}
		if found[i] {
			t.Errorf("Get(%s) found a value in a fresh store", key)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("opener called %d times, want 1", got)
	}
	if got := s.Stats().Opens; got != 1 {
		t.Errorf("Opens = %d, want 1", got)
	}
}

func TestOpen_FailedThenRetried(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "images.db")

	var calls atomic.Int32
	opener := func(ctx context.Context, path string) (*sql.DB, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("storage access blocked")
		}
		return OpenSQLite(ctx, path)
	}

	s := New(path, WithOpener(opener))
	defer s.Close()

	err := s.Put(ctx, KeyLogo, "first")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Put() error = %v, want ErrStoreUnavailable", err)
	}
	if s.State() != StateFailed {
		t.Fatalf("State() = %v, want failed", s.State())
	}

	if err := s.Put(ctx, KeyLogo, "second"); err != nil {
		t.Fatalf("Put() after failure should reopen: %v", err)
	}
	if s.State() != StateOpen {
		t.Errorf("State() = %v, want open", s.State())
	}
	stats := s.Stats()
	if stats.Opens != 2 || stats.Failures != 1 {
		t.Errorf("Stats() = %+v, want 2 opens and 1 failure", stats)
	}
}

func TestOpen_CloseDuringOpenDiscardsHandle(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "images.db")

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	opener := func(ctx context.Context, path string) (*sql.DB, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
		return OpenSQLite(ctx, path)
	}

	s := New(path, WithOpener(opener))
	defer s.Close()

	done := make(chan error, 1)
	go func() { done <- s.Open(ctx) }()

	<-started
	if err := s.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	close(release)

	err := <-done
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Open() error = %v, want ErrStoreUnavailable", err)
	}
	if s.State() != StateClosed {
		t.Errorf("State() = %v, want closed", s.State())
	}

	if err := s.Put(ctx, KeyLogo, "after-close"); err != nil {
		t.Fatalf("Put() after Close should reopen: %v", err)
	}
	if s.State() != StateOpen {
		t.Errorf("State() = %v, want open", s.State())
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("opener called %d times, want 2", got)
	}
}

func TestOpen_StaleHandleIsReopened(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	if err := s.Put(ctx, KeyFootball, "F"); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	// Simulate the environment closing the handle underneath the store
	s.db.Close()

	value, ok, err := s.Get(ctx, KeyFootball)
	if err != nil || !ok || value != "F" {
		t.Fatalf("Get() = (%q, %v, %v), want F", value, ok, err)
	}
	stats := s.Stats()
	if stats.Reopens != 1 || stats.Opens != 2 {
		t.Errorf("Stats() = %+v, want 1 reopen and 2 opens", stats)
	}
}

func TestOpen_DroppedTableIsRecreated(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	mustExec(t, s.db, "DROP TABLE images")

	if err := s.Put(ctx, KeyLogo, "L"); err != nil {
		t.Fatalf("Put() after table drop failed: %v", err)
	}
	if value, ok, _ := s.Get(ctx, KeyLogo); !ok || value != "L" {
		t.Errorf("Get() = (%q, %v), want L", value, ok)
	}
	if got := s.Stats().Reopens; got != 1 {
		t.Errorf("Reopens = %d, want 1", got)
	}
}
