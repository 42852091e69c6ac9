package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPut_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	for _, key := range Keys() {
		value := "data:image/png;base64," + string(key)
		if err := s.Put(ctx, key, value); err != nil {
			t.Fatalf("Put(%s) failed: %v", key, err)
		}
		got, ok, err := s.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", key, err)
		}
		if !ok || got != value {
			t.Errorf("Get(%s) = (%q, %v), want %q", key, got, ok, value)
		}
	}
}

func TestPut_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	if err := s.Put(ctx, KeyBoxing, "X"); err != nil {
		t.Fatalf("Put(X) failed: %v", err)
	}
	if err := s.Put(ctx, KeyBoxing, "Y"); err != nil {
		t.Fatalf("Put(Y) failed: %v", err)
	}

	got, ok, err := s.Get(ctx, KeyBoxing)
	if err != nil || !ok {
		t.Fatalf("Get() = (%q, %v, %v)", got, ok, err)
	}
	if got != "Y" {
		t.Errorf("Get() = %q, want Y", got)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM images WHERE key = 'boxing'").Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("rows for key = %d, want 1", count)
	}
}

func TestPut_EmptyValue(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	if err := s.Put(ctx, KeyLogo, ""); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	got, ok, err := s.Get(ctx, KeyLogo)
	if err != nil || !ok || got != "" {
		t.Errorf("Get() = (%q, %v, %v), want empty string present", got, ok, err)
	}
}

func TestPut_UnknownKey(t *testing.T) {
	s := createTestStore(t)

	err := s.Put(context.Background(), Key("banner"), "X")
	if !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Put() error = %v, want ErrUnknownKey", err)
	}
}

func TestPut_SetsUpdatedAt(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s := createTestStore(t, WithClock(func() time.Time { return now }))

	if err := s.Put(ctx, KeyPatent, "P"); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	rec, ok, err := s.Lookup(ctx, KeyPatent)
	if err != nil || !ok {
		t.Fatalf("Lookup() = (%v, %v)", ok, err)
	}
	if !rec.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", rec.UpdatedAt, now)
	}
}

func TestPut_WriteFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	if err := s.Put(ctx, KeyLogo, "L"); err != nil {
		t.Fatalf("Put(logo) failed: %v", err)
	}

	// Simulate the storage rejecting writes for one key
	mustExec(t, s.db, `
		CREATE TRIGGER deny_patent BEFORE INSERT ON images
		WHEN NEW.key = 'patent'
		BEGIN SELECT RAISE(ABORT, 'disk quota exceeded'); END
	`)

	err := s.Put(ctx, KeyPatent, "Z")
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("Put(patent) error = %v, want ErrWriteFailed", err)
	}
	var storeErr *Error
	if !errors.As(err, &storeErr) || storeErr.Key != KeyPatent || storeErr.Op != "put" {
		t.Errorf("error = %#v, want put on patent", storeErr)
	}

	if _, ok, err := s.Get(ctx, KeyPatent); err != nil || ok {
		t.Errorf("Get(patent) = (%v, %v), want absent", ok, err)
	}
	if got, ok, err := s.Get(ctx, KeyLogo); err != nil || !ok || got != "L" {
		t.Errorf("Get(logo) = (%q, %v, %v), want L", got, ok, err)
	}
	if s.State() != StateOpen {
		t.Errorf("State() = %v, a failed write must not close the store", s.State())
	}
	if got := s.Stats().Reopens; got != 0 {
		t.Errorf("Reopens = %d, a rejected write is not a stale handle", got)
	}
}

func TestPutAsync_DeliversOutcome(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	outcome := <-s.PutAsync(ctx, KeyFootball, "F")
	if !outcome.OK() || outcome.Key != KeyFootball {
		t.Fatalf("Outcome = %+v, want success for football", outcome)
	}
	if got, ok, _ := s.Get(ctx, KeyFootball); !ok || got != "F" {
		t.Errorf("Get() = (%q, %v), want F", got, ok)
	}
}

func TestPutAsync_SurvivesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := createTestStore(t)

	done := s.PutAsync(ctx, KeyLogo, "L")
	cancel()

	if outcome := <-done; !outcome.OK() {
		t.Fatalf("Outcome error: %v", outcome.Err)
	}
	if _, open := <-done; open {
		t.Error("outcome channel not closed after delivery")
	}
}

func TestPutAsync_ReportsFailure(t *testing.T) {
	s := New("/nonexistent/dir/images.db")
	defer s.Close()

	outcome := <-s.PutAsync(context.Background(), KeyPatent, "Z")
	if outcome.OK() {
		t.Fatal("Outcome reported success for an unavailable store")
	}
	if !errors.Is(outcome.Err, ErrStoreUnavailable) {
		t.Errorf("Outcome.Err = %v, want ErrStoreUnavailable", outcome.Err)
	}
}
