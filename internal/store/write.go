package store

import (
	"context"
	"database/sql"
)

// Outcome reports the result of a fire-and-forget write.
type Outcome struct {
	Key Key
	Err error
}

// OK reports whether the write persisted.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Put stores value under key, replacing any prior value.
//
// Errors match ErrStoreUnavailable or ErrSchemaUpgradeFailed when the store
// could not be opened, and ErrWriteFailed when the write itself failed.
func (s *Store) Put(ctx context.Context, key Key, value string) error {
	if err := key.Validate(); err != nil {
		return err
	}

	return s.exec(ctx, "put", key, KindWrite, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO images (key, value, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				updated_at = excluded.updated_at
		`, string(key), value, s.now().UnixMilli())
		return err
	})
}

// PutAsync writes in the background and never blocks the caller. Failures
// are logged. The returned channel receives exactly one Outcome and is then
// closed; callers may ignore it.
//
// The write outlives ctx cancellation so a finished request does not abort it.
func (s *Store) PutAsync(ctx context.Context, key Key, value string) <-chan Outcome {
	out := make(chan Outcome, 1)
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer close(out)
		err := s.Put(ctx, key, value)
		if err != nil {
			s.logger.Error("image write failed", "key", key, "error", err)
		} else {
			s.logger.Info("image saved", "key", key, "bytes", len(value))
		}
		out <- Outcome{Key: key, Err: err}
	}()

	return out
}
