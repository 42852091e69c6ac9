package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Record is one stored image with its metadata.
type Record struct {
	Key       Key
	Value     string
	UpdatedAt time.Time
}

// Get returns the value stored under key. A key that was never written is
// reported as ok=false with a nil error.
//
// When the store cannot be opened, Get also reports absent with a nil error:
// for callers a missing store is the same as no customization. ErrReadFailed
// is returned only when the query fails on an open handle.
func (s *Store) Get(ctx context.Context, key Key) (value string, ok bool, err error) {
	rec, ok, err := s.Lookup(ctx, key)
	if err != nil {
		if IsOpenFailure(err) {
			s.logger.Warn("image store unavailable, using default", "key", key, "error", err)
			return "", false, nil
		}
		return "", false, err
	}
	return rec.Value, ok, nil
}

// Lookup is Get with metadata and without masking open failures.
func (s *Store) Lookup(ctx context.Context, key Key) (Record, bool, error) {
	if err := key.Validate(); err != nil {
		return Record{}, false, err
	}

	var (
		rec     = Record{Key: key}
		found   bool
		updated int64
	)
	err := s.exec(ctx, "get", key, KindRead, func(db *sql.DB) error {
		err := db.QueryRowContext(ctx,
			"SELECT value, updated_at FROM images WHERE key = ?", string(key),
		).Scan(&rec.Value, &updated)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return Record{}, false, err
	}
	if !found {
		return Record{}, false, nil
	}
	rec.UpdatedAt = time.UnixMilli(updated)
	return rec, true, nil
}

// List returns every stored record in key order.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	var records []Record
	err := s.exec(ctx, "list", "", KindRead, func(db *sql.DB) error {
		records = records[:0]
		rows, err := db.QueryContext(ctx, "SELECT key, value, updated_at FROM images ORDER BY key ASC")
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				rec     Record
				key     string
				updated int64
			)
			if err := rows.Scan(&key, &rec.Value, &updated); err != nil {
				return fmt.Errorf("scan image: %w", err)
			}
			rec.Key = Key(key)
			rec.UpdatedAt = time.UnixMilli(updated)
			records = append(records, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
