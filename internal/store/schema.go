package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema version tracking:
// 0 - Empty database
// 1 - images(key, value)
// 2 - Added images.updated_at
const currentSchemaVersion = 2

// upgrade makes the database usable at currentSchemaVersion in a single
// transaction. The images table is created whenever it is missing, not only
// when user_version is behind, so a table lost in the field is recreated on
// the next open. Running upgrade on a current database changes nothing.
func upgrade(ctx context.Context, db *sql.DB) (version int, migrated bool, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("begin upgrade: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, false, fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return version, false, fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return 0, false, fmt.Errorf("failed to execute schema: %w", err)
	}

	if version < 2 {
		if err := migrateToV2(ctx, tx); err != nil {
			return 0, false, err
		}
	}

	if version != currentSchemaVersion {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return 0, false, fmt.Errorf("set user_version: %w", err)
		}
		migrated = true
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("commit upgrade: %w", err)
	}
	return currentSchemaVersion, migrated, nil
}

// migrateToV2 adds images.updated_at to databases created at v1. Tables
// created by schema.sql already have the column.
func migrateToV2(ctx context.Context, tx *sql.Tx) error {
	var n int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pragma_table_info('images') WHERE name = 'updated_at'",
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("migrate to v2: inspect columns: %w", err)
	}
	if n > 0 {
		return nil
	}

	_, err = tx.ExecContext(ctx, "ALTER TABLE images ADD COLUMN updated_at INTEGER NOT NULL DEFAULT 0")
	if err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	return nil
}
