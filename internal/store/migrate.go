package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migration upgrades the schema to version. Steps run inside the caller's
// transaction so the data change and the version bump commit together.
type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, tx *sql.Tx) error
}

// migrations lists upgrade steps in ascending version order.
var migrations = []migration{
	{version: 2, name: "add leaderboard.first_correct_at", apply: migrateToV2},
}

// Migrate upgrades the schema from fromVersion to the current version.
//
// It is idempotent: a no-op when fromVersion or the recorded version is
// already current. Otherwise every step newer than the effective starting
// version runs in one transaction together with the schema_meta update.
// Downgrades are refused with ErrForwardOnly.
func (s *Store) Migrate(ctx context.Context, fromVersion int) error {
	if fromVersion == currentSchemaVersion {
		return nil
	}
	if fromVersion > currentSchemaVersion {
		return fmt.Errorf("%w: on-disk %d, supported %d", ErrForwardOnly, fromVersion, currentSchemaVersion)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var recorded int
	if err := tx.QueryRowContext(ctx, `SELECT schema_version FROM schema_meta WHERE id = 1`).Scan(&recorded); err != nil {
		return fmt.Errorf("migrate: read version: %w", err)
	}
	if recorded >= currentSchemaVersion {
		return nil
	}

	from := max(fromVersion, recorded)
	for _, m := range migrations {
		if m.version <= from {
			continue
		}
		if err := m.apply(ctx, tx); err != nil {
			return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE schema_meta SET schema_version = ? WHERE id = 1`, currentSchemaVersion); err != nil {
		return fmt.Errorf("migrate: persist version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit: %w", err)
	}
	return nil
}

// migrateToV2 adds leaderboard.first_correct_at for databases created before
// version tracking. New databases get the column from schema.sql.
func migrateToV2(ctx context.Context, tx *sql.Tx) error {
	exists, err := columnExists(ctx, tx, "leaderboard", "first_correct_at")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = tx.ExecContext(ctx, `ALTER TABLE leaderboard ADD COLUMN first_correct_at TEXT`)
	return err
}

func columnExists(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, fmt.Errorf("scan table info: %w", err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
