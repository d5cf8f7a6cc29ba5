package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var migrations = []string{
	1: `
CREATE TABLE IF NOT EXISTS requests (
  id TEXT PRIMARY KEY,
  registration_no TEXT NOT NULL,
  fuel_type TEXT NOT NULL,
  state TEXT NOT NULL,
  created_at_ns INTEGER NOT NULL,
  version INTEGER NOT NULL,
  data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_requests_subject ON requests(registration_no, fuel_type);
CREATE INDEX IF NOT EXISTS idx_requests_state ON requests(state);

CREATE TABLE IF NOT EXISTS quotas (
  pk TEXT PRIMARY KEY,
  subject_id TEXT NOT NULL,
  fuel_type TEXT NOT NULL,
  version INTEGER NOT NULL,
  data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_quotas_subject ON quotas(subject_id);

CREATE TABLE IF NOT EXISTS stock (
  pk TEXT PRIMARY KEY,
  station TEXT NOT NULL,
  fuel_type TEXT NOT NULL,
  version INTEGER NOT NULL,
  data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stock_station ON stock(station);

CREATE TABLE IF NOT EXISTS waiting_queues (
  pk TEXT PRIMARY KEY,
  station TEXT NOT NULL,
  fuel_type TEXT NOT NULL,
  version INTEGER NOT NULL,
  data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS queues (
  pk TEXT PRIMARY KEY,
  station TEXT NOT NULL,
  fuel_type TEXT NOT NULL,
  state TEXT NOT NULL,
  created_at_ns INTEGER NOT NULL,
  version INTEGER NOT NULL,
  data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_queues_station ON queues(station, fuel_type);
CREATE INDEX IF NOT EXISTS idx_queues_state ON queues(state);
`,
	2: `
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  recipient TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  created_at_ns INTEGER NOT NULL,
  read INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient, read);
`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at_ns INTEGER NOT NULL
);`); err != nil {
		return err
	}
	var cur sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&cur); err != nil {
		return err
	}
	for v := int(cur.Int64) + 1; v < len(migrations); v++ {
		if err := apply(ctx, db, v); err != nil {
			return err
		}
	}
	return nil
}

func apply(ctx context.Context, db *sql.DB, version int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, migrations[version]); err != nil {
		return fmt.Errorf("migration v%d failed: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations(version, applied_at_ns) VALUES(?, ?)`,
		version, time.Now().UnixNano()); err != nil {
		return err
	}
	return tx.Commit()
}
