// Package sqlite persists the allocation state in a SQLite database.
//
// Each aggregate is stored as a JSON document next to the columns it is
// looked up by. Writes are conditional on the version column.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/fuelq/core/model"
	"github.com/kilianp07/fuelq/core/store"
)

// Config selects the database file and connection limits.
type Config struct {
	Path         string        `json:"path"`
	BusyTimeout  time.Duration `json:"busy_timeout"`
	MaxOpenConns int           `json:"max_open_conns"`
}

// Store implements store.Store on SQLite.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens or creates the database at cfg.Path and migrates it.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 1
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout=%d;", cfg.BusyTimeout.Milliseconds()),
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma failed (%s): %w", p, err)
		}
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

type column struct {
	name  string
	value any
}

// write inserts the row when version is 0 and otherwise updates it only if
// the stored version still equals version.
func (s *Store) write(ctx context.Context, table, pk string, version int64, doc any, cols ...column) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	cols = append(cols, column{"version", version + 1}, column{"data", string(data)})

	var res sql.Result
	if version == 0 {
		names := []string{"pk"}
		marks := []string{"?"}
		args := []any{pk}
		for _, c := range cols {
			names = append(names, c.name)
			marks = append(marks, "?")
			args = append(args, c.value)
		}
		q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(pk) DO NOTHING`,
			table, strings.Join(names, ", "), strings.Join(marks, ", "))
		res, err = s.db.ExecContext(ctx, q, args...)
	} else {
		sets := make([]string, 0, len(cols))
		args := make([]any, 0, len(cols)+2)
		for _, c := range cols {
			sets = append(sets, c.name+" = ?")
			args = append(args, c.value)
		}
		args = append(args, pk, version)
		q := fmt.Sprintf(`UPDATE %s SET %s WHERE pk = ? AND version = ?`, table, strings.Join(sets, ", "))
		res, err = s.db.ExecContext(ctx, q, args...)
	}
	if err != nil {
		return fmt.Errorf("sqlite: write %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrVersionConflict
	}
	return nil
}

func (s *Store) read(ctx context.Context, table, pk string, dst any) error {
	var data string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT data FROM %s WHERE pk = ?`, table), pk).Scan(&data)
	if err == sql.ErrNoRows {
		return store.NotFound(strings.TrimSuffix(table, "s"), pk)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dst)
}

func scanDocs[T any](rows *sql.Rows) ([]T, error) {
	defer func() { _ = rows.Close() }()
	var out []T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func pair(a string, fuel model.FuelType) string { return a + "|" + string(fuel) }

// GetRequest implements store.RequestRepo.
func (s *Store) GetRequest(ctx context.Context, id string) (model.Request, error) {
	var r model.Request
	err := s.read(ctx, "requests", id, &r)
	return r, err
}

// PutRequest implements store.RequestRepo.
func (s *Store) PutRequest(ctx context.Context, r *model.Request) error {
	next := *r
	next.Version = r.Version + 1
	err := s.write(ctx, "requests", r.ID, r.Version, next,
		column{"registration_no", r.RegistrationNo},
		column{"fuel_type", string(r.FuelType)},
		column{"state", string(r.State)},
		column{"created_at_ns", r.CreatedAt.UnixNano()},
	)
	if err == nil {
		r.Version = next.Version
	}
	return err
}

// ListRequests implements store.RequestRepo, oldest first.
func (s *Store) ListRequests(ctx context.Context, f store.RequestFilter) ([]model.Request, error) {
	q := `SELECT data FROM requests WHERE 1=1`
	var args []any
	if f.RegistrationNo != "" {
		q += ` AND registration_no = ?`
		args = append(args, f.RegistrationNo)
	}
	if f.FuelType != "" {
		q += ` AND fuel_type = ?`
		args = append(args, string(f.FuelType))
	}
	if len(f.States) > 0 {
		q += ` AND state IN (?` + strings.Repeat(", ?", len(f.States)-1) + `)`
		for _, st := range f.States {
			args = append(args, string(st))
		}
	}
	q += ` ORDER BY created_at_ns, pk`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanDocs[model.Request](rows)
}

// GetQuota implements store.QuotaRepo.
func (s *Store) GetQuota(ctx context.Context, subject string, fuel model.FuelType) (model.Quota, error) {
	var q model.Quota
	err := s.read(ctx, "quotas", pair(subject, fuel), &q)
	return q, err
}

// PutQuota implements store.QuotaRepo.
func (s *Store) PutQuota(ctx context.Context, q *model.Quota) error {
	next := *q
	next.Version = q.Version + 1
	err := s.write(ctx, "quotas", pair(q.SubjectID, q.FuelType), q.Version, next,
		column{"subject_id", q.SubjectID},
		column{"fuel_type", string(q.FuelType)},
	)
	if err == nil {
		q.Version = next.Version
	}
	return err
}

// ListQuotas implements store.QuotaRepo.
func (s *Store) ListQuotas(ctx context.Context, subject string) ([]model.Quota, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM quotas WHERE subject_id = ? ORDER BY fuel_type`, subject)
	if err != nil {
		return nil, err
	}
	return scanDocs[model.Quota](rows)
}

// GetStock implements store.StockRepo.
func (s *Store) GetStock(ctx context.Context, station string, fuel model.FuelType) (model.Stock, error) {
	var st model.Stock
	err := s.read(ctx, "stock", pair(station, fuel), &st)
	return st, err
}

// PutStock implements store.StockRepo.
func (s *Store) PutStock(ctx context.Context, st *model.Stock) error {
	next := *st
	next.Version = st.Version + 1
	err := s.write(ctx, "stock", pair(st.StationRegNo, st.FuelType), st.Version, next,
		column{"station", st.StationRegNo},
		column{"fuel_type", string(st.FuelType)},
	)
	if err == nil {
		st.Version = next.Version
	}
	return err
}

// ListStationStock implements store.StockRepo.
func (s *Store) ListStationStock(ctx context.Context, station string) ([]model.Stock, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM stock WHERE station = ? ORDER BY fuel_type`, station)
	if err != nil {
		return nil, err
	}
	return scanDocs[model.Stock](rows)
}

// GetWaiting implements store.WaitingRepo.
func (s *Store) GetWaiting(ctx context.Context, station string, fuel model.FuelType) (model.WaitingQueue, error) {
	var q model.WaitingQueue
	err := s.read(ctx, "waiting_queues", pair(station, fuel), &q)
	return q, err
}

// PutWaiting implements store.WaitingRepo.
func (s *Store) PutWaiting(ctx context.Context, q *model.WaitingQueue) error {
	next := *q
	next.Version = q.Version + 1
	err := s.write(ctx, "waiting_queues", pair(q.StationRegNo, q.FuelType), q.Version, next,
		column{"station", q.StationRegNo},
		column{"fuel_type", string(q.FuelType)},
	)
	if err == nil {
		q.Version = next.Version
	}
	return err
}

// GetQueue implements store.QueueRepo.
func (s *Store) GetQueue(ctx context.Context, id string) (model.AnnouncedQueue, error) {
	var q model.AnnouncedQueue
	err := s.read(ctx, "queues", id, &q)
	return q, err
}

// PutQueue implements store.QueueRepo.
func (s *Store) PutQueue(ctx context.Context, q *model.AnnouncedQueue) error {
	next := *q
	next.Version = q.Version + 1
	err := s.write(ctx, "queues", q.ID, q.Version, next,
		column{"station", q.StationRegNo},
		column{"fuel_type", string(q.FuelType)},
		column{"state", string(q.State)},
		column{"created_at_ns", q.CreatedAt.UnixNano()},
	)
	if err == nil {
		q.Version = next.Version
	}
	return err
}

// ListQueues implements store.QueueRepo, oldest first.
func (s *Store) ListQueues(ctx context.Context, f model.QueueFilter) ([]model.AnnouncedQueue, error) {
	q := `SELECT data FROM queues WHERE 1=1`
	var args []any
	if f.StationRegNo != "" {
		q += ` AND station = ?`
		args = append(args, f.StationRegNo)
	}
	if f.FuelType != "" {
		q += ` AND fuel_type = ?`
		args = append(args, string(f.FuelType))
	}
	if f.State != "" {
		q += ` AND state = ?`
		args = append(args, string(f.State))
	}
	q += ` ORDER BY created_at_ns, pk`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanDocs[model.AnnouncedQueue](rows)
}

// AddNotifications implements store.NotificationRepo.
func (s *Store) AddNotifications(ctx context.Context, ns ...model.Notification) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, n := range ns {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO notifications (id, recipient, title, message, created_at_ns, read) VALUES (?, ?, ?, ?, ?, ?)`,
			n.ID, n.Recipient, n.Title, n.Message, n.CreatedAt.UnixNano(), n.Read); err != nil {
			return fmt.Errorf("sqlite: insert notification: %w", err)
		}
	}
	return tx.Commit()
}

// ListNotifications implements store.NotificationRepo, newest first.
func (s *Store) ListNotifications(ctx context.Context, recipient string, unreadOnly bool) ([]model.Notification, error) {
	q := `SELECT id, recipient, title, message, created_at_ns, read FROM notifications WHERE recipient = ?`
	if unreadOnly {
		q += ` AND read = 0`
	}
	q += ` ORDER BY created_at_ns DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, q, recipient)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		var ts int64
		if err := rows.Scan(&n.ID, &n.Recipient, &n.Title, &n.Message, &ts, &n.Read); err != nil {
			return nil, err
		}
		n.CreatedAt = time.Unix(0, ts).UTC()
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationsRead implements store.NotificationRepo. An empty ids
// slice marks every unread message of recipient.
func (s *Store) MarkNotificationsRead(ctx context.Context, recipient string, ids []string) (int, error) {
	q := `UPDATE notifications SET read = 1 WHERE recipient = ? AND read = 0`
	args := []any{recipient}
	if len(ids) > 0 {
		q += ` AND id IN (?` + strings.Repeat(", ?", len(ids)-1) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
