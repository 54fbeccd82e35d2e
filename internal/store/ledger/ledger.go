// Package ledger is the durable usage ledger: per-day action counters, the
// append-only action history, known targets, and session rows. Every counter
// mutation happens in a single transaction so a crash can never leave an
// action logged but not counted.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"outreach/internal/limits"
)

// ErrStorage marks any fault of the underlying store. Callers must treat it
// as "deny", never as "allow".
var ErrStorage = errors.New("ledger storage error")

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}

// DB wraps the SQLite database backing the ledger.
type DB struct{ sql *sql.DB }

func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storageErr("open", err)
	}
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		return nil, storageErr("pragma", err)
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS action_logs (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  ts INTEGER NOT NULL,
	  platform TEXT NOT NULL,
	  action_type TEXT NOT NULL,
	  username TEXT NOT NULL,
	  status TEXT NOT NULL DEFAULT 'success',
	  details TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_logs_ts ON action_logs(ts);
	CREATE INDEX IF NOT EXISTS idx_logs_user ON action_logs(username, platform);
	CREATE INDEX IF NOT EXISTS idx_logs_action ON action_logs(platform, action_type, ts);
	CREATE TABLE IF NOT EXISTS rate_limits (
	  platform TEXT NOT NULL,
	  action_type TEXT NOT NULL,
	  day TEXT NOT NULL,
	  count INTEGER NOT NULL DEFAULT 0,
	  PRIMARY KEY (platform, action_type, day)
	);
	CREATE TABLE IF NOT EXISTS targets (
	  url TEXT PRIMARY KEY,
	  platform TEXT NOT NULL,
	  username TEXT,
	  status TEXT NOT NULL DEFAULT 'pending',
	  followers INTEGER,
	  notes TEXT,
	  created_at INTEGER NOT NULL,
	  updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_targets_status ON targets(status);
	CREATE TABLE IF NOT EXISTS sessions (
	  id TEXT PRIMARY KEY,
	  platform TEXT NOT NULL,
	  started_at INTEGER NOT NULL,
	  ended_at INTEGER,
	  processed INTEGER NOT NULL DEFAULT 0,
	  actions INTEGER NOT NULL DEFAULT 0,
	  errors INTEGER NOT NULL DEFAULT 0,
	  notes TEXT
	);
	`)
	if err != nil {
		return storageErr("migrate", err)
	}
	return nil
}

// DayKey formats a timestamp into the ledger's daily bucket key.
func DayKey(ts time.Time) string { return ts.UTC().Format("2006-01-02") }

// Increment appends a history row and bumps the matching daily counter in
// one transaction. Returns the history row id.
func (d *DB) Increment(ctx context.Context, ts time.Time, platform string, action limits.Action, username, status, details string) (int64, error) {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO action_logs(ts, platform, action_type, username, status, details) VALUES(?,?,?,?,?,?)`,
		ts.UTC().Unix(), platform, string(action), username, status, details)
	if err != nil {
		return 0, storageErr("log action", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rate_limits(platform, action_type, day, count) VALUES(?,?,?,1)
		 ON CONFLICT(platform, action_type, day) DO UPDATE SET count = count + 1`,
		platform, string(action), DayKey(ts)); err != nil {
		return 0, storageErr("bump counter", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, storageErr("commit", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// DailyCount returns the counter for (platform, action) on the day of ts.
func (d *DB) DailyCount(ctx context.Context, platform string, action limits.Action, ts time.Time) (int, error) {
	row := d.sql.QueryRowContext(ctx,
		`SELECT count FROM rate_limits WHERE platform=? AND action_type=? AND day=?`,
		platform, string(action), DayKey(ts))
	var c int
	if err := row.Scan(&c); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, storageErr("daily count", err)
	}
	return c, nil
}

// HourlyCount counts history rows for (platform, action) within the trailing
// hour before now. Sliding window, not a bucketed one.
func (d *DB) HourlyCount(ctx context.Context, platform string, action limits.Action, now time.Time) (int, error) {
	cutoff := now.UTC().Add(-time.Hour).Unix()
	row := d.sql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM action_logs WHERE platform=? AND action_type=? AND ts>=?`,
		platform, string(action), cutoff)
	var c int
	if err := row.Scan(&c); err != nil {
		return 0, storageErr("hourly count", err)
	}
	return c, nil
}

// HasPriorInteraction reports whether any history row exists for the user on
// the platform. Empty action matches any action type.
func (d *DB) HasPriorInteraction(ctx context.Context, username, platform string, action limits.Action) (bool, error) {
	var row *sql.Row
	if action == "" {
		row = d.sql.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM action_logs WHERE username=? AND platform=?)`,
			username, platform)
	} else {
		row = d.sql.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM action_logs WHERE username=? AND platform=? AND action_type=?)`,
			username, platform, string(action))
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, storageErr("prior interaction", err)
	}
	return exists, nil
}

// LogEntry is one row of the action history.
type LogEntry struct {
	ID       int64
	TS       time.Time
	Platform string
	Action   limits.Action
	Username string
	Status   string
	Details  string
}

// History returns the most recent log entries matching the optional filters.
func (d *DB) History(ctx context.Context, platform string, action limits.Action, limit int) ([]LogEntry, error) {
	q := `SELECT id, ts, platform, action_type, username, status, COALESCE(details,'') FROM action_logs WHERE 1=1`
	var args []any
	if platform != "" {
		q += ` AND platform=?`
		args = append(args, platform)
	}
	if action != "" {
		q += ` AND action_type=?`
		args = append(args, string(action))
	}
	q += ` ORDER BY ts DESC LIMIT ?`
	args = append(args, limit)

	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr("history", err)
	}
	defer rows.Close()
	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		var ts int64
		var action string
		if err := rows.Scan(&e.ID, &ts, &e.Platform, &action, &e.Username, &e.Status, &e.Details); err != nil {
			return nil, storageErr("history scan", err)
		}
		e.TS = time.Unix(ts, 0).UTC()
		e.Action = limits.Action(action)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("history rows", err)
	}
	return out, nil
}

// UpsertTarget registers a target URL, keeping existing rows untouched apart
// from username backfill.
func (d *DB) UpsertTarget(ctx context.Context, url, platform, username string, now time.Time) error {
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO targets(url, platform, username, created_at, updated_at) VALUES(?,?,?,?,?)
		 ON CONFLICT(url) DO UPDATE SET username=COALESCE(NULLIF(excluded.username,''), targets.username), updated_at=excluded.updated_at`,
		url, platform, username, now.UTC().Unix(), now.UTC().Unix())
	if err != nil {
		return storageErr("upsert target", err)
	}
	return nil
}

// UpdateTargetStatus sets a target's processing status and optional notes
// and follower count.
func (d *DB) UpdateTargetStatus(ctx context.Context, url, status, notes string, followers int, now time.Time) error {
	_, err := d.sql.ExecContext(ctx,
		`UPDATE targets SET status=?, notes=?, followers=CASE WHEN ?>0 THEN ? ELSE followers END, updated_at=? WHERE url=?`,
		status, notes, followers, followers, now.UTC().Unix(), url)
	if err != nil {
		return storageErr("update target", err)
	}
	return nil
}

// PendingTargets lists target URLs still pending for a platform.
func (d *DB) PendingTargets(ctx context.Context, platform string, limit int) ([]string, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT url FROM targets WHERE platform=? AND status='pending' ORDER BY created_at LIMIT ?`,
		platform, limit)
	if err != nil {
		return nil, storageErr("pending targets", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, storageErr("pending scan", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("pending rows", err)
	}
	return out, nil
}

// StartSession records the start of a run.
func (d *DB) StartSession(ctx context.Context, id, platform string, now time.Time) error {
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO sessions(id, platform, started_at) VALUES(?,?,?)
		 ON CONFLICT(id) DO NOTHING`,
		id, platform, now.UTC().Unix())
	if err != nil {
		return storageErr("start session", err)
	}
	return nil
}

// EndSession records a run's final counters and notes.
func (d *DB) EndSession(ctx context.Context, id string, processed, actions, errs int, notes string, now time.Time) error {
	_, err := d.sql.ExecContext(ctx,
		`UPDATE sessions SET ended_at=?, processed=?, actions=?, errors=?, notes=? WHERE id=?`,
		now.UTC().Unix(), processed, actions, errs, notes, id)
	if err != nil {
		return storageErr("end session", err)
	}
	return nil
}
