// Package store persists app stats to SQLite.
//
// Every write replaces the rows of one app, the same way the file writers
// truncate <app>.json on every run.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aluiziolira/go-wayback-appstats/models"
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS app_stats (
	app          TEXT    NOT NULL,
	seq          INTEGER NOT NULL,
	updated_date TEXT    NOT NULL,
	app_size     TEXT    NOT NULL,
	snapshot_url TEXT    NOT NULL,
	PRIMARY KEY (app, seq)
)`

const busyTimeoutMillis = 10_000

// SQLiteWriter stores stats in the app_stats table.
type SQLiteWriter struct {
	db      *sql.DB
	path    string
	written map[string]int
	order   []string
}

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" is accepted for tests.
func Open(path string) (*SQLiteWriter, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	// One writer at a time; also keeps ":memory:" on a single database.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMillis),
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: exec schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	return &SQLiteWriter{db: db, path: path, written: make(map[string]int)}, nil
}

// WriteStats replaces every row of the app in one transaction. The returned
// location is "<path>#<app>".
func (w *SQLiteWriter) WriteStats(stats *models.AppStats) (string, error) {
	ctx := context.Background()
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM app_stats WHERE app = ?`, stats.AppName); err != nil {
		return "", fmt.Errorf("store: clear %s: %w", stats.AppName, err)
	}

	insert, err := tx.PrepareContext(ctx,
		`INSERT INTO app_stats (app, seq, updated_date, app_size, snapshot_url) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("store: prepare insert: %w", err)
	}
	defer insert.Close()

	for i, stat := range stats.Stats {
		if _, err := insert.ExecContext(ctx, stats.AppName, i, stat.UpdatedDate, stat.AppSize, stat.SnapshotURL); err != nil {
			return "", fmt.Errorf("store: insert %s #%d: %w", stats.AppName, i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("store: commit: %w", err)
	}

	if _, seen := w.written[stats.AppName]; !seen {
		w.order = append(w.order, stats.AppName)
	}
	w.written[stats.AppName] = len(stats.Stats)
	return w.path + "#" + stats.AppName, nil
}

// Stats returns the stored stats of app in write order.
func (w *SQLiteWriter) Stats(ctx context.Context, app string) ([]models.Stat, error) {
	rows, err := w.db.QueryContext(ctx,
		`SELECT updated_date, app_size, snapshot_url FROM app_stats WHERE app = ? ORDER BY seq`, app)
	if err != nil {
		return nil, fmt.Errorf("store: query %s: %w", app, err)
	}
	defer rows.Close()

	var out []models.Stat
	for rows.Next() {
		var s models.Stat
		if err := rows.Scan(&s.UpdatedDate, &s.AppSize, &s.SnapshotURL); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Validate checks that each app written holds as many rows as were written.
func (w *SQLiteWriter) Validate() error {
	for _, app := range w.order {
		var count int
		if err := w.db.QueryRow(`SELECT COUNT(*) FROM app_stats WHERE app = ?`, app).Scan(&count); err != nil {
			return fmt.Errorf("store: count %s: %w", app, err)
		}
		if count != w.written[app] {
			return fmt.Errorf("store: %s has %d rows, expected %d", app, count, w.written[app])
		}
	}
	return nil
}

// Close closes the database.
func (w *SQLiteWriter) Close() error {
	return w.db.Close()
}
