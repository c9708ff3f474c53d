// Package persistence provides SQLite-based storage for runs, per-kind tick
// statistics and exported signal fields.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/mini-colony/internal/signals"
)

// ErrRunNotFound is returned when a run id has no row.
var ErrRunNotFound = errors.New("run not found")

// DB wraps a SQLite connection.
type DB struct {
	conn *sqlx.DB
}

// Run is one simulation run.
type Run struct {
	ID        string `db:"id" json:"id"`
	Seed      int64  `db:"seed" json:"seed"`
	StartedAt int64  `db:"started_at" json:"started_at"` // Unix seconds
	LastTick  uint64 `db:"last_tick" json:"last_tick"`
	Config    string `db:"config_json" json:"-"`
}

// StatRow is one kind's statistics at one tick.
type StatRow struct {
	Tick        uint64  `db:"tick" json:"tick"`
	Kind        string  `db:"kind" json:"kind"`
	ActiveCells int     `db:"active_cells" json:"active_cells"`
	Total       float64 `db:"total" json:"total"`
	Max         float64 `db:"max" json:"max"`
}

// Started returns the run's start time.
func (r Run) Started() time.Time {
	return time.Unix(r.StartedAt, 0).UTC()
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		last_tick INTEGER NOT NULL DEFAULT 0,
		config_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tick_stats (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		kind TEXT NOT NULL,
		active_cells INTEGER NOT NULL,
		total REAL NOT NULL,
		max REAL NOT NULL,
		PRIMARY KEY (run_id, tick, kind)
	);

	CREATE TABLE IF NOT EXISTS field_cells (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		kind TEXT NOT NULL,
		q INTEGER NOT NULL,
		r INTEGER NOT NULL,
		value REAL NOT NULL,
		PRIMARY KEY (run_id, tick, kind, q, r)
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		run_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (run_id, key)
	);

	CREATE INDEX IF NOT EXISTS idx_tick_stats_run ON tick_stats(run_id, tick);
	CREATE INDEX IF NOT EXISTS idx_field_cells_run ON field_cells(run_id, tick, kind);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// StartRun records a new run and returns its id.
func (db *DB) StartRun(seed int64, configJSON string) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.Exec(
		"INSERT INTO runs (id, seed, started_at, last_tick, config_json) VALUES (?, ?, ?, 0, ?)",
		id, seed, time.Now().Unix(), configJSON,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// GetRun loads one run.
func (db *DB) GetRun(id string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT id, seed, started_at, last_tick, config_json FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	return r, err
}

// Runs lists every run, newest first.
func (db *DB) Runs() ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs, "SELECT id, seed, started_at, last_tick, config_json FROM runs ORDER BY started_at DESC")
	return runs, err
}

// SaveStats writes one report's per-kind statistics and advances the run's last tick.
func (db *DB) SaveStats(runID string, stats signals.MapStats) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT OR REPLACE INTO tick_stats
		(run_id, tick, kind, active_cells, total, max) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, k := range stats.Kinds {
		if _, err := stmt.Exec(runID, stats.Tick, k.Kind, k.ActiveCells, k.Total, k.Max); err != nil {
			return fmt.Errorf("insert stats %s: %w", k.Kind, err)
		}
	}
	if _, err := tx.Exec("UPDATE runs SET last_tick = ? WHERE id = ? AND last_tick < ?", stats.Tick, runID, stats.Tick); err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	return tx.Commit()
}

// StatsHistory returns a kind's statistics for a run in tick order.
func (db *DB) StatsHistory(runID, kind string, limit int) ([]StatRow, error) {
	var rows []StatRow
	err := db.conn.Select(&rows, `SELECT tick, kind, active_cells, total, max FROM tick_stats
		WHERE run_id = ? AND kind = ? ORDER BY tick DESC LIMIT ?`, runID, kind, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// SaveField writes every exported field at tick, replacing what was stored for
// that tick before.
func (db *DB) SaveField(runID string, tick uint64, fields []signals.FieldExport) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM field_cells WHERE run_id = ? AND tick = ?", runID, tick); err != nil {
		return err
	}

	stmt, err := tx.Preparex("INSERT INTO field_cells (run_id, tick, kind, q, r, value) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	cells := 0
	for _, fe := range fields {
		for _, c := range fe.Cells {
			if _, err := stmt.Exec(runID, tick, fe.Kind, c.Q, c.R, c.Value); err != nil {
				return fmt.Errorf("insert cell %s (%d,%d): %w", fe.Kind, c.Q, c.R, err)
			}
			cells++
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("field saved", "run", runID, "tick", tick, "kinds", len(fields), "cells", cells)
	return nil
}

// LoadField returns the stored cells of kind at tick, sorted by coordinate.
func (db *DB) LoadField(runID string, tick uint64, kind string) ([]signals.CellValue, error) {
	var cells []signals.CellValue
	err := db.conn.Select(&cells, `SELECT q, r, value FROM field_cells
		WHERE run_id = ? AND tick = ? AND kind = ? ORDER BY q, r`, runID, tick, kind)
	return cells, err
}

// FieldTicks lists the ticks with stored fields for a run, newest first.
func (db *DB) FieldTicks(runID string) ([]uint64, error) {
	var ticks []uint64
	err := db.conn.Select(&ticks, "SELECT DISTINCT tick FROM field_cells WHERE run_id = ? ORDER BY tick DESC", runID)
	return ticks, err
}

// SaveMeta stores a key-value pair for a run.
func (db *DB) SaveMeta(runID, key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO run_meta (run_id, key, value) VALUES (?, ?, ?)",
		runID, key, value,
	)
	return err
}

// GetMeta retrieves a run metadata value.
func (db *DB) GetMeta(runID, key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM run_meta WHERE run_id = ? AND key = ?", runID, key)
	return value, err
}
