package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"flappyq/models"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS action_values (
	state TEXT PRIMARY KEY,
	idle  REAL NOT NULL,
	flap  REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshots (
	run_id   TEXT NOT NULL,
	saved_at TEXT NOT NULL,
	states   INTEGER NOT NULL
);`

// SQLiteStore keeps the latest snapshot in an action_values table, one row per state, and
// appends a row to snapshots for every save.
type SQLiteStore struct {
	db    *sql.DB
	runID uuid.UUID
}

func OpenSQLiteStore(ctx context.Context, path string, runID uuid.UUID) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases coherent across calls.
	db.SetMaxOpenConns(1)
	if _, err = db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db, runID: runID}, nil
}

func (ss *SQLiteStore) RunID() uuid.UUID {
	return ss.runID
}

// SaveSnapshot replaces the table inside one transaction.
func (ss *SQLiteStore) SaveSnapshot(ctx context.Context, values map[models.StateKey][]float64) (err error) {
	tx, err := ss.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM action_values`); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO action_values (state, idle, flap) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare snapshot: %w", err)
	}
	defer stmt.Close()

	for state, vals := range values {
		var idle, flap float64
		if len(vals) > int(models.IDLE) {
			idle = vals[models.IDLE]
		}
		if len(vals) > int(models.FLAP) {
			flap = vals[models.FLAP]
		}
		if _, err = stmt.ExecContext(ctx, string(state), idle, flap); err != nil {
			return fmt.Errorf("insert %s: %w", state, err)
		}
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (run_id, saved_at, states) VALUES (?, ?, ?)`,
		ss.runID.String(), time.Now().UTC().Format(time.RFC3339Nano), len(values),
	); err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}
	return tx.Commit()
}

func (ss *SQLiteStore) Load(ctx context.Context) (map[models.StateKey][]float64, error) {
	var saves int
	if err := ss.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&saves); err != nil {
		return nil, fmt.Errorf("count snapshots: %w", err)
	}
	if saves == 0 {
		return nil, ErrNoSnapshot
	}

	rows, err := ss.db.QueryContext(ctx, `SELECT state, idle, flap FROM action_values`)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	defer rows.Close()

	values := map[models.StateKey][]float64{}
	for rows.Next() {
		var state string
		vals := make([]float64, models.NUM_ACTIONS)
		if err = rows.Scan(&state, &vals[models.IDLE], &vals[models.FLAP]); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		values[models.StateKey(state)] = vals
	}
	return values, rows.Err()
}

func (ss *SQLiteStore) Close() error {
	return ss.db.Close()
}
