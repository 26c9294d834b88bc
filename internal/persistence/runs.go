package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	RunRunning  = "running"
	RunDone     = "done"
	RunFailed   = "failed"
	RunCanceled = "canceled"
)

// Run is one pipeline execution.
type Run struct {
	ID         string        `db:"id" json:"id"`
	Seed       int64         `db:"seed" json:"seed"`
	Config     string        `db:"config" json:"config"`
	StartedMs  int64         `db:"started_at" json:"-"`
	FinishedMs sql.NullInt64 `db:"finished_at" json:"-"`
	Status     string        `db:"status" json:"status"`
}

// StartedAt returns when the run began.
func (r Run) StartedAt() time.Time { return time.UnixMilli(r.StartedMs) }

// FinishedAt returns when the run ended, or the zero time if it has not.
func (r Run) FinishedAt() time.Time {
	if !r.FinishedMs.Valid {
		return time.Time{}
	}
	return time.UnixMilli(r.FinishedMs.Int64)
}

// StartRun records a new running pipeline and returns its ID.
func (db *DB) StartRun(ctx context.Context, seed int64, config string) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO runs (id, seed, config, started_at, status) VALUES (?, ?, ?, ?, ?)",
		id, seed, config, time.Now().UnixMilli(), RunRunning,
	)
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}
	return id, nil
}

// FinishRun stamps a run's end time and final status.
func (db *DB) FinishRun(ctx context.Context, id, status string) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE runs SET finished_at = ?, status = ? WHERE id = ?",
		time.Now().UnixMilli(), status, id,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

// RecentRuns returns the most recent runs, newest first.
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	err := db.conn.SelectContext(ctx, &runs,
		"SELECT id, seed, config, started_at, finished_at, status FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?",
		limit,
	)
	return runs, err
}
