package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	shipiterr "github.com/familyevents/shipit/errors"
	"github.com/familyevents/shipit/internal/pipeline"
)

// RunRepo implements [pipeline.RunRepository] backed by SQLite.
type RunRepo struct {
	DB *sql.DB
}

const runColumns = `id, target, image, event_name, event_ref, commit_sha, repository,
	state, failed_step, error, image_id, digest, created_at, updated_at`

func (r *RunRepo) Create(ctx context.Context, run pipeline.Run) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Target, run.Image, run.Event.Name, run.Event.Ref, run.Event.Commit, run.Event.Repository,
		string(run.State), string(run.FailedStep), run.Error, run.ImageID, run.Digest,
		formatTime(run.CreatedAt), formatTime(run.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("run %q already exists", run.ID)
		}
		return fmt.Errorf("insert run: %w", err)
	}
	if err := insertTransitions(ctx, tx, run); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *RunRepo) Update(ctx context.Context, run pipeline.Run) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE runs SET state = ?, failed_step = ?, error = ?, image_id = ?, digest = ?, updated_at = ?
		 WHERE id = ?`,
		string(run.State), string(run.FailedStep), run.Error, run.ImageID, run.Digest,
		formatTime(run.UpdatedAt), run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run %q: %w", run.ID, shipiterr.ErrRunNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_transitions WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("clear transitions: %w", err)
	}
	if err := insertTransitions(ctx, tx, run); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *RunRepo) Get(ctx context.Context, id string) (pipeline.Run, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, shipiterr.ErrRunNotFound) {
			return run, fmt.Errorf("run %q: %w", id, err)
		}
		return run, err
	}
	if run.Transitions, err = r.transitions(ctx, run.ID); err != nil {
		return pipeline.Run{}, err
	}
	return run, nil
}

func (r *RunRepo) List(ctx context.Context, limit int) ([]pipeline.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	var runs []pipeline.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, run)
	}
	// release the single connection before loading transitions
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	for i := range runs {
		if runs[i].Transitions, err = r.transitions(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (r *RunRepo) transitions(ctx context.Context, runID string) ([]pipeline.Transition, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT from_state, to_state, at FROM run_transitions WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []pipeline.Transition
	for rows.Next() {
		var from, to, at string
		if err := rows.Scan(&from, &to, &at); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		ts, err := parseTime(at)
		if err != nil {
			return nil, err
		}
		out = append(out, pipeline.Transition{From: pipeline.State(from), To: pipeline.State(to), At: ts})
	}
	return out, rows.Err()
}

func insertTransitions(ctx context.Context, tx *sql.Tx, run pipeline.Run) error {
	for i, t := range run.Transitions {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO run_transitions (run_id, seq, from_state, to_state, at) VALUES (?, ?, ?, ?, ?)`,
			run.ID, i, string(t.From), string(t.To), formatTime(t.At),
		)
		if err != nil {
			return fmt.Errorf("insert transition: %w", err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (pipeline.Run, error) {
	var (
		run                  pipeline.Run
		state, step          string
		createdAt, updatedAt string
	)
	err := s.Scan(&run.ID, &run.Target, &run.Image,
		&run.Event.Name, &run.Event.Ref, &run.Event.Commit, &run.Event.Repository,
		&state, &step, &run.Error, &run.ImageID, &run.Digest, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, shipiterr.ErrRunNotFound
		}
		return run, fmt.Errorf("scan run: %w", err)
	}
	run.State = pipeline.State(state)
	run.FailedStep = pipeline.Step(step)
	if run.CreatedAt, err = parseTime(createdAt); err != nil {
		return run, err
	}
	if run.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return run, err
	}
	return run, nil
}

// timestamps are stored as fixed-width UTC text so they sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
