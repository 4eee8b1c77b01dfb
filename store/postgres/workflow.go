package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	posauth "github.com/vndocker/pos-AI-community"
	"github.com/vndocker/pos-AI-community/id"
	"github.com/vndocker/pos-AI-community/workflow"
)

const runColumns = `id, key, name, version, state, input, output, error,
	started_at, completed_at, created_at, updated_at`

// CreateRun persists a new workflow run.
func (s *Store) CreateRun(ctx context.Context, run *workflow.Run) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO posauth_workflow_runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		run.ID.String(), run.Key, run.Name, run.Version, string(run.State),
		run.Input, run.Output, run.Error,
		run.StartedAt, run.CompletedAt, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return posauth.ErrRunAlreadyExists
		}
		return fmt.Errorf("posauth/postgres: create run: %w", err)
	}
	return nil
}

// GetRun retrieves a workflow run by ID.
func (s *Store) GetRun(ctx context.Context, runID id.RunID) (*workflow.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM posauth_workflow_runs WHERE id = $1`, runID.String())
	r, err := scanRun(row)
	if err != nil {
		if isNoRows(err) {
			return nil, posauth.ErrRunNotFound
		}
		return nil, fmt.Errorf("posauth/postgres: get run: %w", err)
	}
	return r, nil
}

// GetRunByKey retrieves a workflow run by its unique key.
func (s *Store) GetRunByKey(ctx context.Context, key string) (*workflow.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM posauth_workflow_runs WHERE key = $1`, key)
	r, err := scanRun(row)
	if err != nil {
		if isNoRows(err) {
			return nil, posauth.ErrRunNotFound
		}
		return nil, fmt.Errorf("posauth/postgres: get run by key: %w", err)
	}
	return r, nil
}

// UpdateRun persists changes to an existing workflow run.
func (s *Store) UpdateRun(ctx context.Context, run *workflow.Run) error {
	run.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE posauth_workflow_runs
		SET state = $2, output = $3, error = $4, completed_at = $5, version = $6, updated_at = $7
		WHERE id = $1`,
		run.ID.String(), string(run.State), run.Output, run.Error,
		run.CompletedAt, run.Version, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("posauth/postgres: update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return posauth.ErrRunNotFound
	}
	return nil
}

// ListRuns returns workflow runs matching the given options, newest first.
func (s *Store) ListRuns(ctx context.Context, opts workflow.ListOpts) ([]*workflow.Run, error) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString(`SELECT ` + runColumns + ` FROM posauth_workflow_runs`)
	if opts.State != "" {
		args = append(args, string(opts.State))
		b.WriteString(` WHERE state = $1`)
	}
	b.WriteString(` ORDER BY created_at DESC, id DESC`)
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		b.WriteString(` LIMIT $` + strconv.Itoa(len(args)))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		b.WriteString(` OFFSET $` + strconv.Itoa(len(args)))
	}

	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("posauth/postgres: list runs: %w", err)
	}
	defer rows.Close()

	var runs []*workflow.Run
	for rows.Next() {
		r, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("posauth/postgres: list runs scan: %w", scanErr)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("posauth/postgres: list runs: %w", err)
	}
	return runs, nil
}

// SaveCheckpoint persists checkpoint data for a workflow step. Saving a
// step again replaces its data and moves it to the end of the run's order.
func (s *Store) SaveCheckpoint(ctx context.Context, runID id.RunID, stepName string, data []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO posauth_workflow_checkpoints (id, run_id, step_name, data, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id, step_name) DO UPDATE
		SET data = EXCLUDED.data, created_at = EXCLUDED.created_at, seq = DEFAULT`,
		id.NewCheckpointID().String(), runID.String(), stepName, data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("posauth/postgres: save checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint retrieves checkpoint data for a specific workflow step.
// Returns nil data if no checkpoint exists.
func (s *Store) GetCheckpoint(ctx context.Context, runID id.RunID, stepName string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `
		SELECT data FROM posauth_workflow_checkpoints
		WHERE run_id = $1 AND step_name = $2`,
		runID.String(), stepName,
	).Scan(&data)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("posauth/postgres: get checkpoint: %w", err)
	}
	return data, nil
}

// ListCheckpoints returns all checkpoints for a workflow run in save order.
func (s *Store) ListCheckpoints(ctx context.Context, runID id.RunID) ([]*workflow.Checkpoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, run_id, step_name, data, created_at
		FROM posauth_workflow_checkpoints
		WHERE run_id = $1
		ORDER BY seq ASC`,
		runID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("posauth/postgres: list checkpoints: %w", err)
	}

	cps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*workflow.Checkpoint, error) {
		cp := &workflow.Checkpoint{}
		if err := row.Scan(&cp.ID, &cp.RunID, &cp.StepName, &cp.Data, &cp.CreatedAt); err != nil {
			return nil, err
		}
		return cp, nil
	})
	if err != nil {
		return nil, fmt.Errorf("posauth/postgres: list checkpoints scan: %w", err)
	}
	return cps, nil
}

// PruneRuns deletes terminal runs that completed before cutoff and their
// checkpoints in one statement.
func (s *Store) PruneRuns(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		WITH pruned AS (
			DELETE FROM posauth_workflow_runs
			WHERE state <> 'running' AND completed_at < $1
			RETURNING id
		), dropped AS (
			DELETE FROM posauth_workflow_checkpoints
			WHERE run_id IN (SELECT id FROM pruned)
		)
		SELECT COUNT(*) FROM pruned`,
		cutoff,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("posauth/postgres: prune runs: %w", err)
	}
	return n, nil
}

func scanRun(row pgx.Row) (*workflow.Run, error) {
	var (
		r     workflow.Run
		state string
	)
	err := row.Scan(
		&r.ID, &r.Key, &r.Name, &r.Version, &state, &r.Input, &r.Output, &r.Error,
		&r.StartedAt, &r.CompletedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.State = workflow.RunState(state)
	return &r, nil
}
