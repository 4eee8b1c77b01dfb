package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	posauth "github.com/vndocker/pos-AI-community"
	"github.com/vndocker/pos-AI-community/id"
	"github.com/vndocker/pos-AI-community/workflow"
)

// CreateRun persists a new workflow run. The run key is claimed with
// HSETNX before the run is written.
func (s *Store) CreateRun(ctx context.Context, run *workflow.Run) error {
	rID := run.ID.String()

	claimed, err := s.client.HSetNX(ctx, s.keys.runKeys(), run.Key, rID).Result()
	if err != nil {
		return fmt.Errorf("posauth/redis: claim run key: %w", err)
	}
	if !claimed {
		return posauth.ErrRunAlreadyExists
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.keys.run(rID), runToMap(run))
	pipe.ZAdd(ctx, s.keys.runIndex(), goredis.Z{Score: float64(run.CreatedAt.UnixNano()), Member: rID})
	if _, err := pipe.Exec(ctx); err != nil {
		s.client.HDel(ctx, s.keys.runKeys(), run.Key)
		return fmt.Errorf("posauth/redis: create run: %w", err)
	}
	return nil
}

// GetRun retrieves a workflow run by ID.
func (s *Store) GetRun(ctx context.Context, runID id.RunID) (*workflow.Run, error) {
	vals, err := s.client.HGetAll(ctx, s.keys.run(runID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("posauth/redis: get run: %w", err)
	}
	if len(vals) == 0 {
		return nil, posauth.ErrRunNotFound
	}
	return mapToRun(vals)
}

// GetRunByKey retrieves a workflow run by its unique key.
func (s *Store) GetRunByKey(ctx context.Context, key string) (*workflow.Run, error) {
	rID, err := s.client.HGet(ctx, s.keys.runKeys(), key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, posauth.ErrRunNotFound
		}
		return nil, fmt.Errorf("posauth/redis: get run key: %w", err)
	}
	runID, err := id.ParseRunID(rID)
	if err != nil {
		return nil, fmt.Errorf("posauth/redis: parse run id: %w", err)
	}
	return s.GetRun(ctx, runID)
}

// UpdateRun persists changes to an existing workflow run.
func (s *Store) UpdateRun(ctx context.Context, run *workflow.Run) error {
	key := s.keys.run(run.ID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("posauth/redis: update run exists: %w", err)
	}
	if exists == 0 {
		return posauth.ErrRunNotFound
	}

	run.UpdatedAt = time.Now().UTC()
	m := runToMap(run)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, m)
	if run.CompletedAt == nil {
		pipe.HDel(ctx, key, "completed_at")
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("posauth/redis: update run: %w", err)
	}
	return nil
}

// ListRuns returns workflow runs matching the given options, newest first.
func (s *Store) ListRuns(ctx context.Context, opts workflow.ListOpts) ([]*workflow.Run, error) {
	ids, err := s.client.ZRevRange(ctx, s.keys.runIndex(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("posauth/redis: list runs: %w", err)
	}

	var runs []*workflow.Run
	for _, rID := range ids {
		vals, getErr := s.client.HGetAll(ctx, s.keys.run(rID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		r, convErr := mapToRun(vals)
		if convErr != nil {
			s.logger.Warn("skipping unreadable run", "run_id", rID, "error", convErr)
			continue
		}
		if opts.State != "" && r.State != opts.State {
			continue
		}
		runs = append(runs, r)
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(runs) {
			return nil, nil
		}
		runs = runs[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(runs) {
		runs = runs[:opts.Limit]
	}
	return runs, nil
}

// SaveCheckpoint persists checkpoint data for a workflow step.
func (s *Store) SaveCheckpoint(ctx context.Context, runID id.RunID, stepName string, data []byte) error {
	rID := runID.String()

	seq, err := s.client.Incr(ctx, s.keys.checkpointSeq()).Result()
	if err != nil {
		return fmt.Errorf("posauth/redis: checkpoint sequence: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.keys.checkpoint(rID, stepName),
		"id", id.NewCheckpointID().String(),
		"run_id", rID,
		"step_name", stepName,
		"data", string(data),
		"created_at", time.Now().UTC().Format(time.RFC3339Nano),
	)
	pipe.ZAdd(ctx, s.keys.checkpointIndex(rID), goredis.Z{Score: float64(seq), Member: stepName})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("posauth/redis: save checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint retrieves checkpoint data for a specific workflow step.
func (s *Store) GetCheckpoint(ctx context.Context, runID id.RunID, stepName string) ([]byte, error) {
	data, err := s.client.HGet(ctx, s.keys.checkpoint(runID.String(), stepName), "data").Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil // no checkpoint is not an error
		}
		return nil, fmt.Errorf("posauth/redis: get checkpoint: %w", err)
	}
	return []byte(data), nil
}

// ListCheckpoints returns all checkpoints for a workflow run in save order.
func (s *Store) ListCheckpoints(ctx context.Context, runID id.RunID) ([]*workflow.Checkpoint, error) {
	rID := runID.String()
	steps, err := s.client.ZRange(ctx, s.keys.checkpointIndex(rID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("posauth/redis: list checkpoints: %w", err)
	}

	checkpoints := make([]*workflow.Checkpoint, 0, len(steps))
	for _, step := range steps {
		vals, getErr := s.client.HGetAll(ctx, s.keys.checkpoint(rID, step)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}

		cpID, _ := id.ParseCheckpointID(vals["id"])
		createdAt, _ := time.Parse(time.RFC3339Nano, vals["created_at"])

		checkpoints = append(checkpoints, &workflow.Checkpoint{
			ID:        cpID,
			RunID:     runID,
			StepName:  vals["step_name"],
			Data:      []byte(vals["data"]),
			CreatedAt: createdAt,
		})
	}
	return checkpoints, nil
}

// PruneRuns deletes terminal runs that completed before cutoff. A run
// cannot complete before it was created, so only runs indexed before
// cutoff are inspected.
func (s *Store) PruneRuns(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.keys.runIndex(), &goredis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff.UnixNano(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("posauth/redis: prune candidates: %w", err)
	}

	n := 0
	for _, rID := range ids {
		vals, getErr := s.client.HGetAll(ctx, s.keys.run(rID)).Result()
		if getErr != nil {
			return n, fmt.Errorf("posauth/redis: prune get run: %w", getErr)
		}
		if len(vals) == 0 {
			s.client.ZRem(ctx, s.keys.runIndex(), rID)
			continue
		}
		r, convErr := mapToRun(vals)
		if convErr != nil || r.State == workflow.RunStateRunning || r.CompletedAt == nil || !r.CompletedAt.Before(cutoff) {
			continue
		}

		steps, stepErr := s.client.ZRange(ctx, s.keys.checkpointIndex(rID), 0, -1).Result()
		if stepErr != nil {
			return n, fmt.Errorf("posauth/redis: prune checkpoints: %w", stepErr)
		}

		pipe := s.client.TxPipeline()
		for _, step := range steps {
			pipe.Del(ctx, s.keys.checkpoint(rID, step))
		}
		pipe.Del(ctx, s.keys.checkpointIndex(rID), s.keys.run(rID))
		pipe.ZRem(ctx, s.keys.runIndex(), rID)
		pipe.HDel(ctx, s.keys.runKeys(), r.Key)
		if _, err := pipe.Exec(ctx); err != nil {
			return n, fmt.Errorf("posauth/redis: prune run: %w", err)
		}
		n++
	}
	return n, nil
}

// ── helpers ──

func runToMap(r *workflow.Run) map[string]interface{} {
	m := map[string]interface{}{
		"id":         r.ID.String(),
		"key":        r.Key,
		"name":       r.Name,
		"version":    r.Version,
		"state":      string(r.State),
		"input":      string(r.Input),
		"output":     string(r.Output),
		"error":      r.Error,
		"started_at": r.StartedAt.Format(time.RFC3339Nano),
		"created_at": r.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": r.UpdatedAt.Format(time.RFC3339Nano),
	}
	if r.CompletedAt != nil {
		m["completed_at"] = r.CompletedAt.Format(time.RFC3339Nano)
	}
	return m
}

func mapToRun(m map[string]string) (*workflow.Run, error) {
	rID, err := id.ParseRunID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("posauth/redis: parse run id: %w", err)
	}

	version, _ := strconv.Atoi(m["version"])
	startedAt, _ := time.Parse(time.RFC3339Nano, m["started_at"])
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"])

	r := &workflow.Run{
		Entity: posauth.Entity{
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		ID:        rID,
		Key:       m["key"],
		Name:      m["name"],
		Version:   version,
		State:     workflow.RunState(m["state"]),
		Error:     m["error"],
		StartedAt: startedAt,
	}
	if v := m["input"]; v != "" {
		r.Input = []byte(v)
	}
	if v := m["output"]; v != "" {
		r.Output = []byte(v)
	}
	if v := m["completed_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v)
		r.CompletedAt = &t
	}
	return r, nil
}
