// Package memory provides a fully in-memory implementation of store.Store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	posauth "github.com/vndocker/pos-AI-community"
	"github.com/vndocker/pos-AI-community/id"
	"github.com/vndocker/pos-AI-community/otp"
	"github.com/vndocker/pos-AI-community/workflow"
)

// Ensure Store implements the subsystem stores at compile time.
// We can't import store here (import cycle in tests), so we verify each.
var (
	_ workflow.Store = (*Store)(nil)
	_ otp.Store      = (*Store)(nil)
	_ posauth.Storer = (*Store)(nil)
)

// checkpointEntry orders checkpoints by insertion, which is stricter than
// CreatedAt when two steps land in the same clock tick.
type checkpointEntry struct {
	seq uint64
	cp  workflow.Checkpoint
}

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
// Records are copied on the way in and out so callers never share state
// with the store.
type Store struct {
	mu sync.RWMutex

	runs        map[string]*workflow.Run
	runKeys     map[string]string           // run key → run ID
	checkpoints map[string]*checkpointEntry // key: "runID:stepName"
	seq         uint64

	users    map[string]*otp.User    // user ID → user
	emails   map[string]string       // email → user ID
	attempts map[string]*otp.Attempt // attempt ID → attempt
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		runs:        make(map[string]*workflow.Run),
		runKeys:     make(map[string]string),
		checkpoints: make(map[string]*checkpointEntry),
		users:       make(map[string]*otp.User),
		emails:      make(map[string]string),
		attempts:    make(map[string]*otp.Attempt),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Workflow Store
// ──────────────────────────────────────────────────

func copyRun(r *workflow.Run) *workflow.Run {
	cp := *r
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// CreateRun persists a new workflow run.
func (m *Store) CreateRun(_ context.Context, run *workflow.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := run.ID.String()
	if _, exists := m.runs[key]; exists {
		return posauth.ErrRunAlreadyExists
	}
	if _, exists := m.runKeys[run.Key]; exists {
		return posauth.ErrRunAlreadyExists
	}
	m.runs[key] = copyRun(run)
	m.runKeys[run.Key] = key
	return nil
}

// GetRun retrieves a workflow run by ID.
func (m *Store) GetRun(_ context.Context, runID id.RunID) (*workflow.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.runs[runID.String()]
	if !ok {
		return nil, posauth.ErrRunNotFound
	}
	return copyRun(r), nil
}

// GetRunByKey retrieves a workflow run by its unique key.
func (m *Store) GetRunByKey(_ context.Context, key string) (*workflow.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runID, ok := m.runKeys[key]
	if !ok {
		return nil, posauth.ErrRunNotFound
	}
	return copyRun(m.runs[runID]), nil
}

// UpdateRun persists changes to an existing workflow run.
func (m *Store) UpdateRun(_ context.Context, run *workflow.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := run.ID.String()
	if _, ok := m.runs[key]; !ok {
		return posauth.ErrRunNotFound
	}
	run.UpdatedAt = time.Now().UTC()
	m.runs[key] = copyRun(run)
	return nil
}

// ListRuns returns workflow runs matching the given options, newest first.
func (m *Store) ListRuns(_ context.Context, opts workflow.ListOpts) ([]*workflow.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*workflow.Run, 0, len(m.runs))
	for _, r := range m.runs {
		if opts.State != "" && r.State != opts.State {
			continue
		}
		result = append(result, copyRun(r))
	}

	sort.Slice(result, func(i, k int) bool {
		if result[i].CreatedAt.Equal(result[k].CreatedAt) {
			return result[i].ID.String() > result[k].ID.String()
		}
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// checkpointKey builds a composite map key for a checkpoint.
func checkpointKey(runID id.RunID, stepName string) string {
	return runID.String() + ":" + stepName
}

// SaveCheckpoint persists checkpoint data for a workflow step.
func (m *Store) SaveCheckpoint(_ context.Context, runID id.RunID, stepName string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	m.checkpoints[checkpointKey(runID, stepName)] = &checkpointEntry{
		seq: m.seq,
		cp: workflow.Checkpoint{
			ID:        id.NewCheckpointID(),
			RunID:     runID,
			StepName:  stepName,
			Data:      append([]byte(nil), data...),
			CreatedAt: time.Now().UTC(),
		},
	}
	return nil
}

// GetCheckpoint retrieves checkpoint data for a specific workflow step.
func (m *Store) GetCheckpoint(_ context.Context, runID id.RunID, stepName string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.checkpoints[checkpointKey(runID, stepName)]
	if !ok {
		return nil, nil // no checkpoint is not an error
	}
	return append([]byte{}, e.cp.Data...), nil
}

// runCheckpoints returns the run's entries in insertion order. The caller
// must hold the lock.
func (m *Store) runCheckpoints(runID id.RunID) []*checkpointEntry {
	prefix := runID.String() + ":"
	var entries []*checkpointEntry
	for k, e := range m.checkpoints {
		if strings.HasPrefix(k, prefix) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, k int) bool { return entries[i].seq < entries[k].seq })
	return entries
}

// ListCheckpoints returns all checkpoints for a workflow run.
func (m *Store) ListCheckpoints(_ context.Context, runID id.RunID) ([]*workflow.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.runCheckpoints(runID)
	result := make([]*workflow.Checkpoint, len(entries))
	for i, e := range entries {
		cp := e.cp
		result[i] = &cp
	}
	return result, nil
}

// PruneRuns deletes terminal runs that completed before cutoff.
func (m *Store) PruneRuns(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for key, r := range m.runs {
		if r.State == workflow.RunStateRunning || r.CompletedAt == nil || !r.CompletedAt.Before(cutoff) {
			continue
		}
		for _, e := range m.runCheckpoints(r.ID) {
			delete(m.checkpoints, checkpointKey(r.ID, e.cp.StepName))
		}
		delete(m.runKeys, r.Key)
		delete(m.runs, key)
		n++
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// OTP Store
// ──────────────────────────────────────────────────

func copyUser(u *otp.User) *otp.User {
	cp := *u
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		cp.LastLoginAt = &t
	}
	return &cp
}

func copyAttempt(a *otp.Attempt) *otp.Attempt {
	cp := *a
	if a.UsedAt != nil {
		t := *a.UsedAt
		cp.UsedAt = &t
	}
	return &cp
}

// UpsertUser returns the user with the given email, creating it if needed.
func (m *Store) UpsertUser(_ context.Context, email string) (*otp.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if userID, ok := m.emails[email]; ok {
		return copyUser(m.users[userID]), nil
	}
	u := &otp.User{
		Entity: posauth.NewEntity(),
		ID:     id.NewUserID(),
		Email:  email,
	}
	m.users[u.ID.String()] = u
	m.emails[email] = u.ID.String()
	return copyUser(u), nil
}

// GetUserByEmail returns the user with the given email.
func (m *Store) GetUserByEmail(_ context.Context, email string) (*otp.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	userID, ok := m.emails[email]
	if !ok {
		return nil, posauth.ErrUserNotFound
	}
	return copyUser(m.users[userID]), nil
}

// CreateAttempt persists a newly issued code.
func (m *Store) CreateAttempt(_ context.Context, a *otp.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[a.UserID.String()]; !ok {
		return posauth.ErrUserNotFound
	}
	m.attempts[a.ID.String()] = copyAttempt(a)
	return nil
}

// LatestActiveAttempt returns the newest unused, unexpired attempt.
func (m *Store) LatestActiveAttempt(_ context.Context, userID id.UserID, now time.Time) (*otp.Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *otp.Attempt
	for _, a := range m.attempts {
		if a.UserID != userID || !a.Active(now) {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) ||
			(a.CreatedAt.Equal(latest.CreatedAt) && a.ID.String() > latest.ID.String()) {
			latest = a
		}
	}
	if latest == nil {
		return nil, posauth.ErrAttemptNotFound
	}
	return copyAttempt(latest), nil
}

// MarkAttemptUsed flips an attempt to used exactly once.
func (m *Store) MarkAttemptUsed(_ context.Context, attemptID id.AttemptID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.attempts[attemptID.String()]
	if !ok {
		return posauth.ErrAttemptNotFound
	}
	if a.Used {
		return posauth.ErrAttemptUsed
	}
	a.Used = true
	a.UsedAt = &at
	a.UpdatedAt = at
	return nil
}

// TouchLastLogin records a successful sign-in.
func (m *Store) TouchLastLogin(_ context.Context, userID id.UserID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID.String()]
	if !ok {
		return posauth.ErrUserNotFound
	}
	u.LastLoginAt = &at
	u.UpdatedAt = at
	return nil
}
