// Package storetest is a conformance suite run against every store
// backend. Each backend's tests call Run with a factory that returns a
// fresh, migrated, empty store.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	posauth "github.com/vndocker/pos-AI-community"
	"github.com/vndocker/pos-AI-community/id"
	"github.com/vndocker/pos-AI-community/otp"
	"github.com/vndocker/pos-AI-community/store"
	"github.com/vndocker/pos-AI-community/workflow"
)

// Factory returns an empty store for one test.
type Factory func(t *testing.T) store.Store

// Run executes the full suite.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(*testing.T, store.Store)
	}{
		{"Lifecycle", testLifecycle},
		{"CreateAndGetRun", testCreateAndGetRun},
		{"DuplicateRunKey", testDuplicateRunKey},
		{"UpdateRun", testUpdateRun},
		{"ListRuns", testListRuns},
		{"Checkpoints", testCheckpoints},
		{"PruneRuns", testPruneRuns},
		{"UpsertUser", testUpsertUser},
		{"LatestActiveAttempt", testLatestActiveAttempt},
		{"MarkAttemptUsedOnce", testMarkAttemptUsedOnce},
		{"TouchLastLogin", testTouchLastLogin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

// NewRun builds a run in the given state with a unique key.
func NewRun(name string, state workflow.RunState) *workflow.Run {
	runID := id.NewRunID()
	return &workflow.Run{
		Entity:    posauth.NewEntity(),
		ID:        runID,
		Key:       name + "-" + runID.String(),
		Name:      name,
		Version:   1,
		State:     state,
		Input:     []byte(`{"email":"user@example.com"}`),
		StartedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func testLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func testCreateAndGetRun(t *testing.T, s store.Store) {
	ctx := context.Background()

	r := NewRun("test-wf", workflow.RunStateRunning)
	if err := s.CreateRun(ctx, r); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetRun(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != r.Name || got.Key != r.Key || got.Version != 1 {
		t.Fatalf("got %+v, want %+v", got, r)
	}
	if string(got.Input) != string(r.Input) {
		t.Fatalf("input = %s, want %s", got.Input, r.Input)
	}
	if !got.StartedAt.Equal(r.StartedAt) {
		t.Fatalf("started_at = %v, want %v", got.StartedAt, r.StartedAt)
	}

	byKey, err := s.GetRunByKey(ctx, r.Key)
	if err != nil {
		t.Fatal(err)
	}
	if byKey.ID != r.ID {
		t.Fatalf("GetRunByKey id = %s, want %s", byKey.ID, r.ID)
	}

	if _, err := s.GetRun(ctx, id.NewRunID()); !errors.Is(err, posauth.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := s.GetRunByKey(ctx, "missing"); !errors.Is(err, posauth.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound by key, got %v", err)
	}
}

func testDuplicateRunKey(t *testing.T, s store.Store) {
	ctx := context.Background()

	r1 := NewRun("dup-wf", workflow.RunStateRunning)
	if err := s.CreateRun(ctx, r1); err != nil {
		t.Fatal(err)
	}
	r2 := NewRun("dup-wf", workflow.RunStateRunning)
	r2.Key = r1.Key
	if err := s.CreateRun(ctx, r2); !errors.Is(err, posauth.ErrRunAlreadyExists) {
		t.Fatalf("expected ErrRunAlreadyExists, got %v", err)
	}
}

func testUpdateRun(t *testing.T, s store.Store) {
	ctx := context.Background()

	r := NewRun("update-wf", workflow.RunStateRunning)
	if err := s.CreateRun(ctx, r); err != nil {
		t.Fatal(err)
	}

	r.State = workflow.RunStateCompleted
	r.Output = []byte(`{"message":"OTP sent successfully"}`)
	now := time.Now().UTC().Truncate(time.Microsecond)
	r.CompletedAt = &now
	if err := s.UpdateRun(ctx, r); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetRun(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != workflow.RunStateCompleted {
		t.Fatalf("state = %q, want %q", got.State, workflow.RunStateCompleted)
	}
	if string(got.Output) != string(r.Output) {
		t.Fatalf("output = %s, want %s", got.Output, r.Output)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(now) {
		t.Fatalf("completed_at = %v, want %v", got.CompletedAt, now)
	}

	missing := NewRun("missing", workflow.RunStateRunning)
	if err := s.UpdateRun(ctx, missing); !errors.Is(err, posauth.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func testListRuns(t *testing.T, s store.Store) {
	ctx := context.Background()

	r1 := NewRun("wf1", workflow.RunStateRunning)
	r2 := NewRun("wf2", workflow.RunStateCompleted)
	r3 := NewRun("wf3", workflow.RunStateRunning)
	for i, r := range []*workflow.Run{r1, r2, r3} {
		r.CreatedAt = r.CreatedAt.Add(time.Duration(i) * time.Millisecond)
		if err := s.CreateRun(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name      string
		opts      workflow.ListOpts
		wantCount int
	}{
		{"all", workflow.ListOpts{}, 3},
		{"running only", workflow.ListOpts{State: workflow.RunStateRunning}, 2},
		{"completed only", workflow.ListOpts{State: workflow.RunStateCompleted}, 1},
		{"with limit", workflow.ListOpts{Limit: 1}, 1},
		{"with offset", workflow.ListOpts{Offset: 2}, 1},
		{"offset past end", workflow.ListOpts{Offset: 5}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := s.ListRuns(ctx, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if len(runs) != tt.wantCount {
				t.Fatalf("got %d, want %d", len(runs), tt.wantCount)
			}
		})
	}

	runs, err := s.ListRuns(ctx, workflow.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if runs[0].ID != r3.ID || runs[2].ID != r1.ID {
		t.Fatalf("expected newest first, got %s, %s, %s", runs[0].Name, runs[1].Name, runs[2].Name)
	}
}

func testCheckpoints(t *testing.T, s store.Store) {
	ctx := context.Background()

	runID := id.NewRunID()
	data1 := []byte(`{"output":{"ok":true}}`)
	data2 := []byte(`{"output":{"ok":true,"code":"012345"}}`)

	if err := s.SaveCheckpoint(ctx, runID, "01:validate_email", data1); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveCheckpoint(ctx, runID, "02:generate_code", data2); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetCheckpoint(ctx, runID, "01:validate_email")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(data1) {
		t.Fatalf("data = %q, want %q", got, data1)
	}

	got, err = s.GetCheckpoint(ctx, runID, "99:deliver_code")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing checkpoint, got %q", got)
	}

	cps, err := s.ListCheckpoints(ctx, runID)
	if err != nil {
		t.Fatal(err)
	}
	if len(cps) != 2 {
		t.Fatalf("got %d checkpoints, want 2", len(cps))
	}
	if cps[0].StepName != "01:validate_email" || cps[1].StepName != "02:generate_code" {
		t.Fatalf("checkpoint order = %s, %s", cps[0].StepName, cps[1].StepName)
	}

	newData := []byte(`{"output":{"ok":false}}`)
	if err := s.SaveCheckpoint(ctx, runID, "01:validate_email", newData); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetCheckpoint(ctx, runID, "01:validate_email")
	if string(got) != string(newData) {
		t.Fatalf("overwritten data = %q, want %q", got, newData)
	}
}

func testPruneRuns(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	old := now.Add(-48 * time.Hour)

	finish := func(r *workflow.Run, state workflow.RunState, at time.Time) {
		t.Helper()
		r.CreatedAt = at.Add(-time.Second)
		if err := s.CreateRun(ctx, r); err != nil {
			t.Fatal(err)
		}
		if err := s.SaveCheckpoint(ctx, r.ID, "01:validate_email", []byte(`{"output":{"ok":true}}`)); err != nil {
			t.Fatal(err)
		}
		if state == workflow.RunStateRunning {
			return
		}
		r.State = state
		r.CompletedAt = &at
		if err := s.UpdateRun(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	expired := NewRun("signin", workflow.RunStateRunning)
	finish(expired, workflow.RunStateCompleted, old)
	failed := NewRun("signin", workflow.RunStateRunning)
	finish(failed, workflow.RunStateFailed, old)
	stuck := NewRun("signin", workflow.RunStateRunning)
	finish(stuck, workflow.RunStateRunning, old)
	recent := NewRun("signin", workflow.RunStateRunning)
	finish(recent, workflow.RunStateCompleted, now)

	n, err := s.PruneRuns(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneRuns: %v", err)
	}
	if n != 2 {
		t.Fatalf("pruned = %d, want 2", n)
	}

	for _, r := range []*workflow.Run{expired, failed} {
		if _, err := s.GetRun(ctx, r.ID); !errors.Is(err, posauth.ErrRunNotFound) {
			t.Errorf("GetRun(pruned %s) err = %v, want ErrRunNotFound", r.State, err)
		}
		if data, _ := s.GetCheckpoint(ctx, r.ID, "01:validate_email"); data != nil {
			t.Errorf("checkpoint of pruned run %s survived", r.ID)
		}
	}
	for _, r := range []*workflow.Run{stuck, recent} {
		if _, err := s.GetRun(ctx, r.ID); err != nil {
			t.Errorf("GetRun(kept %s): %v", r.ID, err)
		}
	}

	// A pruned run's key can be claimed again.
	again := NewRun("signin", workflow.RunStateRunning)
	again.Key = expired.Key
	if err := s.CreateRun(ctx, again); err != nil {
		t.Fatalf("CreateRun with pruned key: %v", err)
	}
}

func testUpsertUser(t *testing.T, s store.Store) {
	ctx := context.Background()

	u1, err := s.UpsertUser(ctx, "user@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if u1.ID.Prefix() != id.PrefixUser {
		t.Fatalf("user id prefix = %q", u1.ID.Prefix())
	}

	u2, err := s.UpsertUser(ctx, "user@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if u1.ID != u2.ID {
		t.Fatalf("upsert created a second user: %s vs %s", u1.ID, u2.ID)
	}

	got, err := s.GetUserByEmail(ctx, "user@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != u1.ID {
		t.Fatalf("GetUserByEmail id = %s, want %s", got.ID, u1.ID)
	}

	if _, err := s.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, posauth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

// NewAttempt builds an attempt for userID created at created.
func NewAttempt(userID id.UserID, code string, created time.Time, ttl time.Duration) *otp.Attempt {
	created = created.UTC().Truncate(time.Microsecond)
	return &otp.Attempt{
		Entity:    posauth.Entity{CreatedAt: created, UpdatedAt: created},
		ID:        id.NewAttemptID(),
		UserID:    userID,
		Code:      code,
		ExpiresAt: created.Add(ttl),
	}
}

func testLatestActiveAttempt(t *testing.T, s store.Store) {
	ctx := context.Background()

	u, err := s.UpsertUser(ctx, "latest@example.com")
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC()

	expired := NewAttempt(u.ID, "111111", now.Add(-10*time.Minute), 5*time.Minute)
	older := NewAttempt(u.ID, "222222", now.Add(-2*time.Minute), 5*time.Minute)
	newest := NewAttempt(u.ID, "333333", now.Add(-time.Minute), 5*time.Minute)
	for _, a := range []*otp.Attempt{expired, older, newest} {
		if err := s.CreateAttempt(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.LatestActiveAttempt(ctx, u.ID, now)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != newest.ID || got.Code != "333333" {
		t.Fatalf("latest = %s (%s), want %s", got.ID, got.Code, newest.ID)
	}
	if !got.ExpiresAt.Equal(newest.ExpiresAt) {
		t.Fatalf("expires_at = %v, want %v", got.ExpiresAt, newest.ExpiresAt)
	}

	if err := s.MarkAttemptUsed(ctx, newest.ID, now); err != nil {
		t.Fatal(err)
	}
	got, err = s.LatestActiveAttempt(ctx, u.ID, now)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != older.ID {
		t.Fatalf("after use latest = %s, want %s", got.ID, older.ID)
	}

	if _, err := s.LatestActiveAttempt(ctx, u.ID, now.Add(time.Hour)); !errors.Is(err, posauth.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound once expired, got %v", err)
	}
}

func testMarkAttemptUsedOnce(t *testing.T, s store.Store) {
	ctx := context.Background()

	u, err := s.UpsertUser(ctx, "once@example.com")
	if err != nil {
		t.Fatal(err)
	}
	a := NewAttempt(u.ID, "444444", time.Now(), 5*time.Minute)
	if err := s.CreateAttempt(ctx, a); err != nil {
		t.Fatal(err)
	}

	const racers = 8
	var wg sync.WaitGroup
	errs := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.MarkAttemptUsed(ctx, a.ID, time.Now().UTC())
		}()
	}
	wg.Wait()
	close(errs)

	var ok, used int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, posauth.ErrAttemptUsed):
			used++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || used != racers-1 {
		t.Fatalf("ok=%d used=%d, want exactly one winner", ok, used)
	}

	if err := s.MarkAttemptUsed(ctx, id.NewAttemptID(), time.Now()); !errors.Is(err, posauth.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound, got %v", err)
	}
}

func testTouchLastLogin(t *testing.T, s store.Store) {
	ctx := context.Background()

	u, err := s.UpsertUser(ctx, "login@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if u.LastLoginAt != nil {
		t.Fatalf("new user has last login %v", u.LastLoginAt)
	}

	at := time.Now().UTC().Truncate(time.Microsecond)
	if err := s.TouchLastLogin(ctx, u.ID, at); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetUserByEmail(ctx, "login@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got.LastLoginAt == nil || !got.LastLoginAt.Equal(at) {
		t.Fatalf("last_login_at = %v, want %v", got.LastLoginAt, at)
	}

	if err := s.TouchLastLogin(ctx, id.NewUserID(), at); !errors.Is(err, posauth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
