package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	posauth "github.com/vndocker/pos-AI-community"
	"github.com/vndocker/pos-AI-community/id"
	"github.com/vndocker/pos-AI-community/otp"
)

// UpsertUser returns the user with the given email, creating it if needed.
// The new user's Hash is written before the email is claimed, so a
// concurrent caller that loses the claim always finds the winner's record.
func (s *Store) UpsertUser(ctx context.Context, email string) (*otp.User, error) {
	if u, err := s.GetUserByEmail(ctx, email); err == nil {
		return u, nil
	} else if !errors.Is(err, posauth.ErrUserNotFound) {
		return nil, err
	}

	u := &otp.User{Entity: posauth.NewEntity(), ID: id.NewUserID(), Email: email}
	uID := u.ID.String()
	if err := s.client.HSet(ctx, s.keys.user(uID), userToMap(u)).Err(); err != nil {
		return nil, fmt.Errorf("posauth/redis: create user: %w", err)
	}

	claimed, err := s.client.HSetNX(ctx, s.keys.userEmails(), email, uID).Result()
	if err != nil {
		return nil, fmt.Errorf("posauth/redis: claim email: %w", err)
	}
	if !claimed {
		s.client.Del(ctx, s.keys.user(uID))
		return s.GetUserByEmail(ctx, email)
	}
	return u, nil
}

// GetUserByEmail returns the user with the given email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*otp.User, error) {
	uID, err := s.client.HGet(ctx, s.keys.userEmails(), email).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, posauth.ErrUserNotFound
		}
		return nil, fmt.Errorf("posauth/redis: get user email: %w", err)
	}
	vals, err := s.client.HGetAll(ctx, s.keys.user(uID)).Result()
	if err != nil {
		return nil, fmt.Errorf("posauth/redis: get user: %w", err)
	}
	if len(vals) == 0 {
		return nil, posauth.ErrUserNotFound
	}
	return mapToUser(vals)
}

// CreateAttempt persists a newly issued code.
func (s *Store) CreateAttempt(ctx context.Context, a *otp.Attempt) error {
	uID := a.UserID.String()
	exists, err := s.client.Exists(ctx, s.keys.user(uID)).Result()
	if err != nil {
		return fmt.Errorf("posauth/redis: create attempt user exists: %w", err)
	}
	if exists == 0 {
		return posauth.ErrUserNotFound
	}

	aID := a.ID.String()
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.keys.attempt(aID), attemptToMap(a))
	pipe.ZAdd(ctx, s.keys.userAttempts(uID), goredis.Z{Score: float64(a.CreatedAt.UnixNano()), Member: aID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("posauth/redis: create attempt: %w", err)
	}
	return nil
}

// LatestActiveAttempt returns the newest unused, unexpired attempt.
func (s *Store) LatestActiveAttempt(ctx context.Context, userID id.UserID, now time.Time) (*otp.Attempt, error) {
	ids, err := s.client.ZRevRange(ctx, s.keys.userAttempts(userID.String()), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("posauth/redis: list attempts: %w", err)
	}
	for _, aID := range ids {
		vals, getErr := s.client.HGetAll(ctx, s.keys.attempt(aID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		a, convErr := mapToAttempt(vals)
		if convErr != nil {
			continue
		}
		if a.Active(now) {
			return a, nil
		}
	}
	return nil, posauth.ErrAttemptNotFound
}

// MarkAttemptUsed flips an attempt to used exactly once. The used_at field
// is written with HSETNX, so only one caller can win.
func (s *Store) MarkAttemptUsed(ctx context.Context, attemptID id.AttemptID, at time.Time) error {
	key := s.keys.attempt(attemptID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("posauth/redis: mark attempt exists: %w", err)
	}
	if exists == 0 {
		return posauth.ErrAttemptNotFound
	}

	won, err := s.client.HSetNX(ctx, key, "used_at", at.UTC().Format(time.RFC3339Nano)).Result()
	if err != nil {
		return fmt.Errorf("posauth/redis: mark attempt used: %w", err)
	}
	if !won {
		return posauth.ErrAttemptUsed
	}
	return s.client.HSet(ctx, key, "updated_at", at.UTC().Format(time.RFC3339Nano)).Err()
}

// TouchLastLogin records a successful sign-in.
func (s *Store) TouchLastLogin(ctx context.Context, userID id.UserID, at time.Time) error {
	key := s.keys.user(userID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("posauth/redis: touch login exists: %w", err)
	}
	if exists == 0 {
		return posauth.ErrUserNotFound
	}
	ts := at.UTC().Format(time.RFC3339Nano)
	if err := s.client.HSet(ctx, key, "last_login_at", ts, "updated_at", ts).Err(); err != nil {
		return fmt.Errorf("posauth/redis: touch login: %w", err)
	}
	return nil
}

// ── helpers ──

func userToMap(u *otp.User) map[string]interface{} {
	m := map[string]interface{}{
		"id":         u.ID.String(),
		"email":      u.Email,
		"created_at": u.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": u.UpdatedAt.Format(time.RFC3339Nano),
	}
	if u.LastLoginAt != nil {
		m["last_login_at"] = u.LastLoginAt.Format(time.RFC3339Nano)
	}
	return m
}

func mapToUser(m map[string]string) (*otp.User, error) {
	uID, err := id.ParseUserID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("posauth/redis: parse user id: %w", err)
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"])

	u := &otp.User{
		Entity: posauth.Entity{CreatedAt: createdAt, UpdatedAt: updatedAt},
		ID:     uID,
		Email:  m["email"],
	}
	if v := m["last_login_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v)
		u.LastLoginAt = &t
	}
	return u, nil
}

func attemptToMap(a *otp.Attempt) map[string]interface{} {
	return map[string]interface{}{
		"id":         a.ID.String(),
		"user_id":    a.UserID.String(),
		"code":       a.Code,
		"expires_at": a.ExpiresAt.Format(time.RFC3339Nano),
		"created_at": a.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": a.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func mapToAttempt(m map[string]string) (*otp.Attempt, error) {
	aID, err := id.ParseAttemptID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("posauth/redis: parse attempt id: %w", err)
	}
	uID, err := id.ParseUserID(m["user_id"])
	if err != nil {
		return nil, fmt.Errorf("posauth/redis: parse user id: %w", err)
	}
	expiresAt, _ := time.Parse(time.RFC3339Nano, m["expires_at"])
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"])

	a := &otp.Attempt{
		Entity:    posauth.Entity{CreatedAt: createdAt, UpdatedAt: updatedAt},
		ID:        aID,
		UserID:    uID,
		Code:      m["code"],
		ExpiresAt: expiresAt,
	}
	if v := m["used_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v)
		a.Used = true
		a.UsedAt = &t
	}
	return a, nil
}
