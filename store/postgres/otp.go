package postgres

import (
	"context"
	"fmt"
	"time"

	posauth "github.com/vndocker/pos-AI-community"
	"github.com/vndocker/pos-AI-community/id"
	"github.com/vndocker/pos-AI-community/otp"
)

// UpsertUser returns the user with the given email, creating it if needed.
// A concurrent insert of the same email resolves to the existing row.
func (s *Store) UpsertUser(ctx context.Context, email string) (*otp.User, error) {
	u := &otp.User{Entity: posauth.NewEntity(), ID: id.NewUserID(), Email: email}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO posauth_users (id, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO NOTHING`,
		u.ID.String(), u.Email, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("posauth/postgres: upsert user: %w", err)
	}
	return s.GetUserByEmail(ctx, email)
}

// GetUserByEmail returns the user with the given email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*otp.User, error) {
	u := &otp.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, last_login_at, created_at, updated_at
		FROM posauth_users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Email, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, posauth.ErrUserNotFound
		}
		return nil, fmt.Errorf("posauth/postgres: get user: %w", err)
	}
	return u, nil
}

// CreateAttempt persists a newly issued code.
func (s *Store) CreateAttempt(ctx context.Context, a *otp.Attempt) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO posauth_otp_attempts (id, user_id, code, expires_at, used, used_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID.String(), a.UserID.String(), a.Code, a.ExpiresAt, a.Used, a.UsedAt, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isForeignKey(err) {
			return posauth.ErrUserNotFound
		}
		return fmt.Errorf("posauth/postgres: create attempt: %w", err)
	}
	return nil
}

// LatestActiveAttempt returns the newest unused, unexpired attempt.
func (s *Store) LatestActiveAttempt(ctx context.Context, userID id.UserID, now time.Time) (*otp.Attempt, error) {
	a := &otp.Attempt{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, code, expires_at, used, used_at, created_at, updated_at
		FROM posauth_otp_attempts
		WHERE user_id = $1 AND used = FALSE AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1`,
		userID.String(), now,
	).Scan(&a.ID, &a.UserID, &a.Code, &a.ExpiresAt, &a.Used, &a.UsedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, posauth.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("posauth/postgres: latest attempt: %w", err)
	}
	return a, nil
}

// MarkAttemptUsed flips an attempt to used with a conditional UPDATE, so
// exactly one caller succeeds.
func (s *Store) MarkAttemptUsed(ctx context.Context, attemptID id.AttemptID, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE posauth_otp_attempts
		SET used = TRUE, used_at = $2, updated_at = $2
		WHERE id = $1 AND used = FALSE`,
		attemptID.String(), at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("posauth/postgres: mark attempt used: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM posauth_otp_attempts WHERE id = $1)`, attemptID.String(),
	).Scan(&exists); err != nil {
		return fmt.Errorf("posauth/postgres: mark attempt used: %w", err)
	}
	if !exists {
		return posauth.ErrAttemptNotFound
	}
	return posauth.ErrAttemptUsed
}

// TouchLastLogin records a successful sign-in.
func (s *Store) TouchLastLogin(ctx context.Context, userID id.UserID, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE posauth_users SET last_login_at = $2, updated_at = $2 WHERE id = $1`,
		userID.String(), at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("posauth/postgres: touch last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return posauth.ErrUserNotFound
	}
	return nil
}
