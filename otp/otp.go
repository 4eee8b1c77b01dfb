// Package otp defines the users who sign in with emailed codes, the code
// attempts issued to them, and the persistence contract for both.
package otp

import (
	"context"
	"time"

	posauth "github.com/vndocker/pos-AI-community"
	"github.com/vndocker/pos-AI-community/id"
)

// User is a POS account identified by email.
type User struct {
	posauth.Entity

	ID          id.UserID  `json:"id"`
	Email       string     `json:"email"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Attempt is one issued code. A code is usable while it is unused and
// before ExpiresAt.
type Attempt struct {
	posauth.Entity

	ID        id.AttemptID `json:"id"`
	UserID    id.UserID    `json:"user_id"`
	Code      string       `json:"-"`
	ExpiresAt time.Time    `json:"expires_at"`
	Used      bool         `json:"used"`
	UsedAt    *time.Time   `json:"used_at,omitempty"`
}

// Active reports whether the attempt can still be redeemed at now.
func (a *Attempt) Active(now time.Time) bool {
	return !a.Used && now.Before(a.ExpiresAt)
}

// Store defines the persistence contract for users and code attempts.
type Store interface {
	// UpsertUser returns the user with the given email, creating it when
	// it does not exist.
	UpsertUser(ctx context.Context, email string) (*User, error)

	// GetUserByEmail returns posauth.ErrUserNotFound for unknown emails.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// CreateAttempt persists a newly issued code.
	CreateAttempt(ctx context.Context, a *Attempt) error

	// LatestActiveAttempt returns the most recently created attempt of the
	// user that is unused and unexpired at now, or
	// posauth.ErrAttemptNotFound.
	LatestActiveAttempt(ctx context.Context, userID id.UserID, now time.Time) (*Attempt, error)

	// MarkAttemptUsed atomically flips an attempt to used. A second call
	// for the same attempt returns posauth.ErrAttemptUsed.
	MarkAttemptUsed(ctx context.Context, attemptID id.AttemptID, at time.Time) error

	// TouchLastLogin records a successful sign-in.
	TouchLastLogin(ctx context.Context, userID id.UserID, at time.Time) error
}
