// Package auth is the sign-in service used by the HTTP API. It throttles
// requests, starts workflow runs through an orchestrator, and keeps the
// issued codes in the otp store so each can be redeemed once.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	posauth "github.com/vndocker/pos-AI-community"
	"github.com/vndocker/pos-AI-community/client"
	"github.com/vndocker/pos-AI-community/id"
	"github.com/vndocker/pos-AI-community/otp"
	"github.com/vndocker/pos-AI-community/signin"
	"github.com/vndocker/pos-AI-community/throttle"
	"github.com/vndocker/pos-AI-community/workflow"
)

// SignInResponse answers a code request. The code itself never leaves the
// server.
type SignInResponse struct {
	Message string `json:"message"`
	UserID  string `json:"user_id,omitempty"`
}

// VerifyResponse answers a code verification.
type VerifyResponse struct {
	Status  signin.Status `json:"status"`
	Message string        `json:"message"`
}

// Option configures a Service.
type Option func(*Service)

// WithThrottle limits code requests per email.
func WithThrottle(l *throttle.Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithVerifyThrottle limits verification attempts per email.
func WithVerifyThrottle(l *throttle.Limiter) Option {
	return func(s *Service) { s.verifyLimiter = l }
}

// WithIssueOnCompletion stores issued codes from OnWorkflowCompleted
// instead of from RequestCode, so codes of runs that outlive their
// request, or are resumed after a restart, are stored too. The Service
// must then be registered as an engine extension.
func WithIssueOnCompletion() Option {
	return func(s *Service) { s.onCompletion = true }
}

// WithCodeTTL sets how long an issued code stays valid.
func WithCodeTTL(d time.Duration) Option {
	return func(s *Service) { s.codeTTL = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// Service implements code request and verification.
type Service struct {
	orch          client.Orchestrator
	store         otp.Store
	limiter       *throttle.Limiter
	verifyLimiter *throttle.Limiter
	onCompletion  bool
	codeTTL       time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// NewService creates a Service.
func NewService(orch client.Orchestrator, store otp.Store, opts ...Option) *Service {
	s := &Service{
		orch:    orch,
		store:   store,
		codeTTL: posauth.DefaultConfig().CodeTTL,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestCode runs the sign-in workflow for email and stores the issued
// code. Excess requests for one email fail with posauth.ErrThrottled.
func (s *Service) RequestCode(ctx context.Context, email, botToken string) (SignInResponse, error) {
	if s.limiter != nil {
		if !s.limiter.Acquire(email) {
			return SignInResponse{}, posauth.ErrThrottled
		}
		defer s.limiter.Release(email)
	}

	now := s.now()
	res, err := s.orch.StartSignIn(ctx, client.RunKey(client.KindSignIn, email, now),
		signin.Input{Email: email, BotToken: botToken})
	if err != nil {
		return SignInResponse{}, fmt.Errorf("sign-in run: %w", err)
	}
	if !res.Issued() {
		s.logger.Info("code not issued", slog.String("email", email), slog.String("reason", res.Message))
		return SignInResponse{Message: res.Message}, nil
	}

	if s.onCompletion {
		// The attempt was stored before the run reported completion.
		user, err := s.store.GetUserByEmail(ctx, email)
		if err != nil {
			return SignInResponse{}, fmt.Errorf("issued code not stored: %w", err)
		}
		return SignInResponse{Message: res.Message, UserID: user.ID.String()}, nil
	}

	user, err := s.issue(ctx, email, res.Code, now)
	if err != nil {
		return SignInResponse{}, err
	}
	return SignInResponse{Message: res.Message, UserID: user.ID.String()}, nil
}

// issue stores code as the newest attempt of email's user.
func (s *Service) issue(ctx context.Context, email, code string, now time.Time) (*otp.User, error) {
	user, err := s.store.UpsertUser(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	attempt := &otp.Attempt{
		Entity:    posauth.Entity{CreatedAt: now, UpdatedAt: now},
		ID:        id.NewAttemptID(),
		UserID:    user.ID,
		Code:      code,
		ExpiresAt: now.Add(s.codeTTL),
	}
	if err := s.store.CreateAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("store attempt: %w", err)
	}

	s.logger.Info("code issued",
		slog.String("user_id", user.ID.String()),
		slog.String("attempt_id", attempt.ID.String()),
	)
	return user, nil
}

// Name implements ext.Extension.
func (s *Service) Name() string { return "auth" }

// OnWorkflowCompleted stores the code of a completed sign-in run when
// the Service was built with WithIssueOnCompletion.
func (s *Service) OnWorkflowCompleted(ctx context.Context, r *workflow.Run, _ time.Duration) error {
	if !s.onCompletion || r.Name != signin.SignInWorkflow {
		return nil
	}
	res, err := workflow.Result[signin.Result](r)
	if err != nil {
		return fmt.Errorf("run %s: %w", r.ID, err)
	}
	if !res.Issued() {
		return nil
	}
	var in signin.Input
	if err := json.Unmarshal(r.Input, &in); err != nil {
		return fmt.Errorf("decode input of run %s: %w", r.ID, err)
	}
	_, err = s.issue(context.WithoutCancel(ctx), in.Email, res.Code, s.now())
	return err
}

// VerifyCode checks code against the latest active attempt of email. A
// verified code is consumed; redeeming it again reports it as expired.
// Unknown emails fail with posauth.ErrUserNotFound and excess attempts
// for one email with posauth.ErrThrottled.
func (s *Service) VerifyCode(ctx context.Context, email, code string) (VerifyResponse, error) {
	if s.verifyLimiter != nil {
		if !s.verifyLimiter.Acquire(email) {
			return VerifyResponse{}, posauth.ErrThrottled
		}
		defer s.verifyLimiter.Release(email)
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return VerifyResponse{}, err
	}

	now := s.now()
	attempt, err := s.store.LatestActiveAttempt(ctx, user.ID, now)
	if errors.Is(err, posauth.ErrAttemptNotFound) {
		return VerifyResponse{Status: signin.StatusExpired, Message: signin.MsgExpired}, nil
	}
	if err != nil {
		return VerifyResponse{}, fmt.Errorf("latest attempt: %w", err)
	}

	res, err := s.orch.StartVerify(ctx, client.RunKey(client.KindVerify, email, now), signin.VerifyInput{
		Email:     email,
		Code:      code,
		Reference: attempt.Code,
		ExpiresAt: &attempt.ExpiresAt,
	})
	if err != nil {
		return VerifyResponse{}, fmt.Errorf("verify run: %w", err)
	}
	if !res.Verified() {
		return VerifyResponse{Status: res.Status, Message: res.Message}, nil
	}

	if err := s.store.MarkAttemptUsed(ctx, attempt.ID, now); err != nil {
		if errors.Is(err, posauth.ErrAttemptUsed) {
			return VerifyResponse{Status: signin.StatusExpired, Message: signin.MsgExpired}, nil
		}
		return VerifyResponse{}, fmt.Errorf("mark attempt used: %w", err)
	}
	if err := s.store.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("touch last login failed",
			slog.String("user_id", user.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	return VerifyResponse{Status: res.Status, Message: res.Message}, nil
}
