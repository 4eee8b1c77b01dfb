package activity

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// CodeDigits is the length of an issued code.
const CodeDigits = 6

const codeSpace = 1_000_000

// BotVerifier checks a bot-challenge token with its issuing service.
// It returns false for a definitive rejection and an error for anything
// it could not decide.
type BotVerifier interface {
	Verify(ctx context.Context, token string) (bool, error)
}

// Mailer hands a message to a delivery channel.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Option configures a Set.
type Option func(*Set)

// WithRandom replaces the random source used for codes.
func WithRandom(r io.Reader) Option {
	return func(s *Set) { s.random = r }
}

// WithCodeTTL sets the validity window quoted in the delivery email.
func WithCodeTTL(ttl time.Duration) Option {
	return func(s *Set) { s.codeTTL = ttl }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Set) { s.logger = l }
}

// Set holds the collaborators of the four activities. It has no mutable
// state and is safe for concurrent use across runs.
type Set struct {
	verifier BotVerifier
	mailer   Mailer
	random   io.Reader
	codeTTL  time.Duration
	logger   *slog.Logger
}

// NewSet creates the activity set.
func NewSet(verifier BotVerifier, mailer Mailer, opts ...Option) *Set {
	s := &Set{
		verifier: verifier,
		mailer:   mailer,
		random:   rand.Reader,
		codeTTL:  5 * time.Minute,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Table binds every kind to this set's functions.
func (s *Set) Table() *Table {
	return &Table{
		VerifyBotToken: func(ctx context.Context, in Input) (Output, error) {
			ok, err := s.VerifyBotToken(ctx, in.Token)
			return Output{OK: ok}, err
		},
		ValidateEmail: func(ctx context.Context, in Input) (Output, error) {
			ok, err := s.ValidateEmail(ctx, in.Email)
			return Output{OK: ok}, err
		},
		GenerateCode: func(ctx context.Context, _ Input) (Output, error) {
			code, err := s.GenerateCode(ctx)
			return Output{OK: err == nil, Code: code}, err
		},
		DeliverCode: func(ctx context.Context, in Input) (Output, error) {
			ok, err := s.DeliverCode(ctx, in.Email, in.Code)
			return Output{OK: ok}, err
		},
	}
}

// VerifyBotToken asks the bot verifier about token. An empty token is
// rejected without a network call.
func (s *Set) VerifyBotToken(ctx context.Context, token string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, nil
	}
	ok, err := s.verifier.Verify(ctx, token)
	if err != nil {
		var ae *Error
		if errors.As(err, &ae) {
			return false, err
		}
		return false, Transient("verify bot token", err)
	}
	return ok, nil
}

// ValidateEmail performs a structural check: exactly one "@", non-empty
// local and domain parts, and a "." in the domain. No DNS lookup.
func (s *Set) ValidateEmail(_ context.Context, email string) (bool, error) {
	return ValidEmail(email), nil
}

// ValidEmail is the pure form of ValidateEmail.
func ValidEmail(email string) bool {
	if strings.Count(email, "@") != 1 {
		return false
	}
	local, domain, _ := strings.Cut(email, "@")
	if local == "" || domain == "" {
		return false
	}
	return strings.Contains(domain, ".")
}

// GenerateCode returns a uniformly random 6-digit code, left-zero-padded.
func (s *Set) GenerateCode(_ context.Context) (string, error) {
	return NewCode(s.random)
}

// NewCode draws a code from r using rejection sampling so every value in
// [000000, 999999] is equally likely.
func NewCode(r io.Reader) (string, error) {
	const limit = (1 << 32) / codeSpace * codeSpace
	var buf [4]byte
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return "", Transient("generate code", err)
		}
		v := binary.BigEndian.Uint32(buf[:])
		if uint64(v) < limit {
			return fmt.Sprintf("%0*d", CodeDigits, v%codeSpace), nil
		}
	}
}

// DeliverCode emails code to the recipient.
func (s *Set) DeliverCode(ctx context.Context, email, code string) (bool, error) {
	if email == "" || code == "" {
		return false, Invalid("deliver code", errors.New("email and code are required"))
	}
	msg := CodeMessage(email, code, s.codeTTL)
	if err := s.mailer.Send(ctx, msg); err != nil {
		var ae *Error
		if errors.As(err, &ae) {
			return false, err
		}
		return false, Transient("deliver code", err)
	}
	s.logger.Debug("code delivered", slog.String("email", email))
	return true, nil
}
