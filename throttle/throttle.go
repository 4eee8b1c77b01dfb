package throttle

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config defines the per-email limits.
type Config struct {
	// Rate is the sustained number of requests per second allowed for one
	// email. Zero disables rate limiting.
	Rate float64

	// Burst is the token-bucket size. Defaults to 1 when Rate is set.
	Burst int

	// MaxConcurrency caps in-flight requests per email. Zero means no cap.
	MaxConcurrency int

	// IdleTTL is how long an idle entry is kept before Evict drops it.
	IdleTTL time.Duration
}

// DefaultConfig allows five sign-ins per minute per email with a burst of
// three and one in flight at a time.
func DefaultConfig() Config {
	return Config{
		Rate:           5.0 / 60,
		Burst:          3,
		MaxConcurrency: 1,
		IdleTTL:        10 * time.Minute,
	}
}

// entry tracks runtime state for a single email.
type entry struct {
	limiter  *rate.Limiter
	active   int
	lastSeen time.Time
}

// Limiter enforces Config per key. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	entries map[string]*entry
	now     func() time.Time
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:     cfg,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Key normalizes an email so case and surrounding space do not create
// separate buckets.
func Key(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (l *Limiter) entry(key string, now time.Time) *entry {
	e := l.entries[key]
	if e == nil {
		e = &entry{}
		if l.cfg.Rate > 0 {
			burst := l.cfg.Burst
			if burst <= 0 {
				burst = 1
			}
			e.limiter = rate.NewLimiter(rate.Limit(l.cfg.Rate), burst)
		}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e
}

// Acquire reports whether a request for email may proceed. On true the
// caller MUST call Release when the request completes. A request refused
// for concurrency does not consume a token.
func (l *Limiter) Acquire(email string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e := l.entry(Key(email), now)
	if l.cfg.MaxConcurrency > 0 && e.active >= l.cfg.MaxConcurrency {
		return false
	}
	if e.limiter != nil && !e.limiter.AllowN(now, 1) {
		return false
	}
	e.active++
	return true
}

// Release ends a request admitted by Acquire.
func (l *Limiter) Release(email string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e := l.entries[Key(email)]; e != nil && e.active > 0 {
		e.active--
		e.lastSeen = l.now()
	}
}

// Active returns the number of in-flight requests for email.
func (l *Limiter) Active(email string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e := l.entries[Key(email)]; e != nil {
		return e.active
	}
	return 0
}

// Len returns the number of tracked emails.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Evict drops idle entries and returns how many were removed. An entry
// with requests in flight is never dropped.
func (l *Limiter) Evict() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.cfg.IdleTTL)
	n := 0
	for key, e := range l.entries {
		if e.active == 0 && e.lastSeen.Before(cutoff) {
			delete(l.entries, key)
			n++
		}
	}
	return n
}

// Run calls Evict every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Evict()
		}
	}
}
