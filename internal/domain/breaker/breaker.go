// Package breaker implements the three-state failure gate guarding the
// hub's emit path. It tracks consecutive outcomes and stops attempting
// work once the path is judged to be failing, re-probing recovery after a
// cool-down period.
package breaker

import (
	"sync"
	"time"
)

// State of the breaker.
type State string

const (
	StateClosed   State = "closed"    // normal operation
	StateOpen     State = "open"      // rejecting all attempts
	StateHalfOpen State = "half-open" // probing recovery
)

const (
	DefaultFailureThreshold  = 5
	DefaultRetryTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 3
)

// Breaker gates the emit path. All methods are safe for concurrent use;
// state mutations are serialized behind a single mutex.
type Breaker struct {
	mu sync.Mutex

	state         State
	failures      int
	successes     int
	lastFailureAt time.Time

	failureThreshold  int
	retryTimeout      time.Duration
	halfOpenSuccesses int
	now               func() time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureThreshold sets how many consecutive failures open the breaker.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithRetryTimeout sets how long the breaker stays open before allowing a
// probe attempt.
func WithRetryTimeout(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.retryTimeout = d
		}
	}
}

// WithHalfOpenSuccesses sets how many consecutive successes close the
// breaker from half-open.
func WithHalfOpenSuccesses(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.halfOpenSuccesses = n
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

func New(opts ...Option) *Breaker {
	b := &Breaker{
		state:             StateClosed,
		failureThreshold:  DefaultFailureThreshold,
		retryTimeout:      DefaultRetryTimeout,
		halfOpenSuccesses: DefaultHalfOpenSuccesses,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ShouldAllow reports whether a new attempt may proceed. The first call
// after the retry timeout has elapsed since the last failure transitions
// the breaker from open to half-open and is itself allowed through.
func (b *Breaker) ShouldAllow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailureAt) >= b.retryTimeout {
			b.state = StateHalfOpen
			b.successes = 0
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess notes a successful attempt. While half-open, reaching the
// configured success streak closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	switch b.state {
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.halfOpenSuccesses {
			b.state = StateClosed
			b.successes = 0
		}
	case StateClosed:
		b.successes++
	}
}

// RecordFailure notes a failed attempt. A failure while half-open reverts
// straight back to open and restarts the cool-down clock.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.successes = 0
	b.lastFailureAt = b.now()

	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
	case StateClosed:
		if b.failures >= b.failureThreshold {
			b.state = StateOpen
		}
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker back to closed and clears all counters. Used by
// the administrative enable path.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.lastFailureAt = time.Time{}
}

// Snapshot is a point-in-time view for health reporting.
type Snapshot struct {
	State         State     `json:"state"`
	Failures      int       `json:"failureCount"`
	Successes     int       `json:"successCount"`
	LastFailureAt time.Time `json:"lastFailureAt,omitzero"`
}

func (b *Breaker) Stats() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		State:         b.state,
		Failures:      b.failures,
		Successes:     b.successes,
		LastFailureAt: b.lastFailureAt,
	}
}
