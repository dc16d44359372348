package service

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/boardkit/event-hub/internal/domain/event"
)

const (
	defaultLimiterSize = 4096
	defaultLimiterTTL  = 10 * time.Minute
)

// rateWindow is a fixed-window counter for one (eventType, sessionId) pair.
type rateWindow struct {
	start time.Time
	count int
}

// rateLimiter enforces the per-type emission budgets declared in the event
// registry. Counters live in an expirable LRU so memory stays bounded no
// matter how many sessions come and go.
type rateLimiter struct {
	mu      sync.Mutex
	windows *expirable.LRU[string, *rateWindow]
	now     func() time.Time
}

func newRateLimiter(size int, now func() time.Time) *rateLimiter {
	if size <= 0 {
		size = defaultLimiterSize
	}
	return &rateLimiter{
		windows: expirable.NewLRU[string, *rateWindow](size, nil, defaultLimiterTTL),
		now:     now,
	}
}

// Allow reports whether the event fits its type's budget. Types with no
// declared budget are never limited.
func (l *rateLimiter) Allow(ev *event.Event, policy event.RateLimit) bool {
	if policy.MaxEvents <= 0 || policy.Window <= 0 {
		return true
	}

	key := ev.Type + "|" + ev.SessionID
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows.Get(key)
	if !ok || now.Sub(w.start) >= policy.Window {
		w = &rateWindow{start: now}
		l.windows.Add(key, w)
	}

	if w.count >= policy.MaxEvents {
		return false
	}
	w.count++
	return true
}
