package service

import (
	"errors"
	"sync"

	"github.com/boardkit/event-hub/internal/domain/event"
)

// ErrQueueOverflow signals that the queue is full of durable entries and
// cannot admit another event. Retryable by the producer after backoff.
var ErrQueueOverflow = errors.New("event queue overflow")

const DefaultMaxQueueSize = 1000

// queueEntry is a validated, enriched event awaiting broadcast, paired
// with its registry entry so the drain loop never repeats the lookup.
type queueEntry struct {
	ev  *event.Event
	cfg *event.TypeConfig
}

// boundedQueue is the FIFO buffer between Emit and the broadcaster.
// Overflow policy: ephemeral (non-persistent) entries are sacrificed first
// to protect durable ones; if every queued entry is durable the newcomer
// is rejected.
type boundedQueue struct {
	mu      sync.Mutex
	entries []queueEntry
	max     int
}

func newBoundedQueue(max int) *boundedQueue {
	if max <= 0 {
		max = DefaultMaxQueueSize
	}
	return &boundedQueue{max: max}
}

// Enqueue appends an event, evicting ephemeral entries when at capacity.
// It returns the number of evicted entries alongside ErrQueueOverflow when
// the event still does not fit.
func (q *boundedQueue) Enqueue(ev *event.Event, cfg *event.TypeConfig) (evicted int, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.max {
		kept := q.entries[:0]
		for _, e := range q.entries {
			if e.cfg.Persistence {
				kept = append(kept, e)
			}
		}
		evicted = len(q.entries) - len(kept)
		q.entries = kept
	}

	if len(q.entries) >= q.max {
		return evicted, ErrQueueOverflow
	}

	q.entries = append(q.entries, queueEntry{ev: ev, cfg: cfg})
	return evicted, nil
}

// Dequeue pops the oldest entry.
func (q *boundedQueue) Dequeue() (queueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return queueEntry{}, false
	}
	e := q.entries[0]
	q.entries = q.entries[1:]
	return e, true
}

// Depth returns the number of pending entries.
func (q *boundedQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Clear discards all pending entries and returns how many were dropped.
func (q *boundedQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.entries)
	q.entries = nil
	return n
}
