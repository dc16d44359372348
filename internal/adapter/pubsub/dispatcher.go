package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sony/gobreaker"

	"github.com/boardkit/event-hub/internal/domain/event"
)

// Dispatcher publishes persisted events to the storage collaborator's
// exchange. A broker outage must not drag the broadcaster down, so every
// publish runs behind its own circuit breaker: once the bus is judged
// failing, dispatches fail fast until a probe succeeds.
type Dispatcher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker
	logger    *slog.Logger
}

func NewDispatcher(publisher message.Publisher, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		logger:    logger,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "persistence-dispatch",
			MaxRequests: 3,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("dispatch breaker state changed",
					"breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// Dispatch publishes one event, keyed by its type so the storage consumer
// can bind selectively.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *event.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("dispatch: marshal event %s: %w", ev.ID, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_type", ev.Type)

	_, err = d.breaker.Execute(func() (any, error) {
		return nil, d.publisher.Publish(ev.Type, msg)
	})
	if err != nil {
		return fmt.Errorf("dispatch: publish %s: %w", ev.Type, err)
	}
	return nil
}

// NoopDispatcher satisfies the hub when the message bus is disabled;
// persisted events are then observable only through ShouldPersist polling.
type NoopDispatcher struct {
	logger *slog.Logger
}

func NewNoopDispatcher(logger *slog.Logger) *NoopDispatcher {
	return &NoopDispatcher{logger: logger}
}

func (d *NoopDispatcher) Dispatch(_ context.Context, ev *event.Event) error {
	d.logger.Debug("persistence dispatch skipped, bus disabled", "event_id", ev.ID)
	return nil
}
