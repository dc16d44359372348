package amqp

import (
	"context"
	"fmt"

	"github.com/boardkit/event-hub/internal/domain/event"
	"github.com/boardkit/event-hub/internal/service"
)

// OnBoardEvent pushes a bus-delivered event through the hub pipeline.
//
// Validation rejections and rate limits are deterministic: replaying the
// same message reproduces them, so those are ACKed and logged. Protective
// states (disabled hub, open breaker, full queue) are transient, so the
// message is NACKed into the retry chain and eventually the poison queue.
func (i *Ingestor) OnBoardEvent(ctx context.Context, ev *event.Event) error {
	res := i.hub.Emit(ctx, ev)
	if res.Success {
		return nil
	}

	if retryable(res.Code) {
		return fmt.Errorf("hub refused event %s: %s (%s)", ev.Type, res.Error, res.Code)
	}

	i.logger.Warn("bus event rejected",
		"event_type", ev.Type,
		"session_id", ev.SessionID,
		"code", res.Code,
		"error", res.Error)
	return nil
}

func retryable(code string) bool {
	switch code {
	case service.CodeHubDisabled,
		service.CodeCircuitBreakerOpen,
		service.CodeQueueOverflow,
		service.CodeInternalError:
		return true
	default:
		return false
	}
}
