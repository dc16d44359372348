package amqp

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"
)

// DomainHandler is the business signature behind a consumer: decoded
// payload in, terminal-or-retryable decision out.
type DomainHandler[T any] func(ctx context.Context, payload *T) error

// Bind adapts a typed handler to Watermill, keeping the consumer alive
// through panics and shielding it from undecodable payloads. A decode
// failure is terminal and ACKed; retrying it would yield the same bytes.
func Bind[T any](logger *slog.Logger, fn DomainHandler[T]) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("consumer panic recovered",
					"panic", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID)
			}
		}()

		payload := new(T)
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			logger.Error("undecodable payload dropped", "error", err, "msg_id", msg.UUID)
			return nil
		}

		return fn(msg.Context(), payload)
	}
}
