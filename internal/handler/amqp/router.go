// Package amqp feeds the hub from the message bus. Producers that cannot
// speak HTTP publish board events to the ingest exchange; this consumer
// pushes them through the same Emit pipeline the HTTP surface uses.
package amqp

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"

	"github.com/boardkit/event-hub/config"
	"github.com/boardkit/event-hub/internal/adapter/pubsub"
	"github.com/boardkit/event-hub/internal/service"
)

const poisonSuffix = ".poison"

type Ingestor struct {
	hub    *service.Hub
	logger *slog.Logger
}

func NewIngestor(hub *service.Hub, logger *slog.Logger) *Ingestor {
	return &Ingestor{hub: hub, logger: logger}
}

func NewRouter(logger watermill.LoggerAdapter) (*message.Router, error) {
	return message.NewRouter(message.RouterConfig{}, logger)
}

// Register attaches the board-event consumer and its middleware chain to
// the router. Each node gets its own queue so every instance sees the full
// stream and serves its local subscribers.
func (i *Ingestor) Register(router *message.Router, provider *pubsub.Provider, cfg config.AMQPConfig) error {
	instanceID := uuid.NewString()[:8]
	queue := fmt.Sprintf("%s.%s", cfg.QueuePrefix, instanceID)

	sub, err := provider.BuildSubscriber(queue, cfg.IngestExchange)
	if err != nil {
		return fmt.Errorf("amqp: build subscriber: %w", err)
	}

	poisonPub, err := provider.BuildPublisher(cfg.IngestExchange)
	if err != nil {
		return fmt.Errorf("amqp: build poison publisher: %w", err)
	}
	poison, err := middleware.PoisonQueue(poisonPub, cfg.QueuePrefix+poisonSuffix)
	if err != nil {
		return fmt.Errorf("amqp: poison queue setup: %w", err)
	}

	router.AddNoPublisherHandler(
		"board_event_ingest",
		cfg.IngestTopic,
		sub,
		Bind(i.logger, i.OnBoardEvent),
	).AddMiddleware(
		CorrelationMiddleware,
		LoggingMiddleware(i.logger),
		NewRetryMiddleware().Middleware,
		poison,
		middleware.NewThrottle(100, time.Second).Middleware,
		middleware.Timeout(30*time.Second),
	)

	i.logger.Info("amqp ingest ready",
		"queue", queue, "exchange", cfg.IngestExchange, "topic", cfg.IngestTopic)
	return nil
}
