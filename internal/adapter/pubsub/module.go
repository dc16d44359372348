package pubsub

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/boardkit/event-hub/config"
	"github.com/boardkit/event-hub/internal/service"
)

var Module = fx.Module("pubsub",
	fx.Provide(
		NewProvider,

		func(cfg *config.Config, provider *Provider, logger *slog.Logger) (service.Dispatcher, error) {
			if !cfg.AMQP.Enabled {
				return NewNoopDispatcher(logger.With("component", "dispatcher")), nil
			}
			pub, err := provider.BuildPublisher(cfg.AMQP.PersistExchange)
			if err != nil {
				return nil, err
			}
			return NewDispatcher(pub, logger.With("component", "dispatcher")), nil
		},
	),
)
