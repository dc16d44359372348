package amqp

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/fx"

	"github.com/boardkit/event-hub/config"
	"github.com/boardkit/event-hub/internal/adapter/pubsub"
	"github.com/boardkit/event-hub/internal/service"
)

// Module wires the bus consumer. With amqp disabled in config the whole
// pipeline stays dormant and the service runs HTTP-only.
var Module = fx.Module("amqp_handler",
	fx.Provide(
		NewRouter,
		func(hub *service.Hub, logger *slog.Logger) *Ingestor {
			return NewIngestor(hub, logger.With("component", "amqp_ingest"))
		},
	),

	fx.Invoke(registerAndRun),
)

func registerAndRun(
	lc fx.Lifecycle,
	cfg *config.Config,
	ingestor *Ingestor,
	router *message.Router,
	provider *pubsub.Provider,
) error {
	if !cfg.AMQP.Enabled {
		return nil
	}

	if err := ingestor.Register(router, provider, cfg.AMQP); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() { errCh <- router.Run(runCtx) }()
			select {
			case err := <-errCh:
				return err
			case <-router.Running():
				return nil
			}
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
	return nil
}
