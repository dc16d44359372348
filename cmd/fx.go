package cmd

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/boardkit/event-hub/config"
	httpserver "github.com/boardkit/event-hub/infra/server/http"
	"github.com/boardkit/event-hub/internal/adapter/pubsub"
	"github.com/boardkit/event-hub/internal/domain/registry"
	amqphandler "github.com/boardkit/event-hub/internal/handler/amqp"
	httphandler "github.com/boardkit/event-hub/internal/handler/http"
	"github.com/boardkit/event-hub/internal/service"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
			ProvideTracerProvider,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With("component", "fx")}
		}),

		fx.Invoke(func(trace.TracerProvider) {}),
		fx.Invoke(func(cfg *config.Config, logger *slog.Logger) {
			cfg.WatchReload(logger.With("component", "config"))
		}),

		service.Module,
		registry.Module,
		pubsub.Module,
		httpserver.Module,
		httphandler.Module,
		amqphandler.Module,
	)
}
