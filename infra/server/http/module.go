package http

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/boardkit/event-hub/config"
)

var Module = fx.Module("http_server",
	fx.Provide(
		func(cfg *config.Config, logger *slog.Logger) *Server {
			return NewServer(cfg.HTTP, logger.With("component", "http"))
		},
	),

	fx.Invoke(func(lc fx.Lifecycle, srv *Server) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				srv.Start()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return srv.Stop(ctx)
			},
		})
	}),
)
