package registry

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/boardkit/event-hub/config"
)

var Module = fx.Module("registry",
	fx.Provide(
		func(cfg *config.Config, logger *slog.Logger) *Registry {
			return New(
				WithBufferSize(cfg.Hub.ConnectionBuffer),
				WithLogger(logger.With("component", "registry")),
			)
		},
	),
)
