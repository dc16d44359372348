package http

import (
	"log/slog"

	"go.uber.org/fx"

	httpserver "github.com/boardkit/event-hub/infra/server/http"
	"github.com/boardkit/event-hub/internal/service"
)

var Module = fx.Module("http_handler",
	fx.Provide(
		func(hub *service.Hub, logger *slog.Logger) *Handler {
			return NewHandler(hub, logger.With("component", "http_handler"))
		},
	),

	fx.Invoke(func(h *Handler, srv *httpserver.Server) {
		h.Register(srv.Router())
	}),
)
