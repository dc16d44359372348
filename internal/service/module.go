package service

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/boardkit/event-hub/config"
	"github.com/boardkit/event-hub/internal/domain/breaker"
	"github.com/boardkit/event-hub/internal/domain/event"
	"github.com/boardkit/event-hub/internal/domain/registry"
)

var Module = fx.Module("service",
	fx.Provide(
		event.NewBoardRegistry,

		func(cfg *config.Config) *breaker.Breaker {
			return breaker.New(
				breaker.WithFailureThreshold(cfg.Breaker.FailureThreshold),
				breaker.WithRetryTimeout(cfg.Breaker.RetryTimeout),
				breaker.WithHalfOpenSuccesses(cfg.Breaker.HalfOpenSuccesses),
			)
		},

		func(cfg *config.Config) *Monitor {
			return NewMonitor(
				WithLatencyWindow(cfg.Monitor.LatencyWindow),
				WithMaxLatency(cfg.Monitor.MaxLatency),
			)
		},

		func(cfg *config.Config, logger *slog.Logger, types *event.Registry,
			conns *registry.Registry, brk *breaker.Breaker, mon *Monitor, dispatcher Dispatcher,
		) *Hub {
			return NewHub(types, conns, brk, mon,
				WithMaxQueueSize(cfg.Hub.MaxQueueSize),
				WithDrainInterval(cfg.Hub.DrainInterval),
				WithSendTimeout(cfg.Hub.SendTimeout),
				WithRateLimiterSize(cfg.Hub.RateLimiterSize),
				WithCountersResetInterval(cfg.Hub.CountersReset),
				WithSweepInterval(cfg.Sweeper.Interval),
				WithSilenceThreshold(cfg.Sweeper.SilenceThreshold),
				WithDispatcher(dispatcher),
				WithLogger(logger.With("component", "hub")),
			)
		},
	),

	fx.Invoke(func(lc fx.Lifecycle, hub *Hub) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				hub.Start()
				return nil
			},
			OnStop: func(context.Context) error {
				return hub.Stop()
			},
		})
	}),
)
