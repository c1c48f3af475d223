package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/dexarb/internal/domain"
	"github.com/alanyoungcy/dexarb/internal/notify"
	"github.com/alanyoungcy/dexarb/internal/pipeline"
	"github.com/alanyoungcy/dexarb/internal/publisher"
	"github.com/alanyoungcy/dexarb/internal/server"
	"github.com/alanyoungcy/dexarb/internal/server/handler"
	"github.com/alanyoungcy/dexarb/internal/server/ws"
)

const shutdownTimeout = 5 * time.Second

// BotMode runs the arbitrage pipeline until ctx is cancelled or a swap
// subscription is lost.
func (a *App) BotMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting bot mode")

	orch, closeChain, err := a.buildOrchestrator(ctx, deps)
	if err != nil {
		return err
	}
	defer closeChain()

	g, ctx := errgroup.WithContext(ctx)
	a.startMetricsServer(ctx, g)
	g.Go(func() error {
		return a.runBot(ctx, orch, deps.Notifier)
	})
	return g.Wait()
}

// SinkMode serves the trade-log sink and, when configured, archives old
// trade logs to S3.
func (a *App) SinkMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sink mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startSink(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the bot and the sink in one process. The bot posts to the
// sink over HTTP exactly as it would to a remote one.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	orch, closeChain, err := a.buildOrchestrator(ctx, deps)
	if err != nil {
		return err
	}
	defer closeChain()

	g, ctx := errgroup.WithContext(ctx)
	a.startSink(ctx, g, deps)
	a.startMetricsServer(ctx, g)
	g.Go(func() error {
		return a.runBot(ctx, orch, deps.Notifier)
	})
	return g.Wait()
}

// runBot runs the orchestrator and raises the subscription_lost
// notification when it fails for that reason.
func (a *App) runBot(ctx context.Context, orch *pipeline.Orchestrator, notifier *notify.Notifier) error {
	err := orch.Run(ctx)
	if err != nil && errors.Is(err, domain.ErrSubscriptionLost) {
		nctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if nerr := notifier.Notify(nctx, notify.EventSubscriptionLost, "Swap subscription lost", err.Error()); nerr != nil {
			a.logger.Warn("subscription_lost notification failed", slog.String("error", nerr.Error()))
		}
	}
	return err
}

// startSink adds the sink HTTP server, its websocket hub and the archive
// cron to g.
func (a *App) startSink(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if a.cfg.Server.Enabled {
		hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			BusChannels: []string{publisher.SwapChannel},
			StartedAt:   time.Now().UTC(),
		})
		srv := a.newSinkServer(deps, hub)

		g.Go(func() error {
			return hub.Run(ctx)
		})
		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutCtx)
		})
	} else {
		a.logger.WarnContext(ctx, "sink server disabled (server.enabled = false)")
	}

	if deps.Archiver != nil {
		archiver := pipeline.NewArchiver(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)
		g.Go(func() error {
			return archiver.RunCron(ctx, a.cfg.Archive.Cron)
		})
	}
}

// newSinkServer builds the sink HTTP server over deps. hub may be nil.
func (a *App) newSinkServer(deps *Dependencies, hub *ws.Hub) *server.Server {
	var live handler.Broadcaster
	if hub != nil {
		live = hub
	}

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(deps.TradeLogStore, deps.Probes, a.logger),
		TradeLogs: handler.NewTradeLogHandler(deps.TradeLogStore, live, a.logger),
	}
	if deps.ExecutionStore != nil {
		handlers.Executions = handler.NewExecutionHandler(deps.ExecutionStore, a.logger)
	}

	return server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)
}

// startMetricsServer serves /metrics on cfg.MetricsAddr when it is set.
func (a *App) startMetricsServer(ctx context.Context, g *errgroup.Group) {
	if a.cfg.MetricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		a.logger.InfoContext(ctx, "metrics listening", slog.String("addr", a.cfg.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
