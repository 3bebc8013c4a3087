package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sprintboard/internal/metrics"
	"sprintboard/internal/server"
	"sprintboard/internal/snapshot"
)

func serveCmd(configPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the daily snapshot job",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer a.close()
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return serve(a)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides server.addr)")
	return cmd
}

func serve(a *app) error {
	logger := a.logger
	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}
	logger.Info("sprintboard starting", zap.String("version", Version), zap.String("db", a.cfg.Database.Path))

	engine := metrics.NewEngine(a.store, logger,
		metrics.WithLocation(loc),
		metrics.WithCache(a.cfg.Metrics.CacheSize, a.cfg.Metrics.CacheTTL))
	srv := server.New(a.store, engine, logger, a.cfg.Server.StaticDir)

	httpServer := &http.Server{
		Addr:    a.cfg.Server.Addr,
		Handler: srv.Engine(),
	}
	scheduler := snapshot.New(a.store, logger,
		snapshot.WithInterval(a.cfg.Snapshot.Interval),
		snapshot.WithWorkers(a.cfg.Snapshot.Workers),
		snapshot.WithLocation(loc))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		scheduler.Start(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server", zap.Error(err))
		}
		return nil
	})

	err = g.Wait()
	if err != nil {
		logger.Error("server stopped unexpectedly", zap.Error(err))
	}
	logger.Info("server stopped")
	return err
}
