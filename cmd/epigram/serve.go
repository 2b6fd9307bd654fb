package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/epigram/internal/api"
	"github.com/RobinCoderZhao/epigram/internal/config"
	"github.com/RobinCoderZhao/epigram/internal/news"
	"github.com/RobinCoderZhao/epigram/internal/scheduler"
	"github.com/RobinCoderZhao/epigram/pkg/kv"
)

func serveCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	pop, err := a.populator()
	if err != nil {
		return err
	}
	gen, err := a.insights()
	if err != nil {
		return err
	}

	server := api.NewServer(api.Deps{
		Feed:      news.NewAggregator(news.NewTopicStore(a.store)),
		Populator: pop,
		Insights:  gen,
		Limiter:   a.limiter(),
		Health:    a.store,
	}, api.Options{
		SecretHeader: cfg.Populate.SecretHeader,
		Secret:       cfg.Populate.Secret,
		CORSOrigins:  cfg.Server.CORSOrigins,
	})

	sched := scheduler.NewScheduler()
	sched.Add(scheduler.Job{
		Name:       "populate",
		Interval:   cfg.Populate.Interval,
		RunAtStart: true,
		Fn: func(ctx context.Context) error {
			_, err := pop.Run(ctx, news.AllTopics)
			return err
		},
	})
	if sqlStore, ok := a.store.(*kv.SQLStore); ok {
		sched.Add(scheduler.Job{
			Name:     "kv-purge",
			Interval: time.Hour,
			Fn: func(ctx context.Context) error {
				n, err := sqlStore.Purge(ctx)
				if err == nil && n > 0 {
					slog.Info("purged expired kv entries", "count", n)
				}
				return err
			},
		})
	}
	sched.Start(ctx)
	defer sched.Stop()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting api server", "addr", cfg.Server.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		return err
	}
	return nil
}
