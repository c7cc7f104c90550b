package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PromoBrothers/Projeto-2026/internal/app"
	"github.com/PromoBrothers/Projeto-2026/internal/db"
	httpSrv "github.com/PromoBrothers/Projeto-2026/internal/http"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP API and both dispatchers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := app.Bootstrap(cfgPath)
		if err != nil {
			return err
		}

		a, err := app.Open(cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		redisClient, err := db.NewRedisClient(cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		if redisClient != nil {
			defer func() { _ = redisClient.Close() }()
		} else {
			log.Info("redis not configured, rate limit disabled")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a.StartRecorder()

		products := a.NewProductDispatcher()
		clones := a.NewCloneDispatcher()
		if cfg.Scheduler.Products.Enabled {
			products.Start(ctx)
		}
		if cfg.Scheduler.CloneQueue.Enabled {
			clones.Start(ctx)
		}

		deps := httpSrv.Deps{
			Sender:     products,
			Products:   a.Products,
			Drainer:    clones,
			Queue:      a.QueueSvc,
			Groups:     a.Groups,
			Resolver:   a.Resolver,
			Gateway:    a.Gateway,
			Deliveries: a.Deliveries,
			Redis:      redisClient,
		}
		server := httpSrv.NewServer(cfg, deps, log)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		select {
		case <-ctx.Done():
			log.Info("signal received, shutting down")
		case err := <-errCh:
			if err != nil {
				log.Error("http server exited", zap.Error(err))
			}
		}

		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shCtx)

		for _, l := range []interface{ Stop(time.Duration) error }{products, clones} {
			if err := l.Stop(cfg.Scheduler.StopTimeout); err != nil {
				log.Warn("dispatcher stop", zap.Error(err))
			}
		}
		return nil
	},
}
