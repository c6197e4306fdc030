// Command worker renders thumbnails queued in Redis.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/SectionDrop/internal/app"
	"github.com/dharsanguruparan/SectionDrop/internal/config"
	"github.com/dharsanguruparan/SectionDrop/internal/paths"
	"github.com/dharsanguruparan/SectionDrop/internal/thumbnail"
	"github.com/dharsanguruparan/SectionDrop/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := config.SetupLogger(cfg)
	if !cfg.QueueEnabled() {
		log.Fatalf("SECTIONDROP_REDIS_ADDR must be set for the worker")
	}
	if err := paths.Ensure(cfg.ThumbnailsDir()); err != nil {
		log.Fatalf("prepare dirs: %v", err)
	}

	gen := thumbnail.NewGenerator(cfg.UploadsDir, cfg.ThumbnailsDir(), logger)
	srv := asynq.NewServer(app.RedisOpt(cfg), asynq.Config{
		Concurrency: cfg.Workers,
		Logger:      worker.NewAsynqLogger(logger),
	})
	processor := worker.NewProcessor(gen, logger)

	go func() {
		<-ctx.Done()
		srv.Shutdown()
	}()

	logger.Info("thumbnail worker starting", "redis", cfg.RedisAddr, "concurrency", cfg.Workers)
	if err := srv.Run(processor.Handler()); err != nil {
		logger.Error("worker stopped", "err", err)
		os.Exit(1)
	}
}
