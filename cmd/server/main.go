// Command server runs the SectionDrop HTTP service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dharsanguruparan/SectionDrop/internal/app"
	"github.com/dharsanguruparan/SectionDrop/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := config.SetupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer a.Close()
	if a.Pool != nil {
		a.Pool.Start(ctx)
		defer a.Pool.Wait()
	}
	logger.Info("sectiondrop starting", a.Describe()...)

	if err := a.Server().Serve(ctx); err != nil {
		logger.Error("server stopped", "err", err)
		stop()
		os.Exit(1)
	}
}
