package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"signalscanner/internal/app"
	"signalscanner/internal/config"
	"signalscanner/internal/logging"
)

func main() {
	serve := flag.Bool("serve", false, "run the HTTP front-end instead of a one-shot scan")
	flag.Parse()

	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if *serve {
		if err := application.Serve(ctx); err != nil {
			logger.Error("http server stopped", "error", err)
			os.Exit(1)
		}
		return
	}

	summary, err := application.RunScan(ctx)
	if err != nil {
		logger.Error("scan failed", "error", err)
		os.Exit(1)
	}
	if summary.AllFeedsFailed() {
		logger.Warn("no feeds could be fetched; check network connectivity")
	}
}
