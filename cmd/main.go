package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tempguard-device/internal/app"
	"tempguard-device/internal/config"
	"tempguard-device/internal/device"
	"tempguard-device/internal/logging"
)

var version = "dev"
var appName = "tempguard-device"

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg, version, appName)
	slog.SetDefault(logger)

	slog.Info("starting",
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
		"log_level", cfg.LogLevel.String(),
		"transport", cfg.Transport,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = app.Run(ctx, cfg, logger)
	switch {
	case errors.Is(err, device.ErrRestartRequested):
		slog.Error("restarting", "err", err)
		stop()
		os.Exit(1)
	case err != nil && !errors.Is(err, context.Canceled):
		slog.Error("run failed", "err", err)
		stop()
		os.Exit(1)
	}

	slog.Info("shutting down")
}
