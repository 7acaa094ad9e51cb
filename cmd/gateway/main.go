package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"authgate/internal/app"
	"authgate/internal/config"
	"authgate/internal/logger"
)

func main() {
	cfg, err := config.LoadGateway()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if _, err := logger.Setup(os.Stdout, cfg.Log.Format, cfg.Log.Level); err != nil {
		slog.Error("failed to configure logger", "error", err)
		os.Exit(1)
	}
	if cfg.JWT.UsesDevelopmentSecret() {
		slog.Warn("JWT_SECRET is not set; using the built-in development secret. Tokens are forgeable by anyone with the source code.",
			"app_env", cfg.AppEnv)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gateway, err := app.NewGateway(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize gateway", "error", err)
		os.Exit(1)
	}

	if err := gateway.Run(ctx); err != nil {
		slog.Error("gateway run failed", "error", err)
		os.Exit(1)
	}
}
