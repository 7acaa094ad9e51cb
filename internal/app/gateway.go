package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"

	"authgate/internal/config"
	"authgate/internal/handler"
	"authgate/internal/metrics"
	"authgate/internal/middleware"
	"authgate/internal/router"
	"authgate/internal/rpc"
	"authgate/internal/telemetry"
	"authgate/internal/token"
)

const gatewayServiceName = "authgate-gateway"

// Gateway is the public HTTP process. It owns the connection to the
// authentication service.
type Gateway struct {
	cfg          *config.GatewayConfig
	server       *http.Server
	cleanupFuncs []func()
}

func NewGateway(ctx context.Context, cfg *config.GatewayConfig) (*Gateway, error) {
	gw := &Gateway{cfg: cfg}

	shutdownTracing, err := telemetry.Setup(ctx, gatewayServiceName, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	gw.cleanupFuncs = append(gw.cleanupFuncs, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	})

	slog.Info("connecting to auth service", "addr", cfg.AuthRPCAddr)
	conn, err := rpc.DialWithHealth(ctx, cfg.AuthRPCAddr, cfg.AuthRPCWaitTimeout)
	if err != nil {
		gw.cleanup()
		return nil, fmt.Errorf("failed to connect to auth service: %w", err)
	}
	gw.cleanupFuncs = append(gw.cleanupFuncs, func() { _ = conn.Close() })

	appHandler, err := NewGatewayHandler(cfg, conn)
	if err != nil {
		gw.cleanup()
		return nil, err
	}

	gw.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appHandler,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return gw, nil
}

// NewGatewayHandler builds the HTTP surface on top of an established
// connection to the authentication service.
func NewGatewayHandler(cfg *config.GatewayConfig, conn grpc.ClientConnInterface) (http.Handler, error) {
	engine, err := token.NewEngine(token.Config{
		Secret:     cfg.JWT.Secret,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Issuer:     cfg.JWT.Issuer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token verifier: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	client := rpc.NewClient(conn, cfg.AuthRPCTimeout, collector)

	return router.New(
		router.Options{
			CORSOrigins:         cfg.CORSOrigins,
			RequestTimeout:      cfg.RequestTimeout,
			RateLimitRPM:        cfg.RateLimitRPM,
			AuthRateLimitRPM:    cfg.AuthRateLimitRPM,
			RefreshRateLimitRPM: cfg.RefreshRateLimitRPM,
			Recorder:            collector,
			MetricsHandler:      metrics.Handler(registry),
		},
		middleware.NewAuthMiddleware(engine),
		handler.NewAuthHandler(client, cfg.MaxBodyBytes),
		handler.NewUserHandler(client),
		handler.NewHealthHandler(func(ctx context.Context) error {
			return rpc.CheckHealth(ctx, conn)
		}),
	), nil
}

// Serve runs the HTTP server on lis until ctx is cancelled, then shuts down
// gracefully.
func (g *Gateway) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("gateway starting", "addr", lis.Addr().String())
		if err := g.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), g.cfg.ShutdownTimeout)
	defer cancel()

	if err := g.server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("graceful shutdown failed: %w", err)
	}
	g.cleanup()

	slog.Info("gateway stopped")
	return runErr
}

// Run listens on SERVER_PORT and serves until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", g.server.Addr)
	if err != nil {
		g.cleanup()
		return fmt.Errorf("listen on %s: %w", g.server.Addr, err)
	}
	return g.Serve(ctx, lis)
}

func (g *Gateway) cleanup() {
	for i := len(g.cleanupFuncs) - 1; i >= 0; i-- {
		g.cleanupFuncs[i]()
	}
	g.cleanupFuncs = nil
}
