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
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"authgate/internal/config"
	"authgate/internal/database"
	"authgate/internal/metrics"
	"authgate/internal/password"
	"authgate/internal/repository"
	"authgate/internal/rpc"
	"authgate/internal/service"
	"authgate/internal/telemetry"
	"authgate/internal/token"
)

const (
	authServiceName     = "authgate-authsvc"
	storeHealthInterval = 15 * time.Second
)

// AuthNode is the authentication service process: the gRPC server, its
// health service and the metrics listener.
type AuthNode struct {
	cfg           *config.AuthServiceConfig
	grpcServer    *grpc.Server
	health        *health.Server
	metricsServer *http.Server
	storeCheck    func(context.Context) error
	cleanupFuncs  []func()
}

func NewAuthNode(ctx context.Context, cfg *config.AuthServiceConfig) (*AuthNode, error) {
	node := &AuthNode{cfg: cfg}

	shutdownTracing, err := telemetry.Setup(ctx, authServiceName, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	node.cleanupFuncs = append(node.cleanupFuncs, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	})

	store, err := node.openStore(ctx)
	if err != nil {
		node.cleanup()
		return nil, err
	}

	hasher, err := password.NewHasher(cfg.BcryptCost)
	if err != nil {
		node.cleanup()
		return nil, fmt.Errorf("failed to initialize password hasher: %w", err)
	}

	engine, err := token.NewEngine(token.Config{
		Secret:     cfg.JWT.Secret,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Issuer:     cfg.JWT.Issuer,
	})
	if err != nil {
		node.cleanup()
		return nil, fmt.Errorf("failed to initialize token engine: %w", err)
	}

	authService, err := service.NewAuthService(store, hasher, engine)
	if err != nil {
		node.cleanup()
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}
	userService := service.NewUserService(store)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	node.grpcServer = rpc.NewGRPCServer(collector)
	rpc.RegisterAuthServer(node.grpcServer, rpc.NewServer(authService, userService))

	node.health = health.NewServer()
	grpc_health_v1.RegisterHealthServer(node.grpcServer, node.health)

	if cfg.MetricsAddr != "" {
		node.metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metrics.SetupMetricsRoute(registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	slog.Info("auth service initialized",
		"store", cfg.StoreDriver,
		"bcrypt_cost", hasher.Cost(),
		"access_ttl", engine.AccessTTL().String(),
		"refresh_ttl", engine.RefreshTTL().String(),
	)
	return node, nil
}

func (a *AuthNode) openStore(ctx context.Context) (repository.UserStore, error) {
	switch a.cfg.StoreDriver {
	case config.StorePostgres:
		slog.Info("connecting to PostgreSQL")
		db, err := database.New(ctx, database.PostgresConfig{
			URL:      a.cfg.DatabaseURL,
			MaxConns: a.cfg.DBMaxConns,
			MinConns: a.cfg.DBMinConns,
			Migrate:  a.cfg.DBMigrate,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.cleanupFuncs = append(a.cleanupFuncs, db.Close)
		a.storeCheck = db.Health
		return repository.NewUserRepository(db.Pool), nil

	case config.StoreSQLite:
		db, err := database.OpenSQLite(a.cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		a.cleanupFuncs = append(a.cleanupFuncs, func() { _ = db.Close() })
		a.storeCheck = db.PingContext
		slog.Info("sqlite store ready", "path", a.cfg.SQLitePath)
		return repository.NewSQLiteUserRepository(db), nil

	case config.StoreMemory:
		slog.Warn("using in-memory user store; data is lost on restart")
		return repository.NewMemoryUserRepository(), nil

	default:
		return nil, fmt.Errorf("unsupported store driver %q", a.cfg.StoreDriver)
	}
}

// Serve runs the gRPC server on lis until ctx is cancelled, then stops
// gracefully.
func (a *AuthNode) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 2)

	a.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	a.health.SetServingStatus(rpc.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	go func() {
		slog.Info("auth service listening", "addr", lis.Addr().String())
		if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	if a.metricsServer != nil {
		go func() {
			slog.Info("metrics server starting", "addr", a.metricsServer.Addr)
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	if a.storeCheck != nil {
		go a.watchStore(ctx)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	a.shutdown()
	return runErr
}

// Run listens on the configured address and serves until ctx is cancelled.
func (a *AuthNode) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", a.cfg.RPCAddr)
	if err != nil {
		a.cleanup()
		return fmt.Errorf("listen on %s: %w", a.cfg.RPCAddr, err)
	}
	return a.Serve(ctx, lis)
}

// watchStore flips the health status while the backing database is
// unreachable.
func (a *AuthNode) watchStore(ctx context.Context) {
	ticker := time.NewTicker(storeHealthInterval)
	defer ticker.Stop()

	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := a.storeCheck(checkCtx)
		cancel()

		switch {
		case err != nil && serving:
			slog.Error("user store unreachable", "error", err)
			a.health.SetServingStatus(rpc.ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
			serving = false
		case err == nil && !serving:
			slog.Info("user store reachable again")
			a.health.SetServingStatus(rpc.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
			serving = true
		}
	}
}

func (a *AuthNode) shutdown() {
	slog.Info("auth service shutting down")
	a.health.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		a.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		slog.Warn("graceful stop timed out; forcing")
		a.grpcServer.Stop()
	}

	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			slog.Warn("metrics server shutdown failed", "error", err)
		}
	}

	a.cleanup()
	slog.Info("auth service stopped")
}

func (a *AuthNode) cleanup() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
	a.cleanupFuncs = nil
}
