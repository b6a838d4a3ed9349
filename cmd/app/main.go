package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/namankalla/nishi/config"
	"github.com/namankalla/nishi/internal/application/usecase"
	"github.com/namankalla/nishi/internal/infrastructure/logger"
	"github.com/namankalla/nishi/internal/infrastructure/metrics"
	"github.com/namankalla/nishi/internal/infrastructure/security"
	"github.com/namankalla/nishi/internal/infrastructure/storage"
	"github.com/namankalla/nishi/internal/middleware"
	grpc_server "github.com/namankalla/nishi/internal/transport/grpc"
	handlers "github.com/namankalla/nishi/internal/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	if !cfg.Log.Dev {
		gin.SetMode(gin.ReleaseMode)
	}

	loc, _ := cfg.Location()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	backend, err := storage.Open(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("failed to open storage", zap.Error(err))
	}
	defer backend.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	garden := usecase.NewGardenUseCase(backend.Plants, backend.Points, cfg.Policy,
		usecase.WithClock(func() time.Time { return time.Now().In(loc) }),
		usecase.WithLogger(zl.Named("garden")),
		usecase.WithMetrics(metrics.NewRecorder(reg)),
		usecase.WithIdempotencyGuard(backend.Guard),
	)

	if cfg.AccessSecret == "" {
		zl.Fatal("ACCESS_SECRET is required")
	}
	rc := handlers.RouterConfig{
		AllowedOrigins: cfg.Origins(),
		Tokens:         security.NewTokenManager(cfg.AccessSecret),
		ServiceKey:     cfg.InternalAPIKey,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Log:            zl.Named("http"),
	}
	if rc.ServiceKey == "" {
		zl.Warn("INTERNAL_API_KEY not set, points cannot be credited")
	}
	if backend.Redis != nil {
		rc.Limiter = middleware.NewRateLimiter(backend.Redis, zl.Named("ratelimit"))
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPPort,
		Handler:           handlers.NewRouter(handlers.NewPlantHandler(garden), rc),
		ReadHeaderTimeout: 5 * time.Second,
	}

	probes := make(map[string]grpc_server.Probe, len(backend.Probes))
	for name, p := range backend.Probes {
		probes[name] = p
	}
	grpcServer, health := grpc_server.NewServer(probes, zl.Named("health"))
	lis, err := net.Listen("tcp", cfg.GRPCPort)
	if err != nil {
		zl.Fatal("failed to listen", zap.String("addr", cfg.GRPCPort), zap.Error(err))
	}

	go health.Run(ctx, 10*time.Second)
	go func() {
		zl.Info("grpc health server running", zap.String("addr", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			zl.Error("grpc server stopped", zap.Error(err))
			stop()
		}
	}()
	go func() {
		zl.Info("garden service running",
			zap.String("addr", cfg.HTTPPort),
			zap.String("storage", cfg.StorageDriver),
			zap.String("timezone", loc.String()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("http server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Error("http shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
}
