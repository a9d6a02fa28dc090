package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/deptstock/stock-ledger/internal/adapter/handler"
	"github.com/deptstock/stock-ledger/internal/adapter/storage"
	"github.com/deptstock/stock-ledger/internal/config"
	"github.com/deptstock/stock-ledger/internal/core/service"
	"github.com/deptstock/stock-ledger/internal/logger"
	"github.com/deptstock/stock-ledger/internal/metrics"
	"github.com/deptstock/stock-ledger/internal/port"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("invalid configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		os.Stderr.WriteString("failed to build logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := storage.Open(ctx, cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storage.Migrate(ctx, db, cfg.DBDriver); err != nil {
		return err
	}
	log.Info("connected to database", zap.String("driver", cfg.DBDriver))

	locker, idempotency, closeCache, err := newCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCache()

	// Initialize metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, cfg.DBDriver),
	)
	m := metrics.New(registry)

	// Initialize services
	repo := storage.NewSQLAdapter(db)
	recorder := service.NewAuditRecorder(repo)
	ledger := service.NewLedgerService(repo, recorder, locker, idempotency, service.LedgerOptions{
		CommitAttempts: cfg.CommitAttempts,
		LockWait:       cfg.LockWait,
		Metrics:        m,
	})
	directory := service.NewDirectoryService(repo)

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	handler.NewGRPCHandler(ledger, log).Register(grpcServer)
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	serveErr := make(chan error, 2)
	go func() {
		log.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			serveErr <- err
		}
	}()

	// Initialize HTTP server
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler.NewHTTPHandler(ledger, directory, log).Routes(registry),
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case runErr = <-serveErr:
		log.Error("server failed, shutting down", zap.Error(runErr))
	}
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	log.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	log.Info("gRPC server stopped")

	return runErr
}

// newCache picks the Redis lock and idempotency store when REDIS_ADDR is set
// and in-process equivalents otherwise.
func newCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (port.ItemLocker, port.IdempotencyStore, func(), error) {
	if cfg.RedisAddr == "" {
		log.Info("REDIS_ADDR not set, using in-process item locks")
		return storage.NewLocalLocker(), storage.NewLocalIdempotency(cfg.IdempotencyTTL), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, nil, err
	}
	log.Info("connected to redis", zap.String("addr", cfg.RedisAddr))

	adapter := storage.NewRedisAdapter(rdb,
		storage.WithLockTTL(cfg.LockTTL),
		storage.WithIdempotencyTTL(cfg.IdempotencyTTL),
	)
	return adapter, adapter, func() { rdb.Close() }, nil
}
