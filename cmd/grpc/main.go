package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fekuna/funeral-inventory-service/config"
	"github.com/fekuna/funeral-inventory-service/internal/casework"
	"github.com/fekuna/funeral-inventory-service/internal/inventory"
	"github.com/fekuna/funeral-inventory-service/internal/metrics"
	"github.com/fekuna/funeral-inventory-service/internal/storage/memory"
	"github.com/fekuna/funeral-inventory-service/internal/transfer"
	"github.com/fekuna/funeral-inventory-service/pkg/broker"
	"github.com/fekuna/funeral-inventory-service/pkg/cache"
	"github.com/fekuna/funeral-inventory-service/pkg/logger"
	"github.com/fekuna/funeral-inventory-service/pkg/postgres"

	invAlertPkg "github.com/fekuna/funeral-inventory-service/internal/inventory/alert"
	invH "github.com/fekuna/funeral-inventory-service/internal/inventory/handler"
	invJobPkg "github.com/fekuna/funeral-inventory-service/internal/inventory/job"
	invListenerPkg "github.com/fekuna/funeral-inventory-service/internal/inventory/listener"
	invLockPkg "github.com/fekuna/funeral-inventory-service/internal/inventory/lock"
	invRepoPkg "github.com/fekuna/funeral-inventory-service/internal/inventory/repository"
	invUCPkg "github.com/fekuna/funeral-inventory-service/internal/inventory/usecase"

	trfH "github.com/fekuna/funeral-inventory-service/internal/transfer/handler"
	trfRepoPkg "github.com/fekuna/funeral-inventory-service/internal/transfer/repository"
	trfUCPkg "github.com/fekuna/funeral-inventory-service/internal/transfer/usecase"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             "info",
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}

	if cfg.Server.AppEnv == "development" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = cfg.Logger.Encoding
		logConfig.Level = cfg.Logger.Level
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	// 3. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(registry)

	// 4. Storage
	var (
		invRepo inventory.Repository
		trfRepo transfer.Repository
		txMgr   inventory.TxManager
	)
	switch cfg.Storage.Driver {
	case "memory":
		store := memory.NewStore()
		invRepo, trfRepo, txMgr = store.Inventory(), store.Transfers(), store
		appLogger.Warn("Using in-memory storage, data is lost on restart")
	default:
		db, err := postgres.NewPostgres(&postgres.Config{
			Host:            cfg.Postgres.Host,
			Port:            cfg.Postgres.Port,
			User:            cfg.Postgres.User,
			Password:        cfg.Postgres.Password,
			DBName:          cfg.Postgres.DBName,
			SSLMode:         cfg.Postgres.SSLMode,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
		})
		if err != nil {
			appLogger.Fatal("Could not connect to database", zap.Error(err))
		}
		defer db.Close()
		appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

		invRepo = invRepoPkg.NewPGRepository(db)
		trfRepo = trfRepoPkg.NewPGRepository(db)
		txMgr = postgres.NewTxManager(db)
	}

	// 5. Locking for ghost-stock provisioning
	var locker inventory.Locker = invLockPkg.NewLocalLocker()
	if cfg.Redis.Addr != "" {
		redisClient, err := cache.NewRedisClient(&cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			appLogger.Fatal("Could not connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		locker = invLockPkg.NewRedisLocker(redisClient, appLogger)
		appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	// 6. Alerts
	var alerter inventory.Alerter = invAlertPkg.NewLogAlerter(appLogger)
	kafkaEnabled := len(cfg.Kafka.Brokers) > 0
	if kafkaEnabled {
		producer := broker.NewProducer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.AlertTopic,
		})
		defer producer.Close()
		alerter = invAlertPkg.NewKafkaAlerter(producer, appLogger)
		appLogger.Info("Publishing stock alerts to Kafka", zap.String("topic", cfg.Kafka.AlertTopic))
	}

	// 7. Initialize UseCases
	opts := invUCPkg.Options{
		DefaultCategory:          cfg.Inventory.DefaultCategory,
		DefaultLowStockThreshold: cfg.Inventory.DefaultLowStockThreshold,
		MaxOversubscription:      cfg.Inventory.MaxOversubscription,
		LockTTL:                  time.Duration(cfg.Inventory.LockTTLSeconds) * time.Second,
	}
	invUC := invUCPkg.NewInventoryUseCase(invRepo, txMgr, alerter, recorder, appLogger.Named("engine"), opts)
	resolver := invUCPkg.NewStockResolver(invRepo, txMgr, locker, alerter, recorder, appLogger.Named("resolver"), opts)
	trfUC := trfUCPkg.NewTransferUseCase(trfRepo, invUC, resolver, txMgr, recorder, appLogger.Named("transfer"))
	cases := casework.NewService(invUC, resolver, appLogger.Named("casework"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 8. Case event listener
	if kafkaEnabled {
		consumer := broker.NewConsumer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.CaseTopic,
			GroupID: cfg.Kafka.GroupID,
		})
		defer consumer.Close()
		appLogger.Info("Connected to Kafka Consumer", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.CaseTopic))

		caseListener := invListenerPkg.NewCaseListener(consumer, cases, appLogger.Named("listener"))
		go caseListener.Start(ctx)
	}

	// 9. Scheduled jobs
	loc, err := time.LoadLocation(cfg.Jobs.Timezone)
	if err != nil {
		appLogger.Warn("Unknown job timezone, using local time", zap.String("timezone", cfg.Jobs.Timezone), zap.Error(err))
		loc = time.Local
	}
	scheduler := invJobPkg.NewScheduler(invJobPkg.Config{
		LowStockSpec:  cfg.Jobs.LowStockSpec,
		ReconcileSpec: cfg.Jobs.ReconcileSpec,
		Location:      loc,
	}, invRepo, alerter, recorder, appLogger.Named("jobs"))
	if err := scheduler.Start(); err != nil {
		appLogger.Fatal("Could not schedule inventory jobs", zap.Error(err))
	}

	// 10. Initialize Handlers
	invHandler := invH.NewInventoryHandler(invUC, resolver, appLogger)
	trfHandler := trfH.NewTransferHandler(trfUC, appLogger)

	// 11. Metrics endpoint
	metricsServer := &http.Server{
		Addr:              withColon(cfg.Server.MetricsPort),
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	// 12. Start gRPC Server
	port := withColon(cfg.Server.GRPCPort)
	lis, err := net.Listen("tcp", port)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	grpcServer, healthServer := newGRPCServer(invHandler, trfHandler)

	appLogger.Info("Starting gRPC server", zap.String("port", port), zap.String("storage", cfg.Storage.Driver))

	// Graceful Shutdown
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	healthServer.Shutdown()
	cancel()
	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("metrics server shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	appLogger.Info("Server stopped")
}

func withColon(port string) string {
	if !strings.HasPrefix(port, ":") {
		return ":" + port
	}
	return port
}
