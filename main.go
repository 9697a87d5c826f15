package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"opalpixel/invoicing/internal/api"
	"opalpixel/invoicing/internal/cache"
	"opalpixel/invoicing/internal/config"
	"opalpixel/invoicing/internal/db"
	"opalpixel/invoicing/internal/email"
	"opalpixel/invoicing/internal/logger"
	"opalpixel/invoicing/internal/repository"
	"opalpixel/invoicing/internal/services"
	"opalpixel/invoicing/internal/storage"
	"opalpixel/invoicing/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'all' (default)")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()
	gin.SetMode(gin.ReleaseMode)

	switch cfg.RunMode {
	case "api", "bg", "all":
	default:
		zlog.Fatal("invalid run mode", zap.String("mode", cfg.RunMode))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Database
	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName, zlog)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			zlog.Error("error disconnecting from MongoDB", zap.Error(err))
		}
	}()
	if err := db.EnsureIndexes(ctx, mongoDb); err != nil {
		zlog.Fatal("failed to ensure indexes", zap.Error(err))
	}

	// Initialize Cache (Redis)
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, zlog)
	if err != nil {
		zlog.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			zlog.Error("error disconnecting from Redis", zap.Error(err))
		}
	}()

	// Receipt archive, disabled without a bucket
	s3Storage, err := storage.NewS3Storage(ctx, cfg)
	if err != nil {
		zlog.Fatal("failed to initialize S3 storage", zap.Error(err))
	}

	// Repositories and services
	invoiceRepo := repository.NewInvoiceRepository(mongoDb, zlog)
	receiptRepo := repository.NewReceiptRepository(mongoDb, zlog)
	counterRepo := repository.NewCounterRepository(mongoDb)
	userRepo := repository.NewUserRepository(mongoDb, zlog)

	paging := services.Paging{Default: cfg.PageSizeDefault, Max: cfg.PageSizeMax}

	taskClient := tasks.NewClient(redisClient)
	defer func() { _ = taskClient.Close() }()
	publisher := tasks.NewPublisher(taskClient, s3Storage != nil, zlog)

	numberingService := services.NewNumberingService(invoiceRepo, counterRepo, cfg.InvoiceNumberPrefix)
	receiptService := services.NewReceiptService(receiptRepo, invoiceRepo, cfg.ReceiptNumberPrefix, paging, zlog)
	invoiceService := services.NewInvoiceService(services.InvoiceServiceDeps{
		Invoices:   invoiceRepo,
		Receipts:   receiptRepo,
		Numbering:  numberingService,
		Issuer:     receiptService,
		Publisher:  publisher,
		Paging:     paging,
		MaxRetries: cfg.InvoiceNumberMaxRetries,
		Logger:     zlog,
	})
	userService := services.NewUserService(userRepo, invoiceRepo, cfg.InvoiceNumberPrefix, zlog)

	if cfg.BootstrapAdminName != "" {
		admin, err := userService.EnsureAdmin(ctx, cfg.BootstrapAdminName, cfg.BootstrapAdminPassword)
		if err != nil {
			zlog.Fatal("failed to bootstrap admin", zap.Error(err))
		}
		zlog.Info("admin account available", zap.String("worker_id", admin.WorkerID))
	}

	var wg sync.WaitGroup

	// Channel to signal shutdown from Service API
	shutdownChan := make(chan struct{}, 1)

	// Start Service API (always runs)
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(redisClient, shutdownChan, zlog),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		zlog.Info("service API listening", zap.String("port", cfg.ServiceApiPort))
		if err := serviceSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("service API ListenAndServe error", zap.Error(err))
		}
	}()

	// --- Mode-specific servers ---
	var mainApiSrv *http.Server
	var backgroundTaskSrv *asynq.Server

	zlog.Info("starting application", zap.String("mode", cfg.RunMode))

	if cfg.RunMode == "api" || cfg.RunMode == "all" {
		router := api.SetupRouter(ctx, cfg, api.Services{
			Users:    userService,
			Invoices: invoiceService,
			Receipts: receiptService,
		}, zlog)
		mainApiSrv = &http.Server{
			Addr:              ":" + cfg.ApiPort,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			zlog.Info("main API listening", zap.String("port", cfg.ApiPort))
			if err := mainApiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zlog.Fatal("main API ListenAndServe error", zap.Error(err))
			}
		}()
	}

	if cfg.RunMode == "bg" || cfg.RunMode == "all" {
		emailSender := email.NewSender(cfg, redisClient, zlog)
		processor := tasks.NewTaskProcessor(cfg, emailSender, s3Storage, zlog)
		backgroundTaskSrv, err = tasks.SetupServer(redisClient, processor, zlog)
		if err != nil {
			zlog.Fatal("failed to start background task server", zap.Error(err))
		}
	}

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		zlog.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case <-shutdownChan:
		zlog.Info("shutdown requested via service API")
	}
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		zlog.Error("service API shutdown error", zap.Error(err))
	}
	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			zlog.Error("main API shutdown error", zap.Error(err))
		}
	}
	if backgroundTaskSrv != nil {
		backgroundTaskSrv.Shutdown()
	}

	wg.Wait()
	zlog.Info("server gracefully stopped")
}
