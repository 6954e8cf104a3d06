package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"

	"github.com/iago/factory-ops-back/internal/audit"
	"github.com/iago/factory-ops-back/internal/blobstore"
	"github.com/iago/factory-ops-back/internal/config"
	httpserver "github.com/iago/factory-ops-back/internal/http"
	"github.com/iago/factory-ops-back/internal/http/handlers"
	"github.com/iago/factory-ops-back/internal/http/middleware"
	"github.com/iago/factory-ops-back/internal/lifecycle"
	"github.com/iago/factory-ops-back/internal/logging"
	"github.com/iago/factory-ops-back/internal/repository"
	"github.com/iago/factory-ops-back/internal/service"
	"github.com/iago/factory-ops-back/internal/upload"
)

const shutdownTimeout = 10 * time.Second

func main() {
	dotenvErr := config.LoadDotEnv(".env", ".env.local")
	cfg := config.Load()

	logger, err := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logger.WithError(err).Warn("logger configuration")
	}
	if dotenvErr != nil {
		logger.WithError(dotenvErr).Warn("failed loading .env files")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, storeCloser := setupRepository(ctx, cfg, logger)
	defer storeCloser()

	trail, auditCloser := setupAuditLog(ctx, cfg, logger)
	defer auditCloser()

	blobs, err := setupBlobStore(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("blob store initialization failed")
	}

	validator := upload.NewValidator(cfg.AllowedExtensions, cfg.MaxFileSizeBytes())
	maintenance := service.NewMaintenanceService(service.MaintenanceDependencies{
		Store:     store,
		Engine:    lifecycle.NewEngine(),
		Validator: validator,
		Blobs:     blobs,
		Audit:     trail,
		Logger:    logger,
	})
	documents := service.NewDocumentService(service.DocumentDependencies{
		Validator: validator,
		Blobs:     blobs,
		Audit:     trail,
		Logger:    logger,
	})

	api := handlers.NewAPI(handlers.APIDependencies{
		Maintenance:    maintenance,
		Documents:      documents,
		Audit:          service.NewAuditService(trail),
		Logger:         logger,
		APIPrefix:      cfg.APIPrefix,
		MaxUploadBytes: validator.MaxBytes(),
	})

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer limiter.Stop()

	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		APIPrefix:      cfg.APIPrefix,
		CORSOrigins:    cfg.AllowedOrigins,
		RateLimiter:    limiter,
		MetricsEnabled: cfg.MetricsEnabled,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.WithFields(log.Fields{
			"port":       cfg.Port,
			"api_prefix": cfg.APIPrefix,
			"max_upload": validator.MaxBytes(),
		}).Info("api listening")
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}

func setupRepository(
	ctx context.Context,
	cfg config.Config,
	logger log.Interface,
) (repository.ReportStore, func()) {
	if cfg.DatabaseURL == "" {
		logger.Info("DATABASE_URL not configured, using in-memory report store")
		return repository.NewMemoryReportStore(), func() {}
	}

	if cfg.DatabaseAutoMigrate {
		version, err := repository.Migrate(cfg.DatabaseURL)
		if err != nil {
			logger.WithError(err).Warn("failed to migrate database, fallback to memory")
			return repository.NewMemoryReportStore(), func() {}
		}
		logger.WithField("version", version).Info("database migrations applied")
	}

	pgStore, err := repository.NewPostgresReportStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Warn("failed to initialize postgres report store, fallback to memory")
		return repository.NewMemoryReportStore(), func() {}
	}
	logger.Info("postgres report store initialized")
	return pgStore, pgStore.Close
}

func setupAuditLog(
	ctx context.Context,
	cfg config.Config,
	logger log.Interface,
) (audit.Log, func()) {
	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR not configured, using in-memory audit log")
		return audit.NewMemoryLog(cfg.AuditMaxEntries), func() {}
	}

	streams, err := audit.NewRedisStreamLog(ctx, audit.StreamsConfig{
		Addr:       cfg.RedisAddr,
		Password:   cfg.RedisPassword,
		DB:         cfg.RedisDB,
		Stream:     cfg.AuditStream,
		MaxEntries: int64(cfg.AuditMaxEntries),
	})
	if err != nil {
		logger.WithError(err).Warn("failed to initialize redis audit stream, fallback to memory")
		return audit.NewMemoryLog(cfg.AuditMaxEntries), func() {}
	}
	logger.WithField("stream", cfg.AuditStream).Info("redis audit stream initialized")
	return streams, func() {
		_ = streams.Close()
	}
}

// setupBlobStore never falls back once S3 is configured.
func setupBlobStore(ctx context.Context, cfg config.Config, logger log.Interface) (blobstore.Store, error) {
	if cfg.S3Bucket == "" {
		local, err := blobstore.NewLocalStore(cfg.UploadDir)
		if err != nil {
			return nil, err
		}
		logger.WithField("dir", local.Dir()).Info("local blob store initialized")
		return local, nil
	}

	client, err := blobstore.NewS3Client(ctx, blobstore.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		Prefix:          cfg.S3Prefix,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		ForcePathStyle:  cfg.S3ForcePathStyle,
	})
	if err != nil {
		return nil, err
	}
	store, err := blobstore.NewS3Store(client, cfg.S3Bucket, cfg.S3Prefix)
	if err != nil {
		return nil, err
	}
	if err := store.Verify(ctx); err != nil {
		return nil, err
	}
	logger.WithField("bucket", cfg.S3Bucket).Info("s3 blob store initialized")
	return store, nil
}
