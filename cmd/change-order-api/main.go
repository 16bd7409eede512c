// cmd/change-order-api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"change-order-generator/internal/api"
	"change-order-generator/internal/common/aws"
	"change-order-generator/internal/common/config"
	"change-order-generator/internal/common/database"
	httpclient "change-order-generator/internal/common/http"
	"change-order-generator/internal/common/logger"
	"change-order-generator/internal/common/observability"
	"change-order-generator/internal/pipeline"

	ec "change-order-generator/internal/workers/change-order/extract-content"
	rs "change-order-generator/internal/workers/change-order/render-spreadsheet"
	sa "change-order-generator/internal/workers/change-order/store-artifact"
	sb "change-order-generator/internal/workers/change-order/synthesize-breakdown"
	vb "change-order-generator/internal/workers/change-order/validate-breakdown"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	bootLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewWithOptions(logger.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  cfg.Logging.Output,
		Service: cfg.App.Name,
	})
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting change order API...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Object store ---
	var store *aws.S3Store
	err = retryWithBackoff(func() error {
		var err error
		store, err = aws.NewS3Store(ctx, cfg.Storage)
		return err
	}, 5, 2*time.Second, zapLog, "Object store client initialization")
	if err != nil {
		zapLog.Fatal("object store client failed after retries", zap.Error(err))
	}
	healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := store.Health(healthCtx); err != nil {
		// Readiness reports this; the service still starts.
		zapLog.Warn("object store not reachable at startup", zap.Error(err))
	} else {
		zapLog.Info("Object store reachable", zap.String("bucket", store.Bucket()))
	}
	cancel()

	// --- Redis (rate limiting only) ---
	var limiter api.Limiter
	if cfg.RateLimit.Enabled {
		var rdb *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		limiter = rdb
		zapLog.Info("Redis connected successfully")
	}

	// --- Pipeline stages ---
	synthCfg := sb.ConfigFrom(cfg)
	if synthCfg.JSONMode && !sb.SupportsJSONMode(synthCfg.Model) {
		zapLog.Warn("model does not accept JSON mode, relying on schema check", zap.String("model", synthCfg.Model))
	}
	completer, err := sb.NewOpenAICompleter(synthCfg,
		httpclient.NewClient(synthCfg.Timeout).WithUserAgent(cfg.App.Name+"/"+cfg.App.Version))
	if err != nil {
		zapLog.Fatal("failed to create reasoning client", zap.Error(err))
	}

	p := pipeline.New(pipeline.Stages{
		Extractor:   ec.NewHandler(ec.ConfigFrom(cfg), log),
		Synthesizer: sb.NewHandler(synthCfg, completer, log),
		Validator:   vb.NewHandler(vb.ConfigFrom(cfg), log),
		Renderer:    rs.NewHandler(rs.ConfigFrom(cfg), log),
		Store:       sa.NewHandler(sa.ConfigFrom(cfg), store, log),
	}, log, pipeline.WithObservability(obs))
	zapLog.Info("Pipeline stages registered successfully")

	// --- HTTP server ---
	server := api.NewServer(p, limiter, api.Options{
		Service:             cfg.App.Name,
		Version:             cfg.App.Version,
		MaxUploadBytes:      cfg.Server.MaxUploadBytes,
		ReasoningConfigured: cfg.Reasoning.APIKey != "",
		StorageConfigured:   cfg.Storage.Bucket != "",
		RateLimit: api.RateLimitOptions{
			Enabled:  cfg.RateLimit.Enabled,
			Requests: cfg.RateLimit.Requests,
			Window:   config.GetDuration(cfg.RateLimit.Window),
		},
	}, log)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.Router(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	zapLog.Info("Change order API stopped gracefully")
}
