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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"factoryScope/internal/config"
	"factoryScope/internal/factory"
	"factoryScope/internal/projection"
	"factoryScope/internal/server"
	"factoryScope/internal/storage"
	"factoryScope/internal/storage/memory"
	"factoryScope/internal/storage/migrations"
	"factoryScope/internal/storage/postgres"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.FactoryAddress == "" {
		return fmt.Errorf("factory address is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, cleanup, err := openStores(ctx, cfg.PGDSN, cfg.UseMemory, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	var audit storage.AuditSink
	if cfg.AuditLog != "" {
		audit = storage.NewJsonlAudit(cfg.AuditLog)
	}

	pipeline, err := buildPipeline(cfg.FactoryAddress, stores, audit, cfg.MaxRetries, cfg.RetryBackoff, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(pipeline, stores, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	logger.Info("serving",
		zap.String("addr", cfg.Addr),
		zap.String("factory", cfg.FactoryAddress),
		zap.Bool("memory", cfg.UseMemory),
		zap.String("audit_log", cfg.AuditLog),
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func openStores(ctx context.Context, dsn string, useMemory bool, logger *zap.Logger) (storage.Stores, func(), error) {
	if useMemory {
		logger.Warn("using in-memory stores, documents are lost on exit")
		return memory.NewStores(), func() {}, nil
	}

	if dsn == "" {
		return storage.Stores{}, nil, fmt.Errorf("pg dsn is required (or pass --memory)")
	}

	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		return storage.Stores{}, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return storage.Stores{}, nil, fmt.Errorf("run migrations: %w", err)
	}

	return postgres.NewStores(pool), pool.Close, nil
}

func buildPipeline(factoryAddress string, stores storage.Stores, audit storage.AuditSink, maxRetries int, retryBackoff time.Duration, logger *zap.Logger) (*projection.Pipeline, error) {
	decoder, err := factory.NewEventDecoder()
	if err != nil {
		return nil, err
	}

	dispatcher, err := projection.NewDispatcher(factoryAddress, decoder, logger)
	if err != nil {
		return nil, err
	}

	projector := projection.NewProjector(stores, logger)
	projector.SetRetryPolicy(maxRetries, retryBackoff)

	return projection.NewPipeline(dispatcher, projector, stores.State, audit, logger), nil
}
