package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"ledger/internal/amqp"
	"ledger/internal/backend"
	"ledger/internal/cli"
	"ledger/internal/docsync"
	apphttp "ledger/internal/http"
	"ledger/internal/ledger"
	"ledger/internal/log"
	"ledger/internal/notify"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Slog()).
		CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to create document store", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	recorder := notify.NewRecorder(0)
	observer := notify.Multi{recorder, notify.Logger{L: logger.WithComponent(log.ComponentLedger).Slog()}}

	syncOpts := []docsync.Option{
		docsync.WithMetrics(docsync.NewMetrics(reg)),
		docsync.WithLogger(logger.WithComponent(log.ComponentSync)),
	}

	// Publishing is optional; without a broker the Sheets mirror relies on its periodic export.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, document.saved events disabled", log.FieldError, err)
		} else {
			syncOpts = append(syncOpts, docsync.WithPublisher(amqpClient))
			logger.Info("AMQP publisher ready", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	engine := docsync.New(result.Store, observer, syncOpts...)
	store := ledger.New(engine,
		ledger.WithObserver(observer),
		ledger.WithLogger(logger.WithComponent(log.ComponentLedger)),
	)

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), cfg.RemoteTimeout)
	if err := store.Load(loadCtx); err != nil {
		logger.Warn("Initial load failed, starting with an empty ledger", log.FieldError, err)
	}
	cancelLoad()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:   store,
		Recorder: recorder,
		Loading:  engine.Loading,
		Registry: reg,
		Logger:   logger.WithComponent(log.ComponentHTTP),
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.RemoteTimeout + 10*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if err := result.Close(); err != nil {
			logger.Error("Document store cleanup failed", log.FieldError, err)
		}
	})

	go func() {
		logger.Info("Starting ledger server", "port", cfg.Port, log.FieldBackend, cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
