package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tinoosan/pointledger/internal/config"
	eventskafka "github.com/tinoosan/pointledger/internal/events/kafka"
	"github.com/tinoosan/pointledger/internal/httpapi"
	"github.com/tinoosan/pointledger/internal/service/ledger"
	"github.com/tinoosan/pointledger/internal/storage/memory"
	pgstore "github.com/tinoosan/pointledger/internal/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := buildLogger(cfg)
	slog.SetDefault(logger)

	var (
		accounts ledger.AccountStore
		history  ledger.HistoryLog
		ready    httpapi.ReadyChecker
		closeFns []func()
	)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		closeFns = append(closeFns, pg.Close)
		accounts, history, ready = pg, pg, pg
		logger.Info("storage backend: postgres")
	} else {
		store := memory.New(memory.WithMaxLatency(cfg.StoreMaxLatency))
		accounts, history, ready = store, store, store
		logger.Info("storage backend: memory", "max_latency", cfg.StoreMaxLatency.String())
	}

	opts := []ledger.Option{
		ledger.WithLogger(logger),
		ledger.WithAppendRetries(cfg.AppendRetries),
	}
	if cfg.StrictReads {
		opts = append(opts, ledger.WithStrictReads())
	}
	if cfg.KafkaEnabled() {
		pub := eventskafka.NewPublisher(cfg.KafkaBrokers(), cfg.KafkaTopic)
		closeFns = append(closeFns, func() { _ = pub.Close() })
		opts = append(opts, ledger.WithPublisher(pub))
		logger.Info("event publisher: kafka", "topic", cfg.KafkaTopic)
	}

	svc := ledger.New(accounts, history, opts...)

	srv := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           httpapi.New(svc, ready, logger).Handler(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("point service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
	for _, fn := range closeFns {
		fn()
	}
}

// parseLogLevel maps config values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLogger(cfg *config.Config) *slog.Logger {
	level := parseLogLevel(cfg.LogLevel)
	if strings.ToLower(cfg.LogFormat) == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	// default to JSON
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
