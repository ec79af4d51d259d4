package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/efreitasn/cryptosim/internal/broadcast"
	"github.com/efreitasn/cryptosim/internal/config"
	"github.com/efreitasn/cryptosim/internal/engine"
	"github.com/efreitasn/cryptosim/internal/feed"
	"github.com/efreitasn/cryptosim/internal/handler"
	"github.com/efreitasn/cryptosim/internal/ledger"
	"github.com/efreitasn/cryptosim/internal/service"
	"github.com/efreitasn/cryptosim/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server and the price feed",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage.
	st, err := openStore(cfg)
	if err != nil {
		logger.Error("failed to open store", slog.String("driver", cfg.StoreDriver), slog.String("error", err.Error()))
		return err
	}
	defer st.Close()

	l, err := ledger.Open(ctx, st, cfg.Balance(), logger)
	if err != nil {
		logger.Error("failed to open ledger", slog.String("error", err.Error()))
		return err
	}

	// Prices and broadcast.
	prices := engine.NewPriceCache()
	hub := broadcast.NewHub(cfg.BroadcastBuffer, logger)

	var kafkaSink *broadcast.KafkaSink
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink = broadcast.NewKafkaSink(broadcast.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), cfg.KafkaTopic)
		hub.Register(kafkaSink)
		logger.Info("kafka sink registered", slog.String("topic", cfg.KafkaTopic))
	}
	defer func() {
		// Stop delivery before closing the writer it delivers to.
		hub.Close()
		if kafkaSink != nil {
			if err := kafkaSink.Close(); err != nil {
				logger.Error("kafka sink close error", slog.String("error", err.Error()))
			}
		}
	}()

	// Services.
	webhookSvc := service.NewWebhookService(store.NewWebhookStore(), cfg.WebhookTimeout, logger)
	trader := engine.NewTrader(prices, l, webhookSvc, logger)
	tradingSvc := service.NewTradingService(prices, trader, l, webhookSvc)

	// Background workers.
	engine.NewEquitySampler(cfg.EquityInterval, prices, l, logger).Start(ctx)

	if cfg.FeedEnabled {
		normalizer := feed.NewNormalizer(prices, hub, logger)
		client := feed.NewClient(cfg.FeedURL, cfg.FeedSymbols, normalizer, cfg.ReconnectPolicy(), logger)
		go func() {
			if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("price feed stopped; prices are no longer updated", slog.String("error", err.Error()))
			}
		}()
	}

	// Router.
	router := handler.NewRouter(tradingSvc, webhookSvc, hub, logger)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", slog.String("error", err.Error()))
		return err
	}

	// Graceful shutdown: stop HTTP server, then cancel the feed and sampler.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()

	logger.Info("server stopped")
	return nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		return store.NewSQLite(cfg.SQLitePath)
	case config.DriverPostgres:
		return store.NewPostgres(store.PostgresOption{
			ConnString: cfg.DatabaseURL,
			Host:       cfg.PostgresHost,
			Port:       cfg.PostgresPort,
			User:       cfg.PostgresUser,
			Password:   cfg.PostgresPassword,
			Database:   cfg.PostgresDB,
		})
	default:
		return store.NewMemoryStore(), nil
	}
}
