package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalstack/signal-engine/internal/api"
	"github.com/signalstack/signal-engine/internal/cache"
	"github.com/signalstack/signal-engine/internal/config"
	"github.com/signalstack/signal-engine/internal/engine"
	"github.com/signalstack/signal-engine/internal/metrics"
	"github.com/signalstack/signal-engine/internal/patterns"
	"github.com/signalstack/signal-engine/internal/repo"
	"github.com/signalstack/signal-engine/internal/rules"
	"github.com/signalstack/signal-engine/internal/services"
	"github.com/signalstack/signal-engine/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting signal-engine", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	var valkeyCloser cache.Provider
	if cfg.Cache.Enabled && cfg.Cache.Addr == "" {
		// Cache requested without a Valkey address: fall back to in-process.
		cacheProvider = cache.NewMemoryProvider()
	}
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
			valkeyCloser = provider
		}
	}
	if valkeyCloser != nil {
		defer valkeyCloser.Close()
	}

	db, err := repo.OpenDB(cfg.Storage.DBPath)
	if err != nil {
		logger.Error("failed to open database", slog.String("path", cfg.Storage.DBPath), slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	outboxStore := repo.NewOutboxStore(db)
	historyStore := repo.NewHistoryStore(db)

	tracker := repo.NewTrackerClient(
		cfg.Clients.Tracker.BaseURL,
		cfg.Clients.Tracker.SearchPath,
		cfg.Clients.Tracker.IssuePath,
		cfg.Clients.Tracker.EventsPath,
		cfg.Clients.Tracker.StatusPath,
		cfg.Clients.Tracker.AuthToken,
		cfg.Clients.Tracker.Timeout,
		cacheProvider,
		cfg.Cache.SearchTTL,
	)

	pack, err := rules.LoadPack(cfg.Rules.PackPath)
	if err != nil {
		logger.Error("failed to load rule pack", slog.String("path", cfg.Rules.PackPath), slog.Any("error", err))
		os.Exit(1)
	}
	topology, err := rules.LoadTopology(cfg.Rules.TopologyPath)
	if err != nil {
		logger.Error("failed to load topology", slog.String("path", cfg.Rules.TopologyPath), slog.Any("error", err))
		os.Exit(1)
	}

	diagnoser := engine.NewDiagnoser(logger, pack.Patterns, pack.KnownIssues, topology)
	miner := patterns.NewMiner(historyStore, logger)

	analysisService := services.NewAnalysisService(logger, services.Config{
		WatchedServices:      cfg.Analysis.WatchedServices,
		MaxConcurrentQueries: cfg.Analysis.MaxConcurrentQueries,
		QueueLookback:        cfg.Analysis.QueueLookback,
		QueueDepthThreshold:  cfg.Analysis.QueueDepthThreshold,
		DeadLetterThreshold:  cfg.Analysis.DeadLetterThreshold,
		SpikeMultiplier:      cfg.Analysis.SpikeMultiplier,
		RecentWindow:         cfg.Analysis.RecentWindow,
		BaselineWindow:       cfg.Analysis.BaselineWindow,
		PatternLookback:      cfg.Analysis.PatternLookback,
	}, tracker, outboxStore, historyStore, miner, diagnoser)

	handler := api.NewHandler(analysisService, logger)
	server, err := api.NewServer(cfg.Server, api.SetupRoutes(handler))
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("HTTP server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("signal-engine stopped")
}
