package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fleetguard/fleetguard-predict/internal/analyzer"
	"github.com/fleetguard/fleetguard-predict/internal/api"
	"github.com/fleetguard/fleetguard-predict/internal/cache"
	"github.com/fleetguard/fleetguard-predict/internal/config"
	"github.com/fleetguard/fleetguard-predict/internal/engine"
	"github.com/fleetguard/fleetguard-predict/internal/metrics"
	"github.com/fleetguard/fleetguard-predict/internal/notify"
	"github.com/fleetguard/fleetguard-predict/internal/repo"
	"github.com/fleetguard/fleetguard-predict/internal/storage/sqlite"
	"github.com/fleetguard/fleetguard-predict/internal/utils"
)

func main() {
	var (
		configPath string
		runOnce    bool
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&runOnce, "once", false, "Run a single monitoring cycle and exit")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting fleetguard-predict",
		slog.String("grpc_address", cfg.Server.GRPCAddress),
		slog.String("http_address", cfg.Server.HTTPAddress),
		slog.Duration("interval", cfg.Monitor.Interval),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
		}
	}
	defer cacheProvider.Close()

	source, err := repo.NewPrometheusSource(cfg.Clients.Metrics.URL, cfg.Clients.Metrics.Timeout, logger)
	if err != nil {
		logger.Error("failed to create metrics source", slog.Any("error", err))
		os.Exit(1)
	}

	var fleet engine.FleetEnumerator
	if cfg.Clients.Inventory.FleetFile != "" {
		staticFleet, err := repo.NewStaticFleet(cfg.Clients.Inventory.FleetFile)
		if err != nil {
			logger.Error("failed to load fleet file", slog.Any("error", err))
			os.Exit(1)
		}
		fleet = staticFleet
		logger.Info("using static fleet file", slog.String("path", cfg.Clients.Inventory.FleetFile))
	} else {
		fleet = repo.NewInventoryClient(
			cfg.Clients.Inventory.BaseURL,
			cfg.Clients.Inventory.InstancesPath,
			cfg.Clients.Inventory.ConfigPath,
			cfg.Clients.Inventory.Timeout,
			logger,
			cacheProvider,
			cfg.Cache.InstanceConfigTTL,
		)
	}

	ruleEngine, err := engine.NewRuleEngine(cfg.Rules.Path, logger)
	if err != nil {
		logger.Error("failed to load rule pack", slog.Any("error", err))
		os.Exit(1)
	}

	store, err := sqlite.NewStore(cfg.Storage.Path, cfg.Storage.Retention)
	if err != nil {
		logger.Error("failed to open prediction store", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	var notifier engine.Notifier
	if cfg.Notify.Enabled && cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.Timeout, logger)
	}

	monitor := engine.NewMonitor(
		logger,
		fleet,
		analyzer.New(logger, source, cfg.Thresholds),
		engine.NewScorer(cfg.Thresholds),
		store,
		notifier,
		ruleEngine,
		cfg.Monitor.MaxConcurrency,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if runOnce {
		if _, err := monitor.RunCycle(ctx); err != nil {
			logger.Error("monitoring cycle failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	grpcServer, err := api.NewServer(cfg.Server)
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		os.Exit(1)
	}
	go func() {
		logger.Info("gRPC server listening", slog.String("address", grpcServer.Address()))
		if serveErr := grpcServer.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	httpServer := api.NewHTTPServer(cfg.Server.HTTPAddress, store, promhttp.Handler(), logger)
	go func() {
		logger.Info("http server listening", slog.String("address", cfg.Server.HTTPAddress))
		if serveErr := httpServer.Start(); serveErr != nil {
			logger.Error("http server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	go runLoop(ctx, logger, monitor, store, cfg.Monitor.Interval)

	<-ctx.Done()
	logger.Info("shutdown signal received")
	grpcServer.SetNotServing()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	grpcServer.Shutdown(shutdownCtx)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", slog.Any("error", err))
	}
}

// runLoop runs an immediate cycle, then repeats on the configured interval
// until the context is cancelled. Expired events are pruned after each pass.
func runLoop(ctx context.Context, logger *slog.Logger, monitor *engine.Monitor, store *sqlite.Store, interval time.Duration) {
	cycle := func() {
		if _, err := monitor.RunCycle(ctx); err != nil {
			logger.Error("monitoring cycle failed", slog.Any("error", err))
		}
		pruned, err := store.PruneExpired(ctx)
		if err != nil {
			logger.Warn("prune expired predictions failed", slog.Any("error", err))
		} else if pruned > 0 {
			logger.Info("pruned expired predictions", slog.Int64("count", pruned))
		}
	}

	cycle()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cycle()
		}
	}
}
