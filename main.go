package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"

	"github.com/Embedded-Nature/invest-pilot/config"
	"github.com/Embedded-Nature/invest-pilot/internal/adapters/alpacaclient"
	"github.com/Embedded-Nature/invest-pilot/internal/adapters/logger"
	"github.com/Embedded-Nature/invest-pilot/internal/adapters/memstore"
	"github.com/Embedded-Nature/invest-pilot/internal/adapters/sqlite"
	"github.com/Embedded-Nature/invest-pilot/internal/app"
	"github.com/Embedded-Nature/invest-pilot/internal/domain"
	"github.com/Embedded-Nature/invest-pilot/internal/ports"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogFormat == "console",
	})
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel})

	// 3. Initialize Rule Store
	var ruleStore ports.RuleStore
	switch cfg.RuleStore {
	case "sqlite":
		store, err := sqlite.New(sqlite.Config{
			DBPath: cfg.DBPath,
			Logger: appLogger,
		})
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize rule store")
			log.Fatalf("FATAL: Failed to initialize rule store: %v", err)
		}
		ruleStore = store
	default:
		ruleStore = memstore.New()
	}
	defer func() {
		if err := ruleStore.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing rule store")
		}
	}()
	appLogger.Info(context.Background(), "Rule store initialized", map[string]interface{}{"backend": cfg.RuleStore})

	// 4. Initialize Brokerage Client (Alpaca Adapter)
	gateway, err := alpacaclient.New(alpacaclient.Config{
		APIKey:         cfg.APIKey,
		SecretKey:      cfg.SecretKey,
		Paper:          cfg.IsPaper,
		BaseURL:        cfg.BaseURL,
		Logger:         appLogger,
		RequestTimeout: cfg.GatewayTimeout,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Alpaca client")
		log.Fatalf("FATAL: Failed to initialize Alpaca client: %v", err)
	}
	appLogger.Info(context.Background(), "Alpaca client initialized", map[string]interface{}{"paper": cfg.IsPaper})

	// 5. Initialize Submission Coordinator
	coordinator, err := app.NewSubmissionCoordinator(gateway, appLogger, cfg.GatewayTimeout)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize submission coordinator")
		log.Fatalf("FATAL: Failed to initialize submission coordinator: %v", err)
	}

	// 6. Initialize Application Service
	tradingService, err := app.NewTradingService(appLogger, gateway, ruleStore, coordinator)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trading service")
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}
	appLogger.Info(context.Background(), "Trading service initialized")

	// Report rules restored from a durable store so operators can tell a
	// fresh start from a resumed one.
	if armed, err := tradingService.ListProfitTakingRules(context.Background(), domain.RuleArmed); err == nil {
		appLogger.Info(context.Background(), "Armed profit rules loaded", map[string]interface{}{"count": len(armed)})
	}

	// 7. Initialize Profit-Taking Monitor
	monitor, err := app.NewProfitMonitor(gateway, ruleStore, coordinator, appLogger, cfg.MonitorInterval, cfg.GatewayTimeout)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize profit monitor")
		log.Fatalf("FATAL: Failed to initialize profit monitor: %v", err)
	}

	// 8. Run until interrupted
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLogger.Info(ctx, "Shutdown signal received", map[string]interface{}{"signal": sig.String()})
		cancel()
	}()

	if err := monitor.Start(ctx); err != nil && err != context.Canceled {
		appLogger.Error(context.Background(), err, "Profit monitor exited with error")
		log.Fatalf("FATAL: Profit monitor exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
