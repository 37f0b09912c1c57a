// Package main is the entry point for the layers portfolio engine. It
// wires the configuration, databases, price feed, services, scheduler
// and HTTP server, then blocks until a shutdown signal arrives.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/blumarkets/layers/internal/clients/pricefeed"
	"github.com/blumarkets/layers/internal/config"
	"github.com/blumarkets/layers/internal/database"
	"github.com/blumarkets/layers/internal/events"
	"github.com/blumarkets/layers/internal/modules/history"
	"github.com/blumarkets/layers/internal/modules/ledger"
	"github.com/blumarkets/layers/internal/modules/lending"
	"github.com/blumarkets/layers/internal/modules/portfolio"
	"github.com/blumarkets/layers/internal/modules/profiler"
	"github.com/blumarkets/layers/internal/modules/protection"
	"github.com/blumarkets/layers/internal/modules/rebalancing"
	"github.com/blumarkets/layers/internal/modules/registry"
	"github.com/blumarkets/layers/internal/modules/simulation"
	"github.com/blumarkets/layers/internal/modules/trading"
	"github.com/blumarkets/layers/internal/scheduler"
	"github.com/blumarkets/layers/internal/server"
	"github.com/blumarkets/layers/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("port", cfg.Port).
		Bool("dev_mode", cfg.DevMode).
		Msg("Starting layers engine")

	// Asset registry, optionally overridden from a YAML file.
	reg := registry.New()
	if cfg.RegistryFile != "" {
		reg, err = registry.LoadFile(cfg.RegistryFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.RegistryFile).Msg("Failed to load registry file")
		}
		log.Info().Str("file", cfg.RegistryFile).Msg("Registry loaded from file")
	}

	// Main portfolio database.
	db, err := database.New(cfg.PortfolioDBPath())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio database")
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate portfolio database")
	}

	// Price history side database.
	historyStore, err := history.Open(cfg.HistoryDBPath(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer historyStore.Close()

	// Events.
	bus := events.NewBus()
	eventMgr := events.NewManager(bus, log)

	// Repositories.
	portfolioRepo := portfolio.NewRepository(db.Conn(), log)
	tradeRepo := trading.NewTradeRepository(db.Conn(), log)
	ledgerRepo := ledger.NewRepository(db.Conn(), log)
	loanRepo := lending.NewRepository(db.Conn(), log)
	contractRepo := protection.NewRepository(db.Conn(), log)

	// Services.
	calc := portfolio.NewCalculator(reg)
	tradingSvc := trading.NewService(trading.NewSimulator(reg, calc), portfolioRepo, tradeRepo, ledgerRepo, eventMgr, log)
	rebalanceSvc := rebalancing.NewService(rebalancing.NewPlanner(reg, calc), portfolioRepo, tradeRepo, ledgerRepo, eventMgr, log)
	lendingSvc := lending.NewService(reg, calc, portfolioRepo, loanRepo, ledgerRepo, eventMgr, cfg.LoanAnnualRate, log)
	protectionSvc := protection.NewService(reg, calc, portfolioRepo, contractRepo, ledgerRepo, eventMgr, log)
	simulationEngine := simulation.NewEngine(reg, eventMgr, log)

	// Price feed: websocket primary, HTTP poll fallback.
	holder := pricefeed.NewHolder()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var feed *pricefeed.WebSocketFeed
	if cfg.PricefeedWSURL != "" {
		feed = pricefeed.NewWebSocketFeed(cfg.PricefeedWSURL, holder, eventMgr, log)
		if err := feed.Start(); err != nil {
			log.Error().Err(err).Msg("Websocket feed failed to start, relying on the poller")
		}
	}
	if cfg.PricefeedPollURL != "" {
		poller := pricefeed.NewPoller(cfg.PricefeedPollURL, holder, feed, eventMgr, log)
		go poller.Run(ctx, cfg.PollInterval)
	}
	if cfg.PricefeedWSURL == "" && cfg.PricefeedPollURL == "" {
		log.Warn().Msg("No price feed configured, market operations will refuse")
	}

	// Background jobs.
	sched := scheduler.New(log)
	registerJobs(sched, cfg, holder, historyStore, portfolioRepo, calc, lendingSvc, loanRepo, protectionSvc, eventMgr, log)
	sched.Start()

	// HTTP server.
	srv := server.New(server.Config{
		Log:        log,
		Port:       cfg.Port,
		DevMode:    cfg.DevMode,
		Registry:   reg,
		Holder:     holder,
		Feed:       feed,
		Bus:        bus,
		EventMgr:   eventMgr,
		Profiler:   profiler.New(),
		Portfolio:  portfolioRepo,
		Calculator: calc,
		Trading:    tradingSvc,
		Trades:     tradeRepo,
		Rebalance:  rebalanceSvc,
		Lending:    lendingSvc,
		Loans:      loanRepo,
		Protection: protectionSvc,
		Contracts:  contractRepo,
		Ledger:     ledgerRepo,
		Simulation: simulationEngine,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for shutdown signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	sched.Stop()
	if feed != nil {
		if err := feed.Stop(); err != nil {
			log.Error().Err(err).Msg("Websocket feed shutdown failed")
		}
	}
	cancel()

	log.Info().Msg("Shutdown complete")
}

// registerJobs wires the recurring jobs. Failures are fatal: a typo in
// a cron expression must not pass silently.
func registerJobs(
	sched *scheduler.Scheduler,
	cfg *config.Config,
	holder *pricefeed.Holder,
	historyStore *history.Store,
	portfolioRepo *portfolio.Repository,
	calc *portfolio.Calculator,
	lendingSvc *lending.Service,
	loanRepo *lending.Repository,
	protectionSvc *protection.Service,
	eventMgr *events.Manager,
	log zerolog.Logger,
) {
	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		// Daily close snapshot shortly after midnight.
		{"0 10 0 * * *", scheduler.NewSnapshotJob(holder, historyStore, portfolioRepo, calc, eventMgr, log)},
		// Liquidation sweep every five minutes.
		{"0 */5 * * * *", scheduler.NewLiquidationJob(lendingSvc, holder, log)},
		// Installment reminders every morning.
		{"0 0 8 * * *", scheduler.NewInstallmentJob(loanRepo, eventMgr, log)},
		// Protection expiry on the hour.
		{"0 0 * * * *", scheduler.NewProtectionExpiryJob(protectionSvc, log)},
		// History pruning once a week.
		{"0 0 3 * * 0", scheduler.NewHistoryPruneJob(historyStore, cfg.HistoryKeepDays)},
	}
	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			log.Fatal().Err(err).Str("job", j.job.Name()).Msg("Failed to register job")
		}
	}
}
