package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bookman/portfolio-service/internal/clients/pricefeed"
	"github.com/bookman/portfolio-service/internal/config"
	"github.com/bookman/portfolio-service/internal/database"
	"github.com/bookman/portfolio-service/internal/events"
	"github.com/bookman/portfolio-service/internal/modules/journal"
	"github.com/bookman/portfolio-service/internal/modules/performance"
	"github.com/bookman/portfolio-service/internal/modules/portfolio"
	"github.com/bookman/portfolio-service/internal/modules/pricing"
	"github.com/bookman/portfolio-service/internal/scheduler"
	"github.com/bookman/portfolio-service/internal/server"
	"github.com/bookman/portfolio-service/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting portfolio service")

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Create schemas
	if err := portfolio.InitSchema(db.Conn()); err != nil {
		log.Fatal().Err(err).Msg("Failed to create portfolio schema")
	}
	if err := journal.InitSchema(db.Conn()); err != nil {
		log.Fatal().Err(err).Msg("Failed to create journal schema")
	}
	if err := pricing.InitSchema(db.Conn()); err != nil {
		log.Fatal().Err(err).Msg("Failed to create pricing schema")
	}

	// Event bus and per-portfolio write locks
	bus := events.NewBus(cfg.StreamBufferSize, log)
	eventsMgr := events.NewManager(bus, log)
	locks := portfolio.NewLocks()

	// Repositories
	portfolioRepo := portfolio.NewRepository(db.Conn(), log)
	assetRepo := portfolio.NewAssetRepository(db.Conn(), log)
	journalRepo := journal.NewRepository(db.Conn(), log)
	priceRepo := pricing.NewRepository(db.Conn(), log)

	// Services
	portfolioService := portfolio.NewService(
		db.Conn(), portfolioRepo, assetRepo, journalRepo,
		eventsMgr, locks, cfg.PriceStaleAfter, log,
	)
	synchronizer := pricing.NewSynchronizer(
		db.Conn(), assetRepo, priceRepo, locks, eventsMgr, log,
	)

	metricsCache := performance.NewCache(cfg.MetricsCacheTTL)
	performanceService := performance.NewService(
		portfolioRepo, journalRepo, priceRepo,
		metricsCache, cfg.RiskFreeRate, log,
	)

	// Mutations and price ticks both invalidate cached metrics
	portfolioService.SetMetricsInvalidator(performanceService)
	synchronizer.SetMetricsInvalidator(performanceService)

	// Background price sync
	feed := pricefeed.New(cfg.PriceFeedURL, log)
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	syncJob := pricing.NewSyncJob(feed, assetRepo, synchronizer, log)
	if err := sched.AddJob(cfg.PriceSyncSchedule, syncJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule price sync job")
	}

	// HTTP server
	srv := server.New(server.Config{
		Log:                log,
		Config:             cfg,
		DB:                 db,
		Bus:                bus,
		PortfolioHandler:   portfolio.NewHandler(portfolioService, log),
		PortfolioService:   portfolioService,
		PricingHandler:     pricing.NewHandler(priceRepo, log),
		PerformanceHandler: performance.NewHandler(performanceService, log),
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
