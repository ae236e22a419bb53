package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/summitworks/delivery-monitor/internal/api"
	"github.com/summitworks/delivery-monitor/internal/config"
	"github.com/summitworks/delivery-monitor/internal/gate"
	"github.com/summitworks/delivery-monitor/internal/history"
	"github.com/summitworks/delivery-monitor/internal/ingest"
	"github.com/summitworks/delivery-monitor/internal/ledger"
	"github.com/summitworks/delivery-monitor/internal/mailer"
	"github.com/summitworks/delivery-monitor/internal/pkg/distlock"
	"github.com/summitworks/delivery-monitor/internal/pkg/logger"
	"github.com/summitworks/delivery-monitor/internal/policy"
	"github.com/summitworks/delivery-monitor/internal/repository/postgres"
	"github.com/summitworks/delivery-monitor/internal/suppression"
	"github.com/summitworks/delivery-monitor/internal/webhook"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	err = db.PingContext(pingCtx)
	pingCancel()
	if err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// Redis only backs the gate cache and the preferred lock
			// backend; advisory locks cover the latter, so degrade.
			logger.Warn("redis unreachable, falling back to postgres locks", "error", err)
			redisClient = nil
		}
	}

	// Repositories
	deliveryRepo := postgres.NewDeliveryRepo(db)
	journalRepo := postgres.NewEventJournalRepo(db)
	suppressionRepo := postgres.NewSuppressionRepo(db)
	historyRepo := postgres.NewHistoryRepo(db)

	// Services
	ledgerSvc := ledger.NewService(deliveryRepo, journalRepo)
	suppressionSvc := suppression.NewService(suppressionRepo)
	tracker := history.NewTracker(historyRepo)
	engine := policy.NewEngine(cfg.Policy.SoftBounceThreshold)
	sendGate := gate.New(suppressionSvc, redisClient, cfg.Gate.CacheTTL())
	locks := distlock.NewFactory(redisClient, db, 30*time.Second)
	ingestSvc := ingest.New(ledgerSvc, engine, suppressionSvc, tracker, sendGate, locks)

	var sender api.Sender
	if cfg.Mailer.Enabled {
		s, err := mailer.NewSender(ctx, cfg.Mailer, sendGate, ledgerSvc)
		if err != nil {
			logger.Error("failed to initialize mailer", "error", err)
			os.Exit(1)
		}
		sender = s
		logger.Info("ses mailer enabled", "region", cfg.Mailer.Region, "from", cfg.Mailer.FromAddress)
	}

	// HTTP surface
	verifier := webhook.NewVerifier(cfg.Webhook.Secret, cfg.Webhook.AllowUnsigned)
	webhookHandler := webhook.NewHandler(verifier, ingestSvc, cfg.Webhook.MaxBodyBytes)
	handlers := api.NewHandlers(suppressionSvc, ledgerSvc, sendGate, sender, db)
	router := api.SetupRoutes(handlers, webhookHandler)
	server := api.NewServer(cfg.Server, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	if redisClient != nil {
		_ = redisClient.Close()
	}
	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}
	logger.Info("server stopped")
}
