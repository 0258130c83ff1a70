package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	httpapi "github.com/bargain-hub/bargain-hub/internal/api/http"
	appNegotiation "github.com/bargain-hub/bargain-hub/internal/application/negotiation"
	appNotification "github.com/bargain-hub/bargain-hub/internal/application/notification"
	"github.com/bargain-hub/bargain-hub/internal/application/sweeper"
	"github.com/bargain-hub/bargain-hub/internal/config"
	"github.com/bargain-hub/bargain-hub/internal/domain/notification"
	"github.com/bargain-hub/bargain-hub/internal/infrastructure/delivery"
	"github.com/bargain-hub/bargain-hub/internal/infrastructure/postgres"
	"github.com/bargain-hub/bargain-hub/internal/infrastructure/realtime"
	"github.com/bargain-hub/bargain-hub/internal/infrastructure/redis"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db error: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool, "internal/migrations"); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	// repositories
	ledger := postgres.NewNegotiationRepository(pool)
	notificationRepo := postgres.NewNotificationRepository(pool)
	catalog := postgres.NewCatalogRepository(pool)
	identityRepo := postgres.NewIdentityRepository(pool)

	// infrastructure
	hub := realtime.NewHub(logger)
	cache := redis.NewSummaryCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL, logger)
	defer cache.Close()
	if err := cache.Ping(ctx); err != nil {
		logger.Warn().Err(err).Msg("redis unreachable, listings fall through to the ledger")
	}
	orderEvents := redis.NewOrderEventPublisher(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	defer orderEvents.Close()

	var sender notification.Sender
	if cfg.GatewayURL != "" {
		sender = delivery.NewWebhookSender(cfg.GatewayURL, cfg.GatewayTimeout, logger)
	} else {
		sender = delivery.NewLogSender(logger)
	}

	// services
	notificationSvc := appNotification.NewService(notificationRepo, sender, logger)
	negotiationSvc := appNegotiation.NewService(ledger, cache, catalog, identityRepo, hub, notificationSvc, orderEvents, logger)
	sweep := sweeper.New(ledger, negotiationSvc, cfg.IdleTimeout, logger)

	// API server
	apiServer := httpapi.NewServer(negotiationSvc, notificationSvc, hub)

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // streaming endpoints hold connections open
		IdleTimeout:  60 * time.Second,
	}

	bgCtx, cancelBg := context.WithCancel(context.Background())

	// background loops
	go func() {
		ticker := time.NewTicker(cfg.DispatchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_, _ = notificationSvc.ProcessDue(bgCtx, cfg.DispatchBatchSize)
			case <-bgCtx.Done():
				return
			}
		}
	}()

	go sweep.Run(bgCtx, cfg.SweepInterval, cfg.SweepBatchSize)

	// start server
	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	cancelBg()
	hub.Stop()
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}
