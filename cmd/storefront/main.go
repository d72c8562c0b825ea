package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"toyshop/internal/cache"
	"toyshop/internal/config"
	"toyshop/internal/database"
	"toyshop/internal/handler"
	"toyshop/internal/infrastructure/events"
	"toyshop/internal/infrastructure/payment"
	"toyshop/internal/ledger"
	"toyshop/internal/repo"
	"toyshop/internal/service"
	"toyshop/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.LoadStorefront()
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- DB ---
	db, err := database.NewPostgres(cfg.DB)
	if err != nil {
		logger.WithError(err).Fatal("db connect")
	}
	if err := database.RunMigrations(db, logger); err != nil {
		logger.WithError(err).Fatal("db migrate")
	}
	dbService := database.New(db, cfg.DB.Database, logger)
	defer dbService.Close()

	// --- cache ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("redis unreachable, product reads will fall through to postgres")
	}
	productCache := cache.NewRedisCache(rdb, cfg.ProductCacheTTL)

	// --- ledger ---
	gateway := newGateway(cfg, logger)

	// --- events ---
	publisher := newPublisher(cfg, logger)
	defer publisher.Close()

	cartRepo := repo.NewCartRepo(db)
	cartItemRepo := repo.NewCartItemRepo(db)
	productRepo := repo.NewProductRepo(db)
	userRepo := repo.NewUserRepo(db)

	carts := service.NewCartService(cartRepo, cartItemRepo, productRepo, logger)
	checkout := service.NewCheckoutService(carts, gateway, publisher, cfg.Currency, logger)

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		logger.WithError(err).Fatal("create upload dir")
	}

	router := handler.NewRouter(handler.Deps{
		Users:              service.NewUserService(db, userRepo, logger),
		Products:           service.NewProductService(productRepo, productCache, logger),
		Carts:              carts,
		Checkout:           checkout,
		Orders:             service.NewOrderService(cartRepo, carts),
		Logger:             logger,
		SessionSecret:      cfg.SessionSecret,
		UploadDir:          cfg.UploadDir,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Health:             func() map[string]string { return dbService.Health(ctx) },
	})

	reconciler := worker.NewReconciliationWorker(
		cartRepo, carts, gateway, publisher, cfg.Currency,
		cfg.ReconcileInterval, cfg.ReconcileStuckFor, logger,
	)
	go reconciler.Run(ctx)

	// --- HTTP ---
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Port).Info("storefront listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("shutdown signal")
	case err := <-errCh:
		logger.WithError(err).Error("http server failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = httpServer.Shutdown(shutdownCtx)
	cancel()

	logger.Info("shutdown complete")
}

// newGateway picks the remote ledger client or, with PAYMENT_MODE=local, an
// in-process ledger for single-binary runs.
func newGateway(cfg *config.Storefront, logger logrus.FieldLogger) payment.Gateway {
	if cfg.PaymentMode == "local" {
		logger.Warn("using in-process ledger, balances are not persisted")
		store := ledger.NewMemoryStore(cfg.InitialBalance)
		return payment.NewLocalGateway(ledger.NewService(store, cfg.Currency, logger))
	}
	return payment.NewClient(payment.ClientConfig{
		BaseURL:         cfg.PaymentServiceURL,
		Timeout:         cfg.PaymentTimeout,
		OAuth:           cfg.OAuth,
		BreakerFailures: cfg.BreakerFailures,
	}, logger)
}

func newPublisher(cfg *config.Storefront, logger logrus.FieldLogger) events.Publisher {
	if cfg.RabbitMQURL == "" {
		logger.Info("RABBITMQ_URL not set, order events disabled")
		return events.NoopPublisher{}
	}
	pub, err := events.NewAMQPPublisher(cfg.RabbitMQURL, cfg.RabbitMQQueue, logger)
	if err != nil {
		logger.WithError(err).Warn("rabbitmq unavailable, order events disabled")
		return events.NoopPublisher{}
	}
	return pub
}
