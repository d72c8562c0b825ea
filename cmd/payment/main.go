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

	"toyshop/internal/config"
	"toyshop/internal/database"
	"toyshop/internal/ledger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.LoadPayment()
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore := newStore(ctx, cfg, logger)
	defer closeStore()

	verifier, err := ledger.NewOIDCVerifier(ctx, cfg.OIDCIssuerURL, cfg.OIDCAudience)
	if err != nil {
		logger.WithError(err).Fatal("oidc discovery")
	}

	router := gin.New()
	router.Use(gin.Recovery(), cors.New(cors.Config{
		AllowOrigins: cfg.CORSAllowedOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	ledger.NewHandler(ledger.NewService(store, cfg.Currency, logger), logger).Register(router, verifier)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{"port": cfg.Port, "store": cfg.Store}).Info("payment service listening")
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

// newStore returns the configured ledger store and its cleanup.
func newStore(ctx context.Context, cfg *config.Payment, logger logrus.FieldLogger) (ledger.Store, func()) {
	if cfg.Store != "postgres" {
		return ledger.NewMemoryStore(cfg.InitialBalance), func() {}
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		logger.WithError(err).Fatal("open ledger db")
	}
	if err := database.RunMigrations(db, logger); err != nil {
		logger.WithError(err).Fatal("ledger db migrate")
	}
	_ = db.Close()

	pool, err := database.NewPool(ctx, cfg.DSN)
	if err != nil {
		logger.WithError(err).Fatal("ledger db connect")
	}
	return ledger.NewPostgresStore(pool, cfg.InitialBalance), pool.Close
}
