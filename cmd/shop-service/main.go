package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andreasstove999/shop-service-go/internal/config"
	"github.com/andreasstove999/shop-service-go/internal/db"
	"github.com/andreasstove999/shop-service-go/internal/events"
	httpapi "github.com/andreasstove999/shop-service-go/internal/http"
	"github.com/andreasstove999/shop-service-go/internal/obs"
	"github.com/andreasstove999/shop-service-go/internal/order"
	"github.com/andreasstove999/shop-service-go/internal/product"
	"github.com/andreasstove999/shop-service-go/internal/user"
)

func main() {
	cfg := config.Load()
	logger := obs.InitLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- DB ---
	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Error("db connect", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
			logger.Error("db migrate", "error", err)
			os.Exit(1)
		}
	}

	userRepo := user.NewPostgresRepository(pool)
	productRepo := product.NewPostgresRepository(pool)
	orderRepo := order.NewPostgresRepository(pool)

	// --- AMQP (optional) ---
	var publisher order.EventPublisher
	if cfg.AMQPURL != "" {
		conn, err := events.Dial(cfg.AMQPURL)
		if err != nil {
			logger.Error("amqp connect", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		pub, err := events.NewPublisher(conn)
		if err != nil {
			logger.Error("amqp publisher", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		publisher = pub
	}

	orderService := order.NewService(orderRepo, publisher, cfg.OrderTxTimeout, logger)

	// --- HTTP ---
	router := httpapi.NewRouter(
		httpapi.NewUserHandler(userRepo),
		httpapi.NewProductHandler(productRepo),
		httpapi.NewOrderHandler(orderService),
	)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal", "signal", sig.String())
	case err := <-errCh:
		logger.Error("fatal error", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	_ = httpServer.Shutdown(shutdownCtx)
	cancel()

	logger.Info("shutdown complete")
}
