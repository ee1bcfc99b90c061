package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pressandpolish/storefront/internal/cart"
	"github.com/pressandpolish/storefront/internal/catalog"
	catalogmongo "github.com/pressandpolish/storefront/internal/catalog/mongo"
	"github.com/pressandpolish/storefront/internal/config"
	"github.com/pressandpolish/storefront/internal/events"
	"github.com/pressandpolish/storefront/internal/httpx"
	ordersmongo "github.com/pressandpolish/storefront/internal/orders/mongo"
	"github.com/pressandpolish/storefront/internal/payments"
	eventlogsqlite "github.com/pressandpolish/storefront/internal/payments/eventlog/sqlite"
	"github.com/pressandpolish/storefront/internal/payments/razorpay"
	"github.com/pressandpolish/storefront/internal/pkg/cache"
	"github.com/pressandpolish/storefront/internal/pkg/telemetry"
)

const serviceName = "storefront"

func main() {
	telemetry.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	shutdownTracer, err := telemetry.SetupTracer(ctx, serviceName)
	if err != nil {
		slog.Error("tracer setup failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			slog.Error("tracer shutdown failed", "error", err)
		}
	}()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		slog.Error("mongo connect failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			slog.Error("mongo disconnect failed", "error", err)
		}
	}()
	db := client.Database(cfg.MongoDB)

	productRepo := catalogmongo.NewRepository(db)
	orderRepo := ordersmongo.NewRepository(db)
	if err := productRepo.EnsureIndexes(ctx); err != nil {
		slog.Error("catalog index setup failed", "error", err)
		os.Exit(1)
	}
	if err := orderRepo.EnsureIndexes(ctx); err != nil {
		slog.Error("orders index setup failed", "error", err)
		os.Exit(1)
	}

	productCache := cache.NewRedisCache(cfg.RedisAddr, serviceName)
	var products catalog.Repository = catalog.NewCachedRepository(productRepo, productCache, 5*time.Minute)

	if err := os.MkdirAll(filepath.Dir(cfg.EventLogPath), 0o755); err != nil {
		slog.Error("event log directory creation failed", "error", err)
		os.Exit(1)
	}
	paymentLog, err := eventlogsqlite.Open(cfg.EventLogPath)
	if err != nil {
		slog.Error("payment event log open failed", "error", err)
		os.Exit(1)
	}
	defer paymentLog.Close()

	var publisher *events.Publisher
	if cfg.RabbitMQURL != "" {
		publisher, err = events.Connect(cfg.RabbitMQURL, cfg.OrderExchange)
		if err != nil {
			slog.Error("rabbitmq connect failed", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
	} else {
		slog.Warn("RABBITMQ_URL not set, order events disabled")
	}

	gateway := razorpay.NewClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	verifier := payments.NewVerifier(cfg.RazorpayKeySecret, cfg.RazorpayWebhookSecret)

	cartService := cart.NewService(products)
	paymentService := payments.NewService(orderRepo, products, verifier, paymentLog, publisher)

	handler := httpx.NewHandler(cartService, products, orderRepo, paymentService, gateway, publisher)
	router := httpx.NewRouter(handler, cfg.JWTSecret, "./web/static")

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("storefront listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
}
