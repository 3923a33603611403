// cmd/api/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/checkout"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/payment"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"github.com/your-org/storefront-backend/internal/domain/user"
	"github.com/your-org/storefront-backend/internal/infrastructure/database/postgres"
	redisdb "github.com/your-org/storefront-backend/internal/infrastructure/database/redis"
	httpserver "github.com/your-org/storefront-backend/internal/interfaces/http"
	"github.com/your-org/storefront-backend/internal/interfaces/http/handlers"
	"github.com/your-org/storefront-backend/internal/interfaces/http/routes"
	"github.com/your-org/storefront-backend/internal/pkg/email"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := newLogger(cfg)
	log.WithFields(logrus.Fields{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	}).Infof("Starting %s", cfg.App.Name)

	// Connect to database
	db, err := postgres.NewConnection(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Connect to Redis
	redisClient, err := redisdb.NewConnection(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	if err := db.Health(); err != nil {
		log.Fatalf("Database health check failed: %v", err)
	}
	if err := redisClient.Health(); err != nil {
		log.Fatalf("Redis health check failed: %v", err)
	}

	// Run database migrations
	migration := postgres.NewMigration(db.GetDB())

	if err := migration.RunAutoMigrations(); err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}
	if err := migration.CreateIndexes(); err != nil {
		log.Warnf("Index creation failed: %v", err)
	}
	if cfg.IsDevelopment() {
		if err := migration.SeedInitialData(); err != nil {
			log.Warnf("Data seeding failed: %v", err)
		}
	}

	h := buildHandlers(cfg, db, redisClient, log)

	// Create and start HTTP server
	server := httpserver.NewServer(cfg, db.GetDB(), redisClient, h, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.Errorf("Failed to shutdown HTTP server gracefully: %v", err)
	}

	log.Info("Server shutdown completed")
}

// buildHandlers wires services, stores, and gateways into HTTP handlers
func buildHandlers(cfg *config.Config, db *postgres.Connection, redisClient *redisdb.Client, log *logrus.Logger) *routes.Handlers {
	gormDB := db.GetDB()

	// Catalog and cart
	catalog := product.NewRepository(gormDB)
	cartRepo := cart.NewGormRepository(gormDB)
	cartSessions := cart.NewSessionManager(cartRepo, cart.NewRedisSessionStore(redisClient), cfg.Checkout.CartTTL, log)
	cartService := cart.NewService(cartRepo, cartSessions, catalog, log)

	// Accounts
	sessionRegistry := user.NewRedisSessionRegistry(redisClient)
	userService := user.NewService(gormDB, cfg, sessionRegistry, cartSessions, log)
	addressService := user.NewAddressService(gormDB)

	// Orders
	orderService := order.NewService(gormDB, log)

	// Payments
	router := payment.NewRouter()
	stripeGW := payment.NewStripeGateway(
		cfg.Payment.Stripe.SecretKey,
		cfg.Payment.Stripe.WebhookSecret,
		cfg.Payment.Stripe.Mode,
	)
	if err := router.Register(payment.MethodCreditCard, stripeGW); err != nil {
		log.Fatalf("Failed to register card gateway: %v", err)
	}
	pseGW := payment.NewPSEGateway(
		cfg.Payment.PSE.Provider,
		cfg.Payment.PSE.BaseURL,
		cfg.Payment.PSE.PublicKey,
		cfg.Payment.PSE.PrivateKey,
		cfg.Payment.PSE.WebhookSecret,
		cfg.Payment.PSE.Mode,
		cfg.Payment.GatewayTimeout,
	)
	if err := router.Register(payment.MethodPSE, pseGW); err != nil {
		log.Fatalf("Failed to register PSE gateway: %v", err)
	}

	paymentStore := payment.NewGormStore(gormDB)
	webhookDedup := payment.NewRedisWebhookDedup(redisClient)
	attemptLock := payment.NewRedisAttemptLock(redisClient)
	paymentService := payment.NewService(paymentStore, router, webhookDedup, attemptLock, cfg.Payment.PSE.ResponseURL, log)

	mailer := email.NewEmailService(cfg, log)
	paymentService.SetNotifier(payment.NewEmailNotifier(gormDB, mailer, log))

	// Checkout
	checkoutStore := checkout.NewRedisStore(redisClient)
	checkoutService := checkout.NewService(
		checkoutStore,
		cartRepo,
		addressService,
		catalog,
		paymentService,
		orderService,
		cfg.Checkout.SessionTTL,
		cfg.Checkout.ShippingFlatFee,
		cfg.Checkout.Currency,
		log,
	)

	return &routes.Handlers{
		Auth:     handlers.NewAuthHandler(userService),
		Cart:     handlers.NewCartHandler(cartService),
		Checkout: handlers.NewCheckoutHandler(checkoutService, catalog),
		Order:    handlers.NewOrderHandler(orderService),
		Payment:  handlers.NewPaymentHandler(paymentService),
		Webhook:  handlers.NewWebhookHandler(paymentService, log),
		Address:  handlers.NewUserAddressHandler(addressService),
		Profile:  handlers.NewUserProfileHandler(userService),
	}
}

// newLogger builds the application logger from config
func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Logging.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return log
}
