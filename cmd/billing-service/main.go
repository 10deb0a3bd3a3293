package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ecclesia-cloud/billing-service/config"
	"github.com/ecclesia-cloud/billing-service/internal/api/rest"
	"github.com/ecclesia-cloud/billing-service/internal/email"
	"github.com/ecclesia-cloud/billing-service/internal/integration/asaas"
	"github.com/ecclesia-cloud/billing-service/internal/jobs"
	"github.com/ecclesia-cloud/billing-service/internal/kafka"
	"github.com/ecclesia-cloud/billing-service/internal/metrics"
	"github.com/ecclesia-cloud/billing-service/internal/repository"
	"github.com/ecclesia-cloud/billing-service/internal/repository/postgres"
	"github.com/ecclesia-cloud/billing-service/internal/service"
	"github.com/ecclesia-cloud/billing-service/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := initLogger()
	log.Infow("Billing service starting up...")

	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatalw("Failed to load configuration", "error", err)
	}
	if cfg.Asaas.WebhookToken == "" {
		log.Warnw("Asaas webhook token is not set, webhook endpoint will reject everything")
	}
	if cfg.Admin.APIKey == "" {
		log.Warnw("Admin API key is not set, admin endpoints are disabled")
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	pool, err := postgres.NewConnection(ctx, cfg.Database.DSN, log)
	if err != nil {
		log.Fatalw("Failed to connect to database", "error", err)
	}
	defer pool.Close()

	// Redis is an optimization, not a dependency: without it the
	// service runs uncached and without checkout locks.
	redisCache, err := repository.NewRedisCacheRepository(
		cfg.Redis.Addr,
		cfg.Redis.Password,
		cfg.Redis.DB,
		log,
	)
	if err != nil {
		log.Warnw("Failed to initialize Redis cache, continuing without caching", "error", err)
		redisCache = nil
	} else {
		defer func() {
			if err := redisCache.Close(); err != nil {
				log.Errorw("Error closing Redis connection", "error", err)
			}
		}()
	}

	var tenantRepo repository.TenantRepository = repository.NewPostgresTenantRepository(pool, log)
	if redisCache != nil {
		tenantRepo = repository.NewCachedTenantRepository(tenantRepo, redisCache, log)
		log.Infow("Using cached tenant repository")
	}
	couponRepo := repository.NewPostgresCouponRepository(pool, log)
	grantedRepo := repository.NewPostgresGrantedRepository(pool, log)
	webhookRepo := repository.NewPostgresWebhookEventRepository(pool, log)

	asaasClient := asaas.NewClient(cfg.Asaas.BaseURL, cfg.Asaas.APIKey, log)
	notifier := email.NewAPINotifier(cfg.Email.BaseURL, cfg.Email.APIKey, cfg.Email.FromAddress, cfg.Email.FromName, log)

	var producer kafka.Producer
	producer, err = kafka.NewProducer(cfg.Kafka.Brokers, log)
	if err != nil {
		log.Errorw("Failed to initialize Kafka producer, continuing without event publishing", "error", err)
		producer = kafka.NoOpProducer{}
	} else {
		defer func() {
			if err := producer.Close(); err != nil {
				log.Errorw("Error closing Kafka producer", "error", err)
			}
		}()
	}

	registry := prometheus.NewRegistry()
	billingMetrics := metrics.NewBillingMetrics(registry)

	couponService := service.NewCouponService(couponRepo, billingMetrics, log)
	subscriptionService := service.NewSubscriptionService(
		tenantRepo, couponService, asaasClient, notifier, producer, billingMetrics, cfg.Billing.GraceDays, log)

	var locker service.CheckoutLocker
	if redisCache != nil {
		locker = redisCache
	}
	checkoutService := service.NewCheckoutService(
		tenantRepo, couponService, asaasClient, locker, producer, billingMetrics, cfg.App.BaseURL, log)
	webhookService := service.NewWebhookService(webhookRepo, subscriptionService, billingMetrics, log)
	grantedService := service.NewGrantedAccountService(grantedRepo, notifier, billingMetrics, log)

	cycleJob := jobs.NewBillingCycleJob(subscriptionService, cfg.Billing.ReconcileSchedule, log)
	if err := cycleJob.Start(); err != nil {
		log.Fatalw("Failed to start billing cycle job", "error", err)
	}
	defer cycleJob.Stop()

	router := rest.SetupRouter(rest.Services{
		Checkout:      checkoutService,
		Subscriptions: subscriptionService,
		Webhooks:      webhookService,
		Coupons:       couponService,
		Granted:       grantedService,
	}, registry, cfg, log)

	server := rest.NewServer(router, cfg.App.Port, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatalw("Failed to start HTTP server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infow("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown error", "error", err)
	} else {
		log.Infow("HTTP server gracefully stopped")
	}

	log.Infow("Cleanup finished. Goodbye!")
}

func initLogger() *logger.Logger {
	logLevel := logger.INFO
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = logger.DEBUG
	}
	return logger.New(logLevel)
}
