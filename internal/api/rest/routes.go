package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecclesia-cloud/billing-service/config"
	"github.com/ecclesia-cloud/billing-service/internal/api/rest/handlers"
	"github.com/ecclesia-cloud/billing-service/internal/api/rest/middleware"
	"github.com/ecclesia-cloud/billing-service/internal/service"
	"github.com/ecclesia-cloud/billing-service/pkg/logger"
)

// Services groups the business services the router exposes.
type Services struct {
	Checkout      service.CheckoutService
	Subscriptions service.SubscriptionService
	Webhooks      service.WebhookService
	Coupons       service.CouponService
	Granted       service.GrantedAccountService
}

// SetupRouter builds the Gin router with all routes and middleware.
func SetupRouter(svcs Services, registry *prometheus.Registry, cfg *config.Config, log *logger.Logger) *gin.Engine {
	r := gin.New()

	r.Use(middleware.LoggerMiddleware(log))
	r.Use(gin.Recovery())

	r.GET("/health", handlers.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	checkoutHandler := handlers.NewCheckoutHandler(svcs.Checkout, log)
	subscriptionHandler := handlers.NewSubscriptionHandler(svcs.Subscriptions, log)
	planHandler := handlers.NewPlanHandler(svcs.Subscriptions, log)
	couponHandler := handlers.NewCouponHandler(svcs.Coupons, log)
	grantedHandler := handlers.NewGrantedHandler(svcs.Granted, log)
	webhookHandler := handlers.NewWebhookHandler(svcs.Webhooks, cfg.Asaas.WebhookToken, log)

	v1 := r.Group("/api/v1")
	{
		plans := v1.Group("/plans")
		{
			plans.GET("", planHandler.GetPlans)
			plans.POST("/prorata", planHandler.ProRataQuote)
		}

		v1.POST("/checkout", checkoutHandler.CreateCheckout)

		subscriptions := v1.Group("/subscriptions")
		{
			subscriptions.GET("/:churchId", subscriptionHandler.GetSubscription)
			subscriptions.POST("/:churchId/downgrade", subscriptionHandler.ScheduleDowngrade)
			subscriptions.POST("/:churchId/cancel", subscriptionHandler.RequestCancellation)
		}

		v1.POST("/coupons/validate", couponHandler.Validate)

		granted := v1.Group("/granted-accounts")
		{
			granted.GET("/check", grantedHandler.Check)
			granted.POST("/activate", grantedHandler.Activate)
		}

		admin := v1.Group("/admin", middleware.AdminAuth(cfg.Admin.APIKey, log))
		{
			admin.POST("/coupons", couponHandler.Create)
			admin.PATCH("/coupons/:code", couponHandler.SetActive)
			admin.POST("/granted-accounts", grantedHandler.Grant)
		}
	}

	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/asaas", webhookHandler.HandleAsaasWebhook)
	}
	return r
}
