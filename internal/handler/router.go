package handler

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/makkenzo/ledgerpro-license-api/internal/handler/middleware"
	"github.com/makkenzo/ledgerpro-license-api/internal/ierr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handlers struct {
	Customer *CustomerHandler
	Webhook  *WebhookHandler
	Admin    *AdminHandler
	Realtime *RealtimeHandler
	Health   *HealthHandler
}

type RouterOptions struct {
	AllowedOrigins []string
	AdminAuth      gin.HandlerFunc
	// RateLimit guards the public customer routes. Nil disables limiting.
	RateLimit gin.HandlerFunc
}

func NewRouter(h Handlers, opts RouterOptions, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logMsg := "Panic recovered"
		if err, ok := recovered.(string); ok {
			logMsg = fmt.Sprintf("%s: %s", logMsg, err)
		} else if err, ok := recovered.(error); ok {
			logMsg = fmt.Sprintf("%s: %v", logMsg, err)
		}
		logger.Error(logMsg, zap.Stack("stack"))

		_ = c.Error(ierr.ErrInternalServer)
		c.Abort()
	}))

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			middleware.AdminTokenHeader,
		},
		ExposeHeaders: []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:        12 * time.Hour,
	}))
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.ErrorHandlerMiddleware(logger))

	router.GET("/healthz", h.Health.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", h.Realtime.Serve)

	api := router.Group("/api")

	// The gateway retries failed deliveries, so the webhook sits outside
	// the rate limit.
	api.POST("/customers/webhook", h.Webhook.Handle)

	customers := api.Group("/customers")
	if opts.RateLimit != nil {
		customers.Use(opts.RateLimit)
	}
	{
		customers.POST("/register", h.Customer.Register)
		customers.POST("/verify-payment", h.Customer.VerifyPayment)
		customers.GET("/payment-status/:orderId", h.Customer.PaymentStatus)
		customers.POST("/verify-license", h.Customer.VerifyLicense)
		customers.POST("/track-download", h.Customer.TrackDownload)
	}

	admin := api.Group("/admin")
	admin.Use(opts.AdminAuth)
	{
		admin.GET("/dashboard", h.Admin.Dashboard)
		admin.GET("/customers", h.Admin.ListCustomers)
		admin.POST("/update-pricing", h.Admin.UpdatePricing)
		admin.POST("/customers/:id/regenerate-key", h.Admin.RegenerateKey)
		admin.POST("/realtime-token", h.Admin.RealtimeToken)
	}

	return router
}
