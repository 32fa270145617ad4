package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/ledgerpro-license-api/internal/handler/dto"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

const rateLimitPrefix = "ledgerpro:ratelimit"

// NewRateLimiter limits requests per client IP. Counters live in redis when
// client is non-nil so that every instance shares them, otherwise in process
// memory.
func NewRateLimiter(requests int64, period string, client *redis.Client, logger *zap.Logger) (gin.HandlerFunc, error) {
	log := logger.Named("RateLimiter")

	duration, err := time.ParseDuration(period)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit period %q: %w", period, err)
	}
	if requests <= 0 {
		return nil, fmt.Errorf("invalid rate limit %d: must be positive", requests)
	}

	rate := limiter.Rate{
		Period: duration,
		Limit:  requests,
	}

	var store limiter.Store
	if client != nil {
		store, err = sredis.NewStoreWithOptions(client, limiter.StoreOptions{
			Prefix:          rateLimitPrefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis rate limit store: %w", err)
		}
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          rateLimitPrefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		})
	}

	instance := limiter.New(store, rate)

	return mgin.NewMiddleware(instance,
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			log.Info("Rate limit reached", zap.String("client_ip", c.ClientIP()), zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.APIErrorResponse{
				Code:  "RATE_LIMITED",
				Error: "Too many requests, please try again later.",
			})
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			log.Error("Rate limit store failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.APIErrorResponse{
				Code:  "UNAVAILABLE",
				Error: "Service temporarily unavailable.",
			})
		}),
	), nil
}
