package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db     Pinger
	redis  *redis.Client
	logger *zap.Logger
}

// NewHealthHandler takes a nil db when customers are kept in memory.
func NewHealthHandler(db Pinger, redis *redis.Client, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		redis:  redis,
		logger: logger.Named("HealthHandler"),
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	dbStatus := "memory"
	if h.db != nil {
		dbStatus = "ok"
		if err := h.db.Ping(c.Request.Context()); err != nil {
			dbStatus = "error"
			h.logger.Error("Health check: PostgreSQL ping failed", zap.Error(err))
		}
	}

	redisStatus := "ok"
	if err := h.redis.Ping(c.Request.Context()).Err(); err != nil {
		redisStatus = "error"
		h.logger.Error("Health check: Redis ping failed", zap.Error(err))
	}

	status, code := "ok", http.StatusOK
	if dbStatus == "error" || redisStatus == "error" {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status": status,
		"dependencies": gin.H{
			"database": dbStatus,
			"redis":    redisStatus,
		},
	})
}
