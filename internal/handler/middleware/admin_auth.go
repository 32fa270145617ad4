package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/ledgerpro-license-api/internal/ierr"
	"go.uber.org/zap"
)

const AdminTokenHeader = "X-Admin-Token"

type AdminAuthenticator interface {
	AuthenticateAdmin(token string) error
}

func AdminAuthMiddleware(auth AdminAuthenticator, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("AdminAuthMiddleware")
	return func(c *gin.Context) {
		token := c.GetHeader(AdminTokenHeader)
		if token == "" {
			log.Debug("Admin token header is missing", zap.String("path", c.FullPath()))
			_ = c.Error(fmt.Errorf("%w: admin token required", ierr.ErrUnauthorized))
			c.Abort()
			return
		}

		if err := auth.AuthenticateAdmin(token); err != nil {
			log.Warn("Admin token rejected", zap.String("path", c.FullPath()), zap.String("client_ip", c.ClientIP()))
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Next()
	}
}
