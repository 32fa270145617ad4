package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/ledgerpro-license-api/internal/handler/dto"
	"github.com/makkenzo/ledgerpro-license-api/internal/ierr"
	"github.com/makkenzo/ledgerpro-license-api/internal/service"
	"go.uber.org/zap"
)

const (
	WebhookSignatureHeader = "X-Razorpay-Signature"
	maxWebhookBodyBytes    = 64 << 10
)

type WebhookHandler struct {
	service *service.LicenseService
	logger  *zap.Logger
}

func NewWebhookHandler(service *service.LicenseService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		logger:  logger.Named("WebhookHandler"),
	}
}

// Handle passes the body to the service byte for byte; the gateway signs
// the exact payload it sent, so it must not be decoded first.
func (h *WebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("Webhook body too large", zap.Int64("limit", tooLarge.Limit))
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.APIErrorResponse{
				Code:  "PAYLOAD_TOO_LARGE",
				Error: "Request body too large",
			})
			return
		}
		_ = c.Error(fmt.Errorf("%w: unreadable body", ierr.ErrValidation))
		return
	}

	ack, err := h.service.HandleWebhook(c.Request.Context(), body, c.GetHeader(WebhookSignatureHeader))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.OK(ack))
}
