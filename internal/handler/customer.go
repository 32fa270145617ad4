package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/makkenzo/ledgerpro-license-api/internal/domain/customer"
	"github.com/makkenzo/ledgerpro-license-api/internal/handler/dto"
	"github.com/makkenzo/ledgerpro-license-api/internal/ierr"
	"github.com/makkenzo/ledgerpro-license-api/internal/service"
	"go.uber.org/zap"
)

type CustomerHandler struct {
	service *service.LicenseService
	logger  *zap.Logger
}

func NewCustomerHandler(service *service.LicenseService, logger *zap.Logger) *CustomerHandler {
	return &CustomerHandler{
		service: service,
		logger:  logger.Named("CustomerHandler"),
	}
}

func (h *CustomerHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Failed to bind registration request", zap.Error(err))
		_ = c.Error(bindError(err))
		return
	}

	result, err := h.service.Register(c.Request.Context(), req.Input())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.OKWithMessage(result, result.Message))
}

func (h *CustomerHandler) VerifyPayment(c *gin.Context) {
	var req dto.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	issued, err := h.service.VerifyPayment(c.Request.Context(), req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.OK(issued))
}

func (h *CustomerHandler) PaymentStatus(c *gin.Context) {
	status, err := h.service.GetPaymentStatus(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.OK(status))
}

func (h *CustomerHandler) VerifyLicense(c *gin.Context) {
	var req dto.VerifyLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	verification, err := h.service.VerifyLicense(c.Request.Context(), req.LicenseKey)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.OK(verification))
}

func (h *CustomerHandler) TrackDownload(c *gin.Context) {
	var req dto.TrackDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	receipt, err := h.service.TrackDownload(c.Request.Context(), service.TrackDownloadInput{
		LicenseKey: req.LicenseKey,
		Platform:   customer.Platform(req.Platform),
		Version:    req.Version,
		SourceIP:   c.ClientIP(),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.OKWithMessage(receipt, "Download tracked successfully"))
}

// bindError keeps validator field errors for per-field rendering and turns
// anything else (malformed JSON, wrong types) into a validation error.
func bindError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return err
	}
	return fmt.Errorf("%w: malformed request body", ierr.ErrValidation)
}
