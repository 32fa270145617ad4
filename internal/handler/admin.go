package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/makkenzo/ledgerpro-license-api/internal/handler/dto"
	"github.com/makkenzo/ledgerpro-license-api/internal/ierr"
	"github.com/makkenzo/ledgerpro-license-api/internal/service"
	"go.uber.org/zap"
)

type AdminHandler struct {
	admin  *service.AdminService
	auth   *service.AuthService
	logger *zap.Logger
}

func NewAdminHandler(admin *service.AdminService, auth *service.AuthService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		admin:  admin,
		auth:   auth,
		logger: logger.Named("AdminHandler"),
	}
}

func (h *AdminHandler) Dashboard(c *gin.Context) {
	dashboard, err := h.admin.GetDashboardStats(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.OK(dashboard))
}

func (h *AdminHandler) ListCustomers(c *gin.Context) {
	var q dto.ListCustomersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	page, err := h.admin.ListCustomers(c.Request.Context(), q.Page, q.Limit)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.OK(page))
}

func (h *AdminHandler) UpdatePricing(c *gin.Context) {
	var req dto.UpdatePricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	prices, err := h.admin.UpdatePricing(c.Request.Context(), *req.Professional, *req.Enterprise)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.logger.Info("Pricing updated", zap.Int64("professional", prices.Professional), zap.Int64("enterprise", prices.Enterprise))
	c.JSON(http.StatusOK, dto.OKWithMessage(prices, "Pricing updated successfully"))
}

func (h *AdminHandler) RegenerateKey(c *gin.Context) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.logger.Debug("Invalid customer id", zap.String("id_param", idStr))
		_ = c.Error(fmt.Errorf("%w: invalid customer id", ierr.ErrValidation))
		return
	}

	regen, err := h.admin.RegenerateLicenseKey(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.OKWithMessage(regen, "License key regenerated"))
}

// RealtimeToken issues a short-lived token an admin browser passes as
// ?token= when opening the websocket.
func (h *AdminHandler) RealtimeToken(c *gin.Context) {
	token, expiresAt, err := h.auth.IssueRealtimeToken()
	if err != nil {
		_ = c.Error(fmt.Errorf("%w: %w", ierr.ErrInternalServer, err))
		return
	}

	c.JSON(http.StatusOK, dto.OK(dto.RealtimeTokenResponse{Token: token, ExpiresAt: expiresAt}))
}
