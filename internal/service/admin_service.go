package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/ledgerpro-license-api/internal/domain/customer"
	"github.com/makkenzo/ledgerpro-license-api/internal/ierr"
	"github.com/makkenzo/ledgerpro-license-api/internal/pricing"
	"go.uber.org/zap"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

type PriceUpdater interface {
	PriceSource
	Update(professional, enterprise int64) (pricing.Prices, error)
}

type CustomerListItem struct {
	ID           uuid.UUID              `json:"id"`
	BusinessName string                 `json:"businessName"`
	Email        string                 `json:"email"`
	Platform     customer.Platform      `json:"platform"`
	LicenseType  customer.LicenseType   `json:"licenseType"`
	Status       customer.LicenseStatus `json:"status"`
	LicenseKey   string                 `json:"licenseKey,omitempty"`
	EndDate      *time.Time             `json:"endDate,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
}

type Pagination struct {
	Total   int64 `json:"total"`
	Pages   int64 `json:"pages"`
	Current int   `json:"current"`
	Limit   int   `json:"limit"`
}

type CustomerPage struct {
	Customers  []CustomerListItem `json:"customers"`
	Pagination Pagination         `json:"pagination"`
}

type DashboardStats struct {
	Total  int64 `json:"total"`
	Active int64 `json:"active"`
	Paid   int64 `json:"paid"`
}

type Dashboard struct {
	Stats   DashboardStats `json:"stats"`
	Pricing pricing.Prices `json:"pricing"`
}

type AdminService struct {
	repo     customer.Repository
	prices   PriceUpdater
	licenses *LicenseService
	logger   *zap.Logger
}

func NewAdminService(repo customer.Repository, prices PriceUpdater, licenses *LicenseService, logger *zap.Logger) *AdminService {
	return &AdminService{
		repo:     repo,
		prices:   prices,
		licenses: licenses,
		logger:   logger.Named("AdminService"),
	}
}

// ListCustomers pages through customers newest first. Non-positive page or
// limit fall back to 1 and 10.
func (s *AdminService) ListCustomers(ctx context.Context, page, limit int) (*CustomerPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	customers, total, err := s.repo.List(ctx, customer.ListParams{
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		s.logger.Error("Failed to list customers", zap.Error(err))
		return nil, fmt.Errorf("%w: list customers", ierr.ErrInternalServer)
	}

	items := make([]CustomerListItem, 0, len(customers))
	for _, c := range customers {
		items = append(items, CustomerListItem{
			ID:           c.ID,
			BusinessName: c.BusinessName,
			Email:        c.Email,
			Platform:     c.Platform,
			LicenseType:  c.License.Type,
			Status:       c.License.Status,
			LicenseKey:   c.License.Key,
			EndDate:      c.License.EndDate,
			CreatedAt:    c.CreatedAt,
		})
	}

	return &CustomerPage{
		Customers: items,
		Pagination: Pagination{
			Total:   total,
			Pages:   (total + int64(limit) - 1) / int64(limit),
			Current: page,
			Limit:   limit,
		},
	}, nil
}

// GetDashboardStats counts all customers, active licenses and professional
// customers, alongside the current prices.
func (s *AdminService) GetDashboardStats(ctx context.Context) (*Dashboard, error) {
	active := customer.StatusActive
	professional := customer.LicenseProfessional

	var stats DashboardStats
	counts := []struct {
		dst    *int64
		filter customer.CountFilter
	}{
		{&stats.Total, customer.CountFilter{}},
		{&stats.Active, customer.CountFilter{Status: &active}},
		{&stats.Paid, customer.CountFilter{Type: &professional}},
	}
	for _, q := range counts {
		n, err := s.repo.Count(ctx, q.filter)
		if err != nil {
			s.logger.Error("Failed to count customers for dashboard", zap.Error(err))
			return nil, fmt.Errorf("%w: dashboard counts", ierr.ErrInternalServer)
		}
		*q.dst = n
	}

	return &Dashboard{Stats: stats, Pricing: s.prices.Current()}, nil
}

// UpdatePricing stores new prices; subscribers of the pricing service
// broadcast them to connected clients.
func (s *AdminService) UpdatePricing(ctx context.Context, professional, enterprise int64) (pricing.Prices, error) {
	return s.prices.Update(professional, enterprise)
}

func (s *AdminService) RegenerateLicenseKey(ctx context.Context, customerID uuid.UUID) (*KeyRegeneration, error) {
	return s.licenses.RegenerateLicenseKey(ctx, customerID)
}
