// Package pricing owns the current license prices. Prices are whole major
// currency units; conversion to gateway minor units happens at order time.
package pricing

import (
	"fmt"
	"sync"

	"github.com/makkenzo/ledgerpro-license-api/internal/domain/customer"
	"github.com/makkenzo/ledgerpro-license-api/internal/ierr"
	"go.uber.org/zap"
)

const (
	DefaultProfessional int64 = 599
	DefaultEnterprise   int64 = 999
)

type Prices struct {
	Professional int64 `json:"professional"`
	Enterprise   int64 `json:"enterprise"`
}

// For returns the price of a paid tier.
func (p Prices) For(t customer.LicenseType) (int64, bool) {
	switch t {
	case customer.LicenseProfessional:
		return p.Professional, true
	case customer.LicenseEnterprise:
		return p.Enterprise, true
	}
	return 0, false
}

type Listener func(Prices)

// Service is the single writer of the price table.
type Service struct {
	mu        sync.RWMutex
	prices    Prices
	listeners []Listener
	logger    *zap.Logger
}

func NewService(initial Prices, logger *zap.Logger) *Service {
	if initial.Professional <= 0 {
		initial.Professional = DefaultProfessional
	}
	if initial.Enterprise <= 0 {
		initial.Enterprise = DefaultEnterprise
	}
	return &Service{
		prices: initial,
		logger: logger.Named("PricingService"),
	}
}

func (s *Service) Current() Prices {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prices
}

// Subscribe registers l to be called with the new prices after every update.
func (s *Service) Subscribe(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

func (s *Service) Update(professional, enterprise int64) (Prices, error) {
	if professional < 0 {
		return Prices{}, fmt.Errorf("%w: invalid professional price", ierr.ErrValidation)
	}
	if enterprise < 0 {
		return Prices{}, fmt.Errorf("%w: invalid enterprise price", ierr.ErrValidation)
	}

	s.mu.Lock()
	old := s.prices
	s.prices = Prices{Professional: professional, Enterprise: enterprise}
	updated := s.prices
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	s.logger.Info("Prices updated",
		zap.Int64("professional_old", old.Professional),
		zap.Int64("professional", updated.Professional),
		zap.Int64("enterprise_old", old.Enterprise),
		zap.Int64("enterprise", updated.Enterprise),
	)

	for _, l := range listeners {
		l(updated)
	}
	return updated, nil
}
