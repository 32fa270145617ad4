package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/ledgerpro-license-api/internal/domain/customer"
	"github.com/makkenzo/ledgerpro-license-api/internal/pricing"
)

type PriceSource interface {
	Current() pricing.Prices
}

// Publisher receives admin-facing events. Delivery is fire-and-forget.
type Publisher interface {
	PublishAdmin(eventType string, data any)
}

// ClaimGuard serializes concurrent deliveries of the same webhook event.
type ClaimGuard interface {
	Claim(ctx context.Context, event, paymentID string) (bool, error)
	Release(ctx context.Context, event, paymentID string) error
}

type RegisterInput struct {
	BusinessName  string
	Email         string
	Phone         string
	Industry      customer.Industry
	Platform      customer.Platform
	BusinessNeeds string
	LicenseType   customer.LicenseType
}

type CustomerSummary struct {
	ID           uuid.UUID `json:"id"`
	BusinessName string    `json:"businessName"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	LicenseKey   string    `json:"licenseKey,omitempty"`
}

type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

// PaymentConfig is everything the checkout widget needs to collect payment
// for an order created at registration.
type PaymentConfig struct {
	Key         string  `json:"key"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	OrderID     string  `json:"order_id"`
	Prefill     Prefill `json:"prefill"`
}

type RegistrationResult struct {
	Customer      CustomerSummary      `json:"customer"`
	LicenseType   customer.LicenseType `json:"licenseType"`
	LicenseKey    string               `json:"licenseKey,omitempty"`
	ExpiryDate    *time.Time           `json:"expiryDate,omitempty"`
	DownloadURL   string               `json:"downloadUrl,omitempty"`
	PaymentConfig *PaymentConfig       `json:"paymentConfig,omitempty"`
	Message       string               `json:"-"`
}

type LicenseIssuance struct {
	LicenseKey  string     `json:"licenseKey"`
	ExpiryDate  *time.Time `json:"expiryDate"`
	DownloadURL string     `json:"downloadUrl"`
}

type WebhookAck struct {
	Event     string `json:"event"`
	Processed bool   `json:"processed"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

type LicenseVerification struct {
	IsValid     bool                   `json:"isValid"`
	LicenseType customer.LicenseType   `json:"licenseType"`
	Status      customer.LicenseStatus `json:"status"`
	ExpiryDate  *time.Time             `json:"expiryDate"`
	Features    []string               `json:"features"`
}

type TrackDownloadInput struct {
	LicenseKey string
	Platform   customer.Platform
	Version    string
	SourceIP   string
}

type DownloadReceipt struct {
	DownloadURL string `json:"downloadUrl"`
}

type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "completed"
	PaymentPending   PaymentStatus = "pending"
	PaymentFailed    PaymentStatus = "failed"
)

type PaymentStatusResult struct {
	OrderID     string          `json:"orderId"`
	Status      PaymentStatus   `json:"status"`
	OrderStatus string          `json:"orderStatus"`
	Amount      int64           `json:"amount"`
	Currency    string          `json:"currency"`
	Customer    CustomerSummary `json:"customer"`
}

type KeyRegeneration struct {
	CustomerID uuid.UUID `json:"customerId"`
	LicenseKey string    `json:"licenseKey"`
}
