package customer

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Industry string

const (
	IndustryRetail        Industry = "retail"
	IndustryWholesale     Industry = "wholesale"
	IndustryManufacturing Industry = "manufacturing"
	IndustryServices      Industry = "services"
	IndustryOther         Industry = "other"
)

func (i Industry) Valid() bool {
	switch i {
	case IndustryRetail, IndustryWholesale, IndustryManufacturing, IndustryServices, IndustryOther:
		return true
	}
	return false
}

type Platform string

const (
	PlatformWindows Platform = "windows"
	PlatformAndroid Platform = "android"
)

func (p Platform) Valid() bool {
	return p == PlatformWindows || p == PlatformAndroid
}

type LicenseType string

const (
	LicenseDemo         LicenseType = "demo"
	LicenseProfessional LicenseType = "professional"
	LicenseEnterprise   LicenseType = "enterprise"
)

func (t LicenseType) Valid() bool {
	switch t {
	case LicenseDemo, LicenseProfessional, LicenseEnterprise:
		return true
	}
	return false
}

// Paid reports whether the tier is activated through a gateway payment.
func (t LicenseType) Paid() bool {
	return t == LicenseProfessional || t == LicenseEnterprise
}

type LicenseStatus string

const (
	StatusPending       LicenseStatus = "pending"
	StatusActive        LicenseStatus = "active"
	StatusExpired       LicenseStatus = "expired"
	StatusPaymentFailed LicenseStatus = "payment_failed"
	StatusCancelled     LicenseStatus = "cancelled"
	StatusSuspended     LicenseStatus = "suspended"
)

type License struct {
	Type           LicenseType   `json:"type"`
	Key            string        `json:"key,omitempty"`
	Status         LicenseStatus `json:"status"`
	StartDate      *time.Time    `json:"start_date,omitempty"`
	EndDate        *time.Time    `json:"end_date,omitempty"`
	ActivationDate *time.Time    `json:"activation_date,omitempty"`
	LastVerified   *time.Time    `json:"last_verified,omitempty"`
}

type Download struct {
	Platform  Platform  `json:"platform"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	SourceIP  string    `json:"source_ip,omitempty"`
}

// PaymentRecord statuses.
const (
	PaymentCreated  = "created"
	PaymentCaptured = "captured"
	PaymentFailed   = "failed"
)

type PaymentRecord struct {
	OrderID   string    `json:"order_id"`
	PaymentID string    `json:"payment_id,omitempty"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type Customer struct {
	ID            uuid.UUID `json:"id"`
	BusinessName  string    `json:"business_name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Industry      Industry  `json:"industry"`
	Platform      Platform  `json:"platform"`
	BusinessNeeds string    `json:"business_needs,omitempty"`

	License License `json:"license"`

	GatewayOrderID   string `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string `json:"gateway_payment_id,omitempty"`
	GatewaySignature string `json:"-"`

	Downloads []Download      `json:"downloads"`
	Payments  []PaymentRecord `json:"payments"`

	// Version is bumped by every successful store update and guards
	// concurrent writers against lost updates.
	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeEmail is the canonical form used for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email parses as a bare address.
func ValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// IsLicenseValid is a pure function of the license status and dates.
// A demo license is valid while active unless an end date is set and has
// passed. A paid license is valid only while active and now <= end date.
func (c *Customer) IsLicenseValid(now time.Time) bool {
	if c.License.Status != StatusActive {
		return false
	}
	end := c.License.EndDate
	if c.License.Type == LicenseDemo {
		return end == nil || !now.After(*end)
	}
	if end == nil {
		return false
	}
	return !now.After(*end)
}

func (c *Customer) CanDownload(platform Platform, now time.Time) bool {
	return c.Platform == platform && c.IsLicenseValid(now)
}

// Activate moves the license to active with the given key and end date.
// ActivationDate and StartDate are only set on the first activation.
func (c *Customer) Activate(key string, endDate, now time.Time) {
	c.License.Key = key
	c.License.Status = StatusActive
	c.License.EndDate = &endDate
	if c.License.ActivationDate == nil {
		c.License.ActivationDate = &now
	}
	if c.License.StartDate == nil {
		c.License.StartDate = &now
	}
}

// HasPaymentRecord reports whether the payment history holds paymentID with
// the given status.
func (c *Customer) HasPaymentRecord(paymentID, status string) bool {
	if paymentID == "" {
		return false
	}
	for _, p := range c.Payments {
		if p.PaymentID == paymentID && p.Status == status {
			return true
		}
	}
	return false
}

// HasCapturedPayment reports whether paymentID has already been applied to
// this customer. It looks only at the payment history, so a replay stays a
// no-op after the license has expired or been suspended.
func (c *Customer) HasCapturedPayment(paymentID string) bool {
	return c.HasPaymentRecord(paymentID, PaymentCaptured)
}

func (c *Customer) RecordPayment(rec PaymentRecord) {
	c.Payments = append(c.Payments, rec)
}

func (c *Customer) RecordDownload(d Download) {
	c.Downloads = append(c.Downloads, d)
}
