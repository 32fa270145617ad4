// Package notify delivers customer and sales notifications. Engine code
// only sees the Sink contract; delivery is queued through asynq and carried
// out by the SMTP mailer in the worker.
package notify

import (
	"context"
	"time"
)

type Kind string

const (
	KindWelcome         Kind = "welcome"
	KindLicenseKey      Kind = "license_key"
	KindPaymentFailed   Kind = "payment_failed"
	KindEnterpriseSales Kind = "enterprise_sales"
)

func (k Kind) Valid() bool {
	switch k {
	case KindWelcome, KindLicenseKey, KindPaymentFailed, KindEnterpriseSales:
		return true
	}
	return false
}

// Notification is also the email:send task payload, so field names are part
// of the queue format.
type Notification struct {
	Kind         Kind       `json:"kind"`
	To           string     `json:"to,omitempty"`
	BusinessName string     `json:"businessName"`
	LicenseKey   string     `json:"licenseKey,omitempty"`
	LicenseType  string     `json:"licenseType,omitempty"`
	Platform     string     `json:"platform,omitempty"`
	ExpiryDate   *time.Time `json:"expiryDate,omitempty"`
	Reason       string     `json:"reason,omitempty"`

	// Lead details for the sales team.
	CustomerEmail string `json:"customerEmail,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Industry      string `json:"industry,omitempty"`
	BusinessNeeds string `json:"businessNeeds,omitempty"`
}

type Sink interface {
	Send(ctx context.Context, n Notification) error
}
