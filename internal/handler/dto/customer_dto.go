package dto

import (
	"github.com/makkenzo/ledgerpro-license-api/internal/domain/customer"
	"github.com/makkenzo/ledgerpro-license-api/internal/service"
)

type RegisterRequest struct {
	BusinessName  string `json:"businessName" binding:"required,max=200"`
	Email         string `json:"email" binding:"required,max=254"`
	Phone         string `json:"phone" binding:"required,max=32"`
	Industry      string `json:"industry" binding:"required,oneof=retail wholesale manufacturing services other"`
	Platform      string `json:"platform" binding:"required,oneof=windows android"`
	LicenseType   string `json:"licenseType" binding:"required,oneof=demo professional enterprise"`
	BusinessNeeds string `json:"businessNeeds" binding:"max=2000"`
}

// Input converts the request for the license service, which normalizes the
// email and re-validates every field.
func (r RegisterRequest) Input() service.RegisterInput {
	return service.RegisterInput{
		BusinessName:  r.BusinessName,
		Email:         r.Email,
		Phone:         r.Phone,
		Industry:      customer.Industry(r.Industry),
		Platform:      customer.Platform(r.Platform),
		LicenseType:   customer.LicenseType(r.LicenseType),
		BusinessNeeds: r.BusinessNeeds,
	}
}

// VerifyPaymentRequest mirrors the fields the checkout widget hands back on
// success.
type VerifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id" binding:"required"`
	PaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature string `json:"razorpay_signature" binding:"required"`
}

type VerifyLicenseRequest struct {
	LicenseKey string `json:"licenseKey" binding:"required"`
}

type TrackDownloadRequest struct {
	LicenseKey string `json:"licenseKey" binding:"required"`
	Platform   string `json:"platform" binding:"required,oneof=windows android"`
	Version    string `json:"version" binding:"max=64"`
}
