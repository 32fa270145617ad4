package ierr

import "errors"

var (
	ErrValidation     = errors.New("validation failed")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource conflict")
	ErrInternalServer = errors.New("internal server error")

	ErrDuplicateEmail          = errors.New("email already registered")
	ErrDuplicateLicenseKey     = errors.New("license key already issued")
	ErrInvalidLicenseType      = errors.New("invalid license type")
	ErrInvalidSignature        = errors.New("invalid signature")
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")
	ErrPaymentNotCaptured      = errors.New("payment not captured")
	ErrDownloadNotPermitted    = errors.New("download not allowed for this platform")
	ErrGatewayUnavailable      = errors.New("payment gateway unavailable")
	ErrRegistrationFailed      = errors.New("registration failed")
	ErrInvalidToken            = errors.New("invalid or expired token")
)
