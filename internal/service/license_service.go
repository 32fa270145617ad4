package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/ledgerpro-license-api/internal/config"
	"github.com/makkenzo/ledgerpro-license-api/internal/domain/customer"
	"github.com/makkenzo/ledgerpro-license-api/internal/gateway"
	"github.com/makkenzo/ledgerpro-license-api/internal/ierr"
	"github.com/makkenzo/ledgerpro-license-api/internal/metrics"
	"github.com/makkenzo/ledgerpro-license-api/internal/notify"
	"github.com/makkenzo/ledgerpro-license-api/internal/realtime"
	"github.com/makkenzo/ledgerpro-license-api/internal/util"
	"go.uber.org/zap"
)

const (
	productName = "LedgerPro"

	// maxWriteAttempts bounds the reload-and-reapply loop taken on version
	// conflicts and license key collisions.
	maxWriteAttempts = 3
)

type LicenseSettings struct {
	KeyID           string
	KeySecret       string
	WebhookSecret   string
	Currency        string
	DownloadBaseURL string
}

func NewLicenseSettings(cfg *config.Config) LicenseSettings {
	return LicenseSettings{
		KeyID:           cfg.Razorpay.KeyID,
		KeySecret:       cfg.Razorpay.KeySecret,
		WebhookSecret:   cfg.Razorpay.WebhookSecret,
		Currency:        cfg.Razorpay.Currency,
		DownloadBaseURL: cfg.Download.BaseURL,
	}
}

// LicenseServiceDeps groups the collaborators of LicenseService. Publisher
// and Guard are optional.
type LicenseServiceDeps struct {
	Repo      customer.Repository
	Gateway   gateway.Gateway
	Keys      *util.LicenseKeyGenerator
	Notifier  notify.Sink
	Prices    PriceSource
	Publisher Publisher
	Guard     ClaimGuard
}

// LicenseService drives a customer's license through registration, payment
// confirmation, key issuance, validity checks and download entitlement.
// It holds no locks; the store's unique indexes and version check are the
// only synchronization.
type LicenseService struct {
	repo      customer.Repository
	gateway   gateway.Gateway
	keys      *util.LicenseKeyGenerator
	notifier  notify.Sink
	prices    PriceSource
	publisher Publisher
	guard     ClaimGuard
	settings  LicenseSettings
	now       func() time.Time
	logger    *zap.Logger
}

func NewLicenseService(deps LicenseServiceDeps, settings LicenseSettings, logger *zap.Logger) *LicenseService {
	if settings.Currency == "" {
		settings.Currency = "INR"
	}
	return &LicenseService{
		repo:      deps.Repo,
		gateway:   deps.Gateway,
		keys:      deps.Keys,
		notifier:  deps.Notifier,
		prices:    deps.Prices,
		publisher: deps.Publisher,
		guard:     deps.Guard,
		settings:  settings,
		now:       time.Now,
		logger:    logger.Named("LicenseService"),
	}
}

func (s *LicenseService) Register(ctx context.Context, in RegisterInput) (*RegistrationResult, error) {
	in.BusinessName = strings.TrimSpace(in.BusinessName)
	in.Email = customer.NormalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.BusinessNeeds = strings.TrimSpace(in.BusinessNeeds)

	if err := validateRegistration(in); err != nil {
		metrics.RegistrationsTotal.WithLabelValues(string(in.LicenseType), "invalid").Inc()
		return nil, err
	}

	s.logger.Info("Attempting to register customer", zap.String("license_type", string(in.LicenseType)), zap.String("platform", string(in.Platform)))

	now := s.now().UTC()
	c := &customer.Customer{
		ID:            uuid.New(),
		BusinessName:  in.BusinessName,
		Email:         in.Email,
		Phone:         in.Phone,
		Industry:      in.Industry,
		Platform:      in.Platform,
		BusinessNeeds: in.BusinessNeeds,
		License: customer.License{
			Type:   in.LicenseType,
			Status: customer.StatusPending,
		},
	}

	var (
		result *RegistrationResult
		err    error
	)
	switch in.LicenseType {
	case customer.LicenseDemo:
		result, err = s.registerDemo(ctx, c, now)
	case customer.LicenseProfessional:
		result, err = s.registerProfessional(ctx, c, now)
	case customer.LicenseEnterprise:
		result, err = s.registerEnterprise(ctx, c)
	}

	if err != nil {
		outcome := "failed"
		if errors.Is(err, ierr.ErrDuplicateEmail) {
			outcome = "duplicate"
		}
		metrics.RegistrationsTotal.WithLabelValues(string(in.LicenseType), outcome).Inc()
		return nil, err
	}

	metrics.RegistrationsTotal.WithLabelValues(string(in.LicenseType), "success").Inc()
	s.publish(realtime.TypeCustomerRegistered, map[string]any{
		"customerId":   c.ID,
		"businessName": c.BusinessName,
		"email":        c.Email,
		"licenseType":  c.License.Type,
		"status":       c.License.Status,
	})
	s.logger.Info("Customer registered", zap.String("customer_id", c.ID.String()), zap.String("license_type", string(c.License.Type)))
	return result, nil
}

func validateRegistration(in RegisterInput) error {
	var problems []string
	if in.BusinessName == "" {
		problems = append(problems, "businessName is required")
	}
	if in.Email == "" || !customer.ValidEmail(in.Email) {
		problems = append(problems, "email is invalid")
	}
	if in.Phone == "" {
		problems = append(problems, "phone is required")
	}
	if !in.Industry.Valid() {
		problems = append(problems, fmt.Sprintf("industry %q is not supported", in.Industry))
	}
	if !in.Platform.Valid() {
		problems = append(problems, fmt.Sprintf("platform %q is not supported", in.Platform))
	}
	if !in.LicenseType.Valid() {
		problems = append(problems, fmt.Sprintf("licenseType %q is not supported", in.LicenseType))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ierr.ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

func (s *LicenseService) registerDemo(ctx context.Context, c *customer.Customer, now time.Time) (*RegistrationResult, error) {
	end, err := util.CalculateExpiryDate(customer.LicenseDemo, now)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		key := s.keys.GenerateLicenseKey(c.ID.String(), now.Add(time.Duration(attempt)))
		c.Activate(key, end, now)

		err = s.repo.Create(ctx, c)
		if err == nil {
			break
		}
		if errors.Is(err, ierr.ErrDuplicateLicenseKey) && attempt+1 < maxWriteAttempts {
			s.logger.Warn("License key collision on registration, regenerating", zap.Int("attempt", attempt+1))
			continue
		}
		return nil, s.createError(err)
	}

	s.notify(ctx, notify.Notification{
		Kind:         notify.KindWelcome,
		To:           c.Email,
		BusinessName: c.BusinessName,
		LicenseKey:   c.License.Key,
		LicenseType:  string(c.License.Type),
		Platform:     string(c.Platform),
		ExpiryDate:   c.License.EndDate,
	})

	summary := summarize(c)
	summary.LicenseKey = c.License.Key
	return &RegistrationResult{
		Customer:    summary,
		LicenseType: c.License.Type,
		LicenseKey:  c.License.Key,
		ExpiryDate:  c.License.EndDate,
		DownloadURL: s.DownloadURL(c.Platform, ""),
		Message:     "Registration successful. Please check your email for the license key.",
	}, nil
}

func (s *LicenseService) registerProfessional(ctx context.Context, c *customer.Customer, now time.Time) (*RegistrationResult, error) {
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, s.createError(err)
	}

	price, _ := s.prices.Current().For(customer.LicenseProfessional)
	order, err := s.gateway.CreateOrder(ctx, gateway.OrderRequest{
		Amount:   price * 100,
		Currency: s.settings.Currency,
		Receipt:  receiptFor(c.ID),
		Notes: map[string]string{
			"customerId":  c.ID.String(),
			"licenseType": string(c.License.Type),
		},
	})
	if err != nil {
		s.logger.Error("Failed to create payment order", zap.String("customer_id", c.ID.String()), zap.Error(err))
		s.rollback(ctx, c.ID)
		return nil, fmt.Errorf("%w: %w", ierr.ErrRegistrationFailed, err)
	}

	c.GatewayOrderID = order.ID
	c.RecordPayment(customer.PaymentRecord{
		OrderID:   order.ID,
		Amount:    order.Amount,
		Currency:  order.Currency,
		Status:    customer.PaymentCreated,
		Timestamp: now,
	})
	if err := s.repo.Update(ctx, c); err != nil {
		s.logger.Error("Failed to store payment order on customer", zap.String("customer_id", c.ID.String()), zap.Error(err))
		s.rollback(ctx, c.ID)
		return nil, fmt.Errorf("%w: %w", ierr.ErrRegistrationFailed, err)
	}

	return &RegistrationResult{
		Customer:    summarize(c),
		LicenseType: c.License.Type,
		PaymentConfig: &PaymentConfig{
			Key:         s.settings.KeyID,
			Amount:      order.Amount,
			Currency:    order.Currency,
			Name:        productName,
			Description: "Professional License",
			OrderID:     order.ID,
			Prefill: Prefill{
				Name:    c.BusinessName,
				Email:   c.Email,
				Contact: c.Phone,
			},
		},
		Message: "Please complete the payment to receive your license key.",
	}, nil
}

func (s *LicenseService) registerEnterprise(ctx context.Context, c *customer.Customer) (*RegistrationResult, error) {
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, s.createError(err)
	}

	s.notify(ctx, notify.Notification{
		Kind:          notify.KindEnterpriseSales,
		BusinessName:  c.BusinessName,
		Platform:      string(c.Platform),
		CustomerEmail: c.Email,
		Phone:         c.Phone,
		Industry:      string(c.Industry),
		BusinessNeeds: c.BusinessNeeds,
	})

	return &RegistrationResult{
		Customer:    summarize(c),
		LicenseType: c.License.Type,
		Message:     "Thank you for your interest. Our sales team will contact you shortly.",
	}, nil
}

func (s *LicenseService) createError(err error) error {
	if errors.Is(err, ierr.ErrDuplicateEmail) {
		s.logger.Info("Registration rejected, email already registered")
		return err
	}
	s.logger.Error("Failed to persist new customer", zap.Error(err))
	return fmt.Errorf("%w: %w", ierr.ErrRegistrationFailed, err)
}

// rollback removes a customer created earlier in the same registration.
// Failures are logged only.
func (s *LicenseService) rollback(ctx context.Context, id uuid.UUID) {
	if err := s.repo.Delete(context.WithoutCancel(ctx), id); err != nil {
		s.logger.Error("Failed to clean up customer record after registration error", zap.String("customer_id", id.String()), zap.Error(err))
		return
	}
	s.logger.Info("Cleaned up customer record after registration error", zap.String("customer_id", id.String()))
}

// VerifyPayment confirms a checkout completed on the client. The signature
// is checked before any lookup so that a forged request touches nothing.
func (s *LicenseService) VerifyPayment(ctx context.Context, orderID, paymentID, signature string) (*LicenseIssuance, error) {
	if orderID == "" || paymentID == "" || signature == "" {
		return nil, fmt.Errorf("%w: orderId, paymentId and signature are required", ierr.ErrValidation)
	}

	if !util.VerifyHex(s.settings.KeySecret, util.PaymentSignaturePayload(orderID, paymentID), signature) {
		metrics.PaymentVerificationsTotal.WithLabelValues("bad_signature").Inc()
		s.logger.Warn("Payment signature mismatch", zap.String("order_id", orderID))
		return nil, ierr.ErrInvalidSignature
	}

	c, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		metrics.PaymentVerificationsTotal.WithLabelValues("failed").Inc()
		return nil, lookupError(err, "no customer for order "+orderID)
	}

	if c.HasCapturedPayment(paymentID) {
		metrics.PaymentVerificationsTotal.WithLabelValues("replayed").Inc()
		return s.issuance(c), nil
	}

	payment, err := s.gateway.FetchPayment(ctx, paymentID)
	if err != nil {
		metrics.PaymentVerificationsTotal.WithLabelValues("failed").Inc()
		s.logger.Error("Failed to fetch payment from gateway", zap.String("payment_id", paymentID), zap.Error(err))
		return nil, err
	}
	if payment.Status != gateway.PaymentStatusCaptured {
		metrics.PaymentVerificationsTotal.WithLabelValues("not_captured").Inc()
		s.logger.Warn("Payment not captured", zap.String("payment_id", paymentID), zap.String("status", payment.Status))
		return nil, fmt.Errorf("%w: payment status is %s", ierr.ErrPaymentNotCaptured, payment.Status)
	}
	if payment.OrderID != "" && payment.OrderID != orderID {
		metrics.PaymentVerificationsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: payment does not belong to order", ierr.ErrValidation)
	}

	c, fresh, err := s.applyCapture(ctx, c, capture{
		paymentID: paymentID,
		signature: signature,
		amount:    payment.Amount,
		currency:  payment.Currency,
	})
	if err != nil {
		metrics.PaymentVerificationsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	if fresh {
		metrics.PaymentVerificationsTotal.WithLabelValues("activated").Inc()
		s.afterCapture(ctx, c)
	} else {
		metrics.PaymentVerificationsTotal.WithLabelValues("replayed").Inc()
	}
	return s.issuance(c), nil
}

// HandleWebhook verifies raw against the webhook secret before decoding it.
// raw must be the exact request body.
func (s *LicenseService) HandleWebhook(ctx context.Context, raw []byte, signature string) (*WebhookAck, error) {
	if !util.VerifyHex(s.settings.WebhookSecret, raw, signature) {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "bad_signature").Inc()
		s.logger.Warn("Webhook signature mismatch", zap.Int("body_bytes", len(raw)))
		return nil, ierr.ErrInvalidWebhookSignature
	}

	event, err := gateway.ParseEvent(raw)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "malformed").Inc()
		s.logger.Warn("Malformed webhook payload", zap.Error(err))
		return nil, err
	}

	switch e := event.(type) {
	case gateway.PaymentCaptured:
		return s.guarded(ctx, e.Name(), e.Payment, s.onPaymentCaptured)
	case gateway.PaymentFailed:
		return s.guarded(ctx, e.Name(), e.Payment, s.onPaymentFailed)
	default:
		metrics.WebhookEventsTotal.WithLabelValues("other", "ignored").Inc()
		s.logger.Debug("Ignoring webhook event", zap.String("event", e.Name()))
		return &WebhookAck{Event: e.Name()}, nil
	}
}

type webhookFunc func(ctx context.Context, p gateway.Payment) (bool, error)

// guarded runs fn under a short-lived claim on (event, payment id). A
// delivery that loses the claim is acknowledged as a duplicate; the winner
// releases its claim on failure so the gateway retry can run.
func (s *LicenseService) guarded(ctx context.Context, event string, p gateway.Payment, fn webhookFunc) (*WebhookAck, error) {
	ack := &WebhookAck{Event: event}

	claimed := false
	if s.guard != nil {
		ok, err := s.guard.Claim(ctx, event, p.ID)
		switch {
		case err != nil:
			s.logger.Warn("Webhook claim unavailable, relying on store version check", zap.Error(err))
		case !ok:
			metrics.WebhookEventsTotal.WithLabelValues(event, "duplicate").Inc()
			ack.Duplicate = true
			return ack, nil
		default:
			claimed = true
		}
	}

	processed, err := fn(ctx, p)
	if err != nil {
		if claimed {
			if relErr := s.guard.Release(context.WithoutCancel(ctx), event, p.ID); relErr != nil {
				s.logger.Warn("Failed to release webhook claim", zap.Error(relErr))
			}
		}
		metrics.WebhookEventsTotal.WithLabelValues(event, "failed").Inc()
		return nil, err
	}

	ack.Processed = processed
	ack.Duplicate = !processed
	outcome := "processed"
	if !processed {
		outcome = "duplicate"
	}
	metrics.WebhookEventsTotal.WithLabelValues(event, outcome).Inc()
	return ack, nil
}

func (s *LicenseService) onPaymentCaptured(ctx context.Context, p gateway.Payment) (bool, error) {
	c, err := s.repo.FindByOrderID(ctx, p.OrderID)
	if err != nil {
		return false, lookupError(err, "no customer for order "+p.OrderID)
	}

	c, fresh, err := s.applyCapture(ctx, c, capture{
		paymentID: p.ID,
		amount:    p.Amount,
		currency:  p.Currency,
	})
	if err != nil {
		return false, err
	}
	if !fresh {
		s.logger.Info("Duplicate payment.captured delivery ignored", zap.String("customer_id", c.ID.String()))
		return false, nil
	}

	s.afterCapture(ctx, c)
	return true, nil
}

func (s *LicenseService) onPaymentFailed(ctx context.Context, p gateway.Payment) (bool, error) {
	c, err := s.repo.FindByOrderID(ctx, p.OrderID)
	if err != nil {
		return false, lookupError(err, "no customer for order "+p.OrderID)
	}

	var downgraded bool
	for attempt := 0; ; attempt++ {
		if c.HasPaymentRecord(p.ID, customer.PaymentFailed) {
			return false, nil
		}

		// A failure for an earlier attempt must not touch a license that a
		// payment already issued a key for, active or since expired.
		downgraded = c.License.Key == ""
		if downgraded {
			c.License.Status = customer.StatusPaymentFailed
			c.GatewayPaymentID = p.ID
		}
		c.RecordPayment(customer.PaymentRecord{
			OrderID:   p.OrderID,
			PaymentID: p.ID,
			Amount:    p.Amount,
			Currency:  p.Currency,
			Status:    customer.PaymentFailed,
			Timestamp: s.now().UTC(),
		})

		err = s.repo.Update(ctx, c)
		if err == nil {
			break
		}
		if !errors.Is(err, ierr.ErrConflict) || attempt+1 >= maxWriteAttempts {
			s.logger.Error("Failed to record failed payment", zap.String("customer_id", c.ID.String()), zap.Error(err))
			return false, err
		}
		if c, err = s.repo.FindByID(ctx, c.ID); err != nil {
			return false, err
		}
	}

	s.logger.Info("Payment failed", zap.String("customer_id", c.ID.String()), zap.String("payment_id", p.ID), zap.Bool("status_changed", downgraded))
	if downgraded {
		s.notify(ctx, notify.Notification{
			Kind:         notify.KindPaymentFailed,
			To:           c.Email,
			BusinessName: c.BusinessName,
			LicenseType:  string(c.License.Type),
			Reason:       p.ErrorDescription,
		})
		s.publish(realtime.TypePaymentFailed, map[string]any{
			"customerId": c.ID,
			"email":      c.Email,
			"orderId":    p.OrderID,
			"paymentId":  p.ID,
			"reason":     p.ErrorDescription,
		})
	}
	return true, nil
}

type capture struct {
	paymentID string
	signature string
	amount    int64
	currency  string
}

// applyCapture activates c for a captured payment and reports whether this
// call changed anything. An existing key is kept; a customer already
// activated by the same payment is returned untouched. On a version
// conflict the customer is reloaded and the idempotence check re-run.
func (s *LicenseService) applyCapture(ctx context.Context, c *customer.Customer, p capture) (*customer.Customer, bool, error) {
	for attempt := 0; ; attempt++ {
		if c.HasCapturedPayment(p.paymentID) {
			return c, false, nil
		}

		now := s.now().UTC()
		end, err := util.CalculateExpiryDate(c.License.Type, now)
		if err != nil {
			return nil, false, err
		}

		key := c.License.Key
		if key == "" {
			key = s.keys.GenerateLicenseKey(c.ID.String(), now.Add(time.Duration(attempt)))
		}
		c.Activate(key, end, now)
		c.GatewayPaymentID = p.paymentID
		if p.signature != "" {
			c.GatewaySignature = p.signature
		}
		c.RecordPayment(customer.PaymentRecord{
			OrderID:   c.GatewayOrderID,
			PaymentID: p.paymentID,
			Amount:    p.amount,
			Currency:  p.currency,
			Status:    customer.PaymentCaptured,
			Timestamp: now,
		})

		err = s.repo.Update(ctx, c)
		if err == nil {
			s.logger.Info("License activated", zap.String("customer_id", c.ID.String()), zap.String("license_type", string(c.License.Type)))
			return c, true, nil
		}

		retryable := errors.Is(err, ierr.ErrConflict) || errors.Is(err, ierr.ErrDuplicateLicenseKey)
		if !retryable || attempt+1 >= maxWriteAttempts {
			s.logger.Error("Failed to persist license activation", zap.String("customer_id", c.ID.String()), zap.Error(err))
			return nil, false, err
		}

		s.logger.Warn("Activation write lost a race, reloading customer", zap.String("customer_id", c.ID.String()), zap.Error(err))
		if c, err = s.repo.FindByID(ctx, c.ID); err != nil {
			return nil, false, err
		}
	}
}

func (s *LicenseService) afterCapture(ctx context.Context, c *customer.Customer) {
	s.notify(ctx, notify.Notification{
		Kind:         notify.KindLicenseKey,
		To:           c.Email,
		BusinessName: c.BusinessName,
		LicenseKey:   c.License.Key,
		LicenseType:  string(c.License.Type),
		Platform:     string(c.Platform),
		ExpiryDate:   c.License.EndDate,
	})
	s.publish(realtime.TypePaymentCaptured, map[string]any{
		"customerId":  c.ID,
		"email":       c.Email,
		"licenseType": c.License.Type,
		"orderId":     c.GatewayOrderID,
		"paymentId":   c.GatewayPaymentID,
	})
}

func (s *LicenseService) VerifyLicense(ctx context.Context, licenseKey string) (*LicenseVerification, error) {
	licenseKey = strings.TrimSpace(licenseKey)
	if licenseKey == "" {
		return nil, fmt.Errorf("%w: licenseKey is required", ierr.ErrValidation)
	}

	c, err := s.repo.FindByLicenseKey(ctx, licenseKey)
	if err != nil {
		return nil, lookupError(err, "invalid license key")
	}

	valid := c.IsLicenseValid(s.now())
	metrics.LicenseVerificationsTotal.WithLabelValues(strconv.FormatBool(valid)).Inc()
	return &LicenseVerification{
		IsValid:     valid,
		LicenseType: c.License.Type,
		Status:      c.License.Status,
		ExpiryDate:  c.License.EndDate,
		Features:    util.GetLicenseFeatures(c.License.Type),
	}, nil
}

func (s *LicenseService) TrackDownload(ctx context.Context, in TrackDownloadInput) (*DownloadReceipt, error) {
	in.LicenseKey = strings.TrimSpace(in.LicenseKey)
	in.Version = strings.TrimSpace(in.Version)
	if in.LicenseKey == "" {
		return nil, fmt.Errorf("%w: licenseKey is required", ierr.ErrValidation)
	}
	if !in.Platform.Valid() {
		return nil, fmt.Errorf("%w: platform %q is not supported", ierr.ErrValidation, in.Platform)
	}
	if in.Version == "" {
		in.Version = "latest"
	}

	c, err := s.repo.FindByLicenseKey(ctx, in.LicenseKey)
	if err != nil {
		return nil, lookupError(err, "invalid license key")
	}

	for attempt := 0; ; attempt++ {
		now := s.now().UTC()
		if !c.CanDownload(in.Platform, now) {
			s.logger.Info("Download denied", zap.String("customer_id", c.ID.String()), zap.String("platform", string(in.Platform)))
			return nil, ierr.ErrDownloadNotPermitted
		}

		c.RecordDownload(customer.Download{
			Platform:  in.Platform,
			Version:   in.Version,
			Timestamp: now,
			SourceIP:  in.SourceIP,
		})

		err = s.repo.Update(ctx, c)
		if err == nil {
			break
		}
		if !errors.Is(err, ierr.ErrConflict) || attempt+1 >= maxWriteAttempts {
			s.logger.Error("Failed to record download", zap.String("customer_id", c.ID.String()), zap.Error(err))
			return nil, err
		}
		if c, err = s.repo.FindByID(ctx, c.ID); err != nil {
			return nil, err
		}
	}

	metrics.DownloadsTotal.WithLabelValues(string(in.Platform)).Inc()
	return &DownloadReceipt{DownloadURL: s.DownloadURL(in.Platform, in.Version)}, nil
}

func (s *LicenseService) GetPaymentStatus(ctx context.Context, orderID string) (*PaymentStatusResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: orderId is required", ierr.ErrValidation)
	}

	c, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, lookupError(err, "no customer for order "+orderID)
	}

	order, err := s.gateway.FetchOrder(ctx, orderID)
	if err != nil {
		s.logger.Error("Failed to fetch order from gateway", zap.String("order_id", orderID), zap.Error(err))
		return nil, err
	}

	summary := summarize(c)
	return &PaymentStatusResult{
		OrderID:     order.ID,
		Status:      MapOrderStatus(order.Status),
		OrderStatus: order.Status,
		Amount:      order.Amount,
		Currency:    order.Currency,
		Customer:    summary,
	}, nil
}

// MapOrderStatus reduces gateway order states to completed, pending or
// failed.
func MapOrderStatus(status string) PaymentStatus {
	switch status {
	case gateway.OrderStatusPaid:
		return PaymentCompleted
	case gateway.OrderStatusCreated, gateway.OrderStatusAttempted:
		return PaymentPending
	default:
		return PaymentFailed
	}
}

// RegenerateLicenseKey replaces the key of an already keyed customer. It is
// the only path that changes an issued key.
func (s *LicenseService) RegenerateLicenseKey(ctx context.Context, customerID uuid.UUID) (*KeyRegeneration, error) {
	c, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		return nil, lookupError(err, "customer not found")
	}

	for attempt := 0; ; attempt++ {
		if c.License.Key == "" {
			return nil, fmt.Errorf("%w: customer has no issued license key", ierr.ErrValidation)
		}

		old := c.License.Key
		key := s.keys.GenerateLicenseKey(c.ID.String(), s.now().UTC().Add(time.Duration(attempt)))
		if key == old && attempt+1 < maxWriteAttempts {
			continue
		}
		c.License.Key = key

		err = s.repo.Update(ctx, c)
		if err == nil {
			break
		}
		retryable := errors.Is(err, ierr.ErrConflict) || errors.Is(err, ierr.ErrDuplicateLicenseKey)
		if !retryable || attempt+1 >= maxWriteAttempts {
			s.logger.Error("Failed to store regenerated key", zap.String("customer_id", c.ID.String()), zap.Error(err))
			return nil, err
		}
		if c, err = s.repo.FindByID(ctx, c.ID); err != nil {
			return nil, err
		}
	}

	s.logger.Info("License key regenerated", zap.String("customer_id", c.ID.String()))
	s.notify(ctx, notify.Notification{
		Kind:         notify.KindLicenseKey,
		To:           c.Email,
		BusinessName: c.BusinessName,
		LicenseKey:   c.License.Key,
		LicenseType:  string(c.License.Type),
		Platform:     string(c.Platform),
		ExpiryDate:   c.License.EndDate,
	})
	return &KeyRegeneration{CustomerID: c.ID, LicenseKey: c.License.Key}, nil
}

// DownloadURL is the release asset for platform. An empty version means the
// latest release.
func (s *LicenseService) DownloadURL(platform customer.Platform, version string) string {
	if version == "" {
		version = "latest"
	}
	file := "LedgerPro.apk"
	if platform == customer.PlatformWindows {
		file = "LedgerPro-Setup.exe"
	}
	return strings.TrimRight(s.settings.DownloadBaseURL, "/") + "/" + version + "/" + file
}

func (s *LicenseService) issuance(c *customer.Customer) *LicenseIssuance {
	return &LicenseIssuance{
		LicenseKey:  c.License.Key,
		ExpiryDate:  c.License.EndDate,
		DownloadURL: s.DownloadURL(c.Platform, ""),
	}
}

// notify hands n to the sink. Delivery failures never reach the caller.
func (s *LicenseService) notify(ctx context.Context, n notify.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, n); err != nil {
		s.logger.Warn("Notification failed", zap.String("kind", string(n.Kind)), zap.Error(err))
	}
}

func (s *LicenseService) publish(eventType string, data any) {
	if s.publisher != nil {
		s.publisher.PublishAdmin(eventType, data)
	}
}

func summarize(c *customer.Customer) CustomerSummary {
	return CustomerSummary{
		ID:           c.ID,
		BusinessName: c.BusinessName,
		Email:        c.Email,
		Phone:        c.Phone,
	}
}

// receiptFor fits the gateway's 40 character receipt limit.
func receiptFor(id uuid.UUID) string {
	return "order_" + strings.ReplaceAll(id.String(), "-", "")
}

func lookupError(err error, detail string) error {
	if errors.Is(err, ierr.ErrNotFound) {
		return fmt.Errorf("%w: %s", ierr.ErrNotFound, detail)
	}
	return err
}
