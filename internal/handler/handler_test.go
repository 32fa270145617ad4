package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/makkenzo/ledgerpro-license-api/internal/config"
	"github.com/makkenzo/ledgerpro-license-api/internal/gateway"
	"github.com/makkenzo/ledgerpro-license-api/internal/handler/middleware"
	"github.com/makkenzo/ledgerpro-license-api/internal/ierr"
	"github.com/makkenzo/ledgerpro-license-api/internal/pricing"
	"github.com/makkenzo/ledgerpro-license-api/internal/realtime"
	"github.com/makkenzo/ledgerpro-license-api/internal/service"
	"github.com/makkenzo/ledgerpro-license-api/internal/storage/memstorage"
	"github.com/makkenzo/ledgerpro-license-api/internal/util"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	adminToken    = "test-admin-token"
	keySecret     = "rzp_secret"
	webhookSecret = "whsec"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGateway struct {
	mu        sync.Mutex
	orders    map[string]*gateway.Order
	payments  map[string]*gateway.Payment
	createErr error
	seq       int
}

func (g *stubGateway) CreateOrder(_ context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.seq++
	o := &gateway.Order{ID: fmt.Sprintf("order_%d", g.seq), Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt, Status: gateway.OrderStatusCreated}
	g.orders[o.ID] = o
	return o, nil
}

func (g *stubGateway) FetchOrder(_ context.Context, id string) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if o, ok := g.orders[id]; ok {
		return o, nil
	}
	return nil, ierr.ErrGatewayUnavailable
}

func (g *stubGateway) FetchPayment(_ context.Context, id string) (*gateway.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.payments[id]; ok {
		return p, nil
	}
	return nil, ierr.ErrGatewayUnavailable
}

type fixture struct {
	router *gin.Engine
	gw     *stubGateway
	repo   *memstorage.CustomerRepository
	rdb    *redis.Client
	hub    *realtime.Hub
	prices *pricing.Service
}

func newFixture(t *testing.T, rateLimit int64) *fixture {
	t.Helper()
	logger := zap.NewNop()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fixture{
		gw:     &stubGateway{orders: map[string]*gateway.Order{}, payments: map[string]*gateway.Payment{}},
		repo:   memstorage.NewCustomerRepository(),
		rdb:    rdb,
		prices: pricing.NewService(pricing.Prices{Professional: 599, Enterprise: 999}, logger),
	}

	f.hub = realtime.NewHub(f.prices, realtime.DefaultConfig(), logger)
	f.hub.Start()
	t.Cleanup(f.hub.Stop)
	f.prices.Subscribe(f.hub.BroadcastPrices)

	licenses := service.NewLicenseService(service.LicenseServiceDeps{
		Repo:      f.repo,
		Gateway:   f.gw,
		Keys:      util.NewLicenseKeyGenerator("license-secret"),
		Prices:    f.prices,
		Publisher: f.hub,
	}, service.LicenseSettings{
		KeyID:           "rzp_test_key",
		KeySecret:       keySecret,
		WebhookSecret:   webhookSecret,
		Currency:        "INR",
		DownloadBaseURL: "https://downloads.test",
	}, logger)

	auth, err := service.NewAuthService(&config.AdminConfig{Token: adminToken, JWTSecret: "jwt-secret"}, logger)
	require.NoError(t, err)
	admin := service.NewAdminService(f.repo, f.prices, licenses, logger)

	var limit gin.HandlerFunc
	if rateLimit > 0 {
		limit, err = middleware.NewRateLimiter(rateLimit, "1m", rdb, logger)
		require.NoError(t, err)
	}

	f.router = NewRouter(Handlers{
		Customer: NewCustomerHandler(licenses, logger),
		Webhook:  NewWebhookHandler(licenses, logger),
		Admin:    NewAdminHandler(admin, auth, logger),
		Realtime: NewRealtimeHandler(f.hub, auth, logger),
		Health:   NewHealthHandler(nil, rdb, logger),
	}, RouterOptions{
		AllowedOrigins: []string{"http://localhost:3000"},
		AdminAuth:      middleware.AdminAuthMiddleware(auth, logger),
		RateLimit:      limit,
	}, logger)
	return f
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Error   string          `json:"error"`
	Details []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"details"`
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:4321"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func registerBody(email, tier string) map[string]string {
	return map[string]string{
		"businessName": "Acme Traders",
		"email":        email,
		"phone":        "+919876543210",
		"industry":     "retail",
		"platform":     "windows",
		"licenseType":  tier,
	}
}

var adminHeaders = map[string]string{middleware.AdminTokenHeader: adminToken}

func TestRegisterDemoEndpoint(t *testing.T) {
	f := newFixture(t, 0)

	code, env := f.do(t, http.MethodPost, "/api/customers/register", registerBody("demo@acme.test", "demo"), nil)
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, env.Success)
	assert.Contains(t, env.Message, "Registration successful")

	var data struct {
		Customer struct {
			Email      string `json:"email"`
			LicenseKey string `json:"licenseKey"`
		} `json:"customer"`
		LicenseKey  string `json:"licenseKey"`
		DownloadURL string `json:"downloadUrl"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Regexp(t, `^[0-9A-F]{4}(-[0-9A-F]{4}){3}$`, data.LicenseKey)
	assert.Equal(t, data.LicenseKey, data.Customer.LicenseKey)
	assert.Equal(t, "https://downloads.test/latest/LedgerPro-Setup.exe", data.DownloadURL)

	code, env = f.do(t, http.MethodPost, "/api/customers/register", registerBody("DEMO@acme.test", "demo"), nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, env.Success)
	assert.Equal(t, "DUPLICATE_EMAIL", env.Code)
}

func TestRegisterValidationErrors(t *testing.T) {
	f := newFixture(t, 0)

	body := registerBody("x@acme.test", "platinum")
	delete(body, "phone")
	code, env := f.do(t, http.MethodPost, "/api/customers/register", body, nil)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Code)

	fields := map[string]bool{}
	for _, d := range env.Details {
		fields[d.Field] = true
	}
	assert.True(t, fields["Phone"])
	assert.True(t, fields["LicenseType"])

	code, env = f.do(t, http.MethodPost, "/api/customers/register", `{"email":`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Code)

	code, env = f.do(t, http.MethodPost, "/api/customers/register", registerBody("not-an-email", "demo"), nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Code)
}

func TestProfessionalCheckoutOverHTTP(t *testing.T) {
	f := newFixture(t, 0)

	code, env := f.do(t, http.MethodPost, "/api/customers/register", registerBody("pro@acme.test", "professional"), nil)
	require.Equal(t, http.StatusCreated, code)

	var reg struct {
		PaymentConfig struct {
			Key     string `json:"key"`
			Amount  int64  `json:"amount"`
			OrderID string `json:"order_id"`
		} `json:"paymentConfig"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &reg))
	assert.Equal(t, "rzp_test_key", reg.PaymentConfig.Key)
	assert.Equal(t, int64(59900), reg.PaymentConfig.Amount)
	orderID := reg.PaymentConfig.OrderID
	require.NotEmpty(t, orderID)

	code, env = f.do(t, http.MethodGet, "/api/customers/payment-status/"+orderID, nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"status":"pending"`)

	f.gw.payments["pay_1"] = &gateway.Payment{ID: "pay_1", OrderID: orderID, Amount: 59900, Currency: "INR", Status: gateway.PaymentStatusCaptured}
	sig := util.SignHex(keySecret, util.PaymentSignaturePayload(orderID, "pay_1"))

	code, env = f.do(t, http.MethodPost, "/api/customers/verify-payment", map[string]string{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  strings.ToUpper(sig[:1]) + sig[1:] + "0",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid signature", env.Error)

	code, env = f.do(t, http.MethodPost, "/api/customers/verify-payment", map[string]string{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  sig,
	}, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	var issued struct {
		LicenseKey string `json:"licenseKey"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &issued))
	require.NotEmpty(t, issued.LicenseKey)

	code, env = f.do(t, http.MethodPost, "/api/customers/verify-license", map[string]string{"licenseKey": issued.LicenseKey}, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"isValid":true`)

	code, env = f.do(t, http.MethodPost, "/api/customers/track-download", map[string]string{"licenseKey": issued.LicenseKey, "platform": "android"}, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "DOWNLOAD_NOT_PERMITTED", env.Code)

	code, env = f.do(t, http.MethodPost, "/api/customers/track-download", map[string]string{"licenseKey": issued.LicenseKey, "platform": "windows", "version": "v1.0.0"}, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Download tracked successfully", env.Message)

	c, err := f.repo.FindByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	require.Len(t, c.Downloads, 1)
	assert.Equal(t, "192.0.2.10", c.Downloads[0].SourceIP)
}

func TestPaymentNotCapturedIs402(t *testing.T) {
	f := newFixture(t, 0)

	_, env := f.do(t, http.MethodPost, "/api/customers/register", registerBody("pro@acme.test", "professional"), nil)
	var reg struct {
		PaymentConfig struct {
			OrderID string `json:"order_id"`
		} `json:"paymentConfig"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &reg))
	orderID := reg.PaymentConfig.OrderID

	f.gw.payments["pay_1"] = &gateway.Payment{ID: "pay_1", OrderID: orderID, Status: gateway.PaymentStatusAuthorized}
	code, env := f.do(t, http.MethodPost, "/api/customers/verify-payment", map[string]string{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  util.SignHex(keySecret, util.PaymentSignaturePayload(orderID, "pay_1")),
	}, nil)
	assert.Equal(t, http.StatusPaymentRequired, code)
	assert.Equal(t, "PAYMENT_NOT_CAPTURED", env.Code)
}

func TestRegisterGatewayFailureIs502(t *testing.T) {
	f := newFixture(t, 0)
	f.gw.createErr = fmt.Errorf("%w: connection refused to api.razorpay.com", ierr.ErrGatewayUnavailable)

	code, env := f.do(t, http.MethodPost, "/api/customers/register", registerBody("pro@acme.test", "professional"), nil)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "REGISTRATION_FAILED", env.Code)
	assert.NotContains(t, env.Error, "razorpay.com")
}

func TestWebhookEndpoint(t *testing.T) {
	f := newFixture(t, 0)

	_, env := f.do(t, http.MethodPost, "/api/customers/register", registerBody("pro@acme.test", "professional"), nil)
	var reg struct {
		PaymentConfig struct {
			OrderID string `json:"order_id"`
		} `json:"paymentConfig"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &reg))

	body := []byte(fmt.Sprintf(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_w","order_id":%q,"amount":59900,"currency":"INR","status":"captured"}}}}`, reg.PaymentConfig.OrderID))

	code, env := f.do(t, http.MethodPost, "/api/customers/webhook", body, map[string]string{WebhookSignatureHeader: "deadbeef"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid webhook signature", env.Error)

	sig := util.SignHex(webhookSecret, body)
	code, env = f.do(t, http.MethodPost, "/api/customers/webhook", body, map[string]string{WebhookSignatureHeader: sig})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"processed":true`)

	code, env = f.do(t, http.MethodPost, "/api/customers/webhook", body, map[string]string{WebhookSignatureHeader: sig})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"duplicate":true`)

	other := []byte(`{"event":"order.paid","payload":{}}`)
	code, _ = f.do(t, http.MethodPost, "/api/customers/webhook", other, map[string]string{WebhookSignatureHeader: util.SignHex(webhookSecret, other)})
	assert.Equal(t, http.StatusOK, code)
}

func TestWebhookBodyLimit(t *testing.T) {
	f := newFixture(t, 0)

	body := bytes.Repeat([]byte("a"), maxWebhookBodyBytes+1)
	code, env := f.do(t, http.MethodPost, "/api/customers/webhook", body, map[string]string{WebhookSignatureHeader: util.SignHex(webhookSecret, body)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", env.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	f := newFixture(t, 0)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/admin/dashboard"},
		{http.MethodGet, "/api/admin/customers"},
		{http.MethodPost, "/api/admin/update-pricing"},
		{http.MethodPost, "/api/admin/realtime-token"},
	} {
		code, env := f.do(t, tc.method, tc.path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, code, tc.path)
		assert.Equal(t, "Unauthorized access", env.Error)

		code, _ = f.do(t, tc.method, tc.path, nil, map[string]string{middleware.AdminTokenHeader: "wrong"})
		assert.Equal(t, http.StatusUnauthorized, code, tc.path)
	}
}

func TestAdminDashboardAndCustomers(t *testing.T) {
	f := newFixture(t, 0)
	for i := 0; i < 3; i++ {
		code, _ := f.do(t, http.MethodPost, "/api/customers/register", registerBody(fmt.Sprintf("c%d@acme.test", i), "demo"), nil)
		require.Equal(t, http.StatusCreated, code)
	}

	code, env := f.do(t, http.MethodGet, "/api/admin/dashboard", nil, adminHeaders)
	require.Equal(t, http.StatusOK, code)
	var dash service.Dashboard
	require.NoError(t, json.Unmarshal(env.Data, &dash))
	assert.Equal(t, service.DashboardStats{Total: 3, Active: 3, Paid: 0}, dash.Stats)
	assert.Equal(t, int64(599), dash.Pricing.Professional)

	code, env = f.do(t, http.MethodGet, "/api/admin/customers?page=2&limit=2", nil, adminHeaders)
	require.Equal(t, http.StatusOK, code)
	var page service.CustomerPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Customers, 1)
	assert.Equal(t, service.Pagination{Total: 3, Pages: 2, Current: 2, Limit: 2}, page.Pagination)

	code, env = f.do(t, http.MethodGet, "/api/admin/customers?page=abc", nil, adminHeaders)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Code)
}

func TestAdminUpdatePricing(t *testing.T) {
	f := newFixture(t, 0)

	code, env := f.do(t, http.MethodPost, "/api/admin/update-pricing", map[string]any{"professional": -5, "enterprise": 999}, adminHeaders)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Code)

	code, env = f.do(t, http.MethodPost, "/api/admin/update-pricing", map[string]any{"professional": 799}, adminHeaders)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = f.do(t, http.MethodPost, "/api/admin/update-pricing", map[string]any{"professional": 799, "enterprise": 1299}, adminHeaders)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Pricing updated successfully", env.Message)
	assert.Equal(t, pricing.Prices{Professional: 799, Enterprise: 1299}, f.prices.Current())
}

func TestAdminRegenerateKey(t *testing.T) {
	f := newFixture(t, 0)

	code, env := f.do(t, http.MethodPost, "/api/admin/customers/not-a-uuid/regenerate-key", nil, adminHeaders)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = f.do(t, http.MethodPost, "/api/admin/customers/7d1b0c1e-6f57-4f35-9a53-1df6a7a0c9b1/regenerate-key", nil, adminHeaders)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Code)

	_, env = f.do(t, http.MethodPost, "/api/customers/register", registerBody("demo@acme.test", "demo"), nil)
	var reg struct {
		Customer struct {
			ID         string `json:"id"`
			LicenseKey string `json:"licenseKey"`
		} `json:"customer"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &reg))

	code, env = f.do(t, http.MethodPost, "/api/admin/customers/"+reg.Customer.ID+"/regenerate-key", nil, adminHeaders)
	require.Equal(t, http.StatusOK, code)
	var regen service.KeyRegeneration
	require.NoError(t, json.Unmarshal(env.Data, &regen))
	assert.NotEqual(t, reg.Customer.LicenseKey, regen.LicenseKey)
}

func TestRealtimeAdminSocket(t *testing.T) {
	f := newFixture(t, 0)
	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)

	code, env := f.do(t, http.MethodPost, "/api/admin/realtime-token", nil, adminHeaders)
	require.Equal(t, http.StatusOK, code)
	var tok struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tok))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token=forged", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+tok.Token, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var greeting realtime.Message
	require.NoError(t, conn.ReadJSON(&greeting))
	assert.Equal(t, realtime.TypeAdminUpdate, greeting.Type)

	require.Eventually(t, func() bool { return f.hub.ClientCount(realtime.AudienceAdmin) == 1 }, time.Second, 10*time.Millisecond)

	code, _ = f.do(t, http.MethodPost, "/api/customers/register", registerBody("live@acme.test", "demo"), nil)
	require.Equal(t, http.StatusCreated, code)

	var event realtime.Message
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, realtime.TypeCustomerRegistered, event.Type)
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"memory"`)

	require.NoError(t, f.rdb.Close())
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"error"`)
}

func TestPublicRoutesAreRateLimited(t *testing.T) {
	f := newFixture(t, 2)

	for i := 0; i < 2; i++ {
		code, _ := f.do(t, http.MethodPost, "/api/customers/verify-license", map[string]string{"licenseKey": "AAAA-BBBB-CCCC-DDDD"}, nil)
		assert.Equal(t, http.StatusNotFound, code)
	}

	code, env := f.do(t, http.MethodPost, "/api/customers/verify-license", map[string]string{"licenseKey": "AAAA-BBBB-CCCC-DDDD"}, nil)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "RATE_LIMITED", env.Code)

	other := []byte(`{"event":"order.paid","payload":{}}`)
	code, _ = f.do(t, http.MethodPost, "/api/customers/webhook", other, map[string]string{WebhookSignatureHeader: util.SignHex(webhookSecret, other)})
	assert.Equal(t, http.StatusOK, code, "webhook is not rate limited")
}
