package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/makkenzo/ledgerpro-license-api/internal/config"
	"github.com/makkenzo/ledgerpro-license-api/internal/ierr"
	razorpay "github.com/razorpay/razorpay-go"
	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// orderAPI and paymentAPI are the parts of the razorpay-go resources the
// client uses.
type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Fetch(orderID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type paymentAPI interface {
	Fetch(paymentID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type RazorpayClient struct {
	orders   orderAPI
	payments paymentAPI
	timeout  time.Duration
	logger   *zap.Logger
}

var _ Gateway = (*RazorpayClient)(nil)

func NewRazorpayClient(cfg *config.RazorpayConfig, logger *zap.Logger) *RazorpayClient {
	sdk := razorpay.NewClient(cfg.KeyID, cfg.KeySecret)
	return newRazorpayClient(sdk.Order, sdk.Payment, cfg.Timeout, logger)
}

func newRazorpayClient(orders orderAPI, payments paymentAPI, timeout time.Duration, logger *zap.Logger) *RazorpayClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &RazorpayClient{
		orders:   orders,
		payments: payments,
		timeout:  timeout,
		logger:   logger.Named("RazorpayClient"),
	}
}

func (c *RazorpayClient) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	c.logger.Info("Creating gateway order", zap.String("receipt", req.Receipt), zap.Int64("amount", req.Amount), zap.String("currency", req.Currency))

	data := map[string]interface{}{
		"amount":          req.Amount,
		"currency":        req.Currency,
		"receipt":         req.Receipt,
		"payment_capture": 1,
		"partial_payment": false,
	}
	if len(req.Notes) > 0 {
		data["notes"] = req.Notes
	}

	var order Order
	err := c.call(ctx, "create order", &order, func() (map[string]interface{}, error) {
		return c.orders.Create(data, nil)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Gateway order created", zap.String("order_id", order.ID), zap.String("status", order.Status))
	return &order, nil
}

func (c *RazorpayClient) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	err := c.call(ctx, "fetch order", &order, func() (map[string]interface{}, error) {
		return c.orders.Fetch(orderID, nil, nil)
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *RazorpayClient) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var payment Payment
	err := c.call(ctx, "fetch payment", &payment, func() (map[string]interface{}, error) {
		return c.payments.Fetch(paymentID, nil, nil)
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

type sdkResult struct {
	body map[string]interface{}
	err  error
}

// call runs an SDK request under ctx and the configured timeout. The SDK
// takes no context, so an abandoned request finishes in the background and
// its result is dropped.
func (c *RazorpayClient) call(ctx context.Context, op string, out any, fn func() (map[string]interface{}, error)) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan sdkResult, 1)
	go func() {
		body, err := fn()
		done <- sdkResult{body: body, err: err}
	}()

	var res sdkResult
	select {
	case <-ctx.Done():
		c.logger.Error("Gateway request abandoned", zap.String("op", op), zap.Error(ctx.Err()))
		return fmt.Errorf("%w: %s: %v", ierr.ErrGatewayUnavailable, op, ctx.Err())
	case res = <-done:
	}

	if res.err != nil {
		c.logger.Warn("Gateway request failed", zap.String("op", op), zap.Error(res.err))
		return fmt.Errorf("%w: %s: %v", ierr.ErrGatewayUnavailable, op, res.err)
	}

	// The SDK decodes into a generic map; round-trip it into our types.
	raw, err := json.Marshal(res.body)
	if err != nil {
		return fmt.Errorf("%w: %s: encode response: %v", ierr.ErrGatewayUnavailable, op, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: decode response: %v", ierr.ErrGatewayUnavailable, op, err)
	}
	return nil
}
