// Package gateway is the payment gateway boundary. The engine talks to the
// Gateway interface; RazorpayClient is the production implementation.
package gateway

import "context"

const (
	PaymentStatusCaptured   = "captured"
	PaymentStatusAuthorized = "authorized"
	PaymentStatusFailed     = "failed"

	OrderStatusCreated   = "created"
	OrderStatusAttempted = "attempted"
	OrderStatusPaid      = "paid"
)

type OrderRequest struct {
	// Amount is in minor currency units (paise for INR).
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// Order omits notes: the gateway renders empty notes as a JSON array.
type Order struct {
	ID         string `json:"id"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	CreatedAt  int64  `json:"created_at"`
}

type Payment struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	Method           string `json:"method"`
	Email            string `json:"email"`
	Contact          string `json:"contact"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	CreatedAt        int64  `json:"created_at"`
}

type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	FetchOrder(ctx context.Context, orderID string) (*Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*Payment, error)
}
