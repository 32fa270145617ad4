package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/makkenzo/ledgerpro-license-api/internal/ierr"
)

const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
)

// Event is a decoded webhook notification. The concrete type is one of
// PaymentCaptured, PaymentFailed or Unrecognized.
type Event interface {
	Name() string
	isEvent()
}

type PaymentCaptured struct {
	Payment Payment
}

type PaymentFailed struct {
	Payment Payment
}

// Unrecognized is any well-formed event the service does not act on.
type Unrecognized struct {
	EventName string
}

func (PaymentCaptured) Name() string { return EventPaymentCaptured }
func (PaymentFailed) Name() string   { return EventPaymentFailed }
func (e Unrecognized) Name() string  { return e.EventName }

func (PaymentCaptured) isEvent() {}
func (PaymentFailed) isEvent()   {}
func (Unrecognized) isEvent()    {}

type envelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity Payment `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// ParseEvent decodes a webhook body. It must only be called after the
// signature over the same bytes has been verified.
func ParseEvent(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed webhook payload: %v", ierr.ErrValidation, err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: webhook payload has no event name", ierr.ErrValidation)
	}

	switch env.Event {
	case EventPaymentCaptured, EventPaymentFailed:
		if env.Payload.Payment == nil {
			return nil, fmt.Errorf("%w: %s without payment entity", ierr.ErrValidation, env.Event)
		}
		p := env.Payload.Payment.Entity
		if p.ID == "" || p.OrderID == "" {
			return nil, fmt.Errorf("%w: %s missing payment or order id", ierr.ErrValidation, env.Event)
		}
		if env.Event == EventPaymentCaptured {
			return PaymentCaptured{Payment: p}, nil
		}
		return PaymentFailed{Payment: p}, nil
	default:
		return Unrecognized{EventName: env.Event}, nil
	}
}
