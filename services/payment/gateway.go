package payment

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidAmount is returned before any network call when the requested
// charge is not a positive number of minor currency units.
var ErrInvalidAmount = errors.New("payment amount must be a positive number of minor units")

// GatewayError wraps a failure talking to the payment processor. Handlers map
// it to a 5xx with a generic body; the wrapped detail stays server-side.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway: %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IntentStatus is the processor-side lifecycle state of a payment intent.
type IntentStatus string

const (
	IntentStatusSucceeded             IntentStatus = "succeeded"
	IntentStatusProcessing            IntentStatus = "processing"
	IntentStatusRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentStatusCanceled              IntentStatus = "canceled"
)

// Intent is the subset of a processor payment intent the purchase flow
// consumes.
type Intent struct {
	ID           string
	ClientSecret string
	Status       IntentStatus
	Amount       int64 // minor units
}

// Gateway is the payment-processor adapter consumed by the purchase
// orchestrator. Implementations are thin pass-throughs over the processor
// SDK; tests substitute a fake.
type Gateway interface {
	// FindOrCreateCustomer looks up a processor-side customer by email and
	// creates one if absent.
	FindOrCreateCustomer(ctx context.Context, email, name string) (string, error)

	// CreatePaymentIntent creates an intent to collect amount minor units in
	// the given currency from the customer.
	CreatePaymentIntent(ctx context.Context, customerID string, amount int64, currency string) (*Intent, error)

	// RetrievePaymentIntent fetches the current state of an intent. It never
	// mutates processor state.
	RetrievePaymentIntent(ctx context.Context, id string) (*Intent, error)
}
