package payment

import (
	"context"
	"errors"
	"testing"
)

func TestCreatePaymentIntentRejectsNonPositiveAmount(t *testing.T) {
	gateway := NewStripeGateway("sk_test_unused")

	for _, amount := range []int64{0, -1, -4999} {
		_, err := gateway.CreatePaymentIntent(context.Background(), "cus_test", amount, "usd")
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestGatewayErrorUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := &GatewayError{Op: "create payment intent", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("expected GatewayError to unwrap to its cause")
	}
	if err.Error() == "" {
		t.Error("expected a formatted error message")
	}
}
