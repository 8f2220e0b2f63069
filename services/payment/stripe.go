package payment

import (
	"context"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// StripeGateway implements Gateway on top of the official Stripe SDK.
type StripeGateway struct {
	api *client.API
}

// NewStripeGateway creates a gateway bound to the given secret key.
func NewStripeGateway(secretKey string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api}
}

// FindOrCreateCustomer looks up a Stripe customer by email, creating one if
// none exists.
func (g *StripeGateway) FindOrCreateCustomer(ctx context.Context, email, name string) (string, error) {
	listParams := &stripe.CustomerListParams{Email: stripe.String(email)}
	listParams.Context = ctx
	listParams.Limit = stripe.Int64(1)

	iter := g.api.Customers.List(listParams)
	if iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", &GatewayError{Op: "list customers", Err: err}
	}

	createParams := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	createParams.Context = ctx

	cust, err := g.api.Customers.New(createParams)
	if err != nil {
		return "", &GatewayError{Op: "create customer", Err: err}
	}
	return cust.ID, nil
}

// CreatePaymentIntent creates a card payment intent with automatic capture.
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, customerID string, amount int64, currency string) (*Intent, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amount),
		Currency:           stripe.String(currency),
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		CaptureMethod:      stripe.String(string(stripe.PaymentIntentCaptureMethodAutomatic)),
	}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, &GatewayError{Op: "create payment intent", Err: err}
	}
	return intentFromStripe(pi), nil
}

// RetrievePaymentIntent fetches an intent's current status and amount.
func (g *StripeGateway) RetrievePaymentIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, &GatewayError{Op: "retrieve payment intent", Err: err}
	}
	return intentFromStripe(pi), nil
}

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       IntentStatus(pi.Status),
		Amount:       pi.Amount,
	}
}
