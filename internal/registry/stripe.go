package registry

import (
	"context"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// StripeEnricher resolves card brand and funding from a Stripe payment
// method. It only reads; no charges are ever created.
type StripeEnricher struct {
	api *client.API
}

func NewStripeEnricher(secretKey string) *StripeEnricher {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeEnricher{api: api}
}

func (e *StripeEnricher) Enrich(_ context.Context, stripeID string) (string, string, error) {
	pm, err := e.api.PaymentMethods.Get(stripeID, &stripe.PaymentMethodParams{})
	if err != nil {
		return "", "", fmt.Errorf("fetch payment method %s: %w", stripeID, err)
	}
	if pm.Card == nil {
		return "", "", fmt.Errorf("payment method %s is not a card", stripeID)
	}
	return strings.ToLower(string(pm.Card.Brand)), strings.ToLower(string(pm.Card.Funding)), nil
}

var _ Enricher = (*StripeEnricher)(nil)
