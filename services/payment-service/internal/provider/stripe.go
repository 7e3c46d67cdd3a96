package provider

import (
	"context"
	"errors"
	"fmt"
	"math"

	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"
)

// Stripe authorizes payments through Stripe PaymentIntents. Intents are
// created with manual capture so funds are only held until the saga
// completes the order.
type Stripe struct {
	paymentMethod string
}

func NewStripe(apiKey, paymentMethod string) *Stripe {
	stripe.Key = apiKey
	return &Stripe{paymentMethod: paymentMethod}
}

func (s *Stripe) Authorize(ctx context.Context, orderID string, amount float64, userID string) (Authorization, error) {
	params := &stripe.PaymentIntentParams{
		Params:        stripe.Params{Context: ctx},
		Amount:        stripe.Int64(int64(math.Round(amount * 100))),
		Currency:      stripe.String(string(stripe.CurrencyUSD)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Confirm:       stripe.Bool(true),
		PaymentMethod: stripe.String(s.paymentMethod),
		Description:   stripe.String("order " + orderID),
	}
	params.AddMetadata("order_id", orderID)
	params.AddMetadata("user_id", userID)

	intent, err := paymentintent.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return Authorization{}, &DeclinedError{
				Code:    string(stripeErr.Code),
				Message: stripeErr.Msg,
			}
		}
		return Authorization{}, fmt.Errorf("creating payment intent: %w", err)
	}
	if intent.Status != stripe.PaymentIntentStatusRequiresCapture &&
		intent.Status != stripe.PaymentIntentStatusSucceeded {
		return Authorization{}, &DeclinedError{
			Code:    "NOT_AUTHORIZED",
			Message: fmt.Sprintf("payment intent in status %s", intent.Status),
		}
	}
	return Authorization{PaymentID: intent.ID}, nil
}
