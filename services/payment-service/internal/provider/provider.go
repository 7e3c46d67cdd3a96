// Package provider abstracts the external payment gateway.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Authorization is a successful hold on the buyer's funds.
type Authorization struct {
	PaymentID string
}

type Provider interface {
	Authorize(ctx context.Context, orderID string, amount float64, userID string) (Authorization, error)
}

// DeclinedError is a business decline from the gateway, as opposed to a
// transport failure. Both are retried the same way; the distinction only
// feeds the failure reason on the terminal event.
type DeclinedError struct {
	Code    string
	Message string
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func IsDeclined(err error) bool {
	var declined *DeclinedError
	return errors.As(err, &declined)
}

// FailureReason formats an authorization error for event payloads.
func FailureReason(err error) string {
	var declined *DeclinedError
	if errors.As(err, &declined) {
		return declined.Error()
	}
	return "PROCESSING_ERROR: " + err.Error()
}
