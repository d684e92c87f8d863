package services

import "errors"

// Failure categories surfaced by the payment flow. Callers branch with
// errors.Is; the wrapped message carries the detail.
var (
	// ErrUpstreamAuth marks a rejected or failed Daraja token request.
	ErrUpstreamAuth = errors.New("upstream auth failed")

	// ErrProviderRequest marks a rejected or failed STK push request.
	ErrProviderRequest = errors.New("provider request failed")

	// ErrPaymentNotFound marks a callback whose CheckoutRequestID matches
	// no stored payment.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrInvalidCallback marks a callback payload missing the fields the
	// resolution needs.
	ErrInvalidCallback = errors.New("invalid callback payload")
)
