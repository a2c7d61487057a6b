package stripe

import (
	"errors"
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v82"
)

// StripeError represents a Stripe-specific error
type StripeError struct {
	Code    string
	Message string
	Err     error
}

func (e *StripeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stripe error [%s]: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("stripe error [%s]: %s", e.Code, e.Message)
}

func (e *StripeError) Unwrap() error {
	return e.Err
}

// Error codes. Every error produced by this package carries exactly one of
// these, so callers and tests can tell error kinds apart while the HTTP
// surface keeps a single wire shape.
const (
	// CodeGatewayRejected means Stripe received the request and refused it
	// (invalid params, auth failure, rate limit).
	CodeGatewayRejected = "api_call_failed"
	// CodeNetworkFailure means the request never got a Stripe response.
	CodeNetworkFailure = "network_failure"
	// CodeWebhookValidation means a webhook signature did not verify.
	CodeWebhookValidation = "webhook_validation"
	// CodeInvalidEvent means a webhook envelope could not be parsed.
	CodeInvalidEvent = "invalid_event"
)

// NewStripeError creates a new StripeError with the given code, message, and underlying error
func NewStripeError(code, message string, err error) *StripeError {
	return &StripeError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// wrapAPIError classifies an error returned by the Stripe SDK. Errors the
// gateway answered with become CodeGatewayRejected, anything else (DNS,
// timeouts, connection resets) becomes CodeNetworkFailure.
func wrapAPIError(message string, err error) *StripeError {
	var apiErr *stripeapi.Error
	if errors.As(err, &apiErr) {
		return NewStripeError(CodeGatewayRejected, message, err)
	}
	return NewStripeError(CodeNetworkFailure, message, err)
}

// ErrorCode returns the StripeError code carried by err, or an empty string.
func ErrorCode(err error) string {
	var stripeErr *StripeError
	if errors.As(err, &stripeErr) {
		return stripeErr.Code
	}
	return ""
}
