//nolint:lll
package errors

import (
	"fmt"
	"net/http"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the client's fault,
// and they return HTTP Status 400 or 404, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX.
// If you notice there's a gap, DON'T fill it in, that code was used in the past and shouldn't be reused.
//
// Note that the checkout endpoint deliberately answers HTTP 400 for every
// failure, including gateway and network errors, to stay wire-compatible
// with the browser client. The Code still tells the error kinds apart.
var (
	ErrMalformedBody      = Error{Code: 40001, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid JSON request body")}
	ErrInvalidSignature   = Error{Code: 40002, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("webhook signature verification failed")}
	ErrInvalidEvent       = Error{Code: 40003, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid webhook event")}
	ErrMissingSignature   = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("missing Stripe-Signature header")}
	ErrPaymentFailed      = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("payment could not be created")}
	ErrGatewayRejected    = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("payment gateway rejected the request")}
	ErrGatewayUnreachable = Error{Code: 40007, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("payment gateway could not be reached")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrStripeUnavailable          = Error{Code: 50003, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("stripe service not available")}
)
