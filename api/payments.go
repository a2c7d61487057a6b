package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/vocdoni/payments-backend/errors"
	"github.com/vocdoni/payments-backend/stripe"
	"go.vocdoni.io/dvote/log"
)

// maxWebhookBodyBytes caps webhook payload sizes, per Stripe's webhook
// integration guidance.
const maxWebhookBodyBytes = int64(65536)

// configHandler returns the Stripe publishable key the browser needs to
// initialize its payment elements.
func (a *API) configHandler(w http.ResponseWriter, _ *http.Request) {
	httpWriteJSON(w, &ConfigResponse{PublishableKey: a.publishableKey})
}

// createPaymentIntentHandler runs the checkout flow and returns the payment
// intent's client secret together with the finalized invoice references.
// Every failure answers HTTP 400 with the structured error shape; the error
// code distinguishes gateway rejections from network failures.
func (a *API) createPaymentIntentHandler(w http.ResponseWriter, r *http.Request) {
	if a.stripe == nil {
		errors.ErrStripeUnavailable.Write(w)
		return
	}

	req := &CreatePaymentRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		errors.ErrMalformedBody.Write(w)
		return
	}

	result, err := a.stripe.CreatePayment(req.Currency, req.Name)
	if err != nil {
		log.Warnw("failed to create payment", "error", err)
		switch stripe.ErrorCode(err) {
		case stripe.CodeGatewayRejected:
			errors.ErrGatewayRejected.WithErr(err).Write(w)
		case stripe.CodeNetworkFailure:
			errors.ErrGatewayUnreachable.WithErr(err).Write(w)
		default:
			errors.ErrPaymentFailed.WithErr(err).Write(w)
		}
		return
	}

	httpWriteJSON(w, &CreatePaymentResponse{
		ClientSecret:  result.ClientSecret,
		InvoiceID:     result.InvoiceID,
		InvoiceNumber: result.InvoiceNumber,
		CustomerID:    result.CustomerID,
	})
}

// webhookHandler receives Stripe webhook events. Once an event passes
// verification and parsing it is always acknowledged with 200, whatever the
// dispatch outcome: the sender retries on non-2xx and cannot fix
// receiver-side failures.
func (a *API) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if a.stripe == nil {
		errors.ErrStripeUnavailable.Write(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Warnw("stripe webhook: error reading request body", "error", err)
		errors.ErrMalformedBody.Write(w)
		return
	}

	signatureHeader := r.Header.Get("Stripe-Signature")
	if signatureHeader == "" && a.stripe.SignatureRequired() {
		errors.ErrMissingSignature.Write(w)
		return
	}

	if err := a.stripe.ProcessWebhookEvent(payload, signatureHeader); err != nil {
		log.Warnw("stripe webhook: event rejected", "error", err)
		if stripe.ErrorCode(err) == stripe.CodeWebhookValidation {
			errors.ErrInvalidSignature.WithErr(err).Write(w)
			return
		}
		errors.ErrInvalidEvent.WithErr(err).Write(w)
		return
	}

	httpWriteJSON(w, &WebhookResponse{Status: "success"})
}
