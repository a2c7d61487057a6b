package api

// ConfigResponse carries the browser-side Stripe configuration.
type ConfigResponse struct {
	PublishableKey string `json:"publishableKey"`
}

// CreatePaymentRequest is the body of POST /create-payment-intent. Both
// fields are optional; missing values fall back to the flow defaults.
type CreatePaymentRequest struct {
	Currency string `json:"currency"`
	Name     string `json:"name"`
}

// CreatePaymentResponse is what the browser needs to complete the payment
// and display the invoice.
type CreatePaymentResponse struct {
	ClientSecret  string `json:"clientSecret"`
	InvoiceID     string `json:"invoiceId"`
	InvoiceNumber string `json:"invoiceNumber"`
	CustomerID    string `json:"customerId"`
}

// WebhookResponse acknowledges a webhook delivery.
type WebhookResponse struct {
	Status string `json:"status"`
}
