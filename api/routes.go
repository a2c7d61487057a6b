package api

const (
	// payment routes

	// GET /config to fetch the Stripe publishable key
	configEndpoint = "/config"
	// POST /create-payment-intent to run the checkout flow and get a client secret
	createPaymentIntentEndpoint = "/create-payment-intent"
	// POST /webhook to receive Stripe webhook events
	webhookEndpoint = "/webhook"
)
