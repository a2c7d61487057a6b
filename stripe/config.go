package stripe

// DefaultAPIVersion is the Stripe API version this backend is developed against.
const DefaultAPIVersion = "2025-03-31.basil"

// Config holds the complete Stripe configuration. It is built once at
// process start (main reads it from flags and environment) and never
// mutated afterwards.
type Config struct {
	// APIKey is the Stripe secret key (sk_test_... or sk_live_...).
	APIKey string `yaml:"api_key" json:"api_key"`
	// PublishableKey is relayed to the browser through GET /config.
	PublishableKey string `yaml:"publishable_key" json:"publishable_key"`
	// WebhookSecret is the webhook signing secret (whsec_...). When empty,
	// webhook payloads are trusted without verification. That mode is only
	// meant for local development against the Stripe CLI.
	WebhookSecret string `yaml:"webhook_secret" json:"webhook_secret"`
	// APIVersion is the Stripe API version the deployment is pinned to.
	APIVersion string `yaml:"api_version" json:"api_version"`
}
