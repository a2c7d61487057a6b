package stripe

import (
	"net/http"
	"time"

	stripeapi "github.com/stripe/stripe-go/v82"
	stripecustomer "github.com/stripe/stripe-go/v82/customer"
	stripeinvoice "github.com/stripe/stripe-go/v82/invoice"
	stripeinvoiceitem "github.com/stripe/stripe-go/v82/invoiceitem"
	stripepaymentintent "github.com/stripe/stripe-go/v82/paymentintent"
	stripeprice "github.com/stripe/stripe-go/v82/price"
	stripeproduct "github.com/stripe/stripe-go/v82/product"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"
)

// Client wraps the Stripe API client with additional functionality
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a new Stripe client with the given configuration
func NewClient(config *Config) *Client {
	stripeapi.Key = config.APIKey
	// For sample support and debugging, not required for production.
	stripeapi.SetAppInfo(&stripeapi.AppInfo{
		Name:    "payments-backend/card-element",
		Version: config.APIVersion,
		URL:     "https://github.com/vocdoni/payments-backend",
	})

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ConstructWebhookEvent validates a webhook payload against its signature
// header and parses the event envelope.
func (c *Client) ConstructWebhookEvent(payload []byte, signatureHeader string) (*stripeapi.Event, error) {
	event, err := stripewebhook.ConstructEvent(payload, signatureHeader, c.config.WebhookSecret)
	if err != nil {
		return nil, NewStripeError(CodeWebhookValidation, "webhook signature validation failed", err)
	}
	return &event, nil
}

// ListProducts retrieves up to limit products.
func (*Client) ListProducts(limit int64) ([]*stripeapi.Product, error) {
	var products []*stripeapi.Product

	params := &stripeapi.ProductListParams{}
	params.Limit = stripeapi.Int64(limit)

	i := stripeproduct.List(params)
	for i.Next() {
		products = append(products, i.Product())
	}
	if err := i.Err(); err != nil {
		return nil, wrapAPIError("failed to list products", err)
	}

	return products, nil
}

// CreateProduct creates a new product with the given name and description.
func (*Client) CreateProduct(name, description string) (*stripeapi.Product, error) {
	params := &stripeapi.ProductParams{
		Name:        stripeapi.String(name),
		Description: stripeapi.String(description),
	}

	product, err := stripeproduct.New(params)
	if err != nil {
		return nil, wrapAPIError("failed to create product", err)
	}
	return product, nil
}

// ListActivePrices retrieves the active prices for a product in the given
// currency, up to 100 of them.
func (*Client) ListActivePrices(productID, currency string) ([]*stripeapi.Price, error) {
	var prices []*stripeapi.Price

	params := &stripeapi.PriceListParams{
		Product:  stripeapi.String(productID),
		Active:   stripeapi.Bool(true),
		Currency: stripeapi.String(currency),
	}
	params.Filters.AddFilter("limit", "", "100")

	i := stripeprice.List(params)
	for i.Next() {
		prices = append(prices, i.Price())
	}
	if err := i.Err(); err != nil {
		return nil, wrapAPIError("failed to list prices", err)
	}

	return prices, nil
}

// CreatePrice creates a one-off price for the given product.
func (*Client) CreatePrice(productID, currency string, unitAmount int64) (*stripeapi.Price, error) {
	params := &stripeapi.PriceParams{
		Product:    stripeapi.String(productID),
		Currency:   stripeapi.String(currency),
		UnitAmount: stripeapi.Int64(unitAmount),
	}

	price, err := stripeprice.New(params)
	if err != nil {
		return nil, wrapAPIError("failed to create price", err)
	}
	return price, nil
}

// CreateCustomer creates a new customer record.
func (*Client) CreateCustomer(name, description string, address *stripeapi.AddressParams,
	metadata map[string]string,
) (*stripeapi.Customer, error) {
	params := &stripeapi.CustomerParams{
		Name:        stripeapi.String(name),
		Description: stripeapi.String(description),
		Address:     address,
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	customer, err := stripecustomer.New(params)
	if err != nil {
		return nil, wrapAPIError("failed to create customer", err)
	}
	return customer, nil
}

// CreateDraftInvoice creates a draft invoice for the customer. Auto-advance
// is disabled so the caller controls when the invoice is finalized.
func (*Client) CreateDraftInvoice(customerID string, metadata map[string]string) (*stripeapi.Invoice, error) {
	params := &stripeapi.InvoiceParams{
		Customer:         stripeapi.String(customerID),
		AutoAdvance:      stripeapi.Bool(false),
		CollectionMethod: stripeapi.String(string(stripeapi.InvoiceCollectionMethodChargeAutomatically)),
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	invoice, err := stripeinvoice.New(params)
	if err != nil {
		return nil, wrapAPIError("failed to create invoice", err)
	}
	return invoice, nil
}

// AddInvoiceItem attaches a price to a draft invoice for a customer.
func (*Client) AddInvoiceItem(customerID, priceID, invoiceID string) (*stripeapi.InvoiceItem, error) {
	params := &stripeapi.InvoiceItemParams{
		Customer: stripeapi.String(customerID),
		Invoice:  stripeapi.String(invoiceID),
		Pricing: &stripeapi.InvoiceItemPricingParams{
			Price: stripeapi.String(priceID),
		},
	}

	item, err := stripeinvoiceitem.New(params)
	if err != nil {
		return nil, wrapAPIError("failed to add invoice item", err)
	}
	return item, nil
}

// FinalizeInvoice transitions a draft invoice to its finalized state,
// fixing the billable amount and assigning the invoice number.
func (*Client) FinalizeInvoice(invoiceID string) (*stripeapi.Invoice, error) {
	invoice, err := stripeinvoice.FinalizeInvoice(invoiceID, &stripeapi.InvoiceFinalizeInvoiceParams{})
	if err != nil {
		return nil, wrapAPIError("failed to finalize invoice", err)
	}
	return invoice, nil
}

// CreatePaymentIntent creates a card payment intent for the customer.
func (*Client) CreatePaymentIntent(amount int64, currency, customerID string,
	metadata map[string]string,
) (*stripeapi.PaymentIntent, error) {
	params := &stripeapi.PaymentIntentParams{
		Amount:             stripeapi.Int64(amount),
		Currency:           stripeapi.String(currency),
		Customer:           stripeapi.String(customerID),
		PaymentMethodTypes: stripeapi.StringSlice([]string{"card"}),
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	intent, err := stripepaymentintent.New(params)
	if err != nil {
		return nil, wrapAPIError("failed to create payment intent", err)
	}
	return intent, nil
}

// AttachPaymentToInvoice links a succeeded payment intent to its invoice,
// creating an invoice payment on the Stripe side. Attaching an intent that is
// already attached is rejected by the gateway without corrupting state, which
// keeps redelivered webhook events harmless.
func (*Client) AttachPaymentToInvoice(invoiceID, paymentIntentID string) (*stripeapi.Invoice, error) {
	params := &stripeapi.InvoiceAttachPaymentParams{
		PaymentIntent: stripeapi.String(paymentIntentID),
	}

	invoice, err := stripeinvoice.AttachPayment(invoiceID, params)
	if err != nil {
		return nil, wrapAPIError("failed to attach payment to invoice", err)
	}
	return invoice, nil
}
