// Package stripe provides integration with the Stripe payment service,
// orchestrating the card checkout flow (product, price, customer, invoice,
// payment intent) and reconciling webhook events.
package stripe

import (
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/vocdoni/payments-backend/db"
	"go.vocdoni.io/dvote/log"
)

// OrderAmount is the fixed price of the demo order, in minor currency units.
const OrderAmount = 5999

const (
	// DefaultCurrency is used when the checkout request carries no currency.
	DefaultCurrency = "usd"
	// DefaultCustomerName is used when the checkout request carries no payer name.
	DefaultCustomerName = "Hans Müller"

	productName         = "Card Payment Service"
	productDescription  = "Payment for card element demo"
	customerDescription = "Card payment customer"
)

// PaymentGateway is the narrow Stripe contract the service needs. It is
// implemented by Client and by fakes in tests, where the call ordering of a
// checkout is asserted.
type PaymentGateway interface {
	ListProducts(limit int64) ([]*stripeapi.Product, error)
	CreateProduct(name, description string) (*stripeapi.Product, error)
	ListActivePrices(productID, currency string) ([]*stripeapi.Price, error)
	CreatePrice(productID, currency string, unitAmount int64) (*stripeapi.Price, error)
	CreateCustomer(name, description string, address *stripeapi.AddressParams,
		metadata map[string]string) (*stripeapi.Customer, error)
	CreateDraftInvoice(customerID string, metadata map[string]string) (*stripeapi.Invoice, error)
	AddInvoiceItem(customerID, priceID, invoiceID string) (*stripeapi.InvoiceItem, error)
	FinalizeInvoice(invoiceID string) (*stripeapi.Invoice, error)
	CreatePaymentIntent(amount int64, currency, customerID string,
		metadata map[string]string) (*stripeapi.PaymentIntent, error)
	AttachPaymentToInvoice(invoiceID, paymentIntentID string) (*stripeapi.Invoice, error)
	ConstructWebhookEvent(payload []byte, signatureHeader string) (*stripeapi.Event, error)
}

// Repository records payments locally for auditing. All authoritative state
// lives on the Stripe side; a repository failure never aborts a checkout.
type Repository interface {
	SetPayment(payment *db.Payment) error
	SetPaymentStatus(invoiceID, paymentIntentID string, status db.PaymentStatus) error
}

// EventStore tracks processed webhook event IDs so redelivered events are
// skipped.
type EventStore interface {
	EventExists(eventID string) bool
	MarkProcessed(eventID string) error
}

// Service provides the main business logic for Stripe operations
type Service struct {
	gateway     PaymentGateway
	repo        Repository
	events      EventStore
	lockManager *LockManager
	config      *Config
}

// NewService creates a new Stripe service backed by the real API client.
func NewService(config *Config, repo Repository, events EventStore) (*Service, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return NewServiceWithGateway(config, NewClient(config), repo, events)
}

// NewServiceWithGateway creates a Stripe service over an explicit gateway
// implementation.
func NewServiceWithGateway(config *Config, gateway PaymentGateway, repo Repository, events EventStore) (*Service, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if events == nil {
		events = NewMemoryEventStore(0)
	}

	return &Service{
		gateway:     gateway,
		repo:        repo,
		events:      events,
		lockManager: NewLockManager(),
		config:      config,
	}, nil
}

// PaymentResult is what the browser needs to complete a card payment.
type PaymentResult struct {
	ClientSecret  string
	InvoiceID     string
	InvoiceNumber string
	CustomerID    string
}

// CreatePayment runs the checkout sequence: resolve the product and price,
// create a fresh customer, build and finalize an invoice, and create the card
// payment intent whose client secret the browser uses to pay. Any step
// failure aborts the remaining steps; objects created before the failure are
// left orphaned on the Stripe side.
func (s *Service) CreatePayment(currency, name string) (*PaymentResult, error) {
	if currency == "" {
		currency = DefaultCurrency
	}
	if name == "" {
		name = DefaultCustomerName
	}

	product, err := s.resolveProduct()
	if err != nil {
		return nil, err
	}

	price, err := s.resolvePrice(product.ID, currency)
	if err != nil {
		return nil, err
	}

	// A new customer record per checkout attempt, no dedup.
	customer, err := s.gateway.CreateCustomer(name, customerDescription,
		&stripeapi.AddressParams{
			Line1:      stripeapi.String("Bahnhofstrasse 42"),
			City:       stripeapi.String("Zürich"),
			PostalCode: stripeapi.String("8001"),
			Country:    stripeapi.String("CH"),
		},
		map[string]string{"source": "card_element_demo"})
	if err != nil {
		return nil, err
	}

	invoice, err := s.gateway.CreateDraftInvoice(customer.ID,
		map[string]string{"payment_flow": "card_element"})
	if err != nil {
		return nil, err
	}

	if _, err := s.gateway.AddInvoiceItem(customer.ID, price.ID, invoice.ID); err != nil {
		return nil, err
	}

	// Finalization must happen before the payment intent is created: it
	// fixes the invoice amount and assigns the invoice number.
	invoice, err = s.gateway.FinalizeInvoice(invoice.ID)
	if err != nil {
		return nil, err
	}

	// The invoice ID in the metadata is how the webhook reconciler links a
	// succeeded payment back to this invoice.
	intent, err := s.gateway.CreatePaymentIntent(OrderAmount, currency, customer.ID,
		map[string]string{"invoice_id": invoice.ID})
	if err != nil {
		return nil, err
	}

	s.recordPayment(invoice, customer.ID, intent, currency)

	return &PaymentResult{
		ClientSecret:  intent.ClientSecret,
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.Number,
		CustomerID:    customer.ID,
	}, nil
}

// resolveProduct reuses the first existing product or creates the demo one.
// No filtering by attributes: whatever the listing returns first wins.
func (s *Service) resolveProduct() (*stripeapi.Product, error) {
	products, err := s.gateway.ListProducts(1)
	if err != nil {
		return nil, err
	}
	if len(products) > 0 {
		return products[0], nil
	}
	return s.gateway.CreateProduct(productName, productDescription)
}

// resolvePrice scans the active prices of the product for one matching the
// order amount and currency, creating it when absent. Concurrent checkouts
// can race here and create duplicate prices for the same triple; any of the
// duplicates serves later lookups equally, so the window is left open.
func (s *Service) resolvePrice(productID, currency string) (*stripeapi.Price, error) {
	prices, err := s.gateway.ListActivePrices(productID, currency)
	if err != nil {
		return nil, err
	}
	for _, p := range prices {
		if p.UnitAmount == OrderAmount && string(p.Currency) == currency {
			return p, nil
		}
	}
	return s.gateway.CreatePrice(productID, currency, OrderAmount)
}

// recordPayment stores the local audit record of the checkout. The checkout
// already succeeded on the Stripe side, so a storage failure is only logged.
func (s *Service) recordPayment(invoice *stripeapi.Invoice, customerID string,
	intent *stripeapi.PaymentIntent, currency string,
) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SetPayment(&db.Payment{
		InvoiceID:       invoice.ID,
		InvoiceNumber:   invoice.Number,
		CustomerID:      customerID,
		PaymentIntentID: intent.ID,
		Amount:          OrderAmount,
		Currency:        currency,
		Status:          db.PaymentStatusPending,
	}); err != nil {
		log.Warnw("failed to record payment", "invoice", invoice.ID, "error", err)
	}
}
