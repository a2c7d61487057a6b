package stripe

import (
	"fmt"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"
	stripeapi "github.com/stripe/stripe-go/v82"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"
	"github.com/vocdoni/payments-backend/db"
)

// fakeGateway is a PaymentGateway that synthesizes Stripe objects and records
// the order of the calls it receives.
type fakeGateway struct {
	mu    sync.Mutex
	calls []string

	products []*stripeapi.Product
	prices   []*stripeapi.Price
	failOn   string // method name that returns an error

	webhookSecret string
	attached      [][2]string // (invoiceID, paymentIntentID) pairs

	lastCustomerName     string
	lastCustomerMetadata map[string]string
	lastIntentAmount     int64
	lastIntentCurrency   string
	lastIntentMetadata   map[string]string
}

func (f *fakeGateway) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.failOn == call {
		return fmt.Errorf("%s: injected failure", call)
	}
	return nil
}

func (f *fakeGateway) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}

func (f *fakeGateway) countCalls(name string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeGateway) ListProducts(_ int64) ([]*stripeapi.Product, error) {
	if err := f.record("ListProducts"); err != nil {
		return nil, wrapAPIError("failed to list products", err)
	}
	return f.products, nil
}

func (f *fakeGateway) CreateProduct(name, description string) (*stripeapi.Product, error) {
	if err := f.record("CreateProduct"); err != nil {
		return nil, wrapAPIError("failed to create product", err)
	}
	return &stripeapi.Product{ID: "prod_test", Name: name, Description: description}, nil
}

func (f *fakeGateway) ListActivePrices(_, _ string) ([]*stripeapi.Price, error) {
	if err := f.record("ListActivePrices"); err != nil {
		return nil, wrapAPIError("failed to list prices", err)
	}
	return f.prices, nil
}

func (f *fakeGateway) CreatePrice(productID, currency string, unitAmount int64) (*stripeapi.Price, error) {
	if err := f.record("CreatePrice"); err != nil {
		return nil, wrapAPIError("failed to create price", err)
	}
	return &stripeapi.Price{
		ID:         "price_test",
		Currency:   stripeapi.Currency(currency),
		UnitAmount: unitAmount,
		Product:    &stripeapi.Product{ID: productID},
	}, nil
}

func (f *fakeGateway) CreateCustomer(name, _ string, _ *stripeapi.AddressParams,
	metadata map[string]string,
) (*stripeapi.Customer, error) {
	if err := f.record("CreateCustomer"); err != nil {
		return nil, wrapAPIError("failed to create customer", err)
	}
	f.lastCustomerName = name
	f.lastCustomerMetadata = metadata
	return &stripeapi.Customer{ID: "cus_test", Name: name}, nil
}

func (f *fakeGateway) CreateDraftInvoice(customerID string, _ map[string]string) (*stripeapi.Invoice, error) {
	if err := f.record("CreateDraftInvoice"); err != nil {
		return nil, wrapAPIError("failed to create invoice", err)
	}
	return &stripeapi.Invoice{
		ID:       "in_test",
		Customer: &stripeapi.Customer{ID: customerID},
		Status:   stripeapi.InvoiceStatusDraft,
	}, nil
}

func (f *fakeGateway) AddInvoiceItem(_, _, _ string) (*stripeapi.InvoiceItem, error) {
	if err := f.record("AddInvoiceItem"); err != nil {
		return nil, wrapAPIError("failed to add invoice item", err)
	}
	return &stripeapi.InvoiceItem{ID: "ii_test"}, nil
}

func (f *fakeGateway) FinalizeInvoice(invoiceID string) (*stripeapi.Invoice, error) {
	if err := f.record("FinalizeInvoice"); err != nil {
		return nil, wrapAPIError("failed to finalize invoice", err)
	}
	return &stripeapi.Invoice{
		ID:     invoiceID,
		Number: "TEST-0001",
		Status: stripeapi.InvoiceStatusOpen,
	}, nil
}

func (f *fakeGateway) CreatePaymentIntent(amount int64, currency, _ string,
	metadata map[string]string,
) (*stripeapi.PaymentIntent, error) {
	if err := f.record("CreatePaymentIntent"); err != nil {
		return nil, wrapAPIError("failed to create payment intent", err)
	}
	f.lastIntentAmount = amount
	f.lastIntentCurrency = currency
	f.lastIntentMetadata = metadata
	return &stripeapi.PaymentIntent{
		ID:           "pi_test",
		ClientSecret: "pi_test_secret_abc",
		Amount:       amount,
		Currency:     stripeapi.Currency(currency),
		Metadata:     metadata,
	}, nil
}

func (f *fakeGateway) AttachPaymentToInvoice(invoiceID, paymentIntentID string) (*stripeapi.Invoice, error) {
	if err := f.record("AttachPaymentToInvoice"); err != nil {
		return nil, wrapAPIError("failed to attach payment to invoice", err)
	}
	f.mu.Lock()
	f.attached = append(f.attached, [2]string{invoiceID, paymentIntentID})
	f.mu.Unlock()
	return &stripeapi.Invoice{
		ID:         invoiceID,
		Number:     "TEST-0001",
		Status:     stripeapi.InvoiceStatusPaid,
		AmountPaid: OrderAmount,
	}, nil
}

func (f *fakeGateway) ConstructWebhookEvent(payload []byte, signatureHeader string) (*stripeapi.Event, error) {
	// Real signature verification, no network involved.
	event, err := stripewebhook.ConstructEvent(payload, signatureHeader, f.webhookSecret)
	if err != nil {
		return nil, NewStripeError(CodeWebhookValidation, "webhook signature validation failed", err)
	}
	return &event, nil
}

// fakeRepo records payments in memory.
type fakeRepo struct {
	mu       sync.Mutex
	payments map[string]*db.Payment
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{payments: make(map[string]*db.Payment)}
}

func (r *fakeRepo) SetPayment(payment *db.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[payment.InvoiceID] = payment
	return nil
}

func (r *fakeRepo) SetPaymentStatus(invoiceID, paymentIntentID string, status db.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, ok := r.payments[invoiceID]
	if !ok {
		return db.ErrPaymentNotFound
	}
	payment.PaymentIntentID = paymentIntentID
	payment.Status = status
	return nil
}

func newTestService(gateway *fakeGateway, repo Repository, webhookSecret string) *Service {
	return &Service{
		gateway:     gateway,
		repo:        repo,
		events:      NewMemoryEventStore(0),
		lockManager: NewLockManager(),
		config:      &Config{APIKey: "sk_test_123", WebhookSecret: webhookSecret},
	}
}

func TestCreatePaymentCallOrder(t *testing.T) {
	c := qt.New(t)

	gateway := &fakeGateway{}
	repo := newFakeRepo()
	service := newTestService(gateway, repo, "")

	result, err := service.CreatePayment("", "")
	c.Assert(err, qt.IsNil)

	// All four fields populated, never a partial result.
	c.Assert(result.ClientSecret, qt.Equals, "pi_test_secret_abc")
	c.Assert(result.InvoiceID, qt.Equals, "in_test")
	c.Assert(result.InvoiceNumber, qt.Equals, "TEST-0001")
	c.Assert(result.CustomerID, qt.Equals, "cus_test")

	// Nothing pre-existing, so everything is created, in order, and the
	// invoice is finalized strictly before the payment intent is created.
	c.Assert(gateway.Calls(), qt.DeepEquals, []string{
		"ListProducts",
		"CreateProduct",
		"ListActivePrices",
		"CreatePrice",
		"CreateCustomer",
		"CreateDraftInvoice",
		"AddInvoiceItem",
		"FinalizeInvoice",
		"CreatePaymentIntent",
	})

	// Defaults applied.
	c.Assert(gateway.lastCustomerName, qt.Equals, DefaultCustomerName)
	c.Assert(gateway.lastCustomerMetadata["source"], qt.Equals, "card_element_demo")
	c.Assert(gateway.lastIntentAmount, qt.Equals, int64(OrderAmount))
	c.Assert(gateway.lastIntentCurrency, qt.Equals, DefaultCurrency)
	c.Assert(gateway.lastIntentMetadata["invoice_id"], qt.Equals, "in_test")

	// The checkout was recorded locally as pending.
	payment, ok := repo.payments["in_test"]
	c.Assert(ok, qt.IsTrue)
	c.Assert(payment.Status, qt.Equals, db.PaymentStatusPending)
	c.Assert(payment.Amount, qt.Equals, int64(OrderAmount))
}

func TestCreatePaymentReusesProductAndPrice(t *testing.T) {
	c := qt.New(t)

	gateway := &fakeGateway{
		products: []*stripeapi.Product{{ID: "prod_existing"}},
		prices: []*stripeapi.Price{
			{ID: "price_other", Currency: "usd", UnitAmount: 1000},
			{ID: "price_match", Currency: "usd", UnitAmount: OrderAmount},
		},
	}
	service := newTestService(gateway, nil, "")

	_, err := service.CreatePayment("usd", "Ada Lovelace")
	c.Assert(err, qt.IsNil)

	// Matching objects are found, not recreated.
	c.Assert(gateway.countCalls("CreateProduct"), qt.Equals, 0)
	c.Assert(gateway.countCalls("CreatePrice"), qt.Equals, 0)
	c.Assert(gateway.lastCustomerName, qt.Equals, "Ada Lovelace")
}

func TestCreatePaymentCreatesPriceOnAmountMismatch(t *testing.T) {
	c := qt.New(t)

	gateway := &fakeGateway{
		products: []*stripeapi.Product{{ID: "prod_existing"}},
		prices: []*stripeapi.Price{
			{ID: "price_other", Currency: "eur", UnitAmount: 1000},
		},
	}
	service := newTestService(gateway, nil, "")

	_, err := service.CreatePayment("eur", "")
	c.Assert(err, qt.IsNil)
	c.Assert(gateway.countCalls("CreatePrice"), qt.Equals, 1)
	c.Assert(gateway.lastIntentCurrency, qt.Equals, "eur")
}

func TestCreatePaymentAbortsOnFailure(t *testing.T) {
	c := qt.New(t)

	gateway := &fakeGateway{failOn: "CreateDraftInvoice"}
	service := newTestService(gateway, newFakeRepo(), "")

	result, err := service.CreatePayment("usd", "")
	c.Assert(err, qt.IsNotNil)
	c.Assert(result, qt.IsNil)

	// Steps after the failure are never issued.
	c.Assert(gateway.countCalls("FinalizeInvoice"), qt.Equals, 0)
	c.Assert(gateway.countCalls("CreatePaymentIntent"), qt.Equals, 0)
}

func TestCreatePaymentErrorKinds(t *testing.T) {
	c := qt.New(t)

	gateway := &fakeGateway{failOn: "CreatePaymentIntent"}
	service := newTestService(gateway, nil, "")

	_, err := service.CreatePayment("usd", "")
	c.Assert(err, qt.IsNotNil)
	// The fake's injected error is not a Stripe API error, so it is
	// classified as a network failure.
	c.Assert(ErrorCode(err), qt.Equals, CodeNetworkFailure)
}
