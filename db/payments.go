package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PaymentStatus tracks the local view of a payment intent's outcome.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// ErrPaymentNotFound is returned when no payment exists for an invoice ID.
var ErrPaymentNotFound = errors.New("payment not found")

// Payment is the audit record of one checkout attempt, keyed by the invoice
// the payment intent was created for.
type Payment struct {
	InvoiceID       string        `json:"invoiceID" bson:"invoiceID"`
	InvoiceNumber   string        `json:"invoiceNumber" bson:"invoiceNumber"`
	CustomerID      string        `json:"customerID" bson:"customerID"`
	PaymentIntentID string        `json:"paymentIntentID" bson:"paymentIntentID"`
	Amount          int64         `json:"amount" bson:"amount"`
	Currency        string        `json:"currency" bson:"currency"`
	Status          PaymentStatus `json:"status" bson:"status"`
	CreatedAt       time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// SetPayment upserts the payment record for its invoice ID.
func (ms *MongoStorage) SetPayment(payment *Payment) error {
	if payment.InvoiceID == "" {
		return fmt.Errorf("invoice ID is required")
	}
	now := time.Now()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	filter := bson.M{"invoiceID": payment.InvoiceID}
	update := bson.M{"$set": payment}
	opts := options.Update().SetUpsert(true)
	if _, err := ms.payments.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("cannot upsert payment: %w", err)
	}
	return nil
}

// Payment returns the payment record for the given invoice ID.
func (ms *MongoStorage) Payment(invoiceID string) (*Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	payment := &Payment{}
	err := ms.payments.FindOne(ctx, bson.M{"invoiceID": invoiceID}).Decode(payment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("cannot find payment: %w", err)
	}
	return payment, nil
}

// SetPaymentStatus updates the status (and payment intent ID) of the payment
// record for an invoice.
func (ms *MongoStorage) SetPaymentStatus(invoiceID, paymentIntentID string, status PaymentStatus) error {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	filter := bson.M{"invoiceID": invoiceID}
	update := bson.M{"$set": bson.M{
		"paymentIntentID": paymentIntentID,
		"status":          status,
		"updatedAt":       time.Now(),
	}}
	res, err := ms.payments.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("cannot update payment status: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrPaymentNotFound
	}
	return nil
}
