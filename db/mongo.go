// Package db provides MongoDB-backed storage for payment records and
// processed webhook events. Stripe owns the authoritative state; this store
// is the local audit trail and the durable half of webhook idempotency.
package db

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.vocdoni.io/dvote/log"
)

const dbTimeout = 10 * time.Second

// MongoStorage uses an external MongoDB service for storing payments and
// webhook events.
type MongoStorage struct {
	client *mongo.Client

	payments      *mongo.Collection
	webhookEvents *mongo.Collection
}

// New connects to MongoDB and initializes the collections and indexes.
func New(url, database string) (*MongoStorage, error) {
	if url == "" {
		return nil, fmt.Errorf("mongo URL is not defined")
	}
	if database == "" {
		return nil, fmt.Errorf("mongo database is not defined")
	}
	log.Infow("connecting to mongodb", "url", url, "database", database)

	opts := options.Client()
	opts.ApplyURI(url)
	opts.SetMaxConnecting(200)
	timeout := dbTimeout
	opts.ConnectTimeout = &timeout

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongodb: %w", err)
	}

	ctx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("cannot connect to mongodb: %w", err)
	}

	ms := &MongoStorage{
		client:        client,
		payments:      client.Database(database).Collection("payments"),
		webhookEvents: client.Database(database).Collection("webhookEvents"),
	}

	// if reset flag is enabled, drop the database documents and recreate
	// indexes, else just create the indexes
	if reset := os.Getenv("PAYMENTS_MONGO_RESET_DB"); reset != "" {
		if err := ms.Reset(); err != nil {
			return nil, err
		}
	} else if err := ms.createIndexes(); err != nil {
		return nil, err
	}
	return ms, nil
}

func (ms *MongoStorage) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	if err := ms.client.Disconnect(ctx); err != nil {
		log.Warn(err)
	}
}

// Reset drops the collections and recreates the indexes.
func (ms *MongoStorage) Reset() error {
	log.Infof("resetting database")
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	if err := ms.payments.Drop(ctx); err != nil {
		return err
	}
	if err := ms.webhookEvents.Drop(ctx); err != nil {
		return err
	}
	return ms.createIndexes()
}

func (ms *MongoStorage) createIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	if _, err := ms.payments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "invoiceID", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("cannot create payments index: %w", err)
	}

	if _, err := ms.webhookEvents.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "eventID", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("cannot create webhookEvents index: %w", err)
	}
	return nil
}
