package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.vocdoni.io/dvote/log"
)

// WebhookEvent records a processed webhook delivery. The unique index on
// eventID is what makes redelivered events detectable across restarts.
type WebhookEvent struct {
	EventID     string    `json:"eventID" bson:"eventID"`
	ProcessedAt time.Time `json:"processedAt" bson:"processedAt"`
}

// EventExists reports whether a webhook event was already processed.
// MongoStorage satisfies the stripe package's EventStore interface.
func (ms *MongoStorage) EventExists(eventID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	count, err := ms.webhookEvents.CountDocuments(ctx, bson.M{"eventID": eventID})
	if err != nil {
		// On storage failure assume not processed; reprocessing is safe,
		// the gateway rejects double attaches.
		log.Warnw("cannot check webhook event", "event", eventID, "error", err)
		return false
	}
	return count > 0
}

// MarkProcessed records a webhook event as processed.
func (ms *MongoStorage) MarkProcessed(eventID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	_, err := ms.webhookEvents.InsertOne(ctx, &WebhookEvent{
		EventID:     eventID,
		ProcessedAt: time.Now(),
	})
	return err
}
