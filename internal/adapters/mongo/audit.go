package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/DucAnhIT03/movie-serverside/internal/observability"
)

// AuditLogger records every inbound gateway callback, accepted or not.
// Rejected entries are the tampering trail.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("gateway_audit"),
		logger: logger,
	}
}

type CallbackAudit struct {
	ID            uuid.UUID `bson:"_id"`
	Method        string    `bson:"method"`
	Outcome       string    `bson:"outcome"` // accepted, rejected, duplicate
	TransactionID string    `bson:"transaction_id,omitempty"`
	PaymentID     string    `bson:"payment_id,omitempty"`
	Reason        string    `bson:"reason,omitempty"`
	Timestamp     time.Time `bson:"timestamp"`
	Payload       bson.M    `bson:"payload,omitempty"`
}

// LogCallback is best-effort; an audit write failure never fails the
// reconciliation itself.
func (a *AuditLogger) LogCallback(ctx context.Context, entry CallbackAudit) {
	entry.ID = uuid.New()
	entry.Timestamp = time.Now().UTC()
	if _, err := a.coll.InsertOne(ctx, entry); err != nil {
		a.logger.WithField("method", entry.Method).Error("failed to insert callback audit: ", err)
	}
}
