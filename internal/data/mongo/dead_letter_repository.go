package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cashflow-consolidation/internal/domain/deadletter"
)

const (
	// DeadLetterCollectionName is the name of the dead-letter archive collection in MongoDB
	DeadLetterCollectionName = "dead_letters"
)

// DeadLetterRepository implements the deadletter.Repository interface for MongoDB
type DeadLetterRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewDeadLetterRepository creates a new MongoDB dead-letter repository
func NewDeadLetterRepository(logger *slog.Logger, db *mongo.Database) deadletter.Repository {
	return &DeadLetterRepository{
		db:     db,
		logger: logger,
	}
}

// Create archives a dead-lettered delivery. Archiving the same record id twice
// is not an error; the first copy is kept.
func (r *DeadLetterRepository) Create(ctx context.Context, record *deadletter.Record) error {
	collection := r.db.Collection(DeadLetterCollectionName)

	if _, err := collection.InsertOne(ctx, record); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			r.logger.Info("Dead letter already archived", "id", record.ID)
			return nil
		}
		r.logger.Error("Failed to archive dead letter",
			"message_key", record.MessageKey,
			"topic", record.Topic,
			"offset", record.Offset,
			"error", err)
		return fmt.Errorf("failed to archive dead letter: %w", err)
	}

	return nil
}

// ListRecent returns the most recently dead-lettered records first
func (r *DeadLetterRepository) ListRecent(ctx context.Context, limit int) ([]*deadletter.Record, error) {
	collection := r.db.Collection(DeadLetterCollectionName)

	opts := options.Find().
		SetSort(bson.D{{Key: "dead_lettered_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		r.logger.Error("Failed to list dead letters", "error", err)
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	defer cursor.Close(ctx)

	records := make([]*deadletter.Record, 0, limit)
	if err := cursor.All(ctx, &records); err != nil {
		r.logger.Error("Failed to decode dead letters", "error", err)
		return nil, fmt.Errorf("failed to decode dead letters: %w", err)
	}

	return records, nil
}
