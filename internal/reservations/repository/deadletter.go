package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"seatgrid/pkg/config"
	"seatgrid/pkg/kafka"
)

const (
	DeadLetterCollectionName = "ReservationDeadLetters"
)

// DeadLetter is an intent the producer could not deliver after
// exhausting its retries. Rows are kept for manual follow-up.
type DeadLetter struct {
	ID        string            `bson:"_id"`
	Topic     string            `bson:"topic"`
	Key       string            `bson:"key"`
	Payload   []byte            `bson:"payload"`
	Headers   map[string]string `bson:"headers,omitempty"`
	Reason    string            `bson:"reason"`
	FailedAt  time.Time         `bson:"failed_at"`
	RequestID string            `bson:"request_id,omitempty"`
}

type mongoDeadLetterSink struct {
	cfg        *config.Config
	collection *mongo.Collection
}

// NewMongoDeadLetterSink returns a kafka.FailedSink backed by a Mongo
// collection.
func NewMongoDeadLetterSink(cfg *config.Config) kafka.FailedSink {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoDeadLetterSink{
		cfg:        cfg,
		collection: db.Collection(DeadLetterCollectionName),
	}
}

func (s *mongoDeadLetterSink) Save(ctx context.Context, msg kafka.Message, cause error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	id := msg.GetEventID()
	if id == "" {
		id = uuid.NewString()
	}

	letter := DeadLetter{
		ID:        id,
		Topic:     msg.Topic,
		Key:       msg.Key,
		Payload:   msg.Value,
		Headers:   msg.Headers,
		Reason:    cause.Error(),
		FailedAt:  time.Now().UTC().Truncate(time.Millisecond),
		RequestID: msg.GetRequestID(),
	}

	if _, err := s.collection.InsertOne(ctx, letter); err != nil {
		return fmt.Errorf("failed to save dead letter: %w", err)
	}
	return nil
}
