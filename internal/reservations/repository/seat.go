package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"seatgrid/pkg/config"
	"seatgrid/pkg/model"
)

const (
	SeatCollectionName = "Seats"
)

// SeatReader is the read-only view of the seat catalog the reservation
// engine needs to validate an intent.
type SeatReader interface {
	FindByIDs(ctx context.Context, ids []string) ([]*model.Seat, error)
}

type mongoSeatReader struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoSeatReader(cfg *config.Config) SeatReader {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSeatReader{
		cfg:        cfg,
		collection: db.Collection(SeatCollectionName),
	}
}

func (r *mongoSeatReader) FindByIDs(ctx context.Context, ids []string) ([]*model.Seat, error) {
	if _, ok := ctx.(mongo.SessionContext); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.ReadTimeout)
		defer cancel()
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to find seats: %w", err)
	}
	defer cursor.Close(ctx)

	var seats []*model.Seat
	if err = cursor.All(ctx, &seats); err != nil {
		return nil, fmt.Errorf("failed to decode seats: %w", err)
	}

	return seats, nil
}
