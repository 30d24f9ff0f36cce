package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"seatgrid/pkg/config"
	"seatgrid/pkg/model"
)

const (
	SeatCollectionName = "Seats"
)

var ErrSeatNotFound = errors.New("seat not found")

type SeatRepository interface {
	CreateMany(ctx context.Context, seats []*model.Seat) error
	FindByID(ctx context.Context, id string) (*model.Seat, error)
	FindByRoom(ctx context.Context, roomID string) ([]*model.Seat, error)
	SetActive(ctx context.Context, id string, active bool) error
}

type mongoSeatRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoSeatRepository(cfg *config.Config) SeatRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSeatRepository{
		cfg:        cfg,
		collection: db.Collection(SeatCollectionName),
	}
}

func (r *mongoSeatRepository) CreateMany(ctx context.Context, seats []*model.Seat) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	docs := make([]any, 0, len(seats))
	for _, seat := range seats {
		seat.CreatedAt = now
		seat.UpdatedAt = now
		docs = append(docs, seat)
	}

	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to create seats: %w", err)
	}
	return nil
}

func (r *mongoSeatRepository) FindByID(ctx context.Context, id string) (*model.Seat, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var seat model.Seat
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&seat)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSeatNotFound
		}
		return nil, fmt.Errorf("failed to find seat: %w", err)
	}
	return &seat, nil
}

func (r *mongoSeatRepository) FindByRoom(ctx context.Context, roomID string) ([]*model.Seat, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "row", Value: 1}, {Key: "column", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"room_id": roomID}, opts)
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

func (r *mongoSeatRepository) SetActive(ctx context.Context, id string, active bool) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"is_active":  active,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update seat: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrSeatNotFound
	}
	return nil
}
