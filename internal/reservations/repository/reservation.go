package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	reserrors "seatgrid/internal/reservations/errors"
	"seatgrid/pkg/config"
	mongotx "seatgrid/pkg/db/mongo"
	"seatgrid/pkg/model"
)

const (
	CollectionName = "Reservations"
)

type mongoReservationRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type ReservationRepository interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	CreateMany(ctx context.Context, reservations []*model.Reservation) error
	FindByIDAndEmail(ctx context.Context, id string, email string) (*model.Reservation, error)
	FindByGroupAndEmail(ctx context.Context, groupCode string, email string) ([]*model.Reservation, error)
	FindByEmail(ctx context.Context, email string, limit int, offset int64) ([]*model.Reservation, error)
	FindActiveBySeatIDs(ctx context.Context, seatIDs []string) ([]*model.Reservation, error)
	UpdateStatus(ctx context.Context, id string, fields bson.M) error
	UpdateGroupStatus(ctx context.Context, groupCode string, from string, fields bson.M) (int64, error)
	ExpirePending(ctx context.Context, cutoff time.Time) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// A SessionContext cannot be wrapped without breaking transaction semantics,
// so it is returned unchanged with a no-op cancel.
func (r *mongoReservationRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	reservation.CreatedAt = now
	reservation.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, reservation); err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

func (r *mongoReservationRepository) CreateMany(ctx context.Context, reservations []*model.Reservation) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	docs := make([]any, 0, len(reservations))
	for _, reservation := range reservations {
		reservation.CreatedAt = now
		reservation.UpdatedAt = now
		docs = append(docs, reservation)
	}

	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to create reservations: %w", err)
	}
	return nil
}

func (r *mongoReservationRepository) FindByIDAndEmail(ctx context.Context, id string, email string) (*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "email": email}

	var reservation model.Reservation
	err := r.collection.FindOne(ctx, filter).Decode(&reservation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}

	return &reservation, nil
}

func (r *mongoReservationRepository) FindByGroupAndEmail(ctx context.Context, groupCode string, email string) ([]*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"group_code": groupCode, "email": email}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find reservation group: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}

	if len(reservations) == 0 {
		return nil, reserrors.ErrNotFound
	}
	return reservations, nil
}

func (r *mongoReservationRepository) FindByEmail(ctx context.Context, email string, limit int, offset int64) ([]*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{"email": email}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reservations by email: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}

	return reservations, nil
}

// FindActiveBySeatIDs returns reservations that still block the given
// seats: confirmed ones, and pending ones whose hold has not run out.
// An expired-but-unswept pending row does not block.
func (r *mongoReservationRepository) FindActiveBySeatIDs(ctx context.Context, seatIDs []string) ([]*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	now := time.Now().UTC()
	filter := bson.M{
		"seat_id": bson.M{"$in": seatIDs},
		"$or": []bson.M{
			{"status": model.StatusConfirmed},
			{"status": model.StatusPending, "expires_at": bson.M{"$gt": now}},
		},
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find active reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}

	return reservations, nil
}

func (r *mongoReservationRepository) UpdateStatus(ctx context.Context, id string, fields bson.M) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	fields["updated_at"] = time.Now().UTC().Truncate(time.Millisecond)

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	if result.MatchedCount == 0 {
		return reserrors.ErrNotFound
	}
	return nil
}

// UpdateGroupStatus applies fields to every reservation in the group
// that is currently in the from status, and reports how many matched.
// Members that already left that status (cancelled, swept to expired)
// are never touched.
func (r *mongoReservationRepository) UpdateGroupStatus(ctx context.Context, groupCode string, from string, fields bson.M) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	fields["updated_at"] = time.Now().UTC().Truncate(time.Millisecond)

	filter := bson.M{"group_code": groupCode, "status": from}
	result, err := r.collection.UpdateMany(ctx, filter, bson.M{"$set": fields})
	if err != nil {
		return 0, fmt.Errorf("failed to update reservation group: %w", err)
	}
	return result.MatchedCount, nil
}

// ExpirePending flips every overdue pending hold to expired in one bulk
// write. The filter includes the status, so concurrent sweeps and
// concurrent confirms cannot double-apply.
func (r *mongoReservationRepository) ExpirePending(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"status":     model.StatusPending,
		"expires_at": bson.M{"$lt": cutoff},
	}
	update := bson.M{
		"$set": bson.M{
			"status":     model.StatusExpired,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to expire pending reservations: %w", err)
	}
	return result.ModifiedCount, nil
}

func (r *mongoReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
