package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"seatgrid/internal/locking"
	"seatgrid/internal/payments"
	reserrors "seatgrid/internal/reservations/errors"
	"seatgrid/internal/reservations/repository"
	"seatgrid/internal/reservations/validator"
	"seatgrid/pkg/config"
	apperrors "seatgrid/pkg/errors"
	"seatgrid/pkg/model"
)

// CreateResult is what the consumer records against the request id.
type CreateResult struct {
	GroupCode      string   `json:"group_code"`
	ReservationIDs []string `json:"reservation_ids"`
}

// ConfirmResult carries the confirmation code shared by every seat in
// the group and the updated reservations.
type ConfirmResult struct {
	ConfirmationCode string               `json:"confirmation_code"`
	Reservations     []*model.Reservation `json:"reservations"`
}

type ReservationService interface {
	CreateFromIntent(ctx context.Context, intent *model.ReservationIntent) (*CreateResult, error)
	Confirm(ctx context.Context, id string, email string) (*ConfirmResult, error)
	Cancel(ctx context.Context, id string, email string) error
	GetByID(ctx context.Context, id string, email string) (*model.Reservation, error)
	GetGroup(ctx context.Context, groupCode string, email string) ([]*model.Reservation, error)
	ListByEmail(ctx context.Context, email string, limit int, offset int64) ([]*model.Reservation, error)
	ExpireSweep(ctx context.Context) (int64, error)
}

type reservationService struct {
	repo      repository.ReservationRepository
	seats     repository.SeatReader
	locks     *locking.Manager
	validator *validator.ReservationValidator
	payments  payments.Processor
	cfg       *config.Config
}

func NewReservationService(
	repo repository.ReservationRepository,
	seats repository.SeatReader,
	locks *locking.Manager,
	validator *validator.ReservationValidator,
	processor payments.Processor,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:      repo,
		seats:     seats,
		locks:     locks,
		validator: validator,
		payments:  processor,
		cfg:       cfg,
	}
}

// CreateFromIntent places a pending hold on every seat in the intent,
// or on none of them. Locks are acquired in sorted seat order so two
// overlapping requests cannot deadlock, and every acquired lock is
// released before returning, success or not.
func (s *reservationService) CreateFromIntent(ctx context.Context, intent *model.ReservationIntent) (*CreateResult, error) {
	if err := s.validator.ValidateIntent(intent); err != nil {
		s.cfg.Log.Warn("Reservation intent validation failed",
			"request_id", intent.RequestID,
			"error", err,
		)
		return nil, apperrors.Validation("Invalid reservation request", map[string]any{"error": err.Error()})
	}

	seatIDs := make([]string, len(intent.SeatIDs))
	copy(seatIDs, intent.SeatIDs)
	sort.Strings(seatIDs)

	release, err := s.acquireSeatLocks(ctx, seatIDs)
	if err != nil {
		return nil, err
	}
	defer release()

	groupCode := newShortCode()
	expiresAt := time.Now().UTC().Add(s.cfg.ReservationTimeout)
	reservations := make([]*model.Reservation, 0, len(seatIDs))
	for _, seatID := range seatIDs {
		reservations = append(reservations, &model.Reservation{
			ID:           uuid.NewString(),
			SeatID:       seatID,
			Email:        intent.Email,
			CustomerName: intent.CustomerName,
			PhoneNumber:  intent.PhoneNumber,
			Status:       model.StatusPending,
			ExpiresAt:    &expiresAt,
			GroupCode:    groupCode,
		})
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.verifySeats(sessCtx, seatIDs); err != nil {
			return err
		}
		if err := s.verifyAvailability(sessCtx, seatIDs); err != nil {
			return err
		}
		if err := s.repo.CreateMany(sessCtx, reservations); err != nil {
			return apperrors.Internal("Failed to create reservations", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create reservation group",
			"request_id", intent.RequestID,
			"seat_count", len(seatIDs),
			"error", err,
		)
		return nil, err
	}

	ids := make([]string, 0, len(reservations))
	for _, reservation := range reservations {
		ids = append(ids, reservation.ID)
	}

	s.cfg.Log.Info("Reservation group created",
		"request_id", intent.RequestID,
		"group_code", groupCode,
		"seat_count", len(seatIDs),
		"expires_at", expiresAt,
	)
	return &CreateResult{
		GroupCode:      groupCode,
		ReservationIDs: ids,
	}, nil
}

// Confirm moves a whole reservation group from pending to confirmed.
// The seats stay locked across the payment call so the sweep and
// competing requests cannot touch them mid-flight.
func (s *reservationService) Confirm(ctx context.Context, id string, email string) (*ConfirmResult, error) {
	reservation, err := s.getOwned(ctx, id, email)
	if err != nil {
		return nil, err
	}

	group, err := s.repo.FindByGroupAndEmail(ctx, reservation.GroupCode, email)
	if err != nil {
		if errors.Is(err, reserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Reservation", id)
		}
		return nil, apperrors.Internal("Failed to load reservation group", err)
	}

	// Individually cancelled seats left the group's lifecycle; confirm
	// covers the members that are still live.
	members := make([]*model.Reservation, 0, len(group))
	for _, r := range group {
		if r.Status == model.StatusCancelled {
			continue
		}
		members = append(members, r)
	}
	if len(members) == 0 {
		return nil, apperrors.InvalidState("Reservation group is cancelled")
	}

	now := time.Now().UTC()
	for _, r := range members {
		if r.ExpiredAt(now) {
			if _, err := s.repo.UpdateGroupStatus(ctx, reservation.GroupCode, model.StatusPending, bson.M{"status": model.StatusExpired}); err != nil {
				s.cfg.Log.Error("Failed to expire overdue group on confirm",
					"group_code", reservation.GroupCode,
					"error", err,
				)
			}
			return nil, apperrors.Expired("Reservation hold has expired")
		}
		if r.Status != model.StatusPending {
			return nil, apperrors.InvalidState(fmt.Sprintf("Reservation is %s and cannot be confirmed", r.Status))
		}
	}

	seatIDs := make([]string, 0, len(members))
	for _, r := range members {
		seatIDs = append(seatIDs, r.SeatID)
	}
	sort.Strings(seatIDs)

	release, err := s.acquireSeatLocks(ctx, seatIDs)
	if err != nil {
		return nil, err
	}
	defer release()

	amount := float64(s.cfg.SeatPrice * len(members))
	payment, err := s.payments.ProcessPayment(ctx, amount, email)
	if err != nil {
		return nil, apperrors.Internal("Payment processing failed", err)
	}
	if !payment.Success {
		s.cfg.Log.Warn("Payment declined for reservation group",
			"group_code", reservation.GroupCode,
			"amount", amount,
		)
		return nil, apperrors.PaymentFailed(payment.Message)
	}

	confirmationCode := newShortCode()
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		// Only pending rows are eligible; a sweep that slipped in
		// between shows up as a short match count, not a silent
		// overwrite. Confirmed rows carry no expiry.
		matched, err := s.repo.UpdateGroupStatus(sessCtx, reservation.GroupCode, model.StatusPending, bson.M{
			"status":            model.StatusConfirmed,
			"confirmation_code": confirmationCode,
			"payment_ref":       payment.TransactionID,
			"expires_at":        nil,
		})
		if err != nil {
			return apperrors.Internal("Failed to confirm reservation group", err)
		}
		if matched != int64(len(members)) {
			return apperrors.Internal("Reservation group changed during confirmation",
				fmt.Errorf("expected %d pending rows, matched %d", len(members), matched))
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to confirm reservation group",
			"group_code", reservation.GroupCode,
			"error", err,
		)
		return nil, err
	}

	for _, r := range members {
		r.Status = model.StatusConfirmed
		r.ConfirmationCode = confirmationCode
		r.PaymentRef = payment.TransactionID
		r.ExpiresAt = nil
	}

	s.cfg.Log.Info("Reservation group confirmed",
		"group_code", reservation.GroupCode,
		"confirmation_code", confirmationCode,
		"seat_count", len(members),
		"payment_ref", payment.TransactionID,
	)
	return &ConfirmResult{
		ConfirmationCode: confirmationCode,
		Reservations:     members,
	}, nil
}

// Cancel releases one seat. Other seats in the same group keep their
// own lifecycle. The status write happens under the seat lock so a
// concurrent create or confirm on the same seat cannot interleave.
func (s *reservationService) Cancel(ctx context.Context, id string, email string) error {
	reservation, err := s.getOwned(ctx, id, email)
	if err != nil {
		return err
	}

	release, err := s.acquireSeatLocks(ctx, []string{reservation.SeatID})
	if err != nil {
		return err
	}
	defer release()

	if reservation.ExpiredAt(time.Now().UTC()) {
		if err := s.repo.UpdateStatus(ctx, id, bson.M{"status": model.StatusExpired}); err != nil {
			s.cfg.Log.Error("Failed to expire overdue reservation on cancel", "id", id, "error", err)
		}
		return apperrors.Expired("Reservation hold has expired")
	}
	if !reservation.Cancellable() {
		return apperrors.InvalidState(fmt.Sprintf("Reservation is %s and cannot be cancelled", reservation.Status))
	}

	if err := s.repo.UpdateStatus(ctx, id, bson.M{"status": model.StatusCancelled}); err != nil {
		if errors.Is(err, reserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Reservation", id)
		}
		return apperrors.Internal("Failed to cancel reservation", err)
	}

	s.cfg.Log.Info("Reservation cancelled", "id", id, "seat_id", reservation.SeatID)
	return nil
}

func (s *reservationService) GetByID(ctx context.Context, id string, email string) (*model.Reservation, error) {
	return s.getOwned(ctx, id, email)
}

func (s *reservationService) GetGroup(ctx context.Context, groupCode string, email string) ([]*model.Reservation, error) {
	if groupCode == "" || email == "" {
		return nil, apperrors.InvalidInput("Group code and email are required")
	}

	group, err := s.repo.FindByGroupAndEmail(ctx, groupCode, email)
	if err != nil {
		if errors.Is(err, reserrors.ErrNotFound) {
			return nil, apperrors.NotFound("Reservation group")
		}
		return nil, apperrors.Internal("Failed to load reservation group", err)
	}
	return group, nil
}

func (s *reservationService) ListByEmail(ctx context.Context, email string, limit int, offset int64) ([]*model.Reservation, error) {
	if email == "" {
		return nil, apperrors.InvalidInput("Email is required")
	}

	reservations, err := s.repo.FindByEmail(ctx, email, limit, offset)
	if err != nil {
		return nil, apperrors.Internal("Failed to list reservations", err)
	}
	return reservations, nil
}

// ExpireSweep is lock-free: the bulk update's status filter makes it
// safe against concurrent confirms and repeated runs.
func (s *reservationService) ExpireSweep(ctx context.Context) (int64, error) {
	expired, err := s.repo.ExpirePending(ctx, time.Now().UTC())
	if err != nil {
		return 0, apperrors.Internal("Failed to sweep expired reservations", err)
	}
	if expired > 0 {
		s.cfg.Log.Info("Expired overdue reservations", "count", expired)
	}
	return expired, nil
}

// --- Helpers ---

func (s *reservationService) getOwned(ctx context.Context, id string, email string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}
	if email == "" {
		return nil, apperrors.InvalidInput("Email is required")
	}

	reservation, err := s.repo.FindByIDAndEmail(ctx, id, email)
	if err != nil {
		if errors.Is(err, reserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Reservation", id)
		}
		return nil, apperrors.Internal("Failed to retrieve reservation", err)
	}
	return reservation, nil
}

// acquireSeatLocks takes the per-seat locks in the order given. On any
// failure the locks already taken are released and a contention error
// names the seat that could not be locked. The returned func releases
// everything and is safe to call exactly once.
func (s *reservationService) acquireSeatLocks(ctx context.Context, seatIDs []string) (func(), error) {
	type held struct {
		seatID string
		token  string
	}
	acquired := make([]held, 0, len(seatIDs))

	releaseAll := func() {
		for _, h := range acquired {
			if _, err := s.locks.Release(ctx, seatKey(h.seatID), h.token); err != nil {
				s.cfg.Log.Warn("Failed to release seat lock", "seat_id", h.seatID, "error", err)
			}
		}
	}

	for _, seatID := range seatIDs {
		token, ok, err := s.locks.Acquire(ctx, seatKey(seatID), s.cfg.LockTTL)
		if err != nil {
			releaseAll()
			return nil, apperrors.Internal("Failed to acquire seat lock", err)
		}
		if !ok {
			releaseAll()
			return nil, apperrors.Contention("Seat is being processed by another request").
				WithDetails(map[string]any{"seat_ids": []string{seatID}})
		}
		acquired = append(acquired, held{seatID: seatID, token: token})
	}

	return releaseAll, nil
}

func (s *reservationService) verifySeats(ctx context.Context, seatIDs []string) error {
	seats, err := s.seats.FindByIDs(ctx, seatIDs)
	if err != nil {
		return apperrors.Internal("Failed to load seats", err)
	}

	found := make(map[string]*model.Seat, len(seats))
	for _, seat := range seats {
		found[seat.ID] = seat
	}

	var missing, inactive []string
	for _, id := range seatIDs {
		seat, ok := found[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if !seat.IsActive {
			inactive = append(inactive, id)
		}
	}

	if len(missing) > 0 {
		return apperrors.NotFound("Seat").
			WithDetails(map[string]any{"seat_ids": missing})
	}
	if len(inactive) > 0 {
		return apperrors.Validation("One or more seats are not active",
			map[string]any{"seat_ids": inactive})
	}
	return nil
}

func (s *reservationService) verifyAvailability(ctx context.Context, seatIDs []string) error {
	active, err := s.repo.FindActiveBySeatIDs(ctx, seatIDs)
	if err != nil {
		return apperrors.Internal("Failed to check seat availability", err)
	}
	if len(active) == 0 {
		return nil
	}

	taken := make(map[string]struct{}, len(active))
	for _, r := range active {
		taken[r.SeatID] = struct{}{}
	}
	conflicting := make([]string, 0, len(taken))
	for _, id := range seatIDs {
		if _, ok := taken[id]; ok {
			conflicting = append(conflicting, id)
		}
	}

	return apperrors.Conflict("One or more seats are already reserved").
		WithDetails(map[string]any{"seat_ids": conflicting})
}

func seatKey(seatID string) string {
	return "seat:" + seatID
}

// newShortCode returns an 8-character uppercase code used for group and
// confirmation codes.
func newShortCode() string {
	return strings.ToUpper(uuid.NewString()[:8])
}
