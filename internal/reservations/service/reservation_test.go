package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"seatgrid/internal/locking"
	"seatgrid/internal/payments"
	reserrors "seatgrid/internal/reservations/errors"
	"seatgrid/internal/reservations/validator"
	"seatgrid/pkg/config"
	mongotx "seatgrid/pkg/db/mongo"
	apperrors "seatgrid/pkg/errors"
	"seatgrid/pkg/logger"
	"seatgrid/pkg/model"
)

// In-memory reservation store with the same filtering semantics as the
// Mongo repository, so the engine's invariants can be exercised without
// a database.
type memReservationRepo struct {
	mu           sync.Mutex
	reservations map[string]*model.Reservation
	createErr    error
}

func newMemReservationRepo() *memReservationRepo {
	return &memReservationRepo{
		reservations: make(map[string]*model.Reservation),
	}
}

func (m *memReservationRepo) Create(ctx context.Context, r *model.Reservation) error {
	return m.CreateMany(ctx, []*model.Reservation{r})
}

func (m *memReservationRepo) CreateMany(ctx context.Context, rs []*model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	now := time.Now().UTC()
	for _, r := range rs {
		cp := *r
		cp.CreatedAt = now
		cp.UpdatedAt = now
		m.reservations[cp.ID] = &cp
	}
	return nil
}

func (m *memReservationRepo) FindByIDAndEmail(ctx context.Context, id string, email string) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok || r.Email != email {
		return nil, reserrors.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memReservationRepo) FindByGroupAndEmail(ctx context.Context, groupCode string, email string) ([]*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Reservation
	for _, r := range m.reservations {
		if r.GroupCode == groupCode && r.Email == email {
			cp := *r
			out = append(out, &cp)
		}
	}
	if len(out) == 0 {
		return nil, reserrors.ErrNotFound
	}
	return out, nil
}

func (m *memReservationRepo) FindByEmail(ctx context.Context, email string, limit int, offset int64) ([]*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Reservation
	for _, r := range m.reservations {
		if r.Email == email {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memReservationRepo) FindActiveBySeatIDs(ctx context.Context, seatIDs []string) ([]*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	wanted := make(map[string]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		wanted[id] = struct{}{}
	}
	var out []*model.Reservation
	for _, r := range m.reservations {
		if _, ok := wanted[r.SeatID]; !ok {
			continue
		}
		blocking := r.Status == model.StatusConfirmed ||
			(r.Status == model.StatusPending && r.ExpiresAt != nil && r.ExpiresAt.After(now))
		if blocking {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memReservationRepo) UpdateStatus(ctx context.Context, id string, fields bson.M) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return reserrors.ErrNotFound
	}
	applyFields(r, fields)
	return nil
}

func (m *memReservationRepo) UpdateGroupStatus(ctx context.Context, groupCode string, from string, fields bson.M) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched int64
	for _, r := range m.reservations {
		if r.GroupCode == groupCode && r.Status == from {
			applyFields(r, fields)
			matched++
		}
	}
	return matched, nil
}

func (m *memReservationRepo) ExpirePending(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var modified int64
	for _, r := range m.reservations {
		if r.Status == model.StatusPending && r.ExpiresAt != nil && r.ExpiresAt.Before(cutoff) {
			r.Status = model.StatusExpired
			modified++
		}
	}
	return modified, nil
}

func (m *memReservationRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

func applyFields(r *model.Reservation, fields bson.M) {
	if v, ok := fields["status"].(string); ok {
		r.Status = v
	}
	if v, ok := fields["confirmation_code"].(string); ok {
		r.ConfirmationCode = v
	}
	if v, ok := fields["payment_ref"].(string); ok {
		r.PaymentRef = v
	}
	if v, ok := fields["expires_at"]; ok && v == nil {
		r.ExpiresAt = nil
	}
}

type mockSeatReader struct {
	seats map[string]*model.Seat
}

func (m *mockSeatReader) FindByIDs(ctx context.Context, ids []string) ([]*model.Seat, error) {
	var out []*model.Seat
	for _, id := range ids {
		if seat, ok := m.seats[id]; ok {
			out = append(out, seat)
		}
	}
	return out, nil
}

// fakeLockClient backs the real lock manager with an in-memory map.
type fakeLockClient struct {
	mu   sync.Mutex
	held map[string]string
}

func newFakeLockClient() *fakeLockClient {
	return &fakeLockClient{held: make(map[string]string)}
}

func (f *fakeLockClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.held[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.held[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeLockClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := keys[0]
	token := args[0].(string)
	if f.held[key] == token {
		delete(f.held, key)
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeLockClient) lockCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.held)
}

type mockProcessor struct {
	processFunc func(ctx context.Context, amount float64, email string) (*payments.Result, error)
	calls       int
}

func (m *mockProcessor) ProcessPayment(ctx context.Context, amount float64, email string) (*payments.Result, error) {
	m.calls++
	if m.processFunc != nil {
		return m.processFunc(ctx, amount, email)
	}
	return &payments.Result{Success: true, TransactionID: uuid.NewString()}, nil
}

type fixture struct {
	service  ReservationService
	repo     *memReservationRepo
	seats    *mockSeatReader
	locks    *fakeLockClient
	payments *mockProcessor
	cfg      *config.Config
}

func newFixture(seatIDs ...string) *fixture {
	log := logger.New(logger.Config{
		Level:     "info",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	cfg := &config.Config{
		ReservationTimeout: 10 * time.Minute,
		LockTTL:            30 * time.Second,
		SeatPrice:          100,
		MaxSeatsPerRequest: 10,
		Log:                log,
	}

	seats := &mockSeatReader{seats: make(map[string]*model.Seat)}
	for _, id := range seatIDs {
		seats.seats[id] = &model.Seat{ID: id, RoomID: uuid.NewString(), Row: 1, Column: 1, Label: "A1", IsActive: true}
	}

	repo := newMemReservationRepo()
	locks := newFakeLockClient()
	processor := &mockProcessor{}

	svc := NewReservationService(
		repo,
		seats,
		locking.NewManager(locks, log),
		validator.NewReservationValidator(log, cfg.MaxSeatsPerRequest),
		processor,
		cfg,
	)

	return &fixture{
		service:  svc,
		repo:     repo,
		seats:    seats,
		locks:    locks,
		payments: processor,
		cfg:      cfg,
	}
}

func intentFor(seatIDs ...string) *model.ReservationIntent {
	return &model.ReservationIntent{
		RequestID:    uuid.NewString(),
		SeatIDs:      seatIDs,
		Email:        "alice@example.com",
		CustomerName: "Alice Cohen",
		Timestamp:    time.Now().UTC(),
	}
}

func TestCreateFromIntent_Success(t *testing.T) {
	seatA, seatB := uuid.NewString(), uuid.NewString()
	f := newFixture(seatA, seatB)
	ctx := context.Background()

	result, err := f.service.CreateFromIntent(ctx, intentFor(seatA, seatB))
	if err != nil {
		t.Fatalf("CreateFromIntent failed: %v", err)
	}
	if result.GroupCode == "" {
		t.Error("expected a group code")
	}
	if len(result.ReservationIDs) != 2 {
		t.Fatalf("expected 2 reservation ids, got %d", len(result.ReservationIDs))
	}

	for _, id := range result.ReservationIDs {
		r, err := f.repo.FindByIDAndEmail(ctx, id, "alice@example.com")
		if err != nil {
			t.Fatalf("reservation %s not persisted: %v", id, err)
		}
		if r.Status != model.StatusPending {
			t.Errorf("expected pending status, got %s", r.Status)
		}
		if r.ExpiresAt == nil || !r.ExpiresAt.After(time.Now().UTC()) {
			t.Error("expected a future expiry on the pending hold")
		}
		if r.GroupCode != result.GroupCode {
			t.Errorf("expected group code %s, got %s", result.GroupCode, r.GroupCode)
		}
	}

	if f.locks.lockCount() != 0 {
		t.Errorf("expected all seat locks released, %d still held", f.locks.lockCount())
	}
}

func TestCreateFromIntent_DoubleBookingPrevented(t *testing.T) {
	seat := uuid.NewString()
	f := newFixture(seat)
	ctx := context.Background()

	if _, err := f.service.CreateFromIntent(ctx, intentFor(seat)); err != nil {
		t.Fatalf("first reservation failed: %v", err)
	}

	_, err := f.service.CreateFromIntent(ctx, intentFor(seat))
	if err == nil {
		t.Fatal("expected second reservation for the same seat to fail")
	}
	if apperrors.CodeOf(err) != apperrors.CodeConflict {
		t.Errorf("expected conflict code, got %s", apperrors.CodeOf(err))
	}
}

func TestCreateFromIntent_ConcurrentRequestsSingleWinner(t *testing.T) {
	seat := uuid.NewString()
	f := newFixture(seat)
	ctx := context.Background()

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.CreateFromIntent(ctx, intentFor(seat))
		}(i)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		losses++
		code := apperrors.CodeOf(err)
		if code != apperrors.CodeConflict && code != apperrors.CodeContention {
			t.Errorf("loser must see conflict or contention, got %s", code)
		}
	}
	if wins != 1 || losses != 1 {
		t.Fatalf("expected exactly one winner, got %d wins and %d losses", wins, losses)
	}

	if len(f.repo.reservations) != 1 {
		t.Errorf("expected a single pending hold, got %d reservations", len(f.repo.reservations))
	}
	if f.locks.lockCount() != 0 {
		t.Errorf("expected all seat locks released, %d still held", f.locks.lockCount())
	}
}

func TestCreateFromIntent_ContendedSeatFailsFast(t *testing.T) {
	seat := uuid.NewString()
	f := newFixture(seat)
	ctx := context.Background()

	// Another request holds the seat lock.
	f.locks.held["lock:seat:"+seat] = "other-token"

	_, err := f.service.CreateFromIntent(ctx, intentFor(seat))
	if err == nil {
		t.Fatal("expected contention error while the seat lock is held")
	}
	if apperrors.CodeOf(err) != apperrors.CodeContention {
		t.Errorf("expected contention code, got %s", apperrors.CodeOf(err))
	}
	if len(f.repo.reservations) != 0 {
		t.Error("contended request must not create reservations")
	}
}

func TestCreateFromIntent_AllOrNothing(t *testing.T) {
	seatA, seatB := uuid.NewString(), uuid.NewString()
	f := newFixture(seatA, seatB)
	ctx := context.Background()

	if _, err := f.service.CreateFromIntent(ctx, intentFor(seatB)); err != nil {
		t.Fatalf("setup reservation failed: %v", err)
	}
	before := len(f.repo.reservations)

	_, err := f.service.CreateFromIntent(ctx, intentFor(seatA, seatB))
	if err == nil {
		t.Fatal("expected group with one taken seat to fail")
	}
	if apperrors.CodeOf(err) != apperrors.CodeConflict {
		t.Errorf("expected conflict code, got %s", apperrors.CodeOf(err))
	}

	appErr := apperrors.AsAppError(err)
	if appErr == nil {
		t.Fatal("expected an AppError")
	}
	conflicting, ok := appErr.Details["seat_ids"].([]string)
	if !ok || len(conflicting) != 1 || conflicting[0] != seatB {
		t.Errorf("expected conflict details naming seat %s, got %v", seatB, appErr.Details["seat_ids"])
	}

	if len(f.repo.reservations) != before {
		t.Error("failed group request must not create any reservation")
	}
	if f.locks.lockCount() != 0 {
		t.Errorf("expected all seat locks released, %d still held", f.locks.lockCount())
	}
}

func TestCreateFromIntent_UnknownSeat(t *testing.T) {
	known := uuid.NewString()
	f := newFixture(known)
	ctx := context.Background()

	_, err := f.service.CreateFromIntent(ctx, intentFor(uuid.NewString()))
	if err == nil {
		t.Fatal("expected unknown seat to fail")
	}
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Errorf("expected not found code, got %s", apperrors.CodeOf(err))
	}
}

func TestCreateFromIntent_InactiveSeat(t *testing.T) {
	seat := uuid.NewString()
	f := newFixture(seat)
	f.seats.seats[seat].IsActive = false
	ctx := context.Background()

	_, err := f.service.CreateFromIntent(ctx, intentFor(seat))
	if err == nil {
		t.Fatal("expected inactive seat to fail")
	}
	if apperrors.CodeOf(err) != apperrors.CodeValidation {
		t.Errorf("expected validation code, got %s", apperrors.CodeOf(err))
	}
}

func TestConfirm_Success(t *testing.T) {
	seatA, seatB := uuid.NewString(), uuid.NewString()
	f := newFixture(seatA, seatB)
	ctx := context.Background()

	created, err := f.service.CreateFromIntent(ctx, intentFor(seatA, seatB))
	if err != nil {
		t.Fatalf("CreateFromIntent failed: %v", err)
	}

	result, err := f.service.Confirm(ctx, created.ReservationIDs[0], "alice@example.com")
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if len(result.ConfirmationCode) != 8 {
		t.Errorf("expected 8-character confirmation code, got %q", result.ConfirmationCode)
	}
	if len(result.Reservations) != 2 {
		t.Fatalf("expected whole group confirmed, got %d reservations", len(result.Reservations))
	}

	for _, id := range created.ReservationIDs {
		r, err := f.repo.FindByIDAndEmail(ctx, id, "alice@example.com")
		if err != nil {
			t.Fatalf("reservation %s missing: %v", id, err)
		}
		if r.Status != model.StatusConfirmed {
			t.Errorf("expected confirmed status, got %s", r.Status)
		}
		if r.ConfirmationCode != result.ConfirmationCode {
			t.Error("whole group must share one confirmation code")
		}
		if r.PaymentRef == "" {
			t.Error("confirmed reservation must carry a payment reference")
		}
		if r.ExpiresAt != nil {
			t.Errorf("confirmed reservation must not carry an expiry, got %v", r.ExpiresAt)
		}
	}
	for _, r := range result.Reservations {
		if r.ExpiresAt != nil {
			t.Errorf("confirm result must not carry an expiry, got %v", r.ExpiresAt)
		}
	}

	if f.payments.calls != 1 {
		t.Errorf("expected exactly one payment for the group, got %d", f.payments.calls)
	}
	if f.locks.lockCount() != 0 {
		t.Errorf("expected all seat locks released, %d still held", f.locks.lockCount())
	}
}

func TestConfirm_ExpiredHold(t *testing.T) {
	seat := uuid.NewString()
	f := newFixture(seat)
	ctx := context.Background()

	created, err := f.service.CreateFromIntent(ctx, intentFor(seat))
	if err != nil {
		t.Fatalf("CreateFromIntent failed: %v", err)
	}

	past := time.Now().UTC().Add(-time.Minute)
	f.repo.reservations[created.ReservationIDs[0]].ExpiresAt = &past

	_, err = f.service.Confirm(ctx, created.ReservationIDs[0], "alice@example.com")
	if err == nil {
		t.Fatal("expected confirm of an expired hold to fail")
	}
	if apperrors.CodeOf(err) != apperrors.CodeExpired {
		t.Errorf("expected expired code, got %s", apperrors.CodeOf(err))
	}

	r, err := f.repo.FindByIDAndEmail(ctx, created.ReservationIDs[0], "alice@example.com")
	if err != nil {
		t.Fatalf("reservation missing: %v", err)
	}
	if r.Status != model.StatusExpired {
		t.Errorf("overdue hold must flip to expired on confirm, got %s", r.Status)
	}
	if f.payments.calls != 0 {
		t.Error("no payment may be attempted for an expired hold")
	}
}

func TestConfirm_PaymentDeclined(t *testing.T) {
	seat := uuid.NewString()
	f := newFixture(seat)
	f.payments.processFunc = func(ctx context.Context, amount float64, email string) (*payments.Result, error) {
		return &payments.Result{Success: false, Message: "card declined by issuer"}, nil
	}
	ctx := context.Background()

	created, err := f.service.CreateFromIntent(ctx, intentFor(seat))
	if err != nil {
		t.Fatalf("CreateFromIntent failed: %v", err)
	}

	_, err = f.service.Confirm(ctx, created.ReservationIDs[0], "alice@example.com")
	if err == nil {
		t.Fatal("expected declined payment to fail the confirm")
	}
	if apperrors.CodeOf(err) != apperrors.CodePaymentFailed {
		t.Errorf("expected payment failed code, got %s", apperrors.CodeOf(err))
	}

	r, err := f.repo.FindByIDAndEmail(ctx, created.ReservationIDs[0], "alice@example.com")
	if err != nil {
		t.Fatalf("reservation missing: %v", err)
	}
	if r.Status != model.StatusPending {
		t.Errorf("declined payment must leave the hold pending, got %s", r.Status)
	}
	if f.locks.lockCount() != 0 {
		t.Errorf("expected all seat locks released, %d still held", f.locks.lockCount())
	}
}

func TestConfirm_ChargesGroupPrice(t *testing.T) {
	seatA, seatB, seatC := uuid.NewString(), uuid.NewString(), uuid.NewString()
	f := newFixture(seatA, seatB, seatC)
	var charged float64
	f.payments.processFunc = func(ctx context.Context, amount float64, email string) (*payments.Result, error) {
		charged = amount
		return &payments.Result{Success: true, TransactionID: uuid.NewString()}, nil
	}
	ctx := context.Background()

	created, err := f.service.CreateFromIntent(ctx, intentFor(seatA, seatB, seatC))
	if err != nil {
		t.Fatalf("CreateFromIntent failed: %v", err)
	}
	if _, err := f.service.Confirm(ctx, created.ReservationIDs[0], "alice@example.com"); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	if charged != 300 {
		t.Errorf("expected group charge of 300, got %g", charged)
	}
}

func TestConfirm_ExpiryKeepsCancelledMember(t *testing.T) {
	seatA, seatB := uuid.NewString(), uuid.NewString()
	f := newFixture(seatA, seatB)
	ctx := context.Background()

	created, err := f.service.CreateFromIntent(ctx, intentFor(seatA, seatB))
	if err != nil {
		t.Fatalf("CreateFromIntent failed: %v", err)
	}
	cancelledID, heldID := created.ReservationIDs[0], created.ReservationIDs[1]

	if err := f.service.Cancel(ctx, cancelledID, "alice@example.com"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	past := time.Now().UTC().Add(-time.Minute)
	f.repo.reservations[heldID].ExpiresAt = &past

	_, err = f.service.Confirm(ctx, heldID, "alice@example.com")
	if apperrors.CodeOf(err) != apperrors.CodeExpired {
		t.Fatalf("expected expired code, got %v", err)
	}

	// Cancelled is final: the group-wide expiry transition must not
	// touch the member that already left the lifecycle.
	if got := f.repo.reservations[cancelledID].Status; got != model.StatusCancelled {
		t.Errorf("cancelled member must stay cancelled, got %s", got)
	}
	if got := f.repo.reservations[heldID].Status; got != model.StatusExpired {
		t.Errorf("overdue member must flip to expired, got %s", got)
	}
}

func TestConfirm_SweptHoldIsNotOverwritten(t *testing.T) {
	seat := uuid.NewString()
	f := newFixture(seat)
	ctx := context.Background()

	created, err := f.service.CreateFromIntent(ctx, intentFor(seat))
	if err != nil {
		t.Fatalf("CreateFromIntent failed: %v", err)
	}
	id := created.ReservationIDs[0]

	// The sweep flips the hold while the payment is in flight.
	f.payments.processFunc = func(ctx context.Context, amount float64, email string) (*payments.Result, error) {
		f.repo.mu.Lock()
		f.repo.reservations[id].Status = model.StatusExpired
		f.repo.mu.Unlock()
		return &payments.Result{Success: true, TransactionID: uuid.NewString()}, nil
	}

	if _, err := f.service.Confirm(ctx, id, "alice@example.com"); err == nil {
		t.Fatal("expected confirm to fail when the hold was swept mid-flight")
	}
	if got := f.repo.reservations[id].Status; got != model.StatusExpired {
		t.Errorf("swept hold must not be overwritten, got %s", got)
	}
}

func TestConfirm_AfterPartialCancel(t *testing.T) {
	seatA, seatB := uuid.NewString(), uuid.NewString()
	f := newFixture(seatA, seatB)
	var charged float64
	f.payments.processFunc = func(ctx context.Context, amount float64, email string) (*payments.Result, error) {
		charged = amount
		return &payments.Result{Success: true, TransactionID: uuid.NewString()}, nil
	}
	ctx := context.Background()

	created, err := f.service.CreateFromIntent(ctx, intentFor(seatA, seatB))
	if err != nil {
		t.Fatalf("CreateFromIntent failed: %v", err)
	}
	cancelledID, keptID := created.ReservationIDs[0], created.ReservationIDs[1]

	if err := f.service.Cancel(ctx, cancelledID, "alice@example.com"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	result, err := f.service.Confirm(ctx, keptID, "alice@example.com")
	if err != nil {
		t.Fatalf("Confirm after partial cancel failed: %v", err)
	}
	if len(result.Reservations) != 1 {
		t.Fatalf("expected only the live member confirmed, got %d", len(result.Reservations))
	}
	if charged != 100 {
		t.Errorf("expected charge for the live member only, got %g", charged)
	}
	if got := f.repo.reservations[cancelledID].Status; got != model.StatusCancelled {
		t.Errorf("cancelled member must stay cancelled, got %s", got)
	}
	if got := f.repo.reservations[keptID].Status; got != model.StatusConfirmed {
		t.Errorf("live member must be confirmed, got %s", got)
	}
}

func TestCancel_PendingReservation(t *testing.T) {
	seat := uuid.NewString()
	f := newFixture(seat)
	ctx := context.Background()

	created, err := f.service.CreateFromIntent(ctx, intentFor(seat))
	if err != nil {
		t.Fatalf("CreateFromIntent failed: %v", err)
	}
	id := created.ReservationIDs[0]

	if err := f.service.Cancel(ctx, id, "alice@example.com"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	r, err := f.repo.FindByIDAndEmail(ctx, id, "alice@example.com")
	if err != nil {
		t.Fatalf("reservation missing: %v", err)
	}
	if r.Status != model.StatusCancelled {
		t.Errorf("expected cancelled status, got %s", r.Status)
	}

	// Cancelling again is an invalid transition.
	err = f.service.Cancel(ctx, id, "alice@example.com")
	if apperrors.CodeOf(err) != apperrors.CodeInvalidState {
		t.Errorf("expected invalid state code on double cancel, got %s", apperrors.CodeOf(err))
	}
}

func TestCancel_ContendedSeatFailsFast(t *testing.T) {
	seat := uuid.NewString()
	f := newFixture(seat)
	ctx := context.Background()

	created, err := f.service.CreateFromIntent(ctx, intentFor(seat))
	if err != nil {
		t.Fatalf("CreateFromIntent failed: %v", err)
	}

	// Another request holds the seat lock.
	f.locks.held["lock:seat:"+seat] = "other-token"

	err = f.service.Cancel(ctx, created.ReservationIDs[0], "alice@example.com")
	if apperrors.CodeOf(err) != apperrors.CodeContention {
		t.Errorf("expected contention code while the seat lock is held, got %v", err)
	}
	if got := f.repo.reservations[created.ReservationIDs[0]].Status; got != model.StatusPending {
		t.Errorf("contended cancel must not change the reservation, got %s", got)
	}
}

func TestCancel_ThenSeatIsFreeAgain(t *testing.T) {
	seat := uuid.NewString()
	f := newFixture(seat)
	ctx := context.Background()

	created, err := f.service.CreateFromIntent(ctx, intentFor(seat))
	if err != nil {
		t.Fatalf("CreateFromIntent failed: %v", err)
	}
	if err := f.service.Cancel(ctx, created.ReservationIDs[0], "alice@example.com"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	if _, err := f.service.CreateFromIntent(ctx, intentFor(seat)); err != nil {
		t.Fatalf("expected cancelled seat to be reservable again, got %v", err)
	}
}

func TestCancel_WrongEmailIsNotFound(t *testing.T) {
	seat := uuid.NewString()
	f := newFixture(seat)
	ctx := context.Background()

	created, err := f.service.CreateFromIntent(ctx, intentFor(seat))
	if err != nil {
		t.Fatalf("CreateFromIntent failed: %v", err)
	}

	err = f.service.Cancel(ctx, created.ReservationIDs[0], "mallory@example.com")
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Errorf("expected not found for wrong email, got %s", apperrors.CodeOf(err))
	}
}

func TestExpireSweep_FlipsOverdueHoldsOnce(t *testing.T) {
	seatA, seatB := uuid.NewString(), uuid.NewString()
	f := newFixture(seatA, seatB)
	ctx := context.Background()

	created, err := f.service.CreateFromIntent(ctx, intentFor(seatA, seatB))
	if err != nil {
		t.Fatalf("CreateFromIntent failed: %v", err)
	}
	past := time.Now().UTC().Add(-time.Minute)
	for _, id := range created.ReservationIDs {
		f.repo.reservations[id].ExpiresAt = &past
	}

	expired, err := f.service.ExpireSweep(ctx)
	if err != nil {
		t.Fatalf("ExpireSweep failed: %v", err)
	}
	if expired != 2 {
		t.Errorf("expected 2 expired holds, got %d", expired)
	}

	// A second sweep finds nothing: the sweep is idempotent.
	expired, err = f.service.ExpireSweep(ctx)
	if err != nil {
		t.Fatalf("second ExpireSweep failed: %v", err)
	}
	if expired != 0 {
		t.Errorf("expected idempotent second sweep, got %d", expired)
	}

	// The seats are free for new holds afterwards.
	if _, err := f.service.CreateFromIntent(ctx, intentFor(seatA)); err != nil {
		t.Fatalf("expected expired seat to be reservable again, got %v", err)
	}
}

func TestExpiredUnsweptHoldDoesNotBlock(t *testing.T) {
	seat := uuid.NewString()
	f := newFixture(seat)
	ctx := context.Background()

	created, err := f.service.CreateFromIntent(ctx, intentFor(seat))
	if err != nil {
		t.Fatalf("CreateFromIntent failed: %v", err)
	}
	past := time.Now().UTC().Add(-time.Minute)
	f.repo.reservations[created.ReservationIDs[0]].ExpiresAt = &past

	// No sweep has run, but the overdue hold must not block the seat.
	if _, err := f.service.CreateFromIntent(ctx, intentFor(seat)); err != nil {
		t.Fatalf("expected overdue hold to be ignored, got %v", err)
	}
}
