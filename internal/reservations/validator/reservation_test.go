package validator

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"seatgrid/pkg/logger"
	"seatgrid/pkg/model"
)

func testValidator(maxSeats int) *ReservationValidator {
	log := logger.New(logger.Config{
		Level:     "info",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	return NewReservationValidator(log, maxSeats)
}

func validIntent(seatCount int) *model.ReservationIntent {
	seats := make([]string, seatCount)
	for i := range seats {
		seats[i] = uuid.NewString()
	}
	return &model.ReservationIntent{
		RequestID:    uuid.NewString(),
		SeatIDs:      seats,
		Email:        "alice@example.com",
		CustomerName: "Alice Cohen",
		PhoneNumber:  "+972541234567",
		Timestamp:    time.Now().UTC(),
	}
}

func TestValidateIntent(t *testing.T) {
	v := testValidator(10)

	tests := []struct {
		name      string
		mutate    func(*model.ReservationIntent)
		wantError bool
	}{
		{
			name:      "valid single seat",
			mutate:    func(i *model.ReservationIntent) {},
			wantError: false,
		},
		{
			name: "missing request id",
			mutate: func(i *model.ReservationIntent) {
				i.RequestID = ""
			},
			wantError: true,
		},
		{
			name: "request id not a uuid",
			mutate: func(i *model.ReservationIntent) {
				i.RequestID = "not-a-uuid"
			},
			wantError: true,
		},
		{
			name: "empty seat list",
			mutate: func(i *model.ReservationIntent) {
				i.SeatIDs = nil
			},
			wantError: true,
		},
		{
			name: "seat id not a uuid",
			mutate: func(i *model.ReservationIntent) {
				i.SeatIDs = []string{"seat-42"}
			},
			wantError: true,
		},
		{
			name: "invalid email",
			mutate: func(i *model.ReservationIntent) {
				i.Email = "nope"
			},
			wantError: true,
		},
		{
			name: "name too short",
			mutate: func(i *model.ReservationIntent) {
				i.CustomerName = "A"
			},
			wantError: true,
		},
		{
			name: "phone optional",
			mutate: func(i *model.ReservationIntent) {
				i.PhoneNumber = ""
			},
			wantError: false,
		},
		{
			name: "phone not e164",
			mutate: func(i *model.ReservationIntent) {
				i.PhoneNumber = "0541234567"
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := validIntent(1)
			tt.mutate(intent)
			err := v.ValidateIntent(intent)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateIntent() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestValidateIntentRejectsDuplicateSeats(t *testing.T) {
	v := testValidator(10)

	intent := validIntent(2)
	intent.SeatIDs[1] = intent.SeatIDs[0]

	err := v.ValidateIntent(intent)
	if err == nil {
		t.Fatal("expected error for duplicate seat IDs")
	}
	if !strings.Contains(err.Error(), "duplicate seat ID") {
		t.Errorf("expected duplicate seat message, got %q", err.Error())
	}
}

func TestValidateIntentRejectsOversizedBatch(t *testing.T) {
	v := testValidator(3)

	err := v.ValidateIntent(validIntent(4))
	if err == nil {
		t.Fatal("expected error for oversized batch")
	}
	if !strings.Contains(err.Error(), "exceeds maximum") {
		t.Errorf("expected batch size message, got %q", err.Error())
	}
}

func TestValidateIntentAllowsBatchAtLimit(t *testing.T) {
	v := testValidator(3)

	if err := v.ValidateIntent(validIntent(3)); err != nil {
		t.Fatalf("expected batch at limit to pass, got %v", err)
	}
}
