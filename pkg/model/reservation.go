package model

import "time"

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

// Reservation is one seat held by one request. All rows created by a
// multi-seat request share a GroupCode and transition together.
type Reservation struct {
	ID               string     `json:"id" bson:"_id" validate:"required,uuid4"`
	SeatID           string     `json:"seat_id" bson:"seat_id" validate:"required,uuid4"`
	Email            string     `json:"email" bson:"email" validate:"required,email"`
	CustomerName     string     `json:"customer_name" bson:"customer_name" validate:"required,min=2,max=100"`
	PhoneNumber      string     `json:"phone_number,omitempty" bson:"phone_number,omitempty" validate:"omitempty,e164"`
	Status           string     `json:"status" bson:"status" validate:"required,oneof=pending confirmed cancelled expired"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
	GroupCode        string     `json:"group_code" bson:"group_code" validate:"required"`
	ConfirmationCode string     `json:"confirmation_code,omitempty" bson:"confirmation_code,omitempty"`
	PaymentRef       string     `json:"payment_ref,omitempty" bson:"payment_ref,omitempty"`
	CreatedAt        time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" bson:"updated_at"`
}

// Cancellable reports whether the reservation may still move to cancelled.
// Expired and cancelled are final; a confirmed reservation may still be
// cancelled by its owner.
func (r *Reservation) Cancellable() bool {
	return r.Status == StatusPending || r.Status == StatusConfirmed
}

// ExpiredAt reports whether a pending hold has run out at the given instant.
func (r *Reservation) ExpiredAt(now time.Time) bool {
	return r.Status == StatusPending && r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}
