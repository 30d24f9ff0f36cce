package model

import "time"

// ReservationIntent is the payload published to the message channel by
// the gateway and consumed by the request consumer. It is keyed by the
// first (sorted) seat id so intents for the same seat arrive in
// submission order.
type ReservationIntent struct {
	RequestID    string    `json:"request_id" validate:"required,uuid4"`
	SeatIDs      []string  `json:"seat_ids" validate:"required,min=1,dive,uuid4"`
	Email        string    `json:"email" validate:"required,email"`
	CustomerName string    `json:"customer_name" validate:"required,min=2,max=100"`
	PhoneNumber  string    `json:"phone_number,omitempty" validate:"omitempty,e164"`
	Timestamp    time.Time `json:"timestamp"`
}
