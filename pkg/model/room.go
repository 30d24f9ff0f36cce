package model

import "time"

type Room struct {
	ID          string    `json:"id" bson:"_id" validate:"required,uuid4"`
	Name        string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Description string    `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=500"`
	Capacity    int       `json:"capacity" bson:"capacity" validate:"required,min=1,max=10000"`
	IsActive    bool      `json:"is_active" bson:"is_active"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}
