package model

import "time"

type Seat struct {
	ID        string    `json:"id" bson:"_id" validate:"required,uuid4"`
	RoomID    string    `json:"room_id" bson:"room_id" validate:"required,uuid4"`
	Row       int       `json:"row" bson:"row" validate:"required,min=1"`
	Column    int       `json:"column" bson:"column" validate:"required,min=1"`
	Label     string    `json:"label" bson:"label" validate:"required,min=1,max=20"`
	IsActive  bool      `json:"is_active" bson:"is_active"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}
