package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"seatgrid/internal/catalog/repository"
	"seatgrid/pkg/config"
	apperrors "seatgrid/pkg/errors"
	"seatgrid/pkg/model"
)

type CatalogService interface {
	CreateRoom(ctx context.Context, room *model.Room, rows, columns int) ([]*model.Seat, error)
	GetRoom(ctx context.Context, id string) (*model.Room, error)
	ListRooms(ctx context.Context, limit int, offset int64) ([]*model.Room, int64, error)
	ListSeats(ctx context.Context, roomID string) ([]*model.Seat, error)
	SetRoomActive(ctx context.Context, id string, active bool) error
	SetSeatActive(ctx context.Context, id string, active bool) error
}

type catalogService struct {
	rooms    repository.RoomRepository
	seats    repository.SeatRepository
	validate *validator.Validate
	cfg      *config.Config
}

func NewCatalogService(rooms repository.RoomRepository, seats repository.SeatRepository, cfg *config.Config) CatalogService {
	return &catalogService{
		rooms:    rooms,
		seats:    seats,
		validate: validator.New(),
		cfg:      cfg,
	}
}

// CreateRoom persists the room and generates its seat grid. Labels run
// A1..An per row, rows lettered from A.
func (s *catalogService) CreateRoom(ctx context.Context, room *model.Room, rows, columns int) ([]*model.Seat, error) {
	if rows < 1 || columns < 1 {
		return nil, apperrors.InvalidInput("Rows and columns must be positive")
	}
	if rows*columns > 10000 {
		return nil, apperrors.InvalidInput("Seat grid exceeds the maximum room capacity")
	}

	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	room.Capacity = rows * columns
	room.IsActive = true

	if err := s.validate.Struct(room); err != nil {
		return nil, apperrors.Validation("Invalid room", map[string]any{"error": err.Error()})
	}

	seats := make([]*model.Seat, 0, rows*columns)
	for row := 1; row <= rows; row++ {
		for col := 1; col <= columns; col++ {
			seats = append(seats, &model.Seat{
				ID:       uuid.NewString(),
				RoomID:   room.ID,
				Row:      row,
				Column:   col,
				Label:    seatLabel(row, col),
				IsActive: true,
			})
		}
	}

	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, apperrors.Internal("Failed to create room", err)
	}
	if err := s.seats.CreateMany(ctx, seats); err != nil {
		return nil, apperrors.Internal("Failed to create seats", err)
	}

	s.cfg.Log.Info("Room created",
		"id", room.ID,
		"name", room.Name,
		"seat_count", len(seats),
	)
	return seats, nil
}

func (s *catalogService) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Room ID cannot be empty")
	}

	room, err := s.rooms.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, apperrors.NotFoundWithID("Room", id)
		}
		return nil, apperrors.Internal("Failed to retrieve room", err)
	}
	return room, nil
}

func (s *catalogService) ListRooms(ctx context.Context, limit int, offset int64) ([]*model.Room, int64, error) {
	rooms, err := s.rooms.FindAll(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to list rooms", err)
	}
	count, err := s.rooms.Count(ctx)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to count rooms", err)
	}
	return rooms, count, nil
}

func (s *catalogService) ListSeats(ctx context.Context, roomID string) ([]*model.Seat, error) {
	if roomID == "" {
		return nil, apperrors.InvalidInput("Room ID cannot be empty")
	}

	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}

	seats, err := s.seats.FindByRoom(ctx, roomID)
	if err != nil {
		return nil, apperrors.Internal("Failed to list seats", err)
	}
	return seats, nil
}

func (s *catalogService) SetRoomActive(ctx context.Context, id string, active bool) error {
	if id == "" {
		return apperrors.InvalidInput("Room ID cannot be empty")
	}

	if err := s.rooms.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return apperrors.NotFoundWithID("Room", id)
		}
		return apperrors.Internal("Failed to update room", err)
	}

	s.cfg.Log.Info("Room activation changed", "id", id, "active", active)
	return nil
}

func (s *catalogService) SetSeatActive(ctx context.Context, id string, active bool) error {
	if id == "" {
		return apperrors.InvalidInput("Seat ID cannot be empty")
	}

	if err := s.seats.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, repository.ErrSeatNotFound) {
			return apperrors.NotFoundWithID("Seat", id)
		}
		return apperrors.Internal("Failed to update seat", err)
	}

	s.cfg.Log.Info("Seat activation changed", "id", id, "active", active)
	return nil
}

// seatLabel renders row 1 as A, row 27 as AA, like spreadsheet columns.
func seatLabel(row, col int) string {
	letters := ""
	for row > 0 {
		row--
		letters = string(rune('A'+row%26)) + letters
		row /= 26
	}
	return fmt.Sprintf("%s%d", letters, col)
}
