// Package consumer turns delivered reservation intents into engine
// calls and records each outcome against its request id.
package consumer

import (
	"context"
	"fmt"

	"seatgrid/internal/requeststore"
	"seatgrid/internal/reservations/service"
	"seatgrid/pkg/config"
	apperrors "seatgrid/pkg/errors"
	"seatgrid/pkg/kafka"
	"seatgrid/pkg/model"
)

type IntentConsumer struct {
	service service.ReservationService
	store   requeststore.Store
	cfg     *config.Config
}

func NewIntentConsumer(svc service.ReservationService, store requeststore.Store, cfg *config.Config) *IntentConsumer {
	return &IntentConsumer{
		service: svc,
		store:   store,
		cfg:     cfg,
	}
}

// Handle processes one delivered intent. Business failures are recorded
// against the request id and do not propagate: redelivery cannot fix
// them. Only infrastructure failures return an error.
func (c *IntentConsumer) Handle(ctx context.Context, msg kafka.Message) error {
	var intent model.ReservationIntent
	if err := msg.DecodeValue(&intent); err != nil {
		return c.handleMalformed(ctx, msg, err)
	}
	if intent.RequestID == "" {
		intent.RequestID = msg.GetRequestID()
	}
	if intent.RequestID == "" {
		c.cfg.Log.Error("Dropping intent without request id",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
		)
		return nil
	}

	// Redeliveries and duplicate submissions resolve to the first
	// recorded outcome.
	if existing, found, err := c.store.Get(ctx, intent.RequestID); err != nil {
		return fmt.Errorf("failed to check request record: %w", err)
	} else if found {
		c.cfg.Log.Info("Skipping already processed request",
			"request_id", intent.RequestID,
			"status", existing.Status,
		)
		return nil
	}

	result, err := c.service.CreateFromIntent(ctx, &intent)
	if err != nil {
		return c.recordFailure(ctx, intent.RequestID, err)
	}

	record := &requeststore.Record{
		RequestID:      intent.RequestID,
		Status:         requeststore.StatusSucceeded,
		GroupCode:      result.GroupCode,
		ReservationIDs: result.ReservationIDs,
	}
	if err := c.store.Put(ctx, record); err != nil {
		return fmt.Errorf("failed to record request outcome: %w", err)
	}

	c.cfg.Log.Info("Reservation request processed",
		"request_id", intent.RequestID,
		"group_code", result.GroupCode,
	)
	return nil
}

// handleMalformed records a terminal bad-request outcome when the
// request id is recoverable from the message headers; otherwise the
// message is dropped with a log line.
func (c *IntentConsumer) handleMalformed(ctx context.Context, msg kafka.Message, cause error) error {
	requestID := msg.GetRequestID()
	if requestID == "" {
		c.cfg.Log.Error("Dropping malformed intent payload",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", cause,
		)
		return nil
	}

	record := &requeststore.Record{
		RequestID:   requestID,
		Status:      requeststore.StatusFailed,
		ErrorKind:   apperrors.CodeBadRequest,
		ErrorDetail: fmt.Sprintf("malformed intent payload: %v", cause),
	}
	if err := c.store.Put(ctx, record); err != nil {
		return fmt.Errorf("failed to record malformed request: %w", err)
	}

	c.cfg.Log.Warn("Recorded malformed intent payload",
		"request_id", requestID,
		"error", cause,
	)
	return nil
}

func (c *IntentConsumer) recordFailure(ctx context.Context, requestID string, cause error) error {
	record := &requeststore.Record{
		RequestID:   requestID,
		Status:      requeststore.StatusFailed,
		ErrorKind:   apperrors.CodeOf(cause),
		ErrorDetail: cause.Error(),
	}
	if appErr := apperrors.AsAppError(cause); appErr != nil {
		if seatIDs, ok := appErr.Details["seat_ids"].([]string); ok {
			record.SeatIDs = seatIDs
		}
	}

	if err := c.store.Put(ctx, record); err != nil {
		return fmt.Errorf("failed to record request outcome: %w", err)
	}

	c.cfg.Log.Warn("Reservation request failed",
		"request_id", requestID,
		"error_kind", record.ErrorKind,
		"error", cause,
	)
	return nil
}
