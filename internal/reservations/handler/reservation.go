package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"seatgrid/internal/requeststore"
	"seatgrid/internal/reservations/service"
	"seatgrid/internal/reservations/validator"
	"seatgrid/pkg/config"
	apperrors "seatgrid/pkg/errors"
	httputil "seatgrid/pkg/http"
	"seatgrid/pkg/kafka"
	"seatgrid/pkg/logger"
	"seatgrid/pkg/model"
)

// Publisher is the slice of the producer API the gateway needs.
type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type ReservationHandler struct {
	service   service.ReservationService
	producer  Publisher
	store     requeststore.Store
	validator *validator.ReservationValidator
	cfg       *config.Config
	log       *logger.Logger
}

func NewReservationHandler(
	svc service.ReservationService,
	producer Publisher,
	store requeststore.Store,
	v *validator.ReservationValidator,
	cfg *config.Config,
) *ReservationHandler {
	return &ReservationHandler{
		service:   svc,
		producer:  producer,
		store:     store,
		validator: v,
		cfg:       cfg,
		log:       cfg.Log,
	}
}

type createRequest struct {
	SeatIDs      []string `json:"seat_ids"`
	Email        string   `json:"email"`
	CustomerName string   `json:"customer_name"`
	PhoneNumber  string   `json:"phone_number,omitempty"`
}

type createResponse struct {
	RequestID string `json:"request_id"`
}

type emailRequest struct {
	Email string `json:"email"`
}

// Create accepts a reservation request, validates its shape, and hands
// it to the async pipeline. The 202 response carries the request id the
// client polls for the outcome.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	intent := &model.ReservationIntent{
		RequestID:    uuid.NewString(),
		SeatIDs:      req.SeatIDs,
		Email:        req.Email,
		CustomerName: req.CustomerName,
		PhoneNumber:  req.PhoneNumber,
		Timestamp:    time.Now().UTC(),
	}

	// Reject bad requests before they enter the pipeline; the consumer
	// re-validates, but a synchronous 400 beats an async failure record.
	if err := h.validator.ValidateIntent(intent); err != nil {
		if writeErr := httputil.WriteError(w, apperrors.Validation("Invalid reservation request",
			map[string]any{"error": err.Error()})); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	// Key by the first seat in sorted order so intents contending for
	// the same seat land on one partition in submission order.
	sorted := make([]string, len(intent.SeatIDs))
	copy(sorted, intent.SeatIDs)
	sort.Strings(sorted)

	msg := kafka.NewMessage().
		WithKey(sorted[0]).
		WithValue(intent).
		WithRequestID(intent.RequestID).
		Build()

	if err := h.producer.Publish(r.Context(), msg); err != nil {
		h.log.Error("Failed to publish reservation intent",
			"request_id", intent.RequestID,
			"error", err,
		)
		if writeErr := httputil.WriteError(w, apperrors.Unavailable("reservation pipeline")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	h.log.Info("Reservation intent accepted",
		"request_id", intent.RequestID,
		"seat_count", len(intent.SeatIDs),
	)
	if err := httputil.WriteAccepted(w, createResponse{RequestID: intent.RequestID}); err != nil {
		h.log.Error("failed to write accepted response", "handler", "Create", "operation", "WriteAccepted", "error", err)
	}
}

type requestStatusResponse struct {
	RequestID      string   `json:"request_id"`
	Status         string   `json:"status"`
	GroupCode      string   `json:"group_code,omitempty"`
	ReservationIDs []string `json:"reservation_ids,omitempty"`
	ErrorKind      string   `json:"error_kind,omitempty"`
	ErrorDetail    string   `json:"error_detail,omitempty"`
	SeatIDs        []string `json:"seat_ids,omitempty"`
}

// GetRequestStatus reports the outcome of an async reservation request.
// A missing record reads as still processing (or expired from the
// cache), never as failed.
func (h *ReservationHandler) GetRequestStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requestID := ps.ByName("id")

	record, found, err := h.store.Get(r.Context(), requestID)
	if err != nil {
		h.log.Error("Failed to read request record", "request_id", requestID, "error", err)
		if writeErr := httputil.WriteError(w, apperrors.Unavailable("request record store")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetRequestStatus", "operation", "WriteError", "error", writeErr)
		}
		return
	}
	if !found {
		if writeErr := httputil.WriteSuccess(w, requestStatusResponse{
			RequestID: requestID,
			Status:    "processing",
		}); writeErr != nil {
			h.log.Error("failed to write success response", "handler", "GetRequestStatus", "operation", "WriteSuccess", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, requestStatusResponse{
		RequestID:      record.RequestID,
		Status:         record.Status,
		GroupCode:      record.GroupCode,
		ReservationIDs: record.ReservationIDs,
		ErrorKind:      record.ErrorKind,
		ErrorDetail:    record.ErrorDetail,
		SeatIDs:        record.SeatIDs,
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "GetRequestStatus", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	email := r.URL.Query().Get("email")

	reservation, err := h.service.GetByID(r.Context(), id, email)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) GetGroup(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	groupCode := ps.ByName("code")
	email := r.URL.Query().Get("email")

	group, err := h.service.GetGroup(r.Context(), groupCode, email)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetGroup", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, group); err != nil {
		h.log.Error("failed to write success response", "handler", "GetGroup", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	email := r.URL.Query().Get("email")

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "List", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	reservations, err := h.service.ListByEmail(r.Context(), email, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "List", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, reservations); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Confirm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Confirm", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	result, err := h.service.Confirm(r.Context(), id, req.Email)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Confirm", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Confirm", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Cancel", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Cancel(r.Context(), id, req.Email); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Cancel", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}
