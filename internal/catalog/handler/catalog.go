package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"seatgrid/internal/catalog/service"
	httputil "seatgrid/pkg/http"
	"seatgrid/pkg/logger"
	"seatgrid/pkg/model"
)

type CatalogHandler struct {
	service service.CatalogService
	log     *logger.Logger
}

func NewCatalogHandler(service service.CatalogService, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: service,
		log:     log,
	}
}

type createRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Rows        int    `json:"rows"`
	Columns     int    `json:"columns"`
}

type createRoomResponse struct {
	Room  *model.Room   `json:"room"`
	Seats []*model.Seat `json:"seats"`
}

type activeRequest struct {
	Active bool `json:"active"`
}

func (h *CatalogHandler) CreateRoom(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "CreateRoom", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	room := &model.Room{
		Name:        req.Name,
		Description: req.Description,
	}
	seats, err := h.service.CreateRoom(r.Context(), room, req.Rows, req.Columns)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "CreateRoom", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, createRoomResponse{Room: room, Seats: seats}); err != nil {
		h.log.Error("failed to write created response", "handler", "CreateRoom", "operation", "WriteCreated", "error", err)
	}
}

func (h *CatalogHandler) GetRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := h.service.GetRoom(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetRoom", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, room); err != nil {
		h.log.Error("failed to write success response", "handler", "GetRoom", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CatalogHandler) ListRooms(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListRooms", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	rooms, total, err := h.service.ListRooms(r.Context(), limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListRooms", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, rooms, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListRooms", "operation", "WritePaginated", "error", err)
	}
}

func (h *CatalogHandler) ListSeats(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	seats, err := h.service.ListSeats(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListSeats", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, seats); err != nil {
		h.log.Error("failed to write success response", "handler", "ListSeats", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CatalogHandler) SetRoomActive(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req activeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "SetRoomActive", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.SetRoomActive(r.Context(), ps.ByName("id"), req.Active); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "SetRoomActive", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *CatalogHandler) SetSeatActive(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req activeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "SetSeatActive", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.SetSeatActive(r.Context(), ps.ByName("id"), req.Active); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "SetSeatActive", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}
