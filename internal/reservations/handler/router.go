package handler

import (
	"github.com/julienschmidt/httprouter"
)

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router, health *HealthHandler) {
	router.POST("/api/v1/reservations", h.Create)
	router.GET("/api/v1/reservations", h.List)
	router.GET("/api/v1/reservation-requests/:id", h.GetRequestStatus)
	router.GET("/api/v1/reservation-groups/:code", h.GetGroup)
	router.GET("/api/v1/reservations/:id", h.GetByID)
	router.POST("/api/v1/reservations/:id/confirm", h.Confirm)
	router.POST("/api/v1/reservations/:id/cancel", h.Cancel)

	router.GET("/health", health.Health)
	router.GET("/ready", health.Ready)
}
