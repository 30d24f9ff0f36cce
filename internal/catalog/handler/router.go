package handler

import (
	"github.com/julienschmidt/httprouter"
)

func (h *CatalogHandler) RegisterRoutes(router *httprouter.Router, health *HealthHandler) {
	router.POST("/api/v1/rooms", h.CreateRoom)
	router.GET("/api/v1/rooms", h.ListRooms)
	router.GET("/api/v1/rooms/:id", h.GetRoom)
	router.GET("/api/v1/rooms/:id/seats", h.ListSeats)
	router.PATCH("/api/v1/rooms/:id/active", h.SetRoomActive)
	router.PATCH("/api/v1/seats/:id/active", h.SetSeatActive)

	router.GET("/health", health.Health)
	router.GET("/ready", health.Ready)
}
