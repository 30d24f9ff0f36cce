package main

import (
	"github.com/julienschmidt/httprouter"

	"seatgrid/internal/catalog/handler"
	"seatgrid/internal/catalog/repository"
	"seatgrid/internal/catalog/service"
	"seatgrid/pkg/app"
	"seatgrid/pkg/config"
)

const ServiceName = "catalog"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Catalog service")

	roomRepo := repository.NewMongoRoomRepository(cfg)
	seatRepo := repository.NewMongoSeatRepository(cfg)
	catalogService := service.NewCatalogService(roomRepo, seatRepo, cfg)

	router := httprouter.New()
	catalogHandler := handler.NewCatalogHandler(catalogService, cfg.Log)
	healthHandler := handler.NewHealthHandler(cfg.Client.Mongo, cfg.Log)
	catalogHandler.RegisterRoutes(router, healthHandler)

	serverApp := app.NewApplication(cfg)
	serverApp.SetHandler(router)
	serverApp.Run()
}
