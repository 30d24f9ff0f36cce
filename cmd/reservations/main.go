package main

import (
	"context"

	"github.com/julienschmidt/httprouter"

	"seatgrid/internal/locking"
	"seatgrid/internal/payments"
	"seatgrid/internal/requeststore"
	"seatgrid/internal/reservations/consumer"
	"seatgrid/internal/reservations/handler"
	"seatgrid/internal/reservations/repository"
	"seatgrid/internal/reservations/service"
	"seatgrid/internal/reservations/validator"
	"seatgrid/pkg/app"
	"seatgrid/pkg/config"
	"seatgrid/pkg/kafka"
	kafka_config "seatgrid/pkg/kafka/config"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	kafkaCfg := kafka_config.Load()
	if err := kafkaCfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}

	cfg.Log.Info("Starting Reservations service")

	reservationRepo := repository.NewMongoReservationRepository(cfg)
	seatReader := repository.NewMongoSeatReader(cfg)
	lockManager := locking.NewManager(cfg.Client.Redis, cfg.Log)
	reservationValidator := validator.NewReservationValidator(cfg.Log, cfg.MaxSeatsPerRequest)
	paymentProcessor := payments.NewStubProcessor(cfg.Log)
	requestStore := requeststore.NewRedisStore(cfg.Client.Redis, cfg.RequestRecordTTL)

	reservationService := service.NewReservationService(
		reservationRepo,
		seatReader,
		lockManager,
		reservationValidator,
		paymentProcessor,
		cfg,
	)

	deadLetterSink := repository.NewMongoDeadLetterSink(cfg)
	producer, err := kafka.NewProducer(kafkaCfg, cfg.IntentsTopic, cfg.Backoff, deadLetterSink, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create intent producer", "error", err)
	}

	intentConsumer := consumer.NewIntentConsumer(reservationService, requestStore, cfg)
	kafkaConsumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.IntentsTopic,
		cfg.ConsumerGroupID,
		intentConsumer.Handle,
		kafka.ConsumerOptions{
			Policy:               cfg.Backoff,
			SubscribeInterval:    cfg.SubscribeRetryInterval,
			SubscribeMaxAttempts: cfg.SubscribeMaxAttempts,
		},
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create intent consumer", "error", err)
	}

	sweeper := service.NewSweeper(reservationService, cfg)

	router := httprouter.New()
	reservationHandler := handler.NewReservationHandler(
		reservationService,
		producer,
		requestStore,
		reservationValidator,
		cfg,
	)
	healthHandler := handler.NewHealthHandler(cfg.Client.Mongo, cfg.Client.Redis, cfg.Log)
	reservationHandler.RegisterRoutes(router, healthHandler)

	serverApp := app.NewApplication(cfg)
	serverApp.SetHandler(router)
	serverApp.AddRunner("intent-consumer", kafkaConsumer.Start)
	serverApp.AddRunner("expiry-sweeper", func(ctx context.Context) error {
		sweeper.Run(ctx)
		return nil
	})
	serverApp.AddCloser("kafka-consumer", kafkaConsumer.Close)
	serverApp.AddCloser("kafka-producer", producer.Close)
	serverApp.Run()
}
