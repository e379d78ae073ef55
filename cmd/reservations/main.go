package main

import (
	outboxhandler "orbook/internal/outbox/handler"
	outboxrepository "orbook/internal/outbox/repository"
	outboxservice "orbook/internal/outbox/service"
	"orbook/internal/reservations/handler"
	"orbook/internal/reservations/repository"
	"orbook/internal/reservations/service"
	"orbook/internal/reservations/validator"
	"orbook/pkg/app"
	"orbook/pkg/client"
	"orbook/pkg/config"
	"orbook/pkg/kafka"
	kafka_config "orbook/pkg/kafka/config"
	kafka_middleware "orbook/pkg/kafka/middleware"
	"orbook/pkg/model"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Reservations service")

	reservationService, outboxService, producers := initServices(cfg)

	publisher := outboxservice.NewPublisher(outboxService, cfg)
	publisher.Start()

	sweeper := service.NewSweeper(reservationService, cfg)
	sweeper.Start()

	serverApp := app.NewApplication(cfg)
	serverApp.AddWorker(publisher)
	serverApp.AddWorker(sweeper)
	serverApp.SetApp(
		handler.NewReservationHandler(reservationService, cfg.Log),
		outboxhandler.NewOutboxHandler(outboxService, cfg.Log),
	)
	serverApp.Run()

	for _, producer := range producers {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	}
}

func initServices(cfg *config.Config) (service.ReservationService, outboxservice.OutboxService, []*kafka.Producer) {
	kafkaCfg := kafka_config.Load()
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	eventTypes := []string{
		model.EventReservationCreated,
		model.EventReservationUpdated,
		model.EventReservationCancelled,
		model.EventReservationExpired,
	}

	publishers := make(map[string]outboxservice.EventPublisher, len(eventTypes))
	producers := make([]*kafka.Producer, 0, len(eventTypes))
	for _, eventType := range eventTypes {
		producer, err := kafka.NewProducer(kafkaCfg, eventType, eventType+".dlq", cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to create Kafka producer", "topic", eventType, "error", err)
		}
		producer.Use(kafka_middleware.MetricsProducerMiddleware())
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		publishers[eventType] = producer
		producers = append(producers, producer)
	}

	outboxRepo := outboxrepository.NewMongoOutboxRepository(cfg)
	outboxService := outboxservice.NewOutboxService(outboxRepo, publishers, cfg)

	reservationValidator := validator.NewReservationValidator(cfg.Log)
	reservationRepo := repository.NewMongoReservationRepository(cfg)
	lockRepo := repository.NewMongoReservationLockRepository(cfg)
	idemRepo := repository.NewMongoIdempotencyRepository(cfg)
	counterRepo := repository.NewMongoRoomCounterRepository(cfg)

	staffClient := client.NewStaffClient(cfg.StaffServiceURL, cfg.AvailabilityTimeout)
	roomsClient := client.NewRoomsClient(cfg.RoomsServiceURL, cfg.AvailabilityTimeout)

	reservationService := service.NewReservationService(
		reservationRepo,
		lockRepo,
		idemRepo,
		counterRepo,
		outboxService,
		staffClient,
		roomsClient,
		reservationValidator,
		cfg,
	)

	cfg.Log.Info("Reservation service initialized", "database", cfg.MongoDatabaseName)
	return reservationService, outboxService, producers
}
