package main

import (
	"noqbot/internal/bookings/events"
	"noqbot/internal/bookings/handler"
	"noqbot/internal/bookings/repository"
	"noqbot/internal/bookings/service"
	"noqbot/internal/bookings/validator"
	clientsrepo "noqbot/internal/clients/repository"
	slotsrepo "noqbot/internal/slots/repository"
	"noqbot/pkg/app"
	"noqbot/pkg/clock"
	"noqbot/pkg/config"
	"noqbot/pkg/kafka"
	kafka_config "noqbot/pkg/kafka/config"
	kafka_middleware "noqbot/pkg/kafka/middleware"
	"noqbot/pkg/middleware"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting Bookings service")

	opts := []app.Option{app.WithPhoneExtractor(middleware.BookingPhoneExtractor)}

	publisher, producer := initPublisher(cfg)
	if producer != nil {
		opts = append(opts, app.WithCloser("kafka-producer", producer.Close))
	}

	bookingService := initServices(cfg, publisher)
	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, handler.NewBookingHandler(bookingService, cfg.Log), opts...)
	serverApp.Run()
}

func initPublisher(cfg *config.Config) (events.Publisher, *kafka.Producer) {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, booking events will not be published")
		return events.NopPublisher{}, nil
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.Log, cfg.KafkaBookingTopic, cfg.KafkaBookingDLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(kafka_middleware.MetricsProducerMiddleware())
	}

	return events.NewKafkaPublisher(producer, cfg.Log), producer
}

func initServices(cfg *config.Config, publisher events.Publisher) service.BookingService {
	bookingValidator := validator.NewBookingValidator(cfg.Log)
	bookingRepo := repository.NewMongoBookingRepository(cfg)
	slotRepo := slotsrepo.NewMongoSlotDayRepository(cfg)
	clientRepo := clientsrepo.NewMongoClientRepository(cfg)

	bookingService := service.NewBookingService(
		bookingRepo,
		slotRepo,
		clientRepo,
		publisher,
		bookingValidator,
		clock.System(),
		cfg,
	)

	cfg.Log.Info("Booking service initialized",
		"database", cfg.MongoDatabaseName,
		"time_zone", cfg.Location.String(),
	)
	return bookingService
}
