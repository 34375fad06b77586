package main

import (
	"noqbot/internal/slots/handler"
	"noqbot/internal/slots/repository"
	"noqbot/internal/slots/service"
	"noqbot/internal/slots/validator"
	"noqbot/pkg/app"
	"noqbot/pkg/config"
)

const ServiceName = "slots"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting Slots service")
	slotService := initServices(cfg)
	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, handler.NewSlotHandler(slotService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.SlotService {
	slotValidator := validator.NewSlotValidator(cfg.Log, cfg.MaxProvisionDays)
	slotRepo := repository.NewMongoSlotDayRepository(cfg)
	slotService := service.NewSlotService(
		slotRepo,
		slotValidator,
		cfg,
	)

	cfg.Log.Info("Slot service initialized", "database", cfg.MongoDatabaseName)
	return slotService
}
