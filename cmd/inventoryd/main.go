package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	inventoryapp "github.com/pipemill/backend/internal/application/inventory"
	"github.com/pipemill/backend/internal/domain/shared"
	"github.com/pipemill/backend/internal/infrastructure/config"
	"github.com/pipemill/backend/internal/infrastructure/logger"
	"github.com/pipemill/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting inventory engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// All mutating operations run through one transaction scope
	scope := persistence.NewGormTransactionScope(db.DB)

	// Initialize application services
	productionService := inventoryapp.NewProductionService(scope)
	transformService := inventoryapp.NewTransformService(scope)
	dispatchService := inventoryapp.NewDispatchService(scope)
	returnService := inventoryapp.NewReturnService(scope)
	scrapService := inventoryapp.NewScrapService(scope)
	revertService := inventoryapp.NewRevertService(scope)

	// Post-commit domain events go through the in-memory bus
	eventBus := shared.NewInMemoryEventBus()
	productionService.SetEventPublisher(eventBus)
	transformService.SetEventPublisher(eventBus)
	dispatchService.SetEventPublisher(eventBus)
	returnService.SetEventPublisher(eventBus)
	scrapService.SetEventPublisher(eventBus)
	revertService.SetEventPublisher(eventBus)

	// Background release of expired spare reservations
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := inventoryapp.NewReservationSweeper(
		scope, log, cfg.Reservation.Timeout, cfg.Reservation.SweepInterval,
	)
	go sweeper.Run(ctx)
	log.Info("Reservation sweeper started",
		zap.Duration("timeout", cfg.Reservation.Timeout),
		zap.Duration("interval", cfg.Reservation.SweepInterval),
	)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down inventory engine...")
	cancel()
	log.Info("Inventory engine exited gracefully")
}
