package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/processing/client"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/processing/repository"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/processing/service"
	processingHTTP "github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/processing/transport/http"
	processingKafka "github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/processing/transport/kafka"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/processing/worker"
	orderDomain "github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/order/domain"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/config"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/db"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/jobs"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/kafka"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/mylogger"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()

	tp, err := utils.InitTracer(ctx, "processing-service")
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	logger, err := config.NewLogger(cfg.Logger, cfg.Env)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := db.NewPostgresDB(cfg.Postgres.URL)
	if err != nil {
		log.Fatalf("failed to create pool: %v", err)
	}
	defer pool.Close()

	processingRepo := repository.NewProcessingRepository(pool, logger)
	orderClient := client.NewOrderClient(cfg.Services.OrderURL, cfg.HTTP.Timeout)

	scheduler := jobs.NewScheduler(pool, jobs.NewRepository(pool), logger, cfg.Jobs.PollInterval, cfg.Jobs.MaxAttempts)
	assemblyWorker := worker.NewAssemblyWorker(logger, processingRepo, orderClient, cfg.Jobs.ItemStepDelay)
	deliveryWorker := worker.NewDeliveryWorker(logger, processingRepo, orderClient, cfg.Jobs.ItemStepDelay)
	scheduler.Register(worker.JobKindAssembleOrder, assemblyWorker.Handle)
	scheduler.Register(worker.JobKindDeliverOrders, deliveryWorker.Handle)

	go scheduler.Start(ctx)

	processingService := service.NewProcessingService(pool, logger, processingRepo, scheduler, cfg.Jobs.StartDelay)
	handler := processingHTTP.NewProcessingHandler(processingService, logger)

	eventsHandler := processingKafka.NewOrderEventsHandler(logger, processingService)
	consumer := kafka.NewConsumerGroup(
		cfg.Kafka.Brokers,
		"processing-service",
		[]string{orderDomain.TopicOrderEvents},
		eventsHandler.Handle,
		logger,
	)

	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Fatalf("error running consumer: %v", err)
		}
	}()

	app := fiber.New()
	app.Use(otelfiber.Middleware())
	handler.Register(app)

	go func() {
		mylogger.Info(ctx, logger, "Processing service listening", zap.String("port", cfg.HTTP.Port))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			log.Fatalf("error serving http: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mylogger.Info(shutdownCtx, logger, "Shutting down processing service")

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down http server", zap.Error(err))
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down telemetry", zap.Error(err))
	}
}
