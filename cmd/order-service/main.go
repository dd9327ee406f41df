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

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/order/client"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/order/repository"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/order/service"
	orderHTTP "github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/order/transport/http"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/config"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/db"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/kafka"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/mylogger"
	outboxRepository "github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/outbox/repository"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/outbox/worker"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()

	tp, err := utils.InitTracer(ctx, "order-service")
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

	kafkaProducer, err := kafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		log.Fatalf("error creating kafka producer: %v", err)
	}

	orderRepo := repository.NewOrderRepository(pool, logger)
	outboxRepo := outboxRepository.NewOutboxRepository(pool, logger)
	catalogClient := client.NewCatalogClient(cfg.Services.CatalogURL, cfg.HTTP.Timeout)
	orderService := service.NewOrderService(pool, logger, orderRepo, outboxRepo, catalogClient)
	handler := orderHTTP.NewOrderHandler(orderService, logger)

	outboxProcessor := worker.NewOutboxProcessor(pool, outboxRepo, kafkaProducer, logger)
	go outboxProcessor.Start(ctx)

	app := fiber.New()
	app.Use(otelfiber.Middleware())
	handler.Register(app)

	go func() {
		mylogger.Info(ctx, logger, "Order service listening", zap.String("port", cfg.HTTP.Port))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			log.Fatalf("error serving http: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mylogger.Info(shutdownCtx, logger, "Shutting down order service")

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down http server", zap.Error(err))
	}

	if err := kafkaProducer.Close(); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to close kafka producer", zap.Error(err))
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down telemetry", zap.Error(err))
	}
}
