package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	orderDomain "github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/order/domain"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/notification/email"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/notification/repository"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/notification/service"
	notificationKafka "github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/notification/transport/kafka"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/config"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/db"
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

	tp, err := utils.InitTracer(ctx, "notification-service")
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

	sender := email.NewSMTPSender(cfg.SMTP, logger)
	templateRepo := repository.NewTemplateRepository(pool)
	notificationService := service.NewNotificationService(sender, templateRepo, logger, pool)

	statusHandler := notificationKafka.NewStatusEventsHandler(logger, notificationService)
	consumer := kafka.NewConsumerGroup(
		cfg.Kafka.Brokers,
		"notification-service",
		[]string{orderDomain.TopicOrderStatusEvents},
		statusHandler.Handle,
		logger,
	)

	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Fatalf("error running consumer: %v", err)
		}
	}()

	mylogger.Info(ctx, logger, "Notification service started")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mylogger.Info(shutdownCtx, logger, "Shutting down notification service")

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down telemetry", zap.Error(err))
	}
}
