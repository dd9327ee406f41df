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

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/catalog/repository"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/catalog/service"
	catalogHTTP "github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/catalog/transport/http"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/config"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/db"
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

	tp, err := utils.InitTracer(ctx, "catalog-service")
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

	redisClient, err := db.NewRedisClient(cfg.Redis.Addr)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	productRepo := repository.NewProductRepository(pool, logger)
	catalogService := service.NewCachedCatalogService(
		service.NewCatalogService(productRepo, logger),
		redisClient,
	)
	handler := catalogHTTP.NewCatalogHandler(catalogService, logger)

	app := fiber.New()
	app.Use(otelfiber.Middleware())
	handler.Register(app)

	go func() {
		mylogger.Info(ctx, logger, "Catalog service listening", zap.String("port", cfg.HTTP.Port))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			log.Fatalf("error serving http: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mylogger.Info(shutdownCtx, logger, "Shutting down catalog service")

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down http server", zap.Error(err))
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down telemetry", zap.Error(err))
	}
}
