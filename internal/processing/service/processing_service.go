package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/processing/domain"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/processing/repository"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/processing/worker"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/apperr"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/dedup"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/mylogger"
)

// JobScheduler is the slice of the shared scheduler this service needs:
// durable enqueue of delayed work inside the caller's transaction.
type JobScheduler interface {
	Schedule(ctx context.Context, tx pgx.Tx, kind string, payload any, delay time.Duration) error
}

type ProcessingService interface {
	HandleOrderCreated(ctx context.Context, eventID int64, event *domain.OrderCreatedEvent) error
	GetProcessingOrder(ctx context.Context, id int64) (*domain.ProcessingOrder, error)
	BeginAssembly(ctx context.Context, id int64) error
	BeginDelivery(ctx context.Context, ids []int64) error
}

type processingService struct {
	pool       *pgxpool.Pool
	logger     *zap.Logger
	repo       repository.ProcessingRepository
	scheduler  JobScheduler
	startDelay time.Duration
	tracer     trace.Tracer
}

func NewProcessingService(
	pool *pgxpool.Pool,
	logger *zap.Logger,
	repo repository.ProcessingRepository,
	scheduler JobScheduler,
	startDelay time.Duration,
) ProcessingService {
	return &processingService{
		pool:       pool,
		logger:     logger,
		repo:       repo,
		scheduler:  scheduler,
		startDelay: startDelay,
		tracer:     otel.Tracer("processing_service"),
	}
}

// HandleOrderCreated initializes a processing order from the event. The
// handler survives duplicate delivery twice over: the processed_events
// dedup row and the unique index on the source order ID.
func (s *processingService) HandleOrderCreated(ctx context.Context, eventID int64, event *domain.OrderCreatedEvent) error {
	ctx, span := s.tracer.Start(ctx, "ProcessingService.HandleOrderCreated")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("event_id", eventID),
		attribute.Int64("order_id", event.OrderID),
	)

	return dedup.ProcessOnce(ctx, s.pool, s.logger, eventID, func() error {
		items := make([]domain.ProcessingItem, len(event.Items))
		for i, item := range event.Items {
			items[i] = domain.ProcessingItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Status:    domain.ItemStatusPending,
			}
		}

		order := &domain.ProcessingOrder{
			OrderID:        event.OrderID,
			Email:          event.Email,
			Stage:          domain.StageAssembly,
			AssemblyStatus: domain.AssemblyStatusNew,
			DeliveryStatus: domain.DeliveryStatusNew,
			Items:          items,
		}

		created, err := s.repo.CreateFromOrder(ctx, order)
		if err != nil {
			return err
		}

		if !created {
			mylogger.Info(
				ctx,
				s.logger,
				"Processing order already exists, skipping",
				zap.Int64("order_id", event.OrderID),
			)
			return nil
		}

		mylogger.Info(
			ctx,
			s.logger,
			"Processing order initialized",
			zap.Int64("processing_order_id", order.ID),
			zap.Int64("order_id", event.OrderID),
			zap.Int("items_count", len(order.Items)),
		)

		return nil
	})
}

func (s *processingService) GetProcessingOrder(ctx context.Context, id int64) (*domain.ProcessingOrder, error) {
	ctx, span := s.tracer.Start(ctx, "ProcessingService.GetProcessingOrder")
	defer span.End()

	span.SetAttributes(attribute.Int64("processing_order_id", id))

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProcessingOrderNotFound) {
			return nil, apperr.NotFound("processing order %d not found", id)
		}

		span.RecordError(err)

		return nil, err
	}

	return order, nil
}

// BeginAssembly validates the stage precondition and enqueues the assembly
// job. The call returns once the job is durably queued, not when assembly
// finishes.
func (s *processingService) BeginAssembly(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "ProcessingService.BeginAssembly")
	defer span.End()

	span.SetAttributes(attribute.Int64("processing_order_id", id))

	order, err := s.GetProcessingOrder(ctx, id)
	if err != nil {
		return err
	}

	if err := order.ValidateBeginAssembly(); err != nil {
		return err
	}

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		return s.scheduler.Schedule(ctx, tx, worker.JobKindAssembleOrder, worker.AssembleOrderPayload{
			ProcessingOrderID: id,
		}, s.startDelay)
	})
	if err != nil {
		span.RecordError(err)

		return err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Assembly scheduled",
		zap.Int64("processing_order_id", id),
		zap.Duration("delay", s.startDelay),
	)

	return nil
}

// BeginDelivery moves a batch of processing orders into the delivery stage
// and enqueues one delivery job for the whole batch. Stage changes and the
// job row commit atomically: either every order moves and the job exists,
// or nothing happened.
func (s *processingService) BeginDelivery(ctx context.Context, ids []int64) error {
	ctx, span := s.tracer.Start(ctx, "ProcessingService.BeginDelivery")
	defer span.End()

	span.SetAttributes(attribute.Int("batch_size", len(ids)))

	if len(ids) == 0 {
		return apperr.Validation("ids must not be empty")
	}

	orders, err := s.repo.GetBatch(ctx, ids)
	if err != nil {
		span.RecordError(err)

		return err
	}

	found := make(map[int64]*domain.ProcessingOrder, len(orders))
	for _, order := range orders {
		found[order.ID] = order
	}

	for _, id := range ids {
		order, ok := found[id]
		if !ok {
			return apperr.NotFound("processing order %d not found", id)
		}
		if err := order.ValidateBeginDelivery(); err != nil {
			return err
		}
	}

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		for _, id := range ids {
			if err := s.repo.BeginDeliveryStage(ctx, tx, id); err != nil {
				return fmt.Errorf("failed to move order %d to delivery: %w", id, err)
			}
		}

		return s.scheduler.Schedule(ctx, tx, worker.JobKindDeliverOrders, worker.DeliverOrdersPayload{
			ProcessingOrderIDs: ids,
		}, s.startDelay)
	})
	if err != nil {
		span.RecordError(err)

		return err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Delivery scheduled",
		zap.Int("batch_size", len(ids)),
		zap.Duration("delay", s.startDelay),
	)

	return nil
}

func (s *processingService) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(cleanupCtx, s.logger, "Error rolling back transaction", zap.Error(err))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
