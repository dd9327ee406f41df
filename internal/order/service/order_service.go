package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/order/client"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/order/domain"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/order/repository"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/apperr"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/mylogger"
	outboxDomain "github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/outbox/domain"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/outbox/worker"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/utils"
)

type CreateOrderRequest struct {
	Email string            `json:"email" validate:"required,email,max=254"`
	Items []CreateOrderItem `json:"items" validate:"required,min=1,max=99,dive"`
}

type CreateOrderItem struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int32 `json:"quantity" validate:"required,gte=1,lte=1000"`
}

type OrderService interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, rawStatus string) (*domain.Order, error)
}

type orderService struct {
	pool       *pgxpool.Pool
	logger     *zap.Logger
	orderRepo  repository.OrderRepository
	outboxRepo worker.OutboxRepository
	catalog    client.CatalogClient
	validate   *validator.Validate
	tracer     trace.Tracer
}

func NewOrderService(
	pool *pgxpool.Pool,
	logger *zap.Logger,
	orderRepo repository.OrderRepository,
	outboxRepo worker.OutboxRepository,
	catalog client.CatalogClient,
) OrderService {
	return &orderService{
		pool:       pool,
		logger:     logger,
		orderRepo:  orderRepo,
		outboxRepo: outboxRepo,
		catalog:    catalog,
		validate:   validator.New(),
		tracer:     otel.Tracer("order_service"),
	}
}

// CreateOrder validates the request, reserves every line item in the
// catalog, and persists the order together with its OrderCreated outbox row
// in one transaction. Reservations already made for a failed attempt are
// released before the error is surfaced.
func (s *orderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	span.SetAttributes(attribute.Int("items_count", len(req.Items)))

	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.New(apperr.KindValidation, utils.FormatValidationError(err))
	}

	items, err := s.reserveAll(ctx, req.Items)
	if err != nil {
		mylogger.Warn(ctx, s.logger, "Item reservation failed", zap.Error(err))
		span.RecordError(err)

		return nil, err
	}

	order := &domain.Order{
		Email:  req.Email,
		Status: domain.OrderStatusNew,
		Items:  items,
	}
	order.CalculateTotal()

	if err := s.persistNewOrder(ctx, order); err != nil {
		// The order never existed, so the reservations belong to nobody.
		s.releaseReserved(ctx, items)
		span.RecordError(err)

		return nil, err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("total_sum", order.TotalSum),
		zap.Int("items_count", len(order.Items)),
	)

	return order, nil
}

// reserveAll fans reservation calls out concurrently and waits for all of
// them. On any failure every reservation that did succeed is released, so a
// failed attempt leaves catalog stock untouched.
func (s *orderService) reserveAll(ctx context.Context, requested []CreateOrderItem) ([]domain.OrderItem, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.reserveAll")
	defer span.End()

	items := make([]domain.OrderItem, len(requested))

	var mu sync.Mutex
	var reserved []domain.OrderItem

	g, gctx := errgroup.WithContext(ctx)
	for i, item := range requested {
		g.Go(func() error {
			res, err := s.catalog.Reserve(gctx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}

			line := domain.OrderItem{
				ProductID: res.ProductID,
				Price:     res.Price,
				Quantity:  item.Quantity,
			}

			items[i] = line

			mu.Lock()
			reserved = append(reserved, line)
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		s.releaseReserved(ctx, reserved)

		return nil, err
	}

	return items, nil
}

// releaseReserved is the compensating half of the reservation saga. It runs
// detached from request cancellation: once a reserve succeeded, the release
// must be attempted even if the caller is gone.
func (s *orderService) releaseReserved(ctx context.Context, reserved []domain.OrderItem) {
	if len(reserved) == 0 {
		return
	}

	releaseCtx := context.WithoutCancel(ctx)

	for _, item := range reserved {
		if _, err := s.catalog.Release(releaseCtx, item.ProductID, item.Quantity); err != nil {
			mylogger.Error(
				releaseCtx,
				s.logger,
				"Failed to release reservation",
				zap.Int64("product_id", item.ProductID),
				zap.Int32("quantity", item.Quantity),
				zap.Error(err),
			)
		}
	}
}

func (s *orderService) persistNewOrder(ctx context.Context, order *domain.Order) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	if err := s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	eventItems := make([]domain.OrderCreatedEventItem, len(order.Items))
	for i, item := range order.Items {
		eventItems[i] = domain.OrderCreatedEventItem{
			ProductID: item.ProductID,
			Price:     item.Price,
			Quantity:  item.Quantity,
		}
	}

	event := domain.OrderCreatedEvent{
		OrderID:   order.ID,
		Email:     order.Email,
		Status:    order.Status.String(),
		TotalSum:  order.TotalSum,
		Items:     eventItems,
		CreatedAt: order.CreatedAt,
	}

	if err := s.saveEvent(ctx, tx, order.ID, "OrderCreated", domain.TopicOrderEvents, event); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrder")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", orderID))

	order, err := s.orderRepo.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperr.NotFound("order %d not found", orderID)
		}

		span.RecordError(err)

		return nil, err
	}

	return order, nil
}

// UpdateOrderStatus parses and validates the requested transition, then
// applies it and records the OrderStatusChanged outbox row in the same
// transaction as the update.
func (s *orderService) UpdateOrderStatus(ctx context.Context, orderID int64, rawStatus string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.UpdateOrderStatus")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
		attribute.String("requested_status", rawStatus),
	)

	requested, err := domain.ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	order, err := s.orderRepo.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperr.NotFound("order %d not found", orderID)
		}

		span.RecordError(err)

		return nil, err
	}

	if err := domain.ValidateTransition(order.Status, requested); err != nil {
		return nil, err
	}

	if err := s.orderRepo.ChangeOrderStatus(ctx, tx, orderID, requested); err != nil {
		span.RecordError(err)

		return nil, err
	}

	event := domain.OrderStatusChangedEvent{
		OrderID:    orderID,
		StatusCode: requested.Code(),
		Status:     requested.String(),
		Email:      order.Email,
	}

	if err := s.saveEvent(ctx, tx, orderID, "OrderStatusChanged", domain.TopicOrderStatusEvents, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Order status updated",
		zap.Int64("order_id", orderID),
		zap.String("from", order.Status.String()),
		zap.String("to", requested.String()),
	)

	order.Status = requested
	return order, nil
}

func (s *orderService) saveEvent(ctx context.Context, tx pgx.Tx, orderID int64, eventType, topic string, payload any) error {
	body, err := outboxDomain.NewEnvelope(eventType, payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	outboxEvent := &outboxDomain.OutboxEvent{
		AggregateType: "Order",
		AggregateID:   fmt.Sprintf("%d", orderID),
		EventType:     eventType,
		Payload:       body,
		Topic:         topic,
	}

	if err := s.outboxRepo.SaveOutboxEvent(ctx, tx, outboxEvent); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}

	return nil
}

func (s *orderService) rollback(ctx context.Context, tx pgx.Tx) {
	shutdownCtx := context.WithoutCancel(ctx)

	if err := tx.Rollback(shutdownCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		mylogger.Warn(
			shutdownCtx,
			s.logger,
			"Error rolling back transaction",
			zap.Error(err),
		)
	}
}
