package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/processing/domain"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/mylogger"
)

type ProcessingRepository interface {
	// CreateFromOrder inserts a processing order with its items, keyed by
	// the source order ID. Duplicate deliveries of the same OrderCreated
	// event hit the unique index and are ignored; the bool reports whether
	// a row was actually inserted.
	CreateFromOrder(ctx context.Context, order *domain.ProcessingOrder) (bool, error)
	GetByID(ctx context.Context, id int64) (*domain.ProcessingOrder, error)
	GetBatch(ctx context.Context, ids []int64) ([]*domain.ProcessingOrder, error)
	SetAssemblyStatus(ctx context.Context, id int64, status domain.AssemblyStatus) error
	MarkItemReady(ctx context.Context, itemID int64) error
	BeginDeliveryStage(ctx context.Context, tx pgx.Tx, id int64) error
	SetDeliveryStatus(ctx context.Context, id int64, status domain.DeliveryStatus) error
	CompleteDelivery(ctx context.Context, id int64, trackingNumber string) error
}

type processingRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewProcessingRepository(pool *pgxpool.Pool, logger *zap.Logger) ProcessingRepository {
	return &processingRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("processing_repository"),
	}
}

func (r *processingRepo) CreateFromOrder(ctx context.Context, order *domain.ProcessingOrder) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "ProcessingRepository.CreateFromOrder")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", order.OrderID))

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(cleanupCtx, r.logger, "Error rolling back transaction", zap.Error(err))
		}
	}()

	queryOrder := `
		INSERT INTO processing_orders (order_id, email, stage, assembly_status, delivery_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (order_id) DO NOTHING
		RETURNING id
	`

	err = tx.QueryRow(
		ctx,
		queryOrder,
		order.OrderID,
		order.Email,
		string(order.Stage),
		string(order.AssemblyStatus),
		string(order.DeliveryStatus),
	).Scan(&order.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict: this order was already initialized by an earlier
		// delivery of the same event.
		return false, nil
	}
	if err != nil {
		span.RecordError(err)

		return false, fmt.Errorf("failed to insert processing order: %w", err)
	}

	queryItem := `
		INSERT INTO processing_items (processing_order_id, product_id, quantity, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	for i := range order.Items {
		item := &order.Items[i]
		item.ProcessingOrderID = order.ID

		if err := tx.QueryRow(
			ctx,
			queryItem,
			item.ProcessingOrderID,
			item.ProductID,
			item.Quantity,
			string(item.Status),
		).Scan(&item.ID); err != nil {
			span.RecordError(err)

			return false, fmt.Errorf("failed to insert processing item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, nil
}

func (r *processingRepo) GetByID(ctx context.Context, id int64) (*domain.ProcessingOrder, error) {
	ctx, span := r.tracer.Start(ctx, "ProcessingRepository.GetByID")
	defer span.End()

	span.SetAttributes(attribute.Int64("processing_order_id", id))

	orders, err := r.GetBatch(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrProcessingOrderNotFound
	}

	return orders[0], nil
}

// GetBatch loads processing orders together with their items in one read,
// so workers never see an order without its item list.
func (r *processingRepo) GetBatch(ctx context.Context, ids []int64) ([]*domain.ProcessingOrder, error) {
	ctx, span := r.tracer.Start(ctx, "ProcessingRepository.GetBatch")
	defer span.End()

	span.SetAttributes(attribute.Int("batch_size", len(ids)))

	query := `
		SELECT id, order_id, email, stage, assembly_status, delivery_status, tracking_number, created_at, updated_at
		FROM processing_orders
		WHERE id = ANY($1)
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("failed to query processing orders: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*domain.ProcessingOrder, len(ids))
	var orders []*domain.ProcessingOrder
	for rows.Next() {
		var o domain.ProcessingOrder
		var stage, assembly, delivery string

		if err := rows.Scan(
			&o.ID,
			&o.OrderID,
			&o.Email,
			&stage,
			&assembly,
			&delivery,
			&o.TrackingNumber,
			&o.CreatedAt,
			&o.UpdatedAt,
		); err != nil {
			span.RecordError(err)

			return nil, fmt.Errorf("failed to scan processing order: %w", err)
		}

		o.Stage = domain.Stage(stage)
		o.AssemblyStatus = domain.AssemblyStatus(assembly)
		o.DeliveryStatus = domain.DeliveryStatus(delivery)

		orders = append(orders, &o)
		byID[o.ID] = &o
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orders) == 0 {
		return orders, nil
	}

	itemQuery := `
		SELECT id, processing_order_id, product_id, quantity, status
		FROM processing_items
		WHERE processing_order_id = ANY($1)
		ORDER BY id
	`

	itemRows, err := r.pool.Query(ctx, itemQuery, ids)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("failed to query processing items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item domain.ProcessingItem
		var status string

		if err := itemRows.Scan(
			&item.ID,
			&item.ProcessingOrderID,
			&item.ProductID,
			&item.Quantity,
			&status,
		); err != nil {
			span.RecordError(err)

			return nil, fmt.Errorf("failed to scan processing item: %w", err)
		}

		item.Status = domain.ItemStatus(status)
		if parent, ok := byID[item.ProcessingOrderID]; ok {
			parent.Items = append(parent.Items, item)
		}
	}

	return orders, itemRows.Err()
}

func (r *processingRepo) SetAssemblyStatus(ctx context.Context, id int64, status domain.AssemblyStatus) error {
	ctx, span := r.tracer.Start(ctx, "ProcessingRepository.SetAssemblyStatus")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("processing_order_id", id),
		attribute.String("assembly_status", string(status)),
	)

	query := `
		UPDATE processing_orders
		SET assembly_status = $1, updated_at = NOW()
		WHERE id = $2
	`

	return r.exec(ctx, span, query, string(status), id)
}

func (r *processingRepo) MarkItemReady(ctx context.Context, itemID int64) error {
	ctx, span := r.tracer.Start(ctx, "ProcessingRepository.MarkItemReady")
	defer span.End()

	span.SetAttributes(attribute.Int64("item_id", itemID))

	query := `
		UPDATE processing_items
		SET status = 'ready'
		WHERE id = $1
	`

	commandTag, err := r.pool.Exec(ctx, query, itemID)
	if err != nil {
		span.RecordError(err)

		return fmt.Errorf("failed to mark item ready: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		return fmt.Errorf("processing item %d not found", itemID)
	}

	return nil
}

// BeginDeliveryStage flips an order into the delivery stage. The WHERE
// clause re-checks the precondition so a concurrent call cannot move the
// same order twice.
func (r *processingRepo) BeginDeliveryStage(ctx context.Context, tx pgx.Tx, id int64) error {
	ctx, span := r.tracer.Start(ctx, "ProcessingRepository.BeginDeliveryStage")
	defer span.End()

	span.SetAttributes(attribute.Int64("processing_order_id", id))

	query := `
		UPDATE processing_orders
		SET stage = 'delivery', delivery_status = 'new', updated_at = NOW()
		WHERE id = $1 AND stage = 'assembly' AND assembly_status = 'completed'
	`

	commandTag, err := tx.Exec(ctx, query, id)
	if err != nil {
		span.RecordError(err)

		return fmt.Errorf("failed to begin delivery stage: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		return ErrProcessingOrderNotFound
	}

	return nil
}

func (r *processingRepo) SetDeliveryStatus(ctx context.Context, id int64, status domain.DeliveryStatus) error {
	ctx, span := r.tracer.Start(ctx, "ProcessingRepository.SetDeliveryStatus")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("processing_order_id", id),
		attribute.String("delivery_status", string(status)),
	)

	query := `
		UPDATE processing_orders
		SET delivery_status = $1, updated_at = NOW()
		WHERE id = $2
	`

	return r.exec(ctx, span, query, string(status), id)
}

func (r *processingRepo) CompleteDelivery(ctx context.Context, id int64, trackingNumber string) error {
	ctx, span := r.tracer.Start(ctx, "ProcessingRepository.CompleteDelivery")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("processing_order_id", id),
		attribute.String("tracking_number", trackingNumber),
	)

	query := `
		UPDATE processing_orders
		SET delivery_status = 'completed', tracking_number = $1, updated_at = NOW()
		WHERE id = $2
	`

	return r.exec(ctx, span, query, trackingNumber, id)
}

func (r *processingRepo) exec(ctx context.Context, span trace.Span, query string, args ...any) error {
	commandTag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		span.RecordError(err)

		return fmt.Errorf("failed to update processing order: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		return ErrProcessingOrderNotFound
	}

	return nil
}
