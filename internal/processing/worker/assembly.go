package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/processing/client"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/processing/domain"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/processing/repository"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/apperr"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/mylogger"
)

const (
	statusProcessing = "processing"
	statusReady      = "ready"
	statusDelivering = "delivering"
	statusDelivered  = "delivered"
)

// AssemblyWorker executes assemble_order jobs: it walks the order's items,
// marking each ready with a configurable pause between steps, then reports
// the order as ready back to the order service.
//
// The handler is idempotent. Progress is persisted per item, so a retried
// job resumes from pending items instead of repeating finished ones.
type AssemblyWorker struct {
	logger       *zap.Logger
	repo         repository.ProcessingRepository
	orders       client.OrderClient
	itemDelay    time.Duration
	tracer       trace.Tracer
	sleep        func(ctx context.Context, d time.Duration) error
	notifyPolicy func() backoff.BackOff
}

func NewAssemblyWorker(
	logger *zap.Logger,
	repo repository.ProcessingRepository,
	orders client.OrderClient,
	itemDelay time.Duration,
) *AssemblyWorker {
	return &AssemblyWorker{
		logger:       logger,
		repo:         repo,
		orders:       orders,
		itemDelay:    itemDelay,
		tracer:       otel.Tracer("assembly_worker"),
		sleep:        sleepCtx,
		notifyPolicy: defaultNotifyPolicy,
	}
}

func (w *AssemblyWorker) Handle(ctx context.Context, payload json.RawMessage) error {
	var p AssembleOrderPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("failed to unmarshal assemble_order payload: %w", err)
	}

	ctx, span := w.tracer.Start(ctx, "AssemblyWorker.Handle")
	defer span.End()

	span.SetAttributes(attribute.Int64("processing_order_id", p.ProcessingOrderID))

	order, err := w.repo.GetByID(ctx, p.ProcessingOrderID)
	if err != nil {
		return err
	}

	if order.Stage != domain.StageAssembly || order.AssemblyStatus == domain.AssemblyStatusCompleted {
		mylogger.Info(
			ctx,
			w.logger,
			"Assembly already finished, skipping job",
			zap.Int64("processing_order_id", order.ID),
			zap.String("stage", string(order.Stage)),
			zap.String("assembly_status", string(order.AssemblyStatus)),
		)
		return nil
	}

	if order.AssemblyStatus == domain.AssemblyStatusNew {
		if err := w.repo.SetAssemblyStatus(ctx, order.ID, domain.AssemblyStatusInProgress); err != nil {
			return err
		}

		// Advance the source order to processing so the later ready
		// callback has a valid transition path. Orders that already
		// moved answer with a rejected transition, which counts as done.
		if err := notifyOrderStatus(ctx, w.orders, w.notifyPolicy(), order.OrderID, statusProcessing); err != nil {
			return err
		}
	}

	for _, item := range order.Items {
		if item.Status == domain.ItemStatusReady {
			continue
		}

		if err := w.sleep(ctx, w.itemDelay); err != nil {
			return err
		}

		if err := w.repo.MarkItemReady(ctx, item.ID); err != nil {
			return err
		}

		mylogger.Info(
			ctx,
			w.logger,
			"Item assembled",
			zap.Int64("processing_order_id", order.ID),
			zap.Int64("item_id", item.ID),
			zap.Int64("product_id", item.ProductID),
		)
	}

	if err := w.repo.SetAssemblyStatus(ctx, order.ID, domain.AssemblyStatusCompleted); err != nil {
		return err
	}

	if err := notifyOrderStatus(ctx, w.orders, w.notifyPolicy(), order.OrderID, statusReady); err != nil {
		return err
	}

	mylogger.Info(
		ctx,
		w.logger,
		"Assembly completed",
		zap.Int64("processing_order_id", order.ID),
		zap.Int64("order_id", order.OrderID),
	)

	return nil
}

// notifyOrderStatus pushes the new status to the order service, retrying
// transient failures. An InvalidTransition or PreconditionFailed answer
// means the order already moved past this status, so it counts as success.
func notifyOrderStatus(ctx context.Context, orders client.OrderClient, policy backoff.BackOff, orderID int64, status string) error {
	op := func() error {
		err := orders.UpdateOrderStatus(ctx, orderID, status)
		if err == nil {
			return nil
		}

		switch apperr.KindOf(err) {
		case apperr.KindInvalidTransition, apperr.KindPreconditionFailed:
			return nil
		case apperr.KindValidation, apperr.KindNotFound:
			return backoff.Permanent(err)
		}

		return err
	}

	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return fmt.Errorf("failed to report order %d status %q: %w", orderID, status, err)
	}

	return nil
}

func defaultNotifyPolicy() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 30 * time.Second

	return policy
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
