package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/processing/client"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/processing/domain"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/processing/repository"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/mylogger"
)

// DeliveryWorker executes deliver_orders jobs. One job carries the whole
// batch that was moved to the delivery stage together; each order in it is
// delivered independently, so a retried job skips the ones already done.
type DeliveryWorker struct {
	logger       *zap.Logger
	repo         repository.ProcessingRepository
	orders       client.OrderClient
	transitDelay time.Duration
	tracer       trace.Tracer
	sleep        func(ctx context.Context, d time.Duration) error
	notifyPolicy func() backoff.BackOff
	tracking     func() string
}

func NewDeliveryWorker(
	logger *zap.Logger,
	repo repository.ProcessingRepository,
	orders client.OrderClient,
	transitDelay time.Duration,
) *DeliveryWorker {
	return &DeliveryWorker{
		logger:       logger,
		repo:         repo,
		orders:       orders,
		transitDelay: transitDelay,
		tracer:       otel.Tracer("delivery_worker"),
		sleep:        sleepCtx,
		notifyPolicy: defaultNotifyPolicy,
		tracking:     newTrackingNumber,
	}
}

func (w *DeliveryWorker) Handle(ctx context.Context, payload json.RawMessage) error {
	var p DeliverOrdersPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("failed to unmarshal deliver_orders payload: %w", err)
	}

	ctx, span := w.tracer.Start(ctx, "DeliveryWorker.Handle")
	defer span.End()

	span.SetAttributes(attribute.Int("batch_size", len(p.ProcessingOrderIDs)))

	orders, err := w.repo.GetBatch(ctx, p.ProcessingOrderIDs)
	if err != nil {
		return err
	}

	for _, order := range orders {
		if err := w.deliverOne(ctx, order); err != nil {
			return err
		}
	}

	return nil
}

func (w *DeliveryWorker) deliverOne(ctx context.Context, order *domain.ProcessingOrder) error {
	if order.Stage != domain.StageDelivery {
		mylogger.Warn(
			ctx,
			w.logger,
			"Order not in delivery stage, skipping",
			zap.Int64("processing_order_id", order.ID),
			zap.String("stage", string(order.Stage)),
		)
		return nil
	}

	if order.DeliveryStatus == domain.DeliveryStatusCompleted {
		mylogger.Info(
			ctx,
			w.logger,
			"Order already delivered, skipping",
			zap.Int64("processing_order_id", order.ID),
		)
		return nil
	}

	if order.DeliveryStatus == domain.DeliveryStatusNew {
		if err := w.repo.SetDeliveryStatus(ctx, order.ID, domain.DeliveryStatusInProgress); err != nil {
			return err
		}
	}

	if err := notifyOrderStatus(ctx, w.orders, w.notifyPolicy(), order.OrderID, statusDelivering); err != nil {
		return err
	}

	if err := w.sleep(ctx, w.transitDelay); err != nil {
		return err
	}

	trackingNumber := w.tracking()
	if err := w.repo.CompleteDelivery(ctx, order.ID, trackingNumber); err != nil {
		return err
	}

	if err := notifyOrderStatus(ctx, w.orders, w.notifyPolicy(), order.OrderID, statusDelivered); err != nil {
		return err
	}

	mylogger.Info(
		ctx,
		w.logger,
		"Order delivered",
		zap.Int64("processing_order_id", order.ID),
		zap.Int64("order_id", order.OrderID),
		zap.String("tracking_number", trackingNumber),
	)

	return nil
}

func newTrackingNumber() string {
	return "TRK-" + uuid.NewString()
}
