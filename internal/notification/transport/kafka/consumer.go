package kafka

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/notification/domain"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/notification/service"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/mylogger"
	outboxDomain "github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/outbox/domain"
)

const eventOrderStatusChanged = "OrderStatusChanged"

// StatusEventsHandler consumes order status events and turns them into
// customer notifications. Malformed messages are logged and committed;
// handler failures are returned uncommitted for redelivery.
type StatusEventsHandler struct {
	logger  *zap.Logger
	service *service.NotificationService
}

func NewStatusEventsHandler(logger *zap.Logger, svc *service.NotificationService) *StatusEventsHandler {
	return &StatusEventsHandler{logger: logger, service: svc}
}

func (h *StatusEventsHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var envelope outboxDomain.ConsumedEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		mylogger.Error(
			ctx,
			h.logger,
			"Skipping malformed message",
			zap.String("topic", msg.Topic),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return nil
	}

	switch envelope.Event {
	case eventOrderStatusChanged:
		var event domain.OrderStatusChangedEvent
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			mylogger.Error(
				ctx,
				h.logger,
				"Skipping malformed OrderStatusChanged payload",
				zap.Int64("event_id", envelope.EventID),
				zap.Error(err),
			)
			return nil
		}

		return h.service.HandleOrderStatusChanged(ctx, envelope.EventID, &event)
	default:
		mylogger.Warn(
			ctx,
			h.logger,
			"Ignoring unknown event type",
			zap.String("event", envelope.Event),
			zap.Int64("event_id", envelope.EventID),
		)
		return nil
	}
}
