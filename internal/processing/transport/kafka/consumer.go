package kafka

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/processing/domain"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/processing/service"
	outboxDomain "github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/outbox/domain"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/mylogger"
)

const eventOrderCreated = "OrderCreated"

// OrderEventsHandler consumes order lifecycle events and feeds them to the
// processing service. Malformed messages are logged and committed so one
// poison message cannot wedge the partition; handler failures are returned
// uncommitted for redelivery.
type OrderEventsHandler struct {
	logger  *zap.Logger
	service service.ProcessingService
}

func NewOrderEventsHandler(logger *zap.Logger, svc service.ProcessingService) *OrderEventsHandler {
	return &OrderEventsHandler{logger: logger, service: svc}
}

func (h *OrderEventsHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
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
	case eventOrderCreated:
		var event domain.OrderCreatedEvent
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			mylogger.Error(
				ctx,
				h.logger,
				"Skipping malformed OrderCreated payload",
				zap.Int64("event_id", envelope.EventID),
				zap.Error(err),
			)
			return nil
		}

		return h.service.HandleOrderCreated(ctx, envelope.EventID, &event)
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
