package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/notification/domain"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/notification/email"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/notification/repository"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/dedup"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/mylogger"
)

type NotificationService struct {
	emailSender email.Sender
	templates   repository.TemplateRepository
	logger      *zap.Logger
	pool        *pgxpool.Pool
	tracer      trace.Tracer
	sendPolicy  func() backoff.BackOff
}

func NewNotificationService(
	emailSender email.Sender,
	templates repository.TemplateRepository,
	logger *zap.Logger,
	pool *pgxpool.Pool,
) *NotificationService {
	return &NotificationService{
		emailSender: emailSender,
		templates:   templates,
		logger:      logger,
		pool:        pool,
		tracer:      otel.Tracer("notification_service"),
		sendPolicy:  defaultSendPolicy,
	}
}

// HandleOrderStatusChanged looks up the template for the new status,
// renders it and emails the customer. The whole action sits behind the
// processed_events guard, so a redelivered event sends nothing.
//
// A missing template is treated as terminal: the event is consumed and the
// gap is logged for operators, since redelivery cannot conjure the row.
func (s *NotificationService) HandleOrderStatusChanged(ctx context.Context, eventID int64, event *domain.OrderStatusChangedEvent) error {
	ctx, span := s.tracer.Start(ctx, "NotificationService.HandleOrderStatusChanged")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("event_id", eventID),
		attribute.Int64("order_id", event.OrderID),
		attribute.Int("status_code", event.StatusCode),
	)

	return dedup.ProcessOnce(ctx, s.pool, s.logger, eventID, func() error {
		tpl, err := s.templates.GetByStatusCode(ctx, event.StatusCode)
		if err != nil {
			if errors.Is(err, repository.ErrTemplateNotFound) {
				mylogger.Error(
					ctx,
					s.logger,
					"No template for status, notification dropped",
					zap.Int("status_code", event.StatusCode),
					zap.Int64("order_id", event.OrderID),
				)
				return nil
			}

			return err
		}

		values := map[string]string{
			"OrderId":    strconv.FormatInt(event.OrderID, 10),
			"Status":     event.Status,
			"StatusCode": strconv.Itoa(event.StatusCode),
			"Email":      event.Email,
		}

		subject := tpl.RenderSubject(values)
		body := tpl.RenderBody(values)

		send := func() error {
			return s.emailSender.Send(ctx, event.Email, subject, body)
		}
		if err := backoff.Retry(send, backoff.WithContext(s.sendPolicy(), ctx)); err != nil {
			return err
		}

		mylogger.Info(
			ctx,
			s.logger,
			"Status notification sent",
			zap.Int64("order_id", event.OrderID),
			zap.String("status", event.Status),
			zap.String("to", event.Email),
		)

		return nil
	})
}

func defaultSendPolicy() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 30 * time.Second

	return policy
}
