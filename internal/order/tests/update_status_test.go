package tests

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/apperr"
)

func (s *IntegrationTestSuite) TestUpdateOrderStatus_ValidTransition() {
	orderID := s.createOrder()

	order, err := s.OrderService.UpdateOrderStatus(s.Ctx, orderID, "processing")
	s.Require().NoError(err)
	s.Require().Equal("processing", order.Status.String())

	query := `
		SELECT payload
		FROM outbox
		WHERE aggregate_id = $1 AND event_type = 'OrderStatusChanged'
	`

	var payload []byte
	err = s.DbPool.QueryRow(s.Ctx, query, fmt.Sprintf("%d", orderID)).Scan(&payload)
	s.Require().NoError(err)

	var envelope struct {
		Event   string `json:"event"`
		Payload struct {
			OrderID    int64  `json:"order_id"`
			StatusCode int    `json:"status_code"`
			Status     string `json:"status"`
			Email      string `json:"email"`
		} `json:"payload"`
	}
	s.Require().NoError(json.Unmarshal(payload, &envelope))
	s.Require().Equal("OrderStatusChanged", envelope.Event)
	s.Require().Equal(orderID, envelope.Payload.OrderID)
	s.Require().Equal(3, envelope.Payload.StatusCode)
	s.Require().Equal("customer@example.com", envelope.Payload.Email)
}

func (s *IntegrationTestSuite) TestUpdateOrderStatus_SkippingStagesRejected() {
	orderID := s.createOrder()

	_, err := s.OrderService.UpdateOrderStatus(s.Ctx, orderID, "delivered")
	s.Require().Error(err)
	s.Require().Equal(apperr.KindInvalidTransition, apperr.KindOf(err))

	// Rejected transitions must not leak an event.
	var count int
	err = s.DbPool.QueryRow(
		s.Ctx,
		`SELECT COUNT(*) FROM outbox WHERE event_type = 'OrderStatusChanged'`,
	).Scan(&count)
	s.Require().NoError(err)
	s.Require().Zero(count)

	order, err := s.OrderService.GetOrder(s.Ctx, orderID)
	s.Require().NoError(err)
	s.Require().Equal("new", order.Status.String())
}

func (s *IntegrationTestSuite) TestUpdateOrderStatus_TerminalStateFrozen() {
	orderID := s.createOrder()

	_, err := s.OrderService.UpdateOrderStatus(s.Ctx, orderID, "cancelled")
	s.Require().NoError(err)

	_, err = s.OrderService.UpdateOrderStatus(s.Ctx, orderID, "processing")
	s.Require().Error(err)
	s.Require().Equal(apperr.KindInvalidTransition, apperr.KindOf(err))
}

func (s *IntegrationTestSuite) TestUpdateOrderStatus_EventPublished() {
	orderID := s.createOrder()

	_, err := s.OrderService.UpdateOrderStatus(s.Ctx, orderID, "processing")
	s.Require().NoError(err)

	query := `
		SELECT published_at
		FROM outbox
		WHERE aggregate_id = $1 AND event_type = 'OrderStatusChanged'
	`

	s.Require().Eventually(func() bool {
		var publishedAt *time.Time

		err := s.DbPool.QueryRow(s.Ctx, query, fmt.Sprintf("%d", orderID)).Scan(&publishedAt)

		return err == nil && publishedAt != nil
	}, 5*time.Second, 100*time.Millisecond)
}
