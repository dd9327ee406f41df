package tests

import (
	"fmt"
	"time"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/order/service"
)

func (s *IntegrationTestSuite) TestCreateOrder_Success() {
	orderID := s.createOrder()

	order, err := s.OrderService.GetOrder(s.Ctx, orderID)
	s.Require().NoError(err)
	s.Require().EqualValues(3500, order.TotalSum)
	s.Require().Equal("new", order.Status.String())
	s.Require().Len(order.Items, 3)

	outboxQuery := `
		SELECT event_type
		FROM outbox
		WHERE aggregate_id = $1
	`

	var eventType string
	err = s.DbPool.QueryRow(s.Ctx, outboxQuery, fmt.Sprintf("%d", orderID)).
		Scan(&eventType)
	s.Require().NoError(err)
	s.Require().Equal("OrderCreated", eventType)

	publishedAtQuery := `
		SELECT published_at
		FROM outbox
		WHERE aggregate_id = $1
	`

	s.Require().Eventually(func() bool {
		var publishedAt *time.Time

		err := s.DbPool.QueryRow(s.Ctx, publishedAtQuery, fmt.Sprintf("%d", orderID)).
			Scan(&publishedAt)

		return err == nil && publishedAt != nil
	}, 5*time.Second, 100*time.Millisecond)
}

func (s *IntegrationTestSuite) TestCreateOrder_InsufficientStock() {
	s.Catalog.stock[2] = 0

	_, err := s.OrderService.CreateOrder(s.Ctx, &service.CreateOrderRequest{
		Email: "customer@example.com",
		Items: []service.CreateOrderItem{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
		},
	})
	s.Require().Error(err)

	// The successful reservation must be compensated.
	s.Require().Contains(s.Catalog.released, int64(1))

	var count int
	err = s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM orders`).Scan(&count)
	s.Require().NoError(err)
	s.Require().Zero(count)
}
