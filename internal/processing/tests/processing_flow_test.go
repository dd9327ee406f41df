package tests

import (
	"time"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/processing/domain"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/apperr"
)

func (s *IntegrationTestSuite) handleOrderCreated(eventID, orderID int64) {
	err := s.Service.HandleOrderCreated(s.Ctx, eventID, &domain.OrderCreatedEvent{
		OrderID: orderID,
		Email:   "customer@example.com",
		Status:  "processing",
		Items: []domain.OrderCreatedEventItem{
			{ProductID: 1, Price: 1000, Quantity: 2},
			{ProductID: 2, Price: 500, Quantity: 1},
		},
	})
	s.Require().NoError(err)
}

func (s *IntegrationTestSuite) findByOrderID(orderID int64) *domain.ProcessingOrder {
	var id int64
	err := s.DbPool.QueryRow(s.Ctx, `SELECT id FROM processing_orders WHERE order_id = $1`, orderID).Scan(&id)
	s.Require().NoError(err)

	order, err := s.Repo.GetByID(s.Ctx, id)
	s.Require().NoError(err)

	return order
}

func (s *IntegrationTestSuite) TestHandleOrderCreated_Idempotent() {
	s.handleOrderCreated(1, 100)

	// Same event twice and a different event for the same order: still one row.
	s.handleOrderCreated(1, 100)
	s.handleOrderCreated(2, 100)

	var count int
	err := s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM processing_orders WHERE order_id = 100`).Scan(&count)
	s.Require().NoError(err)
	s.Require().Equal(1, count)

	order := s.findByOrderID(100)
	s.Require().Equal(domain.StageAssembly, order.Stage)
	s.Require().Equal(domain.AssemblyStatusNew, order.AssemblyStatus)
	s.Require().Len(order.Items, 2)
}

func (s *IntegrationTestSuite) TestBeginAssembly_RunsToCompletion() {
	s.handleOrderCreated(1, 100)
	order := s.findByOrderID(100)

	s.Require().NoError(s.Service.BeginAssembly(s.Ctx, order.ID))

	s.Require().Eventually(func() bool {
		current, err := s.Repo.GetByID(s.Ctx, order.ID)
		return err == nil && current.AssemblyStatus == domain.AssemblyStatusCompleted
	}, 10*time.Second, 100*time.Millisecond)

	current, err := s.Repo.GetByID(s.Ctx, order.ID)
	s.Require().NoError(err)
	s.Require().True(current.AssemblyDone())
	s.Require().Equal([]string{"processing", "ready"}, s.Orders.Calls())
}

func (s *IntegrationTestSuite) TestBeginAssembly_RejectsSecondStart() {
	s.handleOrderCreated(1, 100)
	order := s.findByOrderID(100)

	s.Require().NoError(s.Service.BeginAssembly(s.Ctx, order.ID))

	s.Require().Eventually(func() bool {
		current, err := s.Repo.GetByID(s.Ctx, order.ID)
		return err == nil && current.AssemblyStatus != domain.AssemblyStatusNew
	}, 10*time.Second, 100*time.Millisecond)

	err := s.Service.BeginAssembly(s.Ctx, order.ID)
	s.Require().Error(err)
	s.Require().Equal(apperr.KindPreconditionFailed, apperr.KindOf(err))
}

func (s *IntegrationTestSuite) TestBeginDelivery_RequiresCompletedAssembly() {
	s.handleOrderCreated(1, 100)
	order := s.findByOrderID(100)

	err := s.Service.BeginDelivery(s.Ctx, []int64{order.ID})
	s.Require().Error(err)
	s.Require().Equal(apperr.KindPreconditionFailed, apperr.KindOf(err))
}

func (s *IntegrationTestSuite) TestBeginDelivery_DeliversBatch() {
	s.handleOrderCreated(1, 100)
	s.handleOrderCreated(2, 200)

	first := s.findByOrderID(100)
	second := s.findByOrderID(200)

	s.Require().NoError(s.Service.BeginAssembly(s.Ctx, first.ID))
	s.Require().NoError(s.Service.BeginAssembly(s.Ctx, second.ID))

	s.Require().Eventually(func() bool {
		a, errA := s.Repo.GetByID(s.Ctx, first.ID)
		b, errB := s.Repo.GetByID(s.Ctx, second.ID)
		return errA == nil && errB == nil &&
			a.AssemblyStatus == domain.AssemblyStatusCompleted &&
			b.AssemblyStatus == domain.AssemblyStatusCompleted
	}, 10*time.Second, 100*time.Millisecond)

	s.Require().NoError(s.Service.BeginDelivery(s.Ctx, []int64{first.ID, second.ID}))

	s.Require().Eventually(func() bool {
		a, errA := s.Repo.GetByID(s.Ctx, first.ID)
		b, errB := s.Repo.GetByID(s.Ctx, second.ID)
		return errA == nil && errB == nil &&
			a.DeliveryStatus == domain.DeliveryStatusCompleted &&
			b.DeliveryStatus == domain.DeliveryStatusCompleted
	}, 10*time.Second, 100*time.Millisecond)

	delivered, err := s.Repo.GetByID(s.Ctx, first.ID)
	s.Require().NoError(err)
	s.Require().Equal(domain.StageDelivery, delivered.Stage)
	s.Require().NotNil(delivered.TrackingNumber)
	s.Require().NotEmpty(*delivered.TrackingNumber)
}
