package tests

import (
	"context"
	"testing"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/order/client"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/order/repository"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/order/service"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/apperr"
	pkgKafka "github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/kafka"
	outboxRepository "github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/outbox/repository"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/outbox/worker"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/testsuite"
)

// stubCatalog stands in for the catalog service: fixed prices, bounded
// stock, recorded release calls.
type stubCatalog struct {
	prices map[int64]int64
	stock  map[int64]int32

	released []int64
}

func (c *stubCatalog) Reserve(_ context.Context, productID int64, quantity int32) (client.Reservation, error) {
	price, ok := c.prices[productID]
	if !ok {
		return client.Reservation{}, apperr.NotFound("product %d not found", productID)
	}
	if c.stock[productID] < quantity {
		return client.Reservation{}, apperr.Conflict("insufficient stock for product %d", productID)
	}
	c.stock[productID] -= quantity
	return client.Reservation{ProductID: productID, Price: price}, nil
}

func (c *stubCatalog) Release(_ context.Context, productID int64, quantity int32) (client.Reservation, error) {
	c.released = append(c.released, productID)
	c.stock[productID] += quantity
	return client.Reservation{ProductID: productID, Price: c.prices[productID]}, nil
}

type IntegrationTestSuite struct {
	testsuite.BaseSuite

	OrderService    service.OrderService
	Catalog         *stubCatalog
	TestProducer    pkgKafka.Producer
	OutboxProcessor *worker.OutboxProcessor
	workerCancel    context.CancelFunc
}

func (s *IntegrationTestSuite) SetupSuite() {
	s.BaseSuite.SetupInfrastructure("../../../migrations/order")
}

func (s *IntegrationTestSuite) TearDownSuite() {
	s.BaseSuite.TearDownInfrastructure()
}

func (s *IntegrationTestSuite) SetupTest() {
	s.BaseSuite.TruncateTable("orders")
	s.BaseSuite.TruncateTable("order_items")
	s.BaseSuite.TruncateTable("outbox")

	logger := zap.NewNop()
	orderRepo := repository.NewOrderRepository(s.DbPool, logger)
	outboxRepo := outboxRepository.NewOutboxRepository(s.DbPool, logger)

	s.Catalog = &stubCatalog{
		prices: map[int64]int64{1: 1000, 2: 500, 3: 200},
		stock:  map[int64]int32{1: 10, 2: 10, 3: 10},
	}

	var err error
	s.TestProducer, err = pkgKafka.NewProducer(s.KafkaBrokers)
	s.Require().NoError(err, "failed to create kafka producer")

	s.OrderService = service.NewOrderService(s.DbPool, logger, orderRepo, outboxRepo, s.Catalog)

	s.OutboxProcessor = worker.NewOutboxProcessor(s.DbPool, outboxRepo, s.TestProducer, logger)

	workerCtx, cancel := context.WithCancel(s.Ctx)
	s.workerCancel = cancel

	go s.OutboxProcessor.Start(workerCtx)
}

func (s *IntegrationTestSuite) TearDownTest() {
	if s.workerCancel != nil {
		s.workerCancel()
	}
}

func (s *IntegrationTestSuite) createOrder() int64 {
	order, err := s.OrderService.CreateOrder(s.Ctx, &service.CreateOrderRequest{
		Email: "customer@example.com",
		Items: []service.CreateOrderItem{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
			{ProductID: 3, Quantity: 5},
		},
	})
	s.Require().NoError(err)
	s.Require().NotNil(order)

	return order.ID
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationTestSuite))
}
