package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/processing/domain"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/processing/repository"
	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/apperr"
)

type fakeRepo struct {
	orders map[int64]*domain.ProcessingOrder

	assemblyStatuses []domain.AssemblyStatus
	deliveryStatuses []domain.DeliveryStatus
	readyItems       []int64
	completed        map[int64]string
}

func newFakeRepo(orders ...*domain.ProcessingOrder) *fakeRepo {
	r := &fakeRepo{
		orders:    make(map[int64]*domain.ProcessingOrder),
		completed: make(map[int64]string),
	}
	for _, o := range orders {
		r.orders[o.ID] = o
	}
	return r
}

func (r *fakeRepo) CreateFromOrder(_ context.Context, _ *domain.ProcessingOrder) (bool, error) {
	panic("not used in worker tests")
}

func (r *fakeRepo) GetByID(_ context.Context, id int64) (*domain.ProcessingOrder, error) {
	order, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrProcessingOrderNotFound
	}
	return order, nil
}

func (r *fakeRepo) GetBatch(_ context.Context, ids []int64) ([]*domain.ProcessingOrder, error) {
	var out []*domain.ProcessingOrder
	for _, id := range ids {
		if order, ok := r.orders[id]; ok {
			out = append(out, order)
		}
	}
	return out, nil
}

func (r *fakeRepo) SetAssemblyStatus(_ context.Context, id int64, status domain.AssemblyStatus) error {
	r.assemblyStatuses = append(r.assemblyStatuses, status)
	r.orders[id].AssemblyStatus = status
	return nil
}

func (r *fakeRepo) MarkItemReady(_ context.Context, itemID int64) error {
	r.readyItems = append(r.readyItems, itemID)
	return nil
}

func (r *fakeRepo) BeginDeliveryStage(_ context.Context, _ pgx.Tx, id int64) error {
	r.orders[id].Stage = domain.StageDelivery
	return nil
}

func (r *fakeRepo) SetDeliveryStatus(_ context.Context, id int64, status domain.DeliveryStatus) error {
	r.deliveryStatuses = append(r.deliveryStatuses, status)
	r.orders[id].DeliveryStatus = status
	return nil
}

func (r *fakeRepo) CompleteDelivery(_ context.Context, id int64, trackingNumber string) error {
	r.completed[id] = trackingNumber
	order := r.orders[id]
	order.DeliveryStatus = domain.DeliveryStatusCompleted
	order.TrackingNumber = &trackingNumber
	return nil
}

type fakeOrderClient struct {
	calls    []string
	failWith map[string]error
}

func (c *fakeOrderClient) UpdateOrderStatus(_ context.Context, _ int64, status string) error {
	c.calls = append(c.calls, status)
	if err, ok := c.failWith[status]; ok {
		return err
	}
	return nil
}

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func singleTryPolicy() backoff.BackOff { return &backoff.StopBackOff{} }

func assemblyOrder(id int64) *domain.ProcessingOrder {
	return &domain.ProcessingOrder{
		ID:             id,
		OrderID:        id + 100,
		Email:          "user@example.com",
		Stage:          domain.StageAssembly,
		AssemblyStatus: domain.AssemblyStatusNew,
		DeliveryStatus: domain.DeliveryStatusNew,
		Items: []domain.ProcessingItem{
			{ID: 1, ProcessingOrderID: id, ProductID: 10, Quantity: 2, Status: domain.ItemStatusPending},
			{ID: 2, ProcessingOrderID: id, ProductID: 20, Quantity: 1, Status: domain.ItemStatusPending},
			{ID: 3, ProcessingOrderID: id, ProductID: 30, Quantity: 4, Status: domain.ItemStatusPending},
		},
	}
}

func newTestAssemblyWorker(repo *fakeRepo, orders *fakeOrderClient) *AssemblyWorker {
	w := NewAssemblyWorker(zap.NewNop(), repo, orders, 0)
	w.sleep = noSleep
	w.notifyPolicy = singleTryPolicy
	return w
}

func newTestDeliveryWorker(repo *fakeRepo, orders *fakeOrderClient) *DeliveryWorker {
	w := NewDeliveryWorker(zap.NewNop(), repo, orders, 0)
	w.sleep = noSleep
	w.notifyPolicy = singleTryPolicy
	w.tracking = func() string { return "TRK-test" }
	return w
}

func mustPayload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestAssemblyWorker_AssemblesAllItems(t *testing.T) {
	repo := newFakeRepo(assemblyOrder(1))
	orders := &fakeOrderClient{}
	w := newTestAssemblyWorker(repo, orders)

	err := w.Handle(context.Background(), mustPayload(t, AssembleOrderPayload{ProcessingOrderID: 1}))
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3}, repo.readyItems)
	assert.Equal(t,
		[]domain.AssemblyStatus{domain.AssemblyStatusInProgress, domain.AssemblyStatusCompleted},
		repo.assemblyStatuses,
	)
	assert.Equal(t, []string{"processing", "ready"}, orders.calls)
}

func TestAssemblyWorker_AdvancesFreshOrderToProcessing(t *testing.T) {
	repo := newFakeRepo(assemblyOrder(1))
	orders := &fakeOrderClient{}
	w := newTestAssemblyWorker(repo, orders)

	err := w.Handle(context.Background(), mustPayload(t, AssembleOrderPayload{ProcessingOrderID: 1}))
	require.NoError(t, err)

	// The order is moved off "new" before "ready" is reported, so the
	// ready transition is always reachable.
	require.GreaterOrEqual(t, len(orders.calls), 2)
	assert.Equal(t, "processing", orders.calls[0])
	assert.Equal(t, "ready", orders.calls[len(orders.calls)-1])
}

func TestAssemblyWorker_ResumesFromPendingItems(t *testing.T) {
	order := assemblyOrder(1)
	order.AssemblyStatus = domain.AssemblyStatusInProgress
	order.Items[0].Status = domain.ItemStatusReady
	order.Items[1].Status = domain.ItemStatusReady

	repo := newFakeRepo(order)
	orders := &fakeOrderClient{}
	w := newTestAssemblyWorker(repo, orders)

	err := w.Handle(context.Background(), mustPayload(t, AssembleOrderPayload{ProcessingOrderID: 1}))
	require.NoError(t, err)

	assert.Equal(t, []int64{3}, repo.readyItems)
	assert.Equal(t, []domain.AssemblyStatus{domain.AssemblyStatusCompleted}, repo.assemblyStatuses)
	// A retried job whose order already advanced only reports ready.
	assert.Equal(t, []string{"ready"}, orders.calls)
}

func TestAssemblyWorker_SkipsCompletedOrder(t *testing.T) {
	order := assemblyOrder(1)
	order.AssemblyStatus = domain.AssemblyStatusCompleted

	repo := newFakeRepo(order)
	orders := &fakeOrderClient{}
	w := newTestAssemblyWorker(repo, orders)

	err := w.Handle(context.Background(), mustPayload(t, AssembleOrderPayload{ProcessingOrderID: 1}))
	require.NoError(t, err)

	assert.Empty(t, repo.readyItems)
	assert.Empty(t, repo.assemblyStatuses)
	assert.Empty(t, orders.calls)
}

func TestAssemblyWorker_TreatsRejectedTransitionAsSuccess(t *testing.T) {
	repo := newFakeRepo(assemblyOrder(1))
	orders := &fakeOrderClient{
		failWith: map[string]error{
			"ready": apperr.InvalidTransition("order already past assembly"),
		},
	}
	w := newTestAssemblyWorker(repo, orders)

	err := w.Handle(context.Background(), mustPayload(t, AssembleOrderPayload{ProcessingOrderID: 1}))
	require.NoError(t, err)
}

func TestAssemblyWorker_PropagatesCallbackFailure(t *testing.T) {
	repo := newFakeRepo(assemblyOrder(1))
	orders := &fakeOrderClient{
		failWith: map[string]error{
			"ready": apperr.ExternalCall("order service unavailable", nil),
		},
	}
	w := newTestAssemblyWorker(repo, orders)

	err := w.Handle(context.Background(), mustPayload(t, AssembleOrderPayload{ProcessingOrderID: 1}))
	require.Error(t, err)
}

func deliveryOrder(id int64) *domain.ProcessingOrder {
	o := assemblyOrder(id)
	o.Stage = domain.StageDelivery
	o.AssemblyStatus = domain.AssemblyStatusCompleted
	for i := range o.Items {
		o.Items[i].Status = domain.ItemStatusReady
	}
	return o
}

func TestDeliveryWorker_DeliversBatch(t *testing.T) {
	repo := newFakeRepo(deliveryOrder(1), deliveryOrder(2))
	orders := &fakeOrderClient{}
	w := newTestDeliveryWorker(repo, orders)

	err := w.Handle(context.Background(), mustPayload(t, DeliverOrdersPayload{ProcessingOrderIDs: []int64{1, 2}}))
	require.NoError(t, err)

	assert.Equal(t, "TRK-test", repo.completed[1])
	assert.Equal(t, "TRK-test", repo.completed[2])
	assert.Equal(t, []string{"delivering", "delivered", "delivering", "delivered"}, orders.calls)
}

func TestDeliveryWorker_SkipsAlreadyDelivered(t *testing.T) {
	done := deliveryOrder(1)
	done.DeliveryStatus = domain.DeliveryStatusCompleted

	repo := newFakeRepo(done, deliveryOrder(2))
	orders := &fakeOrderClient{}
	w := newTestDeliveryWorker(repo, orders)

	err := w.Handle(context.Background(), mustPayload(t, DeliverOrdersPayload{ProcessingOrderIDs: []int64{1, 2}}))
	require.NoError(t, err)

	_, redone := repo.completed[1]
	assert.False(t, redone)
	assert.Equal(t, "TRK-test", repo.completed[2])
	assert.Equal(t, []string{"delivering", "delivered"}, orders.calls)
}

func TestDeliveryWorker_SkipsOrderOutsideDeliveryStage(t *testing.T) {
	repo := newFakeRepo(assemblyOrder(1))
	orders := &fakeOrderClient{}
	w := newTestDeliveryWorker(repo, orders)

	err := w.Handle(context.Background(), mustPayload(t, DeliverOrdersPayload{ProcessingOrderIDs: []int64{1}}))
	require.NoError(t, err)

	assert.Empty(t, repo.completed)
	assert.Empty(t, orders.calls)
}
