package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/apperr"
)

func TestValidateTransition_Table(t *testing.T) {
	all := []OrderStatus{
		OrderStatusNew,
		OrderStatusCancelled,
		OrderStatusProcessing,
		OrderStatusReady,
		OrderStatusDelivering,
		OrderStatusDelivered,
	}

	allowed := map[OrderStatus]map[OrderStatus]bool{
		OrderStatusNew:        {OrderStatusCancelled: true, OrderStatusProcessing: true},
		OrderStatusCancelled:  {},
		OrderStatusProcessing: {OrderStatusCancelled: true, OrderStatusReady: true},
		OrderStatusReady:      {OrderStatusDelivering: true, OrderStatusCancelled: true},
		OrderStatusDelivering: {OrderStatusDelivered: true, OrderStatusCancelled: true},
		OrderStatusDelivered:  {},
	}

	for _, current := range all {
		for _, requested := range all {
			err := ValidateTransition(current, requested)

			if allowed[current][requested] {
				assert.NoError(t, err, "%s -> %s should be allowed", current, requested)
			} else {
				require.Error(t, err, "%s -> %s should be rejected", current, requested)
				assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
			}
		}
	}
}

func TestValidateTransition_SkippingStagesFails(t *testing.T) {
	err := ValidateTransition(OrderStatusNew, OrderStatusDelivered)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
}

func TestValidateTransition_FullLifecycle(t *testing.T) {
	path := []OrderStatus{
		OrderStatusNew,
		OrderStatusProcessing,
		OrderStatusReady,
		OrderStatusDelivering,
		OrderStatusDelivered,
	}

	for i := 0; i < len(path)-1; i++ {
		assert.NoError(t, ValidateTransition(path[i], path[i+1]))
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    OrderStatus
		wantErr bool
	}{
		{"new", OrderStatusNew, false},
		{"Processing", OrderStatusProcessing, false},
		{"  delivered ", OrderStatusDelivered, false},
		{"shipped", "", true},
		{"", "", true},
	}

	for _, tc := range tests {
		got, err := ParseStatus(tc.input)
		if tc.wantErr {
			require.Error(t, err, "input %q", tc.input)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			continue
		}
		require.NoError(t, err, "input %q", tc.input)
		assert.Equal(t, tc.want, got)
	}
}

func TestStatusCodesAreStableAndDistinct(t *testing.T) {
	seen := make(map[int]OrderStatus)
	for status, code := range statusCodes {
		prev, dup := seen[code]
		require.False(t, dup, "code %d shared by %s and %s", code, prev, status)
		seen[code] = status
	}

	assert.Equal(t, 1, OrderStatusNew.Code())
	assert.Equal(t, 6, OrderStatusDelivered.Code())
}

func TestCalculateTotal(t *testing.T) {
	order := &Order{
		Items: []OrderItem{
			{ProductID: 1, Price: 1000, Quantity: 2},
			{ProductID: 2, Price: 500, Quantity: 1},
			{ProductID: 3, Price: 200, Quantity: 5},
		},
	}

	order.CalculateTotal()

	assert.Equal(t, int64(3500), order.TotalSum)
}

func TestCalculateTotal_Empty(t *testing.T) {
	order := &Order{}
	order.CalculateTotal()
	assert.Zero(t, order.TotalSum)
}
