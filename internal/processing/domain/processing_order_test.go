package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/apperr"
)

func TestValidateBeginAssembly(t *testing.T) {
	tests := []struct {
		name   string
		stage  Stage
		status AssemblyStatus
		ok     bool
	}{
		{"new assembly order", StageAssembly, AssemblyStatusNew, true},
		{"assembly already running", StageAssembly, AssemblyStatusInProgress, false},
		{"assembly already completed", StageAssembly, AssemblyStatusCompleted, false},
		{"already in delivery stage", StageDelivery, AssemblyStatusCompleted, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			order := &ProcessingOrder{ID: 1, Stage: tc.stage, AssemblyStatus: tc.status}

			err := order.ValidateBeginAssembly()
			if tc.ok {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Equal(t, apperr.KindPreconditionFailed, apperr.KindOf(err))
		})
	}
}

func TestValidateBeginDelivery(t *testing.T) {
	tests := []struct {
		name   string
		stage  Stage
		status AssemblyStatus
		ok     bool
	}{
		{"assembly completed", StageAssembly, AssemblyStatusCompleted, true},
		{"assembly not started", StageAssembly, AssemblyStatusNew, false},
		{"assembly still running", StageAssembly, AssemblyStatusInProgress, false},
		{"delivery already begun", StageDelivery, AssemblyStatusCompleted, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			order := &ProcessingOrder{ID: 1, Stage: tc.stage, AssemblyStatus: tc.status}

			err := order.ValidateBeginDelivery()
			if tc.ok {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Equal(t, apperr.KindPreconditionFailed, apperr.KindOf(err))
		})
	}
}

func TestAssemblyDone(t *testing.T) {
	order := &ProcessingOrder{
		Items: []ProcessingItem{
			{Status: ItemStatusReady},
			{Status: ItemStatusPending},
		},
	}
	assert.False(t, order.AssemblyDone())

	order.Items[1].Status = ItemStatusReady
	assert.True(t, order.AssemblyDone())

	empty := &ProcessingOrder{}
	assert.False(t, empty.AssemblyDone())
}
