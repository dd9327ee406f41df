package domain

import (
	"time"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/apperr"
)

// Stage is the coarse fulfillment phase. Each stage carries its own status
// enumeration so "completed assembly" and "completed delivery" can never be
// confused for one another.
type Stage string

const (
	StageAssembly Stage = "assembly"
	StageDelivery Stage = "delivery"
)

type AssemblyStatus string

const (
	AssemblyStatusNew        AssemblyStatus = "new"
	AssemblyStatusInProgress AssemblyStatus = "in_progress"
	AssemblyStatusCompleted  AssemblyStatus = "completed"
)

type DeliveryStatus string

const (
	DeliveryStatusNew        DeliveryStatus = "new"
	DeliveryStatusInProgress DeliveryStatus = "in_progress"
	DeliveryStatusCompleted  DeliveryStatus = "completed"
)

type ItemStatus string

const (
	ItemStatusPending ItemStatus = "pending"
	ItemStatusReady   ItemStatus = "ready"
)

// ProcessingOrder mirrors one source order through fulfillment. At most one
// exists per order (unique index on OrderID); it is created reactively from
// the OrderCreated event and never deleted.
type ProcessingOrder struct {
	ID             int64            `json:"id" db:"id"`
	OrderID        int64            `json:"order_id" db:"order_id"`
	Email          string           `json:"email" db:"email"`
	Stage          Stage            `json:"stage" db:"stage"`
	AssemblyStatus AssemblyStatus   `json:"assembly_status" db:"assembly_status"`
	DeliveryStatus DeliveryStatus   `json:"delivery_status" db:"delivery_status"`
	TrackingNumber *string          `json:"tracking_number,omitempty" db:"tracking_number"`
	Items          []ProcessingItem `json:"items"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

type ProcessingItem struct {
	ID                int64      `json:"id" db:"id"`
	ProcessingOrderID int64      `json:"processing_order_id" db:"processing_order_id"`
	ProductID         int64      `json:"product_id" db:"product_id"`
	Quantity          int32      `json:"quantity" db:"quantity"`
	Status            ItemStatus `json:"status" db:"status"`
}

// ValidateBeginAssembly gates scheduling of assembly work.
func (o *ProcessingOrder) ValidateBeginAssembly() error {
	if o.Stage != StageAssembly || o.AssemblyStatus != AssemblyStatusNew {
		return apperr.PreconditionFailed(
			"processing order %d cannot begin assembly: stage=%s assembly_status=%s",
			o.ID, o.Stage, o.AssemblyStatus,
		)
	}
	return nil
}

// ValidateBeginDelivery gates scheduling of delivery work: delivery cannot
// start until assembly has fully completed.
func (o *ProcessingOrder) ValidateBeginDelivery() error {
	if o.Stage != StageAssembly || o.AssemblyStatus != AssemblyStatusCompleted {
		return apperr.PreconditionFailed(
			"processing order %d cannot begin delivery: stage=%s assembly_status=%s",
			o.ID, o.Stage, o.AssemblyStatus,
		)
	}
	return nil
}

// AssemblyDone reports whether every item has been assembled.
func (o *ProcessingOrder) AssemblyDone() bool {
	for _, item := range o.Items {
		if item.Status != ItemStatusReady {
			return false
		}
	}
	return len(o.Items) > 0
}
