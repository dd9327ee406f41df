package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/pkg/apperr"
)

type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "new"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusReady      OrderStatus = "ready"
	OrderStatusDelivering OrderStatus = "delivering"
	OrderStatusDelivered  OrderStatus = "delivered"
)

// transitions is the full order lifecycle; statuses absent from a set are
// unreachable from that state. Cancelled and delivered are terminal.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusNew:        {OrderStatusCancelled, OrderStatusProcessing},
	OrderStatusCancelled:  {},
	OrderStatusProcessing: {OrderStatusCancelled, OrderStatusReady},
	OrderStatusReady:      {OrderStatusDelivering, OrderStatusCancelled},
	OrderStatusDelivering: {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  {},
}

// statusCodes key notification templates; they are part of the wire contract
// with the notification service and must stay stable.
var statusCodes = map[OrderStatus]int{
	OrderStatusNew:        1,
	OrderStatusCancelled:  2,
	OrderStatusProcessing: 3,
	OrderStatusReady:      4,
	OrderStatusDelivering: 5,
	OrderStatusDelivered:  6,
}

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) Code() int { return statusCodes[s] }

// ParseStatus converts caller-supplied free-form input into a known status.
func ParseStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := transitions[status]; !ok {
		return "", apperr.Validation("unknown order status %q", raw)
	}
	return status, nil
}

// ValidateTransition checks the requested transition against the lifecycle
// table. It is pure and must be called before any persistence write.
func ValidateTransition(current, requested OrderStatus) error {
	allowed, ok := transitions[current]
	if !ok {
		return apperr.Validation("unknown order status %q", current)
	}

	for _, next := range allowed {
		if next == requested {
			return nil
		}
	}

	names := make([]string, 0, len(allowed))
	for _, next := range allowed {
		names = append(names, string(next))
	}
	sort.Strings(names)

	return apperr.InvalidTransition(
		"cannot transition order from %q to %q (allowed: %s)",
		current, requested, strings.Join(names, ", "),
	)
}

type Order struct {
	ID        int64       `db:"id"`
	Email     string      `db:"email"`
	Status    OrderStatus `db:"status"`
	Items     []OrderItem `db:"items"`
	TotalSum  int64       `db:"total_sum"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

// OrderItem snapshots the unit price at order time; items never change
// after the order is created.
type OrderItem struct {
	ID        int64 `db:"id"`
	OrderID   int64 `db:"order_id"`
	ProductID int64 `db:"product_id"`
	Price     int64 `db:"price"`
	Quantity  int32 `db:"quantity"`
}

func (o *Order) CalculateTotal() {
	var total int64
	for _, item := range o.Items {
		total += item.Price * int64(item.Quantity)
	}
	o.TotalSum = total
}
