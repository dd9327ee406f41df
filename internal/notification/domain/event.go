package domain

// OrderStatusChangedEvent is the notification-side projection of the order
// service's status change payload.
type OrderStatusChangedEvent struct {
	OrderID    int64  `json:"order_id"`
	StatusCode int    `json:"status_code"`
	Status     string `json:"status"`
	Email      string `json:"email"`
}
