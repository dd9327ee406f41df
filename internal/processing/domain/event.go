package domain

import "time"

// OrderCreatedEvent is the processing-side projection of the order
// service's OrderCreated payload.
type OrderCreatedEvent struct {
	OrderID   int64                   `json:"order_id"`
	Email     string                  `json:"email"`
	Status    string                  `json:"status"`
	TotalSum  int64                   `json:"total_sum"`
	Items     []OrderCreatedEventItem `json:"items"`
	CreatedAt time.Time               `json:"created_at"`
}

type OrderCreatedEventItem struct {
	ProductID int64 `json:"product_id"`
	Price     int64 `json:"price"`
	Quantity  int32 `json:"quantity"`
}
