package domain

import "time"

type Product struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Price     int64     `json:"price" db:"price"`
	Stock     int64     `json:"stock" db:"stock"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Reservation is returned from reserve/release calls: the product plus the
// unit price valid at reservation time.
type Reservation struct {
	ProductID int64 `json:"product_id"`
	Price     int64 `json:"price"`
}
