package order

import "time"

// Order is one purchased product. A checkout produces one Order per product.
type Order struct {
	ID        int64     `db:"id"`
	ProductID int64     `db:"product_id"`
	UserID    int64     `db:"user_id"`
	Address   string    `db:"address"`
	Phone     string    `db:"phone"`
	Size      string    `db:"size"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`

	ProductName  string  `db:"product_name"`
	ProductPrice float64 `db:"product_price"`
}
