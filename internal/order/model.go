package order

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []OrderStatus{StatusPending, StatusProcessing, StatusCompleted, StatusCancelled}

func (os OrderStatus) String() string {
	return string(os)
}

func (os OrderStatus) Valid() bool {
	switch os {
	case StatusPending, StatusProcessing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Owner is the user an order belongs to, as currently stored.
type Owner struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// ProductRef is the current catalogue entry behind an order item. It is nil
// once the product has been deleted.
type ProductRef struct {
	Name string `json:"name"`
	SKU  string `json:"sku"`
}

type OrderItem struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	OrderID   uuid.UUID       `json:"order_id" db:"order_id"`
	ProductID uuid.UUID       `json:"product_id" db:"product_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"` // unit price captured when the order was placed
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	Product   *ProductRef     `json:"product,omitempty" db:"-"`
}

// Subtotal is Quantity × Price.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	UserID     uuid.NullUUID   `json:"user_id" db:"user_id"`
	Owner      *Owner          `json:"owner,omitempty" db:"-"`
	TotalPrice decimal.Decimal `json:"total_price" db:"total_price"`
	Status     OrderStatus     `json:"status" db:"status"`
	Items      []OrderItem     `json:"items" db:"-"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// ItemRequest is one requested order line.
type ItemRequest struct {
	ProductID uuid.UUID
	Quantity  int
}
