package order

import (
	"context"
	"time"

	"github.com/gofrs/uuid"

	"github.com/vasiliy-maslov/inventory-service/internal/inventory"
)

// Repository is the transactional store behind the order service.
type Repository interface {
	// RunInTx runs fn in a single transaction, committing when fn returns nil
	// and rolling back otherwise.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// ListOrders returns every order, newest first, with owners and product references resolved.
	ListOrders(ctx context.Context) ([]Order, error)
}

// Tx is the set of operations available inside RunInTx. Row locks taken here
// are held until the transaction ends.
type Tx interface {
	// LockProducts locks the existing products among ids; missing ids are absent from the result.
	LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]inventory.Product, error)
	// AdjustStock adds delta to the product quantity, returning ErrInsufficientStock
	// when the result would be negative.
	AdjustStock(ctx context.Context, productID uuid.UUID, delta int, at time.Time) error
	InsertOrder(ctx context.Context, order *Order) error
	InsertOrderItem(ctx context.Context, item *OrderItem) error
	// LockOrder locks the order row and returns it with its items.
	LockOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	SetOrderStatus(ctx context.Context, id uuid.UUID, status OrderStatus, at time.Time) error
	DeleteOrder(ctx context.Context, id uuid.UUID) error
}
