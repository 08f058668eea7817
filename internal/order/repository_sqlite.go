package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/inventory-service/internal/db"
	"github.com/vasiliy-maslov/inventory-service/internal/inventory"
	"github.com/vasiliy-maslov/inventory-service/internal/money"
)

// sqliteRepository relies on the database handle being limited to a single
// connection: a transaction holds that connection until it ends, so order
// transactions never interleave.
type sqliteRepository struct {
	db *sqlx.DB
}

func NewSQLiteRepository(db *sqlx.DB) Repository {
	return &sqliteRepository{db: db}
}

type sqliteQuerier interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

type orderRow struct {
	ID              uuid.UUID      `db:"id"`
	UserID          uuid.NullUUID  `db:"user_id"`
	TotalPriceCents int64          `db:"total_price"`
	Status          OrderStatus    `db:"status"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
	OwnerName       sql.NullString `db:"owner_name"`
	OwnerEmail      sql.NullString `db:"owner_email"`
}

func (r orderRow) toOrder() *Order {
	o := &Order{
		ID:         r.ID,
		UserID:     r.UserID,
		TotalPrice: money.FromCents(r.TotalPriceCents),
		Status:     r.Status,
		Items:      make([]OrderItem, 0),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.UserID.Valid && r.OwnerName.Valid {
		o.Owner = &Owner{ID: r.UserID.UUID, Name: r.OwnerName.String, Email: r.OwnerEmail.String}
	}
	return o
}

type itemRow struct {
	ID          uuid.UUID      `db:"id"`
	OrderID     uuid.UUID      `db:"order_id"`
	ProductID   uuid.UUID      `db:"product_id"`
	Quantity    int            `db:"quantity"`
	PriceCents  int64          `db:"price"`
	CreatedAt   time.Time      `db:"created_at"`
	ProductName sql.NullString `db:"product_name"`
	ProductSKU  sql.NullString `db:"product_sku"`
}

func (r itemRow) toItem() OrderItem {
	item := OrderItem{
		ID:        r.ID,
		OrderID:   r.OrderID,
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		Price:     money.FromCents(r.PriceCents),
		CreatedAt: r.CreatedAt,
	}
	if r.ProductName.Valid {
		item.Product = &ProductRef{Name: r.ProductName.String, SKU: r.ProductSKU.String}
	}
	return item
}

const sqliteOrderSelect = `
	SELECT o.id, o.user_id, o.total_price, o.status, o.created_at, o.updated_at,
		u.name AS owner_name, u.email AS owner_email
	FROM orders o
	LEFT JOIN users u ON u.id = o.user_id
`

func (r *sqliteRepository) RunInTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Msg("repository: panic recovered inside transaction, rolling back")
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error().Err(rbErr).Msg("repository: failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error().Err(rbErr).Msg("repository: failed to rollback transaction")
			}
		} else if commitErr := tx.Commit(); commitErr != nil {
			log.Error().Err(commitErr).Msg("repository: failed to commit transaction")
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	return fn(&sqliteTx{tx: tx})
}

func (r *sqliteRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	var row orderRow
	if err := r.db.GetContext(ctx, &row, sqliteOrderSelect+` WHERE o.id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}

	o := row.toOrder()
	if err := attachSQLiteItems(ctx, r.db, []*Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *sqliteRepository) ListOrders(ctx context.Context) ([]Order, error) {
	var rows []orderRow
	if err := r.db.SelectContext(ctx, &rows, sqliteOrderSelect+` ORDER BY o.created_at DESC, o.rowid DESC`); err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}

	orders := make([]*Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, row.toOrder())
	}

	if err := attachSQLiteItems(ctx, r.db, orders); err != nil {
		return nil, err
	}

	result := make([]Order, 0, len(orders))
	for _, o := range orders {
		result = append(result, *o)
	}
	return result, nil
}

func attachSQLiteItems(ctx context.Context, q sqliteQuerier, orders []*Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*Order, len(orders))
	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	query, args, err := sqlx.In(`
		SELECT i.id, i.order_id, i.product_id, i.quantity, i.price, i.created_at,
			p.name AS product_name, p.sku AS product_sku
		FROM order_items i
		LEFT JOIN products p ON p.id = i.product_id
		WHERE i.order_id IN (?)
		ORDER BY i.rowid
	`, ids)
	if err != nil {
		return fmt.Errorf("repository: failed to build order items query: %w", err)
	}

	var rows []itemRow
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return fmt.Errorf("repository: failed to query order items: %w", err)
	}

	for _, row := range rows {
		if o, ok := byID[row.OrderID]; ok {
			o.Items = append(o.Items, row.toItem())
		}
	}
	return nil
}

type sqliteTx struct {
	tx *sqlx.Tx
}

func (t *sqliteTx) LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]inventory.Product, error) {
	products := make(map[uuid.UUID]inventory.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	query, args, err := sqlx.In(`
		SELECT id, name, sku, category, quantity, price, description, created_at, updated_at
		FROM products
		WHERE id IN (?)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to build product lock query: %w", err)
	}

	var rows []inventory.ProductRow
	if err := t.tx.SelectContext(ctx, &rows, t.tx.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("repository: failed to lock products: %w", err)
	}

	for _, row := range rows {
		products[row.ID] = row.ToProduct()
	}
	return products, nil
}

func (t *sqliteTx) AdjustStock(ctx context.Context, productID uuid.UUID, delta int, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE products SET quantity = quantity + ?, updated_at = ? WHERE id = ? AND quantity + ? >= 0`,
		delta, at, productID, delta)
	if err != nil {
		if db.IsCheckViolation(err) {
			return ErrInsufficientStock
		}
		return fmt.Errorf("repository: failed to adjust stock of product %s: %w", productID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to read affected rows for product %s: %w", productID, err)
	}
	if affected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (t *sqliteTx) InsertOrder(ctx context.Context, o *Order) error {
	total, err := money.ToCents(o.TotalPrice)
	if err != nil {
		return fmt.Errorf("repository: invalid total for order %s: %w", o.ID, err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, total_price, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, o.ID, o.UserID, total, string(o.Status), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}
	return nil
}

func (t *sqliteTx) InsertOrderItem(ctx context.Context, item *OrderItem) error {
	price, err := money.ToCents(item.Price)
	if err != nil {
		return fmt.Errorf("repository: invalid price for order item of order %s: %w", item.OrderID, err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO order_items (id, order_id, product_id, quantity, price, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, item.ID, item.OrderID, item.ProductID, item.Quantity, price, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order item for order %s: %w", item.OrderID, err)
	}
	return nil
}

func (t *sqliteTx) LockOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	var row orderRow
	err := t.tx.GetContext(ctx, &row, `
		SELECT id, user_id, total_price, status, created_at, updated_at
		FROM orders
		WHERE id = ?
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to lock order %s: %w", id, err)
	}

	o := row.toOrder()
	if err := attachSQLiteItems(ctx, t.tx, []*Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (t *sqliteTx) SetOrderStatus(ctx context.Context, id uuid.UUID, status OrderStatus, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`, string(status), at, id)
	if err != nil {
		return fmt.Errorf("repository: failed to update order status %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to read affected rows for order %s: %w", id, err)
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *sqliteTx) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete order %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to read affected rows for order %s: %w", id, err)
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}
