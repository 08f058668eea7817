package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/inventory-service/internal/db"
	"github.com/vasiliy-maslov/inventory-service/internal/inventory"
)

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{db: pool}
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *postgresRepository) RunInTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Msg("repository: panic recovered inside transaction, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("repository: failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("repository: failed to rollback transaction")
			}
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			log.Error().Err(commitErr).Msg("repository: failed to commit transaction")
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	return fn(&postgresTx{tx: tx})
}

func (r *postgresRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	query := `
		SELECT o.id, o.user_id, o.total_price, o.status, o.created_at, o.updated_at, u.name, u.email
		FROM inventory.orders o
		LEFT JOIN inventory.users u ON u.id = o.user_id
		WHERE o.id = $1
	`
	o, err := scanOrderWithOwner(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}

	orders := []*Order{o}
	if err := attachItems(ctx, r.db, orders, true); err != nil {
		return nil, err
	}

	return o, nil
}

func (r *postgresRepository) ListOrders(ctx context.Context) ([]Order, error) {
	query := `
		SELECT o.id, o.user_id, o.total_price, o.status, o.created_at, o.updated_at, u.name, u.email
		FROM inventory.orders o
		LEFT JOIN inventory.users u ON u.id = o.user_id
		ORDER BY o.created_at DESC, o.id DESC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*Order, 0)
	for rows.Next() {
		o, err := scanOrderWithOwner(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating orders: %w", err)
	}

	if err := attachItems(ctx, r.db, orders, true); err != nil {
		return nil, err
	}

	result := make([]Order, 0, len(orders))
	for _, o := range orders {
		result = append(result, *o)
	}
	return result, nil
}

func scanOrderWithOwner(row pgx.Row) (*Order, error) {
	var (
		o                    Order
		ownerName, ownerMail *string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.TotalPrice, &o.Status, &o.CreatedAt, &o.UpdatedAt, &ownerName, &ownerMail)
	if err != nil {
		return nil, err
	}

	if o.UserID.Valid && ownerName != nil {
		o.Owner = &Owner{ID: o.UserID.UUID, Name: *ownerName}
		if ownerMail != nil {
			o.Owner.Email = *ownerMail
		}
	}
	o.Items = make([]OrderItem, 0)
	return &o, nil
}

// attachItems loads the items of orders in one query. With withProducts the
// current product name and sku are resolved as well.
func attachItems(ctx context.Context, q querier, orders []*Order, withProducts bool) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*Order, len(orders))
	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	query := `
		SELECT i.id, i.order_id, i.product_id, i.quantity, i.price, i.created_at, p.name, p.sku
		FROM inventory.order_items i
		LEFT JOIN inventory.products p ON p.id = i.product_id
		WHERE i.order_id = ANY($1)
		ORDER BY i.created_at, i.id
	`
	if !withProducts {
		query = `
			SELECT i.id, i.order_id, i.product_id, i.quantity, i.price, i.created_at, NULL::text, NULL::text
			FROM inventory.order_items i
			WHERE i.order_id = ANY($1)
			ORDER BY i.created_at, i.id
		`
	}

	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item      OrderItem
			name, sku *string
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price, &item.CreatedAt, &name, &sku); err != nil {
			return fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		if name != nil {
			item.Product = &ProductRef{Name: *name}
			if sku != nil {
				item.Product.SKU = *sku
			}
		}
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("repository: failed iterating order items: %w", err)
	}
	return nil
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) LockProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]inventory.Product, error) {
	// Locks are taken in id order so concurrent orders over the same products cannot deadlock.
	query := `
		SELECT id, name, sku, quantity, price
		FROM inventory.products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`
	rows, err := t.tx.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to lock products: %w", err)
	}
	defer rows.Close()

	products := make(map[uuid.UUID]inventory.Product, len(ids))
	for rows.Next() {
		var p inventory.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.Quantity, &p.Price); err != nil {
			return nil, fmt.Errorf("repository: failed to scan locked product: %w", err)
		}
		products[p.ID] = p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating locked products: %w", err)
	}
	return products, nil
}

func (t *postgresTx) AdjustStock(ctx context.Context, productID uuid.UUID, delta int, at time.Time) error {
	query := `
		UPDATE inventory.products
		SET quantity = quantity + $2, updated_at = $3
		WHERE id = $1 AND quantity + $2 >= 0
	`
	cmdTag, err := t.tx.Exec(ctx, query, productID, delta, at)
	if err != nil {
		if db.IsCheckViolation(err) {
			return ErrInsufficientStock
		}
		return fmt.Errorf("repository: failed to adjust stock of product %s: %w", productID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (t *postgresTx) InsertOrder(ctx context.Context, o *Order) error {
	query := `
		INSERT INTO inventory.orders (id, user_id, total_price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := t.tx.Exec(ctx, query, o.ID, o.UserID, o.TotalPrice, string(o.Status), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}
	return nil
}

func (t *postgresTx) InsertOrderItem(ctx context.Context, item *OrderItem) error {
	query := `
		INSERT INTO inventory.order_items (id, order_id, product_id, quantity, price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := t.tx.Exec(ctx, query, item.ID, item.OrderID, item.ProductID, item.Quantity, item.Price, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order item for order %s: %w", item.OrderID, err)
	}
	return nil
}

func (t *postgresTx) LockOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	query := `
		SELECT id, user_id, total_price, status, created_at, updated_at
		FROM inventory.orders
		WHERE id = $1
		FOR UPDATE
	`
	var o Order
	err := t.tx.QueryRow(ctx, query, id).Scan(&o.ID, &o.UserID, &o.TotalPrice, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to lock order %s: %w", id, err)
	}
	o.Items = make([]OrderItem, 0)

	if err := attachItems(ctx, t.tx, []*Order{&o}, false); err != nil {
		return nil, err
	}
	return &o, nil
}

func (t *postgresTx) SetOrderStatus(ctx context.Context, id uuid.UUID, status OrderStatus, at time.Time) error {
	cmdTag, err := t.tx.Exec(ctx, `UPDATE inventory.orders SET status = $1, updated_at = $2 WHERE id = $3`, string(status), at, id)
	if err != nil {
		return fmt.Errorf("repository: failed to update order status %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *postgresTx) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := t.tx.Exec(ctx, `DELETE FROM inventory.orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete order %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}
