package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vasiliy-maslov/inventory-service/internal/db"
	"github.com/vasiliy-maslov/inventory-service/internal/money"
)

// ProductRow is the SQLite representation of a product; price is in cents.
type ProductRow struct {
	ID          uuid.UUID `db:"id"`
	Name        string    `db:"name"`
	SKU         string    `db:"sku"`
	Category    string    `db:"category"`
	Quantity    int       `db:"quantity"`
	PriceCents  int64     `db:"price"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r ProductRow) ToProduct() Product {
	return Product{
		ID:          r.ID,
		Name:        r.Name,
		SKU:         r.SKU,
		Category:    r.Category,
		Quantity:    r.Quantity,
		Price:       money.FromCents(r.PriceCents),
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type sqliteRepository struct {
	db *sqlx.DB
}

func NewSQLiteRepository(db *sqlx.DB) Repository {
	return &sqliteRepository{db: db}
}

func (r *sqliteRepository) Create(ctx context.Context, product *Product) error {
	price, err := money.ToCents(product.Price)
	if err != nil {
		return fmt.Errorf("repository: invalid price for product %s: %w", product.SKU, err)
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO products (id, name, sku, category, quantity, price, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		product.ID,
		product.Name,
		product.SKU,
		product.Category,
		product.Quantity,
		price,
		product.Description,
		now,
		now,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrSKUExists
		}
		return fmt.Errorf("repository: failed to insert product: %w", err)
	}

	product.CreatedAt = now
	product.UpdatedAt = now
	return nil
}

func (r *sqliteRepository) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	var row ProductRow
	err := r.db.GetContext(ctx, &row, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select product by id %s: %w", id, err)
	}

	product := row.ToProduct()
	return &product, nil
}

func (r *sqliteRepository) List(ctx context.Context) ([]Product, error) {
	var rows []ProductRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+productColumns+` FROM products ORDER BY name, id`); err != nil {
		return nil, fmt.Errorf("repository: failed to query products: %w", err)
	}

	products := make([]Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, row.ToProduct())
	}
	return products, nil
}

func (r *sqliteRepository) Update(ctx context.Context, product *Product) error {
	price, err := money.ToCents(product.Price)
	if err != nil {
		return fmt.Errorf("repository: invalid price for product %s: %w", product.ID, err)
	}
	now := time.Now().UTC()

	query := `
		UPDATE products
		SET name = ?, sku = ?, category = ?, quantity = ?, price = ?, description = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, query,
		product.Name,
		product.SKU,
		product.Category,
		product.Quantity,
		price,
		product.Description,
		now,
		product.ID,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrSKUExists
		}
		return fmt.Errorf("repository: failed to update product %s: %w", product.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to read affected rows for product %s: %w", product.ID, err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if err := r.db.GetContext(ctx, &product.CreatedAt, `SELECT created_at FROM products WHERE id = ?`, product.ID); err != nil {
		return fmt.Errorf("repository: failed to reload product %s: %w", product.ID, err)
	}
	product.UpdatedAt = now
	return nil
}

func (r *sqliteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete product %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to read affected rows for product %s: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
