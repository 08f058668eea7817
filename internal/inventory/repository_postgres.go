package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vasiliy-maslov/inventory-service/internal/db"
)

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{db: pool}
}

const productColumns = `id, name, sku, category, quantity, price, description, created_at, updated_at`

func (r *postgresRepository) Create(ctx context.Context, product *Product) error {
	now := time.Now().UTC()

	query := `
		INSERT INTO inventory.products (id, name, sku, category, quantity, price, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		product.ID,
		product.Name,
		product.SKU,
		product.Category,
		product.Quantity,
		product.Price,
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

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	query := `SELECT ` + productColumns + ` FROM inventory.products WHERE id = $1`

	product, err := scanProduct(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select product by id %s: %w", id, err)
	}

	return product, nil
}

func (r *postgresRepository) List(ctx context.Context) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM inventory.products ORDER BY name, id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		products = append(products, *product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating products: %w", err)
	}

	return products, nil
}

func (r *postgresRepository) Update(ctx context.Context, product *Product) error {
	now := time.Now().UTC()

	query := `
		UPDATE inventory.products
		SET name = $1, sku = $2, category = $3, quantity = $4, price = $5, description = $6, updated_at = $7
		WHERE id = $8
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		product.Name,
		product.SKU,
		product.Category,
		product.Quantity,
		product.Price,
		product.Description,
		now,
		product.ID,
	).Scan(&product.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if db.IsUniqueViolation(err) {
			return ErrSKUExists
		}
		return fmt.Errorf("repository: failed to update product %s: %w", product.ID, err)
	}

	product.UpdatedAt = now
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM inventory.products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete product %s: %w", id, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.SKU,
		&p.Category,
		&p.Quantity,
		&p.Price,
		&p.Description,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
