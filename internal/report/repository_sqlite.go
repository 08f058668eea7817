package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/inventory-service/internal/money"
)

type sqliteRepository struct {
	db *sqlx.DB
}

func NewSQLiteRepository(db *sqlx.DB) Repository {
	return &sqliteRepository{db: db}
}

type periodRow struct {
	Period     string `db:"period"`
	OrderCount int    `db:"order_count"`
	TotalCents int64  `db:"total"`
}

func (r *sqliteRepository) periods(ctx context.Context, format string, since time.Time) ([]periodRow, error) {
	query := `
		SELECT strftime(?, created_at) AS period, COUNT(*) AS order_count, COALESCE(SUM(total_price), 0) AS total
		FROM orders
		WHERE created_at >= ?
		GROUP BY period
		ORDER BY period
	`
	var rows []periodRow
	if err := r.db.SelectContext(ctx, &rows, query, format, since.UTC()); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *sqliteRepository) DailySales(ctx context.Context, since time.Time) ([]DailySales, error) {
	rows, err := r.periods(ctx, "%Y-%m-%d", since)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query daily sales: %w", err)
	}

	result := make([]DailySales, 0, len(rows))
	for _, row := range rows {
		result = append(result, DailySales{Date: row.Period, OrderCount: row.OrderCount, Total: money.FromCents(row.TotalCents)})
	}
	return result, nil
}

func (r *sqliteRepository) MonthlyRevenue(ctx context.Context, since time.Time) ([]MonthlyRevenue, error) {
	rows, err := r.periods(ctx, "%Y-%m", since)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query monthly revenue: %w", err)
	}

	result := make([]MonthlyRevenue, 0, len(rows))
	for _, row := range rows {
		result = append(result, MonthlyRevenue{Month: row.Period, OrderCount: row.OrderCount, Total: money.FromCents(row.TotalCents)})
	}
	return result, nil
}

func (r *sqliteRepository) OrderTotals(ctx context.Context) (decimal.Decimal, int, error) {
	var (
		cents int64
		count int
	)
	err := r.db.QueryRowxContext(ctx, `SELECT COALESCE(SUM(total_price), 0), COUNT(*) FROM orders`).Scan(&cents, &count)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("repository: failed to query order totals: %w", err)
	}
	return money.FromCents(cents), count, nil
}

func (r *sqliteRepository) ProductCounts(ctx context.Context, lowStockBelow int) (int, int, error) {
	var total, low int
	err := r.db.QueryRowxContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN quantity < ? THEN 1 ELSE 0 END), 0) FROM products`, lowStockBelow).
		Scan(&total, &low)
	if err != nil {
		return 0, 0, fmt.Errorf("repository: failed to query product counts: %w", err)
	}
	return total, low, nil
}

func (r *sqliteRepository) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	query := `
		SELECT i.product_id AS product_id, COALESCE(p.name, '') AS name, COALESCE(p.sku, '') AS sku,
			SUM(i.quantity) AS sold, SUM(i.quantity * i.price) AS revenue
		FROM order_items i
		LEFT JOIN products p ON p.id = i.product_id
		GROUP BY i.product_id
		ORDER BY sold DESC, i.product_id
		LIMIT ?
	`
	var rows []struct {
		ProductID    uuid.UUID `db:"product_id"`
		Name         string    `db:"name"`
		SKU          string    `db:"sku"`
		Sold         int       `db:"sold"`
		RevenueCents int64     `db:"revenue"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("repository: failed to query top products: %w", err)
	}

	result := make([]TopProduct, 0, len(rows))
	for _, row := range rows {
		result = append(result, TopProduct{
			ProductID:    row.ProductID,
			Name:         row.Name,
			SKU:          row.SKU,
			QuantitySold: row.Sold,
			Revenue:      money.FromCents(row.RevenueCents),
		})
	}
	return result, nil
}

func (r *sqliteRepository) RecentOrders(ctx context.Context, limit int) ([]RecentOrder, error) {
	query := `
		SELECT o.id AS id, u.name AS customer, u.email AS email,
			(SELECT COUNT(*) FROM order_items i WHERE i.order_id = o.id) AS items_count,
			o.total_price AS total, o.status AS status, o.created_at AS created_at
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC, o.rowid DESC
		LIMIT ?
	`
	var rows []struct {
		ID         uuid.UUID      `db:"id"`
		Customer   sql.NullString `db:"customer"`
		Email      sql.NullString `db:"email"`
		ItemsCount int            `db:"items_count"`
		TotalCents int64          `db:"total"`
		Status     string         `db:"status"`
		CreatedAt  time.Time      `db:"created_at"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("repository: failed to query recent orders: %w", err)
	}

	result := make([]RecentOrder, 0, len(rows))
	for _, row := range rows {
		result = append(result, RecentOrder{
			ID:         row.ID,
			Customer:   row.Customer.String,
			Email:      row.Email.String,
			ItemsCount: row.ItemsCount,
			Total:      money.FromCents(row.TotalCents),
			Status:     row.Status,
			CreatedAt:  row.CreatedAt,
		})
	}
	return result, nil
}

func (r *sqliteRepository) RevenueBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	var cents int64
	err := r.db.GetContext(ctx, &cents,
		`SELECT COALESCE(SUM(total_price), 0) FROM orders WHERE created_at >= ? AND created_at < ?`, from.UTC(), to.UTC())
	if err != nil {
		return decimal.Zero, fmt.Errorf("repository: failed to query revenue between %s and %s: %w", from, to, err)
	}
	return money.FromCents(cents), nil
}

func (r *sqliteRepository) OrdersByStatus(ctx context.Context) ([]StatusCount, error) {
	result := make([]StatusCount, 0)
	if err := r.db.SelectContext(ctx, &result, `SELECT status, COUNT(*) AS count FROM orders GROUP BY status ORDER BY status`); err != nil {
		return nil, fmt.Errorf("repository: failed to query orders by status: %w", err)
	}
	return result, nil
}
