package report

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{db: pool}
}

func (r *postgresRepository) DailySales(ctx context.Context, since time.Time) ([]DailySales, error) {
	query := `
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(*), COALESCE(SUM(total_price), 0)
		FROM inventory.orders
		WHERE created_at >= $1
		GROUP BY day
		ORDER BY day
	`
	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query daily sales: %w", err)
	}
	defer rows.Close()

	result := make([]DailySales, 0)
	for rows.Next() {
		var d DailySales
		if err := rows.Scan(&d.Date, &d.OrderCount, &d.Total); err != nil {
			return nil, fmt.Errorf("repository: failed to scan daily sales: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating daily sales: %w", err)
	}
	return result, nil
}

func (r *postgresRepository) MonthlyRevenue(ctx context.Context, since time.Time) ([]MonthlyRevenue, error) {
	query := `
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM') AS month, COUNT(*), COALESCE(SUM(total_price), 0)
		FROM inventory.orders
		WHERE created_at >= $1
		GROUP BY month
		ORDER BY month
	`
	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query monthly revenue: %w", err)
	}
	defer rows.Close()

	result := make([]MonthlyRevenue, 0)
	for rows.Next() {
		var m MonthlyRevenue
		if err := rows.Scan(&m.Month, &m.OrderCount, &m.Total); err != nil {
			return nil, fmt.Errorf("repository: failed to scan monthly revenue: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating monthly revenue: %w", err)
	}
	return result, nil
}

func (r *postgresRepository) OrderTotals(ctx context.Context) (decimal.Decimal, int, error) {
	var (
		revenue decimal.Decimal
		count   int
	)
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(total_price), 0), COUNT(*) FROM inventory.orders`).Scan(&revenue, &count)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("repository: failed to query order totals: %w", err)
	}
	return revenue, count, nil
}

func (r *postgresRepository) ProductCounts(ctx context.Context, lowStockBelow int) (int, int, error) {
	var total, low int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE quantity < $1) FROM inventory.products`, lowStockBelow).
		Scan(&total, &low)
	if err != nil {
		return 0, 0, fmt.Errorf("repository: failed to query product counts: %w", err)
	}
	return total, low, nil
}

func (r *postgresRepository) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	query := `
		SELECT i.product_id, COALESCE(p.name, ''), COALESCE(p.sku, ''), SUM(i.quantity) AS sold, SUM(i.quantity * i.price)
		FROM inventory.order_items i
		LEFT JOIN inventory.products p ON p.id = i.product_id
		GROUP BY i.product_id, p.name, p.sku
		ORDER BY sold DESC, i.product_id
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query top products: %w", err)
	}
	defer rows.Close()

	result := make([]TopProduct, 0, limit)
	for rows.Next() {
		var tp TopProduct
		if err := rows.Scan(&tp.ProductID, &tp.Name, &tp.SKU, &tp.QuantitySold, &tp.Revenue); err != nil {
			return nil, fmt.Errorf("repository: failed to scan top product: %w", err)
		}
		result = append(result, tp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating top products: %w", err)
	}
	return result, nil
}

func (r *postgresRepository) RecentOrders(ctx context.Context, limit int) ([]RecentOrder, error) {
	query := `
		SELECT o.id, COALESCE(u.name, ''), COALESCE(u.email, ''),
			(SELECT COUNT(*) FROM inventory.order_items i WHERE i.order_id = o.id),
			o.total_price, o.status, o.created_at
		FROM inventory.orders o
		LEFT JOIN inventory.users u ON u.id = o.user_id
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query recent orders: %w", err)
	}
	defer rows.Close()

	result := make([]RecentOrder, 0, limit)
	for rows.Next() {
		var ro RecentOrder
		if err := rows.Scan(&ro.ID, &ro.Customer, &ro.Email, &ro.ItemsCount, &ro.Total, &ro.Status, &ro.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan recent order: %w", err)
		}
		result = append(result, ro)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating recent orders: %w", err)
	}
	return result, nil
}

func (r *postgresRepository) RevenueBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	var revenue decimal.Decimal
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_price), 0) FROM inventory.orders WHERE created_at >= $1 AND created_at < $2`, from, to).
		Scan(&revenue)
	if err != nil {
		return decimal.Zero, fmt.Errorf("repository: failed to query revenue between %s and %s: %w", from, to, err)
	}
	return revenue, nil
}

func (r *postgresRepository) OrdersByStatus(ctx context.Context) ([]StatusCount, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM inventory.orders GROUP BY status ORDER BY status`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders by status: %w", err)
	}
	defer rows.Close()

	result := make([]StatusCount, 0)
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, fmt.Errorf("repository: failed to scan status count: %w", err)
		}
		result = append(result, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating status counts: %w", err)
	}
	return result, nil
}
