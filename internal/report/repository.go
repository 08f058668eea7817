package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Repository runs the read-only aggregate queries behind a Summary.
type Repository interface {
	DailySales(ctx context.Context, since time.Time) ([]DailySales, error)
	MonthlyRevenue(ctx context.Context, since time.Time) ([]MonthlyRevenue, error)
	OrderTotals(ctx context.Context) (revenue decimal.Decimal, count int, err error)
	ProductCounts(ctx context.Context, lowStockBelow int) (total, lowStock int, err error)
	TopProducts(ctx context.Context, limit int) ([]TopProduct, error)
	RecentOrders(ctx context.Context, limit int) ([]RecentOrder, error)
	// RevenueBetween sums order totals created in [from, to).
	RevenueBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
	OrdersByStatus(ctx context.Context) ([]StatusCount, error)
}
