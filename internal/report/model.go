package report

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type DailySales struct {
	Date       string          `json:"date" db:"date"`
	OrderCount int             `json:"order_count" db:"order_count"`
	Total      decimal.Decimal `json:"total" db:"-"`
}

type MonthlyRevenue struct {
	Month      string          `json:"month" db:"month"`
	OrderCount int             `json:"order_count" db:"order_count"`
	Total      decimal.Decimal `json:"total" db:"-"`
}

// TopProduct aggregates order items by product. Name and SKU are empty when
// the product has since been deleted.
type TopProduct struct {
	ProductID    uuid.UUID       `json:"product_id"`
	Name         string          `json:"product_name"`
	SKU          string          `json:"sku"`
	QuantitySold int             `json:"quantity_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
}

// RecentOrder is a condensed order line. Customer and Email are empty for
// orders whose user no longer exists.
type RecentOrder struct {
	ID         uuid.UUID       `json:"id"`
	Customer   string          `json:"customer"`
	Email      string          `json:"email"`
	ItemsCount int             `json:"items_count"`
	Total      decimal.Decimal `json:"total"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

type StatusCount struct {
	Status string `json:"status" db:"status"`
	Count  int    `json:"count" db:"count"`
}

type Summary struct {
	DailySales           []DailySales     `json:"daily_sales"`
	MonthlyRevenue       []MonthlyRevenue `json:"monthly_revenue"`
	TotalRevenue         decimal.Decimal  `json:"total_revenue"`
	TotalOrders          int              `json:"total_orders"`
	TotalProducts        int              `json:"total_products"`
	LowStockCount        int              `json:"low_stock_count"`
	TopProducts          []TopProduct     `json:"top_products"`
	RecentOrders         []RecentOrder    `json:"recent_orders"`
	OrdersByStatus       []StatusCount    `json:"orders_by_status"`
	CurrentMonthRevenue  decimal.Decimal  `json:"current_month_revenue"`
	PreviousMonthRevenue decimal.Decimal  `json:"previous_month_revenue"`
	RevenueGrowth        decimal.Decimal  `json:"revenue_growth"`
}
