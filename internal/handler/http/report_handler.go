package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/inventory-service/internal/money"
	"github.com/vasiliy-maslov/inventory-service/internal/report"
)

const recentOrderTimeLayout = "2006-01-02 15:04"

type DailySalesResponse struct {
	Date       string `json:"date"`
	OrderCount int    `json:"order_count"`
	Total      string `json:"total"`
}

type MonthlyRevenueResponse struct {
	Month      string `json:"month"`
	OrderCount int    `json:"order_count"`
	Total      string `json:"total"`
}

type TopProductResponse struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name"`
	SKU          string    `json:"sku"`
	QuantitySold int       `json:"quantity_sold"`
	Revenue      string    `json:"revenue"`
}

type RecentOrderResponse struct {
	ID         uuid.UUID `json:"id"`
	Customer   string    `json:"customer"`
	Email      string    `json:"email"`
	ItemsCount int       `json:"items_count"`
	Total      string    `json:"total"`
	Status     string    `json:"status"`
	Date       string    `json:"date"`
}

type ReportResponse struct {
	DailySales           []DailySalesResponse     `json:"daily_sales"`
	MonthlyRevenue       []MonthlyRevenueResponse `json:"monthly_revenue"`
	TotalRevenue         string                   `json:"total_revenue"`
	TotalOrders          int                      `json:"total_orders"`
	TotalProducts        int                      `json:"total_products"`
	LowStockCount        int                      `json:"low_stock_products"`
	TopProducts          []TopProductResponse     `json:"top_products"`
	RecentOrders         []RecentOrderResponse    `json:"recent_orders"`
	OrdersByStatus       map[string]int           `json:"orders_by_status"`
	CurrentMonthRevenue  string                   `json:"current_month_revenue"`
	PreviousMonthRevenue string                   `json:"last_month_revenue"`
	RevenueGrowth        json.Number              `json:"revenue_growth"`
}

func newReportResponse(s *report.Summary) ReportResponse {
	resp := ReportResponse{
		DailySales:           make([]DailySalesResponse, 0, len(s.DailySales)),
		MonthlyRevenue:       make([]MonthlyRevenueResponse, 0, len(s.MonthlyRevenue)),
		TotalRevenue:         money.Format(s.TotalRevenue),
		TotalOrders:          s.TotalOrders,
		TotalProducts:        s.TotalProducts,
		LowStockCount:        s.LowStockCount,
		TopProducts:          make([]TopProductResponse, 0, len(s.TopProducts)),
		RecentOrders:         make([]RecentOrderResponse, 0, len(s.RecentOrders)),
		OrdersByStatus:       make(map[string]int, len(s.OrdersByStatus)),
		CurrentMonthRevenue:  money.Format(s.CurrentMonthRevenue),
		PreviousMonthRevenue: money.Format(s.PreviousMonthRevenue),
		RevenueGrowth:        json.Number(s.RevenueGrowth.StringFixed(2)),
	}

	for _, d := range s.DailySales {
		resp.DailySales = append(resp.DailySales, DailySalesResponse{Date: d.Date, OrderCount: d.OrderCount, Total: money.Format(d.Total)})
	}
	for _, m := range s.MonthlyRevenue {
		resp.MonthlyRevenue = append(resp.MonthlyRevenue, MonthlyRevenueResponse{Month: m.Month, OrderCount: m.OrderCount, Total: money.Format(m.Total)})
	}
	for _, tp := range s.TopProducts {
		line := TopProductResponse{
			ProductID:    tp.ProductID,
			ProductName:  tp.Name,
			SKU:          tp.SKU,
			QuantitySold: tp.QuantitySold,
			Revenue:      money.Format(tp.Revenue),
		}
		if line.ProductName == "" {
			line.ProductName = unknownProduct
			line.SKU = notAvailable
		}
		resp.TopProducts = append(resp.TopProducts, line)
	}
	for _, ro := range s.RecentOrders {
		line := RecentOrderResponse{
			ID:         ro.ID,
			Customer:   ro.Customer,
			Email:      ro.Email,
			ItemsCount: ro.ItemsCount,
			Total:      money.Format(ro.Total),
			Status:     ro.Status,
			Date:       ro.CreatedAt.UTC().Format(recentOrderTimeLayout),
		}
		if line.Customer == "" {
			line.Customer = guestName
			line.Email = notAvailable
		}
		resp.RecentOrders = append(resp.RecentOrders, line)
	}
	for _, sc := range s.OrdersByStatus {
		resp.OrdersByStatus[sc.Status] = sc.Count
	}

	return resp
}

type ReportHandler struct {
	service report.Service
	now     func() time.Time
}

func NewReportHandler(service report.Service) *ReportHandler {
	return &ReportHandler{service: service, now: time.Now}
}

func (h *ReportHandler) RegisterRoutes(router chi.Router) {
	router.Get("/reports", h.handleSummary)
}

func (h *ReportHandler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context(), h.now())
	if err != nil {
		log.Error().Err(err).Msg("Failed to build report via service")
		respondWithError(w, http.StatusInternalServerError, "Failed to build report")
		return
	}

	respondWithJSON(w, http.StatusOK, newReportResponse(summary))
}
