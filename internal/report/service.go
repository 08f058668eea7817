package report

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	dailyWindowDays    = 30
	monthlyWindowMonth = 12
	topProductsLimit   = 5
	recentOrdersLimit  = 10
)

var hundred = decimal.NewFromInt(100)

type Service interface {
	// Summary aggregates sales, stock and order statistics as of now.
	Summary(ctx context.Context, now time.Time) (*Summary, error)
}

type service struct {
	repo              Repository
	lowStockThreshold int
}

func NewService(repo Repository, lowStockThreshold int) Service {
	return &service{repo: repo, lowStockThreshold: lowStockThreshold}
}

func (s *service) Summary(ctx context.Context, now time.Time) (*Summary, error) {
	now = now.UTC()
	currentMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	previousMonth := currentMonth.AddDate(0, -1, 0)
	nextMonth := currentMonth.AddDate(0, 1, 0)

	var sum Summary
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		sum.DailySales, err = s.repo.DailySales(gctx, now.AddDate(0, 0, -dailyWindowDays))
		return err
	})
	g.Go(func() (err error) {
		sum.MonthlyRevenue, err = s.repo.MonthlyRevenue(gctx, now.AddDate(0, -monthlyWindowMonth, 0))
		return err
	})
	g.Go(func() (err error) {
		sum.TotalRevenue, sum.TotalOrders, err = s.repo.OrderTotals(gctx)
		return err
	})
	g.Go(func() (err error) {
		sum.TotalProducts, sum.LowStockCount, err = s.repo.ProductCounts(gctx, s.lowStockThreshold)
		return err
	})
	g.Go(func() (err error) {
		sum.TopProducts, err = s.repo.TopProducts(gctx, topProductsLimit)
		return err
	})
	g.Go(func() (err error) {
		sum.RecentOrders, err = s.repo.RecentOrders(gctx, recentOrdersLimit)
		return err
	})
	g.Go(func() (err error) {
		sum.OrdersByStatus, err = s.repo.OrdersByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		sum.CurrentMonthRevenue, err = s.repo.RevenueBetween(gctx, currentMonth, nextMonth)
		return err
	})
	g.Go(func() (err error) {
		sum.PreviousMonthRevenue, err = s.repo.RevenueBetween(gctx, previousMonth, currentMonth)
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("service: failed to build report summary")
		return nil, err
	}

	sum.RevenueGrowth = Growth(sum.CurrentMonthRevenue, sum.PreviousMonthRevenue)
	return &sum, nil
}

// Growth returns the percentage change from previous to current rounded to
// two places, or zero when there is no previous revenue.
func Growth(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous).Mul(hundred).Round(2)
}
