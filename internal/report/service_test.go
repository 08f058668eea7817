package report_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/google/go-cmp/cmp"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/inventory-service/internal/db/dbtest"
	"github.com/vasiliy-maslov/inventory-service/internal/inventory"
	"github.com/vasiliy-maslov/inventory-service/internal/report"
	"github.com/vasiliy-maslov/inventory-service/internal/user"
)

var decimalComparer = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

type seedItem struct {
	productID uuid.UUID
	quantity  int
	cents     int64
}

func insertOrder(t *testing.T, db *sqlx.DB, userID uuid.NullUUID, status string, createdAt time.Time, items ...seedItem) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	var total int64
	for _, it := range items {
		total += it.cents * int64(it.quantity)
	}

	id := uuid.Must(uuid.NewV4())
	_, err := db.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, total_price, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, userID, total, status, createdAt, createdAt)
	require.NoError(t, err)

	for _, it := range items {
		_, err := db.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, product_id, quantity, price, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.Must(uuid.NewV4()), id, it.productID, it.quantity, it.cents, createdAt)
		require.NoError(t, err)
	}
	return id
}

func TestService_Summary(t *testing.T) {
	ctx := context.Background()
	sqliteDB := dbtest.SQLite(t)

	alice := &user.User{ID: uuid.Must(uuid.NewV4()), Name: "Alice", Email: "alice@example.com", PasswordHash: "hash", Role: user.RoleStaff}
	require.NoError(t, user.NewSQLiteRepository(sqliteDB).Create(ctx, alice))
	owner := uuid.NullUUID{UUID: alice.ID, Valid: true}

	products := inventory.NewSQLiteRepository(sqliteDB)
	lamp := &inventory.Product{ID: uuid.Must(uuid.NewV4()), Name: "Lamp", SKU: "LMP-1", Quantity: 5, Price: decimal.RequireFromString("10.00")}
	bulb := &inventory.Product{ID: uuid.Must(uuid.NewV4()), Name: "Bulb", SKU: "BLB-1", Quantity: 50, Price: decimal.RequireFromString("2.50")}
	require.NoError(t, products.Create(ctx, lamp))
	require.NoError(t, products.Create(ctx, bulb))
	removed := uuid.Must(uuid.NewV4())

	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	latest := insertOrder(t, sqliteDB, owner, "pending", time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC),
		seedItem{lamp.ID, 2, 1000}, seedItem{bulb.ID, 2, 250})
	guest := insertOrder(t, sqliteDB, uuid.NullUUID{}, "completed", time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
		seedItem{bulb.ID, 3, 250})
	insertOrder(t, sqliteDB, owner, "cancelled", time.Date(2026, time.February, 20, 8, 30, 0, 0, time.UTC),
		seedItem{removed, 4, 1000})
	insertOrder(t, sqliteDB, owner, "completed", time.Date(2025, time.January, 5, 8, 0, 0, 0, time.UTC),
		seedItem{lamp.ID, 10, 1000})

	svc := report.NewService(report.NewSQLiteRepository(sqliteDB), 10)
	sum, err := svc.Summary(ctx, now)
	require.NoError(t, err)

	assert.Equal(t, "172.50", sum.TotalRevenue.StringFixed(2))
	assert.Equal(t, 4, sum.TotalOrders)
	assert.Equal(t, 2, sum.TotalProducts)
	assert.Equal(t, 1, sum.LowStockCount)

	wantDaily := []report.DailySales{
		{Date: "2026-02-20", OrderCount: 1, Total: decimal.RequireFromString("40")},
		{Date: "2026-03-10", OrderCount: 1, Total: decimal.RequireFromString("7.50")},
		{Date: "2026-03-14", OrderCount: 1, Total: decimal.RequireFromString("25")},
	}
	require.Empty(t, cmp.Diff(wantDaily, sum.DailySales, decimalComparer))

	wantMonthly := []report.MonthlyRevenue{
		{Month: "2026-02", OrderCount: 1, Total: decimal.RequireFromString("40")},
		{Month: "2026-03", OrderCount: 2, Total: decimal.RequireFromString("32.50")},
	}
	require.Empty(t, cmp.Diff(wantMonthly, sum.MonthlyRevenue, decimalComparer))

	wantTop := []report.TopProduct{
		{ProductID: lamp.ID, Name: "Lamp", SKU: "LMP-1", QuantitySold: 12, Revenue: decimal.RequireFromString("120")},
		{ProductID: bulb.ID, Name: "Bulb", SKU: "BLB-1", QuantitySold: 5, Revenue: decimal.RequireFromString("12.50")},
		{ProductID: removed, QuantitySold: 4, Revenue: decimal.RequireFromString("40")},
	}
	require.Empty(t, cmp.Diff(wantTop, sum.TopProducts, decimalComparer))

	require.Len(t, sum.RecentOrders, 4)
	assert.Equal(t, latest, sum.RecentOrders[0].ID)
	assert.Equal(t, "Alice", sum.RecentOrders[0].Customer)
	assert.Equal(t, 2, sum.RecentOrders[0].ItemsCount)
	assert.Equal(t, "25.00", sum.RecentOrders[0].Total.StringFixed(2))
	assert.Equal(t, guest, sum.RecentOrders[1].ID)
	assert.Empty(t, sum.RecentOrders[1].Customer)
	assert.Empty(t, sum.RecentOrders[1].Email)

	wantStatus := []report.StatusCount{
		{Status: "cancelled", Count: 1},
		{Status: "completed", Count: 2},
		{Status: "pending", Count: 1},
	}
	require.Empty(t, cmp.Diff(wantStatus, sum.OrdersByStatus))

	assert.Equal(t, "32.50", sum.CurrentMonthRevenue.StringFixed(2))
	assert.Equal(t, "40.00", sum.PreviousMonthRevenue.StringFixed(2))
	assert.Equal(t, "-18.75", sum.RevenueGrowth.StringFixed(2))
}

func TestService_SummaryEmptyStore(t *testing.T) {
	svc := report.NewService(report.NewSQLiteRepository(dbtest.SQLite(t)), 10)

	sum, err := svc.Summary(context.Background(), time.Now())
	require.NoError(t, err)

	assert.True(t, sum.TotalRevenue.IsZero())
	assert.Zero(t, sum.TotalOrders)
	assert.Empty(t, sum.DailySales)
	assert.Empty(t, sum.TopProducts)
	assert.Empty(t, sum.RecentOrders)
	assert.True(t, sum.RevenueGrowth.IsZero())
}

func TestGrowth(t *testing.T) {
	testCases := []struct {
		name     string
		current  string
		previous string
		want     string
	}{
		{name: "increase", current: "150", previous: "100", want: "50.00"},
		{name: "decrease", current: "1", previous: "3", want: "-66.67"},
		{name: "no previous revenue", current: "100", previous: "0", want: "0.00"},
		{name: "nothing at all", current: "0", previous: "0", want: "0.00"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := report.Growth(decimal.RequireFromString(tc.current), decimal.RequireFromString(tc.previous))
			assert.Equal(t, tc.want, got.StringFixed(2))
		})
	}
}

type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) DailySales(ctx context.Context, since time.Time) ([]report.DailySales, error) {
	args := m.Called(ctx, since)
	return args.Get(0).([]report.DailySales), args.Error(1)
}

func (m *MockReportRepository) MonthlyRevenue(ctx context.Context, since time.Time) ([]report.MonthlyRevenue, error) {
	args := m.Called(ctx, since)
	return args.Get(0).([]report.MonthlyRevenue), args.Error(1)
}

func (m *MockReportRepository) OrderTotals(ctx context.Context) (decimal.Decimal, int, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Int(1), args.Error(2)
}

func (m *MockReportRepository) ProductCounts(ctx context.Context, lowStockBelow int) (int, int, error) {
	args := m.Called(ctx, lowStockBelow)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *MockReportRepository) TopProducts(ctx context.Context, limit int) ([]report.TopProduct, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]report.TopProduct), args.Error(1)
}

func (m *MockReportRepository) RecentOrders(ctx context.Context, limit int) ([]report.RecentOrder, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]report.RecentOrder), args.Error(1)
}

func (m *MockReportRepository) RevenueBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockReportRepository) OrdersByStatus(ctx context.Context) ([]report.StatusCount, error) {
	args := m.Called(ctx)
	return args.Get(0).([]report.StatusCount), args.Error(1)
}

func TestService_SummaryRepositoryFailure(t *testing.T) {
	repo := new(MockReportRepository)
	dbErr := errors.New("database is locked")

	repo.On("OrderTotals", mock.Anything).Return(decimal.Zero, 0, dbErr).Once()
	repo.On("DailySales", mock.Anything, mock.Anything).Return([]report.DailySales{}, nil).Maybe()
	repo.On("MonthlyRevenue", mock.Anything, mock.Anything).Return([]report.MonthlyRevenue{}, nil).Maybe()
	repo.On("ProductCounts", mock.Anything, 7).Return(0, 0, nil).Maybe()
	repo.On("TopProducts", mock.Anything, 5).Return([]report.TopProduct{}, nil).Maybe()
	repo.On("RecentOrders", mock.Anything, 10).Return([]report.RecentOrder{}, nil).Maybe()
	repo.On("RevenueBetween", mock.Anything, mock.Anything, mock.Anything).Return(decimal.Zero, nil).Maybe()
	repo.On("OrdersByStatus", mock.Anything).Return([]report.StatusCount{}, nil).Maybe()

	sum, err := report.NewService(repo, 7).Summary(context.Background(), time.Now())
	require.ErrorIs(t, err, dbErr)
	assert.Nil(t, sum)
	repo.AssertExpectations(t)
}
