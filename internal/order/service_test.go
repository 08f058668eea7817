package order_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/vasiliy-maslov/inventory-service/internal/auth"
	"github.com/vasiliy-maslov/inventory-service/internal/db/dbtest"
	"github.com/vasiliy-maslov/inventory-service/internal/inventory"
	"github.com/vasiliy-maslov/inventory-service/internal/money"
	"github.com/vasiliy-maslov/inventory-service/internal/order"
	"github.com/vasiliy-maslov/inventory-service/internal/user"
)

type fixture struct {
	repo      order.Repository
	orders    order.Service
	products  inventory.Repository
	users     user.Repository
	principal auth.Principal
}

func newFixture(t *testing.T, opts order.Options) *fixture {
	t.Helper()

	sqliteDB := dbtest.SQLite(t)
	repo := order.NewSQLiteRepository(sqliteDB)
	f := &fixture{
		repo:     repo,
		orders:   order.NewService(repo, opts),
		products: inventory.NewSQLiteRepository(sqliteDB),
		users:    user.NewSQLiteRepository(sqliteDB),
	}

	u := &user.User{
		ID:           uuid.Must(uuid.NewV4()),
		Name:         "Store Clerk",
		Email:        "clerk@example.com",
		PasswordHash: "hash",
		Role:         user.RoleStaff,
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	f.principal = auth.Principal{UserID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}

	return f
}

func (f *fixture) addProduct(t *testing.T, name string, quantity int, price string) inventory.Product {
	t.Helper()

	p := &inventory.Product{
		ID:       uuid.Must(uuid.NewV4()),
		Name:     name,
		SKU:      name + "-" + uuid.Must(uuid.NewV4()).String()[:8],
		Quantity: quantity,
		Price:    decimal.RequireFromString(price),
	}
	require.NoError(t, f.products.Create(context.Background(), p))
	return *p
}

func (f *fixture) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()

	p, err := f.products.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Quantity
}

func (f *fixture) orderCount(t *testing.T) int {
	t.Helper()

	orders, err := f.orders.ListOrders(context.Background())
	require.NoError(t, err)
	return len(orders)
}

func TestService_CreateOrder_DecrementsStockAndPrices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, order.Options{})
	widget := f.addProduct(t, "Widget", 5, "10.00")

	created, err := f.orders.CreateOrder(ctx, f.principal, []order.ItemRequest{{ProductID: widget.ID, Quantity: 3}})
	require.NoError(t, err)

	assert.Equal(t, order.StatusPending, created.Status)
	assert.Equal(t, "30.00", created.TotalPrice.StringFixed(2))
	assert.Equal(t, f.principal.UserID, created.UserID.UUID)
	require.Len(t, created.Items, 1)
	assert.Equal(t, "10.00", created.Items[0].Price.StringFixed(2))
	assert.Equal(t, 3, created.Items[0].Quantity)
	assert.Equal(t, 2, f.stock(t, widget.ID))

	stored, err := f.orders.GetOrderByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, created.TotalPrice.Equal(stored.TotalPrice))
	require.NotNil(t, stored.Owner)
	assert.Equal(t, "Store Clerk", stored.Owner.Name)
	require.Len(t, stored.Items, 1)
	require.NotNil(t, stored.Items[0].Product)
	assert.Equal(t, "Widget", stored.Items[0].Product.Name)
}

func TestService_CreateOrder_TotalMatchesLines(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, order.Options{})
	mouse := f.addProduct(t, "Wireless Mouse X200", 50, "29.99")
	keyboard := f.addProduct(t, "Mechanical Keyboard K500", 20, "89.99")

	created, err := f.orders.CreateOrder(ctx, f.principal, []order.ItemRequest{
		{ProductID: mouse.ID, Quantity: 2},
		{ProductID: keyboard.ID, Quantity: 1},
	})
	require.NoError(t, err)

	sum := decimal.Zero
	for _, item := range created.Items {
		sum = sum.Add(item.Subtotal())
	}
	assert.Equal(t, "149.97", created.TotalPrice.StringFixed(2))
	assert.True(t, sum.Equal(created.TotalPrice))
	assert.Equal(t, 48, f.stock(t, mouse.ID))
	assert.Equal(t, 19, f.stock(t, keyboard.ID))
}

func TestService_CreateOrder_InsufficientStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, order.Options{})
	widget := f.addProduct(t, "Widget", 5, "10.00")

	_, err := f.orders.CreateOrder(ctx, f.principal, []order.ItemRequest{{ProductID: widget.ID, Quantity: 6}})
	require.Error(t, err)
	assert.ErrorIs(t, err, order.ErrInsufficientStock)

	var stockErr *order.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "Widget", stockErr.ProductName)
	assert.Equal(t, 5, stockErr.Available)
	assert.Equal(t, 6, stockErr.Requested)
	assert.Equal(t, "Insufficient stock for Widget. Available: 5", stockErr.Error())

	assert.Equal(t, 5, f.stock(t, widget.ID))
	assert.Zero(t, f.orderCount(t))
}

func TestService_CreateOrder_IsAtomic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, order.Options{})
	plenty := f.addProduct(t, "Plenty", 100, "1.50")
	scarce := f.addProduct(t, "Scarce", 1, "99.00")

	_, err := f.orders.CreateOrder(ctx, f.principal, []order.ItemRequest{
		{ProductID: plenty.ID, Quantity: 10},
		{ProductID: scarce.ID, Quantity: 2},
	})
	require.ErrorIs(t, err, order.ErrInsufficientStock)

	assert.Equal(t, 100, f.stock(t, plenty.ID))
	assert.Equal(t, 1, f.stock(t, scarce.ID))
	assert.Zero(t, f.orderCount(t))
}

func TestService_CreateOrder_UnknownProduct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, order.Options{})
	widget := f.addProduct(t, "Widget", 5, "10.00")
	missing := uuid.Must(uuid.NewV4())

	_, err := f.orders.CreateOrder(ctx, f.principal, []order.ItemRequest{
		{ProductID: widget.ID, Quantity: 1},
		{ProductID: missing, Quantity: 1},
	})
	require.ErrorIs(t, err, order.ErrProductNotFound)
	assert.Contains(t, err.Error(), missing.String())

	assert.Equal(t, 5, f.stock(t, widget.ID))
	assert.Zero(t, f.orderCount(t))
}

func TestService_CreateOrder_UnknownProductReportedBeforeShortage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, order.Options{})
	scarce := f.addProduct(t, "Scarce", 1, "5.00")
	missing := uuid.Must(uuid.NewV4())

	_, err := f.orders.CreateOrder(ctx, f.principal, []order.ItemRequest{
		{ProductID: scarce.ID, Quantity: 5},
		{ProductID: missing, Quantity: 1},
	})
	require.ErrorIs(t, err, order.ErrProductNotFound)
	assert.NotErrorIs(t, err, order.ErrInsufficientStock)
	assert.Contains(t, err.Error(), missing.String())

	assert.Equal(t, 1, f.stock(t, scarce.ID))
	assert.Zero(t, f.orderCount(t))
}

func TestService_CreateOrder_TotalAboveStorableMaximum(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, order.Options{})
	pricey := f.addProduct(t, "Pricey", 2000, money.MaxAmount.String())

	_, err := f.orders.CreateOrder(ctx, f.principal, []order.ItemRequest{{ProductID: pricey.ID, Quantity: 2}})
	require.ErrorIs(t, err, order.ErrValidation)
	assert.NotErrorIs(t, err, order.ErrPersistence)

	assert.Equal(t, 2000, f.stock(t, pricey.ID))
	assert.Zero(t, f.orderCount(t))

	created, err := f.orders.CreateOrder(ctx, f.principal, []order.ItemRequest{{ProductID: pricey.ID, Quantity: 1}})
	require.NoError(t, err)
	assert.True(t, money.MaxAmount.Equal(created.TotalPrice))

	stored, err := f.orders.GetOrderByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, created.TotalPrice.Equal(stored.TotalPrice))
}

func TestService_CreateOrder_RollsBackWrittenRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, order.Options{})
	lamp := f.addProduct(t, "Lamp", 10, "10.00")
	bulb := f.addProduct(t, "Bulb", 10, "2.50")

	diskErr := errors.New("disk I/O error")
	repo := &faultyRepository{Repository: f.repo, failAdjustAt: 2, err: diskErr}
	svc := order.NewService(repo, order.Options{})

	_, err := svc.CreateOrder(ctx, f.principal, []order.ItemRequest{
		{ProductID: lamp.ID, Quantity: 2},
		{ProductID: bulb.ID, Quantity: 3},
	})
	require.ErrorIs(t, err, order.ErrPersistence)
	assert.ErrorIs(t, err, diskErr)
	assert.Equal(t, 2, repo.adjustCalls)

	assert.Equal(t, 10, f.stock(t, lamp.ID))
	assert.Equal(t, 10, f.stock(t, bulb.ID))
	assert.Zero(t, f.orderCount(t))
}

func TestService_CreateOrder_ReturnsStoredOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, order.Options{})
	widget := f.addProduct(t, "Widget", 5, "10.00")

	repo := &faultyRepository{Repository: f.repo}
	svc := order.NewService(repo, order.Options{})

	created, err := svc.CreateOrder(ctx, f.principal, []order.ItemRequest{{ProductID: widget.ID, Quantity: 2}})
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{created.ID}, repo.reads)

	stored, err := f.orders.GetOrderByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, stored.CreatedAt.Equal(created.CreatedAt))
	assert.True(t, stored.TotalPrice.Equal(created.TotalPrice))
	require.Len(t, created.Items, 1)
	require.NotNil(t, created.Items[0].Product)
	assert.Equal(t, widget.SKU, created.Items[0].Product.SKU)
}

func TestService_CreateOrder_Validation(t *testing.T) {
	productID := uuid.Must(uuid.NewV4())

	tests := []struct {
		name  string
		items []order.ItemRequest
	}{
		{name: "no_items", items: nil},
		{name: "empty_items", items: []order.ItemRequest{}},
		{name: "zero_quantity", items: []order.ItemRequest{{ProductID: productID, Quantity: 0}}},
		{name: "negative_quantity", items: []order.ItemRequest{{ProductID: productID, Quantity: -2}}},
		{name: "nil_product", items: []order.ItemRequest{{ProductID: uuid.Nil, Quantity: 1}}},
	}

	f := newFixture(t, order.Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.CreateOrder(context.Background(), f.principal, tt.items)
			assert.ErrorIs(t, err, order.ErrValidation)
		})
	}
	assert.Zero(t, f.orderCount(t))
}

func TestService_CreateOrder_RequiresPrincipal(t *testing.T) {
	f := newFixture(t, order.Options{})
	widget := f.addProduct(t, "Widget", 5, "10.00")

	_, err := f.orders.CreateOrder(context.Background(), auth.Principal{}, []order.ItemRequest{{ProductID: widget.ID, Quantity: 1}})
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestService_CreateOrder_DuplicateLinesShareStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, order.Options{})
	widget := f.addProduct(t, "Widget", 5, "2.00")

	_, err := f.orders.CreateOrder(ctx, f.principal, []order.ItemRequest{
		{ProductID: widget.ID, Quantity: 3},
		{ProductID: widget.ID, Quantity: 3},
	})
	var stockErr *order.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 6, stockErr.Requested)
	assert.Equal(t, 5, f.stock(t, widget.ID))

	created, err := f.orders.CreateOrder(ctx, f.principal, []order.ItemRequest{
		{ProductID: widget.ID, Quantity: 2},
		{ProductID: widget.ID, Quantity: 3},
	})
	require.NoError(t, err)
	assert.Len(t, created.Items, 2)
	assert.Equal(t, "10.00", created.TotalPrice.StringFixed(2))
	assert.Zero(t, f.stock(t, widget.ID))
}

func TestService_PriceSnapshotSurvivesPriceChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, order.Options{})
	widget := f.addProduct(t, "Widget", 5, "10.00")

	created, err := f.orders.CreateOrder(ctx, f.principal, []order.ItemRequest{{ProductID: widget.ID, Quantity: 1}})
	require.NoError(t, err)

	p, err := f.products.GetByID(ctx, widget.ID)
	require.NoError(t, err)
	p.Price = decimal.RequireFromString("25.00")
	require.NoError(t, f.products.Update(ctx, p))

	stored, err := f.orders.GetOrderByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.00", stored.Items[0].Price.StringFixed(2))
	assert.Equal(t, "10.00", stored.TotalPrice.StringFixed(2))
}

func TestService_DeleteOrder_RestoresStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, order.Options{})
	widget := f.addProduct(t, "Widget", 5, "10.00")

	created, err := f.orders.CreateOrder(ctx, f.principal, []order.ItemRequest{{ProductID: widget.ID, Quantity: 3}})
	require.NoError(t, err)
	require.Equal(t, 2, f.stock(t, widget.ID))

	require.NoError(t, f.orders.DeleteOrder(ctx, created.ID))
	assert.Equal(t, 5, f.stock(t, widget.ID))

	_, err = f.orders.GetOrderByID(ctx, created.ID)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
	assert.ErrorIs(t, f.orders.DeleteOrder(ctx, created.ID), order.ErrOrderNotFound)
}

func TestService_DeleteOrder_SkipsDeletedProducts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, order.Options{})
	kept := f.addProduct(t, "Kept", 10, "1.00")
	gone := f.addProduct(t, "Gone", 10, "1.00")

	created, err := f.orders.CreateOrder(ctx, f.principal, []order.ItemRequest{
		{ProductID: kept.ID, Quantity: 4},
		{ProductID: gone.ID, Quantity: 4},
	})
	require.NoError(t, err)
	require.NoError(t, f.products.Delete(ctx, gone.ID))

	stored, err := f.orders.GetOrderByID(ctx, created.ID)
	require.NoError(t, err)
	for _, item := range stored.Items {
		if item.ProductID == gone.ID {
			assert.Nil(t, item.Product)
		}
	}

	require.NoError(t, f.orders.DeleteOrder(ctx, created.ID))
	assert.Equal(t, 10, f.stock(t, kept.ID))
	_, err = f.products.GetByID(ctx, gone.ID)
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestService_ConcurrentOrdersForLastUnit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, order.Options{})
	widget := f.addProduct(t, "Last Widget", 1, "5.00")

	const buyers = 2
	results := make([]error, buyers)

	var g errgroup.Group
	for i := 0; i < buyers; i++ {
		i := i
		g.Go(func() error {
			_, err := f.orders.CreateOrder(ctx, f.principal, []order.ItemRequest{{ProductID: widget.ID, Quantity: 1}})
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var succeeded, rejected int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, order.ErrInsufficientStock):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Zero(t, f.stock(t, widget.ID))
	assert.Equal(t, 1, f.orderCount(t))
}

func TestService_UpdateOrderStatus_Permissive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, order.Options{})
	widget := f.addProduct(t, "Widget", 5, "10.00")

	created, err := f.orders.CreateOrder(ctx, f.principal, []order.ItemRequest{{ProductID: widget.ID, Quantity: 2}})
	require.NoError(t, err)

	for _, status := range []order.OrderStatus{order.StatusCompleted, order.StatusPending, order.StatusCancelled} {
		updated, err := f.orders.UpdateOrderStatus(ctx, created.ID, status)
		require.NoError(t, err)
		assert.Equal(t, status, updated.Status)
		assert.Equal(t, "20.00", updated.TotalPrice.StringFixed(2))
	}
	assert.Equal(t, 3, f.stock(t, widget.ID), "status changes must not touch stock")

	_, err = f.orders.UpdateOrderStatus(ctx, created.ID, "shipped")
	assert.ErrorIs(t, err, order.ErrValidation)

	_, err = f.orders.UpdateOrderStatus(ctx, uuid.Must(uuid.NewV4()), order.StatusCompleted)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestService_UpdateOrderStatus_Strict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, order.Options{StrictTransitions: true})
	widget := f.addProduct(t, "Widget", 5, "10.00")

	created, err := f.orders.CreateOrder(ctx, f.principal, []order.ItemRequest{{ProductID: widget.ID, Quantity: 1}})
	require.NoError(t, err)

	tests := []struct {
		name    string
		status  order.OrderStatus
		wantErr error
	}{
		{name: "skip_processing", status: order.StatusCompleted, wantErr: order.ErrInvalidStatusTransition},
		{name: "same_status_noop", status: order.StatusPending},
		{name: "to_processing", status: order.StatusProcessing},
		{name: "back_to_pending", status: order.StatusPending, wantErr: order.ErrInvalidStatusTransition},
		{name: "to_completed", status: order.StatusCompleted},
		{name: "cancel_completed", status: order.StatusCancelled, wantErr: order.ErrInvalidStatusTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated, err := f.orders.UpdateOrderStatus(ctx, created.ID, tt.status)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.status, updated.Status)
		})
	}
}

func TestService_ListOrders_NewestFirstWithGuestOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, order.Options{})
	widget := f.addProduct(t, "Widget", 10, "1.00")

	first, err := f.orders.CreateOrder(ctx, f.principal, []order.ItemRequest{{ProductID: widget.ID, Quantity: 1}})
	require.NoError(t, err)
	second, err := f.orders.CreateOrder(ctx, f.principal, []order.ItemRequest{{ProductID: widget.ID, Quantity: 2}})
	require.NoError(t, err)

	require.NoError(t, f.users.Delete(ctx, f.principal.UserID))

	orders, err := f.orders.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)
	for _, o := range orders {
		assert.Nil(t, o.Owner)
		assert.False(t, o.UserID.Valid)
		require.Len(t, o.Items, 1)
	}
}

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) RunInTx(ctx context.Context, fn func(tx order.Tx) error) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}

func (m *MockRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockRepository) ListOrders(ctx context.Context) ([]order.Order, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

// faultyRepository wraps a real store. It fails the n-th stock adjustment of
// each transaction when failAdjustAt is set and records order reads.
type faultyRepository struct {
	order.Repository
	failAdjustAt int
	err          error

	adjustCalls int
	reads       []uuid.UUID
}

func (r *faultyRepository) RunInTx(ctx context.Context, fn func(tx order.Tx) error) error {
	r.adjustCalls = 0
	return r.Repository.RunInTx(ctx, func(tx order.Tx) error {
		return fn(&faultyTx{Tx: tx, repo: r})
	})
}

func (r *faultyRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	r.reads = append(r.reads, id)
	return r.Repository.GetOrderByID(ctx, id)
}

type faultyTx struct {
	order.Tx
	repo *faultyRepository
}

func (t *faultyTx) AdjustStock(ctx context.Context, productID uuid.UUID, delta int, at time.Time) error {
	t.repo.adjustCalls++
	if t.repo.failAdjustAt > 0 && t.repo.adjustCalls == t.repo.failAdjustAt {
		return t.repo.err
	}
	return t.Tx.AdjustStock(ctx, productID, delta, at)
}

func TestService_PersistenceFailures(t *testing.T) {
	ctx := context.Background()
	storeErr := errors.New("connection refused")
	principal := auth.Principal{UserID: uuid.Must(uuid.NewV4())}
	items := []order.ItemRequest{{ProductID: uuid.Must(uuid.NewV4()), Quantity: 1}}

	repo := new(MockRepository)
	repo.On("RunInTx", mock.Anything, mock.Anything).Return(storeErr)
	repo.On("ListOrders", mock.Anything).Return(nil, storeErr).Once()
	svc := order.NewService(repo, order.Options{})

	_, err := svc.CreateOrder(ctx, principal, items)
	assert.ErrorIs(t, err, order.ErrPersistence)
	assert.ErrorIs(t, err, storeErr)

	assert.ErrorIs(t, svc.DeleteOrder(ctx, uuid.Must(uuid.NewV4())), order.ErrPersistence)

	_, err = svc.UpdateOrderStatus(ctx, uuid.Must(uuid.NewV4()), order.StatusCompleted)
	assert.ErrorIs(t, err, order.ErrPersistence)

	_, err = svc.ListOrders(ctx)
	assert.ErrorIs(t, err, order.ErrPersistence)

	repo.AssertExpectations(t)
}
