package billing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falconrep/falconrep/internal/customers"
	"github.com/falconrep/falconrep/internal/platform/httpx"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	variants map[int64]VariantInfo
	orders   map[int64]Order
	nextID   int64

	saveError error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		variants: make(map[int64]VariantInfo),
		orders:   make(map[int64]Order),
		nextID:   100,
	}
}

func (m *mockRepository) LookupVariant(ctx context.Context, variantID int64) (*VariantInfo, error) {
	v, ok := m.variants[variantID]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return &v, nil
}

func (m *mockRepository) SaveOrder(ctx context.Context, order Order) (int64, error) {
	if m.saveError != nil {
		return 0, m.saveError
	}
	m.nextID++
	order.OrderID = m.nextID
	m.orders[order.OrderID] = order
	return order.OrderID, nil
}

func (m *mockRepository) ListOrders(ctx context.Context) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out, nil
}

func (m *mockRepository) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return &o, nil
}

func (m *mockRepository) PendingOrders(ctx context.Context) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		if o.SyncStatus == StatusPending {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockRepository) DeleteOrders(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		delete(m.orders, id)
	}
	return nil
}

func (m *mockRepository) PendingTotals(ctx context.Context) (float64, int, error) {
	var total float64
	count := 0
	for _, o := range m.orders {
		if o.SyncStatus == StatusPending {
			total += o.TotalAmount
			count++
		}
	}
	return total, count, nil
}

func newTestService(repo Repository) *Service {
	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, NewBill())
}

// ============================================================================
// SERVICE TESTS
// ============================================================================

func TestAddVariantUsesCatalogPrice(t *testing.T) {
	repo := newMockRepository()
	repo.variants[50] = VariantInfo{VariantID: 50, ItemID: 5, VariantName: "Fine", ProductName: "Blue Pen", Price: 12.5}
	svc := newTestService(repo)

	require.NoError(t, svc.AddVariant(context.Background(), 50, 4))

	lines := svc.Bill().Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "Blue Pen", lines[0].ProductName)
	assert.InDelta(t, 50, svc.Bill().Subtotal(), 0.001)
}

func TestAddVariantUnknown(t *testing.T) {
	svc := newTestService(newMockRepository())
	assert.ErrorIs(t, svc.AddVariant(context.Background(), 99, 1), httpx.ErrNotFound)
}

func TestCheckoutPersistsAndClears(t *testing.T) {
	repo := newMockRepository()
	repo.variants[50] = VariantInfo{VariantID: 50, ItemID: 5, ProductName: "Blue Pen", Price: 100}
	svc := newTestService(repo)

	require.NoError(t, svc.AddVariant(context.Background(), 50, 3))
	require.NoError(t, svc.Bill().SetBillDiscount(10))
	svc.Bill().SetCustomer(customers.SyncedRef(301))

	order, err := svc.Checkout(context.Background(), 9)
	require.NoError(t, err)
	assert.InDelta(t, 270, order.TotalAmount, 0.001)
	assert.Equal(t, int64(301), order.Customer.ID())
	assert.InDelta(t, 10, order.BillDiscount, 0.001)
	require.Len(t, order.Items, 1)
	assert.Equal(t, StatusPending, order.SyncStatus)

	assert.Zero(t, svc.Bill().ItemCount())
	assert.Contains(t, repo.orders, order.OrderID)
}

func TestPendingListsOnlyTodaysBills(t *testing.T) {
	repo := newMockRepository()
	repo.orders[1] = Order{OrderID: 1, OrderDate: "2026-03-09 18:30:00", SyncStatus: StatusPending}
	repo.orders[2] = Order{OrderID: 2, OrderDate: "2026-03-10 09:15:00", SyncStatus: StatusPending}
	repo.orders[3] = Order{OrderID: 3, OrderDate: "2026-03-10 10:00:00", SyncStatus: StatusSynced}
	svc := newTestService(repo)
	svc.now = func() time.Time {
		return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	}

	orders, err := svc.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(2), orders[0].OrderID)
}

func TestCheckoutRequiresCustomer(t *testing.T) {
	repo := newMockRepository()
	repo.variants[50] = VariantInfo{VariantID: 50, Price: 100}
	svc := newTestService(repo)
	require.NoError(t, svc.AddVariant(context.Background(), 50, 1))

	_, err := svc.Checkout(context.Background(), 9)
	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.Equal(t, 1, svc.Bill().ItemCount())
}

func TestCheckoutRequiresLines(t *testing.T) {
	svc := newTestService(newMockRepository())
	svc.Bill().SetCustomer(customers.SyncedRef(301))

	_, err := svc.Checkout(context.Background(), 9)
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCheckoutKeepsBillOnSaveFailure(t *testing.T) {
	repo := newMockRepository()
	repo.variants[50] = VariantInfo{VariantID: 50, Price: 100}
	repo.saveError = errors.New("disk full")
	svc := newTestService(repo)

	require.NoError(t, svc.AddVariant(context.Background(), 50, 1))
	svc.Bill().SetCustomer(customers.PendingRef(7))

	_, err := svc.Checkout(context.Background(), 9)
	require.Error(t, err)
	assert.Equal(t, 1, svc.Bill().ItemCount())
}

func TestCheckoutForPendingCustomerKeepsTag(t *testing.T) {
	repo := newMockRepository()
	repo.variants[50] = VariantInfo{VariantID: 50, Price: 100}
	svc := newTestService(repo)

	require.NoError(t, svc.AddVariant(context.Background(), 50, 1))
	svc.Bill().SetCustomer(customers.PendingRef(7))

	order, err := svc.Checkout(context.Background(), 9)
	require.NoError(t, err)
	assert.True(t, order.Customer.IsPending())
	assert.Equal(t, int64(-7), order.Customer.Wire())
}
