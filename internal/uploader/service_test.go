package uploader

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falconrep/falconrep/internal/billing"
	"github.com/falconrep/falconrep/internal/customers"
	"github.com/falconrep/falconrep/internal/platform/httpx"
	"github.com/falconrep/falconrep/internal/remote"
	"github.com/falconrep/falconrep/internal/session"
)

// ============================================================================
// MOCKS
// ============================================================================

type mockAPI struct {
	result      *remote.UploadResult
	err         error
	gotSummary  remote.UploadSummary
	gotBills    []remote.UploadBill
	dailyCalled bool
}

func (m *mockAPI) UploadBills(ctx context.Context, summary remote.UploadSummary, bills []remote.UploadBill) (*remote.UploadResult, error) {
	m.gotSummary = summary
	m.gotBills = bills
	return m.result, m.err
}

func (m *mockAPI) UploadDailyData(ctx context.Context, summary remote.UploadSummary, bills []remote.UploadBill) (*remote.UploadResult, error) {
	m.dailyCalled = true
	m.gotSummary = summary
	m.gotBills = bills
	return m.result, m.err
}

type mockOrders struct {
	orders  map[int64]billing.Order
	deleted []int64
}

func newMockOrders(orders ...billing.Order) *mockOrders {
	m := &mockOrders{orders: make(map[int64]billing.Order)}
	for _, o := range orders {
		m.orders[o.OrderID] = o
	}
	return m
}

func (m *mockOrders) PendingOrders(ctx context.Context) ([]billing.Order, error) {
	var out []billing.Order
	for id := int64(0); id <= 1000; id++ {
		if o, ok := m.orders[id]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrders) DeleteOrders(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		delete(m.orders, id)
		m.deleted = append(m.deleted, id)
	}
	return nil
}

func (m *mockOrders) PendingTotals(ctx context.Context) (float64, int, error) {
	var total float64
	for _, o := range m.orders {
		total += o.TotalAmount
	}
	return total, len(m.orders), nil
}

type mockSessions struct {
	rep        *session.RepSession
	day        *session.DayRoute
	dayCleared bool
}

func (m *mockSessions) Current(ctx context.Context) (*session.RepSession, error) {
	if m.rep == nil {
		return nil, httpx.ErrUnauthorized
	}
	return m.rep, nil
}

func (m *mockSessions) Day(ctx context.Context) (*session.DayRoute, error) {
	return m.day, nil
}

func (m *mockSessions) ClearDay(ctx context.Context) error {
	m.day = nil
	m.dayCleared = true
	return nil
}

func order(id int64, total float64) billing.Order {
	return billing.Order{
		OrderID:     id,
		Customer:    customers.SyncedRef(301),
		RepID:       9,
		OrderDate:   "2025-06-01 10:00:00",
		TotalAmount: total,
		SyncStatus:  billing.StatusPending,
		Items: []billing.OrderItem{
			{VariantID: 50, Quantity: 2, PricePerUnit: total / 2},
		},
	}
}

func newTestService(api RemoteAPI, orders Orders, sessions Sessions) *Service {
	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), api, orders, sessions)
}

func signedIn() *mockSessions {
	return &mockSessions{rep: &session.RepSession{RepID: 9, Username: "kasun"}}
}

// ============================================================================
// TESTS
// ============================================================================

func TestUploadBillsFullAcknowledgment(t *testing.T) {
	orders := newMockOrders(order(101, 200), order(102, 150))
	api := &mockAPI{result: &remote.UploadResult{Success: true, SyncedOrderIDs: []remote.FlexInt64{101, 102}}}
	svc := newTestService(api, orders, signedIn())

	report, err := svc.UploadBills(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Uploaded)
	assert.Zero(t, report.Remaining)
	assert.Empty(t, orders.orders)
	assert.Equal(t, int64(9), api.gotSummary.RepID)
	assert.InDelta(t, 350, api.gotSummary.TotalSales, 0.001)
	assert.Equal(t, 2, api.gotSummary.TotalBills)
}

func TestUploadBillsPartialEchoKeepsUnacknowledged(t *testing.T) {
	orders := newMockOrders(order(101, 200), order(102, 150))
	api := &mockAPI{result: &remote.UploadResult{Success: true, SyncedOrderIDs: []remote.FlexInt64{101}}}
	svc := newTestService(api, orders, signedIn())

	report, err := svc.UploadBills(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPartialUpload)
	assert.Equal(t, 1, report.Uploaded)
	assert.Equal(t, 1, report.Remaining)
	assert.NotContains(t, orders.orders, int64(101))
	assert.Contains(t, orders.orders, int64(102))
}

func TestUploadBillsNothingPending(t *testing.T) {
	api := &mockAPI{}
	svc := newTestService(api, newMockOrders(), signedIn())

	report, err := svc.UploadBills(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Uploaded)
	assert.Nil(t, api.gotBills)
}

func TestUploadBillsRequiresSession(t *testing.T) {
	svc := newTestService(&mockAPI{}, newMockOrders(order(101, 200)), &mockSessions{})

	_, err := svc.UploadBills(context.Background())
	assert.ErrorIs(t, err, httpx.ErrUnauthorized)
}

func TestUploadBillsBackendRejection(t *testing.T) {
	orders := newMockOrders(order(101, 200))
	api := &mockAPI{result: &remote.UploadResult{Success: false, Message: "bad payload"}}
	svc := newTestService(api, orders, signedIn())

	_, err := svc.UploadBills(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad payload")
	assert.Contains(t, orders.orders, int64(101))
}

func TestUploadBillsAppliesLineDiscountToUnitPrice(t *testing.T) {
	o := order(101, 180)
	custom := 90.0
	o.Items = []billing.OrderItem{
		{VariantID: 50, Quantity: 2, PricePerUnit: 100, CustomPrice: &custom, DiscountPct: 10},
	}
	api := &mockAPI{result: &remote.UploadResult{Success: true, SyncedOrderIDs: []remote.FlexInt64{101}}}
	svc := newTestService(api, newMockOrders(o), signedIn())

	_, err := svc.UploadBills(context.Background())
	require.NoError(t, err)
	require.Len(t, api.gotBills, 1)
	require.Len(t, api.gotBills[0].Items, 1)
	assert.InDelta(t, 81, api.gotBills[0].Items[0].PricePerUnit, 0.001)
}

func TestUploadDailyRequiresEndedDay(t *testing.T) {
	sessions := signedIn()
	sessions.day = &session.DayRoute{RouteID: 3, MeterStart: 45210}
	svc := newTestService(&mockAPI{}, newMockOrders(), sessions)

	_, err := svc.UploadDaily(context.Background())
	assert.ErrorIs(t, err, ErrDayNotEnded)
}

func TestUploadDailySendsSummaryAndClearsDay(t *testing.T) {
	sessions := signedIn()
	sessions.day = &session.DayRoute{
		RouteID: 3, RouteName: "Galle Road", RouteDate: "2025-06-01",
		MeterStart: 45210, MeterEnd: 45390, Ended: true,
	}
	orders := newMockOrders(order(101, 200))
	api := &mockAPI{result: &remote.UploadResult{Success: true, SyncedOrderIDs: []remote.FlexInt64{101}}}
	svc := newTestService(api, orders, sessions)

	report, err := svc.UploadDaily(context.Background())
	require.NoError(t, err)
	assert.True(t, api.dailyCalled)
	assert.Equal(t, 1, report.Uploaded)
	assert.Equal(t, int64(3), api.gotSummary.RouteID)
	assert.Equal(t, "2025-06-01", api.gotSummary.RouteDate)
	assert.Equal(t, int64(45210), api.gotSummary.MeterStart)
	assert.Equal(t, int64(45390), api.gotSummary.MeterEnd)
	assert.True(t, sessions.dayCleared)
}

func TestUploadDailyPartialEchoKeepsDay(t *testing.T) {
	sessions := signedIn()
	sessions.day = &session.DayRoute{RouteID: 3, RouteDate: "2025-06-01", MeterEnd: 45390, Ended: true}
	orders := newMockOrders(order(101, 200), order(102, 150))
	api := &mockAPI{result: &remote.UploadResult{Success: true, SyncedOrderIDs: []remote.FlexInt64{101}}}
	svc := newTestService(api, orders, sessions)

	_, err := svc.UploadDaily(context.Background())
	assert.ErrorIs(t, err, ErrPartialUpload)
	assert.False(t, sessions.dayCleared)
	assert.Contains(t, orders.orders, int64(102))
}
