package customers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falconrep/falconrep/internal/platform/httpx"
	"github.com/falconrep/falconrep/internal/remote"
)

// ============================================================================
// MOCKS
// ============================================================================

type mockRepository struct {
	synced  map[int64]CustomerInput
	pending map[int64]CustomerInput
	nextID  int64

	promoteError error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		synced:  make(map[int64]CustomerInput),
		pending: make(map[int64]CustomerInput),
		nextID:  1,
	}
}

func (m *mockRepository) ReplaceCustomers(ctx context.Context, customers []Customer) error {
	m.synced = make(map[int64]CustomerInput)
	for _, c := range customers {
		m.synced[c.Ref.ID()] = CustomerInput{ShopName: c.ShopName, ContactNumber: c.ContactNumber, Address: c.Address, RouteID: c.RouteID, UserID: c.UserID}
	}
	return nil
}

func (m *mockRepository) ReplaceRoutes(ctx context.Context, routes []Route) error { return nil }

func (m *mockRepository) Routes(ctx context.Context) ([]Route, error) {
	return []Route{{ID: 3, Name: "Galle Road"}}, nil
}

func (m *mockRepository) ListCombined(ctx context.Context) ([]Customer, error) {
	var out []Customer
	for id, in := range m.pending {
		out = append(out, Customer{Ref: PendingRef(id), ShopName: in.ShopName, RouteID: in.RouteID, UserID: in.UserID})
	}
	for id, in := range m.synced {
		out = append(out, Customer{Ref: SyncedRef(id), ShopName: in.ShopName, RouteID: in.RouteID, UserID: in.UserID})
	}
	return out, nil
}

func (m *mockRepository) Get(ctx context.Context, ref CustomerRef) (*Customer, error) {
	var (
		in CustomerInput
		ok bool
	)
	if ref.IsPending() {
		in, ok = m.pending[ref.ID()]
	} else {
		in, ok = m.synced[ref.ID()]
	}
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return &Customer{Ref: ref, ShopName: in.ShopName, RouteID: in.RouteID, UserID: in.UserID}, nil
}

func (m *mockRepository) InsertSynced(ctx context.Context, serverID int64, in CustomerInput) error {
	m.synced[serverID] = in
	return nil
}

func (m *mockRepository) UpdateSynced(ctx context.Context, serverID int64, in CustomerInput) error {
	if _, ok := m.synced[serverID]; !ok {
		return httpx.ErrNotFound
	}
	m.synced[serverID] = in
	return nil
}

func (m *mockRepository) DeleteSynced(ctx context.Context, serverID int64) error {
	if _, ok := m.synced[serverID]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.synced, serverID)
	return nil
}

func (m *mockRepository) InsertPending(ctx context.Context, in CustomerInput) (int64, error) {
	id := m.nextID
	m.nextID++
	m.pending[id] = in
	return id, nil
}

func (m *mockRepository) PendingCustomers(ctx context.Context) ([]Customer, error) {
	var out []Customer
	for id := int64(1); id < m.nextID; id++ {
		if in, ok := m.pending[id]; ok {
			out = append(out, Customer{Ref: PendingRef(id), ShopName: in.ShopName, ContactNumber: in.ContactNumber, Address: in.Address, RouteID: in.RouteID, UserID: in.UserID})
		}
	}
	return out, nil
}

func (m *mockRepository) UpdatePending(ctx context.Context, localID int64, in CustomerInput) error {
	if _, ok := m.pending[localID]; !ok {
		return httpx.ErrNotFound
	}
	m.pending[localID] = in
	return nil
}

func (m *mockRepository) DeletePending(ctx context.Context, localID int64) error {
	if _, ok := m.pending[localID]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.pending, localID)
	return nil
}

func (m *mockRepository) Promote(ctx context.Context, localID, serverID int64) error {
	if m.promoteError != nil {
		return m.promoteError
	}
	in, ok := m.pending[localID]
	if !ok {
		return httpx.ErrNotFound
	}
	delete(m.pending, localID)
	m.synced[serverID] = in
	return nil
}

type mockAPI struct {
	online       bool
	nextServerID int64
	addError     error
	added        []remote.NewCustomer
}

func (m *mockAPI) Online(ctx context.Context) bool { return m.online }

func (m *mockAPI) AddCustomer(ctx context.Context, nc remote.NewCustomer) (int64, error) {
	if m.addError != nil {
		return 0, m.addError
	}
	m.added = append(m.added, nc)
	m.nextServerID++
	return 300 + m.nextServerID, nil
}

func (m *mockAPI) UpdateCustomer(ctx context.Context, id int64, nc remote.NewCustomer) error {
	if m.addError != nil {
		return m.addError
	}
	return nil
}

func (m *mockAPI) DeleteCustomer(ctx context.Context, id int64) error {
	if m.addError != nil {
		return m.addError
	}
	return nil
}

func newTestService(repo Repository, api RemoteAPI) *Service {
	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, api)
}

// ============================================================================
// REF ENCODING
// ============================================================================

func TestCustomerRefWireEncoding(t *testing.T) {
	data, err := json.Marshal(PendingRef(7))
	require.NoError(t, err)
	assert.Equal(t, "-7", string(data))

	data, err = json.Marshal(SyncedRef(301))
	require.NoError(t, err)
	assert.Equal(t, "301", string(data))

	var ref CustomerRef
	require.NoError(t, json.Unmarshal([]byte("-7"), &ref))
	assert.True(t, ref.IsPending())
	assert.Equal(t, int64(7), ref.ID())

	require.NoError(t, json.Unmarshal([]byte("301"), &ref))
	assert.False(t, ref.IsPending())
	assert.Equal(t, int64(301), ref.ID())
}

// ============================================================================
// SERVICE TESTS
// ============================================================================

func TestCreateOnlineStoresSynced(t *testing.T) {
	repo := newMockRepository()
	api := &mockAPI{online: true}
	svc := newTestService(repo, api)

	ref, err := svc.Create(context.Background(), CustomerInput{ShopName: "New Shop", RouteID: 3, UserID: 9})
	require.NoError(t, err)
	assert.False(t, ref.IsPending())
	assert.Contains(t, repo.synced, ref.ID())
	assert.Empty(t, repo.pending)
}

func TestCreateOfflineParksPending(t *testing.T) {
	repo := newMockRepository()
	api := &mockAPI{online: false}
	svc := newTestService(repo, api)

	ref, err := svc.Create(context.Background(), CustomerInput{ShopName: "New Shop", RouteID: 3, UserID: 9})
	require.NoError(t, err)
	assert.True(t, ref.IsPending())
	assert.Contains(t, repo.pending, ref.ID())
	assert.Empty(t, api.added)
}

func TestCreateFallsBackWhenConnectivityDrops(t *testing.T) {
	repo := newMockRepository()
	api := &mockAPI{online: true, addError: remote.ErrOffline}
	svc := newTestService(repo, api)

	ref, err := svc.Create(context.Background(), CustomerInput{ShopName: "New Shop", RouteID: 3, UserID: 9})
	require.NoError(t, err)
	assert.True(t, ref.IsPending())
}

func TestUpdateSyncedRequiresConnectivity(t *testing.T) {
	repo := newMockRepository()
	repo.synced[301] = CustomerInput{ShopName: "Old"}
	svc := newTestService(repo, &mockAPI{online: false})

	err := svc.Update(context.Background(), SyncedRef(301), CustomerInput{ShopName: "New", RouteID: 3, UserID: 9})
	assert.ErrorIs(t, err, httpx.ErrUnavailable)
	assert.Equal(t, "Old", repo.synced[301].ShopName)
}

func TestUpdatePendingWorksOffline(t *testing.T) {
	repo := newMockRepository()
	repo.pending[1] = CustomerInput{ShopName: "Old"}
	repo.nextID = 2
	svc := newTestService(repo, &mockAPI{online: false})

	err := svc.Update(context.Background(), PendingRef(1), CustomerInput{ShopName: "New", RouteID: 3, UserID: 9})
	require.NoError(t, err)
	assert.Equal(t, "New", repo.pending[1].ShopName)
}

func TestDeletePendingWorksOffline(t *testing.T) {
	repo := newMockRepository()
	repo.pending[1] = CustomerInput{ShopName: "Gone"}
	repo.nextID = 2
	svc := newTestService(repo, &mockAPI{online: false})

	require.NoError(t, svc.Delete(context.Background(), PendingRef(1)))
	assert.Empty(t, repo.pending)
}

func TestUploadPendingPromotesSequentially(t *testing.T) {
	repo := newMockRepository()
	repo.pending[1] = CustomerInput{ShopName: "Shop A", RouteID: 3, UserID: 9}
	repo.pending[2] = CustomerInput{ShopName: "Shop B", RouteID: 3, UserID: 9}
	repo.nextID = 3
	api := &mockAPI{online: true}
	svc := newTestService(repo, api)

	n, err := svc.UploadPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, repo.pending)
	assert.Len(t, repo.synced, 2)
}

func TestUploadPendingStopsOnFirstFailure(t *testing.T) {
	repo := newMockRepository()
	repo.pending[1] = CustomerInput{ShopName: "Shop A", RouteID: 3, UserID: 9}
	repo.pending[2] = CustomerInput{ShopName: "Shop B", RouteID: 3, UserID: 9}
	repo.nextID = 3
	api := &mockAPI{online: true, addError: errors.New("backend rejected")}
	svc := newTestService(repo, api)

	n, err := svc.UploadPending(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, repo.pending, 2)
}

func TestUploadPendingKeepsRowWhenPromoteFails(t *testing.T) {
	repo := newMockRepository()
	repo.pending[1] = CustomerInput{ShopName: "Shop A", RouteID: 3, UserID: 9}
	repo.nextID = 2
	repo.promoteError = errors.New("disk full")
	svc := newTestService(repo, &mockAPI{online: true})

	_, err := svc.UploadPending(context.Background())
	require.Error(t, err)
	assert.Contains(t, repo.pending, int64(1))
}
