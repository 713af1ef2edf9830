package images

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falconrep/falconrep/internal/catalog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestFileNaming(t *testing.T) {
	store := newTestStore(t)
	assert.Equal(t, "product_5.jpg", filepath.Base(store.ProductFile(5)))
	assert.Equal(t, "variant_50.jpg", filepath.Base(store.VariantFile(50)))
}

func TestResolvePrefersCachedFile(t *testing.T) {
	store := newTestStore(t)
	path := store.ProductFile(5)
	require.NoError(t, store.Save(path, strings.NewReader("jpeg bytes")))

	assert.Equal(t, path, store.Resolve(path, "https://cdn.example.com/p.jpg"))
}

func TestResolveFallsBackToURL(t *testing.T) {
	store := newTestStore(t)
	missing := store.ProductFile(5)

	assert.Equal(t, "https://cdn.example.com/p.jpg", store.Resolve(missing, "https://cdn.example.com/p.jpg"))
	assert.Equal(t, "https://cdn.example.com/p.jpg", store.Resolve("", "https://cdn.example.com/p.jpg"))
}

func TestRemoveIgnoresMissing(t *testing.T) {
	store := newTestStore(t)
	path := store.ProductFile(5)
	require.NoError(t, store.Save(path, strings.NewReader("jpeg bytes")))

	store.Remove(path, store.VariantFile(99), "")

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

// ============================================================================
// DOWNLOADER
// ============================================================================

type mockCatalog struct {
	mu           sync.Mutex
	refs         []catalog.ImageRef
	productPaths map[int64]string
	variantPaths map[int64]string
}

func newMockCatalog(refs []catalog.ImageRef) *mockCatalog {
	return &mockCatalog{
		refs:         refs,
		productPaths: make(map[int64]string),
		variantPaths: make(map[int64]string),
	}
}

func (m *mockCatalog) MissingImages(ctx context.Context) ([]catalog.ImageRef, error) {
	return m.refs, nil
}

func (m *mockCatalog) UpdateProductLocalPath(ctx context.Context, itemID int64, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.productPaths[itemID] = path
	return nil
}

func (m *mockCatalog) UpdateVariantLocalPath(ctx context.Context, variantID int64, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.variantPaths[variantID] = path
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDownloaderCachesAndRecordsPaths(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("jpeg bytes"))
	}))
	t.Cleanup(srv.Close)

	store := newTestStore(t)
	repo := newMockCatalog([]catalog.ImageRef{
		{Kind: "product", ID: 5, URL: srv.URL + "/p.jpg"},
		{Kind: "variant", ID: 50, URL: srv.URL + "/v.jpg"},
	})
	dl := NewDownloader(discardLogger(), store, repo, 2)

	done, failed, err := dl.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, done)
	assert.Zero(t, failed)

	assert.Equal(t, store.ProductFile(5), repo.productPaths[5])
	assert.Equal(t, store.VariantFile(50), repo.variantPaths[50])
	data, err := os.ReadFile(store.ProductFile(5))
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))
}

func TestDownloaderRetriesThenSucceeds(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		failing := calls < 3
		mu.Unlock()
		if failing {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("jpeg bytes"))
	}))
	t.Cleanup(srv.Close)

	store := newTestStore(t)
	repo := newMockCatalog([]catalog.ImageRef{{Kind: "product", ID: 5, URL: srv.URL + "/p.jpg"}})
	dl := NewDownloader(discardLogger(), store, repo, 1)

	done, failed, err := dl.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, done)
	assert.Zero(t, failed)
	mu.Lock()
	assert.Equal(t, 3, calls)
	mu.Unlock()
}

func TestDownloaderCountsFailuresWithoutAborting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "bad") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("jpeg bytes"))
	}))
	t.Cleanup(srv.Close)

	store := newTestStore(t)
	repo := newMockCatalog([]catalog.ImageRef{
		{Kind: "product", ID: 5, URL: srv.URL + "/bad.jpg"},
		{Kind: "product", ID: 6, URL: srv.URL + "/ok.jpg"},
	})
	dl := NewDownloader(discardLogger(), store, repo, 2)

	done, failed, err := dl.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, done)
	assert.Equal(t, 1, failed)
	assert.NotContains(t, repo.productPaths, int64(5))
	assert.Contains(t, repo.productPaths, int64(6))
}
