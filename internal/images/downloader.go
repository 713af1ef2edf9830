package images

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/falconrep/falconrep/internal/catalog"
)

const (
	maxAttempts  = 3
	retryDelay   = time.Second
	fetchTimeout = 30 * time.Second
)

// Catalog is the slice of the catalog repository the downloader needs.
type Catalog interface {
	MissingImages(ctx context.Context) ([]catalog.ImageRef, error)
	UpdateProductLocalPath(ctx context.Context, itemID int64, path string) error
	UpdateVariantLocalPath(ctx context.Context, variantID int64, path string) error
}

// Downloader fetches uncached product photos with bounded concurrency.
// Individual failures are logged and retried on the next run rather than
// failing the batch.
type Downloader struct {
	logger     *slog.Logger
	store      *Store
	repo       Catalog
	httpClient *http.Client
	workers    int
}

// NewDownloader constructs a downloader.
func NewDownloader(logger *slog.Logger, store *Store, repo Catalog, workers int) *Downloader {
	if workers <= 0 {
		workers = 1
	}
	return &Downloader{
		logger: logger,
		store:  store,
		repo:   repo,
		httpClient: &http.Client{
			Timeout: fetchTimeout,
		},
		workers: workers,
	}
}

// Run downloads every missing image and records its cache path. It returns
// how many images were cached and how many fetches failed.
func (d *Downloader) Run(ctx context.Context) (int, int, error) {
	refs, err := d.repo.MissingImages(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("images: list missing: %w", err)
	}

	var done, failed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			if err := d.fetchOne(ctx, ref); err != nil {
				failed.Add(1)
				d.logger.Warn("image download failed",
					slog.String("kind", ref.Kind),
					slog.Int64("id", ref.ID),
					slog.Any("error", err))
				return nil
			}
			done.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(done.Load()), int(failed.Load()), err
	}
	return int(done.Load()), int(failed.Load()), nil
}

func (d *Downloader) fetchOne(ctx context.Context, ref catalog.ImageRef) error {
	var path string
	switch ref.Kind {
	case "product":
		path = d.store.ProductFile(ref.ID)
	case "variant":
		path = d.store.VariantFile(ref.ID)
	default:
		return fmt.Errorf("images: unknown kind %q", ref.Kind)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
		}
		if lastErr = d.download(ctx, ref.URL, path); lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		return lastErr
	}

	switch ref.Kind {
	case "product":
		return d.repo.UpdateProductLocalPath(ctx, ref.ID, path)
	default:
		return d.repo.UpdateVariantLocalPath(ctx, ref.ID, path)
	}
}

func (d *Downloader) download(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("images: fetch returned status %d", resp.StatusCode)
	}
	return d.store.Save(path, resp.Body)
}
