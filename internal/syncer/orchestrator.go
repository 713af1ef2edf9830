package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/falconrep/falconrep/internal/catalog"
	"github.com/falconrep/falconrep/internal/customers"
	"github.com/falconrep/falconrep/internal/remote"
)

// ErrSyncInProgress is returned when a run is requested while another is
// still active. Runs never queue or overlap.
var ErrSyncInProgress = errors.New("syncer: sync already in progress")

// Stage names, in execution order.
const (
	StageCategories    = "categories"
	StageSubCategories = "subcategories"
	StageCustomers     = "customers"
	StageRoutes        = "routes"
	StageProducts      = "products"
)

// Progress is reported to the sink before each stage starts.
type Progress struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// ProgressFunc receives progress events. May be nil.
type ProgressFunc func(Progress)

// Remote is the slice of the backend client the orchestrator needs.
type Remote interface {
	MainCategories(ctx context.Context) ([]remote.Category, error)
	SubCategories(ctx context.Context, categoryID int64) ([]remote.SubCategory, error)
	Customers(ctx context.Context) ([]remote.Customer, error)
	Routes(ctx context.Context) ([]remote.Route, error)
	ProductStamps(ctx context.Context) ([]remote.ProductStamp, error)
	ProductDetails(ctx context.Context, ids []int64) ([]remote.ProductDetail, error)
}

// CatalogStore is the slice of the catalog repository the orchestrator needs.
type CatalogStore interface {
	ReplaceMainCategories(ctx context.Context, cats []catalog.MainCategory) error
	MainCategories(ctx context.Context) ([]catalog.MainCategory, error)
	ClearSubCategories(ctx context.Context) error
	InsertSubCategories(ctx context.Context, mainCategoryID int64, subs []catalog.SubCategory) error
	ProductMarkers(ctx context.Context) (map[int64]string, error)
	DeleteProducts(ctx context.Context, ids []int64) ([]string, error)
	UpsertProducts(ctx context.Context, products []catalog.Product) error
}

// CustomerStore is the slice of the customer repository the orchestrator
// needs.
type CustomerStore interface {
	ReplaceCustomers(ctx context.Context, cs []customers.Customer) error
	ReplaceRoutes(ctx context.Context, routes []customers.Route) error
}

// ImageCache removes cached files for deleted products.
type ImageCache interface {
	Remove(paths ...string)
}

// Clock records the last successful sync. May be nil.
type Clock interface {
	SetLastSync(ctx context.Context, at time.Time) error
}

// Result summarizes one completed run.
type Result struct {
	FetchedProducts int  `json:"fetched_products"`
	DeletedProducts int  `json:"deleted_products"`
	UpToDate        bool `json:"up_to_date"`
}

// Orchestrator runs the five sync stages in strict order, halting on the
// first stage failure. Completed stages are not rolled back; each stage
// leaves the store consistent on its own.
type Orchestrator struct {
	logger    *slog.Logger
	api       Remote
	catalog   CatalogStore
	customers CustomerStore
	images    ImageCache
	clock     Clock
	fanout    int
	batchSize int

	mu sync.Mutex
}

// NewOrchestrator constructs a sync orchestrator. clock may be nil.
func NewOrchestrator(logger *slog.Logger, api Remote, cat CatalogStore, cust CustomerStore, imgs ImageCache, clock Clock, fanout int) *Orchestrator {
	if fanout <= 0 {
		fanout = 1
	}
	return &Orchestrator{
		logger:    logger,
		api:       api,
		catalog:   cat,
		customers: cust,
		images:    imgs,
		clock:     clock,
		fanout:    fanout,
		batchSize: 50,
	}
}

// Run executes the pipeline. Only one run may be active at a time; a second
// caller gets ErrSyncInProgress instead of queueing.
func (o *Orchestrator) Run(ctx context.Context, progress ProgressFunc) (*Result, error) {
	if !o.mu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer o.mu.Unlock()

	report := func(stage, msg string) {
		if progress != nil {
			progress(Progress{Stage: stage, Message: msg})
		}
	}

	started := time.Now()
	var result Result

	stages := []struct {
		name string
		msg  string
		run  func(context.Context) error
	}{
		{StageCategories, "Syncing categories...", o.syncCategories},
		{StageSubCategories, "Syncing subcategories...", o.syncSubCategories},
		{StageCustomers, "Syncing customers...", o.syncCustomers},
		{StageRoutes, "Syncing routes...", o.syncRoutes},
		{StageProducts, "Syncing products...", func(ctx context.Context) error {
			return o.syncProducts(ctx, &result)
		}},
	}
	for _, stage := range stages {
		report(stage.name, stage.msg)
		if err := stage.run(ctx); err != nil {
			o.logger.Error("sync stage failed", slog.String("stage", stage.name), slog.Any("error", err))
			return nil, fmt.Errorf("syncer: stage %s: %w", stage.name, err)
		}
	}

	if o.clock != nil {
		if err := o.clock.SetLastSync(ctx, time.Now()); err != nil {
			o.logger.Warn("failed to record sync time", slog.Any("error", err))
		}
	}
	o.logger.Info("sync finished",
		slog.Duration("took", time.Since(started)),
		slog.Int("fetched", result.FetchedProducts),
		slog.Int("deleted", result.DeletedProducts),
		slog.Bool("up_to_date", result.UpToDate))
	return &result, nil
}

func (o *Orchestrator) syncCategories(ctx context.Context) error {
	cats, err := o.api.MainCategories(ctx)
	if err != nil {
		return err
	}
	out := make([]catalog.MainCategory, 0, len(cats))
	for _, c := range cats {
		out = append(out, catalog.MainCategory{ID: c.ID.Int64(), Name: c.Name})
	}
	return o.catalog.ReplaceMainCategories(ctx, out)
}

// syncSubCategories fans out one request per main category under a
// concurrency cap. The category list comes from the local table committed
// by stage 1, so the only network calls here are per-category and a failed
// category is logged and skipped rather than failing the stage.
func (o *Orchestrator) syncSubCategories(ctx context.Context) error {
	cats, err := o.catalog.MainCategories(ctx)
	if err != nil {
		return err
	}
	if err := o.catalog.ClearSubCategories(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.fanout)
	for _, c := range cats {
		mainID := c.ID
		g.Go(func() error {
			subs, err := o.api.SubCategories(ctx, mainID)
			if err != nil {
				o.logger.Warn("subcategory fetch failed",
					slog.Int64("category_id", mainID),
					slog.Any("error", err))
				return nil
			}
			out := make([]catalog.SubCategory, 0, len(subs))
			for _, s := range subs {
				out = append(out, catalog.SubCategory{ID: s.ID.Int64(), Name: s.Name, MainCategoryID: mainID})
			}
			if err := o.catalog.InsertSubCategories(ctx, mainID, out); err != nil {
				o.logger.Warn("subcategory store failed",
					slog.Int64("category_id", mainID),
					slog.Any("error", err))
			}
			return nil
		})
	}
	return g.Wait()
}

func (o *Orchestrator) syncCustomers(ctx context.Context) error {
	remoteCustomers, err := o.api.Customers(ctx)
	if err != nil {
		return err
	}
	out := make([]customers.Customer, 0, len(remoteCustomers))
	for _, c := range remoteCustomers {
		out = append(out, customers.Customer{
			Ref:           customers.SyncedRef(c.ID.Int64()),
			ShopName:      c.ShopName,
			ContactNumber: c.ContactNumber,
			Address:       c.Address,
			RouteID:       c.RouteID.Int64(),
			UserID:        c.UserID.Int64(),
		})
	}
	return o.customers.ReplaceCustomers(ctx, out)
}

func (o *Orchestrator) syncRoutes(ctx context.Context) error {
	routes, err := o.api.Routes(ctx)
	if err != nil {
		return err
	}
	out := make([]customers.Route, 0, len(routes))
	for _, r := range routes {
		out = append(out, customers.Route{ID: r.ID.Int64(), Name: r.Name, Code: r.Code})
	}
	return o.customers.ReplaceRoutes(ctx, out)
}

func (o *Orchestrator) syncProducts(ctx context.Context, result *Result) error {
	stamps, err := o.api.ProductStamps(ctx)
	if err != nil {
		return err
	}
	local, err := o.catalog.ProductMarkers(ctx)
	if err != nil {
		return err
	}

	diff := ComputeDiff(local, stamps)
	if diff.Empty() {
		result.UpToDate = true
		o.logger.Info("catalog already up to date")
		return nil
	}

	if len(diff.Delete) > 0 {
		orphaned, err := o.catalog.DeleteProducts(ctx, diff.Delete)
		if err != nil {
			return err
		}
		if o.images != nil {
			o.images.Remove(orphaned...)
		}
		result.DeletedProducts = len(diff.Delete)
	}

	for start := 0; start < len(diff.Fetch); start += o.batchSize {
		end := start + o.batchSize
		if end > len(diff.Fetch) {
			end = len(diff.Fetch)
		}
		details, err := o.api.ProductDetails(ctx, diff.Fetch[start:end])
		if err != nil {
			return err
		}
		batch := make([]catalog.Product, 0, len(details))
		for _, d := range details {
			batch = append(batch, toProduct(d))
		}
		if err := o.catalog.UpsertProducts(ctx, batch); err != nil {
			return err
		}
		result.FetchedProducts += len(batch)
	}
	return nil
}

func toProduct(d remote.ProductDetail) catalog.Product {
	p := catalog.Product{
		ItemID:          d.ItemID.Int64(),
		SubCategoryID:   d.SubCategoryID.Int64(),
		Name:            d.Name,
		Price:           d.Price.Float64(),
		Description:     d.Description,
		ImageURL:        d.MainImage,
		LastUpdated:     d.LastUpdated,
		BrandName:       d.BrandName,
		QtyPerBox:       d.QtyPerBox,
		BulkPrice:       d.BulkPrice.Float64(),
		CartoonPcs:      d.CartoonPcs,
		BulkDescription: d.BulkDescription,
		SKU:             d.SKU,
	}
	for _, v := range d.Variants {
		p.Variants = append(p.Variants, catalog.Variant{
			VariantID: v.VariantID.Int64(),
			ItemID:    p.ItemID,
			Name:      v.Name,
			SKU:       v.SKU,
			Price:     v.Price.Float64(),
			ImageURL:  v.PhotoURL,
		})
	}
	return p
}
