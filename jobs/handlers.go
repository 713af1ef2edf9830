package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/falconrep/falconrep/internal/customers"
	"github.com/falconrep/falconrep/internal/images"
	"github.com/falconrep/falconrep/internal/platform/httpx"
	"github.com/falconrep/falconrep/internal/syncer"
	"github.com/falconrep/falconrep/internal/uploader"
)

// CatalogSyncer runs the staged catalog sync.
type CatalogSyncer interface {
	Run(ctx context.Context, progress syncer.ProgressFunc) (*syncer.Result, error)
}

// ImageFetcher downloads uncached product photos.
type ImageFetcher interface {
	Run(ctx context.Context) (done int, failed int, err error)
}

// CustomerUploader pushes offline-created customers to the backend.
type CustomerUploader interface {
	UploadPending(ctx context.Context) (int, error)
}

// BillUploader pushes pending bills and day summaries.
type BillUploader interface {
	UploadBills(ctx context.Context) (*uploader.Report, error)
	UploadDaily(ctx context.Context) (*uploader.Report, error)
}

// ErrOfflineRetry marks a run skipped for lack of connectivity. The task
// retries on the normal backoff schedule.
var ErrOfflineRetry = errors.New("backend unreachable, retrying later")

// Handlers wires domain services into asynq task handlers.
type Handlers struct {
	logger    *slog.Logger
	syncer    CatalogSyncer
	images    ImageFetcher
	customers CustomerUploader
	bills     BillUploader
	online    func(ctx context.Context) bool
	enqueue   func(ctx context.Context, task *asynq.Task) (*asynq.TaskInfo, error)
}

// NewHandlers builds the task handler set. online gates network-bound
// tasks and may be nil. enqueue may be nil, in which case a finished
// sync does not chain an image download.
func NewHandlers(logger *slog.Logger, sync CatalogSyncer, imgs ImageFetcher, cust CustomerUploader, bills BillUploader, online func(ctx context.Context) bool, enqueue func(ctx context.Context, task *asynq.Task) (*asynq.TaskInfo, error)) *Handlers {
	return &Handlers{
		logger:    logger,
		syncer:    sync,
		images:    imgs,
		customers: cust,
		bills:     bills,
		online:    online,
		enqueue:   enqueue,
	}
}

func (h *Handlers) requireOnline(ctx context.Context, task string) error {
	if h.online != nil && !h.online(ctx) {
		h.logger.Info("skipping task while offline", "type", task)
		return fmt.Errorf("jobs: %s: %w", task, ErrOfflineRetry)
	}
	return nil
}

// TaskHandlers returns the type-to-handler bindings for the worker mux.
func (h *Handlers) TaskHandlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskCatalogSync, Handler: h.handleCatalogSync},
		{Type: TaskImageDownload, Handler: h.handleImageDownload},
		{Type: TaskUploadCustomers, Handler: h.handleUploadCustomers},
		{Type: TaskUploadBills, Handler: h.handleUploadBills},
		{Type: TaskUploadDaily, Handler: h.handleUploadDaily},
	}
}

func (h *Handlers) handleCatalogSync(ctx context.Context, t *asynq.Task) error {
	var p TriggerPayload
	if err := decodePayload(t, &p); err != nil {
		return err
	}
	if err := h.requireOnline(ctx, t.Type()); err != nil {
		return err
	}

	result, err := h.syncer.Run(ctx, func(pr syncer.Progress) {
		h.logger.Info("sync progress", "stage", pr.Stage, "message", pr.Message)
	})
	switch {
	case errors.Is(err, syncer.ErrSyncInProgress):
		h.logger.Info("sync already running, dropping trigger", "source", p.Source)
		return fmt.Errorf("jobs: %v: %w", err, asynq.SkipRetry)
	case err != nil:
		return fmt.Errorf("jobs: catalog sync: %w", err)
	}

	h.logger.Info("catalog sync finished",
		"fetched", result.FetchedProducts,
		"deleted", result.DeletedProducts,
		"up_to_date", result.UpToDate,
	)

	if h.enqueue != nil && !result.UpToDate {
		if task, terr := NewImageDownloadTask("after-sync"); terr == nil {
			if _, err := h.enqueue(ctx, task); err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
				h.logger.Warn("could not enqueue image download", "error", err)
			}
		}
	}
	return nil
}

func (h *Handlers) handleImageDownload(ctx context.Context, t *asynq.Task) error {
	var p TriggerPayload
	if err := decodePayload(t, &p); err != nil {
		return err
	}
	if err := h.requireOnline(ctx, t.Type()); err != nil {
		return err
	}

	done, failed, err := h.images.Run(ctx)
	if err != nil {
		return fmt.Errorf("jobs: image download: %w", err)
	}
	h.logger.Info("image download finished", "done", done, "failed", failed)
	if failed > 0 {
		// Failed images stay missing and are picked up by the next run.
		return fmt.Errorf("jobs: image download: %d of %d failed", failed, done+failed)
	}
	return nil
}

func (h *Handlers) handleUploadCustomers(ctx context.Context, t *asynq.Task) error {
	var p TriggerPayload
	if err := decodePayload(t, &p); err != nil {
		return err
	}
	if err := h.requireOnline(ctx, t.Type()); err != nil {
		return err
	}

	uploaded, err := h.customers.UploadPending(ctx)
	if err != nil {
		return fmt.Errorf("jobs: customer upload after %d: %w", uploaded, err)
	}
	h.logger.Info("customer upload finished", "uploaded", uploaded)
	return nil
}

func (h *Handlers) handleUploadBills(ctx context.Context, t *asynq.Task) error {
	var p TriggerPayload
	if err := decodePayload(t, &p); err != nil {
		return err
	}
	if err := h.requireOnline(ctx, t.Type()); err != nil {
		return err
	}
	report, err := h.bills.UploadBills(ctx)
	return h.finishUpload("bills", report, err)
}

func (h *Handlers) handleUploadDaily(ctx context.Context, t *asynq.Task) error {
	var p TriggerPayload
	if err := decodePayload(t, &p); err != nil {
		return err
	}
	if err := h.requireOnline(ctx, t.Type()); err != nil {
		return err
	}
	report, err := h.bills.UploadDaily(ctx)
	return h.finishUpload("daily", report, err)
}

// finishUpload maps an upload outcome onto asynq retry semantics. A
// partially acknowledged batch retries so the leftovers go out again,
// while a missing session or an unfinished day cannot be fixed by
// retrying and archives instead.
func (h *Handlers) finishUpload(kind string, report *uploader.Report, err error) error {
	switch {
	case err == nil:
		h.logger.Info("upload finished", "kind", kind, "uploaded", report.Uploaded)
		return nil
	case errors.Is(err, uploader.ErrPartialUpload):
		h.logger.Warn("upload partially acknowledged",
			"kind", kind, "uploaded", report.Uploaded, "remaining", report.Remaining)
		return fmt.Errorf("jobs: %s upload: %w", kind, err)
	case errors.Is(err, httpx.ErrUnauthorized), errors.Is(err, uploader.ErrDayNotEnded):
		h.logger.Warn("upload dropped", "kind", kind, "reason", err)
		return fmt.Errorf("jobs: %s upload: %v: %w", kind, err, asynq.SkipRetry)
	default:
		return fmt.Errorf("jobs: %s upload: %w", kind, err)
	}
}

var (
	_ CatalogSyncer    = (*syncer.Orchestrator)(nil)
	_ ImageFetcher     = (*images.Downloader)(nil)
	_ CustomerUploader = (*customers.Service)(nil)
	_ BillUploader     = (*uploader.Service)(nil)
)
