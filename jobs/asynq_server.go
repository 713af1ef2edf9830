package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/hibiken/asynq"

	"github.com/falconrep/falconrep/internal/platform/httpx"
)

// TaskHandler binds a task type to its handler function.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration schedules a task on a cron spec.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig carries everything needed to run the background worker.
type WorkerConfig struct {
	RedisOpts asynq.RedisClientOpt
	Logger    *slog.Logger
	Handlers  []TaskHandler
	Cron      []CronRegistration
}

// Worker wraps the asynq server and optional scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// NewWorker builds a worker from the given configuration.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: 5,
		Queues:      map[string]int{QueueDefault: 1},
	})

	mux := asynq.NewServeMux()
	for _, h := range cfg.Handlers {
		mux.HandleFunc(h.Type, h.Handler)
	}

	var scheduler *asynq.Scheduler
	if len(cfg.Cron) > 0 {
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		for _, c := range cfg.Cron {
			if _, err := scheduler.Register(c.Spec, c.Task, c.Options...); err != nil {
				return nil, fmt.Errorf("jobs: register cron %q: %w", c.Spec, err)
			}
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: cfg.Logger}, nil
}

// Run starts the worker and blocks until ctx is cancelled or the server fails.
func (w *Worker) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		if err := w.server.Run(w.mux); err != nil {
			errCh <- fmt.Errorf("jobs: asynq server: %w", err)
		}
	}()

	if w.scheduler != nil {
		go func() {
			if err := w.scheduler.Run(); err != nil {
				errCh <- fmt.Errorf("jobs: asynq scheduler: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		w.logger.Info("shutting down background worker")
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
		return nil
	case err := <-errCh:
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
		return err
	}
}

// Client enqueues background tasks from the HTTP process.
type Client struct {
	client *asynq.Client
}

// NewClient builds an enqueue client over the shared Redis connection.
func NewClient(opts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(opts)}
}

// Enqueue submits a task for background processing.
func (c *Client) Enqueue(ctx context.Context, task *asynq.Task) (*asynq.TaskInfo, error) {
	return c.client.EnqueueContext(ctx, task)
}

// Close releases the underlying Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// LastSyncFunc reports when the catalog last synced successfully.
type LastSyncFunc func(ctx context.Context) (time.Time, error)

// Handler exposes queue health and job triggers over HTTP.
type Handler struct {
	logger    *slog.Logger
	inspector *asynq.Inspector
	client    *Client
	lastSync  LastSyncFunc
}

// NewHandler builds the jobs HTTP handler.
func NewHandler(logger *slog.Logger, opts asynq.RedisClientOpt, client *Client, lastSync LastSyncFunc) *Handler {
	return &Handler{logger: logger, inspector: asynq.NewInspector(opts), client: client, lastSync: lastSync}
}

// MountRoutes registers job routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/queue", h.queueInfo)
}

// MountTriggers registers the endpoints that enqueue background work.
// Triggers are rate limited harder than the rest of the API since each
// one costs a round of backend calls.
func (h *Handler) MountTriggers(r chi.Router) {
	r.Get("/sync/status", h.syncStatus)
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Post("/sync", h.trigger(NewCatalogSyncTask))
		r.Post("/uploads/bills", h.trigger(NewUploadBillsTask))
		r.Post("/uploads/daily", h.trigger(NewUploadDailyTask))
		r.Post("/uploads/customers", h.trigger(NewUploadCustomersTask))
		r.Post("/images/download", h.trigger(NewImageDownloadTask))
	})
}

func (h *Handler) syncStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{}
	if h.lastSync != nil {
		at, err := h.lastSync(r.Context())
		if err != nil {
			h.logger.Error("read last sync", "error", err)
			httpx.RespondError(w, err)
			return
		}
		if !at.IsZero() {
			status["last_sync"] = at
		}
	}
	if info, err := h.inspector.GetQueueInfo(QueueDefault); err == nil {
		status["pending_jobs"] = info.Pending
		status["active_jobs"] = info.Active
	}
	httpx.JSON(w, http.StatusOK, status)
}

func (h *Handler) trigger(build func(string) (*asynq.Task, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		task, err := build("api")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		info, err := h.client.Enqueue(r.Context(), task)
		if errors.Is(err, asynq.ErrDuplicateTask) {
			httpx.Problem(w, http.StatusConflict, "Already Queued",
				fmt.Sprintf("a %s job is already queued or running", task.Type()))
			return
		}
		if err != nil {
			h.logger.Error("enqueue task", "type", task.Type(), "error", err)
			httpx.RespondError(w, fmt.Errorf("jobs: enqueue %s: %w", task.Type(), err))
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]any{
			"task_id": info.ID,
			"type":    info.Type,
			"queue":   info.Queue,
		})
	}
}

func (h *Handler) queueInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	if err != nil {
		h.logger.Error("queue info", "error", err)
		httpx.RespondError(w, fmt.Errorf("jobs: queue info: %w", err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"queue":     info.Queue,
		"size":      info.Size,
		"pending":   info.Pending,
		"active":    info.Active,
		"retry":     info.Retry,
		"archived":  info.Archived,
		"completed": info.Completed,
	})
}

// decodePayload unmarshals a task payload, marking malformed payloads as
// non-retryable.
func decodePayload(t *asynq.Task, v any) error {
	if err := json.Unmarshal(t.Payload(), v); err != nil {
		return fmt.Errorf("jobs: decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return nil
}
