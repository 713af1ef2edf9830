package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskCatalogSync runs the full catalog sync pipeline.
	TaskCatalogSync = "catalog:sync"
	// TaskImageDownload fetches uncached product photos.
	TaskImageDownload = "catalog:images"
	// TaskUploadBills pushes pending bills without closing the day.
	TaskUploadBills = "upload:bills"
	// TaskUploadDaily pushes the day summary plus any pending bills.
	TaskUploadDaily = "upload:daily"
	// TaskUploadCustomers pushes offline-created customers.
	TaskUploadCustomers = "upload:customers"
)

// TriggerPayload records who or what asked for a job run.
type TriggerPayload struct {
	RequestedAt time.Time `json:"requested_at"`
	Source      string    `json:"source"`
}

func newTriggerTask(taskType, source string, opts ...asynq.Option) (*asynq.Task, error) {
	body, err := json.Marshal(TriggerPayload{RequestedAt: time.Now().UTC(), Source: source})
	if err != nil {
		return nil, err
	}
	opts = append(opts, asynq.Queue(QueueDefault))
	return asynq.NewTask(taskType, body, opts...), nil
}

// NewCatalogSyncTask constructs a catalog sync task. Uniqueness keeps a
// second trigger from queueing while one is pending or running.
func NewCatalogSyncTask(source string) (*asynq.Task, error) {
	return newTriggerTask(TaskCatalogSync, source, asynq.Unique(10*time.Minute))
}

// NewImageDownloadTask constructs an image download task.
func NewImageDownloadTask(source string) (*asynq.Task, error) {
	return newTriggerTask(TaskImageDownload, source, asynq.Unique(10*time.Minute))
}

// NewUploadBillsTask constructs a bills-only upload task.
func NewUploadBillsTask(source string) (*asynq.Task, error) {
	return newTriggerTask(TaskUploadBills, source, asynq.Unique(5*time.Minute))
}

// NewUploadDailyTask constructs a daily upload task.
func NewUploadDailyTask(source string) (*asynq.Task, error) {
	return newTriggerTask(TaskUploadDaily, source, asynq.Unique(5*time.Minute))
}

// NewUploadCustomersTask constructs a customer upload task.
func NewUploadCustomersTask(source string) (*asynq.Task, error) {
	return newTriggerTask(TaskUploadCustomers, source, asynq.Unique(5*time.Minute))
}
