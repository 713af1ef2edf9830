// Package uploader pushes finalized bills and day summaries to the backend.
// Local rows are only removed for order ids the backend echoes back, so an
// acknowledgment lost in transit re-uploads rather than loses a bill.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/falconrep/falconrep/internal/billing"
	"github.com/falconrep/falconrep/internal/remote"
	"github.com/falconrep/falconrep/internal/session"
)

// ErrPartialUpload indicates the backend acknowledged only part of a batch.
// The unacknowledged orders stay pending; the caller should retry later.
var ErrPartialUpload = errors.New("uploader: batch only partially acknowledged")

// ErrDayNotEnded indicates the daily upload was requested before the closing
// meter was recorded.
var ErrDayNotEnded = errors.New("uploader: working day not ended")

// RemoteAPI is the slice of the backend client this package needs.
type RemoteAPI interface {
	UploadBills(ctx context.Context, summary remote.UploadSummary, bills []remote.UploadBill) (*remote.UploadResult, error)
	UploadDailyData(ctx context.Context, summary remote.UploadSummary, bills []remote.UploadBill) (*remote.UploadResult, error)
}

// Orders is the slice of the billing repository this package needs.
type Orders interface {
	PendingOrders(ctx context.Context) ([]billing.Order, error)
	DeleteOrders(ctx context.Context, ids []int64) error
	PendingTotals(ctx context.Context) (float64, int, error)
}

// Sessions is the slice of the session store this package needs.
type Sessions interface {
	Current(ctx context.Context) (*session.RepSession, error)
	Day(ctx context.Context) (*session.DayRoute, error)
	ClearDay(ctx context.Context) error
}

// Report summarizes one upload run.
type Report struct {
	Uploaded  int `json:"uploaded"`
	Remaining int `json:"remaining"`
}

// Service implements the two upload flows.
type Service struct {
	logger   *slog.Logger
	api      RemoteAPI
	orders   Orders
	sessions Sessions
	now      func() time.Time
}

// NewService constructs an upload service.
func NewService(logger *slog.Logger, api RemoteAPI, orders Orders, sessions Sessions) *Service {
	return &Service{
		logger:   logger,
		api:      api,
		orders:   orders,
		sessions: sessions,
		now:      time.Now,
	}
}

// UploadBills pushes all pending bills without closing the day. A batch with
// nothing to send succeeds immediately.
func (s *Service) UploadBills(ctx context.Context) (*Report, error) {
	rep, err := s.sessions.Current(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := s.orders.PendingOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("uploader: load pending orders: %w", err)
	}
	if len(pending) == 0 {
		return &Report{}, nil
	}

	summary, err := s.buildSummary(ctx, rep, pending, false)
	if err != nil {
		return nil, err
	}
	res, err := s.api.UploadBills(ctx, summary, toUploadBills(pending))
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, pending, res)
}

// UploadDaily closes the working day: it pushes the day summary together
// with any pending bills and clears the day-route state once everything is
// acknowledged.
func (s *Service) UploadDaily(ctx context.Context) (*Report, error) {
	rep, err := s.sessions.Current(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := s.orders.PendingOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("uploader: load pending orders: %w", err)
	}

	summary, err := s.buildSummary(ctx, rep, pending, true)
	if err != nil {
		return nil, err
	}
	res, err := s.api.UploadDailyData(ctx, summary, toUploadBills(pending))
	if err != nil {
		return nil, err
	}
	report, err := s.settle(ctx, pending, res)
	if err != nil {
		return report, err
	}
	if err := s.sessions.ClearDay(ctx); err != nil {
		return report, err
	}
	return report, nil
}

func (s *Service) buildSummary(ctx context.Context, rep *session.RepSession, pending []billing.Order, daily bool) (remote.UploadSummary, error) {
	var total float64
	for _, o := range pending {
		total += o.TotalAmount
	}
	summary := remote.UploadSummary{
		RepID:      rep.RepID,
		RouteDate:  s.now().Format("2006-01-02"),
		TotalSales: total,
		TotalBills: len(pending),
	}

	day, err := s.sessions.Day(ctx)
	if err != nil {
		return remote.UploadSummary{}, err
	}
	if daily {
		if day == nil || !day.Ended {
			return remote.UploadSummary{}, ErrDayNotEnded
		}
	}
	if day != nil {
		summary.RouteID = day.RouteID
		summary.RouteDate = day.RouteDate
		summary.MeterStart = day.MeterStart
		summary.MeterEnd = day.MeterEnd
	}
	return summary, nil
}

// settle deletes exactly the orders the backend echoed back and classifies
// the outcome.
func (s *Service) settle(ctx context.Context, sent []billing.Order, res *remote.UploadResult) (*Report, error) {
	if !res.Success {
		return nil, fmt.Errorf("uploader: backend rejected batch: %s", res.Message)
	}
	synced := make([]int64, 0, len(res.SyncedOrderIDs))
	for _, id := range res.SyncedOrderIDs {
		synced = append(synced, id.Int64())
	}
	if err := s.orders.DeleteOrders(ctx, synced); err != nil {
		return nil, fmt.Errorf("uploader: delete acknowledged orders: %w", err)
	}

	report := &Report{Uploaded: len(synced), Remaining: len(sent) - len(synced)}
	s.logger.Info("bills uploaded",
		slog.Int("uploaded", report.Uploaded),
		slog.Int("remaining", report.Remaining))
	if report.Remaining > 0 {
		return report, fmt.Errorf("%w: %d of %d pending", ErrPartialUpload, report.Remaining, len(sent))
	}
	return report, nil
}

func toUploadBills(orders []billing.Order) []remote.UploadBill {
	bills := make([]remote.UploadBill, 0, len(orders))
	for _, o := range orders {
		bill := remote.UploadBill{
			LocalOrderID: o.OrderID,
			CustomerID:   o.Customer.Wire(),
			RepID:        o.RepID,
			BillDate:     o.OrderDate,
			TotalAmount:  o.TotalAmount,
		}
		for _, item := range o.Items {
			bill.Items = append(bill.Items, remote.UploadBillItem{
				VariantID:    item.VariantID,
				Quantity:     item.Quantity,
				PricePerUnit: item.EffectivePrice() * (1 - item.DiscountPct/100),
			})
		}
		bills = append(bills, bill)
	}
	return bills
}
