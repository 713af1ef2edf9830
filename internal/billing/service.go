package billing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/falconrep/falconrep/internal/platform/httpx"
)

// Service manages the active bill and its finalization into the order store.
type Service struct {
	logger *slog.Logger
	repo   Repository
	bill   *Bill
	now    func() time.Time
}

// NewService constructs a billing service around an injected bill aggregate.
func NewService(logger *slog.Logger, repo Repository, bill *Bill) *Service {
	return &Service{
		logger: logger,
		repo:   repo,
		bill:   bill,
		now:    time.Now,
	}
}

// Bill exposes the active bill aggregate.
func (s *Service) Bill() *Bill {
	return s.bill
}

// AddVariant resolves a variant against the catalog and merges it into the
// bill at its catalog price.
func (s *Service) AddVariant(ctx context.Context, variantID int64, qty int) error {
	info, err := s.repo.LookupVariant(ctx, variantID)
	if err != nil {
		return err
	}
	return s.bill.Add(Line{
		VariantID:   info.VariantID,
		ItemID:      info.ItemID,
		ProductName: info.ProductName,
		VariantName: info.VariantName,
		UnitPrice:   info.Price,
		Quantity:    qty,
	})
}

// Checkout finalizes the active bill into a pending offline order and clears
// the bill on success.
func (s *Service) Checkout(ctx context.Context, repID int64) (*Order, error) {
	customer, ok := s.bill.Customer()
	if !ok {
		return nil, fmt.Errorf("%w: no customer selected", httpx.ErrValidation)
	}
	lines := s.bill.Lines()
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: bill is empty", httpx.ErrValidation)
	}

	order := Order{
		Customer:     customer,
		RepID:        repID,
		OrderDate:    s.now().Format("2006-01-02 15:04:05"),
		TotalAmount:  s.bill.Total(),
		BillDiscount: s.bill.BillDiscount(),
		SyncStatus:   StatusPending,
	}
	for _, l := range lines {
		order.Items = append(order.Items, OrderItem{
			VariantID:    l.VariantID,
			ProductName:  l.ProductName,
			Quantity:     l.Quantity,
			PricePerUnit: l.UnitPrice,
			CustomPrice:  l.CustomPrice,
			DiscountPct:  l.DiscountPct,
		})
	}

	id, err := s.repo.SaveOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}
	order.OrderID = id
	s.bill.Clear()
	s.logger.Info("bill finalized",
		slog.Int64("order_id", id),
		slog.String("customer", customer.String()),
		slog.Float64("total", order.TotalAmount))
	return &order, nil
}

// Orders lists all stored orders, newest first.
func (s *Service) Orders(ctx context.Context) ([]Order, error) {
	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// Pending lists the orders billed today that still await upload. Older
// pending orders stay queued for the uploader but are not part of the
// current route day's view.
func (s *Service) Pending(ctx context.Context) ([]Order, error) {
	orders, err := s.repo.PendingOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	today := s.now().Format("2006-01-02")
	var out []Order
	for _, o := range orders {
		if strings.HasPrefix(o.OrderDate, today) {
			out = append(out, o)
		}
	}
	return out, nil
}

// Order returns one stored order with its lines.
func (s *Service) Order(ctx context.Context, orderID int64) (*Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}
