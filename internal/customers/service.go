package customers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/falconrep/falconrep/internal/platform/httpx"
	"github.com/falconrep/falconrep/internal/remote"
)

// RemoteAPI is the slice of the backend client this package needs.
type RemoteAPI interface {
	Online(ctx context.Context) bool
	AddCustomer(ctx context.Context, nc remote.NewCustomer) (int64, error)
	UpdateCustomer(ctx context.Context, customerID int64, nc remote.NewCustomer) error
	DeleteCustomer(ctx context.Context, customerID int64) error
}

// Service provides business logic for customer management. Creation works
// offline by parking the shop locally; edits and deletes of synced customers
// require connectivity because the backend owns those rows.
type Service struct {
	logger *slog.Logger
	repo   Repository
	api    RemoteAPI
}

// NewService constructs a customer service.
func NewService(logger *slog.Logger, repo Repository, api RemoteAPI) *Service {
	return &Service{logger: logger, repo: repo, api: api}
}

// List returns the combined customer book, pending entries first.
func (s *Service) List(ctx context.Context) ([]Customer, error) {
	out, err := s.repo.ListCombined(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return out, nil
}

// Get returns one customer by tagged ref.
func (s *Service) Get(ctx context.Context, ref CustomerRef) (*Customer, error) {
	return s.repo.Get(ctx, ref)
}

// Routes lists the cached delivery routes.
func (s *Service) Routes(ctx context.Context) ([]Route, error) {
	routes, err := s.repo.Routes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	return routes, nil
}

// Create registers a new shop. When the backend is reachable the customer is
// created there immediately; otherwise it is parked locally for the upload
// job.
func (s *Service) Create(ctx context.Context, in CustomerInput) (CustomerRef, error) {
	if s.api.Online(ctx) {
		serverID, err := s.api.AddCustomer(ctx, toRemote(in))
		switch {
		case err == nil:
			if err := s.repo.InsertSynced(ctx, serverID, in); err != nil {
				return CustomerRef{}, fmt.Errorf("store synced customer: %w", err)
			}
			return SyncedRef(serverID), nil
		case errors.Is(err, remote.ErrOffline):
			// Connectivity dropped between the probe and the call. Park it.
		default:
			return CustomerRef{}, err
		}
	}

	localID, err := s.repo.InsertPending(ctx, in)
	if err != nil {
		return CustomerRef{}, err
	}
	s.logger.Info("customer parked for upload", slog.Int64("local_id", localID), slog.String("shop", in.ShopName))
	return PendingRef(localID), nil
}

// Update edits a customer. Pending customers are edited locally; synced ones
// go through the backend first.
func (s *Service) Update(ctx context.Context, ref CustomerRef, in CustomerInput) error {
	if ref.IsPending() {
		return s.repo.UpdatePending(ctx, ref.ID(), in)
	}
	if !s.api.Online(ctx) {
		return fmt.Errorf("%w: editing a synced customer requires connectivity", httpx.ErrUnavailable)
	}
	if err := s.api.UpdateCustomer(ctx, ref.ID(), toRemote(in)); err != nil {
		if errors.Is(err, remote.ErrOffline) {
			return fmt.Errorf("%w: editing a synced customer requires connectivity", httpx.ErrUnavailable)
		}
		return err
	}
	return s.repo.UpdateSynced(ctx, ref.ID(), in)
}

// Delete removes a customer. Pending customers are dropped locally; synced
// ones are removed from the backend first.
func (s *Service) Delete(ctx context.Context, ref CustomerRef) error {
	if ref.IsPending() {
		return s.repo.DeletePending(ctx, ref.ID())
	}
	if !s.api.Online(ctx) {
		return fmt.Errorf("%w: deleting a synced customer requires connectivity", httpx.ErrUnavailable)
	}
	if err := s.api.DeleteCustomer(ctx, ref.ID()); err != nil {
		if errors.Is(err, remote.ErrOffline) {
			return fmt.Errorf("%w: deleting a synced customer requires connectivity", httpx.ErrUnavailable)
		}
		return err
	}
	return s.repo.DeleteSynced(ctx, ref.ID())
}

// UploadPending pushes parked customers to the backend one at a time,
// promoting each row atomically after the backend assigns its id. The first
// failure stops the run; remaining rows stay parked for the next attempt.
func (s *Service) UploadPending(ctx context.Context) (int, error) {
	pending, err := s.repo.PendingCustomers(ctx)
	if err != nil {
		return 0, fmt.Errorf("load pending customers: %w", err)
	}

	uploaded := 0
	for _, c := range pending {
		serverID, err := s.api.AddCustomer(ctx, remote.NewCustomer{
			ShopName:      c.ShopName,
			ContactNumber: c.ContactNumber,
			Address:       c.Address,
			RouteID:       c.RouteID,
			UserID:        c.UserID,
		})
		if err != nil {
			return uploaded, fmt.Errorf("upload customer %s: %w", c.Ref, err)
		}
		if err := s.repo.Promote(ctx, c.Ref.ID(), serverID); err != nil {
			return uploaded, fmt.Errorf("promote customer %s: %w", c.Ref, err)
		}
		uploaded++
		s.logger.Info("customer uploaded",
			slog.Int64("local_id", c.Ref.ID()),
			slog.Int64("server_id", serverID))
	}
	return uploaded, nil
}

func toRemote(in CustomerInput) remote.NewCustomer {
	return remote.NewCustomer{
		ShopName:      in.ShopName,
		ContactNumber: in.ContactNumber,
		Address:       in.Address,
		RouteID:       in.RouteID,
		UserID:        in.UserID,
	}
}
