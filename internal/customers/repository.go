package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/falconrep/falconrep/internal/platform/db"
	"github.com/falconrep/falconrep/internal/platform/httpx"
)

// Repository is the persistence surface for customers and routes.
type Repository interface {
	ReplaceCustomers(ctx context.Context, customers []Customer) error
	ReplaceRoutes(ctx context.Context, routes []Route) error
	Routes(ctx context.Context) ([]Route, error)

	// ListCombined returns pending customers first, then synced ones, each
	// joined to its route name.
	ListCombined(ctx context.Context) ([]Customer, error)
	Get(ctx context.Context, ref CustomerRef) (*Customer, error)

	InsertSynced(ctx context.Context, serverID int64, in CustomerInput) error
	UpdateSynced(ctx context.Context, serverID int64, in CustomerInput) error
	DeleteSynced(ctx context.Context, serverID int64) error

	InsertPending(ctx context.Context, in CustomerInput) (int64, error)
	PendingCustomers(ctx context.Context) ([]Customer, error)
	UpdatePending(ctx context.Context, localID int64, in CustomerInput) error
	DeletePending(ctx context.Context, localID int64) error

	// Promote atomically removes a pending row and inserts the synced row
	// under the server-assigned id.
	Promote(ctx context.Context, localID, serverID int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a customer repository backed by PostgreSQL.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) ReplaceCustomers(ctx context.Context, customers []Customer) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM customers`); err != nil {
			return fmt.Errorf("customers: clear: %w", err)
		}
		for _, c := range customers {
			if _, err := tx.Exec(ctx,
				`INSERT INTO customers (customer_id, shop_name, contact_number, address, route_id, user_id)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				c.Ref.ID(), c.ShopName, c.ContactNumber, c.Address, c.RouteID, c.UserID); err != nil {
				return fmt.Errorf("customers: insert %d: %w", c.Ref.ID(), err)
			}
		}
		return nil
	})
}

func (r *repository) ReplaceRoutes(ctx context.Context, routes []Route) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM routes`); err != nil {
			return fmt.Errorf("customers: clear routes: %w", err)
		}
		for _, rt := range routes {
			if _, err := tx.Exec(ctx,
				`INSERT INTO routes (route_id, route_name, route_code) VALUES ($1, $2, $3)`,
				rt.ID, rt.Name, rt.Code); err != nil {
				return fmt.Errorf("customers: insert route %d: %w", rt.ID, err)
			}
		}
		return nil
	})
}

func (r *repository) Routes(ctx context.Context) ([]Route, error) {
	rows, err := r.pool.Query(ctx, `SELECT route_id, route_name, route_code FROM routes ORDER BY route_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []Route
	for rows.Next() {
		var rt Route
		if err := rows.Scan(&rt.ID, &rt.Name, &rt.Code); err != nil {
			return nil, err
		}
		routes = append(routes, rt)
	}
	return routes, rows.Err()
}

func (r *repository) ListCombined(ctx context.Context) ([]Customer, error) {
	pending, err := r.PendingCustomers(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT c.customer_id, c.shop_name, c.contact_number, c.address, c.route_id, COALESCE(rt.route_name, ''), c.user_id
		 FROM customers c
		 LEFT JOIN routes rt ON rt.route_id = c.route_id
		 ORDER BY c.shop_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := pending
	for rows.Next() {
		var c Customer
		var id int64
		if err := rows.Scan(&id, &c.ShopName, &c.ContactNumber, &c.Address, &c.RouteID, &c.RouteName, &c.UserID); err != nil {
			return nil, err
		}
		c.Ref = SyncedRef(id)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, ref CustomerRef) (*Customer, error) {
	var (
		query string
		c     Customer
		id    int64
	)
	if ref.IsPending() {
		query = `SELECT p.local_id, p.shop_name, p.contact_number, p.address, p.route_id, COALESCE(rt.route_name, ''), p.user_id
			FROM pending_customers p
			LEFT JOIN routes rt ON rt.route_id = p.route_id
			WHERE p.local_id = $1`
	} else {
		query = `SELECT c.customer_id, c.shop_name, c.contact_number, c.address, c.route_id, COALESCE(rt.route_name, ''), c.user_id
			FROM customers c
			LEFT JOIN routes rt ON rt.route_id = c.route_id
			WHERE c.customer_id = $1`
	}
	err := r.pool.QueryRow(ctx, query, ref.ID()).Scan(&id, &c.ShopName, &c.ContactNumber, &c.Address, &c.RouteID, &c.RouteName, &c.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, httpx.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if ref.IsPending() {
		c.Ref = PendingRef(id)
	} else {
		c.Ref = SyncedRef(id)
	}
	return &c, nil
}

func (r *repository) InsertSynced(ctx context.Context, serverID int64, in CustomerInput) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO customers (customer_id, shop_name, contact_number, address, route_id, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (customer_id) DO UPDATE SET
			shop_name = EXCLUDED.shop_name,
			contact_number = EXCLUDED.contact_number,
			address = EXCLUDED.address,
			route_id = EXCLUDED.route_id,
			user_id = EXCLUDED.user_id`,
		serverID, in.ShopName, in.ContactNumber, in.Address, in.RouteID, in.UserID)
	return err
}

func (r *repository) UpdateSynced(ctx context.Context, serverID int64, in CustomerInput) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE customers SET shop_name = $2, contact_number = $3, address = $4, route_id = $5, user_id = $6
		 WHERE customer_id = $1`,
		serverID, in.ShopName, in.ContactNumber, in.Address, in.RouteID, in.UserID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) DeleteSynced(ctx context.Context, serverID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE customer_id = $1`, serverID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) InsertPending(ctx context.Context, in CustomerInput) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO pending_customers (shop_name, contact_number, address, route_id, user_id)
		 VALUES ($1, $2, $3, $4, $5) RETURNING local_id`,
		in.ShopName, in.ContactNumber, in.Address, in.RouteID, in.UserID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("customers: insert pending: %w", err)
	}
	return id, nil
}

func (r *repository) PendingCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.local_id, p.shop_name, p.contact_number, p.address, p.route_id, COALESCE(rt.route_name, ''), p.user_id
		 FROM pending_customers p
		 LEFT JOIN routes rt ON rt.route_id = p.route_id
		 ORDER BY p.local_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		var id int64
		if err := rows.Scan(&id, &c.ShopName, &c.ContactNumber, &c.Address, &c.RouteID, &c.RouteName, &c.UserID); err != nil {
			return nil, err
		}
		c.Ref = PendingRef(id)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) UpdatePending(ctx context.Context, localID int64, in CustomerInput) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE pending_customers SET shop_name = $2, contact_number = $3, address = $4, route_id = $5, user_id = $6
		 WHERE local_id = $1`,
		localID, in.ShopName, in.ContactNumber, in.Address, in.RouteID, in.UserID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) DeletePending(ctx context.Context, localID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM pending_customers WHERE local_id = $1`, localID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) Promote(ctx context.Context, localID, serverID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var in CustomerInput
		err := tx.QueryRow(ctx,
			`SELECT shop_name, contact_number, address, route_id, user_id FROM pending_customers WHERE local_id = $1`,
			localID).Scan(&in.ShopName, &in.ContactNumber, &in.Address, &in.RouteID, &in.UserID)
		if errors.Is(err, pgx.ErrNoRows) {
			return httpx.ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM pending_customers WHERE local_id = $1`, localID); err != nil {
			return fmt.Errorf("customers: promote delete %d: %w", localID, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO customers (customer_id, shop_name, contact_number, address, route_id, user_id)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (customer_id) DO NOTHING`,
			serverID, in.ShopName, in.ContactNumber, in.Address, in.RouteID, in.UserID); err != nil {
			return fmt.Errorf("customers: promote insert %d: %w", serverID, err)
		}
		return nil
	})
}
