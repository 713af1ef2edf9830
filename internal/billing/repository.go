package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/falconrep/falconrep/internal/customers"
	"github.com/falconrep/falconrep/internal/platform/db"
	"github.com/falconrep/falconrep/internal/platform/httpx"
)

// VariantInfo is the catalog data a cart line is built from.
type VariantInfo struct {
	VariantID   int64
	ItemID      int64
	VariantName string
	ProductName string
	Price       float64
}

// Repository is the persistence surface for offline orders.
type Repository interface {
	LookupVariant(ctx context.Context, variantID int64) (*VariantInfo, error)
	SaveOrder(ctx context.Context, order Order) (int64, error)
	ListOrders(ctx context.Context) ([]Order, error)
	GetOrder(ctx context.Context, orderID int64) (*Order, error)
	PendingOrders(ctx context.Context) ([]Order, error)
	// DeleteOrders removes acknowledged orders together with their lines.
	DeleteOrders(ctx context.Context, ids []int64) error
	// PendingTotals returns the summed amount and count of pending orders.
	PendingTotals(ctx context.Context) (float64, int, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a billing repository backed by PostgreSQL.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) LookupVariant(ctx context.Context, variantID int64) (*VariantInfo, error) {
	var v VariantInfo
	err := r.pool.QueryRow(ctx,
		`SELECT v.variant_id, v.item_id, v.variant_name, p.name, v.variant_price
		 FROM variants v
		 JOIN products p ON p.item_id = v.item_id
		 WHERE v.variant_id = $1`, variantID).
		Scan(&v.VariantID, &v.ItemID, &v.VariantName, &v.ProductName, &v.Price)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, httpx.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *repository) SaveOrder(ctx context.Context, order Order) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO offline_orders (customer_id, rep_id, order_date, total_amount, bill_discount, sync_status)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING order_id`,
			order.Customer.Wire(), order.RepID, order.OrderDate, order.TotalAmount,
			order.BillDiscount, StatusPending).Scan(&id)
		if err != nil {
			return fmt.Errorf("billing: insert order: %w", err)
		}
		for _, item := range order.Items {
			if _, err := tx.Exec(ctx,
				`INSERT INTO offline_order_items
					(order_id, variant_id, product_name, quantity, price_per_unit, custom_price_per_unit, discount_percentage)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				id, item.VariantID, item.ProductName, item.Quantity,
				item.PricePerUnit, item.CustomPrice, item.DiscountPct); err != nil {
				return fmt.Errorf("billing: insert order item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

const orderColumns = `order_id, customer_id, rep_id, order_date, total_amount, bill_discount, sync_status`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var wireID int64
	err := row.Scan(&o.OrderID, &wireID, &o.RepID, &o.OrderDate, &o.TotalAmount, &o.BillDiscount, &o.SyncStatus)
	if err != nil {
		return nil, err
	}
	o.Customer = customers.RefFromWire(wireID)
	return &o, nil
}

func (r *repository) listWhere(ctx context.Context, where string, args ...any) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM offline_orders `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := r.orderItems(ctx, orders[i].OrderID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (r *repository) orderItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT item_id, order_id, variant_id, product_name, quantity, price_per_unit, custom_price_per_unit, discount_percentage
		 FROM offline_order_items WHERE order_id = $1 ORDER BY item_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ItemID, &it.OrderID, &it.VariantID, &it.ProductName,
			&it.Quantity, &it.PricePerUnit, &it.CustomPrice, &it.DiscountPct); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *repository) ListOrders(ctx context.Context) ([]Order, error) {
	return r.listWhere(ctx, `ORDER BY order_id DESC`)
}

func (r *repository) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM offline_orders WHERE order_id = $1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, httpx.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	items, err := r.orderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (r *repository) PendingOrders(ctx context.Context) ([]Order, error) {
	return r.listWhere(ctx, `WHERE sync_status = $1 ORDER BY order_id`, StatusPending)
}

func (r *repository) DeleteOrders(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM offline_orders WHERE order_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("billing: delete orders: %w", err)
	}
	return nil
}

func (r *repository) PendingTotals(ctx context.Context) (float64, int, error) {
	var total float64
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_amount), 0), COUNT(*) FROM offline_orders WHERE sync_status = $1`,
		StatusPending).Scan(&total, &count)
	if err != nil {
		return 0, 0, err
	}
	return total, count, nil
}
