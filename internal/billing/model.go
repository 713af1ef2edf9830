package billing

import (
	"github.com/falconrep/falconrep/internal/customers"
)

// Order sync states.
const (
	StatusPending = "pending"
	StatusSynced  = "synced"
)

// OrderItem is one persisted bill line.
type OrderItem struct {
	ItemID       int64    `json:"item_id"`
	OrderID      int64    `json:"order_id"`
	VariantID    int64    `json:"variant_id"`
	ProductName  string   `json:"product_name"`
	Quantity     int      `json:"quantity"`
	PricePerUnit float64  `json:"price_per_unit"`
	CustomPrice  *float64 `json:"custom_price,omitempty"`
	DiscountPct  float64  `json:"discount_pct"`
}

// EffectivePrice is the unit price actually charged.
func (i OrderItem) EffectivePrice() float64 {
	if i.CustomPrice != nil {
		return *i.CustomPrice
	}
	return i.PricePerUnit
}

// Order is a finalized bill awaiting upload or already acknowledged.
type Order struct {
	OrderID      int64                 `json:"order_id"`
	Customer     customers.CustomerRef `json:"customer_id"`
	RepID        int64                 `json:"rep_id"`
	OrderDate    string                `json:"order_date"`
	TotalAmount  float64               `json:"total_amount"`
	BillDiscount float64               `json:"bill_discount"`
	SyncStatus   string                `json:"sync_status"`
	Items        []OrderItem           `json:"items,omitempty"`
}
