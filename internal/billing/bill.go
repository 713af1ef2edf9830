// Package billing implements the in-progress bill and the offline order
// store it is finalized into.
package billing

import (
	"fmt"
	"sync"

	"github.com/falconrep/falconrep/internal/customers"
	"github.com/falconrep/falconrep/internal/platform/httpx"
)

// Line is one cart position, keyed by variant.
type Line struct {
	VariantID   int64    `json:"variant_id"`
	ItemID      int64    `json:"item_id"`
	ProductName string   `json:"product_name"`
	VariantName string   `json:"variant_name"`
	UnitPrice   float64  `json:"unit_price"`
	CustomPrice *float64 `json:"custom_price,omitempty"`
	Quantity    int      `json:"quantity"`
	DiscountPct float64  `json:"discount_pct"`
}

// EffectivePrice is the unit price after any manual override.
func (l Line) EffectivePrice() float64 {
	if l.CustomPrice != nil {
		return *l.CustomPrice
	}
	return l.UnitPrice
}

// Total is quantity times effective price, less the line discount.
func (l Line) Total() float64 {
	return float64(l.Quantity) * l.EffectivePrice() * (1 - l.DiscountPct/100)
}

// Bill is the mutable in-progress bill for one customer visit. It is an
// explicitly constructed aggregate passed to whoever needs it, guarded by a
// mutex because HTTP handlers and jobs may touch it concurrently.
type Bill struct {
	mu          sync.Mutex
	customer    customers.CustomerRef
	hasCustomer bool
	lines       []Line
	discountPct float64
	listeners   []func()
}

// NewBill constructs an empty bill.
func NewBill() *Bill {
	return &Bill{}
}

// AddListener registers a callback fired after every mutation. Listeners run
// outside the lock.
func (b *Bill) AddListener(fn func()) {
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
}

func (b *Bill) notify() {
	b.mu.Lock()
	listeners := make([]func(), len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// SetCustomer selects the customer the bill is for.
func (b *Bill) SetCustomer(ref customers.CustomerRef) {
	b.mu.Lock()
	b.customer = ref
	b.hasCustomer = true
	b.mu.Unlock()
	b.notify()
}

// Customer returns the selected customer, if any.
func (b *Bill) Customer() (customers.CustomerRef, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.customer, b.hasCustomer
}

// Add merges a line into the bill. An existing line for the same variant
// gains the quantity; price, override, and discount are refreshed from the
// incoming line.
func (b *Bill) Add(line Line) error {
	if line.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", httpx.ErrValidation)
	}
	if err := checkPct(line.DiscountPct); err != nil {
		return err
	}
	b.mu.Lock()
	merged := false
	for i := range b.lines {
		if b.lines[i].VariantID == line.VariantID {
			line.Quantity += b.lines[i].Quantity
			b.lines[i] = line
			merged = true
			break
		}
	}
	if !merged {
		b.lines = append(b.lines, line)
	}
	b.mu.Unlock()
	b.notify()
	return nil
}

// SetQuantity changes a line's quantity. Zero or less removes the line.
func (b *Bill) SetQuantity(variantID int64, qty int) error {
	b.mu.Lock()
	idx := b.indexOf(variantID)
	if idx < 0 {
		b.mu.Unlock()
		return httpx.ErrNotFound
	}
	if qty <= 0 {
		b.lines = append(b.lines[:idx], b.lines[idx+1:]...)
	} else {
		b.lines[idx].Quantity = qty
	}
	b.mu.Unlock()
	b.notify()
	return nil
}

// SetCustomPrice overrides the unit price for one line. A nil price restores
// the catalog price.
func (b *Bill) SetCustomPrice(variantID int64, price *float64) error {
	if price != nil && *price < 0 {
		return fmt.Errorf("%w: price must not be negative", httpx.ErrValidation)
	}
	b.mu.Lock()
	idx := b.indexOf(variantID)
	if idx < 0 {
		b.mu.Unlock()
		return httpx.ErrNotFound
	}
	b.lines[idx].CustomPrice = price
	b.mu.Unlock()
	b.notify()
	return nil
}

// SetLineDiscount sets the percentage discount for one line.
func (b *Bill) SetLineDiscount(variantID int64, pct float64) error {
	if err := checkPct(pct); err != nil {
		return err
	}
	b.mu.Lock()
	idx := b.indexOf(variantID)
	if idx < 0 {
		b.mu.Unlock()
		return httpx.ErrNotFound
	}
	b.lines[idx].DiscountPct = pct
	b.mu.Unlock()
	b.notify()
	return nil
}

// SetBillDiscount sets the whole-bill percentage discount. Out-of-range
// values are rejected before any state changes.
func (b *Bill) SetBillDiscount(pct float64) error {
	if err := checkPct(pct); err != nil {
		return err
	}
	b.mu.Lock()
	b.discountPct = pct
	b.mu.Unlock()
	b.notify()
	return nil
}

// BillDiscount returns the whole-bill percentage discount.
func (b *Bill) BillDiscount() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.discountPct
}

// Remove deletes one line.
func (b *Bill) Remove(variantID int64) error {
	return b.SetQuantity(variantID, 0)
}

// Lines returns a copy of the current lines in insertion order.
func (b *Bill) Lines() []Line {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Line, len(b.lines))
	copy(out, b.lines)
	return out
}

// Subtotal sums all line totals before the bill discount.
func (b *Bill) Subtotal() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subtotalLocked()
}

func (b *Bill) subtotalLocked() float64 {
	var sum float64
	for _, l := range b.lines {
		sum += l.Total()
	}
	return sum
}

// Total applies the bill discount to the subtotal.
func (b *Bill) Total() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subtotalLocked() * (1 - b.discountPct/100)
}

// ItemCount returns the number of distinct lines.
func (b *Bill) ItemCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}

// Clear resets the bill to empty, keeping listeners.
func (b *Bill) Clear() {
	b.mu.Lock()
	b.lines = nil
	b.discountPct = 0
	b.customer = customers.CustomerRef{}
	b.hasCustomer = false
	b.mu.Unlock()
	b.notify()
}

func (b *Bill) indexOf(variantID int64) int {
	for i := range b.lines {
		if b.lines[i].VariantID == variantID {
			return i
		}
	}
	return -1
}

func checkPct(pct float64) error {
	if pct < 0 || pct > 100 {
		return fmt.Errorf("%w: discount must be between 0 and 100", httpx.ErrValidation)
	}
	return nil
}
