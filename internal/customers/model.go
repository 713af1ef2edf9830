// Package customers manages the representative's customer book, including
// shops created offline that still await upload.
package customers

import (
	"encoding/json"
	"fmt"
)

// CustomerRef identifies a customer that is either already known to the
// backend (server id) or created offline and pending upload (local id). The
// two id spaces are unrelated, so the distinction is carried explicitly
// instead of through a sign convention.
type CustomerRef struct {
	pending bool
	id      int64
}

// SyncedRef refers to a customer by its backend id.
func SyncedRef(serverID int64) CustomerRef {
	return CustomerRef{id: serverID}
}

// PendingRef refers to an offline-created customer by its local row id.
func PendingRef(localID int64) CustomerRef {
	return CustomerRef{pending: true, id: localID}
}

// IsPending reports whether the customer only exists locally.
func (r CustomerRef) IsPending() bool { return r.pending }

// ID returns the id in whichever space the ref belongs to.
func (r CustomerRef) ID() int64 { return r.id }

// Wire returns the flat encoding: negated local id for pending customers.
func (r CustomerRef) Wire() int64 {
	if r.pending {
		return -r.id
	}
	return r.id
}

func (r CustomerRef) String() string {
	if r.pending {
		return fmt.Sprintf("pending:%d", r.id)
	}
	return fmt.Sprintf("synced:%d", r.id)
}

// MarshalJSON keeps the flat wire encoding consumed by the UI layer: pending
// customers are written as negated local ids.
func (r CustomerRef) MarshalJSON() ([]byte, error) {
	if r.pending {
		return json.Marshal(-r.id)
	}
	return json.Marshal(r.id)
}

// UnmarshalJSON decodes the flat encoding back into a tagged ref.
func (r *CustomerRef) UnmarshalJSON(data []byte) error {
	var raw int64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = RefFromWire(raw)
	return nil
}

// RefFromWire converts the flat id encoding into a tagged ref.
func RefFromWire(raw int64) CustomerRef {
	if raw < 0 {
		return PendingRef(-raw)
	}
	return SyncedRef(raw)
}

// Customer is one entry in the combined customer book.
type Customer struct {
	Ref           CustomerRef `json:"customer_id"`
	ShopName      string      `json:"shop_name"`
	ContactNumber string      `json:"contact_number"`
	Address       string      `json:"address"`
	RouteID       int64       `json:"route_id"`
	RouteName     string      `json:"route_name,omitempty"`
	UserID        int64       `json:"user_id"`
}

// Route is a delivery route cached from the backend.
type Route struct {
	ID   int64  `json:"route_id"`
	Name string `json:"route_name"`
	Code string `json:"route_code"`
}

// CustomerInput carries the editable customer fields.
type CustomerInput struct {
	ShopName      string `json:"shop_name" validate:"required,max=200"`
	ContactNumber string `json:"contact_number" validate:"omitempty,max=50"`
	Address       string `json:"address" validate:"omitempty,max=500"`
	RouteID       int64  `json:"route_id" validate:"required,gt=0"`
	UserID        int64  `json:"user_id" validate:"required,gt=0"`
}
