// Package remote implements the client for the Falcon Stationery backend API.
package remote

// Category is a top-level catalog category as returned by the backend.
type Category struct {
	ID   FlexInt64 `json:"CategoryID"`
	Name string    `json:"CategoryName"`
}

// SubCategory belongs to exactly one main category.
type SubCategory struct {
	ID   FlexInt64 `json:"SubCategoryID"`
	Name string    `json:"SubCategoryName"`
}

// Customer is a shop assigned to a sales representative.
type Customer struct {
	ID            FlexInt64 `json:"customer_id"`
	ShopName      string    `json:"shop_name"`
	ContactNumber string    `json:"contact_number"`
	Address       string    `json:"address"`
	RouteID       FlexInt64 `json:"route_id"`
	UserID        FlexInt64 `json:"user_id"`
}

// Route is a delivery route a representative can work for a day.
type Route struct {
	ID   FlexInt64 `json:"route_id"`
	Name string    `json:"route_name"`
	Code string    `json:"route_code"`
}

// ProductStamp is the lightweight change marker for one product. LastUpdated
// is an opaque string compared only for equality, never parsed.
type ProductStamp struct {
	ItemID       FlexInt64 `json:"ItemID"`
	LastUpdated  string    `json:"LastUpdated"`
	Availability string    `json:"AvailabilityStatus"`
}

// Variant is a sellable variation of a product.
type Variant struct {
	VariantID FlexInt64   `json:"VariantID"`
	Name      string      `json:"VariantName"`
	SKU       string      `json:"SKU"`
	Price     FlexFloat64 `json:"Price"`
	PhotoURL  string      `json:"ProductPhoto"`
}

// ProductDetail is the full product payload from the detail endpoint.
type ProductDetail struct {
	ItemID          FlexInt64   `json:"ItemID"`
	SubCategoryID   FlexInt64   `json:"SubCategoryID"`
	Name            string      `json:"Name"`
	Price           FlexFloat64 `json:"Price"`
	Description     string      `json:"Description"`
	MainImage       string      `json:"MainImage"`
	LastUpdated     string      `json:"LastUpdated"`
	BrandName       string      `json:"BrandName"`
	QtyPerBox       string      `json:"QtyPerBox"`
	BulkPrice       FlexFloat64 `json:"BulkPrice"`
	CartoonPcs      string      `json:"CartoonPcs"`
	BulkDescription string      `json:"Bulk_Description"`
	SKU             string      `json:"SKU"`
	Variants        []Variant   `json:"variants"`
}

// LoginResult carries the representative identity on success.
type LoginResult struct {
	Status   string    `json:"status"`
	RepID    FlexInt64 `json:"rep_id"`
	Username string    `json:"username"`
	FullName string    `json:"full_name"`
	Message  string    `json:"message"`
}

// NewCustomer is the payload for creating a customer on the backend.
type NewCustomer struct {
	ShopName      string `json:"shop_name"`
	ContactNumber string `json:"contact_number"`
	Address       string `json:"address"`
	RouteID       int64  `json:"route_id"`
	UserID        int64  `json:"user_id"`
}

// UploadSummary describes one working day for the daily upload.
type UploadSummary struct {
	RepID      int64   `json:"rep_id"`
	RouteID    int64   `json:"route_id"`
	RouteDate  string  `json:"route_date"`
	MeterStart int64   `json:"meter_start"`
	MeterEnd   int64   `json:"meter_end"`
	TotalSales float64 `json:"total_sales"`
	TotalBills int     `json:"total_bills"`
}

// UploadBillItem is one line of an uploaded bill.
type UploadBillItem struct {
	VariantID    int64   `json:"variant_id"`
	Quantity     int     `json:"quantity"`
	PricePerUnit float64 `json:"price_per_unit"`
}

// UploadBill is one finalized bill in an upload batch. LocalOrderID lets the
// backend echo back which bills it persisted.
type UploadBill struct {
	LocalOrderID int64            `json:"local_order_id"`
	CustomerID   int64            `json:"customer_id"`
	RepID        int64            `json:"rep_id"`
	BillDate     string           `json:"bill_date"`
	TotalAmount  float64          `json:"total_amount"`
	Items        []UploadBillItem `json:"items"`
}

// UploadResult is the backend acknowledgment for an upload batch. Only the
// order ids echoed in SyncedOrderIDs may be treated as durably stored.
type UploadResult struct {
	Success        bool        `json:"success"`
	Message        string      `json:"message"`
	SyncedOrderIDs []FlexInt64 `json:"synced_order_ids"`
}
