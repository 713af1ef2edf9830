// Package catalog stores and serves the locally cached product catalog.
package catalog

// MainCategory is a top-level catalog grouping.
type MainCategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SubCategory belongs to exactly one main category.
type SubCategory struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	MainCategoryID int64  `json:"main_category_id"`
}

// Variant is a sellable variation of a product.
type Variant struct {
	VariantID int64   `json:"variant_id"`
	ItemID    int64   `json:"item_id"`
	Name      string  `json:"name"`
	SKU       string  `json:"sku"`
	Price     float64 `json:"price"`
	ImageURL  string  `json:"image_url"`
	LocalPath string  `json:"local_path"`
}

// Product is a locally cached catalog entry. LastUpdated is the opaque
// change marker copied from the backend, compared only for equality.
type Product struct {
	ItemID          int64     `json:"item_id"`
	SubCategoryID   int64     `json:"sub_category_id"`
	Name            string    `json:"name"`
	Price           float64   `json:"price"`
	Description     string    `json:"description"`
	ImageURL        string    `json:"image_url"`
	LocalPath       string    `json:"local_path"`
	LastUpdated     string    `json:"last_updated"`
	BrandName       string    `json:"brand_name"`
	QtyPerBox       string    `json:"qty_per_box"`
	BulkPrice       float64   `json:"bulk_price"`
	CartoonPcs      string    `json:"cartoon_pcs"`
	BulkDescription string    `json:"bulk_description"`
	SKU             string    `json:"sku"`
	Variants        []Variant `json:"variants,omitempty"`
}

// ImageRef points at one remote image that has not been cached yet.
type ImageRef struct {
	// Kind is "product" or "variant".
	Kind string
	// ID is the product item id or the variant id depending on Kind.
	ID  int64
	URL string
}
