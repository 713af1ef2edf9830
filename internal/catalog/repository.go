package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/falconrep/falconrep/internal/platform/db"
	"github.com/falconrep/falconrep/internal/platform/httpx"
)

// Repository is the persistence surface for the cached catalog.
type Repository interface {
	ReplaceMainCategories(ctx context.Context, cats []MainCategory) error
	ClearSubCategories(ctx context.Context) error
	InsertSubCategories(ctx context.Context, mainCategoryID int64, subs []SubCategory) error

	ProductMarkers(ctx context.Context) (map[int64]string, error)
	// DeleteProducts removes products with their variants and returns the
	// cached image paths that became orphaned.
	DeleteProducts(ctx context.Context, ids []int64) ([]string, error)
	UpsertProducts(ctx context.Context, products []Product) error
	UpdateProductLocalPath(ctx context.Context, itemID int64, path string) error
	UpdateVariantLocalPath(ctx context.Context, variantID int64, path string) error
	MissingImages(ctx context.Context) ([]ImageRef, error)

	MainCategories(ctx context.Context) ([]MainCategory, error)
	SubCategoriesByMain(ctx context.Context, mainCategoryID int64) ([]SubCategory, error)
	AllProducts(ctx context.Context) ([]Product, error)
	ProductsBySubCategory(ctx context.Context, subCategoryID int64) ([]Product, error)
	ProductsByMainCategory(ctx context.Context, mainCategoryID int64) ([]Product, error)
	ProductByID(ctx context.Context, itemID int64) (*Product, error)
	SearchProducts(ctx context.Context, term string) ([]Product, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a catalog repository backed by PostgreSQL.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) ReplaceMainCategories(ctx context.Context, cats []MainCategory) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM main_categories`); err != nil {
			return fmt.Errorf("catalog: clear main categories: %w", err)
		}
		for _, c := range cats {
			if _, err := tx.Exec(ctx,
				`INSERT INTO main_categories (mc_id, mc_name) VALUES ($1, $2)`,
				c.ID, c.Name); err != nil {
				return fmt.Errorf("catalog: insert main category %d: %w", c.ID, err)
			}
		}
		return nil
	})
}

func (r *repository) ClearSubCategories(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sub_categories`)
	if err != nil {
		return fmt.Errorf("catalog: clear sub categories: %w", err)
	}
	return nil
}

func (r *repository) InsertSubCategories(ctx context.Context, mainCategoryID int64, subs []SubCategory) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, s := range subs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO sub_categories (sc_id, sc_name, main_category_id) VALUES ($1, $2, $3)
				 ON CONFLICT (sc_id) DO UPDATE SET sc_name = EXCLUDED.sc_name, main_category_id = EXCLUDED.main_category_id`,
				s.ID, s.Name, mainCategoryID); err != nil {
				return fmt.Errorf("catalog: insert sub category %d: %w", s.ID, err)
			}
		}
		return nil
	})
}

func (r *repository) ProductMarkers(ctx context.Context) (map[int64]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT item_id, last_updated FROM products`)
	if err != nil {
		return nil, fmt.Errorf("catalog: load markers: %w", err)
	}
	defer rows.Close()

	markers := make(map[int64]string)
	for rows.Next() {
		var id int64
		var marker string
		if err := rows.Scan(&id, &marker); err != nil {
			return nil, err
		}
		markers[id] = marker
	}
	return markers, rows.Err()
}

func (r *repository) DeleteProducts(ctx context.Context, ids []int64) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var orphaned []string
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT local_path FROM products WHERE item_id = ANY($1) AND local_path <> ''
			 UNION ALL
			 SELECT variant_local_path FROM variants WHERE item_id = ANY($1) AND variant_local_path <> ''`,
			ids)
		if err != nil {
			return fmt.Errorf("catalog: collect image paths: %w", err)
		}
		for rows.Next() {
			var p string
			if err := rows.Scan(&p); err != nil {
				rows.Close()
				return err
			}
			orphaned = append(orphaned, p)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM variants WHERE item_id = ANY($1)`, ids); err != nil {
			return fmt.Errorf("catalog: delete variants: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM products WHERE item_id = ANY($1)`, ids); err != nil {
			return fmt.Errorf("catalog: delete products: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orphaned, nil
}

func (r *repository) UpsertProducts(ctx context.Context, products []Product) error {
	if len(products) == 0 {
		return nil
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, p := range products {
			// local_path is deliberately left alone on update: the image
			// downloader owns it, and a marker change does not invalidate an
			// already cached file unless the URL changed.
			if _, err := tx.Exec(ctx,
				`INSERT INTO products
					(item_id, sub_category_id, name, price, description, image_url, local_path,
					 last_updated, brand_name, qty_per_box, bulk_price, cartoon_pcs, bulk_description, sku)
				 VALUES ($1, $2, $3, $4, $5, $6, '', $7, $8, $9, $10, $11, $12, $13)
				 ON CONFLICT (item_id) DO UPDATE SET
					sub_category_id = EXCLUDED.sub_category_id,
					name = EXCLUDED.name,
					price = EXCLUDED.price,
					description = EXCLUDED.description,
					image_url = EXCLUDED.image_url,
					local_path = CASE WHEN products.image_url = EXCLUDED.image_url THEN products.local_path ELSE '' END,
					last_updated = EXCLUDED.last_updated,
					brand_name = EXCLUDED.brand_name,
					qty_per_box = EXCLUDED.qty_per_box,
					bulk_price = EXCLUDED.bulk_price,
					cartoon_pcs = EXCLUDED.cartoon_pcs,
					bulk_description = EXCLUDED.bulk_description,
					sku = EXCLUDED.sku`,
				p.ItemID, p.SubCategoryID, p.Name, p.Price, p.Description, p.ImageURL,
				p.LastUpdated, p.BrandName, p.QtyPerBox, p.BulkPrice, p.CartoonPcs,
				p.BulkDescription, p.SKU); err != nil {
				return fmt.Errorf("catalog: upsert product %d: %w", p.ItemID, err)
			}

			if _, err := tx.Exec(ctx, `DELETE FROM variants WHERE item_id = $1`, p.ItemID); err != nil {
				return fmt.Errorf("catalog: reset variants for %d: %w", p.ItemID, err)
			}
			for _, v := range p.Variants {
				if _, err := tx.Exec(ctx,
					`INSERT INTO variants
						(variant_id, item_id, variant_name, variant_sku, variant_price, variant_image_url, variant_local_path)
					 VALUES ($1, $2, $3, $4, $5, $6, '')
					 ON CONFLICT (variant_id) DO UPDATE SET
						item_id = EXCLUDED.item_id,
						variant_name = EXCLUDED.variant_name,
						variant_sku = EXCLUDED.variant_sku,
						variant_price = EXCLUDED.variant_price,
						variant_image_url = EXCLUDED.variant_image_url,
						variant_local_path = ''`,
					v.VariantID, p.ItemID, v.Name, v.SKU, v.Price, v.ImageURL); err != nil {
					return fmt.Errorf("catalog: insert variant %d: %w", v.VariantID, err)
				}
			}
		}
		return nil
	})
}

func (r *repository) UpdateProductLocalPath(ctx context.Context, itemID int64, path string) error {
	_, err := r.pool.Exec(ctx, `UPDATE products SET local_path = $2 WHERE item_id = $1`, itemID, path)
	return err
}

func (r *repository) UpdateVariantLocalPath(ctx context.Context, variantID int64, path string) error {
	_, err := r.pool.Exec(ctx, `UPDATE variants SET variant_local_path = $2 WHERE variant_id = $1`, variantID, path)
	return err
}

func (r *repository) MissingImages(ctx context.Context) ([]ImageRef, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT 'product', item_id, image_url FROM products WHERE image_url <> '' AND local_path = ''
		 UNION ALL
		 SELECT 'variant', variant_id, variant_image_url FROM variants WHERE variant_image_url <> '' AND variant_local_path = ''`)
	if err != nil {
		return nil, fmt.Errorf("catalog: missing images: %w", err)
	}
	defer rows.Close()

	var refs []ImageRef
	for rows.Next() {
		var ref ImageRef
		if err := rows.Scan(&ref.Kind, &ref.ID, &ref.URL); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (r *repository) MainCategories(ctx context.Context) ([]MainCategory, error) {
	rows, err := r.pool.Query(ctx, `SELECT mc_id, mc_name FROM main_categories ORDER BY mc_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []MainCategory
	for rows.Next() {
		var c MainCategory
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (r *repository) SubCategoriesByMain(ctx context.Context, mainCategoryID int64) ([]SubCategory, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT sc_id, sc_name, main_category_id FROM sub_categories WHERE main_category_id = $1 ORDER BY sc_name`,
		mainCategoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []SubCategory
	for rows.Next() {
		var s SubCategory
		if err := rows.Scan(&s.ID, &s.Name, &s.MainCategoryID); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

const productColumns = `item_id, sub_category_id, name, price, description, image_url, local_path,
	last_updated, brand_name, qty_per_box, bulk_price, cartoon_pcs, bulk_description, sku`

func scanProducts(rows pgx.Rows) ([]Product, error) {
	defer rows.Close()
	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ItemID, &p.SubCategoryID, &p.Name, &p.Price, &p.Description,
			&p.ImageURL, &p.LocalPath, &p.LastUpdated, &p.BrandName, &p.QtyPerBox,
			&p.BulkPrice, &p.CartoonPcs, &p.BulkDescription, &p.SKU); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// AllProducts loads the whole cached catalog with variants attached. The
// full listing tops out at a few thousand rows, so two queries and an
// in-memory join are fine.
func (r *repository) AllProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	products, err := scanProducts(rows)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return products, nil
	}

	vrows, err := r.pool.Query(ctx,
		`SELECT variant_id, item_id, variant_name, variant_sku, variant_price, variant_image_url, variant_local_path
		 FROM variants ORDER BY variant_name`)
	if err != nil {
		return nil, err
	}
	defer vrows.Close()

	byItem := make(map[int64][]Variant)
	for vrows.Next() {
		var v Variant
		if err := vrows.Scan(&v.VariantID, &v.ItemID, &v.Name, &v.SKU, &v.Price, &v.ImageURL, &v.LocalPath); err != nil {
			return nil, err
		}
		byItem[v.ItemID] = append(byItem[v.ItemID], v)
	}
	if err := vrows.Err(); err != nil {
		return nil, err
	}
	for i := range products {
		products[i].Variants = byItem[products[i].ItemID]
	}
	return products, nil
}

func (r *repository) ProductsBySubCategory(ctx context.Context, subCategoryID int64) ([]Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE sub_category_id = $1 ORDER BY name`, subCategoryID)
	if err != nil {
		return nil, err
	}
	return scanProducts(rows)
}

func (r *repository) ProductsByMainCategory(ctx context.Context, mainCategoryID int64) ([]Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.item_id, p.sub_category_id, p.name, p.price, p.description, p.image_url, p.local_path,
			p.last_updated, p.brand_name, p.qty_per_box, p.bulk_price, p.cartoon_pcs, p.bulk_description, p.sku
		 FROM products p
		 JOIN sub_categories sc ON sc.sc_id = p.sub_category_id
		 WHERE sc.main_category_id = $1
		 ORDER BY p.name`, mainCategoryID)
	if err != nil {
		return nil, err
	}
	return scanProducts(rows)
}

func (r *repository) ProductByID(ctx context.Context, itemID int64) (*Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE item_id = $1`, itemID)
	var p Product
	err := row.Scan(&p.ItemID, &p.SubCategoryID, &p.Name, &p.Price, &p.Description,
		&p.ImageURL, &p.LocalPath, &p.LastUpdated, &p.BrandName, &p.QtyPerBox,
		&p.BulkPrice, &p.CartoonPcs, &p.BulkDescription, &p.SKU)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, httpx.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT variant_id, item_id, variant_name, variant_sku, variant_price, variant_image_url, variant_local_path
		 FROM variants WHERE item_id = $1 ORDER BY variant_name`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.VariantID, &v.ItemID, &v.Name, &v.SKU, &v.Price, &v.ImageURL, &v.LocalPath); err != nil {
			return nil, err
		}
		p.Variants = append(p.Variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) SearchProducts(ctx context.Context, term string) ([]Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE name ILIKE $1 OR sku ILIKE $1 OR brand_name ILIKE $1
		 ORDER BY name`, "%"+term+"%")
	if err != nil {
		return nil, err
	}
	return scanProducts(rows)
}
