package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/falconrep/falconrep/internal/platform/httpx"
)

// Service provides read access to the cached catalog.
type Service struct {
	repo Repository
}

// NewService constructs a catalog service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Categories lists all main categories ordered by name.
func (s *Service) Categories(ctx context.Context) ([]MainCategory, error) {
	cats, err := s.repo.MainCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// SubCategories lists the subcategories of one main category.
func (s *Service) SubCategories(ctx context.Context, mainCategoryID int64) ([]SubCategory, error) {
	subs, err := s.repo.SubCategoriesByMain(ctx, mainCategoryID)
	if err != nil {
		return nil, fmt.Errorf("list subcategories: %w", err)
	}
	return subs, nil
}

// AllProducts lists the entire cached catalog with variants attached.
func (s *Service) AllProducts(ctx context.Context) ([]Product, error) {
	products, err := s.repo.AllProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list all products: %w", err)
	}
	return products, nil
}

// ProductsBySubCategory lists products filed under one subcategory.
func (s *Service) ProductsBySubCategory(ctx context.Context, subCategoryID int64) ([]Product, error) {
	products, err := s.repo.ProductsBySubCategory(ctx, subCategoryID)
	if err != nil {
		return nil, fmt.Errorf("list products by subcategory: %w", err)
	}
	return products, nil
}

// ProductsByMainCategory lists products across all subcategories of one main
// category.
func (s *Service) ProductsByMainCategory(ctx context.Context, mainCategoryID int64) ([]Product, error) {
	products, err := s.repo.ProductsByMainCategory(ctx, mainCategoryID)
	if err != nil {
		return nil, fmt.Errorf("list products by category: %w", err)
	}
	return products, nil
}

// Product returns one product with its variants attached.
func (s *Service) Product(ctx context.Context, itemID int64) (*Product, error) {
	return s.repo.ProductByID(ctx, itemID)
}

// Search finds products whose name, SKU, or brand matches the term.
func (s *Service) Search(ctx context.Context, term string) ([]Product, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("%w: search term is required", httpx.ErrValidation)
	}
	products, err := s.repo.SearchProducts(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return products, nil
}
