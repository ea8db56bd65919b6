package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"plantshop/internal/models"

	"gorm.io/gorm"
)

const (
	defaultFeaturedLimit = 8
	defaultRelatedLimit  = 4
)

// ProductFilter narrows a storefront listing. Zero values apply no filter.
type ProductFilter struct {
	Categories   []models.ProductCategory `json:"categories,omitempty"`
	LightLevels  []models.LightLevel      `json:"lightLevel,omitempty"`
	CareLevels   []models.CareLevel       `json:"careLevel,omitempty"`
	Sizes        []models.PlantSize       `json:"size,omitempty"`
	PetSafe      bool                     `json:"isPetSafe,omitempty"`
	AirPurifying bool                     `json:"isAirPurifying,omitempty"`
	InStockOnly  bool                     `json:"inStockOnly,omitempty"`
	MinPrice     *float64                 `json:"minPrice,omitempty"`
	MaxPrice     *float64                 `json:"maxPrice,omitempty"`
	Search       string                   `json:"search,omitempty"`
	SortBy       models.SortOption        `json:"sortBy,omitempty"`
}

func (s *Store) active(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Product{}).Where("is_archived = ?", false)
}

// ListProducts returns active products matching f.
func (s *Store) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	q := s.active(ctx)

	if len(f.Categories) > 0 {
		q = q.Where("category IN ?", f.Categories)
	}
	if len(f.LightLevels) > 0 {
		q = q.Where("attr_light_level IN ?", f.LightLevels)
	}
	if len(f.CareLevels) > 0 {
		q = q.Where("attr_care_level IN ?", f.CareLevels)
	}
	if len(f.Sizes) > 0 {
		q = q.Where("attr_size IN ?", f.Sizes)
	}
	if f.PetSafe {
		q = q.Where("attr_is_pet_safe = ?", true)
	}
	if f.AirPurifying {
		q = q.Where("attr_is_air_purifying = ?", true)
	}
	if f.InStockOnly {
		q = q.Where("in_stock = ?", true)
	}
	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		q = q.Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\'`, pattern, pattern)
	}

	switch f.SortBy {
	case models.SortNewest:
		q = q.Order("created_at DESC")
	case models.SortPriceLow:
		q = q.Order("price ASC")
	case models.SortPriceHigh:
		q = q.Order("price DESC")
	case models.SortNameAZ:
		q = q.Order("name ASC")
	case models.SortNameZA:
		q = q.Order("name DESC")
	default:
		q = q.Order("is_featured DESC").Order("created_at DESC")
	}

	var products []models.Product
	if err := q.Order("id ASC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// FeaturedProducts returns in-stock featured products, most recently updated
// first.
func (s *Store) FeaturedProducts(ctx context.Context, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = defaultFeaturedLimit
	}
	var products []models.Product
	err := s.active(ctx).
		Where("is_featured = ? AND in_stock = ?", true, true).
		Order("updated_at DESC").
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch featured products: %w", err)
	}
	return products, nil
}

func (s *Store) PlantOfTheMonth(ctx context.Context) (*models.Product, error) {
	return s.first(ctx, "is_plant_of_month = ?", true)
}

func (s *Store) ProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	return s.first(ctx, "slug = ?", slug)
}

func (s *Store) ProductByID(ctx context.Context, id string) (*models.Product, error) {
	return s.first(ctx, "id = ?", id)
}

// RelatedProducts returns other in-stock products from the same category.
func (s *Store) RelatedProducts(ctx context.Context, productID string, category models.ProductCategory, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = defaultRelatedLimit
	}
	var products []models.Product
	err := s.active(ctx).
		Where("id <> ? AND category = ? AND in_stock = ?", productID, category, true).
		Order("is_featured DESC").
		Order("updated_at DESC").
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch related products: %w", err)
	}
	return products, nil
}

func (s *Store) first(ctx context.Context, query string, args ...interface{}) (*models.Product, error) {
	var product models.Product
	err := s.active(ctx).Where(query, args...).Order("updated_at DESC").First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product: %w", err)
	}
	return &product, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
