package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"plantshop/internal/logger"
	"plantshop/internal/models"
	"plantshop/internal/store"

	"github.com/gin-gonic/gin"
)

// ProductReader is the storefront read side of the store.
type ProductReader interface {
	ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, error)
	FeaturedProducts(ctx context.Context, limit int) ([]models.Product, error)
	PlantOfTheMonth(ctx context.Context) (*models.Product, error)
	ProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	RelatedProducts(ctx context.Context, productID string, category models.ProductCategory, limit int) ([]models.Product, error)
}

type ProductHandler struct {
	products ProductReader
	logger   *logger.Logger
}

func NewProductHandler(products ProductReader, log *logger.Logger) *ProductHandler {
	return &ProductHandler{
		products: products,
		logger:   log,
	}
}

func (h *ProductHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	if c.Query("featured") == "true" {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "8"))
		if err != nil {
			limit = 8
		}
		products, err := h.products.FeaturedProducts(ctx, limit)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"products": products})
		return
	}

	if c.Query("plantOfMonth") == "true" {
		product, err := h.products.PlantOfTheMonth(ctx)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": product})
		return
	}

	filter := parseFilter(c)
	products, err := h.products.ListProducts(ctx, filter)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"total":    len(products),
		"filters":  filter,
	})
}

// Get returns a product by slug with a few related products.
func (h *ProductHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	product, err := h.products.ProductBySlug(ctx, c.Param("slug"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	related, err := h.products.RelatedProducts(ctx, product.ID, product.Category, 4)
	if err != nil {
		h.logger.Warn("Failed to fetch related products for %s: %v", product.ID, err)
		related = []models.Product{}
	}

	c.JSON(http.StatusOK, gin.H{
		"product": product,
		"related": related,
	})
}

func (h *ProductHandler) fail(c *gin.Context, err error) {
	h.logger.Error("Error fetching products: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
}

func parseFilter(c *gin.Context) store.ProductFilter {
	var f store.ProductFilter

	for _, v := range splitList(c.Query("categories")) {
		f.Categories = append(f.Categories, models.ProductCategory(v))
	}
	for _, v := range splitList(c.Query("lightLevel")) {
		f.LightLevels = append(f.LightLevels, models.LightLevel(v))
	}
	for _, v := range splitList(c.Query("careLevel")) {
		f.CareLevels = append(f.CareLevels, models.CareLevel(v))
	}
	for _, v := range splitList(c.Query("size")) {
		f.Sizes = append(f.Sizes, models.PlantSize(v))
	}

	f.PetSafe = c.Query("petSafe") == "true"
	f.AirPurifying = c.Query("airPurifying") == "true"
	f.InStockOnly = c.Query("inStock") == "true"

	minPrice, maxPrice := c.Query("minPrice"), c.Query("maxPrice")
	if minPrice != "" || maxPrice != "" {
		lo := parsePrice(minPrice, 0)
		hi := parsePrice(maxPrice, 9999)
		f.MinPrice, f.MaxPrice = &lo, &hi
	}

	f.Search = c.Query("search")
	f.SortBy = models.SortOption(c.Query("sortBy"))
	return f
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parsePrice(raw string, fallback float64) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}
