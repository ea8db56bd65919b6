package lightspeed

import (
	"strconv"
	"strings"
	"time"

	"plantshop/internal/models"
)

const (
	defaultLowStockThreshold = 5
	shortDescriptionLength   = 150
	imageSize                = 600
)

// categoryMap maps Lightspeed category IDs to storefront categories.
var categoryMap = map[string]models.ProductCategory{
	"1":  models.CategoryTropical,
	"2":  models.CategorySucculent,
	"3":  models.CategoryCacti,
	"4":  models.CategoryAirPlants,
	"5":  models.CategoryCarnivorous,
	"6":  models.CategoryRare,
	"7":  models.CategoryPots,
	"8":  models.CategorySoil,
	"9":  models.CategoryTools,
	"10": models.CategoryBundles,
	"11": models.CategoryOutdoor,
	"12": models.CategoryAccessories,
}

// InventoryUpdate is the quantity/in-stock pair applied by an inventory-only
// sync.
type InventoryUpdate struct {
	ID       string
	Quantity int
	InStock  bool
}

// Transformer converts Lightspeed items into storefront products. It never
// fails: every missing or malformed field falls back to a default.
type Transformer struct {
	placeholderURL string
	now            func() time.Time
}

func NewTransformer(placeholderURL string, now func() time.Time) *Transformer {
	if placeholderURL == "" {
		placeholderURL = "/images/placeholder-plant.jpg"
	}
	if now == nil {
		now = time.Now
	}
	return &Transformer{
		placeholderURL: placeholderURL,
		now:            now,
	}
}

// Transform converts a single item. categories may be nil.
func (t *Transformer) Transform(item Item, categories map[string]Category) models.Product {
	tags := ParseTags(item.Description)
	name := ProductName(item.Description)
	description := CleanDescription(item.Description)
	price, compareAt := resolvePrice(item)
	inv := InventoryFor(item)
	category := mapCategory(item.CategoryID)

	product := models.Product{
		ID:                item.ItemID,
		LightspeedItemID:  item.ItemID,
		SKU:               item.CustomSku,
		Name:              name,
		Slug:              Slugify(name),
		Description:       description,
		ShortDescription:  shortDescription(description),
		Price:             price,
		CompareAtPrice:    compareAt,
		Images:            t.images(item, name),
		Category:          category,
		Subcategory:       subcategory(item, categories),
		Tags:              productTags(tags),
		InStock:           inv.InStock,
		Quantity:          inv.Quantity,
		LowStockThreshold: lowStockThreshold(item),
		Attributes: models.PlantAttributes{
			LightLevel:        mapLightLevel(tags.Get("lightLevel")),
			IsPetSafe:         tags.Flag("petSafe"),
			IsAirPurifying:    tags.Flag("airPurifying"),
			Humidity:          mapHumidity(tags.Get("humidity")),
			CareLevel:         mapCareLevel(tags.Get("careLevel")),
			WateringFrequency: mapWateringFrequency(tags.Get("wateringFrequency")),
			Size:              mapSize(tags.Get("size")),
			PlantType:         category,
			IsRare:            tags.Flag("rare"),
		},
		Vendor:     vendorRef(item.DefaultVendorID),
		IsArchived: item.Archived,
	}
	if product.SKU == "" {
		product.SKU = item.SystemSku
	}

	now := t.now().UTC().Truncate(time.Second)
	product.CreatedAt = now
	if created, ok := parseTime(item.CreateTime); ok {
		product.CreatedAt = created
	}
	product.UpdatedAt = now
	if updated, ok := parseTime(item.TimeStamp); ok {
		product.UpdatedAt = updated
		product.SourceUpdatedAt = &updated
	}

	return product
}

// TransformAll drops archived and unpublished items and converts the rest.
func (t *Transformer) TransformAll(items []Item, categories []Category) []models.Product {
	lookup := make(map[string]Category, len(categories))
	for _, c := range categories {
		lookup[c.CategoryID] = c
	}

	products := make([]models.Product, 0, len(items))
	for _, item := range items {
		if item.Archived || !item.PublishToEcom {
			continue
		}
		products = append(products, t.Transform(item, lookup))
	}
	return products
}

// FilterActiveProducts keeps products with no vendor or an active one.
func FilterActiveProducts(products []models.Product, activeVendorIDs map[string]struct{}) []models.Product {
	active := make([]models.Product, 0, len(products))
	for _, p := range products {
		if p.Vendor == nil {
			active = append(active, p)
			continue
		}
		if _, ok := activeVendorIDs[*p.Vendor]; ok {
			active = append(active, p)
		}
	}
	return active
}

// ActiveVendorIDs returns the IDs of vendors that are not archived.
func ActiveVendorIDs(vendors []Vendor) map[string]struct{} {
	ids := make(map[string]struct{}, len(vendors))
	for _, v := range vendors {
		if !bool(v.Archived) {
			ids[v.VendorID] = struct{}{}
		}
	}
	return ids
}

// InventoryFor sums on-hand quantity across every location.
func InventoryFor(item Item) InventoryUpdate {
	total := 0
	for _, shop := range item.ItemShops {
		total += parseQuantity(shop.QOH)
	}
	return InventoryUpdate{
		ID:       item.ItemID,
		Quantity: total,
		InStock:  total > 0,
	}
}

func resolvePrice(item Item) (float64, *float64) {
	var defaultAmount, msrpAmount string
	var hasMSRP bool
	for _, p := range item.Prices {
		switch p.UseType {
		case "Default":
			if defaultAmount == "" {
				defaultAmount = p.Amount
			}
		case "MSRP":
			if !hasMSRP {
				msrpAmount = p.Amount
				hasMSRP = true
			}
		}
	}

	if defaultAmount == "" {
		defaultAmount = item.DefaultCost
	}
	price := parseAmount(defaultAmount)

	if !hasMSRP {
		return price, nil
	}
	msrp := parseAmount(msrpAmount)
	if msrp > price {
		return price, &msrp
	}
	return price, nil
}

func (t *Transformer) images(item Item, name string) models.ProductImages {
	if len(item.Images) == 0 {
		return models.ProductImages{{
			ID:        "placeholder",
			URL:       t.placeholderURL,
			Alt:       name,
			Width:     imageSize,
			Height:    imageSize,
			IsPrimary: true,
		}}
	}

	images := make(models.ProductImages, 0, len(item.Images))
	for i, img := range item.Images {
		alt := img.Description
		if alt == "" {
			alt = name
		}
		images = append(images, models.ProductImage{
			ID:        img.ImageID,
			URL:       img.BaseImageURL + img.PublicID + ".jpg",
			Alt:       alt,
			Width:     imageSize,
			Height:    imageSize,
			IsPrimary: i == 0,
		})
	}
	return images
}

func shortDescription(description string) string {
	runes := []rune(description)
	if len(runes) <= shortDescriptionLength {
		return description
	}
	return string(runes[:shortDescriptionLength]) + "..."
}

func subcategory(item Item, categories map[string]Category) *string {
	if c, ok := categories[item.CategoryID]; ok && c.Name != "" {
		name := c.Name
		return &name
	}
	if item.Category != nil && item.Category.Name != "" {
		name := item.Category.Name
		return &name
	}
	return nil
}

func productTags(tags Tags) models.StringList {
	list := models.StringList{}
	if tags.Flag("rare") {
		list = append(list, "rare")
	}
	if tags.Flag("petSafe") {
		list = append(list, "pet-safe")
	}
	if tags.Flag("airPurifying") {
		list = append(list, "air-purifying")
	}
	return list
}

// lowStockThreshold reads the first location's reorder point only.
func lowStockThreshold(item Item) int {
	if len(item.ItemShops) == 0 {
		return defaultLowStockThreshold
	}
	v, err := strconv.Atoi(strings.TrimSpace(item.ItemShops[0].ReorderPoint))
	if err != nil {
		return defaultLowStockThreshold
	}
	return v
}

func vendorRef(id string) *string {
	id = strings.TrimSpace(id)
	if id == "" || id == "0" {
		return nil
	}
	return &id
}

func mapCategory(categoryID string) models.ProductCategory {
	if c, ok := categoryMap[categoryID]; ok {
		return c
	}
	return models.CategoryTropical
}

func mapLightLevel(value string) models.LightLevel {
	switch strings.ToLower(value) {
	case "low":
		return models.LightLow
	case "medium":
		return models.LightMedium
	case "direct":
		return models.LightDirect
	default:
		return models.LightBright
	}
}

func mapHumidity(value string) models.Humidity {
	switch strings.ToLower(value) {
	case "low":
		return models.HumidityLow
	case "high":
		return models.HumidityHigh
	default:
		return models.HumidityMedium
	}
}

func mapCareLevel(value string) models.CareLevel {
	switch strings.ToLower(value) {
	case "easy", "beginner":
		return models.CareEasy
	case "expert", "advanced":
		return models.CareExpert
	default:
		return models.CareModerate
	}
}

func mapWateringFrequency(value string) models.WateringFrequency {
	switch strings.ToLower(value) {
	case "bi-weekly", "biweekly":
		return models.WateringBiWeekly
	case "monthly":
		return models.WateringMonthly
	case "infrequent", "rare":
		return models.WateringInfrequent
	default:
		return models.WateringWeekly
	}
}

func mapSize(value string) models.PlantSize {
	switch strings.ToLower(value) {
	case "mini", "tiny":
		return models.SizeMini
	case "desk", "small":
		return models.SizeDesk
	case "large":
		return models.SizeLarge
	case "statement", "xl":
		return models.SizeStatement
	default:
		return models.SizeMedium
	}
}

func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// parseQuantity truncates decimal quantities; anything unparsable counts as 0.
func parseQuantity(s string) int {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC().Truncate(time.Second), true
}
