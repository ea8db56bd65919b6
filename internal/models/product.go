package models

import (
	"time"
)

type Product struct {
	ID               string          `json:"id" gorm:"primaryKey"`
	LightspeedItemID string          `json:"-" gorm:"uniqueIndex;not null"`
	SKU              string          `json:"sku"`
	Name             string          `json:"name" gorm:"not null"`
	Slug             string          `json:"slug" gorm:"uniqueIndex;not null"`
	Description      string          `json:"description"`
	ShortDescription string          `json:"shortDescription"`
	Price            float64         `json:"price" gorm:"type:decimal(10,2)"`
	CompareAtPrice   *float64        `json:"compareAtPrice,omitempty" gorm:"type:decimal(10,2)"`
	Images           ProductImages   `json:"images" gorm:"type:text"`
	Category         ProductCategory `json:"category" gorm:"index"`
	Subcategory      *string         `json:"subcategory,omitempty"`
	Tags             StringList      `json:"tags" gorm:"type:text"`

	// Inventory
	InStock           bool `json:"inStock" gorm:"index"`
	Quantity          int  `json:"quantity"`
	LowStockThreshold int  `json:"lowStockThreshold"`

	Attributes PlantAttributes `json:"attributes" gorm:"embedded;embeddedPrefix:attr_"`

	Vendor            *string    `json:"vendor,omitempty"`
	IsArchived        bool       `json:"isArchived" gorm:"index"`
	IsFeatured        bool       `json:"isFeatured"`
	IsPlantOfTheMonth bool       `json:"isPlantOfTheMonth" gorm:"column:is_plant_of_month"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	SourceUpdatedAt   *time.Time `json:"-"`
	SyncedAt          time.Time  `json:"syncedAt"`
}

type ProductImage struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Alt       string `json:"alt"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	IsPrimary bool   `json:"isPrimary"`
}

type PlantAttributes struct {
	LightLevel        LightLevel        `json:"lightLevel"`
	IsPetSafe         bool              `json:"isPetSafe"`
	IsAirPurifying    bool              `json:"isAirPurifying"`
	Humidity          Humidity          `json:"humidity"`
	CareLevel         CareLevel         `json:"careLevel"`
	WateringFrequency WateringFrequency `json:"wateringFrequency"`
	Size              PlantSize         `json:"size"`
	PlantType         ProductCategory   `json:"plantType"`
	IsRare            bool              `json:"isRare"`
}

type ProductCategory string

const (
	CategoryTropical    ProductCategory = "tropical"
	CategorySucculent   ProductCategory = "succulent"
	CategoryCacti       ProductCategory = "cacti"
	CategoryAirPlants   ProductCategory = "air-plants"
	CategoryCarnivorous ProductCategory = "carnivorous"
	CategoryRare        ProductCategory = "rare"
	CategoryOutdoor     ProductCategory = "outdoor"
	CategoryBundles     ProductCategory = "bundles"
	CategoryAccessories ProductCategory = "accessories"
	CategoryPots        ProductCategory = "pots"
	CategorySoil        ProductCategory = "soil"
	CategoryTools       ProductCategory = "tools"
)

type LightLevel string

const (
	LightLow    LightLevel = "low"
	LightMedium LightLevel = "medium"
	LightBright LightLevel = "bright"
	LightDirect LightLevel = "direct"
)

type Humidity string

const (
	HumidityLow    Humidity = "low"
	HumidityMedium Humidity = "medium"
	HumidityHigh   Humidity = "high"
)

type CareLevel string

const (
	CareEasy     CareLevel = "easy"
	CareModerate CareLevel = "moderate"
	CareExpert   CareLevel = "expert"
)

type WateringFrequency string

const (
	WateringWeekly     WateringFrequency = "weekly"
	WateringBiWeekly   WateringFrequency = "bi-weekly"
	WateringMonthly    WateringFrequency = "monthly"
	WateringInfrequent WateringFrequency = "infrequent"
)

type PlantSize string

const (
	SizeMini      PlantSize = "mini"
	SizeDesk      PlantSize = "desk"
	SizeMedium    PlantSize = "medium"
	SizeLarge     PlantSize = "large"
	SizeStatement PlantSize = "statement"
)

// SortOption orders storefront product listings.
type SortOption string

const (
	SortFeatured  SortOption = "featured"
	SortNewest    SortOption = "newest"
	SortPriceLow  SortOption = "price-low"
	SortPriceHigh SortOption = "price-high"
	SortNameAZ    SortOption = "name-az"
	SortNameZA    SortOption = "name-za"
)
