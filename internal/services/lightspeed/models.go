package lightspeed

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Item is a Lightspeed catalog record with its Category, Images, ItemShops
// and Prices relations loaded. Relations that the API sends either as a
// single object or as an array are always decoded into slices.
type Item struct {
	ItemID          string
	SystemSku       string
	CustomSku       string
	Description     string
	DefaultCost     string
	AvgCost         string
	Archived        bool
	PublishToEcom   bool
	ItemType        string
	CategoryID      string
	ManufacturerID  string
	DefaultVendorID string
	CreateTime      string
	TimeStamp       string

	Category  *Category
	Images    []Image
	ItemShops []ItemShop
	Prices    []ItemPrice
}

type itemWire struct {
	ItemID          string   `json:"itemID"`
	SystemSku       string   `json:"systemSku"`
	CustomSku       string   `json:"customSku"`
	Description     string   `json:"description"`
	DefaultCost     string   `json:"defaultCost"`
	AvgCost         string   `json:"avgCost"`
	Archived        FlexBool `json:"archived"`
	PublishToEcom   FlexBool `json:"publishToEcom"`
	ItemType        string   `json:"itemType"`
	CategoryID      string   `json:"categoryID"`
	ManufacturerID  string   `json:"manufacturerID"`
	DefaultVendorID string   `json:"defaultVendorID"`
	CreateTime      string   `json:"createTime"`
	TimeStamp       string   `json:"timeStamp"`

	Category *Category `json:"Category,omitempty"`
	Images   *struct {
		Image OneOrMany[Image] `json:"Image"`
	} `json:"Images,omitempty"`
	ItemShops *struct {
		ItemShop OneOrMany[ItemShop] `json:"ItemShop"`
	} `json:"ItemShops,omitempty"`
	Prices *struct {
		ItemPrice OneOrMany[ItemPrice] `json:"ItemPrice"`
	} `json:"Prices,omitempty"`
}

func (i *Item) UnmarshalJSON(data []byte) error {
	var w itemWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*i = Item{
		ItemID:          w.ItemID,
		SystemSku:       w.SystemSku,
		CustomSku:       w.CustomSku,
		Description:     w.Description,
		DefaultCost:     w.DefaultCost,
		AvgCost:         w.AvgCost,
		Archived:        bool(w.Archived),
		PublishToEcom:   bool(w.PublishToEcom),
		ItemType:        w.ItemType,
		CategoryID:      w.CategoryID,
		ManufacturerID:  w.ManufacturerID,
		DefaultVendorID: w.DefaultVendorID,
		CreateTime:      w.CreateTime,
		TimeStamp:       w.TimeStamp,
		Category:        w.Category,
	}
	if w.Images != nil {
		i.Images = w.Images.Image
	}
	if w.ItemShops != nil {
		i.ItemShops = w.ItemShops.ItemShop
	}
	if w.Prices != nil {
		i.Prices = w.Prices.ItemPrice
	}
	return nil
}

type ItemShop struct {
	ItemShopID   string `json:"itemShopID"`
	QOH          string `json:"qoh"`
	Backorder    string `json:"backorder"`
	ShopID       string `json:"shopID"`
	ItemID       string `json:"itemID"`
	ReorderPoint string `json:"reorderPoint"`
	ReorderLevel string `json:"reorderLevel"`
}

type Category struct {
	CategoryID string `json:"categoryID"`
	Name       string `json:"name"`
	NodeDepth  string `json:"nodeDepth"`
	ParentID   string `json:"parentID"`
	LeftNode   string `json:"leftNode"`
	RightNode  string `json:"rightNode"`
}

type Image struct {
	ImageID      string `json:"imageID"`
	Filename     string `json:"filename"`
	Description  string `json:"description"`
	Ordering     string `json:"ordering"`
	PublicID     string `json:"publicID"`
	BaseImageURL string `json:"baseImageURL"`
}

type ItemPrice struct {
	Amount    string `json:"amount"`
	UseTypeID string `json:"useTypeID"`
	UseType   string `json:"useType"`
}

type Vendor struct {
	VendorID string   `json:"vendorID"`
	Name     string   `json:"name"`
	Archived FlexBool `json:"archived"`
}

type Customer struct {
	CustomerID     string   `json:"customerID"`
	FirstName      string   `json:"firstName"`
	LastName       string   `json:"lastName"`
	Company        string   `json:"company"`
	CustomerTypeID string   `json:"customerTypeID"`
	TaxCategoryID  string   `json:"taxCategoryID"`
	Contact        *Contact `json:"Contact,omitempty"`
}

type Contact struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	State    string `json:"state"`
	Zip      string `json:"zip"`
}

// envelope is the pagination metadata every list response carries.
type envelope struct {
	Attributes struct {
		Count  FlexInt `json:"count"`
		Offset FlexInt `json:"offset"`
		Limit  FlexInt `json:"limit"`
	} `json:"@attributes"`
}

type itemsResponse struct {
	envelope
	Item OneOrMany[Item] `json:"Item"`
}

type itemShopsResponse struct {
	envelope
	ItemShop OneOrMany[ItemShop] `json:"ItemShop"`
}

type categoriesResponse struct {
	envelope
	Category OneOrMany[Category] `json:"Category"`
}

type vendorsResponse struct {
	envelope
	Vendor OneOrMany[Vendor] `json:"Vendor"`
}

type customersResponse struct {
	envelope
	Customer OneOrMany[Customer] `json:"Customer"`
}

type itemResponse struct {
	Item *Item `json:"Item"`
}

// OneOrMany decodes a JSON value that may be a single object, an array of
// objects, null or an empty string into a slice.
type OneOrMany[T any] []T

func (o *OneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`)) {
		*o = nil
		return nil
	}
	if data[0] == '[' {
		var many []T
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*o = []T{one}
	return nil
}

// FlexBool accepts true/false as JSON booleans or strings.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	v, err := strconv.ParseBool(s)
	if err != nil {
		*b = false
		return nil
	}
	*b = FlexBool(v)
	return nil
}

// FlexInt accepts integers as JSON numbers or numeric strings.
type FlexInt int

func (n *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*n = FlexInt(v)
	return nil
}
