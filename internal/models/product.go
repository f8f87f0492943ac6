package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Badge is the marketing label attached to a product
type Badge string

const (
	BadgeNone       Badge = ""
	BadgeBestSeller Badge = "best_seller"
	BadgeNewArrival Badge = "new_arrival"
	BadgeSale       Badge = "sale"
	BadgePopular    Badge = "popular"
	BadgeLimited    Badge = "limited"
	BadgeOutOfStock Badge = "out_of_stock"
)

var badgeLabels = map[Badge]string{
	BadgeBestSeller: "Best Seller",
	BadgeNewArrival: "New Arrival",
	BadgeSale:       "Sale",
	BadgePopular:    "Popular",
	BadgeLimited:    "Limited",
	BadgeOutOfStock: "Out of Stock",
}

// Badges returns the selectable badges in display order
func Badges() []Badge {
	return []Badge{BadgeBestSeller, BadgeNewArrival, BadgeSale, BadgePopular, BadgeLimited, BadgeOutOfStock}
}

// Valid reports whether b is none or one of the known badges
func (b Badge) Valid() bool {
	if b == BadgeNone {
		return true
	}
	_, ok := badgeLabels[b]
	return ok
}

// Label returns the human readable badge name
func (b Badge) Label() string {
	return badgeLabels[b]
}

// ProductID is the opaque server-assigned product identity.
// Servers may send it as a JSON number or string.
type ProductID string

func (id ProductID) String() string { return string(id) }

// IsZero reports an unsaved product
func (id ProductID) IsZero() bool { return id == "" }

func (id *ProductID) UnmarshalJSON(data []byte) error {
	s, err := decodeID(data)
	if err != nil {
		return fmt.Errorf("invalid product id: %w", err)
	}
	*id = ProductID(s)
	return nil
}

// CategoryID is the opaque server-assigned category identity
type CategoryID string

func (id CategoryID) String() string { return string(id) }

func (id *CategoryID) UnmarshalJSON(data []byte) error {
	s, err := decodeID(data)
	if err != nil {
		return fmt.Errorf("invalid category id: %w", err)
	}
	*id = CategoryID(s)
	return nil
}

func decodeID(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return "", nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return "", fmt.Errorf("%s is neither a string nor a number", data)
	}
	return string(data), nil
}

// Category is a read-only catalog category used by the editor's selector
type Category struct {
	ID   CategoryID `json:"id"`
	Name string     `json:"name"`
}

// Product is the admin view of a catalog product
type Product struct {
	ID            ProductID        `json:"id,omitempty"`
	Name          string           `json:"name"`
	Description   string           `json:"description,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	Rating        float64          `json:"rating"`
	ReviewCount   int              `json:"reviewCount"`
	InStock       bool             `json:"inStock"`
	Badge         Badge            `json:"badge,omitempty"`
	Categories    []CategoryID     `json:"categories"`
	Image         string           `json:"image,omitempty"`
}

// IsPersisted reports whether the server has assigned an id
func (p Product) IsPersisted() bool {
	return !p.ID.IsZero()
}

// Clone returns a deep copy
func (p Product) Clone() Product {
	out := p
	if p.OriginalPrice != nil {
		op := *p.OriginalPrice
		out.OriginalPrice = &op
	}
	out.Categories = make([]CategoryID, len(p.Categories))
	copy(out.Categories, p.Categories)
	return out
}

// UnmarshalJSON accepts the canonical camelCase representation as well as
// the legacy snake_case keys still emitted by older catalog backends.
func (p *Product) UnmarshalJSON(data []byte) error {
	type canonical Product
	var wire struct {
		canonical
		Categories      json.RawMessage  `json:"categories"`
		InStock         *bool            `json:"inStock"`
		ReviewCount     *int             `json:"reviewCount"`
		LegacyOriginal  *decimal.Decimal `json:"original_price"`
		LegacyReviews   *int             `json:"reviews_count"`
		LegacyReviewsV1 *int             `json:"reviews"`
		LegacyAvailable *bool            `json:"is_available"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*p = Product(wire.canonical)

	if p.OriginalPrice == nil && wire.LegacyOriginal != nil {
		p.OriginalPrice = wire.LegacyOriginal
	}

	switch {
	case wire.ReviewCount != nil:
		p.ReviewCount = *wire.ReviewCount
	case wire.LegacyReviews != nil:
		p.ReviewCount = *wire.LegacyReviews
	case wire.LegacyReviewsV1 != nil:
		p.ReviewCount = *wire.LegacyReviewsV1
	}

	switch {
	case wire.InStock != nil:
		p.InStock = *wire.InStock
	case wire.LegacyAvailable != nil:
		p.InStock = *wire.LegacyAvailable
	default:
		// catalog backends default availability to true
		p.InStock = true
	}

	categories, err := decodeCategoryRefs(wire.Categories)
	if err != nil {
		return err
	}
	p.Categories = categories
	return nil
}

// decodeCategoryRefs accepts ids (numbers or strings) or {id,name} objects
func decodeCategoryRefs(raw json.RawMessage) ([]CategoryID, error) {
	out := []CategoryID{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("categories must be an array: %w", err)
	}
	for _, item := range items {
		item = bytes.TrimSpace(item)
		var id CategoryID
		if len(item) > 0 && item[0] == '{' {
			var ref Category
			if err := json.Unmarshal(item, &ref); err != nil {
				return nil, err
			}
			id = ref.ID
		} else if err := json.Unmarshal(item, &id); err != nil {
			return nil, err
		}
		if id != "" {
			out = append(out, id)
		}
	}
	return out, nil
}
