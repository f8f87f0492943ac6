package models

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrValidation matches any ValidationErrors value with errors.Is
var ErrValidation = errors.New("validation failed")

// FieldError describes one invalid form field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is the set of local validation failures for a payload
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return strings.Join(parts, "; ")
}

func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Fields maps field names to their first message
func (v ValidationErrors) Fields() map[string]string {
	out := make(map[string]string, len(v))
	for _, fe := range v {
		if _, exists := out[fe.Field]; !exists {
			out[fe.Field] = fe.Message
		}
	}
	return out
}

// Attachment is an image upload held in memory until submission
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Size returns the attachment size in bytes
func (a *Attachment) Size() int64 {
	if a == nil {
		return 0
	}
	return int64(len(a.Data))
}

// ProductPayload is the normalized create/update body handed to the catalog.
// Image carries the existing server-side reference; Attachment a new upload.
type ProductPayload struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	OriginalPrice *decimal.Decimal
	Rating        float64
	ReviewCount   int
	InStock       bool
	Badge         Badge
	Categories    []CategoryID
	Image         string
	Attachment    *Attachment
}

// HasAttachment reports whether the payload must be sent as multipart
func (p ProductPayload) HasAttachment() bool {
	return p.Attachment != nil && len(p.Attachment.Data) > 0
}

// Normalized trims strings and drops empty or duplicate category ids
func (p ProductPayload) Normalized() ProductPayload {
	out := p
	out.Name = strings.TrimSpace(p.Name)
	out.Description = strings.TrimSpace(p.Description)
	out.Image = strings.TrimSpace(p.Image)

	seen := make(map[CategoryID]struct{}, len(p.Categories))
	out.Categories = make([]CategoryID, 0, len(p.Categories))
	for _, id := range p.Categories {
		id = CategoryID(strings.TrimSpace(string(id)))
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out.Categories = append(out.Categories, id)
	}
	return out
}

// Validate checks the payload against the product invariants
func (p ProductPayload) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "Please enter the product name"})
	}
	if p.Price.IsNegative() {
		errs = append(errs, FieldError{Field: "price", Message: "Price cannot be negative"})
	}
	if p.OriginalPrice != nil && p.OriginalPrice.IsNegative() {
		errs = append(errs, FieldError{Field: "originalPrice", Message: "Original price cannot be negative"})
	}
	if math.IsNaN(p.Rating) || p.Rating < 0 || p.Rating > 5 {
		errs = append(errs, FieldError{Field: "rating", Message: "Rating must be between 0 and 5"})
	}
	if p.ReviewCount < 0 {
		errs = append(errs, FieldError{Field: "reviewCount", Message: "Reviews count cannot be negative"})
	}
	if !p.Badge.Valid() {
		errs = append(errs, FieldError{Field: "badge", Message: "Unknown badge " + strconv.Quote(string(p.Badge))})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ToProduct builds the product the server is expected to have stored.
// Used when a catalog backend acknowledges without echoing the entity.
func (p ProductPayload) ToProduct(id ProductID) Product {
	out := Product{
		ID:          id,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Rating:      p.Rating,
		ReviewCount: p.ReviewCount,
		InStock:     p.InStock,
		Badge:       p.Badge,
		Image:       p.Image,
	}
	if p.OriginalPrice != nil {
		op := *p.OriginalPrice
		out.OriginalPrice = &op
	}
	out.Categories = make([]CategoryID, len(p.Categories))
	copy(out.Categories, p.Categories)
	return out
}

type payloadWire struct {
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice"`
	Rating        float64          `json:"rating"`
	ReviewCount   int              `json:"reviewCount"`
	InStock       bool             `json:"inStock"`
	Badge         *Badge           `json:"badge"`
	Categories    []CategoryID     `json:"categories"`
	Image         string           `json:"image,omitempty"`
}

// MarshalJSON renders the structured (non-multipart) request body
func (p ProductPayload) MarshalJSON() ([]byte, error) {
	wire := payloadWire{
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		OriginalPrice: p.OriginalPrice,
		Rating:        p.Rating,
		ReviewCount:   p.ReviewCount,
		InStock:       p.InStock,
		Categories:    p.Categories,
		Image:         p.Image,
	}
	if wire.Categories == nil {
		wire.Categories = []CategoryID{}
	}
	if p.Badge != BadgeNone {
		b := p.Badge
		wire.Badge = &b
	}
	return json.Marshal(wire)
}

// FormField is one multipart form value; Categories repeat the key
type FormField struct {
	Name  string
	Value string
}

// FormFields renders the payload as multipart form values in a stable order
func (p ProductPayload) FormFields() []FormField {
	fields := []FormField{
		{Name: "name", Value: p.Name},
		{Name: "description", Value: p.Description},
		{Name: "price", Value: p.Price.String()},
	}
	if p.OriginalPrice != nil {
		fields = append(fields, FormField{Name: "originalPrice", Value: p.OriginalPrice.String()})
	}
	fields = append(fields,
		FormField{Name: "rating", Value: strconv.FormatFloat(p.Rating, 'f', -1, 64)},
		FormField{Name: "reviewCount", Value: strconv.Itoa(p.ReviewCount)},
		FormField{Name: "inStock", Value: strconv.FormatBool(p.InStock)},
	)
	if p.Badge != BadgeNone {
		fields = append(fields, FormField{Name: "badge", Value: string(p.Badge)})
	}
	for _, id := range p.Categories {
		fields = append(fields, FormField{Name: "categories", Value: string(id)})
	}
	if p.Image != "" && !p.HasAttachment() {
		fields = append(fields, FormField{Name: "image", Value: p.Image})
	}
	return fields
}
