package editor

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"storefront-admin-service/internal/models"
)

var (
	ErrUnknownField = errors.New("unknown form field")
	ErrInvalidValue = errors.New("invalid form value")
)

// FormValues holds the editor's fields as typed by the admin. Numeric fields
// are kept as text so they can be transiently invalid until submission.
type FormValues struct {
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	Price         string              `json:"price"`
	OriginalPrice string              `json:"originalPrice"`
	Rating        string              `json:"rating"`
	ReviewCount   string              `json:"reviewCount"`
	InStock       bool                `json:"inStock"`
	Badge         models.Badge        `json:"badge"`
	Categories    []models.CategoryID `json:"categories"`
	// Image is the existing server-side reference, not editable directly
	Image string `json:"image,omitempty"`
}

// DefaultFormValues are the create-mode starting values
func DefaultFormValues() FormValues {
	return FormValues{
		Rating:      "0",
		ReviewCount: "0",
		InStock:     true,
		Badge:       models.BadgeNone,
		Categories:  []models.CategoryID{},
	}
}

// FormValuesFrom seeds the form from an existing product
func FormValuesFrom(p models.Product) FormValues {
	f := FormValues{
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.String(),
		Rating:      strconv.FormatFloat(p.Rating, 'f', -1, 64),
		ReviewCount: strconv.Itoa(p.ReviewCount),
		InStock:     p.InStock,
		Badge:       p.Badge,
		Categories:  make([]models.CategoryID, len(p.Categories)),
		Image:       p.Image,
	}
	copy(f.Categories, p.Categories)
	if p.OriginalPrice != nil {
		f.OriginalPrice = p.OriginalPrice.String()
	}
	return f
}

func (f FormValues) clone() FormValues {
	out := f
	out.Categories = make([]models.CategoryID, len(f.Categories))
	copy(out.Categories, f.Categories)
	return out
}

type fieldSetter func(f *FormValues, v interface{}) error

func stringSetter(assign func(f *FormValues, s string)) fieldSetter {
	return func(f *FormValues, v interface{}) error {
		if v == nil {
			assign(f, "")
			return nil
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			return err
		}
		assign(f, s)
		return nil
	}
}

var formFields = map[string]fieldSetter{
	"name":          stringSetter(func(f *FormValues, s string) { f.Name = s }),
	"description":   stringSetter(func(f *FormValues, s string) { f.Description = s }),
	"price":         stringSetter(func(f *FormValues, s string) { f.Price = s }),
	"originalPrice": stringSetter(func(f *FormValues, s string) { f.OriginalPrice = s }),
	"rating":        stringSetter(func(f *FormValues, s string) { f.Rating = s }),
	"reviewCount":   stringSetter(func(f *FormValues, s string) { f.ReviewCount = s }),
	"badge":         stringSetter(func(f *FormValues, s string) { f.Badge = models.Badge(strings.TrimSpace(s)) }),
	"inStock": func(f *FormValues, v interface{}) error {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return err
		}
		f.InStock = b
		return nil
	},
	"categories": func(f *FormValues, v interface{}) error {
		if v == nil {
			f.Categories = []models.CategoryID{}
			return nil
		}
		items, err := cast.ToStringSliceE(v)
		if err != nil {
			return err
		}
		f.Categories = make([]models.CategoryID, 0, len(items))
		for _, item := range items {
			f.Categories = append(f.Categories, models.CategoryID(item))
		}
		return nil
	},
}

// legacy form keys still sent by older dashboards
var fieldAliases = map[string]string{
	"original_price": "originalPrice",
	"reviews":        "reviewCount",
	"reviews_count":  "reviewCount",
	"is_available":   "inStock",
}

// apply coerces a loosely typed patch onto f. Either every field applies or
// none does.
func (f *FormValues) apply(fields map[string]interface{}) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	next := f.clone()
	for _, key := range keys {
		name := key
		if alias, ok := fieldAliases[key]; ok {
			name = alias
		}
		set, ok := formFields[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownField, key)
		}
		if err := set(&next, fields[key]); err != nil {
			return fmt.Errorf("%w for %s: %v", ErrInvalidValue, key, err)
		}
	}
	*f = next
	return nil
}

// payload validates the form and builds the normalized submission
func (f FormValues) payload(attachment *models.Attachment) (models.ProductPayload, error) {
	var errs models.ValidationErrors
	fail := func(field, msg string) {
		errs = append(errs, models.FieldError{Field: field, Message: msg})
	}

	p := models.ProductPayload{
		Name:        f.Name,
		Description: f.Description,
		InStock:     f.InStock,
		Badge:       f.Badge,
		Categories:  f.Categories,
		Image:       f.Image,
		Attachment:  attachment,
	}

	if price := strings.TrimSpace(f.Price); price == "" {
		fail("price", "Please enter the price")
	} else if d, err := decimal.NewFromString(price); err != nil {
		fail("price", "Invalid price format")
	} else {
		p.Price = d
	}

	if op := strings.TrimSpace(f.OriginalPrice); op != "" {
		if d, err := decimal.NewFromString(op); err != nil {
			fail("originalPrice", "Invalid original price format")
		} else {
			p.OriginalPrice = &d
		}
	}

	if rating := strings.TrimSpace(f.Rating); rating != "" {
		if r, err := strconv.ParseFloat(rating, 64); err != nil || math.IsNaN(r) || math.IsInf(r, 0) {
			fail("rating", "Invalid rating format")
		} else {
			p.Rating = r
		}
	}

	if reviews := strings.TrimSpace(f.ReviewCount); reviews != "" {
		if n, err := strconv.Atoi(reviews); err != nil {
			fail("reviewCount", "Invalid reviews count format")
		} else {
			p.ReviewCount = n
		}
	}

	p = p.Normalized()

	var rules models.ValidationErrors
	if err := p.Validate(); errors.As(err, &rules) {
		seen := make(map[string]bool, len(errs))
		for _, fe := range errs {
			seen[fe.Field] = true
		}
		for _, fe := range rules {
			if !seen[fe.Field] {
				errs = append(errs, fe)
			}
		}
	}

	if len(errs) > 0 {
		return models.ProductPayload{}, errs
	}
	return p, nil
}
