package models

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Product
	}{
		{
			name: "canonical",
			body: `{"id":"7","name":"Lamp","price":"12.50","originalPrice":15,"rating":4.5,"reviewCount":3,"inStock":false,"badge":"sale","categories":["1","2"],"image":"a.png"}`,
			want: Product{ID: "7", Name: "Lamp", Price: decimal.RequireFromString("12.5"), OriginalPrice: ptr(decimal.NewFromInt(15)), Rating: 4.5, ReviewCount: 3, InStock: false, Badge: BadgeSale, Categories: []CategoryID{"1", "2"}, Image: "a.png"},
		},
		{
			name: "numeric ids and legacy keys",
			body: `{"id":7,"name":"Lamp","price":10,"original_price":"20","reviews_count":9,"is_available":false,"categories":[3,{"id":4,"name":"Decor"}]}`,
			want: Product{ID: "7", Name: "Lamp", Price: decimal.NewFromInt(10), OriginalPrice: ptr(decimal.NewFromInt(20)), ReviewCount: 9, InStock: false, Categories: []CategoryID{"3", "4"}},
		},
		{
			name: "older reviews key",
			body: `{"id":"1","name":"A","price":1,"reviews":2}`,
			want: Product{ID: "1", Name: "A", Price: decimal.NewFromInt(1), ReviewCount: 2, InStock: true, Categories: []CategoryID{}},
		},
		{
			name: "missing availability defaults to in stock",
			body: `{"id":"1","name":"A","price":1,"categories":null}`,
			want: Product{ID: "1", Name: "A", Price: decimal.NewFromInt(1), InStock: true, Categories: []CategoryID{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Product
			require.NoError(t, json.Unmarshal([]byte(tt.body), &got))
			assert.Equal(t, tt.want.ID, got.ID)
			assert.Equal(t, tt.want.Name, got.Name)
			assert.True(t, tt.want.Price.Equal(got.Price), "price %s", got.Price)
			if tt.want.OriginalPrice == nil {
				assert.Nil(t, got.OriginalPrice)
			} else {
				require.NotNil(t, got.OriginalPrice)
				assert.True(t, tt.want.OriginalPrice.Equal(*got.OriginalPrice))
			}
			assert.Equal(t, tt.want.Rating, got.Rating)
			assert.Equal(t, tt.want.ReviewCount, got.ReviewCount)
			assert.Equal(t, tt.want.InStock, got.InStock)
			assert.Equal(t, tt.want.Badge, got.Badge)
			assert.Equal(t, tt.want.Categories, got.Categories)
			assert.Equal(t, tt.want.Image, got.Image)
		})
	}
}

func TestProductUnmarshal_RejectsBadID(t *testing.T) {
	var p Product
	assert.Error(t, json.Unmarshal([]byte(`{"id":true,"name":"A","price":1}`), &p))
	assert.Error(t, json.Unmarshal([]byte(`{"id":"1","name":"A","price":1,"categories":"1,2"}`), &p))
}

func TestProductClone(t *testing.T) {
	op := decimal.NewFromInt(5)
	p := Product{ID: "1", OriginalPrice: &op, Categories: []CategoryID{"1"}}

	c := p.Clone()
	c.Categories[0] = "9"
	*c.OriginalPrice = decimal.NewFromInt(6)

	assert.Equal(t, CategoryID("1"), p.Categories[0])
	assert.True(t, p.OriginalPrice.Equal(decimal.NewFromInt(5)))
}

func TestBadges(t *testing.T) {
	assert.True(t, BadgeNone.Valid())
	assert.True(t, BadgeOutOfStock.Valid())
	assert.False(t, Badge("hot").Valid())
	assert.Equal(t, "Best Seller", BadgeBestSeller.Label())
	assert.Len(t, Badges(), 6)
}

func TestPayloadValidate(t *testing.T) {
	neg := decimal.NewFromInt(-1)
	tests := []struct {
		name    string
		payload ProductPayload
		fields  map[string]string
	}{
		{name: "valid", payload: ProductPayload{Name: "A", Price: decimal.NewFromInt(1), Rating: 5}},
		{name: "blank name", payload: ProductPayload{Name: "  "}, fields: map[string]string{"name": "Please enter the product name"}},
		{name: "negative price", payload: ProductPayload{Name: "A", Price: neg}, fields: map[string]string{"price": "Price cannot be negative"}},
		{name: "negative original price", payload: ProductPayload{Name: "A", OriginalPrice: &neg}, fields: map[string]string{"originalPrice": "Original price cannot be negative"}},
		{name: "rating out of range", payload: ProductPayload{Name: "A", Rating: 5.5}, fields: map[string]string{"rating": "Rating must be between 0 and 5"}},
		{name: "NaN rating", payload: ProductPayload{Name: "A", Rating: math.NaN()}, fields: map[string]string{"rating": "Rating must be between 0 and 5"}},
		{name: "negative reviews", payload: ProductPayload{Name: "A", ReviewCount: -2}, fields: map[string]string{"reviewCount": "Reviews count cannot be negative"}},
		{name: "unknown badge", payload: ProductPayload{Name: "A", Badge: "hot"}, fields: map[string]string{"badge": `Unknown badge "hot"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			assert.Equal(t, tt.fields, verrs.Fields())
		})
	}
}

func TestPayloadNormalized(t *testing.T) {
	p := ProductPayload{
		Name:       "  Lamp ",
		Categories: []CategoryID{"1", " ", "2", "1", " 2 "},
	}.Normalized()

	assert.Equal(t, "Lamp", p.Name)
	assert.Equal(t, []CategoryID{"1", "2"}, p.Categories)
}

func TestPayloadMarshalJSON(t *testing.T) {
	data, err := json.Marshal(ProductPayload{Name: "A", Price: decimal.RequireFromString("12.5"), InStock: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"A","description":"","price":"12.5","originalPrice":null,"rating":0,"reviewCount":0,"inStock":true,"badge":null,"categories":[]}`, string(data))
}

func TestPayloadFormFields(t *testing.T) {
	op := decimal.NewFromInt(20)
	p := ProductPayload{
		Name:          "A",
		Price:         decimal.NewFromInt(10),
		OriginalPrice: &op,
		Badge:         BadgeSale,
		Categories:    []CategoryID{"1", "2"},
		Image:         "old.png",
		Attachment:    &Attachment{Filename: "new.png", Data: []byte{1}},
	}

	var names []string
	for _, f := range p.FormFields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"name", "description", "price", "originalPrice", "rating", "reviewCount", "inStock", "badge", "categories", "categories"}, names)

	p.Attachment = nil
	fields := p.FormFields()
	assert.Equal(t, FormField{Name: "image", Value: "old.png"}, fields[len(fields)-1])
}

func TestPayloadToProduct(t *testing.T) {
	p := ProductPayload{Name: "A", Price: decimal.NewFromInt(3), Categories: []CategoryID{"1"}}
	product := p.ToProduct("5")
	assert.Equal(t, ProductID("5"), product.ID)
	assert.True(t, product.IsPersisted())
	assert.Equal(t, []CategoryID{"1"}, product.Categories)
}

func ptr[T any](v T) *T { return &v }
