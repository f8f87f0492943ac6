package editor

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-admin-service/internal/catalogtest"
	"storefront-admin-service/internal/models"
	"storefront-admin-service/internal/store"
)

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	jpegBytes = append([]byte("\xff\xd8\xff\xe0"), make([]byte, 32)...)
	admin     = Owner{TenantID: "shop-1", UserID: "admin-1"}
)

type fixture struct {
	srv     *catalogtest.Server
	store   *store.Store
	manager *Manager
}

func newFixture(t *testing.T, seed ...models.Product) *fixture {
	t.Helper()
	srv := catalogtest.NewServer(t, seed...)
	srv.SetCategories(
		models.Category{ID: "2", Name: "Lighting"},
		models.Category{ID: "1", Name: "Decor"},
	)
	s := store.New("shop-1", srv.Client())
	require.NoError(t, s.Load(context.Background()))
	return &fixture{
		srv:     srv,
		store:   s,
		manager: NewManager(srv.CategoriesClient(), ManagerOptions{}),
	}
}

func sampleProduct() models.Product {
	op := decimal.RequireFromString("49.99")
	return models.Product{
		ID:            "1",
		Name:          "A",
		Description:   "Brass desk lamp",
		Price:         decimal.NewFromInt(10),
		OriginalPrice: &op,
		Rating:        4.5,
		ReviewCount:   12,
		InStock:       false,
		Badge:         models.BadgeSale,
		Categories:    []models.CategoryID{"1", "2"},
		Image:         "https://cdn.example.com/products/a.png",
	}
}

func TestOpenCreate_SeedsDefaults(t *testing.T) {
	f := newFixture(t)

	s, err := f.manager.OpenCreate(context.Background(), admin, f.store)
	require.NoError(t, err)

	v := s.View()
	assert.Equal(t, ModeCreate, v.Mode)
	assert.Equal(t, StateOpen, v.State)
	assert.Equal(t, DefaultFormValues(), v.Form)
	assert.Equal(t, "", v.Form.Name)
	assert.Equal(t, "0", v.Form.Rating)
	assert.True(t, v.Form.InStock)
	assert.Equal(t, []models.Category{{ID: "1", Name: "Decor"}, {ID: "2", Name: "Lighting"}}, v.Categories)
	assert.Len(t, v.Badges, 6)
	assert.Empty(t, v.Warning)
}

func TestOpenEdit_SeedsTargetValues(t *testing.T) {
	target := sampleProduct()
	f := newFixture(t, target)

	s, err := f.manager.OpenEdit(context.Background(), admin, f.store, target)
	require.NoError(t, err)

	v := s.View()
	assert.Equal(t, ModeEdit, v.Mode)
	assert.Equal(t, models.ProductID("1"), v.TargetID)
	assert.Equal(t, FormValues{
		Name:          "A",
		Description:   "Brass desk lamp",
		Price:         "10",
		OriginalPrice: "49.99",
		Rating:        "4.5",
		ReviewCount:   "12",
		InStock:       false,
		Badge:         models.BadgeSale,
		Categories:    []models.CategoryID{"1", "2"},
		Image:         "https://cdn.example.com/products/a.png",
	}, v.Form)

	// submitting untouched values round-trips the product unchanged
	_, err = s.Submit(context.Background())
	require.NoError(t, err)
	stored := f.srv.Products()[0]
	assert.Equal(t, target.Name, stored.Name)
	assert.True(t, target.Price.Equal(stored.Price))
	assert.True(t, target.OriginalPrice.Equal(*stored.OriginalPrice))
	assert.Equal(t, target.Rating, stored.Rating)
	assert.Equal(t, target.ReviewCount, stored.ReviewCount)
	assert.Equal(t, target.InStock, stored.InStock)
	assert.Equal(t, target.Badge, stored.Badge)
	assert.Equal(t, target.Categories, stored.Categories)
	assert.Equal(t, target.Image, stored.Image)
}

func TestOpenEdit_RequiresPersistedProduct(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.OpenEdit(context.Background(), admin, f.store, models.Product{Name: "draft"})
	assert.True(t, errors.Is(err, ErrNoProductID))
}

func TestCategoriesFailureIsNonBlocking(t *testing.T) {
	f := newFixture(t)
	f.srv.FailNext(http.MethodGet, http.StatusInternalServerError, `{"error":"boom"}`)

	s, err := f.manager.OpenCreate(context.Background(), admin, f.store)
	require.NoError(t, err)

	v := s.View()
	assert.Equal(t, StateOpen, v.State)
	assert.Equal(t, "Failed to load categories", v.Warning)
	assert.Empty(t, v.Categories)

	require.NoError(t, s.Apply(map[string]interface{}{"name": "Lamp", "price": 5}))
	_, err = s.Submit(context.Background())
	assert.NoError(t, err)
}

func TestSubmit_BlankNameSendsNothing(t *testing.T) {
	f := newFixture(t)
	s, err := f.manager.OpenCreate(context.Background(), admin, f.store)
	require.NoError(t, err)

	require.NoError(t, s.Apply(map[string]interface{}{"name": "   ", "price": "10"}))
	_, err = s.Submit(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidation))

	v := s.View()
	assert.Equal(t, StateOpen, v.State)
	assert.Equal(t, "Please enter the product name", v.FieldErrors["name"])
	assert.Equal(t, 0, f.srv.Count(http.MethodPost, "/products"))
	assert.Empty(t, f.store.Products())
}

func TestSubmit_FieldValidation(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]interface{}
		image  bool
		field  string
		want   string
	}{
		{name: "missing price", fields: map[string]interface{}{"name": "Lamp"}, field: "price", want: "Please enter the price"},
		{name: "non numeric price", fields: map[string]interface{}{"name": "Lamp", "price": "abc"}, field: "price", want: "Invalid price format"},
		{name: "negative price", fields: map[string]interface{}{"name": "Lamp", "price": -1}, field: "price", want: "Price cannot be negative"},
		{name: "negative original price", fields: map[string]interface{}{"name": "Lamp", "price": 1, "originalPrice": "-2"}, field: "originalPrice", want: "Original price cannot be negative"},
		{name: "rating out of range", fields: map[string]interface{}{"name": "Lamp", "price": 1, "rating": 7}, field: "rating", want: "Rating must be between 0 and 5"},
		{name: "NaN rating", fields: map[string]interface{}{"name": "Lamp", "price": "10", "rating": "NaN"}, field: "rating", want: "Invalid rating format"},
		{name: "infinite rating", fields: map[string]interface{}{"name": "Lamp", "price": "10", "rating": "+Inf"}, field: "rating", want: "Invalid rating format"},
		{name: "NaN rating with image", fields: map[string]interface{}{"name": "Lamp", "price": "10", "rating": "NaN"}, image: true, field: "rating", want: "Invalid rating format"},
		{name: "fractional reviews", fields: map[string]interface{}{"name": "Lamp", "price": 1, "reviewCount": "1.5"}, field: "reviewCount", want: "Invalid reviews count format"},
		{name: "unknown badge", fields: map[string]interface{}{"name": "Lamp", "price": 1, "badge": "clearance"}, field: "badge", want: `Unknown badge "clearance"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			s, err := f.manager.OpenCreate(context.Background(), admin, f.store)
			require.NoError(t, err)

			require.NoError(t, s.Apply(tt.fields))
			if tt.image {
				require.NoError(t, s.Attach(models.Attachment{Filename: "lamp.png", Data: pngBytes}))
			}
			_, err = s.Submit(context.Background())
			require.Error(t, err)

			v := s.View()
			assert.Equal(t, StateOpen, v.State)
			assert.Equal(t, tt.want, v.FieldErrors[tt.field])
			assert.Equal(t, 0, f.srv.Count(http.MethodPost, "/products"))
		})
	}
}

func TestApply(t *testing.T) {
	f := newFixture(t)
	s, err := f.manager.OpenCreate(context.Background(), admin, f.store)
	require.NoError(t, err)

	require.NoError(t, s.Apply(map[string]interface{}{
		"name":       "Lamp",
		"price":      12.5,
		"reviews":    3,
		"inStock":    "false",
		"categories": []interface{}{2, "1"},
	}))
	v := s.View()
	assert.Equal(t, "12.5", v.Form.Price)
	assert.Equal(t, "3", v.Form.ReviewCount)
	assert.False(t, v.Form.InStock)
	assert.Equal(t, []models.CategoryID{"2", "1"}, v.Form.Categories)

	err = s.Apply(map[string]interface{}{"name": "Other", "sku": "X-1"})
	assert.True(t, errors.Is(err, ErrUnknownField))
	err = s.Apply(map[string]interface{}{"name": "Other", "price": map[string]interface{}{"amount": 1}})
	assert.True(t, errors.Is(err, ErrInvalidValue))
	// rejected patches leave the form untouched
	assert.Equal(t, "Lamp", s.View().Form.Name)

	// transiently invalid values are accepted until submission
	require.NoError(t, s.Apply(map[string]interface{}{"price": "abc"}))
	assert.Equal(t, "abc", s.View().Form.Price)
}

func TestAttach(t *testing.T) {
	f := newFixture(t)
	s, err := f.manager.OpenCreate(context.Background(), admin, f.store)
	require.NoError(t, err)

	assert.True(t, errors.Is(s.Attach(models.Attachment{Filename: "a.gif", Data: pngBytes}), ErrUnsupportedImage))
	assert.True(t, errors.Is(s.Attach(models.Attachment{Filename: "a.png", Data: []byte("not an image at all")}), ErrUnsupportedImage))
	assert.True(t, errors.Is(s.Attach(models.Attachment{Filename: "a.png"}), ErrEmptyImage))

	require.NoError(t, s.Attach(models.Attachment{Filename: "a.png", Data: pngBytes}))
	require.NoError(t, s.Attach(models.Attachment{Filename: "b.JPG", Data: jpegBytes}))
	att := s.View().Attachment
	require.NotNil(t, att)
	assert.Equal(t, "b.JPG", att.Filename)
	assert.Equal(t, "image/jpeg", att.ContentType)
	assert.Equal(t, int64(len(jpegBytes)), att.Size)

	require.NoError(t, s.Detach())
	assert.Nil(t, s.View().Attachment)
}

func TestAttach_SizeLimit(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.srv.CategoriesClient(), ManagerOptions{MaxImageBytes: 16})
	s, err := m.OpenCreate(context.Background(), admin, f.store)
	require.NoError(t, err)

	assert.True(t, errors.Is(s.Attach(models.Attachment{Filename: "a.png", Data: pngBytes}), ErrImageTooLarge))
}

func TestSubmit_CreateWithUpload(t *testing.T) {
	f := newFixture(t)
	s, err := f.manager.OpenCreate(context.Background(), admin, f.store)
	require.NoError(t, err)

	require.NoError(t, s.Apply(map[string]interface{}{"name": "Lamp", "price": "15", "categories": []interface{}{"1"}}))
	require.NoError(t, s.Attach(models.Attachment{Filename: "lamp.png", Data: pngBytes}))

	created, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, "https://cdn.example.com/products/lamp.png", created.Image)
	assert.Len(t, f.store.Products(), 1)
}

func TestSubmit_ScenarioEditPrice(t *testing.T) {
	f := newFixture(t, models.Product{ID: "1", Name: "A", Price: decimal.NewFromInt(10), InStock: true})
	target, ok := f.store.Lookup("1")
	require.True(t, ok)

	s, err := f.manager.OpenEdit(context.Background(), admin, f.store, target)
	require.NoError(t, err)
	require.NoError(t, s.Apply(map[string]interface{}{"price": 12}))

	_, err = s.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, f.srv.Count(http.MethodPut, "/products/1"))
	products := f.store.Products()
	require.Len(t, products, 1)
	assert.Equal(t, "A", products[0].Name)
	assert.True(t, decimal.NewFromInt(12).Equal(products[0].Price))
}

func TestSubmit_ServerFailureKeepsSessionOpen(t *testing.T) {
	f := newFixture(t)
	f.srv.FailNext(http.MethodPost, http.StatusBadRequest, `{"error":"name is required"}`)

	s, err := f.manager.OpenCreate(context.Background(), admin, f.store)
	require.NoError(t, err)
	require.NoError(t, s.Apply(map[string]interface{}{"name": "Lamp", "price": 3}))

	_, err = s.Submit(context.Background())
	require.Error(t, err)

	v := s.View()
	assert.Equal(t, StateOpen, v.State)
	assert.Equal(t, "name is required", v.Error)
	assert.Equal(t, "Lamp", v.Form.Name)

	// retry succeeds with the same form
	_, err = s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateClosed, s.State())
}

func TestCancelDuringSubmission(t *testing.T) {
	f := newFixture(t)
	release := f.srv.Hold(http.MethodPost)
	defer release()

	s, err := f.manager.OpenCreate(context.Background(), admin, f.store)
	require.NoError(t, err)
	require.NoError(t, s.Apply(map[string]interface{}{"name": "Lamp", "price": 3}))

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return s.State() == StateSubmitting }, time.Second, 5*time.Millisecond)

	assert.True(t, errors.Is(s.Apply(map[string]interface{}{"name": "x"}), ErrSubmitting))
	s.Cancel()
	release()
	require.NoError(t, <-done)

	assert.Equal(t, StateClosed, s.State())
	assert.Len(t, f.store.Products(), 1)
	assert.True(t, errors.Is(s.Apply(map[string]interface{}{"name": "x"}), ErrNotOpen))
}
