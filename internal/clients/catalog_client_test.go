package clients

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-admin-service/internal/models"
)

type recordedRequest struct {
	Method      string
	Path        string
	ContentType string
	Header      http.Header
	Body        []byte
}

type requestLog struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (l *requestLog) all() []recordedRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]recordedRequest, len(l.requests))
	copy(out, l.requests)
	return out
}

func newCatalogServer(t *testing.T, status int, response string) (*httptest.Server, *requestLog) {
	t.Helper()
	recorded := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		recorded.mu.Lock()
		defer recorded.mu.Unlock()
		recorded.requests = append(recorded.requests, recordedRequest{
			Method:      r.Method,
			Path:        r.URL.Path,
			ContentType: r.Header.Get("Content-Type"),
			Header:      r.Header.Clone(),
			Body:        body,
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, recorded
}

func testPayload() models.ProductPayload {
	return models.ProductPayload{
		Name:       "Lamp",
		Price:      decimal.NewFromInt(12),
		InStock:    true,
		Categories: []models.CategoryID{"3"},
	}
}

func TestListProducts(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantIDs  []models.ProductID
	}{
		{name: "bare array", response: `[{"id":1,"name":"A","price":10}]`, wantIDs: []models.ProductID{"1"}},
		{name: "products envelope", response: `{"products":[{"id":"a","name":"A","price":"1"},{"id":2,"name":"B","price":2}],"total":2}`, wantIDs: []models.ProductID{"a", "2"}},
		{name: "data envelope", response: `{"success":true,"data":[{"id":7,"name":"C","price":3}]}`, wantIDs: []models.ProductID{"7"}},
		{name: "empty body", response: ``, wantIDs: []models.ProductID{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, recorded := newCatalogServer(t, http.StatusOK, tt.response)
			client := NewCatalogClient(Config{BaseURL: srv.URL})

			products, err := client.ListProducts(context.Background())
			require.NoError(t, err)

			ids := make([]models.ProductID, 0, len(products))
			for _, p := range products {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			require.Len(t, recorded.all(), 1)
			assert.Equal(t, http.MethodGet, recorded.all()[0].Method)
			assert.Equal(t, "/products", recorded.all()[0].Path)
		})
	}
}

func TestListProducts_TrailingSlash(t *testing.T) {
	srv, recorded := newCatalogServer(t, http.StatusOK, `[]`)
	client := NewCatalogClient(Config{BaseURL: srv.URL + "/", TrailingSlash: true})

	_, err := client.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/products/", recorded.all()[0].Path)
}

func TestListProducts_InvalidBody(t *testing.T) {
	srv, _ := newCatalogServer(t, http.StatusOK, `{"unexpected":true}`)
	client := NewCatalogClient(Config{BaseURL: srv.URL})

	_, err := client.ListProducts(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindServer, KindOf(err))
}

func TestForwardCredentials(t *testing.T) {
	srv, recorded := newCatalogServer(t, http.StatusOK, `[]`)
	client := NewCatalogClient(Config{
		BaseURL:      srv.URL,
		Interceptors: []RequestInterceptor{ForwardCredentials()},
	})

	ctx := WithCredentials(context.Background(), Credentials{BearerToken: "tok", TenantID: "shop-1", UserID: "u-1"})
	_, err := client.ListProducts(ctx)
	require.NoError(t, err)

	header := recorded.all()[0].Header
	assert.Equal(t, "Bearer tok", header.Get("Authorization"))
	assert.Equal(t, "shop-1", header.Get("X-Tenant-ID"))
	assert.Equal(t, "shop-1", header.Get("Retailer-Domain"))
	assert.Equal(t, "u-1", header.Get("X-User-ID"))
}

func TestCreateProduct_JSON(t *testing.T) {
	srv, recorded := newCatalogServer(t, http.StatusCreated, `{"id":42,"name":"Lamp","price":12,"categories":[3]}`)
	client := NewCatalogClient(Config{BaseURL: srv.URL})

	result, err := client.CreateProduct(context.Background(), testPayload())
	require.NoError(t, err)

	assert.True(t, result.Echoed)
	assert.Equal(t, models.ProductID("42"), result.Product.ID)
	assert.Equal(t, []models.CategoryID{"3"}, result.Product.Categories)

	req := recorded.all()[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "application/json", req.ContentType)

	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal(req.Body, &sent))
	assert.Equal(t, "Lamp", sent["name"])
	assert.Equal(t, "12", sent["price"])
	assert.Nil(t, sent["badge"])
}

func TestCreateProduct_LegacyAcknowledgment(t *testing.T) {
	srv, _ := newCatalogServer(t, http.StatusCreated, `{"message":"Product created successfully","product_id":9}`)
	client := NewCatalogClient(Config{BaseURL: srv.URL})

	result, err := client.CreateProduct(context.Background(), testPayload())
	require.NoError(t, err)

	assert.False(t, result.Echoed)
	assert.Equal(t, "Product created successfully", result.Message)
	assert.Equal(t, models.ProductID("9"), result.Product.ID)
	assert.Equal(t, "Lamp", result.Product.Name)
}

func TestCreateProduct_Multipart(t *testing.T) {
	srv, recorded := newCatalogServer(t, http.StatusCreated, `{"product":{"id":5,"name":"Lamp","price":12,"image":"https://cdn/x.png"}}`)
	client := NewCatalogClient(Config{BaseURL: srv.URL})

	payload := testPayload()
	payload.Categories = []models.CategoryID{"3", "4"}
	payload.Attachment = &models.Attachment{Filename: "x.png", ContentType: "image/png", Data: []byte("png-bytes")}

	result, err := client.CreateProduct(context.Background(), payload)
	require.NoError(t, err)
	assert.True(t, result.Echoed)
	assert.Equal(t, "https://cdn/x.png", result.Product.Image)

	req := recorded.all()[0]
	require.True(t, strings.HasPrefix(req.ContentType, "multipart/form-data"))

	parsed := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(string(req.Body)))
	parsed.Header.Set("Content-Type", req.ContentType)
	require.NoError(t, parsed.ParseMultipartForm(1<<20))

	assert.Equal(t, []string{"Lamp"}, parsed.MultipartForm.Value["name"])
	assert.Equal(t, []string{"3", "4"}, parsed.MultipartForm.Value["categories"])
	require.Len(t, parsed.MultipartForm.File["image"], 1)
	fh := parsed.MultipartForm.File["image"][0]
	assert.Equal(t, "x.png", fh.Filename)
	assert.Equal(t, "image/png", fh.Header.Get("Content-Type"))
}

func TestUpdateProduct(t *testing.T) {
	t.Run("echoed entity", func(t *testing.T) {
		srv, recorded := newCatalogServer(t, http.StatusOK, `{"data":{"id":1,"name":"A","price":12}}`)
		client := NewCatalogClient(Config{BaseURL: srv.URL})

		result, err := client.UpdateProduct(context.Background(), "1", testPayload())
		require.NoError(t, err)
		assert.True(t, result.Echoed)
		assert.True(t, decimal.NewFromInt(12).Equal(result.Product.Price))
		assert.Equal(t, http.MethodPut, recorded.all()[0].Method)
		assert.Equal(t, "/products/1", recorded.all()[0].Path)
	})

	t.Run("message only", func(t *testing.T) {
		srv, _ := newCatalogServer(t, http.StatusOK, `{"message":"Product updated successfully"}`)
		client := NewCatalogClient(Config{BaseURL: srv.URL})

		result, err := client.UpdateProduct(context.Background(), "1", testPayload())
		require.NoError(t, err)
		assert.False(t, result.Echoed)
		assert.Equal(t, models.ProductID("1"), result.Product.ID)
		assert.Equal(t, "Product updated successfully", result.Message)
	})

	t.Run("missing id", func(t *testing.T) {
		client := NewCatalogClient(Config{BaseURL: "http://127.0.0.1:1"})
		_, err := client.UpdateProduct(context.Background(), "", testPayload())
		assert.Error(t, err)
	})
}

func TestDeleteProduct(t *testing.T) {
	srv, recorded := newCatalogServer(t, http.StatusNoContent, ``)
	client := NewCatalogClient(Config{BaseURL: srv.URL})

	msg, err := client.DeleteProduct(context.Background(), "2")
	require.NoError(t, err)
	assert.Empty(t, msg)
	assert.Equal(t, http.MethodDelete, recorded.all()[0].Method)
	assert.Equal(t, "/products/2", recorded.all()[0].Path)
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
		wantMsg  string
		sentinel error
	}{
		{name: "validation", status: http.StatusBadRequest, body: `{"error":"Price cannot be negative"}`, wantKind: KindValidation, wantMsg: "Price cannot be negative", sentinel: ErrRejected},
		{name: "nested message", status: http.StatusUnprocessableEntity, body: `{"success":false,"error":{"code":"VALIDATION_ERROR","message":"bad badge"}}`, wantKind: KindValidation, wantMsg: "bad badge", sentinel: ErrRejected},
		{name: "not found", status: http.StatusNotFound, body: `{"error":"Product not found"}`, wantKind: KindNotFound, wantMsg: "Product not found", sentinel: ErrNotFound},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"detail":"Authentication credentials were not provided."}`, wantKind: KindUnauthorized, wantMsg: "Authentication credentials were not provided.", sentinel: ErrUnauthorized},
		{name: "server", status: http.StatusInternalServerError, body: `<html>boom</html>`, wantKind: KindServer, wantMsg: "Internal Server Error", sentinel: ErrServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newCatalogServer(t, tt.status, tt.body)
			client := NewCatalogClient(Config{BaseURL: srv.URL})

			_, err := client.DeleteProduct(context.Background(), "1")
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.wantKind, apiErr.Kind)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMsg, apiErr.UserMessage())
			assert.True(t, errors.Is(err, tt.sentinel))
		})
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewCatalogClient(Config{BaseURL: url})
	_, err := client.ListProducts(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.True(t, errors.Is(err, ErrNetwork))
}

func TestExtractMessage(t *testing.T) {
	assert.Equal(t, "", extractMessage(nil))
	assert.Equal(t, "plain failure", extractMessage([]byte("plain failure")))
	assert.Equal(t, "Product deleted successfully", extractMessage([]byte(`{"message":"Product deleted successfully"}`)))
	assert.Equal(t, "", extractMessage([]byte(`[1,2]`)))
}
