// Package catalogtest provides an in-memory catalog API for tests.
package catalogtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"storefront-admin-service/internal/clients"
	"storefront-admin-service/internal/models"
)

// Request is one call received by the server
type Request struct {
	Method      string
	Path        string
	ContentType string
	Header      http.Header
	Body        []byte
}

// ResponseStyle selects how mutations are acknowledged
type ResponseStyle int

const (
	// Echo returns the stored product
	Echo ResponseStyle = iota
	// MessageOnly returns {message, product_id} without the entity
	MessageOnly
)

type failure struct {
	status int
	body   string
}

// Server is a fake catalog backend holding products and categories
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	products   []models.Product
	categories []models.Category
	nextID     int
	style      ResponseStyle
	requests   []Request
	failures   map[string][]failure
	gates      map[string]chan struct{}
}

// NewServer starts a server seeded with products; it is closed on cleanup
func NewServer(t testing.TB, products ...models.Product) *Server {
	t.Helper()
	s := &Server{
		nextID:   100,
		failures: make(map[string][]failure),
		gates:    make(map[string]chan struct{}),
	}
	for _, p := range products {
		s.products = append(s.products, p.Clone())
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	t.Cleanup(s.Close)
	return s
}

// Client returns a catalog client pointed at the server
func (s *Server) Client() *clients.CatalogClient {
	return clients.NewCatalogClient(clients.Config{BaseURL: s.URL, Interceptors: []clients.RequestInterceptor{clients.ForwardCredentials()}})
}

// CategoriesClient returns a categories client pointed at the server
func (s *Server) CategoriesClient() *clients.CategoriesClient {
	return clients.NewCategoriesClient(clients.Config{BaseURL: s.URL})
}

// SetStyle changes how mutations are acknowledged
func (s *Server) SetStyle(style ResponseStyle) {
	s.mu.Lock()
	s.style = style
	s.mu.Unlock()
}

// SetCategories replaces the category list
func (s *Server) SetCategories(categories ...models.Category) {
	s.mu.Lock()
	s.categories = categories
	s.mu.Unlock()
}

// FailNext makes the next request with method fail with status and body
func (s *Server) FailNext(method string, status int, body string) {
	s.mu.Lock()
	s.failures[method] = append(s.failures[method], failure{status: status, body: body})
	s.mu.Unlock()
}

// Hold blocks requests with method until the returned release is called
func (s *Server) Hold(method string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[method] = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, method)
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Requests returns every request received so far
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count returns how many requests matched method and path
func (s *Server) Count(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// Products returns the server-side collection
func (s *Server) Products() []models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Product, len(s.products))
	for i, p := range s.products {
		out[i] = p.Clone()
	}
	return out
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method:      r.Method,
		Path:        r.URL.Path,
		ContentType: r.Header.Get("Content-Type"),
		Header:      r.Header.Clone(),
		Body:        body,
	})
	gate := s.gates[r.Method]
	var fail *failure
	if queued := s.failures[r.Method]; len(queued) > 0 {
		fail = &queued[0]
		s.failures[r.Method] = queued[1:]
	}
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if fail != nil {
		writeJSON(w, fail.status, json.RawMessage(fail.body))
		return
	}

	path := strings.Trim(r.URL.Path, "/")
	segments := strings.Split(path, "/")

	switch {
	case path == "categories" && r.Method == http.MethodGet:
		s.mu.Lock()
		categories := append([]models.Category{}, s.categories...)
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
	case path == "products" && r.Method == http.MethodGet:
		products := s.Products()
		writeJSON(w, http.StatusOK, map[string]interface{}{"products": products, "total": len(products)})
	case path == "products" && r.Method == http.MethodPost:
		s.create(w, r, body)
	case len(segments) == 2 && segments[0] == "products" && r.Method == http.MethodPut:
		s.update(w, r, models.ProductID(segments[1]), body)
	case len(segments) == 2 && segments[0] == "products" && r.Method == http.MethodDelete:
		s.remove(w, models.ProductID(segments[1]))
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
	}
}

func (s *Server) create(w http.ResponseWriter, r *http.Request, body []byte) {
	product, err := decodeProduct(r, body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.nextID++
	product.ID = models.ProductID(strconv.Itoa(s.nextID))
	s.products = append(s.products, product.Clone())
	style := s.style
	s.mu.Unlock()

	if style == MessageOnly {
		writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "Product created successfully", "product_id": product.ID})
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request, id models.ProductID, body []byte) {
	product, err := decodeProduct(r, body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.mu.Lock()
	idx := -1
	for i := range s.products {
		if s.products[i].ID == id {
			idx = i
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Product not found"})
		return
	}
	product.ID = id
	if product.Image == "" {
		product.Image = s.products[idx].Image
	}
	s.products[idx] = product.Clone()
	style := s.style
	s.mu.Unlock()

	if style == MessageOnly {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Product updated successfully"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"product": product})
}

func (s *Server) remove(w http.ResponseWriter, id models.ProductID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.products {
		if s.products[i].ID == id {
			s.products = append(s.products[:i], s.products[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Product not found"})
}

func decodeProduct(r *http.Request, body []byte) (models.Product, error) {
	var product models.Product
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err := json.Unmarshal(body, &product)
		return product, err
	}

	r.Body = io.NopCloser(strings.NewReader(string(body)))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return product, err
	}
	form := r.MultipartForm
	first := func(key string) string {
		if v := form.Value[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}

	product.Name = first("name")
	product.Description = first("description")
	product.Price, _ = decimal.NewFromString(first("price"))
	if v := first("originalPrice"); v != "" {
		op, _ := decimal.NewFromString(v)
		product.OriginalPrice = &op
	}
	product.Rating, _ = strconv.ParseFloat(first("rating"), 64)
	product.ReviewCount, _ = strconv.Atoi(first("reviewCount"))
	product.InStock, _ = strconv.ParseBool(first("inStock"))
	product.Badge = models.Badge(first("badge"))
	product.Categories = []models.CategoryID{}
	for _, id := range form.Value["categories"] {
		product.Categories = append(product.Categories, models.CategoryID(id))
	}
	product.Image = first("image")
	if files := form.File["image"]; len(files) > 0 {
		product.Image = "https://cdn.example.com/products/" + files[0].Filename
	}
	return product, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
