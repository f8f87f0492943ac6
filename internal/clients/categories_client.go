package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"storefront-admin-service/internal/models"
)

// CategoryLister returns the category list of the tenant in ctx
type CategoryLister interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
}

// CategoriesClient handles communication with the catalog's /categories resource
type CategoriesClient struct {
	transport *transport
}

// NewCategoriesClient creates a new categories client
func NewCategoriesClient(cfg Config) *CategoriesClient {
	return &CategoriesClient{transport: newTransport(cfg, "categories_client")}
}

// ListCategories fetches all categories of the tenant
func (c *CategoriesClient) ListCategories(ctx context.Context) ([]models.Category, error) {
	const op = "list categories"
	body, err := c.transport.do(ctx, op, http.MethodGet, c.transport.endpoint("categories"), nil, "")
	if err != nil {
		return nil, err
	}

	raw, err := decodeList(body, "categories", "data", "results")
	if err != nil {
		return nil, invalidResponse(op, err)
	}
	var categories []models.Category
	if err := json.Unmarshal(raw, &categories); err != nil {
		return nil, invalidResponse(op, err)
	}

	out := make([]models.Category, 0, len(categories))
	for _, cat := range categories {
		if cat.ID == "" {
			continue
		}
		out = append(out, cat)
	}
	c.transport.logger.WithField("count", len(out)).Debug("categories loaded")
	return out, nil
}

// CategoryNames maps ids to names; unknown ids are absent
func CategoryNames(categories []models.Category) map[models.CategoryID]string {
	names := make(map[models.CategoryID]string, len(categories))
	for _, cat := range categories {
		names[cat.ID] = cat.Name
	}
	return names
}

// SortCategories orders categories by name, case-insensitively
func SortCategories(categories []models.Category) {
	sort.SliceStable(categories, func(i, j int) bool {
		return strings.ToLower(categories[i].Name) < strings.ToLower(categories[j].Name)
	})
}
