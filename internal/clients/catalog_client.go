package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"storefront-admin-service/internal/models"
)

// CatalogClient talks to the remote catalog service's /products resource
type CatalogClient struct {
	transport *transport
}

// MutationResult is the outcome of a successful create or update
type MutationResult struct {
	Product models.Product
	// Message is the server's acknowledgment text, if any
	Message string
	// Echoed is false when the server acknowledged without returning the
	// stored product; Product is then synthesized from the payload.
	Echoed bool
}

// NewCatalogClient creates a new catalog client
func NewCatalogClient(cfg Config) *CatalogClient {
	return &CatalogClient{transport: newTransport(cfg, "catalog_client")}
}

// ListProducts fetches the full product collection
func (c *CatalogClient) ListProducts(ctx context.Context) ([]models.Product, error) {
	const op = "list products"
	body, err := c.transport.do(ctx, op, http.MethodGet, c.transport.endpoint("products"), nil, "")
	if err != nil {
		return nil, err
	}

	raw, err := decodeList(body, "products", "data", "results")
	if err != nil {
		return nil, invalidResponse(op, err)
	}
	var products []models.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, invalidResponse(op, err)
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

// CreateProduct submits a new product
func (c *CatalogClient) CreateProduct(ctx context.Context, payload models.ProductPayload) (*MutationResult, error) {
	const op = "create product"
	reqBody, contentType, err := encodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	body, err := c.transport.do(ctx, op, http.MethodPost, c.transport.endpoint("products"), reqBody, contentType)
	if err != nil {
		return nil, err
	}
	result, err := decodeMutation(body, payload, "")
	if err != nil {
		return nil, invalidResponse(op, err)
	}
	return result, nil
}

// UpdateProduct replaces the attributes of an existing product
func (c *CatalogClient) UpdateProduct(ctx context.Context, id models.ProductID, payload models.ProductPayload) (*MutationResult, error) {
	const op = "update product"
	if id.IsZero() {
		return nil, fmt.Errorf("%s: product id is required", op)
	}
	reqBody, contentType, err := encodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	body, err := c.transport.do(ctx, op, http.MethodPut, c.transport.endpoint("products", id.String()), reqBody, contentType)
	if err != nil {
		return nil, err
	}
	result, err := decodeMutation(body, payload, id)
	if err != nil {
		return nil, invalidResponse(op, err)
	}
	return result, nil
}

// DeleteProduct removes a product; returns the server's message if any
func (c *CatalogClient) DeleteProduct(ctx context.Context, id models.ProductID) (string, error) {
	const op = "delete product"
	if id.IsZero() {
		return "", fmt.Errorf("%s: product id is required", op)
	}
	body, err := c.transport.do(ctx, op, http.MethodDelete, c.transport.endpoint("products", id.String()), nil, "")
	if err != nil {
		return "", err
	}
	return extractMessage(body), nil
}

func invalidResponse(op string, err error) *APIError {
	return &APIError{Op: op, Kind: KindServer, Message: "invalid response from catalog service", Err: err}
}

// encodePayload renders JSON, or multipart/form-data when an image is attached
func encodePayload(payload models.ProductPayload) (io.Reader, string, error) {
	if !payload.HasAttachment() {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, field := range payload.FormFields() {
		if err := w.WriteField(field.Name, field.Value); err != nil {
			return nil, "", err
		}
	}

	att := payload.Attachment
	contentType := att.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, quoteEscaper.Replace(att.Filename)))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(att.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// decodeMutation accepts a bare product, {product:{...}}, {data:{...}},
// {message, product_id} or an empty body.
func decodeMutation(body []byte, payload models.ProductPayload, id models.ProductID) (*MutationResult, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return &MutationResult{Product: payload.ToProduct(id)}, nil
	}

	var envelope struct {
		Product   json.RawMessage   `json:"product"`
		Data      json.RawMessage   `json:"data"`
		ProductID *models.ProductID `json:"product_id"`
		ID        models.ProductID  `json:"id"`
		Name      *string           `json:"name"`
		Message   string            `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}

	result := &MutationResult{Message: envelope.Message}

	var entity json.RawMessage
	switch {
	case isObject(envelope.Product):
		entity = envelope.Product
	case isObject(envelope.Data):
		entity = envelope.Data
	case envelope.Name != nil:
		entity = body
	}

	if entity != nil {
		var product models.Product
		if err := json.Unmarshal(entity, &product); err != nil {
			return nil, err
		}
		if product.ID.IsZero() {
			product.ID = id
		}
		result.Product = product
		result.Echoed = true
		return result, nil
	}

	switch {
	case envelope.ProductID != nil && !envelope.ProductID.IsZero():
		id = *envelope.ProductID
	case !envelope.ID.IsZero():
		id = envelope.ID
	}
	result.Product = payload.ToProduct(id)
	return result, nil
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
