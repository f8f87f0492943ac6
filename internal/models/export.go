package models

// ExportFormat represents the file format for an admin table export
type ExportFormat string

const (
	ExportFormatXLSX ExportFormat = "xlsx"
)

// ExportColumn defines a column in the product table export
type ExportColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Width       float64
}

// ProductExportColumns returns the columns of the admin product table export
func ProductExportColumns() []ExportColumn {
	return []ExportColumn{
		{Name: "id", Description: "Product ID", Width: 12},
		{Name: "name", Description: "Product name", Width: 32},
		{Name: "price", Description: "Product price", Width: 12},
		{Name: "originalPrice", Description: "Original/compare price", Width: 14},
		{Name: "inStock", Description: "Stock status", Width: 14},
		{Name: "badge", Description: "Marketing badge", Width: 14},
		{Name: "rating", Description: "Rating (0-5)", Width: 10},
		{Name: "reviewCount", Description: "Reviews count", Width: 12},
		{Name: "categories", Description: "Category names", Width: 32},
		{Name: "image", Description: "Image URL", Width: 48},
	}
}
