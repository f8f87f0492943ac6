package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"storefront-admin-service/internal/clients"
	"storefront-admin-service/internal/middleware"
	"storefront-admin-service/internal/models"
	"storefront-admin-service/internal/store"
)

const exportSheet = "Products"

type ExportHandler struct {
	stores     *store.Registry
	categories clients.CategoryLister
	logger     *logrus.Entry
}

func NewExportHandler(stores *store.Registry, categories clients.CategoryLister, logger *logrus.Entry) *ExportHandler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ExportHandler{
		stores:     stores,
		categories: categories,
		logger:     logger.WithField("component", "export_handler"),
	}
}

// ExportProducts downloads the admin product table as an Excel workbook
// @Summary Export products
// @Description Exports the current local collection. Category ids are resolved to names when the category list is available.
// @Tags Products
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Failure 401 {object} models.ErrorResponse
// @Router /admin/products/export [get]
func (h *ExportHandler) ExportProducts(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := middleware.GetTenantID(c)

	s, err := h.stores.ForTenant(ctx, tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	names := map[models.CategoryID]string{}
	if categories, err := h.categories.ListCategories(ctx); err != nil {
		// ids are exported as is
		h.logger.WithError(err).WithField("tenant_id", tenantID).Warn("export without category names")
	} else {
		names = clients.CategoryNames(categories)
	}

	f, err := buildProductWorkbook(s.Products(), names)
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("products_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+filename)

	if err := f.Write(c.Writer); err != nil {
		h.logger.WithError(err).Error("failed to write export workbook")
	}
}

func buildProductWorkbook(products []models.Product, categoryNames map[models.CategoryID]string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		f.Close()
		return nil, err
	}

	// Style for header row
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	columns := models.ProductExportColumns()
	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(exportSheet, cell, col.Name)
		f.SetCellStyle(exportSheet, cell, cell, headerStyle)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(exportSheet, colName, colName, col.Width)
	}

	for r, p := range products {
		row := exportRow(p, categoryNames)
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", r+2, err)
		}
	}

	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func exportRow(p models.Product, categoryNames map[models.CategoryID]string) []interface{} {
	originalPrice := ""
	if p.OriginalPrice != nil {
		originalPrice = p.OriginalPrice.StringFixed(2)
	}

	stock := "Out of Stock"
	if p.InStock {
		stock = "In Stock"
	}

	categories := make([]string, 0, len(p.Categories))
	for _, id := range p.Categories {
		if name, ok := categoryNames[id]; ok {
			categories = append(categories, name)
		} else {
			categories = append(categories, id.String())
		}
	}

	return []interface{}{
		p.ID.String(),
		p.Name,
		p.Price.StringFixed(2),
		originalPrice,
		stock,
		p.Badge.Label(),
		p.Rating,
		p.ReviewCount,
		strings.Join(categories, ", "),
		p.Image,
	}
}
