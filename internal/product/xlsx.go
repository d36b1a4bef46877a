// AngelaMos | 2026
// xlsx.go

package product

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"

	"github.com/carterperez-dev/harvest-table/internal/core"
)

const sheetName = "Products"

var workbookHeaders = []string{
	"ID", "Name", "Description", "Category", "Price", "Stock",
	"ImageURL", "Active", "Featured", "CreatedAt", "UpdatedAt",
}

func writeWorkbook(w io.Writer, products []Product) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(sheetName)
	if err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, h := range workbookHeaders {
		header.AddCell().SetString(h)
	}

	for i := range products {
		p := &products[i]
		row := sheet.AddRow()

		row.AddCell().SetString(p.ID)
		row.AddCell().SetString(p.Name)
		row.AddCell().SetString(p.Description)
		row.AddCell().SetString(p.Category)
		price, _ := p.Price.Float64()
		row.AddCell().SetFloat(price)
		row.AddCell().SetInt(p.Stock)
		row.AddCell().SetString(p.ImageURL)
		row.AddCell().SetBool(p.IsActive)
		row.AddCell().SetBool(p.IsFeatured)
		row.AddCell().SetString(p.CreatedAt.Format("2006-01-02 15:04:05"))
		row.AddCell().SetString(p.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	return nil
}

// readWorkbook parses the first sheet in the export layout. The header row
// is skipped; timestamps are ignored.
func readWorkbook(r io.ReaderAt, size int64) ([]Product, int, error) {
	file, err := xlsx.OpenReaderAt(r, size)
	if err != nil {
		return nil, 0, fmt.Errorf("open workbook: %w", core.ErrInvalidInput)
	}

	if len(file.Sheets) == 0 || len(file.Sheets[0].Rows) < 2 {
		return nil, 0, fmt.Errorf("workbook has no data rows: %w", core.ErrInvalidInput)
	}

	var products []Product
	skipped := 0

	for _, row := range file.Sheets[0].Rows[1:] {
		get := func(i int) string {
			if row == nil || i >= len(row.Cells) {
				return ""
			}
			return strings.TrimSpace(row.Cells[i].String())
		}

		name := get(1)
		price, priceErr := decimal.NewFromString(get(4))
		if name == "" || priceErr != nil || checkPrice(price.Round(2)) != nil {
			skipped++
			continue
		}

		stock, err := strconv.Atoi(get(5))
		if err != nil || stock < 0 {
			stock = 0
		}

		products = append(products, Product{
			ID:          get(0),
			Name:        name,
			Description: get(2),
			Category:    get(3),
			Price:       price.Round(2),
			Stock:       stock,
			ImageURL:    get(6),
			IsActive:    parseBool(get(7), true),
			IsFeatured:  parseBool(get(8), false),
		})
	}

	return products, skipped, nil
}

func parseBool(s string, fallback bool) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y":
		return true
	case "0", "false", "no", "n":
		return false
	default:
		return fallback
	}
}
