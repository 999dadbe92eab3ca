// Package feed reads vendor catalogs from spreadsheet uploads and
// shared Google Sheets and normalizes them into feed records keyed by
// canonical sync field names.
package feed

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
)

// columnAliases maps the header spellings vendors actually send to
// canonical sync field names.
var columnAliases = map[string]string{
	"sku":              "sku",
	"item sku":         "sku",
	"product sku":      "sku",
	"name":             "name",
	"title":            "name",
	"product name":     "name",
	"description":      "description",
	"body":             "description",
	"price":            "price",
	"unit price":       "price",
	"wholesale price":  "price",
	"compare at price": "compare_at_price",
	"msrp":             "compare_at_price",
	"rrp":              "compare_at_price",
	"inventory":        "inventory",
	"qty":              "inventory",
	"quantity":         "inventory",
	"stock":            "inventory",
	"barcode":          "barcode",
	"upc":              "barcode",
	"ean":              "barcode",
	"category":         "category",
	"product type":     "category",
	"type":             "category",
	"image":            "image_url",
	"image url":        "image_url",
	"status":           "status",
}

func canonicalColumn(header string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(header))
	key = strings.ReplaceAll(key, "_", " ")
	key = strings.ReplaceAll(key, "-", " ")
	name, ok := columnAliases[key]
	return name, ok
}

// buildRecords turns raw sheet rows into feed records. The first row
// must be a header carrying a sku column; rows without a sku are
// skipped. Empty cells leave the field absent so sparse feeds only
// update what they carry.
func buildRecords(rows [][]string) ([]*models.FeedRecord, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("feed is empty")
	}

	columns := make(map[int]string)
	skuCol := -1
	for i, header := range rows[0] {
		name, ok := canonicalColumn(header)
		if !ok {
			continue
		}
		if name == "sku" {
			skuCol = i
			continue
		}
		columns[i] = name
	}
	if skuCol < 0 {
		return nil, fmt.Errorf("feed has no sku column")
	}

	var records []*models.FeedRecord
	for i, row := range rows[1:] {
		sku := ""
		if skuCol < len(row) {
			sku = strings.TrimSpace(row[skuCol])
		}
		if sku == "" {
			continue
		}

		fields := make(map[string]any)
		for col, name := range columns {
			if col >= len(row) {
				continue
			}
			raw := strings.TrimSpace(row[col])
			if raw == "" {
				continue
			}
			if value, ok := fieldValue(name, raw); ok {
				fields[name] = value
			}
		}

		records = append(records, &models.FeedRecord{
			Row:    i + 2,
			SKU:    sku,
			Fields: fields,
		})
	}
	return records, nil
}

// fieldValue converts a raw cell into the type SetSyncField expects for
// the field. Unparseable numeric cells drop the field rather than
// poisoning the record.
func fieldValue(name, raw string) (any, bool) {
	switch name {
	case "price", "compare_at_price":
		return normalizePrice(raw)
	case "inventory":
		return parseInventory(raw)
	case "status":
		return strings.ToLower(raw), true
	default:
		return raw, true
	}
}

// normalizePrice renders money cells as fixed two-decimal strings, so
// "$1,299.5" and "1299.50" compare equal downstream.
func normalizePrice(raw string) (any, bool) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return nil, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || f < 0 {
		return nil, false
	}
	return strconv.FormatFloat(f, 'f', 2, 64), true
}

func parseInventory(raw string) (any, bool) {
	if n, err := strconv.Atoi(raw); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(f), true
	}
	return nil, false
}
