package service

import (
	"fmt"
	"math"
	"strconv"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
)

// syncFieldSet maps the payload's per-field toggles onto canonical field
// names. Identity and listing fields are always carried.
func syncFieldSet(p *models.SyncPayload) map[string]bool {
	set := map[string]bool{
		"name":     true,
		"barcode":  true,
		"category": true,
		"status":   true,
	}
	if p.SyncPrices {
		set["price"] = true
		set["compare_at_price"] = true
	}
	if p.SyncInventory {
		set["inventory"] = true
	}
	if p.SyncDescriptions {
		set["description"] = true
	}
	if p.SyncImages {
		set["image_url"] = true
	}
	return set
}

// filterFields copies the entries whose names are in the allowed set.
func filterFields(fields map[string]any, allowed map[string]bool) map[string]any {
	out := make(map[string]any, len(fields))
	for name, value := range fields {
		if allowed[name] {
			out[name] = value
		}
	}
	return out
}

// pruneEmpty drops blank string values in place. The storefront mirror
// reports absent fields as empty strings, which must read as "not
// provided" rather than "cleared" during reconciliation.
func pruneEmpty(fields map[string]any) map[string]any {
	for name, value := range fields {
		if s, ok := value.(string); ok && s == "" {
			delete(fields, name)
		}
	}
	return fields
}

// applyMarkup scales the price fields in place by the vendor's markup
// percentage. Unparsable prices are left as they came in.
func applyMarkup(fields map[string]any, markup float64) {
	if markup == 0 {
		return
	}
	for _, name := range []string{"price", "compare_at_price"} {
		raw, ok := fields[name].(string)
		if !ok || raw == "" {
			continue
		}
		scaled, err := scalePrice(raw, 1+markup/100)
		if err != nil {
			continue
		}
		fields[name] = scaled
	}
}

// scalePrice multiplies a decimal price string and rounds to cents.
func scalePrice(price string, factor float64) (string, error) {
	v, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return "", fmt.Errorf("parse price %q: %w", price, err)
	}
	scaled := math.Round(v*factor*100) / 100
	return strconv.FormatFloat(scaled, 'f', 2, 64), nil
}

func isSyncField(name string) bool {
	for _, n := range models.SyncFieldNames {
		if n == name {
			return true
		}
	}
	return false
}

// normalizeFieldValue shapes a JSON-decoded value the way SetSyncField
// expects it: decimal strings for prices, an int for inventory, strings
// for the rest.
func normalizeFieldValue(name string, value any) (any, error) {
	switch name {
	case "price", "compare_at_price":
		switch v := value.(type) {
		case string:
			return v, nil
		case float64:
			return strconv.FormatFloat(math.Round(v*100)/100, 'f', 2, 64), nil
		}
		return nil, fmt.Errorf("field %s wants a decimal string", name)
	case "inventory":
		switch v := value.(type) {
		case int:
			return v, nil
		case float64:
			return int(v), nil
		}
		return nil, fmt.Errorf("field inventory wants a number")
	default:
		if v, ok := value.(string); ok {
			return v, nil
		}
		return nil, fmt.Errorf("field %s wants a string", name)
	}
}
