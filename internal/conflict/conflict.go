package conflict

import (
	"fmt"
	"time"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
)

// Source is one authority's view of a product during reconciliation:
// its field values and when that authority last touched the record.
type Source struct {
	Fields     map[string]any
	ModifiedAt time.Time
}

// FieldTimes carries the per-source modification stamps for one field.
// A zero time means that source never reported a timestamp.
type FieldTimes struct {
	Vendor time.Time `json:"vendor,omitempty"`
	Local  time.Time `json:"local,omitempty"`
	Remote time.Time `json:"remote,omitempty"`
}

// ConflictField is one field where at least two authorities disagree.
type ConflictField struct {
	Name         string     `json:"name"`
	VendorValue  any        `json:"vendor_value,omitempty"`
	LocalValue   any        `json:"local_value,omitempty"`
	RemoteValue  any        `json:"remote_value,omitempty"`
	LastModified FieldTimes `json:"last_modified"`
}

// ProductConflict groups a product's conflicting fields with the action
// the engine recommends. It is transient: either auto-resolved into the
// product record or surfaced for human review, never stored on its own.
type ProductConflict struct {
	ProductID         int64           `json:"product_id"`
	SKU               string          `json:"sku"`
	Fields            []ConflictField `json:"fields"`
	RecommendedAction string          `json:"recommended_action"`
}

// ResolvedField records one auto-resolved field and which source won.
type ResolvedField struct {
	Name   string `json:"name"`
	Value  any    `json:"value"`
	Source string `json:"source"`
}

// Resolution is the outcome of a reconciliation pass. Resolved is a
// merged copy of the input product; Conflicts holds fields that need a
// human decision.
type Resolution struct {
	Resolved     *models.Product
	Conflicts    []ConflictField
	AutoResolved []ResolvedField
}

// valuesEqual compares field values across sources, tolerating the
// int/float64 mismatch JSON decoding introduces.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// isEmpty reports whether a local value is a gap worth backfilling from
// the vendor feed. Zero numbers are real values; only nil and blank
// strings count as empty.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
