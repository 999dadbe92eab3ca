package models

import "time"

// Product is a catalog row owned by a vendor and optionally mirrored to a
// storefront. Price fields are decimal strings to avoid float drift.
type Product struct {
	ID             int64     `json:"id"`
	VendorID       int64     `json:"vendor_id"`
	StoreID        int64     `json:"store_id"`
	SKU            string    `json:"sku"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Price          string    `json:"price"`
	CompareAtPrice string    `json:"compare_at_price,omitempty"`
	Inventory      int       `json:"inventory"`
	Barcode        string    `json:"barcode,omitempty"`
	Category       string    `json:"category,omitempty"`
	ImageURL       string    `json:"image_url,omitempty"`
	Status         string    `json:"status"`
	RemoteID       string    `json:"remote_id,omitempty"`
	NeedsSync      bool      `json:"needs_sync"`
	ConflictState  string    `json:"conflict_state"`
	EditedFields   []string  `json:"edited_fields,omitempty"`
	PendingFields  []string  `json:"pending_fields,omitempty"`
	LastModifiedBy string    `json:"last_modified_by,omitempty"`
	VendorSyncedAt time.Time `json:"vendor_synced_at,omitempty"`
	LocalEditedAt  time.Time `json:"local_edited_at,omitempty"`
	RemoteSyncedAt time.Time `json:"remote_synced_at,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SyncFieldNames lists the fields that participate in vendor/remote
// synchronization and conflict analysis, in a stable order. Identity
// fields (id, sku, vendor_id) are excluded.
var SyncFieldNames = []string{
	"name",
	"description",
	"price",
	"compare_at_price",
	"inventory",
	"barcode",
	"category",
	"image_url",
	"status",
}

// SyncFields returns the product's syncable fields keyed by canonical
// field name.
func (p *Product) SyncFields() map[string]any {
	return map[string]any{
		"name":             p.Name,
		"description":      p.Description,
		"price":            p.Price,
		"compare_at_price": p.CompareAtPrice,
		"inventory":        p.Inventory,
		"barcode":          p.Barcode,
		"category":         p.Category,
		"image_url":        p.ImageURL,
		"status":           p.Status,
	}
}

// SetSyncField assigns one syncable field by canonical name. Unknown
// names and mistyped values are ignored.
func (p *Product) SetSyncField(name string, value any) {
	switch name {
	case "name":
		if v, ok := value.(string); ok {
			p.Name = v
		}
	case "description":
		if v, ok := value.(string); ok {
			p.Description = v
		}
	case "price":
		if v, ok := value.(string); ok {
			p.Price = v
		}
	case "compare_at_price":
		if v, ok := value.(string); ok {
			p.CompareAtPrice = v
		}
	case "inventory":
		switch v := value.(type) {
		case int:
			p.Inventory = v
		case float64:
			p.Inventory = int(v)
		}
	case "barcode":
		if v, ok := value.(string); ok {
			p.Barcode = v
		}
	case "category":
		if v, ok := value.(string); ok {
			p.Category = v
		}
	case "image_url":
		if v, ok := value.(string); ok {
			p.ImageURL = v
		}
	case "status":
		if v, ok := value.(string); ok {
			p.Status = v
		}
	}
}

// FieldEdited reports whether the named field was manually edited by a
// user since the last vendor import.
func (p *Product) FieldEdited(name string) bool {
	for _, f := range p.EditedFields {
		if f == name {
			return true
		}
	}
	return false
}

// MarkEdited records a manual edit of the named field, keeping the list
// free of duplicates.
func (p *Product) MarkEdited(name string) {
	if !p.FieldEdited(name) {
		p.EditedFields = append(p.EditedFields, name)
	}
}

// ClearEdited drops the named field from the edited list, typically after
// a conflict resolution accepted the vendor value.
func (p *Product) ClearEdited(name string) {
	p.EditedFields = removeField(p.EditedFields, name)
}

// FieldPending reports whether the named field awaits human conflict
// resolution.
func (p *Product) FieldPending(name string) bool {
	for _, f := range p.PendingFields {
		if f == name {
			return true
		}
	}
	return false
}

// ClearPending drops the named field from the pending list. The product
// leaves pending_resolution only once the list is empty.
func (p *Product) ClearPending(name string) {
	p.PendingFields = removeField(p.PendingFields, name)
	if len(p.PendingFields) == 0 {
		p.PendingFields = nil
		p.ConflictState = ConflictStateNone
	}
}

func removeField(fields []string, name string) []string {
	out := fields[:0]
	for _, f := range fields {
		if f != name {
			out = append(out, f)
		}
	}
	return out
}
