package models

import "time"

// UploadedRecord is one candidate product row parsed out of an uploaded
// vendor sheet, staged for a later file_import job. Inventory is -1
// when the source row carried no inventory column.
type UploadedRecord struct {
	ID             string    `json:"id"`
	VendorID       int64     `json:"vendor_id"`
	SKU            string    `json:"sku"`
	Name           string    `json:"name,omitempty"`
	Description    string    `json:"description,omitempty"`
	Price          string    `json:"price,omitempty"`
	CompareAtPrice string    `json:"compare_at_price,omitempty"`
	Inventory      int       `json:"inventory"`
	Barcode        string    `json:"barcode,omitempty"`
	Category       string    `json:"category,omitempty"`
	ImageURL       string    `json:"image_url,omitempty"`
	Status         string    `json:"status,omitempty"`
	SourceFile     string    `json:"source_file"`
	RowNum         int       `json:"row_num"`
	CreatedAt      time.Time `json:"created_at"`
}

// UploadedRecordFromFeed stages one parsed feed row for import.
func UploadedRecordFromFeed(vendorID int64, sourceFile string, rec *FeedRecord) *UploadedRecord {
	r := &UploadedRecord{
		VendorID:   vendorID,
		SKU:        rec.SKU,
		Inventory:  -1,
		SourceFile: sourceFile,
		RowNum:     rec.Row,
	}
	for name, value := range rec.Fields {
		switch name {
		case "name":
			r.Name, _ = value.(string)
		case "description":
			r.Description, _ = value.(string)
		case "price":
			r.Price, _ = value.(string)
		case "compare_at_price":
			r.CompareAtPrice, _ = value.(string)
		case "inventory":
			if v, ok := value.(int); ok {
				r.Inventory = v
			}
		case "barcode":
			r.Barcode, _ = value.(string)
		case "category":
			r.Category, _ = value.(string)
		case "image_url":
			r.ImageURL, _ = value.(string)
		case "status":
			r.Status, _ = value.(string)
		}
	}
	return r
}

// Fields returns the columns the record actually carries, keyed by
// canonical sync field name. Absent columns stay absent so an import
// only touches what the sheet provided.
func (r *UploadedRecord) Fields() map[string]any {
	fields := make(map[string]any)
	if r.Name != "" {
		fields["name"] = r.Name
	}
	if r.Description != "" {
		fields["description"] = r.Description
	}
	if r.Price != "" {
		fields["price"] = r.Price
	}
	if r.CompareAtPrice != "" {
		fields["compare_at_price"] = r.CompareAtPrice
	}
	if r.Inventory >= 0 {
		fields["inventory"] = r.Inventory
	}
	if r.Barcode != "" {
		fields["barcode"] = r.Barcode
	}
	if r.Category != "" {
		fields["category"] = r.Category
	}
	if r.ImageURL != "" {
		fields["image_url"] = r.ImageURL
	}
	if r.Status != "" {
		fields["status"] = r.Status
	}
	return fields
}
