package shopify

import (
	"strconv"
	"time"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
)

type wireVariant struct {
	ID                int64  `json:"id,omitempty"`
	SKU               string `json:"sku"`
	Price             string `json:"price"`
	CompareAtPrice    string `json:"compare_at_price,omitempty"`
	InventoryQuantity int    `json:"inventory_quantity"`
	Barcode           string `json:"barcode,omitempty"`
}

type wireImage struct {
	Src string `json:"src"`
}

type wireProduct struct {
	ID          int64         `json:"id,omitempty"`
	Title       string        `json:"title"`
	BodyHTML    string        `json:"body_html,omitempty"`
	ProductType string        `json:"product_type,omitempty"`
	Status      string        `json:"status,omitempty"`
	Variants    []wireVariant `json:"variants"`
	Images      []wireImage   `json:"images,omitempty"`
	UpdatedAt   string        `json:"updated_at,omitempty"`
}

type productEnvelope struct {
	Product wireProduct `json:"product"`
}

type productsEnvelope struct {
	Products []wireProduct `json:"products"`
}

// fromWire maps an API product onto the catalog model. Only the first
// variant and image are carried; the sync model is one variant per SKU.
func fromWire(store *models.Store, w *wireProduct) *models.Product {
	p := &models.Product{
		StoreID:     store.ID,
		Name:        w.Title,
		Description: w.BodyHTML,
		Category:    w.ProductType,
		Status:      w.Status,
		RemoteID:    strconv.FormatInt(w.ID, 10),
	}
	if len(w.Variants) > 0 {
		v := w.Variants[0]
		p.SKU = v.SKU
		p.Price = v.Price
		p.CompareAtPrice = v.CompareAtPrice
		p.Inventory = v.InventoryQuantity
		p.Barcode = v.Barcode
	}
	if len(w.Images) > 0 {
		p.ImageURL = w.Images[0].Src
	}
	if t, err := time.Parse(time.RFC3339, w.UpdatedAt); err == nil {
		p.RemoteSyncedAt = t
	}
	return p
}

func toWire(p *models.Product) wireProduct {
	w := wireProduct{
		Title:       p.Name,
		BodyHTML:    p.Description,
		ProductType: p.Category,
		Status:      p.Status,
		Variants: []wireVariant{{
			SKU:               p.SKU,
			Price:             p.Price,
			CompareAtPrice:    p.CompareAtPrice,
			InventoryQuantity: p.Inventory,
			Barcode:           p.Barcode,
		}},
	}
	if p.ImageURL != "" {
		w.Images = []wireImage{{Src: p.ImageURL}}
	}
	return w
}
