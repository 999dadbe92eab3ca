package models

// FeedRecord is one normalized row from a vendor feed, either a
// spreadsheet upload or a shared sheet. Fields are keyed by canonical
// sync field name and typed the way SetSyncField expects them.
type FeedRecord struct {
	Row    int            `json:"row"`
	SKU    string         `json:"sku"`
	Fields map[string]any `json:"fields"`
}
