package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
)

func newMockSheetsFeed(t *testing.T, handler http.Handler) *SheetsFeed {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	service, err := sheets.NewService(context.Background(),
		option.WithEndpoint(server.URL),
		option.WithoutAuthentication())
	require.NoError(t, err)

	return &SheetsFeed{service: service, log: zerolog.Nop()}
}

func valueRangeHandler(t *testing.T, path string, values [][]interface{}) http.Handler {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(&sheets.ValueRange{Values: values}); err != nil {
			t.Errorf("failed to encode response: %v", err)
		}
	})
	return mux
}

func TestSheetsFeed_Fetch(t *testing.T) {
	feed := newMockSheetsFeed(t, valueRangeHandler(t, "/v4/spreadsheets/sheet123/values/A1:Z", [][]interface{}{
		{"SKU", "Name", "Price", "Qty"},
		{"WID-1", "Widget", 1299.5, 12},
		{"WID-2", "Gadget", "8", ""},
	}))

	vendor := &models.Vendor{Code: "acme", SheetID: "sheet123"}
	records, err := feed.Fetch(context.Background(), vendor)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "WID-1", records[0].SKU)
	assert.Equal(t, "Widget", records[0].Fields["name"])
	assert.Equal(t, "1299.50", records[0].Fields["price"])
	assert.Equal(t, 12, records[0].Fields["inventory"])
	assert.Equal(t, "8.00", records[1].Fields["price"])
	assert.NotContains(t, records[1].Fields, "inventory")
}

func TestSheetsFeed_FetchCustomRange(t *testing.T) {
	feed := newMockSheetsFeed(t, valueRangeHandler(t, "/v4/spreadsheets/sheet123/values/Catalog!A1:F", [][]interface{}{
		{"sku", "price"},
		{"WID-1", "5"},
	}))

	vendor := &models.Vendor{Code: "acme", SheetID: "sheet123", SheetRange: "Catalog!A1:F"}
	records, err := feed.Fetch(context.Background(), vendor)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "5.00", records[0].Fields["price"])
}

func TestSheetsFeed_NoSheetConfigured(t *testing.T) {
	feed := newMockSheetsFeed(t, http.NotFoundHandler())

	_, err := feed.Fetch(context.Background(), &models.Vendor{Code: "acme"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sheet configured")
}

func TestSheetsFeed_ServerError(t *testing.T) {
	feed := newMockSheetsFeed(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := feed.Fetch(context.Background(), &models.Vendor{Code: "acme", SheetID: "sheet123"})
	require.Error(t, err)
}

func TestSheetsFeed_EmptySheet(t *testing.T) {
	feed := newMockSheetsFeed(t, valueRangeHandler(t, "/v4/spreadsheets/sheet123/values/A1:Z", nil))

	_, err := feed.Fetch(context.Background(), &models.Vendor{Code: "acme", SheetID: "sheet123"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}
