package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/clock"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/config"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/conflict"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/database"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/events"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/feed"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/gateway"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/jobs"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/notify"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/service"
)

type serverFixture struct {
	srv      *Server
	ts       *httptest.Server
	db       *database.DB
	registry *gateway.Registry
	feed     *notify.MemoryPublisher
}

func newTestServer(t *testing.T) *serverFixture {
	t.Helper()
	logger := zerolog.Nop()

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bus := events.NewEventBus()
	orch := jobs.NewOrchestrator(jobs.Options{}, bus, db, clock.New(), logger)
	catalog := service.NewCatalogService(db, clock.New(), &logger)
	engine := conflict.NewEngine(conflict.DefaultPolicy(), logger)
	importer := service.NewImportService(db, feed.NewWorkbookReader(logger), engine, nil, clock.New(), &logger)
	registry := gateway.NewRegistry(gateway.Options{}, clock.New(), logger)
	t.Cleanup(registry.CloseAll)
	feedPub := notify.NewMemoryPublisher(16)

	cfg := config.APIConfig{Enabled: true, Port: 0}
	srv := NewServer(cfg, t.TempDir(), db, orch, catalog, importer, registry, feedPub, &logger)
	ts := httptest.NewServer(srv.server.Handler)
	t.Cleanup(ts.Close)

	return &serverFixture{srv: srv, ts: ts, db: db, registry: registry, feed: feedPub}
}

func (f *serverFixture) seedVendorAndStore(t *testing.T) (*models.Vendor, *models.Store) {
	t.Helper()
	ctx := context.Background()
	vendor := &models.Vendor{Name: "Acme Supplies", Code: "acme", Active: true}
	require.NoError(t, f.db.CreateVendor(ctx, vendor))
	store := &models.Store{Name: "Main", BaseURL: "https://main.example.com", AccessToken: "token", Active: true}
	require.NoError(t, f.db.CreateStore(ctx, store))
	return vendor, store
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestJobSubmissionAndStatus(t *testing.T) {
	f := newTestServer(t)
	vendor, store := f.seedVendorAndStore(t)

	payload := fmt.Sprintf(`{"vendor_id":%d,"store_id":%d,"direction":"push"}`, vendor.ID, store.ID)
	resp := postJSON(t, f.ts.URL+"/api/v1/jobs/sync", payload)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var accepted struct {
		JobID string `json:"job_id"`
		Kind  string `json:"kind"`
	}
	decodeBody(t, resp, &accepted)
	require.NotEmpty(t, accepted.JobID)
	assert.Equal(t, models.JobKindSync, accepted.Kind)

	resp, err := http.Get(f.ts.URL + "/api/v1/jobs/" + accepted.JobID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var job models.SyncJob
	decodeBody(t, resp, &job)
	assert.Equal(t, accepted.JobID, job.ID)
	assert.Equal(t, models.JobStatusPending, job.Status)
}

func TestJobSubmissionRejectsBadPayload(t *testing.T) {
	f := newTestServer(t)

	resp := postJSON(t, f.ts.URL+"/api/v1/jobs/sync", `{"vendor_id":1}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, f.ts.URL+"/api/v1/jobs/reindex", `{}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJobStatusFallsBackToDatabase(t *testing.T) {
	f := newTestServer(t)

	stored := &models.SyncJob{
		ID:      "archived-1",
		Kind:    models.JobKindSync,
		Status:  models.JobStatusCompleted,
		Payload: json.RawMessage(`{"vendor_id":1,"store_id":1,"direction":"push"}`),
	}
	require.NoError(t, f.db.SaveSyncJob(context.Background(), stored))

	resp, err := http.Get(f.ts.URL + "/api/v1/jobs/archived-1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var job models.SyncJob
	decodeBody(t, resp, &job)
	assert.Equal(t, models.JobStatusCompleted, job.Status)

	resp, err = http.Get(f.ts.URL + "/api/v1/jobs/no-such-job")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListJobsFiltersByKind(t *testing.T) {
	f := newTestServer(t)
	vendor, store := f.seedVendorAndStore(t)

	syncPayload := fmt.Sprintf(`{"vendor_id":%d,"store_id":%d,"direction":"pull"}`, vendor.ID, store.ID)
	resp := postJSON(t, f.ts.URL+"/api/v1/jobs/sync", syncPayload)
	resp.Body.Close()
	pricingPayload := fmt.Sprintf(`{"vendor_id":%d,"multiplier":1.1}`, vendor.ID)
	resp = postJSON(t, f.ts.URL+"/api/v1/jobs/pricing", pricingPayload)
	resp.Body.Close()

	resp, err := http.Get(f.ts.URL + "/api/v1/jobs?kind=sync")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Jobs []*models.SyncJob `json:"jobs"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, models.JobKindSync, body.Jobs[0].Kind)

	resp, err = http.Get(f.ts.URL + "/api/v1/jobs?kind=reindex")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func buildWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()

	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	for r, row := range rows {
		for c, cell := range row {
			name, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, wb.SetCellValue(sheet, name, cell))
		}
	}

	path := filepath.Join(t.TempDir(), "catalog.xlsx")
	require.NoError(t, wb.SaveAs(path))
	require.NoError(t, wb.Close())
	return path
}

func TestUploadWorkbook(t *testing.T) {
	f := newTestServer(t)
	vendor, _ := f.seedVendorAndStore(t)

	path := buildWorkbook(t, [][]interface{}{
		{"SKU", "Name", "Price"},
		{"WID-1", "Widget", "10.00"},
		{"WID-2", "Gadget", "4.00"},
	})
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("vendor_id", fmt.Sprint(vendor.ID)))
	fw, err := mw.CreateFormFile("file", "catalog.xlsx")
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(f.ts.URL+"/api/v1/uploads", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		UploadIDs []string `json:"upload_ids"`
		Records   int      `json:"records"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.UploadIDs, 2)
	assert.Equal(t, 2, body.Records)

	staged, err := f.db.ListUploadedRecords(context.Background(), body.UploadIDs)
	require.NoError(t, err)
	require.Len(t, staged, 2)
	assert.Equal(t, "WID-1", staged[0].SKU)
	assert.Equal(t, "catalog.xlsx", staged[0].SourceFile)
}

func TestUploadRejectsNonWorkbook(t *testing.T) {
	f := newTestServer(t)
	vendor, _ := f.seedVendorAndStore(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("vendor_id", fmt.Sprint(vendor.ID)))
	fw, err := mw.CreateFormFile("file", "catalog.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("sku,name\nWID-1,Widget\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(f.ts.URL+"/api/v1/uploads", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadRecordLookup(t *testing.T) {
	f := newTestServer(t)
	vendor, _ := f.seedVendorAndStore(t)
	ctx := context.Background()

	record := &models.UploadedRecord{
		VendorID:   vendor.ID,
		SKU:        "WID-1",
		Name:       "Widget",
		Price:      "10.00",
		Inventory:  -1,
		SourceFile: "catalog.xlsx",
		RowNum:     2,
	}
	require.NoError(t, f.db.CreateUploadedRecords(ctx, []*models.UploadedRecord{record}))

	resp, err := http.Get(f.ts.URL + "/api/v1/uploads/" + record.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got models.UploadedRecord
	decodeBody(t, resp, &got)
	assert.Equal(t, "WID-1", got.SKU)
	assert.Equal(t, vendor.ID, got.VendorID)

	resp, err = http.Get(f.ts.URL + "/api/v1/uploads/no-such-record")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConflictReviewFlow(t *testing.T) {
	f := newTestServer(t)
	vendor, store := f.seedVendorAndStore(t)
	ctx := context.Background()

	p := &models.Product{
		VendorID:    vendor.ID,
		StoreID:     store.ID,
		SKU:         "WID-1",
		Name:        "Widget",
		Description: "local words",
		Price:       "5.50",
	}
	require.NoError(t, f.db.CreateProduct(ctx, p))
	p.ConflictState = models.ConflictStatePending
	p.PendingFields = []string{"description"}
	p.NeedsSync = false
	require.NoError(t, f.db.UpdateProduct(ctx, p))

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/products/conflicts?store_id=%d", f.ts.URL, store.ID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Conflicts []*models.Product `json:"conflicts"`
	}
	decodeBody(t, resp, &listing)
	require.Len(t, listing.Conflicts, 1)
	assert.Equal(t, "WID-1", listing.Conflicts[0].SKU)

	resolveURL := fmt.Sprintf("%s/api/v1/products/%d/resolve", f.ts.URL, p.ID)
	resp = postJSON(t, resolveURL, `{"decisions":[{"field":"description","value":"vendor words","source":"vendor_import"}]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var resolved models.Product
	decodeBody(t, resp, &resolved)
	assert.Equal(t, "vendor words", resolved.Description)
	assert.Equal(t, models.ConflictStateNone, resolved.ConflictState)
	assert.True(t, resolved.NeedsSync)

	resp, err = http.Get(fmt.Sprintf("%s/api/v1/products/conflicts?store_id=%d", f.ts.URL, store.ID))
	require.NoError(t, err)
	decodeBody(t, resp, &listing)
	assert.Empty(t, listing.Conflicts)
}

func TestEditProductEndpoint(t *testing.T) {
	f := newTestServer(t)
	vendor, store := f.seedVendorAndStore(t)
	ctx := context.Background()

	p := &models.Product{VendorID: vendor.ID, StoreID: store.ID, SKU: "WID-1", Name: "Widget", Price: "10.00"}
	require.NoError(t, f.db.CreateProduct(ctx, p))

	req, err := http.NewRequest(http.MethodPatch, fmt.Sprintf("%s/api/v1/products/%d", f.ts.URL, p.ID), strings.NewReader(`{"changes":{"price":"12.50"}}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var edited models.Product
	decodeBody(t, resp, &edited)
	assert.Equal(t, "12.50", edited.Price)
	assert.True(t, edited.NeedsSync)
	assert.Contains(t, edited.EditedFields, "price")

	req, err = http.NewRequest(http.MethodPatch, fmt.Sprintf("%s/api/v1/products/%d", f.ts.URL, p.ID), strings.NewReader(`{"changes":{"flavor":"mint"}}`))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVendorListing(t *testing.T) {
	f := newTestServer(t)
	vendor, store := f.seedVendorAndStore(t)
	ctx := context.Background()

	for _, sku := range []string{"WID-1", "WID-2"} {
		p := &models.Product{VendorID: vendor.ID, StoreID: store.ID, SKU: sku, Name: "Widget", Price: "10.00"}
		require.NoError(t, f.db.CreateProduct(ctx, p))
	}
	dormant := &models.Vendor{Name: "Dormant", Code: "dormant", Active: false}
	require.NoError(t, f.db.CreateVendor(ctx, dormant))

	resp, err := http.Get(f.ts.URL + "/api/v1/vendors")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Vendors []struct {
			models.Vendor
			Products int `json:"products"`
		} `json:"vendors"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Vendors, 1, "inactive vendors stay hidden")
	assert.Equal(t, "Acme Supplies", body.Vendors[0].Name)
	assert.Equal(t, 2, body.Vendors[0].Products)
}

func TestStoreListingHidesAccessToken(t *testing.T) {
	f := newTestServer(t)
	f.seedVendorAndStore(t)

	resp, err := http.Get(f.ts.URL + "/api/v1/stores")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Stores []map[string]any `json:"stores"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Stores, 1)
	assert.Equal(t, "Main", body.Stores[0]["name"])
	assert.NotContains(t, body.Stores[0], "access_token")
}

func TestGatewaySnapshots(t *testing.T) {
	f := newTestServer(t)
	f.registry.For("store:1", 40, 2)

	resp, err := http.Get(f.ts.URL + "/api/v1/gateways")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Gateways []gateway.Snapshot `json:"gateways"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Gateways, 1)
	assert.Equal(t, "store:1", body.Gateways[0].Account)
	assert.Equal(t, 40, body.Gateways[0].Capacity)
}

func TestRecentEvents(t *testing.T) {
	f := newTestServer(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		err := f.feed.Publish(ctx, &events.Event{
			ID:        fmt.Sprint(i),
			Type:      events.EventJobQueued,
			Payload:   json.RawMessage(`{}`),
			CreatedAt: time.Now(),
		})
		require.NoError(t, err)
	}

	resp, err := http.Get(f.ts.URL + "/api/v1/events/recent?limit=2")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Events []events.Event `json:"events"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Events, 2)
	assert.Equal(t, "3", body.Events[0].ID, "newest first")
}

func TestActivityFeed(t *testing.T) {
	f := newTestServer(t)
	ctx := context.Background()

	for _, action := range []string{"sync_started", "sync_completed", "push_rejected"} {
		entry := &models.Activity{Action: action, Entity: "product", EntityID: "WID-1"}
		require.NoError(t, f.db.CreateActivity(ctx, entry))
	}

	resp, err := http.Get(f.ts.URL + "/api/v1/activity?limit=2")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Activity []*models.Activity `json:"activity"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Activity, 2)
	assert.Equal(t, "push_rejected", body.Activity[0].Action, "newest first")
}

func TestHealth(t *testing.T) {
	f := newTestServer(t)

	resp, err := http.Get(f.ts.URL + "/api/v1/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Checks["database"])
}

func TestHealthDegradedWhenDatabaseDown(t *testing.T) {
	f := newTestServer(t)
	require.NoError(t, f.db.Close())

	resp, err := http.Get(f.ts.URL + "/api/v1/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body struct {
		Status string `json:"status"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "degraded", body.Status)
}
