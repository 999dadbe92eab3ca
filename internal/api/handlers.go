package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/database"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/service"
)

const maxJobBody = 1 << 20

// jobRoutes maps the URL segment used for submission onto the queue's
// job kind.
var jobRoutes = map[string]string{
	"sync":    models.JobKindSync,
	"import":  models.JobKindFileImport,
	"pricing": models.JobKindPricingUpdate,
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	kind := strings.TrimSpace(r.URL.Query().Get("kind"))
	switch kind {
	case "", models.JobKindSync, models.JobKindFileImport, models.JobKindPricingUpdate:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown job kind %q", kind))
		return
	}
	limit := queryInt(r, "limit", 20)

	jobs, err := s.db.ListSyncJobs(r.Context(), kind, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/"))
	if rest == "" || strings.Contains(rest, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodPost:
		kind, ok := jobRoutes[rest]
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown job kind %q", rest))
			return
		}
		s.enqueueJob(w, r, kind)
	case http.MethodGet:
		s.jobStatus(w, r, rest)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) enqueueJob(w http.ResponseWriter, r *http.Request, kind string) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxJobBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	id, err := s.queue.Enqueue(kind, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": id, "kind": kind})
}

func (s *Server) jobStatus(w http.ResponseWriter, r *http.Request, id string) {
	job, ok := s.queue.Status(id)
	if !ok {
		// Swept from memory; finished jobs live on in the database
		// until retention expires.
		stored, err := s.db.GetSyncJob(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		job = stored
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	vendorID, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("vendor_id")), 10, 64)
	if err != nil || vendorID <= 0 {
		writeError(w, http.StatusBadRequest, "vendor_id is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(name), ".xlsx") {
		writeError(w, http.StatusBadRequest, "only .xlsx files are accepted")
		return
	}

	path, err := s.saveUpload(file, name)
	if err != nil {
		s.log.Error().Err(err).Str("file", name).Msg("save upload error")
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	ids, err := s.importer.StageWorkbook(r.Context(), vendorID, path, name)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "vendor not found")
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"upload_ids": ids, "records": len(ids)})
}

func (s *Server) saveUpload(src io.Reader, name string) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(s.uploadDir, fmt.Sprintf("%s_%s", uuid.NewString(), name))
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return path, nil
}

func (s *Server) handleUploadRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/v1/uploads/"))
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	record, err := s.db.GetUploadedRecord(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "upload not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load upload")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	storeID, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("store_id")), 10, 64)
	if err != nil || storeID <= 0 {
		writeError(w, http.StatusBadRequest, "store_id is required")
		return
	}

	products, err := s.catalog.PendingConflicts(r.Context(), storeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list conflicts")
		return
	}
	if products == nil {
		products = []*models.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conflicts": products})
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/products/")

	if strings.HasSuffix(rest, "/resolve") {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.resolveProduct(w, r, strings.TrimSuffix(rest, "/resolve"))
		return
	}

	if r.Method != http.MethodPatch {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.editProduct(w, r, rest)
}

func (s *Server) editProduct(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var body struct {
		Changes map[string]any `json:"changes"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	p, err := s.catalog.EditProduct(r.Context(), id, body.Changes)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) resolveProduct(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var body struct {
		Decisions []service.FieldDecision `json:"decisions"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	p, err := s.catalog.ResolveConflict(r.Context(), id, body.Decisions)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// vendorView decorates a vendor with its catalog size for listings.
type vendorView struct {
	*models.Vendor
	Products int `json:"products"`
}

func (s *Server) handleVendors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	vendors, err := s.db.GetActiveVendors(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list vendors")
		return
	}

	views := make([]vendorView, 0, len(vendors))
	for _, v := range vendors {
		count, err := s.db.CountProductsByVendor(r.Context(), v.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to count products")
			return
		}
		views = append(views, vendorView{Vendor: v, Products: count})
	}
	writeJSON(w, http.StatusOK, map[string]any{"vendors": views})
}

func (s *Server) handleStores(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stores, err := s.db.GetActiveStores(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list stores")
		return
	}
	if stores == nil {
		stores = []*models.Store{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"stores": stores})
}

func (s *Server) handleGateways(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gateways": s.gateways.Snapshots()})
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.feed == nil {
		writeJSON(w, http.StatusOK, map[string]any{"events": []any{}})
		return
	}

	limit := queryInt(r, "limit", 50)
	recent, err := s.feed.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "event feed unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": recent})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := queryInt(r, "limit", 50)
	entries, err := s.db.ListRecentActivities(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list activity")
		return
	}
	if entries == nil {
		entries = []*models.Activity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": entries})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status := "ok"
	statusCode := http.StatusOK
	checks := map[string]string{"database": "ok"}
	if err := s.db.Ping(r.Context()); err != nil {
		checks["database"] = "unreachable"
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	snaps := s.gateways.Snapshots()
	healthy := 0
	for _, g := range snaps {
		if g.Healthy {
			healthy++
		}
	}
	checks["gateways"] = fmt.Sprintf("%d/%d healthy", healthy, len(snaps))

	writeJSON(w, statusCode, map[string]any{"status": status, "checks": checks})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
