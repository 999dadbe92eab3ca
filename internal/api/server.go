package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/config"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/database"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/domain"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/gateway"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/notify"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/service"
)

// Server exposes the HTTP command surface: job submission and status,
// workbook uploads, conflict review and operational snapshots.
type Server struct {
	cfg       config.APIConfig
	uploadDir string
	db        *database.DB
	queue     domain.JobQueue
	catalog   *service.CatalogService
	importer  *service.ImportService
	gateways  *gateway.Registry
	feed      notify.Publisher
	server    *http.Server
	auth      *HTTPAuth
	log       zerolog.Logger
}

func NewServer(cfg config.APIConfig, uploadDir string, db *database.DB, queue domain.JobQueue, catalog *service.CatalogService, importer *service.ImportService, gateways *gateway.Registry, feed notify.Publisher, logger *zerolog.Logger) *Server {
	srv := &Server{
		cfg:       cfg,
		uploadDir: uploadDir,
		db:        db,
		queue:     queue,
		catalog:   catalog,
		importer:  importer,
		gateways:  gateways,
		feed:      feed,
		log:       zerolog.Nop(),
	}
	if logger != nil {
		srv.log = logger.With().Str("component", "api").Logger()
	}
	srv.auth = NewHTTPAuth(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/jobs", srv.handleListJobs)
	mux.HandleFunc("/api/v1/jobs/", srv.handleJob)
	mux.HandleFunc("/api/v1/uploads", srv.handleUpload)
	mux.HandleFunc("/api/v1/uploads/", srv.handleUploadRecord)
	mux.HandleFunc("/api/v1/products/conflicts", srv.handleConflicts)
	mux.HandleFunc("/api/v1/products/", srv.handleProduct)
	mux.HandleFunc("/api/v1/vendors", srv.handleVendors)
	mux.HandleFunc("/api/v1/stores", srv.handleStores)
	mux.HandleFunc("/api/v1/gateways", srv.handleGateways)
	mux.HandleFunc("/api/v1/events/recent", srv.handleRecentEvents)
	mux.HandleFunc("/api/v1/activity", srv.handleActivity)
	mux.HandleFunc("/api/v1/health", srv.handleHealth)

	handler := loggingMiddleware(srv.log, srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *Server) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
