package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/api"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/clock"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/config"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/conflict"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/database"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/domain"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/events"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/feed"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/gateway"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/jobs"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/logging"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/metrics"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/notify"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/resilience"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/service"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/shopify"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := initDatabase(cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := seedCatalog(context.Background(), db, &logger); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	bus := events.NewEventBus()
	eventFeed := initEventFeed(bus, redisClient, logger)
	subscribeNotifications(cfg, bus, &logger)

	sheetsFeed := initSheetsFeed(ctx, cfg, &logger)
	remote := shopify.NewClient(logger)

	gateways := gateway.NewRegistry(gatewayOptions(cfg.Sync.Gateway), clock.New(), logger)
	defer gateways.CloseAll()
	exec := resilience.NewExecutor(resilienceConfig(cfg.Sync), clock.New(), logger)
	engine := conflict.NewEngine(conflictPolicy(cfg.Sync.Conflict), logger)

	var feedSource domain.FeedSource
	if sheetsFeed != nil {
		feedSource = sheetsFeed
	}

	syncService := service.NewSyncService(db, remote, feedSource, gateways, exec, engine, bus, clock.New(), &logger)
	importService := service.NewImportService(db, feed.NewWorkbookReader(logger), engine, bus, clock.New(), &logger)
	catalogService := service.NewCatalogService(db, clock.New(), &logger)

	orchestrator := jobs.NewOrchestrator(jobs.Options{
		MaxAttempts:   cfg.Sync.Jobs.MaxAttempts,
		Retention:     config.Duration(cfg.Sync.Jobs.Retention, models.DefaultJobRetention),
		SweepInterval: config.Duration(cfg.Sync.Jobs.SweepInterval, 0),
	}, bus, db, clock.New(), logger)
	orchestrator.RegisterHandler(models.JobKindSync, syncService.HandleSync)
	orchestrator.RegisterHandler(models.JobKindPricingUpdate, syncService.HandlePricingUpdate)
	orchestrator.RegisterHandler(models.JobKindFileImport, importService.HandleFileImport)
	orchestrator.Start(ctx)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	startMetrics(ctx, cfg, db, &logger)

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg.API, cfg.Uploads.Path, db, orchestrator, catalogService, importService, gateways, eventFeed, &logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server stopped")
			}
		}()
	}

	logger.Info().Str("environment", cfg.App.Environment).Msg("vendorsync daemon started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if apiServer != nil {
		_ = apiServer.Shutdown(shutdownCtx)
	}

	logger.Info().Msg("shutdown complete")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "syncd-main").Logger()

	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg == nil {
		return os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("create database directory")
		return err
	}
	if err := os.MkdirAll(cfg.Uploads.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("create uploads directory")
		return err
	}
	return nil
}

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}
	return db, nil
}

// seedCatalog upserts the vendors and stores from the catalog file so
// a fresh deployment starts with its partners configured. The file is
// optional; without it the catalog is managed through the database
// directly.
func seedCatalog(ctx context.Context, db *database.DB, logger *zerolog.Logger) error {
	catalogPath := os.Getenv("CATALOG_PATH")
	if catalogPath == "" {
		catalogPath = "configs/catalog.yaml"
	}

	data, err := os.ReadFile(catalogPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info().Str("catalog_path", catalogPath).Msg("no seed catalog found, skipping")
			return nil
		}
		logger.Error().Err(err).Str("catalog_path", catalogPath).Msg("read catalog")
		return err
	}

	var cat config.Catalog
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cat); err != nil {
		logger.Error().Err(err).Str("catalog_path", catalogPath).Msg("parse catalog")
		return err
	}
	if err := config.ValidateCatalog(&cat); err != nil {
		logger.Error().Err(err).Msg("catalog validation failed")
		return err
	}

	for i := range cat.Vendors {
		v := &cat.Vendors[i]
		existing, err := db.GetVendorByCode(ctx, v.Code)
		switch {
		case errors.Is(err, database.ErrNotFound):
			err = db.CreateVendor(ctx, v)
		case err == nil:
			v.ID = existing.ID
			err = db.UpdateVendor(ctx, v)
		}
		if err != nil {
			return fmt.Errorf("seed vendor %s: %w", v.Code, err)
		}
	}

	for i := range cat.Stores {
		s := &cat.Stores[i]
		existing, err := db.GetStoreByName(ctx, s.Name)
		switch {
		case errors.Is(err, database.ErrNotFound):
			err = db.CreateStore(ctx, s)
		case err == nil:
			s.ID = existing.ID
			err = db.UpdateStore(ctx, s)
		}
		if err != nil {
			return fmt.Errorf("seed store %s: %w", s.Name, err)
		}
	}

	logger.Info().Int("vendors", len(cat.Vendors)).Int("stores", len(cat.Stores)).Msg("seed catalog applied")
	return nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := notify.NewRedisClient(cfg.Redis)
	if err := notify.Ping(context.Background(), redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initEventFeed wires the event bus into a publisher chain: redis when
// available so other processes can follow the stream, with an
// in-memory ring as fallback either way.
func initEventFeed(bus *events.EventBus, redisClient *redis.Client, logger zerolog.Logger) notify.Publisher {
	memory := notify.NewMemoryPublisher(models.DefaultRecentEvents)

	var pub notify.Publisher = memory
	if redisClient != nil {
		primary := notify.NewRedisPublisher(redisClient, models.DefaultRecentEvents)
		pub = notify.NewFailoverPublisher(primary, memory, &logger)
	}

	notify.Bridge(bus, pub, logger)
	return pub
}

// subscribeNotifications pushes operator-facing alerts through the
// configured notifier. Failures and unresolved conflicts are the two
// events a human has to act on; without a Telegram token they fall
// through a NopNotifier.
func subscribeNotifications(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	var notifier domain.Notifier = notify.NopNotifier{}
	if cfg.Telegram.BotToken != "" {
		tg, err := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, *logger)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram notifier init failed, continuing without alerts")
		} else {
			notifier = tg
			logger.Info().Msg("telegram notifications enabled")
		}
	}

	send := func(message string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := notifier.Notify(ctx, message); err != nil {
			logger.Warn().Err(err).Msg("operator alert failed")
		}
	}

	bus.Subscribe(events.EventJobFailed, func(ev *events.Event) error {
		var payload events.JobEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		send(fmt.Sprintf("❌ %s job %s failed: %s", payload.Kind, payload.ID, payload.Message))
		return nil
	})

	bus.Subscribe(events.EventProductConflict, func(ev *events.Event) error {
		var payload events.ConflictEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		send(fmt.Sprintf("⚠️ conflict on %s: %d field(s) need review (suggested: %s)", payload.SKU, payload.Fields, payload.RecommendedAction))
		return nil
	})
}

func initSheetsFeed(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *feed.SheetsFeed {
	if cfg.Google.CredentialsFile == "" {
		return nil
	}

	sheetsFeed, err := feed.NewSheetsFeed(ctx, cfg.Google.CredentialsFile, *logger)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing with workbook imports only")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return sheetsFeed
}

func gatewayOptions(cfg config.GatewayConfig) gateway.Options {
	defaults := gateway.DefaultOptions()
	return gateway.Options{
		InterCallDelay: config.Duration(cfg.InterCallDelay, defaults.InterCallDelay),
		RetryBase:      config.Duration(cfg.RetryBase, defaults.RetryBase),
		MaxRetries:     cfg.MaxRetries,
	}
}

func resilienceConfig(cfg config.SyncConfig) resilience.Config {
	defaults := resilience.DefaultConfig()
	return resilience.Config{
		Retry: resilience.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   config.Duration(cfg.Retry.BaseDelay, defaults.Retry.BaseDelay),
			MaxDelay:    config.Duration(cfg.Retry.MaxDelay, defaults.Retry.MaxDelay),
			Multiplier:  cfg.Retry.Multiplier,
			Jitter:      cfg.Retry.Jitter,
		},
		FailureThreshold: cfg.Breaker.FailureThreshold,
		ResetTimeout:     config.Duration(cfg.Breaker.ResetTimeout, defaults.ResetTimeout),
		CallTimeout:      config.Duration(cfg.Breaker.CallTimeout, defaults.CallTimeout),
	}
}

func conflictPolicy(cfg config.ConflictConfig) conflict.Policy {
	return conflict.PolicyFromLists(cfg.Precedence, cfg.MandatoryFields, cfg.VendorFields, cfg.RemoteFields)
}

func startMetrics(ctx context.Context, cfg *config.Config, db *database.DB, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, db, logger)
}

func startMetricsServer(ctx context.Context, port int, db *database.DB, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
