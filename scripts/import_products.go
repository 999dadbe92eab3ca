package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/clock"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/conflict"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/database"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/feed"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/service"
)

// Imports a vendor workbook straight into the catalog database,
// bypassing the API. Useful for initial catalog loads and for
// re-running an import against a copy of production data.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		filePath   = flag.String("file", "", "path to the vendor .xlsx workbook")
		vendorCode = flag.String("vendor", "", "vendor code the rows belong to")
		storeID    = flag.Int64("store", 0, "store id the products sync against")
		dbPath     = flag.String("db", "./data/vendorsync.db", "path to sqlite db")
		mode       = flag.String("mode", models.ImportModeBoth, "import mode: new_only, update_existing or both")
	)
	flag.Parse()

	if *filePath == "" || *vendorCode == "" || *storeID <= 0 {
		flag.Usage()
		return fmt.Errorf("-file, -vendor and -store are required")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	vendor, err := db.GetVendorByCode(ctx, *vendorCode)
	if err != nil {
		return fmt.Errorf("vendor %s: %w", *vendorCode, err)
	}

	engine := conflict.NewEngine(conflict.DefaultPolicy(), logger)
	importer := service.NewImportService(db, feed.NewWorkbookReader(logger), engine, nil, clock.New(), &logger)

	ids, err := importer.StageWorkbook(ctx, vendor.ID, *filePath, filepath.Base(*filePath))
	if err != nil {
		return fmt.Errorf("stage workbook: %w", err)
	}

	payload, err := json.Marshal(models.FileImportPayload{
		VendorID:   vendor.ID,
		StoreID:    *storeID,
		UploadIDs:  ids,
		ImportMode: *mode,
	})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	job := &models.SyncJob{ID: "cli-import", Kind: models.JobKindFileImport, Payload: payload}
	err = importer.HandleFileImport(ctx, job, func(percent int, message string) {
		fmt.Printf("%3d%% %s\n", percent, message)
	})
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	fmt.Printf("done: staged=%d\n", len(ids))
	return nil
}
