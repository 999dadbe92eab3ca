package feed

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
)

// defaultSheetRange covers the columns vendor feeds use when the
// vendor record does not pin a range.
const defaultSheetRange = "A1:Z"

// SheetsFeed pulls vendor catalogs from shared Google Sheets using a
// service account.
type SheetsFeed struct {
	service *sheets.Service
	log     zerolog.Logger
}

func NewSheetsFeed(ctx context.Context, credentialsFile string, log zerolog.Logger) (*SheetsFeed, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}

	client := config.Client(ctx)
	service, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	log.Info().Str("credentials", credentialsFile).Msg("Google Sheets feed source initialized")
	return &SheetsFeed{service: service, log: log}, nil
}

// Fetch reads the vendor's sheet and returns its normalized records.
func (s *SheetsFeed) Fetch(ctx context.Context, vendor *models.Vendor) ([]*models.FeedRecord, error) {
	if vendor.SheetID == "" {
		return nil, fmt.Errorf("vendor %s has no sheet configured", vendor.Code)
	}

	readRange := vendor.SheetRange
	if readRange == "" {
		readRange = defaultSheetRange
	}

	resp, err := s.service.Spreadsheets.Values.Get(vendor.SheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", vendor.SheetID, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, 0, len(row))
		for _, cell := range row {
			cells = append(cells, fmt.Sprint(cell))
		}
		rows = append(rows, cells)
	}

	records, err := buildRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", vendor.SheetID, err)
	}

	s.log.Info().
		Str("vendor", vendor.Code).
		Str("sheet_id", vendor.SheetID).
		Int("records", len(records)).
		Msg("Fetched vendor sheet")
	return records, nil
}
