package feed

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
)

// WorkbookReader parses uploaded .xlsx catalogs.
type WorkbookReader struct {
	log zerolog.Logger
}

func NewWorkbookReader(log zerolog.Logger) *WorkbookReader {
	return &WorkbookReader{log: log}
}

// Read loads the first sheet of the workbook at path and returns its
// normalized records.
func (r *WorkbookReader) Read(path string) ([]*models.FeedRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			r.log.Warn().Err(cerr).Str("path", path).Msg("Failed to close workbook")
		}
	}()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	records, err := buildRecords(rows)
	if err != nil {
		return nil, err
	}

	r.log.Info().
		Str("path", path).
		Str("sheet", sheet).
		Int("rows", len(rows)).
		Int("records", len(records)).
		Msg("Parsed workbook feed")
	return records, nil
}
