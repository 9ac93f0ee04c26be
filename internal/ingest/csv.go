package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"

	"fiscalcli/internal/infrastructure"
)

// LoadCSV reads raw records from a CSV export with the same column layout as
// the workbook. Used by the report CLI when the dataset has already been
// converted from Excel.
func LoadCSV(ctx context.Context, filePath string) ([]RawRecord, error) {
	logger := infrastructure.LoggerFromContext(ctx)

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("CSV has no data rows: %s", filePath)
	}

	columns := mapHeader(rows[0])
	for _, required := range []string{"country", "indicator", "amount"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("CSV is missing required column %q", required)
		}
	}

	records := make([]RawRecord, 0, len(rows)-1)
	skipped := 0
	for i, row := range rows[1:] {
		rec, err := parseRow(row, columns)
		if err != nil {
			skipped++
			logger.WarnContext(ctx, "skipping unparseable CSV row",
				slog.Int("row_number", i+2),
				slog.String("error", err.Error()),
			)
			continue
		}
		records = append(records, rec)
	}

	logger.InfoContext(ctx, "loaded raw records from CSV",
		slog.String("file", filePath),
		slog.Int("records", len(records)),
		slog.Int("skipped_rows", skipped),
	)

	return records, nil
}
