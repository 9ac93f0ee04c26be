package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"fiscalcli/internal/infrastructure"
)

// column labels recognized in the workbook header row
var headerAliases = map[string]string{
	"country":   "country",
	"entity":    "country",
	"indicator": "indicator",
	"amount":    "amount",
	"value":     "amount",
	"unit":      "unit",
	"units":     "unit",
	"frequency": "frequency",
	"freq":      "frequency",
	"time":      "time",
	"date":      "time",
	"period":    "time",
	"source":    "source",
}

var nonNumeric = regexp.MustCompile(`[^\d.\-]`)

// supported timestamp layouts, tried in order
var timeLayouts = []string{
	"2006-01-02",
	"01-02-06",
	"1/2/2006",
	"2006/01/02",
	"Jan-06",
	"2006",
}

// ParseWorkbook reads a raw fiscal dataset workbook and extracts one
// RawRecord per usable row. Rows missing a country, indicator, or parseable
// amount are skipped with a warning rather than failing the whole load.
func ParseWorkbook(ctx context.Context, filePath string) ([]RawRecord, error) {
	logger := infrastructure.LoggerFromContext(ctx)

	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	rows, sheetName, err := findDataSheet(f)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "found fiscal data sheet",
		slog.String("sheet_name", sheetName),
		slog.Int("total_rows", len(rows)),
	)

	columns := mapHeader(rows[0])
	for _, required := range []string{"country", "indicator", "amount"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("sheet %q is missing required column %q", sheetName, required)
		}
	}

	records := make([]RawRecord, 0, len(rows)-1)
	skipped := 0
	for i, row := range rows[1:] {
		rec, err := parseRow(row, columns)
		if err != nil {
			skipped++
			logger.WarnContext(ctx, "skipping unparseable row",
				slog.Int("row_number", i+2),
				slog.String("error", err.Error()),
			)
			continue
		}
		records = append(records, rec)
	}

	logger.InfoContext(ctx, "parsed fiscal workbook",
		slog.String("file", filePath),
		slog.Int("records", len(records)),
		slog.Int("skipped_rows", skipped),
	)

	return records, nil
}

// findDataSheet probes sheets for a header row carrying the expected columns
func findDataSheet(f *excelize.File) ([][]string, string, error) {
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil || len(rows) < 2 {
			continue
		}
		headerText := strings.ToLower(strings.Join(rows[0], " "))
		if strings.Contains(headerText, "country") &&
			strings.Contains(headerText, "indicator") &&
			(strings.Contains(headerText, "amount") || strings.Contains(headerText, "value")) {
			return rows, name, nil
		}
	}
	return nil, "", fmt.Errorf("could not find a fiscal data sheet in workbook")
}

// mapHeader resolves canonical column names to their positions
func mapHeader(header []string) map[string]int {
	columns := make(map[string]int)
	for idx, cell := range header {
		key := strings.ToLower(strings.TrimSpace(cell))
		if canonical, ok := headerAliases[key]; ok {
			if _, seen := columns[canonical]; !seen {
				columns[canonical] = idx
			}
		}
	}
	return columns
}

func parseRow(row []string, columns map[string]int) (RawRecord, error) {
	cell := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	country := cell("country")
	indicator := cell("indicator")
	if country == "" || indicator == "" {
		return RawRecord{}, fmt.Errorf("missing country or indicator")
	}

	amount, err := ParseAmount(cell("amount"))
	if err != nil {
		return RawRecord{}, fmt.Errorf("parse amount: %w", err)
	}

	frequency := normalizeFrequency(cell("frequency"))

	period, err := parseTime(cell("time"))
	if err != nil {
		return RawRecord{}, fmt.Errorf("parse time: %w", err)
	}

	return RawRecord{
		EntityID:   ResolveEntityID(country),
		EntityName: country,
		Indicator:  indicator,
		Period:     period,
		Frequency:  frequency,
		Amount:     amount,
		Unit:       cell("unit"),
		Source:     cell("source"),
	}, nil
}

// ParseAmount converts a formatted amount string to a float, preserving sign
// and decimals while stripping thousands separators and stray symbols.
func ParseAmount(s string) (float64, error) {
	cleaned := nonNumeric.ReplaceAllString(strings.ReplaceAll(s, ",", ""), "")
	if cleaned == "" || cleaned == "-" {
		return 0, fmt.Errorf("no numeric content in %q", s)
	}
	return strconv.ParseFloat(cleaned, 64)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	// Excel serial dates show up when cells are numerically formatted
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func normalizeFrequency(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly":
		return FreqMonthly
	case "quarterly":
		return FreqQuarterly
	case "biannual", "semi-annual", "semiannual", "half-yearly":
		return FreqBiannual
	case "yearly", "annual", "annually":
		return FreqYearly
	default:
		return strings.TrimSpace(s)
	}
}
