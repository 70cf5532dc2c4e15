package source

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"bicli/internal/errors"
	"bicli/pkg/contracts/domain"
)

// SupplierXLSXReader reads per-site supplier counts from a spreadsheet.
type SupplierXLSXReader struct {
	path   string
	logger *slog.Logger
}

// NewSupplierXLSXReader creates a reader for the given workbook path.
func NewSupplierXLSXReader(path string, logger *slog.Logger) *SupplierXLSXReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &SupplierXLSXReader{path: path, logger: logger}
}

// Read loads supplier counts from the first sheet. Columns are located by
// header name so the sheet layout may vary. Rows with an unparseable or
// negative count are skipped and counted.
func (r *SupplierXLSXReader) Read(ctx context.Context) ([]domain.SupplierCount, error) {
	f, err := excelize.OpenFile(r.path)
	if err != nil {
		return nil, errors.NewSourceError("open supplier workbook", err).
			WithContext("path", r.path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.NewSchemaError("supplier workbook has no sheets", nil).
			WithContext("path", r.path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.NewParsingError("read supplier sheet", err).
			WithContext("sheet", sheets[0])
	}
	if len(rows) == 0 {
		return []domain.SupplierCount{}, nil
	}

	siteCol, countCol := -1, -1
	for j, header := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(header)) {
		case "site", "standort":
			siteCol = j
		case "supplier_count", "suppliers", "lieferanten":
			countCol = j
		}
	}
	if siteCol == -1 || countCol == -1 {
		return nil, errors.NewSchemaError("supplier sheet missing site or supplier_count column", nil).
			WithContext("sheet", sheets[0]).
			WithContext("header", rows[0])
	}

	var result []domain.SupplierCount
	var skipped int
	for _, row := range rows[1:] {
		if siteCol >= len(row) || countCol >= len(row) {
			continue
		}
		site := strings.TrimSpace(row[siteCol])
		if site == "" {
			continue
		}
		count, err := strconv.ParseInt(strings.TrimSpace(row[countCol]), 10, 64)
		if err != nil || count < 0 {
			skipped++
			r.logger.WarnContext(ctx, "skipping invalid supplier row",
				slog.String("site", site),
				slog.String("value", row[countCol]))
			continue
		}
		result = append(result, domain.SupplierCount{Site: site, Count: count})
	}

	r.logger.InfoContext(ctx, "loaded supplier counts",
		slog.String("path", r.path),
		slog.Int("sites", len(result)),
		slog.Int("skipped", skipped))

	return result, nil
}
