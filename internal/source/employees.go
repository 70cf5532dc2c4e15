package source

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/jszwec/csvutil"

	"bicli/internal/errors"
	"bicli/pkg/contracts/domain"
)

// EmployeeCSVReader reads per-site employee counts from a delimited file.
type EmployeeCSVReader struct {
	path     string
	logger   *slog.Logger
	validate *validator.Validate
}

// NewEmployeeCSVReader creates a reader for the given CSV path.
func NewEmployeeCSVReader(path string, logger *slog.Logger) *EmployeeCSVReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmployeeCSVReader{
		path:     path,
		logger:   logger,
		validate: validator.New(),
	}
}

// Read decodes the file into employee counts. Rows sharing a site are
// summed; rows failing validation are skipped and counted. A missing or
// unreadable file is a fatal source error.
func (r *EmployeeCSVReader) Read(ctx context.Context) ([]domain.EmployeeCount, error) {
	file, err := os.Open(r.path)
	if err != nil {
		return nil, errors.NewSourceError("open employee CSV", err).
			WithContext("path", r.path)
	}
	defer file.Close()

	dec, err := csvutil.NewDecoder(csv.NewReader(file))
	if err != nil {
		return nil, errors.NewSchemaError("read employee CSV header", err).
			WithContext("path", r.path)
	}

	counts := make(map[string]int64)
	var skipped int
	for {
		var rec domain.EmployeeCount
		err := dec.Decode(&rec)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewParsingError("decode employee CSV row", err).
				WithContext("path", r.path)
		}
		if err := r.validate.Struct(rec); err != nil {
			skipped++
			r.logger.WarnContext(ctx, "skipping invalid employee row",
				slog.String("site", rec.Site),
				slog.String("error", err.Error()))
			continue
		}
		counts[rec.Site] += rec.Count
	}

	sites := make([]string, 0, len(counts))
	for site := range counts {
		sites = append(sites, site)
	}
	sort.Strings(sites)

	result := make([]domain.EmployeeCount, 0, len(sites))
	for _, site := range sites {
		result = append(result, domain.EmployeeCount{Site: site, Count: counts[site]})
	}

	r.logger.InfoContext(ctx, "loaded employee counts",
		slog.String("path", r.path),
		slog.Int("sites", len(result)),
		slog.Int("skipped", skipped))

	return result, nil
}
