// Package importer loads location seed data from CSV files into the
// location store. Files carry a header row followed by
// name,latitude,longitude,region,country records, either plain or
// gzip-compressed (.csv.gz).
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"skycast/internal/types"
)

// LocationWriter is the persistence surface the importer needs.
type LocationWriter interface {
	CreateBatch(ctx context.Context, locations []types.Location) (int64, error)
}

// Result summarizes an import run.
type Result struct {
	Read     int   // data rows read from the file
	Skipped  int   // rows dropped for validation failures or in-file duplicates
	Inserted int64 // rows actually inserted (existing coordinates are kept)
}

// Importer parses location CSV files and writes them in one batch.
type Importer struct {
	store  LocationWriter
	logger *slog.Logger
}

// New creates an Importer.
func New(store LocationWriter, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: store, logger: logger}
}

// ImportFile reads the file at path and imports its rows. Files ending in
// .gz are transparently decompressed.
func (i *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream in %s: %w", path, err)
		}
		defer gz.Close()
		reader = gz
	}

	return i.Import(ctx, reader)
}

// Import reads CSV rows from r and inserts the valid ones in a single
// batch. Rows that fail validation and rows duplicating an earlier row's
// coordinates are logged and skipped; they never abort the run. The store
// keeps existing rows on coordinate conflicts, so re-importing a file is
// safe.
func (i *Importer) Import(ctx context.Context, r io.Reader) (*Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 5
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "csv file is empty", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(header[0]), "name") {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"csv header must start with name,latitude,longitude,region,country",
			nil,
		)
	}

	result := &Result{}
	seen := make(map[[2]float64]struct{})
	var batch []types.Location

	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A malformed row is a data problem, not a reason to drop
			// the rest of the file.
			i.logger.Warn("skipping malformed csv row", "line", line, "error", err)
			result.Read++
			result.Skipped++
			continue
		}

		result.Read++

		loc, err := parseRow(record)
		if err != nil {
			i.logger.Warn("skipping invalid csv row", "line", line, "error", err)
			result.Skipped++
			continue
		}

		key := [2]float64{loc.Latitude, loc.Longitude}
		if _, dup := seen[key]; dup {
			i.logger.Warn("skipping duplicate coordinates", "line", line, "name", loc.Name)
			result.Skipped++
			continue
		}
		seen[key] = struct{}{}

		batch = append(batch, loc)
	}

	if len(batch) == 0 {
		return result, nil
	}

	inserted, err := i.store.CreateBatch(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("inserting locations: %w", err)
	}
	result.Inserted = inserted

	i.logger.Info("import completed",
		"read", result.Read,
		"skipped", result.Skipped,
		"inserted", result.Inserted,
	)
	return result, nil
}

// parseRow validates one data record and builds a Location from it.
func parseRow(record []string) (types.Location, error) {
	name := strings.TrimSpace(record[0])
	if name == "" {
		return types.Location{}, fmt.Errorf("name is required")
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
	if err != nil {
		return types.Location{}, fmt.Errorf("latitude %q is not a number", record[1])
	}
	if lat < -90 || lat > 90 {
		return types.Location{}, fmt.Errorf("latitude %v out of range [-90, 90]", lat)
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil {
		return types.Location{}, fmt.Errorf("longitude %q is not a number", record[2])
	}
	if lon < -180 || lon > 180 {
		return types.Location{}, fmt.Errorf("longitude %v out of range [-180, 180]", lon)
	}

	return types.Location{
		ID:        "loc_" + uuid.New().String(),
		Name:      name,
		Latitude:  lat,
		Longitude: lon,
		Region:    strings.TrimSpace(record[3]),
		Country:   strings.TrimSpace(record[4]),
	}, nil
}
