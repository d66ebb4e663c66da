package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"skycast/internal/types"
)

// LocationRepository provides data access for the locations table. Name
// resolution is intentionally loose: a case-insensitive substring match so
// that "par" finds "Paris". Ties are broken deterministically by name, then
// id, so repeated queries always resolve to the same row.
type LocationRepository struct {
	db DBTX
}

// NewLocationRepository creates a new LocationRepository backed by the given
// database connection (pool or transaction).
func NewLocationRepository(db DBTX) *LocationRepository {
	return &LocationRepository{db: db}
}

// locationColumns defines the standard set of columns selected for location
// queries. The scan helpers depend on this exact order.
const locationColumns = `l.id, l.name, l.latitude, l.longitude, l.region, l.country, l.created_at`

// scanLocation scans a single location row into a types.Location struct.
// The columns must match the order defined in locationColumns.
func scanLocation(row pgx.Row) (*types.Location, error) {
	var loc types.Location
	var (
		region  *string
		country *string
	)

	err := row.Scan(
		&loc.ID,
		&loc.Name,
		&loc.Latitude,
		&loc.Longitude,
		&region,
		&country,
		&loc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if region != nil {
		loc.Region = *region
	}
	if country != nil {
		loc.Country = *country
	}

	return &loc, nil
}

// ResolveByName finds the single best location for a free-text query using a
// case-insensitive substring match. Returns ErrCodeNotFoundLocation when no
// row matches.
func (r *LocationRepository) ResolveByName(ctx context.Context, query string) (*types.Location, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+locationColumns+`
		 FROM locations l
		 WHERE l.name ILIKE '%' || $1 || '%'
		 ORDER BY l.name, l.id
		 LIMIT 1`,
		query,
	)

	loc, err := scanLocation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeNotFoundLocation, "no location matches the requested name", nil, map[string]any{
				"query": query,
			})
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to resolve location", err)
	}
	return loc, nil
}

// GetByID retrieves a location by its ID. Returns ErrCodeNotFoundLocation if
// no row exists.
func (r *LocationRepository) GetByID(ctx context.Context, id string) (*types.Location, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+locationColumns+`
		 FROM locations l
		 WHERE l.id = $1`,
		id,
	)

	loc, err := scanLocation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundLocation, "location not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve location", err)
	}
	return loc, nil
}

// List returns all stored locations ordered by name. The limit is a guard
// against unbounded result sets; the locations table is expected to stay in
// the low thousands.
func (r *LocationRepository) List(ctx context.Context) ([]types.Location, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+locationColumns+`
		 FROM locations l
		 ORDER BY l.name
		 LIMIT 5000`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list locations", err)
	}
	defer rows.Close()

	var locations []types.Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan location row", err)
		}
		locations = append(locations, *loc)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating location rows", err)
	}

	return locations, nil
}

// Upsert inserts a location, or on an existing ID fills in region and
// country where the stored row has none. The caller must set the ID
// (prefixed UUID, e.g. "loc_...") and coordinates. A unique violation on
// (latitude, longitude) means another writer stored the same place
// concurrently; that is treated as success.
func (r *LocationRepository) Upsert(ctx context.Context, loc *types.Location) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO locations (id, name, latitude, longitude, region, country, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (id) DO UPDATE
		 SET region = COALESCE(locations.region, EXCLUDED.region),
		     country = COALESCE(locations.country, EXCLUDED.country)`,
		loc.ID,
		loc.Name,
		loc.Latitude,
		loc.Longitude,
		nilIfEmpty(loc.Region),
		nilIfEmpty(loc.Country),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert location", err)
	}
	return nil
}

// CreateBatch inserts many locations at once, skipping rows whose coordinates
// already exist. Used by the CSV importer where re-runs over the same file
// must be idempotent. Returns the number of rows actually inserted.
func (r *LocationRepository) CreateBatch(ctx context.Context, locations []types.Location) (int64, error) {
	var inserted int64
	for i := range locations {
		loc := &locations[i]
		tag, err := r.db.Exec(ctx,
			`INSERT INTO locations (id, name, latitude, longitude, region, country, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, NOW())
			 ON CONFLICT (latitude, longitude) DO NOTHING`,
			loc.ID,
			loc.Name,
			loc.Latitude,
			loc.Longitude,
			nilIfEmpty(loc.Region),
			nilIfEmpty(loc.Country),
		)
		if err != nil {
			return inserted, types.NewAppError(types.ErrCodeInternalDB, "failed to batch insert locations", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}
