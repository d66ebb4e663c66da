package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"skycast/internal/types"
)

// ObservationRepository provides data access for the observations table.
// The table is append-only; the latest reading for a location is the row
// with the maximum timestamp.
type ObservationRepository struct {
	db DBTX
}

// NewObservationRepository creates a new ObservationRepository backed by the
// given database connection (pool or transaction).
func NewObservationRepository(db DBTX) *ObservationRepository {
	return &ObservationRepository{db: db}
}

const observationColumns = `o.id, o.location_id, o.observed_at, o.temperature_c, o.humidity, o.wind_kph, o.condition`

// scanObservation scans a single observation row. The columns must match the
// order defined in observationColumns.
func scanObservation(row pgx.Row) (*types.Observation, error) {
	var obs types.Observation
	err := row.Scan(
		&obs.ID,
		&obs.LocationID,
		&obs.Timestamp,
		&obs.TemperatureC,
		&obs.Humidity,
		&obs.WindKph,
		&obs.Condition,
	)
	if err != nil {
		return nil, err
	}
	return &obs, nil
}

// Insert stores a new observation. A unique violation on
// (location_id, observed_at) means a concurrent writer already recorded the
// same reading; that is benign and treated as success.
func (r *ObservationRepository) Insert(ctx context.Context, obs *types.Observation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO observations (id, location_id, observed_at, temperature_c, humidity, wind_kph, condition)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		obs.ID,
		obs.LocationID,
		obs.Timestamp,
		obs.TemperatureC,
		obs.Humidity,
		obs.WindKph,
		obs.Condition,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert observation", err)
	}
	return nil
}

// Latest returns the most recent observation for a location, or (nil, nil)
// when the location has no history. Absence of history is an expected state
// on the degraded path, not an error.
func (r *ObservationRepository) Latest(ctx context.Context, locationID string) (*types.Observation, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+observationColumns+`
		 FROM observations o
		 WHERE o.location_id = $1
		 ORDER BY o.observed_at DESC
		 LIMIT 1`,
		locationID,
	)

	obs, err := scanObservation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve latest observation", err)
	}
	return obs, nil
}

// Recent returns up to limit observations for a location, newest first.
// Used to assemble the historical context sent to the model service.
func (r *ObservationRepository) Recent(ctx context.Context, locationID string, limit int) ([]types.Observation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+observationColumns+`
		 FROM observations o
		 WHERE o.location_id = $1
		 ORDER BY o.observed_at DESC
		 LIMIT $2`,
		locationID, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query recent observations", err)
	}
	defer rows.Close()

	var observations []types.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan observation row", err)
		}
		observations = append(observations, *obs)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating observation rows", err)
	}

	return observations, nil
}
