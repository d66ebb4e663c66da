package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"skycast/internal/types"
)

// PredictionRepository provides data access for the predictions table.
// Predictions are append-only; the newest row for a location supersedes
// older ones.
type PredictionRepository struct {
	db DBTX
}

// NewPredictionRepository creates a new PredictionRepository backed by the
// given database connection (pool or transaction).
func NewPredictionRepository(db DBTX) *PredictionRepository {
	return &PredictionRepository{db: db}
}

const predictionColumns = `p.id, p.location_id, p.temperature_c, p.humidity, p.predicted_at, p.provenance`

func scanPrediction(row pgx.Row) (*types.Prediction, error) {
	var pred types.Prediction
	err := row.Scan(
		&pred.ID,
		&pred.LocationID,
		&pred.TemperatureC,
		&pred.Humidity,
		&pred.Timestamp,
		&pred.Provenance,
	)
	if err != nil {
		return nil, err
	}
	return &pred, nil
}

// Insert stores a new prediction. A unique violation on
// (location_id, predicted_at) means a concurrent resolution already stored
// an equivalent prediction; that is benign and treated as success.
func (r *PredictionRepository) Insert(ctx context.Context, pred *types.Prediction) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO predictions (id, location_id, temperature_c, humidity, predicted_at, provenance)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		pred.ID,
		pred.LocationID,
		pred.TemperatureC,
		pred.Humidity,
		pred.Timestamp,
		pred.Provenance,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert prediction", err)
	}
	return nil
}

// Latest returns the most recent prediction for a location, or (nil, nil)
// when none exists.
func (r *PredictionRepository) Latest(ctx context.Context, locationID string) (*types.Prediction, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+predictionColumns+`
		 FROM predictions p
		 WHERE p.location_id = $1
		 ORDER BY p.predicted_at DESC
		 LIMIT 1`,
		locationID,
	)

	pred, err := scanPrediction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve latest prediction", err)
	}
	return pred, nil
}
