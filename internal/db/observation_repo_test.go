package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"skycast/internal/types"
)

func TestObservationRepository_Insert_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewObservationRepository(db)

	obs := &types.Observation{
		ID:           "obs_1",
		LocationID:   "loc_1",
		Timestamp:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		TemperatureC: 18.5,
		Humidity:     62,
		WindKph:      14.4,
		Condition:    "Partly cloudy",
	}

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Insert(context.Background(), obs)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

// TestObservationRepository_Insert_UniqueViolation verifies a duplicate
// reading from a concurrent resolution is swallowed as success.
func TestObservationRepository_Insert_UniqueViolation(t *testing.T) {
	db := new(mockDBTX)
	repo := NewObservationRepository(db)

	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "observations_location_id_observed_at_key"}
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, pgErr)

	err := repo.Insert(context.Background(), &types.Observation{ID: "obs_2", LocationID: "loc_1"})
	require.NoError(t, err)
}

func TestObservationRepository_Insert_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewObservationRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := repo.Insert(context.Background(), &types.Observation{ID: "obs_3", LocationID: "loc_1"})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestObservationRepository_Latest_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewObservationRepository(db)

	observedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	row := &mockRow{scanFn: func(dest ...any) error {
		*dest[0].(*string) = "obs_1"
		*dest[1].(*string) = "loc_1"
		*dest[2].(*time.Time) = observedAt
		*dest[3].(*float64) = 18.5
		*dest[4].(*float64) = 62
		*dest[5].(*float64) = 14.4
		*dest[6].(*string) = "Partly cloudy"
		return nil
	}}

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	obs, err := repo.Latest(context.Background(), "loc_1")
	require.NoError(t, err)
	require.NotNil(t, obs)
	assert.Equal(t, 18.5, obs.TemperatureC)
	assert.Equal(t, observedAt, obs.Timestamp)
}

// TestObservationRepository_Latest_NoHistory verifies absence of history is
// reported as (nil, nil), not as an error.
func TestObservationRepository_Latest_NoHistory(t *testing.T) {
	db := new(mockDBTX)
	repo := NewObservationRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	obs, err := repo.Latest(context.Background(), "loc_empty")
	require.NoError(t, err)
	assert.Nil(t, obs)
}

func TestObservationRepository_Latest_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewObservationRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("db down")})

	_, err := repo.Latest(context.Background(), "loc_1")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestObservationRepository_Recent_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewObservationRepository(db)

	t1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	rows := newMockRows([][]any{
		{"obs_2", "loc_1", t1, 18.5, 62.0, 14.4, "Partly cloudy"},
		{"obs_1", "loc_1", t2, 17.9, 65.0, 12.1, "Cloudy"},
	})

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		return len(args) == 2 && args[1] == 24
	})).Return(rows, nil)

	observations, err := repo.Recent(context.Background(), "loc_1", 24)
	require.NoError(t, err)
	require.Len(t, observations, 2)
	// Newest first.
	assert.Equal(t, t1, observations[0].Timestamp)
	assert.Equal(t, t2, observations[1].Timestamp)
}

func TestObservationRepository_Recent_Empty(t *testing.T) {
	db := new(mockDBTX)
	repo := NewObservationRepository(db)

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows(nil), nil)

	observations, err := repo.Recent(context.Background(), "loc_empty", 24)
	require.NoError(t, err)
	assert.Empty(t, observations)
}
