// Package weather implements the SkyCast resolution pipeline: canonical
// location lookup, upstream fetch with degradation to stored history or
// synthesized data, short-horizon prediction, and best-effort persistence.
package weather

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"skycast/internal/external"
	"skycast/internal/types"
)

// LocationStore is the location persistence surface the service needs.
type LocationStore interface {
	ResolveByName(ctx context.Context, query string) (*types.Location, error)
	GetByID(ctx context.Context, id string) (*types.Location, error)
	List(ctx context.Context) ([]types.Location, error)
	Upsert(ctx context.Context, loc *types.Location) error
}

// ObservationStore is the observation persistence surface the service needs.
type ObservationStore interface {
	Insert(ctx context.Context, obs *types.Observation) error
	Latest(ctx context.Context, locationID string) (*types.Observation, error)
	Recent(ctx context.Context, locationID string, limit int) ([]types.Observation, error)
}

// WeatherDetail is the served result for a direct lookup by location ID:
// the latest stored reading plus the latest stored prediction, with no
// upstream call.
type WeatherDetail struct {
	Location   types.Location           `json:"location"`
	Weather    types.Observation        `json:"weather"`
	Prediction *types.PredictionSummary `json:"prediction,omitempty"`
}

// Service orchestrates the resolution pipeline. All failure modes past
// location lookup degrade rather than fail: a missing provider falls back to
// history, missing history falls back to synthesis, and persistence problems
// surface as warnings on the result.
type Service struct {
	locations    LocationStore
	observations ObservationStore
	predictions  PredictionStore
	fetcher      external.WeatherFetcher
	engine       *Engine
	synth        *synthesizer
	clock        types.Clock
	logger       *slog.Logger
	historyLimit int
	forecastDays int

	rand *jitter
}

// ServiceOption is a functional option for configuring a Service.
type ServiceOption func(*Service)

// WithClock overrides the service clock, for tests.
func WithClock(clock types.Clock) ServiceOption {
	return func(s *Service) { s.clock = clock }
}

// WithSeed makes the synthesizer deterministic, for tests.
func WithSeed(seed uint64) ServiceOption {
	return func(s *Service) { s.rand = newSeededJitter(seed) }
}

// WithHistoryLimit bounds the historical context passed to the model service.
func WithHistoryLimit(limit int) ServiceOption {
	return func(s *Service) {
		if limit > 0 {
			s.historyLimit = limit
		}
	}
}

// WithForecastDays sets the length of synthesized forecast series.
func WithForecastDays(days int) ServiceOption {
	return func(s *Service) {
		if days > 0 {
			s.forecastDays = days
		}
	}
}

// NewService wires the resolution pipeline.
func NewService(
	locations LocationStore,
	observations ObservationStore,
	predictions PredictionStore,
	fetcher external.WeatherFetcher,
	engine *Engine,
	logger *slog.Logger,
	opts ...ServiceOption,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		locations:    locations,
		observations: observations,
		predictions:  predictions,
		fetcher:      fetcher,
		engine:       engine,
		clock:        types.RealClock{},
		logger:       logger,
		historyLimit: 24,
		forecastDays: 7,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.rand == nil {
		s.rand = newJitter()
	}
	s.synth = newSynthesizer(s.rand, s.clock)

	return s
}

// Resolve runs the full pipeline for a location reference: canonical lookup,
// upstream fetch, sanitization, prediction, and best-effort persistence.
//
// Only two failures are hard: an unresolvable location reference and a store
// outage during lookup. Everything downstream degrades.
func (s *Service) Resolve(ctx context.Context, ref types.LocationRef) (*types.ResolvedWeather, error) {
	loc, err := s.lookup(ctx, ref)
	if err != nil {
		return nil, err
	}

	payload, fetchErr := s.fetcher.Fetch(ctx, loc.Latitude, loc.Longitude)
	if fetchErr != nil {
		s.logger.WarnContext(ctx, "upstream fetch failed, serving degraded weather",
			"location_id", loc.ID,
			"location", loc.Name,
			"error", fetchErr,
		)
		return s.degraded(ctx, loc, fetchErr)
	}

	return s.fromUpstream(ctx, loc, payload)
}

// LocalWeather serves a location without touching the upstream provider:
// stored history when present, synthesized data when not. Used by the
// local-search endpoint and useful when the provider quota is exhausted.
func (s *Service) LocalWeather(ctx context.Context, ref types.LocationRef) (*types.ResolvedWeather, error) {
	loc, err := s.lookup(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.degraded(ctx, loc, nil)
}

// WeatherByID returns the latest stored reading and prediction for a
// location. Returns ErrCodeNotFoundWeather when the location has no history.
func (s *Service) WeatherByID(ctx context.Context, id string) (*WeatherDetail, error) {
	loc, err := s.locations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	obs, err := s.observations.Latest(ctx, loc.ID)
	if err != nil {
		return nil, err
	}
	if obs == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundWeather, "no stored weather for location", nil)
	}

	detail := &WeatherDetail{
		Location: *loc,
		Weather:  sanitizeObservation(*obs),
	}

	pred, err := s.predictions.Latest(ctx, loc.ID)
	if err != nil {
		// The reading is the point of this endpoint; a failed prediction
		// lookup degrades to a response without one.
		s.logger.WarnContext(ctx, "failed to load latest prediction",
			"location_id", loc.ID,
			"error", err,
		)
	} else if pred != nil {
		detail.Prediction = &types.PredictionSummary{
			TemperatureC: pred.TemperatureC,
			Humidity:     pred.Humidity,
			Timestamp:    pred.Timestamp,
			Provenance:   pred.Provenance,
		}
	}

	return detail, nil
}

// Locations lists all stored locations ordered by name.
func (s *Service) Locations(ctx context.Context) ([]types.Location, error) {
	return s.locations.List(ctx)
}

// lookup resolves a LocationRef to a canonical stored location.
func (s *Service) lookup(ctx context.Context, ref types.LocationRef) (*types.Location, error) {
	switch {
	case ref.ID != "":
		return s.locations.GetByID(ctx, ref.ID)
	case ref.Name != "":
		return s.locations.ResolveByName(ctx, ref.Name)
	default:
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "location name or id is required", nil)
	}
}

// fromUpstream builds the resolution result from a fresh provider payload.
func (s *Service) fromUpstream(ctx context.Context, loc *types.Location, payload *external.RawWeatherPayload) (*types.ResolvedWeather, error) {
	var warnings []string

	obs := sanitizeObservation(types.Observation{
		ID:           "obs_" + uuid.New().String(),
		LocationID:   loc.ID,
		Timestamp:    observationTimestamp(payload.Current.LastUpdatedEpoch, s.clock),
		TemperatureC: payload.Current.TempC,
		Humidity:     payload.Current.Humidity,
		WindKph:      payload.Current.WindKph,
		Condition:    payload.Current.Condition.Text,
	})

	if err := s.observations.Insert(ctx, &obs); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist observation",
			"location_id", loc.ID,
			"error", err,
		)
		warnings = append(warnings, "observation not persisted")
	}

	// The stored location is canonical; the provider only backfills the
	// descriptive fields it knows better.
	resolved := *loc
	if resolved.Region == "" {
		resolved.Region = payload.Location.Region
	}
	if resolved.Country == "" {
		resolved.Country = payload.Location.Country
	}
	if resolved.Region != loc.Region || resolved.Country != loc.Country {
		if err := s.locations.Upsert(ctx, &resolved); err != nil {
			s.logger.WarnContext(ctx, "failed to persist backfilled location fields",
				"location_id", loc.ID,
				"error", err,
			)
			warnings = append(warnings, "location not persisted")
		}
	}

	current := types.CurrentConditions{
		TempC:       obs.TemperatureC,
		Humidity:    obs.Humidity,
		WindKph:     obs.WindKph,
		Condition:   obs.Condition,
		PressureMb:  payload.Current.PressureMb,
		VisKm:       payload.Current.VisKm,
		UV:          payload.Current.UV,
		LastUpdated: obs.Timestamp,
	}

	pred, warnings2 := s.predict(ctx, &resolved, obs)
	warnings = append(warnings, warnings2...)

	return &types.ResolvedWeather{
		Location:   resolved,
		Current:    current,
		Forecast:   mapForecast(payload.Forecast),
		Prediction: pred,
		Source:     types.SourceUpstream,
		Warnings:   warnings,
	}, nil
}

// degraded serves a location from stored history, synthesizing a reading
// when none exists. cause is the upstream failure that routed us here; nil
// when the caller skipped the provider on purpose.
func (s *Service) degraded(ctx context.Context, loc *types.Location, cause error) (*types.ResolvedWeather, error) {
	var warnings []string
	if cause != nil {
		warnings = append(warnings, fmt.Sprintf("upstream fetch failed: %v", cause))
	}

	source := types.SourceHistory
	latest, err := s.observations.Latest(ctx, loc.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to read stored history, synthesizing",
			"location_id", loc.ID,
			"error", err,
		)
		warnings = append(warnings, "stored history unavailable")
		latest = nil
	}

	var obs types.Observation
	if latest != nil {
		obs = sanitizeObservation(*latest)
	} else {
		source = types.SourceSynthesized
		obs = s.synth.defaultObservation(loc.ID)
		obs.ID = "obs_" + uuid.New().String()
		if err := s.observations.Insert(ctx, &obs); err != nil {
			s.logger.ErrorContext(ctx, "failed to persist synthesized observation",
				"location_id", loc.ID,
				"error", err,
			)
			warnings = append(warnings, "observation not persisted")
		}
	}

	pred, warnings2 := s.predict(ctx, loc, obs)
	warnings = append(warnings, warnings2...)

	return &types.ResolvedWeather{
		Location:   *loc,
		Current:    s.synth.currentFromObservation(obs),
		Forecast:   s.synth.forecast(obs.TemperatureC, obs.Humidity, s.forecastDays),
		Prediction: pred,
		Source:     source,
		Warnings:   warnings,
	}, nil
}

// predict serves the latest stored prediction when one exists, and otherwise
// runs the engine with whatever history is available, converting soft
// failures into warnings.
func (s *Service) predict(ctx context.Context, loc *types.Location, current types.Observation) (types.PredictionSummary, []string) {
	var warnings []string

	stored, err := s.predictions.Latest(ctx, loc.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load stored prediction",
			"location_id", loc.ID,
			"error", err,
		)
		warnings = append(warnings, "stored prediction unavailable")
	} else if stored != nil {
		return types.PredictionSummary{
			TemperatureC: stored.TemperatureC,
			Humidity:     stored.Humidity,
			Timestamp:    stored.Timestamp,
			Provenance:   stored.Provenance,
		}, warnings
	}

	history, err := s.observations.Recent(ctx, loc.ID, s.historyLimit)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load prediction history",
			"location_id", loc.ID,
			"error", err,
		)
		warnings = append(warnings, "prediction history unavailable")
		history = nil
	}

	pred, err := s.engine.Predict(ctx, PredictionInput{
		Location: loc,
		Current:  current,
		History:  history,
	})
	if err != nil {
		warnings = append(warnings, "prediction not persisted")
	}

	return types.PredictionSummary{
		TemperatureC: pred.TemperatureC,
		Humidity:     pred.Humidity,
		Timestamp:    pred.Timestamp,
		Provenance:   pred.Provenance,
	}, warnings
}

// mapForecast sanitizes the provider forecast series into the served shape.
func mapForecast(raw *external.RawForecast) []types.ForecastDay {
	if raw == nil {
		return nil
	}
	series := make([]types.ForecastDay, 0, len(raw.ForecastDay))
	for _, day := range raw.ForecastDay {
		series = append(series, types.ForecastDay{
			Date:        day.Date,
			MaxTempC:    types.ClampFloat(day.Day.MaxTempC, defaultTempC, types.MinTemperatureC, types.MaxTemperatureC),
			MinTempC:    types.ClampFloat(day.Day.MinTempC, defaultTempC, types.MinTemperatureC, types.MaxTemperatureC),
			AvgTempC:    types.ClampFloat(day.Day.AvgTempC, defaultTempC, types.MinTemperatureC, types.MaxTemperatureC),
			AvgHumidity: types.ClampFloat(day.Day.AvgHumidity, defaultHumidity, types.MinHumidity, types.MaxHumidity),
			MaxWindKph:  types.ClampFloat(day.Day.MaxWindKph, defaultWindKph, types.MinWindKph, types.MaxWindKph),
			Condition:   types.NonEmpty(day.Day.Condition.Text, types.DefaultCondition),
		})
	}
	return series
}
