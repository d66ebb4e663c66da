// Package handlers contains the HTTP handler implementations for the
// SkyCast API. It covers:
//   - Local weather lookup (GET /v1/weather)
//   - Full pipeline resolution (GET /v1/weather/resolve)
//   - Stored weather by location ID (GET /v1/weather/{id})
//   - Location listing (GET /v1/locations)
//   - Forecast retrieval (GET /v1/forecast)
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"skycast/internal/core"
	"skycast/internal/types"
	"skycast/internal/weather"
)

// WeatherServiceInterface defines the service contract for the weather
// handler. Matches the weather.Service surface but is defined locally to
// avoid tight coupling per the handler injection pattern.
type WeatherServiceInterface interface {
	Resolve(ctx context.Context, ref types.LocationRef) (*types.ResolvedWeather, error)
	LocalWeather(ctx context.Context, ref types.LocationRef) (*types.ResolvedWeather, error)
	WeatherByID(ctx context.Context, id string) (*weather.WeatherDetail, error)
	Locations(ctx context.Context) ([]types.Location, error)
}

// WeatherHandler maps HTTP requests to weather service methods.
type WeatherHandler struct {
	service WeatherServiceInterface
	logger  *slog.Logger
}

// NewWeatherHandler creates a new WeatherHandler with the provided dependencies.
func NewWeatherHandler(svc WeatherServiceInterface, logger *slog.Logger) *WeatherHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeatherHandler{
		service: svc,
		logger:  logger,
	}
}

// RegisterRoutes mounts the weather endpoints onto the mux.
func (h *WeatherHandler) RegisterRoutes(r chi.Router) {
	r.Get("/weather", h.HandleLocalWeather)
	r.Get("/weather/resolve", h.HandleResolve)
	r.Get("/weather/{id}", h.HandleWeatherByID)
	r.Get("/locations", h.HandleListLocations)
	r.Get("/forecast", h.HandleForecast)
}

// forecastResponse is the reduced shape served by GET /v1/forecast: the
// resolution result without the current-reading provenance fields.
type forecastResponse struct {
	Location types.Location          `json:"location"`
	Current  types.CurrentConditions `json:"current"`
	Forecast []types.ForecastDay     `json:"forecast"`
	Source   types.WeatherSource     `json:"source"`
}

// locationParam extracts and validates the required location query parameter.
func locationParam(r *http.Request) (types.LocationRef, error) {
	q := types.NonEmpty(r.URL.Query().Get("location"), "")
	if q == "" {
		return types.LocationRef{}, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"location query parameter is required",
			nil,
		)
	}
	return types.ByName(q), nil
}

// HandleLocalWeather handles GET /v1/weather. It resolves a location against
// the local store only: stored history when present, synthesized data when
// not. The upstream provider is never contacted.
func (h *WeatherHandler) HandleLocalWeather(w http.ResponseWriter, r *http.Request) {
	ref, err := locationParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.service.LocalWeather(r.Context(), ref)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

// HandleResolve handles GET /v1/weather/resolve. It runs the full pipeline:
// canonical lookup, upstream fetch with degradation, prediction, persistence.
func (h *WeatherHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ref, err := locationParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.service.Resolve(r.Context(), ref)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

// HandleWeatherByID handles GET /v1/weather/{id}. It returns the latest
// stored reading and prediction for a location, with no upstream call.
func (h *WeatherHandler) HandleWeatherByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"location id is required",
			nil,
		))
		return
	}

	detail, err := h.service.WeatherByID(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: detail})
}

// HandleListLocations handles GET /v1/locations.
func (h *WeatherHandler) HandleListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.service.Locations(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: locations})
}

// HandleForecast handles GET /v1/forecast. Like the local-search endpoint it
// serves stored or synthesized data without calling the provider, and omits
// the prediction block.
func (h *WeatherHandler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	ref, err := locationParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.service.LocalWeather(r.Context(), ref)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: forecastResponse{
		Location: result.Location,
		Current:  result.Current,
		Forecast: result.Forecast,
		Source:   result.Source,
	}})
}
