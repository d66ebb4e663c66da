// Package types defines the shared domain model for the Skycast platform:
// locations, observations, predictions, the composed resolution result, and
// the error and sanitization primitives that every other package builds on.
package types

import "time"

// Physical plausibility bounds. Every numeric weather field crossing a trust
// boundary (provider response, store read, prediction output) is clamped to
// these ranges exactly once, at the boundary.
const (
	MinTemperatureC = -50.0
	MaxTemperatureC = 60.0
	MinHumidity     = 0.0
	MaxHumidity     = 100.0
	MinWindKph      = 0.0
	MaxWindKph      = 200.0
)

// DefaultCondition is the sentinel condition label used when a provider or
// stored row carries an empty condition text.
const DefaultCondition = "Variable"

// Location is a canonical stored place. Rows are created by bulk import or
// first-seen-during-fetch and are never deleted by the resolution pipeline.
type Location struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
	Region    string    `json:"region,omitempty"`
	Country   string    `json:"country,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// Observation is a single historical weather reading for a location.
// Rows are append-only, ordered by timestamp; the latest observation for a
// location is the row with the maximum timestamp.
type Observation struct {
	ID           string    `json:"id"`
	LocationID   string    `json:"location_id"`
	Timestamp    time.Time `json:"timestamp"`
	TemperatureC float64   `json:"temperature_c"`
	Humidity     float64   `json:"humidity"`
	WindKph      float64   `json:"wind_kph"`
	Condition    string    `json:"condition"`
}

// Provenance tags where a prediction came from.
type Provenance string

const (
	// ProvenanceModel marks predictions produced by the external model service.
	ProvenanceModel Provenance = "model"
	// ProvenanceHeuristic marks predictions produced by the local jitter fallback.
	ProvenanceHeuristic Provenance = "heuristic"
)

// Prediction is a stored short-horizon prediction for a location. Newer
// predictions supersede older ones; rows are never deleted.
type Prediction struct {
	ID           string     `json:"id"`
	LocationID   string     `json:"location_id"`
	TemperatureC float64    `json:"temperature"`
	Humidity     float64    `json:"humidity"`
	Timestamp    time.Time  `json:"timestamp"`
	Provenance   Provenance `json:"provenance"`
}

// LocationRef identifies a location either by free-text name or by stored ID.
// Exactly one of the two is set; construct via ByName or ByID.
type LocationRef struct {
	Name string
	ID   string
}

// ByName returns a LocationRef carrying a free-text name query.
func ByName(name string) LocationRef { return LocationRef{Name: name} }

// ByID returns a LocationRef carrying a stored location ID.
func ByID(id string) LocationRef { return LocationRef{ID: id} }

// IsZero reports whether the ref carries neither a name nor an ID.
func (r LocationRef) IsZero() bool { return r.Name == "" && r.ID == "" }

// CurrentConditions is the sanitized current reading served to clients.
type CurrentConditions struct {
	TempC       float64   `json:"temp_c"`
	Humidity    float64   `json:"humidity"`
	WindKph     float64   `json:"wind_kph"`
	Condition   string    `json:"condition"`
	PressureMb  float64   `json:"pressure_mb"`
	VisKm       float64   `json:"vis_km"`
	UV          float64   `json:"uv"`
	LastUpdated time.Time `json:"last_updated"`
}

// ForecastDay is one day of the forward forecast series.
type ForecastDay struct {
	Date        string  `json:"date"`
	MaxTempC    float64 `json:"maxtemp_c"`
	MinTempC    float64 `json:"mintemp_c"`
	AvgTempC    float64 `json:"avgtemp_c"`
	AvgHumidity float64 `json:"avghumidity"`
	MaxWindKph  float64 `json:"maxwind_kph"`
	Condition   string  `json:"condition"`
}

// PredictionSummary is the prediction block embedded in a resolution result.
type PredictionSummary struct {
	TemperatureC float64    `json:"temperature"`
	Humidity     float64    `json:"humidity"`
	Timestamp    time.Time  `json:"timestamp"`
	Provenance   Provenance `json:"provenance"`
}

// WeatherSource tags which data path produced the current reading.
type WeatherSource string

const (
	// SourceUpstream means the reading came from the external provider.
	SourceUpstream WeatherSource = "upstream"
	// SourceHistory means the reading was served from stored observations.
	SourceHistory WeatherSource = "history"
	// SourceSynthesized means no history existed and a fixed moderate
	// default reading was synthesized.
	SourceSynthesized WeatherSource = "synthesized"
)

// ResolvedWeather is the composed result of a full weather resolution:
// canonical location, sanitized current reading, forecast series, and
// prediction. Warnings carry soft failures (best-effort persistence) that
// did not block the response.
type ResolvedWeather struct {
	Location   Location          `json:"location"`
	Current    CurrentConditions `json:"current"`
	Forecast   []ForecastDay     `json:"forecast"`
	Prediction PredictionSummary `json:"prediction"`
	Source     WeatherSource     `json:"source"`
	Warnings   []string          `json:"warnings,omitempty"`
}
