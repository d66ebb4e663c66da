package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"skycast/internal/types"
)

// weatherAPIBase is the default weather provider base URL.
// Overridable in tests via WeatherClientConfig.BaseURL.
const weatherAPIBase = "https://api.weatherapi.com"

// WeatherClientConfig holds the configuration for creating a WeatherAPIClient.
type WeatherClientConfig struct {
	APIKey       types.SecretString
	BaseURL      string // Override for testing; defaults to weatherAPIBase
	Timeout      time.Duration
	ForecastDays int
	Logger       *slog.Logger
}

// RawWeatherPayload is the decoded provider response for a combined
// current-plus-forecast fetch. Location and Current are pointers so that
// structural validation can distinguish "absent" from "zero".
type RawWeatherPayload struct {
	Location *RawLocation `json:"location"`
	Current  *RawCurrent  `json:"current"`
	Forecast *RawForecast `json:"forecast"`
}

// RawLocation is the provider's canonical place block.
type RawLocation struct {
	Name    string  `json:"name"`
	Region  string  `json:"region"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// RawCurrent is the provider's current conditions block. Numeric fields stay
// untrusted until the sanitizer clamps them.
type RawCurrent struct {
	TempC            float64      `json:"temp_c"`
	Humidity         float64      `json:"humidity"`
	WindKph          float64      `json:"wind_kph"`
	PressureMb       float64      `json:"pressure_mb"`
	VisKm            float64      `json:"vis_km"`
	UV               float64      `json:"uv"`
	LastUpdatedEpoch int64        `json:"last_updated_epoch"`
	Condition        RawCondition `json:"condition"`
}

// RawCondition carries the provider's condition text.
type RawCondition struct {
	Text string `json:"text"`
}

// RawForecast wraps the provider's daily forecast series.
type RawForecast struct {
	ForecastDay []RawForecastDay `json:"forecastday"`
}

// RawForecastDay is one provider forecast day.
type RawForecastDay struct {
	Date string `json:"date"`
	Day  RawDay `json:"day"`
}

// RawDay holds the aggregated values for a forecast day.
type RawDay struct {
	MaxTempC    float64      `json:"maxtemp_c"`
	MinTempC    float64      `json:"mintemp_c"`
	AvgTempC    float64      `json:"avgtemp_c"`
	AvgHumidity float64      `json:"avghumidity"`
	MaxWindKph  float64      `json:"maxwind_kph"`
	Condition   RawCondition `json:"condition"`
}

// WeatherAPIClient implements WeatherFetcher against the weatherapi.com REST
// API through BaseClient. The retry policy is deliberately single-attempt:
// when the provider is slow or down the resolution pipeline falls back to
// stored history instead of waiting out retries.
type WeatherAPIClient struct {
	base         *BaseClient
	apiKey       types.SecretString
	baseURL      string
	forecastDays int
	logger       *slog.Logger
}

// NewWeatherClient creates a new WeatherAPIClient. The configured timeout is
// applied to the underlying http.Client and bounds the entire fetch.
func NewWeatherClient(cfg WeatherClientConfig) *WeatherAPIClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = weatherAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	forecastDays := cfg.ForecastDays
	if forecastDays <= 0 {
		forecastDays = 7
	}

	base := NewBaseClient(
		&http.Client{Timeout: timeout},
		"weatherapi",
		NoRetryPolicy(),
		"SkyCast/1.0",
	)

	return &WeatherAPIClient{
		base:         base,
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		forecastDays: forecastDays,
		logger:       logger,
	}
}

// NewWeatherClientWithBase creates a WeatherAPIClient with a pre-configured
// BaseClient. This is useful for testing when you want to control the
// BaseClient configuration.
func NewWeatherClientWithBase(base *BaseClient, cfg WeatherClientConfig) *WeatherAPIClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = weatherAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	forecastDays := cfg.ForecastDays
	if forecastDays <= 0 {
		forecastDays = 7
	}

	return &WeatherAPIClient{
		base:         base,
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		forecastDays: forecastDays,
		logger:       logger,
	}
}

// Fetch retrieves current weather and forecast for the given coordinates from
// GET /v1/forecast.json. Responses missing the location or current block are
// rejected as malformed so the pipeline can degrade instead of serving junk.
func (c *WeatherAPIClient) Fetch(ctx context.Context, lat, lon float64) (*RawWeatherPayload, error) {
	q := url.Values{}
	q.Set("key", c.apiKey.Unmask())
	q.Set("q", fmt.Sprintf("%f,%f", lat, lon))
	q.Set("days", fmt.Sprintf("%d", c.forecastDays))
	q.Set("aqi", "no")
	q.Set("alerts", "no")

	reqURL := c.baseURL + "/v1/forecast.json?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create weather fetch request",
			err,
		)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// BaseClient returns 4xx responses (other than 429) as-is without error.
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.WarnContext(ctx, "weather provider rejected request",
			"status", resp.StatusCode,
			"body", string(body),
		)
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamWeather,
			fmt.Sprintf("weather provider returned %d", resp.StatusCode),
			nil,
			map[string]any{"status": resp.StatusCode},
		)
	}

	var payload RawWeatherPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamMalformed,
			"failed to decode weather provider response",
			err,
		)
	}

	if payload.Location == nil || payload.Current == nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamMalformed,
			"weather provider response missing location or current block",
			nil,
		)
	}

	return &payload, nil
}
