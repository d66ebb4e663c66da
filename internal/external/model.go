package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"skycast/internal/types"
)

// modelAPIBase is the default model service base URL for local development.
const modelAPIBase = "http://localhost:5000"

// ModelClientConfig holds the configuration for creating a ModelHTTPClient.
type ModelClientConfig struct {
	BaseURL      string // Override for testing; defaults to modelAPIBase
	ProbeTimeout time.Duration
	CallTimeout  time.Duration
	Logger       *slog.Logger
}

// ModelCurrentWeather is the current conditions block sent to the model
// service for inference.
type ModelCurrentWeather struct {
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	WindSpeed     float64 `json:"wind_speed"`
	Precipitation float64 `json:"precipitation"`
}

// ModelHistoricalPoint is one historical reading in the inference request.
// The field keys mirror the meteorological parameter names the model was
// trained on; changing them breaks the service contract.
type ModelHistoricalPoint struct {
	Timestamp     string  `json:"timestamp"`
	Temperature   float64 `json:"2 metre temperature"`
	Humidity      float64 `json:"2 metre relative humidity"`
	WindSpeed     float64 `json:"10m wind speed"`
	Precipitation float64 `json:"Total precipitation"`
}

// PredictRequest is the payload POSTed to the model service /predict endpoint.
type PredictRequest struct {
	CurrentWeather ModelCurrentWeather    `json:"current_weather"`
	HistoricalData []ModelHistoricalPoint `json:"historical_data"`
}

// predictionValue is a single predicted quantity in the service response.
type predictionValue struct {
	Value float64 `json:"value"`
}

// predictResponse is the model service /predict response envelope.
type predictResponse struct {
	Success     bool `json:"success"`
	Predictions struct {
		Temperature *predictionValue `json:"temperature"`
		Humidity    *predictionValue `json:"humidity"`
	} `json:"predictions"`
}

// ModelHTTPClient implements ModelPredictor against the prediction model
// service. The health probe and the inference call carry separate deadlines:
// the probe must answer fast or the pipeline falls back to the heuristic,
// while the inference call gets a little more room.
type ModelHTTPClient struct {
	base         *BaseClient
	baseURL      string
	probeTimeout time.Duration
	callTimeout  time.Duration
	logger       *slog.Logger
}

// NewModelClient creates a new ModelHTTPClient. The model path never retries:
// any failure immediately routes prediction to the heuristic fallback.
func NewModelClient(cfg ModelClientConfig) *ModelHTTPClient {
	base := NewBaseClient(
		&http.Client{},
		"model",
		NoRetryPolicy(),
		"SkyCast/1.0",
	)
	return NewModelClientWithBase(base, cfg)
}

// NewModelClientWithBase creates a ModelHTTPClient with a pre-configured
// BaseClient. This is useful for testing.
func NewModelClientWithBase(base *BaseClient, cfg ModelClientConfig) *ModelHTTPClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = modelAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 2 * time.Second
	}

	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 5 * time.Second
	}

	return &ModelHTTPClient{
		base:         base,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		probeTimeout: probeTimeout,
		callTimeout:  callTimeout,
		logger:       logger,
	}
}

// Healthy probes GET /health with the probe deadline. Only a 200 within the
// deadline counts as healthy; every other outcome routes prediction to the
// heuristic fallback.
func (c *ModelHTTPClient) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.base.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "model health probe failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// Predict POSTs the inference request to /predict with the call deadline and
// decodes the prediction envelope. A response without success=true or with
// missing prediction values is treated as a model failure.
func (c *ModelHTTPClient) Predict(ctx context.Context, predictReq *PredictRequest) (*ModelPrediction, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	bodyBytes, err := json.Marshal(predictReq)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to serialize model prediction request",
			err,
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create model prediction request",
			err,
		)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamModel,
			"model service unreachable",
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamModel,
			fmt.Sprintf("model service returned %d", resp.StatusCode),
			nil,
		)
	}

	var decoded predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamModel,
			"failed to decode model service response",
			err,
		)
	}

	if !decoded.Success || decoded.Predictions.Temperature == nil || decoded.Predictions.Humidity == nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamModel,
			"model service returned an incomplete prediction",
			nil,
		)
	}

	return &ModelPrediction{
		Temperature: decoded.Predictions.Temperature.Value,
		Humidity:    decoded.Predictions.Humidity.Value,
	}, nil
}
