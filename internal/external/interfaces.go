package external

import "context"

// WeatherFetcher abstracts the external weather data provider. The single
// fetch covers current conditions plus a multi-day forecast; implementations
// must bound the whole call with a timeout and never retry.
type WeatherFetcher interface {
	// Fetch retrieves current weather and forecast for the given coordinates.
	// Failures are classified as types.AppError: unreachable/timeout/5xx maps
	// to upstream unavailability, an undecodable or structurally incomplete
	// body maps to ErrCodeUpstreamMalformed.
	Fetch(ctx context.Context, lat, lon float64) (*RawWeatherPayload, error)
}

// ModelPredictor abstracts the prediction model service.
type ModelPredictor interface {
	// Healthy probes the model service with a short deadline. A false result
	// routes prediction to the local heuristic fallback.
	Healthy(ctx context.Context) bool

	// Predict requests a short-horizon prediction from the model service.
	Predict(ctx context.Context, req *PredictRequest) (*ModelPrediction, error)
}

// ModelPrediction is the decoded output of a successful model inference.
type ModelPrediction struct {
	Temperature float64
	Humidity    float64
}

// Compile-time interface checks.
var (
	_ WeatherFetcher = (*WeatherAPIClient)(nil)
	_ ModelPredictor = (*ModelHTTPClient)(nil)
)
