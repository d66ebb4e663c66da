package external

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"skycast/internal/types"
)

func newTestModelClient(t *testing.T, serverURL string) *ModelHTTPClient {
	t.Helper()
	base := NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		"test-model",
		NoRetryPolicy(),
		"SkyCast-Test/1.0",
		WithSleepFunc(noopSleep),
	)
	return NewModelClientWithBase(base, ModelClientConfig{
		BaseURL:      serverURL,
		ProbeTimeout: 500 * time.Millisecond,
		CallTimeout:  2 * time.Second,
	})
}

func TestModelHTTPClient_Healthy_OK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("probe path = %q, want /health", r.URL.Path)
		}
		w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer server.Close()

	client := newTestModelClient(t, server.URL)
	if !client.Healthy(context.Background()) {
		t.Error("Healthy() = false for a 200 probe, want true")
	}
}

func TestModelHTTPClient_Healthy_NonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestModelClient(t, server.URL)
	if client.Healthy(context.Background()) {
		t.Error("Healthy() = true for a 503 probe, want false")
	}
}

func TestModelHTTPClient_Healthy_SlowProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestModelClient(t, server.URL)

	start := time.Now()
	healthy := client.Healthy(context.Background())
	elapsed := time.Since(start)

	if healthy {
		t.Error("Healthy() = true for a probe slower than the deadline, want false")
	}
	if elapsed > 1500*time.Millisecond {
		t.Errorf("probe took %v, want it bounded by the probe deadline", elapsed)
	}
}

func TestModelHTTPClient_Healthy_Unreachable(t *testing.T) {
	client := newTestModelClient(t, "http://127.0.0.1:1")
	if client.Healthy(context.Background()) {
		t.Error("Healthy() = true for an unreachable service, want false")
	}
}

func TestModelHTTPClient_Predict_Success(t *testing.T) {
	var gotBody PredictRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict" {
			t.Errorf("predict path = %q, want /predict", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		// The historical point keys are part of the model contract.
		if !json.Valid(raw) || !containsKey(raw, "2 metre temperature") {
			t.Errorf("request body missing model parameter keys: %s", raw)
		}
		w.Write([]byte(`{"success": true, "predictions": {"temperature": {"value": 19.4}, "humidity": {"value": 57.2}}}`))
	}))
	defer server.Close()

	client := newTestModelClient(t, server.URL)

	pred, err := client.Predict(context.Background(), &PredictRequest{
		CurrentWeather: ModelCurrentWeather{Temperature: 18.5, Humidity: 62, WindSpeed: 14.4},
		HistoricalData: []ModelHistoricalPoint{
			{Timestamp: "2026-03-01T11:00:00Z", Temperature: 17.9, Humidity: 65, WindSpeed: 12.1},
		},
	})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}

	if pred.Temperature != 19.4 {
		t.Errorf("Temperature = %v, want 19.4", pred.Temperature)
	}
	if pred.Humidity != 57.2 {
		t.Errorf("Humidity = %v, want 57.2", pred.Humidity)
	}
	if gotBody.CurrentWeather.Temperature != 18.5 {
		t.Errorf("request current temperature = %v, want 18.5", gotBody.CurrentWeather.Temperature)
	}
}

func containsKey(raw []byte, key string) bool {
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return false
	}
	hist, ok := decoded["historical_data"].([]any)
	if !ok || len(hist) == 0 {
		return false
	}
	point, ok := hist[0].(map[string]any)
	if !ok {
		return false
	}
	_, found := point[key]
	return found
}

func TestModelHTTPClient_Predict_UnsuccessfulResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false}`))
	}))
	defer server.Close()

	client := newTestModelClient(t, server.URL)

	_, err := client.Predict(context.Background(), &PredictRequest{})
	if err == nil {
		t.Fatal("expected error for success=false response")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeUpstreamModel {
		t.Errorf("error code = %s, want %s", appErr.Code, types.ErrCodeUpstreamModel)
	}
}

func TestModelHTTPClient_Predict_MissingValues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "predictions": {"temperature": {"value": 19.4}}}`))
	}))
	defer server.Close()

	client := newTestModelClient(t, server.URL)

	_, err := client.Predict(context.Background(), &PredictRequest{})
	if err == nil {
		t.Fatal("expected error for incomplete predictions")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeUpstreamModel {
		t.Errorf("error code = %s, want %s", appErr.Code, types.ErrCodeUpstreamModel)
	}
}

func TestModelHTTPClient_Predict_Unreachable(t *testing.T) {
	client := newTestModelClient(t, "http://127.0.0.1:1")

	_, err := client.Predict(context.Background(), &PredictRequest{})
	if err == nil {
		t.Fatal("expected error for unreachable model service")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeUpstreamModel {
		t.Errorf("error code = %s, want %s", appErr.Code, types.ErrCodeUpstreamModel)
	}
}
