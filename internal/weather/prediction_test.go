package weather

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"skycast/internal/external"
	"skycast/internal/types"
)

// --- Mock Dependencies ---

// mockClock is a test clock that returns a fixed time.
type mockClock struct {
	now time.Time
}

func (c *mockClock) Now() time.Time { return c.now }

// mockPredictor implements external.ModelPredictor for testing.
type mockPredictor struct {
	healthy      bool
	prediction   *external.ModelPrediction
	predictErr   error
	gotRequest   *external.PredictRequest
	predictCalls int
}

func (m *mockPredictor) Healthy(_ context.Context) bool { return m.healthy }

func (m *mockPredictor) Predict(_ context.Context, req *external.PredictRequest) (*external.ModelPrediction, error) {
	m.predictCalls++
	m.gotRequest = req
	if m.predictErr != nil {
		return nil, m.predictErr
	}
	return m.prediction, nil
}

// mockPredictionStore implements PredictionStore for testing.
type mockPredictionStore struct {
	inserted  []types.Prediction
	insertErr error
	latest    *types.Prediction
	latestErr error
}

func (m *mockPredictionStore) Insert(_ context.Context, pred *types.Prediction) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, *pred)
	return nil
}

func (m *mockPredictionStore) Latest(_ context.Context, _ string) (*types.Prediction, error) {
	if m.latestErr != nil {
		return nil, m.latestErr
	}
	return m.latest, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testLocation() *types.Location {
	return &types.Location{
		ID:        "loc_1",
		Name:      "Paris",
		Latitude:  48.8566,
		Longitude: 2.3522,
		Country:   "France",
	}
}

func testObservation() types.Observation {
	return types.Observation{
		ID:           "obs_1",
		LocationID:   "loc_1",
		Timestamp:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		TemperatureC: 20.0,
		Humidity:     60.0,
		WindKph:      14.0,
		Condition:    "Partly cloudy",
	}
}

// --- HeuristicStrategy ---

// TestHeuristicStrategy_WithinBounds verifies the perturbation envelope:
// temperature within ±5%, humidity within ±10% and inside [0, 100].
func TestHeuristicStrategy_WithinBounds(t *testing.T) {
	strategy := newHeuristicStrategyWithRand(newSeededJitter(42))
	in := PredictionInput{Location: testLocation(), Current: testObservation()}

	for i := 0; i < 200; i++ {
		result, err := strategy.Predict(context.Background(), in)
		if err != nil {
			t.Fatalf("heuristic returned error: %v", err)
		}

		if result.Provenance != types.ProvenanceHeuristic {
			t.Fatalf("Provenance = %q, want %q", result.Provenance, types.ProvenanceHeuristic)
		}

		tempDelta := math.Abs(result.TemperatureC - in.Current.TemperatureC)
		if tempDelta > in.Current.TemperatureC*0.05+1e-9 {
			t.Errorf("temperature %v deviates more than 5%% from %v", result.TemperatureC, in.Current.TemperatureC)
		}

		humDelta := math.Abs(result.Humidity - in.Current.Humidity)
		if humDelta > in.Current.Humidity*0.10+1e-9 {
			t.Errorf("humidity %v deviates more than 10%% from %v", result.Humidity, in.Current.Humidity)
		}
		if result.Humidity < 0 || result.Humidity > 100 {
			t.Errorf("humidity %v outside [0, 100]", result.Humidity)
		}
	}
}

// TestHeuristicStrategy_HumidityClamped verifies a near-limit humidity never
// escapes the physical range after perturbation.
func TestHeuristicStrategy_HumidityClamped(t *testing.T) {
	strategy := newHeuristicStrategyWithRand(newSeededJitter(7))
	in := PredictionInput{Location: testLocation(), Current: testObservation()}
	in.Current.Humidity = 99.0

	for i := 0; i < 200; i++ {
		result, _ := strategy.Predict(context.Background(), in)
		if result.Humidity > 100 {
			t.Fatalf("humidity %v exceeds 100", result.Humidity)
		}
	}
}

// TestHeuristicStrategy_Deterministic verifies two seeded strategies produce
// identical sequences.
func TestHeuristicStrategy_Deterministic(t *testing.T) {
	a := newHeuristicStrategyWithRand(newSeededJitter(123))
	b := newHeuristicStrategyWithRand(newSeededJitter(123))
	in := PredictionInput{Location: testLocation(), Current: testObservation()}

	for i := 0; i < 20; i++ {
		ra, _ := a.Predict(context.Background(), in)
		rb, _ := b.Predict(context.Background(), in)
		if ra != rb {
			t.Fatalf("iteration %d diverged: %+v vs %+v", i, ra, rb)
		}
	}
}

// --- ModelStrategy ---

func TestModelStrategy_UnhealthyFailsFast(t *testing.T) {
	client := &mockPredictor{healthy: false}
	strategy := NewModelStrategy(client, testLogger())

	_, err := strategy.Predict(context.Background(), PredictionInput{
		Location: testLocation(),
		Current:  testObservation(),
	})
	if err == nil {
		t.Fatal("expected error for unhealthy model service")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeUpstreamModel {
		t.Errorf("error code = %s, want %s", appErr.Code, types.ErrCodeUpstreamModel)
	}
	if client.predictCalls != 0 {
		t.Errorf("Predict called %d times on unhealthy service, want 0", client.predictCalls)
	}
}

func TestModelStrategy_Success(t *testing.T) {
	client := &mockPredictor{
		healthy:    true,
		prediction: &external.ModelPrediction{Temperature: 21.3, Humidity: 55.0},
	}
	strategy := NewModelStrategy(client, testLogger())

	result, err := strategy.Predict(context.Background(), PredictionInput{
		Location: testLocation(),
		Current:  testObservation(),
	})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}

	if result.TemperatureC != 21.3 || result.Humidity != 55.0 {
		t.Errorf("result = %+v, want model values 21.3/55.0", result)
	}
	if result.Provenance != types.ProvenanceModel {
		t.Errorf("Provenance = %q, want %q", result.Provenance, types.ProvenanceModel)
	}
	if client.gotRequest.CurrentWeather.Temperature != 20.0 {
		t.Errorf("request temperature = %v, want 20.0", client.gotRequest.CurrentWeather.Temperature)
	}
}

// TestModelStrategy_ChronologicalHistory verifies newest-first store rows are
// reversed into the chronological order the model expects.
func TestModelStrategy_ChronologicalHistory(t *testing.T) {
	client := &mockPredictor{
		healthy:    true,
		prediction: &external.ModelPrediction{Temperature: 20, Humidity: 60},
	}
	strategy := NewModelStrategy(client, testLogger())

	newest := testObservation()
	older := testObservation()
	older.Timestamp = newest.Timestamp.Add(-1 * time.Hour)
	oldest := testObservation()
	oldest.Timestamp = newest.Timestamp.Add(-2 * time.Hour)

	_, err := strategy.Predict(context.Background(), PredictionInput{
		Location: testLocation(),
		Current:  newest,
		History:  []types.Observation{newest, older, oldest},
	})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}

	points := client.gotRequest.HistoricalData
	if len(points) != 3 {
		t.Fatalf("historical points = %d, want 3", len(points))
	}
	for i := 1; i < len(points); i++ {
		prev, _ := time.Parse(time.RFC3339, points[i-1].Timestamp)
		curr, _ := time.Parse(time.RFC3339, points[i].Timestamp)
		if !curr.After(prev) {
			t.Fatalf("historical points not chronological: %s then %s", points[i-1].Timestamp, points[i].Timestamp)
		}
	}
}

func TestModelStrategy_PropagatesPredictError(t *testing.T) {
	client := &mockPredictor{
		healthy:    true,
		predictErr: types.NewAppError(types.ErrCodeUpstreamModel, "model exploded", nil),
	}
	strategy := NewModelStrategy(client, testLogger())

	_, err := strategy.Predict(context.Background(), PredictionInput{
		Location: testLocation(),
		Current:  testObservation(),
	})
	if err == nil {
		t.Fatal("expected error from failing model call")
	}
}

// --- Engine ---

func newTestEngine(primary, fallback PredictionStrategy, store PredictionStore, clock types.Clock) *Engine {
	return NewEngine(primary, fallback, store, clock, testLogger())
}

func TestEngine_UsesModelWhenAvailable(t *testing.T) {
	client := &mockPredictor{
		healthy:    true,
		prediction: &external.ModelPrediction{Temperature: 22.2, Humidity: 48},
	}
	store := &mockPredictionStore{}
	clock := &mockClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	engine := newTestEngine(NewModelStrategy(client, testLogger()), newHeuristicStrategyWithRand(newSeededJitter(1)), store, clock)

	pred, err := engine.Predict(context.Background(), PredictionInput{
		Location: testLocation(),
		Current:  testObservation(),
	})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}

	if pred.Provenance != types.ProvenanceModel {
		t.Errorf("Provenance = %q, want %q", pred.Provenance, types.ProvenanceModel)
	}
	if pred.TemperatureC != 22.2 {
		t.Errorf("TemperatureC = %v, want 22.2", pred.TemperatureC)
	}
	if pred.Timestamp != clock.now {
		t.Errorf("Timestamp = %v, want clock time %v", pred.Timestamp, clock.now)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("predictions persisted = %d, want 1", len(store.inserted))
	}
	if store.inserted[0].LocationID != "loc_1" {
		t.Errorf("persisted LocationID = %q, want loc_1", store.inserted[0].LocationID)
	}
}

// TestEngine_FallsBackOnModelFailure verifies any model failure routes to the
// heuristic exactly once, and the heuristic prediction is still persisted.
func TestEngine_FallsBackOnModelFailure(t *testing.T) {
	client := &mockPredictor{healthy: false}
	store := &mockPredictionStore{}
	clock := &mockClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	engine := newTestEngine(NewModelStrategy(client, testLogger()), newHeuristicStrategyWithRand(newSeededJitter(1)), store, clock)

	pred, err := engine.Predict(context.Background(), PredictionInput{
		Location: testLocation(),
		Current:  testObservation(),
	})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}

	if pred.Provenance != types.ProvenanceHeuristic {
		t.Errorf("Provenance = %q, want %q", pred.Provenance, types.ProvenanceHeuristic)
	}
	if len(store.inserted) != 1 {
		t.Errorf("predictions persisted = %d, want 1", len(store.inserted))
	}
}

// TestEngine_PersistFailureIsSoft verifies a failed insert still returns the
// prediction, with the error alongside for the caller to log.
func TestEngine_PersistFailureIsSoft(t *testing.T) {
	client := &mockPredictor{healthy: true, prediction: &external.ModelPrediction{Temperature: 19, Humidity: 60}}
	store := &mockPredictionStore{insertErr: errors.New("db down")}
	clock := &mockClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	engine := newTestEngine(NewModelStrategy(client, testLogger()), newHeuristicStrategyWithRand(newSeededJitter(1)), store, clock)

	pred, err := engine.Predict(context.Background(), PredictionInput{
		Location: testLocation(),
		Current:  testObservation(),
	})
	if pred == nil {
		t.Fatal("prediction is nil on persist failure, want non-nil")
	}
	if err == nil {
		t.Fatal("expected persist error to be returned")
	}
}

// TestEngine_SanitizesStrategyOutput verifies implausible strategy output is
// clamped before persistence.
func TestEngine_SanitizesStrategyOutput(t *testing.T) {
	client := &mockPredictor{healthy: true, prediction: &external.ModelPrediction{Temperature: 500, Humidity: -20}}
	store := &mockPredictionStore{}
	clock := &mockClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	engine := newTestEngine(NewModelStrategy(client, testLogger()), newHeuristicStrategyWithRand(newSeededJitter(1)), store, clock)

	pred, err := engine.Predict(context.Background(), PredictionInput{
		Location: testLocation(),
		Current:  testObservation(),
	})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}

	if pred.TemperatureC != types.MaxTemperatureC {
		t.Errorf("TemperatureC = %v, want clamped to %v", pred.TemperatureC, types.MaxTemperatureC)
	}
	if pred.Humidity != types.MinHumidity {
		t.Errorf("Humidity = %v, want clamped to %v", pred.Humidity, types.MinHumidity)
	}
}
