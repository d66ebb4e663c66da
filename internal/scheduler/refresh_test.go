package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"skycast/internal/types"
)

type mockResolver struct {
	mu        sync.Mutex
	locations []types.Location
	listErr   error
	failIDs   map[string]bool
	resolved  []string
}

func (m *mockResolver) Locations(_ context.Context) ([]types.Location, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.locations, nil
}

func (m *mockResolver) Resolve(_ context.Context, ref types.LocationRef) (*types.ResolvedWeather, error) {
	m.mu.Lock()
	m.resolved = append(m.resolved, ref.ID)
	m.mu.Unlock()

	if m.failIDs[ref.ID] {
		return nil, errors.New("provider unreachable")
	}
	return &types.ResolvedWeather{Source: types.SourceUpstream}, nil
}

func testRefresher(svc WeatherResolver, concurrency int) *Refresher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(svc, time.Minute, concurrency, logger)
}

func TestRunOnce_ResolvesAllLocations(t *testing.T) {
	svc := &mockResolver{
		locations: []types.Location{
			{ID: "loc_1", Name: "Paris"},
			{ID: "loc_2", Name: "London"},
			{ID: "loc_3", Name: "Berlin"},
		},
	}

	testRefresher(svc, 2).runOnce(context.Background())

	if len(svc.resolved) != 3 {
		t.Fatalf("resolved %d locations, want 3", len(svc.resolved))
	}
	seen := make(map[string]bool, len(svc.resolved))
	for _, id := range svc.resolved {
		seen[id] = true
	}
	for _, want := range []string{"loc_1", "loc_2", "loc_3"} {
		if !seen[want] {
			t.Errorf("location %s was not refreshed", want)
		}
	}
}

func TestRunOnce_FailuresDoNotAbortRun(t *testing.T) {
	svc := &mockResolver{
		locations: []types.Location{
			{ID: "loc_1", Name: "Paris"},
			{ID: "loc_2", Name: "London"},
		},
		failIDs: map[string]bool{"loc_1": true},
	}

	testRefresher(svc, 1).runOnce(context.Background())

	if len(svc.resolved) != 2 {
		t.Fatalf("resolved %d locations, want 2 despite a failure", len(svc.resolved))
	}
}

func TestRunOnce_ListFailure(t *testing.T) {
	svc := &mockResolver{listErr: errors.New("db down")}

	// Must not panic or resolve anything.
	testRefresher(svc, 1).runOnce(context.Background())

	if len(svc.resolved) != 0 {
		t.Fatalf("resolved %d locations, want 0", len(svc.resolved))
	}
}

func TestRunOnce_NoLocations(t *testing.T) {
	svc := &mockResolver{}

	testRefresher(svc, 4).runOnce(context.Background())

	if len(svc.resolved) != 0 {
		t.Fatalf("resolved %d locations, want 0", len(svc.resolved))
	}
}

func TestNew_ClampsConcurrency(t *testing.T) {
	r := New(&mockResolver{}, time.Minute, 0, nil)
	if r.concurrency != 1 {
		t.Errorf("concurrency = %d, want 1", r.concurrency)
	}
}
