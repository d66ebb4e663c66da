package weather

import (
	"time"

	"skycast/internal/types"
)

// Synthesized default reading, used when a location has no stored history at
// all. Deliberately moderate values: plausible anywhere, alarming nowhere.
const (
	defaultTempC     = 15.0
	defaultHumidity  = 60.0
	defaultWindKph   = 10.0
	defaultSynthText = "Partly cloudy"
)

// forecastConditions is the fixed vocabulary for synthesized forecast days.
var forecastConditions = []string{"Sunny", "Partly cloudy", "Cloudy", "Light rain", "Rain"}

// synthesizer fabricates plausible weather data for the degraded path: a
// default current reading when history is empty, ambient extras (pressure,
// visibility, UV) that stored observations do not carry, and a forward
// forecast series anchored on the current reading.
type synthesizer struct {
	rand  *jitter
	clock types.Clock
}

func newSynthesizer(rand *jitter, clock types.Clock) *synthesizer {
	return &synthesizer{rand: rand, clock: clock}
}

// defaultObservation returns the moderate fallback reading for a location
// with no history.
func (s *synthesizer) defaultObservation(locationID string) types.Observation {
	return types.Observation{
		LocationID:   locationID,
		Timestamp:    s.clock.Now(),
		TemperatureC: defaultTempC,
		Humidity:     defaultHumidity,
		WindKph:      defaultWindKph,
		Condition:    defaultSynthText,
	}
}

// currentFromObservation builds served current conditions from a stored or
// synthesized observation. Pressure, visibility and UV are not stored, so
// they are drawn from unremarkable ranges.
func (s *synthesizer) currentFromObservation(obs types.Observation) types.CurrentConditions {
	return types.CurrentConditions{
		TempC:       obs.TemperatureC,
		Humidity:    obs.Humidity,
		WindKph:     obs.WindKph,
		Condition:   obs.Condition,
		PressureMb:  float64(s.rand.intBetween(1000, 1025)),
		VisKm:       float64(s.rand.intBetween(8, 20)),
		UV:          float64(s.rand.intBetween(1, 6)),
		LastUpdated: obs.Timestamp,
	}
}

// forecast fabricates a days-long series anchored on the given base reading,
// starting with today. Day temperature wanders ±5 degrees around the base,
// nights run 3 to 8 degrees cooler, humidity stays inside [30, 95].
func (s *synthesizer) forecast(baseTempC, baseHumidity float64, days int) []types.ForecastDay {
	today := s.clock.Now()
	series := make([]types.ForecastDay, 0, days)
	for i := 0; i < days; i++ {
		dayTemp := baseTempC + float64(s.rand.intBetween(-5, 5))
		nightTemp := dayTemp - float64(s.rand.intBetween(3, 8))
		humidity := types.ClampFloat(baseHumidity+float64(s.rand.intBetween(-15, 15)), baseHumidity, 30, 95)

		series = append(series, types.ForecastDay{
			Date:        today.AddDate(0, 0, i).Format("2006-01-02"),
			MaxTempC:    dayTemp,
			MinTempC:    nightTemp,
			AvgTempC:    (dayTemp + nightTemp) / 2,
			AvgHumidity: humidity,
			MaxWindKph:  float64(s.rand.intBetween(5, 30)),
			Condition:   s.rand.pick(forecastConditions),
		})
	}
	return series
}

// sanitizeObservation clamps every numeric field of an untrusted reading and
// substitutes the default condition for empty text. Idempotent.
func sanitizeObservation(obs types.Observation) types.Observation {
	obs.TemperatureC = types.ClampFloat(obs.TemperatureC, defaultTempC, types.MinTemperatureC, types.MaxTemperatureC)
	obs.Humidity = types.ClampFloat(obs.Humidity, defaultHumidity, types.MinHumidity, types.MaxHumidity)
	obs.WindKph = types.ClampFloat(obs.WindKph, defaultWindKph, types.MinWindKph, types.MaxWindKph)
	obs.Condition = types.NonEmpty(obs.Condition, types.DefaultCondition)
	return obs
}

// observationTimestamp converts a provider epoch to a UTC time, falling back
// to now for absent or unreasonable values.
func observationTimestamp(epoch int64, clock types.Clock) time.Time {
	if epoch <= 0 {
		return clock.Now()
	}
	ts := time.Unix(epoch, 0).UTC()
	// Guard against clocks far in the future from a misbehaving provider.
	if ts.After(clock.Now().Add(24 * time.Hour)) {
		return clock.Now()
	}
	return ts
}
