package types

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ClampFloat normalizes a numeric value at a trust boundary: NaN and
// infinities collapse to def, everything else is clamped to [min, max].
// Pure and idempotent; never fails.
func ClampFloat(v, def, min, max float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ParseFloat coerces an untyped value (as produced by JSON decoding or CSV
// parsing) into a finite float64 clamped to [min, max]. Anything that does
// not parse to a finite number becomes def.
func ParseFloat(raw any, def, min, max float64) float64 {
	switch v := raw.(type) {
	case float64:
		return ClampFloat(v, def, min, max)
	case float32:
		return ClampFloat(float64(v), def, min, max)
	case int:
		return ClampFloat(float64(v), def, min, max)
	case int64:
		return ClampFloat(float64(v), def, min, max)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return def
		}
		return ClampFloat(f, def, min, max)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return def
		}
		return ClampFloat(f, def, min, max)
	default:
		return def
	}
}

// NonEmpty returns s trimmed of surrounding whitespace, or def when the
// trimmed string is empty. The textual analogue of ClampFloat.
func NonEmpty(s, def string) string {
	if t := strings.TrimSpace(s); t != "" {
		return t
	}
	return def
}
