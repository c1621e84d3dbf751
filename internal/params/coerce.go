package params

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// toInt mirrors integer coercion of loosely typed JSON: integral values pass,
// fractional numbers truncate toward zero, strings must hold an integer.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil && finite(f) {
			return int(f), true
		}
		return 0, false
	case float64:
		if !finite(n) {
			return 0, false
		}
		return int(n), true
	case float32:
		return toInt(float64(n))
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// toFloat parses numbers and numeric strings. Non-finite results are refused.
func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if !finite(f) {
		return 0, false
	}
	return f, true
}

// toSeed accepts only integral values: JSON integers, integral floats from
// decoders that lost the distinction, and signed integer strings.
func toSeed(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		if !finite(n) || n != math.Trunc(n) || math.Abs(n) > math.MaxInt64/2 {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
