// Package convert provides type conversion utilities for open-ended parameter maps.
package convert

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ToFloat64 converts numeric values to float64.
// Strings are accepted only when they parse as a finite number.
func ToFloat64(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case int32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case uint32:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Key renders a parameter value as a stable bucket key.
func Key(v any) string {
	if f, ok := ToFloat64(v); ok {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}

// Normalize maps ints and json numbers onto float64 and trims strings, so
// parameter maps hold only float64 | string | bool.
func Normalize(v any) any {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case bool:
		return t
	}
	if f, ok := ToFloat64(v); ok {
		return f
	}
	return v
}
