package compat

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Spec is a component's free-form specification bag. Values arrive untyped
// (from JSON, YAML, or the catalog store) so every read goes through one of
// the typed accessors below instead of a direct type assertion.
type Spec map[string]any

// String returns the value at key when it is a non-empty string.
func (s Spec) String(key string) (string, bool) {
	v, ok := s[key].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Decimal returns the value at key as an exact decimal. Numbers of any Go
// numeric kind are accepted, as are strings with a numeric prefix such as
// "125W" or "128GB"; the unit suffix is dropped.
func (s Spec) Decimal(key string) (decimal.Decimal, bool) {
	switch v := s[key].(type) {
	case float64:
		return fromFloat(v)
	case float32:
		return fromFloat(float64(v))
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int32:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case uint:
		return decimal.NewFromInt(int64(v)), true
	case uint32:
		return decimal.NewFromInt(int64(v)), true
	case uint64:
		if v > math.MaxInt64 {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromInt(int64(v)), true
	case json.Number:
		return parseNumericPrefix(string(v))
	case string:
		return parseNumericPrefix(v)
	}
	return decimal.Decimal{}, false
}

// Positive is Decimal restricted to values greater than zero. A zero or
// negative rating carries no information and is treated as absent.
func (s Spec) Positive(key string) (decimal.Decimal, bool) {
	d, ok := s.Decimal(key)
	if !ok || !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	return d, true
}

// Bool returns the value at key when it is a boolean or the strings
// "true"/"false".
func (s Spec) Bool(key string) (bool, bool) {
	switch v := s[key].(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(v) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Decimal{}, false
	}
	return decimal.NewFromFloat(f), true
}

// parseNumericPrefix reads the leading number of s, e.g. 128 from "128GB".
func parseNumericPrefix(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	end := 0
	seenDot := false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			end = i + 1
		case r == '.' && !seenDot:
			seenDot = true
		case r == '-' && i == 0:
		default:
			return parseDecimal(s[:end])
		}
	}
	return parseDecimal(s[:end])
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	if s == "" || s == "-" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
