package valuation

// #region imports
import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// #endregion

// #region coerce

// Coerce decodes raw backend text into a Draft, field by field, falling back to
// the seed for anything missing or malformed. Text that is not a single JSON
// object yields a copy of the seed unchanged.
func Coerce(raw string, seed Draft) Draft {
	parsed, ok := DecodeObject(raw)
	if !ok {
		return seed.Clone()
	}

	out := Draft{}

	if v, ok := parsed["conclusion"]; ok && v != nil {
		out["conclusion"] = v
	} else {
		out["conclusion"] = seed["conclusion"]
	}

	if f, ok := asFloat(parsed["implied_multiple"]); ok {
		out["implied_multiple"] = f
	} else {
		out["implied_multiple"] = seed["implied_multiple"]
	}

	if lo, hi, ok := asPair(parsed["range"]); ok {
		out["range"] = []any{lo, hi}
	} else {
		out["range"] = cloneValue(seed["range"])
	}

	if v, ok := parsed["reasoning"].(string); ok {
		out["reasoning"] = v
	} else {
		out["reasoning"] = seed["reasoning"]
	}

	if v, ok := asList(parsed["comps_used"]); ok {
		out["comps_used"] = v
	} else {
		out["comps_used"] = cloneValue(seed["comps_used"])
	}

	if v, ok := asList(parsed["risk_flags"]); ok {
		out["risk_flags"] = v
	} else {
		out["risk_flags"] = cloneValue(seed["risk_flags"])
	}

	if c, ok := asFloat(parsed["confidence"]); ok {
		out["confidence"] = c
	} else {
		out["confidence"] = seed["confidence"]
	}

	return out
}

// #endregion

// #region decode-object

// DecodeObject parses text as exactly one JSON object. Markdown code fences
// around the object are tolerated.
func DecodeObject(raw string) (map[string]any, bool) {
	text := StripFences(raw)
	if text == "" {
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(text))
	var parsed map[string]any
	if err := dec.Decode(&parsed); err != nil || parsed == nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return parsed, true
}

// StripFences trims whitespace and a surrounding markdown code fence.
func StripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		// drop the language tag line ("json")
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// #endregion

// #region conversions

// asFloat converts numbers and numeric strings. Booleans, NaN and Inf are rejected.
func asFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
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

// asList accepts any slice or array and returns its elements as []any.
func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case []any:
		return cloneValue(t).([]any), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		// []byte is text, not a list
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// asPair decodes a two-element numeric sequence.
func asPair(v any) (float64, float64, bool) {
	items, ok := asList(v)
	if !ok || len(items) != 2 {
		return 0, 0, false
	}
	lo, ok := asFloat(items[0])
	if !ok {
		return 0, 0, false
	}
	hi, ok := asFloat(items[1])
	if !ok {
		return 0, 0, false
	}
	return lo, hi, true
}

// ConfidenceOf extracts a draft's confidence, reporting whether it is numeric.
func ConfidenceOf(d Draft) (float64, bool) {
	if d == nil {
		return 0, false
	}
	return asFloat(d["confidence"])
}

// CompsCount returns the number of comps_used entries in a draft.
func CompsCount(d Draft) int {
	items, ok := asList(d["comps_used"])
	if !ok {
		return 0
	}
	return len(items)
}

// #endregion
