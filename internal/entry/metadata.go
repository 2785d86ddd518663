package entry

// Metadata accessors tolerate both Go-constructed values and the generic
// shapes produced by encoding/json ([]any, map[string]any, float64).

// String returns m[key] as a string; ok is false when absent or not a
// string.
func String(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Strings returns m[key] as a string slice. Non-string elements are
// skipped.
func Strings(m map[string]any, key string) ([]string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, false
	}
	switch val := v.(type) {
	case []string:
		return val, true
	case []any:
		out := make([]string, 0, len(val))
		for _, elem := range val {
			if s, ok := elem.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	}
	return nil, false
}

// Floats returns m[key] as a string→float map. Non-numeric values are
// skipped.
func Floats(m map[string]any, key string) (map[string]float64, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, false
	}
	switch val := v.(type) {
	case map[string]float64:
		return val, true
	case map[string]any:
		out := make(map[string]float64, len(val))
		for k, elem := range val {
			if f, ok := toFloat(elem); ok {
				out[k] = f
			}
		}
		return out, true
	}
	return nil, false
}

// Records returns m[key] as a list of objects. nil elements are kept as
// nil maps so callers can skip them.
func Records(m map[string]any, key string) ([]map[string]any, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, false
	}
	switch val := v.(type) {
	case []map[string]any:
		return val, true
	case []map[string]string:
		out := make([]map[string]any, len(val))
		for i, rec := range val {
			out[i] = make(map[string]any, len(rec))
			for k, s := range rec {
				out[i][k] = s
			}
		}
		return out, true
	case []any:
		out := make([]map[string]any, 0, len(val))
		for _, elem := range val {
			rec, _ := elem.(map[string]any)
			out = append(out, rec)
		}
		return out, true
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
