package models

// Record is an arbitrarily deep JSON object.
type Record = map[string]any

// CloneValue deep-copies JSON-shaped values (maps, slices, scalars).
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = CloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = CloneValue(val)
		}
		return out
	default:
		return v
	}
}

// CloneRecord deep-copies r; nil stays nil.
func CloneRecord(r Record) Record {
	if r == nil {
		return nil
	}
	return CloneValue(r).(map[string]any)
}
