package query

import (
	"encoding/json"
	"fmt"
)

// Normalize converts data into the shapes gojq and CEL accept: maps with
// string keys, []any, float64 numbers. Structs and json.Marshalers (such as
// *schema.Workflow) are round-tripped through encoding/json.
func Normalize(v any) any {
	switch val := v.(type) {
	case nil, bool, string, float64:
		return v
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = Normalize(v)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v := range val {
			out[i] = Normalize(v)
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case int32:
		return float64(val)
	case float32:
		return float64(val)
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return string(b)
	}
	return out
}
