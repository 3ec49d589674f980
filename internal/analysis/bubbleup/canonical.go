package bubbleup

import (
	"encoding/json"
	"fmt"
	"strconv"

	"obsnote/domain/sample"
)

// CanonicalValue serializes a document value into the key used for both
// cardinality counting and distribution counting. Strings are kept as-is,
// numbers use their shortest decimal form so 1 and "1" collide, and
// composite values become JSON with sorted object keys so deep-equal
// objects collide. The second result is false for null or missing values.
func CanonicalValue(v interface{}) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint:
		return strconv.FormatUint(uint64(t), 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
		return t.String(), true
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v), true
	}
	return string(data), true
}

// Flatten turns nested objects into a single level keyed by dot paths.
// Arrays and scalars are leaves. Keys that already contain dots are kept.
func Flatten(doc sample.Document) map[string]interface{} {
	out := make(map[string]interface{}, len(doc))
	flattenInto(out, "", map[string]interface{}(doc))
	return out
}

func flattenInto(out map[string]interface{}, prefix string, obj map[string]interface{}) {
	for k, v := range obj {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch nested := v.(type) {
		case map[string]interface{}:
			flattenInto(out, key, nested)
		case sample.Document:
			flattenInto(out, key, map[string]interface{}(nested))
		default:
			out[key] = v
		}
	}
}

// FlattenAll flattens every document once so per-field passes can share it
func FlattenAll(docs []sample.Document) []map[string]interface{} {
	flat := make([]map[string]interface{}, len(docs))
	for i, d := range docs {
		flat[i] = Flatten(d)
	}
	return flat
}
