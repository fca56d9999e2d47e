// Package jsonx decodes loosely typed bus payloads into structs.
package jsonx

import "encoding/json"

// Decode converts src into dst. src may be raw JSON ([]byte or string), a
// value of the destination type, or a generic map/slice as produced by
// json.Unmarshal into any.
func Decode[T any](src any, dst *T) error {
	switch v := src.(type) {
	case T:
		*dst = v
		return nil
	case *T:
		if v != nil {
			*dst = *v
		}
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}
