package macro

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/abdul-hamid-achik/srt/packages/core/document"
)

// Render returns the text substituted for a macro value. Strings are used
// verbatim, numbers keep their JSON form and containers become compact JSON.
func Render(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.RawMessage:
		var buf bytes.Buffer
		if err := json.Compact(&buf, val); err != nil {
			return string(val)
		}
		return buf.String()
	case document.String:
		return string(val)
	case document.Value:
		data, err := val.MarshalJSON()
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// MarshalValue returns v as JSON text so it can land in a payload with its
// type intact.
func MarshalValue(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case json.Number:
		if _, err := val.Float64(); err != nil {
			return json.Marshal(val.String())
		}
		return []byte(val.String()), nil
	case json.RawMessage:
		if !json.Valid(val) {
			return nil, fmt.Errorf("invalid JSON value %q", string(val))
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, val); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case document.Value:
		return val.MarshalJSON()
	}
	return json.Marshal(v)
}
