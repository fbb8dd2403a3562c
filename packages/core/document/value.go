package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxDepth is the deepest nesting ParseValue accepts.
const MaxDepth = 256

// ErrTooDeep is returned when a document nests deeper than MaxDepth.
var ErrTooDeep = errors.New("document nesting too deep")

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a field value of a test document. The set of implementations is
// closed: Null, Bool, Number, String, Sequence and *Mapping.
type Value interface {
	Kind() Kind
	json.Marshaler
	value()
}

type (
	Null     struct{}
	Bool     bool
	Number   json.Number
	String   string
	Sequence []Value
)

func (Null) Kind() Kind     { return KindNull }
func (Bool) Kind() Kind     { return KindBool }
func (Number) Kind() Kind   { return KindNumber }
func (String) Kind() Kind   { return KindString }
func (Sequence) Kind() Kind { return KindSequence }

func (Null) value()     {}
func (Bool) value()     {}
func (Number) value()   {}
func (String) value()   {}
func (Sequence) value() {}

func (v Null) MarshalJSON() ([]byte, error)     { return encode(v) }
func (v Bool) MarshalJSON() ([]byte, error)     { return encode(v) }
func (v Number) MarshalJSON() ([]byte, error)   { return encode(v) }
func (v String) MarshalJSON() ([]byte, error)   { return encode(v) }
func (v Sequence) MarshalJSON() ([]byte, error) { return encode(v) }

// Mapping is an object whose keys keep their document order.
type Mapping struct {
	keys   []string
	fields map[string]Value
}

func NewMapping() *Mapping {
	return &Mapping{fields: make(map[string]Value)}
}

func (*Mapping) Kind() Kind { return KindMapping }
func (*Mapping) value()     {}

func (m *Mapping) MarshalJSON() ([]byte, error) { return encode(m) }

// Set stores v under key. Replacing an existing key keeps its position.
func (m *Mapping) Set(key string, v Value) {
	if _, ok := m.fields[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.fields[key] = v
}

func (m *Mapping) Get(key string) (Value, bool) {
	v, ok := m.fields[key]
	return v, ok
}

func (m *Mapping) Keys() []string {
	keys := make([]string, len(m.keys))
	copy(keys, m.keys)
	return keys
}

func (m *Mapping) Len() int {
	return len(m.keys)
}

// ParseValue decodes JSON text into a Value, keeping object key order and
// the exact text of numbers.
func ParseValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec, 0)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder, depth int) (Value, error) {
	if depth > MaxDepth {
		return nil, ErrTooDeep
	}

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '{':
			m := NewMapping()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("invalid object key %v", keyTok)
				}
				v, err := decodeValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				m.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return m, nil
		case '[':
			seq := Sequence{}
			for dec.More() {
				v, err := decodeValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				seq = append(seq, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return seq, nil
		}
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func encode(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case Null:
		buf.WriteString("null")
	case Bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Number:
		if val == "" {
			buf.WriteString("0")
		} else {
			buf.WriteString(string(val))
		}
	case String:
		writeString(buf, string(val))
	case Sequence:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case *Mapping:
		buf.WriteByte('{')
		for i, key := range val.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, key)
			buf.WriteByte(':')
			if err := writeValue(buf, val.fields[key]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case nil:
		buf.WriteString("null")
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) {
	var sb bytes.Buffer
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s) // strings always encode
	buf.WriteString(strings.TrimSuffix(sb.String(), "\n"))
}

// Rewrite returns a copy of v with every string replaced by fn's result.
// Keys are left untouched; numbers, booleans and nulls pass through.
func Rewrite(v Value, fn func(s String) String) Value {
	switch val := v.(type) {
	case String:
		return fn(val)
	case Sequence:
		out := make(Sequence, len(val))
		for i, item := range val {
			out[i] = Rewrite(item, fn)
		}
		return out
	case *Mapping:
		out := NewMapping()
		for _, key := range val.keys {
			out.Set(key, Rewrite(val.fields[key], fn))
		}
		return out
	case Null, Bool, Number:
		return val
	default:
		return v
	}
}

// Walk calls fn for every string value reachable from v.
func Walk(v Value, fn func(s String)) {
	switch val := v.(type) {
	case String:
		fn(val)
	case Sequence:
		for _, item := range val {
			Walk(item, fn)
		}
	case *Mapping:
		for _, key := range val.keys {
			Walk(val.fields[key], fn)
		}
	case Null, Bool, Number:
	}
}
