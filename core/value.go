package core

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind discriminates the supported semantic value types
type Kind uint8

const (
	KindUnset Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindUnset:
		return "unset"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindOpaque:
		return "opaque"
	}
	return "invalid"
}

// Value is a tagged variant carried by events and store keys.
// Immutable after construction; opaque bytes are copied in and out so a
// Value can cross goroutines without aliasing handler-owned buffers.
// The opaque tag is a caller-declared stable string, so identity survives
// process restarts.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string // string payload, or opaque type tag
	blob []byte
}

// Unset is the zero Value, returned for absent store keys
var Unset = Value{}

// Bool wraps a boolean
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Int wraps a signed integer
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float wraps a float64
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// String wraps a string
func String(v string) Value { return Value{kind: KindString, s: v} }

// Opaque wraps an uninterpreted byte payload under a stable type tag.
// The engine never inspects the bytes
func Opaque(tag string, data []byte) Value {
	cp := make([]byte, len(data))
	copy(cp, data)
	return Value{kind: KindOpaque, s: tag, blob: cp}
}

// Kind returns the variant discriminator
func (v Value) Kind() Kind { return v.kind }

// IsUnset reports whether the value carries nothing
func (v Value) IsUnset() bool { return v.kind == KindUnset }

// AsBool returns the boolean payload; ok is false on kind mismatch
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the integer payload; ok is false on kind mismatch
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the float payload; ok is false on kind mismatch
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

// AsString returns the string payload; ok is false on kind mismatch
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsOpaque returns the type tag and a copy of the byte payload
func (v Value) AsOpaque() (string, []byte, bool) {
	if v.kind != KindOpaque {
		return "", nil, false
	}
	cp := make([]byte, len(v.blob))
	copy(cp, v.blob)
	return v.s, cp, true
}

// Equal reports deep equality across kind and payload
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindUnset:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindOpaque:
		return v.s == o.s && bytes.Equal(v.blob, o.blob)
	}
	return false
}

// String renders a compact human-readable form for logs
func (v Value) String() string {
	switch v.kind {
	case KindUnset:
		return "<unset>"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindOpaque:
		return fmt.Sprintf("opaque(%s, %d bytes)", v.s, len(v.blob))
	}
	return "<invalid>"
}

// jsonValue is the wire form used by the introspection surface
type jsonValue struct {
	Kind   string  `json:"kind"`
	Bool   bool    `json:"bool,omitempty"`
	Int    int64   `json:"int,omitempty"`
	Float  float64 `json:"float,omitempty"`
	String string  `json:"string,omitempty"`
	Tag    string  `json:"tag,omitempty"`
	Bytes  string  `json:"bytes,omitempty"` // base64
}

// MarshalJSON renders the tagged variant for the debug surface
func (v Value) MarshalJSON() ([]byte, error) {
	jv := jsonValue{Kind: v.kind.String()}
	switch v.kind {
	case KindBool:
		jv.Bool = v.b
	case KindInt:
		jv.Int = v.i
	case KindFloat:
		jv.Float = v.f
	case KindString:
		jv.String = v.s
	case KindOpaque:
		jv.Tag = v.s
		jv.Bytes = base64.StdEncoding.EncodeToString(v.blob)
	}
	return json.Marshal(jv)
}
