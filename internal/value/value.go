// Package value implements the tagged dynamic value representation used
// throughout the data plane in place of opaque interface{} dictionaries.
package value

import (
	"fmt"
	"time"
)

// Kind identifies the concrete type carried by a Value.
type Kind uint8

const (
	// Null represents a SQL NULL.
	Null Kind = iota
	// Int represents a 64-bit signed integer.
	Int
	// Float represents a 64-bit floating point number.
	Float
	// Text represents a UTF-8 string.
	Text
	// Bytes represents an opaque byte slice (BYTEA/BLOB).
	Bytes
	// Timestamp represents a point in time.
	Timestamp
	// Bool represents a boolean.
	Bool
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Int:
		return "int"
	case Float:
		return "float"
	case Text:
		return "text"
	case Bytes:
		return "bytes"
	case Timestamp:
		return "timestamp"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is a tagged union carrying exactly one of the field values
// indicated by Kind. Only the field matching Kind is meaningful.
type Value struct {
	Kind      Kind
	IntVal    int64
	FloatVal  float64
	TextVal   string
	BytesVal  []byte
	TimeVal   time.Time
	BoolVal   bool
}

// NullValue returns a Value of Kind Null.
func NullValue() Value { return Value{Kind: Null} }

// IntValue wraps an int64.
func IntValue(v int64) Value { return Value{Kind: Int, IntVal: v} }

// FloatValue wraps a float64.
func FloatValue(v float64) Value { return Value{Kind: Float, FloatVal: v} }

// TextValue wraps a string.
func TextValue(v string) Value { return Value{Kind: Text, TextVal: v} }

// BytesValue wraps a byte slice.
func BytesValue(v []byte) Value { return Value{Kind: Bytes, BytesVal: v} }

// TimestampValue wraps a time.Time.
func TimestampValue(v time.Time) Value { return Value{Kind: Timestamp, TimeVal: v} }

// BoolValue wraps a bool.
func BoolValue(v bool) Value { return Value{Kind: Bool, BoolVal: v} }

// IsNull reports whether the value is Null.
func (v Value) IsNull() bool { return v.Kind == Null }

// AsInt returns the integer value and true if Kind is Int.
func (v Value) AsInt() (int64, bool) {
	if v.Kind != Int {
		return 0, false
	}
	return v.IntVal, true
}

// AsFloat returns the float value and true if Kind is Float.
func (v Value) AsFloat() (float64, bool) {
	if v.Kind != Float {
		return 0, false
	}
	return v.FloatVal, true
}

// AsText returns the text value and true if Kind is Text.
func (v Value) AsText() (string, bool) {
	if v.Kind != Text {
		return "", false
	}
	return v.TextVal, true
}

// AsBytes returns the byte value and true if Kind is Bytes.
func (v Value) AsBytes() ([]byte, bool) {
	if v.Kind != Bytes {
		return nil, false
	}
	return v.BytesVal, true
}

// AsTime returns the timestamp value and true if Kind is Timestamp.
func (v Value) AsTime() (time.Time, bool) {
	if v.Kind != Timestamp {
		return time.Time{}, false
	}
	return v.TimeVal, true
}

// AsBool returns the boolean value and true if Kind is Bool.
func (v Value) AsBool() (bool, bool) {
	if v.Kind != Bool {
		return false, false
	}
	return v.BoolVal, true
}

// Native returns the value boxed as the nearest native Go type, for callers
// that need to hand it to an API that wants interface{} (e.g. a driver).
func (v Value) Native() any {
	switch v.Kind {
	case Null:
		return nil
	case Int:
		return v.IntVal
	case Float:
		return v.FloatVal
	case Text:
		return v.TextVal
	case Bytes:
		return v.BytesVal
	case Timestamp:
		return v.TimeVal
	case Bool:
		return v.BoolVal
	default:
		return nil
	}
}

// String renders the value for logging/debugging.
func (v Value) String() string {
	if v.IsNull() {
		return "<null>"
	}
	return fmt.Sprintf("%v", v.Native())
}

// FromNative converts a native Go value into a tagged Value. Types outside
// the switch are stored as Text via fmt.Sprintf, which keeps the function
// total without panicking on unexpected driver types.
func FromNative(v any) Value {
	switch t := v.(type) {
	case nil:
		return NullValue()
	case int:
		return IntValue(int64(t))
	case int32:
		return IntValue(int64(t))
	case int64:
		return IntValue(t)
	case float32:
		return FloatValue(float64(t))
	case float64:
		return FloatValue(t)
	case string:
		return TextValue(t)
	case []byte:
		return BytesValue(t)
	case time.Time:
		return TimestampValue(t)
	case bool:
		return BoolValue(t)
	default:
		return TextValue(fmt.Sprintf("%v", t))
	}
}

// ParamList is an ordered list of query parameters.
type ParamList []Value

// Native converts the param list to a []any suitable for a driver call.
func (p ParamList) Native() []any {
	out := make([]any, len(p))
	for i, v := range p {
		out[i] = v.Native()
	}
	return out
}

// ParamsFromNative converts a []any parameter list into a ParamList.
func ParamsFromNative(args []any) ParamList {
	out := make(ParamList, len(args))
	for i, a := range args {
		out[i] = FromNative(a)
	}
	return out
}

// Column is a single named cell within a Row.
type Column struct {
	Name  string
	Value Value
}

// Row is an ordered map from column name to tagged value, preserving the
// column order returned by the underlying driver.
type Row []Column

// Get returns the value for the given column name and true if present.
func (r Row) Get(name string) (Value, bool) {
	for _, c := range r {
		if c.Name == name {
			return c.Value, true
		}
	}
	return Value{}, false
}

// Names returns the ordered column names of the row.
func (r Row) Names() []string {
	names := make([]string, len(r))
	for i, c := range r {
		names[i] = c.Name
	}
	return names
}
