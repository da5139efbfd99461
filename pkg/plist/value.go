// Package plist converts property lists into a small tagged value type at
// the edge of the program. Nothing past the boundary handles untyped data.
package plist

import (
	"fmt"
	"sort"
	"time"

	howett "howett.net/plist"
)

type Kind int

const (
	Invalid Kind = iota
	String
	Integer
	Real
	Boolean
	Date
	Data
	Dict
	Array
)

var kindNames = map[Kind]string{
	Invalid: "invalid",
	String:  "string",
	Integer: "integer",
	Real:    "real",
	Boolean: "boolean",
	Date:    "date",
	Data:    "data",
	Dict:    "dict",
	Array:   "array",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is one property list node.
type Value struct {
	kind Kind
	str  string
	num  int64
	real float64
	b    bool
	date time.Time
	data []byte
	dict map[string]Value
	arr  []Value
}

func NewString(s string) Value         { return Value{kind: String, str: s} }
func NewInteger(n int64) Value         { return Value{kind: Integer, num: n} }
func NewReal(f float64) Value          { return Value{kind: Real, real: f} }
func NewBool(b bool) Value             { return Value{kind: Boolean, b: b} }
func NewDate(t time.Time) Value        { return Value{kind: Date, date: t} }
func NewData(b []byte) Value           { return Value{kind: Data, data: b} }
func NewDict(m map[string]Value) Value { return Value{kind: Dict, dict: m} }
func NewArray(vs ...Value) Value       { return Value{kind: Array, arr: vs} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) Text() (string, bool)          { return v.str, v.kind == String }
func (v Value) Int() (int64, bool)            { return v.num, v.kind == Integer }
func (v Value) Float() (float64, bool)        { return v.real, v.kind == Real }
func (v Value) Bool() (bool, bool)            { return v.b, v.kind == Boolean }
func (v Value) Time() (time.Time, bool)       { return v.date, v.kind == Date }
func (v Value) Bytes() ([]byte, bool)         { return v.data, v.kind == Data }
func (v Value) Items() ([]Value, bool)        { return v.arr, v.kind == Array }
func (v Value) Map() (map[string]Value, bool) { return v.dict, v.kind == Dict }

// Get looks up key in a dict value.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != Dict {
		return Value{}, false
	}
	child, ok := v.dict[key]
	return child, ok
}

// GetString looks up a string-valued key in a dict value.
func (v Value) GetString(key string) (string, bool) {
	child, ok := v.Get(key)
	if !ok {
		return "", false
	}
	return child.Text()
}

// Keys returns the keys of a dict value in sorted order.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.dict))
	for k := range v.dict {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal compares two values structurally.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case String:
		return v.str == o.str
	case Integer:
		return v.num == o.num
	case Real:
		return v.real == o.real
	case Boolean:
		return v.b == o.b
	case Date:
		return v.date.Equal(o.date)
	case Data:
		return string(v.data) == string(o.data)
	case Array:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case Dict:
		if len(v.dict) != len(o.dict) {
			return false
		}
		for k, a := range v.dict {
			b, ok := o.dict[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	}
	return true
}

// Format identifies a property list encoding.
type Format int

const (
	XMLFormat    = Format(howett.XMLFormat)
	BinaryFormat = Format(howett.BinaryFormat)
)

// Decode parses an XML, binary or OpenStep property list.
func Decode(data []byte) (Value, Format, error) {
	var raw interface{}
	format, err := howett.Unmarshal(data, &raw)
	if err != nil {
		return Value{}, 0, fmt.Errorf("decoding property list: %w", err)
	}
	v, err := FromNative(raw)
	return v, Format(format), err
}

// Encode serialises v in the given format.
func Encode(v Value, format Format) ([]byte, error) {
	if v.kind == Invalid {
		return nil, fmt.Errorf("encoding property list: invalid value")
	}
	data, err := howett.Marshal(v.Native(), int(format))
	if err != nil {
		return nil, fmt.Errorf("encoding property list: %w", err)
	}
	return data, nil
}

// FromNative converts the output of plist.Unmarshal into a Value.
func FromNative(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case string:
		return NewString(t), nil
	case bool:
		return NewBool(t), nil
	case int:
		return NewInteger(int64(t)), nil
	case int64:
		return NewInteger(t), nil
	case uint64:
		return NewInteger(int64(t)), nil
	case float32:
		return NewReal(float64(t)), nil
	case float64:
		return NewReal(t), nil
	case time.Time:
		return NewDate(t), nil
	case []byte:
		return NewData(t), nil
	case []interface{}:
		arr := make([]Value, len(t))
		for i, item := range t {
			v, err := FromNative(item)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = v
		}
		return NewArray(arr...), nil
	case map[string]interface{}:
		dict := make(map[string]Value, len(t))
		for k, item := range t {
			v, err := FromNative(item)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", k, err)
			}
			dict[k] = v
		}
		return NewDict(dict), nil
	}
	return Value{}, fmt.Errorf("unsupported property list type %T", raw)
}

// Native converts v into the types plist.Marshal understands.
func (v Value) Native() interface{} {
	switch v.kind {
	case String:
		return v.str
	case Integer:
		return v.num
	case Real:
		return v.real
	case Boolean:
		return v.b
	case Date:
		return v.date
	case Data:
		return v.data
	case Array:
		out := make([]interface{}, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Native()
		}
		return out
	case Dict:
		out := make(map[string]interface{}, len(v.dict))
		for k, item := range v.dict {
			out[k] = item.Native()
		}
		return out
	}
	return nil
}
