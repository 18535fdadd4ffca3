package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind is the type tag of a Value.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindTime
	KindList
	KindRecord
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
	case KindTime:
		return "time"
	case KindList:
		return "list"
	case KindRecord:
		return "record"
	default:
		return "undefined"
	}
}

// Value is a tagged field value. The zero Value is undefined, which is
// distinct from an explicit null.
type Value struct {
	kind  Kind
	b     bool
	isInt bool
	i     int64
	f     float64
	s     string
	t     time.Time
	list  []Value
	rec   *Record
}

func Null() Value            { return Value{kind: KindNull} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Int(i int64) Value      { return Value{kind: KindNumber, isInt: true, i: i, f: float64(i)} }
func Float(f float64) Value  { return Value{kind: KindNumber, f: f} }
func String(s string) Value  { return Value{kind: KindString, s: s} }
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

func List(items ...Value) Value {
	return Value{kind: KindList, list: items}
}

func Object(r *Record) Value {
	if r == nil {
		return Null()
	}
	return Value{kind: KindRecord, rec: r}
}

func (v Value) Kind() Kind           { return v.kind }
func (v Value) IsDefined() bool      { return v.kind != KindUndefined }
func (v Value) Bool() bool           { return v.b }
func (v Value) Str() string          { return v.s }
func (v Value) TimeValue() time.Time { return v.t }
func (v Value) Record() *Record      { return v.rec }

// Int64 returns the number as an integer and whether it is integral.
func (v Value) Int64() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	if v.isInt {
		return v.i, true
	}
	if v.f == math.Trunc(v.f) && math.Abs(v.f) < 1<<63 {
		return int64(v.f), true
	}
	return 0, false
}

func (v Value) Float64() float64 {
	if v.isInt {
		return float64(v.i)
	}
	return v.f
}

// Items returns the elements of a list value.
func (v Value) Items() []Value {
	return v.list
}

// Equal is strict equality: same kind and same content. Numbers compare
// numerically, so Int(1) equals Float(1). A number never equals a string.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindUndefined, KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		if v.isInt && o.isInt {
			return v.i == o.i
		}
		return v.Float64() == o.Float64()
	case KindString:
		return v.s == o.s
	case KindTime:
		return v.t.Equal(o.t)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindRecord:
		return v.rec.Equal(o.rec)
	}
	return false
}

// Clone deep-copies lists and records; scalars are returned as is.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		items := make([]Value, len(v.list))
		for i, item := range v.list {
			items[i] = item.Clone()
		}
		return List(items...)
	case KindRecord:
		return Object(v.rec.Clone())
	default:
		return v
	}
}

// valueKey is the comparable form of a scalar Value used for id lookups.
type valueKey struct {
	kind Kind
	repr string
}

func (v Value) key() (valueKey, bool) {
	switch v.kind {
	case KindNull:
		return valueKey{kind: KindNull}, true
	case KindBool:
		return valueKey{kind: KindBool, repr: strconv.FormatBool(v.b)}, true
	case KindNumber:
		if i, ok := v.Int64(); ok {
			return valueKey{kind: KindNumber, repr: strconv.FormatInt(i, 10)}, true
		}
		return valueKey{kind: KindNumber, repr: strconv.FormatFloat(v.f, 'g', -1, 64)}, true
	case KindString:
		return valueKey{kind: KindString, repr: v.s}, true
	case KindTime:
		return valueKey{kind: KindTime, repr: strconv.FormatInt(v.t.UnixNano(), 10)}, true
	default:
		return valueKey{}, false
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		if v.isInt {
			return strconv.FormatInt(v.i, 10)
		}
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	default:
		b, err := v.MarshalJSON()
		if err != nil {
			return v.kind.String()
		}
		return string(b)
	}
}

// FromAny converts plain Go values (as produced by database/sql scans or
// encoding/json) into a Value. Map keys are sorted because Go maps carry no
// order.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case *Record:
		return Object(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return Int(int64(t)), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Float(float64(t)), nil
		}
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case json.Number:
		return parseNumber(string(t))
	case string:
		return String(t), nil
	case []byte:
		return String(string(t)), nil
	case time.Time:
		return Time(t), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return List(items...), nil
	case map[string]any:
		r, err := FromMap(t)
		if err != nil {
			return Value{}, err
		}
		return Object(r), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", x)
	}
}

func parseNumber(s string) (Value, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return Float(f), nil
}

// MarshalJSON encodes undefined as null and times as RFC 3339 strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindUndefined, KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		if v.isInt {
			return []byte(strconv.FormatInt(v.i, 10)), nil
		}
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	case KindTime:
		return json.Marshal(v.t)
	case KindList:
		items := v.list
		if items == nil {
			items = []Value{}
		}
		return json.Marshal(items)
	case KindRecord:
		return v.rec.MarshalJSON()
	}
	return nil, fmt.Errorf("cannot marshal value of kind %s", v.kind)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case 'n':
		*v = Null()
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		items := make([]Value, len(raw))
		for i, r := range raw {
			if err := items[i].UnmarshalJSON(r); err != nil {
				return err
			}
		}
		*v = List(items...)
	case '{':
		r := NewRecord()
		if err := r.UnmarshalJSON(data); err != nil {
			return err
		}
		*v = Object(r)
	default:
		n, err := parseNumber(string(data))
		if err != nil {
			return err
		}
		*v = n
	}
	return nil
}
