package tree

import (
	"fmt"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Record is an ordered mapping from field name to Value. Fields keep their
// insertion order through copies and JSON round trips.
type Record struct {
	fields *orderedmap.OrderedMap[string, Value]
}

func NewRecord() *Record {
	return &Record{fields: orderedmap.New[string, Value]()}
}

// NewRecordFrom builds a record from alternating key/value pairs, converting
// values with FromAny. It panics on odd argument counts or unsupported
// values and is meant for literals in code and tests.
func NewRecordFrom(kv ...any) *Record {
	if len(kv)%2 != 0 {
		panic("tree: NewRecordFrom needs key/value pairs")
	}
	r := NewRecord()
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("tree: field name must be a string, got %T", kv[i]))
		}
		v, err := FromAny(kv[i+1])
		if err != nil {
			panic(err)
		}
		r.Set(key, v)
	}
	return r
}

// FromMap converts an unordered map. Keys are sorted to keep output stable.
func FromMap(m map[string]any) (*Record, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	r := NewRecord()
	for _, k := range keys {
		v, err := FromAny(m[k])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		r.Set(k, v)
	}
	return r, nil
}

func FromMaps(rows []map[string]any) ([]*Record, error) {
	out := make([]*Record, 0, len(rows))
	for i, row := range rows {
		r, err := FromMap(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (r *Record) init() {
	if r.fields == nil {
		r.fields = orderedmap.New[string, Value]()
	}
}

// Get returns the field value; missing fields come back undefined.
func (r *Record) Get(key string) Value {
	if r == nil || r.fields == nil {
		return Value{}
	}
	v, _ := r.fields.Get(key)
	return v
}

func (r *Record) Has(key string) bool {
	if r == nil || r.fields == nil {
		return false
	}
	_, ok := r.fields.Get(key)
	return ok
}

// Set stores a field. Existing fields keep their position.
func (r *Record) Set(key string, v Value) {
	r.init()
	r.fields.Set(key, v)
}

func (r *Record) Delete(key string) {
	if r.fields != nil {
		r.fields.Delete(key)
	}
}

func (r *Record) Len() int {
	if r == nil || r.fields == nil {
		return 0
	}
	return r.fields.Len()
}

// Keys returns the field names in order.
func (r *Record) Keys() []string {
	if r == nil || r.fields == nil {
		return nil
	}
	keys := make([]string, 0, r.fields.Len())
	for p := r.fields.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}

// Range calls fn for each field in order until fn returns false.
func (r *Record) Range(fn func(key string, v Value) bool) {
	if r == nil || r.fields == nil {
		return
	}
	for p := r.fields.Oldest(); p != nil; p = p.Next() {
		if !fn(p.Key, p.Value) {
			return
		}
	}
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := NewRecord()
	r.Range(func(k string, v Value) bool {
		out.Set(k, v.Clone())
		return true
	})
	return out
}

// Equal compares fields and values, including field order.
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == nil && o == nil
	}
	if r.Len() != o.Len() {
		return false
	}
	a, b := r.fields.Oldest(), o.fields.Oldest()
	for a != nil && b != nil {
		if a.Key != b.Key || !a.Value.Equal(b.Value) {
			return false
		}
		a, b = a.Next(), b.Next()
	}
	return a == nil && b == nil
}

// Children returns the records stored as a list under key.
func (r *Record) Children(key string) []*Record {
	v := r.Get(key)
	if v.Kind() != KindList {
		return nil
	}
	out := make([]*Record, 0, len(v.list))
	for _, item := range v.list {
		if item.Kind() == KindRecord {
			out = append(out, item.rec)
		}
	}
	return out
}

// ToMap converts the record back to plain Go values. Field order is lost.
func (r *Record) ToMap() map[string]any {
	out := make(map[string]any, r.Len())
	r.Range(func(k string, v Value) bool {
		out[k] = v.Interface()
		return true
	})
	return out
}

// Interface returns the plain Go form of the value.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		if v.isInt {
			return v.i
		}
		return v.f
	case KindString:
		return v.s
	case KindTime:
		return v.t
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindRecord:
		return v.rec.ToMap()
	default:
		return nil
	}
}

func (r *Record) MarshalJSON() ([]byte, error) {
	r.init()
	return r.fields.MarshalJSON()
}

func (r *Record) UnmarshalJSON(data []byte) error {
	r.init()
	return r.fields.UnmarshalJSON(data)
}

func (r *Record) String() string {
	b, err := r.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<record: %v>", err)
	}
	return string(b)
}
