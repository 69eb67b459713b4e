package chain

import (
	"bytes"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var errNotObject = errors.New("json value is not an object")

// Object is an insertion-ordered key-value map decoded from a JSON object.
// Nested objects are *Object, arrays are []any and numbers are json.Number.
type Object struct {
	keys   []string
	values map[string]any
}

func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// Set stores v under key. Overwriting keeps the key's original position.
func (o *Object) Set(key string, v any) {
	if o.values == nil {
		o.values = make(map[string]any)
	}
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return append([]string(nil), o.keys...)
}

func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Lookup walks a dotted field path through nested objects.
func (o *Object) Lookup(path ...string) (any, bool) {
	var cur any = o
	for _, p := range path {
		obj, ok := cur.(*Object)
		if !ok {
			return nil, false
		}
		cur, ok = obj.Get(p)
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Subset returns a new object holding only the named fields, in the given order.
func (o *Object) Subset(fields []string) *Object {
	out := NewObject()
	for _, f := range fields {
		if v, ok := o.Get(f); ok {
			out.Set(f, v)
		}
	}
	return out
}

func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal field %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o *Object) UnmarshalJSON(b []byte) error {
	parsed, err := ParseObject(b)
	if err != nil {
		return err
	}
	*o = *parsed
	return nil
}

// ParseObject decodes a JSON object while keeping key order.
func ParseObject(data []byte) (*Object, error) {
	if !json.Valid(data) {
		return nil, errors.New("invalid json")
	}
	iter := json.BorrowIterator(data)
	defer json.ReturnIterator(iter)

	if iter.WhatIsNext() != jsoniter.ObjectValue {
		return nil, errNotObject
	}
	obj := readObject(iter)
	if iter.Error != nil {
		return nil, iter.Error
	}
	return obj, nil
}

func readObject(iter *jsoniter.Iterator) *Object {
	obj := NewObject()
	iter.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
		obj.Set(key, readValue(it))
		return it.Error == nil
	})
	return obj
}

func readValue(iter *jsoniter.Iterator) any {
	switch iter.WhatIsNext() {
	case jsoniter.ObjectValue:
		return readObject(iter)
	case jsoniter.ArrayValue:
		arr := make([]any, 0)
		iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			arr = append(arr, readValue(it))
			return it.Error == nil
		})
		return arr
	case jsoniter.NumberValue:
		return iter.ReadNumber()
	default:
		return iter.Read()
	}
}
