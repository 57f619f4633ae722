package qc

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/shahcompbio/alhena-lite/internal/table"
)

// Field is one named value of a Record.
type Field struct {
	Name  string
	Value any
}

// Record is a flat, ordered set of fields. It encodes as a JSON object with
// keys in field order.
type Record []Field

// Get returns the value of the named field.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Sanitize returns a copy of rec without the fields whose value is a float
// NaN. Every other field keeps its value and type.
func Sanitize(rec Record) Record {
	out := make(Record, 0, len(rec))
	for _, f := range rec {
		if isNaN(f.Value) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func isNaN(v any) bool {
	switch x := v.(type) {
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	case table.Value:
		return x.IsNaN()
	}
	return false
}

// MarshalJSON encodes the record as an object, preserving field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		v := f.Value
		if tv, ok := v.(table.Value); ok {
			v = tv.Interface()
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
