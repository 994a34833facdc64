// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package record

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/goccy/go-json"
)

// Field is one extra key/value pair on a record.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Fields is an ordered set of extra fields. It encodes as a JSON object with
// keys in insertion order; an empty set encodes as {}.
type Fields []Field

// FieldsFromPairs converts producer arguments into Fields. Arguments may be
// Field values or alternating key/value pairs; a dangling value or a
// non-string key is kept under "!BADKEY" rather than dropped.
func FieldsFromPairs(args ...any) Fields {
	if len(args) == 0 {
		return nil
	}
	out := make(Fields, 0, len(args)/2+1)
	for i := 0; i < len(args); i++ {
		switch a := args[i].(type) {
		case Field:
			out = out.Set(a.Key, a.Value)
		case Fields:
			for _, f := range a {
				out = out.Set(f.Key, f.Value)
			}
		case string:
			if i+1 >= len(args) {
				out = append(out, Field{Key: "!BADKEY", Value: a})
				continue
			}
			out = out.Set(a, args[i+1])
			i++
		default:
			out = append(out, Field{Key: "!BADKEY", Value: a})
		}
	}
	return out
}

// FieldsFromMap converts a map. Map iteration order is random, so keys are
// appended in sorted order for stable output.
func FieldsFromMap(m map[string]any) Fields {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make(Fields, 0, len(m))
	for _, k := range keys {
		out = append(out, Field{Key: k, Value: m[k]})
	}
	return out
}

// Get returns the value for key.
func (fs Fields) Get(key string) (any, bool) {
	for _, f := range fs {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Set replaces the value for key in place, or appends it.
func (fs Fields) Set(key string, value any) Fields {
	for i := range fs {
		if fs[i].Key == key {
			fs[i].Value = value
			return fs
		}
	}
	return append(fs, Field{Key: key, Value: value})
}

// Map returns the fields as a plain map.
func (fs Fields) Map() map[string]any {
	m := make(map[string]any, len(fs))
	for _, f := range fs {
		m[f.Key] = f.Value
	}
	return m
}

// MarshalJSON implements json.Marshaler preserving insertion order.
func (fs Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fs {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("extra field %q: %w", f.Key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler. Key order of the input is kept.
func (fs *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		if tok == nil {
			*fs = nil
			return nil
		}
		return fmt.Errorf("extra fields: expected object, got %v", tok)
	}
	var out Fields
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return err
		}
		out = append(out, Field{Key: key, Value: v})
	}
	*fs = out
	return nil
}
