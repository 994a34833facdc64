// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

// Package masking redacts sensitive data from record payloads before they
// leave the producing goroutine.
//
// Mask walks a value recursively. Map entries whose key names a secret
// (password, token, api_key, ...) are replaced wholesale with Marker.
// Strings are scanned for bearer tokens, inline key=value secrets, email
// addresses, card numbers, SSNs and phone numbers. Every other scalar passes
// through untouched.
//
// Masking is idempotent: Mask(Mask(v)) equals Mask(v). Recursion stops at
// the configured depth; deeper containers are returned as Truncated.
package masking

import (
	"encoding"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"unicode"

	"github.com/goccy/go-json"

	"github.com/tomtom215/observa/internal/record"
)

// Marker replaces the value of every sensitive key.
const Marker = "***MASKED***"

// DefaultMaxDepth is the default recursion cap.
const DefaultMaxDepth = 10

// DefaultKeys are the sensitive key names matched by default. Keys are
// split into lower-case words on separators and camelCase boundaries. A key
// is sensitive when the words of a sensitive key appear in it consecutively,
// or when one of its words starts or ends with the sensitive key written as
// one word: "X-Api-Key", "apiKey", "accesstoken" and "sessionID" match,
// "classname" and "author" do not.
var DefaultKeys = []string{
	"password", "passwd", "pwd",
	"token",
	"api_key", "apikey", "access_key",
	"secret",
	"ssn",
	"credit_card", "card_number", "cvv",
	"authorization",
	"cookie",
	"session",
	"private_key",
}

// Truncated wraps a container found beyond the depth cap. Its content was
// not inspected.
type Truncated struct {
	Value any
}

// MarshalJSON flags the value in encoded records.
func (t Truncated) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"masking_depth_exceeded": true,
		"value":                  t.Value,
	})
}

// Masker redacts sensitive data. The zero value is not usable; use New.
// A Masker is immutable and safe for concurrent use.
type Masker struct {
	keys     []keyPattern
	maxDepth int
	rules    []rule
}

// Option configures a Masker.
type Option func(*Masker)

// WithKeys replaces the sensitive key set.
func WithKeys(keys ...string) Option {
	return func(m *Masker) {
		m.keys = compileKeys(keys)
	}
}

// WithExtraKeys adds keys to the sensitive key set.
func WithExtraKeys(keys ...string) Option {
	return func(m *Masker) {
		m.keys = append(m.keys, compileKeys(keys)...)
	}
}

// WithMaxDepth sets the recursion cap. Values below 1 are ignored.
func WithMaxDepth(depth int) Option {
	return func(m *Masker) {
		if depth > 0 {
			m.maxDepth = depth
		}
	}
}

// New creates a Masker with the default key set and pattern table.
func New(opts ...Option) *Masker {
	m := &Masker{
		keys:     compileKeys(DefaultKeys),
		maxDepth: DefaultMaxDepth,
		rules:    defaultRules(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var defaultMasker = New()

// Mask redacts v with the default Masker.
func Mask(v any) any {
	return defaultMasker.Mask(v)
}

// MaskString redacts s with the default Masker.
func MaskString(s string) string {
	return defaultMasker.MaskString(s)
}

// keyPattern is a sensitive key split into words.
type keyPattern struct {
	words  []string
	joined string
}

// keyWords lower-cases k and splits it on '-', '_', '.', spaces and camelCase
// boundaries: "X-Api-Key" gives [x api key], "APIKey" gives [api key].
func keyWords(k string) []string {
	runes := []rune(strings.TrimSpace(k))
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return strings.FieldsFunc(b.String(), func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || unicode.IsSpace(r)
	})
}

func compileKeys(keys []string) []keyPattern {
	out := make([]keyPattern, 0, len(keys))
	for _, k := range keys {
		if words := keyWords(k); len(words) > 0 {
			out = append(out, keyPattern{words: words, joined: strings.Join(words, "")})
		}
	}
	return out
}

func (p keyPattern) matches(words []string) bool {
	for i, w := range words {
		if strings.HasPrefix(w, p.joined) || strings.HasSuffix(w, p.joined) {
			return true
		}
		if len(p.words) > 1 && i+len(p.words) <= len(words) && slices.Equal(words[i:i+len(p.words)], p.words) {
			return true
		}
	}
	return false
}

// IsSensitiveKey reports whether values stored under key are redacted.
func (m *Masker) IsSensitiveKey(key string) bool {
	words := keyWords(key)
	for _, k := range m.keys {
		if k.matches(words) {
			return true
		}
	}
	return false
}

// Mask returns a structurally identical copy of v with sensitive leaves
// replaced. Inputs are never modified.
func (m *Masker) Mask(v any) any {
	return m.mask(v, 0)
}

// MaskFields masks record fields, keeping their order.
func (m *Masker) MaskFields(fs record.Fields) record.Fields {
	if fs == nil {
		return nil
	}
	return m.maskFields(fs, 0)
}

// MaskMap masks a string-keyed map.
func (m *Masker) MaskMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	return m.maskMap(in, 0)
}

func (m *Masker) mask(v any, depth int) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return m.MaskString(t)
	case Truncated:
		return t
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64, []byte:
		return v
	case record.Fields:
		if depth >= m.maxDepth {
			return Truncated{Value: v}
		}
		return m.maskFields(t, depth)
	case error:
		return m.MaskString(t.Error())
	case encoding.TextMarshaler:
		text, err := t.MarshalText()
		if err != nil {
			return m.MaskString(fmt.Sprintf("%+v", v))
		}
		return m.MaskString(string(text))
	case json.Marshaler:
		return m.maskJSON(v, depth)
	}

	if depth >= m.maxDepth && isContainer(v) {
		return Truncated{Value: v}
	}

	switch t := v.(type) {
	case map[string]any:
		return m.maskMap(t, depth)
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if m.IsSensitiveKey(k) {
				out[k] = Marker
			} else {
				out[k] = m.MaskString(val)
			}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = m.mask(e, depth+1)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = m.MaskString(s)
		}
		return out
	}

	return m.maskReflect(v, depth)
}

func (m *Masker) maskMap(in map[string]any, depth int) map[string]any {
	out := make(map[string]any, len(in))
	for k, val := range in {
		if m.IsSensitiveKey(k) {
			out[k] = Marker
			continue
		}
		out[k] = m.mask(val, depth+1)
	}
	return out
}

func (m *Masker) maskFields(fs record.Fields, depth int) record.Fields {
	out := make(record.Fields, len(fs))
	for i, f := range fs {
		if m.IsSensitiveKey(f.Key) {
			out[i] = record.Field{Key: f.Key, Value: Marker}
			continue
		}
		out[i] = record.Field{Key: f.Key, Value: m.mask(f.Value, depth+1)}
	}
	return out
}

// maskReflect handles maps with string-kind keys, slices or arrays of any
// element type, pointers and structs. Structs are masked as the JSON object
// they encode to, so only exported fields under their json names remain.
// Other kinds pass through.
func (m *Masker) maskReflect(v any, depth int) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			if m.IsSensitiveKey(k) {
				out[k] = Marker
				continue
			}
			out[k] = m.mask(iter.Value().Interface(), depth+1)
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return v
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = m.mask(rv.Index(i).Interface(), depth+1)
		}
		return out
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return v
		}
		return m.mask(rv.Elem().Interface(), depth+1)
	case reflect.Struct:
		return m.maskJSON(v, depth)
	default:
		return v
	}
}

// maskJSON masks v as its decoded JSON form. Values that fail to encode are
// masked as their %+v text.
func (m *Masker) maskJSON(v any, depth int) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return m.MaskString(fmt.Sprintf("%+v", v))
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return m.MaskString(string(raw))
	}
	return m.mask(decoded, depth)
}

func isContainer(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer:
		return true
	default:
		return false
	}
}
