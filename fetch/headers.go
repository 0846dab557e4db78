package fetch

import (
	"iter"
	"net/http"
	"slices"
	"strings"
)

type headerField struct {
	name  string
	value string
}

// Headers is an ordered multi-map of header fields. Lookups ignore case; the
// casing of the first append is kept for iteration. The zero value is ready
// to use and a nil *Headers reads as empty.
type Headers struct {
	fields []headerField
}

// NewHeaders returns an empty header set.
func NewHeaders() *Headers {
	return &Headers{}
}

// HeadersFromHTTP copies h in canonical key order.
func HeadersFromHTTP(h http.Header) *Headers {
	out := &Headers{}
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		for _, v := range h[k] {
			out.Append(k, v)
		}
	}
	return out
}

// Append adds a field, keeping existing fields with the same name.
func (h *Headers) Append(name, value string) {
	h.fields = append(h.fields, headerField{name: name, value: value})
}

// Set replaces every field named name with a single one at the position of
// the first.
func (h *Headers) Set(name, value string) {
	i := slices.IndexFunc(h.fields, func(f headerField) bool {
		return strings.EqualFold(f.name, name)
	})
	if i < 0 {
		h.Append(name, value)
		return
	}
	h.fields[i].value = value
	tail := slices.DeleteFunc(h.fields[i+1:], func(f headerField) bool {
		return strings.EqualFold(f.name, name)
	})
	h.fields = h.fields[:i+1+len(tail)]
}

// Get returns the values of name joined by ", ", or "" when absent.
func (h *Headers) Get(name string) string {
	return strings.Join(h.Values(name), ", ")
}

// Values returns every value of name in insertion order.
func (h *Headers) Values(name string) []string {
	if h == nil {
		return nil
	}
	var out []string
	for _, f := range h.fields {
		if strings.EqualFold(f.name, name) {
			out = append(out, f.value)
		}
	}
	return out
}

func (h *Headers) Has(name string) bool {
	if h == nil {
		return false
	}
	return slices.ContainsFunc(h.fields, func(f headerField) bool {
		return strings.EqualFold(f.name, name)
	})
}

func (h *Headers) Del(name string) {
	h.fields = slices.DeleteFunc(h.fields, func(f headerField) bool {
		return strings.EqualFold(f.name, name)
	})
}

func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.fields)
}

// All iterates over the fields in order, duplicates included.
func (h *Headers) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		if h == nil {
			return
		}
		for _, f := range h.fields {
			if !yield(f.name, f.value) {
				return
			}
		}
	}
}

func (h *Headers) Clone() *Headers {
	if h == nil {
		return &Headers{}
	}
	return &Headers{fields: slices.Clone(h.fields)}
}
