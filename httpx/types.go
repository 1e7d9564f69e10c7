package httpx

import (
	"strings"
)

// HeaderField is a single header line. Names keep the caller's case.
type HeaderField struct {
	Name  string
	Value string
}

// Header is an ordered list of header fields. Lookups are
// case-insensitive; iteration and the wire form preserve insertion order
// and case.
type Header []HeaderField

// Get returns the first value for key, or "".
func (h Header) Get(key string) string {
	for _, f := range h {
		if strings.EqualFold(f.Name, key) {
			return f.Value
		}
	}
	return ""
}

// Values returns every value for key in order.
func (h Header) Values(key string) []string {
	var vv []string
	for _, f := range h {
		if strings.EqualFold(f.Name, key) {
			vv = append(vv, f.Value)
		}
	}
	return vv
}

// Set replaces the first field named key and drops any later ones, or
// appends a new field.
func (h *Header) Set(key, value string) {
	out := (*h)[:0]
	found := false
	for _, f := range *h {
		if strings.EqualFold(f.Name, key) {
			if found {
				continue
			}
			found = true
			f.Value = value
		}
		out = append(out, f)
	}
	if !found {
		out = append(out, HeaderField{Name: key, Value: value})
	}
	*h = out
}

// Add appends a field.
func (h *Header) Add(key, value string) {
	*h = append(*h, HeaderField{Name: key, Value: value})
}

// Del removes every field named key.
func (h *Header) Del(key string) {
	out := (*h)[:0]
	for _, f := range *h {
		if !strings.EqualFold(f.Name, key) {
			out = append(out, f)
		}
	}
	*h = out
}

// Clone returns a copy of h that shares no storage with it.
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	return append(Header(nil), h...)
}
