package wire

import "strings"

// Field is one header line.
type Field struct {
	Name  string
	Value string
}

// Header is an ordered header list. Lookups are case-insensitive, and the
// stored casing is what goes on the wire.
type Header []Field

func (h Header) Get(name string) string {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

func (h Header) Has(name string) bool {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

// Set replaces every field matching name with a single field carrying the
// new casing and value, in the position of the first match.
func (h *Header) Set(name, value string) {
	out := (*h)[:0]
	replaced := false
	for _, f := range *h {
		if strings.EqualFold(f.Name, name) {
			if !replaced {
				out = append(out, Field{Name: name, Value: value})
				replaced = true
			}
			continue
		}
		out = append(out, f)
	}
	if !replaced {
		out = append(out, Field{Name: name, Value: value})
	}
	*h = out
}

func (h *Header) Del(name string) {
	out := (*h)[:0]
	for _, f := range *h {
		if !strings.EqualFold(f.Name, name) {
			out = append(out, f)
		}
	}
	*h = out
}

func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	out := make(Header, len(h))
	copy(out, h)
	return out
}
