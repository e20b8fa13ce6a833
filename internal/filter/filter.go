// Package filter implements the compact per-library restriction format used by
// plex.tv friend records, e.g. "contentRating=G%2CPG|label=kids%20only".
package filter

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
)

const (
	segmentSep = "|"
	valueSep   = "%2C"
	encSpace   = "%20"

	// KeyContentRating and KeyLabel are the two categories plex.tv accepts.
	KeyContentRating = "contentRating"
	KeyLabel         = "label"
)

// Filter maps a category to its ordered values. A nil Filter means "not
// specified"; an empty non-nil Filter means "no restrictions".
type Filter map[string][]string

// Decode parses the wire form. Input that does not consist entirely of
// key=value segments decodes to an empty, non-nil Filter.
func Decode(raw string) Filter {
	if raw == "" {
		return Filter{}
	}
	out := Filter{}
	for _, segment := range strings.Split(raw, segmentSep) {
		key, value, ok := strings.Cut(segment, "=")
		if !ok {
			return Filter{}
		}
		out[key] = strings.Split(strings.ReplaceAll(value, encSpace, " "), valueSep)
	}
	return out
}

// Encode renders the wire form with keys in sorted order.
func Encode(f Filter) string {
	if len(f) == 0 {
		return ""
	}
	segments := make([]string, 0, len(f))
	for _, key := range f.Keys() {
		values := make([]string, len(f[key]))
		for i, value := range f[key] {
			values[i] = strings.ReplaceAll(value, " ", encSpace)
		}
		segments = append(segments, key+"="+strings.Join(values, valueSep))
	}
	return strings.Join(segments, segmentSep)
}

// Keys returns the categories in sorted order.
func (f Filter) Keys() []string {
	keys := make([]string, 0, len(f))
	for key := range f {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// IsSet reports whether the filter was specified at all.
func (f Filter) IsSet() bool {
	return f != nil
}

// Clone returns an independent copy, preserving nil.
func (f Filter) Clone() Filter {
	if f == nil {
		return nil
	}
	out := make(Filter, len(f))
	for key, values := range f {
		out[key] = append([]string(nil), values...)
	}
	return out
}

// Equal compares two filters, treating nil and empty as distinct.
func (f Filter) Equal(other Filter) bool {
	if (f == nil) != (other == nil) || len(f) != len(other) {
		return false
	}
	for key, values := range f {
		otherValues, ok := other[key]
		if !ok || len(values) != len(otherValues) {
			return false
		}
		for i := range values {
			if values[i] != otherValues[i] {
				return false
			}
		}
	}
	return true
}

// String renders a short summary such as "{contentRating: [G PG], label: [kids]}".
func (f Filter) String() string {
	parts := make([]string, 0, len(f))
	for _, key := range f.Keys() {
		parts = append(parts, fmt.Sprintf("%s: %v", key, f[key]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Build assembles a filter from label and content rating selections. It returns
// nil when neither list is populated.
func Build(labels, ratings []string) Filter {
	if len(labels) == 0 && len(ratings) == 0 {
		return nil
	}
	out := Filter{}
	if len(labels) > 0 {
		out[KeyLabel] = append([]string(nil), labels...)
	}
	if len(ratings) > 0 {
		out[KeyContentRating] = append([]string(nil), ratings...)
	}
	return out
}

// MarshalJSON writes an object; an unspecified filter is written as {}.
func (f Filter) MarshalJSON() ([]byte, error) {
	if f == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string][]string(f))
}

// UnmarshalJSON accepts an object, null, or the encoded string form.
func (f *Filter) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("null")):
		*f = nil
		return nil
	case len(trimmed) > 0 && trimmed[0] == '"':
		var raw string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return fmt.Errorf("decode filter string: %w", err)
		}
		*f = Decode(raw)
		return nil
	}
	var m map[string][]string
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return fmt.Errorf("decode filter object: %w", err)
	}
	if m == nil {
		m = map[string][]string{}
	}
	*f = Filter(m)
	return nil
}
