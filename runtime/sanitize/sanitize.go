// Package sanitize redacts policy-named fields from values before they reach
// a log sink or span attribute. Matching is by key name, case-insensitive,
// at any nesting depth.
package sanitize

import "strings"

// Mask replaces the value of every redacted field.
const Mask = "***"

// Redactor applies a redaction field set to arbitrary values.
type Redactor struct {
	fields map[string]struct{}
}

// DefaultFields is the redaction set used until a data policy overrides it.
var DefaultFields = []string{"ssn", "card_number", "dob", "email", "password", "token", "secret", "api_key"}

// New builds a redactor over the given field names. A nil or empty slice
// falls back to DefaultFields.
func New(fields []string) *Redactor {
	if len(fields) == 0 {
		fields = DefaultFields
	}
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[strings.ToLower(f)] = struct{}{}
	}
	return &Redactor{fields: set}
}

// Redacts reports whether the key names a redacted field.
func (r *Redactor) Redacts(key string) bool {
	_, ok := r.fields[strings.ToLower(key)]
	return ok
}

// Sanitize returns a copy of v with every redacted field's value replaced by
// Mask. Maps and slices are walked recursively; other values pass through
// unchanged. The input is never mutated.
func (r *Redactor) Sanitize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if r.Redacts(k) {
				out[k] = Mask
				continue
			}
			out[k] = r.Sanitize(val)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if r.Redacts(k) {
				out[k] = Mask
				continue
			}
			out[k] = val
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = r.Sanitize(val)
		}
		return out
	default:
		return v
	}
}
