package wizard

import (
	"strconv"
	"strings"
)

// FormState holds all values collected across wizard steps. It is pure
// storage: validation lives in step validators, and nothing is sent to the
// backend until the final submission.
type FormState struct {
	values map[string]interface{}
}

// NewFormState creates an empty form state.
func NewFormState() *FormState {
	return &FormState{values: make(map[string]interface{})}
}

// NewFormStateFrom creates a form state seeded with initial values.
func NewFormStateFrom(initial map[string]interface{}) *FormState {
	fs := NewFormState()
	for k, v := range initial {
		fs.values[k] = v
	}
	return fs
}

// Set stores a field value.
func (f *FormState) Set(field string, value interface{}) {
	f.values[field] = value
}

// Get returns a field value.
func (f *FormState) Get(field string) interface{} {
	return f.values[field]
}

// MergeSection merge-updates a nested section (e.g. the primary contact
// person) so that setting one sub-field does not clobber its siblings.
func (f *FormState) MergeSection(section string, fields map[string]interface{}) {
	existing, _ := f.values[section].(map[string]interface{})
	if existing == nil {
		existing = make(map[string]interface{})
		f.values[section] = existing
	}
	for k, v := range fields {
		existing[k] = v
	}
}

// Section returns a nested section, or an empty map when unset.
func (f *FormState) Section(section string) map[string]interface{} {
	if m, ok := f.values[section].(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

// Snapshot returns a copy of the collected values. Nested sections are
// copied one level deep.
func (f *FormState) Snapshot() map[string]interface{} {
	out := make(map[string]interface{}, len(f.values))
	for k, v := range f.values {
		if m, ok := v.(map[string]interface{}); ok {
			inner := make(map[string]interface{}, len(m))
			for ik, iv := range m {
				inner[ik] = iv
			}
			out[k] = inner
			continue
		}
		out[k] = v
	}
	return out
}

// String returns a field as a trimmed string.
func (f *FormState) String(field string) string {
	switch v := f.values[field].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return ""
	}
}

// Bool returns a field as a boolean; unset and non-bool values are false.
func (f *FormState) Bool(field string) bool {
	v, _ := f.values[field].(bool)
	return v
}

// Int parses a field as a base-10 integer, falling back to def when the
// field is absent or unparseable.
func (f *FormState) Int(field string, def int) int {
	switch v := f.values[field].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// Float parses a field as a base-10 float, falling back to def when the
// field is absent or unparseable.
func (f *FormState) Float(field string, def float64) float64 {
	switch v := f.values[field].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return n
		}
	}
	return def
}

// Strings returns a field holding a list of strings.
func (f *FormState) Strings(field string) []string {
	switch v := f.values[field].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
