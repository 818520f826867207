// Package timestamp parses the date/time values accepted in configuration.
//
// Only unambiguous forms are accepted:
//
//   - "now" (the reference time passed by the caller)
//   - RFC 3339, e.g. 2024-05-01T09:00:00Z or 2024-05-01T09:00:00+02:00
//   - 2024-05-01T09:00:00 and 2024-05-01 09:00:00 (local time)
//   - 2024-05-01 (local midnight)
//
// Locale dependent forms such as 05/01/2024 are rejected instead of guessed.
package timestamp

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/venkytv/calendar-converter/internal/apperr"
)

// Now is the keyword resolving to the reference time.
const Now = "now"

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse parses value relative to now. Zone-less values are interpreted in
// now's location.
func Parse(value string, now time.Time) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, &apperr.ParseError{Format: "timestamp", Input: value, Err: fmt.Errorf("empty value")}
	}

	if strings.EqualFold(v, Now) {
		return now, nil
	}

	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}

	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, v, now.Location()); err == nil {
			return t, nil
		}
	}

	return time.Time{}, &apperr.ParseError{
		Format: "timestamp",
		Input:  value,
		Err:    fmt.Errorf("unsupported format, expected %q, RFC 3339 or YYYY-MM-DD[THH:MM:SS]", Now),
	}
}

// Value is a timestamp that can be decoded from YAML. Unquoted YAML
// timestamps and quoted strings are both parsed with Parse, relative to
// the wall clock at decode time.
type Value struct {
	time.Time
	// Raw is the configured text, kept for logging.
	Raw string
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return &apperr.ParseError{Format: "timestamp", Err: fmt.Errorf("expected a scalar value at line %d", node.Line)}
	}
	t, err := Parse(node.Value, time.Now())
	if err != nil {
		return err
	}
	v.Time = t
	v.Raw = node.Value
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (interface{}, error) {
	if v.Raw != "" {
		return v.Raw, nil
	}
	return v.Time.Format(time.RFC3339), nil
}
