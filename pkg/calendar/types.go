package calendar

import (
	"strings"
	"time"
)

// Source types known to DetectType.
const (
	TypeFile   = "file"
	TypeICal   = "ical"
	TypeCalDAV = "caldav"
)

// SourceConfig describes where an import document comes from
type SourceConfig struct {
	// Location is a file path or an http(s)/webcal URL.
	Location string `json:"location"`
	Username string `json:"username,omitempty"`
	Password string `json:"-"`
	// Timeout bounds a single remote fetch attempt. Zero selects the
	// source's default.
	Timeout time.Duration `json:"timeout,omitempty"`
	// Attempts overrides how often a remote fetch is tried. Zero keeps
	// the source's default.
	Attempts int `json:"attempts,omitempty"`
}

// DetectType infers the source type from a location: URLs are fetched over
// HTTP, anything else is a local file.
func DetectType(location string) string {
	l := strings.ToLower(strings.TrimSpace(location))
	switch {
	case strings.HasPrefix(l, "http://"),
		strings.HasPrefix(l, "https://"),
		strings.HasPrefix(l, "webcal://"):
		return TypeICal
	default:
		return TypeFile
	}
}

// HTTPURL rewrites webcal:// locations to https://.
func HTTPURL(location string) string {
	if len(location) >= len("webcal://") && strings.EqualFold(location[:len("webcal://")], "webcal://") {
		return "https://" + location[len("webcal://"):]
	}
	return location
}
