package ical

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/venkytv/calendar-converter/internal/apperr"
)

const (
	layoutUTC   = "20060102T150405Z"
	layoutLocal = "20060102T150405"
	layoutDate  = "20060102"
)

// Parse reads an iCalendar document using the arran4/golang-ical library.
func Parse(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &apperr.IOError{Operation: "read calendar data", Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &apperr.ParseError{Format: "iCalendar", Err: fmt.Errorf("empty input")}
	}

	cal, err := ics.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return nil, &apperr.ParseError{Format: "iCalendar", Err: err}
	}

	return &Document{cal: cal}, nil
}

// Write serializes the document.
func Write(w io.Writer, d *Document) error {
	if d == nil || d.cal == nil {
		return fmt.Errorf("no calendar to write")
	}
	return d.cal.SerializeTo(w)
}

// dateTime is a parsed DTSTART/DTEND/RECURRENCE-ID style value together
// with the form it was written in, so derived values can be written back
// the same way.
type dateTime struct {
	Time   time.Time
	AllDay bool
	UTC    bool
	TZID   string
}

// parseDateTime parses a date or date-time property value, honouring the
// VALUE and TZID parameters. Floating values are read in time.Local and
// values with a TZID unknown to the tz database are read as UTC.
func parseDateTime(value string, params map[string][]string) (dateTime, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return dateTime{}, fmt.Errorf("empty time value")
	}

	dt := dateTime{TZID: firstParam(params, "TZID")}
	loc := time.Local
	if dt.TZID != "" {
		loc = time.UTC
		if resolved, err := resolveTZID(dt.TZID); err == nil {
			loc = resolved
		}
	}

	switch {
	case strings.EqualFold(firstParam(params, "VALUE"), "DATE") || (len(v) == len(layoutDate) && !strings.Contains(v, "T")):
		t, err := time.ParseInLocation(layoutDate, v, loc)
		if err != nil {
			return dateTime{}, err
		}
		dt.Time = t
		dt.AllDay = true
	case strings.HasSuffix(v, "Z"):
		t, err := time.Parse(layoutUTC, v)
		if err != nil {
			return dateTime{}, err
		}
		dt.Time = t
		dt.UTC = true
	default:
		t, err := time.ParseInLocation(layoutLocal, v, loc)
		if err != nil {
			return dateTime{}, err
		}
		dt.Time = t
	}

	return dt, nil
}

// format renders t in the same form as dt.
func (dt dateTime) format(t time.Time) string {
	switch {
	case dt.AllDay:
		return t.Format(layoutDate)
	case dt.UTC:
		return t.UTC().Format(layoutUTC)
	case dt.TZID != "":
		if loc, err := resolveTZID(dt.TZID); err == nil {
			return t.In(loc).Format(layoutLocal)
		}
		return t.Format(layoutLocal)
	default:
		return t.In(time.Local).Format(layoutLocal)
	}
}

// resolveTZID maps a TZID parameter to a location using the Go tz database.
// Some producers prefix the identifier with a slash.
func resolveTZID(tzid string) (*time.Location, error) {
	name := strings.TrimPrefix(strings.Trim(tzid, `"`), "/")
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown TZID %q: %w", tzid, err)
	}
	return loc, nil
}

func firstParam(params map[string][]string, key string) string {
	if params == nil {
		return ""
	}
	if vs, ok := params[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// parseICalDuration parses an RFC 5545 duration such as "PT15M", "-P1D" or
// "P1W". Days and weeks are nominal 24h units.
func parseICalDuration(duration string) (time.Duration, error) {
	d := strings.TrimSpace(duration)
	if d == "" {
		return 0, fmt.Errorf("empty duration")
	}

	negative := false
	switch d[0] {
	case '-':
		negative = true
		d = d[1:]
	case '+':
		d = d[1:]
	}

	if len(d) < 2 || d[0] != 'P' {
		return 0, fmt.Errorf("unsupported duration format: %s", duration)
	}
	d = d[1:]

	var result time.Duration
	inTime := false
	number := ""
	for _, r := range d {
		switch {
		case r >= '0' && r <= '9':
			number += string(r)
			continue
		case r == 'T':
			if inTime || number != "" {
				return 0, fmt.Errorf("unsupported duration format: %s", duration)
			}
			inTime = true
			continue
		}

		if number == "" {
			return 0, fmt.Errorf("unsupported duration format: %s", duration)
		}
		n, err := strconv.Atoi(number)
		if err != nil {
			return 0, fmt.Errorf("unsupported duration format: %s", duration)
		}
		number = ""

		var unit time.Duration
		switch {
		case r == 'W' && !inTime:
			unit = 7 * 24 * time.Hour
		case r == 'D' && !inTime:
			unit = 24 * time.Hour
		case r == 'H' && inTime:
			unit = time.Hour
		case r == 'M' && inTime:
			unit = time.Minute
		case r == 'S' && inTime:
			unit = time.Second
		default:
			return 0, fmt.Errorf("unsupported duration format: %s", duration)
		}
		result += time.Duration(n) * unit
	}

	if number != "" {
		return 0, fmt.Errorf("unsupported duration format: %s", duration)
	}

	if negative {
		result = -result
	}
	return result, nil
}
