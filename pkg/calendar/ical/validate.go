package ical

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
)

// Severity of a validation finding.
type Severity int

const (
	// Repaired problems were fixed in place.
	Repaired Severity = iota + 1
	// Warning problems are reported and left alone.
	Warning
	// Fatal problems make the document unusable.
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Repaired:
		return "repaired"
	case Warning:
		return "warning"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Problem is one validation finding.
type Problem struct {
	Severity Severity
	Message  string
	Node     string
}

func (p Problem) String() string {
	if p.Node == "" {
		return fmt.Sprintf("%s: %s", p.Severity, p.Message)
	}
	return fmt.Sprintf("%s: %s: %s", p.Severity, p.Node, p.Message)
}

// Validate checks the structure of d, repairs what can be repaired in
// place and returns the findings.
func Validate(d *Document) []Problem {
	return validate(d, time.Now)
}

func validate(d *Document, now func() time.Time) []Problem {
	var problems []Problem
	report := func(sev Severity, node, format string, args ...any) {
		problems = append(problems, Problem{Severity: sev, Node: node, Message: fmt.Sprintf(format, args...)})
	}

	if d.calendarProperty(string(ics.PropertyVersion)) == nil {
		d.cal.SetVersion("2.0")
		report(Repaired, "VCALENDAR", "missing VERSION, set to 2.0")
	}
	if d.calendarProperty(string(ics.PropertyProductId)) == nil {
		d.cal.SetProductId(ProductID)
		report(Repaired, "VCALENDAR", "missing PRODID, set to %s", ProductID)
	}

	events := d.Events()
	if len(events) == 0 {
		report(Warning, "VCALENDAR", "calendar contains no events")
	}

	seen := make(map[string]int)
	for i, e := range events {
		node := eventNode(i, e)

		if e.UID() == "" {
			uid := uuid.NewString()
			e.ev.SetProperty(ics.ComponentPropertyUniqueId, uid)
			report(Repaired, node, "missing UID, generated %s", uid)
			node = eventNode(i, e)
		}
		if e.ev.GetProperty(ics.ComponentPropertyDtstamp) == nil {
			e.ev.SetDtStampTime(now().UTC())
			report(Repaired, node, "missing DTSTAMP, set to current time")
		}

		start, startErr := e.dateTime(ics.ComponentPropertyDtStart)
		if startErr != nil {
			if p := e.ev.GetProperty(ics.ComponentPropertyDtStart); p != nil {
				report(Fatal, node, "invalid DTSTART %q: %v", p.Value, startErr)
			} else {
				report(Fatal, node, "missing DTSTART")
			}
			continue
		}

		for _, prop := range []ics.ComponentProperty{ics.ComponentPropertyDtStart, ics.ComponentPropertyDtEnd} {
			if p := e.ev.GetProperty(prop); p != nil {
				if tzid := firstParam(p.ICalParameters, "TZID"); tzid != "" {
					if _, err := resolveTZID(tzid); err != nil {
						report(Warning, node, "%s uses unknown TZID %q, reading it as UTC", prop, tzid)
					}
				}
			}
		}

		hasEnd := e.ev.GetProperty(ics.ComponentPropertyDtEnd) != nil
		hasDuration := e.ev.GetProperty(ics.ComponentPropertyDuration) != nil
		if hasEnd && hasDuration {
			report(Fatal, node, "DTEND and DURATION are mutually exclusive")
			continue
		}
		if hasEnd {
			end, err := e.dateTime(ics.ComponentPropertyDtEnd)
			switch {
			case err != nil:
				report(Warning, node, "invalid DTEND: %v", err)
			case end.Time.Before(start.Time):
				report(Warning, node, "DTEND is before DTSTART")
			}
		}
		if hasDuration {
			if _, err := parseICalDuration(e.value(ics.ComponentPropertyDuration)); err != nil {
				report(Warning, node, "invalid DURATION: %v", err)
			}
		}

		for _, p := range e.ev.GetProperties(ics.ComponentPropertyRrule) {
			if _, err := rrule.StrToROption(p.Value); err != nil {
				report(Warning, node, "invalid RRULE %q: %v", p.Value, err)
			}
		}
		if len(e.ev.GetProperties(ics.ComponentPropertyExrule)) > 0 {
			report(Warning, node, "EXRULE is not supported and will be ignored")
		}

		if e.ev.GetProperty(ics.ComponentPropertyRecurrenceId) == nil {
			if first, dup := seen[e.UID()]; dup {
				report(Warning, node, "duplicate UID, first used by event %d", first+1)
			} else {
				seen[e.UID()] = i
			}
		}
	}

	return problems
}

// HighestSeverity returns the most severe level among problems, or 0.
func HighestSeverity(problems []Problem) Severity {
	var highest Severity
	for _, p := range problems {
		if p.Severity > highest {
			highest = p.Severity
		}
	}
	return highest
}

func eventNode(i int, e *Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "VEVENT[%d]", i+1)
	if uid := e.UID(); uid != "" {
		fmt.Fprintf(&b, " %s", uid)
	}
	return b.String()
}
