package ical

import (
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

// Event wraps a VEVENT. Properties the converter does not interpret are
// kept verbatim.
type Event struct {
	ev *ics.VEvent
}

// NewEvent returns an event with the given UID.
func NewEvent(uid string) *Event {
	return &Event{ev: ics.NewEvent(uid)}
}

// WrapEvent wraps an existing golang-ical event.
func WrapEvent(ev *ics.VEvent) *Event {
	return &Event{ev: ev}
}

// VEvent exposes the underlying golang-ical event.
func (e *Event) VEvent() *ics.VEvent {
	return e.ev
}

// UID returns the event's unique identifier.
func (e *Event) UID() string {
	return e.value(ics.ComponentPropertyUniqueId)
}

// Summary returns the event title.
func (e *Event) Summary() string {
	return e.value(ics.ComponentPropertySummary)
}

// Start returns DTSTART. ok is false when the property is missing or
// cannot be parsed.
func (e *Event) Start() (time.Time, bool) {
	dt, err := e.dateTime(ics.ComponentPropertyDtStart)
	if err != nil {
		return time.Time{}, false
	}
	return dt.Time, true
}

// End returns DTEND, or DTSTART plus DURATION. ok is false when neither
// can be determined.
func (e *Event) End() (time.Time, bool) {
	if e.ev.GetProperty(ics.ComponentPropertyDtEnd) != nil {
		dt, err := e.dateTime(ics.ComponentPropertyDtEnd)
		if err != nil {
			return time.Time{}, false
		}
		return dt.Time, true
	}

	start, ok := e.Start()
	if !ok {
		return time.Time{}, false
	}
	if p := e.ev.GetProperty(ics.ComponentPropertyDuration); p != nil {
		d, err := parseICalDuration(p.Value)
		if err != nil {
			return time.Time{}, false
		}
		return start.Add(d), true
	}
	return time.Time{}, false
}

// AllDay reports whether DTSTART is a date value.
func (e *Event) AllDay() bool {
	dt, err := e.dateTime(ics.ComponentPropertyDtStart)
	return err == nil && dt.AllDay
}

// RecurrenceID returns the RECURRENCE-ID of an override instance.
func (e *Event) RecurrenceID() (time.Time, bool) {
	dt, err := e.dateTime(ics.ComponentPropertyRecurrenceId)
	if err != nil {
		return time.Time{}, false
	}
	return dt.Time, true
}

// IsRecurring reports whether the event defines a recurrence set.
func (e *Event) IsRecurring() bool {
	return e.ev.GetProperty(ics.ComponentPropertyRrule) != nil ||
		e.ev.GetProperty(ics.ComponentPropertyRdate) != nil
}

// Location returns the raw LOCATION value, or "" when unset.
func (e *Event) Location() string {
	return e.value(ics.ComponentPropertyLocation)
}

// SetLocation replaces LOCATION.
func (e *Event) SetLocation(location string) {
	e.ev.SetLocation(location)
}

// Organizer returns the ORGANIZER value without a mailto: prefix, or ""
// when unset.
func (e *Event) Organizer() string {
	v := e.value(ics.ComponentPropertyOrganizer)
	if len(v) >= len("mailto:") && strings.EqualFold(v[:len("mailto:")], "mailto:") {
		return v[len("mailto:"):]
	}
	return v
}

// SetOrganizer replaces the whole ORGANIZER property, parameters included.
func (e *Event) SetOrganizer(organizer string) {
	value := organizer
	if strings.Contains(organizer, "@") && !strings.Contains(organizer, ":") {
		value = "mailto:" + organizer
	}
	e.ev.RemoveProperty(ics.ComponentPropertyOrganizer)
	e.ev.AddProperty(ics.ComponentPropertyOrganizer, value)
}

// Property returns the raw value of an arbitrary property.
func (e *Event) Property(name string) (string, bool) {
	p := e.ev.GetProperty(ics.ComponentProperty(strings.ToUpper(name)))
	if p == nil {
		return "", false
	}
	return p.Value, true
}

// Clone returns a deep copy of the event, nested alarms included.
func (e *Event) Clone() *Event {
	return &Event{ev: &ics.VEvent{ComponentBase: cloneComponentBase(e.ev.ComponentBase)}}
}

func (e *Event) value(prop ics.ComponentProperty) string {
	if p := e.ev.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

func (e *Event) dateTime(prop ics.ComponentProperty) (dateTime, error) {
	p := e.ev.GetProperty(prop)
	if p == nil {
		return dateTime{}, errMissingProperty(prop)
	}
	return parseDateTime(p.Value, p.ICalParameters)
}

// setDateTime writes t into prop using the form described by layout.
func (e *Event) setDateTime(prop ics.ComponentProperty, layout dateTime, t time.Time) {
	p := ics.IANAProperty{BaseProperty: ics.BaseProperty{
		IANAToken:      string(prop),
		Value:          layout.format(t),
		ICalParameters: map[string][]string{},
	}}
	if layout.AllDay {
		p.ICalParameters["VALUE"] = []string{"DATE"}
	}
	if layout.TZID != "" && !layout.UTC {
		p.ICalParameters["TZID"] = []string{layout.TZID}
	}

	for i := range e.ev.Properties {
		if e.ev.Properties[i].IANAToken == string(prop) {
			e.ev.Properties[i] = p
			return
		}
	}
	e.ev.Properties = append(e.ev.Properties, p)
}

type errMissingProperty ics.ComponentProperty

func (e errMissingProperty) Error() string {
	return "missing " + string(e)
}
