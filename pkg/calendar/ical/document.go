package ical

import (
	ics "github.com/arran4/golang-ical"
)

// ProductID is written into documents created by this package.
const ProductID = "-//venkytv//calendar-converter//EN"

const propertyTimezoneName = "X-WR-TIMEZONE"

// Document is a parsed iCalendar document: an ordered list of events plus
// calendar level metadata such as VTIMEZONE definitions.
type Document struct {
	cal *ics.Calendar
}

// NewDocument returns an empty calendar carrying VERSION, PRODID and
// CALSCALE.
func NewDocument() *Document {
	cal := ics.NewCalendar()
	cal.SetProductId(ProductID)
	cal.SetCalscale("GREGORIAN")
	return &Document{cal: cal}
}

// Calendar exposes the underlying golang-ical calendar.
func (d *Document) Calendar() *ics.Calendar {
	return d.cal
}

// Events returns the document's events in native order.
func (d *Document) Events() []*Event {
	var events []*Event
	for _, c := range d.cal.Components {
		if ev, ok := c.(*ics.VEvent); ok {
			events = append(events, &Event{ev: ev})
		}
	}
	return events
}

// Len returns the number of events.
func (d *Document) Len() int {
	n := 0
	for _, c := range d.cal.Components {
		if _, ok := c.(*ics.VEvent); ok {
			n++
		}
	}
	return n
}

// AddEvent appends e to the document. The document takes ownership of e.
func (d *Document) AddEvent(e *Event) {
	d.cal.Components = append(d.cal.Components, e.ev)
}

// Timezones returns the VTIMEZONE components of the document.
func (d *Document) Timezones() []*ics.VTimezone {
	var tzs []*ics.VTimezone
	for _, c := range d.cal.Components {
		if tz, ok := c.(*ics.VTimezone); ok {
			tzs = append(tzs, tz)
		}
	}
	return tzs
}

// TimezoneIDs returns the TZID of every VTIMEZONE, in document order.
func (d *Document) TimezoneIDs() []string {
	var ids []string
	for _, tz := range d.Timezones() {
		if p := tz.GetProperty(ics.ComponentPropertyTzid); p != nil {
			ids = append(ids, p.Value)
		}
	}
	return ids
}

// CopyTimezonesFrom replaces the document's timezone metadata with copies
// of src's VTIMEZONE components and X-WR-TIMEZONE property. Copied
// timezones are placed ahead of any existing components.
func (d *Document) CopyTimezonesFrom(src *Document) {
	var kept []ics.Component
	for _, c := range d.cal.Components {
		if _, ok := c.(*ics.VTimezone); !ok {
			kept = append(kept, c)
		}
	}

	var tzs []ics.Component
	for _, tz := range src.Timezones() {
		tzs = append(tzs, &ics.VTimezone{ComponentBase: cloneComponentBase(tz.ComponentBase)})
	}
	d.cal.Components = append(tzs, kept...)

	var props []ics.CalendarProperty
	for _, p := range d.cal.CalendarProperties {
		if p.IANAToken != propertyTimezoneName {
			props = append(props, p)
		}
	}
	for _, p := range src.cal.CalendarProperties {
		if p.IANAToken == propertyTimezoneName {
			props = append(props, ics.CalendarProperty{BaseProperty: cloneBaseProperty(p.BaseProperty)})
		}
	}
	d.cal.CalendarProperties = props
}

// calendarProperty returns the first calendar level property named token.
func (d *Document) calendarProperty(token string) *ics.CalendarProperty {
	for i := range d.cal.CalendarProperties {
		if d.cal.CalendarProperties[i].IANAToken == token {
			return &d.cal.CalendarProperties[i]
		}
	}
	return nil
}

// shell returns a document with the same calendar properties and
// non-event components as d but no events.
func (d *Document) shell() *Document {
	cal := &ics.Calendar{}
	for _, p := range d.cal.CalendarProperties {
		cal.CalendarProperties = append(cal.CalendarProperties, ics.CalendarProperty{BaseProperty: cloneBaseProperty(p.BaseProperty)})
	}
	for _, c := range d.cal.Components {
		if _, ok := c.(*ics.VEvent); !ok {
			cal.Components = append(cal.Components, c)
		}
	}
	return &Document{cal: cal}
}

func cloneBaseProperty(p ics.BaseProperty) ics.BaseProperty {
	out := ics.BaseProperty{
		IANAToken: p.IANAToken,
		Value:     p.Value,
	}
	if p.ICalParameters != nil {
		out.ICalParameters = make(map[string][]string, len(p.ICalParameters))
		for k, v := range p.ICalParameters {
			out.ICalParameters[k] = append([]string(nil), v...)
		}
	}
	return out
}

// cloneComponentBase copies properties and parameters. Nested events and
// alarms are copied too; other nested components are shared since nothing
// mutates them.
func cloneComponentBase(cb ics.ComponentBase) ics.ComponentBase {
	out := ics.ComponentBase{}
	for _, p := range cb.Properties {
		out.Properties = append(out.Properties, ics.IANAProperty{BaseProperty: cloneBaseProperty(p.BaseProperty)})
	}
	for _, c := range cb.Components {
		switch sub := c.(type) {
		case *ics.VAlarm:
			out.Components = append(out.Components, &ics.VAlarm{ComponentBase: cloneComponentBase(sub.ComponentBase)})
		case *ics.VEvent:
			out.Components = append(out.Components, &ics.VEvent{ComponentBase: cloneComponentBase(sub.ComponentBase)})
		default:
			out.Components = append(out.Components, c)
		}
	}
	return out
}
