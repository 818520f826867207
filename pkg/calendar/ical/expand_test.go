package ical

import (
	"testing"
	"time"
)

const recurringCalendar = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//Test//EN
BEGIN:VEVENT
UID:weekly@example.com
DTSTAMP:20240101T000000Z
DTSTART:20240101T090000Z
DTEND:20240101T100000Z
RRULE:FREQ=WEEKLY;COUNT=10
EXDATE:20240115T090000Z
SUMMARY:Weekly sync
LOCATION:Foyer
END:VEVENT
BEGIN:VEVENT
UID:weekly@example.com
DTSTAMP:20240101T000000Z
RECURRENCE-ID:20240122T090000Z
DTSTART:20240122T140000Z
DTEND:20240122T150000Z
SUMMARY:Weekly sync (moved)
END:VEVENT
BEGIN:VEVENT
UID:single-in@example.com
DTSTAMP:20240101T000000Z
DTSTART:20240110T120000Z
DTEND:20240110T130000Z
SUMMARY:Inside the window
END:VEVENT
BEGIN:VEVENT
UID:single-out@example.com
DTSTAMP:20240101T000000Z
DTSTART:20250110T120000Z
DTEND:20250110T130000Z
SUMMARY:Outside the window
END:VEVENT
END:VCALENDAR
`

var (
	january  = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	february = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
)

func TestExpand(t *testing.T) {
	doc := mustParse(t, recurringCalendar)

	result, err := Expand(doc, ExpandConfig{RangeStart: january, RangeEnd: february})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	type want struct {
		uid     string
		start   time.Time
		summary string
	}
	expected := []want{
		{"weekly@example.com", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), "Weekly sync"},
		{"weekly@example.com", time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC), "Weekly sync"},
		{"weekly@example.com", time.Date(2024, 1, 22, 14, 0, 0, 0, time.UTC), "Weekly sync (moved)"},
		{"weekly@example.com", time.Date(2024, 1, 29, 9, 0, 0, 0, time.UTC), "Weekly sync"},
		{"single-in@example.com", time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC), "Inside the window"},
	}

	events := result.Document.Events()
	if len(events) != len(expected) {
		for _, e := range events {
			s, _ := e.Start()
			t.Logf("got %s at %v", e.UID(), s)
		}
		t.Fatalf("expected %d events, got %d", len(expected), len(events))
	}

	for i, w := range expected {
		e := events[i]
		start, ok := e.Start()
		if e.UID() != w.uid || !ok || !start.Equal(w.start) || e.Summary() != w.summary {
			t.Errorf("event %d = %s %v %q, expected %s %v %q", i, e.UID(), start, e.Summary(), w.uid, w.start, w.summary)
		}
	}

	second := events[1]
	if second.IsRecurring() {
		t.Error("instance still carries recurrence properties")
	}
	if _, ok := second.Property("EXDATE"); ok {
		t.Error("instance still carries EXDATE")
	}
	if v, _ := second.Property("DTSTART"); v != "20240108T090000Z" {
		t.Errorf("DTSTART written as %q, expected UTC form", v)
	}
	if v, _ := second.Property("DTEND"); v != "20240108T100000Z" {
		t.Errorf("DTEND = %q", v)
	}
	if rid, ok := second.RecurrenceID(); !ok || !rid.Equal(time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("RECURRENCE-ID = %v, %v", rid, ok)
	}
	if second.Location() != "Foyer" {
		t.Errorf("instance lost LOCATION, got %q", second.Location())
	}

	// The input document is left untouched.
	if doc.Len() != 4 || !doc.Events()[0].IsRecurring() {
		t.Error("Expand modified its input")
	}
}

func TestExpandInstancesAreIndependent(t *testing.T) {
	doc := mustParse(t, recurringCalendar)
	result, err := Expand(doc, ExpandConfig{RangeStart: january, RangeEnd: february})
	if err != nil {
		t.Fatal(err)
	}

	events := result.Document.Events()
	events[0].SetLocation("Resource A")
	if events[1].Location() != "Foyer" {
		t.Errorf("instances share state, second location = %q", events[1].Location())
	}
	if doc.Events()[0].Location() != "Foyer" {
		t.Errorf("master changed, location = %q", doc.Events()[0].Location())
	}
}

func TestExpandRDate(t *testing.T) {
	doc := mustParse(t, `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//Test//EN
BEGIN:VEVENT
UID:rdate@example.com
DTSTAMP:20240101T000000Z
DTSTART:20240103T090000Z
DURATION:PT1H
RDATE:20240105T090000Z,20240112T090000Z
RDATE:20240301T090000Z
END:VEVENT
END:VCALENDAR
`)

	result, err := Expand(doc, ExpandConfig{RangeStart: january, RangeEnd: february})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	events := result.Document.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 instances, got %d", len(events))
	}
	days := []int{3, 5, 12}
	for i, e := range events {
		start, _ := e.Start()
		if start.Day() != days[i] {
			t.Errorf("instance %d starts %v, expected day %d", i, start, days[i])
		}
		if v, _ := e.Property("DURATION"); v != "PT1H" {
			t.Errorf("instance %d DURATION = %q", i, v)
		}
	}
}

func TestExpandCap(t *testing.T) {
	doc := mustParse(t, `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//Test//EN
BEGIN:VEVENT
UID:daily@example.com
DTSTAMP:20240101T000000Z
DTSTART:20240101T090000Z
RRULE:FREQ=DAILY
END:VEVENT
END:VCALENDAR
`)

	result, err := Expand(doc, ExpandConfig{
		RangeStart:             january,
		RangeEnd:               february,
		MaxOccurrencesPerEvent: 3,
	})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	if n := result.Document.Len(); n != 3 {
		t.Errorf("expected 3 instances, got %d", n)
	}
	if len(result.TruncatedEvents) != 1 || result.TruncatedEvents[0] != "daily@example.com" {
		t.Errorf("TruncatedEvents = %v", result.TruncatedEvents)
	}
}

func TestExpandOverlapAtWindowStart(t *testing.T) {
	doc := mustParse(t, `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//Test//EN
BEGIN:VEVENT
UID:running@example.com
DTSTAMP:20240101T000000Z
DTSTART:20231231T230000Z
DTEND:20240101T010000Z
END:VEVENT
BEGIN:VEVENT
UID:finished@example.com
DTSTAMP:20240101T000000Z
DTSTART:20231231T220000Z
DTEND:20240101T000000Z
END:VEVENT
END:VCALENDAR
`)

	result, err := Expand(doc, ExpandConfig{RangeStart: january, RangeEnd: february})
	if err != nil {
		t.Fatal(err)
	}
	events := result.Document.Events()
	if len(events) != 1 || events[0].UID() != "running@example.com" {
		t.Errorf("expected only the running event, got %d events", len(events))
	}
}

func TestExpandRejectsInvertedWindow(t *testing.T) {
	doc := mustParse(t, recurringCalendar)
	if _, err := Expand(doc, ExpandConfig{RangeStart: february, RangeEnd: january}); err == nil {
		t.Error("expected error for end before start")
	}
}

func TestExpandKeepsCalendarMetadata(t *testing.T) {
	doc := mustParse(t, testCalendar)
	result, err := Expand(doc, ExpandConfig{
		RangeStart: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	if ids := result.Document.TimezoneIDs(); len(ids) != 1 || ids[0] != "Europe/Berlin" {
		t.Errorf("TimezoneIDs = %v", ids)
	}
	if result.Document.Len() != 2 {
		t.Errorf("expected 2 events, got %d", result.Document.Len())
	}
}

func TestFormatExpand(t *testing.T) {
	f := NewFormat(2, nil)
	doc := mustParse(t, recurringCalendar)

	out, err := f.Expand(doc, january, february)
	if err != nil {
		t.Fatal(err)
	}
	// Two weekly instances before the cap, the single event in range and
	// the moved instance, which no longer has a generated slot to replace.
	if out.Len() != 4 {
		t.Errorf("expected 4 events, got %d", out.Len())
	}
}
