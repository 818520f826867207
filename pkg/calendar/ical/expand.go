package ical

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// RangeStart / RangeEnd define the inclusive time window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps the instances generated for one recurring
	// event. If zero, defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int

	Logger *slog.Logger
}

// ExpandResult is the expanded document plus the UIDs that hit the cap.
type ExpandResult struct {
	Document        *Document
	TruncatedEvents []string
}

type overrideKey struct {
	uid string
	at  int64
}

// Expand returns a new document in which recurring events are replaced by
// their concrete instances within [start, end]:
//
//   - RRULE and RDATE sets, with EXDATE removed
//   - RECURRENCE-ID overrides replacing the generated instance
//   - non-recurring events outside the window dropped
//
// Instances keep the master's properties, get a RECURRENCE-ID and have
// their DTSTART/DTEND written in the master's form.
func Expand(d *Document, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	events := d.Events()

	overrides := make(map[overrideKey]*Event)
	for _, ev := range events {
		if rid, ok := ev.RecurrenceID(); ok {
			overrides[overrideKey{uid: ev.UID(), at: rid.Unix()}] = ev
		}
	}
	used := make(map[*Event]bool)

	out := d.shell()
	for _, ev := range events {
		if _, isOverride := ev.RecurrenceID(); isOverride {
			continue
		}
		if !ev.IsRecurring() {
			if inRange(ev, cfg.RangeStart, cfg.RangeEnd) {
				out.AddEvent(ev.Clone())
			}
			continue
		}

		instances, hitCap, err := expandRecurring(ev, cfg)
		if err != nil {
			cfg.Logger.Warn("Failed to expand recurring event, keeping it unexpanded",
				"uid", ev.UID(),
				"error", err)
			out.AddEvent(ev.Clone())
			continue
		}
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, ev.UID())
		}

		for _, inst := range instances {
			rid, _ := inst.RecurrenceID()
			if o, ok := overrides[overrideKey{uid: ev.UID(), at: rid.Unix()}]; ok {
				used[o] = true
				out.AddEvent(o.Clone())
				continue
			}
			out.AddEvent(inst)
		}
	}

	// Overrides whose master produced no matching instance behave like
	// standalone events.
	for _, ev := range events {
		if _, isOverride := ev.RecurrenceID(); !isOverride || used[ev] {
			continue
		}
		if inRange(ev, cfg.RangeStart, cfg.RangeEnd) {
			out.AddEvent(ev.Clone())
		}
	}

	if len(result.TruncatedEvents) > 0 {
		cfg.Logger.Warn("Truncated recurring events at occurrence cap",
			"uids", strings.Join(result.TruncatedEvents, ","),
			"cap", cfg.MaxOccurrencesPerEvent)
	}

	result.Document = out
	return result, nil
}

func expandRecurring(ev *Event, cfg ExpandConfig) ([]*Event, bool, error) {
	start, err := ev.dateTime(ics.ComponentPropertyDtStart)
	if err != nil {
		return nil, false, fmt.Errorf("invalid DTSTART: %w", err)
	}
	loc := start.Time.Location()

	var set rrule.Set
	if p := ev.ev.GetProperty(ics.ComponentPropertyRrule); p != nil {
		opt, err := rrule.StrToROptionInLocation(p.Value, loc)
		if err != nil {
			return nil, false, fmt.Errorf("invalid RRULE %q: %w", p.Value, err)
		}
		opt.Dtstart = start.Time
		r, err := rrule.NewRRule(*opt)
		if err != nil {
			return nil, false, fmt.Errorf("invalid RRULE %q: %w", p.Value, err)
		}
		set.RRule(r)
	} else {
		set.DTStart(start.Time)
	}
	// DTSTART is always the first instance of the set.
	set.RDate(start.Time)

	for _, p := range ev.ev.GetProperties(ics.ComponentPropertyRdate) {
		times, err := parseDateList(p.Value, p.ICalParameters)
		if err != nil {
			return nil, false, fmt.Errorf("invalid RDATE %q: %w", p.Value, err)
		}
		for _, t := range times {
			set.RDate(t)
		}
	}
	for _, p := range ev.ev.GetProperties(ics.ComponentPropertyExdate) {
		times, err := parseDateList(p.Value, p.ICalParameters)
		if err != nil {
			cfg.Logger.Warn("Ignoring invalid EXDATE", "uid", ev.UID(), "exdate", p.Value, "error", err)
			continue
		}
		for _, t := range times {
			set.ExDate(t)
		}
	}

	var duration time.Duration
	hasDuration := false
	if end, ok := ev.End(); ok && ev.ev.GetProperty(ics.ComponentPropertyDtEnd) != nil {
		duration = end.Sub(start.Time)
		hasDuration = true
	}
	endLayout, _ := ev.dateTime(ics.ComponentPropertyDtEnd)

	// Instances that started before the window but are still running
	// overlap it.
	from := cfg.RangeStart
	if d, ok := eventLength(ev); ok && d > 0 {
		from = from.Add(-d)
	}

	var instances []*Event
	hitCap := false
	next := set.Iterator()
	for {
		at, ok := next()
		if !ok || at.After(cfg.RangeEnd) {
			break
		}
		if at.Before(from) {
			continue
		}
		if len(instances) >= cfg.MaxOccurrencesPerEvent {
			hitCap = true
			break
		}

		inst := ev.Clone()
		for _, prop := range []ics.ComponentProperty{
			ics.ComponentPropertyRrule,
			ics.ComponentPropertyRdate,
			ics.ComponentPropertyExdate,
			ics.ComponentPropertyExrule,
		} {
			inst.ev.RemoveProperty(prop)
		}
		inst.setDateTime(ics.ComponentPropertyDtStart, start, at)
		if hasDuration {
			inst.setDateTime(ics.ComponentPropertyDtEnd, endLayout, at.Add(duration))
		}
		inst.setDateTime(ics.ComponentPropertyRecurrenceId, start, at)

		if !inRange(inst, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}
		instances = append(instances, inst)
	}

	return instances, hitCap, nil
}

// parseDateList parses a comma separated RDATE/EXDATE value. PERIOD values
// contribute their start.
func parseDateList(value string, params map[string][]string) ([]time.Time, error) {
	var out []time.Time
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i := strings.IndexByte(part, '/'); i >= 0 {
			part = part[:i]
		}
		dt, err := parseDateTime(part, params)
		if err != nil {
			return nil, err
		}
		out = append(out, dt.Time)
	}
	return out, nil
}

// eventLength is the span used for window overlap checks. All-day events
// without an end last one day.
func eventLength(ev *Event) (time.Duration, bool) {
	start, ok := ev.Start()
	if !ok {
		return 0, false
	}
	if end, ok := ev.End(); ok {
		return end.Sub(start), true
	}
	if ev.AllDay() {
		return 24 * time.Hour, true
	}
	return 0, true
}

// inRange reports whether the event overlaps [from, to]. Events without a
// usable start are kept.
func inRange(ev *Event, from, to time.Time) bool {
	start, ok := ev.Start()
	if !ok {
		return true
	}
	if start.After(to) {
		return false
	}
	length, _ := eventLength(ev)
	if length > 0 {
		return start.Add(length).After(from)
	}
	return !start.Before(from)
}
