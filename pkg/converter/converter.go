// Package converter runs the prepare, convert and save phases that turn an
// imported calendar into an exported one by applying the configured
// modifiers to every event.
package converter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/venkytv/calendar-converter/internal/apperr"
	"github.com/venkytv/calendar-converter/pkg/calendar"
	"github.com/venkytv/calendar-converter/pkg/calendar/ical"
	"github.com/venkytv/calendar-converter/pkg/modifier"
	"golang.org/x/sync/errgroup"
)

// Format is the subset of the calendar format library the converter uses.
type Format interface {
	Parse(r io.Reader) (*ical.Document, error)
	Write(w io.Writer, d *ical.Document) error
	Validate(d *ical.Document) []ical.Problem
	Expand(d *ical.Document, start, end time.Time) (*ical.Document, error)
}

// Config holds the conversion options.
type Config struct {
	// ExpandEnd enables recurrence expansion up to this time. Nil skips it.
	ExpandEnd *time.Time
	// Workers > 1 processes events concurrently.
	Workers int
	// MaxOccurrences caps the instances generated per recurring event.
	MaxOccurrences int
}

// Stats are the counters of the last Convert call.
type Stats struct {
	Events   int  // events considered, after expansion
	Filtered int  // events excluded by a filter
	Changed  int  // exported events changed by at least one modifier
	Exported int  // events in the export document
	Expanded bool // recurrence expansion ran
}

// Converter owns the import and export documents of one conversion.
type Converter struct {
	config     Config
	source     calendar.Source
	exportPath string
	format     Format
	registry   *modifier.Registry
	logger     *slog.Logger
	now        func() time.Time

	importDoc *ical.Document
	exportDoc *ical.Document
	converted bool
	stats     Stats
	output    *Output
}

// NewConverter creates a converter reading from source and writing to
// exportPath. A nil config selects the defaults.
func NewConverter(cfg *Config, source calendar.Source, exportPath string, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	var config Config
	if cfg != nil {
		config = *cfg
	}
	if config.Workers < 1 {
		config.Workers = 1
	}

	return &Converter{
		config:     config,
		source:     source,
		exportPath: exportPath,
		format:     ical.NewFormat(config.MaxOccurrences, logger),
		registry:   modifier.NewRegistry(),
		logger:     logger,
		now:        time.Now,
	}
}

// SetFormat replaces the calendar format implementation.
func (c *Converter) SetFormat(f Format) {
	c.format = f
}

// SetRegistry replaces the modifier registry.
func (c *Converter) SetRegistry(r *modifier.Registry) {
	c.registry = r
}

// Registry returns the modifier registry.
func (c *Converter) Registry() *modifier.Registry {
	return c.registry
}

// Push appends a modifier to the registry.
func (c *Converter) Push(m modifier.Modifier) error {
	return c.registry.Push(m)
}

// Prepare loads and validates the import document and creates an empty
// export document.
func (c *Converter) Prepare(ctx context.Context) error {
	if c.source == nil {
		return &apperr.PreconditionError{Operation: "prepare", Reason: "no import source configured"}
	}

	c.logger.Debug("Opening import source", "source", c.source.Name())
	rc, err := c.source.Open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()

	doc, err := c.format.Parse(rc)
	if err != nil {
		return err
	}
	return c.PrepareDocument(doc)
}

// PrepareDocument validates an already parsed import document and creates
// an empty export document. Fatal problems fail with a ValidationError;
// everything else is logged.
func (c *Converter) PrepareDocument(doc *ical.Document) error {
	if doc == nil {
		return &apperr.PreconditionError{Operation: "prepare", Reason: "import document is nil"}
	}

	problems := c.format.Validate(doc)
	var fatal []ical.Problem
	for _, p := range problems {
		switch p.Severity {
		case ical.Fatal:
			c.logger.Error("Validation failed", "node", p.Node, "problem", p.Message)
			fatal = append(fatal, p)
		case ical.Warning:
			c.logger.Warn("Validation warning", "node", p.Node, "problem", p.Message)
		default:
			c.logger.Info("Validation repaired", "node", p.Node, "problem", p.Message)
		}
	}
	if len(problems) > 0 {
		c.logger.Info("Validated import document",
			"problems", len(problems),
			"highest_severity", ical.HighestSeverity(problems).String())
	}
	if ical.HighestSeverity(problems) == ical.Fatal {
		msg := fatal[0].Message
		if len(fatal) > 1 {
			msg = fmt.Sprintf("%s (and %d more fatal problems)", msg, len(fatal)-1)
		}
		return &apperr.ValidationError{Node: fatal[0].Node, Message: msg}
	}

	c.importDoc = doc
	c.exportDoc = ical.NewDocument()
	c.converted = false
	c.stats = Stats{}
	c.output = nil

	c.logger.Debug("Prepared import document", "events", doc.Len())
	return nil
}

type eventOutcome struct {
	event    *ical.Event
	filtered bool
	changed  bool
}

// Convert applies the modifiers to every import event and fills the export
// document. The registry is frozen on entry.
func (c *Converter) Convert(ctx context.Context) error {
	if c.importDoc == nil || c.exportDoc == nil {
		return &apperr.PreconditionError{Operation: "convert", Reason: "prepare has not completed"}
	}
	if c.registry == nil || c.registry.Len() == 0 {
		return &apperr.PreconditionError{Operation: "convert", Reason: "no modifiers registered"}
	}
	c.registry.Freeze()
	modifiers := c.registry.Modifiers()

	stats := Stats{}
	input := c.importDoc
	if c.config.ExpandEnd != nil {
		start, ok := earliestStart(c.importDoc)
		if !ok {
			start = c.now()
		}
		end := *c.config.ExpandEnd
		if end.Before(start) {
			return &apperr.ConfigurationError{
				Key:     "calendar.expand_end",
				Message: fmt.Sprintf("expansion end %s is before window start %s", end.Format(time.RFC3339), start.Format(time.RFC3339)),
			}
		}

		expanded, err := c.format.Expand(c.importDoc, start, end)
		if err != nil {
			return fmt.Errorf("failed to expand recurring events: %w", err)
		}
		c.logger.Info("Expanded recurring events",
			"window_start", start,
			"window_end", end,
			"events_before", c.importDoc.Len(),
			"events_after", expanded.Len())
		input = expanded
		stats.Expanded = true
	}

	export := ical.NewDocument()
	export.CopyTimezonesFrom(c.importDoc)

	events := input.Events()
	outcomes := make([]eventOutcome, len(events))

	if c.config.Workers > 1 && len(events) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.config.Workers)
		for i, ev := range events {
			i, ev := i, ev
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				outcomes[i] = c.processEvent(ev, modifiers)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("conversion interrupted: %w", err)
		}
	} else {
		for i, ev := range events {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("conversion interrupted: %w", err)
			}
			outcomes[i] = c.processEvent(ev, modifiers)
		}
	}

	stats.Events = len(events)
	for _, o := range outcomes {
		if o.filtered {
			stats.Filtered++
			continue
		}
		export.AddEvent(o.event)
		stats.Exported++
		if o.changed {
			stats.Changed++
		}
	}

	c.exportDoc = export
	c.stats = stats
	c.converted = true
	c.output = nil

	c.logger.Info("Events filtered out", "count", stats.Filtered)
	c.logger.Info("Events changed", "count", stats.Changed)
	c.logger.Debug("Conversion finished",
		"events", stats.Events,
		"exported", stats.Exported,
		"workers", c.config.Workers)
	return nil
}

// processEvent runs the modifier chain on a copy of ev. A filter excluding
// the event ends the chain.
func (c *Converter) processEvent(ev *ical.Event, modifiers []modifier.Modifier) eventOutcome {
	event := ev.Clone()
	changed := false
	for _, m := range modifiers {
		result := m.Process(event)
		c.logger.Debug("Modifier returned",
			"uid", event.UID(),
			"modifier", m.Kind(),
			"result", result)

		switch result {
		case modifier.Excluded:
			return eventOutcome{filtered: true}
		case modifier.Changed:
			changed = true
		}
	}
	return eventOutcome{event: event, changed: changed}
}

// Stats returns the counters of the last Convert call.
func (c *Converter) Stats() Stats {
	return c.stats
}

// ImportDocument returns the prepared import document, or nil.
func (c *Converter) ImportDocument() *ical.Document {
	return c.importDoc
}

// ExportDocument returns the export document, or nil before Prepare.
func (c *Converter) ExportDocument() *ical.Document {
	return c.exportDoc
}

// earliestStart returns the smallest DTSTART among the document's events.
func earliestStart(d *ical.Document) (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, ev := range d.Events() {
		start, ok := ev.Start()
		if !ok {
			continue
		}
		if !found || start.Before(earliest) {
			earliest = start
			found = true
		}
	}
	return earliest, found
}
