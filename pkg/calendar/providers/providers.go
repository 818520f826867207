// Package providers registers the built-in import sources.
package providers

import (
	"log/slog"

	"github.com/venkytv/calendar-converter/pkg/calendar"
	"github.com/venkytv/calendar-converter/pkg/calendar/caldav"
	"github.com/venkytv/calendar-converter/pkg/calendar/file"
	"github.com/venkytv/calendar-converter/pkg/calendar/ical"
)

// InitializeBuiltinSources registers all built-in import sources with the
// factory. Sources created by the factory log through logger.
func InitializeBuiltinSources(factory *calendar.DefaultSourceFactory, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	// Local files
	factory.RegisterSource(calendar.TypeFile, func() calendar.Source {
		s := file.NewSource()
		s.SetLogger(logger)
		return s
	})

	// Public iCal URLs
	factory.RegisterSource(calendar.TypeICal, func() calendar.Source {
		s := ical.NewSource()
		s.SetLogger(logger)
		return s
	})

	// CalDAV export URLs with basic auth
	factory.RegisterSource(calendar.TypeCalDAV, func() calendar.Source {
		s := caldav.NewSource()
		s.SetLogger(logger)
		return s
	})
}
