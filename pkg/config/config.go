// Package config loads the converter's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/venkytv/calendar-converter/internal/apperr"
	"github.com/venkytv/calendar-converter/pkg/calendar"
	"github.com/venkytv/calendar-converter/pkg/modifier"
	"github.com/venkytv/calendar-converter/pkg/timestamp"
)

// Defaults applied by Load.
const (
	DefaultWorkers        = 1
	DefaultMaxOccurrences = 5000
	DefaultImportTimeout  = 30 * time.Second
	DefaultReportSubject  = "calendar.conversions"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

type Config struct {
	Calendar  CalendarConfig `yaml:"calendar"`
	Import    ImportConfig   `yaml:"import"`
	Modifiers ModifierList   `yaml:"modifiers"`
	Logging   LoggingConfig  `yaml:"logging"`
	Report    ReportConfig   `yaml:"report"`
}

type CalendarConfig struct {
	// ExpandEnd is the absolute end of recurrence expansion.
	ExpandEnd *timestamp.Value `yaml:"expand_end"`
	// ExpandWindow sets the expansion end relative to the time of the run.
	ExpandWindow   time.Duration `yaml:"expand_window"`
	MaxOccurrences int           `yaml:"max_occurrences"`
	Workers        int           `yaml:"workers"`
}

type ImportConfig struct {
	// Type is one of file, ical or caldav. Empty detects it from the
	// import location.
	Type     string        `yaml:"type"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
	// Attempts is how often a remote fetch is tried before giving up.
	Attempts int `yaml:"attempts"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File receives a copy of every log record when set.
	File string `yaml:"file"`
}

type ReportConfig struct {
	NATS NATSConfig `yaml:"nats"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Load reads, expands and validates the configuration at configPath.
// ${VAR} references are replaced from the environment before decoding.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, &apperr.IOError{Operation: "read config file", Path: configPath, Err: err}
	}
	return Parse(data)
}

// Parse decodes and validates configuration data.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, &apperr.ConfigurationError{Message: "failed to parse config file", Err: err}
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, &apperr.ConfigurationError{Message: "invalid configuration", Err: err}
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Calendar.Workers == 0 {
		c.Calendar.Workers = DefaultWorkers
	}
	if c.Calendar.MaxOccurrences == 0 {
		c.Calendar.MaxOccurrences = DefaultMaxOccurrences
	}
	if c.Import.Timeout == 0 {
		c.Import.Timeout = DefaultImportTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Report.NATS.URL != "" && c.Report.NATS.Subject == "" {
		c.Report.NATS.Subject = DefaultReportSubject
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Calendar.Validate(); err != nil {
		return fmt.Errorf("calendar: %w", err)
	}
	if err := c.Import.Validate(); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	if err := c.Modifiers.Validate(); err != nil {
		return fmt.Errorf("modifiers: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Report.NATS.Validate(); err != nil {
		return fmt.Errorf("report.nats: %w", err)
	}
	return nil
}

// Validate validates the calendar section.
func (c *CalendarConfig) Validate() error {
	if c.ExpandEnd != nil && c.ExpandWindow != 0 {
		return errors.New("expand_end and expand_window are mutually exclusive")
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.ExpandWindow, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxOccurrences, validation.Min(1)),
		validation.Field(&c.Workers, validation.Min(1), validation.Max(256)),
	)
}

// ExpandEndAt returns the end of recurrence expansion for a run starting at
// now, or nil when expansion is disabled.
func (c *CalendarConfig) ExpandEndAt(now time.Time) *time.Time {
	switch {
	case c.ExpandEnd != nil:
		t := c.ExpandEnd.Time
		return &t
	case c.ExpandWindow > 0:
		t := now.Add(c.ExpandWindow)
		return &t
	default:
		return nil
	}
}

// Validate validates the import section.
func (c *ImportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Type, validation.In(calendar.TypeFile, calendar.TypeICal, calendar.TypeCalDAV)),
		validation.Field(&c.Username, validation.When(c.Type == calendar.TypeCalDAV, validation.Required)),
		validation.Field(&c.Password, validation.When(c.Type == calendar.TypeCalDAV, validation.Required)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.Attempts, validation.Min(0), validation.Max(10)),
	)
}

// SourceConfig returns the import source settings for location.
func (c *ImportConfig) SourceConfig(location string) calendar.SourceConfig {
	return calendar.SourceConfig{
		Location: location,
		Username: c.Username,
		Password: c.Password,
		Timeout:  c.Timeout,
		Attempts: c.Attempts,
	}
}

// SourceType returns the configured source type, detecting it from
// location when unset.
func (c *ImportConfig) SourceType(location string) string {
	if c.Type != "" {
		return c.Type
	}
	return calendar.DetectType(location)
}

// Validate validates the logging section.
func (c *LoggingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Format, validation.In("json", "text")),
	)
}

// Enabled reports whether a report should be published.
func (c *NATSConfig) Enabled() bool {
	return c.URL != ""
}

// Validate validates the NATS report settings.
func (c *NATSConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Subject, validation.When(c.URL != "", validation.Required)),
	)
}

// ModifierEntries converts the configured modifiers for the modifier
// factory.
func (c *Config) ModifierEntries() []modifier.Entry {
	entries := make([]modifier.Entry, len(c.Modifiers))
	for i := range c.Modifiers {
		entries[i] = modifier.Entry{
			Kind:  c.Modifiers[i].Kind,
			Param: &c.Modifiers[i].Value,
		}
	}
	return entries
}
