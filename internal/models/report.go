package models

import (
	"time"
)

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Report summarises one conversion run. It is logged at the end of every
// run and published to NATS when a report subject is configured.
type Report struct {
	RunID      string    `json:"run_id"`
	Import     string    `json:"import"`
	Export     string    `json:"export"`
	DryRun     bool      `json:"dry_run,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	ExitCode   int       `json:"exit_code"`

	Modifiers int  `json:"modifiers"`
	Events    int  `json:"events"`
	Filtered  int  `json:"filtered"`
	Changed   int  `json:"changed"`
	Exported  int  `json:"exported"`
	Expanded  bool `json:"expanded,omitempty"`

	Bytes  int    `json:"bytes,omitempty"`
	Digest string `json:"digest,omitempty"` // BLAKE3-256 of the export document
}

// NewReport starts a report for a run.
func NewReport(runID, importLocation, exportPath string, startedAt time.Time) *Report {
	return &Report{
		RunID:     runID,
		Import:    importLocation,
		Export:    exportPath,
		StartedAt: startedAt,
	}
}

// Finish records the end of the run. exitCode is the process exit code the
// error maps to.
func (r *Report) Finish(finishedAt time.Time, err error, exitCode int) {
	r.FinishedAt = finishedAt
	r.ExitCode = exitCode
	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()
		return
	}
	r.Status = StatusSucceeded
	r.Error = ""
}

// Succeeded returns true if the run finished without error.
func (r *Report) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// Duration returns how long the run took, or zero while it is running.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// LogAttrs returns the report as slog key/value pairs.
func (r *Report) LogAttrs() []any {
	attrs := []any{
		"run_id", r.RunID,
		"status", r.Status,
		"events", r.Events,
		"filtered", r.Filtered,
		"changed", r.Changed,
		"exported", r.Exported,
		"duration", r.Duration(),
	}
	if r.Digest != "" {
		attrs = append(attrs, "digest", r.Digest)
	}
	if r.Error != "" {
		attrs = append(attrs, "error", r.Error)
	}
	return attrs
}
