package nats

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/venkytv/calendar-converter/internal/models"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.URL != "nats://localhost:4222" {
		t.Errorf("Expected default URL to be 'nats://localhost:4222', got %s", config.URL)
	}

	if config.Subject != "calendar.conversions" {
		t.Errorf("Expected default subject to be 'calendar.conversions', got %s", config.Subject)
	}

	if config.ConnectTimeout != 5*time.Second {
		t.Errorf("Expected default connect timeout to be 5s, got %v", config.ConnectTimeout)
	}
}

func TestWithDefaults(t *testing.T) {
	config := withDefaults(&Config{URL: "nats://example:4222", Subject: "reports"})

	if config.URL != "nats://example:4222" || config.Subject != "reports" {
		t.Errorf("Configured values were overwritten: %+v", config)
	}
	if config.ConnectTimeout != 5*time.Second || config.FlushTimeout != 5*time.Second {
		t.Errorf("Expected default timeouts, got %+v", config)
	}

	if withDefaults(nil).Subject != "calendar.conversions" {
		t.Error("Expected nil config to select defaults")
	}
}

func testReport() *models.Report {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	report := models.NewReport("run-42", "import.ics", "export.ics", start)
	report.Events = 3
	report.Filtered = 1
	report.Exported = 2
	report.Finish(start.Add(time.Second), nil, 0)
	return report
}

func TestPublishReport(t *testing.T) {
	var sent []*nats.Msg
	publisher := &Publisher{
		subject: "test.reports",
		logger:  slog.Default(),
		publish: func(msg *nats.Msg) error {
			sent = append(sent, msg)
			return nil
		},
	}

	if err := publisher.PublishReport(context.Background(), testReport()); err != nil {
		t.Fatalf("Failed to publish report: %v", err)
	}

	if len(sent) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(sent))
	}
	msg := sent[0]
	if msg.Subject != "test.reports" {
		t.Errorf("Expected subject 'test.reports', got %s", msg.Subject)
	}
	if got := msg.Header.Get(headerMsgID); got != "run-42" {
		t.Errorf("Expected message ID header 'run-42', got %q", got)
	}

	var decoded models.Report
	if err := json.Unmarshal(msg.Data, &decoded); err != nil {
		t.Fatalf("Failed to decode report: %v", err)
	}
	if decoded.RunID != "run-42" || decoded.Filtered != 1 || decoded.Status != models.StatusSucceeded {
		t.Errorf("Unexpected decoded report %+v", decoded)
	}
}

func TestPublishReportErrors(t *testing.T) {
	failing := &Publisher{
		subject: "test.reports",
		logger:  slog.Default(),
		publish: func(*nats.Msg) error { return nats.ErrConnectionClosed },
	}
	err := failing.PublishReport(context.Background(), testReport())
	if !errors.Is(err, nats.ErrConnectionClosed) {
		t.Errorf("Expected wrapped publish error, got %v", err)
	}

	if err := failing.PublishReport(context.Background(), nil); err == nil {
		t.Error("Expected error for nil report")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := failing.PublishReport(ctx, testReport()); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	unconnected := &Publisher{subject: "test.reports", logger: slog.Default()}
	if err := unconnected.PublishReport(context.Background(), testReport()); err == nil {
		t.Error("Expected error without a connection")
	}
}

func TestPublisherHealthCheck(t *testing.T) {
	publisher := &Publisher{
		conn:    nil,
		subject: "test.subject",
		logger:  slog.Default(),
	}

	if err := publisher.healthy(); err == nil {
		t.Error("Expected health check to fail with nil connection")
	}
	if err := publisher.Flush(time.Second); err == nil {
		t.Error("Expected Flush to fail without a connection")
	}
	if err := publisher.Close(); err != nil {
		t.Errorf("Expected Close without connection to succeed, got %v", err)
	}
}

func TestNewPublisherConnectionFailure(t *testing.T) {
	_, err := NewPublisher(&Config{
		URL:            "nats://127.0.0.1:1",
		ConnectTimeout: 200 * time.Millisecond,
	}, nil)
	if err == nil {
		t.Fatal("Expected connection error")
	}
}
