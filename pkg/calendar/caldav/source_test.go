package caldav

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/venkytv/calendar-converter/internal/apperr"
	"github.com/venkytv/calendar-converter/pkg/calendar"
	"github.com/venkytv/calendar-converter/pkg/retry"
)

const testCalendar = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//Test//EN
BEGIN:VEVENT
UID:caldav-event-1@example.com
DTSTAMP:20251001T080000Z
DTSTART:20251001T100000Z
DTEND:20251001T110000Z
SUMMARY:CalDAV Meeting
END:VEVENT
END:VCALENDAR`

func TestNewSource(t *testing.T) {
	source := NewSource()
	if source.Name() != "CalDAV" {
		t.Errorf("Expected name 'CalDAV', got %s", source.Name())
	}
	if source.Type() != "caldav" {
		t.Errorf("Expected type 'caldav', got %s", source.Type())
	}
}

func TestSource_Initialize(t *testing.T) {
	tests := []struct {
		name    string
		cfg     calendar.SourceConfig
		wantErr bool
	}{
		{"empty URL", calendar.SourceConfig{Username: "user", Password: "pass"}, true},
		{"empty username", calendar.SourceConfig{Location: "https://example.com", Password: "pass"}, true},
		{"empty password", calendar.SourceConfig{Location: "https://example.com", Username: "user"}, true},
		{"valid", calendar.SourceConfig{Location: "https://example.com", Username: "user", Password: "pass"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewSource().Initialize(context.Background(), tt.cfg)
			if tt.wantErr {
				if !errors.Is(err, apperr.ErrConfiguration) {
					t.Errorf("Expected configuration error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestSource_OpenWithAuth(t *testing.T) {
	expectedAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("testuser:testpass"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != expectedAuth {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/calendar")
		w.Write([]byte(testCalendar))
	}))
	defer server.Close()

	source := NewSource()
	err := source.Initialize(context.Background(), calendar.SourceConfig{
		Location: server.URL,
		Username: "testuser",
		Password: "testpass",
	})
	if err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}
	defer source.Close()

	rc, err := source.Open(context.Background())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !strings.Contains(string(data), "UID:caldav-event-1@example.com") {
		t.Errorf("Unexpected payload: %s", data)
	}
}

func TestSource_OpenWrongCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	source := NewSource()
	source.SetRetryConfig(&retry.Config{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		Multiplier:    2.0,
		RetryStatuses: []int{http.StatusServiceUnavailable},
	})
	err := source.Initialize(context.Background(), calendar.SourceConfig{
		Location: server.URL,
		Username: "wrong",
		Password: "wrong",
	})
	if err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}

	_, err = source.Open(context.Background())
	if err == nil {
		t.Fatal("Expected error for wrong credentials")
	}
	if !errors.Is(err, apperr.ErrIO) {
		t.Errorf("Expected I/O error, got %v", err)
	}
	var httpErr *retry.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected HTTP 401 in error chain, got %v", err)
	}
}
