package ical

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/venkytv/calendar-converter/internal/apperr"
	"github.com/venkytv/calendar-converter/pkg/calendar"
	"github.com/venkytv/calendar-converter/pkg/retry"
)

const defaultTimeout = 30 * time.Second

// Source fetches an iCalendar document over HTTP(S). webcal:// locations
// are fetched over HTTPS. Credentials, when configured, are sent with
// basic auth.
type Source struct {
	name        string
	url         string
	username    string
	password    string
	client      *http.Client
	logger      *slog.Logger
	retryConfig *retry.Config
	retryer     *retry.Retryer
}

// NewSource creates a new HTTP iCalendar source
func NewSource() *Source {
	logger := slog.Default()
	retryConfig := retry.DefaultConfig()

	return &Source{
		name: "iCal",
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		logger:      logger,
		retryConfig: retryConfig,
		retryer:     retry.NewRetryer(retryConfig, logger),
	}
}

// Name returns the source name
func (s *Source) Name() string {
	return s.name
}

// Type returns the source type identifier
func (s *Source) Type() string {
	return calendar.TypeICal
}

// SetLogger sets the logger for this source
func (s *Source) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
		s.retryer = retry.NewRetryer(s.retryConfig, logger)
	}
}

// SetRetryConfig replaces the backoff policy used for fetches
func (s *Source) SetRetryConfig(cfg *retry.Config) {
	s.retryConfig = cfg
	s.retryer = retry.NewRetryer(cfg, s.logger)
}

// Initialize sets up the source with the calendar URL
func (s *Source) Initialize(ctx context.Context, cfg calendar.SourceConfig) error {
	if cfg.Location == "" {
		return &apperr.ConfigurationError{Key: "import", Message: "iCal URL is required"}
	}

	s.url = calendar.HTTPURL(cfg.Location)
	s.username = cfg.Username
	s.password = cfg.Password
	if cfg.Timeout > 0 {
		s.client.Timeout = cfg.Timeout
	}
	if cfg.Attempts > 0 {
		s.SetRetryConfig(s.retryConfig.WithAttempts(cfg.Attempts))
	}

	s.logger.Info("Initialized iCal source", "url", s.url, "authenticated", s.username != "")
	return nil
}

// Open fetches the calendar document
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	if s.url == "" {
		return nil, &apperr.PreconditionError{Operation: "open iCal source", Reason: "source not initialized"}
	}

	body, err := s.fetchICalData(ctx)
	if err != nil {
		return nil, &apperr.IOError{Operation: "fetch", Path: s.url, Err: err}
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

// fetchICalData retrieves iCal data from the URL with retry logic
func (s *Source) fetchICalData(ctx context.Context) ([]byte, error) {
	operation := func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Accept", "text/calendar,application/calendar")
		req.Header.Set("User-Agent", "calendar-converter/1.0")
		if s.username != "" {
			req.SetBasicAuth(s.username, s.password)
		}

		s.logger.Debug("Fetching iCal data", "url", s.url)

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			s.logger.Warn("HTTP error when fetching iCal data",
				"url", s.url,
				"status_code", resp.StatusCode,
				"status", resp.Status)
			return nil, retry.NewHTTPError(resp)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		s.logger.Debug("Successfully fetched iCal data",
			"url", s.url,
			"content_length", len(body))

		return body, nil
	}

	body, err := retry.DoWithResult(ctx, s.retryer, operation)
	if err != nil {
		s.logger.Error("Failed to fetch iCal data after retries",
			"url", s.url,
			"error", err)
		return nil, err
	}
	return body, nil
}

// Close cleans up resources
func (s *Source) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
