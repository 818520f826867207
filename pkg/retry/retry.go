// Package retry runs remote import fetches with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"net/http"
	"slices"
	"strconv"
	"syscall"
	"time"
)

// Config describes the backoff policy.
type Config struct {
	// MaxAttempts counts the first try. Values below 1 mean a single try.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter adds up to this fraction of the delay at random. 0 disables it.
	Jitter float64
	// RetryStatuses are the HTTP status codes worth another attempt.
	RetryStatuses []int
}

// DefaultConfig returns the policy used for calendar fetches.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
		RetryStatuses: []int{
			http.StatusRequestTimeout,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

// WithAttempts returns a copy of c with MaxAttempts replaced.
func (c Config) WithAttempts(n int) *Config {
	c.MaxAttempts = n
	c.RetryStatuses = slices.Clone(c.RetryStatuses)
	return &c
}

// Retryer runs operations under a Config.
type Retryer struct {
	config *Config
	logger *slog.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	random func() float64
}

// NewRetryer creates a Retryer. A nil config selects DefaultConfig.
func NewRetryer(config *Config, logger *slog.Logger) *Retryer {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Retryer{
		config: config,
		logger: logger,
		sleep:  sleepContext,
		random: rand.Float64,
	}
}

// Config returns the policy in use.
func (r *Retryer) Config() *Config {
	return r.config
}

// Do runs operation until it succeeds, fails permanently or the attempts
// are used up.
func (r *Retryer) Do(ctx context.Context, operation func(ctx context.Context) error) error {
	_, err := DoWithResult(ctx, r, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, operation(ctx)
	})
	return err
}

// DoWithResult is Do for operations that produce a value.
func DoWithResult[T any](ctx context.Context, r *Retryer, operation func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(r.config.MaxAttempts, 1)
	start := time.Now()

	for attempt := 1; ; attempt++ {
		result, err := operation(ctx)
		if err == nil {
			if attempt > 1 {
				r.logger.Info("Fetch succeeded after retry",
					"attempt", attempt,
					"elapsed", time.Since(start))
			}
			return result, nil
		}

		if !r.retriable(err) {
			return zero, err
		}
		if attempt >= attempts {
			r.logger.Warn("Giving up after retries",
				"attempts", attempt,
				"elapsed", time.Since(start),
				"error", err)
			return zero, &ExhaustedError{Attempts: attempt, Err: err}
		}

		delay := r.delay(attempt, err)
		r.logger.Debug("Retrying after delay",
			"attempt", attempt+1,
			"max_attempts", attempts,
			"delay", delay,
			"error", err)
		if serr := r.sleep(ctx, delay); serr != nil {
			return zero, fmt.Errorf("retry cancelled: %w", serr)
		}
	}
}

// delay is the wait before attempt+1. A server supplied Retry-After wins
// over the computed backoff, both capped at MaxDelay.
func (r *Retryer) delay(attempt int, err error) time.Duration {
	d := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	if r.config.Jitter > 0 {
		d += r.random() * r.config.Jitter * d
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		d = float64(httpErr.RetryAfter)
	}

	if r.config.MaxDelay > 0 && d > float64(r.config.MaxDelay) {
		d = float64(r.config.MaxDelay)
	}
	return time.Duration(d)
}

func (r *Retryer) retriable(err error) bool {
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return slices.Contains(r.config.RetryStatuses, httpErr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// ExhaustedError is returned when every attempt failed with a retriable
// error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// HTTPError is a non-success HTTP response.
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
	// RetryAfter is the delay requested by the server, if any.
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s (URL: %s)", e.StatusCode, e.Status, e.URL)
}

// NewHTTPError describes resp, reading its Retry-After header.
func NewHTTPError(resp *http.Response) *HTTPError {
	e := &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}
	if resp.Request != nil && resp.Request.URL != nil {
		e.URL = resp.Request.URL.Redacted()
	}
	e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	return e
}

// parseRetryAfter accepts delay-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
