// Package nats publishes conversion reports to a NATS subject.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/venkytv/calendar-converter/internal/models"
)

// Header carrying the run ID, used by JetStream for de-duplication.
const headerMsgID = "Nats-Msg-Id"

// Publisher publishes conversion reports to NATS
type Publisher struct {
	conn         *nats.Conn
	subject      string
	flushTimeout time.Duration
	logger       *slog.Logger

	// publish sends one message. It is conn.PublishMsg unless replaced
	// in tests.
	publish func(msg *nats.Msg) error
}

// Config holds NATS publisher configuration
type Config struct {
	URL             string        `yaml:"url"`
	Subject         string        `yaml:"subject"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	ReconnectWait   time.Duration `yaml:"reconnect_wait"`
	MaxReconnects   int           `yaml:"max_reconnects"`
	ReconnectBuffer int           `yaml:"reconnect_buffer"`
	// FlushTimeout bounds the wait for the server to acknowledge a report.
	FlushTimeout time.Duration `yaml:"flush_timeout"`
}

// DefaultConfig returns a default NATS configuration
func DefaultConfig() *Config {
	return &Config{
		URL:             "nats://localhost:4222",
		Subject:         "calendar.conversions",
		ConnectTimeout:  5 * time.Second,
		ReconnectWait:   2 * time.Second,
		MaxReconnects:   10,
		ReconnectBuffer: 1024 * 1024, // 1MB
		FlushTimeout:    5 * time.Second,
	}
}

// NewPublisher connects to NATS. Zero fields of config take their
// defaults.
func NewPublisher(config *Config, logger *slog.Logger) (*Publisher, error) {
	config = withDefaults(config)

	if logger == nil {
		logger = slog.Default()
	}

	options := []nats.Option{
		nats.Name("calendar-converter"),
		nats.Timeout(config.ConnectTimeout),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectBufSize(config.ReconnectBuffer),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Debug("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(config.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", config.URL, err)
	}

	publisher := &Publisher{
		conn:         conn,
		subject:      config.Subject,
		flushTimeout: config.FlushTimeout,
		logger:       logger,
		publish:      conn.PublishMsg,
	}

	logger.Debug("NATS publisher initialized",
		"url", config.URL,
		"subject", config.Subject,
		"connected_url", conn.ConnectedUrl())

	return publisher, nil
}

func withDefaults(config *Config) *Config {
	defaults := DefaultConfig()
	if config == nil {
		return defaults
	}

	c := *config
	if c.URL == "" {
		c.URL = defaults.URL
	}
	if c.Subject == "" {
		c.Subject = defaults.Subject
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaults.ConnectTimeout
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = defaults.ReconnectWait
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = defaults.MaxReconnects
	}
	if c.ReconnectBuffer == 0 {
		c.ReconnectBuffer = defaults.ReconnectBuffer
	}
	if c.FlushTimeout == 0 {
		c.FlushTimeout = defaults.FlushTimeout
	}
	return &c
}

// newMessage encodes report as a JSON message on subject.
func newMessage(subject string, report *models.Report) (*nats.Msg, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set("Content-Type", "application/json")
	if report.RunID != "" {
		msg.Header.Set(headerMsgID, report.RunID)
	}
	return msg, nil
}

// PublishReport publishes one conversion report
func (p *Publisher) PublishReport(ctx context.Context, report *models.Report) error {
	if p.publish == nil || (p.conn != nil && p.conn.IsClosed()) {
		return fmt.Errorf("NATS connection is not available")
	}
	if report == nil {
		return fmt.Errorf("report is nil")
	}

	msg, err := newMessage(p.subject, report)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		if err := p.publish(msg); err != nil {
			return fmt.Errorf("failed to publish report: %w", err)
		}
	}

	p.logger.Debug("Published report",
		"subject", p.subject,
		"run_id", report.RunID,
		"status", report.Status)

	return nil
}

// Flush ensures all published messages have been sent
func (p *Publisher) Flush(timeout time.Duration) error {
	if err := p.healthy(); err != nil {
		return err
	}

	if err := p.conn.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("failed to flush NATS messages: %w", err)
	}

	return nil
}

// healthy reports why the connection cannot carry reports, if it cannot.
func (p *Publisher) healthy() error {
	if p.conn == nil {
		return fmt.Errorf("NATS connection is nil")
	}

	if p.conn.IsClosed() {
		return fmt.Errorf("NATS connection is closed")
	}

	if !p.conn.IsConnected() {
		return fmt.Errorf("NATS is not connected")
	}

	return nil
}

// Close flushes pending reports and closes the connection
func (p *Publisher) Close() error {
	if p.conn != nil && !p.conn.IsClosed() {
		if err := p.Flush(p.flushTimeout); err != nil {
			p.logger.Warn("Failed to flush messages on close", "error", err)
		}

		p.conn.Close()
		p.logger.Debug("NATS publisher closed")
	}
	return nil
}
