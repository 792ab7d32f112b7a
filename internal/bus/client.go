// Package bus wraps the NATS connection used to announce synthesis events.
package bus

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chimeworks/chime/internal/config"
	"github.com/chimeworks/chime/internal/protocol"
	"github.com/chimeworks/chime/internal/synth"
	"github.com/nats-io/nats.go"
)

// Client wraps a NATS connection with minimal helpers.
type Client struct {
	conn *nats.Conn
	log  *slog.Logger
}

func Connect(cfg config.BusConfig, log *slog.Logger) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}

	options := []nats.Option{
		nats.Name("chime-tts"),
		nats.Timeout(time.Duration(cfg.ConnectTimeout) * time.Millisecond),
	}

	if cfg.Username != "" || cfg.Password != "" {
		options = append(options, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}
	if cfg.TLSInsecure {
		options = append(options, nats.Secure(&tls.Config{InsecureSkipVerify: true}))
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Info("connected to NATS", slog.String("servers", url))

	return &Client{conn: conn, log: log}, nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	c.log.Info("closing NATS connection")
	c.conn.Drain()
	c.conn.Close()
}

func (c *Client) Healthy() bool {
	return c != nil && c.conn != nil && c.conn.Status() == nats.CONNECTED
}

func (c *Client) Conn() *nats.Conn {
	return c.conn
}

// Record satisfies synth.Recorder: each finished synthesis call becomes a
// bus event. Publish failures are logged and dropped.
func (c *Client) Record(_ context.Context, rec synth.Record) {
	event := protocol.SynthesisEvent{
		RequestID:    rec.ID,
		Speaker:      rec.Speaker,
		Language:     rec.Language,
		TextChars:    rec.TextChars,
		TookMS:       rec.Took.Milliseconds(),
		AudioSeconds: rec.AudioSeconds,
		Status:       rec.Status,
		Error:        rec.Error,
		Timestamp:    rec.CreatedAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		c.log.Warn("failed to marshal synthesis event", slog.String("error", err.Error()))
		return
	}
	subject := protocol.SubjectSynthesisCompleted
	if rec.Status == synth.StatusError {
		subject = protocol.SubjectSynthesisFailed
	}
	if err := c.conn.Publish(subject, data); err != nil {
		c.log.Warn("failed to publish synthesis event", slog.String("error", err.Error()))
	}
}
