// Package events publishes PNR lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"gds_terminal/internal/gds"
	"gds_terminal/internal/pnr"
)

// DefaultSubject is the subject prefix; the event type is appended.
const DefaultSubject = "gds.pnr"

// Message is the JSON payload of a published event.
type Message struct {
	Type    string    `json:"type"`
	Locator string    `json:"locator"`
	Status  string    `json:"status"`
	Session string    `json:"session,omitempty"`
	At      time.Time `json:"at"`
	PNR     *gds.PNR  `json:"pnr"`
}

// NewMessage wraps a builder event for publishing.
func NewMessage(session string, e pnr.Event, at time.Time) Message {
	m := Message{Type: e.Type, Session: session, At: at.UTC(), PNR: e.PNR}
	if e.PNR != nil {
		m.Locator = e.PNR.Locator
		m.Status = string(e.PNR.Status)
	}
	return m
}

// Publisher delivers lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, m Message) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Message) error { return nil }
func (Nop) Close() error                           { return nil }

// NATSPublisher publishes events as JSON on <subject>.<type>.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to the server at url.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("gds_terminal"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(eventType string) string {
	return p.subject + "." + eventType
}

// Publish sends m and waits for the server to acknowledge the flush.
func (p *NATSPublisher) Publish(ctx context.Context, m Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(p.Subject(m.Type), data); err != nil {
		return fmt.Errorf("publish %s: %w", m.Type, err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", m.Type, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
