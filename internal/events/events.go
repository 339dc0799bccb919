// Package events publishes planner change notifications to NATS so that
// renderers and other collaborators can follow the model without polling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultPrefix is the first token of every subject.
const DefaultPrefix = "trajectory"

// Event is a single change notification.
type Event struct {
	Kind       string    `json:"kind"`
	DroneID    string    `json:"droneId,omitempty"`
	WaypointID string    `json:"waypointId,omitempty"`
	Revision   uint64    `json:"revision"`
	At         time.Time `json:"at"`
	Data       any       `json:"data,omitempty"`
}

// Publisher delivers events somewhere.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// NATSConfig holds the NATS connection settings.
type NATSConfig struct {
	URL     string
	Prefix  string
	Name    string
	Timeout time.Duration
}

// NATSPublisher publishes events as JSON on
// <prefix>.<droneID>.<kind>, using "all" for events without a drone.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

// Connect opens a publisher. An empty URL returns Nop.
func Connect(cfg NATSConfig) (Publisher, error) {
	if cfg.URL == "" {
		return Nop{}, nil
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.Name == "" {
		cfg.Name = "trajectory-planner"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(cfg.Timeout),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSPublisher{nc: nc, prefix: cfg.Prefix}, nil
}

// Publish sends ev. The context bounds the flush that confirms the
// server received it.
func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(Subject(p.prefix, ev.DroneID, ev.Kind), data); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Kind, err)
	}
	return p.nc.FlushWithContext(ctx)
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}

// Subject builds the subject for an event. Characters that NATS treats
// specially are replaced so that ids never add or wildcard tokens.
func Subject(prefix, droneID, kind string) string {
	if droneID == "" {
		droneID = "all"
	}
	return prefix + "." + token(droneID) + "." + token(kind)
}

var tokenReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_", "\t", "_")

func token(s string) string {
	return tokenReplacer.Replace(s)
}
