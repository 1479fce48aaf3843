package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// natsPublisher is the subset of nats.Conn and nats.JetStreamContext the
// sink needs.
type natsPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

type jetStreamPublisher struct {
	js nats.JetStreamContext
}

func (p jetStreamPublisher) PublishMsg(msg *nats.Msg) error {
	_, err := p.js.PublishMsg(msg)
	return err
}

// NATSSink publishes envelopes to NATS, through JetStream when enabled.
type NATSSink struct {
	nc  *nats.Conn
	pub natsPublisher
}

// NewNATSSink wraps an open connection. With jetStream the publish is
// acknowledged by a stream that must already cover the subjects.
func NewNATSSink(nc *nats.Conn, jetStream bool) (*NATSSink, error) {
	if nc == nil {
		return nil, fmt.Errorf("nats connection is required")
	}
	if !jetStream {
		return &NATSSink{nc: nc, pub: nc}, nil
	}
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	return &NATSSink{nc: nc, pub: jetStreamPublisher{js: js}}, nil
}

func (s *NATSSink) Backend() string { return "nats" }

// Send publishes env on subject with routing headers.
func (s *NATSSink) Send(ctx context.Context, subject string, env *Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":   []string{env.EventType},
			"event_id":     []string{env.ID.String()},
			"service":      []string{env.Service},
			"content_type": []string{"application/json"},
		},
	}
	if err := s.pub.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Close drains the connection.
func (s *NATSSink) Close() error {
	if s.nc == nil {
		return nil
	}
	return s.nc.Drain()
}
