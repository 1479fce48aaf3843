package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Checker-Finance/experiences/internal/metrics"
	"github.com/Checker-Finance/experiences/pkg/model"
)

// Envelope wraps an event for delivery to an external broker.
type Envelope struct {
	ID        uuid.UUID       `json:"id"`
	EventType string          `json:"event_type"`
	Service   string          `json:"service"`
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into an envelope of eventType.
func NewEnvelope(eventType, service string, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Envelope{
		ID:        uuid.New(),
		EventType: eventType,
		Service:   service,
		Version:   "1.0.0",
		Timestamp: time.Now().UTC(),
		Payload:   data,
	}, nil
}

// Sink delivers envelopes to a broker.
type Sink interface {
	Backend() string
	Send(ctx context.Context, subject string, env *Envelope) error
	Close() error
}

// sendTimeout bounds one delivery attempt from a bus handler.
const sendTimeout = 5 * time.Second

// Forward subscribes sink to the aggregation events on bus. Subjects are
// "{prefix}.{event type}", e.g. "evt.experiences.experiences.provider.failed".
func Forward(bus *Bus, sink Sink, prefix, service string, logger *zap.Logger) {
	forward := func(eventType string) Handler {
		subject := eventType
		if prefix != "" {
			subject = prefix + "." + eventType
		}
		return func(event any) {
			env, err := NewEnvelope(eventType, service, event)
			if err != nil {
				logger.Error("events.marshal_failed", zap.String("event_type", eventType), zap.Error(err))
				metrics.IncEventPublished(sink.Backend(), "marshal_failed")
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()
			if err := sink.Send(ctx, subject, env); err != nil {
				logger.Warn("events.publish_failed",
					zap.String("backend", sink.Backend()),
					zap.String("subject", subject),
					zap.Error(err))
				metrics.IncEventPublished(sink.Backend(), "error")
				return
			}
			metrics.IncEventPublished(sink.Backend(), "ok")
		}
	}

	bus.Subscribe(model.ProviderFailedEvent{}, forward(model.EventProviderFailed))
	bus.Subscribe(model.ListingRefreshedEvent{}, forward(model.EventListingRefreshed))
}
