package analytics

import (
	"context"

	"github.com/Checker-Finance/swap-router/pkg/model"
)

// eventPublisher is satisfied by *publisher.Publisher.
type eventPublisher interface {
	PublishEvent(ctx context.Context, subject, eventType string, payload any) error
}

// NATSSink publishes no-route events to a JetStream subject.
type NATSSink struct {
	pub     eventPublisher
	subject string
}

// NewNATSSink publishes on subject through pub.
func NewNATSSink(pub eventPublisher, subject string) *NATSSink {
	return &NATSSink{pub: pub, subject: subject}
}

// Name identifies the sink in fan-out errors.
func (s *NATSSink) Name() string { return "nats" }

// Send publishes ev wrapped in an event envelope.
func (s *NATSSink) Send(ctx context.Context, ev model.NoRouteEvent) error {
	return s.pub.PublishEvent(ctx, s.subject, EventTypeNoRoute, ev)
}
