package analytics

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Checker-Finance/swap-router/internal/metrics"
	"github.com/Checker-Finance/swap-router/pkg/model"
)

// EventTypeNoRoute is the event_type header and AMQP type of no-route events.
const EventTypeNoRoute = "quote.no_route"

// Sink delivers no-route events to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev model.NoRouteEvent) error
}

// Fanout delivers every no-route event to all configured sinks.
// A failing sink does not prevent delivery to the others.
type Fanout struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewFanout builds a Fanout over sinks. Nil sinks are skipped.
func NewFanout(logger *zap.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Fanout{logger: logger}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// EmitNoRoute sends ev to every sink and joins their errors.
func (f *Fanout) EmitNoRoute(ctx context.Context, ev model.NoRouteEvent) error {
	if len(f.sinks) == 0 {
		f.logger.Debug("analytics.no_sinks", zap.String("event_id", ev.ID.String()))
		return nil
	}
	var errs []error
	for _, s := range f.sinks {
		if err := s.Send(ctx, ev); err != nil {
			metrics.IncError("analytics", s.Name())
			f.logger.Warn("analytics.sink_failed",
				zap.String("sink", s.Name()),
				zap.String("event_id", ev.ID.String()),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Sinks returns the names of the configured sinks.
func (f *Fanout) Sinks() []string {
	names := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		names[i] = s.Name()
	}
	return names
}
