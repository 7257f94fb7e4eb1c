package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gyaneshwarpardhi/pprelay/internal/event"
	"github.com/gyaneshwarpardhi/pprelay/internal/metrics"
)

// Notifier delivers a rendered message to one chat.
type Notifier interface {
	Deliver(ctx context.Context, target int64, text string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, target int64, text string) error

func (f NotifierFunc) Deliver(ctx context.Context, target int64, text string) error {
	return f(ctx, target, text)
}

// DeliveryError reports a failed send. It is logged by callers and never
// retried.
type DeliveryError struct {
	Target int64
	Sink   string
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Sink == "" {
		return fmt.Sprintf("deliver to %d: %v", e.Target, e.Err)
	}
	return fmt.Sprintf("deliver to %d via %s: %v", e.Target, e.Sink, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Sink is a named Notifier.
type Sink struct {
	Name string
	Notifier
}

// Fanout delivers every message to all sinks. A failing sink does not stop
// the others; their errors are joined.
type Fanout struct {
	sinks []Sink
}

// NewFanout creates a Fanout over sinks.
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Deliver(ctx context.Context, target int64, text string) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Deliver(ctx, target, text); err != nil {
			metrics.Deliveries.WithLabelValues(s.Name, "error").Inc()
			slog.Warn("notify: delivery failed",
				"sink", s.Name,
				"target", target,
				"request_id", RequestID(ctx),
				"err", err,
			)
			errs = append(errs, err)
			continue
		}
		metrics.Deliveries.WithLabelValues(s.Name, "success").Inc()
	}
	if len(errs) > 0 {
		return &DeliveryError{Target: target, Err: errors.Join(errs...)}
	}
	return nil
}

type (
	requestIDKey struct{}
	eventKey     struct{}
)

// WithRequestID attaches a request ID that sinks include in their output.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID attached to ctx, if any.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithEvent attaches the event a notification was rendered from.
func WithEvent(ctx context.Context, ev *event.Event) context.Context {
	return context.WithValue(ctx, eventKey{}, ev)
}

// EventFrom returns the event attached to ctx, or nil.
func EventFrom(ctx context.Context) *event.Event {
	ev, _ := ctx.Value(eventKey{}).(*event.Event)
	return ev
}
