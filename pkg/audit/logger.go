package audit

import (
	"context"
	"errors"
	"sync"

	"github.com/vincentdavis/league-gotta-bike/pkg/observability"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// Close flushes and releases resources
	Close() error
}

// Emit logs every event, reporting failures to the context logger instead of
// returning them
func Emit(ctx context.Context, logger Logger, events ...*Event) {
	if logger == nil {
		return
	}
	for _, e := range events {
		if err := logger.Log(ctx, e); err != nil {
			observability.FromContext(ctx).WithError(err).WithFields(map[string]any{
				"event_type": string(e.Type),
				"event_id":   e.ID.String(),
			}).Error("failed to record audit event")
		}
	}
}

// NoopLogger discards events
type NoopLogger struct{}

func (NoopLogger) Log(ctx context.Context, event *Event) error { return nil }
func (NoopLogger) Close() error                                { return nil }

// StructuredLogger writes events to an observability.Logger
type StructuredLogger struct {
	logger *observability.Logger
}

// NewStructuredLogger creates a logger that writes one line per event
func NewStructuredLogger(logger *observability.Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger.WithField("component", "audit")}
}

func (l *StructuredLogger) Log(ctx context.Context, event *Event) error {
	fields := map[string]any{
		"event_id":        event.ID.String(),
		"event_type":      string(event.Type),
		"organization_id": event.OrganizationID,
		"subject_type":    string(event.SubjectType),
		"subject_id":      event.SubjectID,
	}
	if event.ActorID != nil {
		fields["actor_id"] = *event.ActorID
	}
	if event.FromState != "" || event.ToState != "" {
		fields["from_state"] = event.FromState
		fields["to_state"] = event.ToState
	}
	for k, v := range event.Metadata {
		fields["meta_"+k] = v
	}
	msg := event.Message
	if msg == "" {
		msg = string(event.Type)
	}
	l.logger.WithFields(fields).Info(msg)
	return nil
}

func (l *StructuredLogger) Close() error { return nil }

// MultiLogger logs to several loggers
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a logger writing to every given destination
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log writes to every logger, continuing past failures
func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	var errs []error
	for _, l := range m.loggers {
		if err := l.Log(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiLogger) Close() error {
	var errs []error
	for _, l := range m.loggers {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps events in memory
type Recorder struct {
	mu     sync.Mutex
	events []*Event
}

func (r *Recorder) Log(ctx context.Context, event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a snapshot of recorded events
func (r *Recorder) Events() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order
func (r *Recorder) Types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
