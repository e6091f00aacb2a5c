// Package audit carries the fire-and-forget event trail used to record
// migration failures, encryption failures, lease contention and conflict
// resolutions.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/logging"
)

type Kind string

const (
	KindMigration  Kind = "migration"
	KindEncryption Kind = "encryption"
	KindStorage    Kind = "storage"
	KindConflict   Kind = "conflict"
	KindLease      Kind = "lease"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Event struct {
	Kind       Kind      `json:"kind"`
	Subject    string    `json:"subject"`
	Message    string    `json:"message"`
	Severity   Severity  `json:"severity"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Sink records events. Implementations must not block the caller and must
// not fail it.
type Sink interface {
	LogEvent(ctx context.Context, kind Kind, subject, message string, severity Severity)
}

// Deliver ships one event to its final destination.
type Deliver func(ctx context.Context, e Event) error

// AsyncSink logs every event immediately and hands it to a background
// worker for delivery. When the buffer is full the event is dropped.
type AsyncSink struct {
	logger  logging.Logger
	deliver Deliver
	timeout time.Duration
	now     func() time.Time

	queue chan Event
	once  sync.Once
	done  chan struct{}
}

func NewAsyncSink(logger logging.Logger, deliver Deliver, buffer int) *AsyncSink {
	if buffer <= 0 {
		buffer = 64
	}
	return &AsyncSink{
		logger:  logger.With("module", "audit"),
		deliver: deliver,
		timeout: 5 * time.Second,
		now:     time.Now,
		queue:   make(chan Event, buffer),
		done:    make(chan struct{}),
	}
}

func (s *AsyncSink) LogEvent(ctx context.Context, kind Kind, subject, message string, severity Severity) {
	e := Event{Kind: kind, Subject: subject, Message: message, Severity: severity, OccurredAt: s.now().UTC()}

	args := []any{"kind", e.Kind, "subject", e.Subject, "message", e.Message}
	switch severity {
	case SeverityError:
		s.logger.Error(ctx, "audit event", args...)
	case SeverityWarning:
		s.logger.Warn(ctx, "audit event", args...)
	default:
		s.logger.Info(ctx, "audit event", args...)
	}

	if s.deliver == nil {
		return
	}
	select {
	case s.queue <- e:
	default:
		s.logger.Warn(ctx, "audit queue full, event dropped", "kind", e.Kind, "subject", e.Subject)
	}
}

// Run delivers queued events until ctx is cancelled or Close is called.
func (s *AsyncSink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case e := <-s.queue:
			dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
			if err := s.deliver(dctx, e); err != nil {
				s.logger.Warn(ctx, "audit delivery failed", "kind", e.Kind, "error", err)
			}
			cancel()
		}
	}
}

func (s *AsyncSink) Close() {
	s.once.Do(func() { close(s.done) })
}

// LogSink only writes events to the logger.
type LogSink struct {
	*AsyncSink
}

func NewLogSink(logger logging.Logger) LogSink {
	return LogSink{NewAsyncSink(logger, nil, 1)}
}
