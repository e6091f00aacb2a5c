package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncSink_DeliversInBackground(t *testing.T) {
	got := make(chan Event, 1)
	s := NewAsyncSink(logging.NewNop(), func(ctx context.Context, e Event) error {
		got <- e
		return nil
	}, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.LogEvent(ctx, KindConflict, "draft-1", "kept local copy", SeverityWarning)

	select {
	case e := <-got:
		assert.Equal(t, KindConflict, e.Kind)
		assert.Equal(t, "draft-1", e.Subject)
		assert.Equal(t, SeverityWarning, e.Severity)
		assert.False(t, e.OccurredAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestAsyncSink_NeverBlocksWhenFull(t *testing.T) {
	s := NewAsyncSink(logging.NewNop(), func(ctx context.Context, e Event) error { return nil }, 1)

	done := make(chan struct{})
	go func() {
		// nobody is running the worker: the second event must be dropped
		s.LogEvent(context.Background(), KindStorage, "a", "1", SeverityError)
		s.LogEvent(context.Background(), KindStorage, "b", "2", SeverityError)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("LogEvent blocked")
	}
	assert.Len(t, s.queue, 1)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAsyncSink_DeliveryErrorIsLoggedOnly(t *testing.T) {
	var buf lockedBuffer
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	delivered := make(chan struct{})
	s := NewAsyncSink(logger, func(ctx context.Context, e Event) error {
		defer close(delivered)
		return errors.New("server down")
	}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	s.LogEvent(ctx, KindEncryption, "draft-2", "encrypt failed", SeverityError)
	<-delivered
	cancel()

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "audit delivery failed")
	}, time.Second, 10*time.Millisecond)
}

func TestAsyncSink_CloseStopsRun(t *testing.T) {
	s := NewAsyncSink(logging.NewNop(), func(ctx context.Context, e Event) error { return nil }, 1)
	stopped := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(stopped)
	}()
	s.Close()
	s.Close()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestLogSink_WritesLog(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	NewLogSink(logger).LogEvent(context.Background(), KindMigration, "draft-3", "schema upgraded", SeverityInfo)

	out := buf.String()
	assert.Contains(t, out, "audit event")
	assert.Contains(t, out, "kind=migration")
	assert.Contains(t, out, "subject=draft-3")
}
