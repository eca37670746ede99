package notifier

import (
	"context"
	"log/slog"
	"sync"

	"custodia/internal/audit/models"
)

// Sink receives High and Critical entries forwarded to an external alerting
// channel (SIEM, pager). Implementations may block; the Forwarder shields the
// logging hot path from them.
type Sink interface {
	Notify(ctx context.Context, entry *models.Entry)
}

// LogSink is the default sink: it writes alerts to the structured log.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Notify(ctx context.Context, entry *models.Entry) {
	s.Logger.WarnContext(ctx, "audit alert",
		"entry_id", entry.ID,
		"event_type", entry.EventType,
		"severity", entry.Severity,
		"action", entry.Action,
		"resource", entry.Resource,
		"result", entry.Result,
	)
}

// Forwarder fans alert-worthy entries out to a sink from a background
// goroutine. Sends are non-blocking: when the buffer is full the alert is
// dropped and counted, never delaying the audit write that triggered it.
type Forwarder struct {
	sink    Sink
	entries chan *models.Entry
	wg      sync.WaitGroup
	logger  *slog.Logger

	mu      sync.Mutex
	dropped int
	closed  bool
}

// ForwarderOption configures the Forwarder.
type ForwarderOption func(*Forwarder)

// WithBuffer overrides the alert buffer size when greater than zero.
func WithBuffer(size int) ForwarderOption {
	return func(f *Forwarder) {
		if size > 0 {
			f.entries = make(chan *models.Entry, size)
		}
	}
}

// WithLogger overrides the logger used for drop reporting.
func WithLogger(logger *slog.Logger) ForwarderOption {
	return func(f *Forwarder) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewForwarder starts a forwarder draining into the sink.
func NewForwarder(sink Sink, opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{
		sink:    sink,
		entries: make(chan *models.Entry, 64),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.wg.Add(1)
	go f.drain()
	return f
}

func (f *Forwarder) drain() {
	defer f.wg.Done()
	for entry := range f.entries {
		f.sink.Notify(context.Background(), entry)
	}
}

// Forward queues an entry for the sink without blocking. The send happens
// under the same mutex Close takes before closing the channel, so a late
// Forward during shutdown is a no-op rather than a send on a closed channel.
func (f *Forwarder) Forward(entry *models.Entry) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	var full bool
	select {
	case f.entries <- entry:
	default:
		f.dropped++
		full = true
	}
	f.mu.Unlock()

	if full {
		f.logger.Warn("alert buffer full, notification dropped",
			"entry_id", entry.ID,
			"severity", entry.Severity,
		)
	}
}

// Dropped returns how many alerts were discarded due to a full buffer.
func (f *Forwarder) Dropped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Close stops accepting alerts and waits for queued ones to reach the sink.
func (f *Forwarder) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.mu.Unlock()
	close(f.entries)
	f.wg.Wait()
}
