package audit

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultBatchSize     = 100
	defaultFlushInterval = 500 * time.Millisecond
	drainTimeout         = 5 * time.Second
)

// Fanout buffers events and delivers them to every sink from a single
// background loop. Enqueue never blocks.
type Fanout struct {
	buffer   *RingBuffer
	sinks    []Sink
	breakers map[string]*CircuitBreaker
	metrics  *Metrics
	logger   *slog.Logger

	batchSize int
	interval  time.Duration
	wake      chan struct{}
}

// Option configures a Fanout.
type Option func(*Fanout)

func WithBufferCapacity(n int) Option {
	return func(f *Fanout) { f.buffer = NewRingBuffer(n) }
}

func WithBatchSize(n int) Option {
	return func(f *Fanout) {
		if n > 0 {
			f.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) Option {
	return func(f *Fanout) {
		if d > 0 {
			f.interval = d
		}
	}
}

// WithBreaker replaces the default per-sink breaker settings.
func WithBreaker(threshold int, cooldown time.Duration) Option {
	return func(f *Fanout) {
		for name := range f.breakers {
			f.breakers[name] = NewCircuitBreaker(threshold, cooldown)
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(f *Fanout) { f.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Fanout) { f.logger = logger }
}

// NewFanout creates a Fanout for the given sinks. Run must be started for
// anything to be delivered.
func NewFanout(sinks []Sink, opts ...Option) *Fanout {
	f := &Fanout{
		buffer:    NewRingBuffer(defaultBufferCapacity),
		sinks:     sinks,
		breakers:  make(map[string]*CircuitBreaker, len(sinks)),
		logger:    slog.Default(),
		batchSize: defaultBatchSize,
		interval:  defaultFlushInterval,
		wake:      make(chan struct{}, 1),
	}
	for _, s := range sinks {
		f.breakers[s.Name()] = NewCircuitBreaker(0, 0)
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Enqueue buffers an event and nudges the delivery loop.
func (f *Fanout) Enqueue(event Event) {
	if f.buffer.Enqueue(event) {
		f.metrics.incDropped()
	}
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of buffered events.
func (f *Fanout) Pending() int {
	return f.buffer.Len()
}

// Run delivers batches until ctx is done, then drains what is left with a
// bounded context.
func (f *Fanout) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
			f.flush(drainCtx)
			cancel()
			return ctx.Err()
		case <-f.wake:
			f.flush(ctx)
		case <-ticker.C:
			f.flush(ctx)
		}
	}
}

func (f *Fanout) flush(ctx context.Context) {
	for ctx.Err() == nil {
		batch := f.buffer.DequeueBatch(f.batchSize)
		if len(batch) == 0 {
			return
		}
		for _, sink := range f.sinks {
			f.deliver(ctx, sink, batch)
		}
	}
}

func (f *Fanout) deliver(ctx context.Context, sink Sink, batch []Event) {
	name := sink.Name()
	breaker := f.breakers[name]
	if !breaker.Allow() {
		f.metrics.incFailed(name, len(batch))
		return
	}

	if err := sink.Deliver(ctx, batch); err != nil {
		f.metrics.incFailed(name, len(batch))
		if breaker.RecordFailure() {
			f.metrics.setBreakerOpen(name, true)
			f.logger.WarnContext(ctx, "ledger event sink circuit opened", "sink", name, "error", err)
			return
		}
		f.logger.WarnContext(ctx, "ledger event delivery failed",
			"sink", name,
			"events", len(batch),
			"error", err,
		)
		return
	}

	breaker.RecordSuccess()
	f.metrics.setBreakerOpen(name, false)
	f.metrics.incDelivered(name, len(batch))
}
