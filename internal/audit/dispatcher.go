package audit

import (
	"context"
	"math/bits"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Config controls how events are queued ahead of the sink.
type Config struct {
	Enabled bool
	// BufferSize is the queue depth. Values below 1 become 1.
	BufferSize int
	// DropIfFull discards an event instead of blocking the request path when
	// the queue is full.
	DropIfFull bool
	// Logger reports dropped events and sink panics. Nil means zap.NewNop.
	Logger *zap.Logger
}

// Dispatcher hands events from request goroutines to a single delivery
// goroutine that owns the sink.
type Dispatcher struct {
	cfg    Config
	sink   Sink
	logger *zap.Logger
	queue  chan Event
	stop   chan struct{}
	wg     sync.WaitGroup

	dropped  atomic.Uint64
	panicked atomic.Uint64
	closed   atomic.Bool
	stopOnce sync.Once

	mu     sync.Mutex
	byType map[string]uint64
}

// NewDispatcher starts the delivery goroutine. It returns nil when auditing is
// disabled; every method is safe on a nil Dispatcher.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		queue:  make(chan Event, cfg.BufferSize),
		stop:   make(chan struct{}),
		byType: make(map[string]uint64),
	}
	d.wg.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// drain flushes what was queued before Close.
func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.panicked.Add(1)
			d.logger.Error("audit sink panicked",
				zap.String("event_type", ev.EventType),
				zap.String("event_id", ev.ID),
				zap.Any("panic", r),
			)
		}
	}()
	d.sink.Emit(context.Background(), ev)
}

// Emit queues ev. With DropIfFull a full queue drops the event at once;
// otherwise Emit waits for room until ctx is done. Events emitted after Close
// are discarded without being counted.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- ev:
		case <-d.stop:
		default:
			d.drop(ev, "queue_full")
		}
		return
	}

	select {
	case d.queue <- ev:
	case <-d.stop:
	case <-ctx.Done():
		d.drop(ev, "request_done")
	}
}

func (d *Dispatcher) drop(ev Event, reason string) {
	n := d.dropped.Add(1)
	d.mu.Lock()
	d.byType[ev.EventType]++
	d.mu.Unlock()

	// Logged on the 1st, 2nd, 4th, 8th... drop.
	if bits.OnesCount64(n) != 1 {
		return
	}
	d.logger.Warn("audit event dropped",
		zap.String("event_type", ev.EventType),
		zap.String("session", ev.Session),
		zap.String("reason", reason),
		zap.Uint64("dropped_total", n),
	)
}

// Close stops accepting events, delivers the queued ones, and waits for the
// delivery goroutine. It is idempotent.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.closed.Store(true)
		close(d.stop)
		d.wg.Wait()
	})
}

// Dropped returns the number of events discarded under backpressure.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// DroppedByType returns drop counts keyed by event type.
func (d *Dispatcher) DroppedByType() map[string]uint64 {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]uint64, len(d.byType))
	for k, v := range d.byType {
		out[k] = v
	}
	return out
}

// SinkPanics returns how many deliveries panicked inside the sink.
func (d *Dispatcher) SinkPanics() uint64 {
	if d == nil {
		return 0
	}
	return d.panicked.Load()
}
