package dataflow

import (
	"context"
	"sync"
	"time"
)

// Broadcast is a fan-out channel: every value written is delivered to every
// subscriber's [ReadView], each positioned at subscription time (a
// subscriber never sees values written before it subscribed). See spec.md
// §4.4.
//
// Grounded on the teacher's ChainedPromise fan-out-under-lock pattern
// (settle once, notify every waiter), generalized here to a repeatable,
// per-subscriber queue built from the same [ptpCore] engine [PTP] uses —
// each ReadView is a read-only cursor fed by Broadcast.Write, rather than an
// independently-writable channel.
//
// The zero value is not usable; construct with [NewBroadcast].
type Broadcast[T any] struct {
	sched Scheduler
	cfg   channelConfig

	mu   sync.Mutex // serializes Write against CreateReadChannel and against other Writes, per spec.md §4.4
	subs []*ptpCore[T]
}

// NewBroadcast creates a Broadcast channel with no subscribers.
func NewBroadcast[T any](opts ...ChannelOption) *Broadcast[T] {
	cfg := channelConfig{scheduler: defaultScheduler}
	for _, o := range opts {
		o.applyChannel(&cfg)
	}
	return &Broadcast[T]{sched: cfg.scheduler, cfg: cfg}
}

// Write delivers v to every ReadView currently subscribed. Write holds a
// single lock across the whole fan-out, so it is serialized both against
// CreateReadChannel (a subscriber created concurrently with a Write either
// sees v or doesn't — never a torn view) and against other concurrent Write
// calls (every subscriber observes the same total write order, per spec.md
// §4.4 invariant B1).
func (b *Broadcast[T]) Write(ctx context.Context, v T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.subs {
		if err := s.write(ctx, v); err != nil {
			return err
		}
	}
	logf(LevelDebug, "broadcast.write", "value delivered to subscribers", map[string]any{"subscribers": len(b.subs)})
	return nil
}

// CreateReadChannel subscribes a new [ReadView], positioned to receive only
// values written after this call returns.
func (b *Broadcast[T]) CreateReadChannel() *ReadView[T] {
	core := newPTPCore[T](b.cfg)
	b.mu.Lock()
	b.subs = append(b.subs, core)
	b.mu.Unlock()
	return &ReadView[T]{core: core}
}

// ReadView is a single subscriber's read-only cursor into a [Broadcast].
// Every value the Broadcast was written after this view's subscription is
// delivered exactly once, in write order, to this view (independent of
// every other subscriber's consumption).
type ReadView[T any] struct {
	core *ptpCore[T]
}

// Poll returns a queued value without blocking, or ok=false if none is
// queued.
func (r *ReadView[T]) Poll() (v T, ok bool) {
	return r.core.poll()
}

// Read blocks until a value is delivered or ctx is cancelled.
func (r *ReadView[T]) Read(ctx context.Context) (T, error) {
	return r.core.read(ctx)
}

// TryRead is Read with a deadline, returning [ErrTimeout] on expiry.
func (r *ReadView[T]) TryRead(deadline time.Duration) (T, error) {
	return r.core.tryRead(deadline)
}

// WheneverBound registers h to run, via the Broadcast's [Scheduler], once
// per value delivered to this view. Each invocation is a separate Submit,
// made in write order; with a Scheduler that runs tasks concurrently,
// invocations for successive values may complete in any order.
func (r *ReadView[T]) WheneverBound(h func(T, error)) {
	r.core.wheneverBound(h)
}
