package dataflow

import (
	"context"
	"sync"
	"time"

	"github.com/joeycumines/go-dataflow/internal/ring"
)

// ChannelOption configures a [PTP] or [Broadcast] at construction.
type ChannelOption interface {
	applyChannel(*channelConfig)
}

type channelConfig struct {
	scheduler Scheduler
	capacity  int // 0 means unbounded
}

type capacityOption int

func (o capacityOption) applyChannel(c *channelConfig) { c.capacity = int(o) }

// WithCapacity bounds a [PTP] (or a [Broadcast] subscriber's buffered
// backlog) to n queued-but-unread values; Write blocks once n values are
// queued and no reader is waiting. n <= 0 means unbounded (the default).
func WithCapacity(n int) ChannelOption {
	return capacityOption(n)
}

func nextPow2(n int) int {
	if n < 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// ptpCore is the shared FIFO-queue-plus-waiters engine behind both [PTP]
// (read+write sides) and a [Broadcast] subscriber's [ReadView] (read side
// only, fed by the broadcast's Write). Grounded on spec.md §4.3's PTP
// invariants (P1: at every quiescent moment at least one of {value queue,
// waiter queue} is empty; P2: each value goes to exactly one reader) and on
// the teacher's ChainedPromise fan-out-under-lock pattern, generalized from
// a one-shot settlement to a repeatable value stream.
type ptpCore[T any] struct {
	sched Scheduler

	mu       sync.Mutex
	fifo     []T          // unbounded queue, used when capacity == 0
	bounded  *ring.Buffer[T]
	capacity int
	notFull  []chan struct{} // writers parked on a full bounded queue
	waiters  []chan T        // readers parked with no value to dequeue
	handlers []func(T, error)
}

func newPTPCore[T any](cfg channelConfig) *ptpCore[T] {
	c := &ptpCore[T]{sched: cfg.scheduler, capacity: cfg.capacity}
	if cfg.capacity > 0 {
		c.bounded = ring.New[T](nextPow2(cfg.capacity))
	}
	return c
}

func (c *ptpCore[T]) queueLen() int {
	if c.bounded != nil {
		return c.bounded.Len()
	}
	return len(c.fifo)
}

// write enqueues v, or hands it directly to the longest-waiting reader if
// one is parked (spec.md §4.3: "If a reader is waiting, hand v directly to
// the longest-waiting reader and do not enqueue"). It blocks on ctx if the
// channel is bounded and full and no reader is waiting.
func (c *ptpCore[T]) write(ctx context.Context, v T) error {
	for {
		c.mu.Lock()
		if len(c.waiters) > 0 {
			w := c.waiters[0]
			c.waiters = c.waiters[1:]
			c.mu.Unlock()
			w <- v
			c.notifyHandlers(v, nil)
			return nil
		}
		if c.capacity <= 0 || c.queueLen() < c.capacity {
			if c.bounded != nil {
				c.bounded.PushBack(v)
			} else {
				c.fifo = append(c.fifo, v)
			}
			c.mu.Unlock()
			c.notifyHandlers(v, nil)
			return nil
		}
		// Bounded and full: park until a reader drains a slot.
		blocked := make(chan struct{})
		c.notFull = append(c.notFull, blocked)
		c.mu.Unlock()

		select {
		case <-blocked:
			// loop around and retry — another writer may have raced us
		case <-ctx.Done():
			c.mu.Lock()
			removed := false
			for i, w := range c.notFull {
				if w == blocked {
					c.notFull = append(c.notFull[:i:i], c.notFull[i+1:]...)
					removed = true
					break
				}
			}
			if !removed && len(c.notFull) > 0 {
				// This writer's wake-up was already spent; pass it on.
				close(c.notFull[0])
				c.notFull = c.notFull[1:]
			}
			c.mu.Unlock()
			return ctxErr(ctx.Err())
		}
	}
}

// notifyHandlers runs every registered WheneverBound handler for v via the
// scheduler, independent of (and without competing with) the value/waiter
// queues — the "tap alongside" semantics spec.md §4.3/§9 require.
func (c *ptpCore[T]) notifyHandlers(v T, err error) {
	c.mu.Lock()
	handlers := c.handlers
	c.mu.Unlock()
	for _, h := range handlers {
		h := h
		c.sched.Submit(func() { h(v, err) })
	}
}

// poll returns a queued value without blocking, or ok=false if none is
// available.
func (c *ptpCore[T]) poll() (v T, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dequeueLocked()
}

// dequeueLocked pops the oldest queued value and releases one blocked
// writer, if any. Must be called with c.mu held.
func (c *ptpCore[T]) dequeueLocked() (v T, ok bool) {
	if c.bounded != nil {
		v, ok = c.bounded.PopFront()
	} else if len(c.fifo) > 0 {
		v, c.fifo = c.fifo[0], c.fifo[1:]
		ok = true
	}
	if ok && len(c.notFull) > 0 {
		w := c.notFull[0]
		c.notFull = c.notFull[1:]
		close(w)
	}
	return v, ok
}

// read blocks until a value is available or ctx is cancelled.
func (c *ptpCore[T]) read(ctx context.Context) (T, error) {
	c.mu.Lock()
	if v, ok := c.dequeueLocked(); ok {
		c.mu.Unlock()
		return v, nil
	}
	ready := make(chan T, 1)
	c.waiters = append(c.waiters, ready)
	c.mu.Unlock()

	select {
	case v := <-ready:
		return v, nil
	case <-ctx.Done():
		c.mu.Lock()
		for i, w := range c.waiters {
			if w == ready {
				c.waiters = append(c.waiters[:i:i], c.waiters[i+1:]...)
				c.mu.Unlock()
				var zero T
				return zero, ctxErr(ctx.Err())
			}
		}
		c.mu.Unlock()
		// A writer already claimed this waiter; take the value it hands over.
		return <-ready, nil
	}
}

// tryRead is read with a deadline, returning an ErrTimeout-wrapped error on
// expiry.
func (c *ptpCore[T]) tryRead(deadline time.Duration) (T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()
	return c.read(ctx)
}

// wheneverBound registers h as a for-each-value tap; see notifyHandlers.
func (c *ptpCore[T]) wheneverBound(h func(T, error)) {
	c.mu.Lock()
	c.handlers = append(c.handlers, h)
	c.mu.Unlock()
}

// PTP is a point-to-point FIFO channel: each value written is delivered to
// exactly one reader, in write order. See spec.md §4.3.
//
// The zero value is not usable; construct with [NewPTP].
type PTP[T any] struct {
	core *ptpCore[T]
}

// NewPTP creates a PTP channel. By default it is unbounded (Write never
// blocks); pass [WithCapacity] to bound it.
func NewPTP[T any](opts ...ChannelOption) *PTP[T] {
	cfg := channelConfig{scheduler: defaultScheduler}
	for _, o := range opts {
		o.applyChannel(&cfg)
	}
	return &PTP[T]{core: newPTPCore[T](cfg)}
}

// Write enqueues v, or hands it directly to the longest-waiting reader if
// one is currently blocked in Read/TryRead. If the channel was constructed
// with [WithCapacity] and is full, Write blocks until a slot frees up or
// ctx is cancelled.
func (p *PTP[T]) Write(ctx context.Context, v T) error {
	return p.core.write(ctx, v)
}

// Poll returns a queued value without blocking, or ok=false if none is
// queued.
func (p *PTP[T]) Poll() (v T, ok bool) {
	return p.core.poll()
}

// Read blocks until a value is written or ctx is cancelled.
func (p *PTP[T]) Read(ctx context.Context) (T, error) {
	return p.core.read(ctx)
}

// TryRead is Read with a deadline, returning [ErrTimeout] on expiry.
func (p *PTP[T]) TryRead(deadline time.Duration) (T, error) {
	return p.core.tryRead(deadline)
}

// WheneverBound registers h to run, via this PTP's [Scheduler], once per
// value written to the channel — a broadcast subscription layered atop the
// point-to-point queue. Each invocation is a separate Submit, made in write
// order; with a Scheduler that runs tasks concurrently (such as
// [GoroutineScheduler]) invocations for successive values may run at the
// same time and complete in any order. Handler delivery never consumes a
// value on behalf of ordinary Read callers: both see every value (spec.md
// §4.3/§9's resolved "tap alongside" semantics).
func (p *PTP[T]) WheneverBound(h func(T, error)) {
	p.core.wheneverBound(h)
}
