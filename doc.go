// Package dataflow provides a small set of deterministic, thread-safe
// coordination primitives that let independent tasks exchange values without
// explicit locking: single-assignment variables ([SAV]), point-to-point
// ([PTP]) and [Broadcast] channels, a non-deterministic multi-way [Select]
// operator, and a bounded [LRU] cache for memoizing pure computations.
//
// # Architecture
//
// Producers [SAV.Bind] values or [PTP.Write] them into channels. Consumers
// either block on Read or register a handler via WhenBound/WheneverBound.
// [Select] composes multiple channels into a single "first ready wins"
// operation. [WhenAllBound] sits atop SAV for functional composition; the
// Parallel* combinators apply a function concurrently across a slice.
//
// Handler and select-notification execution is never performed inline on
// the binding/writing goroutine; every primitive accepts a [Scheduler] to
// decouple "a value became available" from "code reacting to it runs",
// which this package's callers provide (see [GoroutineScheduler] and
// [PoolScheduler] for two reference implementations).
//
// [ReadBatch] and [Batcher] coalesce many individual reads or writes into
// groups on the consumer and producer side respectively, for callers
// bounding round trips to an expensive downstream collaborator.
//
// # Thread Safety
//
// Every exported type in this package is safe for concurrent use from
// multiple goroutines. Blocking operations ([SAV.Read], [SAV.TryRead],
// [PTP.Read], [PTP.TryRead], [Select.Do]) accept a [context.Context] and,
// on cancellation, return an [ErrCancelled]- or [ErrTimeout]-wrapped
// ctx.Err() without altering the underlying cell's state.
//
// # Usage
//
//	v := dataflow.NewSAV[int]()
//	go func() { v.Bind(42) }()
//	n, err := v.Read(context.Background())
package dataflow
