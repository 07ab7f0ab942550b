package dataflow

import (
	"context"
	"sync"
	"time"
)

// savState is the lifecycle state of a [SAV]. Pending never re-occurs once
// left; Bound and Failed are terminal.
type savState int32

const (
	savPending savState = iota
	savBound
	savFailed
)

// savHandler is a registered asynchronous continuation, scheduled exactly
// once when the cell settles (or immediately, via the Scheduler, if already
// settled at registration time).
type savHandler[T any] func(T, error)

// SAV is a single-assignment variable: a one-shot value cell that
// transitions at most once from unbound to either Bound(v) or Failed(e).
// Readers may block on [SAV.Read]/[SAV.TryRead], poll non-blockingly via
// [SAV.Poll], or register an asynchronous continuation via
// [SAV.WhenBound]/[SAV.Then].
//
// Grounded on the teacher's ChainedPromise (mutex-guarded state, a slice of
// pending handlers, a fan-out on settlement), restricted to this package's
// stricter single-assignment semantics: rebinding to an equal value is a
// silent no-op, rebinding to a different value or after failure raises
// [AlreadyBoundError].
//
// The zero value is not usable; construct with [NewSAV].
type SAV[T any] struct {
	sched Scheduler

	mu       sync.Mutex
	state    savState
	value    T
	err      error
	waiters  []chan struct{} // closed on settlement to release blocked readers
	handlers []savHandler[T]
}

// SAVOption configures a [SAV] at construction.
type SAVOption interface {
	applySAV(*savConfig)
}

type savConfig struct {
	scheduler Scheduler
}

// NewSAV creates a new unbound single-assignment variable.
func NewSAV[T any](opts ...SAVOption) *SAV[T] {
	cfg := savConfig{scheduler: defaultScheduler}
	for _, o := range opts {
		o.applySAV(&cfg)
	}
	return &SAV[T]{sched: cfg.scheduler}
}

// Bind transitions the cell from unbound to Bound(v). If the cell is
// already Bound to an equal value, Bind is a silent no-op. Otherwise, if
// the cell is already settled (Bound to a different value, or Failed),
// Bind returns an [AlreadyBoundError].
func (s *SAV[T]) Bind(v T) error {
	return s.settle(v, nil, false)
}

// BindUnique is like [SAV.Bind], but rejects any rebind unconditionally,
// even to an equal value.
func (s *SAV[T]) BindUnique(v T) error {
	return s.settle(v, nil, true)
}

// BindError transitions the cell from unbound to Failed(e). If the cell is
// already settled, returns an [AlreadyBoundError].
func (s *SAV[T]) BindError(err error) error {
	var zero T
	return s.settle(zero, err, true)
}

// settle performs the one-shot state transition, releasing waiters and
// scheduling handlers outside the lock.
func (s *SAV[T]) settle(v T, err error, strict bool) error {
	s.mu.Lock()

	if s.state != savPending {
		prior := s.priorLocked()
		if !strict && err == nil && s.state == savBound && equalAny(s.value, v) {
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()
		return &AlreadyBoundError{Prior: prior}
	}

	if err != nil {
		s.state = savFailed
		s.err = err
	} else {
		s.state = savBound
		s.value = v
	}

	waiters := s.waiters
	s.waiters = nil
	handlers := s.handlers
	s.handlers = nil
	finalValue, finalErr := s.value, s.err
	s.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
	for _, h := range handlers {
		h := h
		s.sched.Submit(func() { h(finalValue, finalErr) })
	}

	event := "sav.bind"
	if err != nil {
		event = "sav.bind_error"
	}
	logf(LevelDebug, event, "single-assignment variable settled", nil)
	return nil
}

// priorLocked returns whatever the cell is currently settled to, as an
// opaque value for [AlreadyBoundError]. Must be called with s.mu held.
func (s *SAV[T]) priorLocked() any {
	if s.state == savFailed {
		return s.err
	}
	return s.value
}


// Poll returns the bound value if the cell has settled successfully, or
// ok=false otherwise (including when the cell Failed — Poll never raises).
func (s *SAV[T]) Poll() (v T, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == savBound {
		return s.value, true
	}
	return v, false
}

// outcome returns the cell's settled value/error and true, or ok=false if
// still pending. Unlike [SAV.Poll], this also reports a Failed cell's
// error rather than silently reporting not-ok.
func (s *SAV[T]) outcome() (v T, err error, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == savPending {
		return v, nil, false
	}
	return s.value, s.err, true
}

// isBound reports whether the cell has left the unbound state, regardless
// of whether it bound successfully or failed. Used by [Select] as a
// non-authoritative hint and to drive the disabled-vector bookkeeping.
func (s *SAV[T]) isBound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != savPending
}

// Read blocks until the cell settles, then returns its value, or its error
// if it Failed. It returns an [ErrCancelled]- or [ErrTimeout]-wrapped
// ctx.Err() if ctx is cancelled or its deadline passes first, without
// altering the cell's state.
func (s *SAV[T]) Read(ctx context.Context) (T, error) {
	s.mu.Lock()
	if s.state != savPending {
		v, err := s.value, s.err
		s.mu.Unlock()
		return v, err
	}
	ready := make(chan struct{})
	s.waiters = append(s.waiters, ready)
	s.mu.Unlock()

	select {
	case <-ready:
		s.mu.Lock()
		v, err := s.value, s.err
		s.mu.Unlock()
		return v, err
	case <-ctx.Done():
		var zero T
		return zero, ctxErr(ctx.Err())
	}
}

// TryRead is like [SAV.Read], but returns an [ErrTimeout]-wrapped error if
// deadline elapses before the cell settles, without altering the cell's
// state.
func (s *SAV[T]) TryRead(deadline time.Duration) (T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()
	return s.Read(ctx)
}

// WhenBound registers h to be invoked, via this SAV's [Scheduler], exactly
// once with the cell's eventual value/error. If the cell has already
// settled, h is scheduled immediately. Handlers registered before binding
// are submitted to the Scheduler in registration order; when they run
// relative to each other is up to the Scheduler. Across distinct SAVs,
// handlers may interleave freely.
func (s *SAV[T]) WhenBound(h func(T, error)) {
	s.mu.Lock()
	if s.state != savPending {
		v, err := s.value, s.err
		s.mu.Unlock()
		s.sched.Submit(func() { h(v, err) })
		return
	}
	s.handlers = append(s.handlers, h)
	s.mu.Unlock()
}

// Then registers onValue/onError to run when this SAV settles, returning a
// new SAV bound to the result. If the cell Fails and onError is nil, the
// error is forwarded unchanged. If onError is provided and itself returns
// an error, the result SAV Fails with that error. Otherwise the result SAV
// is bound to the handler's returned value; for handlers that return a
// further *SAV[T] to flatten through, use [SAV.ThenFlatten].
func (s *SAV[T]) Then(onValue func(T) (T, error), onError func(error) (T, error)) *SAV[T] {
	result := NewSAV[T](WithScheduler(s.sched))
	s.WhenBound(func(v T, err error) {
		if err != nil {
			if onError == nil {
				_ = result.BindError(err)
				return
			}
			nv, nerr := onError(err)
			if nerr != nil {
				_ = result.BindError(nerr)
				return
			}
			_ = result.Bind(nv)
			return
		}
		if onValue == nil {
			_ = result.Bind(v)
			return
		}
		nv, nerr := onValue(v)
		if nerr != nil {
			_ = result.BindError(nerr)
			return
		}
		_ = result.Bind(nv)
	})
	return result
}

// ThenFlatten is like [SAV.Then], but for handlers that produce a further
// asynchronous result: onValue/onError return a *SAV[T] that result
// flattens to, rather than a value binding result directly. This is the
// shape described in spec.md §4.2 ("If the handler returns a SAV, r is
// bound to that SAV's eventual outcome").
func (s *SAV[T]) ThenFlatten(onValue func(T) *SAV[T], onError func(error) *SAV[T]) *SAV[T] {
	result := NewSAV[T](WithScheduler(s.sched))
	adopt := func(next *SAV[T]) {
		next.WhenBound(func(v T, err error) {
			if err != nil {
				_ = result.BindError(err)
				return
			}
			_ = result.Bind(v)
		})
	}
	s.WhenBound(func(v T, err error) {
		if err != nil {
			if onError == nil {
				_ = result.BindError(err)
				return
			}
			adopt(onError(err))
			return
		}
		if onValue == nil {
			_ = result.Bind(v)
			return
		}
		adopt(onValue(v))
	})
	return result
}
