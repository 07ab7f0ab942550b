package dataflow

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// LazySAV wraps a [SAV] whose value is computed on first demand rather than
// supplied by the caller up front. The initializer runs at most once, the
// first time the cell is observed via [LazySAV.Read], [LazySAV.TryRead],
// [LazySAV.WhenBound], or [LazySAV.Then] — never merely from
// [LazySAV.Poll], which must stay non-blocking and side-effect-free. See
// spec.md §4.7.
//
// Grounded on the teacher's sync.Once-guarded lazy initialization idiom
// (seen across the monorepo wherever a resource is built on first use),
// composed here with [SAV]'s settlement machinery: the initializer's
// outcome becomes the SAV's Bind/BindError call.
//
// The zero value is not usable; construct with [NewLazySAV].
type LazySAV[T any] struct {
	sav     *SAV[T]
	init    func() (T, error)
	initSAV func() (*SAV[T], error)
	started atomic.Bool
}

// NewLazySAV creates a LazySAV that will call init exactly once, on first
// observation, to produce its value.
func NewLazySAV[T any](init func() (T, error), opts ...SAVOption) *LazySAV[T] {
	return &LazySAV[T]{sav: NewSAV[T](opts...), init: init}
}

// NewLazySAVFlatten creates a LazySAV whose initializer itself produces a
// further asynchronous result: once init runs, on first observation, the
// LazySAV flattens to that *SAV[T]'s eventual outcome rather than binding it
// directly, per spec.md §4.7 ("if i returns a SAV, the lazy SAV flattens to
// that SAV's eventual outcome").
func NewLazySAVFlatten[T any](init func() (*SAV[T], error), opts ...SAVOption) *LazySAV[T] {
	return &LazySAV[T]{sav: NewSAV[T](opts...), initSAV: init}
}

// trigger runs the initializer exactly once, across any number of
// concurrent callers, binding the underlying SAV to its outcome (flattening
// through a further SAV, for a LazySAV built with [NewLazySAVFlatten]). If
// init returns an error or panics, the cell fails with an
// [InitializerFailureError] wrapping that error or the recovered panic.
func (l *LazySAV[T]) trigger() {
	if !l.started.CompareAndSwap(false, true) {
		return
	}
	l.sav.sched.Submit(func() {
		if l.initSAV != nil {
			next, err := l.runInitSAV()
			if err != nil {
				_ = l.sav.BindError(err)
				return
			}
			next.WhenBound(func(v T, err error) {
				if err != nil {
					_ = l.sav.BindError(err)
					return
				}
				_ = l.sav.Bind(v)
			})
			return
		}
		v, err := l.runInit()
		if err != nil {
			_ = l.sav.BindError(err)
			return
		}
		_ = l.sav.Bind(v)
	})
}

func (l *LazySAV[T]) runInit() (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			rerr, ok := r.(error)
			if !ok {
				rerr = fmt.Errorf("lazy sav initializer panicked: %v", r)
			}
			err = &InitializerFailureError{Cause: rerr}
		}
	}()
	v, err = l.init()
	if err != nil {
		err = &InitializerFailureError{Cause: err}
	}
	return v, err
}

func (l *LazySAV[T]) runInitSAV() (next *SAV[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			rerr, ok := r.(error)
			if !ok {
				rerr = fmt.Errorf("lazy sav initializer panicked: %v", r)
			}
			err = &InitializerFailureError{Cause: rerr}
		}
	}()
	next, err = l.initSAV()
	if err != nil {
		err = &InitializerFailureError{Cause: err}
	}
	return next, err
}

// Poll returns the value if already computed and bound, without ever
// triggering the initializer. ok is false both before the initializer has
// run and while it is still running.
func (l *LazySAV[T]) Poll() (v T, ok bool) {
	return l.sav.Poll()
}

// Read triggers the initializer (if not already started) and blocks until
// it completes, per [SAV.Read]'s semantics.
func (l *LazySAV[T]) Read(ctx context.Context) (T, error) {
	l.trigger()
	return l.sav.Read(ctx)
}

// TryRead is Read with a deadline.
func (l *LazySAV[T]) TryRead(deadline time.Duration) (T, error) {
	l.trigger()
	return l.sav.TryRead(deadline)
}

// WhenBound triggers the initializer (if not already started) and
// registers h per [SAV.WhenBound]'s semantics.
func (l *LazySAV[T]) WhenBound(h func(T, error)) {
	l.trigger()
	l.sav.WhenBound(h)
}

// Then triggers the initializer and chains onValue/onError per
// [SAV.Then]'s semantics.
func (l *LazySAV[T]) Then(onValue func(T) (T, error), onError func(error) (T, error)) *SAV[T] {
	l.trigger()
	return l.sav.Then(onValue, onError)
}
