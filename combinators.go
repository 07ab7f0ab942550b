package dataflow

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// errNoMatch/errMatchFound are internal errgroup short-circuit signals, never
// returned to callers of ParallelAll/ParallelAny.
var (
	errNoMatch    = errors.New("dataflow: no match")
	errMatchFound = errors.New("dataflow: match found")
)

// WhenAllBound returns a [SAV] that binds to the slice of all inputs'
// values once every input has settled, one way or another. If one or more
// inputs fail, the result fails with the first failure in registration
// order (not completion order, which would make the outcome depend on
// handler-scheduling races) — first-error-wins, per spec.md §9's
// promise-combinator notes.
func WhenAllBound[T any](sched Scheduler, inputs ...*SAV[T]) *SAV[[]T] {
	result := NewSAV[[]T](WithScheduler(sched))
	if len(inputs) == 0 {
		_ = result.Bind(nil)
		return result
	}

	values := make([]T, len(inputs))
	errs := make([]error, len(inputs))
	remaining := len(inputs)
	var mu sync.Mutex

	for i, in := range inputs {
		i, in := i, in
		in.WhenBound(func(v T, err error) {
			mu.Lock()
			values[i] = v
			errs[i] = err
			remaining--
			done := remaining == 0
			mu.Unlock()
			if !done {
				return
			}
			for _, e := range errs {
				if e != nil {
					_ = result.BindError(e)
					return
				}
			}
			_ = result.Bind(values)
		})
	}
	return result
}

// ParallelMap applies fn to every element of in concurrently (one errgroup
// goroutine per element), returning a new slice in input order, or the first
// error encountered, per spec.md §9's supplemental combinator notes.
func ParallelMap[T, U any](ctx context.Context, in []T, fn func(context.Context, T) (U, error)) ([]U, error) {
	out := make([]U, len(in))
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range in {
		i, v := i, v
		g.Go(func() error {
			u, err := fn(gctx, v)
			if err != nil {
				return err
			}
			out[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ParallelFilter keeps only the elements of in for which keep returns true,
// preserving input order.
func ParallelFilter[T any](ctx context.Context, in []T, keep func(context.Context, T) (bool, error)) ([]T, error) {
	kept := make([]bool, len(in))
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range in {
		i, v := i, v
		g.Go(func() error {
			ok, err := keep(gctx, v)
			if err != nil {
				return err
			}
			kept[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make([]T, 0, len(in))
	for i, v := range in {
		if kept[i] {
			out = append(out, v)
		}
	}
	return out, nil
}

// ParallelFind returns the first element (in input order, not completion
// order) for which match returns true, or ok=false if none does.
func ParallelFind[T any](ctx context.Context, in []T, match func(context.Context, T) (bool, error)) (result T, ok bool, err error) {
	matched := make([]bool, len(in))
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range in {
		i, v := i, v
		g.Go(func() error {
			m, err := match(gctx, v)
			if err != nil {
				return err
			}
			matched[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var zero T
		return zero, false, err
	}
	for i, v := range in {
		if matched[i] {
			return v, true, nil
		}
	}
	var zero T
	return zero, false, nil
}

// ParallelAll reports whether match holds for every element of in,
// short-circuiting the group on the first failure or mismatch.
func ParallelAll[T any](ctx context.Context, in []T, match func(context.Context, T) (bool, error)) (bool, error) {
	g, gctx := errgroup.WithContext(ctx)
	for _, v := range in {
		v := v
		g.Go(func() error {
			ok, err := match(gctx, v)
			if err != nil {
				return err
			}
			if !ok {
				return errNoMatch
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if err == errNoMatch {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ParallelAllErrors is [ParallelAll], but never short-circuits on the first
// failing match call: every element is matched, and if more than one call
// returns an error, they are aggregated into an [AggregateError] (in input
// order) instead of reporting only the first — for callers who want every
// failure surfaced, per the AggregateError contract in errors.go.
func ParallelAllErrors[T any](ctx context.Context, in []T, match func(context.Context, T) (bool, error)) (bool, error) {
	oks := make([]bool, len(in))
	errs := make([]error, len(in))
	var wg sync.WaitGroup
	for i, v := range in {
		i, v := i, v
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := match(ctx, v)
			oks[i] = ok
			errs[i] = err
		}()
	}
	wg.Wait()

	var failures []error
	for _, e := range errs {
		if e != nil {
			failures = append(failures, e)
		}
	}
	switch len(failures) {
	case 0:
		for _, ok := range oks {
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case 1:
		return false, failures[0]
	default:
		return false, &AggregateError{Errors: failures}
	}
}

// ParallelAny reports whether match holds for at least one element of in.
func ParallelAny[T any](ctx context.Context, in []T, match func(context.Context, T) (bool, error)) (bool, error) {
	g, gctx := errgroup.WithContext(ctx)
	for _, v := range in {
		v := v
		g.Go(func() error {
			ok, err := match(gctx, v)
			if err != nil {
				return err
			}
			if ok {
				return errMatchFound
			}
			return nil
		})
	}
	err := g.Wait()
	switch err {
	case nil:
		return false, nil
	case errMatchFound:
		return true, nil
	default:
		return false, err
	}
}
