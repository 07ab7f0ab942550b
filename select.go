package dataflow

import (
	"context"
	"math/rand/v2"
	"sync"
)

// SelectOption configures a [Select] at construction.
type SelectOption interface {
	applySelect(*selectConfig)
}

type selectConfig struct {
	scheduler Scheduler
}

// Pollable is a single channel a [Select] can choose among: a [SAV], a
// [PTP], or a [Broadcast] [ReadView]. Obtain one with [SAVCase], [PTPCase],
// or [ReadViewCase].
type Pollable interface {
	// trySelect attempts to claim one value without blocking. For a PTP or
	// ReadView case this consumes a queued value, same as Poll. For a SAV
	// case it is non-consuming (the SAV's value persists), but trySelect
	// returns ok=false on every call after this Pollable's first successful
	// claim — see [Select]'s disabled-vector note.
	trySelect() (value any, err error, ok bool)
	// subscribe registers ready to run (via the source's own Scheduler)
	// whenever the source may be worth polling again. Called exactly once,
	// when the case is added to a Select.
	subscribe(ready func())
}

type savCase[T any] struct {
	s        *SAV[T]
	mu       sync.Mutex
	consumed bool
}

// SAVCase wraps s as a [Select] case. A SAV case is claimable at most once:
// spec.md's disabled-vector bookkeeping exists precisely because a bound
// SAV's value never goes away on its own the way a PTP/ReadView's queue
// drains, so without it a Select would be free to reselect the same
// already-observed SAV forever, starving every other case.
func SAVCase[T any](s *SAV[T]) Pollable {
	return &savCase[T]{s: s}
}

func (c *savCase[T]) trySelect() (any, error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.consumed {
		return nil, nil, false
	}
	v, err, ok := c.s.outcome()
	if !ok {
		return nil, nil, false
	}
	c.consumed = true
	return v, err, true
}

func (c *savCase[T]) subscribe(ready func()) {
	c.s.WhenBound(func(T, error) { ready() })
}

func (c *savCase[T]) consumedForSelect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.consumed
}

type ptpCase[T any] struct{ p *PTP[T] }

// PTPCase wraps p as a [Select] case. PTP cases are always live: Poll drains
// the channel's own FIFO, which refills independently of Select.
func PTPCase[T any](p *PTP[T]) Pollable {
	return &ptpCase[T]{p: p}
}

func (c *ptpCase[T]) trySelect() (any, error, bool) {
	v, ok := c.p.Poll()
	return v, nil, ok
}

func (c *ptpCase[T]) subscribe(ready func()) {
	c.p.core.wheneverBound(func(T, error) { ready() })
}

type readViewCase[T any] struct{ r *ReadView[T] }

// ReadViewCase wraps r (a [Broadcast] subscriber) as a [Select] case.
func ReadViewCase[T any](r *ReadView[T]) Pollable {
	return &readViewCase[T]{r: r}
}

func (c *readViewCase[T]) trySelect() (any, error, bool) {
	v, ok := c.r.Poll()
	return v, nil, ok
}

func (c *readViewCase[T]) subscribe(ready func()) {
	c.r.core.wheneverBound(func(T, error) { ready() })
}

// SelectRequest is a single pending request against a [Select]: a mask
// restricting which case indices it will accept (nil accepts every case),
// and a callback invoked at most once, with the winning case's index and
// claimed value/error. Per spec.md §4.5/§9's Select Request invariant S1,
// onValue is never invoked more than once for a given SelectRequest.
type SelectRequest struct {
	mask    []bool
	onValue func(index int, value any, err error)
}

// NewSelectRequest creates a request that will accept any registered case.
// Pass mask to restrict it to a subset of case indices (by position,
// matching [Select.Add]'s return values); a nil or short mask treats
// unlisted indices as accepted for nil, rejected for a short non-nil mask
// beyond its length.
func NewSelectRequest(onValue func(index int, value any, err error), mask ...[]bool) *SelectRequest {
	req := &SelectRequest{onValue: onValue}
	if len(mask) > 0 {
		req.mask = mask[0]
	}
	return req
}

func (req *SelectRequest) accepts(idx int) bool {
	return req.mask == nil || (idx < len(req.mask) && req.mask[idx])
}

// SelectResult is the synchronous outcome [Select.Do] returns: the winning
// case's index (as returned by [Select.Add]) and its claimed value/error.
type SelectResult struct {
	CaseIndex int
	Value     any
	Err       error
}

// Select performs non-deterministic multi-way selection over a registered
// set of [Pollable] cases, per spec.md §4.5.
//
// Grounded on the teacher's eventloop Selector (a mutex-guarded slice of
// waitable sources, polled in a randomized order for fairness under an
// external scheduler), generalized from fd-readiness polling to this
// package's value-bearing cases, plus the disabled-vector bookkeeping and
// pending-request queue spec.md's Select Core state machine calls for.
//
// Lock ordering: Select's own mutex sits above every channel's internal
// lock. [Select.doSelect] and the bound-notification path ([Select.ready])
// both hold Select's lock for their entire body, including while calling a
// case's non-blocking trySelect (which takes the case's own leaf lock) —
// safe because trySelect never calls back into Select while holding that
// leaf lock. A [SelectRequest]'s onValue callback is invoked while Select's
// lock is held, so it must not call back into the Select.
//
// The zero value is not usable; construct with [NewSelect].
type Select struct {
	sched Scheduler

	mu       sync.Mutex
	cases    []Pollable
	disabled []bool
	pending  []*SelectRequest
}

// NewSelect creates an empty Select. Add cases with [Select.Add] before
// issuing requests.
func NewSelect(opts ...SelectOption) *Select {
	cfg := selectConfig{scheduler: defaultScheduler}
	for _, o := range opts {
		o.applySelect(&cfg)
	}
	return &Select{sched: cfg.scheduler}
}

// Add registers p as a new case, returning its index, and subscribes a
// bound-notification callback so that Select is woken whenever p may next
// be worth polling.
func (s *Select) Add(p Pollable) int {
	s.mu.Lock()
	idx := len(s.cases)
	s.cases = append(s.cases, p)
	s.disabled = append(s.disabled, false)
	s.mu.Unlock()

	p.subscribe(func() { s.ready(idx) })
	return idx
}

// doSelect is the non-blocking core operation: it attempts an immediate
// pick starting from startIndex (or a uniformly random index if
// startIndex < 0, for fairness per spec.md's S4), among cases req accepts
// and that aren't disabled. On an immediate hit it claims the value,
// updates the disabled vector, and invokes req.onValue synchronously,
// returning true. Otherwise it enqueues req onto the pending list and
// returns false — req.onValue will fire later, from a case's
// bound-notification callback, via [Select.ready].
func (s *Select) doSelect(startIndex int, req *SelectRequest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.cases)
	if n > 0 {
		start := startIndex
		if start < 0 {
			start = rand.IntN(n)
		}
		for k := 0; k < n; k++ {
			idx := (start + k) % n
			if s.disabled[idx] || !req.accepts(idx) {
				continue
			}
			v, err, ok := s.cases[idx].trySelect()
			if !ok {
				continue
			}
			if !s.liveLocked(idx) {
				s.disabled[idx] = true
			}
			req.onValue(idx, v, err)
			return true
		}
	}

	s.pending = append(s.pending, req)
	return false
}

// ready is the bound-notification path: called whenever case idx may have
// become newly selectable. It matches idx against pending requests in
// registration order, satisfying (at most) the first one that accepts idx
// and successfully claims a value.
func (s *Select) ready(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx >= len(s.disabled) || s.disabled[idx] {
		return
	}
	for i, req := range s.pending {
		if !req.accepts(idx) {
			continue
		}
		v, err, ok := s.cases[idx].trySelect()
		if !ok {
			return
		}
		s.pending = append(s.pending[:i:i], s.pending[i+1:]...)
		if !s.liveLocked(idx) {
			s.disabled[idx] = true
		}
		req.onValue(idx, v, err)
		return
	}
}

// cancelPending removes req from the pending list, if still present —
// used by [Select.Do] to give up on a request once ctx is cancelled.
func (s *Select) cancelPending(req *SelectRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.pending {
		if r == req {
			s.pending = append(s.pending[:i:i], s.pending[i+1:]...)
			return
		}
	}
}

// Do is a synchronous convenience atop [Select.doSelect]/[SelectRequest]:
// it blocks until some case accepted by mask (all cases, if mask is
// omitted) becomes selectable, then claims and returns it. Do picks its
// immediate-poll starting case uniformly at random; use [Select.DoFrom] to
// control the starting index directly. It returns an [ErrCancelled]- or
// [ErrTimeout]-wrapped ctx.Err() if ctx is cancelled first.
func (s *Select) Do(ctx context.Context, mask ...[]bool) (SelectResult, error) {
	return s.DoFrom(ctx, -1, mask...)
}

// DoFrom is [Select.Do], but with explicit control over the immediate-poll
// starting case: doSelect tries cases in order starting from startIndex,
// wrapping around, rather than a random index. This is the fairness control
// spec.md §4.5's S4 gives callers ("the starting index gives the selector
// control over fairness") — e.g. round-robining startIndex across calls to
// avoid always favoring case 0 when several cases are simultaneously ready.
// A negative startIndex behaves exactly like [Select.Do] (uniformly random).
func (s *Select) DoFrom(ctx context.Context, startIndex int, mask ...[]bool) (SelectResult, error) {
	resultCh := make(chan SelectResult, 1)
	req := NewSelectRequest(func(idx int, v any, err error) {
		resultCh <- SelectResult{CaseIndex: idx, Value: v, Err: err}
	}, mask...)

	if s.doSelect(startIndex, req) {
		return <-resultCh, nil
	}

	select {
	case r := <-resultCh:
		return r, nil
	case <-ctx.Done():
		s.cancelPending(req)
		select {
		case r := <-resultCh:
			return r, nil
		default:
			return SelectResult{}, ctxErr(ctx.Err())
		}
	}
}

// liveLocked reports whether case idx can still ever be selected again.
// Must be called with s.mu held. PTP/ReadView cases are always live; SAV
// cases are live only until their first successful claim.
func (s *Select) liveLocked(idx int) bool {
	if c, ok := s.cases[idx].(interface{ consumedForSelect() bool }); ok {
		return !c.consumedForSelect()
	}
	return true
}
