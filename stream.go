package dataflow

import (
	"context"
	"time"
)

// ReadSide is the minimal read surface [ReadBatch] needs: a non-blocking
// [PTP.Poll]/[ReadView.Poll] and a blocking [PTP.Read]/[ReadView.Read]. Both
// *[PTP][T] and *[ReadView][T] satisfy it.
type ReadSide[T any] interface {
	Poll() (T, bool)
	Read(ctx context.Context) (T, error)
}

// BatchConfig configures [ReadBatch]. The zero value uses the documented
// defaults.
type BatchConfig struct {
	// MaxSize is the maximum number of values to receive in one call. A
	// value < 0 disables the maximum. Defaults to 16 if 0.
	MaxSize int

	// MinSize is the target minimum number of values to receive before
	// returning, absent a PartialTimeout cutting it short. Defaults to 4
	// if 0. A value < 0 means: don't block for an initial value at all —
	// PartialTimeout (if set) starts immediately and governs the first
	// value too.
	MinSize int

	// PartialTimeout bounds how long ReadBatch will wait to accumulate
	// MinSize values before settling for fewer. Defaults to 50ms if 0.
	PartialTimeout time.Duration
}

// ReadBatch drains ch into handler, collecting as many values as the
// MinSize/MaxSize/PartialTimeout constraints in cfg allow, then returns. If
// ctx is cancelled, ReadBatch returns an [ErrCancelled]- or
// [ErrTimeout]-wrapped ctx.Err(). A handler error is returned immediately,
// aborting the batch.
//
// Adapted from the teacher's longpoll.Channel, generalized from a native Go
// <-chan to this package's [ReadSide] (so it composes with [PTP] and
// [ReadView] directly, without an adapter goroutine), and with the
// channel-closed/io.EOF case dropped: this package's channels have no
// closed state.
//
// Providing a nil ctx or handler causes a panic.
func ReadBatch[T any](ctx context.Context, cfg *BatchConfig, ch ReadSide[T], handler func(T) error) error {
	if ctx == nil {
		panic("dataflow: nil context")
	}
	if handler == nil {
		panic("dataflow: nil handler")
	}
	if err := ctx.Err(); err != nil {
		return ctxErr(err)
	}

	maxSize := 16
	minSize := 4
	partialTimeout := 50 * time.Millisecond
	if cfg != nil {
		if cfg.MaxSize != 0 {
			maxSize = cfg.MaxSize
		}
		if cfg.MinSize != 0 {
			minSize = cfg.MinSize
		}
		if cfg.PartialTimeout != 0 {
			partialTimeout = cfg.PartialTimeout
		}
	}

	var deadlineCtx context.Context
	var cancelDeadline context.CancelFunc
	startPartialTimeout := func() {
		if partialTimeout <= 0 || deadlineCtx != nil {
			return
		}
		deadlineCtx, cancelDeadline = context.WithTimeout(ctx, partialTimeout)
	}
	if minSize < 0 {
		startPartialTimeout()
	}
	if cancelDeadline != nil {
		defer cancelDeadline()
	}

	size := 0

	for (maxSize < 0 || size < maxSize) && (size < minSize || (size == 0 && deadlineCtx != nil)) {
		readCtx := ctx
		if deadlineCtx != nil {
			readCtx = deadlineCtx
		}
		v, err := ch.Read(readCtx)
		if err != nil {
			if ctx.Err() != nil {
				return ctxErr(ctx.Err())
			}
			// Only the partial-timeout sub-context expired; stop waiting
			// for the minimum and fall through to the best-effort drain.
			break
		}
		size++
		if size == 1 {
			startPartialTimeout()
		}
		if err := handler(v); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return ctxErr(err)
		}
	}

	for maxSize < 0 || size < maxSize {
		v, ok := ch.Poll()
		if !ok {
			break
		}
		size++
		if err := handler(v); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return ctxErr(err)
		}
	}

	return nil
}
