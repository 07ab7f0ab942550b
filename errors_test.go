package dataflow

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCtxErr_CancelledWrapsErrCancelled(t *testing.T) {
	s := NewSAV[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Read(ctx)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf(`expected ErrCancelled, got %v`, err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf(`expected context.Canceled in the chain, got %v`, err)
	}
}

func TestCtxErr_DeadlineWrapsErrTimeout(t *testing.T) {
	s := NewSAV[int]()
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	_, err := s.Read(ctx)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf(`expected ErrTimeout, got %v`, err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf(`expected context.DeadlineExceeded in the chain, got %v`, err)
	}
	if errors.Is(err, ErrCancelled) {
		t.Fatalf(`a deadline expiry must not also match ErrCancelled, got %v`, err)
	}
}

func TestCtxErr_Nil(t *testing.T) {
	if ctxErr(nil) != nil {
		t.Fatal(`ctxErr(nil) must be nil`)
	}
}
