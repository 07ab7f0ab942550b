package dataflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhenAllBound_AllSucceed(t *testing.T) {
	a, b, c := NewSAV[int](), NewSAV[int](), NewSAV[int]()
	all := WhenAllBound(GoroutineScheduler{}, a, b, c)

	require.NoError(t, b.Bind(2))
	require.NoError(t, a.Bind(1))
	require.NoError(t, c.Bind(3))

	vs, err := all.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, vs)
}

func TestWhenAllBound_FirstErrorWins(t *testing.T) {
	a, b := NewSAV[int](), NewSAV[int]()
	all := WhenAllBound(GoroutineScheduler{}, a, b)

	sentinel := errors.New(`a failed`)
	if err := a.BindError(sentinel); err != nil {
		t.Fatal(err)
	}
	if err := b.BindError(errors.New(`b failed too`)); err != nil {
		t.Fatal(err)
	}

	_, err := all.Read(context.Background())
	if !errors.Is(err, sentinel) {
		t.Fatalf(`got %v, want the first registered failure`, err)
	}
}

func TestWhenAllBound_Empty(t *testing.T) {
	all := WhenAllBound[int](GoroutineScheduler{})
	vs, err := all.Read(context.Background())
	if err != nil || len(vs) != 0 {
		t.Fatalf(`got %v, %v`, vs, err)
	}
}

func TestParallelMap(t *testing.T) {
	in := []int{1, 2, 3, 4}
	out, err := ParallelMap(context.Background(), in, func(_ context.Context, v int) (int, error) {
		return v * v, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []int{1, 4, 9, 16}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf(`got %v, want %v`, out, want)
		}
	}
}

func TestParallelMap_PropagatesError(t *testing.T) {
	sentinel := errors.New(`nope`)
	_, err := ParallelMap(context.Background(), []int{1, 2, 3}, func(_ context.Context, v int) (int, error) {
		if v == 2 {
			return 0, sentinel
		}
		return v, nil
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf(`got %v`, err)
	}
}

func TestParallelFilter(t *testing.T) {
	out, err := ParallelFilter(context.Background(), []int{1, 2, 3, 4, 5}, func(_ context.Context, v int) (bool, error) {
		return v%2 == 0, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0] != 2 || out[1] != 4 {
		t.Fatalf(`got %v`, out)
	}
}

func TestParallelFind(t *testing.T) {
	v, ok, err := ParallelFind(context.Background(), []int{1, 2, 3, 4}, func(_ context.Context, v int) (bool, error) {
		return v == 3, nil
	})
	if err != nil || !ok || v != 3 {
		t.Fatalf(`got %v, %v, %v`, v, ok, err)
	}

	_, ok, err = ParallelFind(context.Background(), []int{1, 2}, func(_ context.Context, v int) (bool, error) {
		return false, nil
	})
	if err != nil || ok {
		t.Fatalf(`got ok=%v, err=%v`, ok, err)
	}
}

func TestParallelAll(t *testing.T) {
	ok, err := ParallelAll(context.Background(), []int{2, 4, 6}, func(_ context.Context, v int) (bool, error) {
		return v%2 == 0, nil
	})
	if err != nil || !ok {
		t.Fatalf(`got %v, %v`, ok, err)
	}

	ok, err = ParallelAll(context.Background(), []int{2, 3, 6}, func(_ context.Context, v int) (bool, error) {
		return v%2 == 0, nil
	})
	if err != nil || ok {
		t.Fatalf(`got %v, %v`, ok, err)
	}
}

func TestParallelAllErrors_AggregatesMultipleFailures(t *testing.T) {
	e1 := errors.New(`one failed`)
	e2 := errors.New(`three failed`)
	_, err := ParallelAllErrors(context.Background(), []int{1, 2, 3}, func(_ context.Context, v int) (bool, error) {
		switch v {
		case 1:
			return false, e1
		case 3:
			return false, e2
		default:
			return true, nil
		}
	})
	var agg *AggregateError
	if !errors.As(err, &agg) {
		t.Fatalf(`expected *AggregateError, got %T (%v)`, err, err)
	}
	if len(agg.Errors) != 2 {
		t.Fatalf(`got %d errors, want 2`, len(agg.Errors))
	}
	if !errors.Is(err, e1) || !errors.Is(err, e2) {
		t.Fatalf(`expected errors.Is to match both failures, got %v`, err)
	}
}

func TestParallelAllErrors_SingleFailureNotWrapped(t *testing.T) {
	sentinel := errors.New(`only one`)
	_, err := ParallelAllErrors(context.Background(), []int{1, 2}, func(_ context.Context, v int) (bool, error) {
		if v == 1 {
			return false, sentinel
		}
		return true, nil
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf(`got %v`, err)
	}
	var agg *AggregateError
	if errors.As(err, &agg) {
		t.Fatalf(`expected a single unwrapped error, got *AggregateError: %v`, err)
	}
}

func TestParallelAllErrors_AllMatch(t *testing.T) {
	ok, err := ParallelAllErrors(context.Background(), []int{2, 4, 6}, func(_ context.Context, v int) (bool, error) {
		return v%2 == 0, nil
	})
	if err != nil || !ok {
		t.Fatalf(`got %v, %v`, ok, err)
	}
}

func TestParallelAny(t *testing.T) {
	ok, err := ParallelAny(context.Background(), []int{1, 3, 4}, func(_ context.Context, v int) (bool, error) {
		return v%2 == 0, nil
	})
	if err != nil || !ok {
		t.Fatalf(`got %v, %v`, ok, err)
	}

	ok, err = ParallelAny(context.Background(), []int{1, 3, 5}, func(_ context.Context, v int) (bool, error) {
		return v%2 == 0, nil
	})
	if err != nil || ok {
		t.Fatalf(`got %v, %v`, ok, err)
	}
}
