package dataflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPTP_WriteThenRead(t *testing.T) {
	p := NewPTP[int]()
	if err := p.Write(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if err := p.Write(context.Background(), 2); err != nil {
		t.Fatal(err)
	}
	v, err := p.Read(context.Background())
	if err != nil || v != 1 {
		t.Fatalf(`got %v, %v`, v, err)
	}
	v, err = p.Read(context.Background())
	if err != nil || v != 2 {
		t.Fatalf(`got %v, %v`, v, err)
	}
}

func TestPTP_ReadBlocksThenWriteHandsDirectly(t *testing.T) {
	p := NewPTP[int]()
	resultCh := make(chan int, 1)
	go func() {
		v, err := p.Read(context.Background())
		if err != nil {
			t.Error(err)
			return
		}
		resultCh <- v
	}()
	time.Sleep(10 * time.Millisecond) // let the reader park
	if err := p.Write(context.Background(), 99); err != nil {
		t.Fatal(err)
	}
	select {
	case v := <-resultCh:
		if v != 99 {
			t.Fatalf(`got %v`, v)
		}
	case <-time.After(time.Second):
		t.Fatal(`parked reader never received the write`)
	}
	if _, ok := p.Poll(); ok {
		t.Fatal(`value handed directly to a waiting reader must not also be queued`)
	}
}

func TestPTP_EachValueConsumedOnce(t *testing.T) {
	p := NewPTP[int]()
	const n = 200
	for i := 0; i < n; i++ {
		if err := p.Write(context.Background(), i); err != nil {
			t.Fatal(err)
		}
	}
	var mu sync.Mutex
	seen := make(map[int]int)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, ok := p.Poll()
				if !ok {
					return
				}
				mu.Lock()
				seen[v]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != n {
		t.Fatalf(`got %d distinct values, want %d`, len(seen), n)
	}
	for v, count := range seen {
		if count != 1 {
			t.Fatalf(`value %d consumed %d times, want exactly once`, v, count)
		}
	}
}

func TestPTP_BoundedCapacityBlocksWriter(t *testing.T) {
	p := NewPTP[int](WithCapacity(1))
	if err := p.Write(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Write(ctx, 2); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf(`expected a full bounded channel to block the writer, got %v`, err)
	}

	v, err := p.Read(context.Background())
	if err != nil || v != 1 {
		t.Fatalf(`got %v, %v`, v, err)
	}
	if err := p.Write(context.Background(), 2); err != nil {
		t.Fatal(`write should succeed once a slot frees up:`, err)
	}
}

func TestPTP_WheneverBoundTapsWithoutConsuming(t *testing.T) {
	p := NewPTP[int]()
	tapped := make(chan int, 1)
	p.WheneverBound(func(v int, err error) { tapped <- v })
	if err := p.Write(context.Background(), 5); err != nil {
		t.Fatal(err)
	}
	select {
	case v := <-tapped:
		if v != 5 {
			t.Fatalf(`got %v`, v)
		}
	case <-time.After(time.Second):
		t.Fatal(`WheneverBound handler never ran`)
	}
	v, ok := p.Poll()
	if !ok || v != 5 {
		t.Fatal(`WheneverBound must not consume the value from the ordinary read queue`)
	}
}

func TestPTP_TryReadTimeout(t *testing.T) {
	p := NewPTP[int]()
	if _, err := p.TryRead(10 * time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf(`got %v`, err)
	}
}
