package ring

import "testing"

func TestBuffer_PushPopFIFO(t *testing.T) {
	b := New[int](4)
	b.PushBack(1)
	b.PushBack(2)
	b.PushBack(3)

	if v, ok := b.PopFront(); !ok || v != 1 {
		t.Fatalf(`got %v, %v`, v, ok)
	}
	if v, ok := b.PopFront(); !ok || v != 2 {
		t.Fatalf(`got %v, %v`, v, ok)
	}
	if b.Len() != 1 {
		t.Fatalf(`got %d`, b.Len())
	}
}

func TestBuffer_WrapsAroundCapacity(t *testing.T) {
	b := New[int](4)
	b.PushBack(1)
	b.PushBack(2)
	b.PopFront()
	b.PopFront()
	b.PushBack(3)
	b.PushBack(4)
	b.PushBack(5)
	b.PushBack(6)
	if !b.Full() {
		t.Fatal(`expected full`)
	}
	for _, want := range []int{3, 4, 5, 6} {
		v, ok := b.PopFront()
		if !ok || v != want {
			t.Fatalf(`got %v, %v, want %v`, v, ok, want)
		}
	}
}

func TestBuffer_PopEmpty(t *testing.T) {
	b := New[int](2)
	if _, ok := b.PopFront(); ok {
		t.Fatal(`expected empty buffer to report not-ok`)
	}
}

func TestBuffer_NonPowerOfTwoPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal(`expected a panic for a non-power-of-2 capacity`)
		}
	}()
	New[int](3)
}

func TestBuffer_CapAndLen(t *testing.T) {
	b := New[string](8)
	if b.Cap() != 8 {
		t.Fatalf(`got %d`, b.Cap())
	}
	b.PushBack(`x`)
	if b.Len() != 1 {
		t.Fatalf(`got %d`, b.Len())
	}
}
