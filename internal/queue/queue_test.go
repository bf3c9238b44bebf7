package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueue_FIFO(t *testing.T) {
	q := New[int]()
	for i := 0; i < 5; i++ {
		if !q.Push(i) {
			t.Fatalf("push %d rejected", i)
		}
	}
	if q.Len() != 5 {
		t.Fatalf("unexpected length: %d", q.Len())
	}
	for i := 0; i < 5; i++ {
		got, err := q.Pop(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != i {
			t.Fatalf("expected %d, got %d", i, got)
		}
	}
}

func TestQueue_CloseDrainsBufferedItemsFirst(t *testing.T) {
	q := New[string]()
	q.Push("a")
	q.Push("b")
	if !q.Close() {
		t.Fatal("expected first close to report true")
	}
	if q.Close() {
		t.Fatal("expected second close to report false")
	}

	for _, want := range []string{"a", "b"} {
		got, err := q.Pop(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
	if _, err := q.Pop(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestQueue_PushAfterCloseIsDropped(t *testing.T) {
	q := New[int]()
	q.Close()
	if q.Push(1) {
		t.Fatal("expected push after close to be rejected")
	}
	if q.Len() != 0 || !q.Closed() {
		t.Fatalf("unexpected queue state: len=%d closed=%v", q.Len(), q.Closed())
	}
}

func TestQueue_PopWaitsForPush(t *testing.T) {
	q := New[int]()
	done := make(chan int, 1)
	go func() {
		v, err := q.Pop(context.Background())
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		done <- v
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(42)
	select {
	case v := <-done:
		if v != 42 {
			t.Fatalf("expected 42, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("pop did not wake up after push")
	}
}

func TestQueue_PopWakesOnClose(t *testing.T) {
	q := New[int]()
	errCh := make(chan error, 1)
	go func() {
		_, err := q.Pop(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pop did not wake up after close")
	}
}

func TestQueue_PopHonoursContext(t *testing.T) {
	q := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := q.Pop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestQueue_ConcurrentProducerKeepsOrder(t *testing.T) {
	q := New[int]()
	const n = 1000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.Push(i)
		}
		q.Close()
	}()

	next := 0
	for {
		v, err := q.Pop(context.Background())
		if errors.Is(err, ErrClosed) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != next {
			t.Fatalf("expected %d, got %d", next, v)
		}
		next++
	}
	wg.Wait()
	if next != n {
		t.Fatalf("expected %d items, got %d", n, next)
	}
}
