package loop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func startLoop(t *testing.T, buffer int) (*Loop, context.CancelFunc, chan error) {
	t.Helper()
	l := New(buffer)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	return l, cancel, errCh
}

func TestDoRunsInOrder(t *testing.T) {
	l, cancel, _ := startLoop(t, 8)
	defer cancel()

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		if err := l.Do(context.Background(), func() { got = append(got, i) }); err != nil {
			t.Fatalf("Do: %v", err)
		}
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("order = %v", got)
		}
	}
}

func TestPostFromManyGoroutines(t *testing.T) {
	l, cancel, _ := startLoop(t, 256)
	defer cancel()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !l.Post(func() { counter++ }) {
				time.Sleep(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	var final int
	if err := l.Do(context.Background(), func() { final = counter }); err != nil {
		t.Fatal(err)
	}
	if final != 100 {
		t.Errorf("counter = %d, want 100", final)
	}
}

func TestPostFullQueue(t *testing.T) {
	l := New(1)
	if !l.Post(func() {}) {
		t.Fatal("first Post rejected")
	}
	if l.Post(func() {}) {
		t.Error("Post on a full queue succeeded")
	}
}

func TestPostFuncWaitsForRoom(t *testing.T) {
	l := New(1)
	if !l.Post(func() {}) {
		t.Fatal("first Post rejected")
	}
	applied := make(chan struct{})
	posted := make(chan struct{})
	go func() {
		l.PostFunc(func() { close(applied) })
		close(posted)
	}()

	select {
	case <-posted:
		t.Fatal("PostFunc returned while the queue was full")
	case <-time.After(20 * time.Millisecond):
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	select {
	case <-applied:
	case <-time.After(time.Second):
		t.Fatal("work handed to PostFunc never ran")
	}
	<-posted
}

func TestPostFuncAfterStop(t *testing.T) {
	l, cancel, errCh := startLoop(t, 1)
	cancel()
	<-errCh

	ran := false
	done := make(chan struct{})
	go func() {
		// Fill the queue so only the stop signal can release PostFunc.
		l.PostFunc(func() {})
		l.PostFunc(func() { ran = true })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PostFunc blocked on a stopped loop")
	}
	if ran {
		t.Error("work ran after stop")
	}
}

func TestStoppedLoop(t *testing.T) {
	l, cancel, errCh := startLoop(t, 4)
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	if l.Post(func() {}) {
		t.Error("Post after stop succeeded")
	}
	if err := l.Do(context.Background(), func() {}); !errors.Is(err, ErrStopped) {
		t.Errorf("Do after stop = %v", err)
	}
}

func TestDoHonorsContext(t *testing.T) {
	l := New(1) // never run
	l.Post(func() {})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Do(ctx, func() {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do = %v", err)
	}
}
