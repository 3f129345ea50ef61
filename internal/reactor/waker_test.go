package reactor

import (
	"testing"
	"time"
)

func TestWaker_InterruptsRun(t *testing.T) {
	l := newLoop(t)
	w, err := NewWaker()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	woken := 0
	if err := l.Register(w.Fd(), Readable, func(Events) {
		woken++
		w.Drain()
	}); err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		w.Wake()
	}()

	start := time.Now()
	if err := l.Run(5 * time.Second); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Wake did not interrupt Run (blocked %v)", elapsed)
	}
	if woken != 1 {
		t.Fatalf("woken = %d, want 1", woken)
	}

	// Drained: the next pass must time out without dispatching.
	if err := l.Run(20 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if woken != 1 {
		t.Errorf("drained waker dispatched again")
	}
}

func TestWaker_CloseIdempotent(t *testing.T) {
	w, err := NewWaker()
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	// Must not write to a closed (possibly reused) descriptor.
	w.Wake()
	w.Drain()
}
