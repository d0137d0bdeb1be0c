package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPauseSetReportsChange(t *testing.T) {
	p := NewPause()

	if p.Paused() {
		t.Fatal("new flag should be cleared")
	}
	if !p.Set(true) {
		t.Error("Set(true) on cleared flag should report a change")
	}
	if p.Set(true) {
		t.Error("Set(true) twice should not report a change")
	}
	if !p.Set(false) {
		t.Error("Set(false) on set flag should report a change")
	}
}

func TestPauseToggle(t *testing.T) {
	p := NewPause()

	if got := p.Toggle(); !got {
		t.Errorf("first Toggle() = %v, want true", got)
	}
	if got := p.Toggle(); got {
		t.Errorf("second Toggle() = %v, want false", got)
	}
}

func TestPauseWaitReturnsImmediatelyWhenCleared(t *testing.T) {
	p := NewPause()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := p.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

func TestPauseResumeWakesAllWaiters(t *testing.T) {
	p := NewPause()
	p.Set(true)

	const waiters = 5
	var wg sync.WaitGroup
	errs := make(chan error, waiters)
	for range waiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- p.Wait(context.Background())
		}()
	}

	// Nobody may pass while paused
	time.Sleep(50 * time.Millisecond)
	if len(errs) != 0 {
		t.Fatal("waiter returned while paused")
	}

	p.Set(false)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Wait() error = %v", err)
		}
	}
}

func TestPauseWaitHonoursContext(t *testing.T) {
	p := NewPause()
	p.Set(true)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := p.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}

func TestPauseOnChange(t *testing.T) {
	p := NewPause()

	var got []bool
	p.OnChange(func(paused bool) { got = append(got, paused) })

	p.Set(true)
	p.Set(true)
	p.Toggle()

	if len(got) != 2 || got[0] != true || got[1] != false {
		t.Errorf("OnChange calls = %v, want [true false]", got)
	}
}
