package pipeline

import (
	"context"
	"sync"
)

// Pause is the shared pause flag observed by every stage.
// Waiters block on a channel that is closed when the flag clears, so a
// resume wakes all of them at once.
type Pause struct {
	mu       sync.Mutex
	paused   bool
	resumed  chan struct{}
	onChange func(paused bool)
}

// NewPause returns a cleared flag.
func NewPause() *Pause {
	resumed := make(chan struct{})
	close(resumed)
	return &Pause{resumed: resumed}
}

// OnChange registers fn to be called after every flip of the flag.
func (p *Pause) OnChange(fn func(paused bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = fn
}

// Set sets the flag and reports whether it changed.
func (p *Pause) Set(paused bool) bool {
	p.mu.Lock()
	changed := p.apply(paused)
	fn := p.onChange
	p.mu.Unlock()

	if changed && fn != nil {
		fn(paused)
	}
	return changed
}

// Toggle flips the flag and returns the new value.
func (p *Pause) Toggle() bool {
	p.mu.Lock()
	next := !p.paused
	p.apply(next)
	fn := p.onChange
	p.mu.Unlock()

	if fn != nil {
		fn(next)
	}
	return next
}

// apply updates the flag and the resume channel. Callers hold mu.
func (p *Pause) apply(paused bool) bool {
	if p.paused == paused {
		return false
	}
	p.paused = paused
	if paused {
		p.resumed = make(chan struct{})
	} else {
		close(p.resumed)
	}
	return true
}

// Paused reports the current value.
func (p *Pause) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Wait returns immediately when not paused, otherwise blocks until the flag
// clears or ctx is done.
func (p *Pause) Wait(ctx context.Context) error {
	p.mu.Lock()
	resumed := p.resumed
	p.mu.Unlock()

	select {
	case <-resumed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
