package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/framescale/internal/frame"
)

// Buffer errors.
var (
	ErrSlotFilled   = errors.New("buffer slot already filled")
	ErrSlotFailed   = errors.New("buffer slot failed")
	ErrSlotReleased = errors.New("buffer slot already released")
	ErrNotReady     = errors.New("buffer slot not ready")
	ErrEndOfFrames  = errors.New("end of frames")
	ErrBadIndex     = errors.New("buffer index out of range")
)

// slot is one frame position. ready is closed exactly once, after either
// img or err has been set, so readers never see a half-written slot.
type slot struct {
	ready   chan struct{}
	claimed atomic.Bool
	img     atomic.Pointer[frame.Image]
	err     error
}

func newSlot() *slot {
	return &slot{ready: make(chan struct{})}
}

// Buffer is the shared output buffer between workers and the encoder.
//
// Workers fill slots at their own frame index; the encoder drains them in
// order and releases each slot once the next one has been consumed. A slot
// is filled at most once. The buffer starts with the probed frame count and
// grows when the decoder produces more; Seal fixes the final count.
type Buffer struct {
	mu       sync.RWMutex
	slots    []*slot
	expected int

	sealOnce sync.Once
	sealed   chan struct{}
	count    int // valid once sealed is closed
}

// NewBuffer creates a buffer presized to expected frames (0 if unknown).
func NewBuffer(expected int) *Buffer {
	expected = max(0, expected)
	b := &Buffer{
		slots:    make([]*slot, expected),
		expected: expected,
		sealed:   make(chan struct{}),
	}
	for i := range b.slots {
		b.slots[i] = newSlot()
	}
	return b
}

func (b *Buffer) slot(i int) (*slot, error) {
	if i < 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadIndex, i)
	}

	b.mu.RLock()
	if i < len(b.slots) {
		s := b.slots[i]
		b.mu.RUnlock()
		return s, nil
	}
	b.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	if count, ok := b.sealedCount(); ok && i >= count {
		return nil, fmt.Errorf("%w: %d beyond sealed count %d", ErrBadIndex, i, count)
	}
	for len(b.slots) <= i {
		b.slots = append(b.slots, newSlot())
	}
	return b.slots[i], nil
}

// Put stores the completed image for frame i.
func (b *Buffer) Put(i int, img *frame.Image) error {
	s, err := b.slot(i)
	if err != nil {
		return err
	}
	if !s.claimed.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %d", ErrSlotFilled, i)
	}
	s.img.Store(img)
	close(s.ready)
	return nil
}

// Fail poisons slot i so that anyone waiting for it receives cause instead
// of blocking forever.
func (b *Buffer) Fail(i int, cause error) error {
	s, err := b.slot(i)
	if err != nil {
		return err
	}
	if !s.claimed.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %d", ErrSlotFilled, i)
	}
	if cause == nil {
		cause = errors.New("unknown failure")
	}
	s.err = cause
	close(s.ready)
	return nil
}

// Filled reports whether slot i has been filled or failed.
func (b *Buffer) Filled(i int) bool {
	s, err := b.slot(i)
	if err != nil {
		return false
	}
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// Await waits for slot i. A timeout > 0 bounds the wait and yields
// ErrNotReady when it expires. ErrEndOfFrames is returned once the buffer is
// sealed below i+1.
func (b *Buffer) Await(ctx context.Context, i int, timeout time.Duration) (*frame.Image, error) {
	if count, ok := b.sealedCount(); ok && i >= count {
		return nil, ErrEndOfFrames
	}
	s, err := b.slot(i)
	if err != nil {
		return nil, err
	}

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	sealed := b.sealed
	for {
		select {
		case <-s.ready:
			return s.result(i)
		case <-sealed:
			if count, _ := b.sealedCount(); i >= count {
				return nil, ErrEndOfFrames
			}
			sealed = nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-expired:
			return nil, ErrNotReady
		}
	}
}

func (s *slot) result(i int) (*frame.Image, error) {
	if s.err != nil {
		return nil, fmt.Errorf("%w: frame %d: %w", ErrSlotFailed, i, s.err)
	}
	img := s.img.Load()
	if img == nil {
		return nil, fmt.Errorf("%w: %d", ErrSlotReleased, i)
	}
	return img, nil
}

// Release drops the image held by slot i.
func (b *Buffer) Release(i int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if i >= 0 && i < len(b.slots) {
		b.slots[i].img.Store(nil)
	}
}

// Seal fixes the number of frames. Later calls are ignored.
func (b *Buffer) Seal(count int) {
	b.sealOnce.Do(func() {
		b.mu.Lock()
		b.count = max(0, count)
		b.mu.Unlock()
		close(b.sealed)
	})
}

// Sealed is closed once the frame count is final.
func (b *Buffer) Sealed() <-chan struct{} {
	return b.sealed
}

func (b *Buffer) sealedCount() (int, bool) {
	select {
	case <-b.sealed:
		return b.count, true
	default:
		return 0, false
	}
}

// Total returns the final frame count when sealed, otherwise the larger of
// the probed count and the slots allocated so far.
func (b *Buffer) Total() int {
	if count, ok := b.sealedCount(); ok {
		return count
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return max(b.expected, len(b.slots))
}
