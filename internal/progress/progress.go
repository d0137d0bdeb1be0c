// Package progress renders the encoder's progress as a terminal bar.
package progress

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/smazurov/framescale/internal/events"
)

const pausedDescription = "Paused"

// Options configures a Bar.
type Options struct {
	Writer      io.Writer // defaults to os.Stderr
	Total       int       // expected frames, 0 or less renders a spinner
	Description string
	Width       int
}

// Bar follows FrameEncodedEvents on a bus and renders them.
type Bar struct {
	bus         *events.Bus
	bar         *progressbar.ProgressBar
	description string

	total   atomic.Int64
	current atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a bar. Nothing is rendered until Start.
func New(bus *events.Bus, opts Options) *Bar {
	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}
	if opts.Description == "" {
		opts.Description = "Upscaling"
	}
	if opts.Width <= 0 {
		opts.Width = 40
	}
	limit := opts.Total
	if limit <= 0 {
		limit = -1
	}

	b := &Bar{
		bus:         bus,
		description: opts.Description,
		bar: progressbar.NewOptions(limit,
			progressbar.OptionSetWriter(opts.Writer),
			progressbar.OptionSetDescription(opts.Description),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
				BarStart:      "▐",
				BarEnd:        "▌",
			}),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("frames"),
			progressbar.OptionSetWidth(opts.Width),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionSetRenderBlankState(true),
		),
	}
	b.total.Store(int64(opts.Total))
	return b
}

// Start subscribes to the bus and renders until ctx is done, Stop is called
// or the run finishes.
func (b *Bar) Start(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)

	eventCh := make(chan any, 256)
	unsubscribers := []func(){
		events.SubscribeToChannel[events.FrameEncodedEvent](b.bus, eventCh),
		events.SubscribeToChannel[events.PauseChangedEvent](b.bus, eventCh),
		events.SubscribeToChannel[events.RunFinishedEvent](b.bus, eventCh),
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if b.handle(ev) {
					return
				}
			}
		}
	}()
}

// handle applies one event and reports whether rendering is over.
func (b *Bar) handle(ev any) bool {
	switch e := ev.(type) {
	case events.FrameEncodedEvent:
		// Probed totals can be short, the buffer grows past them
		if e.Total > int(b.total.Load()) {
			b.total.Store(int64(e.Total))
			b.bar.ChangeMax(e.Total)
		}
		b.set(e.Processed)
	case events.PauseChangedEvent:
		if e.Paused {
			b.bar.Describe(pausedDescription)
		} else {
			b.bar.Describe(b.description)
		}
	case events.RunFinishedEvent:
		b.set(e.Processed)
		if e.Error == "" {
			_ = b.bar.Finish()
		}
		return true
	}
	return false
}

// set only moves forward; events may arrive out of order.
func (b *Bar) set(processed int) {
	for {
		cur := b.current.Load()
		if int64(processed) <= cur {
			return
		}
		if b.current.CompareAndSwap(cur, int64(processed)) {
			_ = b.bar.Set(processed)
			return
		}
	}
}

// Current returns the number of frames rendered so far.
func (b *Bar) Current() int {
	return int(b.current.Load())
}

// Stop ends rendering and waits for the render goroutine.
func (b *Bar) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
	_ = b.bar.Exit()
}
