package roster

import (
	"sync"
	"time"
)

const DefaultDebounceWindow = 500 * time.Millisecond

// Debouncer coalesces bursts of calls so only the last one within the window runs.
// Callers that need last-write-wins across overlapping runs should pair it with a
// generation counter.
type Debouncer struct {
	window time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer{window: window}
}

func (d *Debouncer) Window() time.Duration { return d.window }

// Trigger schedules fn after the window, replacing any call still waiting.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, fn)
}

// Cancel drops the pending call, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
