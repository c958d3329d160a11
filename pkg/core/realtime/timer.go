package realtime

import (
	"sync"
	"time"
)

// eventTimer is a single-slot cancelable timer. Arming replaces any
// outstanding timer; clearing an already-fired or already-cleared timer is a
// no-op. A generation counter keeps a stale fire from running its callback
// after the slot has been re-armed or cleared.
type eventTimer struct {
	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// Arm schedules fn to run after d, replacing any outstanding schedule.
func (t *eventTimer) Arm(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		live := t.gen == gen
		if live {
			t.timer = nil
		}
		t.mu.Unlock()
		if live {
			fn()
		}
	})
}

// Clear cancels the outstanding schedule, if any.
func (t *eventTimer) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}

// Armed reports whether a schedule is outstanding.
func (t *eventTimer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}
