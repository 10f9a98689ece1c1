package gesture

import "time"

// DoubleTapTracker tracks the two-press confirmation gesture per note.
// A pending first tap is only ever resolved by the next press of the same
// note; there is no background expiry.
type DoubleTapTracker struct {
	window    time.Duration
	firstTaps map[int]time.Time
}

// NewDoubleTapTracker creates a tracker with the given maximum gap between taps.
func NewDoubleTapTracker(window time.Duration) *DoubleTapTracker {
	return &DoubleTapTracker{
		window:    window,
		firstTaps: make(map[int]time.Time),
	}
}

// OnPress records a note press and reports whether it completes a double-tap.
// A press arriving after the window elapsed becomes the new first tap.
func (d *DoubleTapTracker) OnPress(note int, at time.Time) bool {
	first, ok := d.firstTaps[note]
	if !ok {
		d.firstTaps[note] = at
		return false
	}

	if at.Sub(first) <= d.window {
		delete(d.firstTaps, note)
		return true
	}

	d.firstTaps[note] = at

	return false
}

// Clear drops the pending tap for one note.
func (d *DoubleTapTracker) Clear(note int) {
	delete(d.firstTaps, note)
}

// Reset drops all pending taps.
func (d *DoubleTapTracker) Reset() {
	clear(d.firstTaps)
}
