package gesture

import (
	"sort"
	"time"
)

// ChordDetector reports when two or more distinct notes are pressed within a
// sliding time window. The window slides with the most recent press: notes
// count as a chord only while their timestamps are mutually within the window
// of the newest one.
type ChordDetector struct {
	window time.Duration
	recent map[int]time.Time
}

// NewChordDetector creates a detector with the given co-press window.
func NewChordDetector(window time.Duration) *ChordDetector {
	return &ChordDetector{
		window: window,
		recent: make(map[int]time.Time),
	}
}

// AddPress records a note press and returns the sorted set of notes currently
// in the window when it holds two or more distinct notes, nil otherwise.
// Repeated presses of the same note refresh its timestamp but count once.
func (d *ChordDetector) AddPress(note int, at time.Time) []int {
	cutoff := at.Add(-d.window)
	for n, t := range d.recent {
		if t.Before(cutoff) {
			delete(d.recent, n)
		}
	}

	d.recent[note] = at

	if len(d.recent) < 2 {
		return nil
	}

	notes := make([]int, 0, len(d.recent))
	for n := range d.recent {
		notes = append(notes, n)
	}

	sort.Ints(notes)

	return notes
}

// Clear drops all tracked presses.
func (d *ChordDetector) Clear() {
	clear(d.recent)
}
