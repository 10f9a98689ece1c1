package gesture

import "time"

// RateLimiter suppresses repeated triggers of the same note within a cooldown.
type RateLimiter struct {
	cooldown    time.Duration
	lastTrigger map[int]time.Time
}

// NewRateLimiter creates a limiter with the given per-note cooldown.
func NewRateLimiter(cooldown time.Duration) *RateLimiter {
	return &RateLimiter{
		cooldown:    cooldown,
		lastTrigger: make(map[int]time.Time),
	}
}

// CanTrigger reports whether the note may fire at the given time. On true it
// records the time as the note's new last trigger; on false state is unchanged.
func (r *RateLimiter) CanTrigger(note int, at time.Time) bool {
	if last, ok := r.lastTrigger[note]; ok && at.Sub(last) < r.cooldown {
		return false
	}

	r.lastTrigger[note] = at

	return true
}
