// Package gesture holds the timing-based press detectors: the sliding-window
// chord detector, the per-note double-tap tracker and the per-note rate
// limiter. Each owns a plain note-to-timestamp map with explicit pruning and
// is driven purely by the timestamps it is handed; none of them spawns
// goroutines or reads the wall clock.
package gesture
