// Package arming contains the state machine gating real-world actions behind
// a deliberate unlock ritual: an ordered note sequence, an exact chord, or
// both. The machine is pure state: it consumes timestamps carried by events,
// never reads the wall clock, and queues its announcements for the caller to
// dispatch.
package arming
