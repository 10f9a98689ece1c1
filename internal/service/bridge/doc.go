// Package bridge is the dispatch loop tying the system together: it owns the
// MIDI device lifecycle, feeds note-on events through the chord detector and
// the arming machine, applies the mapping, confirmation and rate-limit gates,
// and invokes the Home Assistant dispatcher when every gate passes. Device
// failures reset the arming state and schedule a reconnect; nothing here is
// fatal to the process.
package bridge
