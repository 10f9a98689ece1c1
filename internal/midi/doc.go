// Package midi defines the input-device contract consumed by the bridge:
// the decoded Event value, the Device stream interface and the channel
// voice message parser shared by platform implementations.
package midi
