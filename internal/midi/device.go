package midi

import "errors"

var (
	// ErrNoPorts is returned when no MIDI input ports exist on the system.
	ErrNoPorts = errors.New("no MIDI input ports found")
	// ErrPortNotFound is returned when the configured port name is not present.
	ErrPortNotFound = errors.New("MIDI port not found")
	// ErrDisconnected is the stream-end reason when the device vanished mid-run.
	ErrDisconnected = errors.New("MIDI device disconnected")
)

// Device is an input port producing a stream of decoded events.
//
// Open starts the stream; Events returns the channel it feeds, which is
// closed when the stream ends for any reason. After the channel closes, Err
// reports why (nil for a clean Close). A closed device may be reopened,
// which starts a fresh stream on a fresh channel.
type Device interface {
	// ListPorts returns the names of the currently available input ports.
	ListPorts() ([]string, error)
	// Open connects to the named port, or auto-selects the first available
	// port when the name is empty.
	Open(portName string) error
	// Events returns the channel carrying decoded events for the current stream.
	Events() <-chan Event
	// Err returns the reason the current stream ended, nil while it is live
	// or after a clean Close.
	Err() error
	// IsAvailable reports whether the opened port is still present on the system.
	IsAvailable() bool
	// Close tears down the stream and releases the port.
	Close() error
}
