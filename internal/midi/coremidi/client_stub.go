//go:build !darwin

package coremidi

import (
	"fmt"

	"github.com/pianohome/keynote-bridge/internal/midi"
)

// Client is the non-darwin stand-in for the CoreMIDI device. Every stream
// operation fails; the bridge keeps retrying with its usual reconnect delay.
type Client struct{}

// New creates the stub client.
func New(int) (*Client, error) {
	return &Client{}, nil
}

// ListPorts reports that MIDI input is unavailable on this platform.
func (c *Client) ListPorts() ([]string, error) {
	return nil, fmt.Errorf("%w: MIDI input requires macOS", midi.ErrNoPorts)
}

// Open reports that MIDI input is unavailable on this platform.
func (c *Client) Open(string) error {
	return fmt.Errorf("%w: MIDI input requires macOS", midi.ErrNoPorts)
}

// Events returns a nil channel; the stream never starts.
func (c *Client) Events() <-chan midi.Event {
	return nil
}

// Err reports no stream error.
func (c *Client) Err() error {
	return nil
}

// IsAvailable reports that no device is present.
func (c *Client) IsAvailable() bool {
	return false
}

// Close is a no-op.
func (c *Client) Close() error {
	return nil
}
