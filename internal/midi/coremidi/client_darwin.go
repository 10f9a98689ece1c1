//go:build darwin

package coremidi

import (
	"fmt"
	"sync"
	"time"

	"github.com/youpy/go-coremidi"

	"github.com/pianohome/keynote-bridge/internal/midi"
)

// eventBufferSize bounds the producer channel so a stalled consumer cannot
// block the CoreMIDI callback thread; overflow drops events instead.
const eventBufferSize = 128

// packetMinLength is the shortest channel voice message the parser accepts.
const packetMinLength = 3

// portConnection abstracts the CoreMIDI port connection for teardown.
type portConnection interface {
	Disconnect()
}

// Client is a midi.Device backed by CoreMIDI. Packets arrive on a CoreMIDI
// callback thread and are parsed and pushed into a bounded channel; the
// consumer never blocks the callback.
type Client struct {
	channel int

	mu       sync.Mutex
	client   coremidi.Client
	conn     portConnection
	portName string
	events   chan midi.Event
	open     bool
}

// New creates a CoreMIDI client. channelFilter restricts events to one MIDI
// channel (1-16); zero accepts all channels.
func New(channelFilter int) (*Client, error) {
	client, err := coremidi.NewClient("keynote-bridge")
	if err != nil {
		return nil, fmt.Errorf("create CoreMIDI client: %w", err)
	}

	return &Client{
		channel: channelFilter,
		client:  client,
	}, nil
}

// ListPorts returns the names of all available MIDI sources.
func (c *Client) ListPorts() ([]string, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("list MIDI sources: %w", err)
	}

	names := make([]string, len(sources))
	for i, source := range sources {
		names[i] = source.Name()
	}

	return names, nil
}

// Open connects to the named source, or the first available source when the
// name is empty, and starts a fresh event stream.
func (c *Client) Open(portName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open {
		c.teardownLocked()
	}

	sources, err := coremidi.AllSources()
	if err != nil {
		return fmt.Errorf("list MIDI sources: %w", err)
	}

	if len(sources) == 0 {
		return midi.ErrNoPorts
	}

	var selected *coremidi.Source

	if portName == "" {
		selected = &sources[0]
	} else {
		for i := range sources {
			if sources[i].Name() == portName {
				selected = &sources[i]
				break
			}
		}
	}

	if selected == nil {
		return fmt.Errorf("%w: %q", midi.ErrPortNotFound, portName)
	}

	events := make(chan midi.Event, eventBufferSize)

	inputPort, err := coremidi.NewInputPort(c.client, "keynote-bridge input",
		func(_ coremidi.Source, packet coremidi.Packet) {
			c.handlePacket(events, packet)
		})
	if err != nil {
		return fmt.Errorf("create input port: %w", err)
	}

	conn, err := inputPort.Connect(*selected)
	if err != nil {
		return fmt.Errorf("connect to %q: %w", selected.Name(), err)
	}

	c.conn = conn
	c.portName = selected.Name()
	c.events = events
	c.open = true

	return nil
}

// handlePacket decodes one CoreMIDI packet and pushes the event into the
// stream channel. Runs on the CoreMIDI callback thread.
func (c *Client) handlePacket(events chan midi.Event, packet coremidi.Packet) {
	if len(packet.Data) < packetMinLength {
		return
	}

	ev, ok := midi.ParseMessage(packet.Data[0], packet.Data[1], packet.Data[2], time.Now())
	if !ok {
		return
	}

	if c.channel > 0 && ev.Channel != c.channel {
		return
	}

	// The send happens under mu so teardown cannot close the channel between
	// the liveness check and the send. The default case keeps it non-blocking.
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open || c.events != events {
		return
	}

	select {
	case events <- ev:
	default:
		// Consumer is behind; dropping beats blocking the callback thread.
	}
}

// Events returns the channel carrying the current stream's events.
func (c *Client) Events() <-chan midi.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.events
}

// Err reports why the stream ended. CoreMIDI surfaces unplugged devices by
// removing the source rather than erroring the connection, so disconnection
// is observed through IsAvailable and Err stays nil here.
func (c *Client) Err() error {
	return nil
}

// IsAvailable reports whether the opened source is still present.
func (c *Client) IsAvailable() bool {
	c.mu.Lock()
	name := c.portName
	open := c.open
	c.mu.Unlock()

	if !open {
		return false
	}

	sources, err := coremidi.AllSources()
	if err != nil {
		return false
	}

	for _, source := range sources {
		if source.Name() == name {
			return true
		}
	}

	return false
}

// Close tears down the stream and releases the port.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardownLocked()

	return nil
}

// teardownLocked disconnects and closes the current stream. Callers hold mu.
func (c *Client) teardownLocked() {
	if c.conn != nil {
		c.conn.Disconnect()
		c.conn = nil
	}

	if c.open {
		close(c.events)
	}

	c.open = false
	c.portName = ""
}
