package midi

import "time"

// EventKind classifies a decoded MIDI channel voice message.
type EventKind int

const (
	// NoteOn is a key press with non-zero velocity.
	NoteOn EventKind = iota
	// NoteOff is a key release (or a NoteOn with velocity zero).
	NoteOff
	// ControlChange is a controller movement (pedal, knob, slider).
	ControlChange
)

// String returns the conventional MIDI name of the event kind.
func (k EventKind) String() string {
	switch k {
	case NoteOn:
		return "note_on"
	case NoteOff:
		return "note_off"
	case ControlChange:
		return "control_change"
	default:
		return "unknown"
	}
}

// Event is a single decoded MIDI event stamped at arrival time.
// It is immutable once produced; every detector receives the same value.
type Event struct {
	// Time is when the event arrived.
	Time time.Time
	// Kind is the decoded message type.
	Kind EventKind
	// Note is the MIDI note number (0-127) for NoteOn/NoteOff.
	Note int
	// Velocity is the key press strength (0-127) for NoteOn/NoteOff.
	Velocity int
	// Control is the controller number for ControlChange.
	Control int
	// Value is the controller value for ControlChange.
	Value int
	// Channel is the MIDI channel the event arrived on (1-16).
	Channel int
}

// Status byte families for channel voice messages.
const (
	statusNoteOff       = 0x80
	statusNoteOn        = 0x90
	statusControlChange = 0xB0

	statusKindMask    = 0xF0
	statusChannelMask = 0x0F
)

// ParseMessage decodes a three-byte channel voice message into an Event.
// A NoteOn with velocity zero is normalized to NoteOff, which is how most
// keyboards encode key releases. It returns false for message families the
// bridge does not consume (aftertouch, pitch bend, program change, system).
func ParseMessage(status, data1, data2 byte, at time.Time) (Event, bool) {
	channel := int(status&statusChannelMask) + 1

	switch status & statusKindMask {
	case statusNoteOn:
		kind := NoteOn
		if data2 == 0 {
			kind = NoteOff
		}

		return Event{
			Time:     at,
			Kind:     kind,
			Note:     int(data1),
			Velocity: int(data2),
			Channel:  channel,
		}, true
	case statusNoteOff:
		return Event{
			Time:    at,
			Kind:    NoteOff,
			Note:    int(data1),
			Channel: channel,
		}, true
	case statusControlChange:
		return Event{
			Time:    at,
			Kind:    ControlChange,
			Control: int(data1),
			Value:   int(data2),
			Channel: channel,
		}, true
	default:
		return Event{}, false
	}
}
