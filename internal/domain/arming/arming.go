package arming

import (
	"slices"
	"time"
)

// State is the arming status of the system.
type State int

const (
	// Disarmed means mapped notes are ignored until the unlock ritual completes.
	Disarmed State = iota
	// Armed means mapped notes may trigger outbound actions.
	Armed
)

// String returns the lowercase state name used in logs.
func (s State) String() string {
	if s == Armed {
		return "armed"
	}

	return "disarmed"
}

// NotificationKind classifies a queued announcement.
type NotificationKind int

const (
	// NotifyArm announces a transition into Armed.
	NotifyArm NotificationKind = iota
	// NotifyDisarm announces a transition out of Armed.
	NotifyDisarm
)

// Notification is an announcement queued by the machine for the caller to
// dispatch. The machine never performs outbound calls itself, which keeps
// announcement ordering observable and the state transitions testable.
type Notification struct {
	// Kind says whether this announces arming or disarming.
	Kind NotificationKind
	// Message is the text to announce.
	Message string
	// Cause names the unlock mechanism, e.g. "sequence" or "chord". Empty on disarm.
	Cause string
}

// Config holds the unlock ritual parameters. It is immutable during a run.
type Config struct {
	// Enabled turns the gate on. When false the machine reports Armed for every note.
	Enabled bool
	// Sequence is the ordered unlock sequence (empty = mechanism not configured).
	Sequence []int
	// SequenceTimeout bounds the time from the first to the last sequence note.
	SequenceTimeout time.Duration
	// Chord is the exact unlock chord set (empty = mechanism not configured).
	Chord []int
	// RequireBoth demands both the sequence and the chord before arming.
	RequireBoth bool
	// DisarmAfter disarms after this much inactivity while armed (0 = never).
	// The check is lazy: it runs when the next event arrives, against the
	// previous activity timestamp, so silence alone never transitions state.
	DisarmAfter time.Duration
	// DisarmAfterAction disarms after each successful outbound action.
	DisarmAfterAction bool
	// AnnounceOnArm queues an announcement when transitioning into Armed.
	AnnounceOnArm bool
	// AnnounceOnDisarm queues an announcement when transitioning out of Armed.
	AnnounceOnDisarm bool
	// ArmMessage is the announcement text on arming.
	ArmMessage string
	// DisarmMessage is the announcement text on disarming.
	DisarmMessage string
}

// Machine is the arming state machine. It is not safe for concurrent use;
// the dispatch loop processes events strictly sequentially.
type Machine struct {
	cfg      Config
	chordSet map[int]struct{}

	state        State
	lastActivity time.Time

	progress []int
	seqStart time.Time

	armedBySequence bool
	armedByChord    bool

	pending []Notification
}

// NewMachine creates a machine in the Disarmed state.
func NewMachine(cfg Config) *Machine {
	chordSet := make(map[int]struct{}, len(cfg.Chord))
	for _, n := range cfg.Chord {
		chordSet[n] = struct{}{}
	}

	return &Machine{
		cfg:      cfg,
		chordSet: chordSet,
	}
}

// State returns the current arming state. A disabled machine is always Armed.
func (m *Machine) State() State {
	if !m.cfg.Enabled {
		return Armed
	}

	return m.state
}

// OnNote processes a note press and returns the resulting state.
//
// The idle-disarm check runs first, comparing the incoming timestamp against
// the previous activity timestamp, so the first press after a long idle gap
// observes Disarmed before any re-arming evaluation. While Armed, sequence
// matching is not evaluated.
func (m *Machine) OnNote(note int, at time.Time) State {
	if !m.cfg.Enabled {
		return Armed
	}

	previous := m.lastActivity
	m.lastActivity = at

	if m.state == Armed && m.cfg.DisarmAfter > 0 && at.Sub(previous) > m.cfg.DisarmAfter {
		m.Reset()
	}

	if m.state == Armed {
		return m.state
	}

	if len(m.cfg.Sequence) > 0 {
		m.processSequence(note, at)
	}

	m.maybeArm()

	return m.state
}

// OnChord processes a detected chord and returns the resulting state.
// Only an exact match of the configured chord set counts; supersets and
// subsets never arm.
func (m *Machine) OnChord(notes []int, at time.Time) State {
	if !m.cfg.Enabled {
		return Armed
	}

	if len(m.chordSet) == 0 {
		return m.state
	}

	m.lastActivity = at

	if m.matchesChord(notes) {
		m.armedByChord = true
		m.maybeArm()
	}

	return m.state
}

// OnActionSuccess applies the disarm-after-action policy. Called by the
// dispatch loop after a successful outbound action.
func (m *Machine) OnActionSuccess() {
	if m.cfg.DisarmAfterAction {
		m.Reset()
	}
}

// Reset forces the machine to Disarmed and clears all unlock progress.
// If the machine was Armed, a disarm announcement is queued.
func (m *Machine) Reset() {
	previous := m.state

	m.state = Disarmed
	m.progress = nil
	m.seqStart = time.Time{}
	m.armedBySequence = false
	m.armedByChord = false

	if previous == Armed && m.cfg.AnnounceOnDisarm {
		m.pending = append(m.pending, Notification{
			Kind:    NotifyDisarm,
			Message: m.cfg.DisarmMessage,
		})
	}
}

// Drain returns the queued announcements in order and clears the queue.
func (m *Machine) Drain() []Notification {
	pending := m.pending
	m.pending = nil

	return pending
}

// processSequence advances or restarts the unlock sequence with the note.
func (m *Machine) processSequence(note int, at time.Time) {
	if len(m.progress) == 0 {
		m.restartSequence(note, at)
		return
	}

	if at.Sub(m.seqStart) > m.cfg.SequenceTimeout {
		m.restartSequence(note, at)
		return
	}

	if len(m.progress) < len(m.cfg.Sequence) && note == m.cfg.Sequence[len(m.progress)] {
		m.progress = append(m.progress, note)

		if slices.Equal(m.progress, m.cfg.Sequence) {
			m.armedBySequence = true
		}

		return
	}

	// Wrong note: the interrupting key becomes the new first element.
	m.restartSequence(note, at)
}

// restartSequence begins a fresh sequence attempt seeded with the note.
func (m *Machine) restartSequence(note int, at time.Time) {
	m.progress = []int{note}
	m.seqStart = at

	if slices.Equal(m.progress, m.cfg.Sequence) {
		m.armedBySequence = true
	}
}

// maybeArm transitions to Armed when the configured mechanisms are satisfied.
func (m *Machine) maybeArm() {
	if m.state == Armed {
		return
	}

	needsSequence := len(m.cfg.Sequence) > 0
	needsChord := len(m.chordSet) > 0

	var cause string

	switch {
	case m.cfg.RequireBoth:
		if !m.armedBySequence || !m.armedByChord {
			return
		}

		cause = "sequence + chord"
	case needsSequence && m.armedBySequence:
		cause = "sequence"
	case needsChord && m.armedByChord:
		cause = "chord"
	default:
		return
	}

	m.state = Armed

	if m.cfg.AnnounceOnArm {
		m.pending = append(m.pending, Notification{
			Kind:    NotifyArm,
			Message: m.cfg.ArmMessage,
			Cause:   cause,
		})
	}
}

// matchesChord reports whether the notes are exactly the configured chord set.
func (m *Machine) matchesChord(notes []int) bool {
	seen := make(map[int]struct{}, len(notes))
	for _, n := range notes {
		seen[n] = struct{}{}
	}

	if len(seen) != len(m.chordSet) {
		return false
	}

	for n := range m.chordSet {
		if _, ok := seen[n]; !ok {
			return false
		}
	}

	return true
}
