package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfirmationMode selects the gesture required before a mapped note fires.
type ConfirmationMode string

const (
	// ConfirmationDoubleTap requires the note to be pressed twice within the window.
	ConfirmationDoubleTap ConfirmationMode = "double_tap"
	// ConfirmationSingleTap fires on a single press.
	ConfirmationSingleTap ConfirmationMode = "single_tap"
)

// Mapping is the note-to-product mapping file.
type Mapping struct {
	// Notes maps a MIDI note number to its product entry.
	Notes map[int]NoteMapping `yaml:"notes"`
	// Defaults provides fallback values for fields absent from note entries.
	Defaults MappingDefaults `yaml:"defaults"`
	// Behavior tunes how unmapped notes are handled.
	Behavior MappingBehavior `yaml:"behavior"`
}

// NoteMapping is a single note's product entry.
type NoteMapping struct {
	// ProductID is the store product identifier, e.g. "s1018231".
	ProductID string `yaml:"product_id"`
	// ProductName is the human-readable name used in logs and announcements.
	ProductName string `yaml:"product_name"`
	// Amount is the quantity added per trigger.
	Amount int `yaml:"amount"`
	// ConfigEntryID selects the account for multi-account setups.
	ConfigEntryID string `yaml:"config_entry_id"`
	// Confirmation overrides the default confirmation mode.
	Confirmation ConfirmationMode `yaml:"confirmation"`
}

// MappingDefaults provides fallback values for note entries.
type MappingDefaults struct {
	// Amount is the default quantity per trigger.
	Amount int `yaml:"amount"`
	// ConfigEntryID is the default account.
	ConfigEntryID string `yaml:"config_entry_id"`
	// Confirmation is the default confirmation mode.
	Confirmation ConfirmationMode `yaml:"confirmation"`
}

// MappingBehavior tunes how unmapped notes are handled.
type MappingBehavior struct {
	// OutOfRangeHandling is "log" to log unmapped notes; anything else drops
	// them silently.
	OutOfRangeHandling string `yaml:"out_of_range_handling"`
}

// Product is a fully resolved mapping entry with defaults applied.
type Product struct {
	// ProductID is the store product identifier.
	ProductID string
	// DisplayName is the human-readable product name.
	DisplayName string
	// Amount is the quantity added per trigger.
	Amount int
	// ConfigEntryID selects the account, empty for the default account.
	ConfigEntryID string
	// Confirmation is the gesture required before the note fires.
	Confirmation ConfirmationMode
}

// LoadMapping reads and validates the note mapping file.
func LoadMapping(path string) (*Mapping, error) {
	if path == "" {
		path = DefaultMappingFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read mapping: %w", err)
	}

	var m Mapping
	if err := unmarshalStrictYAML(contents, &m); err != nil {
		return nil, fmt.Errorf("unmarshal mapping: %w", err)
	}

	if err := ValidateMapping(&m); err != nil {
		return nil, err
	}

	return &m, nil
}

// ValidateMapping checks note numbers, product identifiers and confirmation modes.
func ValidateMapping(m *Mapping) error {
	if m == nil {
		return errConfigIsNotSet
	}

	if err := validateConfirmation(m.Defaults.Confirmation); err != nil {
		return fmt.Errorf("mapping defaults: %w", err)
	}

	for note, entry := range m.Notes {
		if note < 0 || note > maxNote {
			return fmt.Errorf("mapped note %d out of range 0-%d", note, maxNote)
		}

		if entry.ProductID == "" {
			return fmt.Errorf("note %d: product_id must be provided", note)
		}

		if entry.Amount < 0 {
			return fmt.Errorf("note %d: negative amount", note)
		}

		if err := validateConfirmation(entry.Confirmation); err != nil {
			return fmt.Errorf("note %d: %w", note, err)
		}
	}

	return nil
}

// validateConfirmation accepts the known modes plus empty (inherit/default).
func validateConfirmation(mode ConfirmationMode) error {
	switch mode {
	case "", ConfirmationDoubleTap, ConfirmationSingleTap:
		return nil
	default:
		return fmt.Errorf("unknown confirmation mode %q", mode)
	}
}

// Lookup resolves the note's product entry with defaults applied.
// It returns nil when the note is not mapped.
func (m *Mapping) Lookup(note int) *Product {
	entry, ok := m.Notes[note]
	if !ok {
		return nil
	}

	p := &Product{
		ProductID:     entry.ProductID,
		DisplayName:   entry.ProductName,
		Amount:        entry.Amount,
		ConfigEntryID: entry.ConfigEntryID,
		Confirmation:  entry.Confirmation,
	}

	if p.DisplayName == "" {
		p.DisplayName = "Product " + entry.ProductID
	}

	if p.Amount == 0 {
		p.Amount = m.Defaults.Amount
	}

	if p.Amount == 0 {
		p.Amount = 1
	}

	if p.ConfigEntryID == "" {
		p.ConfigEntryID = m.Defaults.ConfigEntryID
	}

	if p.Confirmation == "" {
		p.Confirmation = m.Defaults.Confirmation
	}

	if p.Confirmation == "" {
		p.Confirmation = ConfirmationDoubleTap
	}

	return p
}

// LogsUnmappedNotes reports whether unmapped notes should be logged.
// Logging is opt-in; an absent out_of_range_handling drops notes silently.
func (m *Mapping) LogsUnmappedNotes() bool {
	return m.Behavior.OutOfRangeHandling == "log"
}
