package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Config holds the full application configuration loaded from the main YAML file.
type Config struct {
	// MIDI configures the input device and per-note rate limiting.
	MIDI MIDIConfig `yaml:"midi"`
	// Arming configures the unlock ritual gating real-world actions.
	Arming ArmingConfig `yaml:"arming"`
	// Confirmation configures the double-tap confirmation gesture.
	Confirmation ConfirmationConfig `yaml:"confirmation"`
	// Announce configures the voice announcement sent after a successful action.
	Announce AnnounceConfig `yaml:"announce"`
	// HA holds Home Assistant connection settings.
	HA HAConfig `yaml:"ha"`
	// Runtime holds reconnection tuning for the event loop.
	Runtime RuntimeConfig `yaml:"runtime"`
	// Logging holds log output settings.
	Logging LoggingConfig `yaml:"logging"`
	// MappingFile is the path to the note-to-product mapping YAML file.
	MappingFile string `yaml:"mapping_file"`
}

// MIDIConfig describes the input device selection and event filtering.
type MIDIConfig struct {
	// PortName is the exact MIDI port name, or empty to auto-select the first port.
	PortName string `yaml:"port_name"`
	// Channel filters events to one MIDI channel (1-16), 0 accepts all channels.
	Channel int `yaml:"channel"`
	// RateLimitPerNote is the cooldown between triggers of the same note.
	RateLimitPerNote Duration `yaml:"rate_limit_per_note"`
}

// ArmingConfig describes the unlock sequence and/or chord and disarm behavior.
type ArmingConfig struct {
	// Enabled turns the arming gate on. When false every note is actionable.
	Enabled bool `yaml:"enabled"`
	// Sequence is the ordered list of notes unlocking the system (empty = unused).
	Sequence []int `yaml:"sequence"`
	// SequenceTimeout bounds the time from the first to the last sequence note.
	SequenceTimeout Duration `yaml:"sequence_timeout"`
	// Chord is the exact set of notes unlocking the system (empty = unused).
	Chord []int `yaml:"chord"`
	// ChordWindow is the sliding window within which chord notes must co-occur.
	ChordWindow Duration `yaml:"chord_window"`
	// RequireBoth demands both the sequence and the chord before arming.
	RequireBoth bool `yaml:"require_both_sequence_and_chord"`
	// DisarmAfter disarms after this much inactivity while armed (0 = never).
	DisarmAfter Duration `yaml:"disarm_after"`
	// DisarmAfterAdd disarms after each successful product addition.
	DisarmAfterAdd bool `yaml:"disarm_after_add"`
	// AnnounceOnArm enables the voice announcement on arming.
	AnnounceOnArm bool `yaml:"announce_on_arm"`
	// AnnounceOnDisarm enables the voice announcement on disarming.
	AnnounceOnDisarm bool `yaml:"announce_on_disarm"`
	// ArmMessage is the announcement text on arming.
	ArmMessage string `yaml:"arm_message"`
	// DisarmMessage is the announcement text on disarming.
	DisarmMessage string `yaml:"disarm_message"`
}

// ConfirmationConfig describes the double-tap confirmation gesture.
type ConfirmationConfig struct {
	// DoubleTapEnabled turns the double-tap gate on for mappings that request it.
	DoubleTapEnabled bool `yaml:"double_tap_enabled"`
	// DoubleTapWindow is the maximum gap between the two taps.
	DoubleTapWindow Duration `yaml:"double_tap_window"`
}

// AnnounceConfig describes the post-action voice announcement.
type AnnounceConfig struct {
	// Enabled turns post-action announcements on.
	Enabled bool `yaml:"enabled"`
	// MessageTemplate is the announcement text; {product_name} is substituted.
	MessageTemplate string `yaml:"message_template"`
	// DeviceID targets a specific assist satellite device.
	DeviceID string `yaml:"device_id"`
	// Preannounce plays a chime before the message.
	Preannounce bool `yaml:"preannounce"`
}

// HAConfig holds Home Assistant connection settings.
type HAConfig struct {
	// URL is the websocket API endpoint, e.g. ws://homeassistant.local:8123/api/websocket.
	URL string `yaml:"url"`
	// TokenSource selects where the access token comes from. Only "env" is supported:
	// the token is read from the HA_TOKEN environment variable.
	TokenSource string `yaml:"token_source"`
}

// RuntimeConfig holds reconnection tuning for the event loop.
type RuntimeConfig struct {
	// MIDIReconnectDelay is the fixed delay between device reconnection attempts.
	MIDIReconnectDelay Duration `yaml:"midi_reconnect_delay"`
	// ReconnectBackoff is the backoff ladder for Home Assistant reconnection;
	// the last entry repeats for further attempts.
	ReconnectBackoff []Duration `yaml:"reconnect_backoff"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error, fatal).
	Level string `yaml:"level"`
}

const (
	// DefaultConfigFilename is the default path of the main configuration file.
	DefaultConfigFilename = "config/app.yaml"

	// DefaultMappingFilename is the default path of the note mapping file.
	DefaultMappingFilename = "config/mapping.yaml"

	// maxNote is the highest valid MIDI note number.
	maxNote = 127

	// maxChannel is the highest valid MIDI channel.
	maxChannel = 16
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errRequireBothUnsatisfiable is returned when require_both_sequence_and_chord
	// is set but one of the two mechanisms is not configured.
	errRequireBothUnsatisfiable = errors.New(
		"require_both_sequence_and_chord needs both a sequence and a chord to be configured")
	// errTokenSourceUnsupported is returned for unknown ha.token_source values.
	errTokenSourceUnsupported = errors.New("only the \"env\" token source is supported")
)

// Default returns a configuration pre-filled with the documented defaults.
// Load unmarshals on top of it, so absent keys keep their default values.
func Default() *Config {
	return &Config{
		MIDI: MIDIConfig{
			Channel:          1,
			RateLimitPerNote: Duration(500 * time.Millisecond),
		},
		Arming: ArmingConfig{
			Enabled:          true,
			SequenceTimeout:  Duration(3 * time.Second),
			ChordWindow:      Duration(200 * time.Millisecond),
			DisarmAfter:      Duration(time.Minute),
			AnnounceOnArm:    true,
			AnnounceOnDisarm: true,
			ArmMessage:       "Piano is now armed and ready for shopping",
			DisarmMessage:    "Piano has been disarmed",
		},
		Confirmation: ConfirmationConfig{
			DoubleTapEnabled: true,
			DoubleTapWindow:  Duration(800 * time.Millisecond),
		},
		Announce: AnnounceConfig{
			Enabled:         true,
			MessageTemplate: "{product_name} was added to basket",
		},
		HA: HAConfig{
			TokenSource: "env",
		},
		Runtime: RuntimeConfig{
			MIDIReconnectDelay: Duration(5 * time.Second),
			ReconnectBackoff: []Duration{
				Duration(500 * time.Millisecond),
				Duration(time.Second),
				Duration(2 * time.Second),
				Duration(5 * time.Second),
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		MappingFile: DefaultMappingFilename,
	}
}

// Load reads configuration from the provided path, applies defaults for absent
// keys and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := unmarshalStrictYAML(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the provided configuration for consistency.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.MIDI.Channel < 0 || cfg.MIDI.Channel > maxChannel {
		return fmt.Errorf("midi channel %d out of range 0-%d", cfg.MIDI.Channel, maxChannel)
	}

	if err := validateNotes("arming sequence", cfg.Arming.Sequence); err != nil {
		return err
	}

	if err := validateNotes("arming chord", cfg.Arming.Chord); err != nil {
		return err
	}

	if cfg.Arming.Enabled && cfg.Arming.RequireBoth &&
		(len(cfg.Arming.Sequence) == 0 || len(cfg.Arming.Chord) == 0) {
		return errRequireBothUnsatisfiable
	}

	for _, d := range []Duration{
		cfg.MIDI.RateLimitPerNote,
		cfg.Arming.SequenceTimeout,
		cfg.Arming.ChordWindow,
		cfg.Arming.DisarmAfter,
		cfg.Confirmation.DoubleTapWindow,
		cfg.Runtime.MIDIReconnectDelay,
	} {
		if d < 0 {
			return fmt.Errorf("negative duration %s in configuration", d.Std())
		}
	}

	if cfg.HA.URL != "" {
		if _, err := url.Parse(cfg.HA.URL); err != nil {
			return fmt.Errorf("invalid ha url: %w", err)
		}
	}

	if cfg.HA.TokenSource != "" && cfg.HA.TokenSource != "env" {
		return errTokenSourceUnsupported
	}

	return nil
}

// validateNotes checks every note in the list is a valid MIDI note number.
func validateNotes(what string, notes []int) error {
	for _, n := range notes {
		if n < 0 || n > maxNote {
			return fmt.Errorf("%s note %d out of range 0-%d", what, n, maxNote)
		}
	}

	return nil
}
