package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// writeFile writes contents to a temp file and returns its path.
func writeFile(t *testing.T, name, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

// TestLoadDefaults ensures absent keys keep their documented defaults.
func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "app.yaml", "midi:\n  port_name: \"Piano\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "Piano", cfg.MIDI.PortName)
	require.Equal(t, 1, cfg.MIDI.Channel)
	require.Equal(t, 500*time.Millisecond, cfg.MIDI.RateLimitPerNote.Std())
	require.True(t, cfg.Arming.Enabled)
	require.Equal(t, 3*time.Second, cfg.Arming.SequenceTimeout.Std())
	require.Equal(t, 200*time.Millisecond, cfg.Arming.ChordWindow.Std())
	require.Equal(t, time.Minute, cfg.Arming.DisarmAfter.Std())
	require.True(t, cfg.Confirmation.DoubleTapEnabled)
	require.Equal(t, 800*time.Millisecond, cfg.Confirmation.DoubleTapWindow.Std())
	require.Equal(t, 5*time.Second, cfg.Runtime.MIDIReconnectDelay.Std())
	require.Len(t, cfg.Runtime.ReconnectBackoff, 4)
}

// TestLoadDurationsAndOverrides checks duration strings, integer milliseconds
// and explicit false values overriding true defaults.
func TestLoadDurationsAndOverrides(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "app.yaml", `
midi:
  rate_limit_per_note: 250
arming:
  enabled: false
  sequence: [60, 62, 64]
  sequence_timeout: 5s
  announce_on_arm: false
confirmation:
  double_tap_window: 1200ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 250*time.Millisecond, cfg.MIDI.RateLimitPerNote.Std())
	require.False(t, cfg.Arming.Enabled)
	require.Equal(t, []int{60, 62, 64}, cfg.Arming.Sequence)
	require.Equal(t, 5*time.Second, cfg.Arming.SequenceTimeout.Std())
	require.False(t, cfg.Arming.AnnounceOnArm)
	require.True(t, cfg.Arming.AnnounceOnDisarm)
	require.Equal(t, 1200*time.Millisecond, cfg.Confirmation.DoubleTapWindow.Std())
}

// TestLoadRejectsUnknownKeys ensures typos in config files fail loudly.
func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "app.yaml", "arming:\n  sequenc: [60]\n")

	_, err := Load(path)
	require.Error(t, err)
}

// TestValidate checks note ranges, channel bounds and the require-both rule.
func TestValidate(t *testing.T) {
	t.Parallel()

	require.Error(t, Validate(nil))

	cfg := Default()
	cfg.MIDI.Channel = 17
	require.Error(t, Validate(cfg))

	cfg = Default()
	cfg.Arming.Sequence = []int{60, 200}
	require.Error(t, Validate(cfg))

	// require_both without a chord can never arm.
	cfg = Default()
	cfg.Arming.Sequence = []int{60, 62}
	cfg.Arming.RequireBoth = true
	require.Error(t, Validate(cfg))

	cfg.Arming.Chord = []int{48, 52, 55}
	require.NoError(t, Validate(cfg))

	// Disabled arming does not trip the require-both rule.
	cfg = Default()
	cfg.Arming.Enabled = false
	cfg.Arming.RequireBoth = true
	require.NoError(t, Validate(cfg))

	cfg = Default()
	cfg.HA.TokenSource = "vault"
	require.Error(t, Validate(cfg))
}
